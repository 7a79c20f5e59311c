package service

import (
	"sort"
	"sync"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
)

// PendingCache is this node's view of orders still open for offers. It is a
// convenience for the ops listing, never authoritative: assignment truth
// lives in the order row. Other nodes drop entries via the order-assigned
// fan-in event.
type PendingCache struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func NewPendingCache() *PendingCache {
	return &PendingCache{orders: make(map[string]domain.Order)}
}

func (c *PendingCache) Put(o domain.Order) {
	c.mu.Lock()
	c.orders[o.ID] = o
	c.mu.Unlock()
}

func (c *PendingCache) Drop(orderID string) {
	c.mu.Lock()
	delete(c.orders, orderID)
	c.mu.Unlock()
}

func (c *PendingCache) Has(orderID string) bool {
	c.mu.RLock()
	_, ok := c.orders[orderID]
	c.mu.RUnlock()
	return ok
}

func (c *PendingCache) Snapshot() []domain.Order {
	c.mu.RLock()
	out := make([]domain.Order, 0, len(c.orders))
	for _, o := range c.orders {
		out = append(out, o)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
