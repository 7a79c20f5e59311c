package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
)

type publishedEvent struct {
	Key  string
	Type string
	Data any
}

type fakePublisher struct {
	mu      sync.Mutex
	events  []publishedEvent
	failAll bool
}

func (p *fakePublisher) PublishEvent(_ context.Context, key, typ string, data any) error {
	if p.failAll {
		return errors.New("bus unreachable")
	}
	p.mu.Lock()
	p.events = append(p.events, publishedEvent{Key: key, Type: typ, Data: data})
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) byType(typ string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newFakeOrders(orders ...domain.Order) *fakeOrders {
	m := make(map[string]domain.Order, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return &fakeOrders{orders: m}
}

func (f *fakeOrders) ByID(_ context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (f *fakeOrders) PendingCreatedBetween(_ context.Context, from, to time.Time) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.Status != domain.OrderPending {
			continue
		}
		if o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

type rejectionEntry struct {
	reason    string
	expiresAt time.Time
}

// fakeRejections mirrors the ledger's insert-if-absent write and its
// expires_at > now read predicate, with an injectable clock.
type fakeRejections struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
	set map[string]map[string]rejectionEntry // orderID -> agentID
}

func newFakeRejections() *fakeRejections {
	return &fakeRejections{
		ttl: 6 * time.Hour,
		now: time.Now,
		set: make(map[string]map[string]rejectionEntry),
	}
}

func (f *fakeRejections) Record(_ context.Context, orderID, agentID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set[orderID] == nil {
		f.set[orderID] = make(map[string]rejectionEntry)
	}
	if _, ok := f.set[orderID][agentID]; ok {
		return nil // idempotent
	}
	f.set[orderID][agentID] = rejectionEntry{reason: reason, expiresAt: f.now().Add(f.ttl)}
	return nil
}

func (f *fakeRejections) IsRejected(_ context.Context, orderID, agentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.set[orderID][agentID]
	return ok && e.expiresAt.After(f.now()), nil
}

func (f *fakeRejections) RejectedAgents(_ context.Context, orderID string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	out := make(map[string]struct{}, len(f.set[orderID]))
	for id, e := range f.set[orderID] {
		if e.expiresAt.After(now) {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeRejections) count(orderID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.set[orderID])
}

// fakeAssigner reproduces the assignment transaction's contract with a
// mutex: one winner, own-calendar conflicts, one ledger entry per order.
type fakeAssigner struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	calendar map[string]string // agentID+slot+date -> orderID
	balances map[string]int64
	entries  []domain.EarningsLedgerEntry
}

func newFakeAssigner(orders ...domain.Order) *fakeAssigner {
	m := make(map[string]domain.Order, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return &fakeAssigner{
		orders:   m,
		calendar: make(map[string]string),
		balances: make(map[string]int64),
	}
}

func (f *fakeAssigner) AssignWinner(_ context.Context, orderID, agentID string) (*domain.Order, *domain.EarningsLedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderID]
	if !ok || o.Status == domain.OrderCancelled {
		return nil, nil, domain.ErrNotFound
	}
	if o.AssignedAgentID != nil {
		return nil, nil, domain.ErrAlreadyAccepted
	}
	calKey := agentID + "|" + o.ScheduledSlotID + "|" + o.ScheduledDate
	if _, taken := f.calendar[calKey]; taken {
		return nil, nil, domain.ErrSlotConflict
	}

	o.AssignedAgentID = &agentID
	o.Status = domain.OrderAccepted
	f.orders[orderID] = o
	f.calendar[calKey] = orderID
	f.balances[agentID] += 15000

	entry := domain.EarningsLedgerEntry{
		ID:           uuid.NewString(),
		AgentID:      agentID,
		OrderID:      orderID,
		Amount:       15000,
		BalanceAfter: f.balances[agentID],
		CreatedAt:    time.Now().UTC(),
	}
	f.entries = append(f.entries, entry)
	return &o, &entry, nil
}

func (f *fakeAssigner) entriesFor(orderID string) []domain.EarningsLedgerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.EarningsLedgerEntry
	for _, e := range f.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out
}

// fakeCounter reproduces the counter transaction's contract with a mutex.
type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int
	caps   map[string]int
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int), caps: make(map[string]int)}
}

func (f *fakeCounter) ReserveUnit(_ context.Context, slotID, calendarDate string, capacity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := slotID + "|" + calendarDate
	if _, ok := f.caps[key]; !ok {
		f.caps[key] = capacity // row created lazily with the first booking
	}
	if f.counts[key] >= f.caps[key] {
		return domain.ErrSlotFull
	}
	f.counts[key]++
	return nil
}

func (f *fakeCounter) Counter(_ context.Context, slotID, calendarDate string) (*domain.SlotBookingCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := slotID + "|" + calendarDate
	capacity, ok := f.caps[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.SlotBookingCounter{
		SlotID:       slotID,
		CalendarDate: calendarDate,
		Count:        f.counts[key],
		Capacity:     capacity,
	}, nil
}
