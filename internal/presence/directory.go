// Package presence is the presence & geospatial directory: each agent's last
// known position, postal region and online state, bounded by a TTL so silent
// disconnects self-heal without explicit cleanup.
package presence

import (
	"sync"
	"time"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/geo"
)

type Record struct {
	AgentID      string
	Point        *geo.Point
	PostalRegion string
	LastSeen     time.Time
	ExpiresAt    time.Time
}

type Directory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	records map[string]Record
	index   *geo.MemoryIndex
}

func NewDirectory(ttl time.Duration) *Directory {
	return &Directory{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]Record),
		index:   geo.NewMemoryIndex(),
	}
}

// Upsert refreshes the agent's presence and TTL. Without coordinates the
// agent degrades to postal-region indexing only, even when an earlier upsert
// carried a position; an empty region keeps the previous one so a bare
// location update does not drop room membership.
func (d *Directory) Upsert(agentID string, p *geo.Point, postalRegion string) {
	now := d.now().UTC()

	d.mu.Lock()
	defer d.mu.Unlock()

	if postalRegion == "" {
		if prev, ok := d.records[agentID]; ok {
			postalRegion = prev.PostalRegion
		}
	}
	d.records[agentID] = Record{
		AgentID:      agentID,
		Point:        p,
		PostalRegion: postalRegion,
		LastSeen:     now,
		ExpiresAt:    now.Add(d.ttl),
	}
	if p != nil {
		d.index.Upsert(agentID, *p)
	} else {
		d.index.Remove(agentID)
	}
}

func (d *Directory) IsOnline(agentID string) bool {
	now := d.now().UTC()
	d.mu.RLock()
	rec, ok := d.records[agentID]
	d.mu.RUnlock()
	return ok && !d.expired(rec, now)
}

// QueryRadius lists unexpired agents within radiusKm of p, nearest first.
func (d *Directory) QueryRadius(p geo.Point, radiusKm float64) []geo.Neighbor {
	now := d.now().UTC()
	neighbors := d.index.NearestWithinRadius(p, radiusKm)

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := neighbors[:0]
	for _, n := range neighbors {
		if rec, ok := d.records[n.ID]; ok && !d.expired(rec, now) {
			out = append(out, n)
		}
	}
	return out
}

// RegionMembers lists unexpired agents joined to the given postal region.
func (d *Directory) RegionMembers(postalRegion string) []string {
	now := d.now().UTC()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []string
	for id, rec := range d.records {
		if rec.PostalRegion == postalRegion && !d.expired(rec, now) {
			out = append(out, id)
		}
	}
	return out
}

// Lookup returns the agent's current record, if still live.
func (d *Directory) Lookup(agentID string) (Record, bool) {
	now := d.now().UTC()
	d.mu.RLock()
	rec, ok := d.records[agentID]
	d.mu.RUnlock()
	if !ok || d.expired(rec, now) {
		return Record{}, false
	}
	return rec, true
}

func (d *Directory) expired(rec Record, now time.Time) bool {
	return now.After(rec.ExpiresAt)
}
