package service

import (
	"context"
	"log"
	"time"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/events"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/geo"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/presence"
	"github.com/NakshatraNamahaCreations/novus-dispatch/pkg/metrics"
)

type OrderSource interface {
	PendingCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error)
}

type RejectionLedger interface {
	IsRejected(ctx context.Context, orderID, agentID string) (bool, error)
	RejectedAgents(ctx context.Context, orderID string) (map[string]struct{}, error)
}

// DispatchSvc owns the two offer paths: the broadcast that runs when an
// order is created, and the replay that runs when an agent (re)connects.
// Both apply the same eligibility test (region match or within radius)
// and the same rejection exclusion, so a reconnecting agent ends up with
// exactly the jobs a connected one would have been offered.
type DispatchSvc struct {
	orders     OrderSource
	rejections RejectionLedger
	dir        *presence.Directory
	pub        Publisher
	cache      *PendingCache

	radiusKm   float64
	categories map[string]struct{}
	m          *metrics.Dispatch
	now        func() time.Time
}

func NewDispatchSvc(orders OrderSource, rejections RejectionLedger, dir *presence.Directory,
	pub Publisher, cache *PendingCache, radiusKm float64, categories []string, m *metrics.Dispatch) *DispatchSvc {

	set := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return &DispatchSvc{
		orders:     orders,
		rejections: rejections,
		dir:        dir,
		pub:        pub,
		cache:      cache,
		radiusKm:   radiusKm,
		categories: set,
		m:          m,
		now:        time.Now,
	}
}

// Broadcastable reports whether an order is offered live: category in the
// broadcast set and scheduled for the current day. Everything else is left
// for manual assignment.
func (s *DispatchSvc) Broadcastable(o *domain.Order) bool {
	if _, ok := s.categories[o.ServiceCategory]; !ok {
		return false
	}
	return o.ScheduledDate == domain.DateOf(s.now())
}

// BroadcastNewOrder fans offers out to every eligible online agent: the
// radius neighborhood of the order's location united with the postal-region
// room, minus agents who already declined. Delivery is unacknowledged; the
// receiver de-duplicates by order id.
func (s *DispatchSvc) BroadcastNewOrder(ctx context.Context, o *domain.Order) error {
	if !s.Broadcastable(o) {
		return nil
	}
	s.cache.Put(*o)

	// distance is kept only for candidates found via the radius path
	candidates := make(map[string]*float64)
	if o.HasCoords() {
		for _, n := range s.dir.QueryRadius(geo.Point{Lat: *o.Lat, Lon: *o.Lon}, s.radiusKm) {
			d := n.DistanceKm
			candidates[n.ID] = &d
		}
	}
	for _, id := range s.dir.RegionMembers(o.PostalRegion) {
		if _, ok := candidates[id]; !ok {
			candidates[id] = nil
		}
	}

	rejected, err := s.rejections.RejectedAgents(ctx, o.ID)
	if err != nil {
		return err
	}

	for agentID, dist := range candidates {
		if _, ok := rejected[agentID]; ok {
			continue
		}
		if !s.dir.IsOnline(agentID) {
			continue
		}
		offer := offerFor(o, dist)
		if err := s.pub.PublishEvent(ctx, events.AgentKey(agentID), events.TypeJobOffered, offer); err != nil {
			log.Printf("[dispatch] offer publish to %s failed: %v", agentID, err)
			continue
		}
		s.countOffer("broadcast")
	}

	// one untargeted copy to the postal-region room for listeners that join
	// rooms instead of private channels
	if o.PostalRegion != "" {
		room := offerFor(o, nil)
		if err := s.pub.PublishEvent(ctx, events.RegionKey(o.PostalRegion), events.TypeJobOffered, room); err != nil {
			log.Printf("[dispatch] region room publish for %s failed: %v", o.ID, err)
		}
	}
	return nil
}

// ReplayForAgent re-runs eligibility for every still-pending order created
// today and pushes the surviving offers to the (re)connected agent's
// channel. The returned slice backs the pull-shaped pending-jobs listing.
func (s *DispatchSvc) ReplayForAgent(ctx context.Context, agentID, postalRegion string, pt *geo.Point) ([]events.JobOffered, error) {
	from := startOfDay(s.now())
	pending, err := s.orders.PendingCreatedBetween(ctx, from, from.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	offers := make([]events.JobOffered, 0, len(pending))
	for i := range pending {
		o := &pending[i]
		if !s.Broadcastable(o) {
			continue
		}
		eligible, dist := s.eligible(o, postalRegion, pt)
		if !eligible {
			continue
		}
		skip, err := s.rejections.IsRejected(ctx, o.ID, agentID)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		offer := offerFor(o, dist)
		if err := s.pub.PublishEvent(ctx, events.AgentKey(agentID), events.TypeJobOffered, offer); err != nil {
			log.Printf("[dispatch] replay publish to %s failed: %v", agentID, err)
		} else {
			s.countOffer("replay")
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// eligible mirrors the broadcast candidate test for a single agent: postal
// region match, or within the configured radius when both sides have
// coordinates.
func (s *DispatchSvc) eligible(o *domain.Order, postalRegion string, pt *geo.Point) (bool, *float64) {
	var dist *float64
	if pt != nil && o.HasCoords() {
		if d := geo.HaversineKm(*pt, geo.Point{Lat: *o.Lat, Lon: *o.Lon}); d <= s.radiusKm {
			dist = &d
		}
	}
	regionMatch := o.PostalRegion != "" && o.PostalRegion == postalRegion
	return regionMatch || dist != nil, dist
}

func (s *DispatchSvc) PendingSnapshot() []domain.Order {
	return s.cache.Snapshot()
}

func (s *DispatchSvc) countOffer(path string) {
	if s.m != nil {
		count(s.m.OffersFanned, path)
	}
}

func offerFor(o *domain.Order, dist *float64) events.JobOffered {
	return events.JobOffered{
		OrderID:         o.ID,
		DistanceKm:      dist,
		PostalRegion:    o.PostalRegion,
		ScheduledSlotID: o.ScheduledSlotID,
		ScheduledDate:   o.ScheduledDate,
		ServiceCategory: o.ServiceCategory,
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
