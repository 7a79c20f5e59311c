package service

import (
	"context"
	"errors"
	"log"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/events"
	"github.com/NakshatraNamahaCreations/novus-dispatch/pkg/metrics"
)

type Assigner interface {
	AssignWinner(ctx context.Context, orderID, agentID string) (*domain.Order, *domain.EarningsLedgerEntry, error)
}

// AcceptSvc is the acceptance coordinator. The assigner's transaction is the
// single source of truth for who won; everything after commit is advisory
// notification and must never undo a successful acceptance.
type AcceptSvc struct {
	assigner Assigner
	pub      Publisher
	cache    *PendingCache
	m        *metrics.Dispatch
}

func NewAcceptSvc(assigner Assigner, pub Publisher, cache *PendingCache, m *metrics.Dispatch) *AcceptSvc {
	return &AcceptSvc{assigner: assigner, pub: pub, cache: cache, m: m}
}

func (s *AcceptSvc) Accept(ctx context.Context, orderID, agentID string) (*domain.Order, *domain.EarningsLedgerEntry, error) {
	if orderID == "" || agentID == "" {
		return nil, nil, domain.ErrValidation
	}

	o, entry, err := s.assigner.AssignWinner(ctx, orderID, agentID)
	if err != nil {
		s.countResult(err)
		return nil, nil, err
	}
	if s.m != nil {
		count(s.m.AcceptResults, "won")
	}

	// Post-commit side effects, best effort: drop the pending listing
	// everywhere and retract the offer from losing agents' UIs.
	s.cache.Drop(orderID)

	tracking := events.TrackingStarted{
		OrderID: orderID,
		AgentID: agentID,
		Order:   detailsOf(o),
	}
	if err := s.pub.PublishEvent(ctx, events.AgentKey(agentID), events.TypeTrackingStarted, tracking); err != nil {
		log.Printf("[accept] tracking publish failed for %s: %v", orderID, err)
	}
	retract := events.JobRetracted{OrderID: orderID}
	if err := s.pub.PublishEvent(ctx, events.OrderKey(orderID), events.TypeJobRetracted, retract); err != nil {
		log.Printf("[accept] retract publish failed for %s: %v", orderID, err)
	}
	// the region room got an offer copy at broadcast time; retract it there too
	if o.PostalRegion != "" {
		if err := s.pub.PublishEvent(ctx, events.RegionKey(o.PostalRegion), events.TypeJobRetracted, retract); err != nil {
			log.Printf("[accept] region retract publish failed for %s: %v", orderID, err)
		}
	}
	assigned := events.OrderAssigned{OrderID: orderID, AgentID: agentID}
	if err := s.pub.PublishEvent(ctx, events.KeyOrderAssigned, events.TypeOrderAssigned, assigned); err != nil {
		log.Printf("[accept] assigned publish failed for %s: %v", orderID, err)
	}

	return o, entry, nil
}

func (s *AcceptSvc) countResult(err error) {
	if s.m == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrAlreadyAccepted):
		count(s.m.AcceptResults, "already_accepted")
	case errors.Is(err, domain.ErrSlotConflict):
		count(s.m.AcceptResults, "slot_conflict")
	}
}

func detailsOf(o *domain.Order) events.OrderDetails {
	return events.OrderDetails{
		ID:              o.ID,
		Status:          o.Status,
		Lat:             o.Lat,
		Lon:             o.Lon,
		PostalRegion:    o.PostalRegion,
		ScheduledSlotID: o.ScheduledSlotID,
		ScheduledDate:   o.ScheduledDate,
		ServiceCategory: o.ServiceCategory,
	}
}
