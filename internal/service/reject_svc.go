package service

import (
	"context"
	"log"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/events"
)

type OrderGetter interface {
	ByID(ctx context.Context, id string) (*domain.Order, error)
}

type RejectionRecorder interface {
	Record(ctx context.Context, orderID, agentID, reason string) error
}

// RejectSvc records a decline so the order is never re-offered to this agent
// while the record lives. Rejection is per-agent bookkeeping: the order stays
// globally pending regardless of how many agents have declined it.
type RejectSvc struct {
	orders     OrderGetter
	rejections RejectionRecorder
	pub        Publisher
}

func NewRejectSvc(orders OrderGetter, rejections RejectionRecorder, pub Publisher) *RejectSvc {
	return &RejectSvc{orders: orders, rejections: rejections, pub: pub}
}

func (s *RejectSvc) Reject(ctx context.Context, orderID, agentID, reason string) error {
	if orderID == "" || agentID == "" {
		return domain.ErrValidation
	}
	if _, err := s.orders.ByID(ctx, orderID); err != nil {
		return err
	}
	if err := s.rejections.Record(ctx, orderID, agentID, reason); err != nil {
		return err
	}

	// only the rejecting agent's own list drops the job
	retract := events.JobRetracted{OrderID: orderID}
	if err := s.pub.PublishEvent(ctx, events.AgentKey(agentID), events.TypeJobRetracted, retract); err != nil {
		log.Printf("[reject] retract publish to %s failed: %v", agentID, err)
	}
	return nil
}
