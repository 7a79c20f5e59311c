package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/lease"
	"github.com/NakshatraNamahaCreations/novus-dispatch/pkg/metrics"
)

type SlotCounter interface {
	ReserveUnit(ctx context.Context, slotID, calendarDate string, capacity int) error
	Counter(ctx context.Context, slotID, calendarDate string) (*domain.SlotBookingCounter, error)
}

// SlotSvc is the slot capacity guard. The lease keeps a thundering herd off
// the counter row; the counter's own transaction is what actually enforces
// the cap, so a lease lost mid-operation cannot cause overbooking.
type SlotSvc struct {
	lease     lease.Lease
	slots     SlotCounter
	leaseTTL  time.Duration
	leaseWait time.Duration
	capacity  int
	m         *metrics.Dispatch
}

func NewSlotSvc(l lease.Lease, slots SlotCounter, leaseTTL, leaseWait time.Duration, capacity int, m *metrics.Dispatch) *SlotSvc {
	return &SlotSvc{lease: l, slots: slots, leaseTTL: leaseTTL, leaseWait: leaseWait, capacity: capacity, m: m}
}

// Reserve books one unit of (slotID, calendarDate). Returns domain.ErrBusy
// when the lease wait budget runs out (retryable) and domain.ErrSlotFull when
// the capacity is reached (final).
func (s *SlotSvc) Reserve(ctx context.Context, slotID, calendarDate string) error {
	if slotID == "" {
		return domain.ErrValidation
	}
	if _, err := time.Parse("2006-01-02", calendarDate); err != nil {
		return domain.ErrValidation
	}

	key := "slot:" + slotID + ":" + calendarDate
	token, err := lease.AcquireWithRetry(ctx, s.lease, key, s.leaseTTL, s.leaseWait)
	if err != nil {
		if errors.Is(err, domain.ErrBusy) && s.m != nil {
			count(s.m.SlotReservations, "busy")
		}
		return err
	}
	defer func() {
		if err := s.lease.Release(ctx, key, token); err != nil {
			log.Printf("[slot] lease release failed for %s: %v", key, err)
		}
	}()

	err = s.slots.ReserveUnit(ctx, slotID, calendarDate, s.capacity)
	if s.m != nil {
		switch {
		case err == nil:
			count(s.m.SlotReservations, "ok")
		case errors.Is(err, domain.ErrSlotFull):
			count(s.m.SlotReservations, "full")
		}
	}
	return err
}

// Availability reports booked units against capacity for one (slot, date).
// A slot nobody booked yet has no counter row and reports zero used against
// the configured default capacity.
func (s *SlotSvc) Availability(ctx context.Context, slotID, calendarDate string) (used, capacity int, err error) {
	if slotID == "" {
		return 0, 0, domain.ErrValidation
	}
	if _, err := time.Parse("2006-01-02", calendarDate); err != nil {
		return 0, 0, domain.ErrValidation
	}

	c, err := s.slots.Counter(ctx, slotID, calendarDate)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, s.capacity, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return c.Count, c.Capacity, nil
}
