package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/events"
)

func Test_Accept_SingleWinnerUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	o := todayOrder("order-1", "560001", nil, nil)

	assigner := newFakeAssigner(o)
	pub := &fakePublisher{}
	cache := NewPendingCache()
	cache.Put(o)
	svc := NewAcceptSvc(assigner, pub, cache, nil)

	const agents = 8
	results := make([]error, agents)
	var wg sync.WaitGroup
	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = svc.Accept(ctx, "order-1", fmt.Sprintf("agent-%d", i))
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrAlreadyAccepted):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, agents-1, lost)

	// exactly one ledger entry and one tracking event for the order
	assert.Len(t, assigner.entriesFor("order-1"), 1)
	assert.Len(t, pub.byType(events.TypeTrackingStarted), 1)

	// retraction went to the order room so losing agents drop the listing,
	// and to the region room that got the broadcast copy
	retracts := pub.byType(events.TypeJobRetracted)
	require.Len(t, retracts, 2)
	retractKeys := map[string]bool{}
	for _, e := range retracts {
		retractKeys[e.Key] = true
	}
	assert.True(t, retractKeys[events.OrderKey("order-1")])
	assert.True(t, retractKeys[events.RegionKey("560001")])

	// assignment fan-in for other nodes' caches; this node dropped it already
	assert.Len(t, pub.byType(events.TypeOrderAssigned), 1)
	assert.False(t, cache.Has("order-1"))
}

func Test_Accept_OwnCalendarConflict(t *testing.T) {
	ctx := context.Background()
	first := todayOrder("order-1", "560001", nil, nil)
	second := todayOrder("order-2", "560001", nil, nil) // same slot, same date

	assigner := newFakeAssigner(first, second)
	svc := NewAcceptSvc(assigner, &fakePublisher{}, NewPendingCache(), nil)

	_, _, err := svc.Accept(ctx, "order-1", "agent-a")
	require.NoError(t, err)

	_, _, err = svc.Accept(ctx, "order-2", "agent-a")
	assert.ErrorIs(t, err, domain.ErrSlotConflict)

	// a different agent can still take the second order
	_, _, err = svc.Accept(ctx, "order-2", "agent-b")
	assert.NoError(t, err)
}

func Test_Accept_WinnerGetsTrackingWithOrderDetails(t *testing.T) {
	ctx := context.Background()
	o := todayOrder("order-1", "560001", f64(12.97), f64(77.59))

	assigner := newFakeAssigner(o)
	pub := &fakePublisher{}
	svc := NewAcceptSvc(assigner, pub, NewPendingCache(), nil)

	won, entry, err := svc.Accept(ctx, "order-1", "agent-a")
	require.NoError(t, err)
	require.NotNil(t, won.AssignedAgentID)
	assert.Equal(t, "agent-a", *won.AssignedAgentID)
	assert.Equal(t, domain.OrderAccepted, won.Status)
	assert.Equal(t, entry.BalanceAfter, entry.Amount)

	tracking := pub.byType(events.TypeTrackingStarted)
	require.Len(t, tracking, 1)
	assert.Equal(t, events.AgentKey("agent-a"), tracking[0].Key)
	data := tracking[0].Data.(events.TrackingStarted)
	assert.Equal(t, "order-1", data.OrderID)
	assert.Equal(t, "560001", data.Order.PostalRegion)
}

func Test_Accept_BusFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	o := todayOrder("order-1", "560001", nil, nil)

	assigner := newFakeAssigner(o)
	svc := NewAcceptSvc(assigner, &fakePublisher{failAll: true}, NewPendingCache(), nil)

	won, entry, err := svc.Accept(ctx, "order-1", "agent-a")
	require.NoError(t, err)
	assert.NotNil(t, won)
	assert.NotNil(t, entry)

	// the transaction is authoritative: the assignment stands
	_, _, err = svc.Accept(ctx, "order-1", "agent-b")
	assert.ErrorIs(t, err, domain.ErrAlreadyAccepted)
}

func Test_Accept_Validation(t *testing.T) {
	svc := NewAcceptSvc(newFakeAssigner(), &fakePublisher{}, NewPendingCache(), nil)

	_, _, err := svc.Accept(context.Background(), "", "agent-a")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = svc.Accept(context.Background(), "order-1", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = svc.Accept(context.Background(), "order-missing", "agent-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
