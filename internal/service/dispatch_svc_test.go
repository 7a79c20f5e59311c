package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/events"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/geo"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/presence"
)

func f64(v float64) *float64 { return &v }

func todayOrder(id, region string, lat, lon *float64) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:              id,
		Status:          domain.OrderPending,
		Lat:             lat,
		Lon:             lon,
		PostalRegion:    region,
		ScheduledSlotID: "slot-0900",
		ScheduledDate:   domain.DateOf(now),
		ServiceCategory: "home_collection",
		CreatedAt:       now,
	}
}

func newDispatchFixture(orders *fakeOrders, rejections *fakeRejections) (*DispatchSvc, *presence.Directory, *fakePublisher, *PendingCache) {
	dir := presence.NewDirectory(time.Minute)
	pub := &fakePublisher{}
	cache := NewPendingCache()
	svc := NewDispatchSvc(orders, rejections, dir, pub, cache, 5, []string{"home_collection"}, nil)
	return svc, dir, pub, cache
}

func Test_BroadcastNewOrder_CandidateSelection(t *testing.T) {
	ctx := context.Background()
	o := todayOrder("order-1", "560001", f64(12.9700), f64(77.5900))

	svc, dir, pub, cache := newDispatchFixture(newFakeOrders(o), newFakeRejections())
	dir.Upsert("near", &geo.Point{Lat: 12.9710, Lon: 77.5910}, "560099")   // radius path
	dir.Upsert("far", &geo.Point{Lat: 13.2000, Lon: 77.8000}, "560099")    // outside radius, other region
	dir.Upsert("room-only", nil, "560001")                                 // region room, no coords
	dir.Upsert("both", &geo.Point{Lat: 12.9800, Lon: 77.6000}, "560001")   // radius + room

	require.NoError(t, svc.BroadcastNewOrder(ctx, &o))

	offers := pub.byType(events.TypeJobOffered)
	byKey := map[string]events.JobOffered{}
	for _, e := range offers {
		byKey[e.Key] = e.Data.(events.JobOffered)
	}

	// three targeted offers plus one untargeted copy to the region room
	require.Len(t, byKey, 4)
	assert.NotContains(t, byKey, events.AgentKey("far"))
	require.Contains(t, byKey, events.RegionKey("560001"))
	assert.Nil(t, byKey[events.RegionKey("560001")].DistanceKm)

	// radius-path candidates carry the distance annotation, room-only ones do not
	require.Contains(t, byKey, events.AgentKey("near"))
	require.NotNil(t, byKey[events.AgentKey("near")].DistanceKm)
	assert.Less(t, *byKey[events.AgentKey("near")].DistanceKm, 0.3)

	require.Contains(t, byKey, events.AgentKey("room-only"))
	assert.Nil(t, byKey[events.AgentKey("room-only")].DistanceKm)

	require.Contains(t, byKey, events.AgentKey("both"))
	assert.NotNil(t, byKey[events.AgentKey("both")].DistanceKm)

	assert.True(t, cache.Has("order-1"))
}

func Test_BroadcastNewOrder_ExcludesRejectedAgents(t *testing.T) {
	ctx := context.Background()
	o := todayOrder("order-1", "560001", f64(12.9700), f64(77.5900))

	rejections := newFakeRejections()
	require.NoError(t, rejections.Record(ctx, "order-1", "declined", "busy"))

	svc, dir, pub, _ := newDispatchFixture(newFakeOrders(o), rejections)
	dir.Upsert("declined", &geo.Point{Lat: 12.9710, Lon: 77.5910}, "560001")
	dir.Upsert("fresh", &geo.Point{Lat: 12.9720, Lon: 77.5920}, "560001")

	require.NoError(t, svc.BroadcastNewOrder(ctx, &o))

	keys := map[string]bool{}
	for _, e := range pub.byType(events.TypeJobOffered) {
		keys[e.Key] = true
	}
	assert.True(t, keys[events.AgentKey("fresh")])
	assert.False(t, keys[events.AgentKey("declined")])
}

func Test_BroadcastNewOrder_EligibilityPredicate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		order func() domain.Order
	}{
		{
			name: "non_broadcast_category_left_for_manual_assignment",
			order: func() domain.Order {
				o := todayOrder("order-x", "560001", f64(12.97), f64(77.59))
				o.ServiceCategory = "radiology"
				return o
			},
		},
		{
			name: "not_scheduled_today",
			order: func() domain.Order {
				o := todayOrder("order-x", "560001", f64(12.97), f64(77.59))
				o.ScheduledDate = domain.DateOf(time.Now().AddDate(0, 0, 1))
				return o
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := tc.order()
			svc, dir, pub, cache := newDispatchFixture(newFakeOrders(o), newFakeRejections())
			dir.Upsert("near", &geo.Point{Lat: 12.9710, Lon: 77.5910}, "560001")

			require.NoError(t, svc.BroadcastNewOrder(ctx, &o))
			assert.Empty(t, pub.byType(events.TypeJobOffered))
			assert.False(t, cache.Has("order-x"))
		})
	}
}

// A lapsed decline stops excluding the agent: the next broadcast and the
// next replay both offer the order again.
func Test_RejectionExpiry_ReoffersOnBothPaths(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	now := base
	clock := func() time.Time { return now }

	o := domain.Order{
		ID:              "order-1",
		Status:          domain.OrderPending,
		PostalRegion:    "560001",
		ScheduledSlotID: "slot-0900",
		ScheduledDate:   domain.DateOf(base),
		ServiceCategory: "home_collection",
		CreatedAt:       base,
	}

	rejections := newFakeRejections()
	rejections.ttl = time.Hour
	rejections.now = clock

	svc, dir, pub, _ := newDispatchFixture(newFakeOrders(o), rejections)
	svc.now = clock

	require.NoError(t, rejections.Record(ctx, "order-1", "agent-a", "busy"))
	dir.Upsert("agent-a", nil, "560001")

	// while the record is live the agent is skipped on both paths
	require.NoError(t, svc.BroadcastNewOrder(ctx, &o))
	for _, e := range pub.byType(events.TypeJobOffered) {
		assert.NotEqual(t, events.AgentKey("agent-a"), e.Key)
	}
	offers, err := svc.ReplayForAgent(ctx, "agent-a", "560001", nil)
	require.NoError(t, err)
	assert.Empty(t, offers)

	// past the TTL the decline lapses and the order comes back
	now = base.Add(90 * time.Minute)
	dir.Upsert("agent-a", nil, "560001")

	require.NoError(t, svc.BroadcastNewOrder(ctx, &o))
	var reoffered bool
	for _, e := range pub.byType(events.TypeJobOffered) {
		if e.Key == events.AgentKey("agent-a") {
			reoffered = true
		}
	}
	assert.True(t, reoffered)

	offers, err = svc.ReplayForAgent(ctx, "agent-a", "560001", nil)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "order-1", offers[0].OrderID)
}

func Test_ReplayForAgent_MirrorsBroadcastEligibility(t *testing.T) {
	ctx := context.Background()

	withCoords := todayOrder("order-geo", "560099", f64(12.9700), f64(77.5900))
	regionOnly := todayOrder("order-region", "560001", nil, nil)
	farAway := todayOrder("order-far", "560099", f64(13.2000), f64(77.8000))

	svc, _, pub, _ := newDispatchFixture(newFakeOrders(withCoords, regionOnly, farAway), newFakeRejections())

	// agent in region 560001 standing near order-geo's location
	offers, err := svc.ReplayForAgent(ctx, "agent-a", "560001", &geo.Point{Lat: 12.9710, Lon: 77.5910})
	require.NoError(t, err)

	got := map[string]events.JobOffered{}
	for _, o := range offers {
		got[o.OrderID] = o
	}
	require.Len(t, got, 2)

	// within radius: distance annotated
	require.Contains(t, got, "order-geo")
	require.NotNil(t, got["order-geo"].DistanceKm)
	// region match without coordinates: no distance
	require.Contains(t, got, "order-region")
	assert.Nil(t, got["order-region"].DistanceKm)
	// neither region nor radius
	assert.NotContains(t, got, "order-far")

	// each offer was also pushed to the agent's private channel
	pushed := pub.byType(events.TypeJobOffered)
	assert.Len(t, pushed, 2)
	for _, e := range pushed {
		assert.Equal(t, events.AgentKey("agent-a"), e.Key)
	}
}

func Test_ReplayForAgent_ExcludesRejectedOrder(t *testing.T) {
	ctx := context.Background()

	o1 := todayOrder("order-1", "560001", nil, nil)
	o2 := todayOrder("order-2", "560001", nil, nil)

	rejections := newFakeRejections()
	svc, _, _, _ := newDispatchFixture(newFakeOrders(o1, o2), rejections)

	require.NoError(t, rejections.Record(ctx, "order-1", "agent-a", "too far"))

	offers, err := svc.ReplayForAgent(ctx, "agent-a", "560001", nil)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "order-2", offers[0].OrderID)

	// another agent still sees both
	offers, err = svc.ReplayForAgent(ctx, "agent-b", "560001", nil)
	require.NoError(t, err)
	assert.Len(t, offers, 2)
}

func Test_ReplayForAgent_SkipsAcceptedAndStaleOrders(t *testing.T) {
	ctx := context.Background()

	accepted := todayOrder("order-done", "560001", nil, nil)
	agent := "someone"
	accepted.Status = domain.OrderAccepted
	accepted.AssignedAgentID = &agent

	stale := todayOrder("order-old", "560001", nil, nil)
	stale.CreatedAt = time.Now().UTC().AddDate(0, 0, -1)

	open := todayOrder("order-open", "560001", nil, nil)

	svc, _, _, _ := newDispatchFixture(newFakeOrders(accepted, stale, open), newFakeRejections())

	offers, err := svc.ReplayForAgent(ctx, "agent-a", "560001", nil)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "order-open", offers[0].OrderID)
}
