package service

import (
	"context"
	"log"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/events"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/geo"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/presence"
)

// PresenceSync applies an agent's presence upsert to the local directory and
// mirrors it on the bus so every other node's directory converges. The local
// write always lands; the mirror is best effort.
type PresenceSync struct {
	dir *presence.Directory
	pub Publisher
}

func NewPresenceSync(dir *presence.Directory, pub Publisher) *PresenceSync {
	return &PresenceSync{dir: dir, pub: pub}
}

func (s *PresenceSync) Upsert(ctx context.Context, agentID string, pt *geo.Point, postalRegion string) {
	s.dir.Upsert(agentID, pt, postalRegion)

	// mirror the merged record, not the raw input, so a bare location
	// update still carries the region the agent joined on this node
	evt := events.PresenceUpdated{AgentID: agentID, PostalRegion: postalRegion}
	if rec, live := s.dir.Lookup(agentID); live {
		evt.PostalRegion = rec.PostalRegion
		if rec.Point != nil {
			evt.Lat, evt.Lon = &rec.Point.Lat, &rec.Point.Lon
		}
	}
	if err := s.pub.PublishEvent(ctx, events.PresenceKey(agentID), events.TypePresenceUpdated, evt); err != nil {
		log.Printf("[presence] mirror publish for %s failed: %v", agentID, err)
	}
}

// PresenceConsumer folds other nodes' presence mirrors into the local
// directory, so broadcast candidate discovery sees agents regardless of
// which node owns their connection. A node also hears its own mirrors;
// re-applying them is a harmless refresh.
type PresenceConsumer struct {
	cons DeliverySource
	dir  *presence.Directory
}

func NewPresenceConsumer(cons DeliverySource, dir *presence.Directory) *PresenceConsumer {
	return &PresenceConsumer{cons: cons, dir: dir}
}

func (c *PresenceConsumer) Run(ctx context.Context) error {
	msgs, err := c.cons.Deliveries(ctx)
	if err != nil {
		return err
	}
	go func() {
		for d := range msgs {
			env, err := events.MustUnmarshal[events.Envelope](d.Body)
			if err != nil {
				log.Printf("[presence-consumer] decode error: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			if env.Type != events.TypePresenceUpdated {
				_ = d.Ack(false)
				continue
			}
			evt, err := events.MustUnmarshal[events.PresenceUpdated](env.Data)
			if err != nil || evt.AgentID == "" {
				log.Printf("[presence-consumer] invalid payload: %v", err)
				_ = d.Ack(false)
				continue
			}
			var pt *geo.Point
			if evt.Lat != nil && evt.Lon != nil {
				pt = &geo.Point{Lat: *evt.Lat, Lon: *evt.Lon}
			}
			c.dir.Upsert(evt.AgentID, pt, evt.PostalRegion)
			_ = d.Ack(false)
		}
	}()
	return nil
}
