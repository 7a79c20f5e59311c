package service

import (
	"context"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/events"
)

type DeliverySource interface {
	Deliveries(ctx context.Context) (<-chan amqp.Delivery, error)
}

// AssignedConsumer drops assigned orders from this node's pending cache when
// the winning accept happened on another node.
type AssignedConsumer struct {
	cons  DeliverySource
	cache *PendingCache
}

func NewAssignedConsumer(cons DeliverySource, cache *PendingCache) *AssignedConsumer {
	return &AssignedConsumer{cons: cons, cache: cache}
}

func (c *AssignedConsumer) Run(ctx context.Context) error {
	msgs, err := c.cons.Deliveries(ctx)
	if err != nil {
		return err
	}
	go func() {
		for d := range msgs {
			env, err := events.MustUnmarshal[events.Envelope](d.Body)
			if err != nil {
				log.Printf("[assigned-consumer] decode error: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			if env.Type != events.TypeOrderAssigned {
				_ = d.Ack(false)
				continue
			}
			evt, err := events.MustUnmarshal[events.OrderAssigned](env.Data)
			if err != nil || evt.OrderID == "" {
				log.Printf("[assigned-consumer] invalid payload: %v", err)
				_ = d.Ack(false)
				continue
			}
			c.cache.Drop(evt.OrderID)
			_ = d.Ack(false)
		}
	}()
	return nil
}
