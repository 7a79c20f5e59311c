package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Publisher is the slice of the bus the services need. Offer and retract
// delivery is advisory: publish failures never fail the operation that
// triggered them.
type Publisher interface {
	PublishEvent(ctx context.Context, key, typ string, data any) error
}

func count(vec *prometheus.CounterVec, label string) {
	if vec != nil {
		vec.WithLabelValues(label).Inc()
	}
}
