package events

import (
	"encoding/json"
	"fmt"
)

// Event types carried on the dispatch exchange. The set is closed: payloads
// are validated against these structs at the boundary, never ad hoc maps.
const (
	TypeJobOffered      = "job.offered"
	TypeJobRetracted    = "job.retracted"
	TypeTrackingStarted = "tracking.started"
	TypeOrderAssigned   = "order.assigned"
	TypePresenceUpdated = "presence.updated"
)

// Routing-key layout. Agents consume their private channel plus the room of
// the postal region they joined; clients of an offered order join its order
// room to hear retractions.
const KeyOrderAssigned = "dispatch.assigned"

// KeyPresenceAll is the binding pattern each node uses to mirror every other
// node's presence upserts into its local directory.
const KeyPresenceAll = "presence.*"

func AgentKey(agentID string) string { return "agent." + agentID }

func RegionKey(postalRegion string) string { return "region." + postalRegion }

func OrderKey(orderID string) string { return "order." + orderID }

func PresenceKey(agentID string) string { return "presence." + agentID }

// Envelope wraps every published payload with its type tag.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// JobOffered tells one agent a job is available. DistanceKm is set only when
// the candidate came from the radius path. Receivers must de-duplicate by
// OrderID: redelivery is expected.
type JobOffered struct {
	OrderID         string   `json:"order_id"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
	PostalRegion    string   `json:"postal_region"`
	ScheduledSlotID string   `json:"scheduled_slot_id"`
	ScheduledDate   string   `json:"scheduled_date"`
	ServiceCategory string   `json:"service_category"`
}

// JobRetracted tells listeners to drop the listing for OrderID.
type JobRetracted struct {
	OrderID string `json:"order_id"`
}

// TrackingStarted goes to the winning agent with the full order details.
type TrackingStarted struct {
	OrderID string       `json:"order_id"`
	AgentID string       `json:"agent_id"`
	Order   OrderDetails `json:"order"`
}

// OrderAssigned fans in to every node so local pending caches drop the order.
type OrderAssigned struct {
	OrderID string `json:"order_id"`
	AgentID string `json:"agent_id"`
}

// PresenceUpdated mirrors one agent's presence upsert to every node, so the
// last-writer-wins directories converge no matter which node owns the
// agent's connection.
type PresenceUpdated struct {
	AgentID      string   `json:"agent_id"`
	PostalRegion string   `json:"postal_region"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
}

type OrderDetails struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	Lat             *float64 `json:"lat,omitempty"`
	Lon             *float64 `json:"lon,omitempty"`
	PostalRegion    string   `json:"postal_region"`
	ScheduledSlotID string   `json:"scheduled_slot_id"`
	ScheduledDate   string   `json:"scheduled_date"`
	ServiceCategory string   `json:"service_category"`
}

func Marshal(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return json.Marshal(Envelope{Type: typ, Data: raw})
}

func MustUnmarshal[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload failed: %w", err)
	}
	return t, nil
}
