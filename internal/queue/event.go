// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names used by the publisher and the audit consumer.
const (
	SeatStatusChangedQueue = "seat.status.changed"
	LayoutRepricedQueue    = "pricing.repriced"
)

// SeatStatusChangedEvent is published after a successful conditional bulk
// transition.  It carries enough information for downstream consumers to
// log, refresh seat maps, or trigger analytics without querying the primary
// database.  SeatUIDs lists the requested set; Count is how many actually
// transitioned, which can be smaller under contention.
type SeatStatusChangedEvent struct {
	EventID    string   `json:"event_id"`
	LayoutID   int64    `json:"layout_id"`
	SeatUIDs   []string `json:"seat_uids"`
	FromStatus string   `json:"from_status"`
	ToStatus   string   `json:"to_status"`
	Count      int64    `json:"count"`
	Actor      string   `json:"actor"`
	ChangedAt  string   `json:"changed_at"`
}

// LayoutRepricedEvent is published after bulk repricing writes new price
// overrides for a layout.  Consumers holding cached prices should treat it
// as an invalidation signal.
type LayoutRepricedEvent struct {
	EventID      string  `json:"event_id"`
	LayoutID     int64   `json:"layout_id"`
	Scope        string  `json:"scope"`
	ScopeRef     *string `json:"scope_ref,omitempty"`
	RulesApplied int     `json:"rules_applied"`
	SeatsChanged int64   `json:"seats_changed"`
	RepricedAt   string  `json:"repriced_at"`
}
