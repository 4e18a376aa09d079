package model

import "time"

// SeatStatus enumerates the availability states of a seat.  The values are
// stored verbatim in the seats.status column, so they must stay in sync with
// the ENUM definition in the schema.
type SeatStatus string

const (
	StatusAvailable SeatStatus = "available" // on sale, free to hold
	StatusHeld      SeatStatus = "held"      // temporarily reserved during checkout
	StatusSold      SeatStatus = "sold"      // payment confirmed
	StatusBlocked   SeatStatus = "blocked"   // administrative hold-back
	StatusDisabled  SeatStatus = "disabled"  // removed from sale, terminal
)

// AllStatuses lists every seat status in a stable order.  Query results
// normalized against this slice always cover the full enumeration.
var AllStatuses = []SeatStatus{
	StatusAvailable, StatusHeld, StatusSold, StatusBlocked, StatusDisabled,
}

// allowedTransitions is the seat state machine.  A (from, to) pair absent
// from this map must never reach the store.
var allowedTransitions = map[SeatStatus]map[SeatStatus]bool{
	StatusAvailable: {StatusHeld: true, StatusBlocked: true, StatusDisabled: true},
	StatusHeld:      {StatusSold: true, StatusAvailable: true, StatusDisabled: true},
	StatusSold:      {StatusDisabled: true},
	StatusBlocked:   {StatusAvailable: true, StatusDisabled: true},
	StatusDisabled:  {},
}

// ValidStatus reports whether s is a member of the seat status enumeration.
func ValidStatus(s SeatStatus) bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanTransition reports whether the state machine permits moving a seat
// from one status to another.  Identity transitions are not permitted.
func CanTransition(from, to SeatStatus) bool {
	return allowedTransitions[from][to]
}

// Seat is one uniquely addressable unit of inventory within an event's
// seating layout.  Seats are identified by (LayoutID, SeatUID); there is
// exactly one row per pair.  Version increases by exactly 1 on every
// successful status-affecting update and is the basis of the optimistic
// concurrency protocol.
//
// Fields:
//  LayoutID           – seating layout (one per event instance).
//  SeatUID            – stable identifier from the venue geometry.
//  SectionCode        – section the seat belongs to.
//  RowLabel           – letter or string designating the row.
//  SeatNumber         – position within the row (1-based).
//  PriceTierID        – optional reference to a price tier.
//  PriceCentsOverride – optional explicit seat price overriding the tier.
//  Status             – current availability status.
//  Version            – optimistic lock counter, starts at 1.
//  LastChangeAt       – timestamp of the last status-affecting update.
type Seat struct {
	LayoutID           int64      `json:"layout_id"`
	SeatUID            string     `json:"seat_uid"`
	SectionCode        string     `json:"section_code"`
	RowLabel           string     `json:"row_label"`
	SeatNumber         uint32     `json:"seat_number"`
	PriceTierID        *int64     `json:"price_tier_id,omitempty"`
	PriceCentsOverride *int64     `json:"price_cents_override,omitempty"`
	Status             SeatStatus `json:"status"`
	Version            int64      `json:"version"`
	LastChangeAt       time.Time  `json:"last_change_at"`
}
