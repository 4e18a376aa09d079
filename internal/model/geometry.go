package model

// GeometrySnapshot is the frozen section/row/seat structure for one layout,
// produced by venue design tooling.  It is consumed exactly once, by bulk
// seat materialization, and is never written from this service.
type GeometrySnapshot struct {
	LayoutID int64             `json:"layout_id"`
	Sections []GeometrySection `json:"sections"`
}

// GeometrySection groups the rows of one venue section.
type GeometrySection struct {
	Code string        `json:"code"`
	Name string        `json:"name,omitempty"`
	Rows []GeometryRow `json:"rows"`
}

// GeometryRow groups the seats of one row within a section.
type GeometryRow struct {
	Label string         `json:"label"`
	Seats []GeometrySeat `json:"seats"`
}

// GeometrySeat carries the per-seat attributes the snapshot assigns.  The
// SeatUID must be unique within the layout; tier and price override are
// optional and may both be absent.
type GeometrySeat struct {
	SeatUID            string `json:"seat_uid"`
	SeatNumber         uint32 `json:"seat_number"`
	PriceTierID        *int64 `json:"price_tier_id,omitempty"`
	PriceCentsOverride *int64 `json:"price_cents_override,omitempty"`
}

// SeatCount returns the total number of seats across all sections and rows.
func (g *GeometrySnapshot) SeatCount() int {
	n := 0
	for _, sec := range g.Sections {
		for _, row := range sec.Rows {
			n += len(row.Seats)
		}
	}
	return n
}
