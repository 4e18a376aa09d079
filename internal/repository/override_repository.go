package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/venuekit/seat-inventory/internal/model"
)

// OverrideRepo provides data access to the price_overrides table.  Override
// rows are append-only: a price change is expressed by inserting a new row
// whose window supersedes the previous one, never by mutating an existing
// row.  When windows overlap, the most recently created row wins; every
// query in this repository applies that tie-break so selection stays
// deterministic regardless of what the table contains.
type OverrideRepo struct {
	db *sql.DB
}

// NewOverrideRepo returns a new OverrideRepo bound to the provided database.
func NewOverrideRepo(db *sql.DB) *OverrideRepo { return &OverrideRepo{db: db} }

// Create inserts a single override row and populates its generated ID and
// CreatedAt.  EffectiveTo may be nil for an open-ended window.
func (r *OverrideRepo) Create(ctx context.Context, o *model.DynamicPriceOverride) error {
	const q = `INSERT INTO price_overrides
	           (layout_id, seat_uid, price_cents, source_rule_id, effective_from, effective_to)
	           VALUES (?, ?, ?, ?, ?, ?)`
	var ruleID interface{}
	if o.SourceRuleID != nil {
		ruleID = *o.SourceRuleID
	}
	var to interface{}
	if o.EffectiveTo != nil {
		to = o.EffectiveTo.UTC()
	}
	res, err := r.db.ExecContext(ctx, q,
		o.LayoutID, o.SeatUID, o.PriceCents, ruleID, o.EffectiveFrom.UTC(), to)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = id
	// Query back the row to pick up the DB-assigned creation timestamp.
	const sel = `SELECT created_at FROM price_overrides WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, o.ID).Scan(&o.CreatedAt)
}

// CreateBulk inserts multiple override rows in a single statement.  It is
// used by repricing strategies that touch many seats at once.  The ID and
// CreatedAt fields of the passed records are not populated.
func (r *OverrideRepo) CreateBulk(ctx context.Context, overrides []model.DynamicPriceOverride) error {
	if len(overrides) == 0 {
		return nil
	}
	query := `INSERT INTO price_overrides
	          (layout_id, seat_uid, price_cents, source_rule_id, effective_from, effective_to) VALUES `
	args := make([]interface{}, 0, len(overrides)*6)
	for i, o := range overrides {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		var ruleID interface{}
		if o.SourceRuleID != nil {
			ruleID = *o.SourceRuleID
		}
		var to interface{}
		if o.EffectiveTo != nil {
			to = o.EffectiveTo.UTC()
		}
		args = append(args, o.LayoutID, o.SeatUID, o.PriceCents, ruleID, o.EffectiveFrom.UTC(), to)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

const overrideColumns = `id, layout_id, seat_uid, price_cents, source_rule_id,
	effective_from, effective_to, created_at`

func scanOverride(row interface{ Scan(...interface{}) error }) (model.DynamicPriceOverride, error) {
	var o model.DynamicPriceOverride
	var ruleID sql.NullInt64
	var to sql.NullTime
	err := row.Scan(&o.ID, &o.LayoutID, &o.SeatUID, &o.PriceCents,
		&ruleID, &o.EffectiveFrom, &to, &o.CreatedAt)
	if err != nil {
		return model.DynamicPriceOverride{}, err
	}
	if ruleID.Valid {
		v := ruleID.Int64
		o.SourceRuleID = &v
	}
	if to.Valid {
		v := to.Time
		o.EffectiveTo = &v
	}
	return o, nil
}

// ActiveForSeat returns the single override whose window covers now for the
// given seat, or nil when none is active.  Overlapping windows resolve to
// the most recently created row.
func (r *OverrideRepo) ActiveForSeat(ctx context.Context, layoutID int64, seatUID string, now time.Time) (*model.DynamicPriceOverride, error) {
	const q = `SELECT ` + overrideColumns + ` FROM price_overrides
	           WHERE layout_id = ? AND seat_uid = ?
	             AND effective_from <= ?
	             AND (effective_to IS NULL OR effective_to > ?)
	           ORDER BY created_at DESC, id DESC
	           LIMIT 1`
	ts := now.UTC()
	o, err := scanOverride(r.db.QueryRowContext(ctx, q, layoutID, seatUID, ts, ts))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// ActiveForLayout returns the active override per seat for a whole layout in
// one query.  The rows arrive newest first and the first row per seat wins,
// which implements the same most-recently-created tie-break as
// ActiveForSeat.  Bulk pricing uses this instead of one round trip per seat.
func (r *OverrideRepo) ActiveForLayout(ctx context.Context, layoutID int64, now time.Time) (map[string]model.DynamicPriceOverride, error) {
	const q = `SELECT ` + overrideColumns + ` FROM price_overrides
	           WHERE layout_id = ?
	             AND effective_from <= ?
	             AND (effective_to IS NULL OR effective_to > ?)
	           ORDER BY created_at DESC, id DESC`
	ts := now.UTC()
	rows, err := r.db.QueryContext(ctx, q, layoutID, ts, ts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	active := make(map[string]model.DynamicPriceOverride)
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		if _, seen := active[o.SeatUID]; !seen {
			active[o.SeatUID] = o
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return active, nil
}
