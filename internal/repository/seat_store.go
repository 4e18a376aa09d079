package repository // repository defines data access for seat inventory

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"       // errors for sentinel comparisons
	"strings"      // strings for placeholder assembly
	"time"         // time for change-feed boundaries

	"github.com/venuekit/seat-inventory/internal/model"
)

// SeatStore provides data access to the seats table.  It owns the status
// and version columns and exposes only conditional updates for them: every
// status-affecting write carries its predicate into the UPDATE statement so
// the check and the write are a single atomic database operation.  No
// read-then-write gap exists anywhere in this type.
type SeatStore struct {
	db *sql.DB
}

// NewSeatStore constructs a SeatStore with the given DB handle.
func NewSeatStore(db *sql.DB) *SeatStore {
	return &SeatStore{db: db}
}

// DB exposes the underlying handle so callers can open transactions that
// span this store and the override store.
func (s *SeatStore) DB() *sql.DB { return s.db }

// seatColumns is the canonical column list used by every seat SELECT.
const seatColumns = `layout_id, seat_uid, section_code, row_label, seat_number,
	price_tier_id, price_cents_override, status, version, last_change_at`

func scanSeat(row interface{ Scan(...interface{}) error }) (model.Seat, error) {
	var st model.Seat
	var tierID sql.NullInt64
	var priceOverride sql.NullInt64
	err := row.Scan(
		&st.LayoutID, &st.SeatUID, &st.SectionCode, &st.RowLabel, &st.SeatNumber,
		&tierID, &priceOverride, &st.Status, &st.Version, &st.LastChangeAt,
	)
	if err != nil {
		return model.Seat{}, err
	}
	if tierID.Valid {
		v := tierID.Int64
		st.PriceTierID = &v
	}
	if priceOverride.Valid {
		v := priceOverride.Int64
		st.PriceCentsOverride = &v
	}
	return st, nil
}

// placeholders returns "?, ?, ..." with n entries for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// BulkTransition conditionally moves every listed seat whose current status
// equals from into to, bumping version by 1 and stamping last_change_at.
// The status predicate is evaluated inside the UPDATE itself, so two
// concurrent callers racing on the same seat cannot both succeed.  The
// returned count is the number of seats actually transitioned; a count
// lower than len(seatUIDs) means the remainder was lost to a concurrent
// actor and the caller must reconcile, not retry blindly.
func (s *SeatStore) BulkTransition(ctx context.Context, layoutID int64, seatUIDs []string, from, to model.SeatStatus) (int64, error) {
	if len(seatUIDs) == 0 {
		return 0, nil
	}
	query := `UPDATE seats
	          SET status = ?, version = version + 1, last_change_at = UTC_TIMESTAMP(3)
	          WHERE layout_id = ? AND status = ? AND seat_uid IN (` + placeholders(len(seatUIDs)) + `)`
	args := make([]interface{}, 0, len(seatUIDs)+3)
	args = append(args, string(to), layoutID, string(from))
	for _, uid := range seatUIDs {
		args = append(args, uid)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SeatFieldUpdate lists the optional columns UpdateByVersion may change.
// Nil fields are left untouched.  Status changes made through this path
// still bump version and last_change_at like any other status write.
type SeatFieldUpdate struct {
	SectionCode        *string
	RowLabel           *string
	SeatNumber         *uint32
	PriceTierID        *int64
	PriceCentsOverride *int64
	Status             *model.SeatStatus
}

// UpdateByVersion is the general optimistic-lock primitive: the write
// succeeds and increments version only when the stored version equals
// expectedVersion.  It returns true when exactly one row was updated and
// false when the version predicate did not match (the seat moved under the
// caller, or does not exist).
func (s *SeatStore) UpdateByVersion(ctx context.Context, layoutID int64, seatUID string, expectedVersion int64, upd SeatFieldUpdate) (bool, error) {
	sets := make([]string, 0, 7)
	args := make([]interface{}, 0, 10)
	if upd.SectionCode != nil {
		sets = append(sets, "section_code = ?")
		args = append(args, *upd.SectionCode)
	}
	if upd.RowLabel != nil {
		sets = append(sets, "row_label = ?")
		args = append(args, *upd.RowLabel)
	}
	if upd.SeatNumber != nil {
		sets = append(sets, "seat_number = ?")
		args = append(args, *upd.SeatNumber)
	}
	if upd.PriceTierID != nil {
		sets = append(sets, "price_tier_id = ?")
		args = append(args, *upd.PriceTierID)
	}
	if upd.PriceCentsOverride != nil {
		sets = append(sets, "price_cents_override = ?")
		args = append(args, *upd.PriceCentsOverride)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if len(sets) == 0 {
		return false, errors.New("update by version: no fields to update")
	}
	sets = append(sets, "version = version + 1", "last_change_at = UTC_TIMESTAMP(3)")
	query := `UPDATE seats SET ` + strings.Join(sets, ", ") +
		` WHERE layout_id = ? AND seat_uid = ? AND version = ?`
	args = append(args, layoutID, seatUID, expectedVersion)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InsertBatchTx inserts multiple seat rows in a single statement within the
// provided transaction.  Status and version come from the passed records;
// materialization sets them to available/1.  Passing an empty slice has no
// effect and returns nil.
func (s *SeatStore) InsertBatchTx(ctx context.Context, tx *sql.Tx, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO seats (layout_id, seat_uid, section_code, row_label, seat_number,
	          price_tier_id, price_cents_override, status, version, last_change_at) VALUES `
	args := make([]interface{}, 0, len(seats)*10)
	for i, st := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP(3))"
		var tierID interface{}
		if st.PriceTierID != nil {
			tierID = *st.PriceTierID
		}
		var override interface{}
		if st.PriceCentsOverride != nil {
			override = *st.PriceCentsOverride
		}
		args = append(args, st.LayoutID, st.SeatUID, st.SectionCode, st.RowLabel, st.SeatNumber,
			tierID, override, string(st.Status), st.Version)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// InsertAll inserts every seat row inside a single transaction, issuing one
// bulk INSERT per chunk so statement size stays bounded.  Success or failure
// is reported as one unit: any chunk error rolls back the whole insert.
func (s *SeatStore) InsertAll(ctx context.Context, seats []model.Seat, chunkSize int) error {
	if len(seats) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = len(seats)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for start := 0; start < len(seats); start += chunkSize {
		end := start + chunkSize
		if end > len(seats) {
			end = len(seats)
		}
		if err := s.InsertBatchTx(ctx, tx, seats[start:end]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// CountByLayout returns the total number of seat rows for a layout.
func (s *SeatStore) CountByLayout(ctx context.Context, layoutID int64) (int64, error) {
	const q = `SELECT COUNT(*) FROM seats WHERE layout_id = ?`
	var n int64
	if err := s.db.QueryRowContext(ctx, q, layoutID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// GetByUID retrieves one seat by its layout-scoped identifier.
func (s *SeatStore) GetByUID(ctx context.Context, layoutID int64, seatUID string) (*model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE layout_id = ? AND seat_uid = ?`
	st, err := scanSeat(s.db.QueryRowContext(ctx, q, layoutID, seatUID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return &st, nil
}

// ListByUIDs retrieves the seats matching an explicit id set, ordered by
// section, row and seat number.  Unknown ids are silently absent from the
// result; callers that care compare lengths.
func (s *SeatStore) ListByUIDs(ctx context.Context, layoutID int64, seatUIDs []string) ([]model.Seat, error) {
	if len(seatUIDs) == 0 {
		return []model.Seat{}, nil
	}
	query := `SELECT ` + seatColumns + ` FROM seats
	          WHERE layout_id = ? AND seat_uid IN (` + placeholders(len(seatUIDs)) + `)
	          ORDER BY section_code, row_label, seat_number`
	args := make([]interface{}, 0, len(seatUIDs)+1)
	args = append(args, layoutID)
	for _, uid := range seatUIDs {
		args = append(args, uid)
	}
	return s.querySeats(ctx, query, args...)
}

// ListByStatus retrieves all seats of a layout currently in the given status.
func (s *SeatStore) ListByStatus(ctx context.Context, layoutID int64, status model.SeatStatus) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats
	           WHERE layout_id = ? AND status = ?
	           ORDER BY section_code, row_label, seat_number`
	return s.querySeats(ctx, q, layoutID, string(status))
}

// ListByLayout retrieves every seat of a layout.
func (s *SeatStore) ListByLayout(ctx context.Context, layoutID int64) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats
	           WHERE layout_id = ?
	           ORDER BY section_code, row_label, seat_number`
	return s.querySeats(ctx, q, layoutID)
}

// ListBySection retrieves every seat of one section within a layout.  Bulk
// repricing uses this for section-scoped rules.
func (s *SeatStore) ListBySection(ctx context.Context, layoutID int64, sectionCode string) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats
	           WHERE layout_id = ? AND section_code = ?
	           ORDER BY row_label, seat_number`
	return s.querySeats(ctx, q, layoutID, sectionCode)
}

// ModifiedSince returns the seats whose last_change_at is strictly after the
// given timestamp.  Polling clients call this at a bounded interval to track
// availability without a push channel; the hold sweeper uses the inverse
// (ListStaleHeld) to find abandoned checkouts.
func (s *SeatStore) ModifiedSince(ctx context.Context, layoutID int64, since time.Time) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats
	           WHERE layout_id = ? AND last_change_at > ?
	           ORDER BY last_change_at, seat_uid`
	return s.querySeats(ctx, q, layoutID, since.UTC())
}

// ListStaleHeld returns the seat uids (grouped per layout) of every held
// seat whose last status change is older than the cutoff.  The sweeper
// drives these back to available through BulkTransition, so a seat that was
// sold in the meantime is naturally skipped by the status predicate.
func (s *SeatStore) ListStaleHeld(ctx context.Context, cutoff time.Time) (map[int64][]string, error) {
	const q = `SELECT layout_id, seat_uid FROM seats
	           WHERE status = ? AND last_change_at < ?
	           ORDER BY layout_id, seat_uid`
	rows, err := s.db.QueryContext(ctx, q, string(model.StatusHeld), cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stale := make(map[int64][]string)
	for rows.Next() {
		var layoutID int64
		var uid string
		if err := rows.Scan(&layoutID, &uid); err != nil {
			return nil, err
		}
		stale[layoutID] = append(stale[layoutID], uid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stale, nil
}

// StatusCounts returns the number of seats per status for a layout as a
// single aggregate query.  The result always contains all five statuses,
// defaulting absent ones to zero, so the values sum to the layout's total
// seat count.
func (s *SeatStore) StatusCounts(ctx context.Context, layoutID int64) (map[model.SeatStatus]int64, error) {
	const q = `SELECT status, COUNT(*) FROM seats WHERE layout_id = ? GROUP BY status`
	rows, err := s.db.QueryContext(ctx, q, layoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[model.SeatStatus]int64, len(model.AllStatuses))
	for _, st := range model.AllStatuses {
		counts[st] = 0
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.SeatStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// PricedSeat pairs a seat with the price of its tier, when it has one.
type PricedSeat struct {
	model.Seat
	TierPriceCents *int64 `json:"tier_price_cents,omitempty"`
}

// ListPriced retrieves the seats of a layout with their tier price joined
// in, so pricing can compute base prices without a second round trip.  When
// seatUIDs is non-empty the result is restricted to that set.
func (s *SeatStore) ListPriced(ctx context.Context, layoutID int64, seatUIDs []string) ([]PricedSeat, error) {
	query := `SELECT s.layout_id, s.seat_uid, s.section_code, s.row_label, s.seat_number,
	          s.price_tier_id, s.price_cents_override, s.status, s.version, s.last_change_at,
	          t.price_cents
	          FROM seats s
	          LEFT JOIN price_tiers t ON t.id = s.price_tier_id
	          WHERE s.layout_id = ?`
	args := []interface{}{layoutID}
	if len(seatUIDs) > 0 {
		query += ` AND s.seat_uid IN (` + placeholders(len(seatUIDs)) + `)`
		for _, uid := range seatUIDs {
			args = append(args, uid)
		}
	}
	query += ` ORDER BY s.section_code, s.row_label, s.seat_number`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []PricedSeat
	for rows.Next() {
		var ps PricedSeat
		var tierID, priceOverride, tierPrice sql.NullInt64
		if err := rows.Scan(
			&ps.LayoutID, &ps.SeatUID, &ps.SectionCode, &ps.RowLabel, &ps.SeatNumber,
			&tierID, &priceOverride, &ps.Status, &ps.Version, &ps.LastChangeAt,
			&tierPrice,
		); err != nil {
			return nil, err
		}
		if tierID.Valid {
			v := tierID.Int64
			ps.PriceTierID = &v
		}
		if priceOverride.Valid {
			v := priceOverride.Int64
			ps.PriceCentsOverride = &v
		}
		if tierPrice.Valid {
			v := tierPrice.Int64
			ps.TierPriceCents = &v
		}
		result = append(result, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteByLayout removes every seat of a layout after verifying that none
// of them is held or sold.  The check and the delete run in one transaction
// so a concurrent hold cannot slip between them.  Returns ErrSeatsInUse
// when the precondition fails.
func (s *SeatStore) DeleteByLayout(ctx context.Context, layoutID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const check = `SELECT COUNT(*) FROM seats
	               WHERE layout_id = ? AND status IN (?, ?) FOR UPDATE`
	var inUse int64
	if err := tx.QueryRowContext(ctx, check, layoutID,
		string(model.StatusHeld), string(model.StatusSold)).Scan(&inUse); err != nil {
		return 0, err
	}
	if inUse > 0 {
		return 0, ErrSeatsInUse
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM seats WHERE layout_id = ?`, layoutID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return n, nil
}

func (s *SeatStore) querySeats(ctx context.Context, query string, args ...interface{}) ([]model.Seat, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Seat
	for rows.Next() {
		st, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
