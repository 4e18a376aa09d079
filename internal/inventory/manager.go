// Package inventory implements the seat transition protocol: conditional
// bulk status transitions, the single-seat compare-and-swap primitive, and
// one-time materialization of seats from a venue geometry snapshot.  All
// availability correctness is enforced by the store's atomic conditional
// updates; this package never holds application-level locks.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/venuekit/seat-inventory/internal/model"
	"github.com/venuekit/seat-inventory/internal/repository"
)

// ErrInvalidTransition is returned when a requested (from, to) pair is not
// permitted by the seat state machine.  The request is rejected before any
// write is attempted, so no seat is affected.
var ErrInvalidTransition = errors.New("invalid seat status transition")

// ErrEmptyGeometry is returned when a geometry snapshot carries no sections
// or no seats.  Materialization aborts without touching the store.
var ErrEmptyGeometry = errors.New("geometry snapshot has no seat data")

// insertChunkSize bounds the number of rows per INSERT during
// materialization so a large layout does not produce one oversized
// statement.
const insertChunkSize = 500

// Store is the persistence contract the manager operates against.  It is
// implemented by repository.SeatStore; tests substitute an in-memory fake.
type Store interface {
	BulkTransition(ctx context.Context, layoutID int64, seatUIDs []string, from, to model.SeatStatus) (int64, error)
	UpdateByVersion(ctx context.Context, layoutID int64, seatUID string, expectedVersion int64, upd repository.SeatFieldUpdate) (bool, error)
	InsertAll(ctx context.Context, seats []model.Seat, chunkSize int) error
	CountByLayout(ctx context.Context, layoutID int64) (int64, error)
	GetByUID(ctx context.Context, layoutID int64, seatUID string) (*model.Seat, error)
	ListByUIDs(ctx context.Context, layoutID int64, seatUIDs []string) ([]model.Seat, error)
	ListByStatus(ctx context.Context, layoutID int64, status model.SeatStatus) ([]model.Seat, error)
	ListByLayout(ctx context.Context, layoutID int64) ([]model.Seat, error)
	StatusCounts(ctx context.Context, layoutID int64) (map[model.SeatStatus]int64, error)
	ModifiedSince(ctx context.Context, layoutID int64, since time.Time) ([]model.Seat, error)
	DeleteByLayout(ctx context.Context, layoutID int64) (int64, error)
}

// Manager exposes the seat inventory operations.  It is safe for use from
// concurrent requests; every mutation delegates to a single conditional
// statement in the store.
type Manager struct {
	store Store
}

// NewManager constructs a Manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// TransitionResult reports the outcome of a conditional bulk transition.
// Transitioned below Requested means the difference was lost to a
// concurrent actor; the caller must not assume those seats reached the
// target status and should reconcile via CurrentStatuses.
type TransitionResult struct {
	Requested    int   `json:"requested"`
	Transitioned int64 `json:"transitioned"`
}

// Lost reports how many of the requested seats were not transitioned.
func (r TransitionResult) Lost() int64 { return int64(r.Requested) - r.Transitioned }

// Transition conditionally moves the listed seats from one status to
// another.  The pair must be permitted by the state machine; otherwise
// ErrInvalidTransition is returned and nothing is written.  Per-seat
// atomicity only: a ten-seat request may legitimately transition seven.
func (m *Manager) Transition(ctx context.Context, layoutID int64, seatUIDs []string, from, to model.SeatStatus) (TransitionResult, error) {
	res := TransitionResult{Requested: len(dedupe(seatUIDs))}
	if !model.ValidStatus(from) || !model.ValidStatus(to) {
		return res, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if !model.CanTransition(from, to) {
		return res, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if res.Requested == 0 {
		return res, nil
	}
	n, err := m.store.BulkTransition(ctx, layoutID, dedupe(seatUIDs), from, to)
	if err != nil {
		return res, err
	}
	res.Transitioned = n
	return res, nil
}

// Hold moves available seats into held as a buyer begins checkout.
func (m *Manager) Hold(ctx context.Context, layoutID int64, seatUIDs []string) (TransitionResult, error) {
	return m.Transition(ctx, layoutID, seatUIDs, model.StatusAvailable, model.StatusHeld)
}

// Release moves held seats back to available (hold released or expired).
func (m *Manager) Release(ctx context.Context, layoutID int64, seatUIDs []string) (TransitionResult, error) {
	return m.Transition(ctx, layoutID, seatUIDs, model.StatusHeld, model.StatusAvailable)
}

// Sell moves held seats into sold once payment is confirmed.
func (m *Manager) Sell(ctx context.Context, layoutID int64, seatUIDs []string) (TransitionResult, error) {
	return m.Transition(ctx, layoutID, seatUIDs, model.StatusHeld, model.StatusSold)
}

// Block administratively holds back available seats.
func (m *Manager) Block(ctx context.Context, layoutID int64, seatUIDs []string) (TransitionResult, error) {
	return m.Transition(ctx, layoutID, seatUIDs, model.StatusAvailable, model.StatusBlocked)
}

// Unblock returns blocked seats to sale.
func (m *Manager) Unblock(ctx context.Context, layoutID int64, seatUIDs []string) (TransitionResult, error) {
	return m.Transition(ctx, layoutID, seatUIDs, model.StatusBlocked, model.StatusAvailable)
}

// Disable removes seats from sale regardless of their current status.  The
// state machine admits disabled from every state, so this issues one
// conditional transition per source status; each remains individually
// atomic and already-disabled seats are untouched.
func (m *Manager) Disable(ctx context.Context, layoutID int64, seatUIDs []string) (TransitionResult, error) {
	unique := dedupe(seatUIDs)
	res := TransitionResult{Requested: len(unique)}
	if len(unique) == 0 {
		return res, nil
	}
	for _, from := range model.AllStatuses {
		if !model.CanTransition(from, model.StatusDisabled) {
			continue
		}
		n, err := m.store.BulkTransition(ctx, layoutID, unique, from, model.StatusDisabled)
		if err != nil {
			return res, err
		}
		res.Transitioned += n
	}
	return res, nil
}

// UpdateSeat is the single-seat compare-and-swap by version: the update is
// applied only when the stored version equals expectedVersion.  A status
// change requested through this path is still validated against the state
// machine, using the seat's current status as the source.
func (m *Manager) UpdateSeat(ctx context.Context, layoutID int64, seatUID string, expectedVersion int64, upd repository.SeatFieldUpdate) (bool, error) {
	if upd.Status != nil {
		current, err := m.store.GetByUID(ctx, layoutID, seatUID)
		if err != nil {
			return false, err
		}
		if !model.CanTransition(current.Status, *upd.Status) {
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, *upd.Status)
		}
	}
	return m.store.UpdateByVersion(ctx, layoutID, seatUID, expectedVersion, upd)
}

// InitializeFromGeometry materializes the seats of a layout from its frozen
// geometry snapshot, exactly once.  Every seat starts available at version
// 1.  It fails fast when the snapshot carries no seats or when the layout
// already has seat rows; the caller must delete the existing seats first
// via ResetLayout.  Insertion happens in chunks inside one transaction, so
// the operation succeeds or fails as a unit.
func (m *Manager) InitializeFromGeometry(ctx context.Context, snapshot *model.GeometrySnapshot) (int64, error) {
	if snapshot == nil || len(snapshot.Sections) == 0 || snapshot.SeatCount() == 0 {
		return 0, ErrEmptyGeometry
	}
	existing, err := m.store.CountByLayout(ctx, snapshot.LayoutID)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, fmt.Errorf("%w: layout %d has %d seats", repository.ErrAlreadyInitialized, snapshot.LayoutID, existing)
	}
	seats := make([]model.Seat, 0, snapshot.SeatCount())
	seen := make(map[string]struct{}, snapshot.SeatCount())
	for _, sec := range snapshot.Sections {
		if sec.Code == "" {
			return 0, fmt.Errorf("%w: section without code", ErrEmptyGeometry)
		}
		for _, row := range sec.Rows {
			for _, gs := range row.Seats {
				if gs.SeatUID == "" {
					return 0, fmt.Errorf("%w: seat without uid in section %s row %s", ErrEmptyGeometry, sec.Code, row.Label)
				}
				if _, dup := seen[gs.SeatUID]; dup {
					return 0, fmt.Errorf("%w: duplicate seat uid %s", ErrEmptyGeometry, gs.SeatUID)
				}
				seen[gs.SeatUID] = struct{}{}
				seats = append(seats, model.Seat{
					LayoutID:           snapshot.LayoutID,
					SeatUID:            gs.SeatUID,
					SectionCode:        sec.Code,
					RowLabel:           row.Label,
					SeatNumber:         gs.SeatNumber,
					PriceTierID:        gs.PriceTierID,
					PriceCentsOverride: gs.PriceCentsOverride,
					Status:             model.StatusAvailable,
					Version:            1,
				})
			}
		}
	}
	if err := m.store.InsertAll(ctx, seats, insertChunkSize); err != nil {
		return 0, err
	}
	return int64(len(seats)), nil
}

// ResetLayout deletes every seat of a layout so it can be re-initialized.
// The store refuses when any seat is held or sold
// (repository.ErrSeatsInUse).
func (m *Manager) ResetLayout(ctx context.Context, layoutID int64) (int64, error) {
	return m.store.DeleteByLayout(ctx, layoutID)
}

// CurrentStatuses re-fetches the listed seats so a caller that lost part of
// a bulk transition can see where each seat actually is.
func (m *Manager) CurrentStatuses(ctx context.Context, layoutID int64, seatUIDs []string) (map[string]model.SeatStatus, error) {
	seats, err := m.store.ListByUIDs(ctx, layoutID, dedupe(seatUIDs))
	if err != nil {
		return nil, err
	}
	statuses := make(map[string]model.SeatStatus, len(seats))
	for _, st := range seats {
		statuses[st.SeatUID] = st.Status
	}
	return statuses, nil
}

// SeatsByStatus lists the seats of a layout in one status.
func (m *Manager) SeatsByStatus(ctx context.Context, layoutID int64, status model.SeatStatus) ([]model.Seat, error) {
	if !model.ValidStatus(status) {
		return nil, fmt.Errorf("unknown seat status %q", status)
	}
	return m.store.ListByStatus(ctx, layoutID, status)
}

// Seats lists every seat of a layout.
func (m *Manager) Seats(ctx context.Context, layoutID int64) ([]model.Seat, error) {
	return m.store.ListByLayout(ctx, layoutID)
}

// SeatsByUIDs lists the seats matching an explicit id set.
func (m *Manager) SeatsByUIDs(ctx context.Context, layoutID int64, seatUIDs []string) ([]model.Seat, error) {
	return m.store.ListByUIDs(ctx, layoutID, dedupe(seatUIDs))
}

// StatusCounts returns per-status seat counts, normalized to all five
// statuses; the values always sum to the layout's seat total.
func (m *Manager) StatusCounts(ctx context.Context, layoutID int64) (map[model.SeatStatus]int64, error) {
	return m.store.StatusCounts(ctx, layoutID)
}

// ChangesSince is the poll-based change feed: seats whose last change is
// strictly after the given timestamp.
func (m *Manager) ChangesSince(ctx context.Context, layoutID int64, since time.Time) ([]model.Seat, error) {
	return m.store.ModifiedSince(ctx, layoutID, since)
}

// dedupe returns the unique seat uids preserving first-seen order.
func dedupe(uids []string) []string {
	seen := make(map[string]struct{}, len(uids))
	out := make([]string, 0, len(uids))
	for _, uid := range uids {
		if uid == "" {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out
}
