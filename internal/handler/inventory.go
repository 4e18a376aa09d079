package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/venuekit/seat-inventory/internal/inventory"
	"github.com/venuekit/seat-inventory/internal/model"
	"github.com/venuekit/seat-inventory/internal/queue"
	"github.com/venuekit/seat-inventory/internal/repository"
	queue_publisher "github.com/venuekit/seat-inventory/internal/service"
)

// InventoryHandler exposes the seat inventory operations over HTTP.  The
// transition endpoints all share the same contract: they return the number
// of seats actually transitioned, and when that is lower than requested the
// response carries the current status of every requested seat so the
// caller can reconcile.  A shortfall is expected contention, not an error.
type InventoryHandler struct {
	Manager *inventory.Manager
}

// NewInventoryHandler constructs an InventoryHandler.
func NewInventoryHandler(m *inventory.Manager) *InventoryHandler {
	return &InventoryHandler{Manager: m}
}

// seatSetRequest is the body shared by all bulk transition endpoints.
type seatSetRequest struct {
	SeatUIDs []string `json:"seat_uids"`
}

// transitionResponse reports a bulk transition outcome.  Statuses is only
// populated on partial or zero success.
type transitionResponse struct {
	Requested    int                         `json:"requested"`
	Transitioned int64                       `json:"transitioned"`
	Conflict     bool                        `json:"conflict"`
	Statuses     map[string]model.SeatStatus `json:"statuses,omitempty"`
}

func layoutIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid layout id")
	}
	return id, nil
}

// transition runs one named transition and renders the shared response.
func (h *InventoryHandler) transition(c echo.Context, actor string, from, to model.SeatStatus,
	op func(ctxc echo.Context, layoutID int64, uids []string) (inventory.TransitionResult, error)) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req seatSetRequest
	if err := c.Bind(&req); err != nil || len(req.SeatUIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_uids is required"})
	}
	ctx := c.Request().Context()
	res, err := op(c, layoutID, req.SeatUIDs)
	if err != nil {
		if errors.Is(err, inventory.ErrInvalidTransition) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transition failed"})
	}
	resp := transitionResponse{
		Requested:    res.Requested,
		Transitioned: res.Transitioned,
		Conflict:     res.Lost() > 0,
	}
	if resp.Conflict {
		// Re-fetch so the caller sees where each seat actually is.  The
		// caller must not assume any missing seat reached the target state.
		if statuses, err := h.Manager.CurrentStatuses(ctx, layoutID, req.SeatUIDs); err == nil {
			resp.Statuses = statuses
		}
	}
	if res.Transitioned > 0 {
		// Publish for the audit consumer and seat-map refreshers.  Failures
		// are ignored; the transition has already committed.
		_ = queue_publisher.PublishSeatStatusChanged(ctx, queue.SeatStatusChangedEvent{
			EventID:    uuid.NewString(),
			LayoutID:   layoutID,
			SeatUIDs:   req.SeatUIDs,
			FromStatus: string(from),
			ToStatus:   string(to),
			Count:      res.Transitioned,
			Actor:      actor,
			ChangedAt:  time.Now().UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// HoldSeats handles POST /v1/layouts/:id/seats/hold.  Buyers begin checkout
// by holding available seats.
func (h *InventoryHandler) HoldSeats(c echo.Context) error {
	return h.transition(c, "checkout", model.StatusAvailable, model.StatusHeld,
		func(c echo.Context, layoutID int64, uids []string) (inventory.TransitionResult, error) {
			return h.Manager.Hold(c.Request().Context(), layoutID, uids)
		})
}

// ReleaseSeats handles POST /v1/layouts/:id/seats/release.  Cancelled or
// timed-out checkouts return their held seats to sale.
func (h *InventoryHandler) ReleaseSeats(c echo.Context) error {
	return h.transition(c, "checkout", model.StatusHeld, model.StatusAvailable,
		func(c echo.Context, layoutID int64, uids []string) (inventory.TransitionResult, error) {
			return h.Manager.Release(c.Request().Context(), layoutID, uids)
		})
}

// SellSeats handles POST /v1/layouts/:id/seats/sell.  The checkout workflow
// confirms payment by selling held seats; a 0 count means the hold was lost.
func (h *InventoryHandler) SellSeats(c echo.Context) error {
	return h.transition(c, "checkout", model.StatusHeld, model.StatusSold,
		func(c echo.Context, layoutID int64, uids []string) (inventory.TransitionResult, error) {
			return h.Manager.Sell(c.Request().Context(), layoutID, uids)
		})
}

// BlockSeats handles POST /v1/layouts/:id/seats/block (admin hold-back).
func (h *InventoryHandler) BlockSeats(c echo.Context) error {
	return h.transition(c, "admin", model.StatusAvailable, model.StatusBlocked,
		func(c echo.Context, layoutID int64, uids []string) (inventory.TransitionResult, error) {
			return h.Manager.Block(c.Request().Context(), layoutID, uids)
		})
}

// UnblockSeats handles POST /v1/layouts/:id/seats/unblock.
func (h *InventoryHandler) UnblockSeats(c echo.Context) error {
	return h.transition(c, "admin", model.StatusBlocked, model.StatusAvailable,
		func(c echo.Context, layoutID int64, uids []string) (inventory.TransitionResult, error) {
			return h.Manager.Unblock(c.Request().Context(), layoutID, uids)
		})
}

// DisableSeats handles POST /v1/layouts/:id/seats/disable.  Disabling works
// from any status, so no single from status is reported on the event.
func (h *InventoryHandler) DisableSeats(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req seatSetRequest
	if err := c.Bind(&req); err != nil || len(req.SeatUIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_uids is required"})
	}
	ctx := c.Request().Context()
	res, err := h.Manager.Disable(ctx, layoutID, req.SeatUIDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "disable failed"})
	}
	if res.Transitioned > 0 {
		_ = queue_publisher.PublishSeatStatusChanged(ctx, queue.SeatStatusChangedEvent{
			EventID:   uuid.NewString(),
			LayoutID:  layoutID,
			SeatUIDs:  req.SeatUIDs,
			ToStatus:  string(model.StatusDisabled),
			Count:     res.Transitioned,
			Actor:     "admin",
			ChangedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, transitionResponse{
		Requested:    res.Requested,
		Transitioned: res.Transitioned,
		Conflict:     false,
	})
}

// updateSeatRequest is the body of the single-seat compare-and-swap
// endpoint.  ExpectedVersion is required; all other fields are optional.
type updateSeatRequest struct {
	ExpectedVersion    int64             `json:"expected_version"`
	SectionCode        *string           `json:"section_code,omitempty"`
	RowLabel           *string           `json:"row_label,omitempty"`
	SeatNumber         *uint32           `json:"seat_number,omitempty"`
	PriceTierID        *int64            `json:"price_tier_id,omitempty"`
	PriceCentsOverride *int64            `json:"price_cents_override,omitempty"`
	Status             *model.SeatStatus `json:"status,omitempty"`
}

// UpdateSeat handles PATCH /v1/layouts/:id/seats/:uid, the optimistic-lock
// primitive: the write succeeds only when expected_version still matches.
// A stale version yields 409 with the seat's current state.
func (h *InventoryHandler) UpdateSeat(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	seatUID := c.Param("uid")
	if seatUID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat uid"})
	}
	var req updateSeatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ExpectedVersion < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "expected_version is required"})
	}
	ctx := c.Request().Context()
	ok, err := h.Manager.UpdateSeat(ctx, layoutID, seatUID, req.ExpectedVersion, repository.SeatFieldUpdate{
		SectionCode:        req.SectionCode,
		RowLabel:           req.RowLabel,
		SeatNumber:         req.SeatNumber,
		PriceTierID:        req.PriceTierID,
		PriceCentsOverride: req.PriceCentsOverride,
		Status:             req.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSeatNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
		case errors.Is(err, inventory.ErrInvalidTransition):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if !ok {
		// Version predicate did not match: hand back the current row so the
		// caller can retry against fresh state.
		seat, err := h.Manager.SeatsByUIDs(ctx, layoutID, []string{seatUID})
		if err != nil || len(seat) == 0 {
			return c.JSON(http.StatusConflict, echo.Map{"error": "version conflict"})
		}
		return c.JSON(http.StatusConflict, echo.Map{"error": "version conflict", "seat": seat[0]})
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": true})
}

// GetSeats handles GET /v1/layouts/:id/seats.  Optional query parameters:
// status filters by one status; uid may repeat to select an explicit set.
func (h *InventoryHandler) GetSeats(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	var seats []model.Seat
	switch {
	case len(c.QueryParams()["uid"]) > 0:
		seats, err = h.Manager.SeatsByUIDs(ctx, layoutID, c.QueryParams()["uid"])
	case c.QueryParam("status") != "":
		status := model.SeatStatus(c.QueryParam("status"))
		if !model.ValidStatus(status) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
		}
		seats, err = h.Manager.SeatsByStatus(ctx, layoutID, status)
	default:
		seats, err = h.Manager.Seats(ctx, layoutID)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list seats"})
	}
	if seats == nil {
		seats = []model.Seat{}
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seats, "count": len(seats)})
}

// GetStatusCounts handles GET /v1/layouts/:id/seats/counts.  The response
// always contains all five statuses; the values sum to the layout total.
func (h *InventoryHandler) GetStatusCounts(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	counts, err := h.Manager.StatusCounts(c.Request().Context(), layoutID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to count seats"})
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return c.JSON(http.StatusOK, echo.Map{"counts": counts, "total": total})
}

// GetChanges handles GET /v1/layouts/:id/seats/changes?since=<RFC3339>.
// Polling clients (e.g. a live seat map) call this at a bounded interval.
func (h *InventoryHandler) GetChanges(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	since, err := time.Parse(time.RFC3339, c.QueryParam("since"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "since must be an RFC3339 timestamp"})
	}
	seats, err := h.Manager.ChangesSince(c.Request().Context(), layoutID, since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch changes"})
	}
	if seats == nil {
		seats = []model.Seat{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"seats":     seats,
		"count":     len(seats),
		"polled_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// InitializeLayout handles POST /v1/layouts/:id/seats.  The body is the
// layout's geometry snapshot; every seat is created available at version 1.
// Re-initialization is refused until the existing seats are deleted.
func (h *InventoryHandler) InitializeLayout(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var snapshot model.GeometrySnapshot
	if err := c.Bind(&snapshot); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid geometry snapshot"})
	}
	snapshot.LayoutID = layoutID
	created, err := h.Manager.InitializeFromGeometry(c.Request().Context(), &snapshot)
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrEmptyGeometry):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, repository.ErrAlreadyInitialized):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "initialization failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"seats_created": created})
}

// ResetLayout handles DELETE /v1/layouts/:id/seats.  It removes every seat
// of the layout so it can be re-initialized, and refuses while any seat is
// held or sold.
func (h *InventoryHandler) ResetLayout(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	deleted, err := h.Manager.ResetLayout(c.Request().Context(), layoutID)
	if err != nil {
		if errors.Is(err, repository.ErrSeatsInUse) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"seats_deleted": deleted})
}
