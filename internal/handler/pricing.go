package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/venuekit/seat-inventory/internal/inventory"
	"github.com/venuekit/seat-inventory/internal/model"
	"github.com/venuekit/seat-inventory/internal/pricing"
	"github.com/venuekit/seat-inventory/internal/queue"
	"github.com/venuekit/seat-inventory/internal/repository"
	queue_publisher "github.com/venuekit/seat-inventory/internal/service"
)

// PricingHandler exposes price computation, manual overrides, rule
// management and bulk repricing over HTTP.  Price reads are public
// (checkout needs them); everything that changes prices sits behind the
// admin JWT middleware at registration time.
type PricingHandler struct {
	Engine    *pricing.Engine
	Manager   *inventory.Manager
	Overrides *repository.OverrideRepo
	Rules     *repository.RuleRepo
}

// NewPricingHandler constructs a PricingHandler.
func NewPricingHandler(e *pricing.Engine, m *inventory.Manager, o *repository.OverrideRepo, r *repository.RuleRepo) *PricingHandler {
	return &PricingHandler{Engine: e, Manager: m, Overrides: o, Rules: r}
}

// GetSeatPrice handles GET /v1/layouts/:id/seats/:uid/price.  An unknown
// seat yields a 200 with the not_found sentinel decision and zero prices.
func (h *PricingHandler) GetSeatPrice(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	seatUID := c.Param("uid")
	if seatUID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat uid"})
	}
	decision, err := h.Engine.ComputeEffectivePrice(c.Request().Context(), layoutID, seatUID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "price computation failed"})
	}
	return c.JSON(http.StatusOK, decision)
}

// GetBulkPrices handles POST /v1/layouts/:id/prices with a seat_uids body.
// The response maps each requested uid to its decision.
func (h *PricingHandler) GetBulkPrices(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req seatSetRequest
	if err := c.Bind(&req); err != nil || len(req.SeatUIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_uids is required"})
	}
	decisions, err := h.Engine.ComputeBulkPrices(c.Request().Context(), layoutID, req.SeatUIDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "price computation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"prices": decisions})
}

// createOverrideRequest is the body for manual override creation.
type createOverrideRequest struct {
	SeatUID       string     `json:"seat_uid"`
	PriceCents    int64      `json:"price_cents"`
	EffectiveFrom *time.Time `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
}

// CreateOverride handles POST /v1/layouts/:id/overrides (admin).  A manual
// override supersedes any earlier one for the seat; the layout's cached
// decisions are invalidated afterwards.
func (h *PricingHandler) CreateOverride(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req createOverrideRequest
	if err := c.Bind(&req); err != nil || req.SeatUID == "" || req.PriceCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_uid and a non-negative price_cents are required"})
	}
	from := time.Now().UTC()
	if req.EffectiveFrom != nil {
		from = req.EffectiveFrom.UTC()
	}
	if req.EffectiveTo != nil && !req.EffectiveTo.After(from) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "effective_to must be after effective_from"})
	}
	override := model.DynamicPriceOverride{
		LayoutID:      layoutID,
		SeatUID:       req.SeatUID,
		PriceCents:    req.PriceCents,
		EffectiveFrom: from,
		EffectiveTo:   req.EffectiveTo,
	}
	ctx := c.Request().Context()
	if err := h.Overrides.Create(ctx, &override); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create override"})
	}
	h.Engine.InvalidateLayout(ctx, layoutID)
	return c.JSON(http.StatusCreated, override)
}

// createRuleRequest is the body for pricing rule creation.
type createRuleRequest struct {
	Strategy string         `json:"strategy"`
	Scope    string         `json:"scope"`
	ScopeRef *string        `json:"scope_ref,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	IsActive bool           `json:"is_active"`
}

// CreateRule handles POST /v1/pricing/rules (admin).  The strategy name is
// not validated against the registry here: rules may be authored before
// their strategy ships, and repricing skips unknown names.
func (h *PricingHandler) CreateRule(c echo.Context) error {
	var req createRuleRequest
	if err := c.Bind(&req); err != nil || req.Strategy == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "strategy is required"})
	}
	switch req.Scope {
	case model.RuleScopeGlobal, model.RuleScopeEvent, model.RuleScopeSection:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scope must be global, event or section"})
	}
	rule := model.DynamicPricingRule{
		Strategy: req.Strategy,
		Scope:    req.Scope,
		ScopeRef: req.ScopeRef,
		Params:   req.Params,
		IsActive: req.IsActive,
	}
	if err := h.Rules.Create(c.Request().Context(), &rule); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create rule"})
	}
	return c.JSON(http.StatusCreated, rule)
}

// ListRules handles GET /v1/pricing/rules (admin).
func (h *PricingHandler) ListRules(c echo.Context) error {
	rules, err := h.Rules.ListAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list rules"})
	}
	if rules == nil {
		rules = []model.DynamicPricingRule{}
	}
	return c.JSON(http.StatusOK, echo.Map{"rules": rules})
}

// repriceRequest selects which rules a repricing run matches.
type repriceRequest struct {
	Scope    string  `json:"scope"`
	ScopeRef *string `json:"scope_ref,omitempty"`
}

// ApplyReprice handles POST /v1/layouts/:id/reprice (admin).  Matching
// rules write price overrides through their strategies; seat status is
// never touched.
func (h *PricingHandler) ApplyReprice(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req repriceRequest
	if err := c.Bind(&req); err != nil || req.Scope == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scope is required"})
	}
	ctx := c.Request().Context()
	res, err := h.Engine.BulkReprice(ctx, layoutID, req.Scope, req.ScopeRef)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	if res.SeatsChanged > 0 {
		_ = queue_publisher.PublishLayoutRepriced(ctx, queue.LayoutRepricedEvent{
			EventID:      uuid.NewString(),
			LayoutID:     layoutID,
			Scope:        req.Scope,
			ScopeRef:     req.ScopeRef,
			RulesApplied: res.RulesMatched - len(res.RulesSkipped),
			SeatsChanged: res.SeatsChanged,
			RepricedAt:   time.Now().UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, res)
}

// PreviewReprice handles POST /v1/layouts/:id/reprice/preview (admin).  It
// reports the rules a run would match without writing anything.
func (h *PricingHandler) PreviewReprice(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req repriceRequest
	if err := c.Bind(&req); err != nil || req.Scope == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scope is required"})
	}
	previews, err := h.Engine.PreviewReprice(c.Request().Context(), layoutID, req.Scope, req.ScopeRef)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	if previews == nil {
		previews = []pricing.RulePreview{}
	}
	return c.JSON(http.StatusOK, echo.Map{"previews": previews})
}

// GetSeatsWithPrices handles GET /v1/layouts/:id/seats/priced.  It returns
// each seat together with its price decision, the payload a seat-map UI
// renders directly.
func (h *PricingHandler) GetSeatsWithPrices(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	seats, err := h.Manager.Seats(c.Request().Context(), layoutID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list seats"})
	}
	uids := make([]string, 0, len(seats))
	for _, st := range seats {
		uids = append(uids, st.SeatUID)
	}
	decisions, err := h.Engine.ComputeBulkPrices(c.Request().Context(), layoutID, uids)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "price computation failed"})
	}
	type pricedSeat struct {
		model.Seat
		Price model.PriceDecision `json:"price"`
	}
	out := make([]pricedSeat, 0, len(seats))
	for _, st := range seats {
		out = append(out, pricedSeat{Seat: st, Price: decisions[st.SeatUID]})
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": out, "count": len(out)})
}
