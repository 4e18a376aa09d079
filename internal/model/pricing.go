package model

import "time"

// Decision strategies recorded on a PriceDecision.  "base" means the seat's
// own pricing applied, "override" means an active dynamic override won, and
// "not_found" is the sentinel for an unknown seat.
const (
	PriceStrategyBase     = "base"
	PriceStrategyOverride = "override"
	PriceStrategyNotFound = "not_found"
)

// PriceTier is a named price bucket referenced by seats.  Tiers are owned by
// external pricing configuration and read-only from this service.
type PriceTier struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

// DynamicPriceOverride is a time-bounded price assignment for one seat.  An
// override is active when the current time falls within
// [EffectiveFrom, EffectiveTo); a nil EffectiveTo leaves the window
// open-ended.  Overrides are never mutated in place, only superseded.
type DynamicPriceOverride struct {
	ID            int64      `json:"id"`
	LayoutID      int64      `json:"layout_id"`
	SeatUID       string     `json:"seat_uid"`
	PriceCents    int64      `json:"price_cents"`
	SourceRuleID  *int64     `json:"source_rule_id,omitempty"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ActiveAt reports whether the override window covers the given instant.
func (o *DynamicPriceOverride) ActiveAt(now time.Time) bool {
	if now.Before(o.EffectiveFrom) {
		return false
	}
	return o.EffectiveTo == nil || now.Before(*o.EffectiveTo)
}

// Rule scopes recognized by bulk repricing.
const (
	RuleScopeGlobal  = "global"
	RuleScopeEvent   = "event"
	RuleScopeSection = "section"
)

// DynamicPricingRule is a scope-matched strategy descriptor.  Strategy names
// are resolved against the pricing strategy registry at execution time;
// Params carries strategy-specific configuration as raw JSON.
type DynamicPricingRule struct {
	ID       int64          `json:"id"`
	Strategy string         `json:"strategy"`
	Scope    string         `json:"scope"`
	ScopeRef *string        `json:"scope_ref,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	IsActive bool           `json:"is_active"`
}

// PriceDecision is the computed outcome of merging base and override pricing
// for one seat at one point in time.  Decisions are value objects: produced
// fresh or reconstructed from cache, never mutated after construction.
type PriceDecision struct {
	LayoutID            int64          `json:"layout_id"`
	SeatUID             string         `json:"seat_uid"`
	BasePriceCents      int64          `json:"base_price_cents"`
	EffectivePriceCents int64          `json:"effective_price_cents"`
	SourceRuleID        *int64         `json:"source_rule_id,omitempty"`
	Strategy            string         `json:"strategy"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// NotFoundDecision returns the sentinel decision for a seat that does not
// exist.  It carries zero prices and must not be cached.
func NotFoundDecision(layoutID int64, seatUID string) PriceDecision {
	return PriceDecision{
		LayoutID: layoutID,
		SeatUID:  seatUID,
		Strategy: PriceStrategyNotFound,
	}
}
