package pricing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/venuekit/seat-inventory/internal/model"
	"github.com/venuekit/seat-inventory/internal/repository"
)

// SeatReader is the seat-store subset the engine reads.  Pricing never
// writes seat rows and never looks at seat status.
type SeatReader interface {
	ListPriced(ctx context.Context, layoutID int64, seatUIDs []string) ([]repository.PricedSeat, error)
	ListByLayout(ctx context.Context, layoutID int64) ([]model.Seat, error)
	ListBySection(ctx context.Context, layoutID int64, sectionCode string) ([]model.Seat, error)
}

// OverrideStore combines reading active overrides with the writer handed to
// strategies.  Implemented by repository.OverrideRepo.
type OverrideStore interface {
	OverrideWriter
	ActiveForSeat(ctx context.Context, layoutID int64, seatUID string, now time.Time) (*model.DynamicPriceOverride, error)
	ActiveForLayout(ctx context.Context, layoutID int64, now time.Time) (map[string]model.DynamicPriceOverride, error)
}

// RuleStore loads the pricing rules matching a repricing request.
type RuleStore interface {
	ListActiveByScope(ctx context.Context, scope string, scopeRef *string) ([]model.DynamicPricingRule, error)
}

// Engine computes seat price decisions and runs rule-driven repricing.
// Every computation consults the decision cache first; a cache outage
// degrades to recomputation, never to an error.
type Engine struct {
	seats     SeatReader
	overrides OverrideStore
	rules     RuleStore
	cache     DecisionCache
	registry  *Registry

	// now is indirected for tests.
	now func() time.Time
}

// NewEngine constructs an Engine.  cache may be nil to disable caching;
// registry may be nil to use the default strategy set.
func NewEngine(seats SeatReader, overrides OverrideStore, rules RuleStore, cache DecisionCache, registry *Registry) *Engine {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	return &Engine{
		seats:     seats,
		overrides: overrides,
		rules:     rules,
		cache:     cache,
		registry:  registry,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// basePrice resolves the fallback chain: explicit seat override, else tier
// price, else zero.
func basePrice(ps repository.PricedSeat) int64 {
	if ps.PriceCentsOverride != nil {
		return *ps.PriceCentsOverride
	}
	if ps.TierPriceCents != nil {
		return *ps.TierPriceCents
	}
	return 0
}

// decide merges a seat's base price with its active override, if any.
func decide(ps repository.PricedSeat, override *model.DynamicPriceOverride) model.PriceDecision {
	d := model.PriceDecision{
		LayoutID:       ps.LayoutID,
		SeatUID:        ps.SeatUID,
		BasePriceCents: basePrice(ps),
		Strategy:       model.PriceStrategyBase,
	}
	d.EffectivePriceCents = d.BasePriceCents
	if override != nil {
		d.EffectivePriceCents = override.PriceCents
		d.Strategy = model.PriceStrategyOverride
		d.SourceRuleID = override.SourceRuleID
		d.Metadata = map[string]any{
			"override_id":    override.ID,
			"effective_from": override.EffectiveFrom.UTC().Format(time.RFC3339),
		}
		if override.EffectiveTo != nil {
			d.Metadata["effective_to"] = override.EffectiveTo.UTC().Format(time.RFC3339)
		}
	}
	return d
}

// ComputeEffectivePrice returns the price decision for one seat.  On a
// cache hit the decision is reconstructed without touching the seat store.
// An unknown seat yields the not_found sentinel decision with zero prices;
// that is a result, not an error, and it is never cached.
func (e *Engine) ComputeEffectivePrice(ctx context.Context, layoutID int64, seatUID string) (model.PriceDecision, error) {
	if e.cache != nil {
		if d, ok := e.cache.Get(ctx, layoutID, seatUID); ok {
			return *d, nil
		}
	}
	priced, err := e.seats.ListPriced(ctx, layoutID, []string{seatUID})
	if err != nil {
		return model.PriceDecision{}, err
	}
	if len(priced) == 0 {
		return model.NotFoundDecision(layoutID, seatUID), nil
	}
	override, err := e.overrides.ActiveForSeat(ctx, layoutID, seatUID, e.now())
	if err != nil {
		return model.PriceDecision{}, err
	}
	d := decide(priced[0], override)
	if e.cache != nil {
		e.cache.Set(ctx, layoutID, seatUID, d)
	}
	return d, nil
}

// ComputeBulkPrices returns a decision per requested seat uid, equivalent
// to calling ComputeEffectivePrice for each.  Seat and override lookups for
// the cache misses are batched into one query each instead of a round trip
// per seat.
func (e *Engine) ComputeBulkPrices(ctx context.Context, layoutID int64, seatUIDs []string) (map[string]model.PriceDecision, error) {
	decisions := make(map[string]model.PriceDecision, len(seatUIDs))
	var misses []string
	for _, uid := range seatUIDs {
		if uid == "" {
			continue
		}
		if _, dup := decisions[uid]; dup {
			continue
		}
		if e.cache != nil {
			if d, ok := e.cache.Get(ctx, layoutID, uid); ok {
				decisions[uid] = *d
				continue
			}
		}
		decisions[uid] = model.NotFoundDecision(layoutID, uid) // placeholder until computed
		misses = append(misses, uid)
	}
	if len(misses) == 0 {
		return decisions, nil
	}
	priced, err := e.seats.ListPriced(ctx, layoutID, misses)
	if err != nil {
		return nil, err
	}
	active, err := e.overrides.ActiveForLayout(ctx, layoutID, e.now())
	if err != nil {
		return nil, err
	}
	for _, ps := range priced {
		var override *model.DynamicPriceOverride
		if o, ok := active[ps.SeatUID]; ok {
			o := o
			override = &o
		}
		d := decide(ps, override)
		decisions[ps.SeatUID] = d
		if e.cache != nil {
			e.cache.Set(ctx, layoutID, ps.SeatUID, d)
		}
	}
	return decisions, nil
}

// RepriceResult reports one bulk repricing run.
type RepriceResult struct {
	RulesMatched int      `json:"rules_matched"`
	RulesSkipped []string `json:"rules_skipped,omitempty"`
	SeatsChanged int64    `json:"seats_changed"`
}

// BulkReprice loads the active rules matching the scope and applies each
// rule's strategy through the registry, writing price overrides.  Rules
// naming an unregistered strategy are skipped with a log line and reported
// in RulesSkipped.  Seat status is never read or written.  When any seat
// price changed, the layout's cache generation is invalidated.
func (e *Engine) BulkReprice(ctx context.Context, layoutID int64, scope string, scopeRef *string) (RepriceResult, error) {
	var res RepriceResult
	seats, err := e.seatsInScope(ctx, layoutID, scope, scopeRef)
	if err != nil {
		return res, err
	}
	rules, err := e.rules.ListActiveByScope(ctx, scope, scopeRef)
	if err != nil {
		return res, err
	}
	res.RulesMatched = len(rules)
	now := e.now()
	for _, rule := range rules {
		strategy, ok := e.registry.Lookup(rule.Strategy)
		if !ok {
			log.Printf("pricing: rule %d names unknown strategy %q; skipping", rule.ID, rule.Strategy)
			res.RulesSkipped = append(res.RulesSkipped, rule.Strategy)
			continue
		}
		changed, err := strategy.Apply(ctx, StrategyInput{
			Rule:     rule,
			LayoutID: layoutID,
			Seats:    seats,
			Writer:   e.overrides,
			Now:      now,
		})
		if err != nil {
			return res, fmt.Errorf("apply rule %d (%s): %w", rule.ID, rule.Strategy, err)
		}
		res.SeatsChanged += changed
	}
	if res.SeatsChanged > 0 && e.cache != nil {
		if err := e.cache.InvalidateLayout(ctx, layoutID); err != nil {
			log.Printf("pricing: cache invalidation for layout %d failed: %v", layoutID, err)
		}
	}
	return res, nil
}

// RulePreview pairs a matched rule with whether its strategy is registered.
// SeatsChanged is a placeholder; preview performs no writes.
type RulePreview struct {
	Rule         model.DynamicPricingRule `json:"rule"`
	Registered   bool                     `json:"registered"`
	SeatsInScope int                      `json:"seats_in_scope"`
	SeatsChanged int64                    `json:"seats_changed"`
}

// PreviewReprice runs the same rule matching as BulkReprice without
// applying any strategy, for admin "what would change" tooling.
func (e *Engine) PreviewReprice(ctx context.Context, layoutID int64, scope string, scopeRef *string) ([]RulePreview, error) {
	seats, err := e.seatsInScope(ctx, layoutID, scope, scopeRef)
	if err != nil {
		return nil, err
	}
	rules, err := e.rules.ListActiveByScope(ctx, scope, scopeRef)
	if err != nil {
		return nil, err
	}
	previews := make([]RulePreview, 0, len(rules))
	for _, rule := range rules {
		_, registered := e.registry.Lookup(rule.Strategy)
		previews = append(previews, RulePreview{
			Rule:         rule,
			Registered:   registered,
			SeatsInScope: len(seats),
		})
	}
	return previews, nil
}

// InvalidateLayout drops the cached decisions of one layout.  Exposed for
// callers that change prices outside BulkReprice, such as manual override
// creation.
func (e *Engine) InvalidateLayout(ctx context.Context, layoutID int64) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateLayout(ctx, layoutID); err != nil {
		log.Printf("pricing: cache invalidation for layout %d failed: %v", layoutID, err)
	}
}

func (e *Engine) seatsInScope(ctx context.Context, layoutID int64, scope string, scopeRef *string) ([]model.Seat, error) {
	switch scope {
	case model.RuleScopeGlobal, model.RuleScopeEvent:
		return e.seats.ListByLayout(ctx, layoutID)
	case model.RuleScopeSection:
		if scopeRef == nil || *scopeRef == "" {
			return nil, fmt.Errorf("section scope requires a scope ref")
		}
		return e.seats.ListBySection(ctx, layoutID, *scopeRef)
	default:
		return nil, fmt.Errorf("unknown repricing scope %q", scope)
	}
}
