package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/venuekit/seat-inventory/internal/model"
)

// OverrideWriter is how strategies persist the overrides they produce.
type OverrideWriter interface {
	CreateBulk(ctx context.Context, overrides []model.DynamicPriceOverride) error
}

// StrategyInput carries everything a strategy needs for one rule
// application: the rule (with its params), the seats in scope, the override
// writer, and the evaluation time.  Strategies write price overrides only;
// they must never touch seat status.
type StrategyInput struct {
	Rule     model.DynamicPricingRule
	LayoutID int64
	Seats    []model.Seat
	Writer   OverrideWriter
	Now      time.Time
}

// Strategy is a pluggable repricing implementation selected by name.  Apply
// returns the number of seats whose price it changed.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, in StrategyInput) (int64, error)
}

// Registry maps strategy names to implementations so new strategies can be
// added without touching the dispatch core.  Lookup of an unregistered name
// is not an error at this level; the engine logs and skips such rules.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// NewDefaultRegistry returns a registry preloaded with the built-in
// strategies.  Currently that is just flat_price.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(FlatPriceStrategy{})
	return r
}

// Register adds or replaces a strategy under its own name.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Lookup resolves a strategy by name.
func (r *Registry) Lookup(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// Names returns the registered strategy names, unordered.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	return names
}

// FlatPriceStrategy is the illustrative built-in strategy: it writes one
// override per in-scope seat at a fixed price.  Params:
//
//	price_cents      – required, the override price.
//	duration_minutes – optional; when present the override window closes
//	                   that many minutes after application, otherwise it is
//	                   open-ended.
type FlatPriceStrategy struct{}

// Name implements Strategy.
func (FlatPriceStrategy) Name() string { return "flat_price" }

// Apply implements Strategy.
func (FlatPriceStrategy) Apply(ctx context.Context, in StrategyInput) (int64, error) {
	price, ok := paramInt64(in.Rule.Params, "price_cents")
	if !ok || price < 0 {
		return 0, fmt.Errorf("flat_price: rule %d: missing or invalid price_cents", in.Rule.ID)
	}
	var to *time.Time
	if mins, ok := paramInt64(in.Rule.Params, "duration_minutes"); ok && mins > 0 {
		t := in.Now.Add(time.Duration(mins) * time.Minute)
		to = &t
	}
	if len(in.Seats) == 0 {
		return 0, nil
	}
	ruleID := in.Rule.ID
	overrides := make([]model.DynamicPriceOverride, 0, len(in.Seats))
	for _, st := range in.Seats {
		overrides = append(overrides, model.DynamicPriceOverride{
			LayoutID:      in.LayoutID,
			SeatUID:       st.SeatUID,
			PriceCents:    price,
			SourceRuleID:  &ruleID,
			EffectiveFrom: in.Now,
			EffectiveTo:   to,
		})
	}
	if err := in.Writer.CreateBulk(ctx, overrides); err != nil {
		return 0, err
	}
	return int64(len(overrides)), nil
}

// paramInt64 reads a numeric rule param.  JSON numbers arrive as float64;
// integers stored by Go callers arrive as int64 or int.
func paramInt64(params map[string]any, key string) (int64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
