package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuekit/seat-inventory/internal/model"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Lookup("flat_price")
	assert.False(t, ok, "empty registry resolves nothing")

	r.Register(FlatPriceStrategy{})
	s, ok := r.Lookup("flat_price")
	require.True(t, ok)
	assert.Equal(t, "flat_price", s.Name())
	assert.Equal(t, []string{"flat_price"}, r.Names())
}

func TestDefaultRegistryHasFlatPrice(t *testing.T) {
	r := NewDefaultRegistry()
	_, ok := r.Lookup("flat_price")
	assert.True(t, ok)
}

func scopeSeats(uids ...string) []model.Seat {
	seats := make([]model.Seat, 0, len(uids))
	for _, uid := range uids {
		seats = append(seats, model.Seat{LayoutID: 1, SeatUID: uid})
	}
	return seats
}

func TestFlatPriceWritesOneOverridePerSeat(t *testing.T) {
	writer := &fakeOverrideStore{}
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	changed, err := FlatPriceStrategy{}.Apply(context.Background(), StrategyInput{
		Rule: model.DynamicPricingRule{
			ID:       9,
			Strategy: "flat_price",
			Params:   map[string]any{"price_cents": float64(4500), "duration_minutes": float64(30)},
		},
		LayoutID: 1,
		Seats:    scopeSeats("A1", "A2", "A3"),
		Writer:   writer,
		Now:      now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), changed)
	require.Len(t, writer.overrides, 3)

	for _, o := range writer.overrides {
		assert.Equal(t, int64(4500), o.PriceCents)
		require.NotNil(t, o.SourceRuleID)
		assert.Equal(t, int64(9), *o.SourceRuleID)
		assert.True(t, o.EffectiveFrom.Equal(now))
		require.NotNil(t, o.EffectiveTo)
		assert.True(t, o.EffectiveTo.Equal(now.Add(30*time.Minute)))
	}
}

func TestFlatPriceOpenEndedWithoutDuration(t *testing.T) {
	writer := &fakeOverrideStore{}
	changed, err := FlatPriceStrategy{}.Apply(context.Background(), StrategyInput{
		Rule:     model.DynamicPricingRule{ID: 9, Params: map[string]any{"price_cents": int64(4500)}},
		LayoutID: 1,
		Seats:    scopeSeats("A1"),
		Writer:   writer,
		Now:      time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)
	require.Len(t, writer.overrides, 1)
	assert.Nil(t, writer.overrides[0].EffectiveTo)
}

func TestFlatPriceRejectsBadParams(t *testing.T) {
	writer := &fakeOverrideStore{}
	for name, params := range map[string]map[string]any{
		"missing price": nil,
		"negative":      {"price_cents": float64(-1)},
		"wrong type":    {"price_cents": "4500"},
	} {
		_, err := FlatPriceStrategy{}.Apply(context.Background(), StrategyInput{
			Rule:   model.DynamicPricingRule{ID: 9, Params: params},
			Seats:  scopeSeats("A1"),
			Writer: writer,
			Now:    time.Now().UTC(),
		})
		assert.Error(t, err, name)
	}
	assert.Empty(t, writer.overrides)
}

func TestFlatPriceEmptyScopeWritesNothing(t *testing.T) {
	writer := &fakeOverrideStore{}
	changed, err := FlatPriceStrategy{}.Apply(context.Background(), StrategyInput{
		Rule:   model.DynamicPricingRule{ID: 9, Params: map[string]any{"price_cents": float64(4500)}},
		Writer: writer,
		Now:    time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed)
	assert.Empty(t, writer.overrides)
}
