// Package pricing computes effective seat prices by merging tier prices,
// seat-level overrides and time-bounded dynamic overrides, and runs
// rule-driven bulk repricing through a pluggable strategy registry.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/venuekit/seat-inventory/internal/config"
	"github.com/venuekit/seat-inventory/internal/model"
)

// DecisionCache stores computed price decisions for a short TTL.  The cache
// is disposable: it may be dropped at any time with only a latency cost,
// and every failure path degrades to a miss, never to an error surfaced to
// the caller.  Implementations must use a plain structured encoding for
// payloads; a format that can instantiate arbitrary types from cache
// content is forbidden because cache contents are externally influenced.
type DecisionCache interface {
	// Get returns the cached decision and true on a structurally valid hit.
	Get(ctx context.Context, layoutID int64, seatUID string) (*model.PriceDecision, bool)
	// Set stores a decision under the cache TTL.  Best effort.
	Set(ctx context.Context, layoutID int64, seatUID string, d model.PriceDecision)
	// InvalidateLayout drops every cached decision for one layout without
	// touching other layouts.
	InvalidateLayout(ctx context.Context, layoutID int64) error
}

// RedisDecisionCache implements DecisionCache on Redis with JSON payloads.
// Keys embed a per-layout generation counter; invalidation increments the
// counter, making every older entry unreachable so it ages out via TTL.
// This keeps invalidation O(affected layout) instead of flushing the world.
// A nil client disables the cache entirely.
type RedisDecisionCache struct {
	rdb *redis.Client
	cfg config.PriceCacheConfig
}

// NewRedisDecisionCache builds a cache over the given client and config.
func NewRedisDecisionCache(rdb *redis.Client, cfg config.PriceCacheConfig) *RedisDecisionCache {
	return &RedisDecisionCache{rdb: rdb, cfg: cfg}
}

func (c *RedisDecisionCache) enabled() bool {
	return c != nil && c.rdb != nil && c.cfg.Enabled
}

func (c *RedisDecisionCache) genKey(layoutID int64) string {
	return fmt.Sprintf("%s:gen:%d", c.cfg.Prefix, layoutID)
}

// generation reads the layout's current generation, defaulting to 0 when
// the key is absent or Redis is unreachable.
func (c *RedisDecisionCache) generation(ctx context.Context, layoutID int64) int64 {
	n, err := c.rdb.Get(ctx, c.genKey(layoutID)).Int64()
	if err != nil {
		return 0
	}
	return n
}

func (c *RedisDecisionCache) entryKey(layoutID, gen int64, seatUID string) string {
	return fmt.Sprintf("%s:%d:g%d:%s", c.cfg.Prefix, layoutID, gen, seatUID)
}

// Get fetches and decodes a cached decision.  Anything that fails to decode
// as JSON, or decodes into a structurally invalid decision (wrong seat,
// unknown strategy), counts as a miss.
func (c *RedisDecisionCache) Get(ctx context.Context, layoutID int64, seatUID string) (*model.PriceDecision, bool) {
	if !c.enabled() {
		return nil, false
	}
	gen := c.generation(ctx, layoutID)
	raw, err := c.rdb.Get(ctx, c.entryKey(layoutID, gen, seatUID)).Bytes()
	if err != nil {
		return nil, false
	}
	var d model.PriceDecision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, false
	}
	if d.LayoutID != layoutID || d.SeatUID != seatUID {
		return nil, false
	}
	if d.Strategy != model.PriceStrategyBase && d.Strategy != model.PriceStrategyOverride {
		return nil, false
	}
	return &d, true
}

// Set stores a decision as JSON under the configured TTL.  Errors are
// swallowed: a cache outage must never affect the pricing result.
func (c *RedisDecisionCache) Set(ctx context.Context, layoutID int64, seatUID string, d model.PriceDecision) {
	if !c.enabled() {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	gen := c.generation(ctx, layoutID)
	ttl := c.cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	_ = c.rdb.Set(ctx, c.entryKey(layoutID, gen, seatUID), raw, ttl).Err()
}

// InvalidateLayout bumps the layout's generation counter.  Existing entries
// for the layout become unreachable immediately and expire on their own;
// other layouts keep their cache.
func (c *RedisDecisionCache) InvalidateLayout(ctx context.Context, layoutID int64) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Incr(ctx, c.genKey(layoutID)).Err()
}
