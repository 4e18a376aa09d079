package config

import (
	"os"
	"time"
)

// PriceCacheConfig defines settings for the price decision cache.
// When Enabled is false or no Redis client is configured, pricing always
// recomputes.  TTL defines the lifetime of cached decisions; Prefix
// namespaces the cache keys so several deployments can share one Redis.
type PriceCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadPriceCacheConfig reads environment variables to build a
// PriceCacheConfig.  Defaults are used when variables are not set.
func LoadPriceCacheConfig() PriceCacheConfig {
	return PriceCacheConfig{
		Enabled: getenv("PRICE_CACHE_ENABLED", "true") == "true",
		TTL:     parseDur(getenv("PRICE_CACHE_TTL", "30s")),
		Prefix:  getenv("PRICE_CACHE_PREFIX", "price"),
	}
}

// Helper functions shared with config.go.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
