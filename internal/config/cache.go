package config

import "time"

// CacheConfig controls the Redis response cache on the operator
// pending-event listing.  Caching is off when Enabled is false or Redis is
// unavailable.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool // upper-cased HTTP methods to cache
    TTL          time.Duration
    KeyStrategy  string // route_query | operator_route_query
    Prefix       string
    MaxBodyBytes int // larger responses are served but not cached
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
    c := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      envSet("CACHE_METHODS", "GET"),
        TTL:          envDur("CACHE_TTL", 15*time.Second),
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       envStr("CACHE_PREFIX", "cache:ops"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
    if c.TTL <= 0 {
        c.TTL = 15 * time.Second
    }
    return c
}
