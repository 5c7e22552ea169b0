package config

import "time"

// CacheConfig controls the Redis copy of the public event list.  Only GET
// responses are stored and entries are keyed on route plus query string.
// Writes drop the whole Prefix, so TTL only bounds how long an entry
// survives a failed invalidation.
type CacheConfig struct {
    Enabled      bool          // CACHE_ENABLED
    TTL          time.Duration // CACHE_TTL
    Prefix       string        // CACHE_PREFIX, also the invalidation pattern
    MaxBodyBytes int           // larger responses are served but not stored
}

func loadCache() CacheConfig {
    cfg := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        TTL:          envDur("CACHE_TTL", 30*time.Second),
        Prefix:       getenv("CACHE_PREFIX", "events"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
    if cfg.TTL <= 0 {
        cfg.TTL = 30 * time.Second
    }
    return cfg
}
