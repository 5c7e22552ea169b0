package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/sheet-reservation/internal/config"
)

// takeToken refills the bucket for the whole intervals elapsed since the
// last refill and then takes one token.  It returns {allowed, left, wait_ms}.
var takeToken = redis.NewScript(`
local cap, per, every_ms, ttl = tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local now = tonumber(ARGV[1])
local b = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens, at = tonumber(b[1]), tonumber(b[2])
if not tokens or not at then
    tokens, at = cap, now
end
local n = math.floor(math.max(0, now - at) / every_ms)
if n > 0 then
    tokens = math.min(cap, tokens + n * per)
    at = at + n * every_ms
end
local ok, wait = 0, 0
if tokens > 0 then
    ok, tokens = 1, tokens - 1
else
    wait = math.max(0, every_ms - (now - at))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'at', at)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, tokens, wait}
`)

// NewTokenBucket limits how often one caller may hit a seat-changing route.
// Buckets live in Redis so every instance shares them.  Redis errors let
// the request through: a reservation is never refused for a limiter fault.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = zap.NewNop()
    }
    limit := strconv.Itoa(cfg.Capacity)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := bucketKey(cfg.Prefix, c)
            res, err := takeToken.Run(c.Request().Context(), rdb, []string{key},
                time.Now().UnixMilli(), cfg.Capacity, cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(), int64(cfg.TTL/time.Second)).Int64Slice()
            if err != nil || len(res) != 3 {
                log.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", limit)
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
            if res[0] == 1 {
                return next(c)
            }
            secs := int(math.Ceil(float64(res[2]) / 1000))
            h.Set("Retry-After", strconv.Itoa(secs))
            return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too_many_requests"})
        }
    }
}

// bucketKey is "<prefix>:user:<role>-<id>:route:<method> <path>".
func bucketKey(prefix string, c echo.Context) string {
    return strings.Join([]string{prefix, "user", userKey(c), "route", c.Request().Method + " " + c.Path()}, ":")
}
