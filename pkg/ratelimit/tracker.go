package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "placemark_rate_limit_remaining",
		Help: "Number of requests remaining in the current API rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placemark_rate_limit_blocks_total",
		Help: "Total number of requests blocked because the rate limit budget is used up",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placemark_rate_limit_throttles_total",
		Help: "Total number of requests throttled near the rate limit",
	})
)

// ThrottleDelay is how long a request waits in the warning state.
var ThrottleDelay = 500 * time.Millisecond

// Tracker monitors the API rate limit and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current rate limit state from Redis.
// Returns DefaultState if no state is stored.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	values, err := t.redis.MGet(ctx, RedisKeyRemaining, RedisKeyResetTimestamp).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	if values[0] == nil || values[1] == nil {
		t.logger.Debug().Msg("No rate limit state in Redis, assuming healthy budget")
		return DefaultState(), nil
	}

	remaining, err := strconv.Atoi(fmt.Sprint(values[0]))
	if err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	resetUnix, err := strconv.ParseInt(fmt.Sprint(values[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse reset timestamp: %w", err)
	}

	state := &RateLimitState{
		Remaining: remaining,
		ResetAt:   time.Unix(resetUnix, 0),
	}
	state.UpdateHealth()

	return state, nil
}

// UpdateFromHeaders parses rate limit headers and stores the state in Redis.
// Responses without X-RateLimit-Remaining leave the state unchanged; a 429 with
// Retry-After records an exhausted budget until the retry time.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, statusCode int, headers http.Header) error {
	state, err := stateFromHeaders(statusCode, headers)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	// Keep the state only for the current window; afterwards the budget is refilled.
	ttl := state.TimeUntilReset() + time.Second

	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, ttl)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	rateLimitRemaining.Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("API rate limit exhausted - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("API rate limit low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy).
			Msg("API rate limit state updated")
	}

	return nil
}

// stateFromHeaders returns nil when the response carries no rate limit information.
func stateFromHeaders(statusCode int, headers http.Header) (*RateLimitState, error) {
	now := time.Now()

	if statusCode == http.StatusTooManyRequests {
		if retryAfter := headers.Get(HeaderRetryAfter); retryAfter != "" {
			wait, err := parseRetryAfter(retryAfter, now)
			if err != nil {
				return nil, err
			}
			return &RateLimitState{Remaining: 0, ResetAt: now.Add(wait)}, nil
		}
	}

	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return nil, fmt.Errorf("%s header missing", HeaderReset)
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	state := &RateLimitState{
		Remaining: remain,
		ResetAt:   now.Add(time.Duration(resetSeconds) * time.Second),
	}
	state.UpdateHealth()
	return state, nil
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			seconds = 0
		}
		return time.Duration(seconds) * time.Second, nil
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s header %q: %w", HeaderRetryAfter, value, err)
	}
	if at.Before(now) {
		return 0, nil
	}
	return at.Sub(now), nil
}

// ShouldAllowRequest checks if a request should be allowed.
// Returns false when the budget is used up. In the warning state it waits
// ThrottleDelay (or until ctx is done) before allowing the request.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, err
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("API rate limit exhausted - blocking request")

		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("API rate limit low - throttling request")

		rateLimitThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(ThrottleDelay):
		}
	}

	return true, nil
}
