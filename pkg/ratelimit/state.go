// Package ratelimit tracks the Placemark API request budget and gates requests.
// It reads the X-RateLimit-Remaining and X-RateLimit-Reset headers (and
// Retry-After on 429 responses) and shares the resulting state across client
// processes through Redis.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyRemaining      = "placemark:rate_limit:remaining"
	RedisKeyResetTimestamp = "placemark:rate_limit:reset_timestamp"
)

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks requests while fewer requests than this remain in
	// the window. 1 means requests stop only once the budget is used up.
	ThresholdCritical = 1

	// ThresholdWarning throttles requests while fewer requests than this remain.
	ThresholdWarning = 5

	// ThresholdHealthy marks the budget as healthy at or above this value.
	ThresholdHealthy = 20
)

// Header names read from API responses.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// RateLimitState represents the current request budget of the API.
type RateLimitState struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// DefaultState is assumed until the API reports a budget.
func DefaultState() *RateLimitState {
	return &RateLimitState{
		Remaining: ThresholdHealthy,
		ResetAt:   time.Now(),
		IsHealthy: true,
	}
}

// WindowOver returns true once the reset time has passed; the budget is then
// assumed to be refilled.
func (s *RateLimitState) WindowOver() bool {
	return !time.Now().Before(s.ResetAt)
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical && !s.WindowOver()
}

// NeedsThrottling returns true if requests should be throttled.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.WindowOver() && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
