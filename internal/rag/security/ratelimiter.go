package security

import (
	"sync"
	"time"

	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/rs/zerolog"
)

// DefaultRateLimitInterval is the minimum time between accepted queries per
// user identifier.
const DefaultRateLimitInterval = 2 * time.Second

// RateLimiter enforces a minimum interval between accepted queries per user
// identifier. It is last-timestamp gating, not a token bucket: rejected
// requests do not update state, so bursts beyond one request per interval
// are impossible.
type RateLimiter struct {
	minInterval time.Duration
	mu          sync.Mutex
	lastRequest map[string]time.Time
	now         func() time.Time
	logger      zerolog.Logger
}

// NewRateLimiter creates a rate limiter. A non-positive interval selects the
// default.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	if minInterval <= 0 {
		minInterval = DefaultRateLimitInterval
	}
	return &RateLimiter{
		minInterval: minInterval,
		lastRequest: make(map[string]time.Time),
		now:         time.Now,
		logger:      util.NewLogger(util.LogLevelFromEnv()),
	}
}

// CheckAndRecord reports whether a request from userID is allowed now. An
// allowed request records the current time; a rejected one leaves state
// untouched and returns the seconds to wait. The check-then-set is a single
// critical section so two racing requests cannot both pass the gate.
func (r *RateLimiter) CheckAndRecord(userID string) (bool, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.now()
	last, seen := r.lastRequest[userID]
	if seen {
		elapsed := current.Sub(last)
		if elapsed < r.minInterval {
			wait := (r.minInterval - elapsed).Seconds()
			r.logger.Warn().Str("user_id", userID).Float64("wait_seconds", wait).Msg("rate limit exceeded")
			return false, wait
		}
	}

	r.lastRequest[userID] = current
	return true, 0
}

// Reset clears the recorded timestamp for userID, an administrative
// override.
func (r *RateLimiter) Reset(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lastRequest, userID)
}
