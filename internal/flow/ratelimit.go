package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/getkayan/warden/internal/domain"
	"go.uber.org/zap"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter counts attempts per key.
type RateLimiter interface {
	// Allow records an attempt for key and reports whether it is within
	// limit for the current window, and how many attempts remain.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)

	// Reset clears the counter for key.
	Reset(ctx context.Context, key string) error
}

// KVRateLimiter is a fixed-window RateLimiter over a domain.KeyValueStore,
// so every instance sharing the store shares the budget.
type KVRateLimiter struct {
	kv domain.KeyValueStore
}

func NewKVRateLimiter(kv domain.KeyValueStore) *KVRateLimiter {
	return &KVRateLimiter{kv: kv}
}

func (r *KVRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	n, err := r.kv.Increment(ctx, rateLimitPrefix+key, window)
	if err != nil {
		return false, 0, fmt.Errorf("rate limit: %w", err)
	}
	remaining := limit - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return int(n) <= limit, remaining, nil
}

func (r *KVRateLimiter) Reset(ctx context.Context, key string) error {
	return r.kv.Delete(ctx, rateLimitPrefix+key)
}

// RateLimitConfig bounds attempts per identifier. A zero Limit disables it.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration

	// FailOpen admits requests when the limiter itself errors.
	FailOpen bool
}

// throttle applies a RateLimitConfig on behalf of a manager.
type throttle struct {
	limiter RateLimiter
	config  RateLimitConfig
	logger  *zap.Logger
}

func (t *throttle) enabled() bool {
	return t != nil && t.limiter != nil && t.config.Limit > 0 && t.config.Window > 0
}

func (t *throttle) check(ctx context.Context, scope, identifier string) error {
	if !t.enabled() {
		return nil
	}

	key := scope + ":" + identifier
	allowed, _, err := t.limiter.Allow(ctx, key, t.config.Limit, t.config.Window)
	if err != nil {
		if t.config.FailOpen {
			t.logger.Warn("rate limiter unavailable, admitting request", zap.String("scope", scope), zap.Error(err))
			return nil
		}
		return err
	}
	if !allowed {
		t.logger.Info("rate limited", zap.String("scope", scope))
		return domain.ErrRateLimited("Too many attempts, please try again later", t.config.Window)
	}
	return nil
}

func (t *throttle) reset(ctx context.Context, scope, identifier string) {
	if !t.enabled() {
		return
	}
	if err := t.limiter.Reset(ctx, scope+":"+identifier); err != nil {
		t.logger.Warn("rate limit reset failed", zap.String("scope", scope), zap.Error(err))
	}
}
