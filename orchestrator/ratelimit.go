package orchestrator

import (
	"context"
	"time"

	"github.com/BaSui01/promptenhancer/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitInfo is the outcome of a RateLimiter.Check call.
type RateLimitInfo struct {
	Allowed   bool
	Remaining int64
}

// RateLimiter is the cache-backed fixed-window primitive the
// orchestrator prefers (satisfied by an adapter over
// internal/cache.Manager.Check). When it's unavailable or fails, the
// orchestrator falls back to an in-process token bucket so backpressure
// still applies without a shared Redis window (spec §5 "Rate limiter
// counters ... client holds no shared state" — the fallback is
// best-effort per-process, not a substitute for the shared primitive).
type RateLimiter interface {
	Check(ctx context.Context, namespace, key string, limit int64, window time.Duration) (*RateLimitInfo, error)
}

// checkRateLimit enforces cfg.RateLimitPerMin per identifier (the
// request's context["user_id"], or "global" when absent). A limit of
// zero disables rate limiting entirely.
func (o *Orchestrator) checkRateLimit(ctx context.Context, req types.EnhanceRequest) error {
	if o.cfg.RateLimitPerMin <= 0 {
		return nil
	}

	identifier := types.NewTechniqueContext(req.Context).String("user_id", "global")

	if o.rateLimiter != nil {
		info, err := o.rateLimiter.Check(ctx, "ratelimit", identifier, int64(o.cfg.RateLimitPerMin), time.Minute)
		if err == nil {
			if !info.Allowed {
				observeRateLimitRejection("cache")
				return rateLimitErr()
			}
			return nil
		}
		o.logger.Warn("cache-backed rate limit check failed, falling back to in-process limiter", zap.Error(err))
	}

	if o.localLimiter != nil && !o.localLimiter.Allow() {
		observeRateLimitRejection("local")
		return rateLimitErr()
	}
	return nil
}

func rateLimitErr() error {
	return types.NewError(types.ErrServiceUnavailable, "rate limit exceeded").WithRetryable(true)
}

// newLocalLimiter builds the in-process token bucket fallback from a
// per-minute budget. A non-positive budget disables the fallback.
func newLocalLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	burst := perMinute
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
}
