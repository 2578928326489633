// Package capture paces the server's capture thread at a frame rate fixed
// when the limiter is constructed (§4.9), independent of the out-of-scope
// platform capture primitive itself (internal/portset.Capturer). The --fps
// token of the streaming command is not parsed; cmd/streamserver builds
// every limiter at 30 fps.
package capture

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces CaptureOne calls to at most fps frames per second. A
// zero or negative fps disables pacing entirely (rate.Inf), matching an
// unthrottled capture command.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter pacing to fps frames/second. fps <= 0
// means unlimited.
func NewRateLimiter(fps float64) *RateLimiter {
	if fps <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(fps), 1)}
}

// Wait blocks until the next token is available, or ctx is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Interval reports the configured per-frame interval, for diagnostics.
func (r *RateLimiter) Interval() time.Duration {
	limit := r.limiter.Limit()
	if limit <= 0 || limit == rate.Inf {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}
