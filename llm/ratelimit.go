package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps an Invoker with a local token-bucket rate limit on
// outbound calls. Waiting respects context cancellation, so a cancelled
// request never consumes budget.
type RateLimited struct {
	inner   Invoker
	limiter *rate.Limiter
}

// NewRateLimited creates a rate-limited invoker. rps <= 0 disables limiting.
func NewRateLimited(inner Invoker, rps float64, burst int) *RateLimited {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RateLimited{inner: inner, limiter: limiter}
}

// InvokeStructured waits for limiter capacity, then delegates.
func (r *RateLimited) InvokeStructured(ctx context.Context, req *StructuredRequest) (*StructuredResponse, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return r.inner.InvokeStructured(ctx, req)
}

// Name identifies the decorated invoker.
func (r *RateLimited) Name() string {
	return fmt.Sprintf("ratelimited[%s]", r.inner.Name())
}

var _ Invoker = (*RateLimited)(nil)
