package embeddings

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimited wraps a remote Backend so Encode calls share a request budget.
type rateLimited struct {
	Backend

	limiter *rate.Limiter
}

// RateLimited returns b throttled to perSecond Encode calls per second (burst 1).
// A non-positive rate returns b unchanged.
func RateLimited(b Backend, perSecond float64) Backend {
	if perSecond <= 0 {
		return b
	}

	return &rateLimited{Backend: b, limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// RateLimitedLoader applies RateLimited to whatever load returns.
func RateLimitedLoader(load Loader, perSecond float64) Loader {
	if perSecond <= 0 {
		return load
	}

	return func(ctx context.Context) (Backend, error) {
		b, err := load(ctx)
		if err != nil {
			return nil, err
		}

		return RateLimited(b, perSecond), nil
	}
}

func (r *rateLimited) Encode(ctx context.Context, texts []string) ([]Vector, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	return r.Backend.Encode(ctx, texts)
}
