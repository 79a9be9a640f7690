package provider

import (
	"context"
	"fmt"

	"github.com/kbukum/diarizer/resilience"
)

// Resilient is a RequestResponse wrapped with resilience policies. The
// underlying primitives are exposed for stats and health reporting.
type Resilient[I, O any] struct {
	inner RequestResponse[I, O]
	state *ResilienceState
}

// WithResilience wraps p with resilience policies.
// Execution chain: Bulkhead → CircuitBreaker → Retry → Execute.
func WithResilience[I, O any](p RequestResponse[I, O], cfg ResilienceConfig) *Resilient[I, O] {
	return &Resilient[I, O]{inner: p, state: BuildResilience(cfg)}
}

// Name returns the wrapped provider's name.
func (r *Resilient[I, O]) Name() string { return r.inner.Name() }

// IsAvailable reports false while the breaker is open.
func (r *Resilient[I, O]) IsAvailable(ctx context.Context) bool {
	if cb := r.state.CircuitBreaker(); cb != nil && cb.State() == resilience.StateOpen {
		return false
	}
	return r.inner.IsAvailable(ctx)
}

// Execute runs the wrapped provider through the resilience chain.
func (r *Resilient[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return ExecuteWithResilience(ctx, r.state, func() (O, error) {
		return r.inner.Execute(ctx, input)
	})
}

// State returns the resilience primitives, or nil when none are configured.
func (r *Resilient[I, O]) State() *ResilienceState { return r.state }

// ExecuteWithResilience runs fn through Bulkhead → CircuitBreaker → Retry.
// Rejections by a policy are wrapped with the policy name and keep the
// resilience sentinel in the chain for errors.Is.
func ExecuteWithResilience[T any](ctx context.Context, s *ResilienceState, fn func() (T, error)) (T, error) {
	if s == nil {
		return fn()
	}

	call := fn
	if s.retryCfg != nil {
		retryCfg := *s.retryCfg
		call = func() (T, error) {
			return resilience.Retry(ctx, retryCfg, fn)
		}
	}

	if s.cb != nil {
		cbCall := call
		call = func() (T, error) {
			var result T
			var resultErr error
			cbErr := s.cb.Execute(func() error {
				result, resultErr = cbCall()
				return resultErr
			})
			if cbErr != nil && resultErr == nil {
				return result, fmt.Errorf("circuit breaker: %w", cbErr)
			}
			return result, resultErr
		}
	}

	if s.bh != nil {
		var result T
		var resultErr error
		bhErr := s.bh.Execute(ctx, func() error {
			result, resultErr = call()
			return resultErr
		})
		if bhErr != nil && resultErr == nil {
			return result, fmt.Errorf("bulkhead: %w", bhErr)
		}
		return result, resultErr
	}

	return call()
}
