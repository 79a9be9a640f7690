// Package resilience provides the fault-tolerance primitives the diarizer
// wraps around its slow or remote dependencies.
//
//   - Bulkhead: bounds concurrent model invocations and queues the rest
//   - CircuitBreaker: fails fast while the model sidecar is down
//   - Retry: waits for the sidecar to come up at startup
//   - RateLimiter: token bucket behind the per-client request limiter
//
// Patterns compose:
//
//	resp, err := resilience.ExecuteWithResult(bulkhead, ctx, func() (*Response, error) {
//	    return resilience.CallWithResult(breaker, func() (*Response, error) {
//	        return client.Diarize(ctx, req)
//	    })
//	})
package resilience
