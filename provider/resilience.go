package provider

import (
	"github.com/kbukum/diarizer/resilience"
)

// ResilienceConfig bundles optional resilience policies for a provider.
// Nil fields are skipped.
type ResilienceConfig struct {
	// Bulkhead limits concurrent calls and bounds the wait for a slot.
	Bulkhead *resilience.BulkheadConfig
	// CircuitBreaker stops calls after repeated failures.
	CircuitBreaker *resilience.CircuitBreakerConfig
	// Retry retries failed calls with exponential backoff.
	Retry *resilience.RetryConfig
}

// IsEmpty returns true if no resilience policies are configured.
func (c ResilienceConfig) IsEmpty() bool {
	return c.CircuitBreaker == nil && c.Retry == nil && c.Bulkhead == nil
}

// ResilienceState holds initialized resilience primitives built from config.
type ResilienceState struct {
	cb       *resilience.CircuitBreaker
	bh       *resilience.Bulkhead
	retryCfg *resilience.RetryConfig
}

// BuildResilience creates initialized resilience primitives from config.
func BuildResilience(cfg ResilienceConfig) *ResilienceState {
	if cfg.IsEmpty() {
		return nil
	}
	s := &ResilienceState{retryCfg: cfg.Retry}
	if cfg.CircuitBreaker != nil {
		s.cb = resilience.NewCircuitBreaker(*cfg.CircuitBreaker)
	}
	if cfg.Bulkhead != nil {
		s.bh = resilience.NewBulkhead(*cfg.Bulkhead)
	}
	return s
}

// Bulkhead returns the bulkhead, or nil if none is configured.
func (s *ResilienceState) Bulkhead() *resilience.Bulkhead {
	if s == nil {
		return nil
	}
	return s.bh
}

// CircuitBreaker returns the breaker, or nil if none is configured.
func (s *ResilienceState) CircuitBreaker() *resilience.CircuitBreaker {
	if s == nil {
		return nil
	}
	return s.cb
}
