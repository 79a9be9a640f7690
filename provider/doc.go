// Package provider is a small generic framework for swappable backends.
//
// A backend implements Provider (Name, IsAvailable) plus a typed call
// surface; RequestResponse[I, O] covers one-input/one-output calls such as
// HTTP sidecars and subprocess workers. Backends are created by name from a
// Registry of factories, and cross-cutting behavior is layered on with
// Middleware:
//
//	wrapped := provider.Chain(
//	    provider.WithLogging[In, Out](log),
//	    provider.WithMetrics[In, Out](metrics, "diarizer"),
//	    provider.WithTracing[In, Out]("diarizer"),
//	)(provider.WithResilience(raw, provider.ResilienceConfig{Bulkhead: &bh}))
//
// Adapt bridges a backend with its own wire types to a domain interface.
package provider
