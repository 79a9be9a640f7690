// Package server provides the diarizer HTTP server: Gin mounted on a root
// ServeMux behind h2c, with lifecycle management through the component
// pattern.
//
// # Middleware
//
// Applied at the server level (server/middleware), outermost first:
//
//   - RequestID: fresh UUID per request, echoed in X-Request-Id
//   - RequestLogger: receipt and completion logs with status and duration
//   - Recovery: panics become INTERNAL_ERROR responses
//   - CORS: cross-origin headers and preflight handling
//   - RateLimit: optional per-client token buckets (429 + Retry-After)
//   - BodySizeLimit: request body cap
//
// Auth (static bearer token) is a Gin middleware applied to protected groups.
//
// # Endpoints
//
// Built-in endpoints (server/endpoint): /health, /alive, /ready, /info,
// /version and /metrics.
package server
