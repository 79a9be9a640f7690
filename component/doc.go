// Package component defines the lifecycle contract shared by the diarizer's
// long-lived parts: the HTTP server, the diarization backend, the scratch
// directory and the telemetry exporters.
//
// Components are started in registration order, stopped in reverse, and
// polled for health by the readiness endpoint.
package component
