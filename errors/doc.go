// Package errors defines the tagged application error used across the
// diarizer service. Each failure category carries a machine-readable code and
// the HTTP status it maps to at the API boundary.
package errors
