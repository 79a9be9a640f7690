// Package util holds small helpers shared across the diarizer: size
// parsing for config values, fixed-precision rounding for reported
// timestamps, and redaction of secrets and URLs before they reach logs.
package util
