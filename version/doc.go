// Package version exposes build metadata for the diarizer binary.
//
// Version, commit and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/diarizer/version.Version=1.2.0" ./cmd/diarizer
//
// Missing values fall back to the VCS stamp embedded by the Go toolchain.
package version
