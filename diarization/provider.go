package diarization

import (
	"context"

	"github.com/kbukum/diarizer/component"
	"github.com/kbukum/diarizer/provider"
)

// Provider is the interface that diarization backends must implement.
// Start loads the model and fails if it cannot; Stop releases it.
type Provider interface {
	provider.Provider
	component.Component

	// Diarize runs the model over req and returns its segments.
	Diarize(ctx context.Context, req Request) (*Response, error)

	// Device reports the compute device the model runs on. It is fixed
	// once Start has returned.
	Device() string
}

// Registry selects a backend by name.
type Registry = provider.Registry[Provider, Config]

// Factory builds a backend from configuration.
type Factory = provider.Factory[Provider, Config]

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return provider.NewRegistry[Provider, Config]()
}
