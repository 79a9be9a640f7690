package testutil

import (
	"context"
	"testing"

	"github.com/kbukum/diarizer/component"
)

// CleanupFunc stops a component started by Setup.
type CleanupFunc func() error

// Setup starts a component and returns a function that stops it.
func Setup(c component.Component) (CleanupFunc, error) {
	return SetupWithContext(context.Background(), c)
}

// SetupWithContext starts a component with a custom context.
func SetupWithContext(ctx context.Context, c component.Component) (CleanupFunc, error) {
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return func() error { return c.Stop(ctx) }, nil
}

// THelper binds component setup to a test's cleanup.
type THelper struct {
	t   testing.TB
	ctx context.Context
}

// T wraps a test for helper methods that fail it on error.
func T(t testing.TB) *THelper {
	return &THelper{t: t, ctx: context.Background()}
}

// WithContext returns a copy using ctx for Start and Stop.
func (h *THelper) WithContext(ctx context.Context) *THelper {
	return &THelper{t: h.t, ctx: ctx}
}

// Setup starts c, fails the test if it cannot, and stops it at cleanup.
func (h *THelper) Setup(c component.Component) {
	h.t.Helper()
	if err := c.Start(h.ctx); err != nil {
		h.t.Fatalf("start %s: %v", c.Name(), err)
	}
	h.t.Cleanup(func() {
		if err := c.Stop(context.Background()); err != nil {
			h.t.Errorf("stop %s: %v", c.Name(), err)
		}
	})
}
