package provider

import "context"

// RequestResponse represents a provider that takes one input and returns one output.
// This covers HTTP sidecar calls and request/reply subprocess workers.
type RequestResponse[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (O, error)
}

// Func adapts a plain function to RequestResponse.
type Func[I, O any] struct {
	ProviderName string
	Available    func(ctx context.Context) bool
	Fn           func(ctx context.Context, input I) (O, error)
}

// Name returns ProviderName.
func (f *Func[I, O]) Name() string { return f.ProviderName }

// IsAvailable calls Available, defaulting to true.
func (f *Func[I, O]) IsAvailable(ctx context.Context) bool {
	if f.Available == nil {
		return true
	}
	return f.Available(ctx)
}

// Execute calls Fn.
func (f *Func[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return f.Fn(ctx, input)
}
