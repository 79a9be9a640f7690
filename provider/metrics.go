package provider

import (
	"context"
	"time"

	"github.com/kbukum/diarizer/observability"
)

// WithMetrics returns a Middleware that records operation count, duration
// and errors for each Execute call. A nil metrics is a no-op.
func WithMetrics[I, O any](metrics *observability.Metrics, service string) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &metricsRR[I, O]{inner: inner, metrics: metrics, service: service}
	}
}

type metricsRR[I, O any] struct {
	inner   RequestResponse[I, O]
	metrics *observability.Metrics
	service string
}

func (m *metricsRR[I, O]) Name() string                         { return m.inner.Name() }
func (m *metricsRR[I, O]) IsAvailable(ctx context.Context) bool { return m.inner.IsAvailable(ctx) }

func (m *metricsRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	start := time.Now()
	output, err := m.inner.Execute(ctx, input)
	if m.metrics == nil {
		return output, err
	}

	status := "ok"
	if err != nil {
		status = "error"
		m.metrics.RecordError(ctx, "provider_execute", m.inner.Name())
	}
	m.metrics.RecordOperation(ctx, m.service, m.inner.Name()+".execute", status, time.Since(start))
	return output, err
}
