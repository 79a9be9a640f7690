package diarization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/diarizer/component"
	"github.com/kbukum/diarizer/logger"
	"github.com/kbukum/diarizer/observability"
	"github.com/kbukum/diarizer/provider"
	"github.com/kbukum/diarizer/resilience"
)

// ErrModelBusy is returned when no model slot frees up within the queue timeout.
var ErrModelBusy = errors.New("model busy")

// Exclusive guards a backend with a bulkhead so that at most
// MaxConcurrent calls reach the model at once. Other callers queue for up
// to QueueTimeout. Lifecycle calls go straight to the backend.
type Exclusive struct {
	Provider
	call    provider.RequestResponse[Request, *Response]
	guard   *provider.Resilient[Request, *Response]
	waitFor time.Duration
	model   string
}

var (
	_ Provider              = (*Exclusive)(nil)
	_ component.Describable = (*Exclusive)(nil)
)

// NewExclusive wraps p. metrics may be nil.
func NewExclusive(p Provider, cfg Config, metrics *observability.Metrics, log *logger.Logger) *Exclusive {
	log = log.WithComponent("diarization")
	name := p.Name()

	guard := provider.WithResilience[Request, *Response](asRequestResponse(p), provider.ResilienceConfig{
		Bulkhead: &resilience.BulkheadConfig{
			Name:          name,
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       cfg.QueueTimeout,
			OnAcquire: func(_ string, waited time.Duration) {
				if metrics != nil {
					metrics.RecordQueueWait(context.Background(), name, waited)
				}
				if waited > time.Second {
					log.Info("model slot acquired after queueing", logger.MergeWithDuration(
						map[string]interface{}{logger.FieldProvider: name}, waited))
				}
			},
			OnReject: func(_ string, err error) {
				log.Warn("model slot not acquired", map[string]interface{}{
					logger.FieldProvider: name,
					logger.FieldError:    err.Error(),
				})
			},
		},
	})

	call := provider.Chain(
		provider.WithLogging[Request, *Response](log),
		provider.WithMetrics[Request, *Response](metrics, "diarizer"),
		provider.WithTracing[Request, *Response]("diarization"),
	)(guard)

	return &Exclusive{
		Provider: p,
		call:     call,
		guard:    guard,
		waitFor:  cfg.QueueTimeout,
		model:    cfg.Model,
	}
}

// Diarize queues for a model slot and runs the backend.
func (e *Exclusive) Diarize(ctx context.Context, req Request) (*Response, error) {
	resp, err := e.call.Execute(ctx, req)
	if errors.Is(err, resilience.ErrBulkheadTimeout) || errors.Is(err, resilience.ErrBulkheadFull) {
		return nil, fmt.Errorf("%w: no slot free within %s", ErrModelBusy, e.waitFor)
	}
	return resp, err
}

// Health reports the backend's health with queue occupancy appended.
func (e *Exclusive) Health(ctx context.Context) component.Health {
	h := e.Provider.Health(ctx)
	stats := e.guard.State().Bulkhead().Stats()
	queue := fmt.Sprintf("in_use=%d/%d waiting=%d", stats.InUse, stats.MaxConcurrent, stats.Waiting)
	if h.Message == "" {
		h.Message = queue
	} else {
		h.Message += " " + queue
	}
	return h
}

// Describe reports backend, model and device for the startup summary.
func (e *Exclusive) Describe() component.Description {
	details := e.Provider.Name()
	if e.model != "" {
		details += " " + e.model
	}
	return component.Description{
		Name:    "Diarization",
		Type:    "diarization",
		Details: fmt.Sprintf("%s on %s (max_concurrent=%d)", details, e.Provider.Device(), e.Stats().MaxConcurrent),
	}
}

// Stats returns the current bulkhead occupancy.
func (e *Exclusive) Stats() resilience.BulkheadStats {
	return e.guard.State().Bulkhead().Stats()
}

// asRequestResponse exposes Diarize through the generic provider middleware.
func asRequestResponse(p Provider) provider.RequestResponse[Request, *Response] {
	return &provider.Func[Request, *Response]{
		ProviderName: p.Name(),
		Available:    p.IsAvailable,
		Fn:           p.Diarize,
	}
}
