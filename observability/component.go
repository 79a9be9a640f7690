package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/diarizer/component"
)

// Component installs the configured exporters on Start and flushes them on Stop.
type Component struct {
	cfg         Config
	service     string
	version     string
	environment string

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

var _ component.Component = (*Component)(nil)

// New creates the observability component.
func New(cfg Config, service, version, environment string) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, service: service, version: version, environment: environment}
}

// Name returns the component name.
func (c *Component) Name() string { return "observability" }

// Start initializes tracing and metrics export when enabled.
func (c *Component) Start(ctx context.Context) error {
	if c.cfg.Tracing.Enabled {
		tp, err := InitTracer(ctx, TracerConfig{
			ServiceName:    c.service,
			ServiceVersion: c.version,
			Environment:    c.environment,
			Endpoint:       c.cfg.Tracing.Endpoint,
			Insecure:       c.cfg.Tracing.Insecure,
			SampleRate:     c.cfg.Tracing.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("observability: %w", err)
		}
		c.tp = tp
	}
	if c.cfg.Metrics.Enabled {
		mp, err := InitMeter(ctx, MeterConfig{
			ServiceName:    c.service,
			ServiceVersion: c.version,
			Environment:    c.environment,
			Endpoint:       c.cfg.Metrics.Endpoint,
			Insecure:       c.cfg.Metrics.Insecure,
			Interval:       c.cfg.Metrics.Interval,
		})
		if err != nil {
			return fmt.Errorf("observability: %w", err)
		}
		c.mp = mp
	}
	return nil
}

// Stop flushes and shuts down the providers started by Start.
func (c *Component) Stop(ctx context.Context) error {
	var errs []error
	if c.tp != nil {
		errs = append(errs, c.tp.Shutdown(ctx))
	}
	if c.mp != nil {
		errs = append(errs, c.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Health reports which exporters are active.
func (c *Component) Health(_ context.Context) component.Health {
	return component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
		Message: fmt.Sprintf("tracing=%t metrics=%t",
			c.tp != nil, c.mp != nil),
	}
}
