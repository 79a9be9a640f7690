// Command diarizer serves speaker diarization over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kbukum/diarizer/analysis"
	"github.com/kbukum/diarizer/api"
	"github.com/kbukum/diarizer/audio"
	"github.com/kbukum/diarizer/bootstrap"
	"github.com/kbukum/diarizer/config"
	"github.com/kbukum/diarizer/diarization"
	"github.com/kbukum/diarizer/diarization/energy"
	"github.com/kbukum/diarizer/diarization/pyannote"
	"github.com/kbukum/diarizer/diarization/script"
	"github.com/kbukum/diarizer/download"
	"github.com/kbukum/diarizer/logger"
	"github.com/kbukum/diarizer/observability"
	"github.com/kbukum/diarizer/scratch"
	"github.com/kbukum/diarizer/server"
	"github.com/kbukum/diarizer/server/endpoint"
)

const serviceName = "diarizer"

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg); err != nil {
		return err
	}
	cfg.ApplyDefaults()

	// Shutdown waits for in-flight analyses up to the server write timeout.
	app, err := bootstrap.NewApp(&cfg,
		bootstrap.WithGracefulTimeout(time.Duration(cfg.Server.WriteTimeout)*time.Second))
	if err != nil {
		return err
	}
	log := app.Logger

	if err := app.RegisterComponent(observability.New(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment)); err != nil {
		return err
	}
	metrics, err := observability.NewMetrics(observability.Meter(serviceName))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	store, err := scratch.New(cfg.Scratch, log)
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(store); err != nil {
		return err
	}

	model, err := newModel(cfg.Diarization, store, metrics, log)
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(model); err != nil {
		return err
	}
	trackBackend(app.Summary, cfg.Diarization)

	downloader, err := download.New(cfg.Download, log)
	if err != nil {
		return err
	}
	svc := analysis.NewService(analysis.Deps{
		Downloader: downloader,
		Store:      store,
		Validator:  audio.NewValidator(cfg.Audio),
		Model:      model,
		Metrics:    metrics,
		Logger:     log,
	})

	app.OnConfigure(func(_ context.Context, a *bootstrap.App[*Config]) error {
		srv := server.New(a.Cfg.Server, a.Logger)
		srv.ApplyDefaults(serviceName, server.Endpoints{
			Checker: a.Components.HealthAll,
			Info: func(context.Context) map[string]any {
				return map[string]any{
					"provider": model.Name(),
					"model":    a.Cfg.Diarization.Model,
					"device":   model.Device(),
				}
			},
			Stats: []endpoint.StatsFunc{
				func() (string, any) { return "diarization", model.Stats() },
			},
		})
		api.NewHandler(svc, a.Logger).Register(srv.GinEngine().Group("/", srv.Auth()))

		a.Summary.TrackBusinessComponent("analysis", "service", "download", "scratch", "diarization")
		a.Summary.TrackBusinessComponent("api", "handler", "analysis")
		return a.RegisterComponent(server.NewComponent(srv))
	})

	app.OnReady(func(context.Context) error {
		log.Info("Diarization model ready", map[string]interface{}{
			logger.FieldProvider: model.Name(),
			logger.FieldDevice:   model.Device(),
		})
		return nil
	})

	return app.Run(ctx)
}

// newModel builds the configured backend behind exclusive access.
func newModel(cfg diarization.Config, store *scratch.Store, metrics *observability.Metrics, log *logger.Logger) (*diarization.Exclusive, error) {
	registry := diarization.NewRegistry()
	pyannote.Register(registry, log)
	script.Register(registry, store, log)
	energy.Register(registry, log)

	backend, err := registry.Create(cfg.Provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("diarization: %w", err)
	}
	return diarization.NewExclusive(backend, cfg, metrics, log), nil
}

func trackBackend(s *bootstrap.Summary, cfg diarization.Config) {
	switch cfg.Provider {
	case pyannote.ProviderName:
		s.TrackClient("pyannote sidecar", cfg.Pyannote.BaseURL, "http")
	case script.ProviderName:
		target := cfg.Script.Worker
		if target == "" {
			target = "embedded worker"
		}
		s.TrackClient("python worker", cfg.Script.Python+" "+target, "process")
	}
}
