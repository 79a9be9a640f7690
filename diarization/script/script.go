// Package script implements diarization.Provider with a local Python
// worker that keeps a pyannote pipeline loaded for the process lifetime.
//
// Each call writes the waveform to a scratch WAV file and sends its path
// to the worker over a JSON-lines protocol.
package script

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/diarizer/audio"
	"github.com/kbukum/diarizer/component"
	"github.com/kbukum/diarizer/diarization"
	"github.com/kbukum/diarizer/logger"
	"github.com/kbukum/diarizer/process"
	"github.com/kbukum/diarizer/provider"
	"github.com/kbukum/diarizer/scratch"
)

// ProviderName is the registered name for the script provider.
const ProviderName = "script"

//go:embed worker.py
var workerSource string

// Provider implements diarization.Provider with a long-lived Python worker.
type Provider struct {
	cfg   diarization.Config
	store *scratch.Store
	log   *logger.Logger
	seq   atomic.Uint64

	// spawn serializes respawns so concurrent callers start one worker.
	spawn sync.Mutex

	mu      sync.RWMutex
	worker  *process.Worker
	call    provider.RequestResponse[job, reply]
	device  string
	stopped bool
}

var _ diarization.Provider = (*Provider)(nil)

type job struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

type readyLine struct {
	Event  string `json:"event"`
	Device string `json:"device"`
	Model  string `json:"model"`
}

type reply struct {
	ID       string                `json:"id"`
	Segments []diarization.Segment `json:"segments"`
	Error    string                `json:"error,omitempty"`
}

// NewProvider creates a script provider. Audio handed to the worker is
// staged in store. cfg must have defaults applied.
func NewProvider(cfg diarization.Config, store *scratch.Store, log *logger.Logger) *Provider {
	return &Provider{cfg: cfg, store: store, log: log.WithComponent("diarization." + ProviderName)}
}

func (p *Provider) newWorker() *process.Worker {
	args := []string{"-u", "-c", workerSource, p.cfg.Model, p.cfg.Device}
	if p.cfg.Script.Worker != "" {
		args = []string{p.cfg.Script.Worker, p.cfg.Model, p.cfg.Device}
	}
	return process.NewWorker(process.WorkerConfig{
		Name: ProviderName,
		Command: process.Command{
			Binary:      p.cfg.Script.Python,
			Args:        args,
			Env:         []string{diarization.TokenEnv + "=" + p.cfg.Token},
			GracePeriod: 10 * time.Second,
		},
		StartupTimeout: p.cfg.Script.StartupTimeout,
	}, p.log)
}

// Register adds the script factory to reg.
func Register(reg *diarization.Registry, store *scratch.Store, log *logger.Logger) {
	reg.RegisterFactory(ProviderName, func(cfg diarization.Config) (diarization.Provider, error) {
		return NewProvider(cfg, store, log), nil
	})
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// Device returns the device the worker reported when ready.
func (p *Provider) Device() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.device
}

// Start checks the interpreter, spawns the worker and waits for the
// pipeline to load.
func (p *Provider) Start(ctx context.Context) error {
	if p.cfg.Script.Worker == "" {
		if err := p.preflight(ctx); err != nil {
			return err
		}
	}

	p.spawn.Lock()
	defer p.spawn.Unlock()
	_, err := p.load(ctx)
	return err
}

// load spawns a fresh worker, waits for the pipeline and installs it.
// The caller holds p.spawn.
func (p *Provider) load(ctx context.Context) (provider.RequestResponse[job, reply], error) {
	start := time.Now()
	worker := p.newWorker()
	line, err := worker.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("script: load pipeline %s: %w", p.cfg.Model, err)
	}
	var ready readyLine
	if err := json.Unmarshal(line, &ready); err != nil || ready.Event != "ready" {
		worker.Kill()
		return nil, fmt.Errorf("script: unexpected ready line %q", line)
	}

	call := provider.Adapt[job, reply, []byte, []byte](worker, ProviderName, encodeJob, decodeReply)
	p.mu.Lock()
	p.worker = worker
	p.call = call
	p.device = ready.Device
	p.stopped = false
	p.mu.Unlock()

	p.log.Info("pipeline loaded", logger.MergeWithDuration(map[string]interface{}{
		"model":            p.cfg.Model,
		logger.FieldDevice: ready.Device,
	}, time.Since(start)))
	return call, nil
}

// ready returns the call path to a live worker, respawning it when the
// previous process crashed or was killed after a call timeout.
func (p *Provider) ready(ctx context.Context) (provider.RequestResponse[job, reply], error) {
	p.spawn.Lock()
	defer p.spawn.Unlock()

	p.mu.RLock()
	worker, call, stopped := p.worker, p.call, p.stopped
	p.mu.RUnlock()
	switch {
	case worker == nil || stopped:
		return nil, errors.New("script: worker not started")
	case worker.Alive():
		return call, nil
	}
	p.log.Warn("worker exited, respawning")
	return p.load(ctx)
}

// preflight fails fast with the interpreter's own message when the
// runtime dependencies are missing.
func (p *Provider) preflight(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	res, err := process.Run(ctx, process.Command{
		Binary: p.cfg.Script.Python,
		Args:   []string{"-c", "import torch, torchaudio, pyannote.audio; print(torch.__version__)"},
	})
	if err != nil {
		return fmt.Errorf("script: python runtime not usable: %w", err)
	}
	p.log.Debug("python runtime ok", map[string]interface{}{
		"torch":              string(res.Stdout),
		logger.FieldDuration: res.Duration.Milliseconds(),
	})
	return nil
}

// Stop shuts the worker down. A stopped provider does not respawn.
func (p *Provider) Stop(ctx context.Context) error {
	p.spawn.Lock()
	defer p.spawn.Unlock()
	p.mu.Lock()
	worker := p.worker
	p.stopped = true
	p.mu.Unlock()
	if worker == nil {
		return nil
	}
	return worker.Stop(ctx)
}

func (p *Provider) alive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.worker != nil && p.worker.Alive()
}

// Health reports whether the worker process is alive. A dead worker is
// respawned by the next Diarize call.
func (p *Provider) Health(_ context.Context) component.Health {
	if !p.alive() {
		return component.Health{Name: ProviderName, Status: component.StatusUnhealthy, Message: "worker not running"}
	}
	return component.Health{Name: ProviderName, Status: component.StatusHealthy, Message: "device=" + p.Device()}
}

// IsAvailable reports whether the worker process is alive.
func (p *Provider) IsAvailable(_ context.Context) bool {
	return p.alive()
}

// Diarize stages the waveform as WAV and runs the worker over it.
func (p *Provider) Diarize(ctx context.Context, req diarization.Request) (*diarization.Response, error) {
	if req.Waveform == nil {
		return nil, errors.New("script: request has no waveform")
	}
	call, err := p.ready(ctx)
	if err != nil {
		return nil, err
	}
	if p.cfg.Script.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Script.CallTimeout)
		defer cancel()
	}

	var r reply
	err = p.store.With(ctx, audio.FormatWAV.Ext(), func(ctx context.Context, f *scratch.File) error {
		if err := audio.EncodeWAV(f, req.Waveform); err != nil {
			return fmt.Errorf("script: stage audio: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("script: stage audio: %w", err)
		}
		j := job{ID: strconv.FormatUint(p.seq.Add(1), 10), Path: f.Path()}
		var err error
		if r, err = call.Execute(ctx, j); err != nil {
			return err
		}
		if r.ID != j.ID {
			// Replies are matched by order, so the stream is out of step.
			p.kill()
			return fmt.Errorf("script: reply id %q does not match job %q", r.ID, j.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if r.Error != "" {
		return nil, fmt.Errorf("script: %s", r.Error)
	}
	if r.Segments == nil {
		r.Segments = []diarization.Segment{}
	}
	return &diarization.Response{
		Segments:    r.Segments,
		NumSpeakers: diarization.CountSpeakers(r.Segments),
	}, nil
}

func (p *Provider) kill() {
	p.mu.RLock()
	worker := p.worker
	p.mu.RUnlock()
	p.log.Warn("worker out of step, killing it")
	worker.Kill()
}

func encodeJob(_ context.Context, j job) ([]byte, error) {
	return json.Marshal(j)
}

func decodeReply(_ context.Context, line []byte) (reply, error) {
	var r reply
	if err := json.Unmarshal(line, &r); err != nil {
		return reply{}, fmt.Errorf("script: malformed reply: %w", err)
	}
	return r, nil
}
