// Package pyannote implements diarization.Provider against an HTTP sidecar
// hosting a pyannote.audio pipeline.
//
// Sidecar API:
//
//	POST /pipeline/load  {"model","token","device"} -> {"model","device"}
//	POST /diarize        multipart "audio" (WAV)    -> {"segments":[...],"num_speakers"}
//	GET  /health                                    -> {"status","loaded","device"}
package pyannote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/diarizer/audio"
	"github.com/kbukum/diarizer/component"
	"github.com/kbukum/diarizer/diarization"
	"github.com/kbukum/diarizer/httpclient"
	"github.com/kbukum/diarizer/logger"
	"github.com/kbukum/diarizer/resilience"
	"github.com/kbukum/diarizer/util"
)

// ProviderName is the registered name for the Pyannote provider.
const ProviderName = "pyannote"

const (
	healthTimeout   = 5 * time.Second
	maxResponseSize = 8 << 20
)

// Provider implements diarization.Provider using the Pyannote HTTP sidecar.
type Provider struct {
	cfg    diarization.Config
	client *httpclient.Client
	log    *logger.Logger

	mu     sync.RWMutex
	device string
	loaded bool
}

var _ diarization.Provider = (*Provider)(nil)

// NewProvider creates a Pyannote provider. cfg must have defaults applied.
func NewProvider(cfg diarization.Config, log *logger.Logger) (*Provider, error) {
	client, err := httpclient.New(httpclient.Config{
		Name:            ProviderName,
		BaseURL:         cfg.Pyannote.BaseURL,
		Timeout:         cfg.Pyannote.Timeout,
		MaxResponseSize: maxResponseSize,
		UserAgent:       "diarizer",
		CircuitBreaker:  httpclient.DefaultCircuitBreakerConfig(ProviderName),
		Auth:            httpclient.BearerAuth(cfg.Pyannote.APIKey),
	})
	if err != nil {
		return nil, fmt.Errorf("pyannote: %w", err)
	}
	return &Provider{
		cfg:    cfg,
		client: client,
		log:    log.WithComponent("diarization." + ProviderName),
	}, nil
}

// Register adds the Pyannote factory to reg.
func Register(reg *diarization.Registry, log *logger.Logger) {
	reg.RegisterFactory(ProviderName, func(cfg diarization.Config) (diarization.Provider, error) {
		return NewProvider(cfg, log)
	})
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// Device returns the device reported by the sidecar after loading.
func (p *Provider) Device() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.device
}

// Start asks the sidecar to load the pipeline. Connection failures are
// retried while the sidecar boots; a rejected load fails immediately.
func (p *Provider) Start(ctx context.Context) error {
	p.log.Info("loading pipeline", map[string]interface{}{
		"model":            p.cfg.Model,
		"token":            util.MaskSecret(p.cfg.Token, 4),
		logger.FieldDevice: p.cfg.Device,
		"sidecar":          p.cfg.Pyannote.BaseURL,
	})

	retry := resilience.RetryConfig{
		MaxAttempts:    p.cfg.Pyannote.LoadAttempts,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2,
		RetryIf:        httpclient.IsConnection,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			p.log.Warn("sidecar not reachable, retrying", map[string]interface{}{
				"attempt":         attempt,
				"backoff":         backoff.String(),
				logger.FieldError: err.Error(),
			})
		},
	}

	start := time.Now()
	resp, err := resilience.Retry(ctx, retry, func() (*httpclient.Response, error) {
		return p.client.Do(ctx, httpclient.Request{
			Method: "POST",
			Path:   "/pipeline/load",
			Body: loadRequest{
				Model:  p.cfg.Model,
				Token:  p.cfg.Token,
				Device: p.cfg.Device,
			},
		})
	})
	if err != nil {
		return fmt.Errorf("pyannote: load pipeline %s: %w", p.cfg.Model, sidecarError(err))
	}

	var loaded loadResponse
	if err := json.Unmarshal(resp.Body, &loaded); err != nil {
		return fmt.Errorf("pyannote: decode load response: %w", err)
	}
	if loaded.Error != "" {
		return fmt.Errorf("pyannote: load pipeline %s: %s", p.cfg.Model, loaded.Error)
	}
	device := loaded.Device
	if device == "" {
		device = p.cfg.Device
	}

	p.mu.Lock()
	p.device = device
	p.loaded = true
	p.mu.Unlock()

	p.log.Info("pipeline loaded", logger.MergeWithDuration(map[string]interface{}{
		"model":            p.cfg.Model,
		logger.FieldDevice: device,
	}, time.Since(start)))
	return nil
}

// Stop is a no-op; the sidecar owns the pipeline.
func (p *Provider) Stop(_ context.Context) error {
	p.mu.Lock()
	p.loaded = false
	p.mu.Unlock()
	return nil
}

// Health checks the sidecar's /health endpoint.
func (p *Provider) Health(ctx context.Context) component.Health {
	h := component.Health{Name: ProviderName, Status: component.StatusHealthy}

	if p.client.CircuitState() == resilience.StateOpen {
		h.Status = component.StatusUnhealthy
		h.Message = "circuit open"
		return h
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	resp, err := p.client.Do(ctx, httpclient.Request{Method: "GET", Path: "/health"})
	if err != nil {
		h.Status = component.StatusUnhealthy
		h.Message = err.Error()
		return h
	}
	var status healthResponse
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		h.Status = component.StatusDegraded
		h.Message = "unreadable health response"
		return h
	}
	if !status.Loaded {
		h.Status = component.StatusUnhealthy
		h.Message = "pipeline not loaded"
		return h
	}
	h.Message = "device=" + p.Device()
	return h
}

// IsAvailable reports whether the pipeline is loaded and the sidecar healthy.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	p.mu.RLock()
	loaded := p.loaded
	p.mu.RUnlock()
	return loaded && p.Health(ctx).Status == component.StatusHealthy
}

// Diarize WAV-encodes the waveform and posts it to the sidecar.
func (p *Provider) Diarize(ctx context.Context, req diarization.Request) (*diarization.Response, error) {
	if req.Waveform == nil {
		return nil, errors.New("pyannote: request has no waveform")
	}
	wav, err := audio.WAVBytes(req.Waveform)
	if err != nil {
		return nil, fmt.Errorf("pyannote: encode audio: %w", err)
	}

	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: "POST",
		Path:   "/diarize",
		Body: &httpclient.MultipartBody{
			Files: []httpclient.FileField{{
				FieldName:   "audio",
				FileName:    "audio.wav",
				ContentType: audio.FormatWAV.MIME(),
				Data:        wav,
			}},
		},
	})
	if err != nil {
		return nil, sidecarError(err)
	}

	var result pyannoteResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("decode diarization response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("diarization error: %s", result.Error)
	}
	return toDiarizationResponse(&result), nil
}

// sidecarError prefers the sidecar's own error message over the bare status.
func sidecarError(err error) error {
	var httpErr *httpclient.Error
	if !errors.As(err, &httpErr) || len(httpErr.Body) == 0 {
		return err
	}
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(httpErr.Body, &body) != nil {
		return err
	}
	msg := body.Error
	if msg == "" {
		msg = body.Detail
	}
	if msg == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, msg)
}

// --- internal Pyannote API types ---

type loadRequest struct {
	Model  string `json:"model"`
	Token  string `json:"token"`
	Device string `json:"device"`
}

type loadResponse struct {
	Model  string `json:"model"`
	Device string `json:"device"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
	Loaded bool   `json:"loaded"`
	Device string `json:"device"`
}

type pyannoteResponse struct {
	Segments    []pyannoteSegment `json:"segments"`
	NumSpeakers int               `json:"num_speakers"`
	Error       string            `json:"error,omitempty"`
}

type pyannoteSegment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

func toDiarizationResponse(resp *pyannoteResponse) *diarization.Response {
	segments := make([]diarization.Segment, len(resp.Segments))
	for i, seg := range resp.Segments {
		segments[i] = diarization.Segment{
			Speaker: seg.SpeakerID,
			Start:   seg.StartTime,
			End:     seg.EndTime,
		}
	}
	n := resp.NumSpeakers
	if n == 0 {
		n = diarization.CountSpeakers(segments)
	}
	return &diarization.Response{Segments: segments, NumSpeakers: n}
}
