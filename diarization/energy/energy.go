// Package energy implements a deterministic diarization.Provider from
// short-time RMS energy. Voiced regions become segments and a pause of at
// least SpeakerGap hands the turn to the next speaker label. It needs no
// model and is meant for development and tests.
package energy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kbukum/diarizer/component"
	"github.com/kbukum/diarizer/diarization"
	"github.com/kbukum/diarizer/logger"
)

// ProviderName is the registered name for the energy provider.
const ProviderName = "energy"

// Provider implements diarization.Provider with an RMS voice-activity heuristic.
type Provider struct {
	cfg diarization.EnergyConfig
	log *logger.Logger
}

var _ diarization.Provider = (*Provider)(nil)

// NewProvider creates an energy provider. cfg must have defaults applied.
func NewProvider(cfg diarization.EnergyConfig, log *logger.Logger) *Provider {
	return &Provider{cfg: cfg, log: log.WithComponent("diarization." + ProviderName)}
}

// Register adds the energy factory to reg.
func Register(reg *diarization.Registry, log *logger.Logger) {
	reg.RegisterFactory(ProviderName, func(cfg diarization.Config) (diarization.Provider, error) {
		return NewProvider(cfg.Energy, log), nil
	})
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// Device is always cpu.
func (p *Provider) Device() string { return diarization.DeviceCPU }

// Start logs the effective thresholds.
func (p *Provider) Start(_ context.Context) error {
	p.log.Info("energy diarizer ready", map[string]interface{}{
		"frame":       p.cfg.Frame.String(),
		"threshold":   p.cfg.Threshold,
		"speaker_gap": p.cfg.SpeakerGap.String(),
		"speakers":    p.cfg.Speakers,
	})
	return nil
}

// Stop is a no-op.
func (p *Provider) Stop(_ context.Context) error { return nil }

// Health is always healthy.
func (p *Provider) Health(_ context.Context) component.Health {
	return component.Health{Name: ProviderName, Status: component.StatusHealthy, Message: "device=cpu"}
}

// IsAvailable is always true.
func (p *Provider) IsAvailable(_ context.Context) bool { return true }

// Diarize segments the waveform. Silence yields no segments.
func (p *Provider) Diarize(ctx context.Context, req diarization.Request) (*diarization.Response, error) {
	w := req.Waveform
	if w == nil || w.SampleRate <= 0 {
		return nil, errors.New("energy: request has no waveform")
	}
	frameLen := int(p.cfg.Frame.Seconds() * float64(w.SampleRate))
	if frameLen < 1 {
		return nil, fmt.Errorf("energy: frame %s shorter than one sample at %d Hz", p.cfg.Frame, w.SampleRate)
	}

	mono := w.Mono()

	var regions []region
	var open *region
	for i := 0; i*frameLen < len(mono); i++ {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lo := i * frameLen
		hi := min(lo+frameLen, len(mono))
		voiced := rms(mono[lo:hi]) >= p.cfg.Threshold
		start := float64(lo) / float64(w.SampleRate)
		end := float64(hi) / float64(w.SampleRate)

		switch {
		case voiced && open == nil:
			regions = append(regions, region{start: start, end: end})
			open = &regions[len(regions)-1]
		case voiced:
			open.end = end
		default:
			open = nil
		}
	}

	segments := p.label(p.merge(regions))
	return &diarization.Response{
		Segments:    segments,
		NumSpeakers: diarization.CountSpeakers(segments),
	}, nil
}

type region struct {
	start, end float64
	gap        float64
}

// merge joins regions split by pauses shorter than MinSilence, drops
// regions shorter than MinSpeech and records the pause before each kept one.
func (p *Provider) merge(in []region) []region {
	minSilence := p.cfg.MinSilence.Seconds()
	minSpeech := p.cfg.MinSpeech.Seconds()

	var joined []region
	for _, r := range in {
		if n := len(joined); n > 0 && r.start-joined[n-1].end < minSilence {
			joined[n-1].end = r.end
			continue
		}
		joined = append(joined, r)
	}

	out := joined[:0]
	prevEnd := math.Inf(-1)
	for _, r := range joined {
		if r.end-r.start < minSpeech {
			continue
		}
		r.gap = r.start - prevEnd
		prevEnd = r.end
		out = append(out, r)
	}
	return out
}

// label assigns speakers, rotating to the next label after a long pause.
func (p *Provider) label(regions []region) []diarization.Segment {
	gap := p.cfg.SpeakerGap.Seconds()
	speakers := max(p.cfg.Speakers, 1)

	segments := make([]diarization.Segment, 0, len(regions))
	speaker := 0
	for i, r := range regions {
		if i > 0 && r.gap >= gap {
			speaker = (speaker + 1) % speakers
		}
		segments = append(segments, diarization.Segment{
			Speaker: fmt.Sprintf("SPEAKER_%02d", speaker),
			Start:   r.start,
			End:     r.end,
		})
	}
	return segments
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
