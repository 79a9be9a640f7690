package audio

import (
	"errors"
	"fmt"
	"time"

	apperrors "github.com/kbukum/diarizer/errors"
)

// DefaultMinDuration is the shortest audio accepted for analysis.
const DefaultMinDuration = time.Second

// Config holds audio validation settings.
type Config struct {
	// MinDuration is the shortest accepted clip.
	MinDuration time.Duration `yaml:"min_duration" mapstructure:"min_duration"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.MinDuration <= 0 {
		c.MinDuration = DefaultMinDuration
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.MinDuration <= 0 {
		return fmt.Errorf("audio: min_duration must be positive")
	}
	return nil
}

// Validator checks decoded waveforms before diarization.
type Validator struct {
	minDuration time.Duration
}

// NewValidator creates a Validator from config.
func NewValidator(cfg Config) *Validator {
	cfg.ApplyDefaults()
	return &Validator{minDuration: cfg.MinDuration}
}

// MinDuration returns the configured floor.
func (v *Validator) MinDuration() time.Duration { return v.minDuration }

// Validate returns INVALID_AUDIO for a waveform without a sample rate and
// AUDIO_TOO_SHORT for one below the floor.
func (v *Validator) Validate(w *Waveform) error {
	if w == nil || w.SampleRate <= 0 || w.Channels() == 0 {
		return apperrors.InvalidAudio(errors.New("missing sample rate or channels"))
	}
	if w.Seconds() < v.minDuration.Seconds() {
		return apperrors.AudioTooShort(w.Seconds(), v.minDuration.Seconds())
	}
	return nil
}
