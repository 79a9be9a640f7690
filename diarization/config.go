package diarization

import (
	"fmt"
	"os"
	"slices"
	"time"
)

// TokenEnv is the environment variable holding the model hub token.
const TokenEnv = "HUGGINGFACE_TOKEN"

// Device names accepted by Config.Device.
const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
	DeviceMPS  = "mps"
)

var devices = []string{DeviceAuto, DeviceCPU, DeviceCUDA, DeviceMPS}

// tokenProviders need a hub token to fetch the pretrained pipeline.
var tokenProviders = []string{"pyannote", "script"}

// Config selects and configures the diarization backend.
type Config struct {
	// Provider is the backend name: pyannote, script or energy.
	Provider string `yaml:"provider" mapstructure:"provider"`
	// Model is the pretrained pipeline id.
	Model string `yaml:"model" mapstructure:"model"`
	// Token authenticates against the model hub. Falls back to $HUGGINGFACE_TOKEN.
	Token string `yaml:"token" mapstructure:"token"`
	// Device is auto, cpu, cuda or mps.
	Device string `yaml:"device" mapstructure:"device"`
	// MaxConcurrent is the number of model calls allowed at once.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	// QueueTimeout bounds how long a request waits for the model.
	QueueTimeout time.Duration `yaml:"queue_timeout" mapstructure:"queue_timeout"`

	Pyannote PyannoteConfig `yaml:"pyannote" mapstructure:"pyannote"`
	Script   ScriptConfig   `yaml:"script" mapstructure:"script"`
	Energy   EnergyConfig   `yaml:"energy" mapstructure:"energy"`
}

// PyannoteConfig configures the HTTP sidecar backend.
type PyannoteConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Timeout bounds a single sidecar call, including pipeline load.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// LoadAttempts is how often Start tries to reach a sidecar that is still booting.
	LoadAttempts int `yaml:"load_attempts" mapstructure:"load_attempts"`
	// APIKey, when set, is sent to the sidecar as a bearer token.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// ScriptConfig configures the local Python worker backend.
type ScriptConfig struct {
	// Python is the interpreter used to run the worker.
	Python string `yaml:"python" mapstructure:"python"`
	// Worker is a worker script path run instead of the built-in one.
	Worker string `yaml:"worker" mapstructure:"worker"`
	// StartupTimeout bounds model loading at startup.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout"`
	// CallTimeout bounds a single diarization call. Zero means unbounded.
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
}

// EnergyConfig configures the heuristic backend.
type EnergyConfig struct {
	// Frame is the analysis window.
	Frame time.Duration `yaml:"frame" mapstructure:"frame"`
	// Threshold is the RMS level above which a frame counts as speech.
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	// MinSpeech drops voiced regions shorter than this.
	MinSpeech time.Duration `yaml:"min_speech" mapstructure:"min_speech"`
	// MinSilence merges regions separated by shorter pauses.
	MinSilence time.Duration `yaml:"min_silence" mapstructure:"min_silence"`
	// SpeakerGap is the pause length that hands the turn to the next speaker.
	SpeakerGap time.Duration `yaml:"speaker_gap" mapstructure:"speaker_gap"`
	// Speakers is the number of labels turns rotate through.
	Speakers int `yaml:"speakers" mapstructure:"speakers"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "pyannote"
	}
	if c.Model == "" {
		c.Model = "pyannote/speaker-diarization-3.1"
	}
	if c.Token == "" {
		c.Token = os.Getenv(TokenEnv)
	}
	if c.Device == "" {
		c.Device = DeviceAuto
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 1
	}
	if c.QueueTimeout <= 0 {
		c.QueueTimeout = 10 * time.Minute
	}

	if c.Pyannote.BaseURL == "" {
		c.Pyannote.BaseURL = "http://localhost:8388"
	}
	if c.Pyannote.Timeout <= 0 {
		c.Pyannote.Timeout = 15 * time.Minute
	}
	if c.Pyannote.LoadAttempts <= 0 {
		c.Pyannote.LoadAttempts = 5
	}

	if c.Script.Python == "" {
		c.Script.Python = "python3"
	}
	if c.Script.StartupTimeout <= 0 {
		c.Script.StartupTimeout = 5 * time.Minute
	}

	if c.Energy.Frame <= 0 {
		c.Energy.Frame = 30 * time.Millisecond
	}
	if c.Energy.Threshold <= 0 {
		c.Energy.Threshold = 0.01
	}
	if c.Energy.MinSpeech <= 0 {
		c.Energy.MinSpeech = 200 * time.Millisecond
	}
	if c.Energy.MinSilence <= 0 {
		c.Energy.MinSilence = 300 * time.Millisecond
	}
	if c.Energy.SpeakerGap <= 0 {
		c.Energy.SpeakerGap = 1500 * time.Millisecond
	}
	if c.Energy.Speakers <= 0 {
		c.Energy.Speakers = 2
	}
}

// Validate checks the configuration. A model-backed provider without a
// token is a startup error.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("diarization: provider is required")
	}
	if !slices.Contains(devices, c.Device) {
		return fmt.Errorf("diarization: device %q must be one of %v", c.Device, devices)
	}
	if slices.Contains(tokenProviders, c.Provider) && c.Token == "" {
		return fmt.Errorf("diarization: %s is not set (required by provider %q)", TokenEnv, c.Provider)
	}
	if c.Energy.MinSilence > c.Energy.SpeakerGap {
		return fmt.Errorf("diarization: energy.min_silence must not exceed energy.speaker_gap")
	}
	return nil
}
