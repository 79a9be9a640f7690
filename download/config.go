package download

import (
	"fmt"
	"time"

	"github.com/kbukum/diarizer/util"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxDuration = 5 * time.Minute
	DefaultMaxSize     = "512MB"
	DefaultUserAgent   = "diarizer"
)

// Config configures the downloader.
type Config struct {
	// Timeout bounds connect, response headers and each idle gap in the body.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MaxDuration caps the whole transfer. Negative disables the cap.
	MaxDuration time.Duration `yaml:"max_duration" mapstructure:"max_duration"`

	// MaxSize caps the downloaded bytes, e.g. "512MB".
	MaxSize string `yaml:"max_size" mapstructure:"max_size"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.MaxSize == "" {
		c.MaxSize = DefaultMaxSize
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("download: timeout must be positive")
	}
	if c.MaxDuration > 0 && c.MaxDuration < c.Timeout {
		return fmt.Errorf("download: max_duration (%s) must not be shorter than timeout (%s)", c.MaxDuration, c.Timeout)
	}
	if c.MaxSizeBytes() <= 0 {
		return fmt.Errorf("download: invalid max_size %q", c.MaxSize)
	}
	return nil
}

// MaxSizeBytes returns MaxSize parsed to bytes, or 0 when unparsable.
func (c *Config) MaxSizeBytes() int64 {
	return util.ParseSize(c.MaxSize, 0)
}
