package scratch

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPrefix is prepended to every scratch file name.
const DefaultPrefix = "diarizer-"

// Config holds scratch directory configuration.
type Config struct {
	// Dir is the directory temp files are created in. Empty uses os.TempDir().
	Dir string `yaml:"dir" mapstructure:"dir"`

	// Prefix is prepended to generated file names; used by the startup sweep
	// to recognize files it owns.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`

	// SweepAge is the minimum age of leftover files removed at startup.
	// Zero disables the sweep.
	SweepAge time.Duration `yaml:"sweep_age" mapstructure:"sweep_age"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if strings.ContainsAny(c.Prefix, `/\*`) {
		return fmt.Errorf("scratch: prefix %q must not contain path separators or '*'", c.Prefix)
	}
	if c.SweepAge < 0 {
		return fmt.Errorf("scratch: sweep_age must not be negative")
	}
	return nil
}
