package main

import (
	"github.com/kbukum/diarizer/audio"
	"github.com/kbukum/diarizer/config"
	"github.com/kbukum/diarizer/diarization"
	"github.com/kbukum/diarizer/download"
	"github.com/kbukum/diarizer/observability"
	"github.com/kbukum/diarizer/scratch"
	"github.com/kbukum/diarizer/server"
)

// Config is the full service configuration, loaded from config.yml, .env and
// environment overrides (SERVER_PORT for server.port).
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Download      download.Config      `yaml:"download" mapstructure:"download"`
	Audio         audio.Config         `yaml:"audio" mapstructure:"audio"`
	Scratch       scratch.Config       `yaml:"scratch" mapstructure:"scratch"`
	Diarization   diarization.Config   `yaml:"diarization" mapstructure:"diarization"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Download.ApplyDefaults()
	c.Audio.ApplyDefaults()
	c.Scratch.ApplyDefaults()
	c.Diarization.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section. Section errors carry their own prefix.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	for _, v := range []interface{ Validate() error }{
		&c.Server, &c.Download, &c.Audio, &c.Scratch, &c.Diarization, &c.Observability,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
