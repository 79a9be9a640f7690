package bootstrap

import (
	"github.com/kbukum/diarizer/config"
)

// Config is the constraint for an application's configuration. A struct
// that embeds config.ServiceConfig gets GetServiceConfig for free and
// overrides ApplyDefaults and Validate to cover its own sections:
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Server      server.Config      `mapstructure:"server"`
//	    Diarization diarization.Config `mapstructure:"diarization"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
