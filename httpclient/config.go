package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/diarizer/resilience"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultMaxResponseSize = 32 << 20
)

// Config configures the HTTP client.
type Config struct {
	// Name identifies the client in logs and breaker callbacks.
	Name string `yaml:"name" mapstructure:"name"`

	// BaseURL is prepended to relative request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds a buffered Do call end to end. For streams it bounds
	// connecting and receiving response headers only.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MaxResponseSize caps the bytes read from a response body. Defaults to 32MB.
	MaxResponseSize int64 `yaml:"max_response_size" mapstructure:"max_response_size"`

	// UserAgent is sent on every request when set.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// Auth configures default authentication applied to all requests.
	Auth *AuthConfig `yaml:"-" mapstructure:"-"`

	// Retry configures retry behavior for Do. Nil disables retry.
	Retry *resilience.RetryConfig `yaml:"-" mapstructure:"-"`

	// CircuitBreaker wraps Do calls. Nil disables it.
	CircuitBreaker *resilience.CircuitBreakerConfig `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxResponseSize <= 0 {
		c.MaxResponseSize = defaultMaxResponseSize
	}
	if c.Name == "" {
		c.Name = "http"
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.MaxResponseSize <= 0 {
		return fmt.Errorf("httpclient: max_response_size must be positive")
	}
	return nil
}

// DefaultRetryConfig returns a retry config that only retries retryable
// client errors.
func DefaultRetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryIf = IsRetryable
	return &cfg
}

// DefaultCircuitBreakerConfig returns a breaker config that ignores 4xx
// responses, which say nothing about the upstream's health.
func DefaultCircuitBreakerConfig(name string) *resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig(name)
	cfg.IsFailure = func(err error) bool {
		var e *Error
		if ok := asError(err, &e); ok {
			return e.Code == ErrCodeTimeout || e.Code == ErrCodeConnection || e.Code == ErrCodeServer
		}
		return err != nil
	}
	return &cfg
}
