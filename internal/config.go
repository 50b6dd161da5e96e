package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mukti/internal/checksum"
	"github.com/starford/mukti/internal/redirect"
	"github.com/starford/mukti/internal/registry"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Registry  RegistryConfig    `yaml:"registry"`
	Redirects RedirectsConfig   `yaml:"redirects"`
	Checksums ChecksumsConfig   `yaml:"checksums"`
	HTTP      HTTPConfig        `yaml:"http"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	if err := c.Redirects.Validate(); err != nil {
		return fmt.Errorf("redirects: %w", err)
	}
	if err := c.Checksums.Validate(); err != nil {
		return fmt.Errorf("checksums: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatText, LogFormatJSON)),
	)
}

// RegistryConfig points at the releases JSON document.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the registry configuration.
func (c *RegistryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

var prefixPattern = regexp.MustCompile(`^/\S*$`)

// RedirectsConfig holds defaults for redirect generation. Aliases use the
// NAME=TARGET:KIND form accepted by --alias.
type RedirectsConfig struct {
	Flavor    string   `yaml:"flavor"`
	Prefix    string   `yaml:"prefix"`
	Status    int      `yaml:"status"`
	Versioned bool     `yaml:"versioned"`
	Aliases   []string `yaml:"aliases"`
}

// Validate validates the redirects configuration.
func (c *RedirectsConfig) Validate() error {
	flavors := make([]interface{}, 0, len(redirect.Flavors()))
	for _, f := range redirect.Flavors() {
		flavors = append(flavors, f)
	}
	statuses := make([]interface{}, 0, len(redirect.Statuses))
	for _, s := range redirect.Statuses {
		statuses = append(statuses, s)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Flavor, validation.Required, validation.In(flavors...)),
		validation.Field(&c.Prefix, validation.Required, validation.Match(prefixPattern)),
		validation.Field(&c.Status, validation.Required, validation.In(statuses...)),
	)
}

// ChecksumsConfig tunes archive downloads.
type ChecksumsConfig struct {
	Jobs          int           `yaml:"jobs"`
	Attempts      int           `yaml:"attempts"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// Validate validates the checksums configuration.
func (c *ChecksumsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Jobs, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.Attempts, validation.Required, validation.Min(1), validation.Max(10)),
		validation.Field(&c.Timeout, validation.Required),
	)
}

// FetcherConfig converts the section for checksum.NewFetcher.
func (c *ChecksumsConfig) FetcherConfig() checksum.FetcherConfig {
	return checksum.FetcherConfig{
		Jobs:          c.Jobs,
		Attempts:      c.Attempts,
		Timeout:       c.Timeout,
		RetryInterval: c.RetryInterval,
	}
}

// HTTPConfig holds HTTP server configuration. A non-empty Token requires
// "Authorization: Bearer <token>" on /api routes.
type HTTPConfig struct {
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
		},
		Registry: RegistryConfig{
			Path: registry.DefaultPath,
		},
		Redirects: RedirectsConfig{
			Flavor: redirect.DefaultFlavor,
			Prefix: redirect.DefaultPrefix,
			Status: redirect.DefaultStatus,
		},
		Checksums: ChecksumsConfig{
			Jobs:          4,
			Attempts:      3,
			Timeout:       5 * time.Minute,
			RetryInterval: 500 * time.Millisecond,
		},
		HTTP: HTTPConfig{
			Port: 8080,
		},
	}
}
