package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/mukti/pkg/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
}

func TestApplicationConfig_EmptyFormatDefaultsText(t *testing.T) {
	cfg := ApplicationConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty format should default to text: %v", err)
	}
	if cfg.LogFormat != LogFormatText {
		t.Errorf("format = %q, want %q", cfg.LogFormat, LogFormatText)
	}
}

func TestApplicationConfig_InvalidFormat(t *testing.T) {
	cfg := ApplicationConfig{LogFormat: "xml"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid format should fail validation")
	}
}

func TestRedirectsConfig_Invalid(t *testing.T) {
	for name, mutate := range map[string]func(*RedirectsConfig){
		"flavor": func(c *RedirectsConfig) { c.Flavor = "apache" },
		"prefix": func(c *RedirectsConfig) { c.Prefix = "download" },
		"status": func(c *RedirectsConfig) { c.Status = 200 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			mutate(&cfg.Redirects)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.HasPrefix(err.Error(), "redirects:") {
				t.Errorf("error should name the section: %v", err)
			}
		})
	}
}

func TestChecksumsConfig_Invalid(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Checksums.Jobs = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero jobs should fail validation")
	}
}

func TestFullConfig_LoadFromYAML(t *testing.T) {
	t.Setenv("MUKTI_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "mukti.yaml")
	body := `app:
  log_level: debug
  log_format: json
registry:
  path: site/releases.json
redirects:
  flavor: netlify-toml
  status: 302
  versioned: true
  aliases:
    - linux=x86_64-unknown-linux-gnu:tar.gz
checksums:
  jobs: 8
  timeout: 30s
http:
  port: 9090
  token: ${MUKTI_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.LoadOptional(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.LogFormat != LogFormatJSON || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Redirects.Flavor != "netlify-toml" || cfg.Redirects.Prefix != "/" || len(cfg.Redirects.Aliases) != 1 {
		t.Errorf("redirects = %+v", cfg.Redirects)
	}
	if cfg.Checksums.Jobs != 8 || cfg.Checksums.Attempts != 3 || cfg.Checksums.Timeout != 30*time.Second {
		t.Errorf("checksums = %+v", cfg.Checksums)
	}
	if cfg.HTTP.Address() != ":9090" || cfg.HTTP.Token != "s3cret" {
		t.Errorf("http = %+v", cfg.HTTP)
	}
}
