package internal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/mukti/internal/apperr"
	"github.com/starford/mukti/internal/releaseservice"
)

func testOptions(t *testing.T) (*Config, *bytes.Buffer, []Option) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Registry.Path = filepath.Join(t.TempDir(), "releases.json")
	var out bytes.Buffer
	return cfg, &out, []Option{
		WithConfig(cfg),
		WithOutput(&out, io.Discard),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Show(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestAddShowAndGenerate(t *testing.T) {
	cfg, out, opts := testOptions(t)
	ctx := context.Background()

	for _, v := range []string{"1.0.0", "1.1.0"} {
		err := AddRelease(ctx, releaseservice.AddReleaseRequest{
			Version:       v,
			ArchivePrefix: "https://ex/dl/" + v,
			Archives:      []string{"linux:tar.gz=app-linux.tar.gz"},
		}, opts...)
		if err != nil {
			t.Fatalf("AddRelease(%s): %v", v, err)
		}
	}
	if err := YankRelease(ctx, "1.1.0", opts...); err != nil {
		t.Fatalf("YankRelease: %v", err)
	}

	if err := Show(ctx, opts...); err != nil {
		t.Fatalf("Show: %v", err)
	}
	text := out.String()
	for _, want := range []string{"VERSION", "1.0.0", "yanked", "0/1", "2 releases in " + cfg.Registry.Path} {
		if !strings.Contains(text, want) {
			t.Errorf("show output missing %q:\n%s", want, text)
		}
	}

	cfg.Redirects.Aliases = []string{"linux=linux:tar.gz"}
	site := filepath.Join(t.TempDir(), "site")
	if err := GenerateRedirects(ctx, "", site, opts...); err != nil {
		t.Fatalf("GenerateRedirects: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(site, "_redirects"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "/linux https://ex/dl/1.0.0/app-linux.tar.gz 301") {
		t.Errorf("yanked 1.1.0 should be skipped:\n%s", data)
	}
}

func TestGenerateUnresolvedAlias(t *testing.T) {
	cfg, _, opts := testOptions(t)
	ctx := context.Background()
	err := AddRelease(ctx, releaseservice.AddReleaseRequest{
		Version:       "1.0.0",
		ArchivePrefix: "https://ex/dl",
		Archives:      []string{"linux:tar.gz=app-linux.tar.gz"},
	}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Redirects.Aliases = []string{"win=windows:zip"}
	err = GenerateRedirects(ctx, "", filepath.Join(t.TempDir(), "site"), opts...)
	if !errors.Is(err, apperr.ErrUnresolvedAlias) {
		t.Fatalf("err = %v, want ErrUnresolvedAlias", err)
	}
}

func TestBackfillChecksumsEmpty(t *testing.T) {
	_, _, opts := testOptions(t)
	if err := BackfillChecksums(context.Background(), opts...); err != nil {
		t.Fatalf("BackfillChecksums: %v", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg, _, opts := testOptions(t)
	cfg.HTTP.Port = 0
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Serve(ctx, opts...); err != nil {
		t.Fatalf("Serve: %v", err)
	}
}

func TestGenerateFailureCreatesNoRegistryDir(t *testing.T) {
	cfg, _, opts := testOptions(t)
	base := t.TempDir()
	cfg.Registry.Path = filepath.Join(base, "new", "dir", "releases.json")
	cfg.Redirects.Aliases = []string{"linux=linux:tar.gz"}

	err := GenerateRedirects(context.Background(), "", filepath.Join(base, "site"), opts...)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	entries, _ := os.ReadDir(base)
	if len(entries) != 0 {
		t.Errorf("failed generate left %d entries in %s", len(entries), base)
	}
}
