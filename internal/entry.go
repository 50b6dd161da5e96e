// Package internal provides the application wiring behind each mukti command.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize/english"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mukti/internal/api"
	"github.com/starford/mukti/internal/checksum"
	"github.com/starford/mukti/internal/mcpserver"
	"github.com/starford/mukti/internal/models"
	"github.com/starford/mukti/internal/registry"
	"github.com/starford/mukti/internal/releaseservice"
	"github.com/starford/mukti/internal/sse"
	"github.com/starford/mukti/internal/watcher"
)

func newApplication(opts ...Option) (*application, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	if app.version == "" {
		app.version = "dev"
	}
	if app.logger == nil {
		app.logger = newLogger(app.config.App, app)
		slog.SetDefault(app.logger)
	}
	return app, nil
}

func newLogger(cfg ApplicationConfig, app *application) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(app.stderr, opts))
	}
	return slog.New(slog.NewTextHandler(app.stderr, opts))
}

func (a *application) service() (*releaseservice.Service, error) {
	store, err := registry.Open(a.config.Registry.Path)
	if err != nil {
		return nil, err
	}
	fetcher := checksum.NewFetcher(a.config.Checksums.FetcherConfig(), a.logger)
	return releaseservice.NewService(store, fetcher, a.logger), nil
}

func (a *application) rulesRequest(version string) releaseservice.RulesRequest {
	rc := a.config.Redirects
	return releaseservice.RulesRequest{
		Version:   version,
		Aliases:   rc.Aliases,
		Prefix:    rc.Prefix,
		Status:    rc.Status,
		Versioned: rc.Versioned,
	}
}

// AddRelease records a new release in the registry.
func AddRelease(ctx context.Context, req releaseservice.AddReleaseRequest, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}
	_, err = svc.AddRelease(ctx, req)
	return err
}

// GenerateRedirects writes the configured flavor's redirect file for
// version (empty means most recent) into outputDir.
func GenerateRedirects(ctx context.Context, version, outputDir string, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}
	_, err = svc.GenerateRedirects(ctx, releaseservice.GenerateRequest{
		RulesRequest: app.rulesRequest(version),
		OutputDir:    outputDir,
		Flavor:       app.config.Redirects.Flavor,
	})
	return err
}

// BackfillChecksums fills in missing archive digests.
func BackfillChecksums(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}
	n, err := svc.BackfillChecksums(ctx)
	if err != nil {
		return err
	}
	app.logger.Info("checksums backfilled", slog.String("updated", english.Plural(n, "archive", "")))
	return nil
}

// YankRelease marks version as withdrawn.
func YankRelease(ctx context.Context, version string, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}
	return svc.YankRelease(ctx, version)
}

// Show prints a table of the registry to stdout.
func Show(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}
	reg, err := svc.Registry(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(app.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tRANGE\tSTATUS\tARCHIVES\tCHECKSUMS")
	for i := range reg.Releases {
		rel := &reg.Releases[i]
		status := rel.Status
		if status == "" {
			status = models.StatusActive
		}
		summed := 0
		for _, a := range rel.Archives {
			if checksum.Complete(a.Checksums) {
				summed++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d/%d\n",
			rel.Version, models.VersionRange(rel.Version), status, len(rel.Archives), summed, len(rel.Archives))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(app.stdout, "%s in %s\n", english.Plural(len(reg.Releases), "release", ""), registryPath(app))
	return err
}

func registryPath(app *application) string {
	if app.config.Registry.Path == "" {
		return registry.DefaultPath
	}
	return app.config.Registry.Path
}

// Serve runs the redirect preview HTTP server until ctx is cancelled or a
// shutdown signal arrives.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	// SSE broker fed by the registry watcher.
	broker := sse.NewBroker()
	defer broker.Close()

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Address(),
		Handler:           api.NewServer(svc, app.rulesRequest(""), cfg.HTTP.Token, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...",
		slog.String("http_address", cfg.HTTP.Address()),
		slog.String("registry", registryPath(app)),
		slog.Bool("auth", cfg.HTTP.Token != ""))

	// SIGINT/SIGTERM cancel ctx, which stops every goroutine below.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	// Start registry watcher with SSE publishing.
	g.Go(func() error {
		err := watcher.Watch(gCtx, registryPath(app), watcher.DefaultDebounce, logger, func(ctx context.Context) error {
			reg, err := svc.Registry(ctx)
			if err != nil {
				return err
			}
			change := sse.RegistryChange{Releases: len(reg.Releases)}
			if rel, err := reg.Select(""); err == nil {
				change.Latest = rel.Version
			}
			broker.PublishRegistryChange(change)
			return nil
		})
		if err != nil {
			logger.Warn("registry events disabled", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut down once a signal arrives or another goroutine fails.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down", slog.String("reason", context.Cause(gCtx).Error()))

		// Streaming clients end when the broker closes their channels.
		broker.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP serves the registry tools over stdio.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}
	app.logger.Info("MCP server starting", slog.String("registry", registryPath(app)))
	return mcpserver.New(svc, app.rulesRequest(""), app.version).ServeStdio()
}

// Watch regenerates redirects into outputDir whenever the registry changes.
func Watch(ctx context.Context, version, outputDir string, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	svc, err := app.service()
	if err != nil {
		return err
	}
	req := releaseservice.GenerateRequest{
		RulesRequest: app.rulesRequest(version),
		OutputDir:    outputDir,
		Flavor:       app.config.Redirects.Flavor,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return watcher.Watch(ctx, registryPath(app), watcher.DefaultDebounce, app.logger, func(ctx context.Context) error {
		_, err := svc.GenerateRedirects(ctx, req)
		return err
	})
}
