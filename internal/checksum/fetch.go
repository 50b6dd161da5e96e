package checksum

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of fetching one URL. Err is set when every attempt
// failed; Checksums is nil in that case.
type Result struct {
	URL       string
	Checksums map[string]string
	Err       error
}

// Fetcher downloads archives and digests them.
type Fetcher struct {
	client        *http.Client
	jobs          int
	attempts      int
	retryInterval time.Duration
	logger        *slog.Logger
}

// FetcherConfig configures a Fetcher. Zero values fall back to defaults.
type FetcherConfig struct {
	Jobs          int
	Attempts      int
	Timeout       time.Duration
	RetryInterval time.Duration
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if cfg.Jobs <= 0 {
		cfg.Jobs = 4
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:        &http.Client{Timeout: cfg.Timeout},
		jobs:          cfg.Jobs,
		attempts:      cfg.Attempts,
		retryInterval: cfg.RetryInterval,
		logger:        logger,
	}
}

// FetchAll fetches every URL with at most jobs downloads in flight. Results
// are returned in the order of urls. A failing URL does not stop the others.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.jobs)

	for i, u := range urls {
		g.Go(func() error {
			sums, err := f.Fetch(gCtx, u)
			results[i] = Result{URL: u, Checksums: sums, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			f.logger.Warn("checksum fetch failed", slog.String("url", r.URL), slog.String("error", r.Err.Error()))
		}
	}
	f.logger.Info("fetched checksums",
		slog.Int("succeeded", len(urls)-failed),
		slog.Int("failed", failed),
		slog.Int("total", len(urls)))
	return results
}

// Fetch downloads url and returns its digests, retrying transient failures.
func (f *Fetcher) Fetch(ctx context.Context, url string) (map[string]string, error) {
	var sums map[string]string

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.attempts-1)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		sums, err = f.fetchOnce(ctx, url)
		if err != nil {
			f.logger.Debug("checksum fetch attempt failed",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
		}
		return err
	}, policy)
	if err != nil {
		return nil, err
	}
	return sums, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("checksum: build request for %s: %w", url, err))
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checksum: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("checksum: get %s: unexpected status %s", url, resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	sums, n, err := Digests(resp.Body)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("archive digested", slog.String("url", url), slog.String("size", humanize.Bytes(uint64(n))))
	return sums, nil
}
