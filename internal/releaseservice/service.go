// Package releaseservice coordinates the registry store, checksum fetching
// and redirect generation behind the mukti commands.
package releaseservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/mukti/internal/apperr"
	"github.com/starford/mukti/internal/checksum"
	"github.com/starford/mukti/internal/models"
	"github.com/starford/mukti/internal/parser"
	"github.com/starford/mukti/internal/redirect"
	"github.com/starford/mukti/internal/registry"
	"github.com/starford/mukti/internal/storage"
)

// AddReleaseRequest describes one add-release invocation. Archives are
// TARGET:KIND=FILENAME specs.
type AddReleaseRequest struct {
	Version        string
	ReleaseURL     string
	ArchivePrefix  string
	Archives       []string
	Overwrite      bool
	FetchChecksums bool
}

// RulesRequest selects a release and the aliases to resolve against it.
// Aliases are NAME=TARGET:KIND specs. An empty Version selects the most
// recent active release.
type RulesRequest struct {
	Version   string
	Aliases   []string
	Prefix    string
	Status    int
	Versioned bool
}

// GenerateRequest is a RulesRequest plus where and how to write the rules.
type GenerateRequest struct {
	RulesRequest
	OutputDir string
	Flavor    string
}

// GenerateResult reports what generate-redirects wrote.
type GenerateResult struct {
	Path    string
	Release *models.Release
	Rules   []redirect.Rule
}

// Service implements the mukti operations on top of one registry file.
type Service struct {
	store   *registry.Store
	fetcher *checksum.Fetcher
	logger  *slog.Logger
}

// NewService creates a new release service. fetcher may be nil when no
// operation needs to download archives.
func NewService(store *registry.Store, fetcher *checksum.Fetcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, fetcher: fetcher, logger: logger}
}

// Registry loads the current registry snapshot.
func (s *Service) Registry(_ context.Context) (*registry.Registry, error) {
	return s.store.Load()
}

// AddRelease validates the request, appends the release and saves the
// registry. Nothing is written when any step fails.
func (s *Service) AddRelease(ctx context.Context, req AddReleaseRequest) (*models.Release, error) {
	archives, err := parser.ParseArchives(req.Archives)
	if err != nil {
		return nil, err
	}
	rel, err := models.NewRelease(req.Version, req.ReleaseURL, req.ArchivePrefix, archives)
	if err != nil {
		return nil, err
	}

	reg, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	// Reject duplicates before spending time on downloads.
	if _, exists := reg.Find(rel.Version); exists && !req.Overwrite {
		return nil, fmt.Errorf("%w: version %q is already in the registry", apperr.ErrDuplicateVersion, rel.Version)
	}

	if req.FetchChecksums && rel.Complete() {
		s.attachChecksums(ctx, []*models.Release{rel})
	}

	if err := reg.Add(*rel, req.Overwrite); err != nil {
		return nil, err
	}
	if err := s.store.Save(reg); err != nil {
		return nil, err
	}

	if !rel.Complete() {
		s.logger.Warn("release recorded without archives", slog.String("version", rel.Version))
	}
	s.logger.Info("release added",
		slog.String("version", rel.Version),
		slog.Int("archives", len(rel.Archives)),
		slog.Int("releases", len(reg.Releases)),
		slog.String("path", s.store.Path()))
	return rel, nil
}

// YankRelease marks a release as withdrawn.
func (s *Service) YankRelease(_ context.Context, version string) error {
	reg, err := s.store.Load()
	if err != nil {
		return err
	}
	if err := reg.Yank(version); err != nil {
		return err
	}
	if err := s.store.Save(reg); err != nil {
		return err
	}
	s.logger.Info("release yanked", slog.String("version", version))
	return nil
}

// BackfillChecksums downloads every archive that lacks a digest and stores
// the result. It returns the number of archives updated.
func (s *Service) BackfillChecksums(ctx context.Context) (int, error) {
	reg, err := s.store.Load()
	if err != nil {
		return 0, err
	}
	rels := make([]*models.Release, len(reg.Releases))
	for i := range reg.Releases {
		rels[i] = &reg.Releases[i]
	}
	updated := s.attachChecksums(ctx, rels)
	if updated == 0 {
		s.logger.Info("all archives already have checksums")
		return 0, nil
	}
	if err := s.store.Save(reg); err != nil {
		return 0, err
	}
	return updated, nil
}

// attachChecksums fetches digests for archives of rels that miss one and
// stores them in place. Failed downloads leave the archive untouched.
func (s *Service) attachChecksums(ctx context.Context, rels []*models.Release) int {
	if s.fetcher == nil {
		s.logger.Warn("checksum fetching is not configured")
		return 0
	}
	type slot struct {
		rel *models.Release
		idx int
	}
	var (
		slots []slot
		urls  []string
	)
	for _, rel := range rels {
		for i, a := range rel.Archives {
			if checksum.Complete(a.Checksums) {
				continue
			}
			slots = append(slots, slot{rel: rel, idx: i})
			urls = append(urls, rel.ArchiveURL(a))
		}
	}
	if len(urls) == 0 {
		return 0
	}

	updated := 0
	for i, res := range s.fetcher.FetchAll(ctx, urls) {
		if res.Err != nil {
			continue
		}
		sl := slots[i]
		sl.rel.Archives[sl.idx].Checksums = res.Checksums
		updated++
	}
	return updated
}

// Rules resolves the request against the registry without writing anything.
func (s *Service) Rules(_ context.Context, req RulesRequest) ([]redirect.Rule, *models.Release, error) {
	aliases, err := parser.ParseAliases(req.Aliases)
	if err != nil {
		return nil, nil, err
	}
	reg, err := s.store.Load()
	if err != nil {
		return nil, nil, err
	}
	rel, err := reg.Select(req.Version)
	if err != nil {
		return nil, nil, err
	}
	rules, err := redirect.GenerateAll(reg, rel, aliases, redirect.Options{
		Prefix:    req.Prefix,
		Status:    req.Status,
		Versioned: req.Versioned,
		Logger:    s.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return rules, rel, nil
}

// GenerateRedirects resolves every rule first and only then writes the
// flavor's file into the output directory, so a failure leaves no output.
func (s *Service) GenerateRedirects(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	flavor, err := redirect.ParseFlavor(req.Flavor)
	if err != nil {
		return nil, err
	}
	if req.OutputDir == "" {
		return nil, fmt.Errorf("%w: output directory is required", apperr.ErrInvalidArgument)
	}
	rules, rel, err := s.Rules(ctx, req.RulesRequest)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrWrite, req.OutputDir, err)
	}
	out, err := storage.NewFS(req.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrWrite, req.OutputDir, err)
	}
	path := filepath.Join(out.Root(), flavor.FileName())
	err = out.WriteFunc(flavor.FileName(), func(w io.Writer) error {
		return flavor.Render(w, rules)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrWrite, path, err)
	}

	s.logger.Info("redirects generated",
		slog.String("version", rel.Version),
		slog.String("flavor", flavor.Name()),
		slog.Int("rules", len(rules)),
		slog.String("path", path))
	return &GenerateResult{Path: path, Release: rel, Rules: rules}, nil
}
