// Package registry holds the ordered collection of releases persisted as the
// releases JSON document.
package registry

import (
	"fmt"

	"github.com/starford/mukti/internal/apperr"
	"github.com/starford/mukti/internal/models"
)

// DefaultPath is the registry location used when --json is not given.
const DefaultPath = ".releases.json"

// Registry is the persisted document. Releases are kept in insertion order.
type Registry struct {
	Releases []models.Release `json:"releases"`
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{Releases: []models.Release{}}
}

// Validate checks every release and the uniqueness of versions.
func (r *Registry) Validate() error {
	seen := make(map[string]struct{}, len(r.Releases))
	for i := range r.Releases {
		rel := &r.Releases[i]
		if err := rel.Validate(); err != nil {
			return err
		}
		if _, dup := seen[rel.Version]; dup {
			return fmt.Errorf("%w: version %q", apperr.ErrDuplicateVersion, rel.Version)
		}
		seen[rel.Version] = struct{}{}
	}
	return nil
}

// Add appends rel. If the version already exists, Add fails with
// apperr.ErrDuplicateVersion unless overwrite is set, in which case the old
// record is replaced at its original position.
func (r *Registry) Add(rel models.Release, overwrite bool) error {
	for i := range r.Releases {
		if r.Releases[i].Version != rel.Version {
			continue
		}
		if !overwrite {
			return fmt.Errorf("%w: version %q is already in the registry", apperr.ErrDuplicateVersion, rel.Version)
		}
		r.Releases[i] = rel
		return nil
	}
	r.Releases = append(r.Releases, rel)
	return nil
}

// MostRecent returns the last appended release.
func (r *Registry) MostRecent() (*models.Release, bool) {
	if len(r.Releases) == 0 {
		return nil, false
	}
	return &r.Releases[len(r.Releases)-1], true
}

// Find returns the release with the given version.
func (r *Registry) Find(version string) (*models.Release, bool) {
	for i := range r.Releases {
		if r.Releases[i].Version == version {
			return &r.Releases[i], true
		}
	}
	return nil, false
}

// Select returns the release for version, or the most recent release that
// was not yanked when version is empty.
func (r *Registry) Select(version string) (*models.Release, error) {
	if version == "" {
		for i := len(r.Releases) - 1; i >= 0; i-- {
			if !r.Releases[i].Yanked() {
				return &r.Releases[i], nil
			}
		}
		return nil, fmt.Errorf("%w: registry has no active releases", apperr.ErrNotFound)
	}
	rel, ok := r.Find(version)
	if !ok {
		return nil, fmt.Errorf("%w: version %q", apperr.ErrNotFound, version)
	}
	return rel, nil
}

// Yank marks version as withdrawn.
func (r *Registry) Yank(version string) error {
	rel, ok := r.Find(version)
	if !ok {
		return fmt.Errorf("%w: version %q", apperr.ErrNotFound, version)
	}
	rel.Status = models.StatusYanked
	return nil
}

// LatestInRanges returns, for every version range with at least one active
// release, the highest active non-prerelease version in it (or the highest
// pre-release when the range has nothing else). Ranges are returned in order
// of first appearance.
func (r *Registry) LatestInRanges() []RangeLatest {
	var order []string
	best := make(map[string]*models.Release)
	for i := range r.Releases {
		rel := &r.Releases[i]
		if rel.Yanked() {
			continue
		}
		rng := models.VersionRange(rel.Version)
		cur, ok := best[rng]
		if !ok {
			order = append(order, rng)
			best[rng] = rel
			continue
		}
		if betterLatest(rel, cur) {
			best[rng] = rel
		}
	}
	out := make([]RangeLatest, 0, len(order))
	for _, rng := range order {
		out = append(out, RangeLatest{Range: rng, Release: best[rng]})
	}
	return out
}

// RangeLatest pairs a version range with its latest release.
type RangeLatest struct {
	Range   string
	Release *models.Release
}

func betterLatest(candidate, current *models.Release) bool {
	cPre, curPre := models.IsPrerelease(candidate.Version), models.IsPrerelease(current.Version)
	if cPre != curPre {
		return !cPre
	}
	return models.CompareVersions(candidate.Version, current.Version) > 0
}
