// Package redirect turns release records and an alias table into redirect
// rules, and renders those rules for static hosting providers.
package redirect

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/starford/mukti/internal/apperr"
	"github.com/starford/mukti/internal/models"
	"github.com/starford/mukti/internal/registry"
)

// Default rule settings.
const (
	DefaultPrefix = "/"
	DefaultStatus = 301
)

// Statuses lists the accepted redirect status codes.
var Statuses = []int{301, 302, 307, 308}

// Rule redirects From (a site path) to To (an absolute URL).
type Rule struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Status int    `json:"status"`
}

// Options controls rule generation.
type Options struct {
	// Prefix is prepended to every source path. Defaults to "/".
	Prefix string
	// Status is the HTTP status of every rule. Defaults to 301.
	Status int
	// Versioned adds /latest, per-range and per-version rules computed
	// from the whole registry.
	Versioned bool
	Logger    *slog.Logger
}

func (o Options) withDefaults() (Options, error) {
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if !strings.HasPrefix(o.Prefix, "/") {
		return o, fmt.Errorf("%w: prefix %q must start with '/'", apperr.ErrInvalidArgument, o.Prefix)
	}
	if o.Status == 0 {
		o.Status = DefaultStatus
	}
	if !slices.Contains(Statuses, o.Status) {
		return o, fmt.Errorf("%w: status %d is not a redirect status", apperr.ErrInvalidArgument, o.Status)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o, nil
}

// Generate resolves every alias against rel, in alias order. An alias whose
// (target, kind) pair is missing from rel fails with apperr.ErrUnresolvedAlias.
func Generate(rel *models.Release, aliases []models.Alias, opts Options) ([]Rule, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return aliasRules(rel, aliases, opts, "")
}

// GenerateAll resolves aliases against the selected release like Generate
// and, when opts.Versioned is set, appends rules for /latest (the highest
// active non-prerelease version, omitted when there is none), every stable
// version range and every active version in reg. Releases other than the
// selected one skip aliases they cannot satisfy.
func GenerateAll(reg *registry.Registry, selected *models.Release, aliases []models.Alias, opts Options) ([]Rule, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	rules, err := aliasRules(selected, aliases, opts, "")
	if err != nil {
		return nil, err
	}
	if !opts.Versioned {
		return rules, nil
	}

	if stable := latestStable(reg); stable != nil {
		lr, _ := entryRules(stable, aliases, opts, "latest", false)
		rules = append(rules, lr...)
	}

	for _, rl := range reg.LatestInRanges() {
		// 0.0.x ranges are single versions; the version rules cover them.
		if models.IsPrerelease(rl.Release.Version) || rl.Range == rl.Release.Version {
			continue
		}
		rr, _ := entryRules(rl.Release, aliases, opts, rl.Range, false)
		rules = append(rules, rr...)
	}
	for i := range reg.Releases {
		rel := &reg.Releases[i]
		if rel.Yanked() {
			continue
		}
		vr, _ := entryRules(rel, aliases, opts, rel.Version, false)
		rules = append(rules, vr...)
	}
	return rules, nil
}

func latestStable(reg *registry.Registry) *models.Release {
	var best *models.Release
	for _, rl := range reg.LatestInRanges() {
		if models.IsPrerelease(rl.Release.Version) {
			continue
		}
		if best == nil || models.CompareVersions(rl.Release.Version, best.Version) > 0 {
			best = rl.Release
		}
	}
	return best
}

// entryRules emits the release page, one rule per archive and the alias
// rules for rel under the label directory.
func entryRules(rel *models.Release, aliases []models.Alias, opts Options, label string, strict bool) ([]Rule, error) {
	var rules []Rule
	if rel.ReleaseURL != "" {
		rules = append(rules, Rule{From: sourcePath(opts.Prefix, label, "release"), To: rel.ReleaseURL, Status: opts.Status})
	}
	for _, a := range rel.Archives {
		rules = append(rules, Rule{
			From:   sourcePath(opts.Prefix, label, a.Target+"."+string(a.Kind)),
			To:     rel.ArchiveURL(a),
			Status: opts.Status,
		})
	}
	if strict {
		ar, err := aliasRules(rel, aliases, opts, label)
		if err != nil {
			return nil, err
		}
		return append(rules, ar...), nil
	}
	for _, al := range aliases {
		a, ok := rel.Lookup(al.TargetKind)
		if !ok {
			opts.Logger.Warn("alias target missing in release, skipping",
				slog.String("alias", al.Name),
				slog.String("target", al.TargetKind.String()),
				slog.String("label", label),
				slog.String("version", rel.Version))
			continue
		}
		rules = append(rules, Rule{From: sourcePath(opts.Prefix, label, al.Name), To: rel.ArchiveURL(a), Status: opts.Status})
	}
	return rules, nil
}

func aliasRules(rel *models.Release, aliases []models.Alias, opts Options, label string) ([]Rule, error) {
	rules := make([]Rule, 0, len(aliases))
	for _, al := range aliases {
		a, ok := rel.Lookup(al.TargetKind)
		if !ok {
			return nil, fmt.Errorf("%w: alias %q points at %s, which release %s does not provide",
				apperr.ErrUnresolvedAlias, al.Name, al.TargetKind, rel.Version)
		}
		rules = append(rules, Rule{From: sourcePath(opts.Prefix, label, al.Name), To: rel.ArchiveURL(a), Status: opts.Status})
	}
	return rules, nil
}

func sourcePath(prefix string, parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.Join(nonEmpty, "/")
}
