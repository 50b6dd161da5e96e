// Package models defines the release metadata types persisted by mukti.
package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mukti/internal/apperr"
)

// ArchiveKind is the file format of a release archive.
type ArchiveKind string

// Supported archive kinds.
const (
	KindTarGz  ArchiveKind = "tar.gz"
	KindTarXz  ArchiveKind = "tar.xz"
	KindTarZst ArchiveKind = "tar.zst"
	KindTarBz2 ArchiveKind = "tar.bz2"
	KindZip    ArchiveKind = "zip"
)

// ArchiveKinds lists every accepted kind.
var ArchiveKinds = []ArchiveKind{KindTarGz, KindTarXz, KindTarZst, KindTarBz2, KindZip}

// Status is the lifecycle state of a release.
type Status string

// Release statuses.
const (
	StatusActive Status = "active"
	StatusYanked Status = "yanked"
)

// TargetKind selects one archive of a release.
type TargetKind struct {
	Target string
	Kind   ArchiveKind
}

func (tk TargetKind) String() string {
	return tk.Target + ":" + string(tk.Kind)
}

// Alias maps a short redirect name to one archive selector.
type Alias struct {
	Name string
	TargetKind
}

// Archive is one downloadable artifact of a release.
type Archive struct {
	Target    string            `json:"target"`
	Kind      ArchiveKind       `json:"kind"`
	Name      string            `json:"name"`
	Checksums map[string]string `json:"checksums,omitempty"`
}

// Key returns the (target, kind) pair identifying a.
func (a Archive) Key() TargetKind {
	return TargetKind{Target: a.Target, Kind: a.Kind}
}

// Validate validates a single archive entry.
func (a Archive) Validate() error {
	kinds := make([]interface{}, len(ArchiveKinds))
	for i, k := range ArchiveKinds {
		kinds[i] = k
	}
	return validation.ValidateStruct(&a,
		validation.Field(&a.Target, validation.Required, validation.By(noSeparators)),
		validation.Field(&a.Kind, validation.Required, validation.In(kinds...)),
		validation.Field(&a.Name, validation.Required),
	)
}

// Release is the metadata of one published version.
type Release struct {
	Version       string    `json:"version"`
	ReleaseURL    string    `json:"release_url,omitempty"`
	ArchivePrefix string    `json:"archive_prefix"`
	Status        Status    `json:"status,omitempty"`
	Archives      []Archive `json:"archives"`
}

// NewRelease builds an active release and validates it.
func NewRelease(version, releaseURL, archivePrefix string, archives []Archive) (*Release, error) {
	if archives == nil {
		archives = []Archive{}
	}
	r := &Release{
		Version:       version,
		ReleaseURL:    releaseURL,
		ArchivePrefix: archivePrefix,
		Status:        StatusActive,
		Archives:      archives,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the release. Failures wrap apperr.ErrInvalidRecord.
func (r *Release) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Version, validation.Required, validation.By(semanticVersion)),
		validation.Field(&r.ReleaseURL, validation.By(absoluteURL)),
		validation.Field(&r.ArchivePrefix, validation.Required, validation.By(absoluteURL)),
		validation.Field(&r.Status, validation.In(StatusActive, StatusYanked)),
		validation.Field(&r.Archives),
	)
	if err != nil {
		return fmt.Errorf("%w: version %q: %v", apperr.ErrInvalidRecord, r.Version, err)
	}

	seen := make(map[TargetKind]struct{}, len(r.Archives))
	for _, a := range r.Archives {
		if _, dup := seen[a.Key()]; dup {
			return fmt.Errorf("%w: version %q: archive %s listed twice", apperr.ErrInvalidRecord, r.Version, a.Key())
		}
		seen[a.Key()] = struct{}{}
	}
	return nil
}

// Complete reports whether the release has at least one archive.
func (r *Release) Complete() bool {
	return len(r.Archives) > 0
}

// Yanked reports whether the release was withdrawn.
func (r *Release) Yanked() bool {
	return r.Status == StatusYanked
}

// Lookup returns the archive for tk.
func (r *Release) Lookup(tk TargetKind) (Archive, bool) {
	for _, a := range r.Archives {
		if a.Key() == tk {
			return a, true
		}
	}
	return Archive{}, false
}

// ArchiveURL returns the download URL of a.
func (r *Release) ArchiveURL(a Archive) string {
	return strings.TrimRight(r.ArchivePrefix, "/") + "/" + strings.TrimLeft(a.Name, "/")
}

func semanticVersion(value interface{}) error {
	s, _ := value.(string)
	if s == "" || IsVersion(s) {
		return nil
	}
	return errors.New("must be a semantic version such as 1.2.3")
}

func absoluteURL(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL with scheme and host")
	}
	return nil
}

func noSeparators(value interface{}) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, ":=/ \t") {
		return errors.New("must not contain ':', '=', '/' or whitespace")
	}
	return nil
}
