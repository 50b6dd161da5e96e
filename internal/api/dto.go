package api

import (
	"github.com/starford/mukti/internal/models"
	"github.com/starford/mukti/internal/redirect"
)

// ReleaseSummary is a lightweight item in a list response.
type ReleaseSummary struct {
	Version    string        `json:"version" example:"1.2.0" validate:"required"`
	Status     models.Status `json:"status" example:"active" validate:"required"`
	ReleaseURL string        `json:"release_url,omitempty" example:"https://github.com/example/app/releases/tag/1.2.0"`
	Archives   int           `json:"archives" example:"3"`
	Complete   bool          `json:"complete"`
	Range      string        `json:"range" example:"1"`
}

// ReleaseListResponse wraps the release listing, oldest first.
type ReleaseListResponse struct {
	Releases []ReleaseSummary `json:"releases" validate:"required"`
	Total    int              `json:"total" example:"42" validate:"required"`
}

// ArchiveDetail is one archive with its resolved download URL.
type ArchiveDetail struct {
	Target    string            `json:"target" example:"x86_64-unknown-linux-gnu"`
	Kind      string            `json:"kind" example:"tar.gz"`
	Name      string            `json:"name" example:"app-1.2.0-x86_64-unknown-linux-gnu.tar.gz"`
	URL       string            `json:"url"`
	Checksums map[string]string `json:"checksums,omitempty"`
}

// ReleaseDetail is the full release response type.
type ReleaseDetail struct {
	ReleaseSummary
	ArchivePrefix string          `json:"archive_prefix"`
	ArchiveList   []ArchiveDetail `json:"archive_list"`
}

// RulesResponse is the redirect preview.
type RulesResponse struct {
	Version string          `json:"version" example:"1.2.0"`
	Rules   []redirect.Rule `json:"rules" validate:"required"`
}

func summarize(rel *models.Release) ReleaseSummary {
	status := rel.Status
	if status == "" {
		status = models.StatusActive
	}
	return ReleaseSummary{
		Version:    rel.Version,
		Status:     status,
		ReleaseURL: rel.ReleaseURL,
		Archives:   len(rel.Archives),
		Complete:   rel.Complete(),
		Range:      models.VersionRange(rel.Version),
	}
}

func detail(rel *models.Release) ReleaseDetail {
	d := ReleaseDetail{
		ReleaseSummary: summarize(rel),
		ArchivePrefix:  rel.ArchivePrefix,
		ArchiveList:    make([]ArchiveDetail, 0, len(rel.Archives)),
	}
	for _, a := range rel.Archives {
		d.ArchiveList = append(d.ArchiveList, ArchiveDetail{
			Target:    a.Target,
			Kind:      string(a.Kind),
			Name:      a.Name,
			URL:       rel.ArchiveURL(a),
			Checksums: a.Checksums,
		})
	}
	return d
}
