// Package parser decodes the NAME=VALUE command-line specs used by mukti:
// archives (TARGET:KIND=FILENAME) and aliases (NAME=TARGET:KIND).
package parser

import (
	"fmt"
	"strings"

	"github.com/starford/mukti/internal/apperr"
	"github.com/starford/mukti/internal/models"
)

// ParseArchive parses "TARGET:KIND=FILENAME".
func ParseArchive(input string) (models.Archive, error) {
	key, name, ok := strings.Cut(input, "=")
	if !ok {
		return models.Archive{}, fmt.Errorf("%w: unable to parse archive %q in the format TARGET:KIND=FILENAME", apperr.ErrInvalidRecord, input)
	}
	tk, err := ParseTargetKind(key)
	if err != nil {
		return models.Archive{}, err
	}
	return models.Archive{Target: tk.Target, Kind: tk.Kind, Name: strings.TrimSpace(name)}, nil
}

// ParseArchives parses every spec, stopping at the first failure.
func ParseArchives(inputs []string) ([]models.Archive, error) {
	out := make([]models.Archive, 0, len(inputs))
	for _, in := range inputs {
		a, err := ParseArchive(in)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ParseAlias parses "NAME=TARGET:KIND".
func ParseAlias(input string) (models.Alias, error) {
	name, key, ok := strings.Cut(input, "=")
	if !ok {
		return models.Alias{}, fmt.Errorf("%w: unable to parse alias %q in the format NAME=TARGET:KIND", apperr.ErrInvalidRecord, input)
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "/ \t") {
		return models.Alias{}, fmt.Errorf("%w: alias name %q must be non-empty and contain no '/' or whitespace", apperr.ErrInvalidRecord, name)
	}
	tk, err := ParseTargetKind(key)
	if err != nil {
		return models.Alias{}, err
	}
	return models.Alias{Name: name, TargetKind: tk}, nil
}

// ParseAliases parses an alias table, preserving order and rejecting
// repeated names.
func ParseAliases(inputs []string) ([]models.Alias, error) {
	seen := make(map[string]struct{}, len(inputs))
	out := make([]models.Alias, 0, len(inputs))
	for _, in := range inputs {
		a, err := ParseAlias(in)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[a.Name]; dup {
			return nil, fmt.Errorf("%w: alias %q given more than once", apperr.ErrInvalidRecord, a.Name)
		}
		seen[a.Name] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}

// ParseTargetKind parses "TARGET:KIND". The kind must be a known archive kind.
func ParseTargetKind(input string) (models.TargetKind, error) {
	i := strings.LastIndex(input, ":")
	if i <= 0 || i == len(input)-1 {
		return models.TargetKind{}, fmt.Errorf("%w: unable to parse %q in the format TARGET:KIND", apperr.ErrInvalidRecord, input)
	}
	tk := models.TargetKind{
		Target: strings.TrimSpace(input[:i]),
		Kind:   models.ArchiveKind(strings.TrimSpace(input[i+1:])),
	}
	for _, k := range models.ArchiveKinds {
		if tk.Kind == k {
			return tk, nil
		}
	}
	return models.TargetKind{}, fmt.Errorf("%w: unknown archive kind %q in %q", apperr.ErrInvalidRecord, tk.Kind, input)
}
