package redirect

import (
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/starford/mukti/internal/apperr"
)

const header = "# Generated by mukti"

// Flavor renders rules into one provider-specific file.
type Flavor interface {
	// Name is the value accepted by --flavor.
	Name() string
	// FileName is the file written inside the output directory.
	FileName() string
	Render(w io.Writer, rules []Rule) error
}

var flavors = []Flavor{netlifyRedirects{}, netlifyTOML{}}

// DefaultFlavor is used when no flavor is requested.
const DefaultFlavor = "netlify"

// Flavors returns the names of all flavors.
func Flavors() []string {
	names := make([]string, len(flavors))
	for i, f := range flavors {
		names[i] = f.Name()
	}
	return names
}

// ParseFlavor looks up a flavor by name.
func ParseFlavor(name string) (Flavor, error) {
	if name == "" {
		name = DefaultFlavor
	}
	for _, f := range flavors {
		if f.Name() == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown flavor %q (want one of %s)", apperr.ErrInvalidArgument, name, strings.Join(Flavors(), ", "))
}

// netlifyRedirects writes a _redirects file: one "FROM TO STATUS" per line.
type netlifyRedirects struct{}

func (netlifyRedirects) Name() string     { return "netlify" }
func (netlifyRedirects) FileName() string { return "_redirects" }

func (netlifyRedirects) Render(w io.Writer, rules []Rule) error {
	if _, err := fmt.Fprintf(w, "%s\n\n", header); err != nil {
		return err
	}
	for _, r := range rules {
		if _, err := fmt.Fprintf(w, "%s %s %d\n", r.From, r.To, r.Status); err != nil {
			return err
		}
	}
	return nil
}

// netlifyTOML writes forced [[redirects]] tables for netlify.toml.
type netlifyTOML struct{}

func (netlifyTOML) Name() string     { return "netlify-toml" }
func (netlifyTOML) FileName() string { return "netlify.toml" }

type tomlRedirects struct {
	Redirects []tomlRedirect `toml:"redirects"`
}

type tomlRedirect struct {
	From   string `toml:"from"`
	To     string `toml:"to"`
	Status int    `toml:"status"`
	Force  bool   `toml:"force"`
}

func (netlifyTOML) Render(w io.Writer, rules []Rule) error {
	if _, err := fmt.Fprintf(w, "%s\n\n", header); err != nil {
		return err
	}
	doc := tomlRedirects{Redirects: make([]tomlRedirect, len(rules))}
	for i, r := range rules {
		doc.Redirects[i] = tomlRedirect{From: r.From, To: r.To, Status: r.Status, Force: true}
	}
	return toml.NewEncoder(w).Encode(doc)
}
