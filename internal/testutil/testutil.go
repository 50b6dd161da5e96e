// Package testutil provides shared test helpers for setting up registries.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/mukti/internal/models"
	"github.com/starford/mukti/internal/registry"
)

// Linux and Windows targets used across tests.
const (
	LinuxTarget   = "x86_64-unknown-linux-gnu"
	WindowsTarget = "x86_64-pc-windows-msvc"
)

// TestRegistry returns a store backed by a fresh temporary directory and
// the path of its (not yet existing) releases file.
func TestRegistry(t *testing.T) (*registry.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "releases.json")
	store, err := registry.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	return store, path
}

// Release builds a valid release with a linux tar.gz and a windows zip
// archive named after version.
func Release(t *testing.T, version string) models.Release {
	t.Helper()
	rel, err := models.NewRelease(version,
		"https://github.com/example/app/releases/tag/"+version,
		"https://github.com/example/app/releases/download/"+version,
		[]models.Archive{
			{Target: LinuxTarget, Kind: models.KindTarGz, Name: "app-" + version + "-" + LinuxTarget + ".tar.gz"},
			{Target: WindowsTarget, Kind: models.KindZip, Name: "app-" + version + "-" + WindowsTarget + ".zip"},
		})
	if err != nil {
		t.Fatal(err)
	}
	return *rel
}

// Seed saves a registry holding releases for the given versions, in order.
func Seed(t *testing.T, store *registry.Store, versions ...string) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, v := range versions {
		if err := reg.Add(Release(t, v), false); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Save(reg); err != nil {
		t.Fatal(err)
	}
	return reg
}
