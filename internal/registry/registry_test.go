package registry_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/mukti/internal/apperr"
	"github.com/starford/mukti/internal/registry"
	"github.com/starford/mukti/internal/storage"
	"github.com/starford/mukti/internal/testutil"
)

func TestLoadMissingIsEmpty(t *testing.T) {
	store, _ := testutil.TestRegistry(t)
	reg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(registry.New(), reg); diff != "" {
		t.Errorf("missing file should equal a fresh registry (-want +got):\n%s", diff)
	}
}

func TestLoadCorrupt(t *testing.T) {
	store, path := testutil.TestRegistry(t)
	for name, body := range map[string]string{
		"not json":      "{releases: oops",
		"wrong type":    `{"releases": {"1.0.0": {}}}`,
		"invalid entry": `{"releases": [{"version": "latest", "archive_prefix": "https://ex/dl", "archives": []}]}`,
		"duplicate": `{"releases": [
			{"version": "1.0.0", "archive_prefix": "https://ex/dl", "archives": []},
			{"version": "1.0.0", "archive_prefix": "https://ex/dl", "archives": []}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := store.Load()
			if !errors.Is(err, apperr.ErrCorruptRegistry) {
				t.Fatalf("err = %v, want ErrCorruptRegistry", err)
			}
			if err != nil && !strings.Contains(err.Error(), path) {
				t.Errorf("error should name the path: %v", err)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	store, path := testutil.TestRegistry(t)
	want := testutil.Seed(t, store, "1.0.0", "0.9.0", "1.1.0-rc.1")
	want.Releases[0].Archives[0].Checksums = map[string]string{"sha256": "ab", "blake2b": "cd"}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	first, _ := os.ReadFile(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	if err := store.Save(got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Errorf("save(load(x)) changed the document:\n%s\n---\n%s", first, second)
	}
}

func TestAddDuplicate(t *testing.T) {
	reg := registry.New()
	if err := reg.Add(testutil.Release(t, "1.0.0"), false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := reg.Add(testutil.Release(t, "1.0.0"), false)
	if !errors.Is(err, apperr.ErrDuplicateVersion) {
		t.Fatalf("err = %v, want ErrDuplicateVersion", err)
	}
	if !strings.Contains(err.Error(), "1.0.0") {
		t.Errorf("error should name the version: %v", err)
	}
	if len(reg.Releases) != 1 {
		t.Errorf("len = %d, want 1", len(reg.Releases))
	}
}

func TestAddOverwriteKeepsPosition(t *testing.T) {
	reg := registry.New()
	for _, v := range []string{"1.0.0", "1.1.0", "1.2.0"} {
		_ = reg.Add(testutil.Release(t, v), false)
	}
	replacement := testutil.Release(t, "1.1.0")
	replacement.ReleaseURL = "https://ex/new"
	if err := reg.Add(replacement, true); err != nil {
		t.Fatalf("Add overwrite: %v", err)
	}
	if len(reg.Releases) != 3 {
		t.Fatalf("len = %d, want 3", len(reg.Releases))
	}
	if reg.Releases[1].Version != "1.1.0" || reg.Releases[1].ReleaseURL != "https://ex/new" {
		t.Errorf("overwrite not in place: %+v", reg.Releases[1])
	}
	latest, _ := reg.MostRecent()
	if latest.Version != "1.2.0" {
		t.Errorf("most recent = %s, want 1.2.0", latest.Version)
	}
}

func TestMostRecentIsInsertionOrder(t *testing.T) {
	reg := registry.New()
	if _, ok := reg.MostRecent(); ok {
		t.Error("empty registry has no most recent release")
	}
	_ = reg.Add(testutil.Release(t, "2.0.0"), false)
	_ = reg.Add(testutil.Release(t, "1.5.3"), false)
	latest, ok := reg.MostRecent()
	if !ok || latest.Version != "1.5.3" {
		t.Errorf("most recent = %v, want 1.5.3 (last appended)", latest)
	}
}

func TestSelect(t *testing.T) {
	reg := registry.New()
	if _, err := reg.Select(""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("empty select err = %v", err)
	}
	_ = reg.Add(testutil.Release(t, "1.0.0"), false)
	_ = reg.Add(testutil.Release(t, "1.1.0"), false)
	rel, err := reg.Select("1.0.0")
	if err != nil || rel.Version != "1.0.0" {
		t.Errorf("Select(1.0.0) = %v, %v", rel, err)
	}
	if _, err := reg.Select("3.0.0"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown select err = %v", err)
	}

	_ = reg.Yank("1.1.0")
	rel, err = reg.Select("")
	if err != nil || rel.Version != "1.0.0" {
		t.Errorf("Select(\"\") with latest yanked = %v, %v", rel, err)
	}
}

func TestYank(t *testing.T) {
	reg := registry.New()
	_ = reg.Add(testutil.Release(t, "1.0.0"), false)
	if err := reg.Yank("1.0.0"); err != nil {
		t.Fatalf("Yank: %v", err)
	}
	if !reg.Releases[0].Yanked() {
		t.Error("release should be yanked")
	}
	if err := reg.Yank("9.9.9"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLatestInRanges(t *testing.T) {
	reg := registry.New()
	for _, v := range []string{"1.0.0", "1.2.0", "1.1.0", "2.0.0-rc.1", "0.3.0", "1.3.0"} {
		_ = reg.Add(testutil.Release(t, v), false)
	}
	_ = reg.Yank("1.3.0")

	got := map[string]string{}
	var order []string
	for _, rl := range reg.LatestInRanges() {
		got[rl.Range] = rl.Release.Version
		order = append(order, rl.Range)
	}
	want := map[string]string{"1": "1.2.0", "2": "2.0.0-rc.1", "0.3": "0.3.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranges (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "2", "0.3"}, order); diff != "" {
		t.Errorf("range order (-want +got):\n%s", diff)
	}
}

// shortFS fails every WriteFunc after limit bytes have reached the temp file.
type shortFS struct {
	*storage.FS
	limit int
}

func (f shortFS) WriteFunc(path string, fn func(io.Writer) error) error {
	return f.FS.WriteFunc(path, func(w io.Writer) error {
		return fn(&shortWriter{w: w, left: f.limit})
	})
}

type shortWriter struct {
	w    io.Writer
	left int
}

var errNoSpace = errors.New("no space left on device")

func (s *shortWriter) Write(p []byte) (int, error) {
	if len(p) > s.left {
		n, _ := s.w.Write(p[:s.left])
		s.left = 0
		return n, errNoSpace
	}
	s.left -= len(p)
	return s.w.Write(p)
}

func TestSaveFailureLeavesFileUnchanged(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	good := registry.NewStore(fs, "releases.json")
	reg := testutil.Seed(t, good, "1.0.0")
	before, _ := os.ReadFile(filepath.Join(dir, "releases.json"))

	_ = reg.Add(testutil.Release(t, "1.1.0"), false)
	failing := registry.NewStore(shortFS{FS: fs, limit: 40}, "releases.json")
	err = failing.Save(reg)
	if !errors.Is(err, apperr.ErrWrite) {
		t.Fatalf("err = %v, want ErrWrite", err)
	}

	after, _ := os.ReadFile(filepath.Join(dir, "releases.json"))
	if string(before) != string(after) {
		t.Errorf("file changed after failed save:\n%s", after)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only releases.json in dir, got %d entries", len(entries))
	}
}

func TestOpenDefaultsPath(t *testing.T) {
	t.Chdir(t.TempDir())
	store, err := registry.Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if filepath.Base(store.Path()) != registry.DefaultPath {
		t.Errorf("path = %s", store.Path())
	}
}

func TestOpenMissingDirCreatesNothingUntilSave(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "new", "dir", "releases.json")
	store, err := registry.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Path() != path {
		t.Errorf("path = %s, want %s", store.Path(), path)
	}
	reg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reg.Releases) != 0 {
		t.Errorf("releases = %d, want 0", len(reg.Releases))
	}
	if _, err := os.Stat(filepath.Join(base, "new")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Open/Load created directories: %v", err)
	}

	_ = reg.Add(testutil.Release(t, "1.0.0"), false)
	if err := store.Save(reg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("registry not written: %v", err)
	}
}
