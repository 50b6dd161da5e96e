package checksum

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// abcSHA256 is the FIPS 180-2 test vector for "abc".
const abcSHA256 = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func sha256Of(t *testing.T, data string) string {
	t.Helper()
	sums, _, err := Digests(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Digests: %v", err)
	}
	return sums[SHA256]
}

func TestDigests(t *testing.T) {
	sums, n, err := Digests(strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("Digests: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
	if sums[SHA256] != abcSHA256 {
		t.Errorf("sha256 = %s, want %s", sums[SHA256], abcSHA256)
	}
	wantB2 := "ba80a53f981c4d0d6a2797b69f12f6e94c212f14685ac4b74b12bb6fdbffa2d1" +
		"7d87c5392aab792dc252d5de4533cc9518d38aa8dbf1925ab92386edd4009923"
	if sums[BLAKE2b] != wantB2 {
		t.Errorf("blake2b = %s", sums[BLAKE2b])
	}
	if !Complete(sums) {
		t.Error("digests should be complete")
	}
	if Complete(map[string]string{SHA256: "x"}) {
		t.Error("sha256 alone is not complete")
	}
}

func testFetcher() *Fetcher {
	return NewFetcher(FetcherConfig{Jobs: 2, Attempts: 3, RetryInterval: time.Millisecond}, quietLogger())
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("abc"))
	}))
	defer srv.Close()

	sums, err := testFetcher().Fetch(context.Background(), srv.URL+"/a.tar.gz")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if sums[SHA256] != abcSHA256 {
		t.Errorf("sha256 = %s", sums[SHA256])
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetchGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := testFetcher().Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3 attempts", calls.Load())
	}
}

func TestFetchNotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	if _, err := testFetcher().Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestFetchAllKeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/one", srv.URL + "/missing", srv.URL + "/three"}
	results := testFetcher().FetchAll(context.Background(), urls)
	if len(results) != 3 {
		t.Fatalf("len = %d", len(results))
	}
	for i, r := range results {
		if r.URL != urls[i] {
			t.Errorf("result %d url = %s, want %s", i, r.URL, urls[i])
		}
	}
	if results[0].Err != nil || results[0].Checksums[SHA256] != sha256Of(t, "/one") {
		t.Errorf("result 0 = %+v", results[0])
	}
	if results[1].Err == nil {
		t.Error("missing archive should fail")
	}
	if results[2].Err != nil {
		t.Errorf("result 2 err = %v", results[2].Err)
	}
}
