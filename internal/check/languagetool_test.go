package check

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

const ltCheckResponse = `{
  "matches": [
    {
      "message": "Posible error ortográfico.",
      "offset": 11,
      "length": 4,
      "replacements": [{"value": "texto"}, {"value": "tejo"}, {"value": "taxo"}, {"value": "teso"}, {"value": "texó"}, {"value": "tex"}],
      "context": {"text": "Este es un texo con eror.", "offset": 11, "length": 4},
      "rule": {"id": "MORFOLOGIK_RULE_ES", "category": {"id": "TYPOS", "name": "Errores ortográficos"}}
    },
    {
      "message": "Posible error ortográfico.",
      "offset": 20,
      "length": 4,
      "replacements": [],
      "context": {"text": "Este es un texo con eror.", "offset": 20, "length": 4},
      "rule": {"id": "MORFOLOGIK_RULE_ES", "category": {"id": "TYPOS", "name": "Errores ortográficos"}}
    }
  ]
}`

func newRemoteLanguageTool(t *testing.T, checkCalls *atomic.Int32) *LanguageTool {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/languages", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"Spanish","code":"es","longCode":"es"}]`))
	})
	mux.HandleFunc("POST /v2/check", func(w http.ResponseWriter, r *http.Request) {
		checkCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("language"); got != "es" {
			t.Errorf("expected language=es, got %q", got)
		}
		if r.PostForm.Get("text") == "" {
			t.Error("expected text in form")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(ltCheckResponse))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	lt := NewLanguageTool(LanguageToolConfig{Language: "es", ServerURL: srv.URL + "/"}, testLogger())
	if err := lt.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { lt.Cleanup() })
	return lt
}

func TestLanguageToolCheck_RemoteServer(t *testing.T) {
	var calls atomic.Int32
	lt := newRemoteLanguageTool(t, &calls)

	findings, err := lt.Check(context.Background(), "Este es un texo con eror.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}

	first := findings[0]
	if first.Word != "texo" || first.Offset != 11 || first.Category != "TYPOS" {
		t.Errorf("unexpected first finding: %+v", first)
	}
	if len(first.Suggestions) != 5 || first.Suggestions[0] != "texto" {
		t.Errorf("expected 5 suggestions starting with texto, got %q", first.Suggestions)
	}
	if findings[1].Word != "eror" || len(findings[1].Suggestions) != 0 {
		t.Errorf("unexpected second finding: %+v", findings[1])
	}
	if findings[0].Offset > findings[1].Offset {
		t.Error("expected findings in source order")
	}
}

func TestLanguageToolCheck_BlankTextSkipsCall(t *testing.T) {
	var calls atomic.Int32
	lt := newRemoteLanguageTool(t, &calls)

	findings, err := lt.Check(context.Background(), " \n ")
	if err != nil || len(findings) != 0 {
		t.Fatalf("expected nothing, got %v, %v", findings, err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no server call, got %d", calls.Load())
	}
}

func TestLanguageToolInitialize_RemoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	lt := NewLanguageTool(LanguageToolConfig{ServerURL: srv.URL}, testLogger())
	if err := lt.Initialize(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestLanguageToolCheck_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/languages" {
			w.Write([]byte("[]"))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	lt := NewLanguageTool(LanguageToolConfig{ServerURL: srv.URL}, testLogger())
	if err := lt.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := lt.Check(context.Background(), "Hola."); err == nil {
		t.Fatal("expected error for server failure")
	}
}

func TestLanguageToolCleanup_IdempotentBeforeInitialize(t *testing.T) {
	lt := NewLanguageTool(LanguageToolConfig{CacheDir: t.TempDir()}, testLogger())
	for range 3 {
		if err := lt.Cleanup(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

// startSleeper launches a long-running stand-in for the java server.
func startSleeper(t *testing.T, lt *LanguageTool) (*exec.Cmd, chan struct{}) {
	t.Helper()
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep binary not available")
	}
	cmd := exec.Command(sleep, "30")
	if err := lt.launch(cmd); err != nil {
		t.Fatalf("launch: %v", err)
	}
	return cmd, lt.exited
}

func waitExited(t *testing.T, exited chan struct{}) {
	t.Helper()
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("process still running")
	}
}

func TestLanguageToolCleanup_KillsLocalServerOnce(t *testing.T) {
	lt := NewLanguageTool(LanguageToolConfig{CacheDir: t.TempDir()}, testLogger())
	cmd, exited := startSleeper(t, lt)

	if err := lt.Cleanup(); err != nil {
		t.Fatalf("first cleanup: %v", err)
	}
	waitExited(t, exited)
	if cmd.ProcessState == nil || cmd.ProcessState.Success() {
		t.Fatalf("expected killed process, got state %v", cmd.ProcessState)
	}
	if lt.cmd != nil {
		t.Fatal("process still tracked after cleanup")
	}

	// A second launch after Cleanup is not touched by later calls.
	other, otherExited := startSleeper(t, lt)
	t.Cleanup(func() { other.Process.Kill(); <-otherExited })
	if err := lt.Cleanup(); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	select {
	case <-otherExited:
		t.Fatal("second cleanup killed a process again")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLanguageToolInitialize_FailedStartLeavesCleanupUsable(t *testing.T) {
	falseBin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false binary not available")
	}
	cache := t.TempDir()
	if err := os.Mkdir(filepath.Join(cache, "LanguageTool-6.4"), 0o755); err != nil {
		t.Fatal(err)
	}
	lt := NewLanguageTool(LanguageToolConfig{
		CacheDir:     cache,
		JavaPath:     falseBin,
		StartTimeout: 5 * time.Second,
	}, testLogger())

	err = lt.Initialize(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if lt.cmd != nil {
		t.Fatal("failed server still tracked")
	}

	// Cleanup has not been spent by the failed start.
	cmd, exited := startSleeper(t, lt)
	if err := lt.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	waitExited(t, exited)
	if cmd.ProcessState == nil {
		t.Fatal("expected process to be reaped")
	}
}

func TestLatestDistribution(t *testing.T) {
	dir := t.TempDir()
	if got, err := latestDistribution(dir); err != nil || got != "" {
		t.Fatalf("expected empty result for empty cache, got %q, %v", got, err)
	}

	old := filepath.Join(dir, "LanguageTool-6.3")
	newer := filepath.Join(dir, "LanguageTool-6.4")
	for _, d := range []string{old, newer, filepath.Join(dir, "other-dir")} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "LanguageTool-9.9.zip"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	base := time.Now().Add(-time.Hour)
	os.Chtimes(newer, base, base)
	os.Chtimes(old, base.Add(time.Minute), base.Add(time.Minute))

	got, err := latestDistribution(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != old {
		t.Errorf("expected most recently modified %q, got %q", old, got)
	}
}

func testZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEnsureDistribution_DownloadsWhenCacheEmpty(t *testing.T) {
	archive := testZip(t, map[string]string{
		"LanguageTool-6.5/languagetool-server.jar": "jar",
		"LanguageTool-6.5/README.md":               "readme",
	})
	var downloads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		w.Write(archive)
	}))
	t.Cleanup(srv.Close)

	cache := filepath.Join(t.TempDir(), "cache")
	lt := NewLanguageTool(LanguageToolConfig{CacheDir: cache, DownloadURL: srv.URL + "/lt.zip"}, testLogger())

	dir, err := lt.ensureDistribution(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(dir) != "LanguageTool-6.5" {
		t.Errorf("unexpected dir %q", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, serverJar)); err != nil {
		t.Errorf("expected server jar to be extracted: %v", err)
	}

	// Second call reuses the cache.
	if _, err := lt.ensureDistribution(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if downloads.Load() != 1 {
		t.Errorf("expected a single download, got %d", downloads.Load())
	}

	entries, _ := os.ReadDir(cache)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if !slices.Equal(names, []string{"LanguageTool-6.5"}) {
		t.Errorf("expected temp archive to be removed, got %v", names)
	}
}

func TestUnzip_RejectsPathTraversal(t *testing.T) {
	archive := testZip(t, map[string]string{"../evil.txt": "x"})
	err := unzip(bytes.NewReader(archive), int64(len(archive)), t.TempDir())
	if err == nil {
		t.Fatal("expected error for entry escaping destination")
	}
}

func TestUTF16Slice(t *testing.T) {
	tests := []struct {
		s           string
		off, length int
		want        string
	}{
		{"Este es un texo", 11, 4, "texo"},
		{"ñandú y eror", 8, 4, "eror"},
		{"😀 holaa", 3, 5, "holaa"},
		{"corto", 3, 10, "to"},
		{"corto", 10, 2, ""},
	}
	for _, tt := range tests {
		if got := utf16Slice(tt.s, tt.off, tt.length); got != tt.want {
			t.Errorf("utf16Slice(%q, %d, %d) = %q, want %q", tt.s, tt.off, tt.length, got, tt.want)
		}
	}
}
