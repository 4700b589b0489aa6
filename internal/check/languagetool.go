package check

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/dgallion1/docproof/internal/report"
)

// maxSuggestions caps replacements kept per match.
const maxSuggestions = 5

const (
	serverJar   = "languagetool-server.jar"
	serverClass = "org.languagetool.server.HTTPServer"
	distPrefix  = "LanguageTool-"
)

// LanguageToolConfig holds the deterministic checker settings.
type LanguageToolConfig struct {
	Language string
	// CacheDir holds unpacked LanguageTool-<version> distributions.
	CacheDir string
	// ServerURL, when set, points at a running server and no local
	// process is started.
	ServerURL    string
	JavaPath     string
	DownloadURL  string
	StartTimeout time.Duration
	HTTPTimeout  time.Duration
}

// LanguageTool checks spelling and grammar with a LanguageTool HTTP server,
// either remote or a local process started from the cached distribution.
type LanguageTool struct {
	cfg    LanguageToolConfig
	log    *slog.Logger
	client *http.Client

	baseURL string
	cmd     *exec.Cmd
	exited  chan struct{}

	cleanupOnce sync.Once
	cleanupErr  error
}

func NewLanguageTool(cfg LanguageToolConfig, log *slog.Logger) *LanguageTool {
	if cfg.Language == "" {
		cfg.Language = "es"
	}
	if cfg.JavaPath == "" {
		cfg.JavaPath = "java"
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 60 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 60 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &LanguageTool{
		cfg:    cfg,
		log:    log.With("checker", string(report.Deterministic), "language", cfg.Language),
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

func (l *LanguageTool) Method() report.Method { return report.Deterministic }

func (l *LanguageTool) Initialize(ctx context.Context) error {
	if l.cfg.ServerURL != "" {
		l.baseURL = strings.TrimRight(l.cfg.ServerURL, "/")
		if err := l.ping(ctx); err != nil {
			return fmt.Errorf("%w: languagetool at %s: %w", ErrUnavailable, l.baseURL, err)
		}
		l.log.Info("using remote languagetool", "url", l.baseURL)
		return nil
	}

	dir, err := l.ensureDistribution(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := l.startServer(ctx, dir); err != nil {
		l.stopProcess()
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// ensureDistribution returns the newest cached distribution directory,
// downloading one when the cache has none.
func (l *LanguageTool) ensureDistribution(ctx context.Context) (string, error) {
	if err := os.MkdirAll(l.cfg.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	dir, err := latestDistribution(l.cfg.CacheDir)
	if err != nil {
		return "", err
	}
	if dir != "" {
		l.log.Info("using cached languagetool", "dir", filepath.Base(dir))
		return dir, nil
	}

	if l.cfg.DownloadURL == "" {
		return "", fmt.Errorf("no languagetool distribution in %s and no download url", l.cfg.CacheDir)
	}
	l.log.Info("downloading languagetool", "url", l.cfg.DownloadURL)
	if err := l.download(ctx); err != nil {
		return "", err
	}
	dir, err = latestDistribution(l.cfg.CacheDir)
	if err != nil {
		return "", err
	}
	if dir == "" {
		return "", fmt.Errorf("downloaded archive has no %s* directory", distPrefix)
	}
	return dir, nil
}

// latestDistribution picks the most recently modified LanguageTool-*
// directory in cacheDir, or "" when there is none.
func latestDistribution(cacheDir string) (string, error) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return "", fmt.Errorf("read cache dir: %w", err)
	}
	var best string
	var bestMod time.Time
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), distPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = filepath.Join(cacheDir, e.Name())
			bestMod = info.ModTime()
		}
	}
	return best, nil
}

func (l *LanguageTool) download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}
	// The distribution is a few hundred MB; the per-call timeout doesn't apply.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download languagetool: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download languagetool: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(l.cfg.CacheDir, "languagetool-*.zip")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size, err := io.Copy(tmp, resp.Body)
	if err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return unzip(tmp, size, l.cfg.CacheDir)
}

func unzip(r io.ReaderAt, size int64, dest string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	for _, f := range zr.File {
		target := filepath.Join(root, f.Name)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (l *LanguageTool) startServer(ctx context.Context, dir string) error {
	port, err := freePort()
	if err != nil {
		return fmt.Errorf("pick port: %w", err)
	}

	cmd := exec.Command(l.cfg.JavaPath, "-cp", serverJar, serverClass, "--port", strconv.Itoa(port))
	cmd.Dir = dir
	if err := l.launch(cmd); err != nil {
		return fmt.Errorf("start languagetool server: %w", err)
	}
	l.baseURL = "http://127.0.0.1:" + strconv.Itoa(port)
	l.log.Info("started languagetool server", "pid", cmd.Process.Pid, "port", port, "dir", dir)

	return l.waitReady(ctx)
}

// launch starts cmd and tracks it as the local server process.
func (l *LanguageTool) launch(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	l.cmd = cmd
	l.exited = make(chan struct{})
	go func(exited chan struct{}) {
		cmd.Wait()
		close(exited)
	}(l.exited)
	return nil
}

// stopProcess kills the tracked server process, if any, and waits briefly
// for it to exit. It forgets the process so a later call is a no-op.
func (l *LanguageTool) stopProcess() error {
	if l.cmd == nil || l.cmd.Process == nil {
		return nil
	}
	cmd, exited := l.cmd, l.exited
	l.cmd, l.exited = nil, nil
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop languagetool server: %w", err)
	}
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
	}
	l.log.Info("stopped languagetool server", "pid", cmd.Process.Pid)
	return nil
}

// waitReady polls the server until it answers or StartTimeout expires.
func (l *LanguageTool) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.StartTimeout)
	defer cancel()

	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := l.ping(ctx); err == nil {
			return nil
		}
		select {
		case <-l.exited:
			return errors.New("languagetool server exited during startup")
		case <-ctx.Done():
			return fmt.Errorf("languagetool server not ready after %s: %w", l.cfg.StartTimeout, ctx.Err())
		case <-tick.C:
		}
	}
}

func (l *LanguageTool) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/v2/languages", nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

type ltResponse struct {
	Matches []ltMatch `json:"matches"`
}

type ltMatch struct {
	Message      string `json:"message"`
	Offset       int    `json:"offset"`
	Length       int    `json:"length"`
	Replacements []struct {
		Value string `json:"value"`
	} `json:"replacements"`
	Context struct {
		Text   string `json:"text"`
		Offset int    `json:"offset"`
		Length int    `json:"length"`
	} `json:"context"`
	Rule struct {
		ID       string `json:"id"`
		Category struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"category"`
	} `json:"rule"`
}

// Check runs the text through /v2/check. Findings keep the server's order,
// which is source order.
func (l *LanguageTool) Check(ctx context.Context, text string) ([]report.Finding, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if l.baseURL == "" {
		return nil, errors.New("languagetool not initialized")
	}

	form := url.Values{}
	form.Set("language", l.cfg.Language)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v2/check", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("languagetool check: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("languagetool status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed ltResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	findings := make([]report.Finding, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		findings = append(findings, matchFinding(m))
	}
	return findings, nil
}

func matchFinding(m ltMatch) report.Finding {
	suggestions := make([]string, 0, min(len(m.Replacements), maxSuggestions))
	for _, r := range m.Replacements {
		if len(suggestions) == maxSuggestions {
			break
		}
		suggestions = append(suggestions, r.Value)
	}
	return report.Finding{
		Method:      report.Deterministic,
		Word:        utf16Slice(m.Context.Text, m.Context.Offset, m.Context.Length),
		Offset:      max(m.Offset, 0),
		Suggestions: suggestions,
		Category:    m.Rule.Category.ID,
		Context:     m.Context.Text,
	}
}

// utf16Slice cuts s by UTF-16 code unit positions, the unit LanguageTool
// reports offsets in. Out-of-range bounds are clamped.
func utf16Slice(s string, offset, length int) string {
	units := utf16.Encode([]rune(s))
	start := min(max(offset, 0), len(units))
	end := min(max(start+length, start), len(units))
	return string(utf16.Decode(units[start:end]))
}

// Cleanup stops the local server process. Only the first call does work.
func (l *LanguageTool) Cleanup() error {
	l.cleanupOnce.Do(func() {
		l.client.CloseIdleConnections()
		l.cleanupErr = l.stopProcess()
	})
	return l.cleanupErr
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
