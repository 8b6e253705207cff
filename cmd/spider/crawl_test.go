package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/spider/internal/config"
	"github.com/nao1215/spider/internal/crawler"
	"github.com/nao1215/spider/internal/model"
	"github.com/nao1215/spider/internal/report"
)

// writeConfigFile writes a config file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".spider")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// parseCrawlFlags builds a config the way the root command does.
func parseCrawlFlags(t *testing.T, seed string, flags ...string) (*config.Config, error) {
	t.Helper()

	cmd := NewRootCmd()
	if err := cmd.ParseFlags(flags); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return buildConfig(cmd, []string{seed})
}

// TestBuildConfig tests flag and config file merging.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "")
		cfg, err := parseCrawlFlags(t, "example.com", "-c", cfgPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Seed != "example.com" {
			t.Errorf("Seed = %q", cfg.Seed)
		}
		if cfg.Recursive {
			t.Error("expected recursion off by default")
		}
		if cfg.MaxDepth != config.DefaultMaxDepth || cfg.TargetDir != config.DefaultTargetDir {
			t.Errorf("unexpected defaults: depth %d, dir %q", cfg.MaxDepth, cfg.TargetDir)
		}
		if cfg.OriginPolicy != model.OriginScheme {
			t.Errorf("OriginPolicy = %q", cfg.OriginPolicy)
		}
		if cfg.ReportFormat != config.ReportNone {
			t.Errorf("ReportFormat = %q", cfg.ReportFormat)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("defaults should validate: %v", err)
		}
	})

	t.Run("flags", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "")
		cfg, err := parseCrawlFlags(t, "https://example.com/",
			"-c", cfgPath,
			"-r", "-l", "2", "-p", "/tmp/images",
			"-t", "3s", "-w", "8",
			"--origin", "HOST", "--max-pages", "10",
			"--ignore", "/logout*,/admin/*", "--follow", "/gallery/*",
			"-H", "Authorization: Bearer token", "-H", "X-Test:1",
			"--user-agent", "test-agent", "--proxy", "127.0.0.1:9050",
			"--report", "JSON", "-o", "/tmp/report.json", "--record", "--db-dir", "/tmp/db",
			"-v",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !cfg.Recursive || cfg.MaxDepth != 2 || cfg.TargetDir != "/tmp/images" {
			t.Errorf("unexpected traversal config: %+v", cfg)
		}
		if cfg.Timeout != 3*time.Second || cfg.Workers != 8 {
			t.Errorf("unexpected http config: timeout %v, workers %d", cfg.Timeout, cfg.Workers)
		}
		if cfg.OriginPolicy != model.OriginHost || cfg.MaxPages != 10 {
			t.Errorf("unexpected policy: %q, %d", cfg.OriginPolicy, cfg.MaxPages)
		}
		if len(cfg.IgnorePatterns) != 2 || cfg.IgnorePatterns[1] != "/admin/*" {
			t.Errorf("IgnorePatterns = %v", cfg.IgnorePatterns)
		}
		if len(cfg.FollowPatterns) != 1 {
			t.Errorf("FollowPatterns = %v", cfg.FollowPatterns)
		}
		seed := cfg.SiteHeaders["example.com"]
		if seed["Authorization"] != "Bearer token" || seed["X-Test"] != "1" {
			t.Errorf("SiteHeaders = %v", cfg.SiteHeaders)
		}
		if len(cfg.Headers) != 0 {
			t.Errorf("expected no global headers, got %v", cfg.Headers)
		}
		if cfg.UserAgent != "test-agent" || cfg.ProxyAddress != "127.0.0.1:9050" {
			t.Errorf("unexpected client config: %q, %q", cfg.UserAgent, cfg.ProxyAddress)
		}
		if cfg.ReportFormat != config.ReportJSON || cfg.ReportFile != "/tmp/report.json" {
			t.Errorf("unexpected report config: %q, %q", cfg.ReportFormat, cfg.ReportFile)
		}
		if !cfg.Record || cfg.DBDir != "/tmp/db" || !cfg.Verbose {
			t.Errorf("unexpected record config: %+v", cfg)
		}
	})

	t.Run("site config applies to seed host", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, `
defaults:
  workers: 2
sites:
  example.com:
    depth: 3
    origin: host
    cookie: "session=abc"
    ignorePatterns:
      - "/logout*"
  other.com:
    depth: 9
`)
		cfg, err := parseCrawlFlags(t, "http://EXAMPLE.com/page", "-c", cfgPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxDepth != 3 || cfg.Workers != 2 || cfg.OriginPolicy != model.OriginHost {
			t.Errorf("site config not applied: depth %d, workers %d, origin %q", cfg.MaxDepth, cfg.Workers, cfg.OriginPolicy)
		}
		if got := cfg.SiteHeaders["example.com"]["Cookie"]; got != "session=abc" {
			t.Errorf("Cookie header = %q", got)
		}
		if _, ok := cfg.Headers["Cookie"]; ok {
			t.Errorf("cookie must not be global, got %v", cfg.Headers)
		}
		if len(cfg.IgnorePatterns) != 1 {
			t.Errorf("IgnorePatterns = %v", cfg.IgnorePatterns)
		}
	})

	t.Run("flags win over site config", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, `
sites:
  example.com:
    depth: 3
    workers: 6
`)
		cfg, err := parseCrawlFlags(t, "example.com", "-c", cfgPath, "-l", "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MaxDepth != 1 {
			t.Errorf("MaxDepth = %d, want 1", cfg.MaxDepth)
		}
		if cfg.Workers != 6 {
			t.Errorf("Workers = %d, want 6", cfg.Workers)
		}
	})

	t.Run("output implies text report", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "")
		cfg, err := parseCrawlFlags(t, "example.com", "-c", cfgPath, "-o", "report.txt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ReportFormat != config.ReportText {
			t.Errorf("ReportFormat = %q, want text", cfg.ReportFormat)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		_, err := parseCrawlFlags(t, "example.com", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid config file", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "sites: [not, a, map")
		if _, err := parseCrawlFlags(t, "example.com", "-c", cfgPath); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("log format", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "")
		cfg, err := parseCrawlFlags(t, "example.com", "-c", cfgPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.LogFormat != config.LogText {
			t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, config.LogText)
		}

		cfg, err = parseCrawlFlags(t, "example.com", "-c", cfgPath, "--log-format", "JSON")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.LogFormat != config.LogJSON {
			t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, config.LogJSON)
		}
	})

	t.Run("invalid header", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "")
		if _, err := parseCrawlFlags(t, "example.com", "-c", cfgPath, "-H", "no-colon"); err == nil {
			t.Error("expected header error")
		}
	})
}

// TestParseHeader tests header flag parsing.
func TestParseHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		name    string
		value   string
		wantErr bool
	}{
		{"Accept: image/*", "Accept", "image/*", false},
		{"X-Empty:", "X-Empty", "", false},
		{"  Spaced  :  value  ", "Spaced", "value", false},
		{"Cookie: a=b; c=d", "Cookie", "a=b; c=d", false},
		{"no-colon", "", "", true},
		{": value", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			name, value, err := parseHeader(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHeader(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if name != tt.name || value != tt.value {
				t.Errorf("parseHeader(%q) = %q, %q; want %q, %q", tt.input, name, value, tt.name, tt.value)
			}
		})
	}
}

// newGallery serves a two-page site with three images.
func newGallery(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<img src="/a.png"><img src="b.jpg">
			<a href="/page">next</a>
		</body></html>`)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><img src="/c.gif"><a href="/">home</a></body></html>`)
	})
	for _, name := range []string{"/a.png", "/b.jpg", "/c.gif"} {
		mux.HandleFunc(name, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "image bytes of %s", r.URL.Path)
		})
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// executeRoot runs the root command and returns its output.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out, _, err := executeRootWithLogs(t, args...)
	return out, err
}

// executeRootWithLogs runs the root command and returns stdout and stderr.
func executeRootWithLogs(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// headerRecorder remembers the credentials each request path arrived with.
type headerRecorder struct {
	mu   sync.Mutex
	seen map[string]http.Header
}

func (h *headerRecorder) record(r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.seen == nil {
		h.seen = make(map[string]http.Header)
	}
	h.seen[r.URL.Path] = r.Header.Clone()
}

func (h *headerRecorder) snapshot() map[string]http.Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.seen)
}

// TestCrawlCommand runs the crawl end to end against a local server.
func TestCrawlCommand(t *testing.T) {
	t.Parallel()

	t.Run("single page", func(t *testing.T) {
		t.Parallel()

		server := newGallery(t)
		dir := filepath.Join(t.TempDir(), "images")

		out, err := executeRoot(t, "-c", writeConfigFile(t, ""), "-p", dir, server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(out, "[+] Downloaded 2 image(s) from") {
			t.Errorf("expected seed progress line, got:\n%s", out)
		}
		if strings.Contains(out, "depth 1") {
			t.Errorf("expected no recursion, got:\n%s", out)
		}
		if !strings.Contains(out, "[✔] Finished. Total images downloaded: 2") {
			t.Errorf("expected finish line, got:\n%s", out)
		}
		for _, name := range []string{"a.png", "b.jpg"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				t.Errorf("expected %s to be saved: %v", name, err)
			}
		}
	})

	t.Run("recursive with report and record", func(t *testing.T) {
		t.Parallel()

		server := newGallery(t)
		dir := t.TempDir()
		dbDir := t.TempDir()
		reportPath := filepath.Join(t.TempDir(), "reports", "run.json")

		out, err := executeRoot(t,
			"-c", writeConfigFile(t, ""),
			"-r", "-l", "1", "-p", dir,
			"--report", "json", "-o", reportPath,
			"--record", "--db-dir", dbDir,
			server.URL,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(out, "  [*] Crawling (depth 1): "+server.URL+"/page") {
			t.Errorf("expected indented child line, got:\n%s", out)
		}
		if !strings.Contains(out, "Total images downloaded: 3") {
			t.Errorf("expected total of 3, got:\n%s", out)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		var rep report.JSONReport
		if err := json.Unmarshal(data, &rep); err != nil {
			t.Fatalf("invalid report: %v", err)
		}
		if rep.Totals.PagesVisited != 2 || rep.Totals.ImagesSaved != 3 {
			t.Errorf("unexpected totals: %+v", rep.Totals)
		}
		if rep.Summary.ID == 0 {
			t.Error("expected recorded run id in report")
		}

		history, err := executeRoot(t, "history", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(history, "Recorded runs (1)") || !strings.Contains(history, server.URL) {
			t.Errorf("unexpected history:\n%s", history)
		}
	})

	t.Run("seed failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(server.Close)

		out, err := executeRoot(t, "-c", writeConfigFile(t, ""), "-p", t.TempDir(), server.URL)
		if !errors.Is(err, crawler.ErrSeedUnreachable) {
			t.Fatalf("expected ErrSeedUnreachable, got %v", err)
		}
		if !strings.Contains(out, "[!] Failed to fetch") {
			t.Errorf("expected fetch failure line, got:\n%s", out)
		}
		if !strings.Contains(out, "Total images downloaded: 0") {
			t.Errorf("expected total to be printed, got:\n%s", out)
		}
	})

	t.Run("site credentials stay on their host", func(t *testing.T) {
		t.Parallel()

		var foreign, own headerRecorder

		other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			foreign.record(r)
			if r.URL.Path == "/page" {
				w.Header().Set("Content-Type", "text/html")
				fmt.Fprint(w, `<html><body>nothing here</body></html>`)
				return
			}
			fmt.Fprint(w, "image bytes")
		}))
		t.Cleanup(other.Close)

		site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			own.record(r)
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<html><body>
				<img src="%[1]s/x.png">
				<a href="%[1]s/page">away</a>
			</body></html>`, other.URL)
		}))
		t.Cleanup(site.Close)

		siteHost := strings.TrimPrefix(site.URL, "http://")
		cfgPath := writeConfigFile(t, fmt.Sprintf(`
sites:
  "%s":
    cookie: "session=SECRET"
    headers:
      Authorization: "Bearer TOKEN"
`, siteHost))

		_, err := executeRoot(t, "-c", cfgPath, "-r", "-l", "1", "-p", t.TempDir(), site.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		seed, ok := own.snapshot()["/"]
		if !ok {
			t.Fatal("expected the seed to be fetched")
		}
		if seed.Get("Cookie") != "session=SECRET" || seed.Get("Authorization") != "Bearer TOKEN" {
			t.Errorf("expected credentials on the seed host, got %v", seed)
		}

		seen := foreign.snapshot()
		for _, path := range []string{"/page", "/x.png"} {
			header, ok := seen[path]
			if !ok {
				t.Errorf("expected %s to be fetched from the other host", path)
				continue
			}
			if header.Get("Cookie") != "" || header.Get("Authorization") != "" {
				t.Errorf("%s leaked credentials: %v", path, header)
			}
		}
	})

	t.Run("json logs", func(t *testing.T) {
		t.Parallel()

		server := newGallery(t)
		_, logs, err := executeRootWithLogs(t,
			"-c", writeConfigFile(t, ""), "-v", "--log-format", "json",
			"-p", t.TempDir(), server.URL,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(logs), "\n")
		if len(lines) == 0 || lines[0] == "" {
			t.Fatal("expected log records on stderr")
		}
		for _, line := range lines {
			var record map[string]any
			if err := json.Unmarshal([]byte(line), &record); err != nil {
				t.Fatalf("expected a JSON record, got %q: %v", line, err)
			}
		}
		if !strings.Contains(logs, `"msg":"crawl finished"`) {
			t.Errorf("expected crawl finished record, got:\n%s", logs)
		}
	})

	t.Run("invalid configuration", func(t *testing.T) {
		t.Parallel()

		_, err := executeRoot(t, "-c", writeConfigFile(t, ""), "-w", "0", "http://example.com/")
		if !errors.Is(err, config.ErrInvalidWorkers) {
			t.Errorf("expected ErrInvalidWorkers, got %v", err)
		}

		_, err = executeRoot(t, "-c", writeConfigFile(t, ""), "ftp://example.com/")
		if !errors.Is(err, config.ErrInvalidSeed) {
			t.Errorf("expected ErrInvalidSeed, got %v", err)
		}

		_, err = executeRoot(t, "-c", writeConfigFile(t, ""), "--log-format", "xml", "http://example.com/")
		if !errors.Is(err, config.ErrInvalidLogFormat) {
			t.Errorf("expected ErrInvalidLogFormat, got %v", err)
		}
	})
}

// TestOutputReport tests report format selection.
func TestOutputReport(t *testing.T) {
	t.Parallel()

	summary := model.NewSummary("http://example.com/")
	summary.FinishedAt = summary.StartedAt.Add(time.Second)

	tests := []struct {
		format config.ReportFormat
		want   string
	}{
		{config.ReportNone, ""},
		{config.ReportText, "SPIDER REPORT"},
		{config.ReportMarkdown, "# Spider Report"},
		{config.ReportJSON, `"version"`},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			t.Parallel()

			cfg := config.NewConfig()
			cfg.ReportFormat = tt.format

			var buf bytes.Buffer
			if err := outputReport(cfg, summary, &buf); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want == "" {
				if buf.Len() != 0 {
					t.Errorf("expected no output, got %q", buf.String())
				}
				return
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected output to contain %q, got:\n%s", tt.want, buf.String())
			}
		})
	}
}
