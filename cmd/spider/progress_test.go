package main

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/spider/internal/model"
)

func TestConsoleObserver(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	o := newConsoleObserver(&buf)

	seed := model.CrawlTask{URL: "http://a.test/", Depth: 0}
	child := seed.Child("http://a.test/gone")

	o.PageStarted(seed)
	o.PageFinished(seed, model.NodeResult{URL: seed.URL, Downloaded: 2})
	o.PageStarted(child)
	o.PageFailed(child, errors.New("404 Not Found"))
	o.ImageFailed(seed, model.DownloadOutcome{URL: "http://a.test/x.png", Error: "timeout"})
	o.CrawlFinished(&model.Summary{TotalDownloaded: 2})

	want := []string{
		"[*] Crawling (depth 0): http://a.test/",
		"[+] Downloaded 2 image(s) from http://a.test/",
		"  [*] Crawling (depth 1): http://a.test/gone",
		"  [!] Failed to fetch http://a.test/gone: 404 Not Found",
		"[!] Failed to download http://a.test/x.png: timeout",
		"[✔] Finished. Total images downloaded: 2",
	}
	got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(got), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConsoleObserverConcurrent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	o := newConsoleObserver(&buf)
	task := model.CrawlTask{URL: "http://a.test/", Depth: 1}

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.ImageFailed(task, model.DownloadOutcome{URL: "http://a.test/x.png", Error: "boom"})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if line != "  [!] Failed to download http://a.test/x.png: boom" {
			t.Errorf("interleaved line: %q", line)
		}
	}
}
