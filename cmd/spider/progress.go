package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nao1215/spider/internal/crawler"
	"github.com/nao1215/spider/internal/model"
)

// consoleObserver prints crawl progress lines, indented by depth.
// ImageFailed arrives from download workers, so writes are serialized.
type consoleObserver struct {
	mu  sync.Mutex
	out io.Writer
}

var _ crawler.Observer = (*consoleObserver)(nil)

// newConsoleObserver creates a console observer writing to out.
func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{out: out}
}

func (o *consoleObserver) printf(depth int, format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, strings.Repeat("  ", depth)+format+"\n", args...)
}

// PageStarted implements crawler.Observer.
func (o *consoleObserver) PageStarted(task model.CrawlTask) {
	o.printf(task.Depth, "[*] Crawling (depth %d): %s", task.Depth, task.URL)
}

// PageFailed implements crawler.Observer.
func (o *consoleObserver) PageFailed(task model.CrawlTask, err error) {
	o.printf(task.Depth, "[!] Failed to fetch %s: %v", task.URL, err)
}

// ImageFailed implements crawler.Observer.
func (o *consoleObserver) ImageFailed(task model.CrawlTask, outcome model.DownloadOutcome) {
	o.printf(task.Depth, "[!] Failed to download %s: %s", outcome.URL, outcome.Error)
}

// PageFinished implements crawler.Observer.
func (o *consoleObserver) PageFinished(task model.CrawlTask, node model.NodeResult) {
	o.printf(task.Depth, "[+] Downloaded %d image(s) from %s", node.Downloaded, task.URL)
}

// CrawlFinished implements crawler.Observer.
func (o *consoleObserver) CrawlFinished(summary *model.Summary) {
	o.printf(0, "[✔] Finished. Total images downloaded: %d", summary.TotalDownloaded)
}
