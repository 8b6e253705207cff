package crawler

import "github.com/nao1215/spider/internal/model"

// Observer receives progress events from a Spider.
//
// Page events are delivered from the crawling goroutine in visitation order.
// ImageFailed may be called from several download workers at once, so
// implementations must be safe for concurrent use.
type Observer interface {
	// PageStarted is called after the dedup gate, before the page is fetched.
	PageStarted(task model.CrawlTask)

	// PageFailed is called when the page could not be fetched.
	PageFailed(task model.CrawlTask, err error)

	// ImageFailed is called for each image download that failed.
	// Skipped images are not reported.
	ImageFailed(task model.CrawlTask, outcome model.DownloadOutcome)

	// PageFinished is called after the download phase of a fetched page.
	PageFinished(task model.CrawlTask, node model.NodeResult)

	// CrawlFinished is called once when the crawl ends for any reason.
	CrawlFinished(summary *model.Summary)
}

// NopObserver ignores all events.
type NopObserver struct{}

var _ Observer = NopObserver{}

// PageStarted implements Observer.
func (NopObserver) PageStarted(model.CrawlTask) {}

// PageFailed implements Observer.
func (NopObserver) PageFailed(model.CrawlTask, error) {}

// ImageFailed implements Observer.
func (NopObserver) ImageFailed(model.CrawlTask, model.DownloadOutcome) {}

// PageFinished implements Observer.
func (NopObserver) PageFinished(model.CrawlTask, model.NodeResult) {}

// CrawlFinished implements Observer.
func (NopObserver) CrawlFinished(*model.Summary) {}
