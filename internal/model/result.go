package model

import "time"

// DownloadOutcome is the result of one image download attempt.
//
// Exactly one of Success, Skipped, or a non-nil Err describes the outcome.
// Skipped marks URLs without a usable filename; those are neither
// successes nor failures.
type DownloadOutcome struct {
	// URL is the absolute image URL.
	URL string `json:"url"`

	// Path is the file the image was written to. Empty unless Success.
	Path string `json:"path,omitempty"`

	// Success is true when the file was fully written.
	Success bool `json:"success"`

	// Skipped is true when the URL path has no filename.
	Skipped bool `json:"skipped,omitempty"`

	// BytesWritten is the number of bytes written to Path.
	BytesWritten int64 `json:"bytes_written"`

	// Digest is the hex SHA3-256 digest of the image content.
	Digest string `json:"digest,omitempty"`

	// Error is the text of Err, kept for serialization.
	Error string `json:"error,omitempty"`

	// Err is the cause of a failed download.
	Err error `json:"-"`
}

// Failed reports whether the download was attempted and did not succeed.
func (o DownloadOutcome) Failed() bool {
	return !o.Success && !o.Skipped
}

// NodeResult describes what happened at one visited page.
type NodeResult struct {
	// URL is the page URL as it was queued.
	URL string `json:"url"`

	// FinalURL is the URL after redirects, used to resolve relative references.
	FinalURL string `json:"final_url,omitempty"`

	// Depth is the page's distance from the seed.
	Depth int `json:"depth"`

	// ImagesFound is the number of ImageRefs extracted from the page.
	ImagesFound int `json:"images_found"`

	// Downloaded is the number of images saved from this page only.
	// Images saved by pages linked from here are not included.
	Downloaded int `json:"downloaded"`

	// Failed is the number of image downloads that failed on this page.
	Failed int `json:"failed"`

	// LinksFollowed is the number of child tasks queued from this page.
	LinksFollowed int `json:"links_followed"`

	// Error is the text of Err, kept for serialization.
	Error string `json:"error,omitempty"`

	// Err is the page fetch error, if the page could not be fetched.
	Err error `json:"-"`
}

// OK reports whether the page was fetched.
func (n NodeResult) OK() bool {
	return n.Err == nil && n.Error == ""
}

// Summary is the result of one crawl run.
type Summary struct {
	// ID is the history database ID. Zero when the run was not recorded.
	ID int64 `json:"id,omitempty"`

	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// TargetDir is the directory images were written to.
	TargetDir string `json:"target_dir"`

	// Recursive indicates whether links were followed.
	Recursive bool `json:"recursive"`

	// MaxDepth is the depth limit for recursion.
	MaxDepth int `json:"max_depth"`

	// OriginPolicy is the policy used to accept child links.
	OriginPolicy OriginPolicy `json:"origin_policy"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl finished or was cancelled.
	FinishedAt time.Time `json:"finished_at"`

	// Nodes holds one entry per visited page, in visitation order.
	Nodes []NodeResult `json:"nodes"`

	// Images holds every download attempt that was not skipped, in the
	// order the pages were visited.
	Images []DownloadOutcome `json:"images"`

	// TotalDownloaded is the number of images saved across the whole run.
	TotalDownloaded int `json:"total_downloaded"`

	// Cancelled is true when the run stopped because its context ended.
	Cancelled bool `json:"cancelled,omitempty"`

	// Error is set when the seed page itself could not be fetched.
	Error string `json:"error,omitempty"`
}

// NewSummary creates an empty Summary for the given seed.
func NewSummary(seed string) *Summary {
	return &Summary{
		Seed:      seed,
		StartedAt: time.Now(),
		Nodes:     make([]NodeResult, 0),
		Images:    make([]DownloadOutcome, 0),
	}
}

// PagesVisited returns the number of pages that were fetched successfully.
func (s *Summary) PagesVisited() int {
	n := 0
	for _, node := range s.Nodes {
		if node.OK() {
			n++
		}
	}
	return n
}

// PagesFailed returns the number of pages whose fetch failed.
func (s *Summary) PagesFailed() int {
	return len(s.Nodes) - s.PagesVisited()
}

// DownloadsFailed returns the number of image downloads that failed.
func (s *Summary) DownloadsFailed() int {
	n := 0
	for _, img := range s.Images {
		if img.Failed() {
			n++
		}
	}
	return n
}

// BytesWritten returns the total size of all saved images.
func (s *Summary) BytesWritten() int64 {
	var total int64
	for _, img := range s.Images {
		if img.Success {
			total += img.BytesWritten
		}
	}
	return total
}

// Duration returns how long the run took.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Node returns the result for url, or false if it was not visited.
func (s *Summary) Node(url string) (NodeResult, bool) {
	for _, node := range s.Nodes {
		if node.URL == url {
			return node, true
		}
	}
	return NodeResult{}, false
}
