package crawler

import (
	"sync"
	"sync/atomic"
)

// CrawlState is the mutable state of one crawl run: the set of normalized
// URLs already queued for crawling and the number of images saved so far.
//
// A URL enters the visited set at most once, before its page is fetched,
// and is never removed. The counter only grows.
type CrawlState struct {
	// visited tracks normalized URLs already visited.
	visited map[string]struct{}

	// mutex protects concurrent access to visited.
	mutex sync.Mutex

	// downloaded counts images saved across the whole run.
	downloaded atomic.Int64
}

// NewCrawlState creates an empty CrawlState.
func NewCrawlState() *CrawlState {
	return &CrawlState{visited: make(map[string]struct{})}
}

// MarkVisited adds url to the visited set and reports whether it was new.
// Checking and inserting happen under one lock, so two callers racing on
// the same URL cannot both get true.
func (s *CrawlState) MarkVisited(url string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.visited[url]; ok {
		return false
	}
	s.visited[url] = struct{}{}
	return true
}

// IsVisited reports whether url is in the visited set.
func (s *CrawlState) IsVisited(url string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.visited[url]
	return ok
}

// VisitedCount returns the size of the visited set.
func (s *CrawlState) VisitedCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.visited)
}

// AddDownloaded records n saved images and returns the new total.
func (s *CrawlState) AddDownloaded(n int) int64 {
	return s.downloaded.Add(int64(n))
}

// TotalDownloaded returns the number of images saved so far.
func (s *CrawlState) TotalDownloaded() int64 {
	return s.downloaded.Load()
}
