package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/spider/internal/model"
)

// Default crawl settings.
const (
	// DefaultMaxDepth is the recursion limit when none is given.
	DefaultMaxDepth = 5

	// DefaultWorkers is the number of concurrent image downloads per page.
	DefaultWorkers = 4

	// DefaultTargetDir is where images are saved when no directory is given.
	DefaultTargetDir = "./data/"
)

// Spider crawls pages from a seed URL and downloads the images it finds.
//
// Design decision: Traversal uses an explicit stack of CrawlTasks instead of
// recursion. Children are pushed in reverse document order and the dedup gate
// runs when a task is popped, which gives exactly the depth-first preorder of
// the recursive formulation without tying link depth to call-stack depth.
type Spider struct {
	// fetcher retrieves pages.
	fetcher PageFetcher

	// downloader saves images.
	downloader ImageDownloader

	// targetDir is the directory images are written to.
	targetDir string

	// maxDepth limits how deep to crawl from the seed URL.
	// 0 means only the seed page, 1 means one level of links, etc.
	maxDepth int

	// recursive enables following links at all.
	recursive bool

	// originPolicy decides which links belong to the crawl.
	originPolicy model.OriginPolicy

	// workers bounds concurrent image downloads within one page.
	workers int

	// maxPages limits the number of pages visited. 0 means no limit.
	maxPages int

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are crawled.
	followPatterns []string

	// observer receives progress events.
	observer Observer

	// logger receives diagnostic output.
	logger *slog.Logger

	// state holds the visited set and the download counter.
	state *CrawlState

	// seed is the parsed seed URL of the current crawl.
	seed *url.URL
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithTargetDir sets the directory images are saved to.
func WithTargetDir(dir string) SpiderOption {
	return func(s *Spider) {
		s.targetDir = dir
	}
}

// WithMaxDepth sets the maximum crawl depth.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithRecursive enables or disables following links.
func WithRecursive(recursive bool) SpiderOption {
	return func(s *Spider) {
		s.recursive = recursive
	}
}

// WithOriginPolicy sets the policy used to accept child links.
func WithOriginPolicy(policy model.OriginPolicy) SpiderOption {
	return func(s *Spider) {
		if policy.Valid() {
			s.originPolicy = policy
		}
	}
}

// WithWorkers sets the number of concurrent image downloads per page.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxPages sets the maximum number of pages to visit. 0 means no limit.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithObserver sets the receiver of progress events.
func WithObserver(o Observer) SpiderOption {
	return func(s *Spider) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider that fetches pages with fetcher and saves
// images with downloader.
func NewSpider(fetcher PageFetcher, downloader ImageDownloader, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:      fetcher,
		downloader:   downloader,
		targetDir:    DefaultTargetDir,
		maxDepth:     DefaultMaxDepth,
		originPolicy: model.OriginScheme,
		workers:      DefaultWorkers,
		observer:     NopObserver{},
		logger:       slog.Default(),
		state:        NewCrawlState(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl visits seedURL and, when recursion is enabled, the pages it links to,
// downloading every image found along the way.
//
// The returned Summary is never nil once the seed URL has been parsed; on
// cancellation it holds the partial result and the error is ctx.Err(). If the
// seed page cannot be fetched the error wraps ErrSeedUnreachable.
//
// A Spider keeps its visited set between calls; use Reset to start over.
func (s *Spider) Crawl(ctx context.Context, seedURL string) (*model.Summary, error) {
	seed, err := ParseSeed(seedURL)
	if err != nil {
		return nil, err
	}
	s.seed = seed

	summary := model.NewSummary(seed.String())
	summary.TargetDir = s.targetDir
	summary.Recursive = s.recursive
	summary.MaxDepth = s.maxDepth
	summary.OriginPolicy = s.originPolicy

	finish := func() {
		summary.TotalDownloaded = int(s.state.TotalDownloaded())
		summary.FinishedAt = time.Now()
		s.observer.CrawlFinished(summary)
	}

	stack := []model.CrawlTask{{URL: summary.Seed, Depth: 0}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			summary.Cancelled = true
			finish()
			return summary, err
		}

		if s.maxPages > 0 && len(summary.Nodes) >= s.maxPages {
			s.logger.Info("page limit reached", "max_pages", s.maxPages, "pending", len(stack))
			break
		}

		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		result, ok := s.visit(ctx, task)
		if !ok {
			continue
		}

		summary.Nodes = append(summary.Nodes, result.node)
		summary.Images = append(summary.Images, result.images...)

		// The seed is always the first page visited
		if len(summary.Nodes) == 1 && result.node.Err != nil {
			summary.Error = result.node.Error
			finish()
			return summary, fmt.Errorf("%w: %w", ErrSeedUnreachable, result.node.Err)
		}

		for i := len(result.children) - 1; i >= 0; i-- {
			stack = append(stack, result.children[i])
		}
	}

	finish()
	return summary, nil
}

// visitResult is the outcome of processing one CrawlTask.
type visitResult struct {
	node     model.NodeResult
	images   []model.DownloadOutcome
	children []model.CrawlTask
}

// visit processes one task. It returns false if the task's URL was already
// visited, in which case nothing was fetched.
func (s *Spider) visit(ctx context.Context, task model.CrawlTask) (*visitResult, bool) {
	if !s.state.MarkVisited(normalizeURL(task.URL)) {
		return nil, false
	}

	s.observer.PageStarted(task)
	s.logger.Debug("crawling page", "url", task.URL, "depth", task.Depth)

	result := &visitResult{
		node: model.NodeResult{URL: task.URL, Depth: task.Depth},
	}

	doc, err := s.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		result.node.Err = err
		result.node.Error = err.Error()
		s.logger.Warn("failed to fetch page", "url", task.URL, "depth", task.Depth, "error", err)
		s.observer.PageFailed(task, err)
		return result, true
	}
	result.node.FinalURL = doc.FinalURL

	refs := s.extract(doc)

	var images []model.ImageRef
	if refs != nil {
		images = slices.Collect(refs.Images())
	}
	result.node.ImagesFound = len(images)

	for _, outcome := range s.downloadAll(ctx, task, images) {
		switch {
		case outcome.Success:
			result.node.Downloaded++
		case outcome.Skipped:
			continue
		default:
			result.node.Failed++
		}
		result.images = append(result.images, outcome)
	}

	if refs != nil && s.recursive && task.Depth < s.maxDepth {
		result.children = s.children(task, refs)
	}
	result.node.LinksFollowed = len(result.children)

	s.logger.Debug("page done",
		"url", task.URL,
		"depth", task.Depth,
		"downloaded", result.node.Downloaded,
		"failed", result.node.Failed,
		"links", result.node.LinksFollowed,
	)
	s.observer.PageFinished(task, result.node)

	return result, true
}

// extract parses the document. A document that cannot be parsed yields no
// references and is otherwise ignored.
func (s *Spider) extract(doc *Document) *Refs {
	base := doc.FinalURL
	if base == "" {
		base = doc.URL
	}

	extractor, err := NewExtractor(base)
	if err != nil {
		s.logger.Debug("cannot resolve against page URL", "url", base, "error", err)
		return nil
	}

	// The body is already in memory, so this only fails if Extract is ever
	// handed a streaming reader
	refs, err := extractor.Extract(bytes.NewReader(doc.Body))
	if err != nil {
		s.logger.Debug("failed to parse page", "url", base, "error", err)
		return nil
	}
	return refs
}

// children returns the tasks for the page's qualifying links in document
// order. Links already visited or repeated on the same page are dropped here;
// the dedup gate still runs when each task is popped.
func (s *Spider) children(task model.CrawlTask, refs *Refs) []model.CrawlTask {
	children := make([]model.CrawlTask, 0)
	seen := make(map[string]bool)

	for link := range refs.Links() {
		if !s.isSameOrigin(link.URL) || !s.shouldCrawl(link.URL) {
			continue
		}
		norm := normalizeURL(link.URL)
		if seen[norm] || s.state.IsVisited(norm) {
			continue
		}
		seen[norm] = true
		children = append(children, task.Child(link.URL))
	}

	return children
}

// downloadAll downloads images with at most s.workers concurrent downloads
// and returns the outcomes in document order.
//
// Images that map to the same filename are handled by a single worker in
// document order, so the file left on disk is the one a sequential crawl
// would have left.
func (s *Spider) downloadAll(ctx context.Context, task model.CrawlTask, images []model.ImageRef) []model.DownloadOutcome {
	outcomes := make([]model.DownloadOutcome, len(images))
	if len(images) == 0 {
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, group := range groupByFilename(images) {
		g.Go(func() error {
			for _, i := range group {
				if err := ctx.Err(); err != nil {
					outcomes[i] = failed(
						model.DownloadOutcome{URL: images[i].URL},
						&DownloadError{URL: images[i].URL, Err: err},
					)
					continue
				}

				outcome := s.downloader.Download(ctx, images[i], s.targetDir)
				outcomes[i] = outcome

				switch {
				case outcome.Success:
					s.state.AddDownloaded(1)
				case outcome.Skipped:
				default:
					s.logger.Warn("failed to download image", "url", outcome.URL, "error", outcome.Err)
					s.observer.ImageFailed(task, outcome)
				}
			}
			return nil
		})
	}

	// Workers never return errors; failures are recorded in outcomes
	_ = g.Wait() //nolint:errcheck // Always nil

	return outcomes
}

// groupByFilename groups image indexes by destination filename, keeping
// groups and their members in document order. Names are compared
// case-insensitively because the target filesystem may be.
func groupByFilename(images []model.ImageRef) [][]int {
	index := make(map[string]int)
	groups := make([][]int, 0, len(images))

	for i, img := range images {
		name, err := FilenameFromURL(img.URL)
		if err != nil {
			groups = append(groups, []int{i})
			continue
		}

		key := strings.ToLower(name)
		if g, ok := index[key]; ok {
			groups[g] = append(groups[g], i)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []int{i})
	}

	return groups
}

// ParseSeed validates and normalizes a seed URL. A URL without a scheme is
// treated as http. Only http and https are supported.
func ParseSeed(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidSeed
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSeed, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidSeed)
	}

	return u, nil
}

// isSameOrigin checks a link against the seed URL under the origin policy.
//
// Under OriginScheme a link to a different host with the seed's scheme is
// accepted; this matches the behavior users of the scheme policy rely on.
// OriginHost also requires the same host and port.
func (s *Spider) isSameOrigin(link string) bool {
	if s.seed == nil {
		return false
	}

	switch s.originPolicy {
	case model.OriginHost:
		u, err := url.Parse(link)
		if err != nil {
			return false
		}
		return u.Scheme == s.seed.Scheme && strings.EqualFold(u.Host, s.seed.Host)
	default:
		return strings.HasPrefix(link, s.seed.Scheme+"://")
	}
}

// normalizeURL normalizes a URL for deduplication.
//
// Design decision: We normalize URLs because:
//  1. Same page can have different URL representations
//  2. Fragment (#anchor) doesn't change content
//  3. http://example.com and http://example.com/ are the same page
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// Reset clears the visited set and the download counter, allowing the
// Spider to be reused for an unrelated crawl.
func (s *Spider) Reset() {
	s.state = NewCrawlState()
	s.seed = nil
}

// Stats returns current crawl statistics.
func (s *Spider) Stats() SpiderStats {
	return SpiderStats{
		URLsVisited:      s.state.VisitedCount(),
		ImagesDownloaded: int(s.state.TotalDownloaded()),
	}
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// URLsVisited is the number of unique URLs that passed the dedup gate.
	URLsVisited int

	// ImagesDownloaded is the number of images saved.
	ImagesDownloaded int
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	if len(s.ignorePatterns) == 0 && len(s.followPatterns) == 0 {
		return true
	}

	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match everything below a prefix
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash also match the last path segment
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
