// Package crawler implements depth-limited image crawling.
//
// # Architecture
//
// The package is built around the Spider type, which drives a depth-first
// traversal from a seed URL. Each visited page goes through four steps:
//
//  1. The dedup gate: a page whose normalized URL was already seen is skipped.
//  2. The PageFetcher retrieves the document.
//  3. The Extractor yields the page's images and links in document order.
//  4. The ImageDownloader saves every image; then qualifying links are queued.
//
// Design decision: Fetching and downloading sit behind the PageFetcher and
// ImageDownloader interfaces because:
//  1. The traversal can be tested against an in-memory link graph
//  2. The HTTP client (pooling, proxying) is configured in one place
//  3. The Spider does not care how requests are scheduled
//
// # Failure handling
//
// Failures are local to the page or image that produced them. A page that
// cannot be fetched contributes nothing and its siblings are still crawled.
// A failed image download does not affect the other images on the page.
// Only a failure to fetch the seed page is reported to the caller as an error.
//
// # Concurrency
//
// Pages are visited one at a time in depth-first order. The images of a single
// page are downloaded by a bounded pool of workers. The visited set and the
// download counter are the only shared state and are safe for concurrent use.
//
// # Usage
//
//	client, _ := httpclient.New(httpclient.Options{Timeout: 10 * time.Second})
//	spider := crawler.NewSpider(
//		crawler.NewHTTPFetcher(client),
//		crawler.NewHTTPDownloader(client),
//		crawler.WithTargetDir("./data/"),
//		crawler.WithRecursive(true),
//		crawler.WithMaxDepth(5),
//	)
//	summary, err := spider.Crawl(ctx, "https://example.com/")
package crawler
