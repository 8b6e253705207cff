package model

// CrawlTask is one unit of traversal work: a page URL and its distance in
// link hops from the seed URL. The seed is depth 0.
type CrawlTask struct {
	// URL is the absolute URL of the page to crawl.
	URL string

	// Depth is the number of link hops from the seed URL.
	Depth int
}

// Child returns the task for a link discovered on this task's page.
func (t CrawlTask) Child(url string) CrawlTask {
	return CrawlTask{URL: url, Depth: t.Depth + 1}
}

// ImageRef is an image URL resolved against the page that embeds it.
type ImageRef struct {
	URL string
}

// LinkRef is an anchor URL resolved against the page that contains it.
type LinkRef struct {
	URL string
}

// OriginPolicy decides which discovered links count as part of the crawl.
type OriginPolicy string

const (
	// OriginScheme accepts any link sharing the seed's "scheme://" prefix,
	// including links to other hosts.
	OriginScheme OriginPolicy = "scheme"

	// OriginHost accepts links with the seed's scheme and host (including port).
	OriginHost OriginPolicy = "host"
)

// Valid reports whether p is a known policy.
func (p OriginPolicy) Valid() bool {
	return p == OriginScheme || p == OriginHost
}

// String returns the policy name.
func (p OriginPolicy) String() string {
	return string(p)
}
