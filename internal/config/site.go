package config

import (
	"strings"
	"time"
)

// SiteConfig holds site-specific configuration for a single host.
// This allows customizing crawl behavior per site.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global crawl depth for this site.
	// If zero, the global depth is used.
	Depth int `yaml:"depth,omitempty"`

	// Workers overrides the number of concurrent downloads per page.
	Workers int `yaml:"workers,omitempty"`

	// Timeout overrides the per-request timeout (e.g., "30s").
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// UserAgent overrides the User-Agent header for this site.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Origin overrides the origin policy ("scheme" or "host").
	Origin string `yaml:"origin,omitempty"`

	// IgnorePatterns are URL patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .spider configuration file.
type File struct {
	// Sites maps hosts to their site-specific configurations.
	// Keys are the host without the protocol (e.g., "example.com" or
	// "localhost:8080").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific host.
// It merges the site-specific configuration with defaults. The host is
// matched case-insensitively, first with its port and then without.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	// Start with defaults
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.lookup(host)
	if !ok {
		return result
	}

	// Override with site-specific configuration
	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.Workers != 0 {
		result.Workers = siteConfig.Workers
	}
	if siteConfig.Timeout != 0 {
		result.Timeout = siteConfig.Timeout
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if siteConfig.Origin != "" {
		result.Origin = siteConfig.Origin
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}

	return result
}

// HostHeaders returns the host-scoped request headers of every site entry,
// keyed by the lower-cased site host. Each entry holds the site's headers
// merged over defaults, plus its cookie (or the defaults cookie) as the
// Cookie header. seedHost always gets an entry of its own, resolved the way
// GetSiteConfig resolves it, so headers added for the seed later do not
// shadow a portless site entry. Entries without any header are omitted.
func (cf *File) HostHeaders(seedHost string) map[string]map[string]string {
	result := make(map[string]map[string]string)
	for key := range cf.Sites {
		if headers := cf.GetSiteConfig(key).requestHeaders(); len(headers) > 0 {
			result[strings.ToLower(key)] = headers
		}
	}

	if seedHost != "" {
		if headers := cf.GetSiteConfig(seedHost).requestHeaders(); len(headers) > 0 {
			result[strings.ToLower(seedHost)] = headers
		}
	}
	return result
}

// requestHeaders returns the headers of s with its cookie as Cookie.
func (s SiteConfig) requestHeaders() map[string]string {
	headers := make(map[string]string, len(s.Headers)+1)
	for k, v := range s.Headers {
		headers[k] = v
	}
	if s.Cookie != "" {
		headers["Cookie"] = s.Cookie
	}
	return headers
}

// lookup finds the site entry for host.
func (cf *File) lookup(host string) (SiteConfig, bool) {
	if len(cf.Sites) == 0 {
		return SiteConfig{}, false
	}

	host = strings.ToLower(host)
	candidates := []string{host}
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.HasSuffix(host, "]") {
		candidates = append(candidates, host[:i])
	}

	for _, candidate := range candidates {
		for key, site := range cf.Sites {
			if strings.EqualFold(key, candidate) {
				return site, true
			}
		}
	}
	return SiteConfig{}, false
}
