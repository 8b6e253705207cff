package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/spider/internal/model"
)

// Default configuration values.
const (
	// DefaultMaxDepth is the recursion limit used by -r when -l is not given.
	DefaultMaxDepth = 5

	// DefaultTargetDir is where images are saved when -p is not given.
	DefaultTargetDir = "./data/"

	// DefaultTimeout bounds each page fetch and image download.
	// 10 seconds keeps one slow server from stalling the whole crawl.
	DefaultTimeout = 10 * time.Second

	// DefaultWorkers is the number of concurrent image downloads per page.
	// Small enough to stay polite to a single host.
	DefaultWorkers = 4

	// DefaultMaxPages is the page limit. 0 means no limit; the depth bound
	// and the visited set already guarantee termination.
	DefaultMaxPages = 0

	// AppName is the application name used for XDG directory paths.
	AppName = "spider"

	// DefaultUserAgent identifies spider in HTTP requests.
	DefaultUserAgent = "spider/1.0 (+https://github.com/nao1215/spider)"

	// DefaultMaxBodySize limits the maximum page body size to read.
	// Images are streamed to disk and are not subject to this limit.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// ReportFormat selects the end-of-run report printed after a crawl.
type ReportFormat string

const (
	// ReportNone prints only the progress lines.
	ReportNone ReportFormat = ""

	// ReportText is a human-readable summary.
	ReportText ReportFormat = "text"

	// ReportJSON is the full Summary as JSON.
	ReportJSON ReportFormat = "json"

	// ReportMarkdown is GitHub Flavored Markdown with tables.
	ReportMarkdown ReportFormat = "markdown"
)

// Valid reports whether f is a known format.
func (f ReportFormat) Valid() bool {
	switch f {
	case ReportNone, ReportText, ReportJSON, ReportMarkdown:
		return true
	default:
		return false
	}
}

// LogFormat selects how log records are written to stderr.
type LogFormat string

const (
	// LogText is slog's key=value text format.
	LogText LogFormat = "text"

	// LogJSON writes one JSON object per record, for log collectors.
	LogJSON LogFormat = "json"
)

// Valid reports whether f is a known format.
func (f LogFormat) Valid() bool {
	return f == LogText || f == LogJSON
}

// Config holds all configuration options for spider.
// This struct is populated from defaults, the configuration file, and CLI
// flags, in that order, and passed through the application via dependency
// injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Seed is the URL the crawl starts from. A URL without a scheme is
	// treated as http.
	Seed string

	// Recursive enables following links (-r). Without it only the seed page
	// is processed.
	Recursive bool

	// MaxDepth is the maximum number of link hops from the seed (-l).
	// Depth 0 means only the seed page.
	MaxDepth int

	// TargetDir is the directory images are written to (-p).
	// It is created if it does not exist.
	TargetDir string

	// Timeout applies to each page fetch and each image download.
	Timeout time.Duration

	// Workers is the number of concurrent image downloads per page.
	Workers int

	// OriginPolicy decides which links are followed.
	OriginPolicy model.OriginPolicy

	// MaxPages is the maximum number of pages to visit. 0 means no limit.
	MaxPages int

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// SiteHeaders maps a host from the config file to headers sent only to
	// that host, such as its cookie. A host without a port matches any port.
	SiteHeaders map[string]map[string]string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// MaxBodySize is the maximum page body size in bytes to read.
	// Set to 0 to use the default (10MB).
	MaxBodySize int64

	// IgnorePatterns are URL path patterns never crawled.
	IgnorePatterns []string

	// FollowPatterns, if set, restrict crawling to matching URL paths.
	FollowPatterns []string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// LogFormat selects text or JSON log records.
	LogFormat LogFormat

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .spider in the current directory,
	// the XDG config directory, and the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// ReportFormat selects the end-of-run report. Empty means none.
	ReportFormat ReportFormat

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// Record saves the run summary to the history database.
	Record bool

	// DBDir is the directory path for storing the SQLite history database.
	// Defaults to XDG data directory (~/.local/share/spider on Linux).
	DBDir string
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., depth, timeout).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxDepth:     DefaultMaxDepth,
		TargetDir:    DefaultTargetDir,
		Timeout:      DefaultTimeout,
		Workers:      DefaultWorkers,
		OriginPolicy: model.OriginScheme,
		MaxPages:     DefaultMaxPages,
		UserAgent:    DefaultUserAgent,
		MaxBodySize:  DefaultMaxBodySize,
		Headers:      make(map[string]string),
		LogFormat:    LogText,
		DBDir:        XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for spider.
// On Linux: ~/.local/share/spider
// On macOS: ~/Library/Application Support/spider
// On Windows: %LOCALAPPDATA%\spider
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for spider.
// On Linux: ~/.config/spider
// On macOS: ~/Library/Application Support/spider
// On Windows: %APPDATA%\spider
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplySiteConfig overlays the non-zero fields of site onto c.
// Headers and cookies are host-scoped and applied by ApplySiteHeaders.
func (c *Config) ApplySiteConfig(site SiteConfig) {
	if site.Depth > 0 {
		c.MaxDepth = site.Depth
	}
	if site.Workers > 0 {
		c.Workers = site.Workers
	}
	if site.UserAgent != "" {
		c.UserAgent = site.UserAgent
	}
	if site.Origin != "" {
		c.OriginPolicy = model.OriginPolicy(site.Origin)
	}
	if site.Timeout > 0 {
		c.Timeout = site.Timeout
	}
	if len(site.IgnorePatterns) > 0 {
		c.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		c.FollowPatterns = site.FollowPatterns
	}
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after flags and the config file are merged, before
// any request is made.
//
// We return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Seed) == "" {
		return ErrNoSeed
	}
	if SeedHost(c.Seed) == "" {
		return ErrInvalidSeed
	}

	// Depth 0 is valid and means only the seed page
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if !c.OriginPolicy.Valid() {
		return ErrInvalidOriginPolicy
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if !c.ReportFormat.Valid() {
		return ErrInvalidReportFormat
	}

	if !c.LogFormat.Valid() {
		return ErrInvalidLogFormat
	}

	return nil
}

// ApplySiteHeaders sets the request headers configured in file.
// Headers under defaults are sent to every host. Site headers and cookies
// are only sent to the host of their site entry, and a defaults cookie only
// to configured sites and the seed host.
//
// Design decision: A crawl under the scheme origin policy follows links to
// any host and images are often served by a CDN, so anything tied to one
// site must never become a global header.
func (c *Config) ApplySiteHeaders(file *File, seedHost string) {
	if file == nil {
		return
	}
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	for k, v := range file.Defaults.Headers {
		c.Headers[k] = v
	}
	c.SiteHeaders = file.HostHeaders(seedHost)
}

// AddSeedHeader sets a header sent only to the seed's host, overriding
// the same header from the config file.
func (c *Config) AddSeedHeader(name, value string) {
	host := SeedHost(c.Seed)
	if host == "" {
		return
	}
	if c.SiteHeaders == nil {
		c.SiteHeaders = make(map[string]map[string]string)
	}
	if c.SiteHeaders[host] == nil {
		c.SiteHeaders[host] = make(map[string]string)
	}
	c.SiteHeaders[host][name] = value
}

// SeedHost returns the host (including any port) of a seed URL, lowercased.
// A seed without a scheme is treated as http. It returns an empty string if
// the seed cannot be parsed, has no host, or uses a scheme other than http
// or https.
func SeedHost(seed string) string {
	seed = strings.TrimSpace(seed)
	if !strings.Contains(seed, "://") {
		seed = "http://" + seed
	}

	u, err := url.Parse(seed)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return strings.ToLower(u.Host)
}
