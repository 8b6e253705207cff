package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no URL specified: provide the URL to crawl")

	// ErrInvalidSeed is returned when the seed is not an http or https URL
	// with a host.
	ErrInvalidSeed = errors.New("invalid URL: must be an http or https URL with a host")

	// ErrInvalidDepth is returned when the depth limit is negative.
	// Use 0 to process only the seed page.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate connection failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the download worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidOriginPolicy is returned for an unknown origin policy.
	ErrInvalidOriginPolicy = errors.New("invalid origin policy: must be \"scheme\" or \"host\"")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	// Use 0 for no limit.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidReportFormat is returned for an unknown report format.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, json or markdown")

	// ErrInvalidLogFormat is returned for an unknown log format.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")
)
