package crawler

import (
	"errors"
	"fmt"
)

// Crawl errors.
//
// Design decision: FetchError and DownloadError unwrap to both a sentinel and
// the underlying cause, so callers can test the failure class with errors.Is
// and still reach a timeout or context error below it.
var (
	// ErrFetch marks a page that could not be fetched.
	ErrFetch = errors.New("page fetch failed")

	// ErrDownload marks an image that could not be downloaded or saved.
	ErrDownload = errors.New("image download failed")

	// ErrParse marks a document that could not be read for parsing.
	ErrParse = errors.New("document parse failed")

	// ErrSeedUnreachable is returned by Spider.Crawl when the seed page itself
	// cannot be fetched, leaving nothing to crawl.
	ErrSeedUnreachable = errors.New("seed URL could not be fetched")

	// ErrEmptyFilename marks an image URL whose path has no last segment.
	// It is a skip marker, not a failure.
	ErrEmptyFilename = errors.New("image URL has no filename")

	// ErrInvalidSeed is returned when the seed is not an absolute URL with a host.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrUnexpectedStatus is the cause used for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

// FetchError describes a failed page fetch.
type FetchError struct {
	// URL is the page that was requested.
	URL string

	// StatusCode is the response status, or 0 for transport failures.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns ErrFetch and the underlying cause.
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

// DownloadError describes a failed image download.
type DownloadError struct {
	// URL is the image that was requested.
	URL string

	// Path is the destination file, if one was chosen.
	Path string

	// StatusCode is the response status, or 0 when no response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

// Unwrap returns ErrDownload and the underlying cause.
func (e *DownloadError) Unwrap() []error {
	return []error{ErrDownload, e.Err}
}

// statusError builds the cause for a non-2xx response.
func statusError(status string) error {
	return fmt.Errorf("%w: %s", ErrUnexpectedStatus, status)
}
