package crawler

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds each page fetch and image download.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodySize limits how much of a page is read for parsing.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Document is a fetched page.
type Document struct {
	// URL is the URL that was requested.
	URL string

	// FinalURL is the URL after redirects. Relative references on the page
	// are resolved against it.
	FinalURL string

	// StatusCode is the HTTP response status code.
	StatusCode int

	// ContentType is the Content-Type response header.
	ContentType string

	// Body is the response body, truncated to the fetcher's size limit.
	Body []byte
}

// PageFetcher retrieves the HTML document for one URL.
type PageFetcher interface {
	// Fetch returns the document or a *FetchError.
	Fetch(ctx context.Context, url string) (*Document, error)
}

// HTTPFetcher fetches pages with an HTTP client. It never retries.
type HTTPFetcher struct {
	client      *http.Client
	maxBodySize int64
}

var _ PageFetcher = (*HTTPFetcher)(nil)

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithFetcherMaxBodySize sets the maximum number of body bytes read per page.
func WithFetcherMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewHTTPFetcher creates a fetcher using client. If client is nil, a client
// with DefaultTimeout is used.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	f := &HTTPFetcher{
		client:      client,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch issues a GET request for pageURL. Transport failures and non-2xx
// responses are returned as *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Err:        statusError(resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Document{
		URL:         pageURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
