package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Default transport settings.
const (
	// DefaultMaxRedirects is the number of redirects followed before the last
	// response is returned as is.
	DefaultMaxRedirects = 10

	defaultMaxIdleConns        = 32
	defaultMaxIdleConnsPerHost = 8
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
)

// ErrInvalidProxyAddress is returned when the proxy address is not "host:port".
var ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

// Options configures the HTTP client.
type Options struct {
	// Timeout bounds each request, including reading the response body.
	Timeout time.Duration

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UserAgent is sent with every request when non-empty.
	UserAgent string

	// Headers are added to every request.
	Headers map[string]string

	// SiteHeaders maps a host to headers sent only to that host. A key
	// without a port matches the host on any port; matching is
	// case-insensitive. Site values win over Headers.
	SiteHeaders map[string]map[string]string

	// MaxRedirects limits redirect chains. Zero means DefaultMaxRedirects.
	MaxRedirects int
}

// New creates an HTTP client from opts.
//
// This function validates the proxy address format but does not connect to
// the proxy. Connection problems surface as request errors.
func New(opts Options) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
	}

	if opts.ProxyAddress != "" {
		if !IsValidProxyAddress(opts.ProxyAddress) {
			return nil, ErrInvalidProxyAddress
		}

		// Proxy auth is not supported; most local SOCKS proxies do not need it
		dialer, err := proxy.SOCKS5("tcp", opts.ProxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = dialContext(dialer)
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	var rt http.RoundTripper = transport
	if opts.UserAgent != "" || len(opts.Headers) > 0 || len(opts.SiteHeaders) > 0 {
		rt = &headerInjectingTransport{
			base:        transport,
			userAgent:   opts.UserAgent,
			headers:     opts.Headers,
			siteHeaders: lowerKeys(opts.SiteHeaders),
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   opts.Timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// dialContext adapts a proxy.Dialer to the transport's DialContext hook.
// The SOCKS5 dialer from x/net supports contexts directly; other dialers
// are raced against ctx.
func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)

		go func() {
			conn, err := d.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()

		select {
		case result := <-resultCh:
			return result.conn, result.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// IsValidProxyAddress checks if the address is in "host:port" format with a
// port between 1 and 65535. IPv6 hosts must be bracketed.
func IsValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return false
	}
	if host == "" || strings.ContainsAny(host, "/ ") {
		return false
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return portNum >= 1 && portNum <= 65535
}

// headerInjectingTransport wraps an http.RoundTripper to add the configured
// User-Agent and headers to every request, and site headers to requests for
// their own host.
//
// A RoundTripper is used instead of setting headers per request so that
// redirected requests carry the same values. Site headers are matched
// against each hop's host, so a redirect to another host never receives
// them, in line with net/http dropping Cookie and Authorization there.
type headerInjectingTransport struct {
	base        http.RoundTripper
	userAgent   string
	headers     map[string]string
	siteHeaders map[string]map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	clone := req.Clone(req.Context())

	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	for key, value := range t.hostHeaders(req.URL.Host) {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}

// hostHeaders returns the site headers for host, trying the host with its
// port first and then without it.
func (t *headerInjectingTransport) hostHeaders(host string) map[string]string {
	if len(t.siteHeaders) == 0 {
		return nil
	}

	host = strings.ToLower(host)
	if headers, ok := t.siteHeaders[host]; ok {
		return headers
	}
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.HasSuffix(host, "]") {
		return t.siteHeaders[host[:i]]
	}
	return nil
}

// lowerKeys copies m with lower-cased host keys.
func lowerKeys(m map[string]map[string]string) map[string]map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]map[string]string, len(m))
	for host, headers := range m {
		out[strings.ToLower(host)] = headers
	}
	return out
}
