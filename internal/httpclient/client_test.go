package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestIsValidProxyAddress tests proxy address validation.
func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{name: "ipv4 with port", address: "127.0.0.1:9050", want: true},
		{name: "hostname with port", address: "localhost:1080", want: true},
		{name: "bracketed ipv6", address: "[::1]:9050", want: true},
		{name: "missing port", address: "127.0.0.1", want: false},
		{name: "empty port", address: "127.0.0.1:", want: false},
		{name: "empty host", address: ":9050", want: false},
		{name: "port zero", address: "127.0.0.1:0", want: false},
		{name: "port too large", address: "127.0.0.1:65536", want: false},
		{name: "non numeric port", address: "127.0.0.1:socks", want: false},
		{name: "url instead of address", address: "socks5://127.0.0.1:9050", want: false},
		{name: "empty", address: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsValidProxyAddress(tt.address); got != tt.want {
				t.Errorf("IsValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

// TestNew tests HTTP client construction.
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid proxy address", func(t *testing.T) {
		t.Parallel()

		_, err := New(Options{ProxyAddress: "not-an-address"})
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("accepts valid proxy address without connecting", func(t *testing.T) {
		t.Parallel()

		client, err := New(Options{ProxyAddress: "127.0.0.1:9050", Timeout: time.Second})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.Timeout != time.Second {
			t.Errorf("expected timeout 1s, got %v", client.Timeout)
		}
	})

	t.Run("injects user agent and headers", func(t *testing.T) {
		t.Parallel()

		var gotUA, gotHeader string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotHeader = r.Header.Get("X-Test")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client, err := New(Options{
			Timeout:   5 * time.Second,
			UserAgent: "spider-test/1.0",
			Headers:   map[string]string{"X-Test": "value"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if gotUA != "spider-test/1.0" {
			t.Errorf("expected User-Agent 'spider-test/1.0', got %q", gotUA)
		}
		if gotHeader != "value" {
			t.Errorf("expected X-Test 'value', got %q", gotHeader)
		}
	})

	t.Run("site headers only reach their host", func(t *testing.T) {
		t.Parallel()

		type seen struct{ cookie, auth, global string }
		record := func(dst *[]seen, mu *sync.Mutex) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				*dst = append(*dst, seen{r.Header.Get("Cookie"), r.Header.Get("Authorization"), r.Header.Get("X-Global")})
				mu.Unlock()
				w.WriteHeader(http.StatusOK)
			}
		}

		var mu sync.Mutex
		var otherSeen, siteSeen []seen
		other := httptest.NewServer(record(&otherSeen, &mu))
		defer other.Close()

		siteMux := http.NewServeMux()
		siteMux.HandleFunc("/away", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, other.URL+"/landing", http.StatusFound)
		})
		siteMux.HandleFunc("/", record(&siteSeen, &mu))
		site := httptest.NewServer(siteMux)
		defer site.Close()

		siteHost := strings.TrimPrefix(site.URL, "http://")
		client, err := New(Options{
			Timeout: 5 * time.Second,
			Headers: map[string]string{"X-Global": "all"},
			SiteHeaders: map[string]map[string]string{
				siteHost: {"Cookie": "session=secret", "Authorization": "Bearer token"},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, target := range []string{site.URL + "/page", other.URL + "/x.png", site.URL + "/away"} {
			resp, err := client.Get(target)
			if err != nil {
				t.Fatalf("request to %s failed: %v", target, err)
			}
			resp.Body.Close()
		}

		mu.Lock()
		defer mu.Unlock()
		if len(siteSeen) != 1 || siteSeen[0] != (seen{"session=secret", "Bearer token", "all"}) {
			t.Errorf("expected site headers on own host, got %+v", siteSeen)
		}
		if len(otherSeen) != 2 {
			t.Fatalf("expected 2 requests to the other host, got %d", len(otherSeen))
		}
		for _, got := range otherSeen {
			if got.cookie != "" || got.auth != "" {
				t.Errorf("site headers leaked to another host: %+v", got)
			}
			if got.global != "all" {
				t.Errorf("expected global header on every host, got %+v", got)
			}
		}
	})

	t.Run("stops following redirects at the limit", func(t *testing.T) {
		t.Parallel()

		var mux http.ServeMux
		mux.HandleFunc("/loop/", func(w http.ResponseWriter, r *http.Request) {
			var n int
			_, _ = fmt.Sscanf(r.URL.Path, "/loop/%d", &n)
			http.Redirect(w, r, fmt.Sprintf("/loop/%d", n+1), http.StatusFound)
		})
		server := httptest.NewServer(&mux)
		defer server.Close()

		client, err := New(Options{Timeout: 5 * time.Second, MaxRedirects: 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		resp, err := client.Get(server.URL + "/loop/0")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusFound {
			t.Errorf("expected status 302 after redirect limit, got %d", resp.StatusCode)
		}
		if resp.Request.URL.Path != "/loop/2" {
			t.Errorf("expected last request path /loop/2, got %q", resp.Request.URL.Path)
		}
	})
}

// TestHostHeaders tests matching site headers to a request host.
func TestHostHeaders(t *testing.T) {
	t.Parallel()

	transport := &headerInjectingTransport{
		siteHeaders: lowerKeys(map[string]map[string]string{
			"Example.com":      {"Cookie": "any-port"},
			"example.com:8443": {"Cookie": "exact-port"},
			"[::1]:8080":       {"Cookie": "ipv6"},
		}),
	}

	tests := []struct {
		host string
		want string
	}{
		{"example.com", "any-port"},
		{"EXAMPLE.COM:8080", "any-port"},
		{"example.com:8443", "exact-port"},
		{"[::1]:8080", "ipv6"},
		{"[::1]:9090", ""},
		{"sub.example.com", ""},
		{"other.test", ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			t.Parallel()

			if got := transport.hostHeaders(tt.host)["Cookie"]; got != tt.want {
				t.Errorf("hostHeaders(%q) Cookie = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}
