package service

import (
	"net/http"
	"net/url"
	"testing"

	"mirror-proxy-go/internal/model"
	"mirror-proxy-go/internal/router"
)

func testRoute(t *testing.T, target string) router.Route {
	t.Helper()
	r, err := router.ParseTarget(target, false)
	if err != nil {
		t.Fatalf("ParseTarget(%q): %v", target, err)
	}
	return r
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"//a//b/", "/a/b"},
		{"", "/"},
		{"/", "/"},
		{"/a/b", "/a/b"},
		{"a/b", "/a/b"},
		{"///", "/"},
	}

	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildUpstreamURL(t *testing.T) {
	tests := []struct {
		name   string
		target string
		path   string
		query  string
		want   string
	}{
		{
			// Scenario: route with a base path prefixes the inbound path.
			name:   "base path with query",
			target: "http://127.0.0.1:9000/api",
			path:   "/items",
			query:  "x=1",
			want:   "http://127.0.0.1:9000/api/items?x=1",
		},
		{
			name:   "root route",
			target: "http://127.0.0.1:9000",
			path:   "/items",
			want:   "http://127.0.0.1:9000/items",
		},
		{
			name:   "empty path",
			target: "http://127.0.0.1:9000/api",
			path:   "",
			want:   "http://127.0.0.1:9000/api",
		},
		{
			name:   "repeated slashes collapse",
			target: "http://127.0.0.1:9000",
			path:   "//a//b/",
			want:   "http://127.0.0.1:9000/a/b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inbound := &url.URL{Path: tt.path, RawQuery: tt.query}
			got := BuildUpstreamURL(testRoute(t, tt.target), inbound)
			if got.String() != tt.want {
				t.Errorf("BuildUpstreamURL() = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestBuildUpstreamURL_EncodedSlashPreserved(t *testing.T) {
	// %2F inside a segment must not become a segment separator upstream.
	inbound, err := url.ParseRequestURI("/a%2Fb/c")
	if err != nil {
		t.Fatal(err)
	}

	got := BuildUpstreamURL(testRoute(t, "http://127.0.0.1:9000/api"), inbound)
	if want := "http://127.0.0.1:9000/api/a%2Fb/c"; got.String() != want {
		t.Errorf("BuildUpstreamURL() = %q, want %q", got.String(), want)
	}
}

func buildHeaderFor(t *testing.T, h http.Header, target string) http.Header {
	t.Helper()
	pr := &model.ProxyRequest{
		Host:     "shop.local:8080",
		Hostname: "shop.local",
		Scheme:   "http",
		ClientIP: "10.0.0.7",
		Header:   h,
	}
	return BuildUpstreamHeader(pr, testRoute(t, target))
}

func TestBuildUpstreamHeader_HopByHopStripped(t *testing.T) {
	src := http.Header{
		"Accept":              {"text/html"},
		"Connection":          {"keep-alive, X-Custom-Hop"},
		"Keep-Alive":          {"timeout=5"},
		"Proxy-Authenticate":  {"Basic"},
		"Proxy-Authorization": {"Basic abc"},
		"Te":                  {"trailers"},
		"Trailers":            {"X-T"},
		"Transfer-Encoding":   {"chunked"},
		"Upgrade":             {"websocket"},
		"Content-Length":      {"42"},
		"X-Custom-Hop":        {"dropped via Connection"},
		"Cookie":              {"session=abc"},
	}

	dst := buildHeaderFor(t, src, "http://127.0.0.1:9000")

	tests := []struct {
		name    string
		key     string
		wantLen int
	}{
		{"Accept forwarded", "Accept", 1},
		{"Cookie forwarded", "Cookie", 1},
		{"Connection stripped", "Connection", 0},
		{"Keep-Alive stripped", "Keep-Alive", 0},
		{"Proxy-Authenticate stripped", "Proxy-Authenticate", 0},
		{"Proxy-Authorization stripped", "Proxy-Authorization", 0},
		{"Te stripped", "Te", 0},
		{"Trailers stripped", "Trailers", 0},
		{"Transfer-Encoding stripped", "Transfer-Encoding", 0},
		{"Upgrade stripped", "Upgrade", 0},
		{"Content-Length stripped", "Content-Length", 0},
		{"Connection-listed header stripped", "X-Custom-Hop", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(dst.Values(tt.key)); got != tt.wantLen {
				t.Errorf("header %q: got %d values, want %d", tt.key, got, tt.wantLen)
			}
		})
	}
}

func TestBuildUpstreamHeader_EncodingAndConditionalsDropped(t *testing.T) {
	src := http.Header{
		"Accept-Encoding":   {"gzip, br"},
		"If-None-Match":     {`"etag"`},
		"If-Modified-Since": {"Mon, 01 Jan 2025 00:00:00 GMT"},
	}

	dst := buildHeaderFor(t, src, "http://127.0.0.1:9000")

	for _, key := range []string{"Accept-Encoding", "If-None-Match", "If-Modified-Since"} {
		if dst.Get(key) != "" {
			t.Errorf("header %q should be deleted, got %q", key, dst.Get(key))
		}
	}
}

func TestBuildUpstreamHeader_ForwardedHeaders(t *testing.T) {
	dst := buildHeaderFor(t, http.Header{}, "http://127.0.0.1:9000")

	if got := dst.Get("X-Forwarded-Host"); got != "shop.local:8080" {
		t.Errorf("X-Forwarded-Host = %q, want %q", got, "shop.local:8080")
	}
	if got := dst.Get("X-Forwarded-Proto"); got != "http" {
		t.Errorf("X-Forwarded-Proto = %q, want %q", got, "http")
	}
	if got := dst.Get("X-Forwarded-Server"); got != "shop.local" {
		t.Errorf("X-Forwarded-Server = %q, want %q", got, "shop.local")
	}
	if got := dst.Get("X-Forwarded-For"); got != "10.0.0.7" {
		t.Errorf("X-Forwarded-For = %q, want %q", got, "10.0.0.7")
	}
}

func TestBuildUpstreamHeader_ForwardedForChainPreserved(t *testing.T) {
	src := http.Header{"X-Forwarded-For": {"1.2.3.4, 5.6.7.8"}}

	dst := buildHeaderFor(t, src, "http://127.0.0.1:9000")

	want := "1.2.3.4, 5.6.7.8, 10.0.0.7"
	if got := dst.Get("X-Forwarded-For"); got != want {
		t.Errorf("X-Forwarded-For = %q, want %q", got, want)
	}
}

func TestBuildUpstreamHeader_ForwardedForMultipleLines(t *testing.T) {
	// A request may carry the chain across several header lines; all of
	// them stay in the chain ahead of the client IP.
	src := http.Header{"X-Forwarded-For": {"1.2.3.4", "5.6.7.8, 9.10.11.12"}}

	dst := buildHeaderFor(t, src, "http://127.0.0.1:9000")

	want := "1.2.3.4, 5.6.7.8, 9.10.11.12, 10.0.0.7"
	if got := dst.Get("X-Forwarded-For"); got != want {
		t.Errorf("X-Forwarded-For = %q, want %q", got, want)
	}
}

func TestBuildUpstreamHeader_OriginRewrite(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"proxy hostname rewritten", "http://shop.local:8080", "http://127.0.0.1:9000"},
		{"proxy hostname no port rewritten", "https://shop.local", "http://127.0.0.1:9000"},
		{"third-party origin untouched", "https://other.example", "https://other.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := http.Header{"Origin": {tt.origin}}
			dst := buildHeaderFor(t, src, "http://127.0.0.1:9000")
			if got := dst.Get("Origin"); got != tt.want {
				t.Errorf("Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
