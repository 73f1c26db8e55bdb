// Package model defines shared types for the proxy pipeline.
package model

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ProxyRequest carries everything the pipeline needs from an inbound request.
type ProxyRequest struct {
	Ctx      context.Context
	Method   string
	Host     string // inbound Host header, verbatim (may include a port)
	Hostname string // normalized hostname the router matched
	Scheme   string // scheme the client used to reach the proxy
	ClientIP string
	URL      *url.URL
	Header   http.Header
	Body     io.ReadCloser
}

// RequestContext is the per-request record created at dispatch. It is
// immutable after construction and discarded once the response is sent.
type RequestContext struct {
	ID       uint64
	Start    time.Time
	ClientIP string
	Hostname string
	Inbound  *url.URL
	Upstream *url.URL
}

// UpstreamResponse is one fully buffered upstream response. Header is an
// ordered case-insensitive multimap; repeated values matter for Set-Cookie.
type UpstreamResponse struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// RewriteContext holds the origin pair and base path used to rewrite one
// request's headers and body. Nothing in it outlives the request.
type RewriteContext struct {
	UpstreamOrigin string
	ProxyOrigin    string
	BasePath       string
}
