package service

import (
	"net/http"
	"net/url"
	"strings"

	"mirror-proxy-go/internal/model"
	"mirror-proxy-go/internal/router"
)

// hopByHopHeaders are never forwarded across the proxy, in either direction.
// Content-Length is in the set because the forwarded body is re-framed.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
}

// NormalizePath splits a path on "/", drops empty segments and rejoins with
// a single leading "/". "//a//b/" becomes "/a/b"; "" becomes "/".
func NormalizePath(p string) string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs, "/")
}

// BuildUpstreamURL maps an inbound URL onto a route's upstream: the route's
// base path is prefixed to the inbound path and the result normalized; query
// and fragment carry through unchanged. Normalization works on the escaped
// path, so an encoded octet like %2F never turns into a segment separator.
func BuildUpstreamURL(route router.Route, inbound *url.URL) *url.URL {
	escaped := NormalizePath(route.BasePath + "/" + inbound.EscapedPath())
	u := &url.URL{
		Scheme:   route.Target.Scheme,
		Host:     route.Target.Host,
		RawQuery: inbound.RawQuery,
		Fragment: inbound.Fragment,
	}
	if p, err := url.PathUnescape(escaped); err == nil {
		u.Path = p
		u.RawPath = escaped
	} else {
		u.Path = escaped
	}
	return u
}

// connectionListed returns the lowercased header names carried in a
// Connection header value; those are hop-by-hop for this hop only.
func connectionListed(h http.Header) map[string]bool {
	listed := map[string]bool{}
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				listed[name] = true
			}
		}
	}
	return listed
}

// stripHopByHop copies a header set minus the static hop-by-hop list and
// minus anything the source's own Connection header named.
func stripHopByHop(src http.Header) http.Header {
	listed := connectionListed(src)
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if listed[strings.ToLower(key)] {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	for _, key := range hopByHopHeaders {
		dst.Del(key)
	}
	return dst
}

// BuildUpstreamHeader constructs the header set for the upstream call from
// an inbound request's headers.
func BuildUpstreamHeader(pr *model.ProxyRequest, route router.Route) http.Header {
	dst := stripHopByHop(pr.Header)

	// Identity encoding: body rewriting needs literal bytes. Dropping the
	// conditional headers prevents a 304 that would hide content needing
	// rewriting.
	dst.Del("Accept-Encoding")
	dst.Del("If-None-Match")
	dst.Del("If-Modified-Since")

	dst.Set("X-Forwarded-Host", pr.Host)
	dst.Set("X-Forwarded-Proto", pr.Scheme)
	dst.Set("X-Forwarded-Server", pr.Hostname)
	if prior := dst.Values("X-Forwarded-For"); len(prior) > 0 {
		dst.Set("X-Forwarded-For", strings.Join(prior, ", ")+", "+pr.ClientIP)
	} else {
		dst.Set("X-Forwarded-For", pr.ClientIP)
	}

	// An Origin naming the proxy hostname becomes the upstream origin so
	// upstream-side same-origin checks succeed.
	if origin := dst.Get("Origin"); origin != "" {
		if u, err := url.Parse(origin); err == nil && router.NormalizeHostname(u.Host) == pr.Hostname {
			dst.Set("Origin", route.Origin())
		}
	}

	return dst
}
