// Package router maps inbound hostnames to upstream routes.
package router

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
)

// ErrRouteNotFound is returned by Resolve when no route matches the hostname.
var ErrRouteNotFound = errors.New("no route for hostname")

// Route describes one upstream mapping. Target carries only the upstream
// origin (scheme://host[:port]); any path the target was configured with
// lives in BasePath, which is either empty or starts with exactly one "/"
// and never ends with one.
type Route struct {
	Target   *url.URL
	BasePath string
	Private  bool // reserved; not consumed by the pipeline
}

// Origin returns the route's upstream origin string, scheme://host[:port].
func (r Route) Origin() string {
	return r.Target.Scheme + "://" + r.Target.Host
}

// Router resolves hostnames against an immutable routing table. The table
// is replaced as a whole behind an atomic pointer, so concurrent readers
// always see a fully-formed table, old or new, and never lock.
type Router struct {
	table atomic.Pointer[map[string]Route]
}

// New returns a Router with an empty routing table.
func New() *Router {
	r := &Router{}
	empty := map[string]Route{}
	r.table.Store(&empty)
	return r
}

// Resolve looks up the route for a hostname. The hostname is normalized
// (port stripped, case-folded) before the lookup; matching is a pure key
// match, no wildcards.
func (r *Router) Resolve(hostname string) (Route, error) {
	route, ok := (*r.table.Load())[NormalizeHostname(hostname)]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrRouteNotFound, hostname)
	}
	return route, nil
}

// ReplaceRoutes installs a new routing table. The input is copied with
// normalized keys, so later mutation of the caller's map has no effect.
func (r *Router) ReplaceRoutes(table map[string]Route) {
	next := make(map[string]Route, len(table))
	for hostname, route := range table {
		next[NormalizeHostname(hostname)] = route
	}
	r.table.Store(&next)
}

// AddRoute installs a table extended with one route, replacing any existing
// entry for the same hostname. Copy-on-write: readers never observe a
// partially updated table.
func (r *Router) AddRoute(hostname string, route Route) {
	old := *r.table.Load()
	next := make(map[string]Route, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[NormalizeHostname(hostname)] = route
	r.table.Store(&next)
}

// Routes returns a snapshot copy of the current table.
func (r *Router) Routes() map[string]Route {
	cur := *r.table.Load()
	out := make(map[string]Route, len(cur))
	for k, v := range cur {
		out[k] = v
	}
	return out
}

// NormalizeHostname strips any :port suffix and case-folds a Host header
// value so it can be used as a routing table key.
func NormalizeHostname(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return strings.ToLower(strings.TrimSpace(host))
}

// ParseTarget builds a Route from a target URL. The URL's path component,
// if any, becomes the route's base path.
func ParseTarget(target string, private bool) (Route, error) {
	u, err := url.Parse(target)
	if err != nil {
		return Route{}, fmt.Errorf("parse target %q: %w", target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Route{}, fmt.Errorf("target %q: scheme must be http or https", target)
	}
	if u.Host == "" {
		return Route{}, fmt.Errorf("target %q: missing host", target)
	}
	return Route{
		Target:   &url.URL{Scheme: u.Scheme, Host: u.Host},
		BasePath: normalizeBasePath(u.Path),
		Private:  private,
	}, nil
}

// normalizeBasePath canonicalizes a configured path prefix: empty for the
// root, otherwise one leading "/" and no trailing "/".
func normalizeBasePath(p string) string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return ""
	}
	return "/" + strings.Join(segs, "/")
}
