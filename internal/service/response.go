package service

import (
	"net/http"
	"net/url"
	"strings"

	"mirror-proxy-go/internal/model"
)

// StripBasePath removes a base path prefix from an upstream path, yielding
// the client-facing path. Paths outside the base pass through unchanged.
func StripBasePath(p, base string) string {
	if base == "" {
		return p
	}
	if p == base {
		return "/"
	}
	if strings.HasPrefix(p, base+"/") {
		return p[len(base):]
	}
	return p
}

// BuildResponseHeader copies upstream headers minus hop-by-hop ones and
// rewrites Location and Set-Cookie for the client-facing origin.
func BuildResponseHeader(upstream http.Header, upstreamURL *url.URL, rw model.RewriteContext, clientHostname string) http.Header {
	dst := stripHopByHop(upstream)

	if loc := dst.Get("Location"); loc != "" {
		dst.Set("Location", rewriteLocation(loc, upstreamURL, rw))
	}

	if cookies := dst.Values("Set-Cookie"); len(cookies) > 0 {
		rewritten := make([]string, len(cookies))
		for i, c := range cookies {
			rewritten[i] = rewriteSetCookie(c, clientHostname, rw.BasePath)
		}
		dst["Set-Cookie"] = rewritten
	}

	return dst
}

// rewriteLocation resolves a Location value against the upstream URL and,
// only when the result stays on the upstream origin, maps it back onto the
// proxy origin with the base path stripped. Redirects to any other origin
// pass through untouched.
func rewriteLocation(loc string, upstreamURL *url.URL, rw model.RewriteContext) string {
	ref, err := url.Parse(loc)
	if err != nil {
		return loc
	}
	resolved := upstreamURL.ResolveReference(ref)
	if resolved.Scheme+"://"+resolved.Host != rw.UpstreamOrigin {
		return loc
	}

	out := rw.ProxyOrigin + StripBasePath(resolved.EscapedPath(), rw.BasePath)
	if resolved.RawQuery != "" {
		out += "?" + resolved.RawQuery
	}
	if resolved.Fragment != "" {
		out += "#" + resolved.EscapedFragment()
	}
	return out
}

// rewriteSetCookie maps one Set-Cookie value onto the proxy: the Domain
// attribute becomes the client hostname and the Path attribute loses the
// base path prefix. Every other attribute passes through verbatim, in its
// original order.
func rewriteSetCookie(cookie, clientHostname, basePath string) string {
	parts := strings.Split(cookie, ";")
	out := make([]string, 0, len(parts))
	out = append(out, strings.TrimSpace(parts[0])) // name=value pair

	for _, part := range parts[1:] {
		attr := strings.TrimSpace(part)
		key, val, _ := strings.Cut(attr, "=")
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "domain":
			if clientHostname != "" {
				attr = "Domain=" + clientHostname
			}
		case "path":
			if val == "" {
				val = "/"
			}
			attr = "Path=" + StripBasePath(val, basePath)
		}
		out = append(out, attr)
	}

	return strings.Join(out, "; ")
}
