// Package rewrite makes upstream-origin URLs inside response bodies render
// correctly through the proxy.
package rewrite

import (
	"log/slog"
	"mime"
	"net/http"

	"mirror-proxy-go/internal/model"
)

// textTypes are the content types handled by whole-text origin replacement.
var textTypes = map[string]bool{
	"text/css":                 true,
	"text/javascript":          true,
	"application/javascript":   true,
	"application/x-javascript": true,
	"application/json":         true,
	"text/plain":               true,
}

// Rewriter transforms eligible response bodies. Rewriting is strictly
// best-effort: any parse or decode failure is logged and the response is
// passed through untransformed.
type Rewriter struct {
	logger *slog.Logger
}

// New creates a Rewriter.
func New(logger *slog.Logger) *Rewriter {
	return &Rewriter{logger: logger.With("component", "rewriter")}
}

// Rewrite transforms resp in place when a body is present and the status
// carries one. 204, 304 and all 3xx are skipped: no body, or handled by the
// Location rewrite alone. A rewritten response loses its Content-Length,
// since the byte length changed.
func (r *Rewriter) Rewrite(resp *model.UpstreamResponse, rw model.RewriteContext) {
	if len(resp.Body) == 0 {
		return
	}
	switch {
	case resp.StatusCode == http.StatusNoContent,
		resp.StatusCode == http.StatusNotModified:
		return
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return
	}

	ct, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return
	}

	var body []byte
	switch {
	case ct == "text/html":
		body, err = RewriteHTML(resp.Body, rw)
	case textTypes[ct]:
		body, err = rewriteText(resp.Body, rw)
	default:
		return
	}
	if err != nil {
		r.logger.Warn("body rewrite failed, passing response through",
			"content_type", ct,
			"err", err,
		)
		return
	}

	resp.Body = body
	resp.Header.Del("Content-Length")
}

// rewriteText runs the whole buffered body through the chunk rewriter.
func rewriteText(body []byte, rw model.RewriteContext) ([]byte, error) {
	cr := NewChunkRewriter(rw.UpstreamOrigin, rw.ProxyOrigin)
	out, err := cr.WriteChunk(body)
	if err != nil {
		return nil, err
	}
	tail, err := cr.Flush()
	if err != nil {
		return nil, err
	}
	return append(out, tail...), nil
}
