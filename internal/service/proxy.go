// Package service implements the per-request proxy pipeline: upstream URL
// and header construction, the buffered upstream call, response header
// normalization and body rewriting.
package service

import (
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"mirror-proxy-go/internal/client"
	"mirror-proxy-go/internal/model"
	"mirror-proxy-go/internal/rewrite"
	"mirror-proxy-go/internal/router"
)

// ProxyService sequences the pipeline stages for each request. Requests are
// independent; the only shared state is the request-sequence counter, used
// for log correlation.
type ProxyService struct {
	client   *client.UpstreamClient
	rewriter *rewrite.Rewriter
	logger   *slog.Logger
	seq      atomic.Uint64
}

// NewProxyService creates a ProxyService.
func NewProxyService(c *client.UpstreamClient, rw *rewrite.Rewriter, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		client:   c,
		rewriter: rw,
		logger:   logger.With("component", "proxy_service"),
	}
}

// Forward runs one request through the pipeline and returns the transformed
// upstream response together with the request's context record. Errors are
// connection-level upstream failures only; any status the upstream answered
// with comes back as a normal response.
func (s *ProxyService) Forward(pr *model.ProxyRequest, route router.Route) (*model.UpstreamResponse, *model.RequestContext, error) {
	rc := &model.RequestContext{
		ID:       s.seq.Add(1),
		Start:    time.Now(),
		ClientIP: pr.ClientIP,
		Hostname: pr.Hostname,
		Inbound:  pr.URL,
		Upstream: BuildUpstreamURL(route, pr.URL),
	}

	header := BuildUpstreamHeader(pr, route)

	// GET and HEAD carry no body; every other method forwards the inbound
	// body bytes unmodified.
	var body io.Reader
	if pr.Method != http.MethodGet && pr.Method != http.MethodHead {
		body = pr.Body
	}

	s.logger.Debug("forwarding request",
		"id", rc.ID,
		"method", pr.Method,
		"host", pr.Hostname,
		"upstream", rc.Upstream.String(),
	)

	resp, err := s.client.Do(pr.Ctx, pr.Method, rc.Upstream.String(), route.Target.Host, header, body)
	if err != nil {
		return nil, rc, err
	}

	rw := model.RewriteContext{
		UpstreamOrigin: route.Origin(),
		ProxyOrigin:    pr.Scheme + "://" + pr.Host,
		BasePath:       route.BasePath,
	}

	resp.Header = BuildResponseHeader(resp.Header, rc.Upstream, rw, pr.Hostname)
	s.rewriter.Rewrite(resp, rw)

	return resp, rc, nil
}
