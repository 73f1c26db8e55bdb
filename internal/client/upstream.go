// Package client provides the buffered HTTP client for upstream origins.
package client

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"mirror-proxy-go/internal/config"
	"mirror-proxy-go/internal/metrics"
	"mirror-proxy-go/internal/model"
)

// UpstreamError reports a connection-level failure against the upstream:
// refused connection, DNS failure or timeout. Anything the upstream answered
// with, whatever the status, is a normal response and never produces one.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return "upstream: " + e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

// UpstreamClient executes one buffered HTTP call per proxied request.
type UpstreamClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and a
// bounded per-call timeout. Redirects are never followed: 3xx responses are
// returned as-is so their Location can be rewritten. Transport-level
// compression is disabled so bodies arrive as literal bytes for rewriting.
// The metrics parameter is optional; pass nil to disable upstream metrics.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "upstream_client"),
		metrics: m,
	}
}

// Do executes one upstream call and buffers the entire response body. The
// context controls the call's lifetime: when it is canceled (client
// disconnect) or the client timeout fires, the call fails with an
// UpstreamError. host overrides the Host header sent upstream.
func (c *UpstreamClient) Do(ctx context.Context, method, url, host string, header http.Header, body io.Reader) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	req.Header = header
	req.Host = host

	c.logger.Debug("upstream request",
		"method", method,
		"url", url,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()

	labelMethod := metrics.NormalizeMethod(method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(labelMethod).Observe(duration)
		}
		return nil, &UpstreamError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(labelMethod).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(labelMethod, status).Inc()
	}

	// Buffer the whole body: the content rewriter needs either a token
	// stream over the full document or a decode pass spanning chunk
	// boundaries, and buffering is the simplest contract that satisfies
	// both.
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       buf,
	}, nil
}
