package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"mirror-proxy-go/internal/client"
	"mirror-proxy-go/internal/model"
	"mirror-proxy-go/internal/router"
	"mirror-proxy-go/internal/service"
)

// ProxyHandler dispatches inbound requests by hostname and runs the proxy
// pipeline. Error bodies are minimal plain text; detail stays server-side
// in the log.
type ProxyHandler struct {
	service *service.ProxyService
	router  *router.Router
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, r *router.Router, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		router:  r,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle resolves the route for the request's hostname, forwards through
// the pipeline and writes the transformed response. No upstream call is
// attempted when the Host header is missing or unrouted.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	if req.Host == "" {
		return c.String(http.StatusBadRequest, "missing Host header")
	}

	hostname := router.NormalizeHostname(req.Host)
	route, err := h.router.Resolve(hostname)
	if err != nil {
		return c.String(http.StatusNotFound, "no route for host")
	}

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Host:     req.Host,
		Hostname: hostname,
		Scheme:   c.Scheme(),
		ClientIP: c.RealIP(),
		URL:      req.URL,
		Header:   req.Header,
		Body:     req.Body,
	}

	resp, rc, err := h.service.Forward(pr, route)
	if err != nil {
		return h.mapError(c, rc, err)
	}

	hdr := c.Response().Header()
	for key, vals := range resp.Header {
		for _, v := range vals {
			hdr.Add(key, v)
		}
	}
	hdr.Set("X-Proxy-Id", strconv.FormatUint(rc.ID, 10))
	hdr.Set("X-Proxy-Upstream", rc.Upstream.String())
	hdr.Set("X-Proxy-Time", time.Since(rc.Start).String())

	c.Response().WriteHeader(resp.StatusCode)
	if _, err := c.Response().Write(resp.Body); err != nil {
		h.logger.Error("writing response body",
			"err", err,
			"id", rc.ID,
		)
	}

	return nil
}

// mapError turns a pipeline failure into an HTTP status. Every error is
// terminal to its own request only; there are no retries.
func (h *ProxyHandler) mapError(c echo.Context, rc *model.RequestContext, err error) error {
	h.logger.Error("proxy error",
		"err", err,
		"id", rc.ID,
		"host", rc.Hostname,
		"upstream", rc.Upstream.String(),
	)

	var ue *client.UpstreamError
	if errors.As(err, &ue) {
		return c.String(http.StatusBadGateway, "upstream connection failed")
	}
	return c.String(http.StatusBadGateway, "upstream request failed")
}
