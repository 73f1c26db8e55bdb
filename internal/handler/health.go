package handler

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"mirror-proxy-go/internal/config"
	"mirror-proxy-go/internal/router"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	router  *router.Router
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, r *router.Router, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, router: r, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type statusRoute struct {
	Hostname string `json:"hostname"`
	Target   string `json:"target"`
	Private  bool   `json:"private"`
}

// Status returns proxy status information, including the installed routes.
func (h *HealthHandler) Status(c echo.Context) error {
	table := h.router.Routes()
	routes := make([]statusRoute, 0, len(table))
	for hostname, r := range table {
		routes = append(routes, statusRoute{
			Hostname: hostname,
			Target:   r.Origin() + r.BasePath,
			Private:  r.Private,
		})
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Hostname < routes[j].Hostname })

	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": string(h.version),
		"listen":  h.cfg.Server.Addr(),
		"routes":  routes,
	})
}
