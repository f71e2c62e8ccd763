// Package handlers provides the HTTP handlers of the quote API and its
// operational endpoints.
package handlers

import (
	"context"
	"net/http"
	"runtime"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

const defaultReadinessTimeout = 3 * time.Second

// BuildInfo is injected at build time through ldflags and served on /-/build.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// NewBuildInfo creates a BuildInfo with the running Go version filled in.
func NewBuildInfo(version, commit, buildTime string) BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

// HealthHandler serves the /-/ probes, build info and metrics.
type HealthHandler struct {
	registry         ports.HealthRegistry
	buildInfo        BuildInfo
	gatherer         prometheus.Gatherer
	readinessTimeout time.Duration
}

// HealthOption customizes a HealthHandler.
type HealthOption func(*HealthHandler)

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) HealthOption {
	return func(h *HealthHandler) { h.gatherer = g }
}

// WithReadinessTimeout bounds how long /-/ready waits on dependency checks.
func WithReadinessTimeout(d time.Duration) HealthOption {
	return func(h *HealthHandler) {
		if d > 0 {
			h.readinessTimeout = d
		}
	}
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(registry ports.HealthRegistry, buildInfo BuildInfo, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{
		registry:         registry,
		buildInfo:        buildInfo,
		gatherer:         prometheus.DefaultGatherer,
		readinessTimeout: defaultReadinessTimeout,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

type livenessResponse struct {
	Status string `json:"status"`
}

// Liveness answers 200 while the process runs. It checks no dependencies.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, livenessResponse{Status: "ok"})
}

type readinessResponse struct {
	Status   string                        `json:"status"`
	Degraded []string                      `json:"degraded,omitempty"`
	Checks   map[string]*ports.CheckResult `json:"checks,omitempty"`
}

// Readiness answers 503 only when a required check fails. A failing optional
// check, such as the competitor source, reports "degraded" with 200 because
// quotes are still served without enrichment.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.readinessTimeout)
	defer cancel()

	result := h.registry.CheckAll(ctx)

	resp := readinessResponse{
		Status: string(result.Status),
		Checks: result.Checks,
	}

	for name, check := range result.Checks {
		if check.Optional && check.Status != ports.HealthStatusHealthy {
			resp.Degraded = append(resp.Degraded, name)
		}
	}

	slices.Sort(resp.Degraded)

	status := http.StatusOK
	if result.Status == ports.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(status, resp)
}

// BuildInfoHandler serves the build information.
func (h *HealthHandler) BuildInfoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.buildInfo)
}

// MetricsHandler exposes the handler's gatherer in the Prometheus text format.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})
}

// Register mounts the operational routes under /-/ on r.
func (h *HealthHandler) Register(r gin.IRouter) {
	ops := r.Group("/-")
	ops.GET("/live", h.Liveness)
	ops.GET("/ready", h.Readiness)
	ops.GET("/build", h.BuildInfoHandler)
	ops.GET("/metrics", gin.WrapH(h.MetricsHandler()))
}
