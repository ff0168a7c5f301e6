// Package server provides embeddable read-only HTTP handlers for
// supervision state.
// Endpoints:
//
//	GET {basePath}/status   full status snapshot
//	GET {basePath}/health   health verdict; 503 when critical
//	GET {basePath}/metrics  Prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vigilproc/vigil/internal/heartbeat"
	"github.com/vigilproc/vigil/internal/metrics"
	"github.com/vigilproc/vigil/internal/status"
)

type Router struct {
	reporter *status.Reporter
	basePath string
}

// NewRouter constructs a Router over a status reporter with a
// configurable basePath. Example basePath: "/vigil" results in
// /vigil/status, /vigil/health, /vigil/metrics.
func NewRouter(reporter *status.Reporter, basePath string) *Router {
	return &Router{reporter: reporter, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server or mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/health", r.handleHealth)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Callers shut it down through http.Server's Shutdown or Close.
func NewServer(addr, basePath string, reporter *status.Reporter) *http.Server {
	r := NewRouter(reporter, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status api server failed", "addr", addr, "error", err)
		}
	}()
	return server
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.reporter.Snapshot())
}

func (r *Router) handleHealth(c *gin.Context) {
	snap := r.reporter.Snapshot()
	if snap.Health == nil {
		// No metrics document means the monitor is not attesting health.
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": string(heartbeat.StatusCritical),
			"error":  "no metrics recorded",
		})
		return
	}
	code := http.StatusOK
	if snap.Health.Status == heartbeat.StatusCritical {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, snap.Health)
}

func sanitizeBase(bp string) string {
	if bp == "" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}
