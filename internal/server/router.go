package server

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lptsplit/lptsplit/internal/metrics"
	"github.com/lptsplit/lptsplit/internal/pipeline"
)

// StatusSource provides the current pipeline snapshot.
type StatusSource interface {
	Status() pipeline.Status
}

// Router exposes a read-only view of the monitor.
// Endpoints:
//
//	GET {basePath}/status        full pipeline snapshot
//	GET {basePath}/job           the open job, 404 when idle
//	GET {basePath}/healthz       200 while running, 503 otherwise
//	GET /metrics                 Prometheus metrics, when enabled
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	src      StatusSource
	basePath string
	metrics  bool
}

func NewRouter(src StatusSource, basePath string, withMetrics bool) *Router {
	return &Router{src: src, basePath: sanitizeBase(basePath), metrics: withMetrics}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/job", r.handleJob)
	group.GET("/healthz", r.handleHealth)
	if r.metrics {
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer binds addr and serves the router in the background, over TLS
// when tlsCfg is not nil. Bind errors are returned; the caller shuts the
// server down.
func NewServer(addr, basePath string, src StatusSource, withMetrics bool, tlsCfg *tls.Config) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}
	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           NewRouter(src, basePath, withMetrics).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		TLSConfig:         tlsCfg,
	}
	go func() { _ = server.Serve(ln) }()
	return server, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type healthResp struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.src.Status())
}

func (r *Router) handleJob(c *gin.Context) {
	st := r.src.Status()
	if st.Current == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "no open job"})
		return
	}
	writeJSON(c, http.StatusOK, st.Current)
}

func (r *Router) handleHealth(c *gin.Context) {
	st := r.src.Status()
	if !st.Running {
		writeJSON(c, http.StatusServiceUnavailable, healthResp{OK: false, Error: st.Error})
		return
	}
	writeJSON(c, http.StatusOK, healthResp{OK: true})
}
