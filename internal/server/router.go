package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/botkeeper/internal/detector"
	"github.com/loykin/botkeeper/internal/metrics"
	"github.com/loykin/botkeeper/internal/watchdog"
)

// Checker is the part of the watchdog the HTTP surface drives.
type Checker interface {
	Check(ctx context.Context) (watchdog.Outcome, error)
	Last() (watchdog.Outcome, bool)
}

// Router provides embeddable HTTP handlers for the prober.
// Endpoints:
//
//	GET  {basePath}/status     last check outcome (204 before the first check)
//	POST {basePath}/check      run a check now
//	GET  {basePath}/processes  matching processes; query user=... match=... override the configured filter
//	GET  /metrics              prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	checker  Checker
	procs    detector.ProcessDetector
	basePath string
	logger   *slog.Logger
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(checker Checker, procs detector.ProcessDetector, basePath string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{checker: checker, procs: procs, basePath: sanitizeBase(basePath), logger: logger}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.POST("/check", r.handleCheck)
	group.GET("/processes", r.handleProcesses)
	return g
}

// NewServer builds an http.Server for the router on addr. The caller runs
// ListenAndServe and Shutdown.
func NewServer(addr string, r *Router) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type checkResp struct {
	Outcome watchdog.Outcome `json:"outcome"`
	Error   string           `json:"error,omitempty"`
}

type processesResp struct {
	User      string                 `json:"user"`
	Match     string                 `json:"match"`
	Processes []detector.ProcessInfo `json:"processes"`
}

func (r *Router) handleStatus(c *gin.Context) {
	out, ok := r.checker.Last()
	if !ok {
		// no check has run yet
		c.Status(http.StatusNoContent)
		return
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleCheck(c *gin.Context) {
	out, err := r.checker.Check(c.Request.Context())
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, watchdog.ErrCheckFailed) {
			code = http.StatusServiceUnavailable
		}
		r.logger.Warn("check via http failed", "error", err)
		writeJSON(c, code, checkResp{Outcome: out, Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, checkResp{Outcome: out})
}

func (r *Router) handleProcesses(c *gin.Context) {
	d := r.procs
	if u, ok := c.GetQuery("user"); ok {
		if u != "" && !isSafeName(u) {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid user: allowed [A-Za-z0-9._-]"})
			return
		}
		d.User = u
	}
	if m := c.Query("match"); m != "" {
		if !isSafeName(m) {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid match: allowed [A-Za-z0-9._-]"})
			return
		}
		d.Match = m
	}
	found, err := d.Matches(c.Request.Context())
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if found == nil {
		found = []detector.ProcessInfo{}
	}
	writeJSON(c, http.StatusOK, processesResp{User: d.User, Match: d.Match, Processes: found})
}
