// Package server exposes the pipeline jobs over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"blsdata/internal/job"
	"blsdata/internal/ledger"
	"blsdata/internal/logger"
	"blsdata/internal/metrics"
	"blsdata/internal/notify"
	"blsdata/internal/pipeline"
)

const (
	defaultRunLimit = 20
	statusRunLimit  = 3
	maxRunLimit     = 500
	maxPayloadBytes = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// StatusResponse is the body of GET /api/status. Untracked lists stored
// files the manifest does not know; Missing lists tracked files that are
// not stored.
type StatusResponse struct {
	Backend     string        `json:"backend"`
	ManifestKey string        `json:"manifestKey"`
	Status      string        `json:"status"`
	Untracked   []string      `json:"untracked"`
	Missing     []string      `json:"missing"`
	LastRuns    []*ledger.Run `json:"lastRuns,omitempty"`
	Files       int           `json:"files"`
	StoredFiles int           `json:"storedFiles"`
	Clients     int           `json:"clients"`
	Ledger      bool          `json:"ledger"`
}

// ErrorResponse is the body of failed API requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server routes job triggers and pipeline state queries.
type Server struct {
	pipeline *pipeline.Pipeline
	runner   *job.Runner
	hub      *Hub
	router   *gin.Engine
	logger   *logger.Logger
}

// New creates a server. The hub is subscribed to the runner's events.
func New(p *pipeline.Pipeline, runner *job.Runner, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	s := &Server{
		pipeline: p,
		runner:   runner,
		hub:      NewHub(log),
		router:   router,
		logger:   log,
	}

	runner.Subscribe(s.hub)

	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")
	api.POST("/jobs/:name", s.handleJob)
	api.GET("/status", s.handleStatus)
	api.GET("/manifest", s.handleManifest)
	api.GET("/runs", s.handleRuns)
	api.GET("/runs/:id", s.handleRun)
	api.GET("/failures", s.handleFailures)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/ws", gin.WrapF(s.hub.ServeWS))

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx ends.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(fmt.Sprintf("API server listening on %s", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// handleJob runs a job synchronously. The body of a report trigger is the
// notification payload; an empty body is a manual run.
func (s *Server) handleJob(c *gin.Context) {
	name := c.Param("name")

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

		return
	}

	n, err := notify.Parse(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

		return
	}

	fn, err := s.pipeline.Func(name, n)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

		return
	}

	resp := s.runner.Invoke(c.Request.Context(), name, fn)
	c.JSON(resp.StatusCode, resp)
}

func (s *Server) handleStatus(c *gin.Context) {
	ctx := c.Request.Context()

	m, _, err := s.pipeline.Manifests().Load(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})

		return
	}

	cfg := s.pipeline.Config()
	filesPrefix := cfg.FileKey("")

	stored, err := s.pipeline.Objects().List(ctx, filesPrefix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})

		return
	}

	resp := StatusResponse{
		Status:      "running",
		Backend:     cfg.Storage.Backend,
		ManifestKey: s.pipeline.Manifests().Key(),
		Files:       len(m),
		StoredFiles: len(stored),
		Clients:     s.hub.Clients(),
		Untracked:   []string{},
		Missing:     []string{},
	}

	tracked := make(map[string]bool, len(m))
	for _, name := range m.Names() {
		tracked[name] = true
	}

	for _, obj := range stored {
		name := strings.TrimPrefix(obj.Key, filesPrefix)
		if tracked[name] {
			delete(tracked, name)

			continue
		}

		resp.Untracked = append(resp.Untracked, name)
	}

	for _, name := range m.Names() {
		if tracked[name] {
			resp.Missing = append(resp.Missing, name)
		}
	}

	if l := s.pipeline.Ledger(); l != nil {
		resp.Ledger = true

		resp.LastRuns, err = l.RecentRuns(ctx, "", statusRunLimit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})

			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleManifest(c *gin.Context) {
	m, _, err := s.pipeline.Manifests().Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})

		return
	}

	c.JSON(http.StatusOK, m)
}

func (s *Server) handleRuns(c *gin.Context) {
	l := s.pipeline.Ledger()
	if l == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "run ledger is disabled"})

		return
	}

	limit := defaultRunLimit

	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxRunLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("limit must be between 1 and %d", maxRunLimit)})

			return
		}

		limit = v
	}

	runs, err := l.RecentRuns(c.Request.Context(), c.Query("job"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})

		return
	}

	if runs == nil {
		runs = []*ledger.Run{}
	}

	c.JSON(http.StatusOK, runs)
}

func (s *Server) handleRun(c *gin.Context) {
	l := s.pipeline.Ledger()
	if l == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "run ledger is disabled"})

		return
	}

	run, err := l.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})

		return
	}

	c.JSON(http.StatusOK, run)
}

// handleFailures returns the number of recorded download failures per file.
func (s *Server) handleFailures(c *gin.Context) {
	l := s.pipeline.Ledger()
	if l == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "run ledger is disabled"})

		return
	}

	counts, err := l.FailureCounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})

		return
	}

	c.JSON(http.StatusOK, counts)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		s.logger.Debug(fmt.Sprintf("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start)))
	}
}
