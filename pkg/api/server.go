// Package api serves test case generation and publishing over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storyqa/pkg/config"
	"storyqa/pkg/generator"
	"storyqa/pkg/logx"
	"storyqa/pkg/metrics"
	"storyqa/pkg/persistence"
	"storyqa/pkg/publish"
	"storyqa/pkg/tracker"
	"storyqa/pkg/version"
)

const shutdownTimeout = 5 * time.Second

// IssueTracker is the part of the Jira client the server needs.
type IssueTracker interface {
	publish.Tracker
	GetIssue(ctx context.Context, key string) (*tracker.Issue, error)
	ListProjects(ctx context.Context) ([]tracker.Project, error)
}

// RunLister reads generation history.
type RunLister interface {
	ListRuns(ctx context.Context, issueKey string, limit int) ([]persistence.Run, error)
}

// Options wires the server's collaborators. Only Generator is required;
// routes whose collaborator is missing answer 503.
type Options struct {
	Generator *generator.Orchestrator
	Tracker   IssueTracker
	Publish   publish.Options
	// DefaultProject is the publish target when a request names none.
	DefaultProject string
	// ModelName is recorded on runs that went through the model path.
	ModelName string
	Runs      RunLister
	Persist   *persistence.Queue
	Metrics   *metrics.Registry
}

// Server routes API requests.
type Server struct {
	router    chi.Router
	opts      Options
	publisher *publish.Publisher
	logger    *logx.Logger
}

// NewServer builds the router.
func NewServer(opts Options) (*Server, error) {
	if opts.Generator == nil {
		return nil, errors.New("generator required")
	}
	s := &Server{
		router: chi.NewRouter(),
		opts:   opts,
		logger: logx.NewLogger("api"),
	}
	if opts.Tracker != nil {
		var observer publish.Observer
		if opts.Metrics != nil {
			observer = opts.Metrics
		}
		s.publisher = publish.New(opts.Tracker, opts.Publish, observer)
	}
	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r.WithContext(logx.WithComponent(r.Context(), "api")))
			s.logger.Debug("%s %s (%s) from %s", r.Method, r.URL.Path, time.Since(start), r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": version.Version,
			"commit":  version.Commit,
			"date":    version.Date,
		})
	})
	if s.opts.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/logs", s.handleLogs)
		r.Post("/generate", s.handleGenerate)
		r.Get("/projects", s.handleProjects)
		r.Get("/issues/{key}/testcases", s.handleIssueTestCases)
		r.Post("/issues/{key}/testcases", s.handlePublish)
		r.Get("/issues/{key}/runs", s.handleRuns)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting storyqa %s API server on %s", version.String(), addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	//nolint:contextcheck // parent context is already cancelled
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed (%d): %v", status, err)
	} else {
		s.logger.Warn("request failed (%d): %v", status, err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps collaborator errors onto response codes.
func statusFor(err error) int {
	var apiErr *tracker.APIError
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, publish.ErrNotStory), errors.Is(err, publish.ErrNoCases):
		return http.StatusUnprocessableEntity
	case errors.Is(err, config.ErrJiraNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
