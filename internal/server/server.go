// Package server exposes an application over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/astra/application"
	"github.com/hupe1980/astra/logging"
	"github.com/hupe1980/astra/tool"
)

// Options configures the server.
type Options struct {
	// RequestLimit requests per RateWindow are allowed per client IP.
	RequestLimit int
	RateWindow   time.Duration
	// RunTimeout bounds a single POST /v1/run.
	RunTimeout time.Duration
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   logging.Logger
}

// Server serves one application.
type Server struct {
	app  *application.Application
	opts Options
	log  logging.Logger
}

// New creates a server for app.
func New(app *application.Application, optFns ...func(o *Options)) *Server {
	opts := Options{
		RequestLimit: 60,
		RateWindow:   time.Minute,
		RunTimeout:   10 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{app: app, opts: opts, log: logging.OrNoOp(opts.Logger)}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit())
		r.Get("/tools", s.handleTools)
		r.Post("/run", s.handleRun)
	})
	return r
}

func (s *Server) rateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(
		s.opts.RequestLimit,
		s.opts.RateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(s.opts.RateWindow.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	tools := s.app.Tools()
	for _, a := range s.app.Agents() {
		tools = tools.Merge(a.Tools())
	}
	for _, t := range s.app.Tasks() {
		tools = tools.Merge(tool.NewRegistry(t.Tools...))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools.Schemas()})
}

type runRequest struct {
	Inputs map[string]any `json:"inputs"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctx := r.Context()
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	res, err := s.app.Run(ctx, req.Inputs)
	if err != nil {
		s.log.Error("server.run.error", "request_id", middleware.GetReqID(r.Context()), "error", err.Error())
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		body := map[string]any{"error": err.Error()}
		if res != nil {
			body["run_id"] = res.RunID
			body["steps"] = res.Steps
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("server.shutdown")
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
