package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/engine"
	"github.com/vk/assetgraph/internal/registry"
)

// DefaultAddr is the listen address used when Options.Addr is empty.
const DefaultAddr = ":8000"

const (
	defaultMaxBodyBytes    = 1 << 20
	defaultShutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	Addr            string
	ResultMode      engine.ResultMode
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	engine *engine.Engine
	hub    *Hub
	opts   Options
	logger *slog.Logger
	router chi.Router
}

// New creates a Server that runs graphs on an engine built from reg and
// engineOpts. Node status events are forwarded to WebSocket clients in
// addition to any engineOpts.OnEvent handler.
func New(reg *registry.Registry, engineOpts engine.Options, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.ResultMode == "" {
		opts.ResultMode = engine.ResultModeState
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	hub := NewHub(opts.Logger)
	next := engineOpts.OnEvent
	engineOpts.OnEvent = func(e engine.Event) {
		if next != nil {
			next(e)
		}
		hub.PublishEvent(e)
	}

	s := &Server{
		engine: engine.New(reg, engineOpts),
		hub:    hub,
		opts:   opts,
		logger: opts.Logger,
	}
	s.router = s.buildRouter()
	return s
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", HealthHandler)
	r.Get("/ws", s.hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Post("/execute-graph", s.handleExecute)
		r.Post("/validate-graph", s.handleValidate)
		r.Get("/node-types", s.handleNodeTypes)
	})
	return r
}

// requestLogger attaches a request-scoped logger to the context and logs
// each completed request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With("requestID", middleware.GetReqID(r.Context()))
		ctx := ctxlog.WithLogger(r.Context(), logger)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Debug("Request handled.",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started),
		)
	})
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully: in-flight
// requests are given ShutdownTimeout to finish and WebSocket clients are
// disconnected.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctxlog.WithLogger(context.WithoutCancel(ctx), s.logger)
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("🌐 HTTP server starting", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("🌐 Shutting down HTTP server...")
		s.hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown failed", "error", err)
			return err
		}
		s.logger.Debug("HTTP server shut down gracefully.")
		return nil
	})
	return g.Wait()
}
