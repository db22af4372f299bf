// Package httpserver wires the intake endpoints onto a single listener.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	derrors "git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	handlers "git.home.luguber.info/inful/pagesmith/internal/server/handlers"
	smw "git.home.luguber.info/inful/pagesmith/internal/server/middleware"
)

// Runtime is what the server needs from the running daemon.
type Runtime interface {
	handlers.Submitter
	handlers.ActiveLister
	handlers.QueueLength
}

// Options carries optional collaborators.
type Options struct {
	// MetricsHandler is mounted at MetricsPath when non-nil.
	MetricsHandler http.Handler
	MetricsPath    string
	Logger         *slog.Logger
	StartTime      time.Time
}

// Server serves job intake, health and metrics.
type Server struct {
	cfg     config.ServerConfig
	opts    Options
	logger  *slog.Logger
	handler http.Handler

	httpServer *http.Server
	addr       net.Addr
	serveErr   chan error
}

// New constructs the server and its routing table.
func New(cfg config.ServerConfig, runtime Runtime, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StartTime.IsZero() {
		opts.StartTime = time.Now()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}

	errorAdapter := derrors.NewHTTPErrorAdapter(opts.Logger)
	jobs := handlers.NewJobHandlers(runtime, runtime, cfg.Secret, opts.Logger)
	monitoring := handlers.NewMonitoringHandlers(runtime, opts.StartTime)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			errorAdapter.WriteErrorResponse(w, r, derrors.NewError(derrors.CategoryNotFound, "no such endpoint").
				WithContext("path", r.URL.Path).
				Build())
			return
		}
		jobs.HandleSubmit(w, r)
	})
	mux.HandleFunc("/api/v1/jobs", jobs.HandleSubmit)
	mux.HandleFunc("/api/v1/jobs/active", jobs.HandleActive)
	mux.HandleFunc("/healthz", monitoring.HandleHealthCheck)
	if opts.MetricsHandler != nil {
		mux.Handle(opts.MetricsPath, opts.MetricsHandler)
	}

	var h http.Handler = mux
	if len(cfg.CORSOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", smw.RequestIDHeader},
		}).Handler(h)
	}
	h = smw.Chain(opts.Logger, errorAdapter)(h)

	return &Server{
		cfg:     cfg,
		opts:    opts,
		logger:  opts.Logger,
		handler: h,
	}
}

// Handler exposes the routed handler chain.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr reports the bound address once Start has succeeded.
func (s *Server) Addr() net.Addr { return s.addr }

// Start binds the listener synchronously, then serves in the background.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("http startup failed: listen %s: %w", s.cfg.Listen, err)
	}
	s.addr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeoutDuration(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeoutDuration(),
		IdleTimeout:       60 * time.Second,
	}
	s.serveErr = make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", logfields.Error(err))
			s.serveErr <- err
		}
		close(s.serveErr)
	}()
	s.logger.Info("HTTP server started", slog.String("addr", s.addr.String()))
	return nil
}

// Done yields a serve failure, or closes on clean shutdown.
func (s *Server) Done() <-chan error { return s.serveErr }

// Stop gracefully drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
