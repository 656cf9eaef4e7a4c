package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"gardenrelay/internal/garden/memorystore"
	"gardenrelay/internal/metrics"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	DefaultAddress = ":10000"
	serviceMessage = "Grow a Garden Stock API"
)

// SnapshotReader is the only view of the store the HTTP layer gets.
type SnapshotReader interface {
	Read() memorystore.Snapshot
}

// ServerOptions configures the HTTP server. Zero timeouts get defaults.
type ServerOptions struct {
	Addr              string
	Debug             bool     // expose GET /debug
	CORSOrigins       []string // "*" allows any origin
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	Logger            *zap.Logger
	Metrics           *metrics.Registry // nil disables GET /metrics
	Now               func() time.Time
}

// Server is the read-only HTTP surface over the snapshot store.
type Server struct {
	router *mux.Router
	http   *http.Server
	store  SnapshotReader
	logger *zap.Logger
	opts   ServerOptions
}

// NewServer builds the router and middleware chain. It does not listen
// until ListenAndServe or Serve is called.
func NewServer(store SnapshotReader, opts ServerOptions) *Server {
	if store == nil {
		panic("api.NewServer: store is nil")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddress
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 2 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		router: mux.NewRouter(),
		store:  store,
		logger: opts.Logger.Named("api"),
		opts:   opts,
	}
	s.setupRoutes()

	// CORS and logging wrap the router so preflights and 404s pass through them too.
	handler := s.requestIDMiddleware(s.requestLoggingMiddleware(s.corsMiddleware(s.router)))

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
		ErrorLog:          zap.NewStdLog(s.logger),
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/stock", s.handleStock).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.opts.Debug {
		s.router.HandleFunc("/debug", s.handleDebug).Methods(http.MethodGet)
	}

	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics.Handler()).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
}

// Handler returns the full middleware-wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks serving on the configured address. A graceful
// Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, waiting up to ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down http server")
	return s.http.Shutdown(ctx)
}
