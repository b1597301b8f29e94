package ingest

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Clawue884/sidra-monitoring/pkg/alerting"
	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
	"github.com/Clawue884/sidra-monitoring/pkg/telemetry"
)

// Sink receives every accepted sample, typically a time-series store
// client. Sink failures are logged and never fail the ingest.
type Sink interface {
	WriteSample(ctx context.Context, sample *telemetry.Sample) error
}

// AuditLog persists alert transition events. Persistence failures are
// logged and never fail the ingest.
type AuditLog interface {
	RecordEvent(ctx context.Context, ev alerting.Event) error
}

// Server is the central collector: it ingests samples from edge
// agents, feeds the alert engine, and exposes the alert and inventory
// query endpoints.
type Server struct {
	config      *Config
	store       *SampleStore
	engine      *alerting.Engine
	sink        Sink
	audit       AuditLog
	rateLimiter *rate.Limiter
	httpServer  *http.Server

	mu       sync.RWMutex
	ready    bool
	snapshot *inventory.Snapshot
}

// ServerOption configures optional collaborators.
type ServerOption func(*Server)

// WithSink forwards accepted samples to a time-series store.
func WithSink(sink Sink) ServerOption {
	return func(s *Server) { s.sink = sink }
}

// WithAuditLog persists alert transitions.
func WithAuditLog(audit AuditLog) ServerOption {
	return func(s *Server) { s.audit = audit }
}

// NewServer creates a collector server.
func NewServer(config *Config, engine *alerting.Engine, opts ...ServerOption) *Server {
	if config == nil {
		config = NewConfig()
	}

	store := NewSampleStore(config.MaxHistory)
	if config.Freshness > 0 {
		store.Freshness = config.Freshness
	}
	if config.FutureSkew > 0 {
		store.FutureSkew = config.FutureSkew
	}

	s := &Server{
		config:      config,
		store:       store,
		engine:      engine,
		rateLimiter: rate.NewLimiter(config.RateLimit, config.RateLimitBurst),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Address, config.Port),
		Handler:      s.routes(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Store exposes the sample store for the serving pipeline.
func (s *Server) Store() *SampleStore {
	return s.store
}

// routes configures all HTTP routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// System endpoints, no rate limiting
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/ingest", s.withMiddleware(s.handleIngest))
	mux.HandleFunc("/v1/alerts", s.withMiddleware(s.handleAlerts))
	mux.HandleFunc("/v1/inventory", s.withMiddleware(s.handleInventory))
	mux.HandleFunc("/v1/samples/", s.withMiddleware(s.handleSamples))

	return mux
}

// SetReady marks the server as ready to serve traffic.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetSnapshot publishes the latest discovery snapshot for the
// inventory query endpoint.
func (s *Server) SetSnapshot(snap *inventory.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.SetReady(true)

	slog.Info("collector listening",
		"name", s.config.Name,
		"version", s.config.Version,
		"addr", s.httpServer.Addr,
		"rateLimit", s.config.RateLimit,
		"rateLimitBurst", s.config.RateLimitBurst,
		"maxHistory", s.config.MaxHistory,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	slog.Info("collector shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}
