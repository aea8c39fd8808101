package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/shipquote/internal/pricing"
	"github.com/tournevent/shipquote/internal/quote"
	"github.com/tournevent/shipquote/internal/telemetry"
	"github.com/tournevent/shipquote/pkg/shipping"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Server is the HTTP server for the shipping quote service.
type Server struct {
	port       int
	service    *quote.Service
	registry   *shipping.Registry
	calculator *pricing.Calculator
	metrics    *telemetry.Metrics
	gatherer   prometheus.Gatherer
	logger     *otelzap.Logger
}

// Config holds server configuration.
type Config struct {
	Port int
	// Gatherer serves /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

// New creates a new server instance.
func New(cfg Config, service *quote.Service, logger *otelzap.Logger) *Server {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		port:       cfg.Port,
		service:    service,
		registry:   service.Registry,
		calculator: pricing.NewCalculator(),
		metrics:    service.Metrics,
		gatherer:   gatherer,
		logger:     logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/shipping/modules", s.handleModules)
		r.Route("/stores/{store}/shipping", func(r chi.Router) {
			r.Post("/quotes", s.handleQuote)
			r.Get("/countries", s.handleCountries)
			r.Put("/modules/{module}", s.handleConfigureModule)
		})
	})
	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RecordHTTP(route, strconv.Itoa(status))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
