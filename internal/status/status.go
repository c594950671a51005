package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sessamekesh/duckpond-client/pkg/netcode"
	"go.uber.org/zap"
)

type HealthReporter interface {
	Health() netcode.Health
}

type Params struct {
	Addr     string
	Health   HealthReporter
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

type Server struct {
	params Params
	router chi.Router
	log    *zap.Logger
}

func CreateServer(params Params) *Server {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	if params.Gatherer == nil {
		params.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		params: params,
		log:    logger.With(zap.String("handler", "Status")),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.onHealth)
	r.Handle("/metrics", promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{}))
	s.router = r

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// onHealth is 200 once a connection is installed, 503 before that.
func (s *Server) onHealth(w http.ResponseWriter, r *http.Request) {
	health := s.params.Health.Health()

	w.Header().Set("Content-Type", "application/json")
	if health.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.log.Warn("Failed to write health response", zap.Error(err))
	}
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.params.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Sugar().Infof("Starting status server at %s", s.params.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Failed to gracefully shut down status server", zap.Error(err))
		return err
	}
	s.log.Info("Status server shut down")
	return nil
}
