// Package server exposes the classifier over HTTP. It serves the frontend
// build, the JSON prediction API, a websocket for streaming predictions, model
// version management and the Prometheus metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"cancer-detect/internal/common"
	"cancer-detect/internal/ml"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// ModelService manages stored model versions on behalf of the API.
type ModelService interface {
	Retrain(ctx context.Context) (ml.ModelMetadata, error)
	Activate(version string) (ml.ModelMetadata, error)
	Rollback() (ml.ModelMetadata, error)
	Versions() ([]ml.ModelVersion, error)
}

// HTTPMetrics records finished requests.
type HTTPMetrics interface {
	HTTPObserve(route, method string, code int, seconds float64)
}

// Config contains the HTTP server settings.
type Config struct {
	Addr           string
	StaticDir      string
	CORSOrigins    []string
	RequestTimeout time.Duration
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front of the classifier.
type Server struct {
	predictor ml.PredictorInterface
	models    ModelService
	metrics   HTTPMetrics
	config    Config

	server   *http.Server
	upgrader websocket.Upgrader

	clients   map[*websocket.Conn]bool // open websocket connections
	clientsMu sync.Mutex
}

func New(config Config, predictor ml.PredictorInterface, models ModelService, metrics HTTPMetrics) *Server {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 5 * time.Second
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = []string{"*"}
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		predictor: predictor,
		models:    models,
		metrics:   metrics,
		config:    config,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:   make(map[*websocket.Conn]bool),
	}

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler builds the full middleware chain around the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, s.observe)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/features", s.handleFeatures).Methods(http.MethodGet)
	api.HandleFunc("/model-info", s.handleModelInfo).Methods(http.MethodGet)
	api.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	api.HandleFunc("/predict/batch", s.handlePredictBatch).Methods(http.MethodPost)
	api.HandleFunc("/ws/predict", s.handleWebSocket).Methods(http.MethodGet)
	api.HandleFunc("/models", s.handleListModels).Methods(http.MethodGet)
	api.HandleFunc("/models/retrain", s.handleRetrain).Methods(http.MethodPost)
	api.HandleFunc("/models/rollback", s.handleRollback).Methods(http.MethodPost)
	api.HandleFunc("/models/{version}/activate", s.handleActivate).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.PathPrefix("/").
		MatcherFunc(notAPI).
		Handler(http.FileServer(http.Dir(s.config.StaticDir))).
		Methods(http.MethodGet, http.MethodHead)

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.config.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodPost}),
		handlers.AllowedHeaders([]string{"Content-Type", common.RequestIDHeader}),
		handlers.ExposedHeaders([]string{common.RequestIDHeader}),
	)
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}), handlers.PrintRecoveryStack(false))
	return recovery(cors(r))
}

// notAPI keeps the static catch-all from shadowing method mismatches on API
// routes, so those still answer 405.
func notAPI(r *http.Request, _ *mux.RouteMatch) bool {
	return !strings.HasPrefix(r.URL.Path, "/api/")
}

// ListenAndServe blocks until the server stops. A graceful shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	log.Info().
		Str("address", s.server.Addr).
		Str("static_dir", s.config.StaticDir).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes open websockets.
func (s *Server) Shutdown(ctx context.Context) error {
	s.clientsMu.Lock()
	for client := range s.clients {
		client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.clientsMu.Unlock()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown HTTP server")
		return err
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}

// recoveryLogger routes panics caught by gorilla/handlers into zerolog.
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	log.Error().Str("panic", fmt.Sprint(v...)).Msg("recovered from handler panic")
}
