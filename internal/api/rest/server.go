package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fortuna/matatena/internal/metrics"
	"github.com/gorilla/mux"
)

// Server represents the HTTP server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
}

// NewRouter wires every route. statusWatcher serves the collection status
// websocket and may be nil.
func NewRouter(handler *Handler, statusWatcher http.Handler, recorder *metrics.Recorder, logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}

	router := mux.NewRouter()

	// Apply middleware
	router.Use(LoggingMiddleware(logger, recorder))
	router.Use(RecoveryMiddleware(logger))

	// Pages
	router.HandleFunc("/", handler.Index).Methods("GET")
	router.HandleFunc("/collection", handler.Collection).Methods("GET", "POST")
	router.HandleFunc("/pdf", handler.DownloadPDF).Methods("POST")
	router.PathPrefix("/static/").Handler(handler.templates.StaticHandler()).Methods("GET")

	// Operations
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	router.Handle("/metrics", recorder.Handler()).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/collection/{username}", handler.GetCollection).Methods("GET")

	if statusWatcher != nil {
		router.Handle("/ws/collection/{username}", statusWatcher).Methods("GET")
	}

	return router
}

// NewServer creates a new HTTP server around router
func NewServer(port string, handler *Handler, router http.Handler) *Server {
	return &Server{
		port:    port,
		handler: handler,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
