package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/crypto-pulse/internal/provider"
	"github.com/crypto-pulse/internal/websocket"
	"github.com/crypto-pulse/pkg/config"
	"github.com/crypto-pulse/pkg/logger"
)

// Server is the stateless gateway: it relays simplified client requests to
// the provider with injected credentials and returns provider payloads
// unchanged in shape. No caching, no retries, no rate limiting.
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	provider  *provider.Client
	wsManager *websocket.Manager
}

// NewServer creates a new gateway server. wsManager may be nil when the
// snapshot stream is disabled.
func NewServer(cfg *config.Config, log *logrus.Logger, providerClient *provider.Client, wsManager *websocket.Manager) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    log,
		provider:  providerClient,
		wsManager: wsManager,
	}

	s.setupRoutes()

	return s
}

// setupRoutes configures all gateway routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	// Apply middleware before defining routes
	s.router.Use(logger.Middleware(s.logger))
	s.router.Use(s.recoveryMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cryptocurrency/listings/latest", s.handleListings).Methods("GET")
	api.HandleFunc("/cryptocurrency/quotes/latest", s.handleQuotes).Methods("GET")
	api.HandleFunc("/cryptocurrency/info", s.handleInfo).Methods("GET")
	api.HandleFunc("/global-metrics/quotes/latest", s.handleGlobalMetrics).Methods("GET")

	if s.wsManager != nil {
		api.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
	}
}

// Handler returns the fully assembled HTTP handler, including CORS.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router

	if s.cfg.Security.CORSEnabled {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
			handlers.AllowedMethods(s.cfg.Security.CORSMethods),
			handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
		)(h)
	}

	return h
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("addr", addr).Info("Starting gateway server")
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// recoveryMiddleware recovers from handler panics and returns a 500
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.WithFields(logrus.Fields{
					"panic": fmt.Sprintf("%v", rec),
					"path":  r.URL.Path,
				}).Error("Recovered from handler panic")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// handleWebSocket upgrades the connection and hands it to the stream manager
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsManager.HandleUpgrade(w, r)
}
