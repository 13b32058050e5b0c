package web

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/cali-upid/internal/config"
	"github.com/cali-upid/internal/etl"
	"github.com/cali-upid/internal/metrics"
	"github.com/cali-upid/internal/store"
	"github.com/cali-upid/internal/web/handlers"
	"github.com/cali-upid/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *config.Config
	db         *sql.DB
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	api        *handlers.APIHandler
}

// NewServer creates a server around a ready pipeline. db may be nil, in which
// case runs are kept in memory only.
func NewServer(cfg *config.Config, pipeline *etl.Pipeline, db *sql.DB) *Server {
	server := &Server{
		config: cfg,
		db:     db,
		api: &handlers.APIHandler{
			Pipeline: pipeline,
			DB:       db,
			Config:   handlerConfig(cfg),
		},
	}
	if db != nil {
		server.api.Store = store.New(db, cfg.Database.TablePrefix)
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:              listenAddr(cfg.Server),
		Handler:           server.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       seconds(cfg.Server.ReadTimeout),
		WriteTimeout:      seconds(cfg.Server.WriteTimeout),
		IdleTimeout:       60 * time.Second,
	}

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/process", s.api.ProcessBatch).Methods("POST")
	api.HandleFunc("/coordinates/correct", s.api.CorrectCoordinates).Methods("GET")
	api.HandleFunc("/match/{set}", s.api.MatchPoint).Methods("GET")
	api.HandleFunc("/reference", s.api.ListReferences).Methods("GET")
	api.HandleFunc("/stats", s.api.GetStats).Methods("GET")
	api.Use(middleware.Authentication(s.config.Server.APIKey))

	s.router.HandleFunc("/health", s.api.Health).Methods("GET")
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	s.router.Use(middleware.RequestLogging())
	s.router.Use(metrics.Middleware)

	// CORS wraps the router so preflight requests are answered before route matching
	s.handler = middleware.CORS()(s.router)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on http://%s\n", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	fmt.Println("Shutting down server...")

	timeout := seconds(s.config.Server.ShutdownTimeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Server shutdown error: %v\n", err)
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			fmt.Printf("Database close error: %v\n", err)
		}
	}

	fmt.Println("Server stopped")
	return nil
}
