package services

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/nextpost/backend/integrations"
	"github.com/nextpost/backend/repository"
	ws "github.com/nextpost/backend/websocket"
)

// Server holds all server dependencies
type Server struct {
	config           *Config
	repo             *repository.GORMRepository
	facebook         *integrations.FacebookClient
	publisher        *Publisher
	scheduler        *Scheduler
	authService      *AuthService
	authEndpoints    *AuthEndpoints
	postEndpoints    *PostEndpoints
	accountEndpoints *AccountEndpoints
	oauthEndpoints   *OAuthEndpoints
	wsHub            *ws.Hub
	upgrader         websocket.Upgrader

	stopScheduler context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	wsOrigins := config.WebSocket.AllowedOrigins
	if wsOrigins == "" {
		// Dashboard connections come from the same origins that use the REST API
		wsOrigins = config.CORS.AllowedOrigins
	}

	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, wsOrigins)
			},
		},
	}
}

// SetDatabase sets the database connection
func (s *Server) SetDatabase(repo *repository.GORMRepository) {
	s.repo = repo
}

// InitializeServices wires up publishing, scheduling and the HTTP endpoints
func (s *Server) InitializeServices() error {
	s.facebook = integrations.NewFacebookClient(s.config.Facebook.AppID, s.config.Facebook.AppSecret)
	if s.config.Facebook.AppID == "" {
		slog.Warn("Facebook app credentials not configured, publishing will fail")
	}

	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	s.publisher = NewPublisher(s.facebook)
	s.scheduler = NewScheduler(s.repo, s.publisher, s.wsHub, s.config.Scheduler)

	s.authService = NewAuthService(s.repo, s.config.JWT.Secret)
	s.authEndpoints = NewAuthEndpoints(s.authService)
	s.postEndpoints = NewPostEndpoints(s.repo, s.publisher, s.scheduler)
	s.accountEndpoints = NewAccountEndpoints(s.repo, s.publisher)
	s.oauthEndpoints = NewOAuthEndpoints(s.repo, s.facebook, s.config)

	slog.Info("Services initialized",
		"scheduler_workers", s.config.Scheduler.Workers,
		"scheduler_interval", s.config.Scheduler.Interval)
	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(s.config.CORS.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoint
	r.Get("/health", s.healthHandler)

	// API v1 route group
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		// Auth routes register their own middleware split
		s.authEndpoints.RegisterRoutes(r)

		// OAuth callback is hit by a browser redirect, no token attached
		s.oauthEndpoints.RegisterCallbackRoutes(r)

		// Everything else requires an authenticated user
		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)
			r.Get("/ws", s.websocketHandlerFunc)
			s.oauthEndpoints.RegisterConnectRoutes(r)
			s.accountEndpoints.RegisterRoutes(r)
			s.postEndpoints.RegisterRoutes(r)
		})
	})

	return r
}

// Start starts the HTTP server and the background scheduler
func (s *Server) Start() {
	host := s.config.Server.Host
	port := s.config.Server.Port
	if port == "" {
		port = "8000"
	}

	schedCtx, cancel := context.WithCancel(context.Background())
	s.stopScheduler = cancel
	s.scheduler.Start(schedCtx)

	srv := &http.Server{
		Addr:    host + ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Let in-flight publications finish before exiting
	s.stopScheduler()
	s.scheduler.Wait()

	slog.Info("Server exited")
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// checkOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func checkOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range splitOrigins(allowedOriginsStr) {
		if allowed == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.repo != nil {
		dbStatus = "up"
		if sqlDB, err := s.repo.DB().DB(); err != nil {
			dbStatus = "down"
			status = "degraded"
		} else if err := sqlDB.Ping(); err != nil {
			dbStatus = "down"
			status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + status + `","database":"` + dbStatus + `"}`))
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"API v1","version":"1.0.0"}`))
}

func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		slog.Error("WebSocket connection failed - user not found in context")
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("WebSocket connection established", "user_id", user.ID, "email", user.Email)

	client := s.wsHub.RegisterClient(conn, user.ID)
	go client.WritePump()
	client.ReadPump()
}
