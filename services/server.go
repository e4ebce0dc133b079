package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/krshsl/mockprep/backend/repository"
	ws "github.com/krshsl/mockprep/backend/websocket"
	"github.com/redis/go-redis/v9"
)

// Server holds all server dependencies
type Server struct {
	config *Config
	store  repository.Store
	users  repository.UserStore
	dbPing func(ctx context.Context) error
	redis  *redis.Client

	metrics    *Metrics
	hub        *ws.Hub
	questions  *QuestionService
	interviews *InterviewService
	sweeper    *SessionSweeper

	authService        *AuthService
	authEndpoints      *AuthEndpoints
	interviewEndpoints *InterviewEndpoints
	questionEndpoints  *QuestionEndpoints
	speechEndpoints    *SpeechEndpoints
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{
		config:  config,
		metrics: NewMetrics(),
	}
}

// SetDatabase sets the stores and the ping used by /health. users may be nil.
func (s *Server) SetDatabase(store repository.Store, users repository.UserStore, ping func(ctx context.Context) error) {
	s.store = store
	s.users = users
	s.dbPing = ping
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices(ctx context.Context) error {
	if s.store == nil {
		slog.Warn("Database URL not configured, keeping sessions in memory")
		s.store = repository.NewMemoryStore()
	}

	s.hub = ws.NewHub()
	go s.hub.Run()

	locker, err := s.sessionLocker(ctx)
	if err != nil {
		return err
	}

	transcriber := NewTranscriberFromConfig(ctx, s.config.Transcription)
	s.questions = NewQuestionService(s.store)
	s.interviews = NewInterviewService(InterviewDeps{
		Store:       s.store,
		Questions:   s.questions,
		Transcripts: NewTranscriptProvider(transcriber, s.config.Transcription.Timeout, s.metrics),
		Media:       NewMediaStore(s.config.Media.Dir),
		Locker:      locker,
		Publisher:   s.hub,
		Metrics:     s.metrics,
	})

	var questionAudio *QuestionAudioService
	if s.config.Speech.ElevenLabsKey != "" {
		questionAudio = NewQuestionAudioService(s.questions, NewElevenLabsService(s.config.Speech.ElevenLabsKey), NewAudioCache(s.config.Speech.CacheDir))
		slog.Info("ElevenLabs service initialized")
	}

	if s.config.JWT.Secret != "" && s.users != nil {
		s.authService = NewAuthService(s.users, s.config.JWT.Secret, s.config.Server.Environment == "production")
		s.authEndpoints = NewAuthEndpoints(s.authService)
		slog.Info("Authentication service initialized")
	} else {
		slog.Warn("Cookie authentication disabled, trusting the user id header", "header", UserIDHeader)
	}

	s.interviewEndpoints = NewInterviewEndpoints(s.interviews, s.hub, s.config.WebSocket.AllowedOrigins)
	s.questionEndpoints = NewQuestionEndpoints(s.questions, questionAudio)
	s.speechEndpoints = NewSpeechEndpoints(s.interviews)

	s.sweeper = NewSessionSweeper(s.store, s.interviews, s.config.Sessions)
	if err := s.sweeper.Start(); err != nil {
		return err
	}

	return nil
}

// sessionLocker shares locks through Redis when REDIS_URL is set
func (s *Server) sessionLocker(ctx context.Context) (SessionLocker, error) {
	if s.config.Redis.URL == "" {
		return NewLocalSessionLocker(), nil
	}

	opts, err := redis.ParseURL(s.config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	s.redis = redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.redis.Ping(pingCtx).Err(); err != nil {
		slog.Error("Failed to connect to Redis, session locks stay in-process", "error", err)
		s.redis.Close()
		s.redis = nil
		return NewLocalSessionLocker(), nil
	}

	slog.Info("Connected to Redis, session locks are shared")
	return NewRedisSessionLocker(s.redis), nil
}

// identity picks cookie authentication when it is configured
func (s *Server) identity() func(http.Handler) http.Handler {
	if s.authService != nil {
		return s.authService.Middleware
	}
	return HeaderIdentity
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		if s.authEndpoints != nil {
			s.authEndpoints.RegisterRoutes(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.identity())
			s.interviewEndpoints.RegisterRoutes(r)
			s.questionEndpoints.RegisterRoutes(r)
			s.speechEndpoints.RegisterRoutes(r)
		})
	})

	return r
}

// Start serves until SIGINT or SIGTERM
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	s.Close()

	slog.Info("Server exited")
}

// Close stops the background workers started by InitializeServices
func (s *Server) Close() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.hub != nil {
		s.hub.Stop()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Error("Failed to close Redis client", "error", err)
		}
	}
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// no configured origins denies everything
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range strings.Split(allowedOriginsStr, ",") {
		if strings.TrimSpace(allowed) == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := healthResponse{Status: "ok", Database: "not configured", Redis: "not configured"}

	if s.dbPing != nil {
		if err := s.dbPing(r.Context()); err != nil {
			slog.Error("Database health check failed", "error", err)
			health.Database = "down"
			health.Status = "degraded"
		} else {
			health.Database = "up"
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			health.Redis = "down"
			health.Status = "degraded"
		} else {
			health.Redis = "up"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)

	slog.Debug("Health check", "status", health.Status, "database", health.Database)
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "API v1", map[string]string{"version": "1.0.0"})
}
