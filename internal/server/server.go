// Package server is the composition root: it opens the database, builds the
// services, wires the routes and runs the HTTP server, the scheduler and the
// config watcher until shutdown.
//
//	config.Live ─┬─ SyncService ── scheduler.Runner ─┬─ Scheduler (cron)
//	             │                                    └─ POST /api/sync
//	             ├─ ModerationService ── events.Dispatcher ── log / NATS / websocket hub
//	             ├─ HandshakeService ── /oauth/*
//	             └─ AdminAuthService ── /auth/*
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/sakif/tweetsync/internal/auth"
	"github.com/sakif/tweetsync/internal/config"
	"github.com/sakif/tweetsync/internal/events"
	"github.com/sakif/tweetsync/internal/handler"
	"github.com/sakif/tweetsync/internal/middleware"
	sqliteRepo "github.com/sakif/tweetsync/internal/repository/sqlite"
	"github.com/sakif/tweetsync/internal/scheduler"
	"github.com/sakif/tweetsync/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns every long-lived resource. Start releases them on return.
type Server struct {
	router     *chi.Mux
	live       *config.Live
	configPath string
	logger     *slog.Logger

	db        *sqliteRepo.DB
	nats      *nats.Conn
	hub       *events.Hub
	runner    *scheduler.Runner
	scheduler *scheduler.Scheduler
}

// New builds the server from the current config. configPath is where OAuth
// access tokens are saved and which file is watched for changes; it may be
// empty.
func New(live *config.Live, configPath string, logger *slog.Logger) (*Server, error) {
	cfg := live.Get()

	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:     chi.NewRouter(),
		live:       live,
		configPath: configPath,
		logger:     logger,
		db:         db,
		hub:        events.NewHub(logger),
	}

	if err := s.setupRoutes(cfg); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Runner is the single-flight sync runner shared by cron and the API.
func (s *Server) Runner() *scheduler.Runner { return s.runner }

func (s *Server) setupRoutes(cfg config.Config) error {
	sink, err := s.eventSink(cfg)
	if err != nil {
		return err
	}

	secret := cfg.Admin.JWTSecret
	if secret == "" {
		secret = randomSecret()
		s.logger.Warn("admin.jwtSecret is not set; sessions will not survive a restart")
	}
	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	limiter := NewLimiter(cfg.Twitter)
	syncService := service.NewSyncService(s.db, s.live, service.NewClientFactory(limiter, s.logger), s.logger)
	s.runner = scheduler.NewRunner(syncService, s.live, s.logger)
	s.scheduler = scheduler.New(s.runner, s.logger)
	if err := s.scheduler.SetSchedule(cfg.Sync.Schedule); err != nil {
		return err
	}
	s.scheduler.Follow(s.live)

	moderation := service.NewModerationService(s.db, sink, s.logger)
	handshake := service.NewHandshakeService(s.live, s.configPath, service.NewExchangerFactory(limiter, s.logger), s.logger)
	admin := service.NewAdminAuthService(s.live, tokens, auth.NewPasswordService(), s.logger)

	tweetHandler := handler.NewTweetHandler(moderation, s.logger)
	syncHandler := handler.NewSyncHandler(s.runner, s.logger)
	oauthHandler := handler.NewOAuthHandler(handshake, cfg.Server.BaseURL, cfg.Server.SecureCookie, s.logger)
	authHandler := handler.NewAuthHandler(admin, tokens.TTL(), cfg.Server.SecureCookie, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	// RequestID before Logger so every log line carries the id.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.With(auth.RequireAdmin(tokens)).Get("/me", authHandler.HandleMe)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.With(auth.OptionalAdmin(tokens)).Get("/tweets", tweetHandler.HandleList)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(tokens))
			r.Get("/tweets/{id}", tweetHandler.HandleGet)
			r.Put("/tweets/{id}/approval", tweetHandler.HandleSetApproval)
			r.Post("/sync", syncHandler.HandleSync)
			r.Get("/events", s.hub.ServeHTTP)
		})
	})

	s.router.Route("/oauth", func(r chi.Router) {
		r.Use(auth.RequireAdmin(tokens))
		r.Get("/connect", oauthHandler.HandleConnect)
		r.Get("/callback", oauthHandler.HandleCallback)
	})

	return nil
}

// eventSink assembles the moderation event fan-out from config.
func (s *Server) eventSink(cfg config.Config) (events.Sink, error) {
	d := events.NewDispatcher(s.hub)
	if cfg.Events.Log {
		d.Add(events.NewLogSink(s.logger))
	}
	if cfg.Events.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.Events.NATSURL, s.logger)
		if err != nil {
			return nil, err
		}
		s.nats = nc
		d.Add(events.NewNATSSink(nc, cfg.Events.Subject))
	}
	return d, nil
}

// NewLimiter builds the shared Twitter API rate limiter. A non-positive rate
// disables limiting.
func NewLimiter(cfg config.Twitter) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := max(cfg.Burst, 1)
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// Start serves until ctx is cancelled, then shuts down gracefully: stop
// accepting requests, let in-flight requests and a running sync pass finish,
// disconnect subscribers, close the database.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()
	cfg := s.live.Get()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// POST /api/sync holds the response until the pass ends.
		WriteTimeout: max(cfg.Sync.Timeout, scheduler.DefaultTimeout) + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.configPath != "" {
		go func() {
			if err := config.Watch(ctx, s.configPath, s.live, s.logger); err != nil {
				s.logger.Error("config watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	s.scheduler.Start()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", cfg.Server.Addr),
			slog.String("base_url", cfg.Server.BaseURL),
			slog.String("database", cfg.Database.Path),
			slog.String("schedule", s.scheduler.Schedule()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		<-s.scheduler.Stop().Done()
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	select {
	case <-s.scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		s.logger.Warn("sync pass still running at shutdown")
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// Close releases the database, the NATS connection and websocket clients.
// Start calls it on return; call it directly only when Start never ran.
func (s *Server) Close() {
	s.hub.Close()
	if s.nats != nil {
		if err := s.nats.Drain(); err != nil {
			s.logger.Warn("draining nats", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
