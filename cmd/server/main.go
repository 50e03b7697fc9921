// Assist Portal server: session-gated portal pages and a chat relay to the
// hosted assistant service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/assist-portal/internal/api"
	"github.com/ashureev/assist-portal/internal/assistant"
	"github.com/ashureev/assist-portal/internal/config"
	"github.com/ashureev/assist-portal/internal/directory"
	"github.com/ashureev/assist-portal/internal/gate"
	"github.com/ashureev/assist-portal/internal/identity"
	"github.com/ashureev/assist-portal/internal/middleware"
	"github.com/ashureev/assist-portal/internal/store"
	"github.com/ashureev/assist-portal/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	repo, err := store.NewSQLite(cfg.SessionDBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.SessionDBPath)

	views, err := web.LoadViews()
	if err != nil {
		slog.Error("Failed to load views", "error", err)
		os.Exit(1)
	}

	dir := directory.New(cfg.DataDir)
	sessionOpts := identity.Options{TTL: cfg.SessionTTL, Secure: !cfg.IsDevelopment()}

	// Assistant relay.
	if !cfg.AssistantConfigured() {
		slog.Warn("ASSISTANT_ID not set, chat replies will ask for configuration")
	}
	client := assistant.NewHTTPClient(assistant.ClientConfig{
		URL:     cfg.Assistant.URL,
		APIKey:  cfg.Assistant.APIKey,
		Version: cfg.Assistant.Version,
		Timeout: cfg.Assistant.Timeout,
	}, logger)
	relay := assistant.NewRelay(client, cfg.Assistant.ID, logger)

	conversationLogger, err := assistant.NewConversationLogger(assistant.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	chatHandler := assistant.NewHandler(relay, assistant.HandlerOptions{
		Limiter:         assistant.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
		ConversationLog: conversationLogger,
		OriginPatterns:  cfg.OriginHosts(),
		Logger:          logger,
	})
	defer chatHandler.Close()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, gate.New(dir), dir, views, chatHandler.Connections(), sessionOpts)
	portalHandler := api.NewPortalHandler(baseHandler)
	healthHandler := api.NewHealthHandler(repo, cfg.AssistantConfigured())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Static assets need no session.
	r.Handle("/static/*", web.StaticHandler())
	healthHandler.RegisterHealth(r)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, sessionOpts))
		portalHandler.RegisterRoutes(r)
		chatHandler.RegisterRoutes(r)
	})

	// Chat sockets are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartSessionSweeper(ctx, repo, cfg.SessionTTL, cfg.SessionSweepInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked chat sockets are not tracked by Shutdown.
	chatHandler.Connections().CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
