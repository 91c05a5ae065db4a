package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/config"
	"github.com/Mithunp123/Dakshaa-sub002/internal/connect"
	"github.com/Mithunp123/Dakshaa-sub002/internal/container"
	"github.com/Mithunp123/Dakshaa-sub002/internal/helpers"
	"github.com/Mithunp123/Dakshaa-sub002/internal/routes"
	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	_ = godotenv.Load(".env.local")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg)
	logger.Info("Starting payment reconciliation server", "environment", cfg.Environment)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database connections
	supaClient, err := connect.InitSupabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to Supabase", "error", err)
		os.Exit(1)
	}
	gw := storage.NewSupabaseGateway(supaClient, cfg.SupabaseURL, cfg.StorageKey())
	logger.Info("Connected to Supabase successfully")

	mongoClient, err := connect.MongoDBConnect(cfg)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	if mongoClient != nil {
		logger.Info("Connected to MongoDB successfully, callback audit enabled")
	}

	tokens, err := helpers.NewTokenValidator(cfg.SupabaseURL, cfg.SupabaseJWTSecret, logger)
	if err != nil {
		if cfg.RequireAuth {
			logger.Error("Failed to set up token validation", "error", err)
			os.Exit(1)
		}
		logger.Warn("Token validation disabled", "error", err)
		tokens = nil
	}

	sender := connect.EmailSender(cfg, logger)

	// Initialize dependency container
	appContainer, err := container.NewContainer(logger, gw, gw, mongoClient, sender, tokens, container.Options{
		GatewayURL:   cfg.GatewayURL,
		DashboardURL: cfg.DashboardURL,
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
		RequireAuth:  cfg.RequireAuth,
	})
	if err != nil {
		logger.Error("Failed to build container", "error", err)
		os.Exit(1)
	}

	if appContainer.Audit != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := appContainer.Audit.EnsureCallbackIndexes(ctx); err != nil {
			logger.Warn("Failed to create callback audit indexes", "error", err)
		}
		cancel()
	}

	// Setup routes
	router := routes.SetupRoutes(appContainer, cfg.CORSOrigins)

	// WriteTimeout leaves room for the convergence poll on redirects.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + cfg.PollTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	if err := sender.Close(); err != nil {
		logger.Error("Error closing email sender", "error", err)
	}
	if tokens != nil {
		tokens.Close()
	}
	if err := connect.MongoDBDisconnect(mongoClient); err != nil {
		logger.Error("Error disconnecting from MongoDB", "error", err)
	}

	logger.Info("Server exited")
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	if cfg.IsProduction() {
		// JSON logging for production
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(cfg.LogLevel, slog.LevelInfo),
		})
	} else {
		// Human-readable logging for development
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(cfg.LogLevel, slog.LevelDebug),
		})
	}

	return slog.New(handler)
}

func parseLevel(raw string, fallback slog.Level) slog.Level {
	var level slog.Level
	if raw == "" || level.UnmarshalText([]byte(strings.ToUpper(raw))) != nil {
		return fallback
	}
	return level
}
