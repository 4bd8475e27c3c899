// logind - grid login and session admission service
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/halcyongrid/logind/internal/api"
	"github.com/halcyongrid/logind/internal/auth"
	"github.com/halcyongrid/logind/internal/config"
	"github.com/halcyongrid/logind/internal/destination"
	"github.com/halcyongrid/logind/internal/domain"
	"github.com/halcyongrid/logind/internal/events"
	"github.com/halcyongrid/logind/internal/federation"
	"github.com/halcyongrid/logind/internal/launch"
	"github.com/halcyongrid/logind/internal/login"
	"github.com/halcyongrid/logind/internal/middleware"
	"github.com/halcyongrid/logind/internal/services"
	"github.com/halcyongrid/logind/internal/simulation"
	"github.com/halcyongrid/logind/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting login service",
		"port", cfg.Port, "grid", cfg.GridName,
		"hypergrid", cfg.HypergridEnabled, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if err := seedDefaultRegion(context.Background(), repo, cfg); err != nil {
		slog.Error("Failed to seed default region", "error", err)
		os.Exit(1)
	}

	var gate services.AuthenticationGate
	if cfg.SkipLocalAuth {
		slog.Warn("Local authentication disabled, accepting upstream-authenticated logins")
		gate = auth.PassthroughGate{}
	} else {
		gate = auth.NewPasswordGate(repo)
	}

	gateway := federation.NewClient(cfg.GatekeeperTimeout)
	simulator := simulation.NewClient(cfg.SimulatorTimeout)

	resolver := destination.NewResolver(repo,
		destination.NewHypergridResolver(gateway, cfg.HypergridEnabled))
	launcher := launch.NewLauncher(repo, simulator, gateway, cfg.HypergridEnabled)
	hub := events.NewHub()

	svc := login.NewService(login.Deps{
		Accounts:  repo,
		Gate:      gate,
		Presence:  repo,
		Inventory: repo,
		Friends:   repo,
		Avatars:   repo,
		Resolver:  resolver,
		Launcher:  launcher,
		Hub:       hub,
	}, login.Options{
		AllowAnonymous:   cfg.AllowAnonymous,
		RequireTOS:       cfg.RequireTOS,
		RequireInventory: cfg.RequireInventory,
		SkipLocalAuth:    cfg.SkipLocalAuth,
		MinLoginLevel:    cfg.MinLoginLevel,
		TokenLifetime:    cfg.TokenLifetime,
		WelcomeMessage:   cfg.WelcomeMessage,
	})

	// Initialize handlers.
	loginHandler := api.NewLoginHandler(svc)
	healthHandler := api.NewHealthHandler(repo)
	feedHandler := events.NewFeedHandler(hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	healthHandler.RegisterHealth(r)
	loginHandler.RegisterRoutes(r)

	// WebSocket activity feed for grid operators.
	r.Get("/ws/activity", feedHandler.ServeHTTP)

	// Note: the activity feed holds connections open, so writes must
	// not be bounded by a server-wide timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// seedDefaultRegion registers the configured landing region so a fresh
// standalone deployment has a login destination before any registry
// tooling runs.
func seedDefaultRegion(ctx context.Context, repo *store.SQLiteStore, cfg *config.Config) error {
	if !cfg.DefaultRegion.Configured() {
		return nil
	}
	seed := cfg.DefaultRegion
	region := &domain.RegionDescriptor{
		ID:       "00000000-0000-0000-0000-0000000000d1",
		Name:     seed.Name,
		CoordX:   seed.X,
		CoordY:   seed.Y,
		HostName: seed.Host,
		Port:     seed.Port,
		Safe:     true,
	}
	if err := repo.UpsertRegion(ctx, region, true, true, true); err != nil {
		return err
	}
	slog.Info("Default region registered", "name", seed.Name, "host", seed.Host, "port", seed.Port)
	return nil
}
