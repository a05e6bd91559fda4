// Package main is the entry point for the CareerVision entitlement API
// server.
//
// It loads configuration, connects Postgres and Redis, builds the unlock
// store and the entitlement oracle (remote or local mode, chosen once at
// startup), wires the HTTP handlers onto the core chassis, and serves until
// a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"careervision/internal/api/handlers"
	"careervision/internal/auth"
	"careervision/internal/billing"
	"careervision/internal/config"
	"careervision/internal/core"
	"careervision/internal/db"
	"careervision/internal/entitlement"
	"careervision/internal/external"
	"careervision/internal/gate"
	"careervision/internal/types"
	"careervision/internal/unlock"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("careervision API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database and Redis.
	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	redisClient := db.NewRedisClient(cfg.Redis)

	// Repositories.
	subRepo := db.NewSubscriptionRepository(pool, logger)
	sessionRepo := db.NewSessionRepository(pool)
	userRepo := db.NewUserRepository(pool)

	// Server chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = auth.NewSessionAuthenticator(sessionRepo, types.RealClock{}, logger)
	srv.RateLimitStore = db.NewRedisRateLimitStore(redisClient, types.RealClock{})
	srv.HealthProbes = []core.HealthProbe{
		db.NewHealthProbe(pool),
		db.NewRedisHealthProbe(redisClient),
	}
	srv.Closers = append(srv.Closers,
		func() error { pool.Close(); return nil },
		redisClient.Close,
	)

	notifier := &logNotifier{logger: logger}

	// Unlock store. The store owns the only timer in the system.
	unlockStore, err := unlock.NewStore(
		cfg.Unlock.StateFile,
		cfg.Unlock.Code.Unmask(),
		cfg.Unlock.Duration,
		types.RealClock{},
		logger,
	)
	if err != nil {
		return fmt.Errorf("initializing unlock store: %w", err)
	}
	srv.Closers = append(srv.Closers, unlockStore.Close)

	// Entitlement oracle: mode is chosen once here and never per call.
	var oracle entitlement.Oracle
	switch cfg.Entitlement.Mode {
	case "local":
		localOracle := entitlement.NewLocalOracle(cfg.Entitlement.LocalStateFile, types.RealClock{}, logger)
		// Local mode has no payment provider; the checkout success redirect
		// lands here so the oracle can record the purchased plan before the
		// browser returns to the dashboard.
		srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
			r.Get("/subscription/success", func(w http.ResponseWriter, req *http.Request) {
				localOracle.ObserveSuccessPath(req.URL.RequestURI())
				http.Redirect(w, req, cfg.Server.DashboardURL, http.StatusFound)
			})
		})
		oracle = localOracle
	default:
		statusClient := external.NewStatusClient(
			&http.Client{Timeout: 10 * time.Second},
			cfg.Entitlement.StatusURL,
			cfg.Entitlement.StatusKey.Unmask(),
		)
		oracle = entitlement.NewRemoteOracle(statusClient, notifier, logger)
	}

	// Stripe client and billing services.
	stripeClient := external.NewStripeClient(&http.Client{Timeout: 30 * time.Second}, external.StripeClientConfig{
		SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
		BaseURL:   cfg.Billing.BaseURL,
		Logger:    logger,
	})
	catalog := billing.NewCatalog(cfg.Billing)
	billingService := billing.NewService(
		stripeClient,
		stripeClient,
		subRepo,
		userRepo,
		catalog,
		notifier,
		logger,
		cfg.Server.DashboardURL,
	)
	webhookProcessor := billing.NewWebhookProcessor(subRepo, stripeClient, catalog, logger)

	accessGate := gate.NewGate(unlockStore, oracle, cfg.Server.DashboardURL+cfg.Server.LoginPath)

	// Handlers.
	statusHandler := handlers.NewStatusHandler(subRepo, srv.Validator, types.RealClock{}, logger)
	checkoutHandler := handlers.NewCheckoutHandler(billingService, srv.Validator, logger)
	unlockHandler := handlers.NewUnlockHandler(unlockStore, srv.Validator, logger)
	dashboardHandler := handlers.NewDashboardHandler(accessGate, unlockStore, oracle, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(
		&external.StripeVerifier{},
		webhookProcessor,
		cfg.Billing.StripeWebhookSecret.Unmask(),
		logger,
	)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		statusHandler.RegisterRoutes,
		checkoutHandler.RegisterRoutes,
		unlockHandler.RegisterRoutes,
		dashboardHandler.RegisterRoutes,
		webhookHandler.RegisterRoutes,
	)
	srv.MountRoutes()

	return serve(ctx, srv, cfg, logger)
}

// serve runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func serve(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log
// level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}

// logNotifier surfaces user-facing notices through the structured log. The
// dashboard shell tails these to render toasts; the service itself has no
// user interface.
type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Notify(title, message string) {
	n.logger.Warn("user notice", "title", title, "message", message)
}
