package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluentvoice/fluentvoice/internal/dotenv"
	"github.com/fluentvoice/fluentvoice/pkg/auth"
	"github.com/fluentvoice/fluentvoice/pkg/checkout"
	"github.com/fluentvoice/fluentvoice/pkg/gateway/config"
	"github.com/fluentvoice/fluentvoice/pkg/gateway/handlers"
	"github.com/fluentvoice/fluentvoice/pkg/gateway/server"
	"github.com/fluentvoice/fluentvoice/pkg/store"
)

func main() {
	if err := dotenv.Load(); err != nil {
		slog.Error("failed to load env files", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx := context.Background()

	var st store.Store
	var pinger handlers.Pinger
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, store.PostgresConfig{DSN: cfg.DatabaseURL})
		if err != nil {
			logger.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		st = pg
		pinger = pg
	} else {
		logger.Warn("FLUENT_DATABASE_URL not set, using in-memory store")
		st = store.NewMemory()
	}
	defer st.Close()

	var authSvc handlers.AuthService
	if cfg.AuthMode == config.AuthModeRequired {
		svc, err := auth.NewService(cfg.WorkOSAPIKey, cfg.WorkOSClientID, cfg.AuthRedirectURI)
		if err != nil {
			logger.Error("failed to init auth", "error", err)
			os.Exit(1)
		}
		authSvc = svc
	}

	var checkoutSvc handlers.CheckoutService
	if cfg.CheckoutEnabled() {
		svc, err := checkout.NewService(checkout.Config{
			SecretKey:     cfg.StripeSecretKey,
			PriceID:       cfg.StripePriceID,
			SuccessURL:    cfg.CheckoutSuccessURL,
			CancelURL:     cfg.CheckoutCancelURL,
			CreditSeconds: cfg.TopUpCreditSeconds,
		})
		if err != nil {
			logger.Error("failed to init checkout", "error", err)
			os.Exit(1)
		}
		checkoutSvc = svc
	}

	srv := server.New(server.Options{
		Config:      cfg,
		Logger:      logger,
		Store:       st,
		Auth:        authSvc,
		Checkout:    checkoutSvc,
		StorePinger: pinger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}

	go func() {
		logger.Info("gateway listening", "addr", cfg.Addr, "auth_mode", string(cfg.AuthMode))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	srv.SetDraining()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("FLUENT_LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if os.Getenv("FLUENT_LOG_FORMAT") == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
