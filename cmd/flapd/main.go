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

	"github.com/SherClockHolmes/webpush-go"

	"sureflap-monitor/config"
	"sureflap-monitor/internal/api"
	"sureflap-monitor/internal/db"
	"sureflap-monitor/internal/logger"
	"sureflap-monitor/internal/monitor"
	"sureflap-monitor/internal/store"
	"sureflap-monitor/internal/surehub"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", configPath, "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	slog.Info("configuration loaded successfully", "path", configPath)

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		slog.Warn("VAPID keys are not configured, push notifications are disabled")
	} else {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	transport := surehub.NewHTTPTransport(surehub.TransportOptions{
		Timeout:   cfg.Surehub.Timeout,
		RateLimit: cfg.Surehub.RateLimitPerSec,
		Burst:     cfg.Surehub.RateLimitBurst,
		HTTPProxy: cfg.Surehub.HTTPProxy,
		AllProxy:  cfg.Surehub.AllProxy,
	})
	session := surehub.NewSession(surehub.Credentials{
		Email:    cfg.Surehub.Email,
		Password: cfg.Surehub.Password,
		DeviceID: cfg.Surehub.DeviceID,
		Endpoint: cfg.Surehub.Endpoint,
	}, surehub.WithTransport(transport), surehub.WithLogger(slog.Default().With("component", "surehub")))
	client := surehub.NewClient(session)

	// Follow the timeline in the background
	monitorSvc := monitor.NewService(cfg, appStore, client)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		monitorSvc.Run(ctx)
	}()

	router := api.NewRouter(appStore, client, webpushOptions, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server ListenAndServe", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	slog.Info("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server Shutdown", "error", err)
	}
	select {
	case <-monitorDone:
	case <-shutdownCtx.Done():
		slog.Warn("monitor did not stop in time")
	}
	if err := client.Logout(shutdownCtx); err != nil {
		slog.Warn("logout failed", "error", err)
	}

	slog.Info("Server gracefully stopped")
}
