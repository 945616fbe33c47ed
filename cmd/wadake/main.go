package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/wadake/internal/amqp"
	"github.com/dukerupert/wadake/internal/auth"
	"github.com/dukerupert/wadake/internal/config"
	"github.com/dukerupert/wadake/internal/database"
	"github.com/dukerupert/wadake/internal/events"
	"github.com/dukerupert/wadake/internal/logging"
	"github.com/dukerupert/wadake/internal/server"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	var verifier auth.Verifier
	if cfg.SupabaseURL != "" {
		v, err := auth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			log.Fatalf("failed to create supabase verifier: %v", err)
		}
		verifier = v
		logger.Info("supabase token verification enabled")
	}

	var broker events.Publisher
	if cfg.AMQPURL != "" {
		pub, err := amqp.Dial(cfg.AMQPURL, cfg.AMQPExchange, logger.With("component", "amqp"))
		if err != nil {
			log.Fatalf("failed to connect to broker: %v", err)
		}
		defer pub.Close()
		broker = pub
	}

	srv := server.New(db, cfg, loc, verifier, broker, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go cleanupLoop(ctx, srv)

	if cfg.Backup.Enabled() {
		srv.BackupManager().Start(ctx, cfg.Backup.Interval)
		defer srv.BackupManager().Stop()
		logger.Info("scheduled backups enabled",
			"interval", cfg.Backup.Interval,
			"retention", cfg.Backup.Retention,
			"s3", cfg.Backup.S3Enabled(),
		)
	}

	// No WriteTimeout: websocket connections stay open.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("server starting", "addr", fmt.Sprintf("http://localhost:%s", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func cleanupLoop(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.RateLimiter().Cleanup()
		}
	}
}
