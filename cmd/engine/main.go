// Package main runs the staking and liquidity-pool accounting engine.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	app "github.com/refit-labs/staking-engine/internal/app"
	"github.com/refit-labs/staking-engine/internal/app/auth"
	"github.com/refit-labs/staking-engine/internal/app/httpapi"
	"github.com/refit-labs/staking-engine/internal/app/metrics"
	"github.com/refit-labs/staking-engine/internal/app/storage/postgres"
	"github.com/refit-labs/staking-engine/internal/config"
	"github.com/refit-labs/staking-engine/internal/middleware"
	"github.com/refit-labs/staking-engine/internal/platform/database"
	"github.com/refit-labs/staking-engine/internal/platform/migrations"
	"github.com/refit-labs/staking-engine/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.NewDefault("engine")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("load configuration")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores := app.Stores{}
	if cfg.Database.DSN != "" {
		db, err := database.Open(ctx, cfg.Database.DSN)
		if err != nil {
			log.WithError(err).Error("open database")
			os.Exit(1)
		}
		defer db.Close()

		if err := migrations.Apply(ctx, db.DB); err != nil {
			log.WithError(err).Error("apply migrations")
			os.Exit(1)
		}

		store := postgres.New(db)
		stores = app.Stores{
			Pool:        store,
			Deposits:    store,
			Stakes:      store,
			Yields:      store,
			Withdrawals: store,
			Treasury:    store,
			Actions:     store,
		}
		log.Info("using postgres store")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory store")
	}

	opts := app.Options{
		MinimumDeposit:    cfg.Staking.MinimumDeposit.Decimal,
		MaximumDeposit:    cfg.Staking.MaximumDeposit.Decimal,
		AccrualSchedule:   cfg.Staking.AccrualSchedule,
		TreasurySourceURL: cfg.Treasury.SourceURL,
		TreasurySourceKey: cfg.Treasury.SourceAPIKey,
		SnapshotInterval:  time.Duration(cfg.Treasury.SnapshotIntervalHours) * time.Hour,
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	var users []auth.User
	if cfg.Auth.AdminUsername != "" && cfg.Auth.AdminPassword != "" {
		users = append(users, auth.User{
			Username: cfg.Auth.AdminUsername,
			Password: cfg.Auth.AdminPassword,
			Role:     "admin",
		})
	}
	authMgr := auth.NewManager(cfg.Auth.JWTSecret, users)

	var auditSink httpapi.AuditSink
	if path := os.Getenv("AUDIT_LOG_PATH"); path != "" {
		sink, err := httpapi.NewFileAuditSink(path)
		if err != nil {
			log.WithError(err).Warn("open audit log file")
		} else {
			auditSink = sink
		}
	}
	auditBuf := httpapi.NewAuditLog(200, auditSink)

	handler := httpapi.NewHandler(application, authMgr, auditBuf)
	handler = httpapi.WrapWithAuth(handler, cfg.Auth.AdminTokens, cfg.Auth.CronSecret, authMgr)
	handler = httpapi.WrapWithAudit(handler, auditBuf)
	handler = httpapi.WrapWithCORS(handler, cfg.Server.AllowedOrigins)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst, log)
	limiterStop := make(chan struct{})
	defer close(limiterStop)
	limiter.StartCleanup(time.Minute, 10*time.Minute, limiterStop)
	handler = limiter.Handler(handler)

	handler = metrics.InstrumentHandler(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("engine listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("server error")
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application stop")
	}

	log.Info("engine stopped")
}
