package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	webAdapter "autoshop-crm/internal/adapters/web"
	"autoshop-crm/internal/ai"
	"autoshop-crm/internal/app"
	"autoshop-crm/internal/config"
	"autoshop-crm/internal/core"
	"autoshop-crm/internal/db"
	"autoshop-crm/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database error", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, logger); err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}

	salesService := core.NewSalesRecordService(
		core.NewPostgresSalesRecordStore(pool),
		logger.Named("sales"),
		core.WithRecordNumberAttempts(cfg.RecordNumberRetries),
	)

	drafter := ai.NewFollowUpDrafter(cfg.OpenAIAPIKey)
	if !drafter.Enabled() {
		msg := "OPENAI_API_KEY is not set, follow-up drafting disabled"
		if cfg.Production() {
			logger.Warn(msg)
		} else {
			logger.Info(msg)
		}
	}

	svc := app.NewAppService(
		salesService,
		core.NewCustomerService(pool),
		core.NewMembershipService(pool),
		core.NewUserService(pool),
		drafter,
		logger.Named("app"),
	)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           webAdapter.NewHandler(svc, cfg.AllowedOrigins, cfg.JWTSecret, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("force close failed", zap.Error(closeErr))
		}
	}
	logger.Info("server stopped")
}
