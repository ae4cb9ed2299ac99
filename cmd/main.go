package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"safeguard/backend/internal/api/handler"
	"safeguard/backend/internal/config"
	"safeguard/backend/internal/incident"
	"safeguard/backend/internal/localization"
	"safeguard/backend/internal/logger"
	"safeguard/backend/internal/patterns"
	"safeguard/backend/internal/safeguarding"
	"safeguard/backend/internal/storage"
	"safeguard/backend/internal/telegram"
)

func setupDependencies(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gorm.DB, *redis.Client, error) {
	db, err := storage.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.Migrate(db); err != nil {
		return nil, nil, err
	}

	// Redis only carries incident fan-out, so the service runs without it.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, incidents will only be logged", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = rdb.Close()
		rdb = nil
	}

	log.Info("database connections established, migrations complete")
	return db, rdb, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using the environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(logger.Config{
		Environment: cfg.Env,
		LogLevel:    cfg.LogLevel,
		ServiceName: "safeguard",
		Component:   "server",
	})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, rdb, err := setupDependencies(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to set up storage", zap.Error(err))
	}
	store := storage.NewStorageService(db, rdb)

	catalogue, err := patterns.LoadFile(cfg.CatalogueFile)
	if err != nil {
		zl.Fatal("failed to load the risk catalogue", zap.Error(err))
	}
	zl.Info("risk catalogue loaded", zap.String("version", catalogue.Version), zap.Int("patterns", len(catalogue.Patterns)))

	localizer, err := localization.NewDefault()
	if err != nil {
		zl.Fatal("failed to load messages", zap.Error(err))
	}

	var reporter incident.Reporter = incident.NewLogReporter(zl.Named("incident"))
	if rdb != nil {
		reporter = incident.NewRedisReporter(rdb, zl.Named("incident"))
	}

	deps := safeguarding.Dependencies{
		Catalogue: catalogue,
		Store:     store,
		Incidents: reporter,
		Localizer: localizer,
		Logger:    zl.Named("safeguarding"),
	}

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.NewBotService(cfg.TelegramBotToken, localizer, zl.Named("telegram"))
		if err != nil {
			zl.Error("telegram disabled, notifications will only be stored", zap.Error(err))
		} else {
			deps.Deliverer = telegram.NewDeliverer(bot.BotAPI, localizer, zl.Named("telegram"))
			go bot.Run(ctx)
		}
	} else {
		zl.Warn("TELEGRAM_BOT_TOKEN not set, notifications will only be stored")
	}

	svc, err := safeguarding.NewService(deps, safeguarding.OptionsFromConfig(cfg))
	if err != nil {
		zl.Fatal("failed to build the safeguarding service", zap.Error(err))
	}

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWTSecret == "" {
		zl.Warn("JWT_SECRET not set, staff routes will reject every request")
	}
	r := gin.New()
	r.Use(gin.Recovery())
	handler.NewHandler(svc, store, cfg.JWTSecret, zl.Named("http")).Register(r)

	server := &http.Server{
		Addr:           cfg.ServerAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zl.Info("http server listening", zap.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("http server shutdown", zap.Error(err))
	}

	// Alerts from verdicts already returned are still being recorded and routed.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), time.Minute)
	defer cancelDrain()
	if err := svc.Wait(drainCtx); err != nil {
		zl.Error("gave up waiting for pending alert routing", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
