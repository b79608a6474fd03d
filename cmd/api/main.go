package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"dose-mate/internal/adapters/auth/identity"
	"dose-mate/internal/adapters/devicebridge"
	pg "dose-mate/internal/adapters/storage/postgres"
	"dose-mate/internal/config"
	"dose-mate/internal/domain/devicesync"
	"dose-mate/internal/domain/reminders"
	"dose-mate/internal/platform/logger"
	"dose-mate/internal/ports/auth"
	"dose-mate/internal/router"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// @title dose-mate API
// @version 1.0
// @description Medicamentos, ventana de recordatorios y sincronización con el dispensador.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, App: cfg.AppName})
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db := openDB(ctx, cfg, log)
	if db != nil {
		defer db.Close()
	}
	rdb := openRedis(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	app := router.Build(router.Options{
		AuthVerifier: newVerifier(cfg, log),
		Logger:       log,
		DB:           db,
		Redis:        rdb,
		Strategy:     devicesync.ParseStrategy(cfg.SyncStrategy),
		Wrap:         reminders.ParseWrapPolicy(cfg.MidnightWrap),
		TickInterval: cfg.TickInterval,
	})
	log.Info("device sync configured",
		zap.String("strategy", string(app.Sync.Strategy())),
		zap.Bool("midnight_wrap", reminders.ParseWrapPolicy(cfg.MidnightWrap) == reminders.WrapMidnight),
	)

	if bridge := startBridge(cfg, app.Sync, log); bridge != nil {
		defer bridge.Close()
	}

	go app.Scheduler.Start(ctx)

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     app.Handler,
		ReadTimeout: 5 * time.Second,
		// sin WriteTimeout: los websockets son de larga duración
		IdleTimeout: 60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serverErr:
		log.Fatal("server error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", zap.Error(err))
	}
}

func openDB(ctx context.Context, cfg *config.Config, log *zap.Logger) *sql.DB {
	if cfg.DatabaseDSN == "" {
		log.Info("DB_DSN not set, using in-memory medications")
		return nil
	}
	db, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	if err := pg.Migrate(ctx, db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}
	return db
}

func openRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, using in-memory device store")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return rdb
}

func newVerifier(cfg *config.Config, log *zap.Logger) auth.AuthVerifier {
	if cfg.AuthBaseURL == "" {
		log.Warn("AUTH_BASE_URL not set, dev mode: X-Debug-User-ID identifies the account")
		return nil
	}
	client, err := identity.NewClient(identity.Config{BaseURL: cfg.AuthBaseURL, APIKey: cfg.AuthAPIKey})
	if err != nil {
		log.Fatal("invalid identity config", zap.Error(err))
	}
	return identity.NewVerifier(client)
}

func startBridge(cfg *config.Config, sync *devicesync.Synchronizer, log *zap.Logger) *devicebridge.Bridge {
	if cfg.MQTTBroker == "" {
		return nil
	}
	l := log.Named("mqtt")

	client, err := devicebridge.Dial(devicebridge.Config{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	}, func(topic string, err error) {
		l.Warn("mqtt message failed", zap.String("topic", topic), zap.Error(err))
	})
	if err != nil {
		// el dispositivo sigue pudiendo hacer polling por HTTP
		l.Error("mqtt bridge disabled", zap.Error(err))
		return nil
	}

	bridge := devicebridge.NewBridge(client, cfg.MQTTTopicPrefix, sync, l)
	if err := bridge.Start(); err != nil {
		l.Error("mqtt status subscription failed", zap.Error(err))
	}
	sync.AddMirror(bridge)
	return bridge
}
