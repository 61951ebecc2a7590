// Command portalauth-server serves the portal login, logout and role landing
// pages backed by Redis and PostgreSQL.
//
// Configuration is read from PORTALAUTH_* environment variables. With
// PORTALAUTH_DEMO=true and no database URL it serves the seeded in-memory
// store, where every demo account uses the password "portal-demo".
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

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/httpapi"
	promexport "github.com/MrEthical07/portalauth/metrics/export/prometheus"
	"github.com/MrEthical07/portalauth/profile"
	"github.com/MrEthical07/portalauth/store/memory"
	"github.com/MrEthical07/portalauth/store/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type stores struct {
	credentials portalauth.CredentialStore
	profiles    profile.Store
	close       func()
}

func main() {
	cfg := Load()

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("portalauth-server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	engine, err := portalauth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithCredentialStore(st.credentials).
		WithProfileStore(st.profiles).
		WithAuditSink(portalauth.SlogSink{Logger: logger.With("component", "audit")}).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	server := httpapi.NewServer(engine, httpapi.Options{
		Cookie:  engineCfg.Cookie,
		Logger:  logger,
		Metrics: promexport.NewExporter(engine).Handler(),

		TrustProxyHeaders: cfg.TrustProxy,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("portalauth-server listening", "addr", cfg.HTTPAddr, "demo", cfg.DatabaseURL == "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
	return nil
}

func openStores(ctx context.Context, cfg Config, logger *slog.Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("serving the in-memory demo store")
		demo := memory.Demo()
		return stores{credentials: demo, profiles: demo, close: func() {}}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	store, err := postgres.New(pool, postgres.WithLogger(logger))
	if err != nil {
		pool.Close()
		return stores{}, err
	}
	if err := store.Ping(ctx); err != nil {
		pool.Close()
		return stores{}, err
	}
	if cfg.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return stores{}, err
		}
	}
	return stores{credentials: store, profiles: store, close: pool.Close}, nil
}
