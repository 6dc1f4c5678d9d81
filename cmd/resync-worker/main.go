package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinichq/clinic-scheduling/internal/clinic"
	"github.com/clinichq/clinic-scheduling/internal/config"
	"github.com/clinichq/clinic-scheduling/internal/db"
	redisclient "github.com/clinichq/clinic-scheduling/internal/redis"
)

// The resync worker is the compensating control for availability
// projections: in-line resyncs after appointment writes are best-effort,
// so this periodically rebuilds every doctor's projection from scratch.
func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config load error")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "resync-worker").Logger()
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.ResyncInterval).Msg("resync-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	repo := clinic.WithStoreTimeout(clinic.NewPgRepository(pgPool), cfg.StoreTimeout)
	locker := redisclient.NewRedisScheduleLocker(rdb, cfg.LockTTL)
	svc := clinic.NewService(repo, locker, cfg, logger)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping resync worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *clinic.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.ResyncAllDoctors(runCtx); err != nil {
		logger.Error().Err(err).Msg("resync run error")
		return
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("resync run complete")
}
