package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicware/outpatient-flow/internal/clinic"
	"github.com/clinicware/outpatient-flow/internal/config"
	"github.com/clinicware/outpatient-flow/internal/db"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "noshow-worker").Logger()
	logger.Info().Msg("noshow-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("running no-show sweep")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.LockTimeout)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	repo := clinic.NewPgRepository(pgPool)
	svc := clinic.NewService(repo, nil)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping no-show worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *clinic.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	// Everything booked on a schedule dated before today missed its visit.
	today := time.Now().Truncate(24 * time.Hour)
	swept, err := svc.SweepNoShows(runCtx, today)
	if err != nil {
		logger.Error().Err(err).Msg("no-show sweep error")
		return
	}
	logger.Info().Int("swept", swept).Dur("took", time.Since(start)).Msg("no-show sweep complete")
}
