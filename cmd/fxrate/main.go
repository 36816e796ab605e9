package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/salesdw/etl/internal/infrastructure/config"
	"github.com/salesdw/etl/internal/infrastructure/fxrate"
	"github.com/salesdw/etl/internal/infrastructure/logger"
	"github.com/salesdw/etl/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	var backfill bool
	flag.BoolVar(&backfill, "backfill", false, "load historical rates instead of just today's")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to warehouse", zap.Error(err))
	}
	defer db.Close()

	client := fxrate.NewClient(fxrate.ClientConfig{
		Endpoint:       cfg.FxRate.Endpoint,
		Indicator:      cfg.FxRate.Indicator,
		User:           cfg.FxRate.User,
		Token:          cfg.FxRate.Token,
		RequestTimeout: cfg.FxRate.RequestTimeout,
	}, log)

	job := fxrate.NewJob(client, persistence.NewGormTimeRepository(db.DB), fxrate.JobConfig{
		BackfillYears: cfg.FxRate.BackfillYears,
		ChunkDays:     cfg.FxRate.ChunkDays,
		ChunkDelay:    cfg.FxRate.ChunkDelay,
	}, log)

	ctx := context.Background()
	var stored int
	if backfill {
		stored, err = job.Backfill(ctx)
	} else {
		stored, err = job.Daily(ctx)
	}
	if err != nil {
		log.Fatal("Rate load failed", zap.Int("stored", stored), zap.Error(err))
	}
	log.Info("Rate load finished", zap.Int("stored", stored), zap.Bool("backfill", backfill))
}
