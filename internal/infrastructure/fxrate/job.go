package fxrate

import (
	"context"
	"fmt"
	"time"

	"github.com/salesdw/etl/internal/domain/warehouse"
	"go.uber.org/zap"
)

// JobConfig bounds the backfill walk
type JobConfig struct {
	BackfillYears int
	ChunkDays     int
	ChunkDelay    time.Duration
}

// Job loads exchange rates into the time dimension. Backfill walks history in
// bounded chunks with a delay between requests so the feed is not hammered;
// Daily fetches just the current day.
type Job struct {
	client *Client
	times  warehouse.TimeRepository
	cfg    JobConfig
	logger *zap.Logger
}

// NewJob creates a Job
func NewJob(client *Client, times warehouse.TimeRepository, cfg JobConfig, logger *zap.Logger) *Job {
	if cfg.BackfillYears <= 0 {
		cfg.BackfillYears = 3
	}
	if cfg.ChunkDays <= 0 {
		cfg.ChunkDays = 180
	}
	return &Job{
		client: client,
		times:  times,
		cfg:    cfg,
		logger: logger,
	}
}

// Backfill loads rates from BackfillYears ago through today, chunk by chunk.
// Returns the number of day rates stored.
func (j *Job) Backfill(ctx context.Context) (int, error) {
	to := time.Now().UTC()
	from := to.AddDate(-j.cfg.BackfillYears, 0, 0)

	stored := 0
	for chunkStart := from; chunkStart.Before(to); {
		chunkEnd := chunkStart.AddDate(0, 0, j.cfg.ChunkDays-1)
		if chunkEnd.After(to) {
			chunkEnd = to
		}

		n, err := j.loadRange(ctx, chunkStart, chunkEnd)
		if err != nil {
			return stored, fmt.Errorf("backfill chunk %s..%s failed: %w",
				chunkStart.Format("2006-01-02"), chunkEnd.Format("2006-01-02"), err)
		}
		stored += n
		j.logger.Info("rate chunk loaded",
			zap.Time("from", chunkStart),
			zap.Time("to", chunkEnd),
			zap.Int("rates", n),
		)

		chunkStart = chunkEnd.AddDate(0, 0, 1)
		if chunkStart.Before(to) && j.cfg.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return stored, ctx.Err()
			case <-time.After(j.cfg.ChunkDelay):
			}
		}
	}
	return stored, nil
}

// Daily loads today's published rate, if any
func (j *Job) Daily(ctx context.Context) (int, error) {
	today := time.Now().UTC()
	return j.loadRange(ctx, today, today)
}

func (j *Job) loadRange(ctx context.Context, from, to time.Time) (int, error) {
	rates, err := j.client.RatesBetween(ctx, from, to)
	if err != nil {
		return 0, err
	}
	for i, rate := range rates {
		if err := j.times.UpsertRate(ctx, rate.Date, rate.Value); err != nil {
			return i, fmt.Errorf("rate upsert for %s failed: %w", rate.Date.Format("2006-01-02"), err)
		}
	}
	return len(rates), nil
}
