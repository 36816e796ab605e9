package etl

import (
	"context"
	"fmt"

	"github.com/salesdw/etl/internal/domain/warehouse"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of fact rows committed per transaction
const DefaultBatchSize = 50

// LoadStats summarizes one fact-loading pass
type LoadStats struct {
	Inserted int
	Skipped  int
	Failed   int
}

// FactLoader performs idempotent, batched insertion of fact rows. Each row's
// natural key is checked against the warehouse before insertion so that
// overlapping or re-run extraction windows never duplicate facts. The check
// does not consult the watermark. Failed rows are logged and skipped, never
// retried, and do not abort their batch.
type FactLoader struct {
	facts     warehouse.FactRepository
	batchSize int
	logger    *zap.Logger
}

// NewFactLoader creates a FactLoader. batchSize <= 0 uses DefaultBatchSize.
func NewFactLoader(facts warehouse.FactRepository, batchSize int, logger *zap.Logger) *FactLoader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &FactLoader{
		facts:     facts,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Load inserts the given facts, deduplicating on the natural key and
// committing in fixed-size batches plus a final commit
func (l *FactLoader) Load(ctx context.Context, facts []*warehouse.SalesFact) (LoadStats, error) {
	var stats LoadStats
	batch := make([]*warehouse.SalesFact, 0, l.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, rowErrs, err := l.facts.SaveBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("fact batch commit failed: %w", err)
		}
		stats.Inserted += inserted
		stats.Failed += len(rowErrs)
		for _, rowErr := range rowErrs {
			l.logger.Error("fact row failed, skipping", zap.Error(rowErr))
		}
		batch = batch[:0]
		return nil
	}

	for _, fact := range facts {
		exists, err := l.facts.Exists(ctx, fact.Key())
		if err != nil {
			return stats, fmt.Errorf("fact existence check failed: %w", err)
		}
		if exists {
			stats.Skipped++
			continue
		}

		batch = append(batch, fact)
		if len(batch) >= l.batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
			l.logger.Info("fact batch committed", zap.Int("inserted", stats.Inserted))
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	l.logger.Info("fact load finished",
		zap.Int("inserted", stats.Inserted),
		zap.Int("skipped_duplicates", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}
