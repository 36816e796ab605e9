package rules

import (
	"context"
	"fmt"

	"github.com/salesdw/etl/internal/domain/rules"
	"go.uber.org/zap"
)

// Service runs the full rule lifecycle: load baskets, mine, reconcile
type Service struct {
	baskets    rules.BasketSource
	miner      *Miner
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewService creates a Service
func NewService(baskets rules.BasketSource, miner *Miner, reconciler *Reconciler, logger *zap.Logger) *Service {
	return &Service{
		baskets:    baskets,
		miner:      miner,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Run mines rules from the current baskets and reconciles them against the
// store
func (s *Service) Run(ctx context.Context) (ReconcileStats, error) {
	baskets, err := s.baskets.Baskets(ctx)
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("basket load failed: %w", err)
	}
	if len(baskets) == 0 {
		s.logger.Info("no baskets to mine, rule store untouched")
		return ReconcileStats{}, nil
	}

	mined := s.miner.Mine(baskets)
	return s.reconciler.Reconcile(ctx, mined)
}
