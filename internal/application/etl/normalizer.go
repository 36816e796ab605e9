package etl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/salesdw/etl/internal/domain/etl"
	"github.com/salesdw/etl/internal/domain/shared"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CurrencyNormalizer converts pre-fact monetary fields to the reporting
// currency. Rates are local-currency-units per one reporting-currency unit,
// looked up by exact order date; a missing rate falls back to a configured
// default with a warning and never fails the row.
type CurrencyNormalizer struct {
	reporting   string
	defaultRate decimal.Decimal
	times       warehouse.TimeRepository
	logger      *zap.Logger
}

// NewCurrencyNormalizer creates a CurrencyNormalizer
func NewCurrencyNormalizer(
	reportingCurrency string,
	defaultRate decimal.Decimal,
	times warehouse.TimeRepository,
	logger *zap.Logger,
) *CurrencyNormalizer {
	return &CurrencyNormalizer{
		reporting:   strings.ToUpper(reportingCurrency),
		defaultRate: defaultRate,
		times:       times,
		logger:      logger,
	}
}

// Normalize converts one pre-fact to the reporting currency, rounding all
// monetary outputs to 2 decimals half-up
func (n *CurrencyNormalizer) Normalize(ctx context.Context, pre etl.PreFact) (etl.NormalizedFact, error) {
	rate, err := n.rateFor(ctx, pre)
	if err != nil {
		return etl.NormalizedFact{}, err
	}

	return etl.NormalizedFact{
		PreFact:      pre,
		UnitPriceUSD: pre.UnitPriceNative.Div(rate).Round(2),
		TotalUSD:     pre.TotalNative.Div(rate).Round(2),
	}, nil
}

func (n *CurrencyNormalizer) rateFor(ctx context.Context, pre etl.PreFact) (decimal.Decimal, error) {
	if strings.ToUpper(pre.Currency) == n.reporting || pre.Currency == "" {
		return decimal.NewFromInt(1), nil
	}

	dim, err := n.times.FindByDate(ctx, pre.Day)
	switch {
	case err == nil && dim.FxRate != nil && dim.FxRate.IsPositive():
		return *dim.FxRate, nil
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return decimal.Zero, fmt.Errorf("fx rate lookup failed: %w", err)
	}

	n.logger.Warn("no fx rate for date, using default",
		zap.String("date", pre.Day.Format("2006-01-02")),
		zap.String("currency", pre.Currency),
		zap.String("default_rate", n.defaultRate.String()),
	)
	return n.defaultRate, nil
}
