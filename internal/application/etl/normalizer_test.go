package etl

import (
	"context"
	"testing"
	"time"

	"github.com/salesdw/etl/internal/domain/etl"
	"github.com/salesdw/etl/internal/domain/shared"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTimeRepo is an in-memory warehouse.TimeRepository
type fakeTimeRepo struct {
	byDate map[string]*warehouse.TimeDim
	nextID int64
}

func newFakeTimeRepo() *fakeTimeRepo {
	return &fakeTimeRepo{byDate: make(map[string]*warehouse.TimeDim)}
}

func (r *fakeTimeRepo) FindByDate(_ context.Context, date time.Time) (*warehouse.TimeDim, error) {
	if td, ok := r.byDate[warehouse.Midnight(date).Format("2006-01-02")]; ok {
		return td, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeTimeRepo) Create(_ context.Context, td *warehouse.TimeDim) error {
	key := td.Date.Format("2006-01-02")
	if _, ok := r.byDate[key]; ok {
		return shared.ErrAlreadyExists
	}
	r.nextID++
	td.ID = r.nextID
	r.byDate[key] = td
	return nil
}

func (r *fakeTimeRepo) UpsertRate(ctx context.Context, date time.Time, rate decimal.Decimal) error {
	if td, err := r.FindByDate(ctx, date); err == nil {
		td.FxRate = &rate
		return nil
	}
	return r.Create(ctx, warehouse.NewTimeDim(date, &rate))
}

func preFact(currency string, day time.Time, unit, total string) etl.PreFact {
	unitD, _ := decimal.NewFromString(unit)
	totalD, _ := decimal.NewFromString(total)
	return etl.PreFact{
		Currency:        currency,
		Day:             day,
		UnitPriceNative: unitD,
		TotalNative:     totalD,
	}
}

func TestNormalize_ReportingCurrencyIsIdentity(t *testing.T) {
	times := newFakeTimeRepo()
	n := NewCurrencyNormalizer("USD", decimal.NewFromInt(500), times, zap.NewNop())

	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	out, err := n.Normalize(context.Background(), preFact("usd", day, "10.555", "84.444"))
	require.NoError(t, err)

	assert.Equal(t, "10.56", out.UnitPriceUSD.StringFixed(2))
	assert.Equal(t, "84.44", out.TotalUSD.StringFixed(2))
}

func TestNormalize_UsesStoredRate(t *testing.T) {
	times := newFakeTimeRepo()
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	rate := decimal.NewFromInt(500)
	require.NoError(t, times.Create(context.Background(), warehouse.NewTimeDim(day, &rate)))

	n := NewCurrencyNormalizer("USD", decimal.NewFromInt(1), times, zap.NewNop())
	out, err := n.Normalize(context.Background(), preFact("CRC", day, "2500", "10000"))
	require.NoError(t, err)

	assert.Equal(t, "5.00", out.UnitPriceUSD.StringFixed(2))
	assert.Equal(t, "20.00", out.TotalUSD.StringFixed(2))
}

func TestNormalize_MissingRateFallsBackToDefault(t *testing.T) {
	times := newFakeTimeRepo()
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	n := NewCurrencyNormalizer("USD", decimal.NewFromInt(500), times, zap.NewNop())
	out, err := n.Normalize(context.Background(), preFact("CRC", day, "1000", "5000"))
	require.NoError(t, err)

	assert.Equal(t, "2.00", out.UnitPriceUSD.StringFixed(2))
	assert.Equal(t, "10.00", out.TotalUSD.StringFixed(2))
}

func TestNormalize_NilStoredRateFallsBackToDefault(t *testing.T) {
	times := newFakeTimeRepo()
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, times.Create(context.Background(), warehouse.NewTimeDim(day, nil)))

	n := NewCurrencyNormalizer("USD", decimal.NewFromInt(250), times, zap.NewNop())
	out, err := n.Normalize(context.Background(), preFact("CRC", day, "500", "1000"))
	require.NoError(t, err)

	assert.Equal(t, "2.00", out.UnitPriceUSD.StringFixed(2))
	assert.Equal(t, "4.00", out.TotalUSD.StringFixed(2))
}

func TestNormalize_RoundsHalfUp(t *testing.T) {
	times := newFakeTimeRepo()
	n := NewCurrencyNormalizer("USD", decimal.NewFromInt(1), times, zap.NewNop())

	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	out, err := n.Normalize(context.Background(), preFact("USD", day, "1.005", "2.675"))
	require.NoError(t, err)

	assert.Equal(t, "1.01", out.UnitPriceUSD.StringFixed(2))
	assert.Equal(t, "2.68", out.TotalUSD.StringFixed(2))
}
