package etl

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/salesdw/etl/internal/domain/etl"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"github.com/salesdw/etl/internal/infrastructure/logger"
	"github.com/salesdw/etl/internal/infrastructure/persistence"
	"github.com/salesdw/etl/internal/infrastructure/runlog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeConnector serves a fixed set of line items and records the window and
// context it was asked with
type fakeConnector struct {
	name       string
	items      []etl.RawLineItem
	err        error
	lastWindow etl.Window
	lastCtx    context.Context
}

func (c *fakeConnector) Name() string { return c.name }

func (c *fakeConnector) Extract(ctx context.Context, window etl.Window) ([]etl.RawLineItem, error) {
	c.lastCtx = ctx
	c.lastWindow = window
	if c.err != nil {
		return nil, c.err
	}
	return c.items, nil
}

func newTestWarehouse(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&warehouse.Product{},
		&warehouse.Customer{},
		&warehouse.TimeDim{},
		&warehouse.Channel{},
		&warehouse.Equivalence{},
		&warehouse.SalesFact{},
	))
	return db
}

func newTestPipeline(t *testing.T, connector *fakeConnector) (*Pipeline, *gorm.DB) {
	t.Helper()
	db := newTestWarehouse(t)
	log := zap.NewNop()

	products := persistence.NewGormProductRepository(db)
	customers := persistence.NewGormCustomerRepository(db)
	times := persistence.NewGormTimeRepository(db)
	channels := persistence.NewGormChannelRepository(db)
	equivalences := persistence.NewGormEquivalenceRepository(db)
	facts := persistence.NewGormFactRepository(db)

	pipeline := NewPipeline(
		connector,
		NewAggregator(true, true, log),
		NewEntityResolver(products, equivalences, nil, log),
		NewCurrencyNormalizer("USD", decimal.NewFromInt(500), times, log),
		NewDimensionService(products, customers, times, channels, log),
		NewFactLoader(facts, 50, log),
		runlog.NewFileStore(filepath.Join(t.TempDir(), "run_log.txt")),
		log,
	)
	return pipeline, db
}

func factCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	n, err := persistence.NewGormFactRepository(db).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestPipelineRun_EndToEnd(t *testing.T) {
	day := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)
	connector := &fakeConnector{
		name: "pos",
		items: []etl.RawLineItem{
			lineItem("a@x.com", "SKU-1", day, 3, "10.00"),
			lineItem("a@x.com", "SKU-1", day.Add(time.Hour), 5, "10.00"),
			lineItem("b@x.com", "SKU-2", day, 1, "25.00"),
		},
	}

	pipeline, db := newTestPipeline(t, connector)
	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, etl.RunStatusSuccess, result.Status)
	assert.Equal(t, 3, result.RowsExtracted)
	assert.Equal(t, 2, result.FactsInserted)
	assert.Equal(t, 0, result.RowErrors)
	assert.Equal(t, int64(2), factCount(t, db))
	assert.Equal(t, etl.StateIdle, pipeline.State())

	var stored warehouse.SalesFact
	require.NoError(t, db.Joins("JOIN dim_customer ON dim_customer.id = fact_sales.customer_id").
		Where("dim_customer.email = ?", "a@x.com").First(&stored).Error)
	assert.Equal(t, int64(8), stored.Quantity)
	assert.Equal(t, "80.00", stored.TotalUSD.StringFixed(2))
}

func TestPipelineRun_StampsRunIDOnContext(t *testing.T) {
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	connector := &fakeConnector{
		name:  "pos",
		items: []etl.RawLineItem{lineItem("a@x.com", "SKU-1", day, 1, "10.00")},
	}

	pipeline, _ := newTestPipeline(t, connector)
	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	// downstream stages see the run id through the context, so SQL traces
	// correlate with the run that issued them
	require.NotNil(t, connector.lastCtx)
	assert.Equal(t, result.RunID.String(), logger.RunID(connector.lastCtx))
}

func TestPipelineRun_RerunDoesNotDuplicate(t *testing.T) {
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	connector := &fakeConnector{
		name:  "pos",
		items: []etl.RawLineItem{lineItem("a@x.com", "SKU-1", day, 1, "10.00")},
	}

	pipeline, db := newTestPipeline(t, connector)
	_, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	// the connector ignores the window and serves the same rows again; the
	// natural-key check must absorb them
	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.FactsInserted)
	assert.Equal(t, 1, result.FactsSkipped)
	assert.Equal(t, int64(1), factCount(t, db))
}

func TestPipelineRun_WatermarkAdvances(t *testing.T) {
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	connector := &fakeConnector{
		name:  "pos",
		items: []etl.RawLineItem{lineItem("a@x.com", "SKU-1", day, 1, "10.00")},
	}

	pipeline, _ := newTestPipeline(t, connector)

	first, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Window.Bounded(), "first run extracts full history")
	assert.Equal(t, day, first.LastProcessedDate)

	second, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Window.Bounded())
	assert.Equal(t, day.AddDate(0, 0, 1), second.Window.From)
}

func TestPipelineRun_ExtractionFailure(t *testing.T) {
	connector := &fakeConnector{name: "pos", err: errors.New("source unreachable")}
	pipeline, db := newTestPipeline(t, connector)

	result, err := pipeline.Run(context.Background())
	require.Error(t, err)

	var extractErr *etl.ExtractionError
	assert.ErrorAs(t, err, &extractErr)
	assert.Equal(t, etl.RunStatusError, result.Status)
	assert.Equal(t, etl.StateIdle, pipeline.State(), "pipeline returns to idle after failure")
	assert.Equal(t, int64(0), factCount(t, db))

	// the failure is recorded but the watermark must not move
	connector.err = nil
	retry, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, retry.Window.Bounded())
}

func TestPipelineRun_EmptyWindowKeepsWatermark(t *testing.T) {
	connector := &fakeConnector{name: "pos"}
	pipeline, _ := newTestPipeline(t, connector)

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, etl.RunStatusSuccess, result.Status)
	assert.True(t, result.LastProcessedDate.IsZero())

	next, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, next.Window.Bounded())
}

func TestPipelineRun_MalformedRowsAreCounted(t *testing.T) {
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	connector := &fakeConnector{
		name: "pos",
		items: []etl.RawLineItem{
			lineItem("a@x.com", "SKU-1", day, 1, "10.00"),
			lineItem("", "SKU-1", day, 1, "10.00"),
			lineItem("b@x.com", "SKU-1", day, 1, "not-a-price"),
		},
	}

	pipeline, db := newTestPipeline(t, connector)
	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.FactsInserted)
	assert.Equal(t, 2, result.RowErrors)
	assert.Equal(t, int64(1), factCount(t, db))
}
