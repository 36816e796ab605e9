package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/salesdw/etl/internal/domain/etl"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"github.com/salesdw/etl/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// RunResult summarizes one pipeline invocation
type RunResult struct {
	RunID             uuid.UUID
	Source            string
	Window            etl.Window
	RowsExtracted     int
	FactsInserted     int
	FactsSkipped      int
	RowErrors         int
	LastProcessedDate time.Time
	Status            etl.RunStatus
}

// Pipeline runs one linear, single-threaded ETL pass for one source:
// extract, aggregate, resolve (with dimension upserts), normalize, load, and
// finally advance the watermark. The pipeline is trigger-agnostic: callers
// decide when to invoke Run (typically a cron-driven process).
type Pipeline struct {
	connector  etl.SourceConnector
	aggregator *Aggregator
	resolver   *EntityResolver
	normalizer *CurrencyNormalizer
	dims       *DimensionService
	loader     *FactLoader
	runLog     etl.RunLogStore
	now        func() time.Time
	state      etl.RunState
	logger     *zap.Logger
}

// NewPipeline creates a Pipeline in the IDLE state
func NewPipeline(
	connector etl.SourceConnector,
	aggregator *Aggregator,
	resolver *EntityResolver,
	normalizer *CurrencyNormalizer,
	dims *DimensionService,
	loader *FactLoader,
	runLog etl.RunLogStore,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		connector:  connector,
		aggregator: aggregator,
		resolver:   resolver,
		normalizer: normalizer,
		dims:       dims,
		loader:     loader,
		runLog:     runLog,
		now:        time.Now,
		state:      etl.StateIdle,
		logger:     logger.With(zap.String("source", connector.Name())),
	}
}

// State returns the pipeline's current run state
func (p *Pipeline) State() etl.RunState {
	return p.state
}

func (p *Pipeline) transition(next etl.RunState) {
	if !p.state.CanTransition(next) {
		// transitions are fixed at compile time; reaching this is a bug
		panic(fmt.Sprintf("illegal run state transition %s -> %s", p.state, next))
	}
	p.state = next
}

// Run executes one full pass. A source failure aborts the run with an ERROR
// entry and an unchanged watermark; row-level problems are counted and the
// run continues. The watermark advances only on the SUCCESS append.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{
		RunID:  uuid.New(),
		Source: p.connector.Name(),
	}
	// stamp the run id on the context so warehouse SQL traces carry it too
	ctx, log := logger.WithRunID(ctx, p.logger, result.RunID.String())

	entries, err := p.runLog.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("run log read failed: %w", err)
	}
	// legacy entries carry no source name and count for every source
	var own []etl.RunLogEntry
	for _, e := range entries {
		if e.Source == result.Source || e.Source == "" {
			own = append(own, e)
		}
	}
	result.Window = etl.NextWindow(own, p.now())
	log.Info("run started",
		zap.Time("window_from", result.Window.From),
		zap.Time("window_to", result.Window.To),
	)

	p.transition(etl.StateExtracting)
	items, err := p.connector.Extract(ctx, result.Window)
	if err != nil {
		extractErr := &etl.ExtractionError{Source: result.Source, Err: err}
		p.fail(ctx, result, log, extractErr)
		return result, extractErr
	}
	result.RowsExtracted = len(items)

	p.transition(etl.StateAggregating)
	preFacts, skipped := p.aggregator.Aggregate(items)
	result.RowErrors += skipped

	p.transition(etl.StateResolving)
	facts, resolveErrors, maxDate := p.resolve(ctx, log, preFacts)
	result.RowErrors += resolveErrors

	p.transition(etl.StateLoading)
	stats, err := p.loader.Load(ctx, facts)
	result.FactsInserted = stats.Inserted
	result.FactsSkipped = stats.Skipped
	result.RowErrors += stats.Failed
	if err != nil {
		p.fail(ctx, result, log, err)
		return result, err
	}

	result.LastProcessedDate = maxDate
	result.Status = etl.RunStatusSuccess
	if !maxDate.IsZero() {
		entry := etl.RunLogEntry{
			Timestamp:         p.now(),
			Source:            result.Source,
			LastProcessedDate: maxDate,
			RowsProcessed:     stats.Inserted,
			Status:            etl.RunStatusSuccess,
		}
		if err := p.runLog.Append(ctx, entry); err != nil {
			p.fail(ctx, result, log, err)
			return result, fmt.Errorf("run log append failed: %w", err)
		}
	} else {
		log.Info("no rows in window, watermark unchanged")
	}

	p.transition(etl.StateSuccess)
	p.transition(etl.StateIdle)
	log.Info("run finished",
		zap.Int("rows_extracted", result.RowsExtracted),
		zap.Int("facts_inserted", result.FactsInserted),
		zap.Int("facts_skipped", result.FactsSkipped),
		zap.Int("row_errors", result.RowErrors),
	)
	return result, nil
}

// resolve turns pre-facts into loadable fact rows: canonical SKU resolution,
// dimension get-or-create, then currency normalization. Rows that fail
// resolution are skipped and counted.
func (p *Pipeline) resolve(
	ctx context.Context,
	log *zap.Logger,
	preFacts []etl.PreFact,
) ([]*warehouse.SalesFact, int, time.Time) {
	facts := make([]*warehouse.SalesFact, 0, len(preFacts))
	rowErrors := 0
	var maxDate time.Time

	for _, pre := range preFacts {
		sku, err := p.resolver.Resolve(ctx, pre.Product)
		if err != nil {
			rowErrors++
			log.Warn("product resolution failed, row skipped", zap.Error(err))
			continue
		}

		productID, err := p.dims.ProductID(ctx, sku, pre.Product.Name, pre.Product.Category)
		if err != nil {
			rowErrors++
			log.Warn("product dimension failed, row skipped", zap.Error(err))
			continue
		}
		customerID, err := p.dims.CustomerID(ctx, pre.Customer)
		if err != nil {
			rowErrors++
			log.Warn("customer dimension failed, row skipped", zap.Error(err))
			continue
		}
		timeID, err := p.dims.TimeID(ctx, pre.Day)
		if err != nil {
			rowErrors++
			log.Warn("time dimension failed, row skipped", zap.Error(err))
			continue
		}
		channelID, err := p.dims.ChannelID(ctx, pre.Channel)
		if err != nil {
			rowErrors++
			log.Warn("channel dimension failed, row skipped", zap.Error(err))
			continue
		}

		normalized, err := p.normalizer.Normalize(ctx, pre)
		if err != nil {
			rowErrors++
			log.Warn("currency normalization failed, row skipped", zap.Error(err))
			continue
		}

		facts = append(facts, &warehouse.SalesFact{
			TimeID:       timeID,
			ProductID:    productID,
			CustomerID:   customerID,
			ChannelID:    channelID,
			Quantity:     normalized.Quantity,
			UnitPriceUSD: normalized.UnitPriceUSD,
			TotalUSD:     normalized.TotalUSD,
		})
		if pre.Day.After(maxDate) {
			maxDate = pre.Day
		}
	}
	return facts, rowErrors, maxDate
}

// fail records an ERROR run log entry and moves the pipeline back to IDLE.
// The watermark does not advance, so the next invocation re-extracts the same
// window; the loader's per-row dedup makes that safe.
func (p *Pipeline) fail(ctx context.Context, result *RunResult, log *zap.Logger, cause error) {
	result.Status = etl.RunStatusError
	entry := etl.RunLogEntry{
		Timestamp: p.now(),
		Source:    result.Source,
		Status:    etl.RunStatusError,
		Message:   cause.Error(),
	}
	if err := p.runLog.Append(ctx, entry); err != nil {
		log.Error("could not append error entry to run log", zap.Error(err))
	}
	p.transition(etl.StateError)
	p.transition(etl.StateIdle)
	log.Error("run aborted", zap.Error(cause))
}
