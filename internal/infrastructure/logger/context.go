package logger

import (
	"context"

	"go.uber.org/zap"
)

type runIDKey struct{}

// WithRunID stamps the ETL run id on the context and returns a logger that
// carries it as a field. The persistence layer reads the id back through
// RunID, so SQL traces and pipeline logs share one correlation key.
func WithRunID(ctx context.Context, log *zap.Logger, runID string) (context.Context, *zap.Logger) {
	return context.WithValue(ctx, runIDKey{}, runID), log.With(zap.String("run_id", runID))
}

// RunID returns the run id stamped on the context, or "" outside a run
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
