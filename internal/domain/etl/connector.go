package etl

import (
	"context"
	"time"
)

// Window is the half-open extraction time window [From, To]. A zero From
// means full historical extraction (no prior successful run).
type Window struct {
	From time.Time
	To   time.Time
}

// Bounded reports whether the window has a lower bound
func (w Window) Bounded() bool {
	return !w.From.IsZero()
}

// Contains reports whether a date falls inside the window
func (w Window) Contains(t time.Time) bool {
	if w.Bounded() && t.Before(w.From) {
		return false
	}
	return !t.After(w.To)
}

// SourceConnector extracts raw order line items from one source system for a
// given time window. Implementations are pull-based and point-in-time; they
// own the source-specific query or traversal.
type SourceConnector interface {
	// Name identifies the source system in logs and run records
	Name() string

	// Extract yields the raw line items whose order date falls in the window
	Extract(ctx context.Context, window Window) ([]RawLineItem, error)
}
