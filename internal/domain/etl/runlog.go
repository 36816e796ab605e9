package etl

import (
	"context"
	"time"
)

// RunStatus is the outcome of one ETL run
type RunStatus string

const (
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusError   RunStatus = "ERROR"
)

// RunLogEntry is one append-only record of a run outcome. The run log is the
// sole source of truth for the extraction watermark: the watermark advances
// only when a SUCCESS entry is appended.
type RunLogEntry struct {
	Timestamp         time.Time `json:"timestamp"`
	Source            string    `json:"source"`
	LastProcessedDate time.Time `json:"last_processed_date"`
	RowsProcessed     int       `json:"rows_processed"`
	Status            RunStatus `json:"status"`
	Message           string    `json:"message,omitempty"`
}

// RunLogStore is the durable, append-only store of run outcomes
type RunLogStore interface {
	// Append adds an entry; entries are never mutated or removed
	Append(ctx context.Context, entry RunLogEntry) error

	// ReadAll returns every recorded entry in append order
	ReadAll(ctx context.Context) ([]RunLogEntry, error)
}

// Watermark returns the latest date known to have been fully processed:
// the maximum LastProcessedDate over SUCCESS entries. ok is false when no
// successful run has been recorded, which means full historical extraction.
func Watermark(entries []RunLogEntry) (time.Time, bool) {
	var max time.Time
	found := false
	for _, e := range entries {
		if e.Status != RunStatusSuccess {
			continue
		}
		if e.LastProcessedDate.After(max) {
			max = e.LastProcessedDate
			found = true
		}
	}
	return max, found
}

// NextWindow computes the extraction window following the recorded runs:
// (watermark + 1 day) .. now, or unbounded history when no run succeeded yet.
func NextWindow(entries []RunLogEntry, now time.Time) Window {
	w := Window{To: now}
	if mark, ok := Watermark(entries); ok {
		w.From = mark.AddDate(0, 0, 1)
	}
	return w
}
