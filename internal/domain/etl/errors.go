package etl

import "fmt"

// ExtractionError means a source system could not be read. It aborts the run;
// the watermark stays where it was so the next invocation retries the same
// window.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction from %s failed: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// RowError means a single row is malformed (bad date, unparsable amount).
// The row is skipped and counted; the run continues.
type RowError struct {
	Reason string
	Err    error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row skipped: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("row skipped: %s", e.Reason)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// CommitError means a single fact insert failed. The row is skipped without
// retry; previously committed batches stay committed.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("fact insert failed: %v", e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// ConflictError means a source identifier was re-seen with conflicting
// canonical product data. The first-resolved mapping wins; the conflict is
// logged, never fatal.
type ConflictError struct {
	Identifier string
	Existing   string
	Proposed   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("identifier %q already resolved to %q, conflicting claim %q ignored",
		e.Identifier, e.Existing, e.Proposed)
}
