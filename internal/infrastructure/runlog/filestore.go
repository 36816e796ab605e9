package runlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/salesdw/etl/internal/domain/etl"
)

// legacyDateLayout is the bare-date format older run logs used, one date per
// line with no metadata
const legacyDateLayout = "2006-01-02"

// FileStore is an append-only, JSON-lines run log on the local filesystem.
// Each entry is one JSON object per line; lines holding a bare YYYY-MM-DD date
// are read as legacy SUCCESS entries so old logs keep their watermark.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore at the given path. The file is created on
// first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append writes one entry to the end of the log
func (s *FileStore) Append(_ context.Context, entry etl.RunLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("run log open failed: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("run log entry encode failed: %w", err)
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("run log write failed: %w", err)
	}
	return file.Sync()
}

// ReadAll returns every recorded entry in append order. A missing file is an
// empty log, not an error.
func (s *FileStore) ReadAll(_ context.Context) ([]etl.RunLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("run log open failed: %w", err)
	}
	defer file.Close()

	var entries []etl.RunLogEntry
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		entry, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("run log line %d: %w", lineNo, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("run log read failed: %w", err)
	}
	return entries, nil
}

func parseLine(line string) (etl.RunLogEntry, error) {
	if strings.HasPrefix(line, "{") {
		var entry etl.RunLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return etl.RunLogEntry{}, fmt.Errorf("malformed entry: %w", err)
		}
		return entry, nil
	}

	// legacy format: a bare date meaning "everything up to here succeeded"
	date, err := time.ParseInLocation(legacyDateLayout, line, time.UTC)
	if err != nil {
		return etl.RunLogEntry{}, fmt.Errorf("malformed entry %q", line)
	}
	return etl.RunLogEntry{
		LastProcessedDate: date,
		Status:            etl.RunStatusSuccess,
	}, nil
}
