// Package activity records successful workflow mutations in an append-only
// JSONL audit log.
package activity

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	logFileMode   = 0o600
	maxLogEntries = 10000 // truncate oldest entries when log exceeds this size
)

// Entry represents a single activity log entry.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	EntityID  string    `json:"entity_id"`
	Detail    string    `json:"detail"`
}

// Recorder receives an entry for every successful mutation.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Nop discards entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) {}

// Log is a Recorder backed by a JSONL file.
type Log struct {
	path string
	max  int
	mu   sync.Mutex
}

// NewLog returns a Log writing to path.
func NewLog(path string) *Log {
	return &Log{path: path, max: maxLogEntries}
}

// Path returns the log file path.
func (l *Log) Path() string { return l.path }

// Record appends e. Errors are discarded because the audit trail must never
// fail a mutation that has already committed.
func (l *Log) Record(_ context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_ = l.Append(e)
}

// Append appends an entry to the log file.
// If the log exceeds its entry cap, the oldest entries are truncated.
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFileMode) //nolint:gosec // log path from trusted workspace dir
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling log entry: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing log entry: %w", err)
	}

	// Best-effort; errors are non-fatal.
	_ = truncateLogIfNeeded(l.path, l.max)

	return nil
}

// truncateLogIfNeeded rewrites the log keeping only the most recent keep entries.
func truncateLogIfNeeded(path string, keep int) error {
	lines, err := readLines(path)
	if err != nil {
		return err
	}
	if len(lines) <= keep {
		return nil
	}

	lines = lines[len(lines)-keep:]

	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	return os.WriteFile(path, []byte(buf.String()), logFileMode)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // trusted path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// Tail returns the last limit entries, oldest first. limit <= 0 returns all.
// Malformed lines are skipped. A missing log yields no entries.
func (l *Log) Tail(limit int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := readLines(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading activity log: %w", err)
	}

	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		var e Entry
		if json.Unmarshal([]byte(line), &e) != nil {
			continue
		}
		entries = append(entries, e)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
