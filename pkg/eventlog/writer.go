// Package eventlog records routed events and dispatch outcomes to daily
// rotated JSONL files. The log is an audit trail: abandoned events are never
// silently dropped, they are always visible here.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"agentco/pkg/proto"
)

// Outcome classifies what happened to an event at a given point.
type Outcome string

const (
	OutcomeRouted    Outcome = "routed"    // Event delivered to an agent's queue
	OutcomeHandled   Outcome = "handled"   // Agent handled the event
	OutcomeAbandoned Outcome = "abandoned" // Retry budget exhausted
)

// Record is one line in the event log.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Agent     string    `json:"agent"`
	Outcome   Outcome   `json:"outcome"`
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	Attempts  int       `json:"attempts,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewRecord builds a record from an event and its dispatch outcome.
func NewRecord(agent string, event *proto.Event, outcome Outcome, attempts int, dispatchErr error) *Record {
	record := &Record{
		Timestamp: time.Now().UTC(),
		Agent:     agent,
		Outcome:   outcome,
		EventID:   event.ID,
		Kind:      event.Kind,
		Source:    event.Source,
		Attempts:  attempts,
	}
	if dispatchErr != nil {
		record.Error = dispatchErr.Error()
	}
	return record
}

// Writer appends records to daily rotated JSONL files.
type Writer struct {
	logDir      string
	currentFile *os.File
	currentDate string
	mu          sync.Mutex
}

// NewWriter creates an event log writer rooted at logDir, creating the
// directory if needed.
func NewWriter(logDir string) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}

	writer := &Writer{logDir: logDir}
	if err := writer.rotateIfNeeded(); err != nil {
		return nil, fmt.Errorf("failed to initialize event log file: %w", err)
	}
	return writer, nil
}

// WriteRecord appends one record, rotating to a new file on date change.
func (w *Writer) WriteRecord(record *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return fmt.Errorf("failed to rotate event log file: %w", err)
	}

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}
	if _, err := w.currentFile.Write(jsonData); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if _, err := w.currentFile.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := w.currentFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync event log: %w", err)
	}
	return nil
}

func (w *Writer) rotateIfNeeded() error {
	newDate := time.Now().Format("2006-01-02")
	if w.currentFile == nil || w.currentDate != newDate {
		return w.rotate(newDate)
	}
	return nil
}

func (w *Writer) rotate(newDate string) error {
	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close current event log file: %w", err)
		}
	}

	path := filepath.Join(w.logDir, fmt.Sprintf("events-%s.jsonl", newDate))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log file %s: %w", path, err)
	}

	w.currentFile = file
	w.currentDate = newDate
	return nil
}

// CurrentLogFile returns the path of the active log file.
func (w *Writer) CurrentLogFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return ""
	}
	return filepath.Join(w.logDir, fmt.Sprintf("events-%s.jsonl", w.currentDate))
}

// Close closes the current log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile != nil {
		err := w.currentFile.Close()
		w.currentFile = nil
		if err != nil {
			return fmt.Errorf("failed to close event log file: %w", err)
		}
	}
	return nil
}

// ReadRecords reads and parses records from a log file.
func ReadRecords(logFilePath string) ([]*Record, error) {
	file, err := os.Open(logFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log file: %w", err)
	}
	defer file.Close()

	var records []*Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("failed to parse record: %w", err)
		}
		records = append(records, &record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log file: %w", err)
	}
	return records, nil
}

// ListLogFiles returns all event log files under logDir.
func ListLogFiles(logDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(logDir, "events-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list event log files: %w", err)
	}
	return files, nil
}
