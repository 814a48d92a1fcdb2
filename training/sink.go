package training

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MetricsSink receives epoch metrics from the trainer. The sink is chosen once
// at startup and passed explicitly: either a live run log or NopSink. The
// trainer never checks which one it holds.
type MetricsSink interface {
	BeginRun(project string, config map[string]interface{}) error
	Log(metrics EpochMetrics) error
	Close() error
}

// NopSink is the null metrics sink: every call succeeds and does nothing.
type NopSink struct{}

func (NopSink) BeginRun(project string, config map[string]interface{}) error { return nil }
func (NopSink) Log(metrics EpochMetrics) error                               { return nil }
func (NopSink) Close() error                                                 { return nil }

// JSONLSink appends one JSON object per line to a run log file. Each run gets
// a fresh UUID; the first line records the run header, subsequent lines the
// epoch metrics.
type JSONLSink struct {
	mu    sync.Mutex
	file  *os.File
	runID string
}

type runHeader struct {
	RunID     string                 `json:"run_id"`
	Project   string                 `json:"project"`
	StartedAt time.Time              `json:"started_at"`
	Config    map[string]interface{} `json:"config,omitempty"`
}

type epochRecord struct {
	RunID string `json:"run_id"`
	EpochMetrics
}

// NewJSONLSink opens (or creates) the run log at path for appending.
func NewJSONLSink(path string) (*JSONLSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log %s: %w", path, err)
	}
	return &JSONLSink{file: file}, nil
}

// RunID returns the identifier of the current run, empty before BeginRun.
func (s *JSONLSink) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// BeginRun writes the run header and assigns the run ID.
func (s *JSONLSink) BeginRun(project string, config map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runID = uuid.New().String()
	return s.write(runHeader{
		RunID:     s.runID,
		Project:   project,
		StartedAt: time.Now().UTC(),
		Config:    config,
	})
}

// Log appends one epoch record to the run log.
func (s *JSONLSink) Log(metrics EpochMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runID == "" {
		return fmt.Errorf("Log called before BeginRun")
	}
	return s.write(epochRecord{RunID: s.runID, EpochMetrics: metrics})
}

// Close flushes and closes the run log.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

func (s *JSONLSink) write(v interface{}) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode run log record: %w", err)
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write run log record: %w", err)
	}
	return nil
}
