// Package runmetrics keeps a rolling JSON log of pipeline executions so
// the stats/health commands can answer "is the scraper still alive and
// how did the last runs go" without a metrics backend.
package runmetrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const retention = 30 * 24 * time.Hour

type Execution struct {
	Timestamp   time.Time `json:"timestamp"`
	Stage       string    `json:"stage"`
	TotalJobs   int       `json:"total_jobs"`
	ActiveJobs  int       `json:"active_jobs"`
	Duration    float64   `json:"duration_seconds"`
	Success     bool      `json:"success"`
	ErrorDetail string    `json:"error,omitempty"`
}

type Log struct {
	path string
	Now  func() time.Time
}

func NewLog(path string) *Log {
	return &Log{path: path, Now: time.Now}
}

// Record appends exec and drops entries older than the retention window.
// An unreadable metrics file is replaced rather than propagated, metrics
// must never take down a run.
func (l *Log) Record(exec Execution) error {
	executions, err := l.Read()
	if err != nil {
		executions = nil
	}

	exec.Timestamp = l.Now()
	executions = append(executions, exec)

	cutoff := l.Now().Add(-retention)
	kept := executions[:0]
	for _, e := range executions {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}

	data, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	return os.WriteFile(l.path, data, 0644)
}

func (l *Log) Read() ([]Execution, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	var executions []Execution
	if err := json.Unmarshal(data, &executions); err != nil {
		return nil, err
	}
	return executions, nil
}

// Last returns the most recent execution for stage, if any.
func (l *Log) Last(stage string) (Execution, bool) {
	executions, err := l.Read()
	if err != nil {
		return Execution{}, false
	}
	for i := len(executions) - 1; i >= 0; i-- {
		if executions[i].Stage == stage {
			return executions[i], true
		}
	}
	return Execution{}, false
}
