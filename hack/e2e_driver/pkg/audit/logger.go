// Package audit saves a schedsim run's outcome history to a JSON file, the
// scheduling-domain counterpart of the original Logger (which collected
// Kubernetes audit-log events from a live cluster instead).
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nrgeol/schedcore/hack/e2e_driver/pkg/tracking"
	"github.com/nrgeol/schedcore/pkg/scheduling"
)

// RunReport is the full JSON document saved for one scenario run.
type RunReport struct {
	RunID     string                  `json:"run_id"`
	Timestamp string                  `json:"timestamp"`
	Duration  string                  `json:"duration"`
	Counts    map[string]int          `json:"counts_by_code"`
	Events    []tracking.RequestEvent `json:"events"`
}

// Logger saves RunReports to a log directory.
type Logger struct {
	logDir string
	runID  string
}

// NewLogger builds a Logger writing into logDir.
func NewLogger(logDir, runID string) *Logger {
	return &Logger{logDir: logDir, runID: runID}
}

// SaveReport marshals and saves the tracker's accumulated history,
// returning the path it was written to.
func (l *Logger) SaveReport(tracker *tracking.ResultTracker) (string, error) {
	report := RunReport{
		RunID:     l.runID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  tracker.Duration().String(),
		Counts:    tracker.CountByCode(),
		Events:    tracker.Events(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run report: %w", err)
	}

	if err := os.MkdirAll(l.logDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().UTC().Format("20060102-150405")
	filename := fmt.Sprintf("run-%s-%s.json", l.runID, timestamp)
	fullPath := filepath.Join(l.logDir, filename)

	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write run report: %w", err)
	}

	return fullPath, nil
}

// Summarize reports whether any request ended in a failing status, used by
// the runner to decide the process exit code.
func Summarize(tracker *tracking.ResultTracker) (failed bool, counts map[string]int) {
	counts = tracker.CountByCode()
	for code, n := range counts {
		if n == 0 {
			continue
		}
		switch code {
		case scheduling.FAILED.String(), scheduling.ERR_SCHEDULE_CANCELED.String(), scheduling.INVALID_RESOURCE_PARAMETER.String():
			failed = true
		}
	}
	return failed, counts
}
