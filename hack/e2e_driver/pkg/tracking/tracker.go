// Package tracking records the per-request outcome history of a schedsim
// run, the scheduling-domain counterpart of the original ResourceTracker
// (which tracked Kubernetes object lifecycle events instead).
package tracking

import (
	"sync"
	"time"

	"github.com/nrgeol/schedcore/pkg/scheduling"
)

// RequestEvent is a single recorded outcome for one request within one
// scenario step.
type RequestEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Step      string    `json:"step"`
	RequestID string    `json:"request_id"`
	Code      string    `json:"code"`
	UnitID    string    `json:"unit_id,omitempty"`
}

// ResultTracker accumulates RequestEvents across an entire scenario run.
type ResultTracker struct {
	mu        sync.RWMutex
	events    []RequestEvent
	startTime time.Time
}

// NewResultTracker creates an empty tracker.
func NewResultTracker() *ResultTracker {
	return &ResultTracker{startTime: time.Now()}
}

// Record appends one outcome.
func (t *ResultTracker) Record(step, requestID string, code scheduling.Code, unitID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, RequestEvent{
		Timestamp: time.Now(),
		Step:      step,
		RequestID: requestID,
		Code:      code.String(),
		UnitID:    unitID,
	})
}

// Events returns a copy of every recorded event.
func (t *ResultTracker) Events() []RequestEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]RequestEvent, len(t.events))
	copy(out, t.events)
	return out
}

// CountByCode tallies events per status code string.
func (t *ResultTracker) CountByCode() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[string]int)
	for _, e := range t.events {
		counts[e.Code]++
	}
	return counts
}

// Duration returns how long the tracker has been running.
func (t *ResultTracker) Duration() time.Duration {
	return time.Since(t.startTime)
}
