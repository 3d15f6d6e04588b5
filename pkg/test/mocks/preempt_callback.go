/*
Copyright The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package mocks

import (
	"context"
	"sync"

	"github.com/nrgeol/schedcore/pkg/scheduling"
)

// MockPreemptCallback records every preemption decision the core hands to
// the caller for eviction, the way MockRecorder records published events.
type MockPreemptCallback struct {
	mu sync.RWMutex

	Behavior func(ctx context.Context, decisions []scheduling.PreemptResult) scheduling.Code

	Invocations [][]scheduling.PreemptResult
}

// NewMockPreemptCallback creates a callback that always reports SUCCESS.
func NewMockPreemptCallback() *MockPreemptCallback {
	return &MockPreemptCallback{
		Behavior: func(ctx context.Context, decisions []scheduling.PreemptResult) scheduling.Code {
			return scheduling.SUCCESS
		},
	}
}

// Callback adapts this mock to the scheduling.PreemptCallback function type.
func (m *MockPreemptCallback) Callback(ctx context.Context, decisions []scheduling.PreemptResult) *scheduling.Future[scheduling.Code] {
	m.mu.Lock()
	m.Invocations = append(m.Invocations, decisions)
	behavior := m.Behavior
	m.mu.Unlock()

	f := scheduling.NewFuture[scheduling.Code]()
	code := scheduling.SUCCESS
	if behavior != nil {
		code = behavior(ctx, decisions)
	}
	f.Fulfill(code)
	return f
}

// VictimCount returns the total number of victims across every recorded
// invocation (thread-safe).
func (m *MockPreemptCallback) VictimCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, decisions := range m.Invocations {
		for _, d := range decisions {
			n += len(d.Victims)
		}
	}
	return n
}

// CallCount returns the number of times the callback was invoked.
func (m *MockPreemptCallback) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Invocations)
}

// Reset clears all recorded invocations.
func (m *MockPreemptCallback) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invocations = nil
}
