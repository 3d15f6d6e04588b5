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

// MockSelector is a mock implementation of scheduling.Selector for testing.
// The default behavior ranks every unit with available capacity for the
// request's resources by remaining allocatable, descending.
type MockSelector struct {
	mu sync.RWMutex

	SelectFeasibleBehavior func(ctx context.Context, req scheduling.ScheduleRequest, view *scheduling.ResourceViewInfo, expectedFeasible int) (scheduling.ScheduleResults, error)

	Calls int
}

// NewMockSelector creates a MockSelector with a capacity-ranking default.
func NewMockSelector() *MockSelector {
	return &MockSelector{
		SelectFeasibleBehavior: defaultSelect,
	}
}

func (m *MockSelector) SelectFeasible(ctx context.Context, pctx *scheduling.PreAllocatedContext, req scheduling.ScheduleRequest, view *scheduling.ResourceViewInfo, expectedFeasible int) (scheduling.ScheduleResults, error) {
	m.mu.Lock()
	m.Calls++
	behavior := m.SelectFeasibleBehavior
	m.mu.Unlock()

	if behavior == nil {
		behavior = defaultSelect
	}
	return behavior(ctx, req, view, expectedFeasible)
}

func defaultSelect(ctx context.Context, req scheduling.ScheduleRequest, view *scheduling.ResourceViewInfo, expectedFeasible int) (scheduling.ScheduleResults, error) {
	candidates := make([]scheduling.NodeScore, 0, len(view.Units))
	for id, unit := range view.Units {
		if req.Resources.LessOrEqual(unit.Allocatable) {
			candidates = append(candidates, scheduling.NodeScore{
				UnitID:              id,
				Score:               scoreOf(unit),
				AvailableForRequest: expectedFeasible,
			})
		}
	}
	if len(candidates) == 0 {
		return scheduling.ScheduleResults{Code: scheduling.RESOURCE_NOT_ENOUGH, Reason: "no unit has sufficient allocatable capacity"}, nil
	}
	return scheduling.ScheduleResults{Code: scheduling.SUCCESS, Candidates: scheduling.NewCandidateQueue(candidates)}, nil
}

func scoreOf(unit *scheduling.ResourceUnit) float64 {
	if q, ok := unit.Allocatable["cpu"]; ok {
		return q.AsApproximateFloat64()
	}
	return 0
}

// Reset clears all recorded calls.
func (m *MockSelector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = 0
}
