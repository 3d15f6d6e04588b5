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

// MockResourceView is a mock implementation of scheduling.ResourceView for
// testing, following the same behavior-func-field-plus-call-tracking shape
// as MockCluster/MockRecorder.
type MockResourceView struct {
	mu sync.RWMutex

	Snapshot *scheduling.ResourceViewInfo

	AddInstancesBehavior    func(ctx context.Context, instances map[string]scheduling.InstanceInfo) error
	DeleteInstancesBehavior func(ctx context.Context, unitID string, instanceIDs []string, virtual bool) error

	GetResourceInfoCalls  int
	AddInstancesCalls     int
	DeleteInstancesCalls  int
	DeletedInstanceIDs    []string
}

// NewMockResourceView creates a MockResourceView wrapping the given
// snapshot, with behaviors that always succeed by default.
func NewMockResourceView(snapshot *scheduling.ResourceViewInfo) *MockResourceView {
	return &MockResourceView{
		Snapshot: snapshot,
		AddInstancesBehavior: func(ctx context.Context, instances map[string]scheduling.InstanceInfo) error {
			return nil
		},
		DeleteInstancesBehavior: func(ctx context.Context, unitID string, instanceIDs []string, virtual bool) error {
			return nil
		},
	}
}

func (m *MockResourceView) GetResourceInfo(ctx context.Context) *scheduling.Future[*scheduling.ResourceViewInfo] {
	m.mu.Lock()
	m.GetResourceInfoCalls++
	snapshot := m.Snapshot
	m.mu.Unlock()

	f := scheduling.NewFuture[*scheduling.ResourceViewInfo]()
	f.Fulfill(snapshot)
	return f
}

func (m *MockResourceView) AddInstances(ctx context.Context, instances map[string]scheduling.InstanceInfo) *scheduling.Future[error] {
	m.mu.Lock()
	m.AddInstancesCalls++
	behavior := m.AddInstancesBehavior
	m.mu.Unlock()

	f := scheduling.NewFuture[error]()
	var err error
	if behavior != nil {
		err = behavior(ctx, instances)
	}
	if err == nil {
		for _, inst := range instances {
			if unit, ok := m.Snapshot.Unit(inst.UnitID); ok {
				unit.AddInstance(inst)
			}
		}
	}
	f.Fulfill(err)
	return f
}

func (m *MockResourceView) DeleteInstances(ctx context.Context, unitID string, instanceIDs []string, virtual bool) *scheduling.Future[error] {
	m.mu.Lock()
	m.DeleteInstancesCalls++
	m.DeletedInstanceIDs = append(m.DeletedInstanceIDs, instanceIDs...)
	behavior := m.DeleteInstancesBehavior
	m.mu.Unlock()

	f := scheduling.NewFuture[error]()
	var err error
	if behavior != nil {
		err = behavior(ctx, unitID, instanceIDs, virtual)
	}
	if err == nil && !virtual {
		if unit, ok := m.Snapshot.Unit(unitID); ok {
			for _, id := range instanceIDs {
				unit.RemoveInstance(id)
			}
		}
	}
	f.Fulfill(err)
	return f
}

func (m *MockResourceView) GetFragment(ctx context.Context, unitID string) (*scheduling.ResourceUnit, error) {
	unit, ok := m.Snapshot.Fragment(unitID)
	if !ok {
		return nil, nil
	}
	return unit, nil
}

func (m *MockResourceView) UpdateUnitStatus(ctx context.Context, unitID string, mutate func(*scheduling.ResourceUnit)) error {
	unit, ok := m.Snapshot.Unit(unitID)
	if !ok {
		return nil
	}
	mutate(unit)
	return nil
}

// Reset clears all recorded calls.
func (m *MockResourceView) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetResourceInfoCalls = 0
	m.AddInstancesCalls = 0
	m.DeleteInstancesCalls = 0
	m.DeletedInstanceIDs = nil
}
