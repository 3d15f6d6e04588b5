// Package store provides an in-memory scheduling.ResourceView for schedsim:
// the live backing state the runner's queue actor reads snapshots from and
// writes confirmed reservations into, replacing the original driver's
// Kubernetes/ECS deployment manager with a pure in-process equivalent.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/nrgeol/schedcore/pkg/scheduling"
)

// InMemoryStore is a synchronous scheduling.ResourceView: every Future it
// returns is already fulfilled by the time the caller receives it, since
// there is no real network round-trip to a backing cluster.
type InMemoryStore struct {
	mu    sync.Mutex
	units map[string]*scheduling.ResourceUnit
}

// NewInMemoryStore seeds a store from a fixed set of units.
func NewInMemoryStore(units []*scheduling.ResourceUnit) *InMemoryStore {
	index := make(map[string]*scheduling.ResourceUnit, len(units))
	for _, u := range units {
		index[u.UnitID] = u
	}
	return &InMemoryStore{units: index}
}

func (s *InMemoryStore) GetResourceInfo(ctx context.Context) *scheduling.Future[*scheduling.ResourceViewInfo] {
	s.mu.Lock()
	units := make([]*scheduling.ResourceUnit, 0, len(s.units))
	for _, u := range s.units {
		units = append(units, u.Clone())
	}
	s.mu.Unlock()

	f := scheduling.NewFuture[*scheduling.ResourceViewInfo]()
	f.Fulfill(scheduling.NewResourceViewInfo(units, nil))
	return f
}

func (s *InMemoryStore) AddInstances(ctx context.Context, instances map[string]scheduling.InstanceInfo) *scheduling.Future[error] {
	s.mu.Lock()
	var err error
	for _, inst := range instances {
		unit, ok := s.units[inst.UnitID]
		if !ok {
			err = fmt.Errorf("unknown unit %q", inst.UnitID)
			break
		}
		unit.AddInstance(inst)
	}
	s.mu.Unlock()

	f := scheduling.NewFuture[error]()
	f.Fulfill(err)
	return f
}

func (s *InMemoryStore) DeleteInstances(ctx context.Context, unitID string, instanceIDs []string, virtual bool) *scheduling.Future[error] {
	s.mu.Lock()
	if unit, ok := s.units[unitID]; ok {
		for _, id := range instanceIDs {
			unit.RemoveInstance(id)
		}
	}
	s.mu.Unlock()

	f := scheduling.NewFuture[error]()
	f.Fulfill(nil)
	return f
}

func (s *InMemoryStore) GetFragment(ctx context.Context, unitID string) (*scheduling.ResourceUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.units[unitID]; ok {
		return u, nil
	}
	for _, u := range s.units {
		if f, ok := u.Fragments[unitID]; ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("fragment %q not found", unitID)
}

func (s *InMemoryStore) UpdateUnitStatus(ctx context.Context, unitID string, mutate func(*scheduling.ResourceUnit)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	unit, ok := s.units[unitID]
	if !ok {
		return fmt.Errorf("unknown unit %q", unitID)
	}
	mutate(unit)
	return nil
}

// Snapshot returns the current immutable view without going through the
// Future-wrapped interface method.
func (s *InMemoryStore) Snapshot() *scheduling.ResourceViewInfo {
	f := s.GetResourceInfo(context.Background())
	v, _ := f.Wait(context.Background())
	return v
}
