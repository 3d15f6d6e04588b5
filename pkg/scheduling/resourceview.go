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

package scheduling

import (
	"context"

	"github.com/samber/lo"
)

// ResourceUnit is a schedulable target: a server-like node, or a logical
// bundle/fragment whose physical owner differs (§3, glossary).
type ResourceUnit struct {
	UnitID  string
	OwnerID string

	Allocatable ResourceList
	Capacity    ResourceList
	ActualUse   ResourceList

	Labels LabelSet

	// Fragments maps fragment-id -> nested ResourceUnit, a unit's logical
	// sub-units, each with its own owner-id.
	Fragments map[string]*ResourceUnit

	// Instances maps instance-id -> InstanceInfo currently allocated here.
	Instances map[string]InstanceInfo

	// labelBuckets is the label-cardinality index local to this unit
	// (label-key -> label-value -> count), maintained by AddInstance /
	// RemoveInstance so simulated preemption deletions keep this unit's
	// index consistent within one pass (see SPEC_FULL.md §4, "Bucket info
	// maintenance").
	labelBuckets map[string]map[string]int
}

// NewResourceUnit builds an empty unit ready to receive instances.
func NewResourceUnit(unitID, ownerID string, allocatable ResourceList) *ResourceUnit {
	return &ResourceUnit{
		UnitID:       unitID,
		OwnerID:      ownerID,
		Allocatable:  allocatable,
		Capacity:     allocatable.Clone(),
		ActualUse:    ResourceList{},
		Labels:       LabelSet{},
		Fragments:    map[string]*ResourceUnit{},
		Instances:    map[string]InstanceInfo{},
		labelBuckets: map[string]map[string]int{},
	}
}

// Owner resolves logical -> physical: a fragment reports the owning unit's
// id, a top-level unit reports itself (§4.1 SelectFromResults step
// "Resolve logical -> physical").
func (u *ResourceUnit) Owner() string {
	if u.OwnerID != "" {
		return u.OwnerID
	}
	return u.UnitID
}

// addLabelBucket increments the bucket count for every label on an instance
// being added to this unit.
func (u *ResourceUnit) addLabelBucket(labels LabelSet) {
	for k, v := range labels {
		if u.labelBuckets[k] == nil {
			u.labelBuckets[k] = map[string]int{}
		}
		u.labelBuckets[k][v]++
	}
}

// updateLabelBucketOnDelete decrements bucket counts for a removed
// instance's labels, pruning zeroed entries, mirroring
// group_schedule_performer.cpp::PrePreemptFromResourceView's bucket
// maintenance (see SPEC_FULL.md §4).
func (u *ResourceUnit) updateLabelBucketOnDelete(labels LabelSet) {
	for k, v := range labels {
		bucket := u.labelBuckets[k]
		if bucket == nil {
			continue
		}
		bucket[v]--
		if bucket[v] <= 0 {
			delete(bucket, v)
		}
		if len(bucket) == 0 {
			delete(u.labelBuckets, k)
		}
	}
}

// AddInstance places an instance onto the unit, deducting its resources from
// Allocatable and indexing its labels.
func (u *ResourceUnit) AddInstance(inst InstanceInfo) {
	u.Instances[inst.InstanceID] = inst
	u.Allocatable.Sub(inst.Resources)
	u.addLabelBucket(inst.Labels)
}

// RemoveInstance evicts an instance, returning its resources to Allocatable
// and decrementing the label index — the deletion-delta the preemption
// controller's caller (and simulated cached-snapshot preemption, §4.1.2 step
// 3) applies.
func (u *ResourceUnit) RemoveInstance(instanceID string) (InstanceInfo, bool) {
	inst, ok := u.Instances[instanceID]
	if !ok {
		return InstanceInfo{}, false
	}
	delete(u.Instances, instanceID)
	u.Allocatable.Add(inst.Resources)
	u.updateLabelBucketOnDelete(inst.Labels)
	return inst, true
}

// Clone deep-copies a unit, used to build the cached snapshot a group
// performer mutates with simulated deletion-deltas without touching the
// live ResourceViewInfo (§4.1.2 step 3, §4.2).
func (u *ResourceUnit) Clone() *ResourceUnit {
	clone := &ResourceUnit{
		UnitID:      u.UnitID,
		OwnerID:     u.OwnerID,
		Allocatable: u.Allocatable.Clone(),
		Capacity:    u.Capacity.Clone(),
		ActualUse:   u.ActualUse.Clone(),
		Labels:      LabelSet{},
		Fragments:   map[string]*ResourceUnit{},
		Instances:   map[string]InstanceInfo{},
		labelBuckets: map[string]map[string]int{},
	}
	for k, v := range u.Labels {
		clone.Labels[k] = v
	}
	for id, f := range u.Fragments {
		clone.Fragments[id] = f.Clone()
	}
	for id, inst := range u.Instances {
		clone.Instances[id] = inst
	}
	for k, vs := range u.labelBuckets {
		m := make(map[string]int, len(vs))
		for v, c := range vs {
			m[v] = c
		}
		clone.labelBuckets[k] = m
	}
	return clone
}

// ResourceViewInfo is the immutable per-pass snapshot (§3): it is never
// mutated by the core once handed to a performer; a performer that needs to
// simulate preemption clones the unit it intends to mutate first.
type ResourceViewInfo struct {
	Units           map[string]*ResourceUnit
	AlreadyScheduled map[string]string // request-id -> unit-id

	// labelIndex is the cluster-wide label-key -> label-value -> count index
	// (§3).
	labelIndex map[string]map[string]int
}

// NewResourceViewInfo builds a snapshot from a flat slice of units, computing
// the label index once up front.
func NewResourceViewInfo(units []*ResourceUnit, alreadyScheduled map[string]string) *ResourceViewInfo {
	v := &ResourceViewInfo{
		Units:            lo.SliceToMap(units, func(u *ResourceUnit) (string, *ResourceUnit) { return u.UnitID, u }),
		AlreadyScheduled: alreadyScheduled,
		labelIndex:       map[string]map[string]int{},
	}
	if v.AlreadyScheduled == nil {
		v.AlreadyScheduled = map[string]string{}
	}
	for _, u := range units {
		for k, vs := range u.labelBuckets {
			if v.labelIndex[k] == nil {
				v.labelIndex[k] = map[string]int{}
			}
			for val, c := range vs {
				v.labelIndex[k][val] += c
			}
		}
	}
	return v
}

// Unit looks up a top-level unit by id.
func (v *ResourceViewInfo) Unit(unitID string) (*ResourceUnit, bool) {
	u, ok := v.Units[unitID]
	return u, ok
}

// Fragment resolves a (possibly nested) fragment/bundle id to its
// ResourceUnit, searching every top-level unit's fragment map (glossary:
// "Fragment / bundle").
func (v *ResourceViewInfo) Fragment(fragmentID string) (*ResourceUnit, bool) {
	if u, ok := v.Units[fragmentID]; ok {
		return u, true
	}
	for _, u := range v.Units {
		if f, ok := u.Fragments[fragmentID]; ok {
			return f, true
		}
	}
	return nil, false
}

// ResourceView is the consumed store contract (§6): the authoritative
// mutable store of units/instances/labels. The core never talks to it
// directly except through this interface, and only from the queue actor's
// single sequence (§5).
type ResourceView interface {
	// GetResourceInfo returns a future snapshot of the current cluster view.
	GetResourceInfo(ctx context.Context) *Future[*ResourceViewInfo]
	// AddInstances promotes pre-allocated reservations into the store.
	AddInstances(ctx context.Context, instances map[string]InstanceInfo) *Future[error]
	// DeleteInstances removes instances; virtual indicates a rollback of a
	// reservation that was never actually committed (no side effects beyond
	// bookkeeping) versus a real eviction.
	DeleteInstances(ctx context.Context, unitID string, instanceIDs []string, virtual bool) *Future[error]
	// GetFragment resolves a fragment/bundle id to its owning unit.
	GetFragment(ctx context.Context, unitID string) (*ResourceUnit, error)
	// UpdateUnitStatus applies an out-of-band status change to a unit (e.g.
	// cordon, capacity change).
	UpdateUnitStatus(ctx context.Context, unitID string, mutate func(*ResourceUnit)) error
}
