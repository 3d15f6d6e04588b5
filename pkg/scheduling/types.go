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
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
)

// ResourceList is a resource vector keyed by resource name (cpu, memory,
// nvidia.com/gpu, ...), the same representation corev1.ResourceList uses.
type ResourceList map[string]resource.Quantity

// Clone returns a deep copy of the vector.
func (r ResourceList) Clone() ResourceList {
	out := make(ResourceList, len(r))
	for k, v := range r {
		out[k] = v.DeepCopy()
	}
	return out
}

// Add accumulates other into r in place.
func (r ResourceList) Add(other ResourceList) {
	for k, v := range other {
		q := r[k]
		q.Add(v)
		r[k] = q
	}
}

// Sub subtracts other from r in place.
func (r ResourceList) Sub(other ResourceList) {
	for k, v := range other {
		q := r[k]
		q.Sub(v)
		r[k] = q
	}
}

// LessOrEqual reports whether every quantity in r is <= the matching quantity
// in cap (a missing key in r is treated as zero).
func (r ResourceList) LessOrEqual(cap ResourceList) bool {
	for k, v := range r {
		c := cap[k]
		if v.Cmp(c) > 0 {
			return false
		}
	}
	return true
}

// Heterogeneous reports whether a resource key names an accelerator slice
// (e.g. "nvidia.com/gpu/0"), the convention used by PreAllocated to split
// heterogeneous keys out of the plain demand vector (§4.1).
func Heterogeneous(key string) bool {
	return strings.Contains(key, "/")
}

// SplitHeterogeneous partitions a resource vector into its plain and
// heterogeneous (accelerator, slash-qualified) subsets.
func SplitHeterogeneous(r ResourceList) (plain, hetero ResourceList) {
	plain = ResourceList{}
	hetero = ResourceList{}
	for k, v := range r {
		if Heterogeneous(k) {
			hetero[k] = v
		} else {
			plain[k] = v
		}
	}
	return plain, hetero
}

// LabelSet is a simple label-key -> label-value map.
type LabelSet map[string]string

// Affinity is a restricted expression over LabelSet used both as a hard
// scheduling constraint and as the fairness pending-affinity fingerprint
// (§4.3). A nil/empty Affinity matches everything.
type Affinity struct {
	// Requires is a set of label keys (with optional exact values) the
	// target resource unit must satisfy. An empty value means "key present,
	// any value".
	Requires LabelSet
}

// IsSupersetOf reports whether a is a superset of other: every constraint in
// other is also present (and equally or more permissive) in a. Per the
// pending-affinity superset rule, Enqueue uses this to decide whether a
// newly arriving item is already known-unsatisfiable because of a broader,
// already-queued affinity.
func (a Affinity) IsSupersetOf(other Affinity) bool {
	if len(other.Requires) == 0 {
		return true
	}
	if len(a.Requires) == 0 {
		return false
	}
	for k, v := range other.Requires {
		av, ok := a.Requires[k]
		if !ok {
			return false
		}
		if av != "" && av != v {
			return false
		}
	}
	return true
}

// Equal reports whether two affinities express the same constraint set,
// used to recognize "a strictly different item" per the fairness contract.
func (a Affinity) Equal(other Affinity) bool {
	return a.IsSupersetOf(other) && other.IsSupersetOf(a)
}

// SchedulingOptions carries the per-request scheduling configuration named in
// §3: a priority scalar (used by the preemption controller's victim
// ordering) plus any request-scoped toggles.
type SchedulingOptions struct {
	Priority        int32
	PreemptEnabled  bool
	AllowBestEffort bool
}

// ScheduleRequest is a single instance's demand (§3).
type ScheduleRequest struct {
	RequestID string
	TraceID   string

	InstanceID string
	GroupID    string

	Resources ResourceList
	Labels    LabelSet
	Options   SchedulingOptions
	Affinity  Affinity

	// PluginContext is an opaque map plugins may use to share per-request
	// state across selector calls within the same pass.
	PluginContext map[string]any

	// ReservedUnitID is set when a prior group decision reserved a unit for
	// this instance (§4.1 step 2).
	ReservedUnitID string
}

// RangeOption describes a Range group's elasticity (§3, §4.1.2).
type RangeOption struct {
	IsRange bool
	Min     int
	Max     int
	Step    int
}

// GroupPolicy enumerates the three group scheduling policies (§3).
type GroupPolicy int

const (
	PolicyNormal GroupPolicy = iota
	PolicyStrictPack
	PolicyRange
)

// GroupSpec is an ordered collection of ScheduleRequests sharing a group-id
// (§3).
type GroupSpec struct {
	GroupID  string
	Requests []ScheduleRequest
	Policy   GroupPolicy
	Range    RangeOption
	Priority int32
	Timeout  int64 // milliseconds; 0 means no timeout
}

// InstanceInfo describes one instance currently allocated on a ResourceUnit
// (§3).
type InstanceInfo struct {
	InstanceID string
	RequestID  string
	UnitID     string
	Resources  ResourceList
	Labels     LabelSet
	Priority   int32
	// ScheduledAt orders instances for preemption tie-breaking
	// (most-recently-scheduled-first, §4.2); higher is more recent.
	ScheduledAt int64
}

// AllocatedResult is the per-instance resource bookkeeping produced by
// PreAllocated (§4.1): the decoded allocated vectors, keyed the same way as
// ScheduleRequest.Resources once heterogeneous keys are resolved.
type AllocatedResult struct {
	Product   string
	Allocated map[string]ResourceList
}

// ScheduleResult is the outcome for one instance (§3).
type ScheduleResult struct {
	RequestID string

	// UnitID is the selected unit after resolving logical -> owner.
	UnitID string
	// LogicalUnitID is the original (possibly fragment/bundle) candidate id,
	// preserved per the Design Notes' logical-vs-physical rule (§9).
	LogicalUnitID string

	Code   Code
	Reason string

	Product   string
	Allocated map[string]ResourceList

	// SchedulerChain records each unit-id this instance passed through
	// during selection (§4.1 PreAllocated).
	SchedulerChain []string

	// AllocationPromise is set only in Allocation mode. It is fulfilled with
	// SUCCESS once preAllocate's write of this reservation into the resource
	// view completes, or FAILED if that write fails. It is not fulfilled by
	// Confirm.
	AllocationPromise *Future[Code]
}

// Success reports whether this individual result should count toward a
// group's successCount.
func (r ScheduleResult) Success() bool {
	return r.Code.IsSuccess()
}

// GroupScheduleResult is the aggregate outcome for a GroupSpec (§3).
type GroupScheduleResult struct {
	Code    Code
	Reason  string
	Results []ScheduleResult
}
