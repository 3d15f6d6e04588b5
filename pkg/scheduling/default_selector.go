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
	"k8s.io/apimachinery/pkg/api/resource"
)

// DefaultSelector is the production Selector (§6): it ranks units by
// most-allocatable-after-this-pass's-own-accumulation, a plain bin-packing
// heuristic good enough to drive the simulator and serve as the selector a
// caller without a custom feasibility-scoring framework falls back to.
type DefaultSelector struct{}

// NewDefaultSelector builds the stateless default selector.
func NewDefaultSelector() *DefaultSelector {
	return &DefaultSelector{}
}

// SelectFeasible ranks every unit whose Allocatable (net of what this pass
// has already reserved against it via pctx) can host req.Resources,
// descending by the sum of its remaining quantities (scoreRemaining).
func (s *DefaultSelector) SelectFeasible(ctx context.Context, pctx *PreAllocatedContext, req ScheduleRequest, view *ResourceViewInfo, expectedFeasible int) (ScheduleResults, error) {
	candidates := make([]NodeScore, 0, len(view.Units))
	for id, unit := range view.Units {
		remaining := unit.Allocatable.Clone()
		if reserved, ok := pctx.Allocated[id]; ok {
			remaining.Sub(reserved)
		}
		if !req.Resources.LessOrEqual(remaining) {
			continue
		}
		if !matchesAffinity(unit, req.Affinity) {
			continue
		}
		candidates = append(candidates, NodeScore{
			UnitID:              id,
			Score:               scoreRemaining(remaining),
			AvailableForRequest: expectedFeasible,
			Product:             unit.Labels["product"],
		})
	}

	if len(candidates) == 0 {
		code := RESOURCE_NOT_ENOUGH
		if len(req.Affinity.Requires) > 0 {
			code = AFFINITY_SCHEDULE_FAILED
		}
		return ScheduleResults{Code: code, Reason: "no unit satisfies resources and affinity"}, nil
	}

	return ScheduleResults{Code: SUCCESS, Candidates: NewCandidateQueue(candidates)}, nil
}

// matchesAffinity reports whether unit satisfies every key/value constraint
// in req (an empty value constrains only key-presence).
func matchesAffinity(unit *ResourceUnit, req Affinity) bool {
	for k, v := range req.Requires {
		got, ok := unit.Labels[k]
		if !ok {
			return false
		}
		if v != "" && got != v {
			return false
		}
	}
	return true
}

// scoreRemaining folds a resource vector down to a single comparable score:
// the sum of each quantity's approximate float value, weighted equally.
func scoreRemaining(r ResourceList) float64 {
	return lo.SumBy(lo.Values(r), func(q resource.Quantity) float64 {
		return q.AsApproximateFloat64()
	})
}
