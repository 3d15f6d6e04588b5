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
	"sort"

	"golang.org/x/time/rate"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// PreemptResult is the preemption controller's output (§4.2).
type PreemptResult struct {
	Code    Code
	UnitID  string
	Victims []InstanceInfo
}

// PreemptCallback is the caller-provided eviction side-effect hook (§6): the
// controller only decides victims, the caller performs the actual eviction.
type PreemptCallback func(ctx context.Context, decisions []PreemptResult) *Future[Code]

// PreemptionController selects victims on the cached snapshot only; it never
// mutates the live resource view (§4.2).
type PreemptionController struct {
	// limiter throttles how often the controller will attempt a victim
	// search at all, the Go-native analogue of the upstream
	// preemptAttemptFrequency gate in Preemptor.CheckPreconditions. A nil
	// limiter (the default) never throttles.
	limiter *rate.Limiter
}

// PreemptionOption mutates a PreemptionController at construction time.
type PreemptionOption func(*PreemptionController)

// WithPreemptAttemptLimit rate-limits how often PreemptDecision will run its
// victim search with one token bucket shared by every call on this
// controller: each PreemptDecision call takes a token, including the
// per-unit calls made when unitID is empty, and a call finding none returns
// DOMAIN_SCHEDULER_NO_PREEMPTABLE_INSTANCE.
func WithPreemptAttemptLimit(r rate.Limit, burst int) PreemptionOption {
	return func(p *PreemptionController) { p.limiter = rate.NewLimiter(r, burst) }
}

// NewPreemptionController builds a controller. With no options it carries no
// state: every call is pure over the (view, request, unit) triple handed to
// it.
func NewPreemptionController(opts ...PreemptionOption) *PreemptionController {
	p := &PreemptionController{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PreemptDecision implements §4.2: select a minimal set of lower-priority
// instances on unitID whose removal would make req feasible. An empty
// unitID means the caller has no specific unit in mind (a feasibility
// failure from DoSelectOne carries none, since the candidate queue was
// exhausted rather than pinned to one unit); the controller then considers
// every unit in the snapshot and returns the first that can be made to fit.
func (p *PreemptionController) PreemptDecision(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo, req ScheduleRequest, unitID string) PreemptResult {
	logger := log.FromContext(ctx).WithValues("requestID", req.RequestID, "unitID", unitID)

	if p.limiter != nil && !p.limiter.Allow() {
		logger.V(1).Info("preemption attempt rate-limited")
		return PreemptResult{Code: DOMAIN_SCHEDULER_NO_PREEMPTABLE_INSTANCE, UnitID: unitID}
	}

	if unitID == "" {
		for id := range view.Units {
			if result := p.PreemptDecision(ctx, pctx, view, req, id); result.Code == SUCCESS {
				return result
			}
		}
		return PreemptResult{Code: DOMAIN_SCHEDULER_NO_PREEMPTABLE_INSTANCE}
	}

	unit, ok := view.Unit(unitID)
	if !ok {
		return PreemptResult{Code: DOMAIN_SCHEDULER_NO_PREEMPTABLE_INSTANCE, UnitID: unitID}
	}

	candidates := make([]InstanceInfo, 0, len(unit.Instances))
	for _, inst := range unit.Instances {
		if inst.Priority < req.Options.Priority {
			candidates = append(candidates, inst)
		}
	}
	if len(candidates) == 0 {
		logger.V(1).Info("no preemptable instance found")
		return PreemptResult{Code: DOMAIN_SCHEDULER_NO_PREEMPTABLE_INSTANCE, UnitID: unitID}
	}

	// Ties broken by most-recently-scheduled first (§4.2).
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].ScheduledAt > candidates[j].ScheduledAt
	})

	needed := req.Resources.Clone()
	allocated := pctx.Allocated[unitID]
	freed := ResourceList{}
	victims := make([]InstanceInfo, 0, len(candidates))
	for _, c := range candidates {
		if fits(unit, allocated, freed, needed) {
			break
		}
		victims = append(victims, c)
		freed.Add(c.Resources)
	}

	if !fits(unit, allocated, freed, needed) {
		logger.V(1).Info("insufficient capacity even after evicting all lower-priority instances")
		PreemptionsTotal.WithLabelValues(DOMAIN_SCHEDULER_NO_PREEMPTABLE_INSTANCE.String()).Inc()
		return PreemptResult{Code: DOMAIN_SCHEDULER_NO_PREEMPTABLE_INSTANCE, UnitID: unitID}
	}

	logger.Info("selected preemption victims", "count", len(victims))
	PreemptionsTotal.WithLabelValues(SUCCESS.String()).Inc()
	return PreemptResult{Code: SUCCESS, UnitID: unitID, Victims: victims}
}

// fits reports whether unit.Allocatable, adjusted by allocated-this-pass and
// freed-by-simulated-eviction, can host needed.
func fits(unit *ResourceUnit, allocated ResourceList, freed ResourceList, needed ResourceList) bool {
	available := unit.Allocatable.Clone()
	available.Sub(allocated)
	available.Add(freed)
	return needed.LessOrEqual(available)
}

// ApplySimulatedDeletion mutates a cloned unit to reflect a simulated
// preemption, the deletion-delta (resources returned, labels decremented,
// bucket info updated) the group performer applies to its cached snapshot
// (§4.1.2 step 3, §4.2 "lets the performer apply deletion-deltas").
func ApplySimulatedDeletion(unit *ResourceUnit, victims []InstanceInfo) {
	for _, v := range victims {
		unit.RemoveInstance(v.InstanceID)
	}
}
