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
	"math"

	"github.com/mitchellh/hashstructure/v2"
	"go.uber.org/multierr"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// GroupPerformer dispatches a GroupSpec onto the StrictPack, Range, or
// Normal policy (§4.1.2).
type GroupPerformer struct {
	base
	PreemptCallback PreemptCallback
}

// NewGroupPerformer builds a performer for grouped requests.
func NewGroupPerformer(selector Selector, view ResourceView, preemption *PreemptionController, allocateType AllocateType, callback PreemptCallback) *GroupPerformer {
	return &GroupPerformer{base: newBase(selector, view, preemption, allocateType), PreemptCallback: callback}
}

// Schedule implements §4.1.2's group dispatch.
func (p *GroupPerformer) Schedule(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo, spec GroupSpec) GroupScheduleResult {
	switch spec.Policy {
	case PolicyStrictPack:
		return p.scheduleStrictPack(ctx, pctx, view, spec)
	default:
		return p.scheduleNormalOrRange(ctx, pctx, view, spec)
	}
}

// scheduleStrictPack implements §4.1.2's StrictPack branch: construct a
// virtual item summing every member's resources, DoSelectOne it, and on
// success fan the same unit result out to every member without
// re-registering duplicates.
func (p *GroupPerformer) scheduleStrictPack(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo, spec GroupSpec) GroupScheduleResult {
	if len(spec.Requests) == 0 {
		return GroupScheduleResult{Code: SUCCESS}
	}

	virtual := spec.Requests[0]
	virtual.RequestID = spec.GroupID + "/virtual"
	virtual.InstanceID = spec.GroupID + "/virtual"
	virtual.Resources = ResourceList{}
	for _, r := range spec.Requests {
		virtual.Resources.Add(r.Resources)
	}

	virtualResult := p.DoSelectOne(ctx, pctx, view, virtual)
	if !virtualResult.Success() {
		return GroupScheduleResult{Code: virtualResult.Code, Reason: virtualResult.Reason}
	}

	results := make([]ScheduleResult, len(spec.Requests))
	for i, r := range spec.Requests {
		results[i] = ScheduleResult{
			RequestID:     r.RequestID,
			UnitID:        virtualResult.UnitID,
			LogicalUnitID: virtualResult.LogicalUnitID,
			Code:          SUCCESS,
			Allocated:     virtualResult.Allocated,
		}
	}
	return GroupScheduleResult{Code: SUCCESS, Results: results}
}

// canBatch implements §4.1.2 step 1: true iff the group's range option is
// set and every member shares an identical spec (resources, labels and
// affinity, hashed; see DESIGN.md domain-stack wiring of hashstructure). It
// does not separately check members' labels against an anti-affinity
// constraint; Affinity carries only required labels.
func canBatch(spec GroupSpec) bool {
	if !spec.Range.IsRange || len(spec.Requests) == 0 {
		return false
	}
	first, err := hashstructure.Hash(specFingerprint(spec.Requests[0]), hashstructure.FormatV2, nil)
	if err != nil {
		return false
	}
	for _, r := range spec.Requests[1:] {
		h, err := hashstructure.Hash(specFingerprint(r), hashstructure.FormatV2, nil)
		if err != nil || h != first {
			return false
		}
	}
	return true
}

// specFingerprint extracts the fields that must match for two requests to
// be considered "identical specs" for batching purposes (request/instance
// identity is deliberately excluded).
type fingerprint struct {
	Resources ResourceList
	Labels    LabelSet
	Affinity  Affinity
}

func specFingerprint(r ScheduleRequest) fingerprint {
	return fingerprint{Resources: r.Resources, Labels: r.Labels, Affinity: r.Affinity}
}

// scheduleNormalOrRange implements §4.1.2's Normal/Range branch.
func (p *GroupPerformer) scheduleNormalOrRange(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo, spec GroupSpec) GroupScheduleResult {
	logger := log.FromContext(ctx).WithValues("groupID", spec.GroupID)

	results := make([]ScheduleResult, 0, len(spec.Requests))
	var aggErr error
	successCount := 0

	var cachedView *ResourceViewInfo // lazily cloned snapshot for simulated preemption
	snapshotFor := func() *ResourceViewInfo {
		if cachedView == nil {
			cachedView = cloneView(view)
		}
		return cachedView
	}

	if canBatch(spec) {
		batchResults, err := p.selector.SelectFeasible(ctx, pctx, spec.Requests[0], view, len(spec.Requests))
		if err != nil || batchResults.Code != SUCCESS {
			// Falls through to per-member sequential scheduling below if the
			// batched call itself fails outright, mirroring the original's
			// fallback to DoSelectOne per member.
		} else {
			shared := map[string]int{}
			for _, r := range spec.Requests {
				result := p.SelectFromResults(ctx, pctx, view, r, batchResults.Candidates, shared)
				results = append(results, result)
				if result.Success() {
					successCount++
				} else {
					aggErr = multierr.Append(aggErr, NewStatusError(result.Code, result.Reason))
				}
			}
			return p.finishGroup(ctx, pctx, spec, results, successCount, aggErr)
		}
	}

	for _, r := range spec.Requests {
		result := p.DoSelectOne(ctx, pctx, view, r)
		if result.Success() {
			successCount++
			results = append(results, result)
			continue
		}

		if p.preemption != nil && result.Code.NeedsPreemption() && spec.Requests[0].Options.PreemptEnabled && successCount < spec.Range.Min {
			sim := snapshotFor()
			preempted := p.preemption.PreemptDecision(ctx, pctx, sim, r, result.UnitID)
			if preempted.Code == SUCCESS {
				unit, _ := sim.Unit(preempted.UnitID)
				ApplySimulatedDeletion(unit, preempted.Victims)
				retried := p.DoSelectOne(ctx, pctx, sim, r)
				if retried.Success() {
					successCount++
					results = append(results, retried)
					if p.PreemptCallback != nil {
						p.PreemptCallback(ctx, []PreemptResult{preempted})
					}
					continue
				}
			}
		}

		results = append(results, result)
		aggErr = multierr.Append(aggErr, NewStatusError(result.Code, result.Reason))

		if !result.Code.IsRecoverable() {
			logger.V(1).Info("member failed with unpreemptable condition, stopping group scheduling", "requestID", r.RequestID)
			break
		}
	}

	return p.finishGroup(ctx, pctx, spec, results, successCount, aggErr)
}

// finishGroup applies range truncation (§4.1.2's "Range truncation" rule)
// and produces the aggregate GroupScheduleResult (§3, §7: group succeeds iff
// every required member succeeded or the range minimum is met).
func (p *GroupPerformer) finishGroup(ctx context.Context, pctx *PreAllocatedContext, spec GroupSpec, results []ScheduleResult, successCount int, aggErr error) GroupScheduleResult {
	if spec.Range.IsRange && successCount > spec.Range.Min {
		stepCount := ceilToStep(spec.Range.Max-successCount, spec.Range.Step) * spec.Range.Step
		reserved := max(spec.Range.Min, spec.Range.Max-stepCount)
		results = p.truncate(ctx, pctx, spec, results, reserved)
		successCount = reserved
	}

	if spec.Range.IsRange {
		if successCount < spec.Range.Min {
			return GroupScheduleResult{Code: FAILED, Reason: "range minimum not met", Results: results}
		}
		return GroupScheduleResult{Code: SUCCESS, Results: results}
	}

	if successCount < len(spec.Requests) {
		reason := ""
		if aggErr != nil {
			reason = aggErr.Error()
		}
		return GroupScheduleResult{Code: firstFailureCode(results), Reason: reason, Results: results}
	}
	return GroupScheduleResult{Code: SUCCESS, Results: results}
}

// firstFailureCode implements group_schedule_performer.cpp's
// DoCollectGroupResult rule (groupResult.code = result.code, taken from the
// first failing member) so a group that fails on a recoverable code (e.g.
// RESOURCE_NOT_ENOUGH) is still routed to pending by routeGroup instead of
// being dropped as a flat FAILED.
func firstFailureCode(results []ScheduleResult) Code {
	for _, r := range results {
		if !r.Success() {
			return r.Code
		}
	}
	return FAILED
}

// ceilToStep computes ceil(numerator/step) the way §4.1.2's range-truncation
// formula needs it (stepCount = ceil((max-successCount)/step) * step).
func ceilToStep(numerator, step int) int {
	if step <= 0 {
		return 0
	}
	return int(math.Ceil(float64(numerator) / float64(step)))
}

// truncate keeps the first `reserved` successful results (in schedule
// order) and rolls back the rest. SPEC_FULL.md §4 resolves the off-by-one
// Open Question: the rollback target for a dropped result is the request
// with that result's own RequestID, not a pre-incremented position into the
// full member list.
func (p *GroupPerformer) truncate(ctx context.Context, pctx *PreAllocatedContext, spec GroupSpec, results []ScheduleResult, reserved int) []ScheduleResult {
	successIdx := 0
	kept := make([]ScheduleResult, 0, len(results))
	reqByID := map[string]ScheduleRequest{}
	for _, r := range spec.Requests {
		reqByID[r.RequestID] = r
	}
	for _, result := range results {
		if !result.Success() {
			kept = append(kept, result)
			continue
		}
		if successIdx < reserved {
			kept = append(kept, result)
		} else {
			if req, ok := reqByID[result.RequestID]; ok {
				p.rollbackOne(ctx, pctx, req, result)
			}
			kept = append(kept, ScheduleResult{RequestID: result.RequestID, Code: FAILED, Reason: "dropped by range truncation"})
		}
		successIdx++
	}
	return kept
}

// cloneView builds a mutable copy of every unit in view for simulated
// preemption, leaving the original ResourceViewInfo untouched (§4.1.2 step
// 3, §5 "Snapshots are immutable").
func cloneView(view *ResourceViewInfo) *ResourceViewInfo {
	units := make([]*ResourceUnit, 0, len(view.Units))
	for _, u := range view.Units {
		units = append(units, u.Clone())
	}
	scheduled := make(map[string]string, len(view.AlreadyScheduled))
	for k, v := range view.AlreadyScheduled {
		scheduled[k] = v
	}
	return NewResourceViewInfo(units, scheduled)
}
