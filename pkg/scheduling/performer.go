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

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Performer is a common contract for the three variants (Instance, Group,
// Aggregate) (§4.1, §9 "sum type over the three variants with a common
// contract trait/interface ... avoid open polymorphism"). None of the three
// performer types satisfies it: each Schedule method takes its own item
// (ScheduleRequest, GroupSpec, []ScheduleRequest) as a further argument and
// returns its own result type, and PriorityScheduler.dispatch calls them
// directly by QueueItem variant.
type Performer interface {
	// Schedule drives one QueueItem through selection, preemption, and
	// pre-allocation.
	Schedule(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo) any
}

// base holds the state and helpers shared by every performer variant: the
// selector, the resource view contract, the preemption controller, and the
// allocate-mode options. Variants embed base rather than inherit from it
// (Go has no virtual inheritance, §9).
type base struct {
	selector     Selector
	view         ResourceView
	preemption   *PreemptionController
	allocateType AllocateType
}

func newBase(selector Selector, view ResourceView, preemption *PreemptionController, allocateType AllocateType) base {
	return base{selector: selector, view: view, preemption: preemption, allocateType: allocateType}
}

// DoSelectOne implements §4.1's DoSelectOne operation, shared by every
// performer variant.
func (b *base) DoSelectOne(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo, req ScheduleRequest) ScheduleResult {
	logger := log.FromContext(ctx).WithValues("requestID", req.RequestID)

	// Step 1: idempotence against already-scheduled requests.
	if unitID, ok := view.AlreadyScheduled[req.RequestID]; ok {
		logger.V(1).Info("request already scheduled", "unitID", unitID)
		return ScheduleResult{
			RequestID:     req.RequestID,
			UnitID:        unitID,
			LogicalUnitID: unitID,
			Code:          INSTANCE_ALLOCATED,
			Reason:        "request already present in alreadyScheduled",
		}
	}

	// Step 2: honor a prior group reservation if the unit still exists.
	if req.ReservedUnitID != "" {
		if _, ok := view.Unit(req.ReservedUnitID); ok {
			result := ScheduleResult{
				RequestID:     req.RequestID,
				UnitID:        req.ReservedUnitID,
				LogicalUnitID: req.ReservedUnitID,
				Code:          SUCCESS,
				Reason:        "honoring group-reserved unit",
			}
			b.preAllocate(pctx, view, req, req.ReservedUnitID, "", &result)
			return result
		}
	}

	// Step 3: call the selector for a single slot.
	results, err := b.selector.SelectFeasible(ctx, pctx, req, view, 1)
	if err != nil {
		return ScheduleResult{RequestID: req.RequestID, Code: FAILED, Reason: err.Error()}
	}
	if results.Code != SUCCESS {
		return ScheduleResult{RequestID: req.RequestID, Code: results.Code, Reason: results.Reason}
	}
	return b.SelectFromResults(ctx, pctx, view, req, results.Candidates, nil)
}

// SelectFromResults implements §4.1's SelectFromResults operation.
// sharedPreAllocatedCount, when non-nil, is the per-group bookkeeping of how
// much of a candidate's AvailableForRequest other members of the same batch
// have already consumed this pass.
func (b *base) SelectFromResults(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo, req ScheduleRequest, queue *CandidateQueue, sharedPreAllocatedCount map[string]int) ScheduleResult {
	for queue.Len() > 0 {
		candidate, ok := queue.Pop()
		if !ok {
			break
		}

		if candidate.AvailableForRequest == -1 {
			// Terminal logical candidate (bundle/fragment): unlimited for
			// this call, put back without decrement so later members may
			// pick it too.
			queue.PushBack(candidate)
			return b.resolveAndPreAllocate(pctx, view, req, candidate.UnitID, candidate.Product)
		}

		available := candidate.AvailableForRequest
		if sharedPreAllocatedCount != nil {
			if used := sharedPreAllocatedCount[candidate.UnitID]; used > 0 {
				available -= used
				if available <= 0 {
					continue
				}
			}
		}

		available--
		if sharedPreAllocatedCount != nil {
			sharedPreAllocatedCount[candidate.UnitID]++
		}
		if available > 0 {
			// With shared bookkeeping the queue keeps the selector's original
			// count and sharedPreAllocatedCount carries the usage; otherwise
			// the candidate itself carries the decremented count.
			if sharedPreAllocatedCount == nil {
				candidate.AvailableForRequest = available
			}
			queue.PushBack(candidate)
		}

		return b.resolveAndPreAllocate(pctx, view, req, candidate.UnitID, candidate.Product)
	}
	return ScheduleResult{RequestID: req.RequestID, Code: RESOURCE_NOT_ENOUGH, Reason: "candidate queue exhausted"}
}

// resolveAndPreAllocate resolves logical -> physical owner and invokes
// PreAllocated, building the ScheduleResult (§4.1 steps "Resolve logical ->
// physical" and "Invoke PreAllocated").
func (b *base) resolveAndPreAllocate(pctx *PreAllocatedContext, view *ResourceViewInfo, req ScheduleRequest, candidateID, product string) ScheduleResult {
	ownerID := candidateID
	if frag, ok := view.Fragment(candidateID); ok {
		ownerID = frag.Owner()
	}
	result := ScheduleResult{
		RequestID:     req.RequestID,
		UnitID:        ownerID,
		LogicalUnitID: candidateID,
		Code:          SUCCESS,
	}
	b.preAllocate(pctx, view, req, ownerID, product, &result)
	return result
}

// preAllocate implements §4.1's PreAllocated operation. product is the
// selector's resolved accelerator/slice product for this candidate (empty
// for a homogeneous request); it is recorded on the result as an
// AllocatedResult so a caller resolving heterogeneous demand learns which
// concrete product it was matched against (§4.1 PreAllocated heterogeneous-
// resource handling).
func (b *base) preAllocate(pctx *PreAllocatedContext, view *ResourceViewInfo, req ScheduleRequest, unitID, product string, result *ScheduleResult) {
	plain, hetero := SplitHeterogeneous(req.Resources)

	allocated := plain.Clone()
	if len(hetero) > 0 {
		allocated.Add(hetero)
	}
	ar := AllocatedResult{Product: product, Allocated: map[string]ResourceList{unitID: allocated}}

	result.Product = ar.Product
	if result.Allocated == nil {
		result.Allocated = map[string]ResourceList{}
	}
	for id, r := range ar.Allocated {
		result.Allocated[id] = r
	}
	result.SchedulerChain = append(result.SchedulerChain, unitID)

	pctx.accumulate(unitID, req.Resources, req.Labels)

	if b.allocateType == Allocation {
		promise := NewFuture[Code]()
		result.AllocationPromise = promise
		inst := InstanceInfo{
			InstanceID: req.InstanceID,
			RequestID:  req.RequestID,
			UnitID:     unitID,
			Resources:  req.Resources.Clone(),
			Labels:     req.Labels,
			Priority:   req.Options.Priority,
		}
		f := b.view.AddInstances(context.Background(), map[string]InstanceInfo{req.InstanceID: inst})
		go func() {
			addErr, waitErr := f.Wait(context.Background())
			if waitErr != nil || addErr != nil {
				promise.Fulfill(FAILED)
				return
			}
			promise.Fulfill(SUCCESS)
		}()
	}

	pctx.markSelected(req.InstanceID, unitID)
}

// rollbackOne implements §4.1.4's Rollback operation for a single
// instance's successful pre-allocation.
func (b *base) rollbackOne(ctx context.Context, pctx *PreAllocatedContext, req ScheduleRequest, result ScheduleResult) {
	if !result.Success() || result.UnitID == "" {
		return
	}
	pctx.rollback(result.UnitID, req.Resources, req.Labels)
	pctx.unmarkSelected(req.InstanceID, result.UnitID)

	if b.allocateType == Allocation {
		b.view.DeleteInstances(ctx, result.UnitID, []string{req.InstanceID}, true)
	}
}

// maybePreempt implements the Instance performer's preemption step
// (§4.1.1): if both a controller and a callback are registered, ask the
// controller for victims and hand a successful decision to the callback.
// The Group performer runs its own preemption retry in scheduleNormalOrRange.
func (b *base) maybePreempt(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo, req ScheduleRequest, unitID string, callback PreemptCallback) *PreemptResult {
	if b.preemption == nil || callback == nil {
		return nil
	}
	result := b.preemption.PreemptDecision(ctx, pctx, view, req, unitID)
	if result.Code == SUCCESS {
		callback(ctx, []PreemptResult{result})
	}
	return &result
}
