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

import "context"

// InstancePerformer schedules a single ScheduleRequest (§4.1.1).
type InstancePerformer struct {
	base
	PreemptCallback PreemptCallback
}

// NewInstancePerformer builds a performer for single-instance requests.
func NewInstancePerformer(selector Selector, view ResourceView, preemption *PreemptionController, allocateType AllocateType, callback PreemptCallback) *InstancePerformer {
	return &InstancePerformer{base: newBase(selector, view, preemption, allocateType), PreemptCallback: callback}
}

// Schedule runs DoSelectOne, then — per §4.1.1 — if the result needs
// preemption and a callback is registered, invokes the preemption controller
// once and the callback on success, but returns the ORIGINAL failure
// unchanged: the caller retries the instance through the pending-queue loop
// once the callback's eviction completes.
func (p *InstancePerformer) Schedule(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo, req ScheduleRequest) ScheduleResult {
	result := p.DoSelectOne(ctx, pctx, view, req)
	if result.Code.NeedsPreemption() {
		p.maybePreempt(ctx, pctx, view, req, result.UnitID, p.PreemptCallback)
	}
	return result
}

// Rollback undoes a successful pre-allocation (§4.1.4).
func (p *InstancePerformer) Rollback(ctx context.Context, pctx *PreAllocatedContext, req ScheduleRequest, result ScheduleResult) {
	p.rollbackOne(ctx, pctx, req, result)
}
