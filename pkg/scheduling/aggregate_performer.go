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

// AggregatePerformer schedules a deque of similar instances (same spec)
// with one selector call sized to the deque length (§4.1.3).
type AggregatePerformer struct {
	base
}

// NewAggregatePerformer builds a performer for batched same-spec instances.
func NewAggregatePerformer(selector Selector, view ResourceView, preemption *PreemptionController, allocateType AllocateType) *AggregatePerformer {
	return &AggregatePerformer{base: newBase(selector, view, preemption, allocateType)}
}

// Schedule implements §4.1.3: one selector call, then each member iterates
// through SelectFromResults sharing the same preAllocatedCount bookkeeping,
// returning results in input order.
func (p *AggregatePerformer) Schedule(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo, items []ScheduleRequest) []ScheduleResult {
	results := make([]ScheduleResult, len(items))
	if len(items) == 0 {
		return results
	}

	selected, err := p.selector.SelectFeasible(ctx, pctx, items[0], view, len(items))
	if err != nil {
		for i, r := range items {
			results[i] = ScheduleResult{RequestID: r.RequestID, Code: FAILED, Reason: err.Error()}
		}
		return results
	}
	if selected.Code != SUCCESS {
		for i, r := range items {
			results[i] = ScheduleResult{RequestID: r.RequestID, Code: selected.Code, Reason: selected.Reason}
		}
		return results
	}

	shared := map[string]int{}
	for i, r := range items {
		results[i] = p.SelectFromResults(ctx, pctx, view, r, selected.Candidates, shared)
	}
	return results
}

// CancelMember rolls back exactly one member of the aggregate, as required
// by §4.1.3 ("cancellation of any member during the pass triggers a
// rollback of that member only").
func (p *AggregatePerformer) CancelMember(ctx context.Context, pctx *PreAllocatedContext, req ScheduleRequest, result ScheduleResult) {
	p.rollbackOne(ctx, pctx, req, result)
}
