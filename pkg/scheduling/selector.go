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
	"container/heap"
	"context"
)

// NodeScore is one ranked candidate returned by the selector (§6). A
// candidate carrying AvailableForRequest == -1 is a terminal logical
// candidate (bundle/fragment), usable for an unlimited number of instances
// in this call (§4.1 SelectFromResults).
type NodeScore struct {
	UnitID              string
	Score               float64
	AvailableForRequest int

	// Product names the concrete accelerator/slice product the selector
	// resolved this candidate to, when the request carries heterogeneous
	// (accelerator) resource keys (§4.1 PreAllocated heterogeneous-resource
	// handling). Empty for a plain, homogeneous candidate.
	Product string
}

// candidateHeap is a max-heap over NodeScore ordered by Score, the same
// container/heap shape the pack's pod scheduling queue uses.
type candidateHeap []NodeScore

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool   { return h[i].Score > h[j].Score }
func (h candidateHeap) Swap(i, j int)        { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{})  { *h = append(*h, x.(NodeScore)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// CandidateQueue is the priority queue of ranked candidates SelectFeasible
// returns (§6, §4.1). Higher Score pops first.
type CandidateQueue struct {
	h candidateHeap
}

// NewCandidateQueue builds a queue from an unordered slice of scored
// candidates.
func NewCandidateQueue(candidates []NodeScore) *CandidateQueue {
	h := make(candidateHeap, len(candidates))
	copy(h, candidates)
	heap.Init(&h)
	return &CandidateQueue{h: h}
}

// Len reports the number of remaining candidates.
func (q *CandidateQueue) Len() int { return q.h.Len() }

// Pop removes and returns the highest-scored remaining candidate.
func (q *CandidateQueue) Pop() (NodeScore, bool) {
	if q.h.Len() == 0 {
		return NodeScore{}, false
	}
	return heap.Pop(&q.h).(NodeScore), true
}

// PushBack re-inserts a candidate that still has remaining capacity
// (§4.1 SelectFromResults: "push it back so subsequent instances may also
// pick it").
func (q *CandidateQueue) PushBack(c NodeScore) {
	heap.Push(&q.h, c)
}

// ScheduleResults is what SelectFeasible returns (§6).
type ScheduleResults struct {
	Code       Code
	Reason     string
	Candidates *CandidateQueue
}

// Selector is the consumed feasibility-scoring framework contract (§6,
// glossary "Feasibility selector"): a black box that, given a request and a
// unit, returns a ranked feasible-unit queue. The core never inspects its
// internals.
type Selector interface {
	SelectFeasible(ctx context.Context, pctx *PreAllocatedContext, req ScheduleRequest, view *ResourceViewInfo, expectedFeasible int) (ScheduleResults, error)
}
