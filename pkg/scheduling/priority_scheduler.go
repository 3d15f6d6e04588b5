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
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// ScheduledItem is the priority scheduler's unit of work: an already-typed
// QueueItem variant plus the bookkeeping the scheduler needs (priority and
// affinity) without caring which variant it wraps.
type ScheduledItem struct {
	Priority int32
	Affinity Affinity
	Item     QueueItem
}

// QueueItem is the sum type named in §3: exactly one of Instance, Group, or
// Aggregated is set. Go has no tagged unions, so this mirrors the pattern
// the Design Notes call for (§9 "sum type over the three variants").
type QueueItem struct {
	Instance   *InstanceQueueItem
	Group      *GroupQueueItem
	Aggregated *AggregatedQueueItem
}

// InstanceQueueItem is the InstanceItem variant (§3).
type InstanceQueueItem struct {
	Request ScheduleRequest
	Result  *Future[ScheduleResult]
	Cancel  context.Context
}

// GroupQueueItem is the GroupItem variant (§3).
type GroupQueueItem struct {
	Spec   GroupSpec
	Result *Future[GroupScheduleResult]
	Cancel context.Context
}

// AggregateMember pairs one request in an AggregatedItem with its own
// cancellation signal and result promise, so that canceling one member
// during the pass rolls back that member only (§4.1.3) rather than the
// whole batch.
type AggregateMember struct {
	Request ScheduleRequest
	Result  *Future[ScheduleResult]
	Cancel  context.Context
}

// AggregatedQueueItem is the AggregatedItem variant (§3): a deque of
// same-spec instances, each carrying its own Cancel/Result per
// AggregateMember.
type AggregatedQueueItem struct {
	Members []AggregateMember
}

// priorityBucket is a FIFO sub-queue for one priority level (§4.3: "items
// are consumed in enqueue order (FIFO within priority)").
type priorityBucket []ScheduledItem

// PriorityScheduler owns the running and pending queues (§4.3).
type PriorityScheduler struct {
	policy      PriorityPolicy
	maxPriority int32

	running priorityBucketSet
	pending priorityBucketSet

	affinityIndex *pendingAffinityIndex

	instancePerformer  *InstancePerformer
	groupPerformer     *GroupPerformer
	aggregatePerformer *AggregatePerformer
}

// priorityBucketSet indexes priorityBuckets 0..maxPriority.
type priorityBucketSet map[int32]priorityBucket

// NewPriorityScheduler builds a scheduler bound to the three performer
// variants that will actually drive each QueueItem through selection
// (§4.3, §2 "System Overview" data-flow).
func NewPriorityScheduler(opts Options, instance *InstancePerformer, group *GroupPerformer, aggregate *AggregatePerformer) *PriorityScheduler {
	return &PriorityScheduler{
		policy:             opts.Priority,
		maxPriority:        opts.MaxPriority,
		running:            priorityBucketSet{},
		pending:            priorityBucketSet{},
		affinityIndex:      newPendingAffinityIndex(opts.PendingAffinityTTL),
		instancePerformer:  instance,
		groupPerformer:     group,
		aggregatePerformer: aggregate,
	}
}

// Enqueue implements §4.3's Enqueue operation.
func (s *PriorityScheduler) Enqueue(item ScheduledItem) {
	if s.policy == Fairness && s.affinityIndex.blocks(item.Priority, item.Affinity) {
		s.pending[item.Priority] = append(s.pending[item.Priority], item)
		return
	}
	s.running[item.Priority] = append(s.running[item.Priority], item)
}

// RunningLen reports the number of items waiting across every running
// priority bucket.
func (s *PriorityScheduler) RunningLen() int {
	n := 0
	for _, b := range s.running {
		n += len(b)
	}
	return n
}

// PendingLen reports the number of items waiting across every pending
// priority bucket.
func (s *PriorityScheduler) PendingLen() int {
	n := 0
	for _, b := range s.pending {
		n += len(b)
	}
	return n
}

// ConsumeRunningQueue implements §4.3's ConsumeRunningQueue operation:
// iterate sub-queues from highest priority downward, dispatch each item to
// its performer, and route the outcome.
func (s *PriorityScheduler) ConsumeRunningQueue(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo) {
	start := time.Now()
	defer func() {
		PassDurationSeconds.WithLabelValues(s.policyLabel()).Observe(time.Since(start).Seconds())
	}()

	logger := log.FromContext(ctx)
	for p := s.maxPriority; p >= 0; p-- {
		bucket := s.running[p]
		if len(bucket) == 0 {
			continue
		}
		delete(s.running, p)
		for _, item := range bucket {
			if item.Item.Cancel() {
				s.completeCanceled(item)
				continue
			}
			s.dispatch(ctx, pctx, view, item)
		}
		logger.V(2).Info("drained running priority bucket", "priority", p, "count", len(bucket))
	}
}

// ctxDone reports whether ctx is non-nil and already canceled.
func ctxDone(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Cancel reports whether a QueueItem's cancel signal has already fired
// (§4.4 "Cancellation"). For an Aggregated item this is true only once
// every member has been canceled; a partially-canceled batch is still
// dispatched so dispatchAggregated can roll back the canceled members
// individually (§4.1.3).
func (q QueueItem) Cancel() bool {
	switch {
	case q.Instance != nil:
		return ctxDone(q.Instance.Cancel)
	case q.Group != nil:
		return ctxDone(q.Group.Cancel)
	case q.Aggregated != nil:
		if len(q.Aggregated.Members) == 0 {
			return false
		}
		for _, m := range q.Aggregated.Members {
			if !ctxDone(m.Cancel) {
				return false
			}
		}
		return true
	}
	return false
}

func (s *PriorityScheduler) completeCanceled(item ScheduledItem) {
	switch {
	case item.Item.Instance != nil:
		item.Item.Instance.Result.Fulfill(ScheduleResult{RequestID: item.Item.Instance.Request.RequestID, Code: ERR_SCHEDULE_CANCELED})
	case item.Item.Group != nil:
		item.Item.Group.Result.Fulfill(GroupScheduleResult{Code: ERR_SCHEDULE_CANCELED})
	case item.Item.Aggregated != nil:
		for _, m := range item.Item.Aggregated.Members {
			m.Result.Fulfill(ScheduleResult{RequestID: m.Request.RequestID, Code: ERR_SCHEDULE_CANCELED})
		}
	}
}

// dispatch implements the per-variant half of ConsumeRunningQueue: call the
// right performer, then route the outcome per §4.3 ("on success fulfil the
// promise; on RESOURCE_NOT_ENOUGH or AFFINITY_SCHEDULE_FAILED move the item
// to pending; on any other non-success fulfil the promise with that
// status").
func (s *PriorityScheduler) dispatch(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo, item ScheduledItem) {
	switch {
	case item.Item.Instance != nil:
		req := item.Item.Instance.Request
		result := s.instancePerformer.Schedule(ctx, pctx, view, req)
		s.routeInstance(item, result)

	case item.Item.Group != nil:
		spec := item.Item.Group.Spec
		result := s.groupPerformer.Schedule(ctx, pctx, view, spec)
		s.routeGroup(item, result)

	case item.Item.Aggregated != nil:
		s.dispatchAggregated(ctx, pctx, view, item)
	}
}

func (s *PriorityScheduler) policyLabel() string {
	if s.policy == Fairness {
		return "fairness"
	}
	return "fifo"
}

func (s *PriorityScheduler) routeInstance(item ScheduledItem, result ScheduleResult) {
	ScheduleResultsTotal.WithLabelValues(result.Code.String()).Inc()
	if result.Code.IsRecoverable() {
		s.affinityIndex.record(item.Priority, item.Affinity)
		s.pending[item.Priority] = append(s.pending[item.Priority], item)
		return
	}
	if result.Success() {
		s.affinityIndex.clear(item.Priority, item.Affinity)
	}
	item.Item.Instance.Result.Fulfill(result)
}

func (s *PriorityScheduler) routeGroup(item ScheduledItem, result GroupScheduleResult) {
	if result.Code.IsRecoverable() {
		s.affinityIndex.record(item.Priority, item.Affinity)
		s.pending[item.Priority] = append(s.pending[item.Priority], item)
		return
	}
	if result.Code.IsSuccess() {
		s.affinityIndex.clear(item.Priority, item.Affinity)
	}
	item.Item.Group.Result.Fulfill(result)
}

// dispatchAggregated implements the AggregatedItem half of
// ConsumeRunningQueue's dispatch step. Members already canceled before
// reaching the performer are fulfilled with ERR_SCHEDULE_CANCELED and
// excluded from the batch call; members still canceled by the time their
// own result comes back are rolled back individually via
// AggregatePerformer.CancelMember rather than handed a success the caller no
// longer wants (§4.1.3). Surviving recoverable members are re-enqueued to
// pending as single-member AggregatedQueueItems so they retry independently
// of the rest of the original batch.
func (s *PriorityScheduler) dispatchAggregated(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo, item ScheduledItem) {
	agg := item.Item.Aggregated

	live := make([]AggregateMember, 0, len(agg.Members))
	for _, m := range agg.Members {
		if ctxDone(m.Cancel) {
			m.Result.Fulfill(ScheduleResult{RequestID: m.Request.RequestID, Code: ERR_SCHEDULE_CANCELED})
			continue
		}
		live = append(live, m)
	}
	if len(live) == 0 {
		return
	}

	requests := make([]ScheduleRequest, len(live))
	for i, m := range live {
		requests[i] = m.Request
	}
	results := s.aggregatePerformer.Schedule(ctx, pctx, view, requests)

	for i, m := range live {
		result := results[i]

		if result.Success() && ctxDone(m.Cancel) {
			s.aggregatePerformer.CancelMember(ctx, pctx, m.Request, result)
			m.Result.Fulfill(ScheduleResult{RequestID: m.Request.RequestID, Code: ERR_SCHEDULE_CANCELED})
			continue
		}

		if result.Code.IsRecoverable() {
			s.affinityIndex.record(item.Priority, item.Affinity)
			s.pending[item.Priority] = append(s.pending[item.Priority], ScheduledItem{
				Priority: item.Priority,
				Affinity: item.Affinity,
				Item:     QueueItem{Aggregated: &AggregatedQueueItem{Members: []AggregateMember{m}}},
			})
			continue
		}

		if result.Success() {
			s.affinityIndex.clear(item.Priority, item.Affinity)
		}
		m.Result.Fulfill(result)
	}
}

// ActivatePendingRequests implements §4.3's ActivatePendingRequests
// operation: move all pending items back to running, respecting priority
// order, then consume.
func (s *PriorityScheduler) ActivatePendingRequests(ctx context.Context, pctx *PreAllocatedContext, view *ResourceViewInfo) {
	for p, bucket := range s.pending {
		s.running[p] = append(s.running[p], bucket...)
	}
	s.pending = priorityBucketSet{}
	s.ConsumeRunningQueue(ctx, pctx, view)
}
