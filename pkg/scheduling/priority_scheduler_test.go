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

package scheduling_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nrgeol/schedcore/pkg/scheduling"
	"github.com/nrgeol/schedcore/pkg/test/mocks"
)

var _ = Describe("PriorityScheduler", func() {
	var (
		ctx      context.Context
		view     *scheduling.ResourceViewInfo
		pctx     *scheduling.PreAllocatedContext
		selector *mocks.MockSelector
		sched    *scheduling.PriorityScheduler
	)

	newScheduler := func(opts scheduling.Options) *scheduling.PriorityScheduler {
		rv := mocks.NewMockResourceView(view)
		instance := scheduling.NewInstancePerformer(selector, rv, scheduling.NewPreemptionController(), opts.AllocateType, nil)
		group := scheduling.NewGroupPerformer(selector, rv, scheduling.NewPreemptionController(), opts.AllocateType, nil)
		aggregate := scheduling.NewAggregatePerformer(selector, rv, scheduling.NewPreemptionController(), opts.AllocateType)
		return scheduling.NewPriorityScheduler(opts, instance, group, aggregate)
	}

	BeforeEach(func() {
		ctx = context.Background()
		view = scheduling.NewResourceViewInfo([]*scheduling.ResourceUnit{unit("agent001", 100, 100)}, nil)
		pctx = scheduling.NewPreAllocatedContext()
		selector = mocks.NewMockSelector()
		sched = newScheduler(scheduling.ResolveOptions())
	})

	// Cancellation (§4.4): an item canceled while it waits in the running
	// queue — ConsumeRunningQueue must fulfil it with ERR_SCHEDULE_CANCELED
	// instead of dispatching it to a performer. Pending items reach the same
	// check when ActivatePendingRequests moves them back to running.
	It("fulfils a canceled running item with ERR_SCHEDULE_CANCELED without dispatching it", func() {
		cancelCtx, cancel := context.WithCancel(context.Background())

		req := request("canceled-1", 10, 10)
		result := scheduling.NewFuture[scheduling.ScheduleResult]()
		item := scheduling.ScheduledItem{
			Priority: 5,
			Item: scheduling.QueueItem{
				Instance: &scheduling.InstanceQueueItem{Request: req, Result: result, Cancel: cancelCtx},
			},
		}

		sched.Enqueue(item)
		cancel()
		sched.ConsumeRunningQueue(ctx, pctx, view)

		Expect(selector.Calls).To(Equal(0))
		outcome, waitErr := result.Wait(ctx)
		Expect(waitErr).NotTo(HaveOccurred())
		Expect(outcome.Code).To(Equal(scheduling.ERR_SCHEDULE_CANCELED))
	})

	It("schedules an enqueued instance item and fulfils its promise on success", func() {
		req := request("req-a", 10, 10)
		result := scheduling.NewFuture[scheduling.ScheduleResult]()
		item := scheduling.ScheduledItem{
			Priority: 5,
			Item: scheduling.QueueItem{
				Instance: &scheduling.InstanceQueueItem{Request: req, Result: result},
			},
		}

		sched.Enqueue(item)
		sched.ConsumeRunningQueue(ctx, pctx, view)

		outcome, waitErr := result.Wait(ctx)
		Expect(waitErr).NotTo(HaveOccurred())
		Expect(outcome.Success()).To(BeTrue())
	})

	// Pending invariant (§8): a recoverable failure moves an item to pending
	// rather than retrying it inline within the same pass, and its promise
	// stays unfulfilled while it is pending.
	It("moves a RESOURCE_NOT_ENOUGH instance to pending instead of failing it", func() {
		tiny := scheduling.NewResourceViewInfo([]*scheduling.ResourceUnit{unit("agent001", 1, 1)}, nil)
		req := request("too-big", 10, 10)
		result := scheduling.NewFuture[scheduling.ScheduleResult]()
		item := scheduling.ScheduledItem{
			Priority: 5,
			Item: scheduling.QueueItem{
				Instance: &scheduling.InstanceQueueItem{Request: req, Result: result},
			},
		}

		sched.Enqueue(item)
		sched.ConsumeRunningQueue(ctx, pctx, tiny)

		Expect(sched.PendingLen()).To(Equal(1))
		Expect(sched.RunningLen()).To(Equal(0))

		select {
		case <-result.Done():
			Fail("promise should not be fulfilled while the item is pending")
		case <-time.After(10 * time.Millisecond):
		}
	})

	// Fairness pending-affinity contract (§4.3): once an item's affinity is
	// recorded as blocked, a later arrival whose affinity is a subset (i.e.
	// the recorded blocker is a superset of it) is routed straight to
	// pending without ever reaching the performer.
	It("routes a subset-affinity arrival straight to pending under the Fairness policy", func() {
		fair := newScheduler(scheduling.ResolveOptions(scheduling.WithPriorityPolicy(scheduling.Fairness)))
		tiny := scheduling.NewResourceViewInfo([]*scheduling.ResourceUnit{unit("agent001", 1, 1)}, nil)

		broadAffinity := scheduling.Affinity{Requires: scheduling.LabelSet{"zone": ""}}
		first := scheduling.ScheduledItem{
			Priority: 5,
			Affinity: broadAffinity,
			Item: scheduling.QueueItem{
				Instance: &scheduling.InstanceQueueItem{Request: request("blocked-1", 10, 10), Result: scheduling.NewFuture[scheduling.ScheduleResult]()},
			},
		}
		fair.Enqueue(first)
		fair.ConsumeRunningQueue(ctx, pctx, tiny)
		Expect(fair.PendingLen()).To(Equal(1))

		narrowAffinity := scheduling.Affinity{Requires: scheduling.LabelSet{"zone": "us-east-1"}}
		second := scheduling.ScheduledItem{
			Priority: 5,
			Affinity: narrowAffinity,
			Item: scheduling.QueueItem{
				Instance: &scheduling.InstanceQueueItem{Request: request("blocked-2", 10, 10), Result: scheduling.NewFuture[scheduling.ScheduleResult]()},
			},
		}
		fair.Enqueue(second)

		Expect(fair.RunningLen()).To(Equal(0))
		Expect(fair.PendingLen()).To(Equal(2))
	})

	// Per-member cancellation (§4.1.3): canceling one member of an
	// AggregatedItem before the pass must not affect its siblings: the
	// canceled member is excluded from the selector call and fulfilled with
	// ERR_SCHEDULE_CANCELED, while its sibling is scheduled. (A member
	// canceled while its result is in flight is rolled back via
	// AggregatePerformer.CancelMember; this case does not exercise that.)
	Describe("Aggregated items", func() {
		It("cancels only the canceled member of a batch and schedules its sibling", func() {
			cancelCtx, cancel := context.WithCancel(context.Background())
			cancel()

			canceledResult := scheduling.NewFuture[scheduling.ScheduleResult]()
			liveResult := scheduling.NewFuture[scheduling.ScheduleResult]()
			item := scheduling.ScheduledItem{
				Priority: 5,
				Item: scheduling.QueueItem{
					Aggregated: &scheduling.AggregatedQueueItem{
						Members: []scheduling.AggregateMember{
							{Request: request("agg-canceled", 10, 10), Result: canceledResult, Cancel: cancelCtx},
							{Request: request("agg-live", 10, 10), Result: liveResult},
						},
					},
				},
			}

			sched.Enqueue(item)
			sched.ConsumeRunningQueue(ctx, pctx, view)

			Expect(selector.Calls).To(Equal(1))

			canceledOutcome, waitErr := canceledResult.Wait(ctx)
			Expect(waitErr).NotTo(HaveOccurred())
			Expect(canceledOutcome.Code).To(Equal(scheduling.ERR_SCHEDULE_CANCELED))

			liveOutcome, waitErr := liveResult.Wait(ctx)
			Expect(waitErr).NotTo(HaveOccurred())
			Expect(liveOutcome.Success()).To(BeTrue())
		})
	})
})
