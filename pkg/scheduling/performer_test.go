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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nrgeol/schedcore/pkg/scheduling"
	"github.com/nrgeol/schedcore/pkg/test/mocks"
)

var _ = Describe("InstancePerformer", func() {
	var (
		ctx      context.Context
		view     *scheduling.ResourceViewInfo
		pctx     *scheduling.PreAllocatedContext
		rv       *mocks.MockResourceView
		selector *mocks.MockSelector
		perf     *scheduling.InstancePerformer
	)

	BeforeEach(func() {
		ctx = context.Background()
		view = scheduling.NewResourceViewInfo([]*scheduling.ResourceUnit{unit("agent001", 100, 100)}, nil)
		pctx = scheduling.NewPreAllocatedContext()
		rv = mocks.NewMockResourceView(view)
		selector = mocks.NewMockSelector()
		perf = scheduling.NewInstancePerformer(selector, rv, scheduling.NewPreemptionController(), scheduling.Allocation, nil)
	})

	// Scenario 1 (§8): single instance, sufficient resources.
	It("schedules a single instance onto the only feasible unit", func() {
		req := request("req-1", 10, 10)
		result := perf.Schedule(ctx, pctx, view, req)

		Expect(result.Code).To(Equal(scheduling.SUCCESS))
		Expect(result.UnitID).To(Equal("agent001"))
		Expect(pctx.Allocated["agent001"]["cpu"].Value()).To(Equal(int64(10)))
		Expect(pctx.Allocated["agent001"]["memory"].Value()).To(Equal(int64(10)))
	})

	// Idempotence (§8): a request already present in alreadyScheduled
	// returns INSTANCE_ALLOCATED with the original unit, no reservation
	// change.
	It("returns INSTANCE_ALLOCATED for an already-scheduled request without new reservations", func() {
		view.AlreadyScheduled["req-1"] = "agent001"
		req := request("req-1", 10, 10)

		result := perf.Schedule(ctx, pctx, view, req)

		Expect(result.Code).To(Equal(scheduling.INSTANCE_ALLOCATED))
		Expect(result.UnitID).To(Equal("agent001"))
		Expect(pctx.Allocated["agent001"]).To(BeEmpty())
	})

	// Rollback invariant (§8): after rolling back a successful
	// pre-allocation, context.allocated returns to its pre-allocation
	// value.
	It("restores context.allocated to its pre-allocation value on rollback", func() {
		req := request("req-1", 10, 10)
		result := perf.Schedule(ctx, pctx, view, req)
		Expect(result.Success()).To(BeTrue())

		perf.Rollback(ctx, pctx, req, result)

		Expect(pctx.Allocated["agent001"]["cpu"].IsZero()).To(BeTrue())
		Expect(pctx.Allocated["agent001"]["memory"].IsZero()).To(BeTrue())
	})

	// Scenario 2 (§8): instance with preemption — preemption controller
	// returns victims, callback is invoked, but the original
	// RESOURCE_NOT_ENOUGH result is left unchanged (eviction is
	// asynchronous, the caller retries).
	It("invokes the preempt callback but leaves the original failure unchanged", func() {
		// Force capacity tight enough that the default selector reports
		// RESOURCE_NOT_ENOUGH for a (60,60) request against a unit whose
		// total capacity before any instance was 100,100 - two 50,50
		// instances leave 0 allocatable.
		busy := unit("unit1", 100, 100)
		busy.AddInstance(scheduling.InstanceInfo{InstanceID: "low-1", Resources: resources(50, 50), Priority: 1, ScheduledAt: 1})
		busy.AddInstance(scheduling.InstanceInfo{InstanceID: "low-2", Resources: resources(50, 50), Priority: 1, ScheduledAt: 2})

		preemptView := scheduling.NewResourceViewInfo([]*scheduling.ResourceUnit{busy}, nil)
		preemptCtx := scheduling.NewPreAllocatedContext()
		callback := mocks.NewMockPreemptCallback()
		preemptPerf := scheduling.NewInstancePerformer(selector, rv, scheduling.NewPreemptionController(), scheduling.Allocation, callback.Callback)

		req := request("high-1", 60, 60)
		req.Options.Priority = 10
		req.Options.PreemptEnabled = true

		result := preemptPerf.Schedule(ctx, preemptCtx, preemptView, req)

		Expect(result.Code).To(Equal(scheduling.RESOURCE_NOT_ENOUGH))
		Expect(callback.CallCount()).To(Equal(1))
		Expect(callback.VictimCount()).To(Equal(2))
	})
})
