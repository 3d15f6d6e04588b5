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
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nrgeol/schedcore/pkg/scheduling"
	"github.com/nrgeol/schedcore/pkg/test/mocks"
)

func rangeRequests(groupID string, n int, cpu, mem int64) []scheduling.ScheduleRequest {
	reqs := make([]scheduling.ScheduleRequest, n)
	for i := 0; i < n; i++ {
		reqs[i] = request(groupID+"-member-"+strconv.Itoa(i), cpu, mem)
	}
	return reqs
}

var _ = Describe("GroupPerformer", func() {
	var (
		ctx      context.Context
		pctx     *scheduling.PreAllocatedContext
		selector *mocks.MockSelector
		perf     *scheduling.GroupPerformer
	)

	BeforeEach(func() {
		ctx = context.Background()
		selector = mocks.NewMockSelector()
	})

	newPerf := func(view *scheduling.ResourceViewInfo) *scheduling.GroupPerformer {
		rv := mocks.NewMockResourceView(view)
		return scheduling.NewGroupPerformer(selector, rv, scheduling.NewPreemptionController(), scheduling.Allocation, nil)
	}

	// Scenario 3 (§8): StrictPack group — every member lands on the same
	// unit as a single virtual reservation.
	It("packs every member onto the same unit under StrictPack", func() {
		view := scheduling.NewResourceViewInfo([]*scheduling.ResourceUnit{unit("agent001", 100, 100)}, nil)
		pctx = scheduling.NewPreAllocatedContext()
		perf = newPerf(view)

		spec := scheduling.GroupSpec{
			GroupID:  "grp-pack",
			Requests: rangeRequests("grp-pack", 3, 10, 10),
			Policy:   scheduling.PolicyStrictPack,
		}

		result := perf.Schedule(ctx, pctx, view, spec)

		Expect(result.Code).To(Equal(scheduling.SUCCESS))
		Expect(result.Results).To(HaveLen(3))
		for _, r := range result.Results {
			Expect(r.UnitID).To(Equal("agent001"))
		}
	})

	// Scenario 4 (§8): range group, min=5 max=10 step=2, exactly 6 slots
	// available — all 6 succeed and 6 is already step-aligned (10-6 is a
	// multiple of 2: ceil((10-6)/2)*2=4, reserved=max(5,10-4)=6), so nothing
	// is truncated.
	It("keeps all six successes when the range step already aligns", func() {
		view := scheduling.NewResourceViewInfo([]*scheduling.ResourceUnit{unit("agent001", 60, 60)}, nil)
		pctx = scheduling.NewPreAllocatedContext()
		perf = newPerf(view)

		spec := scheduling.GroupSpec{
			GroupID:  "grp-range-1",
			Requests: rangeRequests("grp-range-1", 6, 10, 10),
			Policy:   scheduling.PolicyRange,
			Range:    scheduling.RangeOption{IsRange: true, Min: 5, Max: 10, Step: 2},
		}

		result := perf.Schedule(ctx, pctx, view, spec)

		Expect(result.Code).To(Equal(scheduling.SUCCESS))
		successes := 0
		for _, r := range result.Results {
			if r.Success() {
				successes++
			}
		}
		Expect(successes).To(Equal(6))
	})

	// Scenario 5 (§8): range group, min=5 max=10 step=3, 6 slots available —
	// truncates down to 5 (ceil((10-6)/3)*3=6, reserved=max(5,10-6)=5) and
	// rolls back the dropped member's reservation.
	It("truncates six successes down to five on a step=3 boundary", func() {
		view := scheduling.NewResourceViewInfo([]*scheduling.ResourceUnit{unit("agent001", 60, 60)}, nil)
		pctx = scheduling.NewPreAllocatedContext()
		perf = newPerf(view)

		spec := scheduling.GroupSpec{
			GroupID:  "grp-range-2",
			Requests: rangeRequests("grp-range-2", 6, 10, 10),
			Policy:   scheduling.PolicyRange,
			Range:    scheduling.RangeOption{IsRange: true, Min: 5, Max: 10, Step: 3},
		}

		result := perf.Schedule(ctx, pctx, view, spec)

		Expect(result.Code).To(Equal(scheduling.SUCCESS))
		successes, failures := 0, 0
		for _, r := range result.Results {
			if r.Success() {
				successes++
			} else {
				failures++
			}
		}
		Expect(successes).To(Equal(5))
		Expect(failures).To(Equal(1))

		// Rollback invariant: the dropped member's contribution to
		// context.allocated must have been returned.
		Expect(pctx.Allocated["agent001"]["cpu"].Value()).To(Equal(int64(50)))
	})
})
