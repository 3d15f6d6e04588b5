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

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// ActorStatus is the queue actor's state machine (§4.4).
type ActorStatus int

const (
	WAITING ActorStatus = iota
	RUNNING
	PENDING
)

func (s ActorStatus) String() string {
	switch s {
	case WAITING:
		return "WAITING"
	case RUNNING:
		return "RUNNING"
	case PENDING:
		return "PENDING"
	default:
		return "UNKNOWN"
	}
}

// mailbox message kinds (§4.4). Each carries its own result future; the
// actor answers by fulfilling it from its single sequence.
type scheduleMsg struct {
	req    ScheduleRequest
	cancel context.Context
	result *Future[ScheduleResult]
}

type groupScheduleMsg struct {
	spec   GroupSpec
	cancel context.Context
	result *Future[GroupScheduleResult]
}

type confirmMsg struct {
	requestID    string
	unitID       string
	instanceInfo InstanceInfo
	promote      bool
	result       *Future[Code]
}

type aggregateScheduleMsg struct {
	members []AggregateMember
}

type resourceUpdateMsg struct{}

// QueueActor is the single-threaded cooperative event loop binding the
// priority scheduler to the outside world (§4.4, §9 "Represent it as one
// worker task consuming a typed message channel"). Every field below is
// touched only from run's goroutine.
type QueueActor struct {
	opts Options

	view      ResourceView
	scheduler *PriorityScheduler

	mailbox chan any
	clock   clock.Clock

	status                 ActorStatus
	isNewResourceAvailable bool
	snapshot               *ResourceViewInfo
	pctx                   *PreAllocatedContext

	done chan struct{}
}

// NewQueueActor builds an actor. Start must be called to begin its loop.
func NewQueueActor(opts Options, view ResourceView, scheduler *PriorityScheduler, clk clock.Clock) *QueueActor {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &QueueActor{
		opts:     opts,
		view:     view,
		scheduler: scheduler,
		mailbox:  make(chan any, 256),
		clock:    clk,
		status:   WAITING,
		done:     make(chan struct{}),
	}
}

// Start launches the actor's single goroutine.
func (a *QueueActor) Start(ctx context.Context) {
	go a.run(ctx)
}

// Stop signals the actor's loop to exit.
func (a *QueueActor) Stop() {
	close(a.done)
}

// Schedule implements §6's exposed Schedule contract.
func (a *QueueActor) Schedule(ctx context.Context, req ScheduleRequest, cancel context.Context) *Future[ScheduleResult] {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	result := NewFuture[ScheduleResult]()
	a.mailbox <- scheduleMsg{req: req, cancel: cancel, result: result}
	return result
}

// GroupSchedule implements §6's exposed GroupSchedule contract.
func (a *QueueActor) GroupSchedule(ctx context.Context, spec GroupSpec, cancel context.Context) *Future[GroupScheduleResult] {
	result := NewFuture[GroupScheduleResult]()
	a.mailbox <- groupScheduleMsg{spec: spec, cancel: cancel, result: result}
	return result
}

// AggregateSchedule implements §6's exposed AggregateSchedule contract for a
// deque of same-spec instances (§4.1.3): each request gets its own cancel
// context and result future so a caller can cancel one member independently
// of the rest of the batch.
func (a *QueueActor) AggregateSchedule(ctx context.Context, requests []ScheduleRequest, cancels []context.Context) []*Future[ScheduleResult] {
	members := make([]AggregateMember, len(requests))
	results := make([]*Future[ScheduleResult], len(requests))
	for i, req := range requests {
		if req.RequestID == "" {
			req.RequestID = uuid.NewString()
		}
		cancel := context.Background()
		if i < len(cancels) && cancels[i] != nil {
			cancel = cancels[i]
		}
		result := NewFuture[ScheduleResult]()
		members[i] = AggregateMember{Request: req, Cancel: cancel, Result: result}
		results[i] = result
	}
	a.mailbox <- aggregateScheduleMsg{members: members}
	return results
}

// Confirm implements §6's exposed Confirm contract: promotes a
// pre-allocation into the resource view, or rolls it back if the caller
// declined. instanceInfo is the same record preAllocate built for this
// request; PreAllocation-mode callers must supply it so the promote branch
// has something to write into the store (Allocation-mode callers, where
// preAllocate already wrote the view, may pass a zero InstanceInfo).
func (a *QueueActor) Confirm(ctx context.Context, requestID, unitID string, instanceInfo InstanceInfo, promote bool) *Future[Code] {
	result := NewFuture[Code]()
	a.mailbox <- confirmMsg{requestID: requestID, unitID: unitID, instanceInfo: instanceInfo, promote: promote, result: result}
	return result
}

// OnResourceUpdate implements §6's fire-and-forget OnResourceUpdate
// contract.
func (a *QueueActor) OnResourceUpdate() {
	select {
	case a.mailbox <- resourceUpdateMsg{}:
	default:
		// Mailbox full: the signal is dropped rather than blocking the
		// caller.
	}
}

// run is the actor's single cooperative sequence (§5: "the queue actor is a
// single-threaded cooperative worker; all mutations of the running/pending
// queues and the in-flight snapshot happen on its sequence").
func (a *QueueActor) run(ctx context.Context) {
	logger := log.FromContext(ctx)
	idleTimer := a.clock.NewTimer(a.opts.IdleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ctx.Done():
			return

		case <-idleTimer.C():
			if a.status == WAITING {
				a.refreshSnapshot(ctx)
			}
			idleTimer.Reset(a.opts.IdleTimeout)

		case msg := <-a.mailbox:
			idleTimer.Reset(a.opts.IdleTimeout)
			a.handle(ctx, msg)
			a.transition(ctx, logger)
		}
	}
}

func (a *QueueActor) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case scheduleMsg:
		a.ensureSnapshot(ctx)
		item := ScheduledItem{
			Priority: m.req.Options.Priority,
			Affinity: m.req.Affinity,
			Item: QueueItem{Instance: &InstanceQueueItem{
				Request: m.req,
				Result:  m.result,
				Cancel:  m.cancel,
			}},
		}
		a.scheduler.Enqueue(item)

	case groupScheduleMsg:
		a.ensureSnapshot(ctx)
		var priority int32
		var affinity Affinity
		if len(m.spec.Requests) > 0 {
			priority = m.spec.Requests[0].Options.Priority
			affinity = m.spec.Requests[0].Affinity
		}
		item := ScheduledItem{
			Priority: priority,
			Affinity: affinity,
			Item: QueueItem{Group: &GroupQueueItem{
				Spec:   m.spec,
				Result: m.result,
				Cancel: m.cancel,
			}},
		}
		a.scheduler.Enqueue(item)

	case aggregateScheduleMsg:
		a.ensureSnapshot(ctx)
		var priority int32
		var affinity Affinity
		if len(m.members) > 0 {
			priority = m.members[0].Request.Options.Priority
			affinity = m.members[0].Request.Affinity
		}
		item := ScheduledItem{
			Priority: priority,
			Affinity: affinity,
			Item:     QueueItem{Aggregated: &AggregatedQueueItem{Members: m.members}},
		}
		a.scheduler.Enqueue(item)

	case confirmMsg:
		a.doConfirm(ctx, m)

	case resourceUpdateMsg:
		a.snapshot = nil
		a.refreshSnapshot(ctx)
		a.isNewResourceAvailable = true
	}
}

// doConfirm implements Confirm's promote/rollback branch (§4.4, §3
// "PreAllocatedContext lives for exactly one scheduling pass; its
// reservations are either promoted to the resource view ... or rolled
// back").
func (a *QueueActor) doConfirm(ctx context.Context, m confirmMsg) {
	if a.pctx == nil {
		m.result.Fulfill(FAILED)
		return
	}
	if m.promote {
		inst := m.instanceInfo
		inst.RequestID = m.requestID
		inst.UnitID = m.unitID
		f := a.view.AddInstances(ctx, map[string]InstanceInfo{inst.InstanceID: inst})
		go func() {
			addErr, waitErr := f.Wait(ctx)
			if waitErr != nil || addErr != nil {
				m.result.Fulfill(FAILED)
				return
			}
			m.result.Fulfill(SUCCESS)
		}()
		return
	}
	f := a.view.DeleteInstances(ctx, m.unitID, []string{m.requestID}, true)
	go func() {
		errVal, waitErr := f.Wait(ctx)
		if waitErr != nil || errVal != nil {
			m.result.Fulfill(FAILED)
			return
		}
		m.result.Fulfill(SUCCESS)
	}()
}

// ensureSnapshot fetches a fresh snapshot and a fresh PreAllocatedContext
// when the actor holds none (before the first fetch, or after a failed
// refresh); otherwise the held snapshot is reused (§4.4 transition
// "WAITING -> RUNNING on the first enqueue; fetch a snapshot, consume").
func (a *QueueActor) ensureSnapshot(ctx context.Context) {
	if a.snapshot == nil {
		a.refreshSnapshot(ctx)
	}
}

func (a *QueueActor) refreshSnapshot(ctx context.Context) {
	f := a.view.GetResourceInfo(ctx)
	snapshot, err := f.Wait(ctx)
	if err != nil {
		return
	}
	a.snapshot = snapshot
	a.pctx = NewPreAllocatedContext()
	a.isNewResourceAvailable = false
}

// transition implements §4.4's state machine after handling one message.
func (a *QueueActor) transition(ctx context.Context, logger logr.Logger) {
	if a.snapshot == nil {
		return
	}

	if a.isNewResourceAvailable {
		a.isNewResourceAvailable = false
		a.status = RUNNING
		a.scheduler.ActivatePendingRequests(ctx, a.pctx, a.snapshot)
	} else if a.scheduler.RunningLen() > 0 {
		a.status = RUNNING
		a.scheduler.ConsumeRunningQueue(ctx, a.pctx, a.snapshot)
	}

	switch {
	case a.scheduler.RunningLen() == 0 && a.scheduler.PendingLen() == 0:
		a.status = WAITING
	case a.scheduler.RunningLen() == 0 && a.scheduler.PendingLen() > 0:
		a.status = PENDING
	default:
		a.status = RUNNING
	}
}

// Status returns the actor's current state (§6 "GetQueueState").
func (a *QueueActor) Status() ActorStatus {
	return a.status
}
