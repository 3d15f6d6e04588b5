// Package driver runs a schedsim scenario against the scheduling core,
// adapting the original Driver's "load config, execute steps in order,
// collect and save logs" shape to the new domain: instead of applying
// Kubernetes manifests and scaling Deployments, each step submits Schedule/
// GroupSchedule/Cancel calls to a QueueActor and records their outcomes.
package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/nrgeol/schedcore/hack/e2e_driver/pkg/audit"
	"github.com/nrgeol/schedcore/hack/e2e_driver/pkg/config"
	"github.com/nrgeol/schedcore/hack/e2e_driver/pkg/store"
	"github.com/nrgeol/schedcore/hack/e2e_driver/pkg/tracking"
	"github.com/nrgeol/schedcore/pkg/scheduling"
)

// resultWaitTimeout bounds how long a step waits for one request's promise
// before moving on (a timed-out instance is recorded as FAILED, a timed-out
// group is not recorded); a scenario has no
// live cluster whose capacity might free up on its own, so a stuck pending
// item would otherwise block the run forever.
const resultWaitTimeout = 2 * time.Second

// DriverConfig holds the configuration needed to run one scenario.
type DriverConfig struct {
	ScenarioPath string
	LogDir       string
}

// Driver orchestrates one scenario run end to end.
type Driver struct {
	scenario *config.ScenarioFile
	store    *store.InMemoryStore
	actor    *scheduling.QueueActor
	tracker  *tracking.ResultTracker
	logger   *audit.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewDriver loads the scenario file and wires a fresh in-memory store,
// priority scheduler, and queue actor around it.
func NewDriver(cfg DriverConfig) (*Driver, error) {
	scenario, err := config.LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}

	units := make([]*scheduling.ResourceUnit, 0, len(scenario.Units))
	for _, u := range scenario.Units {
		unit := scheduling.NewResourceUnit(u.ID, "", scheduling.ResourceList{
			"cpu":    *resourceQuantity(u.CPU),
			"memory": *resourceQuantity(u.Memory),
		})
		for k, v := range u.Labels {
			unit.Labels[k] = v
		}
		units = append(units, unit)
	}
	backing := store.NewInMemoryStore(units)

	opts := scheduling.ResolveOptions(
		scheduling.WithMaxPriority(maxOr(scenario.MaxPriority, 15)),
		scheduling.WithPriorityPolicy(fairnessPolicy(scenario.Fairness)),
	)
	selector := scheduling.NewDefaultSelector()
	preemption := scheduling.NewPreemptionController()
	instance := scheduling.NewInstancePerformer(selector, backing, preemption, opts.AllocateType, nil)
	group := scheduling.NewGroupPerformer(selector, backing, preemption, opts.AllocateType, nil)
	aggregate := scheduling.NewAggregatePerformer(selector, backing, preemption, opts.AllocateType)
	priorityScheduler := scheduling.NewPriorityScheduler(opts, instance, group, aggregate)
	actor := scheduling.NewQueueActor(opts, backing, priorityScheduler, nil)

	return &Driver{
		scenario: scenario,
		store:    backing,
		actor:    actor,
		tracker:  tracking.NewResultTracker(),
		logger:   audit.NewLogger(cfg.LogDir, scenario.RunID),
		cancels:  map[string]context.CancelFunc{},
	}, nil
}

// Run executes every step of the scenario in order and saves the final
// report.
func (d *Driver) Run(ctx context.Context) error {
	logger := log.FromContext(ctx)
	d.actor.Start(ctx)
	defer d.actor.Stop()

	fmt.Printf("Starting scenario: %s\n", d.scenario.RunID)

	for _, step := range d.scenario.Steps {
		fmt.Printf("Executing step %q with %d actions\n", step.Name, len(step.Actions))
		if err := d.executeStep(ctx, step); err != nil {
			return fmt.Errorf("failed to execute step %s: %w", step.Name, err)
		}
		// A CANCEL or an already-succeeded member earlier in the step may
		// have freed capacity a still-pending item from a prior step could
		// now use; nudge the actor to retry before moving on.
		d.actor.OnResourceUpdate()
	}

	path, err := d.logger.SaveReport(d.tracker)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}
	logger.Info("run report saved", "path", path)

	failed, counts := audit.Summarize(d.tracker)
	fmt.Printf("\nScenario execution complete: run_id=%s steps=%d\n", d.scenario.RunID, len(d.scenario.Steps))
	for code, n := range counts {
		fmt.Printf("  %s: %d\n", code, n)
	}
	if failed {
		return fmt.Errorf("scenario completed with failing outcomes, see %s", path)
	}
	return nil
}

func (d *Driver) executeStep(ctx context.Context, step config.ScenarioStep) error {
	for _, action := range step.Actions {
		switch action.Type {
		case "SCHEDULE_INSTANCE":
			if action.Instance == nil {
				return fmt.Errorf("SCHEDULE_INSTANCE action missing instance body")
			}
			d.scheduleInstance(ctx, step.Name, *action.Instance)

		case "SCHEDULE_GROUP":
			if action.Group == nil {
				return fmt.Errorf("SCHEDULE_GROUP action missing group body")
			}
			d.scheduleGroup(ctx, step.Name, *action.Group)

		case "CANCEL":
			if action.Cancel == nil {
				return fmt.Errorf("CANCEL action missing request_id")
			}
			d.cancel(action.Cancel.RequestID)

		default:
			fmt.Printf("  unsupported action type: %s\n", action.Type)
		}
	}
	return nil
}

func (d *Driver) scheduleInstance(ctx context.Context, step string, a config.InstanceAction) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.cancels[a.RequestID] = cancel
	d.mu.Unlock()

	req := scheduling.ScheduleRequest{
		RequestID:  a.RequestID,
		InstanceID: a.RequestID,
		Resources:  scheduling.ResourceList{"cpu": *resourceQuantity(a.CPU), "memory": *resourceQuantity(a.Memory)},
		Options:    scheduling.SchedulingOptions{Priority: a.Priority, PreemptEnabled: a.Preempt},
		Affinity:   toAffinity(a.Affinity),
	}

	result := d.actor.Schedule(ctx, req, cancelCtx)
	waitCtx, waitCancel := context.WithTimeout(ctx, resultWaitTimeout)
	defer waitCancel()

	outcome, err := result.Wait(waitCtx)
	if err != nil {
		d.tracker.Record(step, a.RequestID, scheduling.FAILED, "")
		fmt.Printf("  instance %s: still pending after %s\n", a.RequestID, resultWaitTimeout)
		return
	}
	d.tracker.Record(step, a.RequestID, outcome.Code, outcome.UnitID)
	fmt.Printf("  instance %s: %s (unit=%s)\n", a.RequestID, outcome.Code, outcome.UnitID)
}

func (d *Driver) scheduleGroup(ctx context.Context, step string, a config.GroupAction) {
	spec := scheduling.GroupSpec{
		GroupID:  a.GroupID,
		Policy:   toPolicy(a.Policy),
		Priority: a.Priority,
		Requests: make([]scheduling.ScheduleRequest, len(a.Members)),
	}
	if a.Range != nil {
		spec.Range = scheduling.RangeOption{IsRange: true, Min: a.Range.Min, Max: a.Range.Max, Step: a.Range.Step}
	}
	for i, m := range a.Members {
		spec.Requests[i] = scheduling.ScheduleRequest{
			RequestID:  m.RequestID,
			InstanceID: m.RequestID,
			Resources:  scheduling.ResourceList{"cpu": *resourceQuantity(m.CPU), "memory": *resourceQuantity(m.Memory)},
			Options:    scheduling.SchedulingOptions{Priority: m.Priority, PreemptEnabled: m.Preempt},
			Affinity:   toAffinity(m.Affinity),
		}
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.cancels[a.GroupID] = cancel
	d.mu.Unlock()

	result := d.actor.GroupSchedule(ctx, spec, cancelCtx)
	waitCtx, waitCancel := context.WithTimeout(ctx, resultWaitTimeout)
	defer waitCancel()

	outcome, err := result.Wait(waitCtx)
	if err != nil {
		fmt.Printf("  group %s: still pending after %s\n", a.GroupID, resultWaitTimeout)
		return
	}
	for _, r := range outcome.Results {
		d.tracker.Record(step, r.RequestID, r.Code, r.UnitID)
	}
	fmt.Printf("  group %s: %s (%d members)\n", a.GroupID, outcome.Code, len(outcome.Results))
}

func (d *Driver) cancel(requestID string) {
	d.mu.Lock()
	cancel, ok := d.cancels[requestID]
	delete(d.cancels, requestID)
	d.mu.Unlock()
	if !ok {
		fmt.Printf("  cancel %s: no tracked in-flight request\n", requestID)
		return
	}
	cancel()
	fmt.Printf("  cancel %s: signaled\n", requestID)
}

func toAffinity(labels map[string]string) scheduling.Affinity {
	if len(labels) == 0 {
		return scheduling.Affinity{}
	}
	requires := make(scheduling.LabelSet, len(labels))
	for k, v := range labels {
		requires[k] = v
	}
	return scheduling.Affinity{Requires: requires}
}

func toPolicy(policy string) scheduling.GroupPolicy {
	switch policy {
	case "strict_pack":
		return scheduling.PolicyStrictPack
	case "range":
		return scheduling.PolicyRange
	default:
		return scheduling.PolicyNormal
	}
}

func fairnessPolicy(fair bool) scheduling.PriorityPolicy {
	if fair {
		return scheduling.Fairness
	}
	return scheduling.FIFO
}

func maxOr(v, fallback int32) int32 {
	if v == 0 {
		return fallback
	}
	return v
}

func resourceQuantity(v int64) *resource.Quantity {
	return resource.NewQuantity(v, resource.DecimalSI)
}
