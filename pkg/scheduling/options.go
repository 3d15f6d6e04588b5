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
	"time"

	"github.com/awslabs/operatorpkg/option"
	"github.com/imdario/mergo"
)

// AllocateType selects whether performers merely pre-allocate (reserve in
// the ephemeral context) or also write the reservation into the resource
// view (§4.1 PreAllocated, §6 SetAllocateType).
type AllocateType int

const (
	PreAllocation AllocateType = iota
	Allocation
)

// PriorityPolicy selects the priority scheduler's dispatch discipline
// (§4.3).
type PriorityPolicy int

const (
	FIFO PriorityPolicy = iota
	Fairness
)

// Options configures a Scheduler (queue actor + priority scheduler). It
// follows the functional-options-resolved-by-operatorpkg pattern
// (alt_scheduler.go's option.Resolve(opts...)).
type Options struct {
	AllocateType   AllocateType
	Priority       PriorityPolicy
	MaxPriority    int32
	PreemptEnabled bool

	// IdleTimeout is how long the queue actor waits with both queues empty
	// before requesting a fresh snapshot on next activity (§4.4).
	IdleTimeout time.Duration

	// PendingAffinityTTL bounds how long a pending-affinity record may
	// short-circuit later arrivals before it is considered stale and the
	// scheduler re-attempts the underlying request (DESIGN.md,
	// patrickmn/go-cache wiring).
	PendingAffinityTTL time.Duration

	// DumpResourceViewOnFailure is the supplemented debug switch
	// ("enablePrintResourceView"). No code in this package reads it; setting
	// it has no effect.
	DumpResourceViewOnFailure bool
}

// Option mutates an Options value; compose with option.Resolve.
type Option = option.Function[Options]

func defaultOptions() Options {
	return Options{
		AllocateType:       Allocation,
		Priority:           FIFO,
		MaxPriority:        15,
		PreemptEnabled:     true,
		IdleTimeout:        30 * time.Second,
		PendingAffinityTTL: 10 * time.Second,
	}
}

// ResolveOptions merges defaults with the caller's overrides, the way
// alt_scheduler.go resolves scheduling.Options, using mergo so a caller may
// supply a partial Options value (zero fields keep the default).
func ResolveOptions(opts ...Option) Options {
	resolved := *option.Resolve(opts...)
	merged := defaultOptions()
	_ = mergo.Merge(&merged, resolved, mergo.WithOverride)
	return merged
}

func WithAllocateType(t AllocateType) Option {
	return func(o *Options) { o.AllocateType = t }
}

func WithPriorityPolicy(p PriorityPolicy) Option {
	return func(o *Options) { o.Priority = p }
}

func WithMaxPriority(max int32) Option {
	return func(o *Options) { o.MaxPriority = max }
}

func WithPreemption(enabled bool) Option {
	return func(o *Options) { o.PreemptEnabled = enabled }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(o *Options) { o.IdleTimeout = d }
}
