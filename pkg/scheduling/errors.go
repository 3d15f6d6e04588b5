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

import "fmt"

// Code is a stable, bit-exact status code returned by the scheduling core.
// Values must never be renumbered once released.
type Code int

const (
	SUCCESS Code = iota
	INSTANCE_ALLOCATED
	RESOURCE_NOT_ENOUGH
	AFFINITY_SCHEDULE_FAILED
	INVALID_RESOURCE_PARAMETER
	DOMAIN_SCHEDULER_NO_PREEMPTABLE_INSTANCE
	ERR_SCHEDULE_CANCELED
	FAILED
)

func (c Code) String() string {
	switch c {
	case SUCCESS:
		return "SUCCESS"
	case INSTANCE_ALLOCATED:
		return "INSTANCE_ALLOCATED"
	case RESOURCE_NOT_ENOUGH:
		return "RESOURCE_NOT_ENOUGH"
	case AFFINITY_SCHEDULE_FAILED:
		return "AFFINITY_SCHEDULE_FAILED"
	case INVALID_RESOURCE_PARAMETER:
		return "INVALID_RESOURCE_PARAMETER"
	case DOMAIN_SCHEDULER_NO_PREEMPTABLE_INSTANCE:
		return "DOMAIN_SCHEDULER_NO_PREEMPTABLE_INSTANCE"
	case ERR_SCHEDULE_CANCELED:
		return "ERR_SCHEDULE_CANCELED"
	case FAILED:
		return "FAILED"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// IsSuccess reports whether c should count toward a group's successCount (§7:
// already-scheduled is treated as success at the item level).
func (c Code) IsSuccess() bool {
	return c == SUCCESS || c == INSTANCE_ALLOCATED
}

// NeedsPreemption reports whether a feasibility failure is a candidate for
// preemption retry (§4.1.1, §4.1.2 step 3).
func (c Code) NeedsPreemption() bool {
	return c == RESOURCE_NOT_ENOUGH || c == AFFINITY_SCHEDULE_FAILED
}

// IsRecoverable reports whether an item carrying this code should move to the
// pending queue rather than fail terminally (§7).
func (c Code) IsRecoverable() bool {
	return c == RESOURCE_NOT_ENOUGH || c == AFFINITY_SCHEDULE_FAILED
}

// StatusError wraps a Code with a human-readable reason, the error shape
// returned across the core's exported surface.
type StatusError struct {
	Code   Code
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func NewStatusError(code Code, reason string) *StatusError {
	return &StatusError{Code: code, Reason: reason}
}

func NewStatusErrorf(code Code, format string, args ...any) *StatusError {
	return &StatusError{Code: code, Reason: fmt.Sprintf(format, args...)}
}
