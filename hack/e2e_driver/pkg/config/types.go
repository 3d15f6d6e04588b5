package config

// ScenarioFile is the top-level shape of a schedsim scenario file: a fixed
// set of resource units plus an ordered sequence of steps, each driving one
// pass of the scheduling core (mirrors the original SimulatorConfig/
// ScenarioConfig split, collapsed into one file since schedsim has no
// separate Kubernetes-deployment stage to configure).
type ScenarioFile struct {
	RunID       string         `yaml:"run_id"`
	Description string         `yaml:"description,omitempty"`
	MaxPriority int32          `yaml:"max_priority,omitempty"`
	Fairness    bool           `yaml:"fairness,omitempty"`
	Units       []UnitSpec     `yaml:"units"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// UnitSpec describes one ResourceUnit available to the scheduler for the
// whole run.
type UnitSpec struct {
	ID     string            `yaml:"id"`
	CPU    int64             `yaml:"cpu"`
	Memory int64             `yaml:"memory"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// ScenarioStep is one named batch of actions submitted together before the
// core drains its running queue (the scenario-equivalent of the original
// ScenarioStep).
type ScenarioStep struct {
	Name    string   `yaml:"name"`
	Actions []Action `yaml:"actions"`
}

// Action is a single scheduling operation a step performs. Exactly one of
// Instance/Group/Cancel is populated, selected by Type.
type Action struct {
	Type string `yaml:"type"` // SCHEDULE_INSTANCE | SCHEDULE_GROUP | CANCEL

	Instance *InstanceAction `yaml:"instance,omitempty"`
	Group    *GroupAction    `yaml:"group,omitempty"`
	Cancel   *CancelAction   `yaml:"cancel,omitempty"`
}

// InstanceAction schedules one InstanceItem.
type InstanceAction struct {
	RequestID string            `yaml:"request_id"`
	CPU       int64             `yaml:"cpu"`
	Memory    int64             `yaml:"memory"`
	Priority  int32             `yaml:"priority"`
	Preempt   bool              `yaml:"preempt,omitempty"`
	Affinity  map[string]string `yaml:"affinity,omitempty"`
}

// GroupAction schedules one GroupItem.
type GroupAction struct {
	GroupID  string           `yaml:"group_id"`
	Policy   string           `yaml:"policy"` // normal | strict_pack | range
	Range    *RangeSpec       `yaml:"range,omitempty"`
	Priority int32            `yaml:"priority"`
	Members  []InstanceAction `yaml:"members"`
}

// RangeSpec mirrors scheduling.RangeOption in YAML form.
type RangeSpec struct {
	Min  int `yaml:"min"`
	Max  int `yaml:"max"`
	Step int `yaml:"step"`
}

// CancelAction cancels a previously submitted request still pending.
type CancelAction struct {
	RequestID string `yaml:"request_id"`
}
