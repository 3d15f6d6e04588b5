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

// PreAllocatedContext is the mutable, per-pass scratchpad (§3). It is owned
// exclusively by the queue actor for the duration of one scheduling pass
// (§5, §9 "Shared mutable pointers ... replace with explicit ownership") and
// never escapes to another goroutine.
type PreAllocatedContext struct {
	// Allocated accumulates unit-id -> reserved resource vector across every
	// PreAllocated call in this pass.
	Allocated map[string]ResourceList
	// AllocatedLabels accumulates unit-id -> label deltas.
	AllocatedLabels map[string]LabelSet

	// PreAllocatedSelectedUnit maps instance-id -> selected unit-id.
	PreAllocatedSelectedUnit map[string]string
	// PreAllocatedSelectedUnitSet is the set of unit-ids already claimed
	// this pass (§3(d)). It is maintained by markSelected/unmarkSelected;
	// SelectFromResults does not consult it, so one unit may be selected for
	// several instances in the same pass.
	PreAllocatedSelectedUnitSet map[string]struct{}

	// PluginCtx lets selector plugins share state across calls within the
	// same pass/group (§3(e)).
	PluginCtx map[string]any
}

// NewPreAllocatedContext allocates an empty context for one pass.
func NewPreAllocatedContext() *PreAllocatedContext {
	return &PreAllocatedContext{
		Allocated:                   map[string]ResourceList{},
		AllocatedLabels:             map[string]LabelSet{},
		PreAllocatedSelectedUnit:    map[string]string{},
		PreAllocatedSelectedUnitSet: map[string]struct{}{},
		PluginCtx:                   map[string]any{},
	}
}

// accumulate records a pre-allocation of resources/labels onto unitID.
func (c *PreAllocatedContext) accumulate(unitID string, resources ResourceList, labels LabelSet) {
	acc, ok := c.Allocated[unitID]
	if !ok {
		acc = ResourceList{}
	}
	acc.Add(resources)
	c.Allocated[unitID] = acc

	labAcc, ok := c.AllocatedLabels[unitID]
	if !ok {
		labAcc = LabelSet{}
	}
	for k, v := range labels {
		labAcc[k] = v
	}
	c.AllocatedLabels[unitID] = labAcc
}

// markSelected records instanceID -> unitID in both bookkeeping structures
// (§3(c)/(d)), kept as a pair deliberately — see SPEC_FULL.md §4
// "preAllocatedSelectedFunctionAgentMap/Set double bookkeeping".
func (c *PreAllocatedContext) markSelected(instanceID, unitID string) {
	c.PreAllocatedSelectedUnit[instanceID] = unitID
	c.PreAllocatedSelectedUnitSet[unitID] = struct{}{}
}

// unmarkSelected reverses markSelected during rollback (§4.1.4).
func (c *PreAllocatedContext) unmarkSelected(instanceID, unitID string) {
	delete(c.PreAllocatedSelectedUnit, instanceID)
	// The unit may still be claimed by another instance in this pass; only
	// drop it from the set if no remaining entry in the map references it.
	for _, u := range c.PreAllocatedSelectedUnit {
		if u == unitID {
			return
		}
	}
	delete(c.PreAllocatedSelectedUnitSet, unitID)
}

// rollback subtracts a prior accumulation for unitID (§4.1.4).
func (c *PreAllocatedContext) rollback(unitID string, resources ResourceList, labels LabelSet) {
	if acc, ok := c.Allocated[unitID]; ok {
		acc.Sub(resources)
		c.Allocated[unitID] = acc
	}
	if labAcc, ok := c.AllocatedLabels[unitID]; ok {
		for k := range labels {
			delete(labAcc, k)
		}
		c.AllocatedLabels[unitID] = labAcc
	}
}
