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

// Package scheduling implements the scheduling decision core of a
// function-serving platform: the priority queues and their state machine,
// the per-request and per-group performers that drive feasibility
// selection, pre-allocation, preemption, and rollback, and the
// resource-view reservation contract. It does not implement the
// feasibility-scoring framework, the resource-view store, or the runtime
// executor — those are external collaborators consumed through the
// Selector and ResourceView interfaces.
package scheduling
