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
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// pendingAffinityIndex tracks the pending-affinity fingerprint of items
// already known unschedulable, one go-cache instance per priority bucket
// (§4.3 "Fairness pending-affinity contract"). Entries self-expire via the
// cache's TTL so a stale record never permanently short-circuits a later,
// now-feasible arrival (patrickmn/go-cache wiring).
type pendingAffinityIndex struct {
	ttl     time.Duration
	buckets map[int32]*cache.Cache
}

func newPendingAffinityIndex(ttl time.Duration) *pendingAffinityIndex {
	return &pendingAffinityIndex{ttl: ttl, buckets: map[int32]*cache.Cache{}}
}

func (idx *pendingAffinityIndex) bucket(priority int32) *cache.Cache {
	b, ok := idx.buckets[priority]
	if !ok {
		b = cache.New(idx.ttl, idx.ttl/2)
		idx.buckets[priority] = b
	}
	return b
}

// record remembers that affinity is known-unsatisfiable at priority p.
func (idx *pendingAffinityIndex) record(priority int32, affinity Affinity) {
	idx.bucket(priority).SetDefault(affinityKey(affinity), affinity)
}

// clear forgets a previously recorded blocker, called when an item bearing
// it succeeds (§4.3: "on its success, its pending-affinity is cleared").
func (idx *pendingAffinityIndex) clear(priority int32, affinity Affinity) {
	idx.bucket(priority).Delete(affinityKey(affinity))
}

// blocks reports whether some recorded pending-affinity at this priority is
// a superset of affinity — i.e. candidate should go straight to pending.
func (idx *pendingAffinityIndex) blocks(priority int32, affinity Affinity) bool {
	for _, item := range idx.bucket(priority).Items() {
		blocker := item.Object.(Affinity)
		if blocker.IsSupersetOf(affinity) {
			return true
		}
	}
	return false
}

func affinityKey(affinity Affinity) string {
	return fmt.Sprintf("%v", affinity.Requires)
}
