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
	"sync"
)

// Future is the Go-native substitute for the promises/futures named in the
// Design Notes (§9): an explicit one-shot channel. Fulfill is idempotent by
// construction — only the first call delivers a value, matching invariant
// "the promise is resolved exactly once over E's lifetime" (§8).
type Future[T any] struct {
	ch   chan T
	once sync.Once
}

// NewFuture allocates an unfulfilled Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{ch: make(chan T, 1)}
}

// Fulfill delivers value to the future. Subsequent calls are no-ops.
func (f *Future[T]) Fulfill(value T) {
	f.once.Do(func() {
		f.ch <- value
		close(f.ch)
	})
}

// Wait blocks until the future is fulfilled or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	select {
	case v := <-f.ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Done returns the underlying channel for use in select statements, e.g. the
// queue actor's suspension points (§5).
func (f *Future[T]) Done() <-chan T {
	return f.ch
}
