/*
Copyright 2025 The goARRG Authors.

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

package rendergraph

import (
	"sync"
)

/*
DeferredQueue delays destruction of objects the GPU may still be using. Destroyers pushed during a frame
are committed to that frame's slot when it ends and run the next time the slot's fence is waited on, which
is framesInFlight frames later. Push is safe to call from any goroutine.

The queue is sized once at construction so it can be handed to the resource manager before the first
frame is recorded.
*/
type DeferredQueue struct {
	mtx     sync.Mutex
	pending []Destroyer
	slots   [][]Destroyer
}

func NewDeferredQueue(framesInFlight int) *DeferredQueue {
	if framesInFlight <= 0 {
		abort("Invalid frames in flight: %d", framesInFlight)
	}
	return &DeferredQueue{slots: make([][]Destroyer, framesInFlight)}
}

func (q *DeferredQueue) FramesInFlight() int {
	return len(q.slots)
}

func (q *DeferredQueue) Push(destroyers ...Destroyer) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.pending = append(q.pending, destroyers...)
}

// PushFunc is Push(DestroyFunc(f)).
func (q *DeferredQueue) PushFunc(f func()) {
	q.Push(DestroyFunc(f))
}

// Commit hands everything pushed since the last commit to slot.
func (q *DeferredQueue) Commit(slot int) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.slots[slot] = append(q.slots[slot], q.pending...)
	clear(q.pending)
	q.pending = q.pending[:0]
}

// Run destroys everything committed to slot, it must only be called after the slot's fence signaled.
func (q *DeferredQueue) Run(slot int) int {
	q.mtx.Lock()
	destroyers := q.slots[slot]
	q.slots[slot] = nil
	q.mtx.Unlock()

	for _, d := range destroyers {
		d.Destroy()
	}
	return len(destroyers)
}

// Pending returns the number of destroyers not yet run, committed or not.
func (q *DeferredQueue) Pending() int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	n := len(q.pending)
	for _, s := range q.slots {
		n += len(s)
	}
	return n
}

// Flush runs everything, the device must be idle.
func (q *DeferredQueue) Flush() {
	for {
		q.mtx.Lock()
		destroyers := q.pending
		q.pending = nil
		for i, s := range q.slots {
			destroyers = append(destroyers, s...)
			q.slots[i] = nil
		}
		q.mtx.Unlock()

		if len(destroyers) == 0 {
			return
		}
		for _, d := range destroyers {
			d.Destroy()
		}
	}
}
