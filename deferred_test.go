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
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingDestroyer struct {
	destroyed *int
}

func (d countingDestroyer) Destroy() {
	*d.destroyed++
}

func TestDeferredQueue(t *testing.T) {
	q := NewDeferredQueue(2)
	assert.Equal(t, 2, q.FramesInFlight())

	destroyed := 0
	q.Push(countingDestroyer{&destroyed}, countingDestroyer{&destroyed})
	assert.Equal(t, 2, q.Pending())

	// nothing runs until committed
	assert.Equal(t, 0, q.Run(0))
	assert.Equal(t, 0, destroyed)

	q.Commit(0)
	q.PushFunc(func() { destroyed += 10 })
	q.Commit(1)
	assert.Equal(t, 3, q.Pending())

	assert.Equal(t, 2, q.Run(0))
	assert.Equal(t, 2, destroyed)
	assert.Equal(t, 0, q.Run(0))

	assert.Equal(t, 1, q.Run(1))
	assert.Equal(t, 12, destroyed)
	assert.Equal(t, 0, q.Pending())
}

func TestDeferredQueueFlush(t *testing.T) {
	q := NewDeferredQueue(3)
	order := []int{}
	q.PushFunc(func() { order = append(order, 1) })
	q.Commit(2)
	q.PushFunc(func() {
		order = append(order, 2)
		// pushed while flushing, still runs
		q.PushFunc(func() { order = append(order, 3) })
	})

	q.Flush()
	assert.ElementsMatch(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, q.Pending())
}

func TestDeferredQueueConcurrentPush(t *testing.T) {
	q := NewDeferredQueue(1)
	var mtx sync.Mutex
	destroyed := 0

	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.PushFunc(func() {
					mtx.Lock()
					destroyed++
					mtx.Unlock()
				})
			}
		}()
	}
	wg.Wait()

	q.Commit(0)
	assert.Equal(t, 800, q.Run(0))
	assert.Equal(t, 800, destroyed)
}

func TestDeferredQueueInvalid(t *testing.T) {
	assert.Panics(t, func() { NewDeferredQueue(0) })
}
