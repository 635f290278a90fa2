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
	"fmt"
	"time"

	"goarrg.com/rhi/rendergraph/internal/util"
)

// frameSlot is one frame in flight, it is reused every MaxFramesInFlight frames.
type frameSlot struct {
	sync FrameSync
	// submitted is set when the slot's last frame reached the queue, its timestamps are read back on the next wait.
	submitted  bool
	frame      uint64
	passes     []string
	timestamps bool
}

func (s *frameSlot) wait() {
	s.sync.Wait()
}

type frameRing struct {
	slots  []frameSlot
	index  int
	active bool
}

func newFrameRing(device Device, framesInFlight int) (*frameRing, error) {
	r := &frameRing{slots: make([]frameSlot, framesInFlight)}
	for i := range r.slots {
		sync, err := device.NewFrameSync(fmt.Sprintf("frame_%d", i), maxTimestamps)
		if err != nil {
			r.destroy()
			return nil, err
		}
		r.slots[i].sync = sync
	}
	return r, nil
}

func (r *frameRing) current() *frameSlot {
	return &r.slots[r.index]
}

func (r *frameRing) advance() {
	r.index = (r.index + 1) % len(r.slots)
}

func (r *frameRing) waitAll() {
	for i := range r.slots {
		if r.slots[i].sync != nil {
			r.slots[i].wait()
		}
	}
}

func (r *frameRing) destroy() {
	for i := range r.slots {
		if r.slots[i].sync != nil {
			r.slots[i].sync.Destroy()
			r.slots[i].sync = nil
		}
	}
}

/*
Frame is the state of one frame between BeginFrame and Execute. It must not be copied or used after
Execute returns.
*/
type Frame struct {
	noCopy    util.NoCopy
	graph     *Graph
	index     uint64
	slot      int
	sync      FrameSync
	cb        CommandBuffer
	output    Image
	plan      *ExecutionPlan
	resources *frameResources
}

// Index counts submitted frames, it selects the history slots.
func (f *Frame) Index() uint64 {
	f.noCopy.Check()
	return f.index
}

// Slot is the frame in flight index in [0, MaxFramesInFlight).
func (f *Frame) Slot() int {
	f.noCopy.Check()
	return f.slot
}

func (f *Frame) Plan() *ExecutionPlan {
	f.noCopy.Check()
	return f.plan
}

// Output is the acquired swapchain image bound to RENDER_OUTPUT.
func (f *Frame) Output() Image {
	f.noCopy.Check()
	return f.output
}

// Image resolves a plan resource to the image backing it this frame.
func (f *Frame) Image(name string) (Image, error) {
	f.noCopy.Check()
	return f.resources.image(name)
}

type PassTiming struct {
	Name    string
	GPUTime time.Duration
}

type FrameStats struct {
	Frame     uint64
	Passes    []PassTiming
	Total     time.Duration
	Pipelines PipelineCacheStats
}

func ticksToDuration(ticks uint64, period float32) time.Duration {
	return time.Duration(float64(ticks) * float64(period))
}

// readTimestamps turns the slot's completed query values into per pass timings.
func (s *frameSlot) readTimestamps(period float32) ([]PassTiming, time.Duration, bool) {
	if !s.submitted || !s.timestamps {
		return nil, 0, false
	}
	values := s.sync.Timestamps()
	if len(values) < 2*len(s.passes)+1 {
		return nil, 0, false
	}

	timings := make([]PassTiming, 0, len(s.passes))
	for i, name := range s.passes {
		begin, end := values[2*i], values[2*i+1]
		timings = append(timings, PassTiming{Name: name, GPUTime: ticksToDuration(end-min(begin, end), period)})
	}
	last := values[2*len(s.passes)]
	return timings, ticksToDuration(last-min(values[0], last), period), true
}
