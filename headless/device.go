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

/*
Package headless is a rendergraph.Device that never touches a GPU. Every object it creates is tracked by
name and every command recorded into a submitted command buffer is kept in a trace, so a graph can be
built, executed and inspected anywhere.
*/
package headless

import (
	"fmt"
	"slices"
	"sync"

	"goarrg.com/debug"
	"goarrg.com/gmath"
	"goarrg.com/rhi/rendergraph"
)

var logger = debug.NewLogger("rendergraph", "headless")

func abort(format string, args ...any) {
	logger.EPrintf(format, args...)
	panic(fmt.Sprintf(format, args...))
}

type Config struct {
	Name            string
	Extent          rendergraph.Extent2i32
	SwapchainFormat rendergraph.Format
	SwapchainImages int
	RayTracing      bool
	// TimestampPeriod is the number of nanoseconds per tick, TimestampTicks ticks pass between two writes.
	TimestampPeriod float32
	TimestampTicks  uint64
}

func (c *Config) defaults() {
	if c.Name == "" {
		c.Name = "headless"
	}
	if c.Extent.X == 0 && c.Extent.Y == 0 {
		c.Extent = rendergraph.Extent2i32{X: 1280, Y: 720}
	}
	if c.SwapchainFormat == rendergraph.FORMAT_UNDEFINED {
		c.SwapchainFormat = rendergraph.FORMAT_B8G8R8A8_UNORM
	}
	if c.SwapchainImages == 0 {
		c.SwapchainImages = 3
	}
	if c.TimestampPeriod == 0 {
		c.TimestampPeriod = 1
	}
	if c.TimestampTicks == 0 {
		c.TimestampTicks = 1000
	}
}

type object struct {
	device *Device
	id     uint64
	kind   string
	name   string
}

func (o *object) Name() string {
	return o.name
}

func (o *object) ID() uint64 {
	return o.id
}

func (o *object) Destroy() {
	o.device.release(o)
}

func (o *object) String() string {
	return fmt.Sprintf("%s(%s)", o.kind, o.name)
}

type Device struct {
	config     Config
	properties rendergraph.Properties

	mtx         sync.Mutex
	nextID      uint64
	nextAddress uint64
	live        map[uint64]object
	created     map[string]int

	failShaders map[string]bool
	failAlloc   map[string]bool
	failSubmit  bool

	swapchain   *Swapchain
	syncs       []*FrameSync
	clock       uint64
	submissions []Submission
	discarded   int
	uploads     []Upload
	waitIdles   int
}

var _ rendergraph.Device = (*Device)(nil)

func New(config Config) *Device {
	config.defaults()
	d := &Device{
		config:      config,
		nextAddress: 0x10000,
		live:        map[uint64]object{},
		created:     map[string]int{},
		failShaders: map[string]bool{},
		failAlloc:   map[string]bool{},
	}
	d.properties = rendergraph.Properties{
		Name:     config.Name,
		VendorID: 0x10005,
		DeviceID: 0x0000,
		API:      (1 << 22) | (3 << 12),
		Limits: rendergraph.Limits{
			MaxImageDimension2D:    16384,
			MaxPushConstantsSize:   rendergraph.MaxPushConstantsSize,
			MaxBoundDescriptorSets: 8,
			MaxDispatchSize:        gmath.Extent3u32{X: 65535, Y: 65535, Z: 65535},
			TimestampPeriod:        config.TimestampPeriod,
		},
	}
	if config.RayTracing {
		d.properties.RayTracing = rendergraph.RayTracingProperties{
			Supported:                  true,
			ShaderGroupHandleSize:      32,
			ShaderGroupHandleAlignment: 32,
			ShaderGroupBaseAlignment:   64,
			MaxRecursionDepth:          31,
		}
	}
	d.swapchain = newSwapchain(d, config.SwapchainFormat, config.Extent, config.SwapchainImages)
	logger.VPrintf("Created %q with a %dx%d swapchain", config.Name, config.Extent.X, config.Extent.Y)
	return d
}

func (d *Device) newObject(kind, name string) object {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.nextID++
	o := object{device: d, id: d.nextID, kind: kind, name: name}
	d.live[o.id] = o
	d.created[kind]++
	return o
}

func (d *Device) release(o *object) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if _, ok := d.live[o.id]; !ok {
		abort("Double destroy of %s", o)
	}
	delete(d.live, o.id)
}

func (d *Device) address(size uint64) uint64 {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	a := d.nextAddress
	d.nextAddress += (size + 0xFF) &^ 0xFF
	return a
}

// FailShader makes every pipeline created from the named shader fail until ClearShaderFailure.
func (d *Device) FailShader(name string) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.failShaders[name] = true
}

func (d *Device) ClearShaderFailure(name string) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	delete(d.failShaders, name)
}

// FailAllocation makes NewImage and NewBuffer return rendergraph.ErrorOutOfMemory for name.
func (d *Device) FailAllocation(name string) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.failAlloc[name] = true
}

// FailNextSubmit makes the next FrameSync.Submit return an error, as a lost device would.
func (d *Device) FailNextSubmit() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.failSubmit = true
}

func (d *Device) shouldFailSubmit() bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	fail := d.failSubmit
	d.failSubmit = false
	return fail
}

func (d *Device) shouldFailAlloc(name string) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.failAlloc[name]
}

func (d *Device) shouldFailShader(modules ...rendergraph.ShaderModule) string {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	for _, m := range modules {
		if m != nil && d.failShaders[m.Name()] {
			return m.Name()
		}
	}
	return ""
}

// Live returns the names of every object not yet destroyed, sorted.
func (d *Device) Live() []string {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	names := make([]string, 0, len(d.live))
	for _, o := range d.live {
		names = append(names, o.String())
	}
	slices.Sort(names)
	return names
}

// LiveCount returns the number of live objects of kind, such as "image" or "pipeline".
func (d *Device) LiveCount(kind string) int {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	n := 0
	for _, o := range d.live {
		if o.kind == kind {
			n++
		}
	}
	return n
}

// Created returns the number of objects of kind ever created.
func (d *Device) Created(kind string) int {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.created[kind]
}

func (d *Device) Submissions() []Submission {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return slices.Clone(d.submissions)
}

// LastSubmission returns the most recent submission, the zero value if nothing was submitted.
func (d *Device) LastSubmission() Submission {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if len(d.submissions) == 0 {
		return Submission{}
	}
	return d.submissions[len(d.submissions)-1]
}

func (d *Device) Discarded() int {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.discarded
}

func (d *Device) Uploads() []Upload {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return slices.Clone(d.uploads)
}

// LastUpload returns the most recent upload, the zero value if nothing was uploaded.
func (d *Device) LastUpload() Upload {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if len(d.uploads) == 0 {
		return Upload{}
	}
	return d.uploads[len(d.uploads)-1]
}

func (d *Device) WaitIdles() int {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.waitIdles
}

func (d *Device) Properties() rendergraph.Properties {
	return d.properties
}

func (d *Device) Swapchain() rendergraph.Swapchain {
	return d.swapchain
}

// HeadlessSwapchain returns the concrete swapchain for fault injection.
func (d *Device) HeadlessSwapchain() *Swapchain {
	return d.swapchain
}

func (d *Device) WaitIdle() {
	d.mtx.Lock()
	syncs := slices.Clone(d.syncs)
	d.waitIdles++
	d.mtx.Unlock()
	for _, s := range syncs {
		s.Wait()
	}
}
