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
	"context"
	"errors"
	"fmt"
	"slices"

	"goarrg.com/debug"
	"goarrg.com/gmath"
	"goarrg.com/rhi/rendergraph/internal/util"
)

type externalImage struct {
	desc  ExternalResource
	image Image
}

/*
Graph owns the registered passes, the compiled plan and everything a frame needs to run it. It is driven
from a single goroutine: register passes, then BeginFrame/Execute once per frame. The plan is rebuilt
lazily whenever the passes, the externals or the dimensions change.
*/
type Graph struct {
	noCopy    util.NoCopy
	device    Device
	resources ResourceManager
	scene     SceneProvider
	queue     *DeferredQueue
	config    Config

	shaders    *ShaderLoader
	pipelines  *PipelineCache
	binder     *descriptorBinder
	transients *transientTable
	history    *historyRegistry
	frames     *frameRing

	width, height int32
	passes        []*Pass
	images        map[string]externalImage
	buffers       map[string]Buffer
	structs       map[string]AccelerationStructure

	plan  *ExecutionPlan
	dirty bool
	stale bool
	fatal error

	frameIndex uint64
	stats      FrameStats
}

/*
NewGraph creates a graph rendering into device's swapchain. queue must be the same DeferredQueue the
resource manager frees through and must be sized to config.MaxFramesInFlight. A zero config.Width or
config.Height takes the swapchain extent.
*/
func NewGraph(device Device, resources ResourceManager, scene SceneProvider, queue *DeferredQueue, config Config) (*Graph, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if queue.FramesInFlight() != config.MaxFramesInFlight {
		return nil, configErrorf("DeferredQueue is sized to %d frames in flight, config wants %d",
			queue.FramesInFlight(), config.MaxFramesInFlight)
	}

	frames, err := newFrameRing(device, config.MaxFramesInFlight)
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to create frames in flight")
	}

	shaders := NewShaderLoader(config.ShaderDirectory)
	if config.WatchShaders {
		if err := shaders.Watch(); err != nil {
			logger.WPrintf("Shader hot reload disabled: %v", err)
		}
	}
	pipelines := NewPipelineCache(device, shaders, queue, config.PipelineRetentionFrames)

	g := &Graph{
		device:     device,
		resources:  resources,
		scene:      scene,
		queue:      queue,
		config:     config,
		shaders:    shaders,
		pipelines:  pipelines,
		binder:     &descriptorBinder{cache: pipelines, resources: resources, layouts: map[string]passLayout{}},
		transients: &transientTable{device: device, queue: queue},
		history:    &historyRegistry{device: device, queue: queue},
		frames:     frames,
		images:     map[string]externalImage{},
		buffers:    map[string]Buffer{},
		structs:    map[string]AccelerationStructure{},
		dirty:      true,
	}
	g.noCopy.Init("Graph")

	g.width, g.height = config.Width, config.Height
	if g.width == 0 || g.height == 0 {
		ext := device.Swapchain().Extent()
		g.width, g.height = ext.X, ext.Y
	}
	logger.IPrintf("Created graph %dx%d with %d frames in flight", g.width, g.height, config.MaxFramesInFlight)
	return g, nil
}

func (g *Graph) Config() Config {
	g.noCopy.Check()
	return g.config
}

func (g *Graph) Device() Device {
	g.noCopy.Check()
	return g.device
}

func (g *Graph) Dimensions() Extent2i32 {
	g.noCopy.Check()
	return Extent2i32{X: g.width, Y: g.height}
}

// SetDimensions resizes every graph sized image, history is discarded since it no longer lines up.
func (g *Graph) SetDimensions(width, height int32) {
	g.noCopy.Check()
	if width == g.width && height == g.height {
		return
	}
	logger.IPrintf("Resizing graph %dx%d -> %dx%d", g.width, g.height, width, height)
	g.width, g.height = width, height
	g.dirty = true
	g.history.discard()
}

// Reset removes every registered pass, externals stay registered.
func (g *Graph) Reset() {
	g.noCopy.Check()
	if g.frames.active {
		abort("Reset called with an active frame")
	}
	g.passes = nil
	g.plan = nil
	g.dirty = true
	g.history.discard()
}

/*
RegisterExternalImage binds name to an image the graph does not own. The image is expected in initial
at the start of every frame and left in final at the end, a final layout of ImageLayoutUndefined leaves
it wherever its last use put it. Registering again with a new image is cheap, a changed description or
state rebuilds the plan.
*/
func (g *Graph) RegisterExternalImage(name string, image Image, initial, final ImageBarrierInfo) {
	g.noCopy.Check()
	g.checkExternalName(name)
	e := ExternalResource{Name: name, Kind: ResourceKindImage, Description: image.Description(), Initial: initial, Final: final}
	if old, ok := g.images[name]; !ok || old.desc != e {
		g.dirty = true
	}
	g.images[name] = externalImage{desc: e, image: image}
}

func (g *Graph) RegisterExternalBuffer(name string, buffer Buffer) {
	g.noCopy.Check()
	g.checkExternalName(name)
	if _, ok := g.buffers[name]; !ok {
		g.dirty = true
	}
	g.buffers[name] = buffer
}

func (g *Graph) RegisterExternalAccelerationStructure(name string, as AccelerationStructure) {
	g.noCopy.Check()
	g.checkExternalName(name)
	if _, ok := g.structs[name]; !ok {
		g.dirty = true
	}
	g.structs[name] = as
}

func (g *Graph) checkExternalName(name string) {
	switch name {
	case RenderOutput, SceneTLAS, SceneInstances, MaterialBufferName:
		abort("%q is registered by the graph itself", name)
	}
	if name == "" {
		abort("External resource without a name")
	}
}

func (g *Graph) addPass(p *Pass, err error) error {
	g.noCopy.Check()
	if err != nil {
		return err
	}
	if g.frames.active {
		abort("Pass %q added with an active frame", p.name)
	}
	g.passes = append(g.passes, p)
	g.dirty = true
	return nil
}

func (g *Graph) AddGraphicsPass(spec GraphicsPassSpec) error {
	return g.addPass(NewGraphicsPass(spec))
}

func (g *Graph) AddComputePass(spec ComputePassSpec) error {
	return g.addPass(NewComputePass(spec))
}

func (g *Graph) AddRayTracingPass(spec RayTracingPassSpec) error {
	return g.addPass(NewRayTracingPass(spec))
}

// AddBlitPass copies src into dst, the formats are checked against the resolved ones at Build.
func (g *Graph) AddBlitPass(src, dst string, srcFormat, dstFormat Format) error {
	return g.addPass(NewBlitPass(BlitPassSpec{Src: src, Dst: dst, SrcFormat: srcFormat, DstFormat: dstFormat, Filter: SamplerFilterLinear}))
}

// Passes returns the registered passes in registration order.
func (g *Graph) Passes() []*Pass {
	g.noCopy.Check()
	return slices.Clone(g.passes)
}

func (g *Graph) externals() []ExternalResource {
	swapchain := g.device.Swapchain()
	ext := swapchain.Extent()
	externals := []ExternalResource{
		{
			Name: RenderOutput,
			Kind: ResourceKindImage,
			Description: ImageDescription{
				Extent:  gmath.Extent3i32{X: ext.X, Y: ext.Y, Z: 1},
				Format:  swapchain.Format(),
				Usage:   ImageUsageTransferDst | ImageUsageColorAttachment,
				Samples: 1,
			},
			Initial: ImageBarrierInfo{Layout: ImageLayoutUndefined, Stage: PipelineStageTopOfPipe},
			Final:   ImageBarrierInfo{Layout: ImageLayoutPresent, Stage: PipelineStageBottomOfPipe},
		},
		{Name: SceneTLAS, Kind: ResourceKindAccelerationStructure},
		{Name: SceneInstances, Kind: ResourceKindBuffer},
		{Name: MaterialBufferName, Kind: ResourceKindBuffer},
	}
	for _, name := range sortedKeys(g.images) {
		externals = append(externals, g.images[name].desc)
	}
	for _, name := range sortedKeys(g.buffers) {
		externals = append(externals, ExternalResource{Name: name, Kind: ResourceKindBuffer})
	}
	for _, name := range sortedKeys(g.structs) {
		externals = append(externals, ExternalResource{Name: name, Kind: ResourceKindAccelerationStructure})
	}
	return externals
}

/*
Build compiles the registered passes and realizes the plan's images. Physical images and history pairs
whose descriptions did not change are kept, so rebuilding an unchanged graph allocates nothing. Pipelines
are compiled lazily on first use and survive rebuilds.
*/
func (g *Graph) Build() (*ExecutionPlan, error) {
	g.noCopy.Check()
	if g.fatal != nil {
		return nil, g.fatal
	}
	if g.frames.active {
		abort("Build called with an active frame")
	}

	plan, err := Compile(g.passes, g.externals(), g.width, g.height)
	if err != nil {
		return nil, err
	}
	if err := g.transients.realize(plan); err != nil {
		return nil, g.allocationFailed(err)
	}
	if err := g.history.realize(plan); err != nil {
		return nil, g.allocationFailed(err)
	}

	logger.IPrintf("Built %dx%d: %v, %d physical images for %d resources, %d history",
		plan.Width, plan.Height, plan.PassNames(), len(plan.Physical), len(plan.Resources), len(plan.History))
	for _, b := range plan.Barriers() {
		logger.VPrintf("Barrier %s", b)
	}
	logger.VPrintf("Plan: %s", prettyString(plan))

	g.plan = plan
	g.dirty = false
	return plan, nil
}

func (g *Graph) allocationFailed(err error) error {
	if errors.Is(err, ErrorOutOfMemory{}) {
		g.fatal = err
	}
	g.plan = nil
	g.dirty = true
	return err
}

// Plan returns the last successfully built plan, nil before the first Build.
func (g *Graph) Plan() *ExecutionPlan {
	g.noCopy.Check()
	return g.plan
}

// Shaders returns the sorted, deduplicated names of every shader the registered passes use.
func (g *Graph) Shaders() []string {
	g.noCopy.Check()
	var shaders []string
	for _, p := range g.passes {
		for i := range p.graphics {
			shaders = append(shaders, p.graphics[i].VertexShader, p.graphics[i].FragmentShader)
		}
		for i := range p.compute {
			shaders = append(shaders, p.compute[i].Shader)
		}
		if p.rayTracing != nil {
			shaders = append(shaders, rayTracingShaders(p.rayTracing)...)
		}
	}
	shaders = slices.DeleteFunc(shaders, func(s string) bool { return s == "" })
	slices.Sort(shaders)
	return slices.Compact(shaders)
}

// WarmPipelines loads every shader the registered passes use so the first frame does not wait on disk.
func (g *Graph) WarmPipelines(ctx context.Context) error {
	return g.pipelines.Warm(ctx, g.Shaders())
}

func (g *Graph) Pipelines() *PipelineCache {
	g.noCopy.Check()
	return g.pipelines
}

// Stats returns the GPU timings of the last frame whose timestamps were read back.
func (g *Graph) Stats() FrameStats {
	g.noCopy.Check()
	s := g.stats
	s.Passes = slices.Clone(s.Passes)
	s.Pipelines = g.pipelines.Stats()
	return s
}

// FrameIndex is the number of frames submitted so far.
func (g *Graph) FrameIndex() uint64 {
	g.noCopy.Check()
	return g.frameIndex
}

func (g *Graph) recreateSwapchain() error {
	g.device.WaitIdle()
	swapchain := g.device.Swapchain()
	if err := swapchain.Recreate(); err != nil {
		return debug.ErrorWrapf(err, "Failed to recreate swapchain")
	}
	ext := swapchain.Extent()
	g.SetDimensions(ext.X, ext.Y)
	// RENDER_OUTPUT's description follows the swapchain even when the graph dimensions did not change.
	g.dirty = true
	g.stale = false
	return nil
}

func skipFrame(format string, args ...any) error {
	logger.IPrintf("Skipping frame: "+format, args...)
	return debug.ErrorWrapf(ErrorSkipFrame{}, format, args...)
}

/*
BeginFrame waits for the next frame in flight, rebuilds the plan if needed and acquires the swapchain
image. It returns ErrorSkipFrame when there is nothing to render into, the caller should try again on the
next tick.
*/
func (g *Graph) BeginFrame() (*Frame, error) {
	g.noCopy.Check()
	if g.frames.active {
		abort("BeginFrame called when there's an active frame")
	}
	if g.fatal != nil {
		return nil, g.fatal
	}

	for _, name := range g.shaders.Changed() {
		g.pipelines.Invalidate(name)
	}
	if g.stale {
		if err := g.recreateSwapchain(); err != nil {
			return nil, err
		}
	}
	if g.width <= 0 || g.height <= 0 {
		// minimized, recreate on every tick until the surface has an extent again
		g.stale = true
		return nil, skipFrame("graph extent is %dx%d", g.width, g.height)
	}

	slot := g.frames.current()
	slot.wait()
	if n := g.queue.Run(g.frames.index); n > 0 {
		logger.VPrintf("Destroyed %d deferred objects", n)
	}
	if timings, total, ok := slot.readTimestamps(g.device.Properties().Limits.TimestampPeriod); ok {
		g.stats = FrameStats{Frame: slot.frame, Passes: timings, Total: total}
	}
	slot.submitted = false
	g.resources.ResetTransientDescriptorPool(g.frames.index)

	if g.dirty || g.plan == nil {
		if _, err := g.Build(); err != nil {
			return nil, err
		}
	}

	cb, err := slot.sync.Begin(fmt.Sprintf("frame_%d", g.frameIndex))
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to begin command buffer")
	}
	output, err := g.device.Swapchain().AcquireNextImage(slot.sync)
	if err != nil {
		discard(slot.sync, cb)
		if errors.Is(err, ErrorSwapchainStale{}) {
			g.stale = true
			return nil, skipFrame("%v", err)
		}
		return nil, debug.ErrorWrapf(err, "Failed to acquire swapchain image")
	}

	f := &Frame{
		graph:  g,
		index:  g.frameIndex,
		slot:   g.frames.index,
		sync:   slot.sync,
		cb:     cb,
		output: output,
		plan:   g.plan,
	}
	f.noCopy.Init(fmt.Sprintf("Frame %d", f.index))
	f.resources = &frameResources{
		plan:       g.plan,
		transients: g.transients,
		history:    g.history,
		frame:      g.frameIndex,
		images:     map[string]Image{RenderOutput: output},
		buffers: map[string]Buffer{
			MaterialBufferName: g.resources.MaterialBuffer(),
			SceneInstances:     g.scene.InstanceBuffer(),
		},
		structs: map[string]AccelerationStructure{SceneTLAS: g.scene.TLAS()},
	}
	for name, e := range g.images {
		f.resources.images[name] = e.image
	}
	for name, b := range g.buffers {
		f.resources.buffers[name] = b
	}
	for name, as := range g.structs {
		f.resources.structs[name] = as
	}

	g.frames.active = true
	return f, nil
}

/*
Execute records and submits f, then presents. Any failure while recording, a pass error or panic included,
ends the command buffer without submitting it and leaves the graph ready for the next BeginFrame. A stale
swapchain at present is not an error, the swapchain is recreated on the next BeginFrame.
*/
func (g *Graph) Execute(f *Frame) (err error) {
	g.noCopy.Check()
	f.noCopy.Check()
	if f.graph != g || !g.frames.active {
		abort("Execute called with a frame that is not active")
	}
	slot := g.frames.current()
	cb := f.cb

	recorded := false
	defer func() {
		if recorded {
			return
		}
		if r := recover(); r != nil {
			err = debug.ErrorWrapf(ErrorPassFailed{}, "Recovered from panic: %v", r)
		}
		discard(slot.sync, cb)
		logger.EPrintf("Frame %d discarded: %v", f.index, err)
		g.endFrame(f)
	}()

	if err := g.record(cb, f); err != nil {
		return err
	}
	if err := cb.End(); err != nil {
		return debug.ErrorWrapf(err, "Failed to end command buffer")
	}
	recorded = true

	if err := slot.sync.Submit(cb); err != nil {
		slot.sync.Discard(cb)
		g.endFrame(f)
		return debug.ErrorWrapf(err, "Failed to submit frame %d", f.index)
	}
	slot.submitted = true
	slot.frame = f.index
	slot.passes = f.plan.PassNames()
	slot.timestamps = g.timestampsEnabled(f.plan)

	g.history.rotate(f.plan)
	g.pipelines.EndFrame()
	g.frameIndex++
	g.endFrame(f)
	g.frames.advance()

	if err := g.device.Swapchain().Present(slot.sync); err != nil {
		if errors.Is(err, ErrorSwapchainStale{}) {
			logger.IPrintf("Swapchain went stale at present of frame %d", f.index)
			g.stale = true
			return nil
		}
		return debug.ErrorWrapf(err, "Failed to present frame %d", f.index)
	}
	return nil
}

// discard ends cb if it is still recording and drops it, releasing the acquired swapchain image.
func discard(sync FrameSync, cb CommandBuffer) {
	if err := cb.End(); err != nil {
		logger.VPrintf("Discarding a command buffer that did not end cleanly: %v", err)
	}
	sync.Discard(cb)
}

// endFrame commits everything freed during f to its slot and makes the graph idle again.
func (g *Graph) endFrame(f *Frame) {
	g.queue.Commit(f.slot)
	g.frames.active = false
	f.noCopy.Close()
}

// Destroy waits for the device and destroys everything the graph owns, the queue is flushed.
func (g *Graph) Destroy() {
	g.noCopy.Check()
	if g.frames.active {
		abort("Destroy called with an active frame")
	}
	g.frames.waitAll()
	g.device.WaitIdle()

	g.transients.release()
	g.history.discard()
	g.pipelines.Destroy()
	if err := g.shaders.Close(); err != nil {
		logger.WPrintf("Failed to close shader watcher: %v", err)
	}
	g.queue.Flush()
	g.frames.destroy()
	g.noCopy.Close()
}
