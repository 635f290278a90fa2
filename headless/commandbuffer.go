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

package headless

import (
	"fmt"
	"slices"
	"strings"

	"goarrg.com/debug"
	"goarrg.com/gmath"
	"goarrg.com/rhi/rendergraph"
)

type Op string

const (
	OpBeginRegion     Op = "BeginNamedRegion"
	OpEndRegion       Op = "EndNamedRegion"
	OpBarrier         Op = "Barrier"
	OpRenderPassBegin Op = "RenderPassBegin"
	OpRenderPassEnd   Op = "RenderPassEnd"
	OpViewport        Op = "SetViewportAndScissor"
	OpBindPipeline    Op = "BindPipeline"
	OpBindSets        Op = "BindDescriptorSets"
	OpPushConstants   Op = "PushConstants"
	OpBindVertex      Op = "BindVertexBuffers"
	OpBindIndex       Op = "BindIndexBuffer"
	OpDraw            Op = "Draw"
	OpDrawIndexed     Op = "DrawIndexed"
	OpDispatch        Op = "Dispatch"
	OpTraceRays       Op = "TraceRays"
	OpBlit            Op = "BlitImage"
	OpClearColor      Op = "ClearColorImage"
	OpClearDepth      Op = "ClearDepthStencilImage"
	OpWriteTimestamp  Op = "WriteTimestamp"
)

/*
Command is one recorded call. Target names the object the call is about: the region, pipeline, image
or render pass. Args holds the call's integer arguments in declaration order.
*/
type Command struct {
	Op     Op
	Target string
	Args   []uint64

	ImageBarriers  []rendergraph.ImageBarrier
	BufferBarriers []rendergraph.BufferBarrier
	MemoryBarriers []rendergraph.MemoryBarrier
	Attachments    rendergraph.RenderAttachments
	SBT            rendergraph.ShaderBindingTableRegions
	Sets           []string
	Data           []byte
}

func (c Command) String() string {
	switch c.Op {
	case OpBarrier:
		items := make([]string, 0, len(c.ImageBarriers)+len(c.BufferBarriers)+len(c.MemoryBarriers))
		for _, b := range c.ImageBarriers {
			items = append(items, fmt.Sprintf("%s: %s -> %s", b.Image.Name(), b.Src, b.Dst))
		}
		for _, b := range c.BufferBarriers {
			items = append(items, fmt.Sprintf("%s: %s/%s -> %s/%s", b.Buffer.Name(), b.Src.Stage, b.Src.Access, b.Dst.Stage, b.Dst.Access))
		}
		for _, b := range c.MemoryBarriers {
			items = append(items, fmt.Sprintf("memory: %s/%s -> %s/%s", b.Src.Stage, b.Src.Access, b.Dst.Stage, b.Dst.Access))
		}
		return fmt.Sprintf("%s(%s)", c.Op, strings.Join(items, ", "))
	case OpPushConstants:
		return fmt.Sprintf("%s(%s, %d bytes)", c.Op, c.Target, len(c.Data))
	}
	if len(c.Args) == 0 {
		return fmt.Sprintf("%s(%s)", c.Op, c.Target)
	}
	return fmt.Sprintf("%s(%s, %v)", c.Op, c.Target, c.Args)
}

// Submission is a command buffer that reached the queue.
type Submission struct {
	Name     string
	Commands []Command
}

// Filter returns the commands of op in recording order.
func (s Submission) Filter(op Op) []Command {
	var cmds []Command
	for _, c := range s.Commands {
		if c.Op == op {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

// Regions returns the names of the top level named regions in recording order.
func (s Submission) Regions() []string {
	var names []string
	depth := 0
	for _, c := range s.Commands {
		switch c.Op {
		case OpBeginRegion:
			if depth == 0 {
				names = append(names, c.Target)
			}
			depth++
		case OpEndRegion:
			depth--
		}
	}
	return names
}

// Region returns the commands recorded inside the first top level region called name, nested regions included.
func (s Submission) Region(name string) []Command {
	depth := 0
	start := -1
	for i, c := range s.Commands {
		switch c.Op {
		case OpBeginRegion:
			if depth == 0 && c.Target == name && start < 0 {
				start = i + 1
			}
			depth++
		case OpEndRegion:
			depth--
			if depth == 0 && start >= 0 {
				return s.Commands[start:i]
			}
		}
	}
	return nil
}

// ImageBarriers flattens every image barrier of the submission in recording order.
func (s Submission) ImageBarriers() []rendergraph.ImageBarrier {
	var barriers []rendergraph.ImageBarrier
	for _, c := range s.Filter(OpBarrier) {
		barriers = append(barriers, c.ImageBarriers...)
	}
	return barriers
}

type CommandBuffer struct {
	sync       *FrameSync
	name       string
	commands   []Command
	regions    int
	renderPass string
	ended      bool
}

var _ rendergraph.CommandBuffer = (*CommandBuffer)(nil)

func (cb *CommandBuffer) record(c Command) {
	if cb.ended {
		abort("Command buffer %q recorded %s after End", cb.name, c.Op)
	}
	cb.commands = append(cb.commands, c)
}

func (cb *CommandBuffer) BeginNamedRegion(name string) {
	cb.regions++
	cb.record(Command{Op: OpBeginRegion, Target: name})
}

func (cb *CommandBuffer) EndNamedRegion() {
	if cb.regions == 0 {
		abort("Command buffer %q: EndNamedRegion without a region", cb.name)
	}
	cb.regions--
	cb.record(Command{Op: OpEndRegion})
}

func (cb *CommandBuffer) CompoundBarrier(memoryBarriers []rendergraph.MemoryBarrier, bufferBarriers []rendergraph.BufferBarrier, imageBarriers []rendergraph.ImageBarrier) {
	if cb.renderPass != "" {
		abort("Command buffer %q: barrier inside render pass %q", cb.name, cb.renderPass)
	}
	if len(memoryBarriers)+len(bufferBarriers)+len(imageBarriers) == 0 {
		return
	}
	cb.record(Command{
		Op:             OpBarrier,
		MemoryBarriers: slices.Clone(memoryBarriers),
		BufferBarriers: slices.Clone(bufferBarriers),
		ImageBarriers:  slices.Clone(imageBarriers),
	})
}

func (cb *CommandBuffer) RenderPassBegin(name string, area gmath.Recti32, attachments rendergraph.RenderAttachments) {
	if cb.renderPass != "" {
		abort("Command buffer %q: RenderPassBegin(%q) inside render pass %q", cb.name, name, cb.renderPass)
	}
	if len(attachments.Color) == 0 && attachments.Depth.Image == nil {
		abort("Command buffer %q: render pass %q without attachments", cb.name, name)
	}
	for _, c := range attachments.Color {
		ext := c.Image.Description().Extent
		if ext.X < area.X+area.W || ext.Y < area.Y+area.H {
			abort("Render pass %q: %q is %dx%d, smaller than the render area", name, c.Image.Name(), ext.X, ext.Y)
		}
	}
	cb.renderPass = name
	attachments.Color = slices.Clone(attachments.Color)
	cb.record(Command{Op: OpRenderPassBegin, Target: name, Args: []uint64{uint64(area.W), uint64(area.H)}, Attachments: attachments})
}

func (cb *CommandBuffer) RenderPassEnd() {
	if cb.renderPass == "" {
		abort("Command buffer %q: RenderPassEnd outside a render pass", cb.name)
	}
	cb.record(Command{Op: OpRenderPassEnd, Target: cb.renderPass})
	cb.renderPass = ""
}

func (cb *CommandBuffer) SetViewportAndScissor(area gmath.Recti32) {
	if cb.renderPass == "" {
		abort("Command buffer %q: SetViewportAndScissor outside a render pass", cb.name)
	}
	cb.record(Command{Op: OpViewport, Args: []uint64{uint64(area.X), uint64(area.Y), uint64(area.W), uint64(area.H)}})
}

func (cb *CommandBuffer) BindPipeline(pipeline rendergraph.Pipeline) {
	if pipeline.BindPoint() == rendergraph.PipelineBindPointGraphics && cb.renderPass == "" {
		abort("Command buffer %q: graphics pipeline %q bound outside a render pass", cb.name, pipeline.Name())
	}
	cb.record(Command{Op: OpBindPipeline, Target: pipeline.Name(), Args: []uint64{uint64(pipeline.BindPoint())}})
}

func (cb *CommandBuffer) BindDescriptorSets(bindPoint rendergraph.PipelineBindPoint, layout rendergraph.PipelineLayout, firstSet uint32, sets ...rendergraph.DescriptorSet) {
	names := make([]string, 0, len(sets))
	for _, s := range sets {
		switch s := s.(type) {
		case *DescriptorSet:
			if s.bank != nil && s.generation != s.bank.pool.generation {
				abort("Command buffer %q: bound dead descriptor set %q", cb.name, s.name)
			}
			names = append(names, s.name)
		default:
			names = append(names, fmt.Sprintf("%T", s))
		}
	}
	cb.record(Command{Op: OpBindSets, Target: layout.Name(), Args: []uint64{uint64(bindPoint), uint64(firstSet)}, Sets: names})
}

func (cb *CommandBuffer) PushConstants(layout rendergraph.PipelineLayout, stages rendergraph.ShaderStage, offset uint32, data []byte) {
	if l, ok := layout.(*PipelineLayout); ok {
		if offset+uint32(len(data)) > l.info.PushConstantSize {
			abort("Command buffer %q: %d bytes of push constants at %d exceed layout %q range %d",
				cb.name, len(data), offset, l.name, l.info.PushConstantSize)
		}
		if stages&^l.info.PushConstantStages != 0 {
			abort("Command buffer %q: push constant stages %s not in layout %q", cb.name, stages, l.name)
		}
	}
	cb.record(Command{Op: OpPushConstants, Target: layout.Name(), Args: []uint64{uint64(stages), uint64(offset)}, Data: slices.Clone(data)})
}

func (cb *CommandBuffer) BindVertexBuffers(firstBinding uint32, buffers []rendergraph.Buffer, offsets []uint64) {
	if len(buffers) != len(offsets) {
		abort("Command buffer %q: %d vertex buffers with %d offsets", cb.name, len(buffers), len(offsets))
	}
	target := make([]string, 0, len(buffers))
	for _, b := range buffers {
		target = append(target, b.Name())
	}
	cb.record(Command{Op: OpBindVertex, Target: strings.Join(target, ","), Args: append([]uint64{uint64(firstBinding)}, offsets...)})
}

func (cb *CommandBuffer) BindIndexBuffer(buffer rendergraph.Buffer, offset uint64, indexType rendergraph.IndexType) {
	cb.record(Command{Op: OpBindIndex, Target: buffer.Name(), Args: []uint64{offset, uint64(indexType)}})
}

func (cb *CommandBuffer) checkRenderPass(op Op) {
	if cb.renderPass == "" {
		abort("Command buffer %q: %s outside a render pass", cb.name, op)
	}
}

func (cb *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	cb.checkRenderPass(OpDraw)
	cb.record(Command{Op: OpDraw, Target: cb.renderPass, Args: []uint64{uint64(vertexCount), uint64(instanceCount), uint64(firstVertex), uint64(firstInstance)}})
}

func (cb *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	cb.checkRenderPass(OpDrawIndexed)
	cb.record(Command{Op: OpDrawIndexed, Target: cb.renderPass, Args: []uint64{uint64(indexCount), uint64(instanceCount), uint64(firstIndex), uint64(int64(vertexOffset)), uint64(firstInstance)}})
}

func (cb *CommandBuffer) Dispatch(x, y, z uint32) {
	if cb.renderPass != "" {
		abort("Command buffer %q: Dispatch inside render pass %q", cb.name, cb.renderPass)
	}
	limit := cb.sync.device.properties.Limits.MaxDispatchSize
	if x == 0 || y == 0 || z == 0 || x > limit.X || y > limit.Y || z > limit.Z {
		abort("Command buffer %q: invalid dispatch %dx%dx%d", cb.name, x, y, z)
	}
	cb.record(Command{Op: OpDispatch, Args: []uint64{uint64(x), uint64(y), uint64(z)}})
}

func (cb *CommandBuffer) TraceRays(sbt rendergraph.ShaderBindingTableRegions, width, height, depth uint32) {
	if sbt.RayGen.Size == 0 || sbt.RayGen.Size != sbt.RayGen.Stride {
		abort("Command buffer %q: raygen region size %d must equal its stride %d", cb.name, sbt.RayGen.Size, sbt.RayGen.Stride)
	}
	cb.record(Command{Op: OpTraceRays, Args: []uint64{uint64(width), uint64(height), uint64(depth)}, SBT: sbt})
}

func (cb *CommandBuffer) BlitImage(src rendergraph.Image, srcLayout rendergraph.ImageLayout, dst rendergraph.Image, dstLayout rendergraph.ImageLayout, filter rendergraph.SamplerFilter) {
	if srcLayout != rendergraph.ImageLayoutTransferSrc && srcLayout != rendergraph.ImageLayoutGeneral {
		abort("Command buffer %q: blit source %q in %s", cb.name, src.Name(), srcLayout)
	}
	if dstLayout != rendergraph.ImageLayoutTransferDst && dstLayout != rendergraph.ImageLayoutGeneral {
		abort("Command buffer %q: blit destination %q in %s", cb.name, dst.Name(), dstLayout)
	}
	cb.record(Command{Op: OpBlit, Target: src.Name() + "->" + dst.Name(), Args: []uint64{uint64(filter)}})
}

func (cb *CommandBuffer) ClearColorImage(image rendergraph.Image, layout rendergraph.ImageLayout, value rendergraph.ClearValue) {
	if image.Description().Format.IsDepth() {
		abort("Command buffer %q: ClearColorImage on depth image %q", cb.name, image.Name())
	}
	cb.record(Command{Op: OpClearColor, Target: image.Name(), Args: []uint64{uint64(layout)}})
}

func (cb *CommandBuffer) ClearDepthStencilImage(image rendergraph.Image, layout rendergraph.ImageLayout, value rendergraph.DepthStencilClearValue) {
	if !image.Description().Format.IsDepth() {
		abort("Command buffer %q: ClearDepthStencilImage on color image %q", cb.name, image.Name())
	}
	cb.record(Command{Op: OpClearDepth, Target: image.Name(), Args: []uint64{uint64(layout)}})
}

func (cb *CommandBuffer) WriteTimestamp(stage rendergraph.PipelineStage, query uint32) {
	if query >= uint32(len(cb.sync.pendingTimestamps)) {
		abort("Command buffer %q: timestamp query %d out of range %d", cb.name, query, len(cb.sync.pendingTimestamps))
	}
	cb.sync.pendingTimestamps[query] = cb.sync.device.tick()
	cb.record(Command{Op: OpWriteTimestamp, Args: []uint64{uint64(stage), uint64(query)}})
}

func (cb *CommandBuffer) End() error {
	if cb.ended {
		return debug.Errorf("Command buffer %q ended twice", cb.name)
	}
	cb.ended = true
	if cb.renderPass != "" {
		return debug.Errorf("Command buffer %q ended inside render pass %q", cb.name, cb.renderPass)
	}
	if cb.regions != 0 {
		return debug.Errorf("Command buffer %q ended with %d open regions", cb.name, cb.regions)
	}
	return nil
}

func (d *Device) tick() uint64 {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.clock += d.config.TimestampTicks
	return d.clock
}

/*
FrameSync completes a submission only when waited on, so a graph that forgets to wait before reusing a
frame in flight is caught by Begin.
*/
type FrameSync struct {
	object
	numTimestamps     uint32
	recording         *CommandBuffer
	inFlight          bool
	pendingTimestamps []uint64
	inFlightStamps    []uint64
	timestamps        []uint64
	acquired          bool
	waits             int
}

var _ rendergraph.FrameSync = (*FrameSync)(nil)

func (d *Device) NewFrameSync(name string, numTimestamps uint32) (rendergraph.FrameSync, error) {
	s := &FrameSync{object: d.newObject("frame_sync", name), numTimestamps: numTimestamps}
	d.mtx.Lock()
	d.syncs = append(d.syncs, s)
	d.mtx.Unlock()
	return s, nil
}

func (s *FrameSync) Destroy() {
	s.device.mtx.Lock()
	s.device.syncs = slices.DeleteFunc(s.device.syncs, func(o *FrameSync) bool { return o == s })
	s.device.mtx.Unlock()
	s.object.Destroy()
}

func (s *FrameSync) Wait() {
	s.waits++
	if !s.inFlight {
		return
	}
	s.inFlight = false
	s.timestamps = s.inFlightStamps
	s.inFlightStamps = nil
}

// Waits returns the number of times Wait was called.
func (s *FrameSync) Waits() int {
	return s.waits
}

func (s *FrameSync) Begin(name string) (rendergraph.CommandBuffer, error) {
	if s.inFlight {
		return nil, debug.Errorf("FrameSync %q: Begin while the previous submission is in flight", s.name)
	}
	if s.recording != nil && !s.recording.ended {
		return nil, debug.Errorf("FrameSync %q: Begin while %q is recording", s.name, s.recording.name)
	}
	s.pendingTimestamps = make([]uint64, s.numTimestamps)
	s.recording = &CommandBuffer{sync: s, name: name}
	return s.recording, nil
}

func (s *FrameSync) own(cb rendergraph.CommandBuffer) (*CommandBuffer, error) {
	c, ok := cb.(*CommandBuffer)
	if !ok || c.sync != s || c != s.recording {
		return nil, debug.Errorf("FrameSync %q: command buffer does not belong to it", s.name)
	}
	if !c.ended {
		return nil, debug.Errorf("FrameSync %q: %q was not ended", s.name, c.name)
	}
	return c, nil
}

func (s *FrameSync) Submit(cb rendergraph.CommandBuffer) error {
	c, err := s.own(cb)
	if err != nil {
		return err
	}
	if !s.acquired {
		return debug.Errorf("FrameSync %q: submit without an acquired swapchain image", s.name)
	}
	if s.device.shouldFailSubmit() {
		return debug.Errorf("FrameSync %q: submit of %q failed", s.name, c.name)
	}
	s.recording = nil
	s.inFlight = true
	s.inFlightStamps = s.pendingTimestamps
	s.pendingTimestamps = nil

	s.device.mtx.Lock()
	s.device.submissions = append(s.device.submissions, Submission{Name: c.name, Commands: c.commands})
	s.device.mtx.Unlock()
	return nil
}

func (s *FrameSync) Discard(cb rendergraph.CommandBuffer) {
	c, ok := cb.(*CommandBuffer)
	if !ok || c.sync != s {
		abort("FrameSync %q: discarding a foreign command buffer", s.name)
	}
	c.ended = true
	s.recording = nil
	s.pendingTimestamps = nil
	if s.acquired {
		s.device.swapchain.release(s)
	}
	s.device.mtx.Lock()
	s.device.discarded++
	s.device.mtx.Unlock()
}

func (s *FrameSync) Timestamps() []uint64 {
	return slices.Clone(s.timestamps)
}
