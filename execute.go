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
	"goarrg.com/debug"
	"goarrg.com/gmath"
	"goarrg.com/rhi/rendergraph/internal/util"
)

/*
RecordContext is handed to a pass's Record func. Pipelines are indexed in the order the pass spec lists
them, the first one is already bound along with both descriptor sets when Record is called. Misuse such
as oversized push constants panics and is reported as ErrorPassFailed by Execute.
*/
type RecordContext struct {
	graph     *Graph
	frame     *Frame
	pass      *PlannedPass
	cb        CommandBuffer
	layout    passLayout
	set       DescriptorSet
	pipelines []*CachedPipeline
	bound     int
}

func (rc *RecordContext) PassName() string {
	return rc.pass.Name
}

func (rc *RecordContext) CommandBuffer() CommandBuffer {
	return rc.cb
}

func (rc *RecordContext) Resources() ResourceManager {
	return rc.graph.resources
}

func (rc *RecordContext) Scene() SceneProvider {
	return rc.graph.scene
}

func (rc *RecordContext) FrameIndex() uint64 {
	return rc.frame.index
}

// Extent returns the graph dimensions.
func (rc *RecordContext) Extent() Extent2i32 {
	return Extent2i32{X: rc.frame.plan.Width, Y: rc.frame.plan.Height}
}

func (rc *RecordContext) Image(name string) Image {
	img, err := rc.frame.resources.image(name)
	if err != nil {
		abort("Pass %q: %s", rc.pass.Name, err)
	}
	return img
}

// HistoryImage returns the image holding what tag held at the end of the previous frame.
func (rc *RecordContext) HistoryImage(tag string) Image {
	return rc.Image(historyName(tag))
}

func (rc *RecordContext) Buffer(name string) Buffer {
	b, err := rc.frame.resources.buffer(name)
	if err != nil {
		abort("Pass %q: %s", rc.pass.Name, err)
	}
	return b
}

func (rc *RecordContext) AccelerationStructure(name string) AccelerationStructure {
	as, err := rc.frame.resources.accelerationStructure(name)
	if err != nil {
		abort("Pass %q: %s", rc.pass.Name, err)
	}
	return as
}

func (rc *RecordContext) pipeline() *CachedPipeline {
	if len(rc.pipelines) == 0 {
		abort("Pass %q has no pipelines", rc.pass.Name)
	}
	return rc.pipelines[rc.bound]
}

// BindPipeline binds the i-th pipeline of the pass together with set 0 and set 1.
func (rc *RecordContext) BindPipeline(i int) {
	if i < 0 || i >= len(rc.pipelines) {
		abort("Pass %q: pipeline index %d out of range [0, %d)", rc.pass.Name, i, len(rc.pipelines))
	}
	rc.bound = i
	p := rc.pipelines[i].Pipeline
	rc.cb.BindPipeline(p)

	sets := []DescriptorSet{rc.graph.resources.GlobalSet(rc.frame.slot)}
	if rc.set != nil {
		sets = append(sets, rc.set)
	}
	rc.cb.BindDescriptorSets(p.BindPoint(), rc.layout.pipeline, 0, sets...)
}

// PushConstants pushes data at offset 0.
func (rc *RecordContext) PushConstants(data []byte) {
	if len(data) > MaxPushConstantsSize {
		abort("Pass %q: %d bytes of push constants exceeds %d", rc.pass.Name, len(data), MaxPushConstantsSize)
	}
	if uint32(len(data)) > rc.pass.PushConstantSize {
		abort("Pass %q: %d bytes of push constants exceeds the declared %d", rc.pass.Name, len(data), rc.pass.PushConstantSize)
	}
	rc.cb.PushConstants(rc.layout.pipeline, rc.pass.pass.pushConstantStages(), 0, data)
}

// Push pushes v as push constants, T must already have the layout the shader expects.
func Push[T comparable](rc *RecordContext, v T) {
	rc.PushConstants(util.Bytes(&v))
}

func (rc *RecordContext) BindVertexBuffers(firstBinding uint32, buffers []Buffer, offsets []uint64) {
	if rc.pass.Kind != PassKindGraphics {
		abort("Pass %q: BindVertexBuffers in a %s pass", rc.pass.Name, rc.pass.Kind)
	}
	rc.cb.BindVertexBuffers(firstBinding, buffers, offsets)
}

func (rc *RecordContext) BindIndexBuffer(buffer Buffer, offset uint64, indexType IndexType) {
	if rc.pass.Kind != PassKindGraphics {
		abort("Pass %q: BindIndexBuffer in a %s pass", rc.pass.Name, rc.pass.Kind)
	}
	rc.cb.BindIndexBuffer(buffer, offset, indexType)
}

func (rc *RecordContext) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if rc.pass.Kind != PassKindGraphics {
		abort("Pass %q: Draw in a %s pass", rc.pass.Name, rc.pass.Kind)
	}
	rc.cb.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (rc *RecordContext) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if rc.pass.Kind != PassKindGraphics {
		abort("Pass %q: DrawIndexed in a %s pass", rc.pass.Name, rc.pass.Kind)
	}
	rc.cb.DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (rc *RecordContext) Dispatch(x, y, z uint32) {
	if rc.pipeline().Pipeline.BindPoint() != PipelineBindPointCompute {
		abort("Pass %q: Dispatch without a compute pipeline bound", rc.pass.Name)
	}
	rc.cb.Dispatch(x, y, z)
}

// DispatchForExtent dispatches enough groups of the bound pipeline's local size to cover the graph dimensions.
func (rc *RecordContext) DispatchForExtent() {
	ext := rc.Extent()
	rc.dispatchFor(ext.X, ext.Y)
}

// DispatchForImage covers the extent of the named image instead, for passes writing scaled images.
func (rc *RecordContext) DispatchForImage(name string) {
	ext := rc.Image(name).Description().Extent
	rc.dispatchFor(ext.X, ext.Y)
}

func (rc *RecordContext) dispatchFor(width, height int32) {
	p := rc.pass.pass
	i := rc.bound - len(p.graphics)
	if i < 0 || i >= len(p.compute) {
		abort("Pass %q: dispatch without a compute pipeline bound", rc.pass.Name)
	}
	local := p.compute[i].LocalSize
	local.X, local.Y = max(local.X, 1), max(local.Y, 1)
	rc.Dispatch(
		(uint32(width)+local.X-1)/local.X,
		(uint32(height)+local.Y-1)/local.Y,
		1,
	)
}

// TraceRays traces width x height rays with the pass's ray tracing pipeline and its shader binding table.
func (rc *RecordContext) TraceRays(width, height uint32) {
	p := rc.pipeline()
	if p.SBT == nil {
		abort("Pass %q: TraceRays without a ray tracing pipeline bound", rc.pass.Name)
	}
	rc.cb.TraceRays(p.SBT.Regions, width, height, 1)
}

func (rc *RecordContext) blit(src, dst string, filter SamplerFilter) {
	rc.cb.BlitImage(rc.Image(src), ImageLayoutTransferSrc, rc.Image(dst), ImageLayoutTransferDst, filter)
}

const maxTimestamps = 512

func (g *Graph) timestampsEnabled(plan *ExecutionPlan) bool {
	return g.config.EnableTimestamps && 2*len(plan.Passes)+1 <= maxTimestamps
}

func (g *Graph) preparePass(p *PlannedPass) (passLayout, []*CachedPipeline, error) {
	l, err := g.binder.layout(p)
	if err != nil {
		return passLayout{}, nil, err
	}

	pass := p.pass
	pipelines := make([]*CachedPipeline, 0, pass.numPipelines())
	key := 0
	get := func(req pipelineRequest) error {
		req.key = p.PipelineKeys[key]
		req.name = p.Name
		req.layout = l.pipeline
		key++
		c, err := g.pipelines.createOrRetrievePipeline(&req)
		if err != nil {
			return debug.ErrorWrapf(err, "Pass %q", p.Name)
		}
		pipelines = append(pipelines, c)
		return nil
	}
	for i := range pass.graphics {
		if err := get(pipelineRequest{graphics: &pass.graphics[i], colorFormats: p.colorFormats(), depthFormat: p.depthFormat()}); err != nil {
			return passLayout{}, nil, err
		}
	}
	for i := range pass.compute {
		if err := get(pipelineRequest{compute: &pass.compute[i]}); err != nil {
			return passLayout{}, nil, err
		}
	}
	if pass.rayTracing != nil {
		if err := get(pipelineRequest{rayTracing: pass.rayTracing}); err != nil {
			return passLayout{}, nil, err
		}
	}
	return l, pipelines, nil
}

func (g *Graph) barriers(cb CommandBuffer, f *Frame, planned []PlannedBarrier) error {
	if len(planned) == 0 {
		return nil
	}
	var images []ImageBarrier
	var buffers []BufferBarrier
	var memory []MemoryBarrier
	for _, b := range planned {
		switch b.Kind {
		case ResourceKindImage:
			img, err := f.resources.image(b.Resource)
			if err != nil {
				return err
			}
			images = append(images, ImageBarrier{Image: img, Src: b.Src, Dst: b.Dst})
		case ResourceKindBuffer:
			buf, err := f.resources.buffer(b.Resource)
			if err != nil {
				return err
			}
			buffers = append(buffers, BufferBarrier{
				Buffer: buf,
				Src:    BufferBarrierInfo{Stage: b.Src.Stage, Access: b.Src.Access},
				Dst:    BufferBarrierInfo{Stage: b.Dst.Stage, Access: b.Dst.Access},
			})
		default:
			memory = append(memory, MemoryBarrier{
				Src: MemoryBarrierInfo{Stage: b.Src.Stage, Access: b.Src.Access},
				Dst: MemoryBarrierInfo{Stage: b.Dst.Stage, Access: b.Dst.Access},
			})
		}
	}
	cb.CompoundBarrier(memory, buffers, images)
	return nil
}

// clearHistory zeroes read slots that no submitted frame has written yet and moves them to the state
// the plan expects them in.
func (g *Graph) clearHistory(cb CommandBuffer, f *Frame) {
	var pairs []*historyPair
	for _, p := range g.history.invalid() {
		if h := f.plan.history(p.tag); h != nil && len(h.Readers) > 0 {
			pairs = append(pairs, p)
		}
	}
	if len(pairs) == 0 {
		return
	}

	cb.BeginNamedRegion("ClearHistory")
	defer cb.EndNamedRegion()

	toTransfer := make([]ImageBarrier, 0, len(pairs))
	for _, p := range pairs {
		toTransfer = append(toTransfer, ImageBarrier{
			Image: p.read(f.index),
			Src:   ImageBarrierInfo{Layout: ImageLayoutUndefined, Stage: PipelineStageTopOfPipe},
			Dst:   ImageBarrierInfo{Layout: ImageLayoutTransferDst, Stage: PipelineStageTransfer, Access: AccessFlagTransferWrite},
		})
	}
	cb.CompoundBarrier(nil, nil, toTransfer)

	toPlan := make([]ImageBarrier, 0, len(pairs))
	for _, p := range pairs {
		img := p.read(f.index)
		switch v := ZeroClearValue(p.desc.Format).(type) {
		case DepthStencilClearValue:
			cb.ClearDepthStencilImage(img, ImageLayoutTransferDst, v)
		default:
			cb.ClearColorImage(img, ImageLayoutTransferDst, v)
		}
		h := f.plan.history(p.tag)
		toPlan = append(toPlan, ImageBarrier{
			Image: img,
			Src:   ImageBarrierInfo{Layout: ImageLayoutTransferDst, Stage: PipelineStageTransfer, Access: AccessFlagTransferWrite},
			Dst:   h.readState(),
		})
	}
	cb.CompoundBarrier(nil, nil, toPlan)
}

// transitionHistory moves read slots carried over a rebuild from the state the previous plan left them in to
// the one the current plan expects, keeping their contents.
func (g *Graph) transitionHistory(cb CommandBuffer, f *Frame) {
	pairs := g.history.stale(f.plan)
	if len(pairs) == 0 {
		return
	}

	cb.BeginNamedRegion("TransitionHistory")
	defer cb.EndNamedRegion()

	barriers := make([]ImageBarrier, 0, len(pairs))
	for _, p := range pairs {
		barriers = append(barriers, ImageBarrier{
			Image: p.read(f.index),
			Src:   p.state,
			Dst:   f.plan.history(p.tag).readState(),
		})
		logger.VPrintf("History %q: %s -> %s", p.tag, p.state.Layout, f.plan.history(p.tag).ReadLayout)
	}
	cb.CompoundBarrier(nil, nil, barriers)
}

func (g *Graph) record(cb CommandBuffer, f *Frame) error {
	plan := f.plan
	timestamps := g.timestampsEnabled(plan)
	area := gmath.Recti32{W: plan.Width, H: plan.Height}

	g.clearHistory(cb, f)
	g.transitionHistory(cb, f)

	for i := range plan.Passes {
		p := &plan.Passes[i]
		layout, pipelines, err := g.preparePass(p)
		if err != nil {
			return err
		}
		set, err := g.binder.bind(f.slot, p, layout, f.resources)
		if err != nil {
			return err
		}

		cb.BeginNamedRegion(p.Name)
		if timestamps {
			cb.WriteTimestamp(PipelineStageTopOfPipe, uint32(2*i))
		}
		if err := g.barriers(cb, f, p.Barriers); err != nil {
			return err
		}

		if p.Kind == PassKindGraphics {
			attachments, err := g.attachments(f, p)
			if err != nil {
				return err
			}
			cb.RenderPassBegin(p.Name, area, attachments)
			cb.SetViewportAndScissor(area)
		}

		rc := &RecordContext{graph: g, frame: f, pass: p, cb: cb, layout: layout, set: set, pipelines: pipelines}
		if len(pipelines) > 0 {
			rc.BindPipeline(0)
		}
		if err := p.pass.record(rc); err != nil {
			return debug.ErrorWrapf(ErrorPassFailed{}, "Pass %q: %v", p.Name, err)
		}

		if p.Kind == PassKindGraphics {
			cb.RenderPassEnd()
		}
		if timestamps {
			cb.WriteTimestamp(PipelineStageBottomOfPipe, uint32(2*i+1))
		}
		cb.EndNamedRegion()
	}

	if err := g.barriers(cb, f, plan.FinalBarriers); err != nil {
		return err
	}
	if timestamps {
		cb.WriteTimestamp(PipelineStageBottomOfPipe, uint32(2*len(plan.Passes)))
	}
	return nil
}

func (g *Graph) attachments(f *Frame, p *PlannedPass) (RenderAttachments, error) {
	attachments := RenderAttachments{Color: make([]RenderColorAttachment, 0, len(p.Color))}
	for _, c := range p.Color {
		img, err := f.resources.image(c.Resource)
		if err != nil {
			return RenderAttachments{}, err
		}
		attachments.Color = append(attachments.Color, RenderColorAttachment{
			Image:      img,
			Layout:     ImageLayoutColorAttachment,
			LoadOp:     c.LoadOp,
			StoreOp:    c.StoreOp,
			ClearValue: c.Clear,
		})
	}
	if p.Depth != nil {
		img, err := f.resources.image(p.Depth.Resource)
		if err != nil {
			return RenderAttachments{}, err
		}
		attachments.Depth = RenderDepthAttachment{
			Image:   img,
			Layout:  ImageLayoutDepthStencilAttachment,
			LoadOp:  p.Depth.LoadOp,
			StoreOp: p.Depth.StoreOp,
		}
		if v, ok := p.Depth.Clear.(DepthStencilClearValue); ok {
			attachments.Depth.ClearValue = v
		}
	}
	return attachments, nil
}
