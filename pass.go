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
	"strings"
)

const (
	// RenderOutput is bound to the acquired swapchain image every frame.
	RenderOutput = "RENDER_OUTPUT"
	// SceneTLAS is bound to the scene's top level acceleration structure when it has one.
	SceneTLAS = "SceneTLAS"
	// SceneInstances is bound to the scene's ray tracing instance records.
	SceneInstances = "SceneInstances"
	// MaterialBufferName is bound to the resource manager's material buffer.
	MaterialBufferName = "Materials"

	historyPrefix = "history:"
)

func historyName(tag string) string {
	return historyPrefix + tag
}

type PassKind uint32

const (
	PassKindGraphics PassKind = iota + 1
	PassKindCompute
	PassKindRayTracing
	PassKindBlit
)

func (k PassKind) String() string {
	switch k {
	case PassKindGraphics:
		return "Graphics"
	case PassKindCompute:
		return "Compute"
	case PassKindRayTracing:
		return "RayTracing"
	case PassKindBlit:
		return "Blit"
	}
	return fmt.Sprintf("PassKind(%d)", uint32(k))
}

func (k PassKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k PassKind) bindPoint() PipelineBindPoint {
	switch k {
	case PassKindCompute:
		return PipelineBindPointCompute
	case PassKindRayTracing:
		return PipelineBindPointRayTracing
	}
	return PipelineBindPointGraphics
}

func (k PassKind) shaderStageFlags() ShaderStage {
	switch k {
	case PassKindGraphics:
		return ShaderStageGraphics
	case PassKindCompute:
		return ShaderStageCompute
	case PassKindRayTracing:
		return ShaderStageRayTracing
	}
	return 0
}

type ResourceKind uint32

const (
	ResourceKindImage ResourceKind = iota
	ResourceKindBuffer
	ResourceKindAccelerationStructure
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceKindImage:
		return "Image"
	case ResourceKindBuffer:
		return "Buffer"
	case ResourceKindAccelerationStructure:
		return "AccelerationStructure"
	}
	return fmt.Sprintf("ResourceKind(%d)", uint32(k))
}

// resourceAccess is one declared read or write of a pass.
type resourceAccess struct {
	name  string
	kind  ResourceKind
	write bool
	// storage selects GENERAL/SHADER_{READ|WRITE} instead of attachment or sampled access.
	storage bool
	blit    bool

	binding    int32
	format     Format
	clear      ClearValue
	historyTag string

	width, height int32
	scale         float32
}

func (a *resourceAccess) usage(k PassKind) ResourceUsage {
	switch a.kind {
	case ResourceKindBuffer:
		if a.write {
			return ResourceUsageBufferWrite
		}
		return ResourceUsageBufferRead
	case ResourceKindAccelerationStructure:
		return ResourceUsageAccelerationStructure
	}
	switch {
	case a.blit && a.write:
		return ResourceUsageBlitDst
	case a.blit:
		return ResourceUsageBlitSrc
	case a.storage && a.write:
		return ResourceUsageStorageWrite
	case a.storage:
		return ResourceUsageStorageRead
	case a.write && a.format.IsDepth():
		return ResourceUsageDepthAttachment
	case a.write:
		return ResourceUsageColorAttachment
	}
	return ResourceUsageSampled
}

func (a *resourceAccess) hasBinding(k PassKind) bool {
	switch a.usage(k) {
	case ResourceUsageColorAttachment, ResourceUsageDepthAttachment, ResourceUsageBlitSrc, ResourceUsageBlitDst:
		return false
	}
	return true
}

/*
PassBuilder collects the reads and writes of one pass while its Setup func runs. Declarations are
only checked against each other at Build, the builder itself only catches misuse within the pass.
*/
type PassBuilder struct {
	kind     PassKind
	pass     string
	accesses []*resourceAccess
	err      error
	sealed   bool
}

func (b *PassBuilder) checkSealed() {
	if b.sealed {
		abort("Pass %q: builder used after Setup returned", b.pass)
	}
}

func (b *PassBuilder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = configErrorf("Pass %q: %s", b.pass, fmt.Sprintf(format, args...))
	}
}

func (b *PassBuilder) add(a *resourceAccess) {
	b.checkSealed()
	if a.name == "" {
		b.fail("empty resource name")
	}
	for _, o := range b.accesses {
		if o.name == a.name {
			if o.write != a.write {
				b.fail("%q is both read and written", a.name)
			} else {
				b.fail("%q declared twice", a.name)
			}
		}
	}
	b.accesses = append(b.accesses, a)
}

type ReadDecl struct {
	builder *PassBuilder
	access  *resourceAccess
}

// Binding overrides the set 1 binding index, which otherwise follows declaration order.
func (d *ReadDecl) Binding(n uint32) *ReadDecl {
	d.builder.checkSealed()
	d.access.binding = int32(n)
	return d
}

func (b *PassBuilder) read(name string, kind ResourceKind, storage bool) *ReadDecl {
	if strings.HasPrefix(name, historyPrefix) {
		b.fail("%q uses the reserved %q prefix, use ReadHistory", name, historyPrefix)
	}
	a := &resourceAccess{name: name, kind: kind, storage: storage, binding: -1}
	b.add(a)
	return &ReadDecl{builder: b, access: a}
}

// Read declares a sampled read of an image.
func (b *PassBuilder) Read(name string) *ReadDecl {
	return b.read(name, ResourceKindImage, false)
}

// ReadCompute declares a storage image read.
func (b *PassBuilder) ReadCompute(name string) *ReadDecl {
	return b.read(name, ResourceKindImage, true)
}

// ReadHistory declares a sampled read of what the image saved as tag held at the end of the previous frame.
func (b *PassBuilder) ReadHistory(tag string) *ReadDecl {
	if tag == "" {
		b.fail("empty history tag")
	}
	a := &resourceAccess{name: historyName(tag), kind: ResourceKindImage, binding: -1, historyTag: tag}
	b.add(a)
	return &ReadDecl{builder: b, access: a}
}

// ReadBuffer declares a storage buffer read of an externally owned buffer.
func (b *PassBuilder) ReadBuffer(name string) *ReadDecl {
	return b.read(name, ResourceKindBuffer, true)
}

func (b *PassBuilder) ReadAccelerationStructure(name string) *ReadDecl {
	return b.read(name, ResourceKindAccelerationStructure, false)
}

type WriteDecl struct {
	builder *PassBuilder
	access  *resourceAccess
}

func (d *WriteDecl) Format(f Format) *WriteDecl {
	d.builder.checkSealed()
	d.access.format = f
	return d
}

// Clear sets the value the attachment is cleared to when the pass begins, without it the previous contents are loaded.
func (d *WriteDecl) Clear(v ClearValue) *WriteDecl {
	d.builder.checkSealed()
	d.access.clear = v
	return d
}

func (d *WriteDecl) ClearDepth(depth float32) *WriteDecl {
	return d.Clear(DepthStencilClearValue{Depth: depth})
}

// SaveAsHistory keeps the written contents for one frame, readers get them through ReadHistory(tag).
func (d *WriteDecl) SaveAsHistory(tag string) *WriteDecl {
	d.builder.checkSealed()
	if tag == "" {
		d.builder.fail("%q: empty history tag", d.access.name)
	}
	d.access.historyTag = tag
	return d
}

// Size fixes the extent, otherwise the image follows the graph dimensions.
func (d *WriteDecl) Size(width, height int32) *WriteDecl {
	d.builder.checkSealed()
	if width <= 0 || height <= 0 {
		d.builder.fail("%q: invalid size %dx%d", d.access.name, width, height)
	}
	d.access.width, d.access.height = width, height
	return d
}

// Scale sizes the image relative to the graph dimensions.
func (d *WriteDecl) Scale(s float32) *WriteDecl {
	d.builder.checkSealed()
	if s <= 0 {
		d.builder.fail("%q: invalid scale %g", d.access.name, s)
	}
	d.access.scale = s
	return d
}

func (d *WriteDecl) Binding(n uint32) *WriteDecl {
	d.builder.checkSealed()
	d.access.binding = int32(n)
	return d
}

func (b *PassBuilder) write(name string, kind ResourceKind, storage bool) *WriteDecl {
	if strings.HasPrefix(name, historyPrefix) {
		b.fail("%q uses the reserved %q prefix", name, historyPrefix)
	}
	a := &resourceAccess{name: name, kind: kind, write: true, storage: storage, binding: -1}
	b.add(a)
	return &WriteDecl{builder: b, access: a}
}

/*
Write declares the single write of an image this frame. In a graphics pass the image becomes a color
attachment, or the depth attachment when its format is a depth format. In compute and ray tracing
passes it is a storage image.
*/
func (b *PassBuilder) Write(name string) *WriteDecl {
	return b.write(name, ResourceKindImage, b.kind == PassKindCompute || b.kind == PassKindRayTracing)
}

func (b *PassBuilder) WriteStorage(name string) *WriteDecl {
	return b.write(name, ResourceKindImage, true)
}

// WriteBuffer declares a storage buffer write of an externally owned buffer.
func (b *PassBuilder) WriteBuffer(name string) *WriteDecl {
	return b.write(name, ResourceKindBuffer, true)
}

// RecordFunc records the body of a pass, a returned error discards the frame.
type RecordFunc func(rc *RecordContext) error

type GraphicsPassSpec struct {
	Name      string
	Pipelines []GraphicsPipelineDesc
	Setup     func(b *PassBuilder)
	Record    RecordFunc
}

type ComputePassSpec struct {
	Name      string
	Pipelines []ComputePipelineDesc
	Setup     func(b *PassBuilder)
	Record    RecordFunc
}

type RayTracingPassSpec struct {
	Name string
	// Pipeline may be nil for passes that trace with ray queries from a compute shader instead, see ComputePipelines.
	Pipeline         *RayTracingPipelineDesc
	ComputePipelines []ComputePipelineDesc
	Setup            func(b *PassBuilder)
	Record           RecordFunc
}

type BlitPassSpec struct {
	Name      string
	Src       string
	Dst       string
	SrcFormat Format
	DstFormat Format
	Filter    SamplerFilter
}

// Pass is an immutable registered pass.
type Pass struct {
	name     string
	kind     PassKind
	accesses []*resourceAccess

	graphics   []GraphicsPipelineDesc
	compute    []ComputePipelineDesc
	rayTracing *RayTracingPipelineDesc
	blit       *BlitPassSpec

	record RecordFunc
}

func (p *Pass) Name() string {
	return p.name
}

func (p *Pass) Kind() PassKind {
	return p.kind
}

func (p *Pass) String() string {
	return p.name
}

func (p *Pass) pushConstantSize() uint32 {
	size := uint32(0)
	for i := range p.graphics {
		size = max(size, p.graphics[i].PushConstantSize)
	}
	for i := range p.compute {
		size = max(size, p.compute[i].PushConstantSize)
	}
	if p.rayTracing != nil {
		size = max(size, p.rayTracing.PushConstantSize)
	}
	return size
}

func (p *Pass) pushConstantStages() ShaderStage {
	if p.kind == PassKindRayTracing && p.rayTracing == nil {
		return ShaderStageCompute
	}
	return p.kind.shaderStageFlags()
}

func (p *Pass) numPipelines() int {
	n := len(p.graphics) + len(p.compute)
	if p.rayTracing != nil {
		n++
	}
	return n
}

func newPass(name string, kind PassKind, setup func(b *PassBuilder), record RecordFunc) (*Pass, error) {
	if name == "" {
		return nil, configErrorf("Empty pass name")
	}
	if record == nil {
		return nil, configErrorf("Pass %q: nil Record", name)
	}
	b := &PassBuilder{kind: kind, pass: name}
	if setup != nil {
		setup(b)
	}
	b.sealed = true
	if b.err != nil {
		return nil, b.err
	}
	return &Pass{name: name, kind: kind, accesses: b.accesses, record: record}, nil
}

func checkPushConstantSize(pass string, size uint32) error {
	if size > MaxPushConstantsSize {
		return configErrorf("Pass %q: push constant size %d exceeds %d", pass, size, MaxPushConstantsSize)
	}
	if size%4 != 0 {
		return configErrorf("Pass %q: push constant size %d is not a multiple of 4", pass, size)
	}
	return nil
}

func NewGraphicsPass(spec GraphicsPassSpec) (*Pass, error) {
	if len(spec.Pipelines) == 0 {
		return nil, configErrorf("Pass %q: graphics pass without pipelines", spec.Name)
	}
	for i := range spec.Pipelines {
		if err := checkPushConstantSize(spec.Name, spec.Pipelines[i].PushConstantSize); err != nil {
			return nil, err
		}
	}
	p, err := newPass(spec.Name, PassKindGraphics, spec.Setup, spec.Record)
	if err != nil {
		return nil, err
	}
	p.graphics = append([]GraphicsPipelineDesc(nil), spec.Pipelines...)
	return p, nil
}

func NewComputePass(spec ComputePassSpec) (*Pass, error) {
	if len(spec.Pipelines) == 0 {
		return nil, configErrorf("Pass %q: compute pass without pipelines", spec.Name)
	}
	for i := range spec.Pipelines {
		if err := checkPushConstantSize(spec.Name, spec.Pipelines[i].PushConstantSize); err != nil {
			return nil, err
		}
	}
	p, err := newPass(spec.Name, PassKindCompute, spec.Setup, spec.Record)
	if err != nil {
		return nil, err
	}
	p.compute = append([]ComputePipelineDesc(nil), spec.Pipelines...)
	return p, nil
}

func NewRayTracingPass(spec RayTracingPassSpec) (*Pass, error) {
	if spec.Pipeline == nil && len(spec.ComputePipelines) == 0 {
		return nil, configErrorf("Pass %q: ray tracing pass without pipelines", spec.Name)
	}
	if spec.Pipeline != nil {
		if spec.Pipeline.RayGen == "" {
			return nil, configErrorf("Pass %q: ray tracing pipeline without raygen shader", spec.Name)
		}
		if err := checkPushConstantSize(spec.Name, spec.Pipeline.PushConstantSize); err != nil {
			return nil, err
		}
	}
	for i := range spec.ComputePipelines {
		if err := checkPushConstantSize(spec.Name, spec.ComputePipelines[i].PushConstantSize); err != nil {
			return nil, err
		}
	}
	p, err := newPass(spec.Name, PassKindRayTracing, spec.Setup, spec.Record)
	if err != nil {
		return nil, err
	}
	if spec.Pipeline != nil {
		desc := *spec.Pipeline
		p.rayTracing = &desc
	}
	p.compute = append([]ComputePipelineDesc(nil), spec.ComputePipelines...)
	return p, nil
}

func NewBlitPass(spec BlitPassSpec) (*Pass, error) {
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("Blit:%s->%s", spec.Src, spec.Dst)
	}
	if spec.Src == "" || spec.Dst == "" {
		return nil, configErrorf("Pass %q: blit needs both a source and a destination", spec.Name)
	}
	if strings.HasPrefix(spec.Src, historyPrefix) || strings.HasPrefix(spec.Dst, historyPrefix) {
		return nil, configErrorf("Pass %q: blit uses the reserved %q prefix", spec.Name, historyPrefix)
	}
	p, err := newPass(spec.Name, PassKindBlit, func(b *PassBuilder) {
		src := &resourceAccess{name: spec.Src, kind: ResourceKindImage, blit: true, binding: -1, format: spec.SrcFormat}
		b.add(src)
		dst := &resourceAccess{name: spec.Dst, kind: ResourceKindImage, blit: true, write: true, binding: -1, format: spec.DstFormat}
		b.add(dst)
	}, func(rc *RecordContext) error {
		rc.blit(spec.Src, spec.Dst, spec.Filter)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.blit = &spec
	return p, nil
}
