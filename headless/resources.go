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
	"encoding/binary"
	"slices"

	"goarrg.com/debug"
	"goarrg.com/rhi/rendergraph"
)

type Image struct {
	object
	desc rendergraph.ImageDescription
}

var _ rendergraph.Image = (*Image)(nil)

func (img *Image) Description() rendergraph.ImageDescription {
	return img.desc
}

type Buffer struct {
	object
	info    rendergraph.BufferCreateInfo
	address uint64
	data    []byte
}

var _ rendergraph.Buffer = (*Buffer)(nil)

func (b *Buffer) Usage() rendergraph.BufferUsageFlags {
	return b.info.Usage
}

func (b *Buffer) Size() uint64 {
	return b.info.Size
}

func (b *Buffer) HostWrite(offset uint64, data []byte) error {
	if !b.info.HostVisible {
		return debug.Errorf("Buffer %q is not host visible", b.name)
	}
	return b.write(offset, data)
}

func (b *Buffer) write(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.info.Size {
		return debug.Errorf("Write of %d bytes at %d overflows buffer %q of size %d", len(data), offset, b.name, b.info.Size)
	}
	b.device.mtx.Lock()
	defer b.device.mtx.Unlock()
	copy(b.data[offset:], data)
	return nil
}

// Data returns a copy of the buffer's contents.
func (b *Buffer) Data() []byte {
	b.device.mtx.Lock()
	defer b.device.mtx.Unlock()
	return slices.Clone(b.data)
}

func (b *Buffer) DeviceAddress() uint64 {
	if !b.info.Usage.HasBits(rendergraph.BufferUsageShaderDeviceAddress) {
		abort("Buffer %q was not created with ShaderDeviceAddress usage", b.name)
	}
	return b.address
}

type Sampler struct {
	object
	info rendergraph.SamplerCreateInfo
}

var _ rendergraph.Sampler = (*Sampler)(nil)

type AccelerationStructure struct {
	object
	info    rendergraph.AccelerationStructureCreateInfo
	address uint64
}

var _ rendergraph.AccelerationStructure = (*AccelerationStructure)(nil)

func (a *AccelerationStructure) DeviceAddress() uint64 {
	return a.address
}

// TopLevel reports whether the structure was built from instances.
func (a *AccelerationStructure) TopLevel() bool {
	return len(a.info.Instances) > 0
}

type ShaderModule struct {
	object
	stage rendergraph.ShaderStage
	words int
}

var _ rendergraph.ShaderModule = (*ShaderModule)(nil)

func (m *ShaderModule) Stage() rendergraph.ShaderStage {
	return m.stage
}

type DescriptorSetLayout struct {
	object
	bindings []rendergraph.DescriptorSetLayoutBinding
}

var _ rendergraph.DescriptorSetLayout = (*DescriptorSetLayout)(nil)

func (l *DescriptorSetLayout) Bindings() []rendergraph.DescriptorSetLayoutBinding {
	return slices.Clone(l.bindings)
}

func (l *DescriptorSetLayout) binding(i int) (rendergraph.DescriptorSetLayoutBinding, bool) {
	for _, b := range l.bindings {
		if int(b.Binding) == i {
			return b, true
		}
	}
	return rendergraph.DescriptorSetLayoutBinding{}, false
}

type PipelineLayout struct {
	object
	info rendergraph.PipelineLayoutCreateInfo
}

var _ rendergraph.PipelineLayout = (*PipelineLayout)(nil)

func (l *PipelineLayout) PushConstantSize() uint32 {
	return l.info.PushConstantSize
}

type Pipeline struct {
	object
	bindPoint rendergraph.PipelineBindPoint
	layout    rendergraph.PipelineLayout
}

var _ rendergraph.Pipeline = (*Pipeline)(nil)

func (p *Pipeline) BindPoint() rendergraph.PipelineBindPoint {
	return p.bindPoint
}

func (p *Pipeline) Layout() rendergraph.PipelineLayout {
	return p.layout
}

type RayTracingPipeline struct {
	Pipeline
	groups int
}

var _ rendergraph.RayTracingPipeline = (*RayTracingPipeline)(nil)

// ShaderGroupHandles returns handles whose first 8 bytes are the pipeline id and the group index.
func (p *RayTracingPipeline) ShaderGroupHandles(firstGroup, groupCount uint32) ([]byte, error) {
	if int(firstGroup+groupCount) > p.groups {
		return nil, debug.Errorf("Pipeline %q has %d groups, asked for [%d, %d)", p.name, p.groups, firstGroup, firstGroup+groupCount)
	}
	size := p.device.properties.RayTracing.ShaderGroupHandleSize
	handles := make([]byte, size*groupCount)
	for i := range groupCount {
		h := handles[i*size:]
		binary.LittleEndian.PutUint32(h, uint32(p.id))
		binary.LittleEndian.PutUint32(h[4:], firstGroup+i)
	}
	return handles, nil
}

func (d *Device) NewImage(name string, desc rendergraph.ImageDescription) (rendergraph.Image, error) {
	if d.shouldFailAlloc(name) {
		return nil, debug.ErrorWrapf(rendergraph.ErrorOutOfMemory{}, "Failed to allocate image %q", name)
	}
	if desc.Extent.X <= 0 || desc.Extent.Y <= 0 || desc.Extent.Z <= 0 {
		return nil, debug.Errorf("Image %q has invalid extent %dx%dx%d", name, desc.Extent.X, desc.Extent.Y, desc.Extent.Z)
	}
	if desc.Extent.X > d.properties.Limits.MaxImageDimension2D || desc.Extent.Y > d.properties.Limits.MaxImageDimension2D {
		return nil, debug.Errorf("Image %q extent %dx%d exceeds %d", name, desc.Extent.X, desc.Extent.Y, d.properties.Limits.MaxImageDimension2D)
	}
	if desc.Format == rendergraph.FORMAT_UNDEFINED || desc.Usage == 0 {
		return nil, debug.Errorf("Image %q has no format or usage: %s", name, desc)
	}
	img := &Image{object: d.newObject("image", name), desc: desc}
	logger.VPrintf("Created image %q: %s", name, desc)
	return img, nil
}

func (d *Device) NewBuffer(name string, info rendergraph.BufferCreateInfo) (rendergraph.Buffer, error) {
	if d.shouldFailAlloc(name) {
		return nil, debug.ErrorWrapf(rendergraph.ErrorOutOfMemory{}, "Failed to allocate buffer %q", name)
	}
	if info.Size == 0 {
		return nil, debug.Errorf("Buffer %q has zero size", name)
	}
	b := &Buffer{object: d.newObject("buffer", name), info: info, data: make([]byte, info.Size)}
	if info.Usage.HasBits(rendergraph.BufferUsageShaderDeviceAddress) {
		b.address = d.address(info.Size)
	}
	return b, nil
}

func (d *Device) NewSampler(name string, info rendergraph.SamplerCreateInfo) (rendergraph.Sampler, error) {
	return &Sampler{object: d.newObject("sampler", name), info: info}, nil
}

func (d *Device) NewAccelerationStructure(name string, info rendergraph.AccelerationStructureCreateInfo) (rendergraph.AccelerationStructure, error) {
	if !d.properties.RayTracing.Supported {
		return nil, debug.Errorf("Acceleration structure %q: ray tracing is not supported", name)
	}
	if (len(info.Geometries) == 0) == (len(info.Instances) == 0) {
		return nil, debug.Errorf("Acceleration structure %q needs either geometries or instances", name)
	}
	for i, g := range info.Geometries {
		if g.VertexBuffer == nil || g.VertexCount == 0 {
			return nil, debug.Errorf("Acceleration structure %q: geometry %d has no vertices", name, i)
		}
	}
	for i, inst := range info.Instances {
		if inst.BLAS == nil {
			return nil, debug.Errorf("Acceleration structure %q: instance %d has no BLAS", name, i)
		}
	}
	return &AccelerationStructure{
		object:  d.newObject("acceleration_structure", name),
		info:    info,
		address: d.address(256),
	}, nil
}

func (d *Device) NewShaderModule(name string, shader *rendergraph.Shader) (rendergraph.ShaderModule, error) {
	if shader == nil || len(shader.SPIRV) == 0 {
		return nil, debug.Errorf("Shader module %q without code", name)
	}
	return &ShaderModule{object: d.newObject("shader_module", name), stage: shader.Stage, words: len(shader.SPIRV)}, nil
}

func (d *Device) NewDescriptorSetLayout(name string, bindings []rendergraph.DescriptorSetLayoutBinding) (rendergraph.DescriptorSetLayout, error) {
	seen := map[uint32]bool{}
	for _, b := range bindings {
		if seen[b.Binding] {
			return nil, debug.Errorf("Descriptor set layout %q declares binding %d twice", name, b.Binding)
		}
		seen[b.Binding] = true
	}
	return &DescriptorSetLayout{object: d.newObject("descriptor_set_layout", name), bindings: slices.Clone(bindings)}, nil
}

func (d *Device) NewPipelineLayout(name string, info rendergraph.PipelineLayoutCreateInfo) (rendergraph.PipelineLayout, error) {
	if uint32(len(info.SetLayouts)) > d.properties.Limits.MaxBoundDescriptorSets {
		return nil, debug.Errorf("Pipeline layout %q has %d sets", name, len(info.SetLayouts))
	}
	if info.PushConstantSize > d.properties.Limits.MaxPushConstantsSize {
		return nil, debug.Errorf("Pipeline layout %q push constants %d exceed %d", name, info.PushConstantSize, d.properties.Limits.MaxPushConstantsSize)
	}
	if info.PushConstantSize > 0 && info.PushConstantStages == 0 {
		return nil, debug.Errorf("Pipeline layout %q has push constants without stages", name)
	}
	return &PipelineLayout{object: d.newObject("pipeline_layout", name), info: info}, nil
}

func checkModule(pipeline string, m rendergraph.ShaderModule, stage rendergraph.ShaderStage) error {
	if m == nil {
		return debug.Errorf("Pipeline %q is missing its %s shader", pipeline, stage)
	}
	if m.Stage() != stage {
		return debug.Errorf("Pipeline %q: %q is a %s shader, expected %s", pipeline, m.Name(), m.Stage(), stage)
	}
	return nil
}

func (d *Device) NewGraphicsPipeline(name string, layout rendergraph.PipelineLayout, info rendergraph.GraphicsPipelineCreateInfo) (rendergraph.Pipeline, error) {
	if failed := d.shouldFailShader(info.Vertex, info.Fragment); failed != "" {
		return nil, debug.Errorf("Pipeline %q: %q failed to compile", name, failed)
	}
	if err := checkModule(name, info.Vertex, rendergraph.ShaderStageVertex); err != nil {
		return nil, err
	}
	if info.Fragment != nil {
		if err := checkModule(name, info.Fragment, rendergraph.ShaderStageFragment); err != nil {
			return nil, err
		}
	}
	if len(info.ColorFormats) == 0 && info.DepthFormat == rendergraph.FORMAT_UNDEFINED {
		return nil, debug.Errorf("Pipeline %q renders to no attachments", name)
	}
	return &Pipeline{object: d.newObject("pipeline", name), bindPoint: rendergraph.PipelineBindPointGraphics, layout: layout}, nil
}

func (d *Device) NewComputePipeline(name string, layout rendergraph.PipelineLayout, info rendergraph.ComputePipelineCreateInfo) (rendergraph.Pipeline, error) {
	if failed := d.shouldFailShader(info.Module); failed != "" {
		return nil, debug.Errorf("Pipeline %q: %q failed to compile", name, failed)
	}
	if err := checkModule(name, info.Module, rendergraph.ShaderStageCompute); err != nil {
		return nil, err
	}
	return &Pipeline{object: d.newObject("pipeline", name), bindPoint: rendergraph.PipelineBindPointCompute, layout: layout}, nil
}

func (d *Device) NewRayTracingPipeline(name string, layout rendergraph.PipelineLayout, info rendergraph.RayTracingPipelineCreateInfo) (rendergraph.RayTracingPipeline, error) {
	if !d.properties.RayTracing.Supported {
		return nil, debug.Errorf("Pipeline %q: ray tracing is not supported", name)
	}
	modules := []rendergraph.ShaderModule{info.RayGen}
	modules = append(modules, info.Miss...)
	for _, h := range info.Hit {
		modules = append(modules, h.ClosestHit, h.AnyHit, h.Intersection)
	}
	modules = append(modules, info.Callable...)
	if failed := d.shouldFailShader(modules...); failed != "" {
		return nil, debug.Errorf("Pipeline %q: %q failed to compile", name, failed)
	}
	if err := checkModule(name, info.RayGen, rendergraph.ShaderStageRayGen); err != nil {
		return nil, err
	}
	for _, m := range info.Miss {
		if err := checkModule(name, m, rendergraph.ShaderStageMiss); err != nil {
			return nil, err
		}
	}
	if info.Desc.MaxRecursionDepth > d.properties.RayTracing.MaxRecursionDepth {
		return nil, debug.Errorf("Pipeline %q: recursion depth %d exceeds %d", name, info.Desc.MaxRecursionDepth, d.properties.RayTracing.MaxRecursionDepth)
	}
	return &RayTracingPipeline{
		Pipeline: Pipeline{object: d.newObject("pipeline", name), bindPoint: rendergraph.PipelineBindPointRayTracing, layout: layout},
		groups:   1 + len(info.Miss) + len(info.Hit) + len(info.Callable),
	}, nil
}

// Upload is a one shot transfer made through Device.Upload or Device.UploadImage.
type Upload struct {
	Target string
	Offset uint64
	Size   int
}

func (d *Device) Upload(dst rendergraph.Buffer, offset uint64, data []byte) error {
	b, ok := dst.(*Buffer)
	if !ok {
		return debug.Errorf("Upload target %q is not a headless buffer", dst.Name())
	}
	if err := b.write(offset, data); err != nil {
		return err
	}
	d.mtx.Lock()
	d.uploads = append(d.uploads, Upload{Target: b.name, Offset: offset, Size: len(data)})
	d.mtx.Unlock()
	return nil
}

func (d *Device) UploadImage(dst rendergraph.Image, data []byte) error {
	desc := dst.Description()
	want := int(desc.Extent.X) * int(desc.Extent.Y) * int(desc.Extent.Z) * int(desc.Format.BlockSize())
	if len(data) != want {
		return debug.Errorf("Upload to %q needs %d bytes, got %d", dst.Name(), want, len(data))
	}
	if !desc.Usage.HasBits(rendergraph.ImageUsageTransferDst) {
		return debug.Errorf("Upload target %q was not created with TransferDst usage", dst.Name())
	}
	d.mtx.Lock()
	d.uploads = append(d.uploads, Upload{Target: dst.Name(), Size: len(data)})
	d.mtx.Unlock()
	return nil
}
