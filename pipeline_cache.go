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
	"bytes"
	"context"
	"fmt"
	"slices"

	"goarrg.com/debug"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
)

func graphicsPipelineKey(desc *GraphicsPipelineDesc, colorFormats []Format, depthFormat Format, layoutID string) string {
	formats := make([]any, 0, len(colorFormats))
	for _, f := range colorFormats {
		formats = append(formats, f)
	}
	return chainIDs(desc.id(), genID(formats...), genID(depthFormat), layoutID)
}

func computePipelineKey(desc *ComputePipelineDesc, layoutID string) string {
	return chainIDs(desc.id(), layoutID)
}

func rayTracingPipelineKey(desc *RayTracingPipelineDesc, layoutID string) string {
	return chainIDs(desc.id(), layoutID)
}

type ShaderBindingTableRegion struct {
	DeviceAddress uint64
	Stride        uint64
	Size          uint64
}

type ShaderBindingTableRegions struct {
	RayGen   ShaderBindingTableRegion
	Miss     ShaderBindingTableRegion
	Hit      ShaderBindingTableRegion
	Callable ShaderBindingTableRegion
}

type ShaderBindingTable struct {
	Buffer  Buffer
	Regions ShaderBindingTableRegions
}

func (t *ShaderBindingTable) Destroy() {
	t.Buffer.Destroy()
}

/*
shaderBindingTableLayout computes region offsets for a table with one raygen group followed by the
miss, hit and callable groups. Every record is the handle size aligned to the handle alignment, every
region starts on the base alignment and the raygen region is exactly one record. Addresses in the
result are offsets from the start of the table.
*/
func shaderBindingTableLayout(props RayTracingProperties, numMiss, numHit, numCallable int) (ShaderBindingTableRegions, uint64) {
	handleSize := uint64(props.ShaderGroupHandleSize)
	stride := alignUp(handleSize, uint64(props.ShaderGroupHandleAlignment))
	base := uint64(props.ShaderGroupBaseAlignment)

	regions := ShaderBindingTableRegions{}
	offset := uint64(0)
	region := func(count int) ShaderBindingTableRegion {
		if count == 0 {
			return ShaderBindingTableRegion{}
		}
		r := ShaderBindingTableRegion{DeviceAddress: offset, Stride: stride, Size: alignUp(stride*uint64(count), base)}
		offset += r.Size
		return r
	}

	regions.RayGen = region(1)
	// raygen must have size == stride
	regions.RayGen.Size = alignUp(stride, base)
	regions.RayGen.Stride = regions.RayGen.Size
	regions.Miss = region(numMiss)
	regions.Hit = region(numHit)
	regions.Callable = region(numCallable)
	return regions, offset
}

func buildShaderBindingTable(device Device, name string, pipeline RayTracingPipeline, desc *RayTracingPipelineDesc) (*ShaderBindingTable, error) {
	props := device.Properties().RayTracing
	if !props.Supported {
		return nil, configErrorf("Device does not support ray tracing pipelines")
	}

	numGroups := desc.numGroups()
	handleSize := int(props.ShaderGroupHandleSize)
	handles, err := pipeline.ShaderGroupHandles(0, uint32(numGroups))
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to get shader group handles of %q", name)
	}
	if len(handles) != numGroups*handleSize {
		return nil, debug.Errorf("%q returned %d bytes of handles, expected %d", name, len(handles), numGroups*handleSize)
	}

	regions, size := shaderBindingTableLayout(props, len(desc.Miss), len(desc.Hit), len(desc.Callable))
	data := make([]byte, size)
	group := 0
	write := func(r ShaderBindingTableRegion, count int) {
		for i := 0; i < count; i++ {
			copy(data[r.DeviceAddress+uint64(i)*r.Stride:], handles[group*handleSize:(group+1)*handleSize])
			group++
		}
	}
	write(regions.RayGen, 1)
	write(regions.Miss, len(desc.Miss))
	write(regions.Hit, len(desc.Hit))
	write(regions.Callable, len(desc.Callable))

	buffer, err := device.NewBuffer(name+"_sbt", BufferCreateInfo{
		Size:  size,
		Usage: BufferUsageShaderBindingTable | BufferUsageShaderDeviceAddress | BufferUsageTransferDst,
	})
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to create shader binding table of %q", name)
	}
	if err := device.Upload(buffer, 0, data); err != nil {
		buffer.Destroy()
		return nil, debug.ErrorWrapf(err, "Failed to upload shader binding table of %q", name)
	}

	address := buffer.DeviceAddress()
	for _, r := range []*ShaderBindingTableRegion{&regions.RayGen, &regions.Miss, &regions.Hit, &regions.Callable} {
		if r.Size > 0 {
			r.DeviceAddress += address
		}
	}
	return &ShaderBindingTable{Buffer: buffer, Regions: regions}, nil
}

type CachedPipeline struct {
	Pipeline Pipeline
	// SBT is only set for ray tracing pipelines.
	SBT *ShaderBindingTable

	key      string
	shaders  []string
	lastUsed uint64
}

func (p *CachedPipeline) Destroy() {
	if p.SBT != nil {
		p.SBT.Destroy()
	}
	p.Pipeline.Destroy()
}

type PipelineCacheStats struct {
	Compiles  int
	Hits      int
	Evictions int
	Failures  int
}

type pipelineRequest struct {
	key          string
	name         string
	layout       PipelineLayout
	graphics     *GraphicsPipelineDesc
	compute      *ComputePipelineDesc
	rayTracing   *RayTracingPipelineDesc
	colorFormats []Format
	depthFormat  Format
}

func (r *pipelineRequest) shaders() []string {
	switch {
	case r.graphics != nil:
		// depth only pipelines have no fragment shader
		if r.graphics.FragmentShader == "" {
			return []string{r.graphics.VertexShader}
		}
		return []string{r.graphics.VertexShader, r.graphics.FragmentShader}
	case r.compute != nil:
		return []string{r.compute.Shader}
	}
	return rayTracingShaders(r.rayTracing)
}

func rayTracingShaders(d *RayTracingPipelineDesc) []string {
	shaders := []string{d.RayGen}
	shaders = append(shaders, d.Miss...)
	for _, h := range d.Hit {
		for _, s := range []string{h.ClosestHit, h.AnyHit, h.Intersection} {
			if s != "" {
				shaders = append(shaders, s)
			}
		}
	}
	return append(shaders, d.Callable...)
}

/*
PipelineCache owns every descriptor set layout, pipeline layout and pipeline the graph creates. Layouts
live as long as the cache, pipelines are evicted when unused for the retention window and compiled again
on their next use. Failed compiles are never cached so a fixed shader is picked up on the next frame.
*/
type PipelineCache struct {
	device    Device
	shaders   *ShaderLoader
	queue     *DeferredQueue
	retention uint64

	setLayouts      map[string]DescriptorSetLayout
	pipelineLayouts map[string]PipelineLayout
	pipelines       map[string]*CachedPipeline
	modules         map[string]ShaderModule

	frame  uint64
	stats  PipelineCacheStats
	failed logOnce
}

func NewPipelineCache(device Device, shaders *ShaderLoader, queue *DeferredQueue, retentionFrames uint64) *PipelineCache {
	return &PipelineCache{
		device:          device,
		shaders:         shaders,
		queue:           queue,
		retention:       retentionFrames,
		setLayouts:      map[string]DescriptorSetLayout{},
		pipelineLayouts: map[string]PipelineLayout{},
		pipelines:       map[string]*CachedPipeline{},
		modules:         map[string]ShaderModule{},
	}
}

func (c *PipelineCache) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"stats\": %s,", jsonString(c.stats)))
	buff.WriteString("\"pipelines\": {")
	{
		err := mapRunFuncSorted(c.pipelines, func(k string, v *CachedPipeline) error {
			buff.WriteString(fmt.Sprintf("%q: {\"name\": %q, \"lastUsed\": %d},", k, v.Pipeline.Name(), v.lastUsed))
			return nil
		})
		if err == nil {
			buff.Truncate(buff.Len() - 1)
		}
	}
	buff.WriteString("}")

	buff.WriteString("}")
	return buff.Bytes(), nil
}

func (c *PipelineCache) Stats() PipelineCacheStats {
	return c.stats
}

// Keys returns the keys of every cached pipeline, sorted.
func (c *PipelineCache) Keys() []string {
	keys := maps.Keys(c.pipelines)
	slices.Sort(keys)
	return keys
}

func (c *PipelineCache) createOrRetrieveSetLayout(name string, bindings []DescriptorSetLayoutBinding) (DescriptorSetLayout, error) {
	id := descriptorSetLayoutID(bindings)
	if l, ok := c.setLayouts[id]; ok {
		return l, nil
	}
	l, err := c.device.NewDescriptorSetLayout(name, bindings)
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to create descriptor set layout %q", name)
	}
	c.setLayouts[id] = l
	return l, nil
}

func (c *PipelineCache) createOrRetrievePipelineLayout(name, id string, info PipelineLayoutCreateInfo) (PipelineLayout, error) {
	if l, ok := c.pipelineLayouts[id]; ok {
		return l, nil
	}
	l, err := c.device.NewPipelineLayout(name, info)
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to create pipeline layout %q", name)
	}
	c.pipelineLayouts[id] = l
	return l, nil
}

func (c *PipelineCache) module(name string) (ShaderModule, error) {
	if m, ok := c.modules[name]; ok {
		return m, nil
	}
	s, err := c.shaders.Load(name)
	if err != nil {
		return nil, err
	}
	m, err := c.device.NewShaderModule(name, s)
	if err != nil {
		return nil, debug.ErrorWrapf(ErrorShaderCompile{}, "Failed to create shader module %q: %v", name, err)
	}
	c.modules[name] = m
	return m, nil
}

func (c *PipelineCache) createOrRetrievePipeline(req *pipelineRequest) (*CachedPipeline, error) {
	if p, ok := c.pipelines[req.key]; ok {
		p.lastUsed = c.frame
		c.stats.Hits++
		return p, nil
	}

	p, err := c.compile(req)
	if err != nil {
		c.stats.Failures++
		c.failed.EPrintf(req.key, "Pipeline %q failed to compile: %v", req.name, err)
		return nil, err
	}
	c.failed.forget(req.key)
	p.key = req.key
	p.shaders = req.shaders()
	p.lastUsed = c.frame
	c.pipelines[req.key] = p
	c.stats.Compiles++
	logger.VPrintf("Compiled pipeline %q: %s", req.name, req.key)
	return p, nil
}

func (c *PipelineCache) compile(req *pipelineRequest) (*CachedPipeline, error) {
	modules := map[string]ShaderModule{}
	for _, s := range req.shaders() {
		m, err := c.module(s)
		if err != nil {
			return nil, err
		}
		modules[s] = m
	}
	wrap := func(err error) error {
		return debug.ErrorWrapf(ErrorShaderCompile{}, "%v", err)
	}

	switch {
	case req.graphics != nil:
		p, err := c.device.NewGraphicsPipeline(req.name, req.layout, GraphicsPipelineCreateInfo{
			Desc:         *req.graphics,
			Vertex:       modules[req.graphics.VertexShader],
			Fragment:     modules[req.graphics.FragmentShader],
			ColorFormats: req.colorFormats,
			DepthFormat:  req.depthFormat,
		})
		if err != nil {
			return nil, wrap(err)
		}
		return &CachedPipeline{Pipeline: p}, nil

	case req.compute != nil:
		p, err := c.device.NewComputePipeline(req.name, req.layout, ComputePipelineCreateInfo{
			Desc:   *req.compute,
			Module: modules[req.compute.Shader],
		})
		if err != nil {
			return nil, wrap(err)
		}
		return &CachedPipeline{Pipeline: p}, nil
	}

	desc := req.rayTracing
	info := RayTracingPipelineCreateInfo{Desc: *desc, RayGen: modules[desc.RayGen]}
	for _, m := range desc.Miss {
		info.Miss = append(info.Miss, modules[m])
	}
	for _, h := range desc.Hit {
		info.Hit = append(info.Hit, RayTracingHitGroupModules{
			ClosestHit:   modules[h.ClosestHit],
			AnyHit:       modules[h.AnyHit],
			Intersection: modules[h.Intersection],
		})
	}
	for _, cs := range desc.Callable {
		info.Callable = append(info.Callable, modules[cs])
	}
	p, err := c.device.NewRayTracingPipeline(req.name, req.layout, info)
	if err != nil {
		return nil, wrap(err)
	}
	sbt, err := buildShaderBindingTable(c.device, req.name, p, desc)
	if err != nil {
		p.Destroy()
		return nil, err
	}
	return &CachedPipeline{Pipeline: p, SBT: sbt}, nil
}

// EndFrame advances the cache's clock and hands pipelines unused for the retention window to the deferred queue.
func (c *PipelineCache) EndFrame() {
	c.frame++
	if c.retention == 0 {
		return
	}
	for _, k := range c.Keys() {
		p := c.pipelines[k]
		if c.frame-p.lastUsed > c.retention {
			logger.VPrintf("Evicting pipeline %q", p.Pipeline.Name())
			c.queue.Push(p)
			delete(c.pipelines, k)
			c.stats.Evictions++
		}
	}
}

// Invalidate drops the shader and every pipeline built from it, they are rebuilt on their next use.
func (c *PipelineCache) Invalidate(shader string) {
	c.shaders.Evict(shader)
	if m, ok := c.modules[shader]; ok {
		c.queue.Push(m)
		delete(c.modules, shader)
	}
	n := len(c.pipelines)
	maps.DeleteFunc(c.pipelines, func(k string, p *CachedPipeline) bool {
		if !slices.Contains(p.shaders, shader) {
			return false
		}
		c.queue.Push(p)
		return true
	})
	clear(c.failed.seen)
	logger.IPrintf("Shader %q invalidated %d pipelines", shader, n-len(c.pipelines))
}

// Warm loads shaders from disk in parallel so the first frame does not stall on file IO.
func (c *PipelineCache) Warm(ctx context.Context, shaders []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, s := range slices.Compact(slices.Sorted(slices.Values(shaders))) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := c.shaders.Load(s)
			return err
		})
	}
	return g.Wait()
}

func (c *PipelineCache) Destroy() {
	for _, k := range c.Keys() {
		c.pipelines[k].Destroy()
	}
	for _, m := range c.modules {
		m.Destroy()
	}
	for _, l := range c.pipelineLayouts {
		l.Destroy()
	}
	for _, l := range c.setLayouts {
		l.Destroy()
	}
	clear(c.pipelines)
	clear(c.modules)
	clear(c.pipelineLayouts)
	clear(c.setLayouts)
}
