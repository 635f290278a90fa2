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
	"fmt"

	"goarrg.com/gmath"
)

type Destroyer interface {
	Destroy()
}

type destroyFunc struct {
	f func()
}

func (d destroyFunc) Destroy() {
	d.f()
}

// DestroyFunc adapts f into a Destroyer for use with DeferredQueue.
func DestroyFunc(f func()) Destroyer {
	return destroyFunc{f: f}
}

// Extent2i32 is the size of a surface or render area, gmath only carries 3D extents.
type Extent2i32 struct {
	X, Y int32
}

func (e Extent2i32) String() string {
	return fmt.Sprintf("%dx%d", e.X, e.Y)
}

type (
	RayTracingProperties struct {
		Supported                  bool
		ShaderGroupHandleSize      uint32
		ShaderGroupHandleAlignment uint32
		ShaderGroupBaseAlignment   uint32
		MaxRecursionDepth          uint32
	}
	Limits struct {
		MaxImageDimension2D    int32
		MaxPushConstantsSize   uint32
		MaxBoundDescriptorSets uint32
		MaxDispatchSize        gmath.Extent3u32
		// TimestampPeriod is the number of nanoseconds per timestamp tick.
		TimestampPeriod float32
	}
	Properties struct {
		Name       string
		VendorID   uint32
		DeviceID   uint32
		API        uint32
		Limits     Limits
		RayTracing RayTracingProperties
	}
)

func vkAPI2String(api uint32) string {
	return fmt.Sprintf("%d.%d.%d", ((api >> 22) & 0x7F), ((api >> 12) & 0x3FF), (api & 0xFFF))
}

func (p *Properties) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"Name\": %q,", p.Name))
	buff.WriteString(fmt.Sprintf("\"VendorID\": %q,", toHex(p.VendorID)))
	buff.WriteString(fmt.Sprintf("\"DeviceID\": %q,", toHex(p.DeviceID)))
	buff.WriteString(fmt.Sprintf("\"API\": %q,", vkAPI2String(p.API)))
	buff.WriteString(fmt.Sprintf("\"Limits\": %s,", jsonString(p.Limits)))
	buff.WriteString(fmt.Sprintf("\"RayTracing\": %s", jsonString(p.RayTracing)))

	buff.WriteString("}")
	return buff.Bytes(), nil
}

/*
Device is the GPU context consumed by the graph: it owns the logical device, queues, allocator and swapchain.
Every object created through it must be destroyed by the caller, the graph routes its own objects through
a DeferredQueue so they are never destroyed while a frame in flight may still use them.
*/
type Device interface {
	Properties() Properties
	Swapchain() Swapchain

	NewImage(name string, desc ImageDescription) (Image, error)
	NewBuffer(name string, info BufferCreateInfo) (Buffer, error)
	NewSampler(name string, info SamplerCreateInfo) (Sampler, error)
	NewAccelerationStructure(name string, info AccelerationStructureCreateInfo) (AccelerationStructure, error)

	NewShaderModule(name string, shader *Shader) (ShaderModule, error)
	NewDescriptorSetLayout(name string, bindings []DescriptorSetLayoutBinding) (DescriptorSetLayout, error)
	NewDescriptorPool(name string, info DescriptorPoolCreateInfo) (DescriptorPool, error)
	NewPipelineLayout(name string, info PipelineLayoutCreateInfo) (PipelineLayout, error)
	NewGraphicsPipeline(name string, layout PipelineLayout, info GraphicsPipelineCreateInfo) (Pipeline, error)
	NewComputePipeline(name string, layout PipelineLayout, info ComputePipelineCreateInfo) (Pipeline, error)
	NewRayTracingPipeline(name string, layout PipelineLayout, info RayTracingPipelineCreateInfo) (RayTracingPipeline, error)

	// NewFrameSync creates the per frame in flight command buffer, semaphores, fence and timestamp pool.
	NewFrameSync(name string, numTimestamps uint32) (FrameSync, error)

	// Upload copies data into a device local buffer with a one shot command buffer and waits for it.
	Upload(dst Buffer, offset uint64, data []byte) error
	// UploadImage fills every texel of dst and leaves it in ImageLayoutShaderReadOnly.
	UploadImage(dst Image, data []byte) error
	WaitIdle()
}

type Swapchain interface {
	Format() Format
	Extent() Extent2i32
	// AcquireNextImage returns ErrorSwapchainStale when the surface is out of date.
	AcquireNextImage(sync FrameSync) (Image, error)
	// Present returns ErrorSwapchainStale when the surface went out of date during presentation,
	// the frame was still submitted.
	Present(sync FrameSync) error
	// Recreate rebuilds the swapchain at the surface's current extent.
	Recreate() error
}

type FrameSync interface {
	Destroyer
	// Wait blocks until the last submission made with this FrameSync has completed, there is no timeout.
	// It returns immediately when nothing was submitted.
	Wait()
	Begin(name string) (CommandBuffer, error)
	// Submit submits an ended command buffer, waiting on image acquisition and signalling render finished and the fence.
	Submit(cb CommandBuffer) error
	/*
		Discard drops an ended command buffer without submitting it. An image acquired with this FrameSync is
		released back to the swapchain and its image acquired semaphore is consumed, so the next acquire on
		this slot starts unsignaled.
	*/
	Discard(cb CommandBuffer)
	// Timestamps returns the values written by the last completed submission.
	Timestamps() []uint64
}

// CommandBuffer is a primary command buffer in the recording state.
type CommandBuffer interface {
	BeginNamedRegion(name string)
	EndNamedRegion()

	CompoundBarrier(memoryBarriers []MemoryBarrier, bufferBarriers []BufferBarrier, imageBarriers []ImageBarrier)

	RenderPassBegin(name string, area gmath.Recti32, attachments RenderAttachments)
	RenderPassEnd()
	SetViewportAndScissor(area gmath.Recti32)

	BindPipeline(pipeline Pipeline)
	BindDescriptorSets(bindPoint PipelineBindPoint, layout PipelineLayout, firstSet uint32, sets ...DescriptorSet)
	PushConstants(layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	BindVertexBuffers(firstBinding uint32, buffers []Buffer, offsets []uint64)
	BindIndexBuffer(buffer Buffer, offset uint64, indexType IndexType)

	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	Dispatch(x, y, z uint32)
	TraceRays(sbt ShaderBindingTableRegions, width, height, depth uint32)

	BlitImage(src Image, srcLayout ImageLayout, dst Image, dstLayout ImageLayout, filter SamplerFilter)
	ClearColorImage(image Image, layout ImageLayout, value ClearValue)
	ClearDepthStencilImage(image Image, layout ImageLayout, value DepthStencilClearValue)

	WriteTimestamp(stage PipelineStage, query uint32)

	End() error
}
