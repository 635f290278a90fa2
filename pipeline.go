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
	"strings"

	"goarrg.com/gmath"
	"goarrg.com/rhi/rendergraph/internal/vk"
)

type PipelineStage uint64

const (
	PipelineStageNone                  PipelineStage = vk.PIPELINE_STAGE_2_NONE
	PipelineStageTopOfPipe             PipelineStage = vk.PIPELINE_STAGE_2_TOP_OF_PIPE_BIT
	PipelineStageIndirect              PipelineStage = vk.PIPELINE_STAGE_2_DRAW_INDIRECT_BIT
	PipelineStageVertexInput           PipelineStage = vk.PIPELINE_STAGE_2_VERTEX_INPUT_BIT
	PipelineStageVertexShader          PipelineStage = vk.PIPELINE_STAGE_2_VERTEX_SHADER_BIT
	PipelineStageFragmentShader        PipelineStage = vk.PIPELINE_STAGE_2_FRAGMENT_SHADER_BIT
	PipelineStageEarlyFragmentTests    PipelineStage = vk.PIPELINE_STAGE_2_EARLY_FRAGMENT_TESTS_BIT
	PipelineStageLateFragmentTests     PipelineStage = vk.PIPELINE_STAGE_2_LATE_FRAGMENT_TESTS_BIT
	PipelineStageColorAttachmentOutput PipelineStage = vk.PIPELINE_STAGE_2_COLOR_ATTACHMENT_OUTPUT_BIT
	PipelineStageCompute               PipelineStage = vk.PIPELINE_STAGE_2_COMPUTE_SHADER_BIT
	PipelineStageTransfer              PipelineStage = vk.PIPELINE_STAGE_2_ALL_TRANSFER_BIT
	PipelineStageBottomOfPipe          PipelineStage = vk.PIPELINE_STAGE_2_BOTTOM_OF_PIPE_BIT
	PipelineStageHost                  PipelineStage = vk.PIPELINE_STAGE_2_HOST_BIT
	PipelineStageGraphics              PipelineStage = vk.PIPELINE_STAGE_2_ALL_GRAPHICS_BIT
	PipelineStageAll                   PipelineStage = vk.PIPELINE_STAGE_2_ALL_COMMANDS_BIT
	PipelineStageRayTracing            PipelineStage = vk.PIPELINE_STAGE_2_RAY_TRACING_SHADER_BIT_KHR
	PipelineStageAccelerationStructure PipelineStage = vk.PIPELINE_STAGE_2_ACCELERATION_STRUCTURE_BUILD_BIT_KHR
)

func (s PipelineStage) HasBits(want PipelineStage) bool {
	return hasBits(s, want)
}

func (s PipelineStage) String() string {
	if s == PipelineStageNone {
		return "NONE"
	}
	str := ""
	for _, b := range []struct {
		bit  PipelineStage
		name string
	}{
		{PipelineStageTopOfPipe, "TOP_OF_PIPE"},
		{PipelineStageIndirect, "DRAW_INDIRECT"},
		{PipelineStageVertexInput, "VERTEX_INPUT"},
		{PipelineStageVertexShader, "VERTEX_SHADER"},
		{PipelineStageFragmentShader, "FRAGMENT_SHADER"},
		{PipelineStageEarlyFragmentTests, "EARLY_FRAGMENT_TESTS"},
		{PipelineStageLateFragmentTests, "LATE_FRAGMENT_TESTS"},
		{PipelineStageColorAttachmentOutput, "COLOR_ATTACHMENT_OUTPUT"},
		{PipelineStageCompute, "COMPUTE"},
		{PipelineStageTransfer, "TRANSFER"},
		{PipelineStageBottomOfPipe, "BOTTOM_OF_PIPE"},
		{PipelineStageHost, "HOST"},
		{PipelineStageGraphics, "ALL_GRAPHICS"},
		{PipelineStageAll, "ALL_COMMANDS"},
		{PipelineStageRayTracing, "RAY_TRACING"},
		{PipelineStageAccelerationStructure, "ACCELERATION_STRUCTURE_BUILD"},
	} {
		if s.HasBits(b.bit) {
			str += b.name + "|"
		}
	}
	return strings.TrimSuffix(str, "|")
}

func (s PipelineStage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type AccessFlags uint64

const (
	AccessFlagNone                      AccessFlags = vk.ACCESS_2_NONE
	AccessFlagIndexRead                 AccessFlags = vk.ACCESS_2_INDEX_READ_BIT
	AccessFlagVertexAttributeRead       AccessFlags = vk.ACCESS_2_VERTEX_ATTRIBUTE_READ_BIT
	AccessFlagUniformRead               AccessFlags = vk.ACCESS_2_UNIFORM_READ_BIT
	AccessFlagShaderRead                AccessFlags = vk.ACCESS_2_SHADER_READ_BIT
	AccessFlagShaderWrite               AccessFlags = vk.ACCESS_2_SHADER_WRITE_BIT
	AccessFlagColorAttachmentRead       AccessFlags = vk.ACCESS_2_COLOR_ATTACHMENT_READ_BIT
	AccessFlagColorAttachmentWrite      AccessFlags = vk.ACCESS_2_COLOR_ATTACHMENT_WRITE_BIT
	AccessFlagDepthStencilRead          AccessFlags = vk.ACCESS_2_DEPTH_STENCIL_ATTACHMENT_READ_BIT
	AccessFlagDepthStencilWrite         AccessFlags = vk.ACCESS_2_DEPTH_STENCIL_ATTACHMENT_WRITE_BIT
	AccessFlagTransferRead              AccessFlags = vk.ACCESS_2_TRANSFER_READ_BIT
	AccessFlagTransferWrite             AccessFlags = vk.ACCESS_2_TRANSFER_WRITE_BIT
	AccessFlagHostWrite                 AccessFlags = vk.ACCESS_2_HOST_WRITE_BIT
	AccessFlagMemoryRead                AccessFlags = vk.ACCESS_2_MEMORY_READ_BIT
	AccessFlagMemoryWrite               AccessFlags = vk.ACCESS_2_MEMORY_WRITE_BIT
	AccessFlagAccelerationStructureRead AccessFlags = vk.ACCESS_2_ACCELERATION_STRUCTURE_READ_BIT_KHR
)

// writeAccessMask is every access bit that modifies memory.
const writeAccessMask = AccessFlagShaderWrite | AccessFlagColorAttachmentWrite | AccessFlagDepthStencilWrite |
	AccessFlagTransferWrite | AccessFlagHostWrite | AccessFlagMemoryWrite

func (a AccessFlags) HasBits(want AccessFlags) bool {
	return hasBits(a, want)
}

func (a AccessFlags) IsWrite() bool {
	return (a & writeAccessMask) != 0
}

func (a AccessFlags) String() string {
	if a == AccessFlagNone {
		return "NONE"
	}
	str := ""
	for _, b := range []struct {
		bit  AccessFlags
		name string
	}{
		{AccessFlagIndexRead, "INDEX_READ"},
		{AccessFlagVertexAttributeRead, "VERTEX_ATTRIBUTE_READ"},
		{AccessFlagUniformRead, "UNIFORM_READ"},
		{AccessFlagShaderRead, "SHADER_READ"},
		{AccessFlagShaderWrite, "SHADER_WRITE"},
		{AccessFlagColorAttachmentRead, "COLOR_ATTACHMENT_READ"},
		{AccessFlagColorAttachmentWrite, "COLOR_ATTACHMENT_WRITE"},
		{AccessFlagDepthStencilRead, "DEPTH_STENCIL_READ"},
		{AccessFlagDepthStencilWrite, "DEPTH_STENCIL_WRITE"},
		{AccessFlagTransferRead, "TRANSFER_READ"},
		{AccessFlagTransferWrite, "TRANSFER_WRITE"},
		{AccessFlagHostWrite, "HOST_WRITE"},
		{AccessFlagMemoryRead, "MEMORY_READ"},
		{AccessFlagMemoryWrite, "MEMORY_WRITE"},
		{AccessFlagAccelerationStructureRead, "ACCELERATION_STRUCTURE_READ"},
	} {
		if a.HasBits(b.bit) {
			str += b.name + "|"
		}
	}
	return strings.TrimSuffix(str, "|")
}

func (a AccessFlags) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

type PipelineBindPoint uint32

const (
	PipelineBindPointGraphics   PipelineBindPoint = vk.PIPELINE_BIND_POINT_GRAPHICS
	PipelineBindPointCompute    PipelineBindPoint = vk.PIPELINE_BIND_POINT_COMPUTE
	PipelineBindPointRayTracing PipelineBindPoint = vk.PIPELINE_BIND_POINT_RAY_TRACING_KHR
)

func (p PipelineBindPoint) String() string {
	switch p {
	case PipelineBindPointGraphics:
		return "Graphics"
	case PipelineBindPointCompute:
		return "Compute"
	case PipelineBindPointRayTracing:
		return "RayTracing"
	}
	abort("Unknown bind point: %d", p)
	return ""
}

type CullMode uint32

const (
	CullModeNone  CullMode = vk.CULL_MODE_NONE
	CullModeFront CullMode = vk.CULL_MODE_FRONT_BIT
	CullModeBack  CullMode = vk.CULL_MODE_BACK_BIT
)

func (c CullMode) String() string {
	switch c {
	case CullModeNone:
		return "None"
	case CullModeFront:
		return "Front"
	case CullModeBack:
		return "Back"
	}
	abort("Unknown cull mode: %d", c)
	return ""
}

type FrontFace uint32

const (
	FrontFaceCounterClockwise FrontFace = vk.FRONT_FACE_COUNTER_CLOCKWISE
	FrontFaceClockwise        FrontFace = vk.FRONT_FACE_CLOCKWISE
)

func (f FrontFace) String() string {
	if f == FrontFaceClockwise {
		return "CW"
	}
	return "CCW"
}

type CompareOp uint32

const (
	CompareOpNever          CompareOp = vk.COMPARE_OP_NEVER
	CompareOpLess           CompareOp = vk.COMPARE_OP_LESS
	CompareOpEqual          CompareOp = vk.COMPARE_OP_EQUAL
	CompareOpLessOrEqual    CompareOp = vk.COMPARE_OP_LESS_OR_EQUAL
	CompareOpGreater        CompareOp = vk.COMPARE_OP_GREATER
	CompareOpGreaterOrEqual CompareOp = vk.COMPARE_OP_GREATER_OR_EQUAL
	CompareOpAlways         CompareOp = vk.COMPARE_OP_ALWAYS
)

func (c CompareOp) String() string {
	switch c {
	case CompareOpNever:
		return "Never"
	case CompareOpLess:
		return "Less"
	case CompareOpEqual:
		return "Equal"
	case CompareOpLessOrEqual:
		return "LessOrEqual"
	case CompareOpGreater:
		return "Greater"
	case CompareOpGreaterOrEqual:
		return "GreaterOrEqual"
	case CompareOpAlways:
		return "Always"
	}
	abort("Unknown compare op: %d", c)
	return ""
}

// MaxPushConstantsSize is the per pass push constant budget, every device in scope supports at least this much.
const MaxPushConstantsSize = 128

type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

type GraphicsPipelineDesc struct {
	VertexShader   string
	FragmentShader string

	VertexStride     uint32
	VertexAttributes []VertexAttribute

	CullMode       CullMode
	FrontFace      FrontFace
	DepthTest      bool
	DepthWrite     bool
	DepthCompareOp CompareOp
	Blend          bool

	PushConstantSize uint32
}

func (d *GraphicsPipelineDesc) id() string {
	attributes := make([]any, 0, len(d.VertexAttributes))
	for _, a := range d.VertexAttributes {
		attributes = append(attributes, genID(a.Location, a.Format, a.Offset))
	}
	return genID("graphics", d.VertexShader, d.FragmentShader, d.VertexStride, genID(attributes...),
		d.CullMode, d.FrontFace, d.DepthTest, d.DepthWrite, d.DepthCompareOp, d.Blend, d.PushConstantSize)
}

type ComputePipelineDesc struct {
	Shader           string
	LocalSize        gmath.Extent3u32
	PushConstantSize uint32
}

func (d *ComputePipelineDesc) id() string {
	return genID("compute", d.Shader, d.LocalSize.X, d.LocalSize.Y, d.LocalSize.Z, d.PushConstantSize)
}

type RayTracingHitGroup struct {
	ClosestHit   string
	AnyHit       string
	Intersection string
}

type RayTracingPipelineDesc struct {
	RayGen   string
	Miss     []string
	Hit      []RayTracingHitGroup
	Callable []string

	MaxRecursionDepth uint32
	PushConstantSize  uint32
}

func (d *RayTracingPipelineDesc) id() string {
	items := []any{"raytracing", d.RayGen}
	for _, m := range d.Miss {
		items = append(items, m)
	}
	for _, h := range d.Hit {
		items = append(items, genID(h.ClosestHit, h.AnyHit, h.Intersection))
	}
	for _, c := range d.Callable {
		items = append(items, c)
	}
	return genID(append(items, d.MaxRecursionDepth, d.PushConstantSize)...)
}

func (d *RayTracingPipelineDesc) numGroups() int {
	return 1 + len(d.Miss) + len(d.Hit) + len(d.Callable)
}

type ShaderModule interface {
	Destroyer
	Name() string
	Stage() ShaderStage
}

type PipelineLayout interface {
	Destroyer
	Name() string
}

type PipelineLayoutCreateInfo struct {
	SetLayouts         []DescriptorSetLayout
	PushConstantSize   uint32
	PushConstantStages ShaderStage
}

type Pipeline interface {
	Destroyer
	Name() string
	BindPoint() PipelineBindPoint
	Layout() PipelineLayout
}

type RayTracingPipeline interface {
	Pipeline
	// ShaderGroupHandles returns groupCount handles of DeviceProperties.ShaderGroupHandleSize bytes each.
	ShaderGroupHandles(firstGroup, groupCount uint32) ([]byte, error)
}

type GraphicsPipelineCreateInfo struct {
	Desc         GraphicsPipelineDesc
	Vertex       ShaderModule
	Fragment     ShaderModule
	ColorFormats []Format
	DepthFormat  Format
}

type ComputePipelineCreateInfo struct {
	Desc   ComputePipelineDesc
	Module ShaderModule
}

type RayTracingHitGroupModules struct {
	ClosestHit   ShaderModule
	AnyHit       ShaderModule
	Intersection ShaderModule
}

type RayTracingPipelineCreateInfo struct {
	Desc     RayTracingPipelineDesc
	RayGen   ShaderModule
	Miss     []ShaderModule
	Hit      []RayTracingHitGroupModules
	Callable []ShaderModule
}
