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

	"goarrg.com/rhi/rendergraph/internal/vk"
)

type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc                 BufferUsageFlags = vk.BUFFER_USAGE_TRANSFER_SRC_BIT
	BufferUsageTransferDst                 BufferUsageFlags = vk.BUFFER_USAGE_TRANSFER_DST_BIT
	BufferUsageUniformBuffer               BufferUsageFlags = vk.BUFFER_USAGE_UNIFORM_BUFFER_BIT
	BufferUsageStorageBuffer               BufferUsageFlags = vk.BUFFER_USAGE_STORAGE_BUFFER_BIT
	BufferUsageIndexBuffer                 BufferUsageFlags = vk.BUFFER_USAGE_INDEX_BUFFER_BIT
	BufferUsageVertexBuffer                BufferUsageFlags = vk.BUFFER_USAGE_VERTEX_BUFFER_BIT
	BufferUsageIndirectBuffer              BufferUsageFlags = vk.BUFFER_USAGE_INDIRECT_BUFFER_BIT
	BufferUsageShaderBindingTable          BufferUsageFlags = vk.BUFFER_USAGE_SHADER_BINDING_TABLE_BIT_KHR
	BufferUsageShaderDeviceAddress         BufferUsageFlags = vk.BUFFER_USAGE_SHADER_DEVICE_ADDRESS_BIT
	BufferUsageAccelerationStructureInput  BufferUsageFlags = vk.BUFFER_USAGE_ACCELERATION_STRUCTURE_BUILD_INPUT_READ_ONLY_BIT_KHR
	BufferUsageAccelerationStructureBuffer BufferUsageFlags = vk.BUFFER_USAGE_ACCELERATION_STRUCTURE_STORAGE_BIT_KHR
)

func (u BufferUsageFlags) HasBits(want BufferUsageFlags) bool {
	return hasBits(u, want)
}

func (u BufferUsageFlags) String() string {
	str := ""
	if u.HasBits(BufferUsageTransferSrc) {
		str += "TransferSrc|"
	}
	if u.HasBits(BufferUsageTransferDst) {
		str += "TransferDst|"
	}
	if u.HasBits(BufferUsageUniformBuffer) {
		str += "UniformBuffer|"
	}
	if u.HasBits(BufferUsageStorageBuffer) {
		str += "StorageBuffer|"
	}
	if u.HasBits(BufferUsageIndexBuffer) {
		str += "IndexBuffer|"
	}
	if u.HasBits(BufferUsageVertexBuffer) {
		str += "VertexBuffer|"
	}
	if u.HasBits(BufferUsageIndirectBuffer) {
		str += "IndirectBuffer|"
	}
	if u.HasBits(BufferUsageShaderBindingTable) {
		str += "ShaderBindingTable|"
	}
	if u.HasBits(BufferUsageShaderDeviceAddress) {
		str += "ShaderDeviceAddress|"
	}
	if u.HasBits(BufferUsageAccelerationStructureInput) {
		str += "AccelerationStructureInput|"
	}
	if u.HasBits(BufferUsageAccelerationStructureBuffer) {
		str += "AccelerationStructureBuffer|"
	}
	return strings.TrimSuffix(str, "|")
}

type BufferCreateInfo struct {
	Size  uint64
	Usage BufferUsageFlags
	// HostVisible buffers can be written with HostWrite, device local buffers are filled with Device.Upload.
	HostVisible bool
}

type Buffer interface {
	Destroyer
	Name() string
	Usage() BufferUsageFlags
	Size() uint64
	HostWrite(offset uint64, data []byte) error
	DeviceAddress() uint64
}

type IndexType uint32

const (
	IndexTypeUint16 IndexType = vk.INDEX_TYPE_UINT16
	IndexTypeUint32 IndexType = vk.INDEX_TYPE_UINT32
)

func (t IndexType) String() string {
	switch t {
	case IndexTypeUint16:
		return "Uint16"
	case IndexTypeUint32:
		return "Uint32"
	}
	abort("Unknown index type: %d", t)
	return ""
}

// AccelerationStructure is an externally built BLAS or TLAS.
type AccelerationStructure interface {
	Destroyer
	Name() string
	DeviceAddress() uint64
}

type AccelerationStructureGeometry struct {
	VertexBuffer Buffer
	VertexStride uint64
	VertexCount  uint32
	VertexFormat Format
	IndexBuffer  Buffer
	IndexType    IndexType
	IndexCount   uint32
	FirstIndex   uint32
	Opaque       bool
}

type AccelerationStructureInstance struct {
	BLAS AccelerationStructure
	// Transform is a row major 3x4 matrix as consumed by VkTransformMatrixKHR.
	Transform    [12]float32
	CustomIndex  uint32
	Mask         uint8
	SBTHitOffset uint32
	CullDisabled bool
}

type AccelerationStructureCreateInfo struct {
	// Geometries builds a bottom level structure, Instances a top level one, exactly one must be set.
	Geometries []AccelerationStructureGeometry
	Instances  []AccelerationStructureInstance
}
