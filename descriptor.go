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

	"goarrg.com/rhi/rendergraph/internal/vk"
)

type DescriptorType uint32

const (
	DescriptorTypeSampler               DescriptorType = vk.DESCRIPTOR_TYPE_SAMPLER
	DescriptorTypeCombinedImageSampler  DescriptorType = vk.DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER
	DescriptorTypeSampledImage          DescriptorType = vk.DESCRIPTOR_TYPE_SAMPLED_IMAGE
	DescriptorTypeStorageImage          DescriptorType = vk.DESCRIPTOR_TYPE_STORAGE_IMAGE
	DescriptorTypeUniformBuffer         DescriptorType = vk.DESCRIPTOR_TYPE_UNIFORM_BUFFER
	DescriptorTypeStorageBuffer         DescriptorType = vk.DESCRIPTOR_TYPE_STORAGE_BUFFER
	DescriptorTypeAccelerationStructure DescriptorType = vk.DESCRIPTOR_TYPE_ACCELERATION_STRUCTURE_KHR
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorTypeSampler:
		return "Sampler"
	case DescriptorTypeCombinedImageSampler:
		return "CombinedImageSampler"
	case DescriptorTypeSampledImage:
		return "SampledImage"
	case DescriptorTypeStorageImage:
		return "StorageImage"

	case DescriptorTypeUniformBuffer:
		return "UniformBuffer"
	case DescriptorTypeStorageBuffer:
		return "StorageBuffer"

	case DescriptorTypeAccelerationStructure:
		return "AccelerationStructure"

	default:
		abort("Unknown DescriptorType: %d", t)
	}

	return ""
}

func (t DescriptorType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

type DescriptorInfo interface {
	isDescriptorInfo()
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
}

func (DescriptorBufferInfo) isDescriptorInfo() {}

type DescriptorImageInfo struct {
	Image  Image
	Layout ImageLayout
}

func (DescriptorImageInfo) isDescriptorInfo() {}

type DescriptorCombinedImageSamplerInfo struct {
	Sampler Sampler
	Image   Image
	Layout  ImageLayout
}

func (DescriptorCombinedImageSamplerInfo) isDescriptorInfo() {}

type DescriptorAccelerationStructureInfo struct {
	AccelerationStructure AccelerationStructure
}

func (DescriptorAccelerationStructureInfo) isDescriptorInfo() {}

type DescriptorSetLayoutBinding struct {
	Binding         uint32
	DescriptorType  DescriptorType
	DescriptorCount uint32
	ShaderStage     ShaderStage
	// PartiallyBound allows unwritten array elements, required for bindless arrays.
	PartiallyBound bool
}

func (b DescriptorSetLayoutBinding) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"binding\": %d,", b.Binding))
	buff.WriteString(fmt.Sprintf("\"shaderStage\": %q,", b.ShaderStage.String()))
	buff.WriteString(fmt.Sprintf("\"descriptorType\": %q,", b.DescriptorType.String()))
	buff.WriteString(fmt.Sprintf("\"descriptorCount\": %d", b.DescriptorCount))

	buff.WriteString("}")
	return buff.Bytes(), nil
}

func descriptorSetLayoutID(bindings []DescriptorSetLayoutBinding) string {
	items := make([]any, 0, len(bindings))
	for _, b := range bindings {
		items = append(items, genID(b.Binding, b.DescriptorType, b.DescriptorCount, b.ShaderStage, b.PartiallyBound))
	}
	return genID(items...)
}

type DescriptorSetLayout interface {
	Destroyer
	Name() string
	Bindings() []DescriptorSetLayoutBinding
}

type DescriptorSet interface {
	// Bind writes descriptors starting at array element descriptorIndex of bindingIndex.
	Bind(bindingIndex, descriptorIndex int, descriptors ...DescriptorInfo) error
	MaxDescriptorCount(bindingIndex int) int
	Layout() DescriptorSetLayout
}

type DescriptorPoolCreateInfo struct {
	// BankSize is the number of sets each backing pool can hold before another is created.
	BankSize int32
}

type DescriptorPool interface {
	Destroyer
	Name() string
	Allocate(layout DescriptorSetLayout) (DescriptorSet, error)
	// Reset returns every set to the pool, sets from before the reset must not be used again.
	Reset()
}
