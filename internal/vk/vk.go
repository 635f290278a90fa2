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

// Package vk holds the subset of Vulkan enum values used by rendergraph.
// Values mirror vulkan_core.h so recorded traces can be compared against validation output.
package vk

const (
	TRUE  = 1
	FALSE = 0
)

// VkResult
const (
	SUCCESS                    = 0
	NOT_READY                  = 1
	TIMEOUT                    = 2
	SUBOPTIMAL_KHR             = 1000001003
	ERROR_OUT_OF_HOST_MEMORY   = -1
	ERROR_OUT_OF_DEVICE_MEMORY = -2
	ERROR_DEVICE_LOST          = -4
	ERROR_OUT_OF_DATE_KHR      = -1000001004
)

// VkImageLayout
const (
	IMAGE_LAYOUT_UNDEFINED                        = 0
	IMAGE_LAYOUT_GENERAL                          = 1
	IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL         = 2
	IMAGE_LAYOUT_DEPTH_STENCIL_ATTACHMENT_OPTIMAL = 3
	IMAGE_LAYOUT_DEPTH_STENCIL_READ_ONLY_OPTIMAL  = 4
	IMAGE_LAYOUT_SHADER_READ_ONLY_OPTIMAL         = 5
	IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL             = 6
	IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL             = 7
	IMAGE_LAYOUT_PRESENT_SRC_KHR                  = 1000001002
)

// VkAccessFlagBits2
const (
	ACCESS_2_NONE                                 = 0
	ACCESS_2_INDIRECT_COMMAND_READ_BIT            = 0x00000001
	ACCESS_2_INDEX_READ_BIT                       = 0x00000002
	ACCESS_2_VERTEX_ATTRIBUTE_READ_BIT            = 0x00000004
	ACCESS_2_UNIFORM_READ_BIT                     = 0x00000008
	ACCESS_2_SHADER_READ_BIT                      = 0x00000020
	ACCESS_2_SHADER_WRITE_BIT                     = 0x00000040
	ACCESS_2_COLOR_ATTACHMENT_READ_BIT            = 0x00000080
	ACCESS_2_COLOR_ATTACHMENT_WRITE_BIT           = 0x00000100
	ACCESS_2_DEPTH_STENCIL_ATTACHMENT_READ_BIT    = 0x00000200
	ACCESS_2_DEPTH_STENCIL_ATTACHMENT_WRITE_BIT   = 0x00000400
	ACCESS_2_TRANSFER_READ_BIT                    = 0x00000800
	ACCESS_2_TRANSFER_WRITE_BIT                   = 0x00001000
	ACCESS_2_HOST_READ_BIT                        = 0x00002000
	ACCESS_2_HOST_WRITE_BIT                       = 0x00004000
	ACCESS_2_MEMORY_READ_BIT                      = 0x00008000
	ACCESS_2_MEMORY_WRITE_BIT                     = 0x00010000
	ACCESS_2_ACCELERATION_STRUCTURE_READ_BIT_KHR  = 0x00200000
	ACCESS_2_ACCELERATION_STRUCTURE_WRITE_BIT_KHR = 0x00400000
)

// VkPipelineStageFlagBits2
const (
	PIPELINE_STAGE_2_NONE                                 = 0
	PIPELINE_STAGE_2_TOP_OF_PIPE_BIT                      = 0x00000001
	PIPELINE_STAGE_2_DRAW_INDIRECT_BIT                    = 0x00000002
	PIPELINE_STAGE_2_VERTEX_INPUT_BIT                     = 0x00000004
	PIPELINE_STAGE_2_VERTEX_SHADER_BIT                    = 0x00000008
	PIPELINE_STAGE_2_FRAGMENT_SHADER_BIT                  = 0x00000080
	PIPELINE_STAGE_2_EARLY_FRAGMENT_TESTS_BIT             = 0x00000100
	PIPELINE_STAGE_2_LATE_FRAGMENT_TESTS_BIT              = 0x00000200
	PIPELINE_STAGE_2_COLOR_ATTACHMENT_OUTPUT_BIT          = 0x00000400
	PIPELINE_STAGE_2_COMPUTE_SHADER_BIT                   = 0x00000800
	PIPELINE_STAGE_2_ALL_TRANSFER_BIT                     = 0x00001000
	PIPELINE_STAGE_2_BOTTOM_OF_PIPE_BIT                   = 0x00002000
	PIPELINE_STAGE_2_HOST_BIT                             = 0x00004000
	PIPELINE_STAGE_2_ALL_GRAPHICS_BIT                     = 0x00008000
	PIPELINE_STAGE_2_ALL_COMMANDS_BIT                     = 0x00010000
	PIPELINE_STAGE_2_RAY_TRACING_SHADER_BIT_KHR           = 0x00200000
	PIPELINE_STAGE_2_ACCELERATION_STRUCTURE_BUILD_BIT_KHR = 0x02000000
)

// VkFormat
const (
	FORMAT_UNDEFINED                = 0
	FORMAT_R8_UNORM                 = 9
	FORMAT_R8G8B8A8_UNORM           = 37
	FORMAT_R8G8B8A8_SRGB            = 43
	FORMAT_B8G8R8A8_UNORM           = 44
	FORMAT_B8G8R8A8_SRGB            = 50
	FORMAT_A2B10G10R10_UNORM_PACK32 = 64
	FORMAT_R16_SFLOAT               = 76
	FORMAT_R16G16_SFLOAT            = 83
	FORMAT_R16G16B16A16_SFLOAT      = 97
	FORMAT_R32_UINT                 = 98
	FORMAT_R32_SFLOAT               = 100
	FORMAT_R32G32_SFLOAT            = 103
	FORMAT_R32G32B32_SFLOAT         = 106
	FORMAT_R32G32B32A32_SFLOAT      = 109
	FORMAT_B10G11R11_UFLOAT_PACK32  = 122
	FORMAT_D16_UNORM                = 124
	FORMAT_D32_SFLOAT               = 126
	FORMAT_D24_UNORM_S8_UINT        = 129
	FORMAT_D32_SFLOAT_S8_UINT       = 130
)

// VkImageAspectFlagBits
const (
	IMAGE_ASPECT_COLOR_BIT   = 0x00000001
	IMAGE_ASPECT_DEPTH_BIT   = 0x00000002
	IMAGE_ASPECT_STENCIL_BIT = 0x00000004
)

// VkImageUsageFlagBits
const (
	IMAGE_USAGE_TRANSFER_SRC_BIT             = 0x00000001
	IMAGE_USAGE_TRANSFER_DST_BIT             = 0x00000002
	IMAGE_USAGE_SAMPLED_BIT                  = 0x00000004
	IMAGE_USAGE_STORAGE_BIT                  = 0x00000008
	IMAGE_USAGE_COLOR_ATTACHMENT_BIT         = 0x00000010
	IMAGE_USAGE_DEPTH_STENCIL_ATTACHMENT_BIT = 0x00000020
	IMAGE_USAGE_TRANSIENT_ATTACHMENT_BIT     = 0x00000040
)

// VkBufferUsageFlagBits
const (
	BUFFER_USAGE_TRANSFER_SRC_BIT                                     = 0x00000001
	BUFFER_USAGE_TRANSFER_DST_BIT                                     = 0x00000002
	BUFFER_USAGE_UNIFORM_BUFFER_BIT                                   = 0x00000010
	BUFFER_USAGE_STORAGE_BUFFER_BIT                                   = 0x00000020
	BUFFER_USAGE_INDEX_BUFFER_BIT                                     = 0x00000040
	BUFFER_USAGE_VERTEX_BUFFER_BIT                                    = 0x00000080
	BUFFER_USAGE_INDIRECT_BUFFER_BIT                                  = 0x00000100
	BUFFER_USAGE_SHADER_BINDING_TABLE_BIT_KHR                         = 0x00000400
	BUFFER_USAGE_SHADER_DEVICE_ADDRESS_BIT                            = 0x00020000
	BUFFER_USAGE_ACCELERATION_STRUCTURE_BUILD_INPUT_READ_ONLY_BIT_KHR = 0x00080000
	BUFFER_USAGE_ACCELERATION_STRUCTURE_STORAGE_BIT_KHR               = 0x00100000
)

// VkDescriptorType
const (
	DESCRIPTOR_TYPE_SAMPLER                    = 0
	DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER     = 1
	DESCRIPTOR_TYPE_SAMPLED_IMAGE              = 2
	DESCRIPTOR_TYPE_STORAGE_IMAGE              = 3
	DESCRIPTOR_TYPE_UNIFORM_BUFFER             = 6
	DESCRIPTOR_TYPE_STORAGE_BUFFER             = 7
	DESCRIPTOR_TYPE_ACCELERATION_STRUCTURE_KHR = 1000150000
)

// VkShaderStageFlagBits
const (
	SHADER_STAGE_VERTEX_BIT           = 0x00000001
	SHADER_STAGE_FRAGMENT_BIT         = 0x00000010
	SHADER_STAGE_COMPUTE_BIT          = 0x00000020
	SHADER_STAGE_RAYGEN_BIT_KHR       = 0x00000100
	SHADER_STAGE_ANY_HIT_BIT_KHR      = 0x00000200
	SHADER_STAGE_CLOSEST_HIT_BIT_KHR  = 0x00000400
	SHADER_STAGE_MISS_BIT_KHR         = 0x00000800
	SHADER_STAGE_INTERSECTION_BIT_KHR = 0x00001000
	SHADER_STAGE_CALLABLE_BIT_KHR     = 0x00002000
)

// VkAttachmentLoadOp / VkAttachmentStoreOp
const (
	ATTACHMENT_LOAD_OP_LOAD       = 0
	ATTACHMENT_LOAD_OP_CLEAR      = 1
	ATTACHMENT_LOAD_OP_DONT_CARE  = 2
	ATTACHMENT_LOAD_OP_NONE_KHR   = 1000400000
	ATTACHMENT_STORE_OP_STORE     = 0
	ATTACHMENT_STORE_OP_DONT_CARE = 1
	ATTACHMENT_STORE_OP_NONE      = 1000301000
)

// VkIndexType
const (
	INDEX_TYPE_UINT16 = 0
	INDEX_TYPE_UINT32 = 1
)

// VkFilter
const (
	FILTER_NEAREST = 0
	FILTER_LINEAR  = 1
)

// VkPipelineBindPoint
const (
	PIPELINE_BIND_POINT_GRAPHICS        = 0
	PIPELINE_BIND_POINT_COMPUTE         = 1
	PIPELINE_BIND_POINT_RAY_TRACING_KHR = 1000165000
)

// VkCullModeFlagBits / VkFrontFace / VkCompareOp
const (
	CULL_MODE_NONE      = 0
	CULL_MODE_FRONT_BIT = 0x00000001
	CULL_MODE_BACK_BIT  = 0x00000002

	FRONT_FACE_COUNTER_CLOCKWISE = 0
	FRONT_FACE_CLOCKWISE         = 1

	COMPARE_OP_NEVER            = 0
	COMPARE_OP_LESS             = 1
	COMPARE_OP_EQUAL            = 2
	COMPARE_OP_LESS_OR_EQUAL    = 3
	COMPARE_OP_GREATER          = 4
	COMPARE_OP_GREATER_OR_EQUAL = 6
	COMPARE_OP_ALWAYS           = 7
)

const WHOLE_SIZE = ^uint64(0)
