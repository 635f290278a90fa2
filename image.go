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

	"goarrg.com/gmath"
	"goarrg.com/rhi/rendergraph/internal/vk"
)

type ImageAspectFlags uint32

const (
	ImageAspectColor   ImageAspectFlags = vk.IMAGE_ASPECT_COLOR_BIT
	ImageAspectDepth   ImageAspectFlags = vk.IMAGE_ASPECT_DEPTH_BIT
	ImageAspectStencil ImageAspectFlags = vk.IMAGE_ASPECT_STENCIL_BIT
)

func (a ImageAspectFlags) HasBits(want ImageAspectFlags) bool {
	return hasBits(a, want)
}

func (a ImageAspectFlags) String() string {
	str := ""
	if a.HasBits(ImageAspectColor) {
		str += "Color|"
	}
	if a.HasBits(ImageAspectDepth) {
		str += "Depth|"
	}
	if a.HasBits(ImageAspectStencil) {
		str += "Stencil|"
	}
	return strings.TrimSuffix(str, "|")
}

type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc            ImageUsageFlags = vk.IMAGE_USAGE_TRANSFER_SRC_BIT
	ImageUsageTransferDst            ImageUsageFlags = vk.IMAGE_USAGE_TRANSFER_DST_BIT
	ImageUsageSampled                ImageUsageFlags = vk.IMAGE_USAGE_SAMPLED_BIT
	ImageUsageStorage                ImageUsageFlags = vk.IMAGE_USAGE_STORAGE_BIT
	ImageUsageColorAttachment        ImageUsageFlags = vk.IMAGE_USAGE_COLOR_ATTACHMENT_BIT
	ImageUsageDepthStencilAttachment ImageUsageFlags = vk.IMAGE_USAGE_DEPTH_STENCIL_ATTACHMENT_BIT
	ImageUsageTransientAttachment    ImageUsageFlags = vk.IMAGE_USAGE_TRANSIENT_ATTACHMENT_BIT
)

func (u ImageUsageFlags) HasBits(want ImageUsageFlags) bool {
	return hasBits(u, want)
}

func (u ImageUsageFlags) String() string {
	str := ""
	if u.HasBits(ImageUsageTransferSrc) {
		str += "TransferSrc|"
	}
	if u.HasBits(ImageUsageTransferDst) {
		str += "TransferDst|"
	}
	if u.HasBits(ImageUsageSampled) {
		str += "Sampled|"
	}
	if u.HasBits(ImageUsageStorage) {
		str += "Storage|"
	}
	if u.HasBits(ImageUsageColorAttachment) {
		str += "ColorAttachment|"
	}
	if u.HasBits(ImageUsageDepthStencilAttachment) {
		str += "DepthStencilAttachment|"
	}
	if u.HasBits(ImageUsageTransientAttachment) {
		str += "TransientAttachment|"
	}
	return strings.TrimSuffix(str, "|")
}

type ImageLayout uint32

const (
	ImageLayoutUndefined              ImageLayout = vk.IMAGE_LAYOUT_UNDEFINED
	ImageLayoutGeneral                ImageLayout = vk.IMAGE_LAYOUT_GENERAL
	ImageLayoutColorAttachment        ImageLayout = vk.IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL
	ImageLayoutDepthStencilAttachment ImageLayout = vk.IMAGE_LAYOUT_DEPTH_STENCIL_ATTACHMENT_OPTIMAL
	ImageLayoutDepthStencilReadOnly   ImageLayout = vk.IMAGE_LAYOUT_DEPTH_STENCIL_READ_ONLY_OPTIMAL
	ImageLayoutShaderReadOnly         ImageLayout = vk.IMAGE_LAYOUT_SHADER_READ_ONLY_OPTIMAL
	ImageLayoutTransferSrc            ImageLayout = vk.IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL
	ImageLayoutTransferDst            ImageLayout = vk.IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL
	ImageLayoutPresent                ImageLayout = vk.IMAGE_LAYOUT_PRESENT_SRC_KHR
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "UNDEFINED"
	case ImageLayoutGeneral:
		return "GENERAL"
	case ImageLayoutColorAttachment:
		return "COLOR_ATTACHMENT_OPTIMAL"
	case ImageLayoutDepthStencilAttachment:
		return "DEPTH_STENCIL_ATTACHMENT_OPTIMAL"
	case ImageLayoutDepthStencilReadOnly:
		return "DEPTH_STENCIL_READ_ONLY_OPTIMAL"
	case ImageLayoutShaderReadOnly:
		return "SHADER_READ_ONLY_OPTIMAL"
	case ImageLayoutTransferSrc:
		return "TRANSFER_SRC_OPTIMAL"
	case ImageLayoutTransferDst:
		return "TRANSFER_DST_OPTIMAL"
	case ImageLayoutPresent:
		return "PRESENT_SRC"
	}
	return fmt.Sprintf("ImageLayout(%d)", uint32(l))
}

func (l ImageLayout) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// ImageDescription is what the transient table resolves for every image, images with equal
// descriptions are interchangeable and may share backing.
type ImageDescription struct {
	Extent  gmath.Extent3i32
	Format  Format
	Usage   ImageUsageFlags
	Samples uint32
}

func (d ImageDescription) String() string {
	return genID(fmt.Sprintf("%dx%dx%d", d.Extent.X, d.Extent.Y, d.Extent.Z), d.Format, d.Usage, d.Samples)
}

// Image is a device image with a default view covering every mip and layer.
type Image interface {
	Destroyer
	Name() string
	Description() ImageDescription
}

type ClearValue interface {
	isClearValue()
}

type ColorImageClearValueFloat struct {
	R, G, B, A float32
}

func (ColorImageClearValueFloat) isClearValue() {}

type ColorImageClearValueUint32 struct {
	R, G, B, A uint32
}

func (ColorImageClearValueUint32) isClearValue() {}

type DepthStencilClearValue struct {
	Depth   float32
	Stencil uint32
}

func (DepthStencilClearValue) isClearValue() {}

// ZeroClearValue returns the value history images are initialized with before their first write.
func ZeroClearValue(f Format) ClearValue {
	switch {
	case f.IsDepth():
		return DepthStencilClearValue{}
	case f == FORMAT_R32_UINT:
		return ColorImageClearValueUint32{}
	default:
		return ColorImageClearValueFloat{}
	}
}

type SamplerFilter uint32

const (
	SamplerFilterNearest SamplerFilter = vk.FILTER_NEAREST
	SamplerFilterLinear  SamplerFilter = vk.FILTER_LINEAR
)

func (f SamplerFilter) String() string {
	switch f {
	case SamplerFilterNearest:
		return "Nearest"
	case SamplerFilterLinear:
		return "Linear"
	}
	abort("Unknown sampler filter: %d", f)
	return ""
}

type SamplerCreateInfo struct {
	MagFilter  SamplerFilter
	MinFilter  SamplerFilter
	Anisotropy float32
}

type Sampler interface {
	Destroyer
	Name() string
}
