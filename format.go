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
	"goarrg.com/rhi/rendergraph/internal/vk"
)

// Format covers both color and depth/stencil formats as a pass may declare either through Write.
type Format uint32

const (
	FORMAT_UNDEFINED                Format = vk.FORMAT_UNDEFINED
	FORMAT_R8_UNORM                 Format = vk.FORMAT_R8_UNORM
	FORMAT_R8G8B8A8_UNORM           Format = vk.FORMAT_R8G8B8A8_UNORM
	FORMAT_R8G8B8A8_SRGB            Format = vk.FORMAT_R8G8B8A8_SRGB
	FORMAT_B8G8R8A8_UNORM           Format = vk.FORMAT_B8G8R8A8_UNORM
	FORMAT_B8G8R8A8_SRGB            Format = vk.FORMAT_B8G8R8A8_SRGB
	FORMAT_A2B10G10R10_UNORM_PACK32 Format = vk.FORMAT_A2B10G10R10_UNORM_PACK32
	FORMAT_R16_SFLOAT               Format = vk.FORMAT_R16_SFLOAT
	FORMAT_R16G16_SFLOAT            Format = vk.FORMAT_R16G16_SFLOAT
	FORMAT_R16G16B16A16_SFLOAT      Format = vk.FORMAT_R16G16B16A16_SFLOAT
	FORMAT_R32_UINT                 Format = vk.FORMAT_R32_UINT
	FORMAT_R32_SFLOAT               Format = vk.FORMAT_R32_SFLOAT
	FORMAT_R32G32_SFLOAT            Format = vk.FORMAT_R32G32_SFLOAT
	FORMAT_R32G32B32_SFLOAT         Format = vk.FORMAT_R32G32B32_SFLOAT
	FORMAT_R32G32B32A32_SFLOAT      Format = vk.FORMAT_R32G32B32A32_SFLOAT
	FORMAT_B10G11R11_UFLOAT_PACK32  Format = vk.FORMAT_B10G11R11_UFLOAT_PACK32

	FORMAT_D16_UNORM          Format = vk.FORMAT_D16_UNORM
	FORMAT_D32_SFLOAT         Format = vk.FORMAT_D32_SFLOAT
	FORMAT_D24_UNORM_S8_UINT  Format = vk.FORMAT_D24_UNORM_S8_UINT
	FORMAT_D32_SFLOAT_S8_UINT Format = vk.FORMAT_D32_SFLOAT_S8_UINT
)

func (v Format) String() string {
	switch v {
	case FORMAT_UNDEFINED:
		return "UNDEFINED"
	case FORMAT_R8_UNORM:
		return "R8_UNORM"
	case FORMAT_R8G8B8A8_UNORM:
		return "R8G8B8A8_UNORM"
	case FORMAT_R8G8B8A8_SRGB:
		return "R8G8B8A8_SRGB"
	case FORMAT_B8G8R8A8_UNORM:
		return "B8G8R8A8_UNORM"
	case FORMAT_B8G8R8A8_SRGB:
		return "B8G8R8A8_SRGB"
	case FORMAT_A2B10G10R10_UNORM_PACK32:
		return "A2B10G10R10_UNORM_PACK32"
	case FORMAT_R16_SFLOAT:
		return "R16_SFLOAT"
	case FORMAT_R16G16_SFLOAT:
		return "R16G16_SFLOAT"
	case FORMAT_R16G16B16A16_SFLOAT:
		return "R16G16B16A16_SFLOAT"
	case FORMAT_R32_UINT:
		return "R32_UINT"
	case FORMAT_R32_SFLOAT:
		return "R32_SFLOAT"
	case FORMAT_R32G32_SFLOAT:
		return "R32G32_SFLOAT"
	case FORMAT_R32G32B32_SFLOAT:
		return "R32G32B32_SFLOAT"
	case FORMAT_R32G32B32A32_SFLOAT:
		return "R32G32B32A32_SFLOAT"
	case FORMAT_B10G11R11_UFLOAT_PACK32:
		return "B10G11R11_UFLOAT_PACK32"
	case FORMAT_D16_UNORM:
		return "D16_UNORM"
	case FORMAT_D32_SFLOAT:
		return "D32_SFLOAT"
	case FORMAT_D24_UNORM_S8_UINT:
		return "D24_UNORM_S8_UINT"
	case FORMAT_D32_SFLOAT_S8_UINT:
		return "D32_SFLOAT_S8_UINT"
	}
	abort("Unknown format: %d", v)
	return ""
}

func (v Format) IsDepth() bool {
	switch v {
	case FORMAT_D16_UNORM, FORMAT_D32_SFLOAT, FORMAT_D24_UNORM_S8_UINT, FORMAT_D32_SFLOAT_S8_UINT:
		return true
	}
	return false
}

func (v Format) HasStencil() bool {
	return v == FORMAT_D24_UNORM_S8_UINT || v == FORMAT_D32_SFLOAT_S8_UINT
}

func (v Format) Aspect() ImageAspectFlags {
	switch {
	case v.HasStencil():
		return ImageAspectDepth | ImageAspectStencil
	case v.IsDepth():
		return ImageAspectDepth
	default:
		return ImageAspectColor
	}
}

// BlockSize is the size in bytes of a single texel.
func (v Format) BlockSize() int32 {
	switch v {
	case FORMAT_R8_UNORM:
		return 1
	case FORMAT_R16_SFLOAT, FORMAT_D16_UNORM:
		return 2
	case FORMAT_R8G8B8A8_UNORM, FORMAT_R8G8B8A8_SRGB, FORMAT_B8G8R8A8_UNORM, FORMAT_B8G8R8A8_SRGB,
		FORMAT_A2B10G10R10_UNORM_PACK32, FORMAT_R16G16_SFLOAT, FORMAT_R32_UINT, FORMAT_R32_SFLOAT,
		FORMAT_B10G11R11_UFLOAT_PACK32, FORMAT_D32_SFLOAT, FORMAT_D24_UNORM_S8_UINT:
		return 4
	case FORMAT_R16G16B16A16_SFLOAT, FORMAT_R32G32_SFLOAT, FORMAT_D32_SFLOAT_S8_UINT:
		return 8
	case FORMAT_R32G32B32_SFLOAT:
		return 12
	case FORMAT_R32G32B32A32_SFLOAT:
		return 16
	}
	abort("Unknown format: %d", v)
	return 0
}

func (v Format) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

var formatNames = func() map[string]Format {
	m := map[string]Format{}
	for _, f := range []Format{
		FORMAT_R8_UNORM, FORMAT_R8G8B8A8_UNORM, FORMAT_R8G8B8A8_SRGB, FORMAT_B8G8R8A8_UNORM, FORMAT_B8G8R8A8_SRGB,
		FORMAT_A2B10G10R10_UNORM_PACK32, FORMAT_R16_SFLOAT, FORMAT_R16G16_SFLOAT, FORMAT_R16G16B16A16_SFLOAT,
		FORMAT_R32_UINT, FORMAT_R32_SFLOAT, FORMAT_R32G32_SFLOAT, FORMAT_R32G32B32_SFLOAT, FORMAT_R32G32B32A32_SFLOAT,
		FORMAT_B10G11R11_UFLOAT_PACK32, FORMAT_D16_UNORM, FORMAT_D32_SFLOAT, FORMAT_D24_UNORM_S8_UINT,
		FORMAT_D32_SFLOAT_S8_UINT,
	} {
		m[f.String()] = f
	}
	return m
}()

func (v *Format) UnmarshalText(data []byte) error {
	f, ok := formatNames[string(data)]
	if !ok {
		return configErrorf("Unknown format: %q", data)
	}
	*v = f
	return nil
}
