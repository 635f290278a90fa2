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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShaderBindingTableLayout(t *testing.T) {
	props := RayTracingProperties{
		Supported:                  true,
		ShaderGroupHandleSize:      32,
		ShaderGroupHandleAlignment: 32,
		ShaderGroupBaseAlignment:   64,
	}
	regions, size := shaderBindingTableLayout(props, 2, 3, 0)
	assert.Equal(t, ShaderBindingTableRegions{
		RayGen: ShaderBindingTableRegion{DeviceAddress: 0, Stride: 64, Size: 64},
		Miss:   ShaderBindingTableRegion{DeviceAddress: 64, Stride: 32, Size: 64},
		Hit:    ShaderBindingTableRegion{DeviceAddress: 128, Stride: 32, Size: 128},
	}, regions)
	assert.Equal(t, uint64(256), size)

	props = RayTracingProperties{
		Supported:                  true,
		ShaderGroupHandleSize:      20,
		ShaderGroupHandleAlignment: 16,
		ShaderGroupBaseAlignment:   32,
	}
	regions, size = shaderBindingTableLayout(props, 1, 1, 1)
	assert.Equal(t, ShaderBindingTableRegions{
		RayGen:   ShaderBindingTableRegion{DeviceAddress: 0, Stride: 32, Size: 32},
		Miss:     ShaderBindingTableRegion{DeviceAddress: 32, Stride: 32, Size: 32},
		Hit:      ShaderBindingTableRegion{DeviceAddress: 64, Stride: 32, Size: 32},
		Callable: ShaderBindingTableRegion{DeviceAddress: 96, Stride: 32, Size: 32},
	}, regions)
	assert.Equal(t, uint64(128), size)

	for _, r := range []ShaderBindingTableRegion{regions.RayGen, regions.Miss, regions.Hit, regions.Callable} {
		assert.Zero(t, r.DeviceAddress%uint64(props.ShaderGroupBaseAlignment))
		assert.Zero(t, r.Stride%uint64(props.ShaderGroupHandleAlignment))
	}
}

func TestPipelineKeys(t *testing.T) {
	desc := GraphicsPipelineDesc{VertexShader: "a.vert", FragmentShader: "a.frag", DepthTest: true}
	a := graphicsPipelineKey(&desc, []Format{FORMAT_R8G8B8A8_UNORM}, FORMAT_D32_SFLOAT, "layout")
	assert.Equal(t, a, graphicsPipelineKey(&desc, []Format{FORMAT_R8G8B8A8_UNORM}, FORMAT_D32_SFLOAT, "layout"))
	assert.NotEqual(t, a, graphicsPipelineKey(&desc, []Format{FORMAT_R16G16B16A16_SFLOAT}, FORMAT_D32_SFLOAT, "layout"))
	assert.NotEqual(t, a, graphicsPipelineKey(&desc, []Format{FORMAT_R8G8B8A8_UNORM}, FORMAT_D32_SFLOAT, "other"))

	blended := desc
	blended.Blend = true
	assert.NotEqual(t, a, graphicsPipelineKey(&blended, []Format{FORMAT_R8G8B8A8_UNORM}, FORMAT_D32_SFLOAT, "layout"))

	compute := ComputePipelineDesc{Shader: "a.comp"}
	wider := ComputePipelineDesc{Shader: "a.comp", PushConstantSize: 16}
	assert.NotEqual(t, computePipelineKey(&compute, "layout"), computePipelineKey(&wider, "layout"))

	rt := RayTracingPipelineDesc{RayGen: "a.rgen", Miss: []string{"a.rmiss"}, Hit: []RayTracingHitGroup{{ClosestHit: "a.rchit"}}}
	assert.Equal(t, []string{"a.rgen", "a.rmiss", "a.rchit"}, rayTracingShaders(&rt))
	assert.Equal(t, 3, rt.numGroups())
}
