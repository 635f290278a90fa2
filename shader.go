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
	"encoding/binary"
	"path/filepath"
	"strings"

	"goarrg.com/debug"
	"goarrg.com/rhi/rendergraph/internal/vk"
)

type ShaderStage uint32

const (
	ShaderStageVertex       ShaderStage = vk.SHADER_STAGE_VERTEX_BIT
	ShaderStageFragment     ShaderStage = vk.SHADER_STAGE_FRAGMENT_BIT
	ShaderStageCompute      ShaderStage = vk.SHADER_STAGE_COMPUTE_BIT
	ShaderStageRayGen       ShaderStage = vk.SHADER_STAGE_RAYGEN_BIT_KHR
	ShaderStageAnyHit       ShaderStage = vk.SHADER_STAGE_ANY_HIT_BIT_KHR
	ShaderStageClosestHit   ShaderStage = vk.SHADER_STAGE_CLOSEST_HIT_BIT_KHR
	ShaderStageMiss         ShaderStage = vk.SHADER_STAGE_MISS_BIT_KHR
	ShaderStageIntersection ShaderStage = vk.SHADER_STAGE_INTERSECTION_BIT_KHR
	ShaderStageCallable     ShaderStage = vk.SHADER_STAGE_CALLABLE_BIT_KHR

	ShaderStageGraphics   = ShaderStageVertex | ShaderStageFragment
	ShaderStageRayTracing = ShaderStageRayGen | ShaderStageAnyHit | ShaderStageClosestHit | ShaderStageMiss |
		ShaderStageIntersection | ShaderStageCallable
)

func (s ShaderStage) String() string {
	str := ""

	if hasBits(s, ShaderStageVertex) {
		str += "Vertex|"
	}
	if hasBits(s, ShaderStageFragment) {
		str += "Fragment|"
	}
	if hasBits(s, ShaderStageCompute) {
		str += "Compute|"
	}
	if hasBits(s, ShaderStageRayGen) {
		str += "RayGen|"
	}
	if hasBits(s, ShaderStageAnyHit) {
		str += "AnyHit|"
	}
	if hasBits(s, ShaderStageClosestHit) {
		str += "ClosestHit|"
	}
	if hasBits(s, ShaderStageMiss) {
		str += "Miss|"
	}
	if hasBits(s, ShaderStageIntersection) {
		str += "Intersection|"
	}
	if hasBits(s, ShaderStageCallable) {
		str += "Callable|"
	}

	return strings.TrimSuffix(str, "|")
}

var shaderStageExtensions = map[string]ShaderStage{
	".vert":  ShaderStageVertex,
	".frag":  ShaderStageFragment,
	".comp":  ShaderStageCompute,
	".rgen":  ShaderStageRayGen,
	".rmiss": ShaderStageMiss,
	".rchit": ShaderStageClosestHit,
	".rahit": ShaderStageAnyHit,
	".rint":  ShaderStageIntersection,
	".rcall": ShaderStageCallable,
}

// ShaderStageFromName resolves the stage from the name's suffix, ".spv" and ".wgsl" are ignored
// so "shadow.rgen" and "shadow.rgen.spv" both resolve to ShaderStageRayGen.
func ShaderStageFromName(name string) (ShaderStage, error) {
	name = strings.TrimSuffix(name, spirvExtension)
	name = strings.TrimSuffix(name, wgslExtension)
	if s, ok := shaderStageExtensions[filepath.Ext(name)]; ok {
		return s, nil
	}
	return 0, debug.ErrorWrapf(ErrorShaderCompile{}, "Unrecognized shader stage for %q", name)
}

const spirvMagic = 0x07230203

type Shader struct {
	ID    string
	Stage ShaderStage
	SPIRV []uint32
}

func newShader(id string, stage ShaderStage, data []byte) (*Shader, error) {
	if len(data) < 20 || len(data)%4 != 0 {
		return nil, debug.ErrorWrapf(ErrorShaderCompile{}, "%q is not a valid spirv module: size %d", id, len(data))
	}
	code := make([]uint32, len(data)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	if code[0] != spirvMagic {
		return nil, debug.ErrorWrapf(ErrorShaderCompile{}, "%q is not a valid spirv module: magic %s", id, toHex(code[0]))
	}
	return &Shader{ID: id, Stage: stage, SPIRV: code}, nil
}
