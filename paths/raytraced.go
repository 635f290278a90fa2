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

package paths

import (
	"goarrg.com/rhi/rendergraph"
)

type pathTraceConstants struct {
	FrameIndex uint32
	MaxBounces uint32
	Skybox     int32
	_          uint32
}

/*
RayTraced path traces the scene at one sample per pixel and relies on SVGF and TAA to converge. The path
trace pass writes CurColor, Motion, Depth (linear, R32_SFLOAT) and Normal as storage images.
*/
type RayTraced struct {
	RayQuery   bool
	Bloom      bool
	BloomScale float32
	MaxBounces uint32
}

func (r *RayTraced) Name() string {
	if r.RayQuery {
		return "rayquery"
	}
	return "raytraced"
}

func (r *RayTraced) AddToGraph(g *rendergraph.Graph) error {
	if err := requireRayTracing(g, r.Name()); err != nil {
		return err
	}
	bounces := r.MaxBounces
	if bounces == 0 {
		bounces = 2
	}

	spec := rendergraph.RayTracingPassSpec{
		Name: "PathTrace",
		Setup: func(b *rendergraph.PassBuilder) {
			b.ReadAccelerationStructure(rendergraph.SceneTLAS)
			b.ReadBuffer(rendergraph.SceneInstances)
			b.ReadBuffer(rendergraph.MaterialBufferName)
			b.Write(CurColor).Format(HDRFormat)
			b.Write(Motion).Format(rendergraph.FORMAT_R16G16_SFLOAT)
			b.Write(Depth).Format(rendergraph.FORMAT_R32_SFLOAT)
			b.Write(Normal).Format(rendergraph.FORMAT_R16G16B16A16_SFLOAT)
		},
		Record: func(rc *rendergraph.RecordContext) error {
			rendergraph.Push(rc, pathTraceConstants{
				FrameIndex: uint32(rc.FrameIndex()),
				MaxBounces: bounces,
				Skybox:     rc.Scene().SkyboxTexture(),
			})
			if r.RayQuery {
				rc.DispatchForExtent()
				return nil
			}
			ext := rc.Extent()
			rc.TraceRays(uint32(ext.X), uint32(ext.Y))
			return nil
		},
	}
	if r.RayQuery {
		spec.ComputePipelines = []rendergraph.ComputePipelineDesc{{Shader: "pathtrace_query.comp", LocalSize: localSize8x8, PushConstantSize: 16}}
	} else {
		spec.Pipeline = &rendergraph.RayTracingPipelineDesc{
			RayGen: "pathtrace.rgen",
			Miss:   []string{"pathtrace.rmiss", "shadow.rmiss"},
			Hit: []rendergraph.RayTracingHitGroup{
				{ClosestHit: "pathtrace.rchit"},
				{ClosestHit: "shadow.rchit"},
			},
			MaxRecursionDepth: 1,
			PushConstantSize:  16,
		}
	}
	if err := g.AddRayTracingPass(spec); err != nil {
		return err
	}

	filtered, err := AddSVGF(g, CurColor)
	if err != nil {
		return err
	}
	if err := AddTAA(g, filtered, TAAColor); err != nil {
		return err
	}
	color := TAAColor
	if r.Bloom {
		if err := AddBloom(g, color, BloomColor, r.BloomScale); err != nil {
			return err
		}
		color = BloomColor
	}
	if err := AddTonemap(g, color); err != nil {
		return err
	}
	return AddPresent(g, FinalColor, FinalFormat)
}
