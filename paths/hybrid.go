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
	"github.com/go-gl/mathgl/mgl32"
	"goarrg.com/rhi/rendergraph"
)

type gbufferConstants struct {
	Model     mgl32.Mat4
	PrevModel [3]mgl32.Vec4
	Material  int32
	_         [3]int32
}

type shadowAOConstants struct {
	FrameIndex uint32
	AORadius   float32
	AOSamples  uint32
	_          uint32
}

type lightingConstants struct {
	Skybox   int32
	Exposure float32
	_        [2]float32
}

/*
Hybrid rasterizes a G-buffer, traces shadow and ambient occlusion rays against it and resolves lighting in a
fullscreen pass. Normal and Depth are kept as history for temporal passes.
*/
type Hybrid struct {
	TAA        bool
	Bloom      bool
	BloomScale float32
	// RayQuery traces shadows from a compute shader instead of a ray tracing pipeline.
	RayQuery bool
}

func (*Hybrid) Name() string {
	return "hybrid"
}

func (h *Hybrid) AddToGraph(g *rendergraph.Graph) error {
	if err := requireRayTracing(g, h.Name()); err != nil {
		return err
	}
	if err := addGBuffer(g); err != nil {
		return err
	}
	if err := addShadowAO(g, h.RayQuery); err != nil {
		return err
	}

	post := h.TAA || h.Bloom
	lit := FinalColor
	if post {
		lit = LitColor
	}
	if err := addDeferredLighting(g, lit, post); err != nil {
		return err
	}
	if !post {
		return AddPresent(g, FinalColor, FinalFormat)
	}

	color := lit
	if h.TAA {
		if err := AddTAA(g, color, TAAColor); err != nil {
			return err
		}
		color = TAAColor
	}
	if h.Bloom {
		if err := AddBloom(g, color, BloomColor, h.BloomScale); err != nil {
			return err
		}
		color = BloomColor
	}
	if err := AddTonemap(g, color); err != nil {
		return err
	}
	return AddPresent(g, FinalColor, FinalFormat)
}

func addGBuffer(g *rendergraph.Graph) error {
	desc := opaqueRaster
	desc.VertexShader = "gbuffer.vert"
	desc.FragmentShader = "gbuffer.frag"
	desc.PushConstantSize = 128

	return g.AddGraphicsPass(rendergraph.GraphicsPassSpec{
		Name:      "GBuffer",
		Pipelines: []rendergraph.GraphicsPipelineDesc{desc},
		Setup: func(b *rendergraph.PassBuilder) {
			b.Write(Albedo).Format(rendergraph.FORMAT_R8G8B8A8_UNORM).Clear(rendergraph.ColorImageClearValueFloat{})
			b.Write(Normal).Format(rendergraph.FORMAT_R16G16B16A16_SFLOAT).Clear(rendergraph.ColorImageClearValueFloat{}).SaveAsHistory(Normal)
			b.Write(Material).Format(rendergraph.FORMAT_R8G8B8A8_UNORM).Clear(rendergraph.ColorImageClearValueFloat{})
			b.Write(Motion).Format(rendergraph.FORMAT_R16G16_SFLOAT).Clear(rendergraph.ColorImageClearValueFloat{})
			b.Write(Depth).Format(rendergraph.FORMAT_D32_SFLOAT).ClearDepth(1).SaveAsHistory(Depth)
		},
		Record: func(rc *rendergraph.RecordContext) error {
			drawInstances(rc, func(inst *rendergraph.DrawInstance) {
				rendergraph.Push(rc, gbufferConstants{
					Model:     inst.Transform,
					PrevModel: rowMajor3x4(inst.PrevTransform),
					Material:  inst.MaterialIndex,
				})
			})
			return nil
		},
	})
}

func addShadowAO(g *rendergraph.Graph, rayQuery bool) error {
	spec := rendergraph.RayTracingPassSpec{
		Name: "RTShadowAO",
		Setup: func(b *rendergraph.PassBuilder) {
			b.ReadAccelerationStructure(rendergraph.SceneTLAS)
			b.Read(Normal)
			b.Read(Depth)
			b.Write(ShadowAO).Format(rendergraph.FORMAT_R16G16B16A16_SFLOAT)
		},
		Record: func(rc *rendergraph.RecordContext) error {
			rendergraph.Push(rc, shadowAOConstants{FrameIndex: uint32(rc.FrameIndex()), AORadius: 1, AOSamples: 1})
			if rayQuery {
				rc.DispatchForExtent()
				return nil
			}
			ext := rc.Extent()
			rc.TraceRays(uint32(ext.X), uint32(ext.Y))
			return nil
		},
	}
	if rayQuery {
		spec.ComputePipelines = []rendergraph.ComputePipelineDesc{{Shader: "shadow_ao_query.comp", LocalSize: localSize8x8, PushConstantSize: 16}}
	} else {
		spec.Pipeline = &rendergraph.RayTracingPipelineDesc{
			RayGen:            "shadow_ao.rgen",
			Miss:              []string{"shadow.rmiss"},
			Hit:               []rendergraph.RayTracingHitGroup{{ClosestHit: "shadow.rchit"}},
			MaxRecursionDepth: 1,
			PushConstantSize:  16,
		}
	}
	return g.AddRayTracingPass(spec)
}

func addDeferredLighting(g *rendergraph.Graph, output string, hdr bool) error {
	format := FinalFormat
	if hdr {
		format = HDRFormat
	}
	return g.AddGraphicsPass(rendergraph.GraphicsPassSpec{
		Name:      "DeferredLighting",
		Pipelines: []rendergraph.GraphicsPipelineDesc{fullscreen("deferred_lighting.frag", 16)},
		Setup: func(b *rendergraph.PassBuilder) {
			b.Read(Albedo)
			b.Read(Normal)
			b.Read(Material)
			b.Read(Depth)
			b.Read(ShadowAO)
			b.Write(output).Format(format)
		},
		Record: func(rc *rendergraph.RecordContext) error {
			rendergraph.Push(rc, lightingConstants{Skybox: rc.Scene().SkyboxTexture(), Exposure: 1})
			rc.Draw(3, 1, 0, 0)
			return nil
		},
	})
}
