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

/*
Package paths holds the render paths. A path only registers passes, every barrier, allocation and
descriptor write follows from what the passes declare.

	forward    ForwardPass -> blit
	hybrid     GBuffer -> RTShadowAO -> DeferredLighting [-> TAA] [-> bloom] [-> Tonemap] -> blit
	raytraced  PathTrace -> SVGF -> TAA [-> bloom] -> Tonemap -> blit
	rayquery   raytraced with the path trace pass running as a compute shader using ray queries
*/
package paths

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"goarrg.com/debug"
	"goarrg.com/gmath"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/scene"
)

var logger = debug.NewLogger("rendergraph", "paths")

const (
	FinalColor  = "FinalColor"
	Albedo      = "Albedo"
	Normal      = "Normal"
	Material    = "Material"
	Motion      = "Motion"
	Depth       = "Depth"
	ShadowAO    = "ShadowAO"
	CurColor    = "CurColor"
	LitColor    = "LitColor"
	TAAColor    = "TAAColor"
	BloomColor  = "BloomColor"
	FinalFormat = rendergraph.FORMAT_B8G8R8A8_UNORM
	HDRFormat   = rendergraph.FORMAT_R16G16B16A16_SFLOAT
)

var localSize8x8 = gmath.Extent3u32{X: 8, Y: 8, Z: 1}

type Path interface {
	Name() string
	AddToGraph(g *rendergraph.Graph) error
}

type Options struct {
	TAA      bool
	Bloom    bool
	RayQuery bool
	// BloomScale is the size of each bloom level relative to the previous one, 0.5 when unset.
	BloomScale float32
}

// OptionsFromConfig reads the "taa", "bloom" and "rayquery" features.
func OptionsFromConfig(c rendergraph.Config) Options {
	return Options{
		TAA:      c.Feature("taa", false),
		Bloom:    c.Feature("bloom", false),
		RayQuery: c.Feature("rayquery", false),
	}
}

var registry = map[string]func(o Options) Path{
	"forward": func(Options) Path {
		return &Forward{}
	},
	"hybrid": func(o Options) Path {
		return &Hybrid{TAA: o.TAA, Bloom: o.Bloom, BloomScale: o.BloomScale, RayQuery: o.RayQuery}
	},
	"raytraced": func(o Options) Path {
		return &RayTraced{Bloom: o.Bloom, BloomScale: o.BloomScale, RayQuery: o.RayQuery}
	},
	"rayquery": func(o Options) Path {
		return &RayTraced{Bloom: o.Bloom, BloomScale: o.BloomScale, RayQuery: true}
	},
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func New(name string, o Options) (Path, error) {
	f, ok := registry[name]
	if !ok {
		return nil, debug.ErrorWrapf(rendergraph.ErrorConfiguration{}, "Unknown render path %q, have %v", name, Names())
	}
	return f(o), nil
}

// Use replaces the passes of g with the ones of p, the next BeginFrame rebuilds.
func Use(g *rendergraph.Graph, p Path) error {
	g.Reset()
	if err := p.AddToGraph(g); err != nil {
		g.Reset()
		return debug.ErrorWrapf(err, "Failed to add render path %q", p.Name())
	}
	logger.IPrintf("Using render path %q: %d passes", p.Name(), len(g.Passes()))
	return nil
}

func requireRayTracing(g *rendergraph.Graph, path string) error {
	if !g.Device().Properties().RayTracing.Supported {
		return debug.ErrorWrapf(rendergraph.ErrorConfiguration{}, "Render path %q needs a device with ray tracing", path)
	}
	return nil
}

// AddPresent blits src to the swapchain image.
func AddPresent(g *rendergraph.Graph, src string, format rendergraph.Format) error {
	return g.AddBlitPass(src, rendergraph.RenderOutput, format, g.Device().Swapchain().Format())
}

// rowMajor3x4 packs the upper 3 rows of m so a mat4 and a mat3x4 fit in 128 bytes of push constants.
func rowMajor3x4(m mgl32.Mat4) [3]mgl32.Vec4 {
	return [3]mgl32.Vec4{m.Row(0), m.Row(1), m.Row(2)}
}

var opaqueRaster = rendergraph.GraphicsPipelineDesc{
	VertexStride:     scene.VertexSize,
	VertexAttributes: scene.VertexAttributes,
	CullMode:         rendergraph.CullModeBack,
	FrontFace:        rendergraph.FrontFaceCounterClockwise,
	DepthTest:        true,
	DepthWrite:       true,
	DepthCompareOp:   rendergraph.CompareOpLess,
}

// fullscreen is a pipeline drawing a single triangle covering the render area, without vertex input.
func fullscreen(fragment string, pushConstantSize uint32) rendergraph.GraphicsPipelineDesc {
	return rendergraph.GraphicsPipelineDesc{
		VertexShader:     "fullscreen.vert",
		FragmentShader:   fragment,
		CullMode:         rendergraph.CullModeNone,
		FrontFace:        rendergraph.FrontFaceCounterClockwise,
		PushConstantSize: pushConstantSize,
	}
}

// drawInstances binds and draws every scene instance, push is called before each draw.
func drawInstances(rc *rendergraph.RecordContext, push func(inst *rendergraph.DrawInstance)) {
	instances := rc.Scene().Instances()
	for i := range instances {
		inst := &instances[i]
		push(inst)
		rc.BindVertexBuffers(0, []rendergraph.Buffer{inst.VertexBuffer}, []uint64{0})
		rc.BindIndexBuffer(inst.IndexBuffer, 0, inst.IndexType)
		rc.DrawIndexed(inst.IndexCount, 1, inst.FirstIndex, inst.VertexOffset, 0)
	}
}
