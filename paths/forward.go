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

type forwardConstants struct {
	Model    mgl32.Mat4
	Material int32
	_        [3]int32
}

// Forward shades every instance in one pass straight into FinalColor.
type Forward struct{}

func (*Forward) Name() string {
	return "forward"
}

func (*Forward) AddToGraph(g *rendergraph.Graph) error {
	desc := opaqueRaster
	desc.VertexShader = "forward.vert"
	desc.FragmentShader = "forward.frag"
	desc.PushConstantSize = 80

	err := g.AddGraphicsPass(rendergraph.GraphicsPassSpec{
		Name:      "ForwardPass",
		Pipelines: []rendergraph.GraphicsPipelineDesc{desc},
		Setup: func(b *rendergraph.PassBuilder) {
			b.Write(FinalColor).Format(FinalFormat).Clear(rendergraph.ColorImageClearValueFloat{R: 0.1, G: 0.2, B: 0.4, A: 1})
			b.Write(Depth).Format(rendergraph.FORMAT_D32_SFLOAT).ClearDepth(1)
		},
		Record: func(rc *rendergraph.RecordContext) error {
			drawInstances(rc, func(inst *rendergraph.DrawInstance) {
				rendergraph.Push(rc, forwardConstants{Model: inst.Transform, Material: inst.MaterialIndex})
			})
			return nil
		},
	})
	if err != nil {
		return err
	}
	return AddPresent(g, FinalColor, FinalFormat)
}
