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
	"fmt"

	"goarrg.com/rhi/rendergraph"
)

const (
	SVGFAtrousSteps = 5

	svgfAccumulated = "Accumulated"
	svgfMoments     = "SVGFMoments"
	svgfColor       = "SVGF_TemporalColor"
	svgfMomentsOut  = "SVGF_TemporalMoments"
)

// AtrousConstants is pushed by every a-trous step, the filter taps are Stride pixels apart.
type AtrousConstants struct {
	Step   int32
	Stride int32
}

func FilteredName(step int) string {
	return fmt.Sprintf("Filtered_%d", step)
}

/*
AddSVGF denoises input with a temporal accumulation pass followed by SVGFAtrousSteps a-trous wavelet passes
with strides 1, 2, 4, 8 and 16. It reads Motion, Depth and Normal and returns the name of the filtered image.
*/
func AddSVGF(g *rendergraph.Graph, input string) (string, error) {
	err := g.AddComputePass(rendergraph.ComputePassSpec{
		Name:      "SVGF_Temporal",
		Pipelines: []rendergraph.ComputePipelineDesc{{Shader: "svgf_temporal.comp", LocalSize: localSize8x8}},
		Setup: func(b *rendergraph.PassBuilder) {
			b.Read(input)
			b.Read(Motion)
			b.ReadHistory(svgfAccumulated)
			b.ReadHistory(svgfMoments)
			b.Read(Depth)
			b.Read(Normal)
			b.Write(svgfColor).Format(HDRFormat).SaveAsHistory(svgfAccumulated)
			b.Write(svgfMomentsOut).Format(HDRFormat).SaveAsHistory(svgfMoments)
		},
		Record: func(rc *rendergraph.RecordContext) error {
			rc.DispatchForExtent()
			return nil
		},
	})
	if err != nil {
		return "", err
	}

	prev := svgfColor
	for i := range SVGFAtrousSteps {
		src, dst := prev, FilteredName(i)
		constants := AtrousConstants{Step: int32(i), Stride: 1 << i}
		err := g.AddComputePass(rendergraph.ComputePassSpec{
			Name:      fmt.Sprintf("SVGF_Atrous_%d", i),
			Pipelines: []rendergraph.ComputePipelineDesc{{Shader: "svgf_atrous.comp", LocalSize: localSize8x8, PushConstantSize: 8}},
			Setup: func(b *rendergraph.PassBuilder) {
				b.Read(src)
				b.Read(svgfMomentsOut)
				b.Read(Depth)
				b.Read(Normal)
				b.Write(dst).Format(HDRFormat)
			},
			Record: func(rc *rendergraph.RecordContext) error {
				rendergraph.Push(rc, constants)
				rc.DispatchForExtent()
				return nil
			},
		})
		if err != nil {
			return "", err
		}
		prev = dst
	}
	return prev, nil
}
