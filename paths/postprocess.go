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
	taaHistory       = "TAA"
	bloomLevels      = 4
	bloomThreshold   = 1.0
	defaultBloomStep = 0.5
)

type taaConstants struct {
	FrameIndex uint32
	Feedback   float32
	_          [2]uint32
}

/*
AddTAA blends input with the reprojected output of the previous frame into output, which is kept as the
"TAA" history. It reads the Motion and Depth written earlier in the frame.
*/
func AddTAA(g *rendergraph.Graph, input, output string) error {
	return g.AddComputePass(rendergraph.ComputePassSpec{
		Name:      "TAA",
		Pipelines: []rendergraph.ComputePipelineDesc{{Shader: "taa.comp", LocalSize: localSize8x8, PushConstantSize: 16}},
		Setup: func(b *rendergraph.PassBuilder) {
			b.Read(input)
			b.Read(Motion)
			b.Read(Depth)
			b.ReadHistory(taaHistory)
			b.Write(output).Format(HDRFormat).SaveAsHistory(taaHistory)
		},
		Record: func(rc *rendergraph.RecordContext) error {
			rendergraph.Push(rc, taaConstants{FrameIndex: uint32(rc.FrameIndex()), Feedback: 0.9})
			rc.DispatchForExtent()
			return nil
		},
	})
}

type bloomConstants struct {
	Level     int32
	Threshold float32
	_         [2]int32
}

func bloomDown(i int) string {
	return fmt.Sprintf("BloomDown_%d", i)
}

func bloomUp(i int) string {
	return fmt.Sprintf("BloomUp_%d", i)
}

func bloomPass(g *rendergraph.Graph, name, shader string, level int, scale float32, output string, inputs ...string) error {
	return g.AddComputePass(rendergraph.ComputePassSpec{
		Name:      name,
		Pipelines: []rendergraph.ComputePipelineDesc{{Shader: shader, LocalSize: localSize8x8, PushConstantSize: 16}},
		Setup: func(b *rendergraph.PassBuilder) {
			for _, in := range inputs {
				b.Read(in)
			}
			w := b.Write(output).Format(HDRFormat)
			if scale != 1 {
				w.Scale(scale)
			}
		},
		Record: func(rc *rendergraph.RecordContext) error {
			rendergraph.Push(rc, bloomConstants{Level: int32(level), Threshold: bloomThreshold})
			rc.DispatchForImage(output)
			return nil
		},
	})
}

/*
AddBloom extracts the bright parts of input into a chain of downsampled images, each scale times the size of
the previous one, upsamples them back and composites the result into output.
*/
func AddBloom(g *rendergraph.Graph, input, output string, scale float32) error {
	if scale <= 0 || scale >= 1 {
		scale = defaultBloomStep
	}
	levelScale := func(i int) float32 {
		s := float32(1)
		for range i + 1 {
			s *= scale
		}
		return s
	}

	if err := bloomPass(g, "BloomThreshold", "bloom_threshold.comp", 0, levelScale(0), bloomDown(0), input); err != nil {
		return err
	}
	for i := 1; i < bloomLevels; i++ {
		if err := bloomPass(g, fmt.Sprintf("BloomDownsample_%d", i), "bloom_downsample.comp", i, levelScale(i), bloomDown(i), bloomDown(i-1)); err != nil {
			return err
		}
	}
	for i := bloomLevels - 2; i >= 0; i-- {
		lower := bloomUp(i + 1)
		if i == bloomLevels-2 {
			lower = bloomDown(bloomLevels - 1)
		}
		if err := bloomPass(g, fmt.Sprintf("BloomUpsample_%d", i), "bloom_upsample.comp", i, levelScale(i), bloomUp(i), bloomDown(i), lower); err != nil {
			return err
		}
	}
	return bloomPass(g, "BloomComposite", "bloom_composite.comp", 0, 1, output, input, bloomUp(0))
}

type tonemapConstants struct {
	Exposure float32
	_        [3]float32
}

// AddTonemap maps the HDR input into FinalColor.
func AddTonemap(g *rendergraph.Graph, input string) error {
	return g.AddGraphicsPass(rendergraph.GraphicsPassSpec{
		Name:      "Tonemap",
		Pipelines: []rendergraph.GraphicsPipelineDesc{fullscreen("tonemap.frag", 16)},
		Setup: func(b *rendergraph.PassBuilder) {
			b.Read(input)
			b.Write(FinalColor).Format(FinalFormat)
		},
		Record: func(rc *rendergraph.RecordContext) error {
			rendergraph.Push(rc, tonemapConstants{Exposure: 1})
			rc.Draw(3, 1, 0, 0)
			return nil
		},
	})
}
