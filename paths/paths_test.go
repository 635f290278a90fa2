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
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/headless"
	"goarrg.com/rhi/rendergraph/resmgr"
	"goarrg.com/rhi/rendergraph/scene"
)

type rig struct {
	device    *headless.Device
	resources *resmgr.Manager
	scene     *scene.Scene
	graph     *rendergraph.Graph
	config    rendergraph.Config
}

func newRig(t *testing.T, rayTracing bool) *rig {
	t.Helper()
	d := headless.New(headless.Config{RayTracing: rayTracing})
	config := rendergraph.Config{ShaderDirectory: t.TempDir()}
	queue := rendergraph.NewDeferredQueue(rendergraph.DefaultMaxFramesInFlight)
	resources, err := resmgr.New(d, queue, config)
	require.NoError(t, err)
	s := scene.New(d, scene.NewCamera(mgl32.Vec3{0, 2, 5}, mgl32.Vec3{}, 60, 16.0/9.0), resources)
	g, err := rendergraph.NewGraph(d, resources, s, queue, config)
	require.NoError(t, err)
	r := &rig{device: d, resources: resources, scene: s, graph: g, config: config}
	t.Cleanup(func() {
		g.Destroy()
		s.Destroy()
		resources.Destroy()
	})
	return r
}

func passNames(g *rendergraph.Graph) []string {
	var names []string
	for _, p := range g.Passes() {
		names = append(names, p.Name())
	}
	return names
}

func use(t *testing.T, r *rig, name string, o Options) {
	t.Helper()
	p, err := New(name, o)
	require.NoError(t, err)
	require.NoError(t, Use(r.graph, p))
}

const present = "Blit:FinalColor->RENDER_OUTPUT"

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"forward", "hybrid", "rayquery", "raytraced"}, Names())

	_, err := New("pathtracer", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rendergraph.ErrorConfiguration{}), err)

	for _, name := range Names() {
		p, err := New(name, Options{})
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}
}

func TestOptionsFromConfig(t *testing.T) {
	assert.Equal(t, Options{}, OptionsFromConfig(rendergraph.Config{}))
	assert.Equal(t, Options{TAA: true, RayQuery: true}, OptionsFromConfig(rendergraph.Config{
		Features: map[string]bool{"taa": true, "bloom": false, "rayquery": true},
	}))
}

func TestForward(t *testing.T) {
	r := newRig(t, false)
	use(t, r, "forward", Options{})
	assert.Equal(t, []string{"ForwardPass", present}, passNames(r.graph))
	assert.Equal(t, []string{"forward.frag", "forward.vert"}, r.graph.Shaders())

	cube, err := scene.Cube(r.device)
	require.NoError(t, err)
	r.scene.AddMesh(cube)
	_, err = r.scene.AddInstance(cube, 0, mgl32.Ident4())
	require.NoError(t, err)
	_, err = r.scene.AddInstance(cube, 0, mgl32.Translate3D(2, 0, 0))
	require.NoError(t, err)

	require.NoError(t, headless.WriteShaders(r.config.ShaderDirectory, r.graph.Shaders()...))
	f, err := r.graph.BeginFrame()
	require.NoError(t, err)
	require.NoError(t, r.graph.Execute(f))

	sub := r.device.LastSubmission()
	assert.Equal(t, []string{"ForwardPass", present}, sub.Regions())
	forward := sub.Region("ForwardPass")
	var draws, pushes int
	for _, c := range forward {
		switch c.Op {
		case headless.OpDrawIndexed:
			draws++
		case headless.OpPushConstants:
			pushes++
		}
	}
	assert.Equal(t, 2, draws)
	assert.Equal(t, 2, pushes)
}

func TestRayTracingRequired(t *testing.T) {
	r := newRig(t, false)
	for _, name := range []string{"hybrid", "raytraced", "rayquery"} {
		p, err := New(name, Options{})
		require.NoError(t, err)
		err = Use(r.graph, p)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, rendergraph.ErrorConfiguration{}), err)
		assert.Empty(t, r.graph.Passes(), "a failed path must not leave passes behind")
	}
}

func TestHybrid(t *testing.T) {
	r := newRig(t, true)

	use(t, r, "hybrid", Options{})
	assert.Equal(t, []string{"GBuffer", "RTShadowAO", "DeferredLighting", present}, passNames(r.graph))
	assert.Contains(t, r.graph.Shaders(), "shadow_ao.rgen")
	plan, err := r.graph.Build()
	require.NoError(t, err)
	assert.Equal(t, passNames(r.graph), plan.PassNames())

	use(t, r, "hybrid", Options{TAA: true, Bloom: true, RayQuery: true})
	assert.Equal(t, []string{
		"GBuffer", "RTShadowAO", "DeferredLighting", "TAA",
		"BloomThreshold", "BloomDownsample_1", "BloomDownsample_2", "BloomDownsample_3",
		"BloomUpsample_2", "BloomUpsample_1", "BloomUpsample_0", "BloomComposite",
		"Tonemap", present,
	}, passNames(r.graph))
	shaders := r.graph.Shaders()
	assert.Contains(t, shaders, "shadow_ao_query.comp")
	assert.NotContains(t, shaders, "shadow_ao.rgen")
	_, err = r.graph.Build()
	require.NoError(t, err)
}

func TestRayTraced(t *testing.T) {
	r := newRig(t, true)

	svgf := []string{"SVGF_Temporal"}
	for i := range SVGFAtrousSteps {
		svgf = append(svgf, fmt.Sprintf("SVGF_Atrous_%d", i))
	}
	want := append(append([]string{"PathTrace"}, svgf...), "TAA", "Tonemap", present)

	use(t, r, "raytraced", Options{})
	assert.Equal(t, want, passNames(r.graph))
	assert.Contains(t, r.graph.Shaders(), "pathtrace.rgen")
	_, err := r.graph.Build()
	require.NoError(t, err)

	use(t, r, "rayquery", Options{})
	assert.Equal(t, want, passNames(r.graph))
	assert.Contains(t, r.graph.Shaders(), "pathtrace_query.comp")
	assert.NotContains(t, r.graph.Shaders(), "pathtrace.rgen")
}

func TestSVGF(t *testing.T) {
	r := newRig(t, true)
	filtered, err := AddSVGF(r.graph, CurColor)
	require.NoError(t, err)
	assert.Equal(t, FilteredName(SVGFAtrousSteps-1), filtered)
	assert.Equal(t, "Filtered_4", filtered)
	assert.Len(t, r.graph.Passes(), SVGFAtrousSteps+1)
}

func TestRowMajor3x4(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3)
	rows := rowMajor3x4(m)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, rows[0])
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 2}, rows[1])
	assert.Equal(t, mgl32.Vec4{0, 0, 1, 3}, rows[2])
}

func addCubes(t *testing.T, r *rig) {
	t.Helper()
	cube, err := scene.Cube(r.device)
	require.NoError(t, err)
	r.scene.AddMesh(cube)
	_, err = r.scene.AddInstance(cube, 0, mgl32.Ident4())
	require.NoError(t, err)
	_, err = r.scene.AddInstance(cube, 0, mgl32.Translate3D(2, 0, 0))
	require.NoError(t, err)
	require.NoError(t, r.scene.RebuildTLAS())
}

func historyTags(plan *rendergraph.ExecutionPlan) []string {
	var tags []string
	for _, h := range plan.History {
		tags = append(tags, h.Tag)
	}
	slices.Sort(tags)
	return tags
}

func TestPathFrames(t *testing.T) {
	const frames = 4
	tests := []struct {
		path    string
		options Options
		history []string
	}{
		{"forward", Options{}, nil},
		{"hybrid", Options{TAA: true}, []string{Depth, Normal, taaHistory}},
		{"raytraced", Options{}, []string{svgfAccumulated, svgfMoments, taaHistory}},
		{"rayquery", Options{}, []string{svgfAccumulated, svgfMoments, taaHistory}},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			r := newRig(t, true)
			addCubes(t, r)
			use(t, r, tc.path, tc.options)
			require.NoError(t, headless.WriteShaders(r.config.ShaderDirectory, r.graph.Shaders()...))

			for range frames {
				f, err := r.graph.BeginFrame()
				require.NoError(t, err)
				require.NoError(t, r.graph.Execute(f))
			}
			assert.Equal(t, uint64(frames), r.graph.FrameIndex())
			assert.Equal(t, tc.history, historyTags(r.graph.Plan()))

			subs := r.device.Submissions()
			require.Len(t, subs, frames)
			names := passNames(r.graph)
			for i, sub := range subs {
				regions := slices.DeleteFunc(sub.Regions(), func(s string) bool { return s == "ClearHistory" })
				assert.Equal(t, names, regions, "frame %d", i)
			}

			// history images never reach a barrier in a layout other than the one they were left in
			layouts := map[string]rendergraph.ImageLayout{}
			for i, sub := range subs {
				for _, b := range sub.ImageBarriers() {
					name := b.Image.Name()
					if !strings.HasPrefix(name, "history_") {
						continue
					}
					if prev, ok := layouts[name]; ok && b.Src.Layout != rendergraph.ImageLayoutUndefined {
						assert.Equal(t, prev, b.Src.Layout, "%s in frame %d", name, i)
					}
					layouts[name] = b.Dst.Layout
				}
			}
		})
	}
}

func TestSVGFFrames(t *testing.T) {
	r := newRig(t, true)
	addCubes(t, r)
	use(t, r, "raytraced", Options{})
	require.NoError(t, headless.WriteShaders(r.config.ShaderDirectory, r.graph.Shaders()...))
	for range 4 {
		f, err := r.graph.BeginFrame()
		require.NoError(t, err)
		require.NoError(t, r.graph.Execute(f))
	}
	subs := r.device.Submissions()
	require.Len(t, subs, 4)

	for i := range SVGFAtrousSteps {
		for frame, sub := range subs {
			var pushes [][]byte
			for _, c := range sub.Region(fmt.Sprintf("SVGF_Atrous_%d", i)) {
				if c.Op == headless.OpPushConstants {
					pushes = append(pushes, c.Data)
				}
			}
			require.Len(t, pushes, 1, "frame %d step %d", frame, i)
			require.Len(t, pushes[0], 8)
			assert.Equal(t, uint32(i), binary.LittleEndian.Uint32(pushes[0][0:]), "step")
			assert.Equal(t, uint32(1)<<i, binary.LittleEndian.Uint32(pushes[0][4:]), "stride")
		}
	}

	// the temporal pass writes slot frame%2 of both pairs and reads the other one
	written := func(sub headless.Submission, tag string) []string {
		var slots []string
		for _, b := range sub.ImageBarriers() {
			name := b.Image.Name()
			if strings.HasPrefix(name, "history_"+tag+"_") && b.Src.Layout == rendergraph.ImageLayoutUndefined &&
				b.Dst.Layout == rendergraph.ImageLayoutGeneral {
				slots = append(slots, name)
			}
		}
		return slots
	}
	for frame, sub := range subs {
		for _, tag := range []string{svgfAccumulated, svgfMoments} {
			assert.Equal(t, []string{fmt.Sprintf("history_%s_%d", tag, frame%2)}, written(sub, tag), "frame %d", frame)
		}
	}

	clears := commandsOf(subs[0].Region("ClearHistory"), headless.OpClearColor)
	var cleared []string
	for _, c := range clears {
		cleared = append(cleared, c.Target)
	}
	assert.Subset(t, cleared, []string{"history_Accumulated_1", "history_SVGFMoments_1"})
	for _, sub := range subs[1:] {
		assert.NotContains(t, sub.Regions(), "ClearHistory")
	}
}

func commandsOf(cmds []headless.Command, op headless.Op) []headless.Command {
	var ret []headless.Command
	for _, c := range cmds {
		if c.Op == op {
			ret = append(ret, c)
		}
	}
	return ret
}
