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

package rendergraph_test

import (
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goarrg.com/gmath"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/headless"
	"goarrg.com/rhi/rendergraph/resmgr"
	"goarrg.com/rhi/rendergraph/scene"
)

type testRig struct {
	device    *headless.Device
	queue     *rendergraph.DeferredQueue
	resources *resmgr.Manager
	scene     *scene.Scene
	graph     *rendergraph.Graph
}

func newRig(t *testing.T, device *headless.Device, config rendergraph.Config) *testRig {
	t.Helper()
	if config.ShaderDirectory == "" {
		config.ShaderDirectory = t.TempDir()
	}
	require.NoError(t, headless.WriteShaders(config.ShaderDirectory, "test.vert", "test.frag", "test.comp", "other.comp"))

	frames := config.MaxFramesInFlight
	if frames == 0 {
		frames = rendergraph.DefaultMaxFramesInFlight
	}
	queue := rendergraph.NewDeferredQueue(frames)
	resources, err := resmgr.New(device, queue, config)
	require.NoError(t, err)
	camera := scene.NewCamera(mgl32.Vec3{0, 2, 5}, mgl32.Vec3{}, 60, 16.0/9.0)
	s := scene.New(device, camera, resources)
	g, err := rendergraph.NewGraph(device, resources, s, queue, config)
	require.NoError(t, err)
	return &testRig{device: device, queue: queue, resources: resources, scene: s, graph: g}
}

func (r *testRig) destroy() {
	r.graph.Destroy()
	r.scene.Destroy()
	r.resources.Destroy()
}

func (r *testRig) frame() error {
	f, err := r.graph.BeginFrame()
	if err != nil {
		return err
	}
	return r.graph.Execute(f)
}

func drawTriangle(rc *rendergraph.RecordContext) error {
	rc.Draw(3, 1, 0, 0)
	return nil
}

func addForward(t *testing.T, g *rendergraph.Graph, record rendergraph.RecordFunc) {
	t.Helper()
	require.NoError(t, g.AddGraphicsPass(rendergraph.GraphicsPassSpec{
		Name:      "Geometry",
		Pipelines: []rendergraph.GraphicsPipelineDesc{{VertexShader: "test.vert", FragmentShader: "test.frag"}},
		Setup: func(b *rendergraph.PassBuilder) {
			b.Write("Color").Format(rendergraph.FORMAT_R16G16B16A16_SFLOAT).Clear(rendergraph.ColorImageClearValueFloat{A: 1})
			b.Write("Depth").Format(rendergraph.FORMAT_D32_SFLOAT).ClearDepth(1)
		},
		Record: record,
	}))
	require.NoError(t, g.AddBlitPass("Color", rendergraph.RenderOutput, rendergraph.FORMAT_R16G16B16A16_SFLOAT, rendergraph.FORMAT_B8G8R8A8_UNORM))
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

func TestGraphForward(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{})
	defer rig.destroy()
	addForward(t, rig.graph, drawTriangle)

	plan, err := rig.graph.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"Geometry", "Blit:Color->RENDER_OUTPUT"}, plan.PassNames())
	assert.Equal(t, rendergraph.Extent2i32{X: 1280, Y: 720}, rig.graph.Dimensions())
	assert.Equal(t, 2, rig.device.LiveCount("image"))

	created := rig.device.Created("image")
	_, err = rig.graph.Build()
	require.NoError(t, err)
	assert.Equal(t, created, rig.device.Created("image"), "rebuilding an unchanged graph must not allocate")

	require.NoError(t, rig.frame())
	sub := rig.device.LastSubmission()
	assert.Equal(t, "frame_0", sub.Name)
	assert.Equal(t, []string{"Geometry", "Blit:Color->RENDER_OUTPUT"}, sub.Regions())
	assert.Empty(t, sub.Filter(headless.OpWriteTimestamp))

	geometry := sub.Region("Geometry")
	require.NotEmpty(t, geometry)
	require.Len(t, commandsOf(geometry, headless.OpRenderPassBegin), 1)
	binds := commandsOf(geometry, headless.OpBindPipeline)
	require.Len(t, binds, 1)
	assert.Equal(t, "Geometry", binds[0].Target)
	sets := commandsOf(geometry, headless.OpBindSets)
	require.Len(t, sets, 1)
	assert.Len(t, sets[0].Sets, 1, "a pass without bindings only binds the global set")
	assert.Len(t, commandsOf(geometry, headless.OpDraw), 1)
	assert.Len(t, commandsOf(geometry, headless.OpRenderPassEnd), 1)

	blits := sub.Filter(headless.OpBlit)
	require.Len(t, blits, 1)
	assert.True(t, strings.HasSuffix(blits[0].Target, "->swapchain_0"), blits[0].Target)

	barriers := sub.ImageBarriers()
	require.NotEmpty(t, barriers)
	last := barriers[len(barriers)-1]
	assert.Equal(t, "swapchain_0", last.Image.Name())
	assert.Equal(t, rendergraph.ImageLayoutTransferDst, last.Src.Layout)
	assert.Equal(t, rendergraph.ImageLayoutPresent, last.Dst.Layout)

	require.NoError(t, rig.frame())
	sub = rig.device.LastSubmission()
	assert.Equal(t, "frame_1", sub.Name)
	blits = sub.Filter(headless.OpBlit)
	require.Len(t, blits, 1)
	assert.True(t, strings.HasSuffix(blits[0].Target, "->swapchain_1"), blits[0].Target)

	swapchain := rig.device.HeadlessSwapchain()
	assert.Equal(t, 2, swapchain.Acquires())
	assert.Equal(t, 2, swapchain.Presents())
	assert.Equal(t, uint64(2), rig.graph.FrameIndex())
}

func TestGraphHistory(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{})
	defer rig.destroy()

	var reads, writes []string
	require.NoError(t, rig.graph.AddComputePass(rendergraph.ComputePassSpec{
		Name:      "Accumulate",
		Pipelines: []rendergraph.ComputePipelineDesc{{Shader: "test.comp", LocalSize: gmath.Extent3u32{X: 8, Y: 8, Z: 1}}},
		Setup: func(b *rendergraph.PassBuilder) {
			b.ReadHistory("accum")
			b.Write("Accum").Format(rendergraph.FORMAT_R16G16B16A16_SFLOAT).SaveAsHistory("accum")
		},
		Record: func(rc *rendergraph.RecordContext) error {
			reads = append(reads, rc.HistoryImage("accum").Name())
			writes = append(writes, rc.Image("Accum").Name())
			rc.DispatchForExtent()
			return nil
		},
	}))
	require.NoError(t, rig.graph.AddBlitPass("Accum", rendergraph.RenderOutput, rendergraph.FORMAT_UNDEFINED, rendergraph.FORMAT_UNDEFINED))

	require.NoError(t, rig.frame())
	sub := rig.device.LastSubmission()
	assert.Equal(t, []string{"ClearHistory", "Accumulate", "Blit:Accum->RENDER_OUTPUT"}, sub.Regions())
	clears := commandsOf(sub.Region("ClearHistory"), headless.OpClearColor)
	require.Len(t, clears, 1)
	assert.Equal(t, "history_accum_1", clears[0].Target)

	dispatches := sub.Filter(headless.OpDispatch)
	require.Len(t, dispatches, 1)
	assert.Equal(t, []uint64{160, 90, 1}, dispatches[0].Args)

	for range 3 {
		require.NoError(t, rig.frame())
		assert.Equal(t, []string{"Accumulate", "Blit:Accum->RENDER_OUTPUT"}, rig.device.LastSubmission().Regions())
	}

	// each frame reads what the previous one wrote
	assert.Equal(t, []string{"history_accum_1", "history_accum_0", "history_accum_1", "history_accum_0"}, reads)
	assert.Equal(t, []string{"history_accum_0", "history_accum_1", "history_accum_0", "history_accum_1"}, writes)
	for i := 1; i < len(reads); i++ {
		assert.Equal(t, writes[i-1], reads[i])
	}

	// a resize discards history, the next frame starts from cleared images again
	rig.graph.SetDimensions(640, 360)
	require.NoError(t, rig.frame())
	assert.Equal(t, "ClearHistory", rig.device.LastSubmission().Regions()[0])
}

func TestGraphHistoryLayoutAcrossRebuild(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{})
	defer rig.destroy()

	dispatch := func(rc *rendergraph.RecordContext) error {
		rc.DispatchForExtent()
		return nil
	}
	compute := []rendergraph.ComputePipelineDesc{{Shader: "test.comp", LocalSize: gmath.Extent3u32{X: 8, Y: 8, Z: 1}}}
	require.NoError(t, rig.graph.AddComputePass(rendergraph.ComputePassSpec{
		Name:      "Accumulate",
		Pipelines: compute,
		Setup: func(b *rendergraph.PassBuilder) {
			b.ReadHistory("h")
			b.Write("A").Format(rendergraph.FORMAT_R16G16B16A16_SFLOAT).SaveAsHistory("h")
		},
		Record: dispatch,
	}))
	require.NoError(t, rig.graph.AddComputePass(rendergraph.ComputePassSpec{
		Name:      "Sample",
		Pipelines: compute,
		Setup: func(b *rendergraph.PassBuilder) {
			b.Read("A")
			b.Write("B").Format(rendergraph.FORMAT_R16G16B16A16_SFLOAT)
		},
		Record: dispatch,
	}))
	require.NoError(t, rig.graph.AddBlitPass("B", rendergraph.RenderOutput, rendergraph.FORMAT_UNDEFINED, rendergraph.FORMAT_UNDEFINED))

	for range 2 {
		require.NoError(t, rig.frame())
	}
	require.Len(t, rig.graph.Plan().History, 1)
	assert.Equal(t, rendergraph.ImageLayoutShaderReadOnly, rig.graph.Plan().History[0].ReadLayout)

	// the last access of A becomes a storage read, the kept pair must follow
	require.NoError(t, rig.graph.AddComputePass(rendergraph.ComputePassSpec{
		Name:      "Storage",
		Pipelines: compute,
		Setup: func(b *rendergraph.PassBuilder) {
			b.ReadCompute("A")
			b.Write("C").Format(rendergraph.FORMAT_R16G16B16A16_SFLOAT)
		},
		Record: dispatch,
	}))
	for range 2 {
		require.NoError(t, rig.frame())
	}
	require.Len(t, rig.graph.Plan().History, 1)
	assert.Equal(t, rendergraph.ImageLayoutGeneral, rig.graph.Plan().History[0].ReadLayout)

	subs := rig.device.Submissions()
	require.Len(t, subs, 4)
	assert.Equal(t, "TransitionHistory", subs[2].Regions()[0])
	assert.NotContains(t, subs[2].Regions(), "ClearHistory", "contents carry over a rebuild")
	assert.NotContains(t, subs[3].Regions(), "TransitionHistory")

	transition := subs[2].Region("TransitionHistory")
	barriers := commandsOf(transition, headless.OpBarrier)
	require.Len(t, barriers, 1)
	require.Len(t, barriers[0].ImageBarriers, 1)
	b := barriers[0].ImageBarriers[0]
	assert.Equal(t, "history_h_1", b.Image.Name())
	assert.Equal(t, rendergraph.ImageLayoutShaderReadOnly, b.Src.Layout)
	assert.Equal(t, rendergraph.ImageLayoutGeneral, b.Dst.Layout)

	// every barrier on a history image starts from the layout the previous one left it in
	layouts := map[string]rendergraph.ImageLayout{}
	for i, sub := range subs {
		for _, b := range sub.ImageBarriers() {
			name := b.Image.Name()
			if !strings.HasPrefix(name, "history_h_") {
				continue
			}
			if prev, ok := layouts[name]; ok && b.Src.Layout != rendergraph.ImageLayoutUndefined {
				assert.Equal(t, prev, b.Src.Layout, "%s in submission %d", name, i)
			}
			layouts[name] = b.Dst.Layout
		}
	}
	assert.Equal(t, 2, countPrefix(rig.device.Live(), "image(history_h_"), "the pair is kept, not reallocated")
}

func countPrefix(names []string, prefix string) int {
	n := 0
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			n++
		}
	}
	return n
}

func TestGraphPassFailure(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{})
	defer rig.destroy()

	mode := "error"
	addForward(t, rig.graph, func(rc *rendergraph.RecordContext) error {
		switch mode {
		case "error":
			return assert.AnError
		case "panic":
			rc.PushConstants(make([]byte, 16))
		}
		return drawTriangle(rc)
	})

	err := rig.frame()
	require.ErrorIs(t, err, rendergraph.ErrorPassFailed{})
	assert.Equal(t, 1, rig.device.Discarded())
	assert.Empty(t, rig.device.Submissions())
	assert.Equal(t, uint64(0), rig.graph.FrameIndex())

	// pushing more than the pass declared panics inside Record
	mode = "panic"
	err = rig.frame()
	require.ErrorIs(t, err, rendergraph.ErrorPassFailed{})
	assert.Equal(t, 2, rig.device.Discarded())

	// both discarded frames handed their swapchain image back instead of presenting it
	swapchain := rig.device.HeadlessSwapchain()
	assert.Equal(t, 2, swapchain.Acquires())
	assert.Equal(t, 2, swapchain.Releases())
	assert.Equal(t, 0, swapchain.Presents())

	mode = ""
	require.NoError(t, rig.frame())
	assert.Len(t, rig.device.Submissions(), 1)
	assert.Equal(t, 1, swapchain.Presents())
	assert.Equal(t, 2, swapchain.Releases())
	assert.Equal(t, uint64(1), rig.graph.FrameIndex())
}

func TestGraphSubmitFailure(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{})
	defer rig.destroy()
	addForward(t, rig.graph, drawTriangle)

	rig.device.FailNextSubmit()
	err := rig.frame()
	require.Error(t, err)
	assert.ErrorContains(t, err, "Failed to submit frame 0")
	assert.Empty(t, rig.device.Submissions())
	assert.Equal(t, 1, rig.device.Discarded(), "the unsubmitted command buffer goes back to its slot")
	assert.Equal(t, 1, rig.device.HeadlessSwapchain().Releases())

	require.NoError(t, rig.frame())
	assert.Len(t, rig.device.Submissions(), 1)
	assert.Equal(t, 1, rig.device.HeadlessSwapchain().Presents())
}

func TestGraphShaderFailure(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{})
	defer rig.destroy()
	addForward(t, rig.graph, drawTriangle)

	rig.device.FailShader("test.frag")
	err := rig.frame()
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to compile")
	assert.Equal(t, 1, rig.graph.Stats().Pipelines.Failures)
	assert.Equal(t, 1, rig.device.Discarded())

	rig.device.ClearShaderFailure("test.frag")
	require.NoError(t, rig.frame())
	assert.Equal(t, 1, rig.graph.Stats().Pipelines.Compiles)
}

func TestGraphPipelineCache(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{})
	defer rig.destroy()
	addForward(t, rig.graph, drawTriangle)

	for range 3 {
		require.NoError(t, rig.frame())
	}
	stats := rig.graph.Stats().Pipelines
	assert.Equal(t, 1, stats.Compiles)
	assert.Equal(t, 2, stats.Hits)
	assert.Len(t, rig.graph.Pipelines().Keys(), 1)

	rig.graph.Pipelines().Invalidate("test.frag")
	assert.Empty(t, rig.graph.Pipelines().Keys())
	require.NoError(t, rig.frame())
	assert.Equal(t, 2, rig.graph.Stats().Pipelines.Compiles)
}

func TestGraphPipelineEviction(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{PipelineRetentionFrames: 2})
	defer rig.destroy()
	addForward(t, rig.graph, drawTriangle)
	require.NoError(t, rig.frame())

	rig.graph.Reset()
	require.NoError(t, rig.graph.AddComputePass(rendergraph.ComputePassSpec{
		Name:      "Fill",
		Pipelines: []rendergraph.ComputePipelineDesc{{Shader: "other.comp", LocalSize: gmath.Extent3u32{X: 16, Y: 16, Z: 1}}},
		Setup: func(b *rendergraph.PassBuilder) {
			b.Write("Out").Format(rendergraph.FORMAT_R8G8B8A8_UNORM)
		},
		Record: func(rc *rendergraph.RecordContext) error {
			rc.DispatchForExtent()
			return nil
		},
	}))
	require.NoError(t, rig.graph.AddBlitPass("Out", rendergraph.RenderOutput, rendergraph.FORMAT_R8G8B8A8_UNORM, rendergraph.FORMAT_B8G8R8A8_UNORM))

	require.NoError(t, rig.frame())
	assert.Equal(t, 0, rig.graph.Stats().Pipelines.Evictions)
	assert.Len(t, rig.graph.Pipelines().Keys(), 2)

	require.NoError(t, rig.frame())
	assert.Equal(t, 1, rig.graph.Stats().Pipelines.Evictions)
	assert.Len(t, rig.graph.Pipelines().Keys(), 1)
}

func TestGraphTimestamps(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{MaxFramesInFlight: 1, EnableTimestamps: true})
	defer rig.destroy()
	addForward(t, rig.graph, drawTriangle)

	require.NoError(t, rig.frame())
	assert.Len(t, rig.device.LastSubmission().Filter(headless.OpWriteTimestamp), 5)
	assert.Empty(t, rig.graph.Stats().Passes, "timestamps are read back once the frame completed")

	require.NoError(t, rig.frame())
	stats := rig.graph.Stats()
	assert.Equal(t, uint64(0), stats.Frame)
	assert.Equal(t, []rendergraph.PassTiming{
		{Name: "Geometry", GPUTime: time.Microsecond},
		{Name: "Blit:Color->RENDER_OUTPUT", GPUTime: time.Microsecond},
	}, stats.Passes)
	assert.Equal(t, 4*time.Microsecond, stats.Total)
}

func TestGraphSwapchainStale(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{})
	defer rig.destroy()
	addForward(t, rig.graph, drawTriangle)
	swapchain := rig.device.HeadlessSwapchain()

	require.NoError(t, rig.frame())

	swapchain.ForceOutOfDate(640, 360)
	require.ErrorIs(t, rig.frame(), rendergraph.ErrorSkipFrame{})
	assert.Equal(t, 0, swapchain.Recreations())

	require.NoError(t, rig.frame())
	assert.Equal(t, 1, swapchain.Recreations())
	assert.Equal(t, rendergraph.Extent2i32{X: 640, Y: 360}, rig.graph.Dimensions())
	assert.Equal(t, int32(640), rig.graph.Plan().Width)
	assert.GreaterOrEqual(t, rig.device.WaitIdles(), 1)

	// going stale at present is not an error
	f, err := rig.graph.BeginFrame()
	require.NoError(t, err)
	swapchain.ForceOutOfDate(800, 600)
	require.NoError(t, rig.graph.Execute(f))

	require.NoError(t, rig.frame())
	assert.Equal(t, 2, swapchain.Recreations())
	assert.Equal(t, rendergraph.Extent2i32{X: 800, Y: 600}, rig.graph.Dimensions())
}

func TestGraphMinimized(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{})
	defer rig.destroy()
	addForward(t, rig.graph, drawTriangle)
	swapchain := rig.device.HeadlessSwapchain()

	swapchain.ForceOutOfDate(0, 0)
	for range 3 {
		require.ErrorIs(t, rig.frame(), rendergraph.ErrorSkipFrame{})
	}
	assert.Equal(t, 0, swapchain.Presents())

	swapchain.ForceOutOfDate(320, 240)
	require.NoError(t, rig.frame())
	assert.Equal(t, rendergraph.Extent2i32{X: 320, Y: 240}, rig.graph.Dimensions())
	assert.Equal(t, 1, swapchain.Presents())
}

func TestGraphOutOfMemory(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{})
	defer rig.destroy()

	require.NoError(t, rig.graph.AddComputePass(rendergraph.ComputePassSpec{
		Name:      "Accumulate",
		Pipelines: []rendergraph.ComputePipelineDesc{{Shader: "test.comp", LocalSize: gmath.Extent3u32{X: 8, Y: 8, Z: 1}}},
		Setup: func(b *rendergraph.PassBuilder) {
			b.ReadHistory("accum")
			b.Write("Accum").Format(rendergraph.FORMAT_R16G16B16A16_SFLOAT).SaveAsHistory("accum")
		},
		Record: func(rc *rendergraph.RecordContext) error {
			rc.DispatchForExtent()
			return nil
		},
	}))
	require.NoError(t, rig.graph.AddBlitPass("Accum", rendergraph.RenderOutput, rendergraph.FORMAT_UNDEFINED, rendergraph.FORMAT_UNDEFINED))

	rig.device.FailAllocation("history_accum_1")
	_, err := rig.graph.BeginFrame()
	require.ErrorIs(t, err, rendergraph.ErrorOutOfMemory{})
	assert.Zero(t, rig.device.LiveCount("image"), "a failed pair must not leak its first image")

	// out of memory is fatal, nothing retries the allocation
	_, err = rig.graph.BeginFrame()
	require.ErrorIs(t, err, rendergraph.ErrorOutOfMemory{})
	_, err = rig.graph.Build()
	require.ErrorIs(t, err, rendergraph.ErrorOutOfMemory{})
}

func TestGraphReservedNames(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{})
	defer rig.destroy()

	for _, name := range []string{rendergraph.RenderOutput, rendergraph.SceneTLAS, rendergraph.SceneInstances, rendergraph.MaterialBufferName} {
		assert.Panics(t, func() { rig.graph.RegisterExternalBuffer(name, rig.resources.MaterialBuffer()) }, name)
	}
}

func TestGraphExternalImage(t *testing.T) {
	rig := newRig(t, headless.New(headless.Config{}), rendergraph.Config{})
	defer rig.destroy()

	env, err := rig.device.NewImage("environment", rendergraph.ImageDescription{
		Extent:  gmath.Extent3i32{X: 1280, Y: 720, Z: 1},
		Format:  rendergraph.FORMAT_R8G8B8A8_UNORM,
		Usage:   rendergraph.ImageUsageTransferSrc | rendergraph.ImageUsageSampled,
		Samples: 1,
	})
	require.NoError(t, err)
	defer env.Destroy()

	sampled := rendergraph.ImageBarrierInfo{
		Layout: rendergraph.ImageLayoutShaderReadOnly,
		Stage:  rendergraph.PipelineStageFragmentShader,
		Access: rendergraph.AccessFlagShaderRead,
	}
	rig.graph.RegisterExternalImage("Environment", env, sampled, sampled)
	require.NoError(t, rig.graph.AddBlitPass("Environment", rendergraph.RenderOutput, rendergraph.FORMAT_R8G8B8A8_UNORM, rendergraph.FORMAT_B8G8R8A8_UNORM))

	require.NoError(t, rig.frame())
	sub := rig.device.LastSubmission()
	blits := sub.Filter(headless.OpBlit)
	require.Len(t, blits, 1)
	assert.Equal(t, "environment->swapchain_0", blits[0].Target)

	var restored bool
	for _, b := range sub.ImageBarriers() {
		if b.Image.Name() == "environment" && b.Dst.Layout == rendergraph.ImageLayoutShaderReadOnly {
			restored = true
		}
	}
	assert.True(t, restored, "an external image is returned to its final state")

	created := rig.device.Created("image")
	rig.graph.RegisterExternalImage("Environment", env, sampled, sampled)
	require.NoError(t, rig.frame())
	assert.Equal(t, created, rig.device.Created("image"))
}

func TestNewGraphQueueMismatch(t *testing.T) {
	device := headless.New(headless.Config{})
	queue := rendergraph.NewDeferredQueue(2)
	resources, err := resmgr.New(device, queue, rendergraph.Config{MaxFramesInFlight: 2})
	require.NoError(t, err)
	defer resources.Destroy()

	s := scene.New(device, scene.NewCamera(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, 60, 1), nil)
	_, err = rendergraph.NewGraph(device, resources, s, queue, rendergraph.Config{MaxFramesInFlight: 3})
	require.ErrorIs(t, err, rendergraph.ErrorConfiguration{})
	assert.ErrorContains(t, err, "sized to 2 frames in flight")
}

func TestGraphDestroy(t *testing.T) {
	device := headless.New(headless.Config{})
	rig := newRig(t, device, rendergraph.Config{})
	addForward(t, rig.graph, drawTriangle)
	for range 4 {
		require.NoError(t, rig.frame())
	}
	rig.destroy()

	assert.Equal(t, []string{
		"swapchain_image(swapchain_0)",
		"swapchain_image(swapchain_1)",
		"swapchain_image(swapchain_2)",
	}, device.Live())
}
