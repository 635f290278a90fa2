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

package resmgr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/headless"
	"goarrg.com/rhi/rendergraph/internal/util"
)

func newManager(t *testing.T, device *headless.Device) (*Manager, *rendergraph.DeferredQueue) {
	t.Helper()
	queue := rendergraph.NewDeferredQueue(rendergraph.DefaultMaxFramesInFlight)
	m, err := New(device, queue, rendergraph.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		queue.Flush()
		m.Destroy()
	})
	return m, queue
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// flatHDR encodes w x h texels of one RGBE value without run length encoding.
func flatHDR(w, h int, rgbe [4]byte) []byte {
	buf := bytes.Buffer{}
	buf.WriteString("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n")
	buf.WriteString(fmt.Sprintf("-Y %d +X %d\n", h, w))
	for range w * h {
		buf.Write(rgbe[:])
	}
	return buf.Bytes()
}

// rleHDR encodes w x h texels of one RGBE value, every component stored as a single run.
func rleHDR(w, h int, rgbe [4]byte) []byte {
	buf := bytes.Buffer{}
	buf.WriteString("#?RADIANCE\n\n")
	buf.WriteString(fmt.Sprintf("-Y %d +X %d\n", h, w))
	for range h {
		buf.Write([]byte{2, 2, byte(w >> 8), byte(w)})
		for _, v := range rgbe {
			buf.Write([]byte{byte(128 + w), v})
		}
	}
	return buf.Bytes()
}

func TestBlockSizes(t *testing.T) {
	assert.Equal(t, uintptr(64), unsafe.Sizeof(Material{}))
	assert.Equal(t, uintptr(592), unsafe.Sizeof(GlobalUniforms{}))
	assert.Zero(t, unsafe.Offsetof(GlobalUniforms{}.LightDirection)%16)
	assert.Zero(t, unsafe.Offsetof(GlobalUniforms{}.LightViewProjection)%16)
	assert.Zero(t, unsafe.Offsetof(GlobalUniforms{}.CameraPosition)%16)
}

func TestNew(t *testing.T) {
	d := headless.New(headless.Config{})
	m, _ := newManager(t, d)

	assert.Equal(t, 1, d.LiveCount("sampler"))
	assert.Equal(t, 4, d.LiveCount("descriptor_pool"))
	assert.Equal(t, 4, d.LiveCount("buffer"))
	assert.Len(t, m.GlobalSetLayout().(*headless.DescriptorSetLayout).Bindings(), 3)

	for frame := range rendergraph.DefaultMaxFramesInFlight {
		set := m.GlobalSet(frame).(*headless.DescriptorSet)
		materials := set.Written(BindingMaterials)
		require.Len(t, materials, 1)
		assert.Equal(t, m.MaterialBuffer(), materials[0].(rendergraph.DescriptorBufferInfo).Buffer)
		assert.Equal(t, fmt.Sprintf("global_uniforms_%d", frame), set.Written(BindingGlobalUniforms)[0].(rendergraph.DescriptorBufferInfo).Buffer.Name())
	}
	assert.Panics(t, func() { m.GlobalSet(rendergraph.DefaultMaxFramesInFlight) })
	assert.Error(t, m.SetTLAS(nil), "no ray tracing")

	_, err := New(d, rendergraph.NewDeferredQueue(1), rendergraph.Config{MaxFramesInFlight: 2})
	assert.ErrorIs(t, err, rendergraph.ErrorConfiguration{})
	_, err = New(d, rendergraph.NewDeferredQueue(1), rendergraph.Config{MaxBindlessTextures: 16})
	assert.ErrorIs(t, err, rendergraph.ErrorConfiguration{})
}

func TestNewRayTracing(t *testing.T) {
	d := headless.New(headless.Config{RayTracing: true})
	m, _ := newManager(t, d)
	assert.Len(t, m.GlobalSetLayout().(*headless.DescriptorSetLayout).Bindings(), 4)

	vertices, err := d.NewBuffer("vertices", rendergraph.BufferCreateInfo{Size: 36, Usage: rendergraph.BufferUsageShaderDeviceAddress})
	require.NoError(t, err)
	defer vertices.Destroy()
	blas, err := d.NewAccelerationStructure("blas", rendergraph.AccelerationStructureCreateInfo{
		Geometries: []rendergraph.AccelerationStructureGeometry{{VertexBuffer: vertices, VertexStride: 12, VertexCount: 3, VertexFormat: rendergraph.FORMAT_R32G32B32_SFLOAT}},
	})
	require.NoError(t, err)
	defer blas.Destroy()
	tlas, err := d.NewAccelerationStructure("tlas", rendergraph.AccelerationStructureCreateInfo{
		Instances: []rendergraph.AccelerationStructureInstance{{BLAS: blas, Mask: 0xFF}},
	})
	require.NoError(t, err)
	defer tlas.Destroy()
	require.NoError(t, m.SetTLAS(tlas))
	for frame := range rendergraph.DefaultMaxFramesInFlight {
		written := m.GlobalSet(frame).(*headless.DescriptorSet).Written(BindingTLAS)
		require.Len(t, written, 1)
		assert.Equal(t, tlas, written[0].(rendergraph.DescriptorAccelerationStructureInfo).AccelerationStructure)
	}
}

func TestNewOutOfMemory(t *testing.T) {
	d := headless.New(headless.Config{})
	d.FailAllocation("global_uniforms_1")
	_, err := New(d, rendergraph.NewDeferredQueue(rendergraph.DefaultMaxFramesInFlight), rendergraph.Config{})
	require.ErrorIs(t, err, rendergraph.ErrorOutOfMemory{})
	assert.Equal(t, []string{
		"swapchain_image(swapchain_0)",
		"swapchain_image(swapchain_1)",
		"swapchain_image(swapchain_2)",
	}, d.Live(), "a failed New releases everything it created")
}

func TestMaterials(t *testing.T) {
	d := headless.New(headless.Config{})
	m, queue := newManager(t, d)

	i, err := m.CreateMaterial(DefaultMaterial())
	require.NoError(t, err)
	assert.Equal(t, int32(0), i)

	bad := DefaultMaterial()
	bad.AlbedoTexture = 7
	_, err = m.CreateMaterial(bad)
	assert.ErrorContains(t, err, "unknown texture 7")
	assert.Error(t, m.UpdateMaterial(3, DefaultMaterial()))

	red := DefaultMaterial()
	red.Albedo = mgl32.Vec4{1, 0, 0, 1}
	require.NoError(t, m.UpdateMaterial(0, red))
	got, ok := m.Material(0)
	require.True(t, ok)
	assert.Equal(t, red, got)
	_, ok = m.Material(-1)
	assert.False(t, ok)

	require.NoError(t, m.SyncMaterialsToGPU())
	require.Len(t, d.Uploads(), 1)
	assert.Equal(t, headless.Upload{Target: "materials", Size: int(MaterialSize)}, d.Uploads()[0])
	assert.Equal(t, util.Bytes(&red), m.MaterialBuffer().(*headless.Buffer).Data()[:MaterialSize])
	require.NoError(t, m.SyncMaterialsToGPU())
	assert.Len(t, d.Uploads(), 1, "clean materials are not uploaded again")

	first := m.MaterialBuffer()
	for range DefaultMaxMaterials {
		_, err := m.CreateMaterial(DefaultMaterial())
		require.NoError(t, err)
	}
	assert.Equal(t, DefaultMaxMaterials+1, m.NumMaterials())
	assert.NotEqual(t, first, m.MaterialBuffer())
	assert.Equal(t, 2*DefaultMaxMaterials*MaterialSize, m.MaterialBuffer().Size())
	assert.Equal(t, 1, queue.Pending(), "the old buffer waits for frames in flight")
	for frame := range rendergraph.DefaultMaxFramesInFlight {
		written := m.GlobalSet(frame).(*headless.DescriptorSet).Written(BindingMaterials)
		assert.Equal(t, m.MaterialBuffer(), written[0].(rendergraph.DescriptorBufferInfo).Buffer)
	}

	require.NoError(t, m.SyncMaterialsToGPU())
	assert.Equal(t, int(DefaultMaxMaterials+1)*int(MaterialSize), d.LastUpload().Size)
}

func TestGlobalUniforms(t *testing.T) {
	d := headless.New(headless.Config{})
	m, _ := newManager(t, d)

	view := rendergraph.SceneView{
		View:           mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}),
		Projection:     mgl32.Perspective(1, 16.0/9.0, 0.1, 100),
		CameraPosition: mgl32.Vec3{0, 0, 5},
	}
	light := rendergraph.DirectionalLight{Direction: mgl32.Vec3{0, -2, 0}, Color: mgl32.Vec3{1, 1, 1}, Intensity: 2}
	u := NewGlobalUniforms(view, light, 1280, 720, 3, 1, DisplayModeNormal)
	assert.Equal(t, mgl32.Vec4{0, -1, 0, 0}, u.LightDirection)
	assert.Equal(t, mgl32.Vec2{1280, 720}, u.DisplaySize)
	assert.InDelta(t, 1.0/1280, u.InvDisplaySize.X(), 1e-9)
	assert.True(t, u.InvView.Mul4(u.View).ApproxEqualThreshold(mgl32.Ident4(), 1e-5))

	require.NoError(t, m.UpdateGlobalUniforms(1, u))
	assert.Equal(t, util.Bytes(&u), m.uniforms[1].(*headless.Buffer).Data())
	assert.Panics(t, func() { _ = m.UpdateGlobalUniforms(5, u) })
}

func TestLoadTextures(t *testing.T) {
	d := headless.New(headless.Config{})
	m, _ := newManager(t, d)
	dir := t.TempDir()

	paths := make([]string, 0, 3)
	for i := range 3 {
		p := filepath.Join(dir, fmt.Sprintf("tex_%d.png", i))
		writePNG(t, p, 4+i, 2)
		paths = append(paths, p)
	}

	i, err := m.LoadTexture(paths[0])
	require.NoError(t, err)
	assert.Equal(t, int32(0), i)
	img, ok := m.Texture(i)
	require.True(t, ok)
	assert.Equal(t, "tex_0.png", img.Name())
	assert.Equal(t, rendergraph.FORMAT_R8G8B8A8_UNORM, img.Description().Format)
	assert.Equal(t, headless.Upload{Target: "tex_0.png", Size: 4 * 2 * 4}, d.LastUpload())

	indices, err := m.LoadTextures(context.Background(), paths[1:])
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, indices)
	img, _ = m.Texture(2)
	assert.Equal(t, int32(6), img.Description().Extent.X, "indices follow the order of paths")

	_, err = m.LoadTextures(context.Background(), []string{paths[0], filepath.Join(dir, "missing.png")})
	assert.Error(t, err)
	assert.Equal(t, 3, m.NumTextures(), "nothing is uploaded when a decode fails")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.png"), []byte("not a png"), 0o644))
	_, err = m.LoadTexture(filepath.Join(dir, "garbage.png"))
	assert.Error(t, err)

	_, err = m.LoadHDRTexture(paths[0])
	assert.ErrorContains(t, err, "not a Radiance .hdr file")
}

func TestLoadTextureScalesDown(t *testing.T) {
	d := headless.New(headless.Config{})
	m, _ := newManager(t, d)

	limit := int(d.Properties().Limits.MaxImageDimension2D)
	i, err := m.LoadTextureFromImage("wide", image.NewRGBA(image.Rect(0, 0, 2*limit, 2)))
	require.NoError(t, err)
	img, _ := m.Texture(i)
	assert.Equal(t, int32(limit), img.Description().Extent.X)
	assert.Equal(t, int32(1), img.Description().Extent.Y)
}

func TestLoadHDRTexture(t *testing.T) {
	d := headless.New(headless.Config{})
	m, _ := newManager(t, d)
	dir := t.TempDir()

	rgbe := [4]byte{128, 64, 0, 129}
	for name, data := range map[string][]byte{
		"flat.hdr": flatHDR(2, 3, rgbe),
		"rle.HDR":  rleHDR(8, 2, rgbe),
	} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))

		decoded, err := m.decodeTexture(p)
		require.NoError(t, err, name)
		assert.Equal(t, rendergraph.FORMAT_R32G32B32A32_SFLOAT, decoded.format)
		pix := unsafe.Slice((*float32)(unsafe.Pointer(&decoded.data[0])), len(decoded.data)/4)
		assert.Equal(t, []float32{1, 0.5, 0, 1}, pix[:4], name)
		assert.Equal(t, []float32{1, 0.5, 0, 1}, pix[len(pix)-4:], name)

		i, err := m.LoadHDRTexture(p)
		require.NoError(t, err, name)
		img, _ := m.Texture(i)
		assert.Equal(t, decoded.width*decoded.height*16, d.LastUpload().Size)
		assert.Equal(t, int32(decoded.width), img.Description().Extent.X)
	}

	for name, data := range map[string][]byte{
		"magic":       []byte("P6\n1 1\n"),
		"format":      []byte("#?RADIANCE\nFORMAT=32-bit_rle_xyze\n\n-Y 1 +X 1\n"),
		"orientation": []byte("#?RADIANCE\n\n+Y 1 +X 1\n\x00\x00\x00\x00"),
		"truncated":   flatHDR(4, 4, rgbe)[:60],
	} {
		_, err := decodeHDR(bytes.NewReader(data))
		assert.Error(t, err, name)
	}
}

func TestReleaseTexture(t *testing.T) {
	d := headless.New(headless.Config{})
	m, queue := newManager(t, d)

	a, err := m.LoadTextureFromImage("a", image.NewRGBA(image.Rect(0, 0, 2, 2)))
	require.NoError(t, err)
	b, err := m.LoadTextureFromImage("b", image.NewRGBA(image.Rect(0, 0, 2, 2)))
	require.NoError(t, err)
	require.Equal(t, []int32{0, 1}, []int32{a, b})

	require.NoError(t, m.ReleaseTexture(a))
	assert.Error(t, m.ReleaseTexture(a))
	_, ok := m.Texture(a)
	assert.False(t, ok)
	assert.Equal(t, 1, m.NumTextures())
	assert.Equal(t, 2, d.LiveCount("image"), "the image lives until its frame completed")

	c, err := m.LoadTextureFromImage("c", image.NewRGBA(image.Rect(0, 0, 2, 2)))
	require.NoError(t, err)
	assert.Equal(t, int32(2), c, "the released index is not reused while frames may read it")

	queue.Commit(0)
	queue.Run(0)
	assert.Equal(t, 2, d.LiveCount("image"))
	reused, err := m.LoadTextureFromImage("d", image.NewRGBA(image.Rect(0, 0, 2, 2)))
	require.NoError(t, err)
	assert.Equal(t, a, reused)
}
