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

package scene

import (
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/headless"
)

type recordingBinder struct {
	bound []rendergraph.AccelerationStructure
}

func (b *recordingBinder) SetTLAS(tlas rendergraph.AccelerationStructure) error {
	b.bound = append(b.bound, tlas)
	return nil
}

func readBack[T any](t *testing.T, b rendergraph.Buffer) []T {
	t.Helper()
	data := b.(*headless.Buffer).Data()
	var zero T
	require.Zero(t, len(data)%int(unsafe.Sizeof(zero)))
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), len(data)/int(unsafe.Sizeof(zero)))
}

func TestLayouts(t *testing.T) {
	assert.Equal(t, uint32(32), VertexSize)
	assert.Equal(t, uint64(24), RTInstanceSize)
	assert.Equal(t, uint32(24), VertexAttributes[2].Offset)
}

func TestCube(t *testing.T) {
	d := headless.New(headless.Config{})
	cube, err := Cube(d)
	require.NoError(t, err)
	defer cube.Destroy()

	assert.Equal(t, uint32(24), cube.VertexCount)
	assert.Equal(t, uint32(36), cube.IndexCount)
	assert.Nil(t, cube.BLAS())

	vertices := readBack[Vertex](t, cube.Vertices)
	indices := readBack[uint32](t, cube.Indices)
	require.Len(t, vertices, 24)
	require.Len(t, indices, 36)
	for i := 0; i < len(indices); i += 3 {
		a, b, c := vertices[indices[i]], vertices[indices[i+1]], vertices[indices[i+2]]
		n := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
		assert.Greater(t, n.Dot(a.Normal), float32(0), "triangle %d winds clockwise", i/3)
		for _, v := range []Vertex{a, b, c} {
			assert.InDelta(t, 0.5, v.Position.Dot(v.Normal), 1e-6)
		}
	}
}

func TestNewMeshErrors(t *testing.T) {
	d := headless.New(headless.Config{})
	v := []Vertex{{}, {}, {}}
	for name, indices := range map[string][]uint32{
		"empty":      nil,
		"range":      {0, 1, 3},
		"not a list": {0, 1},
	} {
		_, err := NewMesh(d, name, v, indices)
		assert.Error(t, err, name)
	}
	assert.Zero(t, d.LiveCount("buffer"))

	d.FailAllocation("tri_indices")
	_, err := NewMesh(d, "tri", v, []uint32{0, 1, 2})
	assert.ErrorIs(t, err, rendergraph.ErrorOutOfMemory{})
	assert.Zero(t, d.LiveCount("buffer"), "the vertex buffer is released")
}

func TestCameraJitter(t *testing.T) {
	c := NewCamera(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, 60, 16.0/9.0)
	base := c.ProjectionMatrix()

	c.SetJitter(0, 1280, 720)
	assert.InDelta(t, 0, c.Jitter().X(), 1e-9)
	assert.InDelta(t, (2.0/3.0-1)/720, c.Jitter().Y(), 1e-7)
	p := c.ProjectionMatrix()
	assert.InDelta(t, base[9]+c.Jitter().Y(), p[9], 1e-7)

	c.SetJitter(1, 1280, 720)
	assert.InDelta(t, (2*0.25-1)/1280.0, c.Jitter().X(), 1e-7)
	first := c.Jitter()
	c.SetJitter(17, 1280, 720)
	assert.Equal(t, first, c.Jitter(), "the sequence repeats every 16 frames")

	c.SetJitter(3, 0, 0)
	assert.Equal(t, mgl32.Vec2{}, c.Jitter())
	assert.Equal(t, base, c.ProjectionMatrix())
}

func TestCameraHistory(t *testing.T) {
	c := NewCamera(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, 60, 1)
	v := c.SceneView()
	assert.Equal(t, v.View, v.PrevView)
	assert.Equal(t, v.Projection, v.PrevProjection)

	c.EndFrame()
	before := c.ViewMatrix()
	c.Orbit(mgl32.DegToRad(90), 0)
	v = c.SceneView()
	assert.Equal(t, before, v.PrevView)
	assert.NotEqual(t, v.View, v.PrevView)
	assert.InDelta(t, 5, c.Position.Len(), 1e-4)
	assert.InDelta(t, 5, c.Position.X(), 1e-4)

	c.Orbit(0, mgl32.DegToRad(180))
	assert.Less(t, c.Position.Y(), float32(5), "pitch stops short of the pole")

	c.ResetHistory()
	v = c.SceneView()
	assert.Equal(t, v.View, v.PrevView)

	c.SetAspect(0, 10)
	assert.Equal(t, float32(1), c.Aspect)
	c.SetAspect(200, 100)
	assert.Equal(t, float32(2), c.Aspect)
}

func TestSceneInstances(t *testing.T) {
	d := headless.New(headless.Config{})
	s := New(d, NewCamera(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, 60, 1), nil)
	defer s.Destroy()
	assert.Equal(t, int32(-1), s.SkyboxTexture())
	assert.InDelta(t, 1, s.Light().Direction.Len(), 1e-6)

	origin := s.Light().ViewProjection.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, origin.X(), 1e-5)
	assert.InDelta(t, 0, origin.Y(), 1e-5)
	assert.Greater(t, origin.Z(), float32(0))
	assert.Less(t, origin.Z(), float32(1))

	cube, err := Cube(d)
	require.NoError(t, err)
	_, err = s.AddInstance(cube, 0, mgl32.Ident4())
	assert.Error(t, err, "mesh not added")
	s.AddMesh(cube)

	i, err := s.AddInstance(cube, 3, mgl32.Ident4())
	require.NoError(t, err)
	assert.True(t, s.TopologyChanged())
	require.NoError(t, s.RebuildTLAS())
	assert.False(t, s.TopologyChanged())
	assert.Nil(t, s.TLAS(), "no TLAS without ray tracing")
	assert.Nil(t, s.InstanceBuffer())

	moved := mgl32.Translate3D(1, 0, 0)
	s.SetTransform(i, moved)
	instances := s.Instances()
	require.Len(t, instances, 1)
	assert.Equal(t, int32(3), instances[0].MaterialIndex)
	assert.Equal(t, uint32(36), instances[0].IndexCount)
	assert.Equal(t, moved, instances[0].Transform)
	assert.Equal(t, mgl32.Ident4(), instances[0].PrevTransform)

	s.EndFrame()
	assert.Equal(t, moved, s.Instances()[0].PrevTransform)
}

func TestSceneRebuildTLAS(t *testing.T) {
	d := headless.New(headless.Config{RayTracing: true})
	binder := &recordingBinder{}
	s := New(d, NewCamera(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, 60, 1), binder)

	cube, err := Cube(d)
	require.NoError(t, err)
	plane, err := Plane(d, 10)
	require.NoError(t, err)
	s.AddMesh(cube)
	s.AddMesh(plane)
	_, err = s.AddInstance(plane, 0, mgl32.Ident4())
	require.NoError(t, err)
	_, err = s.AddInstance(cube, 1, mgl32.Translate3D(0, 1, 0))
	require.NoError(t, err)

	require.NoError(t, s.RebuildTLAS())
	require.NotNil(t, s.TLAS())
	assert.Equal(t, "scene_tlas", s.TLAS().Name())
	assert.True(t, s.TLAS().(*headless.AccelerationStructure).TopLevel())
	assert.NotNil(t, cube.BLAS())
	assert.Equal(t, []rendergraph.AccelerationStructure{s.TLAS()}, binder.bound)

	records := readBack[RTInstance](t, s.InstanceBuffer())
	require.Len(t, records, 2)
	assert.Equal(t, plane.Vertices.DeviceAddress(), records[0].VertexAddress)
	assert.Equal(t, cube.Indices.DeviceAddress(), records[1].IndexAddress)
	assert.Equal(t, int32(1), records[1].MaterialIndex)

	assert.Equal(t, [12]float32{1, 0, 0, 0, 0, 1, 0, 1, 0, 0, 1, 0}, rowMajor3x4(mgl32.Translate3D(0, 1, 0)))

	require.NoError(t, s.RebuildTLAS())
	assert.Equal(t, 4, d.Created("acceleration_structure"), "BLASes are built once")
	assert.Equal(t, 3, d.LiveCount("acceleration_structure"))
	assert.Equal(t, 1, d.Created("buffer")-d.LiveCount("buffer"), "the previous instance buffer is destroyed")
	assert.Len(t, binder.bound, 2)

	s.Destroy()
	assert.Zero(t, d.LiveCount("acceleration_structure"))
	assert.Zero(t, d.LiveCount("buffer"))
}
