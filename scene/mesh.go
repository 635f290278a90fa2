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
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"goarrg.com/debug"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/internal/util"
)

// Vertex is the interleaved vertex layout of every Mesh.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

const VertexSize = uint32(unsafe.Sizeof(Vertex{}))

// VertexAttributes describes Vertex for graphics pipelines.
var VertexAttributes = []rendergraph.VertexAttribute{
	{Location: 0, Format: rendergraph.FORMAT_R32G32B32_SFLOAT, Offset: uint32(unsafe.Offsetof(Vertex{}.Position))},
	{Location: 1, Format: rendergraph.FORMAT_R32G32B32_SFLOAT, Offset: uint32(unsafe.Offsetof(Vertex{}.Normal))},
	{Location: 2, Format: rendergraph.FORMAT_R32G32_SFLOAT, Offset: uint32(unsafe.Offsetof(Vertex{}.UV))},
}

// RTInstance is the std430 record closest hit shaders fetch their geometry through, indexed by the instance's custom index.
type RTInstance struct {
	VertexAddress uint64
	IndexAddress  uint64
	MaterialIndex int32
	_             int32
}

const RTInstanceSize = uint64(unsafe.Sizeof(RTInstance{}))

const geometryUsage = rendergraph.BufferUsageTransferDst | rendergraph.BufferUsageStorageBuffer |
	rendergraph.BufferUsageShaderDeviceAddress | rendergraph.BufferUsageAccelerationStructureInput

// Mesh is device local indexed geometry with 32 bit indices.
type Mesh struct {
	Name        string
	Vertices    rendergraph.Buffer
	Indices     rendergraph.Buffer
	VertexCount uint32
	IndexCount  uint32

	blas rendergraph.AccelerationStructure
}

func NewMesh(device rendergraph.Device, name string, vertices []Vertex, indices []uint32) (*Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 || len(indices)%3 != 0 {
		return nil, debug.Errorf("Mesh %q: %d vertices and %d indices is not a triangle list", name, len(vertices), len(indices))
	}
	for _, i := range indices {
		if int(i) >= len(vertices) {
			return nil, debug.Errorf("Mesh %q: index %d out of range", name, i)
		}
	}

	vb, err := device.NewBuffer(name+"_vertices", rendergraph.BufferCreateInfo{
		Size:  uint64(len(vertices)) * uint64(VertexSize),
		Usage: geometryUsage | rendergraph.BufferUsageVertexBuffer,
	})
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to create vertex buffer of %q", name)
	}
	ib, err := device.NewBuffer(name+"_indices", rendergraph.BufferCreateInfo{
		Size:  uint64(len(indices)) * 4,
		Usage: geometryUsage | rendergraph.BufferUsageIndexBuffer,
	})
	if err != nil {
		vb.Destroy()
		return nil, debug.ErrorWrapf(err, "Failed to create index buffer of %q", name)
	}

	m := &Mesh{Name: name, Vertices: vb, Indices: ib, VertexCount: uint32(len(vertices)), IndexCount: uint32(len(indices))}
	if err := device.Upload(vb, 0, util.BytesSlice(vertices)); err != nil {
		m.Destroy()
		return nil, debug.ErrorWrapf(err, "Failed to upload vertices of %q", name)
	}
	if err := device.Upload(ib, 0, util.BytesSlice(indices)); err != nil {
		m.Destroy()
		return nil, debug.ErrorWrapf(err, "Failed to upload indices of %q", name)
	}
	return m, nil
}

func (m *Mesh) geometry() rendergraph.AccelerationStructureGeometry {
	return rendergraph.AccelerationStructureGeometry{
		VertexBuffer: m.Vertices,
		VertexStride: uint64(VertexSize),
		VertexCount:  m.VertexCount,
		VertexFormat: rendergraph.FORMAT_R32G32B32_SFLOAT,
		IndexBuffer:  m.Indices,
		IndexType:    rendergraph.IndexTypeUint32,
		IndexCount:   m.IndexCount,
		Opaque:       true,
	}
}

// BLAS returns the mesh's bottom level acceleration structure, nil until the first TLAS rebuild.
func (m *Mesh) BLAS() rendergraph.AccelerationStructure {
	return m.blas
}

// Destroy destroys the buffers and BLAS, the device must be idle.
func (m *Mesh) Destroy() {
	if m.blas != nil {
		m.blas.Destroy()
		m.blas = nil
	}
	if m.Vertices != nil {
		m.Vertices.Destroy()
		m.Vertices = nil
	}
	if m.Indices != nil {
		m.Indices.Destroy()
		m.Indices = nil
	}
}

// Cube creates a unit cube centered at the origin with per face normals and UVs.
func Cube(device rendergraph.Device) (*Mesh, error) {
	faces := []struct {
		normal, u, v mgl32.Vec3
	}{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}
	corners := [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	vertices := make([]Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for _, c := range corners {
			pos := f.normal.Mul(0.5).Add(f.u.Mul(c.X() - 0.5)).Add(f.v.Mul(c.Y() - 0.5))
			vertices = append(vertices, Vertex{Position: pos, Normal: f.normal, UV: c})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return NewMesh(device, "cube", vertices, indices)
}

// Plane creates a size by size quad in the XZ plane facing +Y.
func Plane(device rendergraph.Device, size float32) (*Mesh, error) {
	h := size / 2
	up := mgl32.Vec3{0, 1, 0}
	vertices := []Vertex{
		{Position: mgl32.Vec3{-h, 0, h}, Normal: up, UV: mgl32.Vec2{0, 0}},
		{Position: mgl32.Vec3{h, 0, h}, Normal: up, UV: mgl32.Vec2{1, 0}},
		{Position: mgl32.Vec3{h, 0, -h}, Normal: up, UV: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec3{-h, 0, -h}, Normal: up, UV: mgl32.Vec2{0, 1}},
	}
	return NewMesh(device, "plane", vertices, []uint32{0, 1, 2, 0, 2, 3})
}
