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
Package scene is a minimal scene provider: a camera, one directional light and a flat list of mesh
instances. It keeps the previous transform of every instance for motion vectors and owns the acceleration
structures ray traced paths read through rendergraph.SceneTLAS.
*/
package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"goarrg.com/debug"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/internal/util"
)

var logger = debug.NewLogger("rendergraph", "scene")

// TLASBinder receives the rebuilt TLAS, resmgr.Manager binds it into the global descriptor sets.
type TLASBinder interface {
	SetTLAS(tlas rendergraph.AccelerationStructure) error
}

type instance struct {
	mesh          *Mesh
	material      int32
	transform     mgl32.Mat4
	prevTransform mgl32.Mat4
}

type Scene struct {
	device rendergraph.Device
	binder TLASBinder

	camera    *Camera
	light     rendergraph.DirectionalLight
	radius    float32
	skybox    int32
	meshes    []*Mesh
	instances []*instance

	tlas           rendergraph.AccelerationStructure
	instanceBuffer rendergraph.Buffer
	topologyDirty  bool
}

var _ rendergraph.SceneProvider = (*Scene)(nil)

// New creates an empty scene, binder may be nil when nothing samples the TLAS through a descriptor set.
func New(device rendergraph.Device, camera *Camera, binder TLASBinder) *Scene {
	s := &Scene{
		device: device,
		binder: binder,
		camera: camera,
		radius: 10,
		skybox: -1,
	}
	s.SetLight(mgl32.Vec3{-0.4, -1, -0.3}, mgl32.Vec3{1, 1, 1}, 3)
	return s
}

func (s *Scene) Camera() *Camera {
	return s.camera
}

// AddMesh hands ownership of m to the scene.
func (s *Scene) AddMesh(m *Mesh) {
	s.meshes = append(s.meshes, m)
	s.topologyDirty = true
}

// AddInstance places m, which must have been added with AddMesh, and returns the instance index.
func (s *Scene) AddInstance(m *Mesh, material int32, transform mgl32.Mat4) (int, error) {
	found := false
	for _, o := range s.meshes {
		found = found || o == m
	}
	if !found {
		return -1, debug.Errorf("Mesh %q is not part of the scene", m.Name)
	}
	s.instances = append(s.instances, &instance{mesh: m, material: material, transform: transform, prevTransform: transform})
	s.topologyDirty = true
	return len(s.instances) - 1, nil
}

// SetTransform moves an instance. The TLAS keeps the old transform until the next RebuildTLAS.
func (s *Scene) SetTransform(i int, transform mgl32.Mat4) {
	s.instances[i].transform = transform
}

func (s *Scene) NumInstances() int {
	return len(s.instances)
}

// SetBounds sets the radius around the origin the light's shadow projection covers.
func (s *Scene) SetBounds(radius float32) {
	s.radius = radius
	s.SetLight(s.light.Direction, s.light.Color, s.light.Intensity)
}

// SetLight sets the directional light and fits its orthographic shadow projection around the scene bounds.
func (s *Scene) SetLight(direction, color mgl32.Vec3, intensity float32) {
	direction = direction.Normalize()
	up := mgl32.Vec3{0, 1, 0}
	if d := direction.Dot(up); d > 0.99 || d < -0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	r := s.radius
	view := mgl32.LookAtV(direction.Mul(-2*r), mgl32.Vec3{}, up)
	projection := vulkanClip.Mul4(mgl32.Ortho(-r, r, -r, r, 0.01, 4*r))
	s.light = rendergraph.DirectionalLight{
		Direction:      direction,
		Color:          color,
		Intensity:      intensity,
		ViewProjection: projection.Mul4(view),
	}
}

func (s *Scene) SetSkybox(texture int32) {
	s.skybox = texture
}

func (s *Scene) View() rendergraph.SceneView {
	return s.camera.SceneView()
}

func (s *Scene) Light() rendergraph.DirectionalLight {
	return s.light
}

func (s *Scene) Instances() []rendergraph.DrawInstance {
	ret := make([]rendergraph.DrawInstance, 0, len(s.instances))
	for _, inst := range s.instances {
		ret = append(ret, rendergraph.DrawInstance{
			VertexBuffer:  inst.mesh.Vertices,
			IndexBuffer:   inst.mesh.Indices,
			IndexType:     rendergraph.IndexTypeUint32,
			IndexCount:    inst.mesh.IndexCount,
			MaterialIndex: inst.material,
			Transform:     inst.transform,
			PrevTransform: inst.prevTransform,
		})
	}
	return ret
}

func (s *Scene) TLAS() rendergraph.AccelerationStructure {
	return s.tlas
}

func (s *Scene) InstanceBuffer() rendergraph.Buffer {
	return s.instanceBuffer
}

func (s *Scene) SkyboxTexture() int32 {
	return s.skybox
}

// TopologyChanged reports whether meshes or instances were added since the last RebuildTLAS.
func (s *Scene) TopologyChanged() bool {
	return s.topologyDirty
}

// EndFrame makes the current transforms and camera the previous ones of the next frame.
func (s *Scene) EndFrame() {
	for _, inst := range s.instances {
		inst.prevTransform = inst.transform
	}
	s.camera.EndFrame()
}

// rowMajor3x4 converts m into the layout of VkTransformMatrixKHR.
func rowMajor3x4(m mgl32.Mat4) [12]float32 {
	var ret [12]float32
	for r := range 3 {
		for c := range 4 {
			ret[r*4+c] = m.At(r, c)
		}
	}
	return ret
}

/*
RebuildTLAS waits for the device, builds missing BLASes, then replaces the TLAS and the RT instance buffer.
It is meant for topology changes and must not be called between BeginFrame and Execute. Scenes on devices
without ray tracing keep a nil TLAS.
*/
func (s *Scene) RebuildTLAS() error {
	if !s.device.Properties().RayTracing.Supported {
		s.topologyDirty = false
		return nil
	}
	s.device.WaitIdle()

	for _, m := range s.meshes {
		if m.blas != nil {
			continue
		}
		blas, err := s.device.NewAccelerationStructure(m.Name+"_blas", rendergraph.AccelerationStructureCreateInfo{
			Geometries: []rendergraph.AccelerationStructureGeometry{m.geometry()},
		})
		if err != nil {
			return debug.ErrorWrapf(err, "Failed to build BLAS of %q", m.Name)
		}
		m.blas = blas
	}

	s.destroyTLAS()
	if len(s.instances) == 0 {
		s.topologyDirty = false
		return nil
	}

	instances := make([]rendergraph.AccelerationStructureInstance, 0, len(s.instances))
	records := make([]RTInstance, 0, len(s.instances))
	for i, inst := range s.instances {
		instances = append(instances, rendergraph.AccelerationStructureInstance{
			BLAS:        inst.mesh.blas,
			Transform:   rowMajor3x4(inst.transform),
			CustomIndex: uint32(i),
			Mask:        0xFF,
		})
		records = append(records, RTInstance{
			VertexAddress: inst.mesh.Vertices.DeviceAddress(),
			IndexAddress:  inst.mesh.Indices.DeviceAddress(),
			MaterialIndex: inst.material,
		})
	}

	buffer, err := s.device.NewBuffer("rt_instances", rendergraph.BufferCreateInfo{
		Size:  uint64(len(records)) * RTInstanceSize,
		Usage: rendergraph.BufferUsageStorageBuffer | rendergraph.BufferUsageTransferDst,
	})
	if err != nil {
		return debug.ErrorWrapf(err, "Failed to create RT instance buffer")
	}
	if err := s.device.Upload(buffer, 0, util.BytesSlice(records)); err != nil {
		buffer.Destroy()
		return debug.ErrorWrapf(err, "Failed to upload %d RT instances", len(records))
	}
	tlas, err := s.device.NewAccelerationStructure("scene_tlas", rendergraph.AccelerationStructureCreateInfo{Instances: instances})
	if err != nil {
		buffer.Destroy()
		return debug.ErrorWrapf(err, "Failed to build TLAS")
	}
	s.tlas, s.instanceBuffer = tlas, buffer

	if s.binder != nil {
		if err := s.binder.SetTLAS(tlas); err != nil {
			return err
		}
	}
	s.topologyDirty = false
	logger.IPrintf("Rebuilt TLAS: %s", s)
	return nil
}

func (s *Scene) destroyTLAS() {
	if s.tlas != nil {
		s.tlas.Destroy()
		s.tlas = nil
	}
	if s.instanceBuffer != nil {
		s.instanceBuffer.Destroy()
		s.instanceBuffer = nil
	}
}

func (s *Scene) String() string {
	return fmt.Sprintf("%d meshes, %d instances", len(s.meshes), len(s.instances))
}

// Destroy destroys every mesh and acceleration structure, the device must be idle.
func (s *Scene) Destroy() {
	s.destroyTLAS()
	for _, m := range s.meshes {
		m.Destroy()
	}
	s.meshes = nil
	s.instances = nil
}
