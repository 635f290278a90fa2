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
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"goarrg.com/debug"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/internal/util"
)

// NoTexture marks an unused texture slot of a Material.
const NoTexture int32 = -1

// Material is the std430 record shaders index with DrawInstance.MaterialIndex.
type Material struct {
	Albedo            mgl32.Vec4
	Emission          mgl32.Vec4
	Roughness         float32
	Metallic          float32
	AlbedoTexture     int32
	NormalTexture     int32
	MetalRoughTexture int32
	_                 [3]int32
}

const MaterialSize = uint64(unsafe.Sizeof(Material{}))

// DefaultMaterial is a white dielectric without textures.
func DefaultMaterial() Material {
	return Material{
		Albedo:            mgl32.Vec4{1, 1, 1, 1},
		Roughness:         0.5,
		AlbedoTexture:     NoTexture,
		NormalTexture:     NoTexture,
		MetalRoughTexture: NoTexture,
	}
}

func (m *Manager) growMaterialBuffer(capacity int) error {
	buffer, err := m.device.NewBuffer("materials", rendergraph.BufferCreateInfo{
		Size:  uint64(capacity) * MaterialSize,
		Usage: rendergraph.BufferUsageStorageBuffer | rendergraph.BufferUsageTransferDst | rendergraph.BufferUsageShaderDeviceAddress,
	})
	if err != nil {
		return debug.ErrorWrapf(err, "Failed to create material buffer of %d materials", capacity)
	}
	for i, set := range m.globalSets {
		if err := set.Bind(BindingMaterials, 0, rendergraph.DescriptorBufferInfo{Buffer: buffer}); err != nil {
			buffer.Destroy()
			return debug.ErrorWrapf(err, "Failed to bind material buffer in global set %d", i)
		}
	}
	if m.materialBuffer != nil {
		m.queue.Push(m.materialBuffer)
	}
	m.materialBuffer = buffer
	m.materialsDirty = true
	logger.VPrintf("Material buffer holds %d materials", capacity)
	return nil
}

// CreateMaterial appends mat and returns its index, it reaches the GPU on the next SyncMaterialsToGPU.
func (m *Manager) CreateMaterial(mat Material) (int32, error) {
	for _, t := range []int32{mat.AlbedoTexture, mat.NormalTexture, mat.MetalRoughTexture} {
		if t != NoTexture {
			if _, ok := m.textures[t]; !ok {
				return -1, debug.Errorf("Material references unknown texture %d", t)
			}
		}
	}
	if uint64(len(m.materials)+1)*MaterialSize > m.materialBuffer.Size() {
		if err := m.growMaterialBuffer(2 * len(m.materials)); err != nil {
			return -1, err
		}
	}
	m.materials = append(m.materials, mat)
	m.materialsDirty = true
	return int32(len(m.materials) - 1), nil
}

func (m *Manager) UpdateMaterial(index int32, mat Material) error {
	if index < 0 || int(index) >= len(m.materials) {
		return debug.Errorf("Material %d out of range [0, %d)", index, len(m.materials))
	}
	m.materials[index] = mat
	m.materialsDirty = true
	return nil
}

func (m *Manager) Material(index int32) (Material, bool) {
	if index < 0 || int(index) >= len(m.materials) {
		return Material{}, false
	}
	return m.materials[index], true
}

func (m *Manager) NumMaterials() int {
	return len(m.materials)
}

/*
SyncMaterialsToGPU uploads the material array if it changed. The material buffer is shared by every frame
in flight, so it waits for the device first and must be called outside of BeginFrame/Execute.
*/
func (m *Manager) SyncMaterialsToGPU() error {
	if !m.materialsDirty || len(m.materials) == 0 {
		return nil
	}
	m.device.WaitIdle()
	if err := m.device.Upload(m.materialBuffer, 0, util.BytesSlice(m.materials)); err != nil {
		return debug.ErrorWrapf(err, "Failed to upload %d materials", len(m.materials))
	}
	m.materialsDirty = false
	logger.VPrintf("Synced %d materials", len(m.materials))
	return nil
}
