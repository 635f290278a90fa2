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
Package resmgr is the resource manager render paths run against. It owns the bindless texture array, the
material buffer, the per frame global uniforms and the descriptor pools, and frees through the same
DeferredQueue as the graph.

Set 0, the global set, is laid out as:

	binding 0: GlobalUniforms uniform buffer
	binding 1: Material storage buffer
	binding 2: bindless combined image sampler array
	binding 3: scene TLAS, only on devices with ray tracing
*/
package resmgr

import (
	"fmt"

	"goarrg.com/debug"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/managed"
)

var logger = debug.NewLogger("rendergraph", "resmgr")

const (
	BindingGlobalUniforms = 0
	BindingMaterials      = 1
	BindingTextures       = 2
	BindingTLAS           = 3
)

const DefaultMaxMaterials = 1024

type texture struct {
	name  string
	image rendergraph.Image
}

type Manager struct {
	device rendergraph.Device
	queue  *rendergraph.DeferredQueue
	config rendergraph.Config

	sampler    rendergraph.Sampler
	layout     rendergraph.DescriptorSetLayout
	persistent rendergraph.DescriptorPool
	globalSets []rendergraph.DescriptorSet
	transient  []rendergraph.DescriptorPool
	uniforms   []rendergraph.Buffer

	bindless *managed.DescriptorArrayCombinedImageSampler
	textures map[int32]texture

	materials      []Material
	materialBuffer rendergraph.Buffer
	materialsDirty bool

	rayTracing bool
	destroyers []rendergraph.Destroyer
}

var _ rendergraph.ResourceManager = (*Manager)(nil)

// New creates the manager, queue must be the DeferredQueue later handed to the graph.
func New(device rendergraph.Device, queue *rendergraph.DeferredQueue, config rendergraph.Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if queue.FramesInFlight() != config.MaxFramesInFlight {
		return nil, debug.ErrorWrapf(rendergraph.ErrorConfiguration{}, "DeferredQueue is sized to %d frames in flight, config wants %d",
			queue.FramesInFlight(), config.MaxFramesInFlight)
	}

	m := &Manager{
		device:     device,
		queue:      queue,
		config:     config,
		textures:   map[int32]texture{},
		rayTracing: device.Properties().RayTracing.Supported,
	}
	if err := m.init(); err != nil {
		m.Destroy()
		return nil, err
	}
	logger.IPrintf("Created resource manager: %d frames, %d bindless textures, ray tracing %t",
		config.MaxFramesInFlight, config.MaxBindlessTextures, m.rayTracing)
	return m, nil
}

func (m *Manager) track(d rendergraph.Destroyer) {
	m.destroyers = append(m.destroyers, d)
}

func (m *Manager) init() error {
	var err error
	m.sampler, err = m.device.NewSampler("default_sampler", rendergraph.SamplerCreateInfo{
		MagFilter:  rendergraph.SamplerFilterLinear,
		MinFilter:  rendergraph.SamplerFilterLinear,
		Anisotropy: 8,
	})
	if err != nil {
		return debug.ErrorWrapf(err, "Failed to create default sampler")
	}
	m.track(m.sampler)

	bindings := []rendergraph.DescriptorSetLayoutBinding{
		{
			Binding:         BindingGlobalUniforms,
			DescriptorType:  rendergraph.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			ShaderStage:     rendergraph.ShaderStageGraphics | rendergraph.ShaderStageCompute | rendergraph.ShaderStageRayTracing,
		},
		{
			Binding:         BindingMaterials,
			DescriptorType:  rendergraph.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			ShaderStage:     rendergraph.ShaderStageFragment | rendergraph.ShaderStageCompute | rendergraph.ShaderStageRayTracing,
		},
		{
			Binding:         BindingTextures,
			DescriptorType:  rendergraph.DescriptorTypeCombinedImageSampler,
			DescriptorCount: uint32(m.config.MaxBindlessTextures),
			ShaderStage:     rendergraph.ShaderStageFragment | rendergraph.ShaderStageCompute | rendergraph.ShaderStageRayTracing,
			PartiallyBound:  true,
		},
	}
	if m.rayTracing {
		bindings = append(bindings, rendergraph.DescriptorSetLayoutBinding{
			Binding:         BindingTLAS,
			DescriptorType:  rendergraph.DescriptorTypeAccelerationStructure,
			DescriptorCount: 1,
			ShaderStage:     rendergraph.ShaderStageCompute | rendergraph.ShaderStageRayTracing | rendergraph.ShaderStageFragment,
			PartiallyBound:  true,
		})
	}
	m.layout, err = m.device.NewDescriptorSetLayout("global_set_layout", bindings)
	if err != nil {
		return debug.ErrorWrapf(err, "Failed to create global set layout")
	}
	m.track(m.layout)

	m.persistent, err = m.device.NewDescriptorPool("persistent_pool", rendergraph.DescriptorPoolCreateInfo{BankSize: int32(m.config.MaxFramesInFlight)})
	if err != nil {
		return debug.ErrorWrapf(err, "Failed to create persistent descriptor pool")
	}
	m.track(m.persistent)

	if err := m.growMaterialBuffer(DefaultMaxMaterials); err != nil {
		return err
	}

	for i := range m.config.MaxFramesInFlight {
		set, err := m.persistent.Allocate(m.layout)
		if err != nil {
			return debug.ErrorWrapf(err, "Failed to allocate global set %d", i)
		}
		m.globalSets = append(m.globalSets, set)

		uniforms, err := m.device.NewBuffer(fmt.Sprintf("global_uniforms_%d", i), rendergraph.BufferCreateInfo{
			Size:        GlobalUniformsSize,
			Usage:       rendergraph.BufferUsageUniformBuffer,
			HostVisible: true,
		})
		if err != nil {
			return debug.ErrorWrapf(err, "Failed to create global uniforms %d", i)
		}
		m.track(uniforms)
		m.uniforms = append(m.uniforms, uniforms)
		if err := set.Bind(BindingGlobalUniforms, 0, rendergraph.DescriptorBufferInfo{Buffer: uniforms}); err != nil {
			return err
		}
		if err := set.Bind(BindingMaterials, 0, rendergraph.DescriptorBufferInfo{Buffer: m.materialBuffer}); err != nil {
			return err
		}

		pool, err := m.device.NewDescriptorPool(fmt.Sprintf("transient_pool_%d", i), rendergraph.DescriptorPoolCreateInfo{
			BankSize: m.config.DescriptorPoolBankSize,
		})
		if err != nil {
			return debug.ErrorWrapf(err, "Failed to create transient descriptor pool %d", i)
		}
		m.track(pool)
		m.transient = append(m.transient, pool)
	}

	m.bindless = managed.NewDescriptorArrayCombinedImageSampler(m.globalSets, BindingTextures)
	return nil
}

func (m *Manager) checkFrame(frame int) {
	if frame < 0 || frame >= len(m.globalSets) {
		panic(fmt.Sprintf("frame %d out of range [0, %d)", frame, len(m.globalSets)))
	}
}

func (m *Manager) DefaultSampler() rendergraph.Sampler {
	return m.sampler
}

func (m *Manager) GlobalSetLayout() rendergraph.DescriptorSetLayout {
	return m.layout
}

func (m *Manager) GlobalSet(frame int) rendergraph.DescriptorSet {
	m.checkFrame(frame)
	return m.globalSets[frame]
}

func (m *Manager) TransientPool(frame int) rendergraph.DescriptorPool {
	m.checkFrame(frame)
	return m.transient[frame]
}

// ResetTransientDescriptorPool frees every pass set allocated for frame, called once its fence signaled.
func (m *Manager) ResetTransientDescriptorPool(frame int) {
	m.checkFrame(frame)
	m.transient[frame].Reset()
}

func (m *Manager) MaterialBuffer() rendergraph.Buffer {
	return m.materialBuffer
}

func (m *Manager) Queue() *rendergraph.DeferredQueue {
	return m.queue
}

// SetTLAS binds the scene's top level acceleration structure in every global set. The caller must make
// sure no frame in flight still reads the previous one.
func (m *Manager) SetTLAS(tlas rendergraph.AccelerationStructure) error {
	if !m.rayTracing {
		return debug.Errorf("SetTLAS on a device without ray tracing")
	}
	for i, set := range m.globalSets {
		if err := set.Bind(BindingTLAS, 0, rendergraph.DescriptorAccelerationStructureInfo{AccelerationStructure: tlas}); err != nil {
			return debug.ErrorWrapf(err, "Failed to bind TLAS in global set %d", i)
		}
	}
	return nil
}

// Destroy destroys everything the manager owns, the device must be idle.
func (m *Manager) Destroy() {
	for _, t := range m.textures {
		t.image.Destroy()
	}
	clear(m.textures)
	if m.materialBuffer != nil {
		m.materialBuffer.Destroy()
		m.materialBuffer = nil
	}
	for i := len(m.destroyers) - 1; i >= 0; i-- {
		m.destroyers[i].Destroy()
	}
	m.destroyers = nil
}
