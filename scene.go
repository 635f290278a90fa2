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

package rendergraph

import (
	"github.com/go-gl/mathgl/mgl32"
)

/*
ResourceManager is the part of the resource manager the graph depends on. The global set (set 0) and the
transient pool are per frame in flight, frame is always in [0, MaxFramesInFlight).
*/
type ResourceManager interface {
	DefaultSampler() Sampler
	GlobalSetLayout() DescriptorSetLayout
	GlobalSet(frame int) DescriptorSet
	TransientPool(frame int) DescriptorPool
	ResetTransientDescriptorPool(frame int)
	// MaterialBuffer is registered with the graph as the external buffer MaterialBufferName.
	MaterialBuffer() Buffer
}

type SceneView struct {
	View           mgl32.Mat4
	Projection     mgl32.Mat4
	PrevView       mgl32.Mat4
	PrevProjection mgl32.Mat4
	CameraPosition mgl32.Vec3
	Near, Far      float32
}

type DirectionalLight struct {
	Direction mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
	// ViewProjection transforms world space into the light's shadow map space.
	ViewProjection mgl32.Mat4
}

type DrawInstance struct {
	VertexBuffer  Buffer
	IndexBuffer   Buffer
	IndexType     IndexType
	FirstIndex    uint32
	IndexCount    uint32
	VertexOffset  int32
	MaterialIndex int32
	Transform     mgl32.Mat4
	PrevTransform mgl32.Mat4
}

type SceneProvider interface {
	View() SceneView
	Light() DirectionalLight
	Instances() []DrawInstance
	// TLAS returns nil when the scene has no acceleration structure.
	TLAS() AccelerationStructure
	// InstanceBuffer holds one RT instance record per instance, nil without a TLAS.
	InstanceBuffer() Buffer
	SkyboxTexture() int32
}
