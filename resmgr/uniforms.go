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

type DisplayMode uint32

const (
	DisplayModeFinal DisplayMode = iota
	DisplayModeAlbedo
	DisplayModeNormal
	DisplayModeMotion
	DisplayModeDepth
	DisplayModeShadowAO
)

// GlobalUniforms is the std140 block at set 0 binding 0. Every vec3 is followed by a scalar so no field
// straddles a 16 byte boundary.
type GlobalUniforms struct {
	View              mgl32.Mat4
	Projection        mgl32.Mat4
	InvView           mgl32.Mat4
	InvProjection     mgl32.Mat4
	InvViewProjection mgl32.Mat4
	PrevView          mgl32.Mat4
	PrevProjection    mgl32.Mat4

	LightDirection      mgl32.Vec4
	LightColor          mgl32.Vec3
	LightIntensity      float32
	LightViewProjection mgl32.Mat4

	DisplaySize    mgl32.Vec2
	InvDisplaySize mgl32.Vec2
	FrameIndex     uint32
	FrameCount     uint32
	DisplayMode    DisplayMode
	_              uint32
	CameraPosition mgl32.Vec3
	_              float32
}

const GlobalUniformsSize = uint64(unsafe.Sizeof(GlobalUniforms{}))

// NewGlobalUniforms fills the block from the scene, frameCount is the number of frames since history was reset.
func NewGlobalUniforms(view rendergraph.SceneView, light rendergraph.DirectionalLight, width, height int32, frameIndex, frameCount uint32, mode DisplayMode) GlobalUniforms {
	viewProjection := view.Projection.Mul4(view.View)
	return GlobalUniforms{
		View:              view.View,
		Projection:        view.Projection,
		InvView:           view.View.Inv(),
		InvProjection:     view.Projection.Inv(),
		InvViewProjection: viewProjection.Inv(),
		PrevView:          view.PrevView,
		PrevProjection:    view.PrevProjection,

		LightDirection:      light.Direction.Normalize().Vec4(0),
		LightColor:          light.Color,
		LightIntensity:      light.Intensity,
		LightViewProjection: light.ViewProjection,

		DisplaySize:    mgl32.Vec2{float32(width), float32(height)},
		InvDisplaySize: mgl32.Vec2{1 / float32(max(width, 1)), 1 / float32(max(height, 1))},
		FrameIndex:     frameIndex,
		FrameCount:     frameCount,
		DisplayMode:    mode,
		CameraPosition: view.CameraPosition,
	}
}

// UpdateGlobalUniforms writes u into the uniform buffer of frame, the frame's fence must have signaled.
func (m *Manager) UpdateGlobalUniforms(frame int, u GlobalUniforms) error {
	m.checkFrame(frame)
	if _, err := util.HostWrite(m.uniforms[frame], 0, u); err != nil {
		return debug.ErrorWrapf(err, "Failed to write global uniforms of frame %d", frame)
	}
	return nil
}
