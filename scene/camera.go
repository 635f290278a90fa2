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
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"goarrg.com/rhi/rendergraph"
)

// vulkanClip maps OpenGL clip space to Vulkan's, flipping Y and moving depth to [0, 1].
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Camera is a perspective look-at camera. It remembers the matrices of the previous frame for motion vectors.
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	// FovY is the vertical field of view in degrees.
	FovY   float32
	Aspect float32
	Near   float32
	Far    float32

	jitter         mgl32.Vec2
	prevView       mgl32.Mat4
	prevProjection mgl32.Mat4
	hasPrev        bool
}

func NewCamera(position, target mgl32.Vec3, fovY, aspect float32) *Camera {
	return &Camera{
		Position: position,
		Target:   target,
		Up:       mgl32.Vec3{0, 1, 0},
		FovY:     fovY,
		Aspect:   aspect,
		Near:     0.1,
		Far:      1000,
	}
}

func (c *Camera) SetAspect(width, height int32) {
	if width > 0 && height > 0 {
		c.Aspect = float32(width) / float32(height)
	}
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, c.Up)
}

func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	p := vulkanClip.Mul4(mgl32.Perspective(mgl32.DegToRad(c.FovY), c.Aspect, c.Near, c.Far))
	p[8] += c.jitter.X()
	p[9] += c.jitter.Y()
	return p
}

// halton returns element i of the base b Halton sequence in [0, 1).
func halton(i, b int) float32 {
	f, r := 1.0, 0.0
	for ; i > 0; i /= b {
		f /= float64(b)
		r += f * float64(i%b)
	}
	return float32(r)
}

/*
SetJitter offsets the projection by a sub pixel Halton(2, 3) sample for frame, cycling every 16 frames.
Passing a zero extent disables jitter.
*/
func (c *Camera) SetJitter(frame uint64, width, height int32) {
	if width <= 0 || height <= 0 {
		c.jitter = mgl32.Vec2{}
		return
	}
	i := int(frame%16) + 1
	c.jitter = mgl32.Vec2{
		(2*halton(i, 2) - 1) / float32(width),
		(2*halton(i, 3) - 1) / float32(height),
	}
}

func (c *Camera) Jitter() mgl32.Vec2 {
	return c.jitter
}

// Orbit rotates the camera around its target by yaw and pitch in radians, pitch is clamped short of the poles.
func (c *Camera) Orbit(yaw, pitch float32) {
	offset := c.Position.Sub(c.Target)
	radius := offset.Len()
	if radius == 0 {
		return
	}
	theta := float32(math.Atan2(float64(offset.X()), float64(offset.Z()))) + yaw
	phi := float32(math.Asin(float64(offset.Y()/radius))) + pitch
	limit := mgl32.DegToRad(89)
	phi = mgl32.Clamp(phi, -limit, limit)

	cosPhi := float32(math.Cos(float64(phi)))
	c.Position = c.Target.Add(mgl32.Vec3{
		radius * cosPhi * float32(math.Sin(float64(theta))),
		radius * float32(math.Sin(float64(phi))),
		radius * cosPhi * float32(math.Cos(float64(theta))),
	})
}

// SceneView returns the current and previous matrices, on the first frame the previous ones equal the current.
func (c *Camera) SceneView() rendergraph.SceneView {
	view, projection := c.ViewMatrix(), c.ProjectionMatrix()
	prevView, prevProjection := c.prevView, c.prevProjection
	if !c.hasPrev {
		prevView, prevProjection = view, projection
	}
	return rendergraph.SceneView{
		View:           view,
		Projection:     projection,
		PrevView:       prevView,
		PrevProjection: prevProjection,
		CameraPosition: c.Position,
		Near:           c.Near,
		Far:            c.Far,
	}
}

// EndFrame records the current matrices as the previous ones of the next frame.
func (c *Camera) EndFrame() {
	c.prevView = c.ViewMatrix()
	c.prevProjection = c.ProjectionMatrix()
	c.hasPrev = true
}

// ResetHistory forgets the previous matrices, for camera cuts.
func (c *Camera) ResetHistory() {
	c.hasPrev = false
}
