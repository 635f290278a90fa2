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

package headless

import (
	"fmt"

	"goarrg.com/debug"
	"goarrg.com/gmath"
	"goarrg.com/rhi/rendergraph"
)

/*
Swapchain hands out its images round robin. ForceOutOfDate simulates a window resize: every acquire and
present fails with rendergraph.ErrorSwapchainStale until Recreate picks up the new extent.
*/
type Swapchain struct {
	device        *Device
	format        rendergraph.Format
	extent        rendergraph.Extent2i32
	surfaceExtent rendergraph.Extent2i32
	images        []*Image
	next          int
	outOfDate     bool

	acquires    int
	presents    int
	releases    int
	recreations int
}

var _ rendergraph.Swapchain = (*Swapchain)(nil)

func newSwapchain(d *Device, format rendergraph.Format, extent rendergraph.Extent2i32, numImages int) *Swapchain {
	s := &Swapchain{device: d, format: format, surfaceExtent: extent, images: make([]*Image, numImages)}
	s.create()
	return s
}

func (s *Swapchain) create() {
	s.extent = s.surfaceExtent
	for i := range s.images {
		s.images[i] = &Image{
			object: s.device.newObject("swapchain_image", fmt.Sprintf("swapchain_%d", i)),
			desc: rendergraph.ImageDescription{
				Extent:  gmath.Extent3i32{X: s.extent.X, Y: s.extent.Y, Z: 1},
				Format:  s.format,
				Usage:   rendergraph.ImageUsageTransferDst | rendergraph.ImageUsageColorAttachment,
				Samples: 1,
			},
		}
	}
	s.next = 0
}

func (s *Swapchain) destroy() {
	for _, img := range s.images {
		if img != nil {
			img.Destroy()
		}
	}
}

func (s *Swapchain) Format() rendergraph.Format {
	return s.format
}

func (s *Swapchain) Extent() rendergraph.Extent2i32 {
	return s.extent
}

func (s *Swapchain) AcquireNextImage(sync rendergraph.FrameSync) (rendergraph.Image, error) {
	fs, ok := sync.(*FrameSync)
	if !ok {
		return nil, debug.Errorf("Swapchain: foreign FrameSync %T", sync)
	}
	if s.outOfDate {
		return nil, debug.ErrorWrapf(rendergraph.ErrorSwapchainStale{}, "Acquire on out of date swapchain")
	}
	if s.extent.X == 0 || s.extent.Y == 0 {
		return nil, debug.ErrorWrapf(rendergraph.ErrorSwapchainStale{}, "Acquire on zero sized swapchain")
	}
	if fs.acquired {
		abort("Acquire on %q while its previous image was neither presented nor released", fs.name)
	}
	img := s.images[s.next]
	s.next = (s.next + 1) % len(s.images)
	s.acquires++
	fs.acquired = true
	return img, nil
}

func (s *Swapchain) Present(sync rendergraph.FrameSync) error {
	fs, ok := sync.(*FrameSync)
	if !ok {
		return debug.Errorf("Swapchain: foreign FrameSync %T", sync)
	}
	if !fs.acquired {
		abort("Present on %q without an acquired image", fs.name)
	}
	fs.acquired = false
	s.presents++
	if s.outOfDate {
		return debug.ErrorWrapf(rendergraph.ErrorSwapchainStale{}, "Present on out of date swapchain")
	}
	return nil
}

// release hands back an image acquired with fs that will not be presented and consumes its semaphore.
func (s *Swapchain) release(fs *FrameSync) {
	fs.acquired = false
	s.releases++
}

func (s *Swapchain) Recreate() error {
	s.destroy()
	s.outOfDate = false
	s.recreations++
	s.create()
	logger.IPrintf("Recreated swapchain %dx%d", s.extent.X, s.extent.Y)
	return nil
}

// ForceOutOfDate resizes the surface, the swapchain reports stale until recreated.
func (s *Swapchain) ForceOutOfDate(width, height int32) {
	s.surfaceExtent = rendergraph.Extent2i32{X: width, Y: height}
	s.outOfDate = true
}

func (s *Swapchain) Acquires() int {
	return s.acquires
}

func (s *Swapchain) Presents() int {
	return s.presents
}

// Releases returns the number of acquired images handed back by a discarded frame.
func (s *Swapchain) Releases() int {
	return s.releases
}

func (s *Swapchain) Recreations() int {
	return s.recreations
}
