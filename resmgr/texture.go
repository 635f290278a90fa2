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
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"goarrg.com/debug"
	"goarrg.com/gmath"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/internal/util"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

type decodedTexture struct {
	name   string
	format rendergraph.Format
	width  int
	height int
	data   []byte
}

func (m *Manager) decodeTexture(path string) (*decodedTexture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to open texture")
	}
	defer f.Close()

	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".hdr") {
		img, err := decodeHDR(f)
		if err != nil {
			return nil, debug.ErrorWrapf(err, "Failed to decode %q", path)
		}
		return &decodedTexture{
			name: name, format: rendergraph.FORMAT_R32G32B32A32_SFLOAT,
			width: img.width, height: img.height, data: util.BytesSlice(img.pix),
		}, nil
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to decode %q", path)
	}
	return m.convertImage(name, img), nil
}

// convertImage converts img to RGBA8, scaling it down if it does not fit the device's image limit.
func (m *Manager) convertImage(name string, img image.Image) *decodedTexture {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if limit := int(m.device.Properties().Limits.MaxImageDimension2D); limit > 0 && (w > limit || h > limit) {
		scale := float64(limit) / float64(max(w, h))
		w = max(1, int(float64(w)*scale))
		h = max(1, int(float64(h)*scale))
		logger.WPrintf("Texture %q is %dx%d, scaling down to %dx%d", name, bounds.Dx(), bounds.Dy(), w, h)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), img, bounds, draw.Src, nil)
	}
	return &decodedTexture{name: name, format: rendergraph.FORMAT_R8G8B8A8_UNORM, width: w, height: h, data: rgba.Pix}
}

func (m *Manager) publishTexture(t *decodedTexture) (int32, error) {
	img, err := m.device.NewImage(t.name, rendergraph.ImageDescription{
		Extent:  gmath.Extent3i32{X: int32(t.width), Y: int32(t.height), Z: 1},
		Format:  t.format,
		Usage:   rendergraph.ImageUsageSampled | rendergraph.ImageUsageTransferDst,
		Samples: 1,
	})
	if err != nil {
		return -1, debug.ErrorWrapf(err, "Failed to create texture %q", t.name)
	}
	if err := m.device.UploadImage(img, t.data); err != nil {
		img.Destroy()
		return -1, debug.ErrorWrapf(err, "Failed to upload texture %q", t.name)
	}
	i, err := m.bindless.Push(rendergraph.DescriptorCombinedImageSamplerInfo{
		Sampler: m.sampler,
		Image:   img,
		Layout:  rendergraph.ImageLayoutShaderReadOnly,
	})
	if err != nil {
		img.Destroy()
		return -1, debug.ErrorWrapf(err, "Failed to add texture %q to the bindless array", t.name)
	}
	m.textures[int32(i)] = texture{name: t.name, image: img}
	logger.VPrintf("Loaded texture %q %dx%d %s at index %d", t.name, t.width, t.height, t.format, i)
	return int32(i), nil
}

/*
LoadTexture decodes path and returns its bindless index. PNG, JPEG, GIF, BMP, TIFF and WebP are loaded as
R8G8B8A8_UNORM, Radiance .hdr files as R32G32B32A32_SFLOAT.
*/
func (m *Manager) LoadTexture(path string) (int32, error) {
	t, err := m.decodeTexture(path)
	if err != nil {
		return -1, err
	}
	return m.publishTexture(t)
}

// LoadHDRTexture loads a Radiance .hdr environment map, used for skyboxes.
func (m *Manager) LoadHDRTexture(path string) (int32, error) {
	if !strings.EqualFold(filepath.Ext(path), ".hdr") {
		return -1, debug.Errorf("%q is not a Radiance .hdr file", path)
	}
	return m.LoadTexture(path)
}

// LoadTextureFromImage uploads an already decoded image.
func (m *Manager) LoadTextureFromImage(name string, img image.Image) (int32, error) {
	return m.publishTexture(m.convertImage(name, img))
}

/*
LoadTextures decodes every path concurrently and then uploads them in order, the returned indices match
paths. Nothing is uploaded if any decode fails.
*/
func (m *Manager) LoadTextures(ctx context.Context, paths []string) ([]int32, error) {
	decoded := make([]*decodedTexture, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := m.decodeTexture(path)
			if err != nil {
				return err
			}
			decoded[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	indices := make([]int32, 0, len(paths))
	for _, t := range decoded {
		i, err := m.publishTexture(t)
		if err != nil {
			for _, published := range indices {
				m.ReleaseTexture(published)
			}
			return nil, err
		}
		indices = append(indices, i)
	}
	return indices, nil
}

/*
ReleaseTexture removes the texture from the bindless array. The image is destroyed and its index reused
once every frame in flight that may still sample it has completed.
*/
func (m *Manager) ReleaseTexture(index int32) error {
	t, ok := m.textures[index]
	if !ok {
		return debug.Errorf("Unknown texture %d", index)
	}
	delete(m.textures, index)
	m.bindless.Pop(m.queue, t.image)
	m.queue.Push(t.image)
	logger.VPrintf("Released texture %q at index %d", t.name, index)
	return nil
}

func (m *Manager) Texture(index int32) (rendergraph.Image, bool) {
	t, ok := m.textures[index]
	return t.image, ok
}

func (m *Manager) NumTextures() int {
	return len(m.textures)
}
