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

package managed

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goarrg.com/gmath"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/headless"
)

func newSets(t *testing.T, d *headless.Device, n int, count uint32) []rendergraph.DescriptorSet {
	t.Helper()
	layout, err := d.NewDescriptorSetLayout("bindless", []rendergraph.DescriptorSetLayoutBinding{
		{Binding: 2, DescriptorType: rendergraph.DescriptorTypeCombinedImageSampler, DescriptorCount: count, PartiallyBound: true},
	})
	require.NoError(t, err)
	pool, err := d.NewDescriptorPool("pool", rendergraph.DescriptorPoolCreateInfo{BankSize: int32(n)})
	require.NoError(t, err)

	sets := make([]rendergraph.DescriptorSet, 0, n)
	for range n {
		s, err := pool.Allocate(layout)
		require.NoError(t, err)
		sets = append(sets, s)
	}
	return sets
}

func newImages(t *testing.T, d *headless.Device, n int) []rendergraph.Image {
	t.Helper()
	images := make([]rendergraph.Image, 0, n)
	for i := range n {
		img, err := d.NewImage(fmt.Sprintf("texture_%d", i), rendergraph.ImageDescription{
			Extent:  gmath.Extent3i32{X: 4, Y: 4, Z: 1},
			Format:  rendergraph.FORMAT_R8G8B8A8_UNORM,
			Usage:   rendergraph.ImageUsageSampled,
			Samples: 1,
		})
		require.NoError(t, err)
		images = append(images, img)
	}
	return images
}

func TestDescriptorArrayPush(t *testing.T) {
	d := headless.New(headless.Config{})
	sets := newSets(t, d, 2, 4)
	images := newImages(t, d, 5)
	array := NewDescriptorArrayCombinedImageSampler(sets, 2)

	for i, img := range images[:4] {
		index, err := array.Push(rendergraph.DescriptorCombinedImageSamplerInfo{Image: img, Layout: rendergraph.ImageLayoutShaderReadOnly})
		require.NoError(t, err)
		assert.Equal(t, i, index)
	}
	again, err := array.Push(rendergraph.DescriptorCombinedImageSamplerInfo{Image: images[1]})
	require.NoError(t, err)
	assert.Equal(t, 1, again, "pushing the same image returns its index")
	assert.Equal(t, 4, array.Len())

	_, err = array.Push(rendergraph.DescriptorCombinedImageSamplerInfo{Image: images[4]})
	assert.ErrorContains(t, err, "full")

	for _, s := range sets {
		written := s.(*headless.DescriptorSet).Written(2)
		require.Len(t, written, 4)
		assert.Equal(t, images[3], written[3].(rendergraph.DescriptorCombinedImageSamplerInfo).Image)
	}
}

func TestDescriptorArrayPopDeferred(t *testing.T) {
	d := headless.New(headless.Config{})
	sets := newSets(t, d, 2, 2)
	images := newImages(t, d, 3)
	queue := rendergraph.NewDeferredQueue(2)
	array := NewDescriptorArrayCombinedImageSampler(sets, 2)

	for _, img := range images[:2] {
		_, err := array.Push(rendergraph.DescriptorCombinedImageSamplerInfo{Image: img})
		require.NoError(t, err)
	}

	array.Pop(queue, images[0])
	_, ok := array.Index(images[0])
	assert.False(t, ok)
	array.Pop(queue, images[0])
	assert.Equal(t, 1, queue.Pending(), "popping twice only frees once")

	// the index may still be read by frames in flight
	_, err := array.Push(rendergraph.DescriptorCombinedImageSamplerInfo{Image: images[2]})
	assert.Error(t, err)

	queue.Commit(0)
	assert.Equal(t, 0, queue.Run(1))
	assert.Equal(t, 1, queue.Run(0))

	index, err := array.Push(rendergraph.DescriptorCombinedImageSamplerInfo{Image: images[2]})
	require.NoError(t, err)
	assert.Equal(t, 0, index)
}

func TestDescriptorArrayWithoutSets(t *testing.T) {
	assert.Panics(t, func() { NewDescriptorArrayCombinedImageSampler(nil, 0) })
}
