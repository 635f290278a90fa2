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

	"goarrg.com/debug"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/internal/container"
	"goarrg.com/rhi/rendergraph/internal/util"
)

/*
descriptorArray hands out indices of one array binding that is mirrored in several descriptor sets, one per
frame in flight. Every push is written to all of them so shaders see the same index whichever set is bound.
*/
type descriptorArray[K comparable] struct {
	noCopy             util.NoCopy
	sets               []rendergraph.DescriptorSet
	binding            int
	index              int
	freeStack          container.Stack[int]
	managedDescriptors map[K]int
}

func (d *descriptorArray[K]) init(sets []rendergraph.DescriptorSet, binding int) {
	if len(sets) == 0 {
		abort("Descriptor array without sets")
	}
	d.sets = append([]rendergraph.DescriptorSet(nil), sets...)
	d.binding = binding
	d.managedDescriptors = map[K]int{}
	d.noCopy.Init(fmt.Sprintf("descriptor array at binding %d", binding))
}

func (d *descriptorArray[K]) push(key K, info rendergraph.DescriptorInfo) (int, error) {
	d.noCopy.Check()
	if i, found := d.managedDescriptors[key]; found {
		return i, nil
	}
	var i int
	if d.freeStack.Empty() {
		if d.index >= d.sets[0].MaxDescriptorCount(d.binding) {
			return -1, debug.Errorf("Descriptor array binding %d is full (%d)", d.binding, d.index)
		}
		i = d.index
		d.index++
	} else {
		i = d.freeStack.Pop()
	}
	for _, set := range d.sets {
		if err := set.Bind(d.binding, i, info); err != nil {
			d.freeStack.Push(i)
			return -1, debug.ErrorWrapf(err, "Failed to write descriptor %d", i)
		}
	}
	d.managedDescriptors[key] = i
	return i, nil
}

/*
Pop marks the descriptor index holding target as unused. The index only becomes available again once
every frame in flight that may still read it has completed.
*/
func (d *descriptorArray[K]) Pop(queue *rendergraph.DeferredQueue, target K) {
	d.noCopy.Check()
	i, found := d.managedDescriptors[target]
	if !found {
		return
	}
	delete(d.managedDescriptors, target)
	queue.PushFunc(func() {
		d.freeStack.Push(i)
	})
}

// Index returns the index target was pushed at.
func (d *descriptorArray[K]) Index(target K) (int, bool) {
	d.noCopy.Check()
	i, found := d.managedDescriptors[target]
	return i, found
}

// Len returns the number of live descriptors.
func (d *descriptorArray[K]) Len() int {
	d.noCopy.Check()
	return len(d.managedDescriptors)
}

/*
DescriptorArrayCombinedImageSampler manages inserting and removing CombinedImageSamplers from a bindless
descriptor array, it is the user's responsibility to handle layout changes.
*/
type DescriptorArrayCombinedImageSampler struct {
	descriptorArray[rendergraph.Image]
}

func NewDescriptorArrayCombinedImageSampler(sets []rendergraph.DescriptorSet, binding int) *DescriptorArrayCombinedImageSampler {
	ret := DescriptorArrayCombinedImageSampler{}
	ret.init(sets, binding)
	return &ret
}

func (d *DescriptorArrayCombinedImageSampler) Push(info rendergraph.DescriptorCombinedImageSamplerInfo) (int, error) {
	return d.push(info.Image, info)
}
