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
	"fmt"
	"strings"

	"goarrg.com/debug"
)

type physicalImage struct {
	desc  ImageDescription
	image Image
}

/*
transientTable owns the physical images behind transient resources. A new plan keeps every physical image
whose description it still needs, the rest go through the deferred queue since frames in flight may still
use them.
*/
type transientTable struct {
	device   Device
	queue    *DeferredQueue
	physical []physicalImage
}

func (t *transientTable) realize(plan *ExecutionPlan) error {
	old := t.physical
	used := make([]bool, len(old))
	var created []Image
	physical := make([]physicalImage, 0, len(plan.Physical))

	for i, p := range plan.Physical {
		found := -1
		for j := range old {
			if !used[j] && old[j].desc == p.Description {
				found = j
				break
			}
		}
		if found >= 0 {
			used[found] = true
			physical = append(physical, old[found])
			continue
		}

		name := fmt.Sprintf("transient_%d[%s]", i, strings.Join(p.Resources, ","))
		img, err := t.device.NewImage(name, p.Description)
		if err != nil {
			for _, c := range created {
				c.Destroy()
			}
			return debug.ErrorWrapf(err, "Failed to allocate %q (%s)", name, p.Description)
		}
		logger.VPrintf("Allocated %q: %s", name, p.Description)
		created = append(created, img)
		physical = append(physical, physicalImage{desc: p.Description, image: img})
	}

	for j := range old {
		if !used[j] {
			t.queue.Push(old[j].image)
		}
	}
	logger.IPrintf("Transient images: %d kept, %d allocated, %d released",
		len(physical)-len(created), len(created), len(old)-(len(physical)-len(created)))
	t.physical = physical
	return nil
}

func (t *transientTable) image(physical int) Image {
	return t.physical[physical].image
}

func (t *transientTable) release() {
	for _, p := range t.physical {
		t.queue.Push(p.image)
	}
	t.physical = nil
}

// frameResources resolves plan resource names to the images and handles of one frame.
type frameResources struct {
	plan       *ExecutionPlan
	transients *transientTable
	history    *historyRegistry
	frame      uint64

	images  map[string]Image
	buffers map[string]Buffer
	structs map[string]AccelerationStructure
}

func (r *frameResources) image(name string) (Image, error) {
	if img, ok := r.images[name]; ok {
		return img, nil
	}
	res := r.plan.Resource(name)
	if res == nil || res.Kind != ResourceKindImage {
		return nil, debug.Errorf("%q is not an image of this frame", name)
	}

	var img Image
	switch {
	case res.HistoryRead:
		img = r.history.pair(res.HistoryTag).read(r.frame)
	case res.HistoryTag != "":
		img = r.history.pair(res.HistoryTag).write(r.frame)
	case res.Physical >= 0:
		img = r.transients.image(res.Physical)
	}
	if img == nil {
		return nil, debug.Errorf("External image %q is not bound", name)
	}
	r.images[name] = img
	return img, nil
}

func (r *frameResources) buffer(name string) (Buffer, error) {
	if b, ok := r.buffers[name]; ok && b != nil {
		return b, nil
	}
	return nil, debug.Errorf("External buffer %q is not bound", name)
}

func (r *frameResources) accelerationStructure(name string) (AccelerationStructure, error) {
	if as, ok := r.structs[name]; ok && as != nil {
		return as, nil
	}
	return nil, debug.Errorf("External acceleration structure %q is not bound", name)
}
