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
	"goarrg.com/debug"
)

// passLayout is the pipeline layout of a pass, set 0 is the global set and set 1 the pass's transient set.
type passLayout struct {
	set      DescriptorSetLayout
	pipeline PipelineLayout
}

type descriptorBinder struct {
	cache     *PipelineCache
	resources ResourceManager
	layouts   map[string]passLayout
}

func (b *descriptorBinder) layout(p *PlannedPass) (passLayout, error) {
	if l, ok := b.layouts[p.LayoutID]; ok {
		return l, nil
	}

	set, err := b.cache.createOrRetrieveSetLayout(p.Name+"_set1", p.setLayoutBindings())
	if err != nil {
		return passLayout{}, err
	}
	info := PipelineLayoutCreateInfo{
		SetLayouts:       []DescriptorSetLayout{b.resources.GlobalSetLayout(), set},
		PushConstantSize: p.PushConstantSize,
	}
	if p.PushConstantSize > 0 {
		info.PushConstantStages = p.pass.pushConstantStages()
	}
	pipeline, err := b.cache.createOrRetrievePipelineLayout(p.Name+"_layout", p.LayoutID, info)
	if err != nil {
		return passLayout{}, err
	}

	l := passLayout{set: set, pipeline: pipeline}
	b.layouts[p.LayoutID] = l
	return l, nil
}

// bind allocates set 1 for the pass from the frame's transient pool and writes every declared binding.
// Passes without bindings get no set.
func (b *descriptorBinder) bind(frame int, p *PlannedPass, l passLayout, r *frameResources) (DescriptorSet, error) {
	if len(p.Bindings) == 0 {
		return nil, nil
	}

	set, err := b.resources.TransientPool(frame).Allocate(l.set)
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Pass %q: failed to allocate descriptor set", p.Name)
	}

	for _, binding := range p.Bindings {
		var info DescriptorInfo
		switch binding.Type {
		case DescriptorTypeCombinedImageSampler:
			img, err := r.image(binding.Resource)
			if err != nil {
				return nil, err
			}
			info = DescriptorCombinedImageSamplerInfo{Sampler: b.resources.DefaultSampler(), Image: img, Layout: binding.Layout}
		case DescriptorTypeStorageImage:
			img, err := r.image(binding.Resource)
			if err != nil {
				return nil, err
			}
			info = DescriptorImageInfo{Image: img, Layout: binding.Layout}
		case DescriptorTypeStorageBuffer:
			buf, err := r.buffer(binding.Resource)
			if err != nil {
				return nil, err
			}
			info = DescriptorBufferInfo{Buffer: buf}
		case DescriptorTypeAccelerationStructure:
			as, err := r.accelerationStructure(binding.Resource)
			if err != nil {
				return nil, err
			}
			info = DescriptorAccelerationStructureInfo{AccelerationStructure: as}
		default:
			abort("Pass %q: unhandled descriptor type %s", p.Name, binding.Type)
		}
		if err := set.Bind(int(binding.Binding), 0, info); err != nil {
			return nil, debug.ErrorWrapf(err, "Pass %q: failed to bind %q", p.Name, binding.Resource)
		}
	}
	return set, nil
}
