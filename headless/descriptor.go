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
	"bytes"
	"fmt"
	"slices"

	"goarrg.com/debug"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/internal/container"
)

type DescriptorSet struct {
	name   string
	layout *DescriptorSetLayout
	bank   *descriptorPoolBank
	// generation is the pool reset count the set was allocated in, a set from an older generation is dead.
	generation uint64
	writes     map[int][]rendergraph.DescriptorInfo
}

var _ rendergraph.DescriptorSet = (*DescriptorSet)(nil)

func (s *DescriptorSet) Name() string {
	return s.name
}

func (s *DescriptorSet) Layout() rendergraph.DescriptorSetLayout {
	return s.layout
}

func (s *DescriptorSet) MaxDescriptorCount(bindingIndex int) int {
	b, ok := s.layout.binding(bindingIndex)
	if !ok {
		return 0
	}
	return int(b.DescriptorCount)
}

func descriptorMatches(t rendergraph.DescriptorType, info rendergraph.DescriptorInfo) bool {
	switch info.(type) {
	case rendergraph.DescriptorCombinedImageSamplerInfo:
		return t == rendergraph.DescriptorTypeCombinedImageSampler
	case rendergraph.DescriptorImageInfo:
		return t == rendergraph.DescriptorTypeStorageImage || t == rendergraph.DescriptorTypeSampledImage
	case rendergraph.DescriptorBufferInfo:
		return t == rendergraph.DescriptorTypeStorageBuffer || t == rendergraph.DescriptorTypeUniformBuffer
	case rendergraph.DescriptorAccelerationStructureInfo:
		return t == rendergraph.DescriptorTypeAccelerationStructure
	}
	return false
}

func (s *DescriptorSet) Bind(bindingIndex, descriptorIndex int, descriptors ...rendergraph.DescriptorInfo) error {
	if s.bank != nil && s.generation != s.bank.pool.generation {
		return debug.Errorf("Descriptor set %q used after its pool was reset", s.name)
	}
	b, ok := s.layout.binding(bindingIndex)
	if !ok {
		return debug.Errorf("Descriptor set %q has no binding %d", s.name, bindingIndex)
	}
	if descriptorIndex < 0 || descriptorIndex+len(descriptors) > int(b.DescriptorCount) {
		return debug.Errorf("Descriptor set %q binding %d: [%d, %d) out of range %d",
			s.name, bindingIndex, descriptorIndex, descriptorIndex+len(descriptors), b.DescriptorCount)
	}
	for _, d := range descriptors {
		if !descriptorMatches(b.DescriptorType, d) {
			return debug.Errorf("Descriptor set %q binding %d is %s, got %T", s.name, bindingIndex, b.DescriptorType, d)
		}
	}

	w := s.writes[bindingIndex]
	if n := descriptorIndex + len(descriptors); n > len(w) {
		w = append(w, make([]rendergraph.DescriptorInfo, n-len(w))...)
	}
	copy(w[descriptorIndex:], descriptors)
	s.writes[bindingIndex] = w
	return nil
}

// Written returns what was last bound at bindingIndex, unwritten elements are nil.
func (s *DescriptorSet) Written(bindingIndex int) []rendergraph.DescriptorInfo {
	return slices.Clone(s.writes[bindingIndex])
}

type descriptorPoolBank struct {
	pool     *DescriptorPool
	name     string
	len      int32
	cap      int32
	freeSets container.Stack[*DescriptorSet]
	used     []*DescriptorSet
}

func (b *descriptorPoolBank) canAllocate() bool {
	return (!b.freeSets.Empty()) || (b.len < b.cap)
}

func (b *descriptorPoolBank) createOrRetrieveDescriptorSet(layout *DescriptorSetLayout) *DescriptorSet {
	var set *DescriptorSet
	if !b.freeSets.Empty() {
		set = b.freeSets.Pop()
	} else {
		set = &DescriptorSet{bank: b}
		b.len++
	}
	set.name = fmt.Sprintf("%s_%s_set_%d", layout.name, b.name, len(b.used))
	set.layout = layout
	set.generation = b.pool.generation
	set.writes = map[int][]rendergraph.DescriptorInfo{}
	b.used = append(b.used, set)
	return set
}

func (b *descriptorPoolBank) reset() {
	for _, s := range b.used {
		b.freeSets.Push(s)
	}
	b.used = b.used[:0]
}

/*
DescriptorPool grows by banks of a fixed number of sets, a bank is only added once every existing bank is
full. Reset returns every set to its bank.
*/
type DescriptorPool struct {
	object
	bankSize   int32
	banks      []*descriptorPoolBank
	generation uint64
	resets     int
}

var _ rendergraph.DescriptorPool = (*DescriptorPool)(nil)

func (d *Device) NewDescriptorPool(name string, info rendergraph.DescriptorPoolCreateInfo) (rendergraph.DescriptorPool, error) {
	if info.BankSize <= 0 {
		return nil, debug.Errorf("Descriptor pool %q has bank size %d", name, info.BankSize)
	}
	return &DescriptorPool{object: d.newObject("descriptor_pool", name), bankSize: info.BankSize}, nil
}

func (p *DescriptorPool) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("[")

	if len(p.banks) > 0 {
		for _, b := range p.banks {
			buff.WriteString(fmt.Sprintf("{\"name\": %q, \"len\": %d, \"cap\": %d, \"free\": %d},", b.name, b.len, b.cap, b.freeSets.Len()))
		}
		buff.Truncate(buff.Len() - 1)
	}

	buff.WriteString("]")
	return buff.Bytes(), nil
}

func (p *DescriptorPool) createOrRetrieveBank() *descriptorPoolBank {
	for _, b := range p.banks {
		if b.canAllocate() {
			return b
		}
	}
	bank := &descriptorPoolBank{pool: p, name: fmt.Sprintf("bank_%d", len(p.banks)), cap: p.bankSize}
	p.banks = append(p.banks, bank)
	logger.VPrintf("Descriptor pool %q grew to %d banks", p.name, len(p.banks))
	return bank
}

func (p *DescriptorPool) Allocate(layout rendergraph.DescriptorSetLayout) (rendergraph.DescriptorSet, error) {
	l, ok := layout.(*DescriptorSetLayout)
	if !ok {
		return nil, debug.Errorf("Descriptor pool %q: %q is not a headless layout", p.name, layout.Name())
	}
	if p.device.shouldFailAlloc(p.name) {
		return nil, debug.ErrorWrapf(rendergraph.ErrorOutOfMemory{}, "Descriptor pool %q is exhausted", p.name)
	}
	return p.createOrRetrieveBank().createOrRetrieveDescriptorSet(l), nil
}

func (p *DescriptorPool) Reset() {
	for _, b := range p.banks {
		b.reset()
	}
	p.generation++
	p.resets++
}

// Banks returns the number of banks the pool has grown to.
func (p *DescriptorPool) Banks() int {
	return len(p.banks)
}

// Allocated returns the number of sets handed out since the last reset.
func (p *DescriptorPool) Allocated() int {
	n := 0
	for _, b := range p.banks {
		n += len(b.used)
	}
	return n
}

func (p *DescriptorPool) Resets() int {
	return p.resets
}
