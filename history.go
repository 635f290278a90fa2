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
	"slices"

	"goarrg.com/debug"
	"golang.org/x/exp/maps"
)

// historyPair is the ping/pong backing of one history tag, frame N writes images[N%2] and reads the other.
type historyPair struct {
	tag    string
	desc   ImageDescription
	images [2]Image
	// valid is false until a frame writing the pair was submitted, until then the read slot is cleared.
	valid bool
	// state is where the last submitted write left the next read slot, under the plan that wrote it.
	state ImageBarrierInfo
}

func (h *PlannedHistory) readState() ImageBarrierInfo {
	return ImageBarrierInfo{Layout: h.ReadLayout, Stage: h.ReadStage, Access: h.ReadAccess}
}

func (p *historyPair) write(frame uint64) Image {
	return p.images[frame%2]
}

func (p *historyPair) read(frame uint64) Image {
	return p.images[(frame+1)%2]
}

func (p *historyPair) Destroy() {
	p.images[0].Destroy()
	p.images[1].Destroy()
}

type historyRegistry struct {
	device Device
	queue  *DeferredQueue
	pairs  map[string]*historyPair
}

func (r *historyRegistry) pair(tag string) *historyPair {
	return r.pairs[tag]
}

// realize keeps pairs the plan still saves with the same description, their contents carry over.
func (r *historyRegistry) realize(plan *ExecutionPlan) error {
	if r.pairs == nil {
		r.pairs = map[string]*historyPair{}
	}
	keep := map[string]*historyPair{}
	var created []*historyPair

	for _, h := range plan.History {
		if p, ok := r.pairs[h.Tag]; ok && p.desc == h.Description {
			keep[h.Tag] = p
			continue
		}
		p := &historyPair{tag: h.Tag, desc: h.Description}
		for i := range p.images {
			name := fmt.Sprintf("history_%s_%d", h.Tag, i)
			img, err := r.device.NewImage(name, h.Description)
			if err != nil {
				if i == 1 {
					p.images[0].Destroy()
				}
				for _, c := range created {
					c.Destroy()
				}
				return debug.ErrorWrapf(err, "Failed to allocate %q (%s)", name, h.Description)
			}
			p.images[i] = img
		}
		created = append(created, p)
		keep[h.Tag] = p
	}

	for tag, p := range r.pairs {
		if keep[tag] != p {
			r.queue.Push(p)
		}
	}
	r.pairs = keep
	return nil
}

// discard drops every pair, the next frame starts with cleared history.
func (r *historyRegistry) discard() {
	for _, tag := range r.tags() {
		r.queue.Push(r.pairs[tag])
	}
	clear(r.pairs)
}

func (r *historyRegistry) invalid() []*historyPair {
	var pairs []*historyPair
	for _, tag := range r.tags() {
		if p := r.pairs[tag]; !p.valid {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// rotate runs once a frame of plan was submitted, the frame's write slot becomes the next frame's read slot.
func (r *historyRegistry) rotate(plan *ExecutionPlan) {
	for _, p := range r.pairs {
		p.valid = true
		if h := plan.history(p.tag); h != nil {
			p.state = h.readState()
		}
	}
}

// stale returns the valid pairs read by plan whose read slot is not in the state plan starts it in, which
// happens when a rebuild kept the pair but changed who accesses it last.
func (r *historyRegistry) stale(plan *ExecutionPlan) []*historyPair {
	var pairs []*historyPair
	for _, tag := range r.tags() {
		p := r.pairs[tag]
		h := plan.history(tag)
		if p.valid && h != nil && len(h.Readers) > 0 && p.state != h.readState() {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

func (r *historyRegistry) tags() []string {
	tags := maps.Keys(r.pairs)
	slices.Sort(tags)
	return tags
}
