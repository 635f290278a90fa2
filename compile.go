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
	"bytes"
	"fmt"
	"slices"
	"strings"

	"goarrg.com/gmath"
)

// ExternalResource is a resource owned outside the graph, Initial is its state when the frame starts
// and Final the state it must be left in, Final is ignored when its layout is undefined.
type ExternalResource struct {
	Name        string
	Kind        ResourceKind
	Description ImageDescription
	Initial     ImageBarrierInfo
	Final       ImageBarrierInfo
}

type PlannedBarrier struct {
	Resource string
	Kind     ResourceKind
	Src      ImageBarrierInfo
	Dst      ImageBarrierInfo
}

func (b PlannedBarrier) String() string {
	return fmt.Sprintf("%s: %s -> %s", b.Resource, b.Src, b.Dst)
}

type PlannedBinding struct {
	Binding  uint32
	Resource string
	Kind     ResourceKind
	Usage    ResourceUsage
	Type     DescriptorType
	Layout   ImageLayout
	Stages   ShaderStage
}

type PlannedAttachment struct {
	Resource string
	Format   Format
	LoadOp   RenderAttachmentLoadOp
	StoreOp  RenderAttachmentStoreOp
	Clear    ClearValue
}

type PlannedPass struct {
	Name     string
	Kind     PassKind
	Barriers []PlannedBarrier
	Bindings []PlannedBinding
	// LayoutID identifies the set 1 layout and push constant range, passes with equal ids share a pipeline layout.
	LayoutID         string
	Color            []PlannedAttachment
	Depth            *PlannedAttachment
	PipelineKeys     []string
	PushConstantSize uint32

	pass *Pass
}

func (p *PlannedPass) setLayoutBindings() []DescriptorSetLayoutBinding {
	bindings := make([]DescriptorSetLayoutBinding, 0, len(p.Bindings))
	for _, b := range p.Bindings {
		bindings = append(bindings, DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: 1,
			ShaderStage:     b.Stages,
		})
	}
	return bindings
}

func (p *PlannedPass) colorFormats() []Format {
	formats := make([]Format, 0, len(p.Color))
	for _, c := range p.Color {
		formats = append(formats, c.Format)
	}
	return formats
}

func (p *PlannedPass) depthFormat() Format {
	if p.Depth == nil {
		return FORMAT_UNDEFINED
	}
	return p.Depth.Format
}

type PlannedResource struct {
	Name        string
	Kind        ResourceKind
	Description ImageDescription
	External    bool
	// HistoryTag is set on the image saved as history and on the history read slot.
	HistoryTag  string
	HistoryRead bool
	Writer      string
	Readers     []string
	// First and Last are schedule positions, history reads and unused externals have First == -1.
	First, Last int
	// Physical indexes ExecutionPlan.Physical, -1 for externals and history images.
	Physical int

	initial accessState
	end     accessState
}

type PhysicalImage struct {
	Description ImageDescription
	Resources   []string
}

type PlannedHistory struct {
	Tag         string
	Resource    string
	Description ImageDescription
	// ReadLayout is the layout the read slot is in when a frame starts.
	ReadLayout ImageLayout
	ReadStage  PipelineStage
	ReadAccess AccessFlags
	Readers    []string
}

type ExecutionPlan struct {
	Width, Height int32
	Passes        []PlannedPass
	Resources     []PlannedResource
	Physical      []PhysicalImage
	History       []PlannedHistory
	FinalBarriers []PlannedBarrier

	index map[string]int
}

func (p *ExecutionPlan) Resource(name string) *PlannedResource {
	if i, ok := p.index[name]; ok {
		return &p.Resources[i]
	}
	return nil
}

func (p *ExecutionPlan) Pass(name string) *PlannedPass {
	for i := range p.Passes {
		if p.Passes[i].Name == name {
			return &p.Passes[i]
		}
	}
	return nil
}

func (p *ExecutionPlan) history(tag string) *PlannedHistory {
	for i := range p.History {
		if p.History[i].Tag == tag {
			return &p.History[i]
		}
	}
	return nil
}

func (p *ExecutionPlan) PassNames() []string {
	names := make([]string, 0, len(p.Passes))
	for i := range p.Passes {
		names = append(names, p.Passes[i].Name)
	}
	return names
}

// PipelineKeys returns every pipeline key used by the plan, sorted.
func (p *ExecutionPlan) PipelineKeys() []string {
	var keys []string
	for i := range p.Passes {
		keys = append(keys, p.Passes[i].PipelineKeys...)
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// Barriers returns every barrier of the plan in recording order, final barriers last.
func (p *ExecutionPlan) Barriers() []PlannedBarrier {
	var barriers []PlannedBarrier
	for i := range p.Passes {
		barriers = append(barriers, p.Passes[i].Barriers...)
	}
	return append(barriers, p.FinalBarriers...)
}

func (p *ExecutionPlan) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"Extent\": \"%dx%d\",", p.Width, p.Height))

	buff.WriteString("\"Passes\": [")
	for i := range p.Passes {
		pass := &p.Passes[i]
		buff.WriteString("{")
		buff.WriteString(fmt.Sprintf("\"Name\": %q,", pass.Name))
		buff.WriteString(fmt.Sprintf("\"Kind\": %q,", pass.Kind))
		buff.WriteString("\"Barriers\": [")
		for _, b := range pass.Barriers {
			buff.WriteString(fmt.Sprintf("%q,", b.String()))
		}
		trimComma(&buff)
		buff.WriteString("],")
		buff.WriteString(fmt.Sprintf("\"Bindings\": %s,", jsonString(pass.Bindings)))
		buff.WriteString("\"Attachments\": [")
		for _, a := range pass.Color {
			buff.WriteString(fmt.Sprintf("\"%s:%s:%s\",", a.Resource, a.Format, a.LoadOp))
		}
		if pass.Depth != nil {
			buff.WriteString(fmt.Sprintf("\"%s:%s:%s\",", pass.Depth.Resource, pass.Depth.Format, pass.Depth.LoadOp))
		}
		trimComma(&buff)
		buff.WriteString("],")
		buff.WriteString(fmt.Sprintf("\"Pipelines\": %s", jsonString(pass.PipelineKeys)))
		buff.WriteString("},")
	}
	trimComma(&buff)
	buff.WriteString("],")

	buff.WriteString("\"Resources\": {")
	for _, r := range p.Resources {
		buff.WriteString(fmt.Sprintf("%q: {", r.Name))
		buff.WriteString(fmt.Sprintf("\"Kind\": %q,", r.Kind))
		if r.Kind == ResourceKindImage {
			buff.WriteString(fmt.Sprintf("\"Description\": %q,", r.Description))
		}
		buff.WriteString(fmt.Sprintf("\"External\": %t,", r.External))
		buff.WriteString(fmt.Sprintf("\"History\": %q,", r.HistoryTag))
		buff.WriteString(fmt.Sprintf("\"Lifetime\": [%d, %d],", r.First, r.Last))
		buff.WriteString(fmt.Sprintf("\"Physical\": %d", r.Physical))
		buff.WriteString("},")
	}
	trimComma(&buff)
	buff.WriteString("},")

	buff.WriteString("\"Final\": [")
	for _, b := range p.FinalBarriers {
		buff.WriteString(fmt.Sprintf("%q,", b.String()))
	}
	trimComma(&buff)
	buff.WriteString("]")

	buff.WriteString("}")
	return buff.Bytes(), nil
}

func trimComma(buff *bytes.Buffer) {
	if bytes.HasSuffix(buff.Bytes(), []byte(",")) {
		buff.Truncate(buff.Len() - 1)
	}
}

type compiler struct {
	passes    []*Pass
	externals map[string]*ExternalResource
	width     int32
	height    int32

	writers map[string]int
	history map[string]*resourceAccess
	// deps[i] lists the passes pass i depends on, by registration index
	deps  [][]int
	order []int

	plan *ExecutionPlan
}

/*
Compile turns registered passes into an ExecutionPlan. It has no side effects and the result only depends
on its arguments, so building the same graph twice yields equal plans.
*/
func Compile(passes []*Pass, externals []ExternalResource, width, height int32) (*ExecutionPlan, error) {
	c := compiler{
		passes:    passes,
		externals: map[string]*ExternalResource{},
		width:     width,
		height:    height,
		writers:   map[string]int{},
		history:   map[string]*resourceAccess{},
	}
	for i := range externals {
		e := &externals[i]
		if _, ok := c.externals[e.Name]; ok {
			return nil, configErrorf("External %q registered twice", e.Name)
		}
		c.externals[e.Name] = e
	}

	for _, step := range []func() error{
		c.validate,
		c.schedule,
		c.resolveResources,
		c.alias,
		c.walk,
		c.assemble,
	} {
		if err := step(); err != nil {
			return nil, err
		}
	}

	logger.IPrintf("Compiled %d passes: %s", len(c.plan.Passes), strings.Join(c.plan.PassNames(), " -> "))
	logger.IPrintf("%d resources on %d physical images, %d history pairs",
		len(c.plan.Resources), len(c.plan.Physical), len(c.plan.History))
	for _, b := range c.plan.Barriers() {
		logger.VPrintf("Barrier %s", b)
	}
	return c.plan, nil
}

func (c *compiler) validate() error {
	names := map[string]int{}
	for i, p := range c.passes {
		if j, ok := names[p.name]; ok {
			return configErrorf("Pass name %q registered twice (passes %d and %d)", p.name, j, i)
		}
		names[p.name] = i

		depth := ""
		readsAS := false
		for _, a := range p.accesses {
			if a.kind == ResourceKindAccelerationStructure {
				readsAS = true
			}
			if !a.write {
				continue
			}
			if j, ok := c.writers[a.name]; ok {
				return configErrorf("%q is written by both %q and %q", a.name, c.passes[j].name, p.name)
			}
			c.writers[a.name] = i

			if a.usage(p.kind) == ResourceUsageDepthAttachment {
				if depth != "" {
					return configErrorf("Pass %q: more than one depth attachment (%q and %q)", p.name, depth, a.name)
				}
				depth = a.name
			}
			if a.historyTag != "" {
				if prev, ok := c.history[a.historyTag]; ok {
					return configErrorf("History %q is saved by both %q and %q", a.historyTag, prev.name, a.name)
				}
				if _, ok := c.externals[a.name]; ok {
					return configErrorf("Pass %q: external %q cannot be saved as history", p.name, a.name)
				}
				c.history[a.historyTag] = a
			}
		}
		if p.kind == PassKindRayTracing && !readsAS {
			return configErrorf("Pass %q: ray tracing pass does not read an acceleration structure", p.name)
		}
	}

	for _, p := range c.passes {
		for _, a := range p.accesses {
			if a.historyTag != "" && !a.write {
				if _, ok := c.history[a.historyTag]; !ok {
					return configErrorf("Pass %q reads history %q which no pass saves", p.name, a.historyTag)
				}
				continue
			}
			e, external := c.externals[a.name]
			if external && e.Kind != a.kind {
				return configErrorf("Pass %q: %q is an external %s, declared as %s", p.name, a.name, e.Kind, a.kind)
			}
			if a.write {
				if a.kind != ResourceKindImage && !external {
					return configErrorf("Pass %q writes %s %q which is not registered", p.name, a.kind, a.name)
				}
				continue
			}
			if _, ok := c.writers[a.name]; !ok && !external {
				return configErrorf("Pass %q reads %q which is neither written by a pass nor registered as external", p.name, a.name)
			}
			if w, ok := c.writers[a.name]; ok && a.kind != ResourceKindImage {
				for _, wa := range c.passes[w].accesses {
					if wa.name == a.name && wa.kind != a.kind {
						return configErrorf("Pass %q: %q is declared as %s, written as %s", p.name, a.name, a.kind, wa.kind)
					}
				}
			}
		}
	}

	return nil
}

func (c *compiler) schedule() error {
	n := len(c.passes)
	c.deps = make([][]int, n)
	dependents := make([][]int, n)
	indegree := make([]int, n)

	for i, p := range c.passes {
		for _, a := range p.accesses {
			if a.write || a.historyTag != "" {
				continue
			}
			w, ok := c.writers[a.name]
			if !ok || w == i || slices.Contains(c.deps[i], w) {
				continue
			}
			c.deps[i] = append(c.deps[i], w)
			dependents[w] = append(dependents[w], i)
			indegree[i]++
		}
	}

	scheduled := make([]bool, n)
	c.order = make([]int, 0, n)
	for len(c.order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !scheduled[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return c.cycleError(scheduled)
		}
		scheduled[next] = true
		c.order = append(c.order, next)
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}
	return nil
}

// cycleError follows unscheduled dependencies backwards until a pass repeats, every unscheduled pass
// has at least one unscheduled dependency so the walk always finds a cycle.
func (c *compiler) cycleError(scheduled []bool) error {
	start := slices.Index(scheduled, false)
	visited := map[int]int{}
	var walk []int
	for i := start; ; {
		if at, ok := visited[i]; ok {
			walk = walk[at:]
			break
		}
		visited[i] = len(walk)
		walk = append(walk, i)
		for _, d := range c.deps[i] {
			if !scheduled[d] {
				i = d
				break
			}
		}
	}

	slices.Reverse(walk)
	names := make([]string, 0, len(walk)+1)
	for _, i := range walk {
		names = append(names, c.passes[i].name)
	}
	names = append(names, names[0])
	return configErrorf("Cycle detected between passes: %s", strings.Join(names, " -> "))
}

func (c *compiler) extent(a *resourceAccess) gmath.Extent3i32 {
	switch {
	case a.width > 0:
		return gmath.Extent3i32{X: a.width, Y: a.height, Z: 1}
	case a.scale > 0:
		return gmath.Extent3i32{
			X: max(1, int32(float32(c.width)*a.scale)),
			Y: max(1, int32(float32(c.height)*a.scale)),
			Z: 1,
		}
	}
	return gmath.Extent3i32{X: c.width, Y: c.height, Z: 1}
}

func (c *compiler) resolveResources() error {
	c.plan = &ExecutionPlan{Width: c.width, Height: c.height, index: map[string]int{}}
	plan := c.plan

	get := func(name string, kind ResourceKind) *PlannedResource {
		if i, ok := plan.index[name]; ok {
			return &plan.Resources[i]
		}
		plan.index[name] = len(plan.Resources)
		plan.Resources = append(plan.Resources, PlannedResource{Name: name, Kind: kind, First: -1, Last: -1, Physical: -1})
		return &plan.Resources[len(plan.Resources)-1]
	}

	for pos, pi := range c.order {
		p := c.passes[pi]
		for _, a := range p.accesses {
			r := get(a.name, a.kind)
			if e, ok := c.externals[a.name]; ok {
				r.External = true
				r.Description = e.Description
			}
			if a.write {
				r.Writer = p.name
				r.HistoryTag = a.historyTag
				if !r.External {
					r.Description.Extent = c.extent(a)
					r.Description.Format = a.format
					r.Description.Samples = 1
				}
			} else {
				r.Readers = append(r.Readers, p.name)
				if a.historyTag != "" {
					r.HistoryTag = a.historyTag
					r.HistoryRead = true
				}
			}
			if r.First < 0 && !r.HistoryRead {
				r.First = pos
			}
			r.Last = pos
			r.Description.Usage |= a.usage(p.kind).imageUsage()
		}
	}

	// externals nobody touches still get their final transition
	var unused []string
	for name, e := range c.externals {
		if _, ok := plan.index[name]; !ok && e.Kind == ResourceKindImage && e.Final.Layout != ImageLayoutUndefined {
			unused = append(unused, name)
		}
	}
	slices.Sort(unused)
	for _, name := range unused {
		r := get(name, ResourceKindImage)
		r.External = true
		r.Description = c.externals[name].Description
	}

	for i := range plan.Resources {
		r := &plan.Resources[i]
		if r.Kind != ResourceKindImage || r.External || r.HistoryRead {
			continue
		}
		if r.Description.Format == FORMAT_UNDEFINED {
			return configErrorf("Image %q written by %q has no format", r.Name, r.Writer)
		}
		if r.Description.Extent.X <= 0 || r.Description.Extent.Y <= 0 {
			return configErrorf("Image %q written by %q has no size (%dx%d)", r.Name, r.Writer,
				r.Description.Extent.X, r.Description.Extent.Y)
		}
	}

	// both history slots alternate roles so they share one description
	tags := make([]string, 0, len(c.history))
	for tag := range c.history {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	for _, tag := range tags {
		w := plan.Resource(c.history[tag].name)
		desc := w.Description
		desc.Usage |= ImageUsageTransferDst
		h := plan.Resource(historyName(tag))
		if h != nil {
			desc.Usage |= h.Description.Usage
			h.Description = desc
		}
		w.Description = desc
		plan.History = append(plan.History, PlannedHistory{Tag: tag, Resource: w.Name, Description: desc})
		if h != nil {
			plan.History[len(plan.History)-1].Readers = h.Readers
		}
	}

	for _, pi := range c.order {
		p := c.passes[pi]
		for _, a := range p.accesses {
			if !a.blit || a.format == FORMAT_UNDEFINED {
				continue
			}
			r := plan.Resource(a.name)
			if r.Description.Format != a.format {
				return configErrorf("Pass %q: blit declares %q as %s but it resolves to %s",
					p.name, a.name, a.format, r.Description.Format)
			}
		}
	}

	return nil
}

// alias assigns transient images to physical images with a first fit over the schedule, an image may
// take over a physical image once every use of the previous occupant is strictly earlier than its first use.
func (c *compiler) alias() error {
	plan := c.plan
	type slot struct {
		end  int
		desc ImageDescription
	}
	var slots []slot

	for i := range plan.Resources {
		r := &plan.Resources[i]
		if r.Kind != ResourceKindImage || r.External || r.HistoryTag != "" {
			continue
		}
		found := -1
		for s := range slots {
			if slots[s].desc == r.Description && slots[s].end < r.First {
				found = s
				break
			}
		}
		if found < 0 {
			found = len(slots)
			slots = append(slots, slot{desc: r.Description})
			plan.Physical = append(plan.Physical, PhysicalImage{Description: r.Description})
		}
		slots[found].end = r.Last
		r.Physical = found
		plan.Physical[found].Resources = append(plan.Physical[found].Resources, r.Name)
	}
	return nil
}

func (c *compiler) initialState(r *PlannedResource) accessState {
	if e, ok := c.externals[r.Name]; ok {
		return accessState{layout: e.Initial.Layout, writeStage: e.Initial.Stage, writeAccess: e.Initial.Access & writeAccessMask}
	}

	plan := c.plan
	switch {
	case r.HistoryRead:
		w := plan.Resource(c.history[r.HistoryTag].name)
		return accessState{layout: w.end.layout, writeStage: w.end.writeStage, writeAccess: w.end.writeAccess}

	case r.HistoryTag != "":
		// last frame this slot was the read slot, or untouched since its own write when nobody reads it
		prev := r.end
		if h := plan.Resource(historyName(r.HistoryTag)); h != nil {
			prev = h.end
		}
		return accessState{writeStage: prev.writeStage | prev.readStage, writeAccess: prev.writeAccess}

	case r.Physical >= 0:
		occupants := plan.Physical[r.Physical].Resources
		at := slices.Index(occupants, r.Name)
		// the first occupant follows the last one of the previous frame
		prev := plan.Resource(occupants[(at+len(occupants)-1)%len(occupants)]).end
		return accessState{writeStage: prev.writeStage | prev.readStage, writeAccess: prev.writeAccess}
	}

	return accessState{}
}

// walk runs the barrier state machine over the schedule twice, the first run only settles the end
// states the second run needs for history and aliased images.
func (c *compiler) walk() error {
	plan := c.plan
	for run := 0; run < 2; run++ {
		states := make([]accessState, len(plan.Resources))
		for i := range plan.Resources {
			r := &plan.Resources[i]
			if run == 0 {
				if e, ok := c.externals[r.Name]; ok {
					states[i] = accessState{layout: e.Initial.Layout, writeStage: e.Initial.Stage, writeAccess: e.Initial.Access & writeAccessMask}
				}
			} else {
				states[i] = c.initialState(r)
			}
			r.initial = states[i]
		}

		plan.Passes = plan.Passes[:0]
		for _, pi := range c.order {
			p := c.passes[pi]
			planned := PlannedPass{Name: p.name, Kind: p.kind, pass: p, PushConstantSize: p.pushConstantSize()}
			for _, a := range p.accesses {
				i := plan.index[a.name]
				r := &plan.Resources[i]
				dst := requiredState(p.kind, a.usage(p.kind))
				if r.Kind != ResourceKindImage {
					dst.Layout = ImageLayoutUndefined
				}
				src, ok := states[i].transition(dst)
				if !ok {
					continue
				}
				if r.Kind != ResourceKindImage && src.Access == AccessFlagNone && src.Stage == PipelineStageTopOfPipe {
					continue
				}
				planned.Barriers = append(planned.Barriers, PlannedBarrier{Resource: a.name, Kind: r.Kind, Src: src, Dst: dst})
			}
			plan.Passes = append(plan.Passes, planned)
		}

		plan.FinalBarriers = plan.FinalBarriers[:0]
		for i := range plan.Resources {
			r := &plan.Resources[i]
			r.end = states[i]
			e, ok := c.externals[r.Name]
			if !ok || e.Kind != ResourceKindImage || e.Final.Layout == ImageLayoutUndefined || states[i].layout == e.Final.Layout {
				continue
			}
			src, _ := states[i].transition(e.Final)
			plan.FinalBarriers = append(plan.FinalBarriers, PlannedBarrier{Resource: r.Name, Kind: r.Kind, Src: src, Dst: e.Final})
			r.end = states[i]
		}
	}

	for i := range plan.History {
		h := &plan.History[i]
		w := plan.Resource(h.Resource)
		h.ReadLayout = w.end.layout
		h.ReadStage = w.end.writeStage | w.end.readStage
		h.ReadAccess = w.end.writeAccess
	}
	return nil
}

func (c *compiler) assemble() error {
	plan := c.plan
	for pi := range plan.Passes {
		planned := &plan.Passes[pi]
		p := planned.pass

		used := map[uint32]string{}
		for _, a := range p.accesses {
			if a.binding < 0 || !a.hasBinding(p.kind) {
				continue
			}
			if prev, ok := used[uint32(a.binding)]; ok {
				return configErrorf("Pass %q: binding %d used by both %q and %q", p.name, a.binding, prev, a.name)
			}
			used[uint32(a.binding)] = a.name
		}
		next := uint32(0)
		for _, a := range p.accesses {
			usage := a.usage(p.kind)
			switch usage {
			case ResourceUsageColorAttachment, ResourceUsageDepthAttachment:
				if err := c.attachment(planned, a, usage); err != nil {
					return err
				}
				continue
			case ResourceUsageBlitSrc, ResourceUsageBlitDst:
				continue
			}

			binding := uint32(a.binding)
			if a.binding < 0 {
				for ; used[next] != ""; next++ {
				}
				binding = next
				used[binding] = a.name
			}
			pb := PlannedBinding{
				Binding:  binding,
				Resource: a.name,
				Kind:     a.kind,
				Usage:    usage,
				Stages:   p.pushConstantStages(),
			}
			switch usage {
			case ResourceUsageSampled:
				pb.Type, pb.Layout = DescriptorTypeCombinedImageSampler, ImageLayoutShaderReadOnly
			case ResourceUsageStorageRead, ResourceUsageStorageWrite:
				pb.Type, pb.Layout = DescriptorTypeStorageImage, ImageLayoutGeneral
			case ResourceUsageBufferRead, ResourceUsageBufferWrite:
				pb.Type = DescriptorTypeStorageBuffer
			case ResourceUsageAccelerationStructure:
				pb.Type = DescriptorTypeAccelerationStructure
			}
			planned.Bindings = append(planned.Bindings, pb)
		}
		slices.SortFunc(planned.Bindings, func(a, b PlannedBinding) int {
			return int(a.Binding) - int(b.Binding)
		})

		planned.LayoutID = genID(descriptorSetLayoutID(planned.setLayoutBindings()), int(planned.PushConstantSize), p.pushConstantStages())
		for i := range p.graphics {
			planned.PipelineKeys = append(planned.PipelineKeys,
				graphicsPipelineKey(&p.graphics[i], planned.colorFormats(), planned.depthFormat(), planned.LayoutID))
		}
		for i := range p.compute {
			planned.PipelineKeys = append(planned.PipelineKeys, computePipelineKey(&p.compute[i], planned.LayoutID))
		}
		if p.rayTracing != nil {
			planned.PipelineKeys = append(planned.PipelineKeys, rayTracingPipelineKey(p.rayTracing, planned.LayoutID))
		}
	}
	return nil
}

func (c *compiler) attachment(planned *PlannedPass, a *resourceAccess, usage ResourceUsage) error {
	r := c.plan.Resource(a.name)
	att := PlannedAttachment{
		Resource: a.name,
		Format:   r.Description.Format,
		LoadOp:   RenderAttachmentLoadOpLoad,
		StoreOp:  RenderAttachmentStoreOpStore,
		Clear:    a.clear,
	}
	if a.clear != nil {
		att.LoadOp = RenderAttachmentLoadOpClear
	}

	if usage == ResourceUsageDepthAttachment {
		if _, ok := a.clear.(DepthStencilClearValue); a.clear != nil && !ok {
			return configErrorf("Pass %q: depth attachment %q has a color clear value", planned.Name, a.name)
		}
		if !att.Format.IsDepth() {
			return configErrorf("Pass %q: depth attachment %q resolves to %s", planned.Name, a.name, att.Format)
		}
		planned.Depth = &att
		return nil
	}

	if _, ok := a.clear.(DepthStencilClearValue); ok {
		return configErrorf("Pass %q: color attachment %q has a depth clear value", planned.Name, a.name)
	}
	if att.Format.IsDepth() {
		return configErrorf("Pass %q: color attachment %q resolves to %s", planned.Name, a.name, att.Format)
	}
	planned.Color = append(planned.Color, att)
	return nil
}
