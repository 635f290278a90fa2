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

package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/headless"
)

func newTable(buf *bytes.Buffer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	return table
}

func passTable(buf *bytes.Buffer, plan *rendergraph.ExecutionPlan) {
	table := newTable(buf, "#", "Pass", "Kind", "Barriers", "Bindings", "Attachments")
	for i, p := range plan.Passes {
		attachments := []string{}
		for _, a := range p.Color {
			attachments = append(attachments, fmt.Sprintf("%s(%s)", a.Resource, a.LoadOp))
		}
		if p.Depth != nil {
			attachments = append(attachments, fmt.Sprintf("%s(%s)", p.Depth.Resource, p.Depth.LoadOp))
		}
		bindings := []string{}
		for _, b := range p.Bindings {
			bindings = append(bindings, fmt.Sprintf("%d:%s", b.Binding, b.Resource))
		}
		table.Append([]string{
			fmt.Sprintf("%d", i),
			p.Name,
			p.Kind.String(),
			fmt.Sprintf("%d", len(p.Barriers)),
			strings.Join(bindings, " "),
			strings.Join(attachments, " "),
		})
	}
	table.Render()
}

func barrierTable(buf *bytes.Buffer, plan *rendergraph.ExecutionPlan) {
	table := newTable(buf, "Before", "Resource", "Src", "Dst")
	for _, p := range plan.Passes {
		for _, b := range p.Barriers {
			table.Append([]string{p.Name, b.Resource, b.Src.String(), b.Dst.String()})
		}
	}
	for _, b := range plan.FinalBarriers {
		table.Append([]string{"<end of frame>", b.Resource, b.Src.String(), b.Dst.String()})
	}
	table.Render()
}

func resourceTable(buf *bytes.Buffer, plan *rendergraph.ExecutionPlan) {
	table := newTable(buf, "Resource", "Kind", "Description", "Physical", "Lifetime", "Writer", "Readers", "History")
	for _, r := range plan.Resources {
		desc, physical, lifetime := "", "", ""
		if r.Kind == rendergraph.ResourceKindImage {
			desc = r.Description.String()
		}
		switch {
		case r.External:
			physical = "external"
		case r.Physical >= 0:
			physical = fmt.Sprintf("%d", r.Physical)
		}
		if r.First >= 0 {
			lifetime = fmt.Sprintf("[%d, %d]", r.First, r.Last)
		}
		table.Append([]string{
			r.Name, r.Kind.String(), desc, physical, lifetime, r.Writer, strings.Join(r.Readers, " "), r.HistoryTag,
		})
	}
	table.SetFooter([]string{"", "", "", fmt.Sprintf("%d images", len(plan.Physical)), "", "", "", fmt.Sprintf("%d pairs", len(plan.History))})
	table.Render()
}

func timingTable(buf *bytes.Buffer, stats rendergraph.FrameStats) {
	table := newTable(buf, "Pass", "GPU time")
	for _, p := range stats.Passes {
		table.Append([]string{p.Name, p.GPUTime.String()})
	}
	table.SetFooter([]string{fmt.Sprintf("frame %d", stats.Frame), stats.Total.String()})
	table.Render()
}

func deviceTable(buf *bytes.Buffer, device *headless.Device, stats rendergraph.FrameStats) {
	table := newTable(buf, "Counter", "Value")
	table.Append([]string{"Submissions", fmt.Sprintf("%d", len(device.Submissions()))})
	table.Append([]string{"Discarded", fmt.Sprintf("%d", device.Discarded())})
	table.Append([]string{"Images", fmt.Sprintf("%d", device.LiveCount("image"))})
	table.Append([]string{"Pipelines", fmt.Sprintf("%d", device.LiveCount("pipeline"))})
	table.Append([]string{"Pipeline compiles", fmt.Sprintf("%d", stats.Pipelines.Compiles)})
	table.Append([]string{"Pipeline hits", fmt.Sprintf("%d", stats.Pipelines.Hits)})
	table.Append([]string{"Pipeline evictions", fmt.Sprintf("%d", stats.Pipelines.Evictions)})
	table.Render()
}

func printTables(plan *rendergraph.ExecutionPlan, stats rendergraph.FrameStats, device *headless.Device) {
	var buf bytes.Buffer
	for _, section := range []struct {
		title string
		print func()
	}{
		{"Passes", func() { passTable(&buf, plan) }},
		{"Barriers", func() { barrierTable(&buf, plan) }},
		{"Resources", func() { resourceTable(&buf, plan) }},
		{"Timings", func() { timingTable(&buf, stats) }},
		{"Device", func() { deviceTable(&buf, device, stats) }},
	} {
		fmt.Fprintf(&buf, "%s (%dx%d)\n", section.title, plan.Width, plan.Height)
		section.print()
		buf.WriteString("\n")
	}
	os.Stdout.Write(buf.Bytes())
}
