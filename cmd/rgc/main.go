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
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"goarrg.com/debug"
	"goarrg.com/rhi/rendergraph"
	"goarrg.com/rhi/rendergraph/headless"
	"goarrg.com/rhi/rendergraph/paths"
	"goarrg.com/rhi/rendergraph/resmgr"
	"goarrg.com/rhi/rendergraph/scene"
)

var flags flag.FlagSet

type pathName string

func (p *pathName) UnmarshalText(data []byte) error {
	if !slices.Contains(paths.Names(), string(data)) {
		return debug.Errorf("Invalid value: %q, valid values are %v", data, paths.Names())
	}
	*p = pathName(data)
	return nil
}

func (p pathName) MarshalText() (text []byte, err error) {
	return []byte(p), nil
}

type features map[string]bool

func (f *features) UnmarshalText(data []byte) error {
	if *f == nil {
		*f = features{}
	}
	for _, name := range strings.Split(string(data), ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if v, ok := strings.CutPrefix(name, "-"); ok {
			(*f)[v] = false
		} else {
			(*f)[name] = true
		}
	}
	return nil
}

func (f features) MarshalText() (text []byte, err error) {
	names := []string{}
	for name, on := range f {
		if !on {
			name = "-" + name
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return []byte(strings.Join(names, ",")), nil
}

type options struct {
	config  string
	path    pathName
	width   int
	height  int
	frames  int
	json    bool
	shaders string
	noRT    bool
	feats   features
}

func main() {
	debug.SetLevel(debug.LogLevelWarn)

	flags.Usage = help
	flags.Init("", flag.ExitOnError)

	v := flags.Bool("v", false, "Verbose - Print high level tasks")
	vv := flags.Bool("vv", false, "Very Verbose - Print everything")

	o := options{}
	flags.StringVar(&o.config, "config", "", "Loads a .toml, .yaml or .yml rendergraph.Config, flags override its values.")
	flags.TextVar(&o.path, "path", pathName("forward"), fmt.Sprintf("Sets the render path, one of %v.", paths.Names()))
	flags.IntVar(&o.width, "width", 0, "Sets the swapchain width.\nDefaults to the config width or 1280.")
	flags.IntVar(&o.height, "height", 0, "Sets the swapchain height.\nDefaults to the config height or 720.")
	flags.IntVar(&o.frames, "frames", 4, "Sets the number of frames to render.")
	flags.BoolVar(&o.json, "json", false, "Prints the config, plan and timings as JSON instead of tables.")
	flags.StringVar(&o.shaders, "shaders", "", "Sets the shader directory.\n"+
		"When empty, stub SPIR-V for every shader the path uses is written to a temporary directory.")
	flags.BoolVar(&o.noRT, "no-rt", false, "Creates the headless device without ray tracing support.")
	flags.TextVar(&o.feats, "features", features{}, "Comma separated features to toggle, prefix with - to disable.\n"+
		"Known features are \"taa\", \"bloom\" and \"rayquery\".")

	err := flags.Parse(os.Args[1:])
	if err != nil {
		panic(err)
	}

	if *v {
		debug.SetLevel(debug.LogLevelInfo)
	} else if *vv {
		debug.SetLevel(debug.LogLevelVerbose)
	}

	pathSet := false
	flags.Visit(func(f *flag.Flag) {
		pathSet = pathSet || f.Name == "path"
	})
	if len(flags.Args()) > 0 {
		debug.EPrintf("Unexpected arguments: %v", flags.Args())
		help()
		os.Exit(2)
	}

	if err := run(o, pathSet); err != nil {
		debug.EPrintf("%v", err)
		os.Exit(1)
	}
}

func loadConfig(o options, pathSet bool) (rendergraph.Config, error) {
	cfg := rendergraph.Config{}
	if o.config != "" {
		var err error
		cfg, err = rendergraph.LoadConfigFile(o.config)
		if err != nil {
			return cfg, err
		}
	}
	if pathSet || cfg.RenderPath == "" {
		cfg.RenderPath = string(o.path)
	}
	if o.width > 0 {
		cfg.Width = int32(o.width)
	}
	if o.height > 0 {
		cfg.Height = int32(o.height)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = 1280, 720
	}
	if cfg.Features == nil {
		cfg.Features = map[string]bool{}
	}
	for name, on := range o.feats {
		cfg.Features[name] = on
	}
	if o.shaders != "" {
		cfg.ShaderDirectory = o.shaders
	}
	cfg.EnableTimestamps = true
	return cfg, cfg.Validate()
}

// demo holds everything the CLI creates, destroy tears it down in reverse.
type demo struct {
	device    *headless.Device
	queue     *rendergraph.DeferredQueue
	resources *resmgr.Manager
	scene     *scene.Scene
	graph     *rendergraph.Graph
}

func (d *demo) destroy() {
	if d.graph != nil {
		d.graph.Destroy()
	}
	d.device.WaitIdle()
	d.queue.Flush()
	if d.scene != nil {
		d.scene.Destroy()
	}
	if d.resources != nil {
		d.resources.Destroy()
	}
	d.queue.Flush()
}

func newScene(d *demo, cfg rendergraph.Config) error {
	camera := scene.NewCamera(mgl32.Vec3{3, 2, 4}, mgl32.Vec3{}, 60, float32(cfg.Width)/float32(cfg.Height))
	d.scene = scene.New(d.device, camera, d.resources)

	cube, err := scene.Cube(d.device)
	if err != nil {
		return err
	}
	d.scene.AddMesh(cube)
	plane, err := scene.Plane(d.device, 10)
	if err != nil {
		return err
	}
	d.scene.AddMesh(plane)

	red := resmgr.DefaultMaterial()
	red.Albedo = mgl32.Vec4{0.8, 0.1, 0.1, 1}
	cubeMaterial, err := d.resources.CreateMaterial(red)
	if err != nil {
		return err
	}
	floorMaterial, err := d.resources.CreateMaterial(resmgr.DefaultMaterial())
	if err != nil {
		return err
	}
	if err := d.resources.SyncMaterialsToGPU(); err != nil {
		return err
	}

	if _, err := d.scene.AddInstance(cube, cubeMaterial, mgl32.Translate3D(0, 0.5, 0)); err != nil {
		return err
	}
	if _, err := d.scene.AddInstance(plane, floorMaterial, mgl32.Ident4()); err != nil {
		return err
	}
	d.scene.SetBounds(8)
	return d.scene.RebuildTLAS()
}

func run(o options, pathSet bool) error {
	cfg, err := loadConfig(o, pathSet)
	if err != nil {
		return err
	}

	stubShaders := o.shaders == ""
	if stubShaders {
		dir, err := os.MkdirTemp("", "rgc-shaders-")
		if err != nil {
			return debug.ErrorWrapf(err, "Failed to create shader directory")
		}
		defer os.RemoveAll(dir)
		cfg.ShaderDirectory = dir
	}

	d := &demo{
		device: headless.New(headless.Config{
			Name:       "rgc",
			Extent:     rendergraph.Extent2i32{X: cfg.Width, Y: cfg.Height},
			RayTracing: !o.noRT,
		}),
		queue: rendergraph.NewDeferredQueue(cfg.MaxFramesInFlight),
	}
	defer d.destroy()

	d.resources, err = resmgr.New(d.device, d.queue, cfg)
	if err != nil {
		return err
	}
	if err := newScene(d, cfg); err != nil {
		return err
	}
	d.graph, err = rendergraph.NewGraph(d.device, d.resources, d.scene, d.queue, cfg)
	if err != nil {
		return err
	}

	path, err := paths.New(cfg.RenderPath, paths.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}
	if err := paths.Use(d.graph, path); err != nil {
		return err
	}
	if stubShaders {
		if err := headless.WriteShaders(cfg.ShaderDirectory, d.graph.Shaders()...); err != nil {
			return err
		}
	}

	plan, err := d.graph.Build()
	if err != nil {
		return err
	}
	if err := renderFrames(d, o.frames); err != nil {
		return err
	}
	d.device.WaitIdle()

	stats := d.graph.Stats()
	if o.json {
		return printJSON(&cfg, d.device.Properties(), plan, stats)
	}
	printTables(plan, stats, d.device)
	return nil
}

func renderFrames(d *demo, frames int) error {
	camera := d.scene.Camera()
	for range frames {
		ext := d.graph.Dimensions()
		camera.SetAspect(ext.X, ext.Y)
		camera.SetJitter(d.graph.FrameIndex(), ext.X, ext.Y)

		f, err := d.graph.BeginFrame()
		if errors.Is(err, rendergraph.ErrorSkipFrame{}) {
			continue
		}
		if err != nil {
			return err
		}

		u := resmgr.NewGlobalUniforms(d.scene.View(), d.scene.Light(), ext.X, ext.Y, uint32(f.Index()), uint32(f.Index()+1), resmgr.DisplayModeFinal)
		if err := d.resources.UpdateGlobalUniforms(f.Slot(), u); err != nil {
			return err
		}
		if err := d.graph.Execute(f); err != nil {
			return err
		}
		d.scene.EndFrame()
		camera.Orbit(mgl32.DegToRad(2), 0)
	}
	return nil
}

func printJSON(cfg *rendergraph.Config, props rendergraph.Properties, plan *rendergraph.ExecutionPlan, stats rendergraph.FrameStats) error {
	timings := map[string]any{
		"Frame":     stats.Frame,
		"Total":     stats.Total.String(),
		"Pipelines": stats.Pipelines,
	}
	passes := []map[string]string{}
	for _, p := range stats.Passes {
		passes = append(passes, map[string]string{"Name": p.Name, "GPUTime": p.GPUTime.String()})
	}
	timings["Passes"] = passes

	j, err := json.MarshalIndent(map[string]any{
		"Config": cfg,
		"Device": &props,
		"Plan":   plan,
		"Stats":  timings,
	}, "", "\t")
	if err != nil {
		return debug.ErrorWrapf(err, "Failed to marshal output")
	}
	fmt.Println(string(j))
	return nil
}

func help() {
	fmt.Fprintf(os.Stderr, "rgc builds a render path on a headless device, renders a few frames of a test scene and\n"+
		"prints the compiled plan: pass order, barriers, resource aliasing and per pass GPU timings.\n"+
		"\nNo GPU is needed, the headless device records every command so the output shows exactly what a\n"+
		"real device would have been asked to do.\n"+
		"\n")
	args := ""
	flags.VisitAll(func(f *flag.Flag) {
		n, u := flag.UnquoteUsage(f)
		if f.DefValue != "" {
			u += "\n\nDefaults to \"" + f.DefValue + "\"."
		}
		args += "\t-" + f.Name + " " + n + "\n\t\t" + strings.ReplaceAll(strings.TrimSpace(u), "\n", "\n\t\t") + "\n"
	})
	fmt.Fprintf(os.Stderr, "Usage:\n\t%s [arguments]\n\nArguments:\n%s", filepath.Base(os.Args[0]), args)
}
