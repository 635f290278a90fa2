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
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gogpu/naga"
	"goarrg.com/debug"
	"golang.org/x/exp/maps"
)

const (
	spirvExtension = ".spv"
	wgslExtension  = ".wgsl"
)

/*
ShaderLoader resolves shader names to SPIR-V under a single directory. For a name such as "gbuffer.frag"
it tries "gbuffer.frag.spv", then "gbuffer.frag" holding raw SPIR-V, then "gbuffer.frag.wgsl" which is
compiled with naga. Loaded shaders are cached until the file changes.
*/
type ShaderLoader struct {
	dir string

	mtx     sync.Mutex
	cache   map[string]*Shader
	changed map[string]struct{}

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewShaderLoader(dir string) *ShaderLoader {
	return &ShaderLoader{
		dir:     dir,
		cache:   map[string]*Shader{},
		changed: map[string]struct{}{},
	}
}

func (l *ShaderLoader) Dir() string {
	return l.dir
}

func (l *ShaderLoader) Load(name string) (*Shader, error) {
	l.mtx.Lock()
	if s, ok := l.cache[name]; ok {
		l.mtx.Unlock()
		return s, nil
	}
	l.mtx.Unlock()

	stage, err := ShaderStageFromName(name)
	if err != nil {
		return nil, err
	}

	s, err := l.load(name, stage)
	if err != nil {
		return nil, err
	}

	l.mtx.Lock()
	l.cache[name] = s
	l.mtx.Unlock()
	return s, nil
}

func (l *ShaderLoader) load(name string, stage ShaderStage) (*Shader, error) {
	base := filepath.Join(l.dir, filepath.FromSlash(name))

	for _, file := range []string{base + spirvExtension, base} {
		data, err := os.ReadFile(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, debug.ErrorWrapf(ErrorShaderCompile{}, "Failed to read %q: %v", file, err)
		}
		logger.VPrintf("Loaded shader %q from %q", name, file)
		return newShader(name, stage, data)
	}

	file := base + wgslExtension
	src, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, debug.ErrorWrapf(ErrorShaderCompile{}, "Shader %q not found in %q", name, l.dir)
	}
	if err != nil {
		return nil, debug.ErrorWrapf(ErrorShaderCompile{}, "Failed to read %q: %v", file, err)
	}
	spv, err := naga.Compile(string(src))
	if err != nil {
		return nil, debug.ErrorWrapf(ErrorShaderCompile{}, "Failed to compile %q: %v", file, err)
	}
	logger.IPrintf("Compiled shader %q from %q", name, file)
	return newShader(name, stage, spv)
}

// Evict drops name from the cache so the next Load reads it from disk again.
func (l *ShaderLoader) Evict(name string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	delete(l.cache, name)
}

/*
Watch starts watching the shader directory tree, every modified file evicts its shader from the
cache and is reported by the next call to Changed.
*/
func (l *ShaderLoader) Watch() error {
	if l.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return debug.ErrorWrapf(err, "Failed to create shader watcher")
	}
	err = filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return debug.ErrorWrapf(err, "Failed to watch %q", l.dir)
	}

	l.watcher = w
	l.done = make(chan struct{})
	go l.watch(w, l.done)
	logger.IPrintf("Watching %q for shader changes", l.dir)
	return nil
}

func (l *ShaderLoader) watch(w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			name := l.shaderName(event.Name)
			if name == "" {
				continue
			}
			logger.IPrintf("Shader %q changed (%s)", name, event.Op)
			l.mtx.Lock()
			delete(l.cache, name)
			l.changed[name] = struct{}{}
			l.mtx.Unlock()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.WPrintf("Shader watcher: %v", err)
		}
	}
}

func (l *ShaderLoader) shaderName(file string) string {
	rel, err := filepath.Rel(l.dir, file)
	if err != nil {
		return ""
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, spirvExtension)
	rel = strings.TrimSuffix(rel, wgslExtension)
	if _, err := ShaderStageFromName(rel); err != nil {
		return ""
	}
	return rel
}

// Changed returns the sorted names of shaders modified since the last call.
func (l *ShaderLoader) Changed() []string {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if len(l.changed) == 0 {
		return nil
	}
	names := maps.Keys(l.changed)
	slices.Sort(names)
	clear(l.changed)
	return names
}

func (l *ShaderLoader) Close() error {
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	<-l.done
	l.watcher = nil
	return err
}
