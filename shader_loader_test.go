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
	"encoding/binary"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalSPIRV is a header only module, enough to pass validation.
func minimalSPIRV(bound uint32) []byte {
	data := make([]byte, 20)
	binary.LittleEndian.PutUint32(data[0:], spirvMagic)
	binary.LittleEndian.PutUint32(data[4:], 0x00010600)
	binary.LittleEndian.PutUint32(data[12:], bound)
	return data
}

func writeShader(t *testing.T, dir, file string, data []byte) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(file))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestShaderStageFromName(t *testing.T) {
	for name, want := range map[string]ShaderStage{
		"gbuffer.vert":           ShaderStageVertex,
		"gbuffer.frag.spv":       ShaderStageFragment,
		"taa.comp":               ShaderStageCompute,
		"path.rgen":              ShaderStageRayGen,
		"sky.rmiss.wgsl":         ShaderStageMiss,
		"lit.rchit":              ShaderStageClosestHit,
		"alpha.rahit":            ShaderStageAnyHit,
		"sphere.rint":            ShaderStageIntersection,
		"material.rcall":         ShaderStageCallable,
		"svgf/atrous.comp.spv":   ShaderStageCompute,
		"nested/dir/shadow.vert": ShaderStageVertex,
	} {
		s, err := ShaderStageFromName(name)
		assert.NoError(t, err, name)
		assert.Equal(t, want, s, name)
	}

	_, err := ShaderStageFromName("readme.txt")
	assert.ErrorIs(t, err, ErrorShaderCompile{})
}

func TestNewShaderValidation(t *testing.T) {
	s, err := newShader("a.comp", ShaderStageCompute, minimalSPIRV(7))
	require.NoError(t, err)
	assert.Equal(t, uint32(spirvMagic), s.SPIRV[0])
	assert.Equal(t, uint32(7), s.SPIRV[3])
	assert.Len(t, s.SPIRV, 5)

	_, err = newShader("a.comp", ShaderStageCompute, minimalSPIRV(1)[:16])
	assert.ErrorIs(t, err, ErrorShaderCompile{})

	_, err = newShader("a.comp", ShaderStageCompute, append(minimalSPIRV(1), 0))
	assert.ErrorIs(t, err, ErrorShaderCompile{})

	bad := minimalSPIRV(1)
	bad[0] = 0xFF
	_, err = newShader("a.comp", ShaderStageCompute, bad)
	assert.ErrorIs(t, err, ErrorShaderCompile{})
}

func TestShaderLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, dir, "compiled.comp.spv", minimalSPIRV(1))
	writeShader(t, dir, "raw.frag", minimalSPIRV(2))
	writeShader(t, dir, "post/taa.comp.spv", minimalSPIRV(3))
	writeShader(t, dir, "broken.comp.wgsl", []byte("this is not wgsl {"))
	writeShader(t, dir, "garbage.vert.spv", []byte("not spirv at all, not at all"))

	l := NewShaderLoader(dir)
	assert.Equal(t, dir, l.Dir())

	s, err := l.Load("compiled.comp")
	require.NoError(t, err)
	assert.Equal(t, "compiled.comp", s.ID)
	assert.Equal(t, ShaderStageCompute, s.Stage)

	s, err = l.Load("raw.frag")
	require.NoError(t, err)
	assert.Equal(t, ShaderStageFragment, s.Stage)
	assert.Equal(t, uint32(2), s.SPIRV[3])

	s, err = l.Load("post/taa.comp")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), s.SPIRV[3])

	_, err = l.Load("missing.comp")
	assert.ErrorIs(t, err, ErrorShaderCompile{})
	_, err = l.Load("broken.comp")
	assert.ErrorIs(t, err, ErrorShaderCompile{})
	_, err = l.Load("garbage.vert")
	assert.ErrorIs(t, err, ErrorShaderCompile{})
	_, err = l.Load("compiled.txt")
	assert.ErrorIs(t, err, ErrorShaderCompile{})
}

func TestShaderLoaderCache(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, dir, "a.comp.spv", minimalSPIRV(1))

	l := NewShaderLoader(dir)
	first, err := l.Load("a.comp")
	require.NoError(t, err)

	writeShader(t, dir, "a.comp.spv", minimalSPIRV(2))
	cached, err := l.Load("a.comp")
	require.NoError(t, err)
	assert.Same(t, first, cached)

	l.Evict("a.comp")
	reloaded, err := l.Load("a.comp")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), reloaded.SPIRV[3])
}

func TestShaderLoaderWatch(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, dir, "a.comp.spv", minimalSPIRV(1))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

	l := NewShaderLoader(dir)
	_, err := l.Load("a.comp")
	require.NoError(t, err)

	require.NoError(t, l.Watch())
	// watching twice is a no-op
	require.NoError(t, l.Watch())

	writeShader(t, dir, "a.comp.spv", minimalSPIRV(2))
	writeShader(t, dir, "sub/b.frag.spv", minimalSPIRV(3))
	writeShader(t, dir, "notes.txt", []byte("ignored"))

	var changed []string
	assert.Eventually(t, func() bool {
		for _, name := range l.Changed() {
			if !slices.Contains(changed, name) {
				changed = append(changed, name)
			}
		}
		return slices.Contains(changed, "a.comp") && slices.Contains(changed, "sub/b.frag")
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotContains(t, changed, "notes.txt")

	s, err := l.Load("a.comp")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), s.SPIRV[3])

	require.NoError(t, l.Close())
	// closing twice is a no-op
	assert.NoError(t, l.Close())
}
