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
	"encoding/binary"
	"os"
	"path/filepath"

	"goarrg.com/debug"
)

const spirvMagic = 0x07230203

// StubSPIRV returns a valid, empty SPIR-V module header, enough for the shader loader and headless modules.
func StubSPIRV() []byte {
	words := []uint32{spirvMagic, 0x00010600, 0, 1, 0}
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[4*i:], w)
	}
	return data
}

// WriteShaders writes a stub "<name>.spv" under dir for every name, creating directories as needed.
func WriteShaders(dir string, names ...string) error {
	spv := StubSPIRV()
	for _, name := range names {
		file := filepath.Join(dir, filepath.FromSlash(name)+".spv")
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return debug.ErrorWrapf(err, "Failed to create %q", filepath.Dir(file))
		}
		if err := os.WriteFile(file, spv, 0o644); err != nil {
			return debug.ErrorWrapf(err, "Failed to write %q", file)
		}
	}
	return nil
}
