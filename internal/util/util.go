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

package util

import (
	"fmt"
	"unsafe"

	"goarrg.com/debug"
)

var logger = debug.NewLogger("rendergraph", "internal", "util")

func abort(format string, args ...any) {
	logger.EPrintf(format, args...)
	panic(fmt.Sprintf(format, args...))
}

// Bytes returns the in memory representation of data, the layout must already match what the shader expects.
func Bytes[T comparable](data *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(data)), unsafe.Sizeof(*data))
}

func BytesSlice[T comparable](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice(
		(*byte)(unsafe.Pointer(unsafe.SliceData(data))), uintptr(len(data))*unsafe.Sizeof(data[0]),
	)
}

type HostWriter interface {
	HostWrite(offset uint64, data []byte) error
}

func HostWrite[T comparable](target HostWriter, offset uint64, data T) (uint64, error) {
	return uint64(unsafe.Sizeof(data)), target.HostWrite(offset, Bytes(&data))
}

func HostWriteSlice[T comparable](target HostWriter, offset uint64, data []T) (uint64, error) {
	b := BytesSlice(data)
	return uint64(len(b)), target.HostWrite(offset, b)
}
