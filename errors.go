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

import "goarrg.com/debug"

// ErrorConfiguration is returned by Build for graphs that can never produce a frame:
// cycles, duplicate writers, missing external resources and incompatible formats.
type ErrorConfiguration struct{}

func (ErrorConfiguration) Is(target error) bool {
	_, ok := target.(ErrorConfiguration)
	return ok
}

func (ErrorConfiguration) Error() string {
	return "Configuration Error"
}

// ErrorSwapchainStale is returned by Swapchain implementations when the surface is out of date,
// the graph recreates the swapchain at the next frame boundary.
type ErrorSwapchainStale struct{}

func (ErrorSwapchainStale) Is(target error) bool {
	_, ok := target.(ErrorSwapchainStale)
	return ok
}

func (ErrorSwapchainStale) Error() string {
	return "Swapchain Stale"
}

type ErrorShaderCompile struct{}

func (ErrorShaderCompile) Is(target error) bool {
	_, ok := target.(ErrorShaderCompile)
	return ok
}

func (ErrorShaderCompile) Error() string {
	return "Shader Compile Failed"
}

// ErrorOutOfMemory is fatal, once returned the graph refuses to build until destroyed.
type ErrorOutOfMemory struct{}

func (ErrorOutOfMemory) Is(target error) bool {
	_, ok := target.(ErrorOutOfMemory)
	return ok
}

func (ErrorOutOfMemory) Error() string {
	return "Out Of Memory"
}

// ErrorPassFailed wraps a panic or error raised by a pass recording callback.
type ErrorPassFailed struct{}

func (ErrorPassFailed) Is(target error) bool {
	_, ok := target.(ErrorPassFailed)
	return ok
}

func (ErrorPassFailed) Error() string {
	return "Pass Failed"
}

// ErrorSkipFrame is returned by BeginFrame when there is nothing to render into,
// it is not a failure and the caller should simply try again next frame.
type ErrorSkipFrame struct{}

func (ErrorSkipFrame) Is(target error) bool {
	_, ok := target.(ErrorSkipFrame)
	return ok
}

func (ErrorSkipFrame) Error() string {
	return "Skip Frame"
}

func configErrorf(format string, args ...any) error {
	return debug.ErrorWrapf(ErrorConfiguration{}, format, args...)
}
