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
	"goarrg.com/rhi/rendergraph/internal/vk"
)

type RenderAttachmentLoadOp uint32

const (
	RenderAttachmentLoadOpLoad     RenderAttachmentLoadOp = vk.ATTACHMENT_LOAD_OP_LOAD
	RenderAttachmentLoadOpClear    RenderAttachmentLoadOp = vk.ATTACHMENT_LOAD_OP_CLEAR
	RenderAttachmentLoadOpDontCare RenderAttachmentLoadOp = vk.ATTACHMENT_LOAD_OP_DONT_CARE
)

func (op RenderAttachmentLoadOp) String() string {
	switch op {
	case RenderAttachmentLoadOpLoad:
		return "LOAD"
	case RenderAttachmentLoadOpClear:
		return "CLEAR"
	case RenderAttachmentLoadOpDontCare:
		return "DONT_CARE"
	}
	abort("Unknown load op: %d", op)
	return ""
}

func (op RenderAttachmentLoadOp) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

type RenderAttachmentStoreOp uint32

const (
	RenderAttachmentStoreOpStore    RenderAttachmentStoreOp = vk.ATTACHMENT_STORE_OP_STORE
	RenderAttachmentStoreOpDontCare RenderAttachmentStoreOp = vk.ATTACHMENT_STORE_OP_DONT_CARE
)

func (op RenderAttachmentStoreOp) String() string {
	switch op {
	case RenderAttachmentStoreOpStore:
		return "STORE"
	case RenderAttachmentStoreOpDontCare:
		return "DONT_CARE"
	}
	abort("Unknown store op: %d", op)
	return ""
}

func (op RenderAttachmentStoreOp) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

type RenderColorAttachment struct {
	Image      Image
	Layout     ImageLayout
	LoadOp     RenderAttachmentLoadOp
	StoreOp    RenderAttachmentStoreOp
	ClearValue ClearValue
}

type RenderDepthAttachment struct {
	Image      Image
	Layout     ImageLayout
	LoadOp     RenderAttachmentLoadOp
	StoreOp    RenderAttachmentStoreOp
	ClearValue DepthStencilClearValue
}

type RenderAttachments struct {
	Color []RenderColorAttachment
	// Depth is unused when Depth.Image is nil.
	Depth RenderDepthAttachment
}
