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
)

type MemoryBarrierInfo struct {
	Stage  PipelineStage
	Access AccessFlags
}

type MemoryBarrier struct {
	Src MemoryBarrierInfo
	Dst MemoryBarrierInfo
}

type BufferBarrierInfo struct {
	Stage  PipelineStage
	Access AccessFlags
}

type BufferBarrier struct {
	Buffer Buffer
	Src    BufferBarrierInfo
	Dst    BufferBarrierInfo
}

type ImageBarrierInfo struct {
	Stage  PipelineStage
	Access AccessFlags
	Layout ImageLayout
}

func (i ImageBarrierInfo) String() string {
	return fmt.Sprintf("%s/%s/%s", i.Layout, i.Stage, i.Access)
}

type ImageBarrier struct {
	Image Image
	Src   ImageBarrierInfo
	Dst   ImageBarrierInfo
}

// ResourceUsage is how a pass touches a resource, it selects the layout, access and stage the pass requires.
type ResourceUsage uint32

const (
	ResourceUsageColorAttachment ResourceUsage = iota + 1
	ResourceUsageDepthAttachment
	ResourceUsageSampled
	ResourceUsageStorageRead
	ResourceUsageStorageWrite
	ResourceUsageBlitSrc
	ResourceUsageBlitDst
	ResourceUsagePresent
	ResourceUsageBufferRead
	ResourceUsageBufferWrite
	ResourceUsageAccelerationStructure
)

func (u ResourceUsage) String() string {
	switch u {
	case ResourceUsageColorAttachment:
		return "ColorAttachment"
	case ResourceUsageDepthAttachment:
		return "DepthAttachment"
	case ResourceUsageSampled:
		return "Sampled"
	case ResourceUsageStorageRead:
		return "StorageRead"
	case ResourceUsageStorageWrite:
		return "StorageWrite"
	case ResourceUsageBlitSrc:
		return "BlitSrc"
	case ResourceUsageBlitDst:
		return "BlitDst"
	case ResourceUsagePresent:
		return "Present"
	case ResourceUsageBufferRead:
		return "BufferRead"
	case ResourceUsageBufferWrite:
		return "BufferWrite"
	case ResourceUsageAccelerationStructure:
		return "AccelerationStructure"
	}
	return fmt.Sprintf("ResourceUsage(%d)", uint32(u))
}

func (u ResourceUsage) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u ResourceUsage) imageUsage() ImageUsageFlags {
	switch u {
	case ResourceUsageColorAttachment:
		return ImageUsageColorAttachment
	case ResourceUsageDepthAttachment:
		return ImageUsageDepthStencilAttachment
	case ResourceUsageSampled:
		return ImageUsageSampled
	case ResourceUsageStorageRead, ResourceUsageStorageWrite:
		return ImageUsageStorage
	case ResourceUsageBlitSrc:
		return ImageUsageTransferSrc
	case ResourceUsageBlitDst:
		return ImageUsageTransferDst
	}
	return 0
}

// shaderStage maps the stages a pass kind runs shaders in, used for sampled and storage accesses.
func (k PassKind) shaderStage() PipelineStage {
	switch k {
	case PassKindGraphics:
		return PipelineStageFragmentShader
	case PassKindCompute:
		return PipelineStageCompute
	case PassKindRayTracing:
		return PipelineStageRayTracing
	case PassKindBlit:
		return PipelineStageTransfer
	}
	return PipelineStageAll
}

/*
requiredState returns the layout, access and stage a pass of kind k needs for usage u:

	Colour attachment   COLOR_ATTACHMENT_OPTIMAL          COLOR_ATTACHMENT_WRITE        COLOR_ATTACHMENT_OUTPUT
	Depth attachment    DEPTH_STENCIL_ATTACHMENT_OPTIMAL  DEPTH_STENCIL_{READ,WRITE}    EARLY_FRAGMENT_TESTS
	Sampled             SHADER_READ_ONLY_OPTIMAL          SHADER_READ                   FRAGMENT / COMPUTE / RAY_TRACING
	Storage             GENERAL                           SHADER_{READ|WRITE}           COMPUTE / RAY_TRACING
	Blit source         TRANSFER_SRC_OPTIMAL              TRANSFER_READ                 TRANSFER
	Blit destination    TRANSFER_DST_OPTIMAL              TRANSFER_WRITE                TRANSFER
	Present             PRESENT_SRC                       0                             BOTTOM_OF_PIPE

Depth writes also cover LATE_FRAGMENT_TESTS so the following barrier waits for every depth store.
*/
func requiredState(k PassKind, u ResourceUsage) ImageBarrierInfo {
	switch u {
	case ResourceUsageColorAttachment:
		return ImageBarrierInfo{
			Layout: ImageLayoutColorAttachment,
			Access: AccessFlagColorAttachmentWrite,
			Stage:  PipelineStageColorAttachmentOutput,
		}
	case ResourceUsageDepthAttachment:
		return ImageBarrierInfo{
			Layout: ImageLayoutDepthStencilAttachment,
			Access: AccessFlagDepthStencilRead | AccessFlagDepthStencilWrite,
			Stage:  PipelineStageEarlyFragmentTests | PipelineStageLateFragmentTests,
		}
	case ResourceUsageSampled:
		return ImageBarrierInfo{
			Layout: ImageLayoutShaderReadOnly,
			Access: AccessFlagShaderRead,
			Stage:  k.shaderStage(),
		}
	case ResourceUsageStorageRead:
		return ImageBarrierInfo{
			Layout: ImageLayoutGeneral,
			Access: AccessFlagShaderRead,
			Stage:  k.shaderStage(),
		}
	case ResourceUsageStorageWrite:
		return ImageBarrierInfo{
			Layout: ImageLayoutGeneral,
			Access: AccessFlagShaderRead | AccessFlagShaderWrite,
			Stage:  k.shaderStage(),
		}
	case ResourceUsageBlitSrc:
		return ImageBarrierInfo{
			Layout: ImageLayoutTransferSrc,
			Access: AccessFlagTransferRead,
			Stage:  PipelineStageTransfer,
		}
	case ResourceUsageBlitDst:
		return ImageBarrierInfo{
			Layout: ImageLayoutTransferDst,
			Access: AccessFlagTransferWrite,
			Stage:  PipelineStageTransfer,
		}
	case ResourceUsagePresent:
		return ImageBarrierInfo{
			Layout: ImageLayoutPresent,
			Access: AccessFlagNone,
			Stage:  PipelineStageBottomOfPipe,
		}
	case ResourceUsageBufferRead:
		return ImageBarrierInfo{Access: AccessFlagShaderRead, Stage: k.shaderStage()}
	case ResourceUsageBufferWrite:
		return ImageBarrierInfo{Access: AccessFlagShaderRead | AccessFlagShaderWrite, Stage: k.shaderStage()}
	case ResourceUsageAccelerationStructure:
		return ImageBarrierInfo{Access: AccessFlagAccelerationStructureRead, Stage: k.shaderStage()}
	}
	abort("Unknown resource usage: %d", u)
	return ImageBarrierInfo{}
}

/*
accessState tracks one physical resource while the compiler walks the schedule. Reads that follow a
write only need to wait on that write, so the state keeps the last write separately from the read stages
that have already been made visible.
*/
type accessState struct {
	layout ImageLayout

	writeStage  PipelineStage
	writeAccess AccessFlags

	readStage  PipelineStage
	readAccess AccessFlags
}

// transition moves the state to dst and returns the barrier that is needed, if any.
func (s *accessState) transition(dst ImageBarrierInfo) (ImageBarrierInfo, bool) {
	write := dst.Access.IsWrite()
	layoutChange := s.layout != dst.Layout

	switch {
	case layoutChange || write:
		// a layout transition is itself a write and must wait on every prior access
		src := ImageBarrierInfo{
			Layout: s.layout,
			Stage:  s.writeStage | s.readStage,
			Access: s.writeAccess,
		}
		if src.Stage == PipelineStageNone {
			src.Stage = PipelineStageTopOfPipe
		}
		s.layout = dst.Layout
		if write {
			s.writeStage, s.writeAccess = dst.Stage, dst.Access&writeAccessMask
			s.readStage, s.readAccess = PipelineStageNone, AccessFlagNone
		} else {
			// later readers chain through the transition, which completes before dst.Stage
			s.writeStage, s.writeAccess = src.Stage|dst.Stage, src.Access
			s.readStage, s.readAccess = dst.Stage, dst.Access
		}
		return src, true

	case !hasBits(s.readStage, dst.Stage) || !hasBits(s.readAccess, dst.Access):
		src := ImageBarrierInfo{
			Layout: s.layout,
			Stage:  s.writeStage,
			Access: s.writeAccess,
		}
		if src.Stage == PipelineStageNone {
			src.Stage = PipelineStageTopOfPipe
		}
		s.readStage |= dst.Stage
		s.readAccess |= dst.Access
		return src, true
	}

	return ImageBarrierInfo{}, false
}
