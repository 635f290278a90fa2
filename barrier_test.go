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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredState(t *testing.T) {
	tests := []struct {
		kind  PassKind
		usage ResourceUsage
		want  ImageBarrierInfo
	}{
		{PassKindGraphics, ResourceUsageColorAttachment, ImageBarrierInfo{
			Layout: ImageLayoutColorAttachment, Access: AccessFlagColorAttachmentWrite, Stage: PipelineStageColorAttachmentOutput,
		}},
		{PassKindGraphics, ResourceUsageDepthAttachment, ImageBarrierInfo{
			Layout: ImageLayoutDepthStencilAttachment,
			Access: AccessFlagDepthStencilRead | AccessFlagDepthStencilWrite,
			Stage:  PipelineStageEarlyFragmentTests | PipelineStageLateFragmentTests,
		}},
		{PassKindGraphics, ResourceUsageSampled, ImageBarrierInfo{
			Layout: ImageLayoutShaderReadOnly, Access: AccessFlagShaderRead, Stage: PipelineStageFragmentShader,
		}},
		{PassKindCompute, ResourceUsageSampled, ImageBarrierInfo{
			Layout: ImageLayoutShaderReadOnly, Access: AccessFlagShaderRead, Stage: PipelineStageCompute,
		}},
		{PassKindRayTracing, ResourceUsageStorageWrite, ImageBarrierInfo{
			Layout: ImageLayoutGeneral, Access: AccessFlagShaderRead | AccessFlagShaderWrite, Stage: PipelineStageRayTracing,
		}},
		{PassKindCompute, ResourceUsageStorageRead, ImageBarrierInfo{
			Layout: ImageLayoutGeneral, Access: AccessFlagShaderRead, Stage: PipelineStageCompute,
		}},
		{PassKindBlit, ResourceUsageBlitSrc, ImageBarrierInfo{
			Layout: ImageLayoutTransferSrc, Access: AccessFlagTransferRead, Stage: PipelineStageTransfer,
		}},
		{PassKindBlit, ResourceUsageBlitDst, ImageBarrierInfo{
			Layout: ImageLayoutTransferDst, Access: AccessFlagTransferWrite, Stage: PipelineStageTransfer,
		}},
		{PassKindBlit, ResourceUsagePresent, ImageBarrierInfo{
			Layout: ImageLayoutPresent, Access: AccessFlagNone, Stage: PipelineStageBottomOfPipe,
		}},
		{PassKindRayTracing, ResourceUsageAccelerationStructure, ImageBarrierInfo{
			Access: AccessFlagAccelerationStructureRead, Stage: PipelineStageRayTracing,
		}},
	}
	for _, test := range tests {
		t.Run(test.kind.String()+"/"+test.usage.String(), func(t *testing.T) {
			assert.Equal(t, test.want, requiredState(test.kind, test.usage))
		})
	}

	assert.Panics(t, func() { requiredState(PassKindGraphics, ResourceUsage(0)) })
}

func TestTransitionReadAfterWrite(t *testing.T) {
	s := accessState{}

	src, ok := s.transition(requiredState(PassKindGraphics, ResourceUsageColorAttachment))
	assert.True(t, ok)
	assert.Equal(t, ImageBarrierInfo{Layout: ImageLayoutUndefined, Stage: PipelineStageTopOfPipe}, src)

	src, ok = s.transition(requiredState(PassKindCompute, ResourceUsageSampled))
	assert.True(t, ok)
	assert.Equal(t, ImageBarrierInfo{
		Layout: ImageLayoutColorAttachment,
		Stage:  PipelineStageColorAttachmentOutput,
		Access: AccessFlagColorAttachmentWrite,
	}, src)

	// already visible to compute
	_, ok = s.transition(requiredState(PassKindCompute, ResourceUsageSampled))
	assert.False(t, ok)

	src, ok = s.transition(requiredState(PassKindGraphics, ResourceUsageSampled))
	assert.True(t, ok)
	assert.Equal(t, ImageLayoutShaderReadOnly, src.Layout)
	assert.Equal(t, PipelineStageColorAttachmentOutput|PipelineStageCompute, src.Stage)
	assert.Equal(t, AccessFlagColorAttachmentWrite, src.Access)

	_, ok = s.transition(requiredState(PassKindGraphics, ResourceUsageSampled))
	assert.False(t, ok)
}

func TestTransitionStorage(t *testing.T) {
	s := accessState{}

	_, ok := s.transition(requiredState(PassKindCompute, ResourceUsageStorageWrite))
	assert.True(t, ok)
	assert.Equal(t, ImageLayoutGeneral, s.layout)

	// same layout but the write still has to be made visible
	src, ok := s.transition(requiredState(PassKindCompute, ResourceUsageStorageRead))
	assert.True(t, ok)
	assert.Equal(t, ImageBarrierInfo{Layout: ImageLayoutGeneral, Stage: PipelineStageCompute, Access: AccessFlagShaderWrite}, src)

	_, ok = s.transition(requiredState(PassKindCompute, ResourceUsageStorageRead))
	assert.False(t, ok)

	// write after read waits on both
	src, ok = s.transition(requiredState(PassKindCompute, ResourceUsageStorageWrite))
	assert.True(t, ok)
	assert.Equal(t, ImageLayoutGeneral, src.Layout)
	assert.Equal(t, PipelineStageCompute, src.Stage)
	assert.Equal(t, AccessFlagShaderWrite, src.Access)
	assert.Equal(t, AccessFlagNone, s.readAccess)
}

func TestTransitionToPresent(t *testing.T) {
	s := accessState{}
	s.transition(requiredState(PassKindBlit, ResourceUsageBlitDst))

	src, ok := s.transition(requiredState(PassKindBlit, ResourceUsagePresent))
	assert.True(t, ok)
	assert.Equal(t, ImageBarrierInfo{
		Layout: ImageLayoutTransferDst,
		Stage:  PipelineStageTransfer,
		Access: AccessFlagTransferWrite,
	}, src)
	assert.Equal(t, ImageLayoutPresent, s.layout)
}
