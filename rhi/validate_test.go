// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rhi_test

import (
	"testing"

	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

var screen = rhi.Extent{Width: 1280, Height: 720}

func TestValidateMatchingAttachments(t *testing.T) {
	info := renderpack.RenderPassCreateInfo{
		Name: "Geometry",
		TextureOutputs: []renderpack.TextureAttachmentInfo{
			{Name: "GBufferColor"},
			{Name: "GBufferNormal"},
		},
		DepthTexture: &renderpack.TextureAttachmentInfo{Name: "SceneDepth"},
	}
	sizes := map[string]rhi.Extent{
		"GBufferColor":  {Width: 1280, Height: 720},
		"GBufferNormal": {Width: 1280, Height: 720},
		"SceneDepth":    {Width: 1280, Height: 720},
	}

	size, err := rhi.ValidateRenderpassAttachments(info, sizes, screen)
	if err != nil {
		t.Fatal(err)
	}
	if size != screen {
		t.Errorf("unexpected pass size %+v", size)
	}
}

func TestValidateMismatchedAttachments(t *testing.T) {
	info := renderpack.RenderPassCreateInfo{
		Name: "Geometry",
		TextureOutputs: []renderpack.TextureAttachmentInfo{
			{Name: "GBufferColor"},
			{Name: "HalfResAO"},
		},
	}
	sizes := map[string]rhi.Extent{
		"GBufferColor": {Width: 1280, Height: 720},
		"HalfResAO":    {Width: 640, Height: 360},
	}

	_, err := rhi.ValidateRenderpassAttachments(info, sizes, screen)
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
	if _, ok := err.(*rhi.AttachmentSizeError); !ok {
		t.Errorf("expected AttachmentSizeError, got %T", err)
	}
}

func TestValidateBackbufferConflict(t *testing.T) {
	info := renderpack.RenderPassCreateInfo{
		Name: "Composite",
		TextureOutputs: []renderpack.TextureAttachmentInfo{
			{Name: renderpack.BackbufferName},
			{Name: "DebugOverlay"},
		},
	}

	_, err := rhi.ValidateRenderpassAttachments(info, map[string]rhi.Extent{}, screen)
	if err == nil {
		t.Fatal("expected backbuffer conflict error")
	}
	if _, ok := err.(*rhi.BackbufferConflictError); !ok {
		t.Errorf("expected BackbufferConflictError, got %T", err)
	}
}

func TestValidateBackbufferOnly(t *testing.T) {
	info := renderpack.RenderPassCreateInfo{
		Name: "Composite",
		TextureOutputs: []renderpack.TextureAttachmentInfo{
			{Name: renderpack.BackbufferName},
		},
	}

	size, err := rhi.ValidateRenderpassAttachments(info, map[string]rhi.Extent{}, screen)
	if err != nil {
		t.Fatal(err)
	}
	if size != screen {
		t.Errorf("backbuffer pass must use the swapchain size, got %+v", size)
	}
}

func TestValidateUnknownAttachment(t *testing.T) {
	info := renderpack.RenderPassCreateInfo{
		Name: "Geometry",
		TextureOutputs: []renderpack.TextureAttachmentInfo{
			{Name: "Missing"},
		},
	}

	_, err := rhi.ValidateRenderpassAttachments(info, map[string]rhi.Extent{}, screen)
	if _, ok := err.(*rhi.UnknownAttachmentError); !ok {
		t.Errorf("expected UnknownAttachmentError, got %v", err)
	}
}
