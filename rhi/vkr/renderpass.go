// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"

	vk "github.com/devblok/vulkan"

	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

type renderpass struct {
	raw              vk.RenderPass
	writesBackbuffer bool
	numColor         uint32
	hasDepth         bool
	clearColor       bool
	clearDepth       bool
}

type framebuffer struct {
	raw  vk.Framebuffer
	size rhi.Extent
}

// Size implements rhi.Framebuffer.
func (f *framebuffer) Size() rhi.Extent { return f.size }

func colorAttachmentDescription(format vk.Format, clear, present bool) vk.AttachmentDescription {
	desc := vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpDontCare,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutShaderReadOnlyOptimal,
	}
	if clear {
		desc.LoadOp = vk.AttachmentLoadOpClear
	}
	if present {
		desc.FinalLayout = vk.ImageLayoutPresentSrc
	}
	return desc
}

// CreateRenderpass implements rhi.Device.
func (d *Device) CreateRenderpass(info renderpack.RenderPassCreateInfo, textureSizes map[string]rhi.Extent, framebufferSize rhi.Extent) (rhi.Renderpass, error) {
	if _, err := rhi.ValidateRenderpassAttachments(info, textureSizes, framebufferSize); err != nil {
		return nil, err
	}

	writesBackbuffer := info.WritesBackbuffer()
	var attachments []vk.AttachmentDescription
	var colorRefs []vk.AttachmentReference
	var clearColor bool

	for _, output := range info.TextureOutputs {
		format := vkFormat(output.PixelFormat)
		if output.Name == renderpack.BackbufferName {
			format = d.swapchainFormat()
		}
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachments = append(attachments, colorAttachmentDescription(format, output.ClearBeforeRender, writesBackbuffer))
		if output.ClearBeforeRender {
			clearColor = true
		}
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}

	var hasDepth, clearDepth bool
	if info.DepthTexture != nil {
		hasDepth = true
		clearDepth = info.DepthTexture.ClearBeforeRender
		depthDesc := vk.AttachmentDescription{
			Format:         vkFormat(info.DepthTexture.PixelFormat),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpDontCare,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		if clearDepth {
			depthDesc.LoadOp = vk.AttachmentLoadOpClear
		}
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		attachments = append(attachments, depthDesc)
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	var pass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(d.logicalDevice, &rpci, nil, &pass)); err != nil {
		return nil, fmt.Errorf("vk.CreateRenderPass(): %s", err.Error())
	}

	return &renderpass{
		raw:              pass,
		writesBackbuffer: writesBackbuffer,
		numColor:         uint32(len(colorRefs)),
		hasDepth:         hasDepth,
		clearColor:       clearColor,
		clearDepth:       clearDepth,
	}, nil
}

func (d *Device) swapchainFormat() vk.Format {
	if d.swapchain != nil {
		return d.swapchain.format
	}
	return vk.FormatB8g8r8a8Unorm
}

// CreateFramebuffer implements rhi.Device.
func (d *Device) CreateFramebuffer(pass rhi.Renderpass, colors []rhi.Image, depth rhi.Image, size rhi.Extent) (rhi.Framebuffer, error) {
	target, ok := pass.(*renderpass)
	if !ok {
		return nil, errors.New("render pass does not belong to this device")
	}

	var views []vk.ImageView
	for _, color := range colors {
		img, ok := color.(*image)
		if !ok {
			return nil, errors.New("color attachment does not belong to this device")
		}
		views = append(views, img.view)
	}
	if depth != nil {
		img, ok := depth.(*image)
		if !ok {
			return nil, errors.New("depth attachment does not belong to this device")
		}
		views = append(views, img.view)
	}

	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      target.raw,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           size.Width,
		Height:          size.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if err := vk.Error(vk.CreateFramebuffer(d.logicalDevice, &fci, nil, &fb)); err != nil {
		return nil, fmt.Errorf("vk.CreateFramebuffer(): %s", err.Error())
	}
	return &framebuffer{raw: fb, size: size}, nil
}

// DestroyRenderpass implements rhi.Device.
func (d *Device) DestroyRenderpass(pass rhi.Renderpass) {
	if target, ok := pass.(*renderpass); ok {
		vk.DestroyRenderPass(d.logicalDevice, target.raw, nil)
	}
}

// DestroyFramebuffer implements rhi.Device.
func (d *Device) DestroyFramebuffer(fb rhi.Framebuffer) {
	if target, ok := fb.(*framebuffer); ok {
		vk.DestroyFramebuffer(d.logicalDevice, target.raw, nil)
	}
}
