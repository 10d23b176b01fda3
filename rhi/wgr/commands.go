// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wgr

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/okapi3d/okapi/rhi"
)

// commandList wraps one command encoder. The open render pass
// encoder lives alongside it because draws go through the pass.
type commandList struct {
	device  *Device
	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder
}

// ResourceBarriers implements rhi.CommandList. State is tracked by
// wgpu itself.
func (c *commandList) ResourceBarriers(stagesBefore, stagesAfter rhi.PipelineStage, barriers []rhi.ResourceBarrier) {
}

// CopyBuffer implements rhi.CommandList.
func (c *commandList) CopyBuffer(dst rhi.Buffer, dstOffset uint64, src rhi.Buffer, srcOffset, size uint64) {
	dstBuf, ok := dst.(*buffer)
	if !ok {
		return
	}
	srcBuf, ok := src.(*buffer)
	if !ok {
		return
	}
	c.encoder.CopyBufferToBuffer(srcBuf.raw, srcOffset, dstBuf.raw, dstOffset, size)
}

// UploadDataToImage implements rhi.CommandList. The queue writes
// texture data directly, the staging buffer goes unused here.
func (c *commandList) UploadDataToImage(img rhi.Image, width, height, bytesPerPixel uint32, data []byte, staging rhi.Buffer) {
	target, ok := img.(*image)
	if !ok {
		return
	}
	c.device.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture: target.raw,
			Origin:  wgpu.Origin3D{},
			Aspect:  wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			BytesPerRow:  width * bytesPerPixel,
			RowsPerImage: height,
		},
		&wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
	)
}

// BeginRenderpass implements rhi.CommandList, assembling the pass
// descriptor from the framebuffer views.
func (c *commandList) BeginRenderpass(pass rhi.Renderpass, fb rhi.Framebuffer) {
	wgpuPass, ok := pass.(*renderpass)
	if !ok {
		return
	}
	wgpuFb, ok := fb.(*framebuffer)
	if !ok {
		return
	}

	var colorAttachments []wgpu.RenderPassColorAttachment
	for idx, view := range wgpuFb.colors {
		loadOp := wgpu.LoadOpLoad
		if idx < len(wgpuPass.info.TextureOutputs) && wgpuPass.info.TextureOutputs[idx].ClearBeforeRender {
			loadOp = wgpu.LoadOpClear
		}
		colorAttachments = append(colorAttachments, wgpu.RenderPassColorAttachment{
			View:       view,
			LoadOp:     loadOp,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		})
	}

	descriptor := wgpu.RenderPassDescriptor{
		Label:            wgpuPass.info.Name,
		ColorAttachments: colorAttachments,
	}
	if wgpuFb.depth != nil && wgpuPass.info.DepthTexture != nil {
		depthLoadOp := wgpu.LoadOpLoad
		if wgpuPass.info.DepthTexture.ClearBeforeRender {
			depthLoadOp = wgpu.LoadOpClear
		}
		descriptor.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            wgpuFb.depth,
			DepthLoadOp:     depthLoadOp,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	c.pass = c.encoder.BeginRenderPass(&descriptor)
}

// EndRenderpass implements rhi.CommandList.
func (c *commandList) EndRenderpass() {
	if c.pass == nil {
		return
	}
	c.pass.End()
	c.pass.Release()
	c.pass = nil
}

// BindPipeline implements rhi.CommandList.
func (c *commandList) BindPipeline(p rhi.Pipeline) {
	if target, ok := p.(*pipeline); ok && c.pass != nil {
		c.pass.SetPipeline(target.raw)
	}
}

// BindDescriptorSets implements rhi.CommandList.
func (c *commandList) BindDescriptorSets(sets []rhi.DescriptorSet, iface rhi.PipelineInterface) {
	if c.pass == nil {
		return
	}
	for idx, set := range sets {
		wgpuSet, ok := set.(*descriptorSet)
		if !ok || wgpuSet.group == nil {
			continue
		}
		c.pass.SetBindGroup(uint32(idx), wgpuSet.group, nil)
	}
}

// BindVertexBuffers implements rhi.CommandList.
func (c *commandList) BindVertexBuffers(bufs []rhi.Buffer) {
	if c.pass == nil {
		return
	}
	for idx, buf := range bufs {
		if wgpuBuf, ok := buf.(*buffer); ok {
			c.pass.SetVertexBuffer(uint32(idx), wgpuBuf.raw, 0, wgpu.WholeSize)
		}
	}
}

// BindIndexBuffer implements rhi.CommandList.
func (c *commandList) BindIndexBuffer(buf rhi.Buffer) {
	if wgpuBuf, ok := buf.(*buffer); ok && c.pass != nil {
		c.pass.SetIndexBuffer(wgpuBuf.raw, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	}
}

// DrawIndexedMesh implements rhi.CommandList.
func (c *commandList) DrawIndexedMesh(numIndices, numInstances uint32) {
	if c.pass == nil {
		return
	}
	c.pass.DrawIndexed(numIndices, numInstances, 0, 0, 0)
}
