// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"

	"github.com/okapi3d/okapi/rhi"
)

// commandList wraps one command buffer recording a frame or an
// upload on a single thread.
type commandList struct {
	device *Device
	buffer vk.CommandBuffer

	// openPass tracks the pass begun last, for clear value counts.
	openPass *renderpass
}

func vkPipelineStages(stages rhi.PipelineStage) vk.PipelineStageFlags {
	var flags vk.PipelineStageFlags
	if stages&rhi.StageTopOfPipe != 0 {
		flags |= vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	if stages&rhi.StageVertexInput != 0 {
		flags |= vk.PipelineStageFlags(vk.PipelineStageVertexInputBit)
	}
	if stages&rhi.StageFragmentShader != 0 {
		flags |= vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	}
	if stages&rhi.StageColorAttachmentOutput != 0 {
		flags |= vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	}
	if stages&rhi.StageTransfer != 0 {
		flags |= vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	}
	if stages&rhi.StageBottomOfPipe != 0 {
		flags |= vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	if flags == 0 {
		flags = vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	}
	return flags
}

func accessFlagsForState(state rhi.ResourceState) vk.AccessFlags {
	switch state {
	case rhi.StateCopyDestination:
		return vk.AccessFlags(vk.AccessTransferWriteBit)
	case rhi.StateVertexAndIndexBuffer:
		return vk.AccessFlags(vk.AccessVertexAttributeReadBit | vk.AccessIndexReadBit)
	case rhi.StateShaderRead:
		return vk.AccessFlags(vk.AccessShaderReadBit)
	case rhi.StateRenderTarget:
		return vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	default:
		return 0
	}
}

func imageLayoutForState(state rhi.ResourceState) vk.ImageLayout {
	switch state {
	case rhi.StateCopyDestination:
		return vk.ImageLayoutTransferDstOptimal
	case rhi.StateShaderRead:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case rhi.StateRenderTarget:
		return vk.ImageLayoutColorAttachmentOptimal
	case rhi.StatePresent:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

// ResourceBarriers implements rhi.CommandList.
func (c *commandList) ResourceBarriers(stagesBefore, stagesAfter rhi.PipelineStage, barriers []rhi.ResourceBarrier) {
	var bufferBarriers []vk.BufferMemoryBarrier
	var imageBarriers []vk.ImageMemoryBarrier

	for _, barrier := range barriers {
		if barrier.Buffer != nil {
			buf, ok := barrier.Buffer.(*buffer)
			if !ok {
				continue
			}
			bufferBarriers = append(bufferBarriers, vk.BufferMemoryBarrier{
				SType:               vk.StructureTypeBufferMemoryBarrier,
				SrcAccessMask:       accessFlagsForState(barrier.OldState),
				DstAccessMask:       accessFlagsForState(barrier.NewState),
				SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
				DstQueueFamilyIndex: vk.QueueFamilyIgnored,
				Buffer:              buf.raw,
				Size:                vk.DeviceSize(buf.size),
			})
		}
		if barrier.Image != nil {
			img, ok := barrier.Image.(*image)
			if !ok {
				continue
			}
			aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
			if img.isDepth {
				aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
			}
			imageBarriers = append(imageBarriers, vk.ImageMemoryBarrier{
				SType:               vk.StructureTypeImageMemoryBarrier,
				SrcAccessMask:       accessFlagsForState(barrier.OldState),
				DstAccessMask:       accessFlagsForState(barrier.NewState),
				OldLayout:           imageLayoutForState(barrier.OldState),
				NewLayout:           imageLayoutForState(barrier.NewState),
				SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
				DstQueueFamilyIndex: vk.QueueFamilyIgnored,
				Image:               img.raw,
				SubresourceRange: vk.ImageSubresourceRange{
					AspectMask: aspect,
					LevelCount: img.mipCount,
					LayerCount: 1,
				},
			})
		}
	}
	if len(bufferBarriers) == 0 && len(imageBarriers) == 0 {
		return
	}

	vk.CmdPipelineBarrier(c.buffer,
		vkPipelineStages(stagesBefore), vkPipelineStages(stagesAfter), 0,
		0, nil,
		uint32(len(bufferBarriers)), bufferBarriers,
		uint32(len(imageBarriers)), imageBarriers)
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
	regions := []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}}
	vk.CmdCopyBuffer(c.buffer, srcBuf.raw, dstBuf.raw, 1, regions)
}

// UploadDataToImage implements rhi.CommandList. The staging buffer
// must already hold the pixel data, the copy transitions the image
// to shader read.
func (c *commandList) UploadDataToImage(img rhi.Image, width, height, bytesPerPixel uint32, data []byte, staging rhi.Buffer) {
	target, ok := img.(*image)
	if !ok {
		return
	}
	stagingBuf, ok := staging.(*buffer)
	if !ok {
		return
	}

	c.ResourceBarriers(rhi.StageTopOfPipe, rhi.StageTransfer, []rhi.ResourceBarrier{{
		Image:    img,
		OldState: rhi.StateUndefined,
		NewState: rhi.StateCopyDestination,
	}})

	region := []vk.BufferImageCopy{{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
	}}
	vk.CmdCopyBufferToImage(c.buffer, stagingBuf.raw, target.raw, vk.ImageLayoutTransferDstOptimal, 1, region)

	c.ResourceBarriers(rhi.StageTransfer, rhi.StageFragmentShader, []rhi.ResourceBarrier{{
		Image:    img,
		OldState: rhi.StateCopyDestination,
		NewState: rhi.StateShaderRead,
	}})
}

// BeginRenderpass implements rhi.CommandList, setting viewport and
// scissor to the full framebuffer.
func (c *commandList) BeginRenderpass(pass rhi.Renderpass, fb rhi.Framebuffer) {
	vkPass, ok := pass.(*renderpass)
	if !ok {
		return
	}
	vkFb, ok := fb.(*framebuffer)
	if !ok {
		return
	}
	c.openPass = vkPass

	clearValues := make([]vk.ClearValue, 0, vkPass.numColor+1)
	for idx := uint32(0); idx < vkPass.numColor; idx++ {
		var clear vk.ClearValue
		clear.SetColor([]float32{0.0, 0.0, 0.0, 1.0})
		clearValues = append(clearValues, clear)
	}
	if vkPass.hasDepth {
		var clear vk.ClearValue
		clear.SetDepthStencil(1.0, 0)
		clearValues = append(clearValues, clear)
	}

	size := vkFb.Size()
	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vkPass.raw,
		Framebuffer: vkFb.raw,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{
				Width:  size.Width,
				Height: size.Height,
			},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(c.buffer, &rpbi, vk.SubpassContentsInline)

	viewport := []vk.Viewport{{
		Width:    float32(size.Width),
		Height:   float32(size.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}}
	vk.CmdSetViewport(c.buffer, 0, 1, viewport)

	scissor := []vk.Rect2D{{
		Extent: vk.Extent2D{
			Width:  size.Width,
			Height: size.Height,
		},
	}}
	vk.CmdSetScissor(c.buffer, 0, 1, scissor)
}

// EndRenderpass implements rhi.CommandList.
func (c *commandList) EndRenderpass() {
	vk.CmdEndRenderPass(c.buffer)
	c.openPass = nil
}

// BindPipeline implements rhi.CommandList.
func (c *commandList) BindPipeline(p rhi.Pipeline) {
	if target, ok := p.(*pipeline); ok {
		vk.CmdBindPipeline(c.buffer, vk.PipelineBindPointGraphics, target.raw)
	}
}

// BindDescriptorSets implements rhi.CommandList.
func (c *commandList) BindDescriptorSets(sets []rhi.DescriptorSet, iface rhi.PipelineInterface) {
	vkIface, ok := iface.(*pipelineInterface)
	if !ok {
		return
	}
	raw := make([]vk.DescriptorSet, 0, len(sets))
	for _, set := range sets {
		if vkSet, ok := set.(*descriptorSet); ok {
			raw = append(raw, vkSet.raw)
		}
	}
	if len(raw) == 0 {
		return
	}
	vk.CmdBindDescriptorSets(c.buffer, vk.PipelineBindPointGraphics, vkIface.layout,
		0, uint32(len(raw)), raw, 0, nil)
}

// BindVertexBuffers implements rhi.CommandList.
func (c *commandList) BindVertexBuffers(bufs []rhi.Buffer) {
	raw := make([]vk.Buffer, 0, len(bufs))
	for _, buf := range bufs {
		if vkBuf, ok := buf.(*buffer); ok {
			raw = append(raw, vkBuf.raw)
		}
	}
	if len(raw) == 0 {
		return
	}
	offsets := make([]vk.DeviceSize, len(raw))
	vk.CmdBindVertexBuffers(c.buffer, 0, uint32(len(raw)), raw, offsets)
}

// BindIndexBuffer implements rhi.CommandList.
func (c *commandList) BindIndexBuffer(buf rhi.Buffer) {
	if vkBuf, ok := buf.(*buffer); ok {
		vk.CmdBindIndexBuffer(c.buffer, vkBuf.raw, 0, vk.IndexTypeUint32)
	}
}

// DrawIndexedMesh implements rhi.CommandList.
func (c *commandList) DrawIndexedMesh(numIndices, numInstances uint32) {
	vk.CmdDrawIndexed(c.buffer, numIndices, numInstances, 0, 0, 0)
}
