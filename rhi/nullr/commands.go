// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package nullr

import "github.com/okapi3d/okapi/rhi"

// CommandList records an op trace instead of GPU work, which lets
// tests assert on what a frame would have executed.
type CommandList struct {
	Queue     rhi.QueueType
	Ops       []string
	Draws     uint32
	Submitted bool
}

func (c *CommandList) record(op string) {
	c.Ops = append(c.Ops, op)
}

// ResourceBarriers records a barrier op.
func (c *CommandList) ResourceBarriers(before, after rhi.PipelineStage, barriers []rhi.ResourceBarrier) {
	c.record("barriers")
}

// CopyBuffer copies between in-memory buffers when both sides are
// host visible, so staged uploads are observable.
func (c *CommandList) CopyBuffer(dst rhi.Buffer, dstOffset uint64, src rhi.Buffer, srcOffset, size uint64) {
	c.record("copy_buffer")
	dstBuf, dstOk := dst.(*buffer)
	srcBuf, srcOk := src.(*buffer)
	if dstOk && srcOk && dstBuf.data != nil && srcBuf.data != nil {
		copy(dstBuf.data[dstOffset:], srcBuf.data[srcOffset:srcOffset+size])
	}
}

// UploadDataToImage records an image upload op.
func (c *CommandList) UploadDataToImage(img rhi.Image, width, height, bytesPerPixel uint32, data []byte, staging rhi.Buffer) {
	c.record("upload_image")
}

// BeginRenderpass records a pass begin op.
func (c *CommandList) BeginRenderpass(pass rhi.Renderpass, fb rhi.Framebuffer) {
	name := "?"
	if rp, ok := pass.(*renderpass); ok {
		name = rp.info.Name
	}
	c.record("begin_pass:" + name)
}

// EndRenderpass records a pass end op.
func (c *CommandList) EndRenderpass() {
	c.record("end_pass")
}

// BindPipeline records a pipeline bind op.
func (c *CommandList) BindPipeline(p rhi.Pipeline) {
	name := "?"
	if pl, ok := p.(*pipeline); ok {
		name = pl.info.Name
	}
	c.record("bind_pipeline:" + name)
}

// BindDescriptorSets records a descriptor bind op.
func (c *CommandList) BindDescriptorSets(sets []rhi.DescriptorSet, iface rhi.PipelineInterface) {
	c.record("bind_descriptors")
}

// BindVertexBuffers records a vertex bind op.
func (c *CommandList) BindVertexBuffers(bufs []rhi.Buffer) {
	c.record("bind_vertex")
}

// BindIndexBuffer records an index bind op.
func (c *CommandList) BindIndexBuffer(buf rhi.Buffer) {
	c.record("bind_index")
}

// DrawIndexedMesh records a draw op and counts it.
func (c *CommandList) DrawIndexedMesh(numIndices, numInstances uint32) {
	c.record("draw")
	c.Draws++
}
