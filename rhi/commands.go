// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rhi

// PipelineStage is a coarse pipeline stage mask for barriers.
type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageVertexInput
	StageFragmentShader
	StageColorAttachmentOutput
	StageTransfer
	StageBottomOfPipe
)

// ResourceState is the coarse access state of a resource across a
// barrier. Backends with implicit state tracking ignore these.
type ResourceState int

const (
	StateUndefined ResourceState = iota
	StateCopyDestination
	StateVertexAndIndexBuffer
	StateShaderRead
	StateRenderTarget
	StatePresent
)

// ResourceBarrier transitions one resource between states.
type ResourceBarrier struct {
	Buffer   Buffer
	Image    Image
	OldState ResourceState
	NewState ResourceState
}

// CommandList records GPU work for one queue. Lists are recorded on
// one thread, submitted once and never reused.
type CommandList interface {

	// ResourceBarriers records state transitions between the two
	// stage masks. A no-op on implicit-state backends.
	ResourceBarriers(stagesBefore, stagesAfter PipelineStage, barriers []ResourceBarrier)

	// CopyBuffer records a buffer to buffer copy.
	CopyBuffer(dst Buffer, dstOffset uint64, src Buffer, srcOffset, size uint64)

	// UploadDataToImage stages pixel data into an image.
	UploadDataToImage(img Image, width, height, bytesPerPixel uint32, data []byte, staging Buffer)

	// BeginRenderpass starts recording into a pass. fb is the
	// swapchain framebuffer for backbuffer passes.
	BeginRenderpass(pass Renderpass, fb Framebuffer)

	// EndRenderpass closes the open pass.
	EndRenderpass()

	// BindPipeline selects the pipeline for subsequent draws.
	BindPipeline(p Pipeline)

	// BindDescriptorSets binds all descriptor sets of a pipeline
	// interface.
	BindDescriptorSets(sets []DescriptorSet, iface PipelineInterface)

	// BindVertexBuffers binds the vertex streams in slot order.
	BindVertexBuffers(bufs []Buffer)

	// BindIndexBuffer binds the 32-bit index stream.
	BindIndexBuffer(buf Buffer)

	// DrawIndexedMesh issues an indexed, instanced draw.
	DrawIndexedMesh(numIndices, numInstances uint32)
}
