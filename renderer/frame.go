// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/okapi3d/okapi/model"
	"github.com/okapi3d/okapi/rhi"
)

// ExecuteFrame records and submits one frame, then presents.
// The full fence wait before present trades pipelining for
// simplicity. A buffered path would only change this function,
// the device contract already supports it.
func (r *Renderer) ExecuteFrame() error {
	r.loadMutex.Lock()
	defer r.loadMutex.Unlock()

	r.frameCount++

	chain := r.device.Swapchain()
	if chain == nil {
		return fmt.Errorf("device has no swapchain, frames need a surface")
	}
	frameIdx, err := chain.AcquireNextImage()
	if err != nil {
		return fmt.Errorf("acquire swapchain image: %w", err)
	}

	fence := []rhi.Fence{r.frameFences[frameIdx]}
	r.device.WaitForFences(fence)
	r.device.ResetFences(fence)
	r.device.ResetCommandPools(frameIdx)
	r.stagingStrategy.Reset()

	cmds, err := r.device.CreateCommandList(0, rhi.QueueGraphics, rhi.CommandListPrimary)
	if err != nil {
		return fmt.Errorf("frame command list: %w", err)
	}

	if err := r.uploadFrameData(cmds, frameIdx); err != nil {
		return err
	}

	ctx := &FrameContext{
		Cmds:        cmds,
		FrameIndex:  frameIdx,
		FrameCount:  r.frameCount,
		Framebuffer: chain.Framebuffer(frameIdx),
		Renderer:    r,
	}
	for _, pass := range r.graph.Passes() {
		r.recordRenderpass(pass, ctx)
	}

	signal := []rhi.Semaphore{r.renderFinished[frameIdx]}
	if err := r.device.SubmitCommandList(cmds, rhi.QueueGraphics, fence[0], nil, signal); err != nil {
		return fmt.Errorf("frame submit: %w", err)
	}

	// Full GPU wait before present.
	r.device.WaitForFences(fence)
	if err := chain.Present(frameIdx, signal); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

// uploadFrameData refreshes the builtin buffers and records
// pending procedural mesh uploads.
func (r *Renderer) uploadFrameData(cmds rhi.CommandList, frameIdx uint32) error {
	if err := r.device.WriteDataToBuffer(model.PerFrameUniformsToBytes(&r.perFrameUniform), r.builtinBuffers[PerFrameDataName]); err != nil {
		return fmt.Errorf("per-frame uniforms: %w", err)
	}

	matrices := r.collectModelMatrices()
	if len(matrices) > 0 {
		if err := r.device.WriteDataToBuffer(model.MatricesToBytes(matrices), r.builtinBuffers[ModelMatrixBufferName]); err != nil {
			return fmt.Errorf("model matrices: %w", err)
		}
	}

	for _, mesh := range r.procMeshes {
		mesh.recordUpload(cmds, frameIdx)
	}
	return nil
}

// collectModelMatrices flattens every visible renderable's matrix
// in draw order, matching the instance indices the batches draw.
func (r *Renderer) collectModelMatrices() []glm.Mat4 {
	var matrices []glm.Mat4
	for _, pass := range r.graph.Passes() {
		for _, pipeline := range pass.Pipelines {
			for _, materialPass := range pipeline.Passes {
				for _, batch := range materialPass.MeshBatches {
					for _, renderable := range batch.Renderables {
						if renderable.Visible {
							matrices = append(matrices, renderable.ModelMatrix)
						}
					}
				}
				for _, batch := range materialPass.ProceduralMeshBatches {
					for _, renderable := range batch.Renderables {
						if renderable.Visible {
							matrices = append(matrices, renderable.ModelMatrix)
						}
					}
				}
			}
		}
	}
	return matrices
}

func (r *Renderer) recordRenderpass(pass *Renderpass, ctx *FrameContext) {
	framebuffer := pass.Framebuffer
	if pass.WritesBackbuffer {
		framebuffer = ctx.Framebuffer
	}
	ctx.Cmds.BeginRenderpass(pass.Raw, framebuffer)

	if pass.Record != nil {
		pass.Record(ctx)
	} else {
		for _, pipeline := range pass.Pipelines {
			r.recordPipeline(pipeline, ctx)
		}
	}

	ctx.Cmds.EndRenderpass()
}

func (r *Renderer) recordPipeline(pipeline *Pipeline, ctx *FrameContext) {
	ctx.Cmds.BindPipeline(pipeline.Raw)

	for _, materialPass := range pipeline.Passes {
		ctx.Cmds.BindDescriptorSets(materialPass.DescriptorSets, pipeline.Interface)

		for _, batch := range materialPass.MeshBatches {
			instances := countVisible(batch.Renderables)
			if instances == 0 {
				continue
			}
			ctx.Cmds.BindVertexBuffers([]rhi.Buffer{batch.VertexBuffer})
			ctx.Cmds.BindIndexBuffer(batch.IndexBuffer)
			ctx.Cmds.DrawIndexedMesh(batch.NumIndices, instances)
		}

		for _, batch := range materialPass.ProceduralMeshBatches {
			instances := countVisible(batch.Renderables)
			if instances == 0 || batch.Mesh.NumIndices == 0 {
				continue
			}
			ctx.Cmds.BindVertexBuffers([]rhi.Buffer{batch.Mesh.deviceVertex[ctx.FrameIndex]})
			ctx.Cmds.BindIndexBuffer(batch.Mesh.deviceIndex[ctx.FrameIndex])
			ctx.Cmds.DrawIndexedMesh(batch.Mesh.NumIndices, instances)
		}
	}
}

func countVisible(renderables []Renderable) uint32 {
	var count uint32
	for _, renderable := range renderables {
		if renderable.Visible {
			count++
		}
	}
	return count
}
