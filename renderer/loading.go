// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

// LoadRenderpack loads a renderpack by name, tearing down whatever
// pack was loaded before. Structural errors in individual passes,
// pipelines or materials are logged and skip only the offending
// entity, the rest of the pack still loads. Builtin passes survive.
func (r *Renderer) LoadRenderpack(name string) error {
	r.loadMutex.Lock()
	defer r.loadMutex.Unlock()

	data, err := r.loader.Load(name)
	if err != nil {
		return fmt.Errorf("renderpack %s: %w", name, err)
	}

	r.destroyRenderpackResources()

	ordered, err := renderpack.OrderPasses(data.Passes)
	if err != nil {
		return fmt.Errorf("renderpack %s: %w", name, err)
	}

	r.createDynamicTextures(data.Textures)
	r.createRenderpasses(ordered)
	r.graph.moveBuiltinsToEnd()
	r.createPipelines(data.Pipelines)

	pool, err := r.createDescriptorPool(data)
	if err != nil {
		return fmt.Errorf("renderpack %s: %w", name, err)
	}
	r.createMaterials(data.Materials, pool)

	log.WithFields(log.Fields{
		"renderpack": name,
		"passes":     len(r.graph.Passes()),
	}).Info("renderpack loaded")
	return nil
}

func (r *Renderer) destroyRenderpackResources() {
	for name, texture := range r.dynamicTextures {
		if r.externalTextures[name] {
			continue
		}
		r.device.DestroyTexture(texture)
		delete(r.dynamicTextures, name)
		delete(r.dynamicTextureInfos, name)
	}
	for _, pass := range r.graph.removeRenderpackPasses() {
		for _, pipeline := range pass.Pipelines {
			r.device.DestroyPipeline(pipeline.Raw)
		}
		if pass.Framebuffer != nil {
			r.device.DestroyFramebuffer(pass.Framebuffer)
		}
		r.device.DestroyRenderpass(pass.Raw)
	}
	// Keys into the old arenas mean nothing anymore.
	r.materialPassKeys = make(map[FullMaterialPassName]MaterialPassKey)
}

func (r *Renderer) createDynamicTextures(infos []renderpack.TextureCreateInfo) {
	screen := r.swapchainSize()
	for _, info := range infos {
		width, height := info.Format.SizeInPixels(screen.Width, screen.Height)
		texture, err := r.device.CreateImage(info, rhi.Extent{Width: width, Height: height})
		if err != nil {
			log.WithFields(log.Fields{
				"texture": info.Name,
				"error":   err,
			}).Error("dynamic texture creation failed, skipping")
			continue
		}
		r.dynamicTextures[info.Name] = texture
		r.dynamicTextureInfos[info.Name] = info
	}
}

func (r *Renderer) createRenderpasses(ordered []renderpack.RenderPassCreateInfo) {
	for _, info := range ordered {
		pass, err := r.createRenderpass(info, false)
		if err != nil {
			log.WithFields(log.Fields{
				"pass":  info.Name,
				"error": err,
			}).Error("renderpass creation failed, skipping")
			continue
		}
		r.graph.append(pass)
	}
}

func (r *Renderer) createRenderpass(info renderpack.RenderPassCreateInfo, builtin bool) (*Renderpass, error) {
	screen := r.swapchainSize()
	sizes := r.attachmentSizes()

	raw, err := r.device.CreateRenderpass(info, sizes, screen)
	if err != nil {
		return nil, err
	}
	pass := &Renderpass{
		Name:             info.Name,
		Builtin:          builtin,
		WritesBackbuffer: info.WritesBackbuffer(),
		Raw:              raw,
		CreateInfo:       info,
	}
	if pass.WritesBackbuffer {
		// The swapchain owns the per-image framebuffers.
		return pass, nil
	}

	var colors []rhi.Image
	size := screen
	for _, out := range info.TextureOutputs {
		texture, ok := r.dynamicTextures[out.Name]
		if !ok {
			return nil, &rhi.UnknownAttachmentError{Pass: info.Name, Attachment: out.Name}
		}
		colors = append(colors, texture)
		size = texture.Size()
	}
	var depth rhi.Image
	if info.DepthTexture != nil {
		texture, ok := r.dynamicTextures[info.DepthTexture.Name]
		if !ok {
			return nil, &rhi.UnknownAttachmentError{Pass: info.Name, Attachment: info.DepthTexture.Name}
		}
		depth = texture
		size = texture.Size()
	}

	framebuffer, err := r.device.CreateFramebuffer(raw, colors, depth, size)
	if err != nil {
		r.device.DestroyRenderpass(raw)
		return nil, err
	}
	pass.Framebuffer = framebuffer
	return pass, nil
}

func (r *Renderer) createPipelines(infos []renderpack.PipelineCreateInfo) {
	for _, info := range infos {
		pass, ok := r.graph.Pass(info.Pass)
		if !ok {
			log.WithFields(log.Fields{
				"pipeline": info.Name,
				"pass":     info.Pass,
			}).Error("pipeline targets a pass that did not load, skipping")
			continue
		}

		iface, err := r.buildPipelineInterface(info)
		if err != nil {
			log.WithFields(log.Fields{
				"pipeline": info.Name,
				"error":    err,
			}).Error("pipeline interface rejected, skipping")
			continue
		}
		raw, err := r.device.CreatePipeline(iface, info, pass.Raw)
		if err != nil {
			log.WithFields(log.Fields{
				"pipeline": info.Name,
				"error":    err,
			}).Error("pipeline creation failed, skipping")
			continue
		}
		pass.Pipelines = append(pass.Pipelines, &Pipeline{
			Name:       info.Name,
			Raw:        raw,
			Interface:  iface,
			CreateInfo: info,
		})
	}
}

// buildPipelineInterface reflects every stage of a pipeline and
// merges the declared bindings into one layout. Stages declaring
// the same name must agree on everything but the stage mask.
func (r *Renderer) buildPipelineInterface(info renderpack.PipelineCreateInfo) (rhi.PipelineInterface, error) {
	bindings := map[string]rhi.ResourceBindingDescription{}

	merge := func(stage rhi.ShaderStage, source renderpack.ShaderSource) error {
		reflected, err := r.reflector.Reflect(stage, source)
		if err != nil {
			return err
		}
		for _, binding := range reflected {
			if err := rhi.MergeBinding(bindings, binding.Name, binding.Description); err != nil {
				return err
			}
		}
		return nil
	}

	if err := merge(rhi.StageVertex, info.VertexShader); err != nil {
		return nil, err
	}
	if info.GeometryShader != nil {
		if err := merge(rhi.StageGeometry, *info.GeometryShader); err != nil {
			return nil, err
		}
	}
	if info.FragmentShader != nil {
		if err := merge(rhi.StageFragment, *info.FragmentShader); err != nil {
			return nil, err
		}
	}

	var depth *renderpack.TextureAttachmentInfo
	var colors []renderpack.TextureAttachmentInfo
	if pass, ok := r.graph.Pass(info.Pass); ok {
		colors = pass.CreateInfo.TextureOutputs
		depth = pass.CreateInfo.DepthTexture
	}
	return r.device.CreatePipelineInterface(bindings, colors, depth)
}

// createDescriptorPool sizes one pool for the whole renderpack by
// summing the binding counts every material pass declares.
func (r *Renderer) createDescriptorPool(data *renderpack.RenderpackData) (rhi.DescriptorPool, error) {
	var size rhi.DescriptorPoolSize
	for _, material := range data.Materials {
		for _, pass := range material.Passes {
			numBindings := uint32(len(pass.Bindings))
			size.UniformBuffers += numBindings
			size.SampledImages += numBindings
			size.Samplers += numBindings
		}
	}
	if size.UniformBuffers == 0 {
		size = rhi.DescriptorPoolSize{UniformBuffers: 1, SampledImages: 1, Samplers: 1}
	}
	return r.device.CreateDescriptorPool(size)
}

func (r *Renderer) createMaterials(materials []renderpack.MaterialData, pool rhi.DescriptorPool) {
	for _, material := range materials {
		for _, passData := range material.Passes {
			passIdx, pipelineIdx, pipeline := r.findPipeline(passData.Pipeline)
			if pipeline == nil {
				log.WithFields(log.Fields{
					"material": material.Name,
					"pipeline": passData.Pipeline,
				}).Error("material references a pipeline that did not load, skipping")
				continue
			}

			sets, err := r.device.CreateDescriptorSets(pipeline.Interface, pool)
			if err != nil {
				log.WithFields(log.Fields{
					"material": material.Name,
					"error":    err,
				}).Error("descriptor set allocation failed, skipping material pass")
				continue
			}

			materialPass := &MaterialPass{
				Name:           passData.Name,
				MaterialName:   material.Name,
				PipelineName:   passData.Pipeline,
				Bindings:       passData.Bindings,
				DescriptorSets: sets,
			}
			if err := r.bindMaterialResources(materialPass, pipeline.Interface); err != nil {
				log.WithFields(log.Fields{
					"material": material.Name,
					"error":    err,
				}).Error("descriptor writes failed, skipping material pass")
				continue
			}

			pipeline.Passes = append(pipeline.Passes, materialPass)
			r.materialPassKeys[FullMaterialPassName{
				MaterialName: material.Name,
				PassName:     passData.Name,
			}] = MaterialPassKey{
				RenderpassIndex:   passIdx,
				PipelineIndex:     pipelineIdx,
				MaterialPassIndex: uint32(len(pipeline.Passes) - 1),
			}
		}
	}
}

func (r *Renderer) findPipeline(name string) (uint32, uint32, *Pipeline) {
	for passIdx, pass := range r.graph.Passes() {
		for pipelineIdx, pipeline := range pass.Pipelines {
			if pipeline.Name == name {
				return uint32(passIdx), uint32(pipelineIdx), pipeline
			}
		}
	}
	return 0, 0, nil
}

func (r *Renderer) swapchainSize() rhi.Extent {
	if chain := r.device.Swapchain(); chain != nil {
		return chain.Size()
	}
	return rhi.Extent{Width: r.settings.Screen.Width, Height: r.settings.Screen.Height}
}

// attachmentSizes resolves every dynamic texture to pixels for
// renderpass validation.
func (r *Renderer) attachmentSizes() map[string]rhi.Extent {
	screen := r.swapchainSize()
	sizes := make(map[string]rhi.Extent, len(r.dynamicTextureInfos))
	for name, info := range r.dynamicTextureInfos {
		width, height := info.Format.SizeInPixels(screen.Width, screen.Height)
		sizes[name] = rhi.Extent{Width: width, Height: height}
	}
	return sizes
}
