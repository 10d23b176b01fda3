// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"

	vk "github.com/devblok/vulkan"

	"github.com/okapi3d/okapi/model"
	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

// pipelineInterface carries the merged binding layout together with
// the Vulkan layout objects built from it.
type pipelineInterface struct {
	bindings   map[string]rhi.ResourceBindingDescription
	setLayouts []vk.DescriptorSetLayout
	layout     vk.PipelineLayout
}

// Bindings implements rhi.PipelineInterface.
func (p *pipelineInterface) Bindings() map[string]rhi.ResourceBindingDescription {
	return p.bindings
}

type pipeline struct {
	raw    vk.Pipeline
	layout vk.PipelineLayout
}

func vkDescriptorType(t rhi.DescriptorType) vk.DescriptorType {
	switch t {
	case rhi.DescriptorCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	case rhi.DescriptorUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case rhi.DescriptorStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case rhi.DescriptorTexture:
		return vk.DescriptorTypeSampledImage
	default:
		return vk.DescriptorTypeSampler
	}
}

func vkShaderStages(stages rhi.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlags
	if stages&rhi.StageVertex != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}
	if stages&rhi.StageGeometry != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageGeometryBit)
	}
	if stages&rhi.StageFragment != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	}
	if stages&rhi.StageCompute != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	}
	return flags
}

// CreatePipelineInterface implements rhi.Device. One descriptor set
// layout per set index the bindings declare.
func (d *Device) CreatePipelineInterface(bindings map[string]rhi.ResourceBindingDescription, colors []renderpack.TextureAttachmentInfo, depth *renderpack.TextureAttachmentInfo) (rhi.PipelineInterface, error) {
	numSets := uint32(0)
	for _, desc := range bindings {
		if desc.Set+1 > numSets {
			numSets = desc.Set + 1
		}
	}

	perSet := make([][]vk.DescriptorSetLayoutBinding, numSets)
	for _, desc := range bindings {
		count := desc.Count
		if count == 0 {
			count = 1
		}
		perSet[desc.Set] = append(perSet[desc.Set], vk.DescriptorSetLayoutBinding{
			Binding:         desc.Binding,
			DescriptorType:  vkDescriptorType(desc.Type),
			DescriptorCount: count,
			StageFlags:      vkShaderStages(desc.Stages),
		})
	}

	iface := &pipelineInterface{bindings: bindings}
	for _, setBindings := range perSet {
		dslci := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(setBindings)),
			PBindings:    setBindings,
		}
		var layout vk.DescriptorSetLayout
		if err := vk.Error(vk.CreateDescriptorSetLayout(d.logicalDevice, &dslci, nil, &layout)); err != nil {
			return nil, errors.New("vk.CreateDescriptorSetLayout(): " + err.Error())
		}
		iface.setLayouts = append(iface.setLayouts, layout)
	}

	plci := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(iface.setLayouts)),
		PSetLayouts:    iface.setLayouts,
	}
	if err := vk.Error(vk.CreatePipelineLayout(d.logicalDevice, &plci, nil, &iface.layout)); err != nil {
		return nil, errors.New("vk.CreatePipelineLayout(): " + err.Error())
	}
	return iface, nil
}

func (d *Device) createShaderModule(source renderpack.ShaderSource) (vk.ShaderModule, error) {
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(source.Data)),
		PCode:    SliceUint32(source.Data),
	}
	var module vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(d.logicalDevice, &smci, nil, &module)); err != nil {
		return vk.NullShaderModule, fmt.Errorf("vk.CreateShaderModule(): %s: %s", source.Filename, err.Error())
	}
	return module, nil
}

func vkTopology(t renderpack.PrimitiveTopology) vk.PrimitiveTopology {
	switch t {
	case renderpack.TopologyLineList:
		return vk.PrimitiveTopologyLineList
	case renderpack.TopologyPointList:
		return vk.PrimitiveTopologyPointList
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

// CreatePipeline implements rhi.Device.
func (d *Device) CreatePipeline(iface rhi.PipelineInterface, info renderpack.PipelineCreateInfo, pass rhi.Renderpass) (rhi.Pipeline, error) {
	vkIface, ok := iface.(*pipelineInterface)
	if !ok {
		return nil, errors.New("pipeline interface does not belong to this device")
	}
	vkPass, ok := pass.(*renderpass)
	if !ok {
		return nil, errors.New("render pass does not belong to this device")
	}

	var modules []vk.ShaderModule
	defer func() {
		for _, module := range modules {
			vk.DestroyShaderModule(d.logicalDevice, module, nil)
		}
	}()

	vertexModule, err := d.createShaderModule(info.VertexShader)
	if err != nil {
		return nil, err
	}
	modules = append(modules, vertexModule)
	stages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: vertexModule,
		PName:  "main\x00",
	}}
	if info.GeometryShader != nil {
		geometryModule, err := d.createShaderModule(*info.GeometryShader)
		if err != nil {
			return nil, err
		}
		modules = append(modules, geometryModule)
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageGeometryBit,
			Module: geometryModule,
			PName:  "main\x00",
		})
	}
	if info.FragmentShader != nil {
		fragmentModule, err := d.createShaderModule(*info.FragmentShader)
		if err != nil {
			return nil, err
		}
		modules = append(modules, fragmentModule)
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragmentModule,
			PName:  "main\x00",
		})
	}

	offsets := model.VertexOffsets()
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    uint32(model.VertexSize),
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: 3,
		PVertexAttributeDescriptions: []vk.VertexInputAttributeDescription{{
			Location: 0,
			Binding:  0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(offsets[0]),
		}, {
			Location: 1,
			Binding:  0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(offsets[1]),
		}, {
			Location: 2,
			Binding:  0,
			Format:   vk.FormatR32g32Sfloat,
			Offset:   uint32(offsets[2]),
		}},
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vkTopology(info.Topology),
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterization := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp:   vk.CompareOpLessOrEqual,
		MaxDepthBounds:   1.0,
		DepthTestEnable:  vk.False,
		DepthWriteEnable: vk.False,
		Back: vk.StencilOpState{
			FailOp:    vk.StencilOpKeep,
			PassOp:    vk.StencilOpKeep,
			CompareOp: vk.CompareOpAlways,
		},
		Front: vk.StencilOpState{
			FailOp:    vk.StencilOpKeep,
			PassOp:    vk.StencilOpKeep,
			CompareOp: vk.CompareOpAlways,
		},
	}
	if info.DepthTestEnabled {
		depthStencil.DepthTestEnable = vk.True
	}
	if info.DepthWriteEnabled {
		depthStencil.DepthWriteEnable = vk.True
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, vkPass.numColor)
	for idx := range blendAttachments {
		blendAttachments[idx] = vk.PipelineColorBlendAttachmentState{
			ColorWriteMask: vk.ColorComponentFlags(
				vk.ColorComponentRBit | vk.ColorComponentGBit |
					vk.ColorComponentBBit | vk.ColorComponentABit),
			BlendEnable: vk.False,
		}
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: 2,
		PDynamicStates: []vk.DynamicState{
			vk.DynamicStateViewport,
			vk.DynamicStateScissor,
		},
	}

	if err := d.ensurePipelineCache(); err != nil {
		return nil, err
	}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterization,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              vkIface.layout,
		RenderPass:          vkPass.raw,
	}}
	pipelines := make([]vk.Pipeline, 1)
	if err := vk.Error(vk.CreateGraphicsPipelines(d.logicalDevice, d.pipelineCache, 1, gpci, nil, pipelines)); err != nil {
		return nil, errors.New("vk.CreateGraphicsPipelines(): " + err.Error())
	}
	return &pipeline{raw: pipelines[0], layout: vkIface.layout}, nil
}

func (d *Device) ensurePipelineCache() error {
	if d.pipelineCache != vk.NullPipelineCache {
		return nil
	}
	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if err := vk.Error(vk.CreatePipelineCache(d.logicalDevice, &pcci, nil, &d.pipelineCache)); err != nil {
		return errors.New("vk.CreatePipelineCache(): " + err.Error())
	}
	return nil
}

// DestroyPipeline implements rhi.Device.
func (d *Device) DestroyPipeline(p rhi.Pipeline) {
	if target, ok := p.(*pipeline); ok {
		vk.DestroyPipeline(d.logicalDevice, target.raw, nil)
	}
}
