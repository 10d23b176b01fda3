// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wgr

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/okapi3d/okapi/model"
	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

// renderpass is only a description here, wgpu builds the real pass
// at encoding time from the framebuffer views.
type renderpass struct {
	info             renderpack.RenderPassCreateInfo
	writesBackbuffer bool
}

type framebuffer struct {
	colors []*wgpu.TextureView
	depth  *wgpu.TextureView
	size   rhi.Extent
}

// Size implements rhi.Framebuffer.
func (f *framebuffer) Size() rhi.Extent { return f.size }

// CreateRenderpass implements rhi.Device.
func (d *Device) CreateRenderpass(info renderpack.RenderPassCreateInfo, textureSizes map[string]rhi.Extent, framebufferSize rhi.Extent) (rhi.Renderpass, error) {
	if _, err := rhi.ValidateRenderpassAttachments(info, textureSizes, framebufferSize); err != nil {
		return nil, err
	}
	return &renderpass{
		info:             info,
		writesBackbuffer: info.WritesBackbuffer(),
	}, nil
}

// CreateFramebuffer implements rhi.Device.
func (d *Device) CreateFramebuffer(pass rhi.Renderpass, colors []rhi.Image, depth rhi.Image, size rhi.Extent) (rhi.Framebuffer, error) {
	fb := &framebuffer{size: size}
	for _, color := range colors {
		img, ok := color.(*image)
		if !ok {
			return nil, errors.New("color attachment does not belong to this device")
		}
		fb.colors = append(fb.colors, img.view)
	}
	if depth != nil {
		img, ok := depth.(*image)
		if !ok {
			return nil, errors.New("depth attachment does not belong to this device")
		}
		fb.depth = img.view
	}
	return fb, nil
}

// DestroyRenderpass implements rhi.Device.
func (d *Device) DestroyRenderpass(pass rhi.Renderpass) {}

// DestroyFramebuffer implements rhi.Device. The views belong to the
// attachment images.
func (d *Device) DestroyFramebuffer(fb rhi.Framebuffer) {}

// pipelineInterface carries the merged bindings and the bind group
// layouts derived from them. Combined image samplers split into a
// texture at the declared binding and a sampler at the next slot,
// matching how WGSL separates the two.
type pipelineInterface struct {
	bindings     map[string]rhi.ResourceBindingDescription
	groupLayouts []*wgpu.BindGroupLayout
	layout       *wgpu.PipelineLayout
}

// Bindings implements rhi.PipelineInterface.
func (p *pipelineInterface) Bindings() map[string]rhi.ResourceBindingDescription {
	return p.bindings
}

func shaderVisibility(stages rhi.ShaderStage) wgpu.ShaderStage {
	var visibility wgpu.ShaderStage
	if stages&rhi.StageVertex != 0 || stages&rhi.StageGeometry != 0 {
		visibility |= wgpu.ShaderStageVertex
	}
	if stages&rhi.StageFragment != 0 {
		visibility |= wgpu.ShaderStageFragment
	}
	if stages&rhi.StageCompute != 0 {
		visibility |= wgpu.ShaderStageCompute
	}
	return visibility
}

func layoutEntries(desc rhi.ResourceBindingDescription) []wgpu.BindGroupLayoutEntry {
	visibility := shaderVisibility(desc.Stages)
	switch desc.Type {
	case rhi.DescriptorUniformBuffer:
		return []wgpu.BindGroupLayoutEntry{{
			Binding:    desc.Binding,
			Visibility: visibility,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		}}
	case rhi.DescriptorStorageBuffer:
		return []wgpu.BindGroupLayoutEntry{{
			Binding:    desc.Binding,
			Visibility: visibility,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
		}}
	case rhi.DescriptorTexture:
		return []wgpu.BindGroupLayoutEntry{{
			Binding:    desc.Binding,
			Visibility: visibility,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		}}
	case rhi.DescriptorSampler:
		return []wgpu.BindGroupLayoutEntry{{
			Binding:    desc.Binding,
			Visibility: visibility,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
		}}
	default:
		return []wgpu.BindGroupLayoutEntry{{
			Binding:    desc.Binding,
			Visibility: visibility,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		}, {
			Binding:    desc.Binding + 1,
			Visibility: visibility,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
		}}
	}
}

// CreatePipelineInterface implements rhi.Device.
func (d *Device) CreatePipelineInterface(bindings map[string]rhi.ResourceBindingDescription, colors []renderpack.TextureAttachmentInfo, depth *renderpack.TextureAttachmentInfo) (rhi.PipelineInterface, error) {
	numGroups := uint32(0)
	for _, desc := range bindings {
		if desc.Set+1 > numGroups {
			numGroups = desc.Set + 1
		}
	}

	perGroup := make([][]wgpu.BindGroupLayoutEntry, numGroups)
	for _, desc := range bindings {
		perGroup[desc.Set] = append(perGroup[desc.Set], layoutEntries(desc)...)
	}

	iface := &pipelineInterface{bindings: bindings}
	for _, entries := range perGroup {
		layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Entries: entries,
		})
		if err != nil {
			return nil, fmt.Errorf("wgpu.CreateBindGroupLayout(): %w", err)
		}
		iface.groupLayouts = append(iface.groupLayouts, layout)
	}

	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: iface.groupLayouts,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu.CreatePipelineLayout(): %w", err)
	}
	iface.layout = layout
	return iface, nil
}

type descriptorPool struct{}

// CreateDescriptorPool implements rhi.Device. Bind groups have no
// pool in wgpu, the counts are ignored.
func (d *Device) CreateDescriptorPool(size rhi.DescriptorPoolSize) (rhi.DescriptorPool, error) {
	return &descriptorPool{}, nil
}

// descriptorSet accumulates entries until its bind group can be
// built, then rebuilds it on every update.
type descriptorSet struct {
	device  *Device
	layout  *wgpu.BindGroupLayout
	entries map[uint32]wgpu.BindGroupEntry
	group   *wgpu.BindGroup
}

// CreateDescriptorSets implements rhi.Device.
func (d *Device) CreateDescriptorSets(iface rhi.PipelineInterface, pool rhi.DescriptorPool) ([]rhi.DescriptorSet, error) {
	wgpuIface, ok := iface.(*pipelineInterface)
	if !ok {
		return nil, errors.New("pipeline interface does not belong to this device")
	}
	sets := make([]rhi.DescriptorSet, len(wgpuIface.groupLayouts))
	for idx, layout := range wgpuIface.groupLayouts {
		sets[idx] = &descriptorSet{
			device:  d,
			layout:  layout,
			entries: make(map[uint32]wgpu.BindGroupEntry),
		}
	}
	return sets, nil
}

// UpdateDescriptorSets implements rhi.Device.
func (d *Device) UpdateDescriptorSets(writes []rhi.DescriptorSetWrite) error {
	touched := make(map[*descriptorSet]struct{})
	for _, write := range writes {
		set, ok := write.Set.(*descriptorSet)
		if !ok {
			return errors.New("descriptor set does not belong to this device")
		}
		touched[set] = struct{}{}

		for _, imageInfo := range write.Images {
			img, ok := imageInfo.Image.(*image)
			if !ok {
				return errors.New("image does not belong to this device")
			}
			set.entries[write.Binding] = wgpu.BindGroupEntry{
				Binding:     write.Binding,
				TextureView: img.view,
			}
			if imageInfo.Sampler != nil {
				smp, ok := imageInfo.Sampler.(*sampler)
				if !ok {
					return errors.New("sampler does not belong to this device")
				}
				set.entries[write.Binding+1] = wgpu.BindGroupEntry{
					Binding: write.Binding + 1,
					Sampler: smp.raw,
				}
			}
		}
		for _, bufferInfo := range write.Buffers {
			buf, ok := bufferInfo.Buffer.(*buffer)
			if !ok {
				return errors.New("buffer does not belong to this device")
			}
			set.entries[write.Binding] = wgpu.BindGroupEntry{
				Binding: write.Binding,
				Buffer:  buf.raw,
				Size:    wgpu.WholeSize,
			}
		}
	}

	for set := range touched {
		entries := make([]wgpu.BindGroupEntry, 0, len(set.entries))
		for _, entry := range set.entries {
			entries = append(entries, entry)
		}
		group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout:  set.layout,
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("wgpu.CreateBindGroup(): %w", err)
		}
		if set.group != nil {
			set.group.Release()
		}
		set.group = group
	}
	return nil
}

type pipeline struct {
	raw *wgpu.RenderPipeline
}

func wgpuTopology(t renderpack.PrimitiveTopology) wgpu.PrimitiveTopology {
	switch t {
	case renderpack.TopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case renderpack.TopologyPointList:
		return wgpu.PrimitiveTopologyPointList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

// CreatePipeline implements rhi.Device. Shader data is WGSL text.
func (d *Device) CreatePipeline(iface rhi.PipelineInterface, info renderpack.PipelineCreateInfo, pass rhi.Renderpass) (rhi.Pipeline, error) {
	wgpuIface, ok := iface.(*pipelineInterface)
	if !ok {
		return nil, errors.New("pipeline interface does not belong to this device")
	}
	wgpuPass, ok := pass.(*renderpass)
	if !ok {
		return nil, errors.New("render pass does not belong to this device")
	}

	vertexModule, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          info.VertexShader.Filename,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: string(info.VertexShader.Data)},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu.CreateShaderModule(): %s: %w", info.VertexShader.Filename, err)
	}
	defer vertexModule.Release()

	offsets := model.VertexOffsets()
	vertexLayout := wgpu.VertexBufferLayout{
		ArrayStride: uint64(model.VertexSize),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{{
			Format:         wgpu.VertexFormatFloat32x3,
			Offset:         offsets[0],
			ShaderLocation: 0,
		}, {
			Format:         wgpu.VertexFormatFloat32x3,
			Offset:         offsets[1],
			ShaderLocation: 1,
		}, {
			Format:         wgpu.VertexFormatFloat32x2,
			Offset:         offsets[2],
			ShaderLocation: 2,
		}},
	}

	descriptor := wgpu.RenderPipelineDescriptor{
		Label:  info.Name,
		Layout: wgpuIface.layout,
		Vertex: wgpu.VertexState{
			Module:     vertexModule,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexLayout},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpuTopology(info.Topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}

	if info.FragmentShader != nil {
		fragmentModule, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:          info.FragmentShader.Filename,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: string(info.FragmentShader.Data)},
		})
		if err != nil {
			return nil, fmt.Errorf("wgpu.CreateShaderModule(): %s: %w", info.FragmentShader.Filename, err)
		}
		defer fragmentModule.Release()

		var targets []wgpu.ColorTargetState
		for _, output := range wgpuPass.info.TextureOutputs {
			format := wgpuFormat(output.PixelFormat)
			if output.Name == renderpack.BackbufferName {
				format = d.surfaceFormat()
			}
			targets = append(targets, wgpu.ColorTargetState{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			})
		}
		descriptor.Fragment = &wgpu.FragmentState{
			Module:     fragmentModule,
			EntryPoint: "fs_main",
			Targets:    targets,
		}
	}

	if wgpuPass.info.DepthTexture != nil {
		depthCompare := wgpu.CompareFunctionAlways
		if info.DepthTestEnabled {
			depthCompare = wgpu.CompareFunctionLess
		}
		descriptor.DepthStencil = &wgpu.DepthStencilState{
			Format:            wgpuFormat(wgpuPass.info.DepthTexture.PixelFormat),
			DepthWriteEnabled: info.DepthWriteEnabled,
			DepthCompare:      depthCompare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilReadMask:   0xFFFFFFFF,
			StencilWriteMask:  0xFFFFFFFF,
		}
	}

	raw, err := d.device.CreateRenderPipeline(&descriptor)
	if err != nil {
		return nil, fmt.Errorf("wgpu.CreateRenderPipeline(): %w", err)
	}
	return &pipeline{raw: raw}, nil
}

func (d *Device) surfaceFormat() wgpu.TextureFormat {
	if d.swapchain != nil {
		return d.swapchain.format
	}
	return wgpu.TextureFormatBGRA8Unorm
}

// DestroyPipeline implements rhi.Device.
func (d *Device) DestroyPipeline(p rhi.Pipeline) {
	if target, ok := p.(*pipeline); ok {
		target.raw.Release()
	}
}
