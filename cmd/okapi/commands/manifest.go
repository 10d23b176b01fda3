// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/okapi3d/okapi/renderer"
	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

// manifest is the JSON source form of a renderpack. The pack
// command compiles it into the gob entries the loader consumes.
type manifest struct {
	Name      string                       `json:"name"`
	Passes    []passManifest               `json:"passes"`
	Textures  []textureManifest            `json:"textures"`
	Pipelines []pipelineManifest           `json:"pipelines"`
	Materials []materialManifest           `json:"materials"`
	Bindings  map[string][]bindingManifest `json:"bindings"`
}

type attachmentManifest struct {
	Name              string `json:"name"`
	PixelFormat       string `json:"pixelFormat"`
	ClearBeforeRender bool   `json:"clearBeforeRender"`
}

type passManifest struct {
	Name           string               `json:"name"`
	TextureInputs  []string             `json:"textureInputs"`
	TextureOutputs []attachmentManifest `json:"textureOutputs"`
	DepthTexture   *attachmentManifest  `json:"depthTexture"`
}

type textureManifest struct {
	Name           string  `json:"name"`
	PixelFormat    string  `json:"pixelFormat"`
	ScreenRelative bool    `json:"screenRelative"`
	Width          float32 `json:"width"`
	Height         float32 `json:"height"`
}

type pipelineManifest struct {
	Name              string `json:"name"`
	Pass              string `json:"pass"`
	VertexShader      string `json:"vertexShader"`
	GeometryShader    string `json:"geometryShader"`
	FragmentShader    string `json:"fragmentShader"`
	Topology          string `json:"topology"`
	DepthTestEnabled  bool   `json:"depthTest"`
	DepthWriteEnabled bool   `json:"depthWrite"`
}

type materialManifest struct {
	Name   string                 `json:"name"`
	Passes []materialPassManifest `json:"passes"`
}

type materialPassManifest struct {
	Name     string            `json:"name"`
	Pipeline string            `json:"pipeline"`
	Bindings map[string]string `json:"bindings"`
}

type bindingManifest struct {
	Name      string `json:"name"`
	Set       uint32 `json:"set"`
	Binding   uint32 `json:"binding"`
	Count     uint32 `json:"count"`
	Unbounded bool   `json:"unbounded"`
	Type      string `json:"type"`
}

func readManifest(path string) (*manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

func parsePixelFormat(name string) (renderpack.PixelFormat, error) {
	switch name {
	case "rgba8":
		return renderpack.PixelFormatRGBA8, nil
	case "rgba16f":
		return renderpack.PixelFormatRGBA16F, nil
	case "rgba32f":
		return renderpack.PixelFormatRGBA32F, nil
	case "depth32":
		return renderpack.PixelFormatDepth32, nil
	case "depth24stencil8":
		return renderpack.PixelFormatDepth24Stencil8, nil
	default:
		return 0, fmt.Errorf("unknown pixel format %q", name)
	}
}

func parseTopology(name string) (renderpack.PrimitiveTopology, error) {
	switch name {
	case "", "triangles":
		return renderpack.TopologyTriangleList, nil
	case "lines":
		return renderpack.TopologyLineList, nil
	case "points":
		return renderpack.TopologyPointList, nil
	default:
		return 0, fmt.Errorf("unknown topology %q", name)
	}
}

func parseDescriptorType(name string) (rhi.DescriptorType, error) {
	switch name {
	case "uniform_buffer":
		return rhi.DescriptorUniformBuffer, nil
	case "storage_buffer":
		return rhi.DescriptorStorageBuffer, nil
	case "combined_image_sampler":
		return rhi.DescriptorCombinedImageSampler, nil
	case "texture":
		return rhi.DescriptorTexture, nil
	case "sampler":
		return rhi.DescriptorSampler, nil
	default:
		return 0, fmt.Errorf("unknown descriptor type %q", name)
	}
}

func (a *attachmentManifest) convert() (renderpack.TextureAttachmentInfo, error) {
	format, err := parsePixelFormat(a.PixelFormat)
	if err != nil {
		return renderpack.TextureAttachmentInfo{}, fmt.Errorf("attachment %s: %w", a.Name, err)
	}
	return renderpack.TextureAttachmentInfo{
		Name:              a.Name,
		PixelFormat:       format,
		ClearBeforeRender: a.ClearBeforeRender,
	}, nil
}

// compile turns the manifest into the renderpack data and the
// shader binding table, and lists the shader files to archive.
func (m *manifest) compile() (*renderpack.RenderpackData, map[string][]renderer.NamedBinding, []string, error) {
	data := &renderpack.RenderpackData{Name: m.Name}

	for _, pass := range m.Passes {
		info := renderpack.RenderPassCreateInfo{
			Name:          pass.Name,
			TextureInputs: pass.TextureInputs,
		}
		for _, output := range pass.TextureOutputs {
			attachment, err := output.convert()
			if err != nil {
				return nil, nil, nil, fmt.Errorf("pass %s: %w", pass.Name, err)
			}
			info.TextureOutputs = append(info.TextureOutputs, attachment)
		}
		if pass.DepthTexture != nil {
			attachment, err := pass.DepthTexture.convert()
			if err != nil {
				return nil, nil, nil, fmt.Errorf("pass %s: %w", pass.Name, err)
			}
			info.DepthTexture = &attachment
		}
		data.Passes = append(data.Passes, info)
	}

	for _, texture := range m.Textures {
		format, err := parsePixelFormat(texture.PixelFormat)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("texture %s: %w", texture.Name, err)
		}
		dimension := renderpack.DimensionAbsolute
		if texture.ScreenRelative {
			dimension = renderpack.DimensionScreenRelative
		}
		data.Textures = append(data.Textures, renderpack.TextureCreateInfo{
			Name: texture.Name,
			Format: renderpack.TextureFormat{
				PixelFormat: format,
				Dimension:   dimension,
				Width:       texture.Width,
				Height:      texture.Height,
			},
		})
	}

	var shaderFiles []string
	for _, pipeline := range m.Pipelines {
		topology, err := parseTopology(pipeline.Topology)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("pipeline %s: %w", pipeline.Name, err)
		}
		if pipeline.VertexShader == "" {
			return nil, nil, nil, fmt.Errorf("pipeline %s has no vertex shader", pipeline.Name)
		}
		info := renderpack.PipelineCreateInfo{
			Name:              pipeline.Name,
			Pass:              pipeline.Pass,
			VertexShader:      renderpack.ShaderSource{Filename: pipeline.VertexShader},
			Topology:          topology,
			DepthTestEnabled:  pipeline.DepthTestEnabled,
			DepthWriteEnabled: pipeline.DepthWriteEnabled,
		}
		shaderFiles = append(shaderFiles, pipeline.VertexShader)
		if pipeline.GeometryShader != "" {
			info.GeometryShader = &renderpack.ShaderSource{Filename: pipeline.GeometryShader}
			shaderFiles = append(shaderFiles, pipeline.GeometryShader)
		}
		if pipeline.FragmentShader != "" {
			info.FragmentShader = &renderpack.ShaderSource{Filename: pipeline.FragmentShader}
			shaderFiles = append(shaderFiles, pipeline.FragmentShader)
		}
		data.Pipelines = append(data.Pipelines, info)
	}

	for _, material := range m.Materials {
		materialData := renderpack.MaterialData{Name: material.Name}
		for _, pass := range material.Passes {
			materialData.Passes = append(materialData.Passes, renderpack.MaterialPassData{
				Name:         pass.Name,
				MaterialName: material.Name,
				Pipeline:     pass.Pipeline,
				Bindings:     pass.Bindings,
			})
		}
		data.Materials = append(data.Materials, materialData)
	}

	table := make(map[string][]renderer.NamedBinding, len(m.Bindings))
	for shader, bindings := range m.Bindings {
		for _, binding := range bindings {
			descriptorType, err := parseDescriptorType(binding.Type)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("shader %s binding %s: %w", shader, binding.Name, err)
			}
			count := binding.Count
			if count == 0 {
				count = 1
			}
			table[shader] = append(table[shader], renderer.NamedBinding{
				Name: binding.Name,
				Description: rhi.ResourceBindingDescription{
					Set:       binding.Set,
					Binding:   binding.Binding,
					Count:     count,
					Unbounded: binding.Unbounded,
					Type:      descriptorType,
				},
			})
		}
	}
	return data, table, shaderFiles, nil
}
