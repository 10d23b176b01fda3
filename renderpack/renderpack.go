// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package renderpack defines the declarative data model a renderpack
// delivers: render pass declarations, dynamic texture descriptions,
// pipeline state, and material binding maps. Parsing the on-disk
// format is the loader's job, this package only describes the shapes
// and computes pass ordering.
package renderpack

// BackbufferName is the reserved attachment name referring to the
// swapchain backbuffer. A pass writing it owns no private framebuffer.
const BackbufferName = "Backbuffer"

// SceneOutputName is the engine-provided render target the scene is
// composited into before UI drawing.
const SceneOutputName = "SceneOutput"

// PixelFormat enumerates the texture formats a renderpack may request.
type PixelFormat int

// Supported pixel formats.
const (
	PixelFormatRGBA8 PixelFormat = iota
	PixelFormatRGBA16F
	PixelFormatRGBA32F
	PixelFormatDepth32
	PixelFormatDepth24Stencil8
)

// BytesPerPixel returns the per-pixel byte footprint of the format.
func (f PixelFormat) BytesPerPixel() uint64 {
	switch f {
	case PixelFormatRGBA8, PixelFormatDepth32, PixelFormatDepth24Stencil8:
		return 4
	case PixelFormatRGBA16F:
		return 8
	case PixelFormatRGBA32F:
		return 16
	default:
		return 4
	}
}

// IsDepthFormat reports whether the format holds depth data.
func (f PixelFormat) IsDepthFormat() bool {
	return f == PixelFormatDepth32 || f == PixelFormatDepth24Stencil8
}

// DimensionType says how a texture's size is to be interpreted.
type DimensionType int

const (
	// DimensionAbsolute sizes are in pixels.
	DimensionAbsolute DimensionType = iota

	// DimensionScreenRelative sizes are a multiplier of the
	// swapchain size, 1.0 meaning full resolution.
	DimensionScreenRelative
)

// TextureFormat describes the format and size of a dynamic texture.
type TextureFormat struct {
	PixelFormat PixelFormat
	Dimension   DimensionType
	Width       float32
	Height      float32
}

// SizeInPixels resolves the texture size against the current
// swapchain size.
func (f TextureFormat) SizeInPixels(screenWidth, screenHeight uint32) (uint32, uint32) {
	if f.Dimension == DimensionScreenRelative {
		return uint32(f.Width * float32(screenWidth)), uint32(f.Height * float32(screenHeight))
	}
	return uint32(f.Width), uint32(f.Height)
}

// TextureCreateInfo declares one dynamic texture the renderpack needs.
type TextureCreateInfo struct {
	Name   string
	Format TextureFormat
}

// TextureAttachmentInfo names a texture a pass reads or writes.
type TextureAttachmentInfo struct {
	Name              string
	PixelFormat       PixelFormat
	ClearBeforeRender bool
}

// RenderPassCreateInfo declares one render pass.
type RenderPassCreateInfo struct {
	Name string

	// TextureInputs are attachment names written by earlier passes.
	TextureInputs []string

	// TextureOutputs are the color attachments the pass writes.
	TextureOutputs []TextureAttachmentInfo

	// DepthTexture is the optional depth attachment.
	DepthTexture *TextureAttachmentInfo
}

// WritesBackbuffer reports whether any output is the backbuffer.
func (i *RenderPassCreateInfo) WritesBackbuffer() bool {
	for _, out := range i.TextureOutputs {
		if out.Name == BackbufferName {
			return true
		}
	}
	return false
}

// ShaderSource is one compiled shader stage. Data holds whatever
// binary form the active backend consumes.
type ShaderSource struct {
	Filename string
	Data     []byte
}

// PrimitiveTopology selects how vertices assemble into primitives.
type PrimitiveTopology int

const (
	TopologyTriangleList PrimitiveTopology = iota
	TopologyLineList
	TopologyPointList
)

// PipelineCreateInfo declares one graphics pipeline and the pass it
// renders in.
type PipelineCreateInfo struct {
	Name string
	Pass string

	VertexShader   ShaderSource
	GeometryShader *ShaderSource
	FragmentShader *ShaderSource

	Topology          PrimitiveTopology
	DepthTestEnabled  bool
	DepthWriteEnabled bool
}

// MaterialPassData binds shader resource names to renderer resource
// names for one pass of a material.
type MaterialPassData struct {
	Name         string
	MaterialName string
	Pipeline     string

	// Bindings maps a shader binding name to the name of a dynamic
	// texture or builtin buffer.
	Bindings map[string]string
}

// MaterialData is one material with its per-pipeline passes.
type MaterialData struct {
	Name   string
	Passes []MaterialPassData
}

// RenderpackData is everything a loaded renderpack declares.
type RenderpackData struct {
	Name      string
	Passes    []RenderPassCreateInfo
	Textures  []TextureCreateInfo
	Pipelines []PipelineCreateInfo
	Materials []MaterialData
}
