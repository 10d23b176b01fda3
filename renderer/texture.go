// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

// CreateTexture uploads a decoded image as a sampled texture under
// the given name. Material bindings resolve it like any dynamic
// texture, but unlike renderpack textures it survives pack reloads.
// Images larger than the device limit are downscaled.
func (r *Renderer) CreateTexture(name string, src image.Image) error {
	r.loadMutex.Lock()
	defer r.loadMutex.Unlock()

	if _, ok := r.dynamicTextures[name]; ok {
		return fmt.Errorf("texture %s already exists", name)
	}

	pixels, width, height := rgbaPixels(src, int(r.device.Info().MaxTextureSize))

	info := renderpack.TextureCreateInfo{
		Name: name,
		Format: renderpack.TextureFormat{
			PixelFormat: renderpack.PixelFormatRGBA8,
			Dimension:   renderpack.DimensionAbsolute,
			Width:       float32(width),
			Height:      float32(height),
		},
	}
	texture, err := r.device.CreateImage(info, rhi.Extent{Width: width, Height: height})
	if err != nil {
		return fmt.Errorf("texture %s: %w", name, err)
	}

	staging, err := r.device.CreateBuffer(rhi.BufferCreateInfo{
		Name:  "texture staging",
		Size:  uint64(len(pixels)),
		Usage: rhi.BufferUsageStaging,
	}, r.stagingPool)
	if err != nil {
		r.device.DestroyTexture(texture)
		return fmt.Errorf("texture %s staging: %w", name, err)
	}
	if err := r.device.WriteDataToBuffer(pixels, staging); err != nil {
		r.device.DestroyTexture(texture)
		return err
	}

	cmds, err := r.device.CreateCommandList(0, rhi.QueueTransfer, rhi.CommandListPrimary)
	if err != nil {
		r.device.DestroyTexture(texture)
		return err
	}
	cmds.UploadDataToImage(texture, width, height, 4, pixels, staging)

	fences, err := r.device.CreateFences(1, false)
	if err != nil {
		r.device.DestroyTexture(texture)
		return err
	}
	if err := r.device.SubmitCommandList(cmds, rhi.QueueTransfer, fences[0], nil, nil); err != nil {
		r.device.DestroyFences(fences)
		r.device.DestroyTexture(texture)
		return err
	}
	r.device.WaitForFences(fences)
	r.device.DestroyFences(fences)

	r.dynamicTextures[name] = texture
	r.dynamicTextureInfos[name] = info
	r.externalTextures[name] = true
	return nil
}

// DestroyTexture releases a texture created with CreateTexture.
func (r *Renderer) DestroyTexture(name string) {
	r.loadMutex.Lock()
	defer r.loadMutex.Unlock()

	if !r.externalTextures[name] {
		return
	}
	if texture, ok := r.dynamicTextures[name]; ok {
		r.device.DestroyTexture(texture)
	}
	delete(r.dynamicTextures, name)
	delete(r.dynamicTextureInfos, name)
	delete(r.externalTextures, name)
}

// rgbaPixels arranges a decoded image into tightly packed RGBA
// pixels, downscaling when the image exceeds maxExtent on a side.
func rgbaPixels(img image.Image, maxExtent int) ([]uint8, uint32, uint32) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxExtent > 0 && (width > maxExtent || height > maxExtent) {
		scale := float64(maxExtent) / float64(width)
		if height > width {
			scale = float64(maxExtent) / float64(height)
		}
		width = int(float64(width) * scale)
		height = int(float64(height) * scale)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), img, bounds, draw.Src, nil)
	return canvas.Pix, uint32(width), uint32(height)
}
