// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wgr

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/okapi3d/okapi/memory"
	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

type buffer struct {
	raw  *wgpu.Buffer
	size uint64
}

// Size implements rhi.Buffer.
func (b *buffer) Size() uint64 { return b.size }

// HostVisible implements rhi.Buffer. Queue writes reach every wgpu
// buffer, so all buffers count as host visible.
func (b *buffer) HostVisible() bool { return true }

func bufferUsage(usage rhi.BufferUsage) wgpu.BufferUsage {
	switch usage {
	case rhi.BufferUsageUniform:
		return wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	case rhi.BufferUsageVertex:
		return wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	case rhi.BufferUsageIndex:
		return wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	default:
		return wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	}
}

// CreateBuffer implements rhi.Device. The resource is charged for
// the allocation so pool budgets still hold, placement is wgpu's.
func (d *Device) CreateBuffer(info rhi.BufferCreateInfo, res *memory.Resource) (rhi.Buffer, error) {
	alloc, err := res.Allocate(info.Size)
	if err != nil {
		return nil, err
	}
	raw, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: info.Name,
		Size:  alloc.Size,
		Usage: bufferUsage(info.Usage),
	})
	if err != nil {
		res.Free(alloc)
		return nil, fmt.Errorf("wgpu.CreateBuffer(): %w", err)
	}
	return &buffer{raw: raw, size: info.Size}, nil
}

// WriteDataToBuffer implements rhi.Device.
func (d *Device) WriteDataToBuffer(data []byte, buf rhi.Buffer) error {
	target, ok := buf.(*buffer)
	if !ok {
		return errors.New("buffer does not belong to this device")
	}
	if uint64(len(data)) > target.size {
		return fmt.Errorf("write of %d bytes exceeds buffer size %d", len(data), target.size)
	}
	return d.queue.WriteBuffer(target.raw, 0, data)
}

type image struct {
	raw     *wgpu.Texture
	view    *wgpu.TextureView
	size    rhi.Extent
	format  wgpu.TextureFormat
	isDepth bool
}

// Size implements rhi.Image.
func (i *image) Size() rhi.Extent { return i.size }

func wgpuFormat(format renderpack.PixelFormat) wgpu.TextureFormat {
	switch format {
	case renderpack.PixelFormatRGBA8:
		return wgpu.TextureFormatRGBA8Unorm
	case renderpack.PixelFormatRGBA16F:
		return wgpu.TextureFormatRGBA16Float
	case renderpack.PixelFormatRGBA32F:
		return wgpu.TextureFormatRGBA32Float
	case renderpack.PixelFormatDepth32:
		return wgpu.TextureFormatDepth32Float
	default:
		return wgpu.TextureFormatDepth24PlusStencil8
	}
}

// CreateImage implements rhi.Device.
func (d *Device) CreateImage(info renderpack.TextureCreateInfo, size rhi.Extent) (rhi.Image, error) {
	isDepth := info.Format.PixelFormat.IsDepthFormat()
	usage := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst

	raw, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: info.Name,
		Size: wgpu.Extent3D{
			Width:              size.Width,
			Height:             size.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpuFormat(info.Format.PixelFormat),
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu.CreateTexture(): %w", err)
	}
	view, err := raw.CreateView(nil)
	if err != nil {
		raw.Release()
		return nil, fmt.Errorf("wgpu.Texture.CreateView(): %w", err)
	}
	return &image{
		raw:     raw,
		view:    view,
		size:    size,
		format:  wgpuFormat(info.Format.PixelFormat),
		isDepth: isDepth,
	}, nil
}

// DestroyTexture implements rhi.Device.
func (d *Device) DestroyTexture(img rhi.Image) {
	target, ok := img.(*image)
	if !ok {
		return
	}
	target.view.Release()
	target.raw.Release()
}

type sampler struct {
	raw *wgpu.Sampler
}

func filterMode(f rhi.Filter) wgpu.FilterMode {
	if f == rhi.FilterLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}

// CreateSampler implements rhi.Device.
func (d *Device) CreateSampler(info rhi.SamplerCreateInfo) (rhi.Sampler, error) {
	raw, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     filterMode(info.MagFilter),
		MinFilter:     filterMode(info.MinFilter),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   1.0,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu.CreateSampler(): %w", err)
	}
	return &sampler{raw: raw}, nil
}
