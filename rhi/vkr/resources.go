// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/devblok/vulkan"

	"github.com/okapi3d/okapi/memory"
	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

// deviceMemory is one vk.DeviceMemory pool carved up by an
// allocation strategy.
type deviceMemory struct {
	device      vk.Device
	memory      vk.DeviceMemory
	size        uint64
	hostVisible bool
	mapped      unsafe.Pointer
}

// Size implements memory.DeviceMemory.
func (m *deviceMemory) Size() uint64 { return m.size }

type buffer struct {
	raw    vk.Buffer
	pool   *deviceMemory
	offset uint64
	size   uint64
}

// Size implements rhi.Buffer.
func (b *buffer) Size() uint64 { return b.size }

// HostVisible implements rhi.Buffer.
func (b *buffer) HostVisible() bool { return b.pool.hostVisible }

func bufferUsageFlags(usage rhi.BufferUsage) vk.BufferUsageFlags {
	switch usage {
	case rhi.BufferUsageUniform:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit | vk.BufferUsageTransferDstBit)
	case rhi.BufferUsageVertex:
		return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit)
	case rhi.BufferUsageIndex:
		return vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit)
	default:
		return vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	}
}

// CreateBuffer implements rhi.Device. The buffer is bound at an
// offset handed out by the resource's allocation strategy.
func (d *Device) CreateBuffer(info rhi.BufferCreateInfo, res *memory.Resource) (rhi.Buffer, error) {
	pool, ok := res.Memory.(*deviceMemory)
	if !ok {
		return nil, errors.New("memory resource does not belong to this device")
	}
	alloc, err := res.Allocate(info.Size)
	if err != nil {
		return nil, err
	}

	bci := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(alloc.Size),
		Usage:       bufferUsageFlags(info.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var vkBuffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(d.logicalDevice, &bci, nil, &vkBuffer)); err != nil {
		res.Free(alloc)
		return nil, fmt.Errorf("vk.CreateBuffer(): %s", err.Error())
	}
	if err := vk.Error(vk.BindBufferMemory(d.logicalDevice, vkBuffer, pool.memory, vk.DeviceSize(alloc.Offset))); err != nil {
		vk.DestroyBuffer(d.logicalDevice, vkBuffer, nil)
		res.Free(alloc)
		return nil, fmt.Errorf("vk.BindBufferMemory(): %s", err.Error())
	}

	return &buffer{
		raw:    vkBuffer,
		pool:   pool,
		offset: alloc.Offset,
		size:   info.Size,
	}, nil
}

// WriteDataToBuffer implements rhi.Device. Host visible pools are
// persistently mapped, the write is a plain copy.
func (d *Device) WriteDataToBuffer(data []byte, buf rhi.Buffer) error {
	target, ok := buf.(*buffer)
	if !ok {
		return errors.New("buffer does not belong to this device")
	}
	if !target.pool.hostVisible {
		return rhi.ErrBufferNotHostVisible
	}
	if uint64(len(data)) > target.size {
		return fmt.Errorf("write of %d bytes exceeds buffer size %d", len(data), target.size)
	}

	const m = 0x7fffffff
	dst := (*[m]byte)(unsafe.Pointer(uintptr(target.pool.mapped) + uintptr(target.offset)))[:len(data)]
	copy(dst, data)
	return nil
}

type image struct {
	raw      vk.Image
	view     vk.ImageView
	mem      vk.DeviceMemory
	size     rhi.Extent
	format   vk.Format
	isDepth  bool
	mipCount uint32
}

// Size implements rhi.Image.
func (i *image) Size() rhi.Extent { return i.size }

// CreateImage implements rhi.Device. Dynamic textures get a
// dedicated allocation, they are few and long lived.
func (d *Device) CreateImage(info renderpack.TextureCreateInfo, size rhi.Extent) (rhi.Image, error) {
	format := vkFormat(info.Format.PixelFormat)
	isDepth := info.Format.PixelFormat.IsDepthFormat()

	usage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit)
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if isDepth {
		usage = vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit)
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}

	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  size.Width,
			Height: size.Height,
			Depth:  1,
		},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       usage,
	}
	var vkImage vk.Image
	if err := vk.Error(vk.CreateImage(d.logicalDevice, &ici, nil, &vkImage)); err != nil {
		return nil, fmt.Errorf("vk.CreateImage(): %s", err.Error())
	}

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.logicalDevice, vkImage, &memReqs)
	memReqs.Deref()

	memoryType, err := d.getMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(d.logicalDevice, vkImage, nil)
		return nil, err
	}
	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryType,
	}
	var mem vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(d.logicalDevice, &mai, nil, &mem)); err != nil {
		vk.DestroyImage(d.logicalDevice, vkImage, nil)
		return nil, fmt.Errorf("vk.AllocateMemory(): %s", err.Error())
	}
	if err := vk.Error(vk.BindImageMemory(d.logicalDevice, vkImage, mem, 0)); err != nil {
		vk.FreeMemory(d.logicalDevice, mem, nil)
		vk.DestroyImage(d.logicalDevice, vkImage, nil)
		return nil, fmt.Errorf("vk.BindImageMemory(): %s", err.Error())
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vkImage,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(d.logicalDevice, &ivci, nil, &view)); err != nil {
		vk.FreeMemory(d.logicalDevice, mem, nil)
		vk.DestroyImage(d.logicalDevice, vkImage, nil)
		return nil, fmt.Errorf("vk.CreateImageView(): %s", err.Error())
	}

	return &image{
		raw:      vkImage,
		view:     view,
		mem:      mem,
		size:     size,
		format:   format,
		isDepth:  isDepth,
		mipCount: 1,
	}, nil
}

// DestroyTexture implements rhi.Device.
func (d *Device) DestroyTexture(img rhi.Image) {
	target, ok := img.(*image)
	if !ok {
		return
	}
	vk.DestroyImageView(d.logicalDevice, target.view, nil)
	vk.DestroyImage(d.logicalDevice, target.raw, nil)
	vk.FreeMemory(d.logicalDevice, target.mem, nil)
}

type sampler struct {
	raw vk.Sampler
}

func vkFilter(f rhi.Filter) vk.Filter {
	if f == rhi.FilterLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

// CreateSampler implements rhi.Device.
func (d *Device) CreateSampler(info rhi.SamplerCreateInfo) (rhi.Sampler, error) {
	sci := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MinFilter:    vkFilter(info.MinFilter),
		MagFilter:    vkFilter(info.MagFilter),
		MipmapMode:   vk.SamplerMipmapModeNearest,
		AddressModeU: vk.SamplerAddressModeRepeat,
		AddressModeV: vk.SamplerAddressModeRepeat,
		AddressModeW: vk.SamplerAddressModeRepeat,
		MaxLod:       1.0,
		BorderColor:  vk.BorderColorFloatOpaqueWhite,
	}
	var vkSampler vk.Sampler
	if err := vk.Error(vk.CreateSampler(d.logicalDevice, &sci, nil, &vkSampler)); err != nil {
		return nil, fmt.Errorf("vk.CreateSampler(): %s", err.Error())
	}
	return &sampler{raw: vkSampler}, nil
}
