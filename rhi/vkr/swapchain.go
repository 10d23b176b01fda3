// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"
	"math"

	vk "github.com/devblok/vulkan"

	"github.com/okapi3d/okapi/rhi"
)

// Swapchain is the Vulkan presentation chain. It owns the per-image
// framebuffers that backbuffer passes render into.
type Swapchain struct {
	device *Device

	raw    vk.Swapchain
	format vk.Format
	extent rhi.Extent

	images       []*image
	framebuffers []*framebuffer

	// pass is only used to create compatible framebuffers.
	pass vk.RenderPass

	acquireFence vk.Fence
}

func newSwapchain(d *Device, cfg Config) (*Swapchain, error) {
	var capabilities vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, d.surface, &capabilities)); err != nil {
		return nil, errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + err.Error())
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()

	extent := rhi.Extent{
		Width:  capabilities.CurrentExtent.Width,
		Height: capabilities.CurrentExtent.Height,
	}
	if extent.Width == math.MaxUint32 {
		extent = rhi.Extent{Width: cfg.ScreenWidth, Height: cfg.ScreenHeight}
	}

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &formatCount, nil)
	if formatCount == 0 {
		return nil, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): no surface formats")
	}
	surfaceFormats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &formatCount, surfaceFormats)

	surfaceFormats[0].Deref()
	chosenFormat := surfaceFormats[0]
	for idx := range surfaceFormats {
		surfaceFormats[idx].Deref()
		if surfaceFormats[idx].Format == vk.FormatB8g8r8a8Unorm {
			chosenFormat = surfaceFormats[idx]
			break
		}
	}

	desiredImages := cfg.SwapchainSize
	if desiredImages < capabilities.MinImageCount {
		desiredImages = capabilities.MinImageCount
	}
	if capabilities.MaxImageCount > 0 && desiredImages > capabilities.MaxImageCount {
		desiredImages = capabilities.MaxImageCount
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	alphaModes := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}
	for _, mode := range alphaModes {
		if capabilities.SupportedCompositeAlpha&vk.CompositeAlphaFlags(mode) != 0 {
			compositeAlpha = mode
			break
		}
	}

	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         d.surface,
		MinImageCount:   desiredImages,
		ImageFormat:     chosenFormat.Format,
		ImageColorSpace: chosenFormat.ColorSpace,
		ImageExtent: vk.Extent2D{
			Width:  extent.Width,
			Height: extent.Height,
		},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
	}
	var chain vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(d.logicalDevice, &scci, nil, &chain)); err != nil {
		return nil, errors.New("vk.CreateSwapchain(): " + err.Error())
	}

	s := &Swapchain{
		device: d,
		raw:    chain,
		format: chosenFormat.Format,
		extent: extent,
	}

	var imageCount uint32
	if err := vk.Error(vk.GetSwapchainImages(d.logicalDevice, chain, &imageCount, nil)); err != nil {
		return nil, errors.New("vk.GetSwapchainImages(): " + err.Error())
	}
	swapImages := make([]vk.Image, imageCount)
	if err := vk.Error(vk.GetSwapchainImages(d.logicalDevice, chain, &imageCount, swapImages)); err != nil {
		return nil, errors.New("vk.GetSwapchainImages(): " + err.Error())
	}

	for _, swapImage := range swapImages {
		ivci := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    swapImage,
			ViewType: vk.ImageViewType2d,
			Format:   chosenFormat.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleR,
				G: vk.ComponentSwizzleG,
				B: vk.ComponentSwizzleB,
				A: vk.ComponentSwizzleA,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		var view vk.ImageView
		if err := vk.Error(vk.CreateImageView(d.logicalDevice, &ivci, nil, &view)); err != nil {
			return nil, errors.New("vk.CreateImageView(): " + err.Error())
		}
		s.images = append(s.images, &image{
			raw:    swapImage,
			view:   view,
			size:   extent,
			format: chosenFormat.Format,
		})
	}

	if err := s.createFramebufferPass(); err != nil {
		return nil, err
	}
	for _, img := range s.images {
		fci := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      s.pass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{img.view},
			Width:           extent.Width,
			Height:          extent.Height,
			Layers:          1,
		}
		var fb vk.Framebuffer
		if err := vk.Error(vk.CreateFramebuffer(d.logicalDevice, &fci, nil, &fb)); err != nil {
			return nil, errors.New("vk.CreateFramebuffer(): " + err.Error())
		}
		s.framebuffers = append(s.framebuffers, &framebuffer{raw: fb, size: extent})
	}

	fences, err := d.CreateFences(1, false)
	if err != nil {
		return nil, err
	}
	s.acquireFence = fences[0].(vk.Fence)
	return s, nil
}

// createFramebufferPass builds a single-attachment pass compatible
// with every backbuffer-writing pass. Load and store ops do not
// matter for framebuffer compatibility.
func (s *Swapchain) createFramebufferPass() error {
	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments: []vk.AttachmentDescription{{
			Format:         s.format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		}},
		SubpassCount: 1,
		PSubpasses: []vk.SubpassDescription{{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: 1,
			PColorAttachments: []vk.AttachmentReference{{
				Attachment: 0,
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			}},
		}},
	}
	if err := vk.Error(vk.CreateRenderPass(s.device.logicalDevice, &rpci, nil, &s.pass)); err != nil {
		return errors.New("vk.CreateRenderPass(): " + err.Error())
	}
	return nil
}

// AcquireNextImage implements rhi.Swapchain, blocking until the
// acquired image is actually free.
func (s *Swapchain) AcquireNextImage() (uint32, error) {
	var idx uint32
	result := vk.AcquireNextImage(s.device.logicalDevice, s.raw, uint(vk.MaxUint64), vk.NullSemaphore, s.acquireFence, &idx)
	if err := vk.Error(result); err != nil {
		return 0, errors.New("vk.AcquireNextImage(): " + err.Error())
	}
	fences := []vk.Fence{s.acquireFence}
	vk.WaitForFences(s.device.logicalDevice, 1, fences, vk.True, uint(vk.MaxUint64))
	vk.ResetFences(s.device.logicalDevice, 1, fences)
	return idx, nil
}

// Framebuffer implements rhi.Swapchain.
func (s *Swapchain) Framebuffer(idx uint32) rhi.Framebuffer { return s.framebuffers[idx] }

// Image implements rhi.Swapchain.
func (s *Swapchain) Image(idx uint32) rhi.Image { return s.images[idx] }

// Present implements rhi.Swapchain.
func (s *Swapchain) Present(idx uint32, wait []rhi.Semaphore) error {
	waitSems := rawSemaphores(wait)
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waitSems)),
		PWaitSemaphores:    waitSems,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.raw},
		PImageIndices:      []uint32{idx},
	}
	result := vk.QueuePresent(s.device.graphicsQueue, &presentInfo)
	if result == vk.ErrorOutOfDate || result == vk.Suboptimal {
		return fmt.Errorf("vk.QueuePresent(): swapchain out of date")
	}
	if err := vk.Error(result); err != nil {
		return errors.New("vk.QueuePresent(): " + err.Error())
	}
	return nil
}

// Size implements rhi.Swapchain.
func (s *Swapchain) Size() rhi.Extent { return s.extent }

// NumImages implements rhi.Swapchain.
func (s *Swapchain) NumImages() uint32 { return uint32(len(s.images)) }

func (s *Swapchain) destroy() {
	device := s.device.logicalDevice
	vk.DestroyFence(device, s.acquireFence, nil)
	for _, fb := range s.framebuffers {
		vk.DestroyFramebuffer(device, fb.raw, nil)
	}
	vk.DestroyRenderPass(device, s.pass, nil)
	for _, img := range s.images {
		vk.DestroyImageView(device, img.view, nil)
	}
	vk.DestroySwapchain(device, s.raw, nil)
}
