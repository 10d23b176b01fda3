// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wgr

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/okapi3d/okapi/rhi"
)

// swapchain drives the configured surface. wgpu hands out one
// surface texture at a time, the slot indices only cycle the
// bookkeeping the frame loop keys its pools and fences on.
type swapchain struct {
	device *Device

	surface *wgpu.Surface
	format  wgpu.TextureFormat
	size    rhi.Extent

	numImages uint32
	cursor    uint32

	current     *wgpu.Texture
	currentView *wgpu.TextureView
}

func newSwapchain(d *Device, surface *wgpu.Surface, cfg Config) *swapchain {
	format := wgpu.TextureFormatBGRA8Unorm

	caps := surface.GetCapabilities(d.adapter)
	if len(caps.Formats) > 0 {
		format = caps.Formats[0]
	}

	surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       cfg.ScreenWidth,
		Height:      cfg.ScreenHeight,
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   wgpu.CompositeAlphaModeAuto,
	})

	return &swapchain{
		device:    d,
		surface:   surface,
		format:    format,
		size:      rhi.Extent{Width: cfg.ScreenWidth, Height: cfg.ScreenHeight},
		numImages: cfg.SwapchainSize,
	}
}

// AcquireNextImage implements rhi.Swapchain.
func (s *swapchain) AcquireNextImage() (uint32, error) {
	if s.current != nil {
		return 0, fmt.Errorf("previous surface texture not yet presented")
	}
	texture, err := s.surface.GetCurrentTexture()
	if err != nil {
		return 0, fmt.Errorf("wgpu.Surface.GetCurrentTexture(): %w", err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return 0, fmt.Errorf("wgpu.Texture.CreateView(): %w", err)
	}
	s.current = texture
	s.currentView = view

	idx := s.cursor
	s.cursor = (s.cursor + 1) % s.numImages
	return idx, nil
}

// Framebuffer implements rhi.Swapchain.
func (s *swapchain) Framebuffer(idx uint32) rhi.Framebuffer {
	return &framebuffer{
		colors: []*wgpu.TextureView{s.currentView},
		size:   s.size,
	}
}

// Image implements rhi.Swapchain.
func (s *swapchain) Image(idx uint32) rhi.Image {
	return &image{
		raw:    s.current,
		view:   s.currentView,
		size:   s.size,
		format: s.format,
	}
}

// Present implements rhi.Swapchain.
func (s *swapchain) Present(idx uint32, wait []rhi.Semaphore) error {
	if s.current == nil {
		return nil
	}
	s.surface.Present()
	s.currentView.Release()
	s.current.Release()
	s.currentView = nil
	s.current = nil
	return nil
}

// Size implements rhi.Swapchain.
func (s *swapchain) Size() rhi.Extent { return s.size }

// NumImages implements rhi.Swapchain.
func (s *swapchain) NumImages() uint32 { return s.numImages }

func (s *swapchain) destroy() {
	if s.currentView != nil {
		s.currentView.Release()
		s.current.Release()
	}
	s.surface.Release()
}
