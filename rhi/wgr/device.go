// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package wgr is the WebGPU rendering backend on wgpu-native. The
// API tracks resource state itself, so barriers and explicit memory
// binding degrade to no-ops here.
package wgr

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/okapi3d/okapi/memory"
	"github.com/okapi3d/okapi/rhi"
)

// Config configures WebGPU device creation. SurfaceDescriptor may
// be nil for a headless device.
type Config struct {
	AppName           string
	SurfaceDescriptor *wgpu.SurfaceDescriptor

	ScreenWidth   uint32
	ScreenHeight  uint32
	SwapchainSize uint32

	ForceFallbackAdapter bool
}

// NewDevice requests an adapter and device from the wgpu instance
// and configures the surface.
func NewDevice(cfg Config) (*Device, error) {
	if cfg.SwapchainSize == 0 {
		cfg.SwapchainSize = 3
	}

	instance := wgpu.CreateInstance(nil)

	var surface *wgpu.Surface
	if cfg.SurfaceDescriptor != nil {
		surface = instance.CreateSurface(cfg.SurfaceDescriptor)
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface:    surface,
		ForceFallbackAdapter: cfg.ForceFallbackAdapter,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu.RequestAdapter(): %w", err)
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: cfg.AppName,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu.RequestDevice(): %w", err)
	}

	d := &Device{
		cfg:      cfg,
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
	}
	d.gatherDeviceInfo()

	if surface != nil {
		d.swapchain = newSwapchain(d, surface, cfg)
	}
	return d, nil
}

// Device is the WebGPU implementation of rhi.Device.
type Device struct {
	cfg Config

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	swapchain *swapchain

	info rhi.DeviceInfo
}

func (d *Device) gatherDeviceInfo() {
	info := rhi.DeviceInfo{MaxTextureSize: 8192}
	limits := d.device.GetLimits()
	if limits.Limits.MaxTextureDimension2D > 0 {
		info.MaxTextureSize = limits.Limits.MaxTextureDimension2D
	}
	d.info = info
}

// Info implements rhi.Device.
func (d *Device) Info() rhi.DeviceInfo { return d.info }

// deviceMemory only tracks budgets, wgpu owns placement.
type deviceMemory struct {
	size uint64
}

// Size implements memory.DeviceMemory.
func (m *deviceMemory) Size() uint64 { return m.size }

// AllocateDeviceMemory implements rhi.Device. The pool is a budget
// only, buffers are individually allocated by wgpu.
func (d *Device) AllocateDeviceMemory(size uint64, usage rhi.MemoryUsage) (memory.DeviceMemory, error) {
	return &deviceMemory{size: size}, nil
}

type fence struct{}
type semaphore struct{}

// CreateSemaphores implements rhi.Device. Ordering is implicit in
// queue submission order.
func (d *Device) CreateSemaphores(count uint32) ([]rhi.Semaphore, error) {
	sems := make([]rhi.Semaphore, count)
	for idx := range sems {
		sems[idx] = &semaphore{}
	}
	return sems, nil
}

// CreateFences implements rhi.Device.
func (d *Device) CreateFences(count uint32, signaled bool) ([]rhi.Fence, error) {
	fences := make([]rhi.Fence, count)
	for idx := range fences {
		fences[idx] = &fence{}
	}
	return fences, nil
}

// WaitForFences implements rhi.Device by draining the whole queue.
func (d *Device) WaitForFences(fences []rhi.Fence) {
	d.device.Poll(true, nil)
}

// ResetFences implements rhi.Device.
func (d *Device) ResetFences(fences []rhi.Fence) {}

// ResetCommandPools implements rhi.Device. Encoders are one-shot in
// wgpu, there is nothing to reset.
func (d *Device) ResetCommandPools(frameIdx uint32) {}

// CreateCommandList implements rhi.Device.
func (d *Device) CreateCommandList(threadIdx uint32, queue rhi.QueueType, level rhi.CommandListLevel) (rhi.CommandList, error) {
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("wgpu.CreateCommandEncoder(): %w", err)
	}
	return &commandList{device: d, encoder: encoder}, nil
}

// SubmitCommandList implements rhi.Device. Every queue type maps to
// the single wgpu queue.
func (d *Device) SubmitCommandList(cmds rhi.CommandList, queue rhi.QueueType, fenceHandle rhi.Fence, wait, signal []rhi.Semaphore) error {
	list, ok := cmds.(*commandList)
	if !ok {
		return errors.New("command list was not created by this device")
	}
	if list.pass != nil {
		list.pass.End()
		list.pass = nil
	}
	commandBuffer, err := list.encoder.Finish(nil)
	if err != nil {
		list.encoder.Release()
		return fmt.Errorf("wgpu.CommandEncoder.Finish(): %w", err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	list.encoder.Release()
	list.encoder = nil
	return nil
}

// Swapchain implements rhi.Device.
func (d *Device) Swapchain() rhi.Swapchain {
	if d.swapchain == nil {
		return nil
	}
	return d.swapchain
}

// DestroySemaphores implements rhi.Device.
func (d *Device) DestroySemaphores(sems []rhi.Semaphore) {}

// DestroyFences implements rhi.Device.
func (d *Device) DestroyFences(fences []rhi.Fence) {}

// Destroy tears the device down after draining the queue.
func (d *Device) Destroy() {
	d.device.Poll(true, nil)
	if d.swapchain != nil {
		d.swapchain.destroy()
	}
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}
