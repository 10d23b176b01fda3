// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package nullr is a headless no-op backend. It honors the full
// device contract, validates the same structural rules as the real
// backends and keeps resources in process memory, which makes it
// the device of choice for tests and windowless runs.
package nullr

import (
	"sync"

	"github.com/okapi3d/okapi/memory"
	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

// Config configures the headless device.
type Config struct {

	// FramebufferSize stands in for the swapchain size.
	FramebufferSize rhi.Extent

	// NumImages is the number of simulated swapchain slots.
	NumImages uint32
}

// NewDevice creates a headless device.
func NewDevice(cfg Config) (rhi.Device, error) {
	if cfg.NumImages == 0 {
		cfg.NumImages = 3
	}
	if cfg.FramebufferSize == (rhi.Extent{}) {
		cfg.FramebufferSize = rhi.Extent{Width: 1280, Height: 720}
	}
	dev := &device{cfg: cfg}
	dev.swapchain = &swapchain{device: dev}
	for idx := uint32(0); idx < cfg.NumImages; idx++ {
		dev.swapchain.images = append(dev.swapchain.images, &image{size: cfg.FramebufferSize})
		dev.swapchain.framebuffers = append(dev.swapchain.framebuffers, &framebuffer{size: cfg.FramebufferSize})
	}
	return dev, nil
}

type device struct {
	cfg       Config
	swapchain *swapchain

	mutex      sync.Mutex
	poolResets []uint32
	submitted  []*CommandList
}

type deviceMemory struct {
	size uint64
}

func (m *deviceMemory) Size() uint64 { return m.size }

type buffer struct {
	size        uint64
	hostVisible bool
	data        []byte
}

func (b *buffer) Size() uint64      { return b.size }
func (b *buffer) HostVisible() bool { return b.hostVisible }

type image struct {
	size rhi.Extent
}

func (i *image) Size() rhi.Extent { return i.size }

type framebuffer struct {
	size rhi.Extent
}

func (f *framebuffer) Size() rhi.Extent { return f.size }

type renderpass struct {
	info renderpack.RenderPassCreateInfo
	size rhi.Extent
}

type pipeline struct {
	info renderpack.PipelineCreateInfo
}

type pipelineInterface struct {
	bindings map[string]rhi.ResourceBindingDescription
}

func (p *pipelineInterface) Bindings() map[string]rhi.ResourceBindingDescription {
	return p.bindings
}

type sampler struct{}
type fence struct{ signaled bool }
type semaphore struct{}
type descriptorPool struct{ size rhi.DescriptorPoolSize }
type descriptorSet struct{ writes []rhi.DescriptorSetWrite }

func (d *device) Info() rhi.DeviceInfo {
	return rhi.DeviceInfo{
		Architecture:   rhi.ArchitectureUnknown,
		MaxTextureSize: 16384,
		IsUMA:          true,
	}
}

func (d *device) AllocateDeviceMemory(size uint64, usage rhi.MemoryUsage) (memory.DeviceMemory, error) {
	return &deviceMemory{size: size}, nil
}

func (d *device) CreateRenderpass(info renderpack.RenderPassCreateInfo, textureSizes map[string]rhi.Extent, framebufferSize rhi.Extent) (rhi.Renderpass, error) {
	size, err := rhi.ValidateRenderpassAttachments(info, textureSizes, framebufferSize)
	if err != nil {
		return nil, err
	}
	return &renderpass{info: info, size: size}, nil
}

func (d *device) CreateFramebuffer(pass rhi.Renderpass, colors []rhi.Image, depth rhi.Image, size rhi.Extent) (rhi.Framebuffer, error) {
	return &framebuffer{size: size}, nil
}

func (d *device) CreatePipelineInterface(bindings map[string]rhi.ResourceBindingDescription, colors []renderpack.TextureAttachmentInfo, depth *renderpack.TextureAttachmentInfo) (rhi.PipelineInterface, error) {
	copied := make(map[string]rhi.ResourceBindingDescription, len(bindings))
	for name, desc := range bindings {
		copied[name] = desc
	}
	return &pipelineInterface{bindings: copied}, nil
}

func (d *device) CreateDescriptorPool(size rhi.DescriptorPoolSize) (rhi.DescriptorPool, error) {
	return &descriptorPool{size: size}, nil
}

func (d *device) CreateDescriptorSets(iface rhi.PipelineInterface, pool rhi.DescriptorPool) ([]rhi.DescriptorSet, error) {
	numSets := uint32(0)
	for _, desc := range iface.Bindings() {
		if desc.Set+1 > numSets {
			numSets = desc.Set + 1
		}
	}
	if numSets == 0 {
		numSets = 1
	}
	sets := make([]rhi.DescriptorSet, numSets)
	for idx := range sets {
		sets[idx] = &descriptorSet{}
	}
	return sets, nil
}

func (d *device) UpdateDescriptorSets(writes []rhi.DescriptorSetWrite) error {
	for _, write := range writes {
		if set, ok := write.Set.(*descriptorSet); ok {
			set.writes = append(set.writes, write)
		}
	}
	return nil
}

func (d *device) CreatePipeline(iface rhi.PipelineInterface, info renderpack.PipelineCreateInfo, pass rhi.Renderpass) (rhi.Pipeline, error) {
	return &pipeline{info: info}, nil
}

func (d *device) CreateBuffer(info rhi.BufferCreateInfo, res *memory.Resource) (rhi.Buffer, error) {
	if _, err := res.Allocate(info.Size); err != nil {
		return nil, err
	}
	hostVisible := info.Usage == rhi.BufferUsageStaging || info.Usage == rhi.BufferUsageUniform
	buf := &buffer{size: info.Size, hostVisible: hostVisible}
	if hostVisible {
		buf.data = make([]byte, info.Size)
	}
	return buf, nil
}

func (d *device) WriteDataToBuffer(data []byte, buf rhi.Buffer) error {
	target, ok := buf.(*buffer)
	if !ok || !target.hostVisible {
		return rhi.ErrBufferNotHostVisible
	}
	copy(target.data, data)
	return nil
}

func (d *device) CreateImage(info renderpack.TextureCreateInfo, size rhi.Extent) (rhi.Image, error) {
	return &image{size: size}, nil
}

func (d *device) CreateSampler(info rhi.SamplerCreateInfo) (rhi.Sampler, error) {
	return &sampler{}, nil
}

func (d *device) CreateSemaphores(count uint32) ([]rhi.Semaphore, error) {
	sems := make([]rhi.Semaphore, count)
	for idx := range sems {
		sems[idx] = &semaphore{}
	}
	return sems, nil
}

func (d *device) CreateFences(count uint32, signaled bool) ([]rhi.Fence, error) {
	fences := make([]rhi.Fence, count)
	for idx := range fences {
		fences[idx] = &fence{signaled: signaled}
	}
	return fences, nil
}

func (d *device) WaitForFences(fences []rhi.Fence) {
	for _, f := range fences {
		if fn, ok := f.(*fence); ok {
			fn.signaled = true
		}
	}
}

func (d *device) ResetFences(fences []rhi.Fence) {
	for _, f := range fences {
		if fn, ok := f.(*fence); ok {
			fn.signaled = false
		}
	}
}

func (d *device) CreateCommandList(threadIdx uint32, queue rhi.QueueType, level rhi.CommandListLevel) (rhi.CommandList, error) {
	return &CommandList{Queue: queue}, nil
}

func (d *device) ResetCommandPools(frameIdx uint32) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.poolResets = append(d.poolResets, frameIdx)
}

func (d *device) SubmitCommandList(cmds rhi.CommandList, queue rhi.QueueType, f rhi.Fence, wait, signal []rhi.Semaphore) error {
	if f != nil {
		if fn, ok := f.(*fence); ok {
			fn.signaled = true
		}
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if list, ok := cmds.(*CommandList); ok {
		list.Submitted = true
		d.submitted = append(d.submitted, list)
	}
	return nil
}

func (d *device) Swapchain() rhi.Swapchain { return d.swapchain }

func (d *device) DestroyRenderpass(rhi.Renderpass)   {}
func (d *device) DestroyFramebuffer(rhi.Framebuffer) {}
func (d *device) DestroyTexture(rhi.Image)           {}
func (d *device) DestroyPipeline(rhi.Pipeline)       {}
func (d *device) DestroySemaphores([]rhi.Semaphore)  {}
func (d *device) DestroyFences([]rhi.Fence)          {}
func (d *device) Destroy()                           {}

type swapchain struct {
	device       *device
	images       []rhi.Image
	framebuffers []rhi.Framebuffer
	cursor       uint32
	presented    []uint32
}

func (s *swapchain) AcquireNextImage() (uint32, error) {
	idx := s.cursor
	s.cursor = (s.cursor + 1) % uint32(len(s.images))
	return idx, nil
}

func (s *swapchain) Framebuffer(idx uint32) rhi.Framebuffer { return s.framebuffers[idx] }
func (s *swapchain) Image(idx uint32) rhi.Image             { return s.images[idx] }

func (s *swapchain) Present(idx uint32, wait []rhi.Semaphore) error {
	s.presented = append(s.presented, idx)
	return nil
}

func (s *swapchain) Size() rhi.Extent   { return s.device.cfg.FramebufferSize }
func (s *swapchain) NumImages() uint32  { return uint32(len(s.images)) }
