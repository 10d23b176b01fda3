// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package rhi is the render hardware interface, the backend-neutral
// contract for devices, resources, command lists and synchronization.
// Concrete backends live in the subpackages and are picked once at
// startup, there is no runtime switching.
package rhi

import (
	"github.com/okapi3d/okapi/memory"
	"github.com/okapi3d/okapi/renderpack"
)

// GraphicsAPI selects the backend a device is created for.
type GraphicsAPI int

const (
	// APIVulkan is the explicit, barrier-based backend.
	APIVulkan GraphicsAPI = iota

	// APIWebGPU is the implicit-state backend on wgpu-native.
	APIWebGPU

	// APINull is the headless no-op backend.
	APINull
)

// String returns the configuration name of the API.
func (a GraphicsAPI) String() string {
	switch a {
	case APIVulkan:
		return "vulkan"
	case APIWebGPU:
		return "webgpu"
	case APINull:
		return "null"
	default:
		return "unknown"
	}
}

// DeviceArchitecture is the GPU vendor family.
type DeviceArchitecture int

const (
	ArchitectureUnknown DeviceArchitecture = iota
	ArchitectureAMD
	ArchitectureIntel
	ArchitectureNvidia
)

// DeviceInfo holds global capability info of the selected adapter.
type DeviceInfo struct {
	Architecture        DeviceArchitecture
	MaxTextureSize      uint32
	IsUMA               bool
	SupportsRaytracing  bool
	SupportsMeshShaders bool
}

// Extent is a size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// QueueType selects which hardware queue work is recorded against.
type QueueType int

const (
	QueueGraphics QueueType = iota
	QueueTransfer
	QueueAsyncCompute
)

// CommandListLevel distinguishes directly submittable lists from
// ones executed out of another list.
type CommandListLevel int

const (
	CommandListPrimary CommandListLevel = iota
	CommandListSecondary
)

// BufferUsage tells the backend what a buffer will be bound as.
type BufferUsage int

const (
	BufferUsageUniform BufferUsage = iota
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageStaging
)

// MemoryUsage tells the backend where pool memory should live.
type MemoryUsage int

const (
	// MemoryDeviceLocal is GPU-only memory.
	MemoryDeviceLocal MemoryUsage = iota

	// MemoryHostVisible is CPU-writable memory.
	MemoryHostVisible
)

// BufferCreateInfo describes a buffer carved from a memory resource.
type BufferCreateInfo struct {
	Name  string
	Size  uint64
	Usage BufferUsage
}

// Filter selects sampler filtering.
type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

// SamplerCreateInfo describes an image sampler.
type SamplerCreateInfo struct {
	MinFilter Filter
	MagFilter Filter
}

// Buffer is a backend buffer handle.
type Buffer interface {

	// Size returns the buffer size in bytes.
	Size() uint64

	// HostVisible reports whether the CPU can write the buffer
	// directly.
	HostVisible() bool
}

// Image is a backend image handle.
type Image interface {

	// Size returns the image size in pixels.
	Size() Extent
}

// Sampler is a backend sampler handle.
type Sampler interface{}

// Renderpass is a backend render pass handle.
type Renderpass interface{}

// Framebuffer is a backend framebuffer handle.
type Framebuffer interface {

	// Size returns the framebuffer size in pixels.
	Size() Extent
}

// Pipeline is a backend graphics pipeline handle.
type Pipeline interface{}

// PipelineInterface is the merged descriptor layout a pipeline
// is created against.
type PipelineInterface interface {

	// Bindings returns the merged binding layout by resource name.
	Bindings() map[string]ResourceBindingDescription
}

// Fence is a GPU to CPU synchronization primitive.
type Fence interface{}

// Semaphore is a GPU to GPU synchronization primitive.
type Semaphore interface{}

// DescriptorPool is a backend descriptor pool handle.
type DescriptorPool interface{}

// DescriptorSet is a backend descriptor set handle.
type DescriptorSet interface{}

// DescriptorPoolSize tells a backend how many descriptors of each
// kind a pool must be able to hand out.
type DescriptorPoolSize struct {
	SampledImages  uint32
	Samplers       uint32
	UniformBuffers uint32
}

// Device owns the native graphics context and its queues.
// Created once at startup, destroyed at shutdown. All creation
// calls return explicit errors, none of them log.
type Device interface {

	// Info returns the capability info gathered at creation.
	Info() DeviceInfo

	// AllocateDeviceMemory allocates one large pool to be carved
	// up by a memory.AllocationStrategy.
	AllocateDeviceMemory(size uint64, usage MemoryUsage) (memory.DeviceMemory, error)

	// CreateRenderpass validates that all non-backbuffer attachments
	// share one size and creates the pass. textureSizes resolves
	// attachment names, framebufferSize is the swapchain size.
	CreateRenderpass(info renderpack.RenderPassCreateInfo, textureSizes map[string]Extent, framebufferSize Extent) (Renderpass, error)

	// CreateFramebuffer builds a framebuffer for a pass that does
	// not write the backbuffer.
	CreateFramebuffer(pass Renderpass, colors []Image, depth Image, size Extent) (Framebuffer, error)

	// CreatePipelineInterface turns a merged binding layout into
	// the backend descriptor layout.
	CreatePipelineInterface(bindings map[string]ResourceBindingDescription, colors []renderpack.TextureAttachmentInfo, depth *renderpack.TextureAttachmentInfo) (PipelineInterface, error)

	// CreateDescriptorPool creates a pool sized for the whole
	// renderpack.
	CreateDescriptorPool(size DescriptorPoolSize) (DescriptorPool, error)

	// CreateDescriptorSets allocates one set per descriptor set
	// index the interface declares.
	CreateDescriptorSets(iface PipelineInterface, pool DescriptorPool) ([]DescriptorSet, error)

	// UpdateDescriptorSets writes concrete resources into sets.
	UpdateDescriptorSets(writes []DescriptorSetWrite) error

	// CreatePipeline compiles a graphics pipeline for a pass.
	CreatePipeline(iface PipelineInterface, info renderpack.PipelineCreateInfo, pass Renderpass) (Pipeline, error)

	// CreateBuffer carves a buffer out of the given memory resource.
	CreateBuffer(info BufferCreateInfo, res *memory.Resource) (Buffer, error)

	// WriteDataToBuffer overwrites a CPU-writable buffer from
	// offset zero. Returns ErrBufferNotHostVisible otherwise.
	WriteDataToBuffer(data []byte, buf Buffer) error

	// CreateImage creates a dynamic texture. The image starts in
	// an undefined layout.
	CreateImage(info renderpack.TextureCreateInfo, size Extent) (Image, error)

	// CreateSampler creates an image sampler.
	CreateSampler(info SamplerCreateInfo) (Sampler, error)

	// CreateSemaphores creates count semaphores.
	CreateSemaphores(count uint32) ([]Semaphore, error)

	// CreateFences creates count fences, optionally pre-signaled.
	CreateFences(count uint32, signaled bool) ([]Fence, error)

	// WaitForFences blocks until every fence is signaled.
	WaitForFences(fences []Fence)

	// ResetFences must run before a fence signals again.
	ResetFences(fences []Fence)

	// CreateCommandList allocates a command list from the pool of
	// the current swapchain slot for the calling thread. Lists
	// must not outlive the frame they were allocated in.
	CreateCommandList(threadIdx uint32, queue QueueType, level CommandListLevel) (CommandList, error)

	// ResetCommandPools resets every pool of a swapchain slot.
	// Runs at the start of the frame that reuses the slot.
	ResetCommandPools(frameIdx uint32)

	// SubmitCommandList hands a recorded list to a queue. The
	// list belongs to the device afterwards, re-recording it
	// is illegal.
	SubmitCommandList(cmds CommandList, queue QueueType, fence Fence, wait, signal []Semaphore) error

	// Swapchain returns the presentation surface chain, nil for
	// headless devices without one.
	Swapchain() Swapchain

	// Destroy releases GPU-side state of the given resources.
	// CPU bookkeeping stays with the owning component.
	DestroyRenderpass(pass Renderpass)
	DestroyFramebuffer(fb Framebuffer)
	DestroyTexture(img Image)
	DestroyPipeline(p Pipeline)
	DestroySemaphores(sems []Semaphore)
	DestroyFences(fences []Fence)

	// Destroy tears the whole device down.
	Destroy()
}

// Swapchain is the backend presentation chain.
type Swapchain interface {

	// AcquireNextImage blocks until a swapchain slot is available
	// and returns its index.
	AcquireNextImage() (uint32, error)

	// Framebuffer returns the per-image framebuffer of a slot.
	Framebuffer(idx uint32) Framebuffer

	// Image returns the backbuffer image of a slot.
	Image(idx uint32) Image

	// Present queues the slot for presentation after the given
	// semaphores signal.
	Present(idx uint32, wait []Semaphore) error

	// Size returns the current swapchain size in pixels.
	Size() Extent

	// NumImages returns the number of swapchain slots.
	NumImages() uint32
}
