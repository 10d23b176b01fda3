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

	"github.com/okapi3d/okapi/memory"
	"github.com/okapi3d/okapi/rhi"
)

// Config configures Vulkan device creation.
type Config struct {
	ScreenWidth   uint32
	ScreenHeight  uint32
	SwapchainSize uint32

	// NumThreads is the number of recording threads command pools
	// are partitioned for.
	NumThreads uint32

	DeviceExtensions []string
}

// NewDevice selects an adapter from the instance, creates the
// logical device with its queues and the swapchain. The instance
// must carry a surface already.
func NewDevice(instance *Instance, cfg Config) (*Device, error) {
	if len(instance.physicalDevices) == 0 {
		return nil, rhi.ErrNoSuitableDevice
	}
	if cfg.NumThreads == 0 {
		cfg.NumThreads = 1
	}
	if cfg.SwapchainSize == 0 {
		cfg.SwapchainSize = 3
	}

	d := &Device{
		cfg:            cfg,
		instance:       instance,
		physicalDevice: instance.physicalDevices[0],
		surface:        instance.surface,
	}

	if err := d.selectQueueFamilies(); err != nil {
		return nil, err
	}
	if err := d.createLogicalDevice(); err != nil {
		return nil, err
	}
	d.gatherDeviceInfo()

	if d.surface != nil {
		chain, err := newSwapchain(d, cfg)
		if err != nil {
			return nil, err
		}
		d.swapchain = chain
	}
	if err := d.createCommandPools(); err != nil {
		return nil, err
	}
	return d, nil
}

// Device is the Vulkan implementation of rhi.Device.
type Device struct {
	cfg      Config
	instance *Instance

	physicalDevice vk.PhysicalDevice
	logicalDevice  vk.Device
	surface        vk.Surface

	graphicsQueueIndex uint32
	transferQueueIndex uint32
	graphicsQueue      vk.Queue
	transferQueue      vk.Queue

	swapchain *Swapchain

	// pools[slot][thread], reset wholesale per slot.
	pools       [][]vk.CommandPool
	currentSlot uint32

	pipelineCache vk.PipelineCache

	info          rhi.DeviceInfo
	memProperties vk.PhysicalDeviceMemoryProperties
}

func (d *Device) selectQueueFamilies() error {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(d.physicalDevice, &queueFamilyCount, nil)
	if queueFamilyCount == 0 {
		return errors.New("vk.GetPhysicalDeviceQueueFamilyProperties(): no queue families on GPU")
	}
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(d.physicalDevice, &queueFamilyCount, queueFamilies)

	var graphicsFound, transferFound bool
	for i := uint32(0); i < queueFamilyCount; i++ {
		queueFamilies[i].Deref()
		flags := queueFamilies[i].QueueFlags

		if !graphicsFound && flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			var supportsPresent vk.Bool32
			if d.surface != nil {
				vk.GetPhysicalDeviceSurfaceSupport(d.physicalDevice, i, d.surface, &supportsPresent)
				if !supportsPresent.B() {
					continue
				}
			}
			d.graphicsQueueIndex = i
			graphicsFound = true
			continue
		}
		// A dedicated transfer family keeps uploads off the
		// graphics queue.
		if !transferFound && flags&vk.QueueFlags(vk.QueueTransferBit) != 0 &&
			flags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			d.transferQueueIndex = i
			transferFound = true
		}
	}
	if !graphicsFound {
		return errors.New("vulkan error: could not find a graphics queue family with present support")
	}
	if !transferFound {
		d.transferQueueIndex = d.graphicsQueueIndex
	}
	return nil
}

func (d *Device) createLogicalDevice() error {
	requiredExtensions := append([]string{
		vk.KhrSwapchainExtensionName + "\x00",
	}, safeStrings(d.cfg.DeviceExtensions)...)

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: d.graphicsQueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	if d.transferQueueIndex != d.graphicsQueueIndex {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: d.transferQueueIndex,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	var vkDevice vk.Device
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: requiredExtensions,
	}
	if err := vk.Error(vk.CreateDevice(d.physicalDevice, &dci, nil, &vkDevice)); err != nil {
		return errors.New("vk.CreateDevice(): " + err.Error())
	}
	d.logicalDevice = vkDevice

	vk.GetDeviceQueue(vkDevice, d.graphicsQueueIndex, 0, &d.graphicsQueue)
	if d.transferQueueIndex != d.graphicsQueueIndex {
		vk.GetDeviceQueue(vkDevice, d.transferQueueIndex, 0, &d.transferQueue)
	} else {
		d.transferQueue = d.graphicsQueue
	}
	return nil
}

func (d *Device) gatherDeviceInfo() {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(d.physicalDevice, &properties)
	properties.Deref()
	properties.Limits.Deref()

	info := rhi.DeviceInfo{MaxTextureSize: properties.Limits.MaxImageDimension2D}
	switch properties.VendorID {
	case 0x1002:
		info.Architecture = rhi.ArchitectureAMD
	case 0x8086:
		info.Architecture = rhi.ArchitectureIntel
	case 0x10DE:
		info.Architecture = rhi.ArchitectureNvidia
	}

	vk.GetPhysicalDeviceMemoryProperties(d.physicalDevice, &d.memProperties)
	d.memProperties.Deref()

	// One heap that is both device local and host visible means
	// unified memory.
	for idx := uint32(0); idx < d.memProperties.MemoryTypeCount; idx++ {
		d.memProperties.MemoryTypes[idx].Deref()
		flags := d.memProperties.MemoryTypes[idx].PropertyFlags
		both := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit | vk.MemoryPropertyHostVisibleBit)
		if flags&both == both {
			info.IsUMA = true
			break
		}
	}

	var extensionCount uint32
	vk.EnumerateDeviceExtensionProperties(d.physicalDevice, "", &extensionCount, nil)
	extensions := make([]vk.ExtensionProperties, extensionCount)
	vk.EnumerateDeviceExtensionProperties(d.physicalDevice, "", &extensionCount, extensions)
	for idx := range extensions {
		extensions[idx].Deref()
		name := vk.ToString(extensions[idx].ExtensionName[:])
		switch name {
		case "VK_NV_ray_tracing":
			info.SupportsRaytracing = true
		case "VK_NV_mesh_shader":
			info.SupportsMeshShaders = true
		}
	}
	d.info = info
}

// Info implements rhi.Device.
func (d *Device) Info() rhi.DeviceInfo { return d.info }

func (d *Device) createCommandPools() error {
	slots := uint32(1)
	if d.swapchain != nil {
		slots = d.swapchain.NumImages()
	}
	for slot := uint32(0); slot < slots; slot++ {
		var threadPools []vk.CommandPool
		for thread := uint32(0); thread < d.cfg.NumThreads; thread++ {
			cpci := vk.CommandPoolCreateInfo{
				SType:            vk.StructureTypeCommandPoolCreateInfo,
				QueueFamilyIndex: d.graphicsQueueIndex,
			}
			var commandPool vk.CommandPool
			if err := vk.Error(vk.CreateCommandPool(d.logicalDevice, &cpci, nil, &commandPool)); err != nil {
				return errors.New("vk.CreateCommandPool(): " + err.Error())
			}
			threadPools = append(threadPools, commandPool)
		}
		d.pools = append(d.pools, threadPools)
	}
	return nil
}

func (d *Device) getMemoryType(typeBits uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	for idx := uint32(0); idx < d.memProperties.MemoryTypeCount; idx++ {
		if (typeBits & 1) == 1 {
			d.memProperties.MemoryTypes[idx].Deref()
			if (d.memProperties.MemoryTypes[idx].PropertyFlags & properties) == properties {
				return idx, nil
			}
		}
		typeBits >>= 1
	}
	return 0, errors.New("requested memory type not found")
}

// AllocateDeviceMemory implements rhi.Device. Host visible pools
// stay mapped for their whole lifetime.
func (d *Device) AllocateDeviceMemory(size uint64, usage rhi.MemoryUsage) (memory.DeviceMemory, error) {
	properties := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if usage == rhi.MemoryHostVisible {
		properties = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	memoryType, err := d.getMemoryType(math.MaxUint32, properties)
	if err != nil {
		return nil, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryType,
	}
	var mem vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(d.logicalDevice, &mai, nil, &mem)); err != nil {
		return nil, fmt.Errorf("vk.AllocateMemory(): %s", err.Error())
	}

	pool := &deviceMemory{
		device:      d.logicalDevice,
		memory:      mem,
		size:        size,
		hostVisible: usage == rhi.MemoryHostVisible,
	}
	if pool.hostVisible {
		vk.MapMemory(d.logicalDevice, mem, 0, vk.DeviceSize(size), 0, &pool.mapped)
	}
	return pool, nil
}

// CreateSemaphores implements rhi.Device.
func (d *Device) CreateSemaphores(count uint32) ([]rhi.Semaphore, error) {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	sems := make([]rhi.Semaphore, count)
	for idx := range sems {
		var sem vk.Semaphore
		if err := vk.Error(vk.CreateSemaphore(d.logicalDevice, &sci, nil, &sem)); err != nil {
			return nil, errors.New("vk.CreateSemaphore(): " + err.Error())
		}
		sems[idx] = sem
	}
	return sems, nil
}

// CreateFences implements rhi.Device.
func (d *Device) CreateFences(count uint32, signaled bool) ([]rhi.Fence, error) {
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	fences := make([]rhi.Fence, count)
	for idx := range fences {
		var fence vk.Fence
		if err := vk.Error(vk.CreateFence(d.logicalDevice, &fci, nil, &fence)); err != nil {
			return nil, errors.New("vk.CreateFence(): " + err.Error())
		}
		fences[idx] = fence
	}
	return fences, nil
}

// WaitForFences implements rhi.Device, blocking indefinitely.
func (d *Device) WaitForFences(fences []rhi.Fence) {
	raw := rawFences(fences)
	vk.WaitForFences(d.logicalDevice, uint32(len(raw)), raw, vk.True, math.MaxUint64)
}

// ResetFences implements rhi.Device.
func (d *Device) ResetFences(fences []rhi.Fence) {
	raw := rawFences(fences)
	vk.ResetFences(d.logicalDevice, uint32(len(raw)), raw)
}

func rawFences(fences []rhi.Fence) []vk.Fence {
	raw := make([]vk.Fence, 0, len(fences))
	for _, fence := range fences {
		if vkFence, ok := fence.(vk.Fence); ok {
			raw = append(raw, vkFence)
		}
	}
	return raw
}

// ResetCommandPools implements rhi.Device. The slot becomes the
// allocation target for CreateCommandList.
func (d *Device) ResetCommandPools(frameIdx uint32) {
	d.currentSlot = frameIdx
	if int(frameIdx) >= len(d.pools) {
		return
	}
	for _, pool := range d.pools[frameIdx] {
		vk.ResetCommandPool(d.logicalDevice, pool, 0)
	}
}

// CreateCommandList implements rhi.Device. The buffer begins
// recording immediately.
func (d *Device) CreateCommandList(threadIdx uint32, queue rhi.QueueType, level rhi.CommandListLevel) (rhi.CommandList, error) {
	if int(threadIdx) >= int(d.cfg.NumThreads) {
		return nil, fmt.Errorf("thread index %d out of range", threadIdx)
	}
	pool := d.pools[d.currentSlot][threadIdx]

	bufferLevel := vk.CommandBufferLevelPrimary
	if level == rhi.CommandListSecondary {
		bufferLevel = vk.CommandBufferLevelSecondary
	}
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              bufferLevel,
		CommandBufferCount: 1,
	}
	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(d.logicalDevice, &cbai, commandBuffers)); err != nil {
		return nil, errors.New("vk.AllocateCommandBuffers(): " + err.Error())
	}

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(commandBuffers[0], &cbbi)); err != nil {
		return nil, errors.New("vk.BeginCommandBuffer(): " + err.Error())
	}

	return &commandList{
		device: d,
		buffer: commandBuffers[0],
	}, nil
}

// SubmitCommandList implements rhi.Device.
func (d *Device) SubmitCommandList(cmds rhi.CommandList, queue rhi.QueueType, fence rhi.Fence, wait, signal []rhi.Semaphore) error {
	list, ok := cmds.(*commandList)
	if !ok {
		return errors.New("command list was not created by this device")
	}
	if err := vk.Error(vk.EndCommandBuffer(list.buffer)); err != nil {
		return errors.New("vk.EndCommandBuffer(): " + err.Error())
	}

	waitSems := rawSemaphores(wait)
	waitStages := make([]vk.PipelineStageFlags, len(waitSems))
	for idx := range waitStages {
		waitStages[idx] = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	}

	submit := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waitSems)),
		PWaitSemaphores:      waitSems,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{list.buffer},
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    rawSemaphores(signal),
	}}

	var vkFence vk.Fence
	if fence != nil {
		vkFence, _ = fence.(vk.Fence)
	}
	target := d.graphicsQueue
	if queue == rhi.QueueTransfer {
		target = d.transferQueue
	}
	if err := vk.Error(vk.QueueSubmit(target, 1, submit, vkFence)); err != nil {
		return errors.New("vk.QueueSubmit(): " + err.Error())
	}
	return nil
}

func rawSemaphores(sems []rhi.Semaphore) []vk.Semaphore {
	raw := make([]vk.Semaphore, 0, len(sems))
	for _, sem := range sems {
		if vkSem, ok := sem.(vk.Semaphore); ok {
			raw = append(raw, vkSem)
		}
	}
	return raw
}

// Swapchain implements rhi.Device.
func (d *Device) Swapchain() rhi.Swapchain {
	if d.swapchain == nil {
		return nil
	}
	return d.swapchain
}

// DestroySemaphores implements rhi.Device.
func (d *Device) DestroySemaphores(sems []rhi.Semaphore) {
	for _, sem := range rawSemaphores(sems) {
		vk.DestroySemaphore(d.logicalDevice, sem, nil)
	}
}

// DestroyFences implements rhi.Device.
func (d *Device) DestroyFences(fences []rhi.Fence) {
	for _, fence := range rawFences(fences) {
		vk.DestroyFence(d.logicalDevice, fence, nil)
	}
}

// Destroy tears the device down after draining the GPU.
func (d *Device) Destroy() {
	vk.DeviceWaitIdle(d.logicalDevice)
	if d.swapchain != nil {
		d.swapchain.destroy()
	}
	for _, slot := range d.pools {
		for _, pool := range slot {
			vk.DestroyCommandPool(d.logicalDevice, pool, nil)
		}
	}
	if d.pipelineCache != vk.NullPipelineCache {
		vk.DestroyPipelineCache(d.logicalDevice, d.pipelineCache, nil)
	}
	vk.DestroyDevice(d.logicalDevice, nil)
}
