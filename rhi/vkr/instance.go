// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr is the Vulkan backend. It implements the device
// contract with explicit barriers and image layout transitions.
package vkr

import (
	"errors"
	"unsafe"

	vk "github.com/devblok/vulkan"
)

// InstanceConfig configures Vulkan instance creation.
type InstanceConfig struct {
	AppName    string
	Extensions []string
	Layers     []string
	DebugMode  bool
}

// NewInstance creates a Vulkan instance. Pass the proc address
// loader of the windowing library, nil to use the system loader.
func NewInstance(cfg InstanceConfig, procAddr unsafe.Pointer) (*Instance, error) {
	if cfg.DebugMode {
		cfg.Layers = append(cfg.Layers, "VK_LAYER_KHRONOS_validation\x00")
		cfg.Extensions = append(cfg.Extensions, "VK_EXT_debug_report\x00")
	}

	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.New("vk.SetDefaultGetInstanceProcAddr(): " + err.Error())
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.New("vk.Init(): " + err.Error())
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 0, 0),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PApplicationName:   safeString(cfg.AppName),
		PEngineName:        "Okapi3D\x00",
	}

	ici := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     safeStrings(cfg.Layers),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&ici, nil, &instance)); err != nil {
		return nil, errors.New("vk.CreateInstance(): " + err.Error())
	}

	inst := &Instance{instance: instance}
	if err := inst.enumerateDevices(); err != nil {
		inst.Destroy()
		return nil, err
	}
	return inst, nil
}

// Instance wraps the Vulkan instance and the physical devices it
// found.
type Instance struct {
	instance        vk.Instance
	surface         vk.Surface
	physicalDevices []vk.PhysicalDevice
}

func (i *Instance) enumerateDevices() error {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(i.instance, &deviceCount, nil)); err != nil {
		return errors.New("vk.EnumeratePhysicalDevices(): " + err.Error())
	}
	i.physicalDevices = make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(i.instance, &deviceCount, i.physicalDevices)); err != nil {
		return errors.New("vk.EnumeratePhysicalDevices(): " + err.Error())
	}
	return nil
}

// PhysicalDevices returns the adapters found on the instance.
func (i *Instance) PhysicalDevices() []vk.PhysicalDevice {
	return i.physicalDevices
}

// SetSurface attaches the presentation surface created by the
// windowing library.
func (i *Instance) SetSurface(pSurface unsafe.Pointer) {
	i.surface = vk.SurfaceFromPointer(uintptr(pSurface))
}

// Instance returns the raw handle for surface creation.
func (i *Instance) Instance() interface{} {
	return i.instance
}

// Destroy tears the instance down. Destroy devices first.
func (i *Instance) Destroy() {
	if i.instance == nil {
		return
	}
	vk.DestroyInstance(i.instance, nil)
	i.instance = nil
}
