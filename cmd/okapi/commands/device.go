// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package commands

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/okapi3d/okapi/renderer"
	"github.com/okapi3d/okapi/rhi"
	"github.com/okapi3d/okapi/rhi/nullr"
	"github.com/okapi3d/okapi/rhi/vkr"
	"github.com/okapi3d/okapi/rhi/wgr"
)

// createDevice builds the backend the settings select. The cleanup
// function destroys the device and whatever the backend loaded.
func createDevice(settings renderer.Settings, window *sdl.Window) (rhi.Device, func(), error) {
	switch settings.API {
	case rhi.APIVulkan:
		return createVulkanDevice(settings, window)
	case rhi.APIWebGPU:
		return createWebGPUDevice(settings, window)
	case rhi.APINull:
		device, err := nullr.NewDevice(nullr.Config{
			FramebufferSize: rhi.Extent{
				Width:  settings.Screen.Width,
				Height: settings.Screen.Height,
			},
			NumImages: settings.FramesInFlight,
		})
		if err != nil {
			return nil, nil, err
		}
		return device, device.Destroy, nil
	default:
		return nil, nil, fmt.Errorf("unsupported graphics API %s", settings.API)
	}
}

func createVulkanDevice(settings renderer.Settings, window *sdl.Window) (rhi.Device, func(), error) {
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		return nil, nil, fmt.Errorf("sdl.VulkanLoadLibrary(): %w", err)
	}

	instance, err := vkr.NewInstance(vkr.InstanceConfig{
		AppName:    settings.AppName,
		Extensions: window.VulkanGetInstanceExtensions(),
		DebugMode:  settings.Debug,
	}, sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		sdl.VulkanUnloadLibrary()
		return nil, nil, err
	}

	surface, err := window.VulkanCreateSurface(instance.Instance())
	if err != nil {
		instance.Destroy()
		sdl.VulkanUnloadLibrary()
		return nil, nil, fmt.Errorf("sdl VulkanCreateSurface(): %w", err)
	}
	instance.SetSurface(surface)

	device, err := vkr.NewDevice(instance, vkr.Config{
		ScreenWidth:   settings.Screen.Width,
		ScreenHeight:  settings.Screen.Height,
		SwapchainSize: settings.FramesInFlight,
	})
	if err != nil {
		instance.Destroy()
		sdl.VulkanUnloadLibrary()
		return nil, nil, err
	}

	cleanup := func() {
		device.Destroy()
		instance.Destroy()
		sdl.VulkanUnloadLibrary()
	}
	return device, cleanup, nil
}

func createWebGPUDevice(settings renderer.Settings, window *sdl.Window) (rhi.Device, func(), error) {
	descriptor, err := surfaceDescriptor(window)
	if err != nil {
		return nil, nil, err
	}

	device, err := wgr.NewDevice(wgr.Config{
		AppName:           settings.AppName,
		SurfaceDescriptor: descriptor,
		ScreenWidth:       settings.Screen.Width,
		ScreenHeight:      settings.Screen.Height,
		SwapchainSize:     settings.FramesInFlight,
	})
	if err != nil {
		return nil, nil, err
	}
	return device, device.Destroy, nil
}
