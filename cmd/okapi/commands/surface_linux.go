// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build linux

package commands

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/veandco/go-sdl2/sdl"
)

// surfaceDescriptor digs the native window handles out of SDL for
// wgpu surface creation.
func surfaceDescriptor(window *sdl.Window) (*wgpu.SurfaceDescriptor, error) {
	info, err := window.GetWMInfo()
	if err != nil {
		return nil, fmt.Errorf("sdl GetWMInfo(): %w", err)
	}
	switch info.Subsystem {
	case sdl.SYSWM_X11:
		x11 := info.GetX11Info()
		return &wgpu.SurfaceDescriptor{
			XlibWindow: &wgpu.SurfaceDescriptorFromXlibWindow{
				Display: unsafe.Pointer(x11.Display),
				Window:  uint32(x11.Window),
			},
		}, nil
	case sdl.SYSWM_WAYLAND:
		wayland := info.GetWaylandInfo()
		return &wgpu.SurfaceDescriptor{
			WaylandSurface: &wgpu.SurfaceDescriptorFromWaylandSurface{
				Display: unsafe.Pointer(wayland.Display),
				Surface: unsafe.Pointer(wayland.Surface),
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported window subsystem %d", info.Subsystem)
	}
}
