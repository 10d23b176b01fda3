// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build !linux

package commands

import (
	"errors"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/veandco/go-sdl2/sdl"
)

func surfaceDescriptor(window *sdl.Window) (*wgpu.SurfaceDescriptor, error) {
	return nil, errors.New("webgpu surface creation is only wired up for linux")
}
