// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"unsafe"

	vk "github.com/devblok/vulkan"

	"github.com/okapi3d/okapi/renderpack"
)

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}

// SliceUint32 reslices bytes into uint32 words, the form shader
// binaries are handed to Vulkan in.
func SliceUint32(data []byte) []uint32 {
	const m = 0x7fffffff
	return (*[m / 4]uint32)(unsafe.Pointer((*sliceHeader)(unsafe.Pointer(&data)).Data))[:len(data)/4]
}

func safeString(s string) string {
	return fmt.Sprintf("%s\x00", s)
}

func safeStrings(sgs []string) []string {
	safe := []string{}
	for _, s := range sgs {
		safe = append(safe, fmt.Sprintf("%s\x00", s))
	}
	return safe
}

func vkFormat(format renderpack.PixelFormat) vk.Format {
	switch format {
	case renderpack.PixelFormatRGBA8:
		return vk.FormatR8g8b8a8Unorm
	case renderpack.PixelFormatRGBA16F:
		return vk.FormatR16g16b16a16Sfloat
	case renderpack.PixelFormatRGBA32F:
		return vk.FormatR32g32b32a32Sfloat
	case renderpack.PixelFormatDepth32:
		return vk.FormatD32Sfloat
	case renderpack.PixelFormatDepth24Stencil8:
		return vk.FormatD24UnormS8Uint
	default:
		return vk.FormatR8g8b8a8Unorm
	}
}
