// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"strconv"

	"github.com/gobuffalo/envy"

	"github.com/okapi3d/okapi/rhi"
)

// Settings is the renderer configuration, fixed at construction.
type Settings struct {
	AppName string

	// API picks the backend for the process lifetime.
	API rhi.GraphicsAPI

	Screen ScreenSettings
	Memory MemorySettings

	// MaxRenderables caps the builtin model-matrix array.
	MaxRenderables uint32

	// FramesInFlight is the number of swapchain slots frames
	// rotate through.
	FramesInFlight uint32

	Debug bool
}

// ScreenSettings configures the output surface.
type ScreenSettings struct {
	Width  uint32
	Height uint32
	VSync  bool
}

// MemorySettings sizes the global GPU pools, in bytes.
type MemorySettings struct {
	MeshPoolSize    uint64
	UniformPoolSize uint64
	StagingPoolSize uint64
}

// DefaultSettings returns the settings a renderer starts from.
func DefaultSettings() Settings {
	return Settings{
		AppName: "okapi",
		API:     rhi.APIVulkan,
		Screen: ScreenSettings{
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Memory: MemorySettings{
			MeshPoolSize:    512 * 1024 * 1024,
			UniformPoolSize: 64 * 1024 * 1024,
			StagingPoolSize: 256 * 1024,
		},
		MaxRenderables: 0xFFFF,
		FramesInFlight: 3,
	}
}

// SettingsFromEnv overlays environment variables onto the defaults.
// Unset or malformed variables keep their default.
func SettingsFromEnv() Settings {
	settings := DefaultSettings()
	settings.AppName = envy.Get("OKAPI_APP_NAME", settings.AppName)

	switch envy.Get("OKAPI_GRAPHICS_API", settings.API.String()) {
	case "vulkan":
		settings.API = rhi.APIVulkan
	case "webgpu":
		settings.API = rhi.APIWebGPU
	case "null":
		settings.API = rhi.APINull
	}

	if width, err := strconv.ParseUint(envy.Get("OKAPI_SCREEN_WIDTH", ""), 10, 32); err == nil {
		settings.Screen.Width = uint32(width)
	}
	if height, err := strconv.ParseUint(envy.Get("OKAPI_SCREEN_HEIGHT", ""), 10, 32); err == nil {
		settings.Screen.Height = uint32(height)
	}
	if vsync, err := strconv.ParseBool(envy.Get("OKAPI_VSYNC", "")); err == nil {
		settings.Screen.VSync = vsync
	}
	if debug, err := strconv.ParseBool(envy.Get("OKAPI_DEBUG", "")); err == nil {
		settings.Debug = debug
	}
	if frames, err := strconv.ParseUint(envy.Get("OKAPI_FRAMES_IN_FLIGHT", ""), 10, 32); err == nil && frames > 0 {
		settings.FramesInFlight = uint32(frames)
	}
	return settings
}
