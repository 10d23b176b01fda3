// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rhi

import "github.com/okapi3d/okapi/renderpack"

// ValidateRenderpassAttachments checks that every non-backbuffer
// attachment of a pass resolves to the same pixel size and returns
// that size. Backbuffer passes return the framebuffer size. Shared
// by all backends so structural errors are identical everywhere.
func ValidateRenderpassAttachments(info renderpack.RenderPassCreateInfo, textureSizes map[string]Extent, framebufferSize Extent) (Extent, error) {
	if info.WritesBackbuffer() {
		if len(info.TextureOutputs) > 1 || info.DepthTexture != nil {
			return Extent{}, &BackbufferConflictError{Pass: info.Name}
		}
		return framebufferSize, nil
	}

	var size Extent
	var sized bool
	check := func(name string) error {
		attachmentSize, ok := textureSizes[name]
		if !ok {
			return &UnknownAttachmentError{Pass: info.Name, Attachment: name}
		}
		if !sized {
			size, sized = attachmentSize, true
			return nil
		}
		if attachmentSize != size {
			return &AttachmentSizeError{
				Pass:       info.Name,
				Attachment: name,
				Expected:   size,
				Got:        attachmentSize,
			}
		}
		return nil
	}

	for _, out := range info.TextureOutputs {
		if err := check(out.Name); err != nil {
			return Extent{}, err
		}
	}
	if info.DepthTexture != nil {
		if err := check(info.DepthTexture.Name); err != nil {
			return Extent{}, err
		}
	}
	if !sized {
		size = framebufferSize
	}
	return size, nil
}
