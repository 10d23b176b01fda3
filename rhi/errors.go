// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rhi

import (
	"errors"
	"fmt"
)

// package errors
var (
	ErrNoSuitableDevice     = errors.New("rhi: no suitable graphics device found")
	ErrBufferNotHostVisible = errors.New("rhi: buffer is not CPU-writable, stage through a transfer instead")
	ErrUnsupportedQueue     = errors.New("rhi: device has no queue of the requested type")
)

// AttachmentSizeError reports a renderpass whose attachments do not
// all share one size. The pass is not created.
type AttachmentSizeError struct {
	Pass       string
	Attachment string
	Expected   Extent
	Got        Extent
}

func (e *AttachmentSizeError) Error() string {
	return fmt.Sprintf("pass %s: attachment %s is %dx%d, expected %dx%d",
		e.Pass, e.Attachment, e.Got.Width, e.Got.Height, e.Expected.Width, e.Expected.Height)
}

// BackbufferConflictError reports a pass that writes the backbuffer
// together with other outputs. The pass is not created.
type BackbufferConflictError struct {
	Pass string
}

func (e *BackbufferConflictError) Error() string {
	return fmt.Sprintf("pass %s: a backbuffer-writing pass may not write any other attachment", e.Pass)
}

// BindingConflictError reports two shader stages declaring the same
// resource name with incompatible layouts.
type BindingConflictError struct {
	Name   string
	First  ResourceBindingDescription
	Second ResourceBindingDescription
}

func (e *BindingConflictError) Error() string {
	return fmt.Sprintf("binding %s declared with conflicting layouts across shader stages", e.Name)
}

// UnknownAttachmentError reports a pass referencing a texture the
// renderpack never declared.
type UnknownAttachmentError struct {
	Pass       string
	Attachment string
}

func (e *UnknownAttachmentError) Error() string {
	return fmt.Sprintf("pass %s: unknown attachment %s", e.Pass, e.Attachment)
}
