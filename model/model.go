// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package model holds the CPU-side vertex and uniform layouts every
// backend consumes. Backend-specific input descriptors are derived
// from these in the backend packages.
package model

import (
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Vertex is the standard mesh vertex.
type Vertex struct {
	Position glm.Vec3
	Normal   glm.Vec3
	UV       glm.Vec2
}

// VertexSize is the byte stride of one Vertex.
const VertexSize = uint64(unsafe.Sizeof(Vertex{}))

// IndexSize is the byte size of one mesh index.
const IndexSize = uint64(unsafe.Sizeof(uint32(0)))

// PerFrameUniforms is the builtin per-frame uniform block visible
// to every material.
type PerFrameUniforms struct {
	View           glm.Mat4
	Projection     glm.Mat4
	CameraPosition glm.Vec4
}

// PerFrameUniformsSize is the byte size of PerFrameUniforms.
const PerFrameUniformsSize = uint64(unsafe.Sizeof(PerFrameUniforms{}))

// ModelMatrixSize is the byte size of one entry of the builtin
// model-matrix array.
const ModelMatrixSize = uint64(unsafe.Sizeof(glm.Mat4{}))

// VertexOffsets returns the attribute byte offsets in location
// order: position, normal, uv.
func VertexOffsets() [3]uint64 {
	return [3]uint64{
		uint64(unsafe.Offsetof(Vertex{}.Position)),
		uint64(unsafe.Offsetof(Vertex{}.Normal)),
		uint64(unsafe.Offsetof(Vertex{}.UV)),
	}
}

// VerticesToBytes reinterprets a vertex slice as raw bytes for
// buffer uploads.
func VerticesToBytes(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), uintptr(len(vertices))*unsafe.Sizeof(Vertex{}))
}

// IndicesToBytes reinterprets an index slice as raw bytes for
// buffer uploads.
func IndicesToBytes(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), uintptr(len(indices))*unsafe.Sizeof(uint32(0)))
}

// MatricesToBytes reinterprets a matrix slice as raw bytes for
// buffer uploads.
func MatricesToBytes(matrices []glm.Mat4) []byte {
	if len(matrices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&matrices[0])), uintptr(len(matrices))*unsafe.Sizeof(glm.Mat4{}))
}

// PerFrameUniformsToBytes views the uniform block as raw bytes.
func PerFrameUniformsToBytes(u *PerFrameUniforms) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), unsafe.Sizeof(*u))
}
