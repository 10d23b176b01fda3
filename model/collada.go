// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"encoding/xml"
	"errors"
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/okapi3d/okapi/model/collada"
)

// ErrNoGeometry means the document contained no mesh geometry.
var ErrNoGeometry = errors.New("collada document has no geometry")

// ImportCollada converts the first geometry of a COLLADA document
// into an indexed triangle mesh. Positions are required, normals
// and texture coordinates are filled when the export carries them.
// Vertices that share all attributes are deduplicated.
func ImportCollada(fileContents []byte) ([]Vertex, []uint32, error) {
	var doc collada.Collada
	if err := xml.Unmarshal(fileContents, &doc); err != nil {
		return nil, nil, err
	}
	if len(doc.Geometries) == 0 {
		return nil, nil, ErrNoGeometry
	}

	mesh := doc.Geometries[0].Mesh
	triangles := mesh.Triangles
	stride := triangles.IndexStride()
	if stride == 0 || len(triangles.Index)%stride != 0 {
		return nil, nil, fmt.Errorf("malformed triangle index stream, %d elements with stride %d", len(triangles.Index), stride)
	}

	position, err := attributeReader(&mesh, &triangles, "VERTEX")
	if err != nil {
		return nil, nil, err
	}
	normal, err := attributeReader(&mesh, &triangles, "NORMAL")
	if err != nil {
		return nil, nil, err
	}
	uv, err := attributeReader(&mesh, &triangles, "TEXCOORD")
	if err != nil {
		return nil, nil, err
	}

	var (
		vertices []Vertex
		indices  []uint32
		seen     = make(map[Vertex]uint32)
	)
	for at := 0; at < len(triangles.Index); at += stride {
		tuple := triangles.Index[at : at+stride]
		var vert Vertex
		vert.Position = glm.Vec3(position.vec3(tuple))
		if normal != nil {
			vert.Normal = glm.Vec3(normal.vec3(tuple))
		}
		if uv != nil {
			vert.UV = glm.Vec2(uv.vec2(tuple))
		}

		idx, ok := seen[vert]
		if !ok {
			idx = uint32(len(vertices))
			vertices = append(vertices, vert)
			seen[vert] = idx
		}
		indices = append(indices, idx)
	}
	return vertices, indices, nil
}

// attribute reads one semantic of the interleaved index stream.
// A nil attribute means the semantic is absent, which is an error
// only for VERTEX.
type attribute struct {
	data   []float32
	stride int
	offset int
}

func attributeReader(mesh *collada.Mesh, triangles *collada.Triangles, semantic string) (*attribute, error) {
	input, ok := triangles.InputBySemantic(semantic)
	if !ok {
		if semantic == "VERTEX" {
			return nil, errors.New("collada triangles have no VERTEX input")
		}
		return nil, nil
	}
	source, ok := mesh.SourceByID(input.Source)
	if !ok {
		return nil, fmt.Errorf("collada source %s not found", input.Source)
	}
	stride := source.Access.Stride
	if stride == 0 {
		stride = 3
	}
	return &attribute{
		data:   source.Floats.Data,
		stride: stride,
		offset: int(input.Offset),
	}, nil
}

func (a *attribute) vec3(tuple []int) [3]float32 {
	at := tuple[a.offset] * a.stride
	return [3]float32{a.data[at], a.data[at+1], a.data[at+2]}
}

func (a *attribute) vec2(tuple []int) [2]float32 {
	at := tuple[a.offset] * a.stride
	return [2]float32{a.data[at], a.data[at+1]}
}
