// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package collada decodes the subset of the COLLADA (.dae) schema
// needed to pull triangle meshes out of exported scenes.
package collada

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// Collada is the document root.
type Collada struct {
	Geometries []Geometry `xml:"library_geometries>geometry"`
}

// Geometry holds one named mesh.
type Geometry struct {
	Mesh Mesh   `xml:"mesh"`
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// Mesh contains the primitive data of a geometry.
type Mesh struct {
	Sources   []Source  `xml:"source"`
	Vertices  Vertices  `xml:"vertices"`
	Triangles Triangles `xml:"triangles"`
}

// SourceByID resolves a "#id" reference against the mesh sources.
// The VERTEX semantic indirects through the vertices element first.
func (m *Mesh) SourceByID(ref string) (Source, bool) {
	id := strings.TrimPrefix(ref, "#")
	if id == m.Vertices.ID {
		for _, in := range m.Vertices.Inputs {
			if in.Semantic == "POSITION" {
				return m.SourceByID(in.Source)
			}
		}
		return Source{}, false
	}
	for _, s := range m.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// Source is one raw data array with its access stride.
type Source struct {
	ID     string   `xml:"id,attr"`
	Floats Floats   `xml:"float_array"`
	Access Accessor `xml:"technique_common>accessor"`
}

// Accessor describes how a float array is grouped into elements.
type Accessor struct {
	Count  int `xml:"count,attr"`
	Stride int `xml:"stride,attr"`
}

// Floats is a whitespace-separated float array.
type Floats struct {
	ID   string
	Data []float32
}

// UnmarshalXML parses the float list.
func (f *Floats) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "id" {
			f.ID = attr.Value
		}
	}
	var raw string
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	for _, field := range strings.Fields(raw) {
		num, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return err
		}
		f.Data = append(f.Data, float32(num))
	}
	return nil
}

// Vertices names the per-vertex inputs, POSITION among them.
type Vertices struct {
	ID     string  `xml:"id,attr"`
	Inputs []Input `xml:"input"`
}

// Triangles is the triangle primitive list with its interleaved
// index stream.
type Triangles struct {
	Count    int     `xml:"count,attr"`
	Material string  `xml:"material,attr"`
	Inputs   []Input `xml:"input"`
	Index    []int
}

// IndexStride returns the number of index elements per vertex,
// which is one past the highest input offset.
func (t *Triangles) IndexStride() int {
	stride := 0
	for _, in := range t.Inputs {
		if int(in.Offset)+1 > stride {
			stride = int(in.Offset) + 1
		}
	}
	return stride
}

// InputBySemantic finds the input declared with the given semantic.
func (t *Triangles) InputBySemantic(semantic string) (Input, bool) {
	for _, in := range t.Inputs {
		if in.Semantic == semantic {
			return in, true
		}
	}
	return Input{}, false
}

// UnmarshalXML parses the inputs and the index list.
func (t *Triangles) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "count":
			num, err := strconv.Atoi(attr.Value)
			if err != nil {
				return err
			}
			t.Count = num
		case "material":
			t.Material = attr.Value
		}
	}

	for {
		token, err := d.Token()
		if err != nil {
			return err
		}

		switch el := token.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "input":
				var input Input
				if err := d.DecodeElement(&input, &el); err != nil {
					return err
				}
				t.Inputs = append(t.Inputs, input)
			case "p":
				var raw string
				if err := d.DecodeElement(&raw, &el); err != nil {
					return err
				}
				for _, field := range strings.Fields(raw) {
					num, err := strconv.Atoi(field)
					if err != nil {
						return err
					}
					t.Index = append(t.Index, num)
				}
			}
		case xml.EndElement:
			if el == start.End() {
				return nil
			}
		}
	}
}

// Input binds a source to a semantic at an index offset.
type Input struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   uint   `xml:"offset,attr"`
}
