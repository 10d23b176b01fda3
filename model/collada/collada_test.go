// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package collada_test

import (
	"encoding/xml"
	"testing"

	"github.com/okapi3d/okapi/model/collada"
)

func TestTrianglesDecode(t *testing.T) {
	data := `
		<triangles material="Material-material" count="12">
		<input semantic="VERTEX" source="#Cube-mesh-vertices" offset="0"/>
		<input semantic="NORMAL" source="#Cube-mesh-normals" offset="1"/>
		<p>0 0 2 0 3 0 7 1 5 1 4 1 4 2 1 2 0 2 5 3 2 3 1 3 2 4 7 4 3 4 0 5 7 5 4 5 0 6 1 6 2 6 7 7 6 7 5 7 4 8 5 8 1 8 5 9 6 9 2 9 2 10 6 10 7 10 0 11 3 11 7 11</p>
		</triangles>
	`
	var triangles collada.Triangles
	if err := xml.Unmarshal([]byte(data), &triangles); err != nil {
		t.Fatal(err)
	}

	if triangles.Material != "Material-material" {
		t.Fatalf("incorrect material: %s", triangles.Material)
	}

	if triangles.Count != 12 {
		t.Fatalf("incorrect count: %d", triangles.Count)
	}

	if len(triangles.Inputs) != 2 {
		t.Fatalf("number of inputs incorrect: %d", len(triangles.Inputs))
	}

	if triangles.IndexStride() != 2 {
		t.Fatalf("incorrect index stride: %d", triangles.IndexStride())
	}

	if len(triangles.Index) != 12*3*2 {
		t.Fatalf("number of index elements incorrect: %d", len(triangles.Index))
	}

	if in, ok := triangles.InputBySemantic("NORMAL"); !ok || in.Offset != 1 {
		t.Fatalf("normal input not resolved: %+v", in)
	}
}

func TestInputDecode(t *testing.T) {
	data := `
	<object>
		<input semantic="VERTEX" source="#Cube-mesh-vertices" offset="0" />
		<input semantic="NORMAL" source="#Cube-mesh-normals" offset="1" />
		<input semantic="TEXCOORD" source="#Cube-mesh-map" offset="2" />
	</object>
	`

	type Object struct {
		XMLName xml.Name        `xml:"object"`
		Inputs  []collada.Input `xml:"input"`
	}

	var obj Object
	if err := xml.Unmarshal([]byte(data), &obj); err != nil {
		t.Fatal(err)
	}

	expected := []collada.Input{
		{Semantic: "VERTEX", Source: "#Cube-mesh-vertices", Offset: 0},
		{Semantic: "NORMAL", Source: "#Cube-mesh-normals", Offset: 1},
		{Semantic: "TEXCOORD", Source: "#Cube-mesh-map", Offset: 2},
	}
	for idx, want := range expected {
		if obj.Inputs[idx] != want {
			t.Errorf("input %d: expected %+v, got %+v", idx, want, obj.Inputs[idx])
		}
	}
}

func TestFloatsDecode(t *testing.T) {
	data := `<float_array id="Cube-mesh-normals-array" count="12">0 0 -1 0 0 1 1 0 -2.38419e-7 0 -1 -4.76837e-7</float_array>`

	var floats collada.Floats
	if err := xml.Unmarshal([]byte(data), &floats); err != nil {
		t.Fatal(err)
	}

	if floats.ID != "Cube-mesh-normals-array" {
		t.Fatalf("incorrect id: %s", floats.ID)
	}

	if len(floats.Data) != 12 {
		t.Fatalf("number of floats incorrect: %d", len(floats.Data))
	}
}

func TestSourceResolution(t *testing.T) {
	data := `
	<mesh>
		<source id="Cube-mesh-positions">
			<float_array id="Cube-mesh-positions-array" count="6">1 1 1 -1 -1 -1</float_array>
			<technique_common><accessor count="2" stride="3"/></technique_common>
		</source>
		<vertices id="Cube-mesh-vertices">
			<input semantic="POSITION" source="#Cube-mesh-positions"/>
		</vertices>
	</mesh>
	`

	var mesh collada.Mesh
	if err := xml.Unmarshal([]byte(data), &mesh); err != nil {
		t.Fatal(err)
	}

	source, ok := mesh.SourceByID("#Cube-mesh-vertices")
	if !ok {
		t.Fatal("vertex source did not resolve through vertices element")
	}
	if source.ID != "Cube-mesh-positions" {
		t.Fatalf("resolved wrong source: %s", source.ID)
	}
	if source.Access.Stride != 3 {
		t.Fatalf("incorrect accessor stride: %d", source.Access.Stride)
	}
}
