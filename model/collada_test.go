// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model_test

import (
	"testing"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/okapi3d/okapi/model"
)

const quadDocument = `<?xml version="1.0" encoding="utf-8"?>
<COLLADA xmlns="http://www.collada.org/2005/11/COLLADASchema" version="1.4.1">
	<library_geometries>
		<geometry id="Quad-mesh" name="Quad">
			<mesh>
				<source id="Quad-mesh-positions">
					<float_array id="Quad-mesh-positions-array" count="12">-1 -1 0 1 -1 0 1 1 0 -1 1 0</float_array>
					<technique_common><accessor count="4" stride="3"/></technique_common>
				</source>
				<source id="Quad-mesh-normals">
					<float_array id="Quad-mesh-normals-array" count="3">0 0 1</float_array>
					<technique_common><accessor count="1" stride="3"/></technique_common>
				</source>
				<source id="Quad-mesh-map">
					<float_array id="Quad-mesh-map-array" count="8">0 0 1 0 1 1 0 1</float_array>
					<technique_common><accessor count="4" stride="2"/></technique_common>
				</source>
				<vertices id="Quad-mesh-vertices">
					<input semantic="POSITION" source="#Quad-mesh-positions"/>
				</vertices>
				<triangles count="2">
					<input semantic="VERTEX" source="#Quad-mesh-vertices" offset="0"/>
					<input semantic="NORMAL" source="#Quad-mesh-normals" offset="1"/>
					<input semantic="TEXCOORD" source="#Quad-mesh-map" offset="2"/>
					<p>0 0 0 1 0 1 2 0 2 0 0 0 2 0 2 3 0 3</p>
				</triangles>
			</mesh>
		</geometry>
	</library_geometries>
</COLLADA>`

func TestImportCollada(t *testing.T) {
	vertices, indices, err := model.ImportCollada([]byte(quadDocument))
	if err != nil {
		t.Fatal(err)
	}

	// Two triangles share two corners, so four unique vertices remain.
	if len(vertices) != 4 {
		t.Fatalf("expected 4 unique vertices, got %d", len(vertices))
	}
	if len(indices) != 6 {
		t.Fatalf("expected 6 indices, got %d", len(indices))
	}

	first := vertices[indices[0]]
	if first.Position != (glm.Vec3{-1, -1, 0}) {
		t.Errorf("incorrect first position: %v", first.Position)
	}
	if first.Normal != (glm.Vec3{0, 0, 1}) {
		t.Errorf("incorrect first normal: %v", first.Normal)
	}
	if first.UV != (glm.Vec2{0, 0}) {
		t.Errorf("incorrect first uv: %v", first.UV)
	}

	// The shared corners must reuse indices from the first triangle.
	if indices[3] != indices[0] || indices[4] != indices[2] {
		t.Errorf("shared corners not deduplicated: %v", indices)
	}
}

func TestImportColladaNoGeometry(t *testing.T) {
	doc := `<COLLADA version="1.4.1"><library_geometries/></COLLADA>`
	if _, _, err := model.ImportCollada([]byte(doc)); err != model.ErrNoGeometry {
		t.Fatalf("expected ErrNoGeometry, got %v", err)
	}
}
