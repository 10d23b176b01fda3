// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderpack_test

import (
	"testing"

	"github.com/okapi3d/okapi/renderpack"
)

func pass(name string, inputs []string, outputs ...string) renderpack.RenderPassCreateInfo {
	info := renderpack.RenderPassCreateInfo{
		Name:          name,
		TextureInputs: inputs,
	}
	for _, out := range outputs {
		info.TextureOutputs = append(info.TextureOutputs, renderpack.TextureAttachmentInfo{
			Name:        out,
			PixelFormat: renderpack.PixelFormatRGBA8,
		})
	}
	return info
}

func names(passes []renderpack.RenderPassCreateInfo) []string {
	out := make([]string, len(passes))
	for idx, p := range passes {
		out[idx] = p.Name
	}
	return out
}

func TestOrderPassesWriteBeforeRead(t *testing.T) {
	passes := []renderpack.RenderPassCreateInfo{
		pass("Composite", []string{"Lit"}, renderpack.BackbufferName),
		pass("Lighting", []string{"GBuffer"}, "Lit"),
		pass("Geometry", nil, "GBuffer"),
	}

	ordered, err := renderpack.OrderPasses(passes)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"Geometry", "Lighting", "Composite"}
	got := names(ordered)
	for idx := range want {
		if got[idx] != want[idx] {
			t.Fatalf("wrong order: got %v, want %v", got, want)
		}
	}
}

func TestOrderPassesKeepsDeclarationOrder(t *testing.T) {
	passes := []renderpack.RenderPassCreateInfo{
		pass("A", nil, "TexA"),
		pass("B", nil, "TexB"),
		pass("C", []string{"TexA", "TexB"}, renderpack.BackbufferName),
	}

	ordered, err := renderpack.OrderPasses(passes)
	if err != nil {
		t.Fatal(err)
	}

	got := names(ordered)
	want := []string{"A", "B", "C"}
	for idx := range want {
		if got[idx] != want[idx] {
			t.Fatalf("independent passes reordered: got %v, want %v", got, want)
		}
	}
}

func TestOrderPassesDeterministic(t *testing.T) {
	passes := []renderpack.RenderPassCreateInfo{
		pass("Shadow", nil, "ShadowMap"),
		pass("Forward", []string{"ShadowMap"}, "Lit"),
		pass("Debug", nil, "DebugLines"),
		pass("Composite", []string{"Lit", "DebugLines"}, renderpack.BackbufferName),
	}

	first, err := renderpack.OrderPasses(passes)
	if err != nil {
		t.Fatal(err)
	}
	for run := 0; run < 10; run++ {
		again, err := renderpack.OrderPasses(passes)
		if err != nil {
			t.Fatal(err)
		}
		for idx := range first {
			if again[idx].Name != first[idx].Name {
				t.Fatalf("order changed between runs: %v vs %v", names(first), names(again))
			}
		}
	}
}

func TestOrderPassesCycle(t *testing.T) {
	passes := []renderpack.RenderPassCreateInfo{
		pass("First", []string{"TexB"}, "TexA"),
		pass("Second", []string{"TexA"}, "TexB"),
	}

	if _, err := renderpack.OrderPasses(passes); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestDepthWriteCreatesDependency(t *testing.T) {
	depth := renderpack.TextureAttachmentInfo{
		Name:        "SceneDepth",
		PixelFormat: renderpack.PixelFormatDepth32,
	}
	geometry := pass("Geometry", nil, "GBuffer")
	geometry.DepthTexture = &depth

	passes := []renderpack.RenderPassCreateInfo{
		pass("Fog", []string{"SceneDepth"}, renderpack.BackbufferName),
		geometry,
	}

	ordered, err := renderpack.OrderPasses(passes)
	if err != nil {
		t.Fatal(err)
	}
	if ordered[0].Name != "Geometry" {
		t.Fatalf("depth writer must precede its reader, got %v", names(ordered))
	}
}
