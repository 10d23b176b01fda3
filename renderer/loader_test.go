// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer_test

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"

	"github.com/okapi3d/okapi/renderer"
	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/renderpack/pak"
	"github.com/okapi3d/okapi/rhi"
)

func buildTestArchive(t *testing.T, dir, name string) {
	t.Helper()

	builder, err := pak.NewBuilder(pak.Header{Version: 1})
	if err != nil {
		t.Fatal(err)
	}

	data := renderpack.RenderpackData{
		Passes: []renderpack.RenderPassCreateInfo{{
			Name:           "main",
			TextureOutputs: []renderpack.TextureAttachmentInfo{{Name: renderpack.BackbufferName}},
		}},
		Pipelines: []renderpack.PipelineCreateInfo{{
			Name:         "flat",
			Pass:         "main",
			VertexShader: renderpack.ShaderSource{Filename: "flat.vert.spv"},
		}},
	}
	var packBuf bytes.Buffer
	if err := gob.NewEncoder(&packBuf).Encode(data); err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("renderpack.gob", &packBuf); err != nil {
		t.Fatal(err)
	}

	table := map[string][]renderer.NamedBinding{
		"flat.vert.spv": {{
			Name: "per_frame",
			Description: rhi.ResourceBindingDescription{
				Set:     0,
				Binding: 0,
				Count:   1,
				Type:    rhi.DescriptorUniformBuffer,
			},
		}},
	}
	var tableBuf bytes.Buffer
	if err := gob.NewEncoder(&tableBuf).Encode(table); err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("bindings.gob", &tableBuf); err != nil {
		t.Fatal(err)
	}

	if err := builder.Add("flat.vert.spv", bytes.NewReader([]byte{0x03, 0x02, 0x23, 0x07})); err != nil {
		t.Fatal(err)
	}

	f, err := os.Create(filepath.Join(dir, name+".opk"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := builder.WriteTo(f); err != nil {
		t.Fatal(err)
	}
}

func TestPakLoaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	buildTestArchive(t, dir, "demo")

	reflector := renderer.NewTableReflector()
	loader := &renderer.PakLoader{Dir: dir, Reflector: reflector}

	data, err := loader.Load("demo")
	if err != nil {
		t.Fatal(err)
	}

	if data.Name != "demo" {
		t.Errorf("archive name not applied: %s", data.Name)
	}
	if len(data.Pipelines) != 1 {
		t.Fatalf("expected 1 pipeline, got %d", len(data.Pipelines))
	}
	if want := []byte{0x03, 0x02, 0x23, 0x07}; !bytes.Equal(data.Pipelines[0].VertexShader.Data, want) {
		t.Errorf("shader bytes not filled from archive: %v", data.Pipelines[0].VertexShader.Data)
	}

	bindings, err := reflector.Reflect(rhi.StageVertex, data.Pipelines[0].VertexShader)
	if err != nil {
		t.Fatal(err)
	}
	if len(bindings) != 1 || bindings[0].Name != "per_frame" {
		t.Fatalf("binding table not merged: %+v", bindings)
	}
	if bindings[0].Description.Stages != rhi.StageVertex {
		t.Errorf("queried stage not stamped: %v", bindings[0].Description.Stages)
	}
}

func TestPakLoaderMissingArchive(t *testing.T) {
	loader := &renderer.PakLoader{Dir: t.TempDir()}
	if _, err := loader.Load("absent"); err == nil {
		t.Fatal("expected an error for a missing archive")
	}
}

func TestTableReflectorUnknownShader(t *testing.T) {
	reflector := renderer.NewTableReflector()
	source := renderpack.ShaderSource{Filename: "unknown.frag.spv"}
	if _, err := reflector.Reflect(rhi.StageFragment, source); err == nil {
		t.Fatal("expected an error for a shader without a table")
	}
}
