// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer_test

import (
	"strings"
	"testing"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/okapi3d/okapi/model"
	"github.com/okapi3d/okapi/renderer"
	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
	"github.com/okapi3d/okapi/rhi/nullr"
)

// memLoader hands back a fixed pack, no parsing involved.
type memLoader struct {
	data *renderpack.RenderpackData
}

func (l *memLoader) Load(name string) (*renderpack.RenderpackData, error) {
	copied := *l.data
	copied.Name = name
	return &copied, nil
}

// stubReflector declares one uniform binding for every stage.
type stubReflector struct{}

func (stubReflector) Reflect(stage rhi.ShaderStage, source renderpack.ShaderSource) ([]renderer.NamedBinding, error) {
	return []renderer.NamedBinding{{
		Name: "per_frame",
		Description: rhi.ResourceBindingDescription{
			Set: 0, Binding: 0, Count: 1,
			Type:   rhi.DescriptorUniformBuffer,
			Stages: stage,
		},
	}}, nil
}

func testPack() *renderpack.RenderpackData {
	return &renderpack.RenderpackData{
		Textures: []renderpack.TextureCreateInfo{
			{
				Name: renderpack.SceneOutputName,
				Format: renderpack.TextureFormat{
					PixelFormat: renderpack.PixelFormatRGBA8,
					Dimension:   renderpack.DimensionScreenRelative,
					Width:       1, Height: 1,
				},
			},
		},
		Passes: []renderpack.RenderPassCreateInfo{
			{
				Name: "Forward",
				TextureOutputs: []renderpack.TextureAttachmentInfo{
					{Name: renderpack.SceneOutputName, PixelFormat: renderpack.PixelFormatRGBA8, ClearBeforeRender: true},
				},
			},
			{
				Name:          "Composite",
				TextureInputs: []string{renderpack.SceneOutputName},
				TextureOutputs: []renderpack.TextureAttachmentInfo{
					{Name: renderpack.BackbufferName, PixelFormat: renderpack.PixelFormatRGBA8},
				},
			},
		},
		Pipelines: []renderpack.PipelineCreateInfo{
			{
				Name:           "forward_opaque",
				Pass:           "Forward",
				VertexShader:   renderpack.ShaderSource{Filename: "forward.vert"},
				FragmentShader: &renderpack.ShaderSource{Filename: "forward.frag"},
			},
		},
		Materials: []renderpack.MaterialData{
			{
				Name: "gloss",
				Passes: []renderpack.MaterialPassData{
					{
						Name:         "main",
						MaterialName: "gloss",
						Pipeline:     "forward_opaque",
						Bindings:     map[string]string{"per_frame": renderer.PerFrameDataName},
					},
				},
			},
		},
	}
}

func newTestRenderer(t *testing.T, pack *renderpack.RenderpackData) *renderer.Renderer {
	t.Helper()
	device, err := nullr.NewDevice(nullr.Config{})
	if err != nil {
		t.Fatal(err)
	}
	settings := renderer.DefaultSettings()
	settings.API = rhi.APINull
	r, err := renderer.NewRenderer(settings, device, stubReflector{}, &memLoader{data: pack})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func registerMesh(t *testing.T, r *renderer.Renderer) renderer.MeshID {
	t.Helper()
	id, err := r.CreateMesh(renderer.MeshData{
		Vertices: make([]model.Vertex, 3),
		Indices:  []uint32{0, 1, 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestLoadRenderpack(t *testing.T) {
	r := newTestRenderer(t, testPack())
	if err := r.LoadRenderpack("test"); err != nil {
		t.Fatal(err)
	}

	if _, ok := r.GetRenderpassMetadata("Forward"); !ok {
		t.Error("Forward pass missing after load")
	}
	if passes := r.GetMaterialPassesForPipeline("forward_opaque"); len(passes) != 1 {
		t.Errorf("expected one material pass, got %d", len(passes))
	}
}

func TestBackbufferConflictSkipsPass(t *testing.T) {
	pack := testPack()
	pack.Passes = append(pack.Passes, renderpack.RenderPassCreateInfo{
		Name: "Broken",
		TextureOutputs: []renderpack.TextureAttachmentInfo{
			{Name: renderpack.BackbufferName},
			{Name: renderpack.SceneOutputName},
		},
	})

	r := newTestRenderer(t, pack)
	if err := r.LoadRenderpack("test"); err != nil {
		t.Fatal(err)
	}

	if _, ok := r.GetRenderpassMetadata("Broken"); ok {
		t.Error("conflicting pass must not be created")
	}
	if _, ok := r.GetRenderpassMetadata("Forward"); !ok {
		t.Error("healthy passes must survive a broken sibling")
	}
}

func TestAttachmentSizeMismatchSkipsPass(t *testing.T) {
	pack := testPack()
	pack.Textures = append(pack.Textures, renderpack.TextureCreateInfo{
		Name: "HalfRes",
		Format: renderpack.TextureFormat{
			PixelFormat: renderpack.PixelFormatRGBA8,
			Dimension:   renderpack.DimensionScreenRelative,
			Width:       0.5, Height: 0.5,
		},
	})
	pack.Passes[0].TextureOutputs = append(pack.Passes[0].TextureOutputs, renderpack.TextureAttachmentInfo{
		Name: "HalfRes", PixelFormat: renderpack.PixelFormatRGBA8,
	})

	r := newTestRenderer(t, pack)
	if err := r.LoadRenderpack("test"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.GetRenderpassMetadata("Forward"); ok {
		t.Error("mismatched pass must not be created")
	}
}

func TestAddRenderableBatching(t *testing.T) {
	r := newTestRenderer(t, testPack())
	if err := r.LoadRenderpack("test"); err != nil {
		t.Fatal(err)
	}

	mesh := registerMesh(t, r)
	name := renderer.FullMaterialPassName{MaterialName: "gloss", PassName: "main"}

	first := r.AddRenderableForMaterial(name, renderer.RenderableUpdateData{
		Mesh: mesh, Visible: true, InitialModel: glm.Ident4(),
	})
	second := r.AddRenderableForMaterial(name, renderer.RenderableUpdateData{
		Mesh: mesh, Visible: true, InitialModel: glm.Ident4(),
	})
	if first == renderer.InvalidRenderableID || second == renderer.InvalidRenderableID {
		t.Fatal("registration failed for a known material and mesh")
	}
	if first == second {
		t.Error("renderable ids must be unique")
	}

	passes := r.GetMaterialPassesForPipeline("forward_opaque")
	if len(passes[0].MeshBatches) != 1 {
		t.Fatalf("same buffer pair must share one batch, got %d", len(passes[0].MeshBatches))
	}
	if len(passes[0].MeshBatches[0].Renderables) != 2 {
		t.Errorf("expected both renderables in the batch")
	}

	other := registerMesh(t, r)
	r.AddRenderableForMaterial(name, renderer.RenderableUpdateData{Mesh: other, Visible: true})
	if len(passes[0].MeshBatches) != 2 {
		t.Errorf("distinct buffer pair must open a new batch, got %d", len(passes[0].MeshBatches))
	}
}

func TestAddRenderableUnknownMaterial(t *testing.T) {
	r := newTestRenderer(t, testPack())
	if err := r.LoadRenderpack("test"); err != nil {
		t.Fatal(err)
	}
	mesh := registerMesh(t, r)

	id := r.AddRenderableForMaterial(renderer.FullMaterialPassName{
		MaterialName: "no_such_material", PassName: "main",
	}, renderer.RenderableUpdateData{Mesh: mesh, Visible: true})

	if id != renderer.InvalidRenderableID {
		t.Errorf("unknown material must return the sentinel id, got %d", id)
	}
	for _, pass := range r.GetMaterialPassesForPipeline("forward_opaque") {
		if len(pass.MeshBatches) != 0 {
			t.Error("failed registration must not mutate batches")
		}
	}
}

func TestAddRenderableUnknownMesh(t *testing.T) {
	r := newTestRenderer(t, testPack())
	if err := r.LoadRenderpack("test"); err != nil {
		t.Fatal(err)
	}

	id := r.AddRenderableForMaterial(renderer.FullMaterialPassName{
		MaterialName: "gloss", PassName: "main",
	}, renderer.RenderableUpdateData{Mesh: renderer.MeshID(9999), Visible: true})
	if id != renderer.InvalidRenderableID {
		t.Errorf("unknown mesh must return the sentinel id, got %d", id)
	}
}

func TestExecuteFrameDraws(t *testing.T) {
	r := newTestRenderer(t, testPack())
	if err := r.LoadRenderpack("test"); err != nil {
		t.Fatal(err)
	}
	mesh := registerMesh(t, r)
	r.AddRenderableForMaterial(renderer.FullMaterialPassName{
		MaterialName: "gloss", PassName: "main",
	}, renderer.RenderableUpdateData{Mesh: mesh, Visible: true, InitialModel: glm.Ident4()})

	r.SetPerFrameUniforms(model.PerFrameUniforms{
		View:       glm.Ident4(),
		Projection: glm.Perspective(glm.DegToRad(60), 16.0/9.0, 0.1, 100),
	})
	if err := r.ExecuteFrame(); err != nil {
		t.Fatal(err)
	}
	if err := r.ExecuteFrame(); err != nil {
		t.Fatal(err)
	}
}

func TestBuiltinPassSurvivesReload(t *testing.T) {
	r := newTestRenderer(t, testPack())
	if err := r.SetUIRenderpass(func(ctx *renderer.FrameContext) {}); err != nil {
		t.Fatal(err)
	}
	if err := r.LoadRenderpack("first"); err != nil {
		t.Fatal(err)
	}
	if err := r.LoadRenderpack("second"); err != nil {
		t.Fatal(err)
	}

	if _, ok := r.GetRenderpassMetadata(renderer.UIRenderPassName); !ok {
		t.Fatal("builtin pass must survive renderpack reloads")
	}
	if _, ok := r.GetRenderpassMetadata("Forward"); !ok {
		t.Fatal("renderpack passes must load after a reload")
	}
}

func TestUIRunsLastInFrame(t *testing.T) {
	device, err := nullr.NewDevice(nullr.Config{})
	if err != nil {
		t.Fatal(err)
	}
	settings := renderer.DefaultSettings()
	settings.API = rhi.APINull
	r, err := renderer.NewRenderer(settings, device, stubReflector{}, &memLoader{data: testPack()})
	if err != nil {
		t.Fatal(err)
	}

	var uiRan bool
	if err := r.SetUIRenderpass(func(ctx *renderer.FrameContext) {
		uiRan = true
		if list, ok := ctx.Cmds.(*nullr.CommandList); ok {
			last := list.Ops[len(list.Ops)-1]
			if !strings.HasPrefix(last, "begin_pass:"+renderer.UIRenderPassName) {
				t.Errorf("UI pass must record last, trace tail was %s", last)
			}
		}
	}); err != nil {
		t.Fatal(err)
	}
	if err := r.LoadRenderpack("test"); err != nil {
		t.Fatal(err)
	}
	if err := r.ExecuteFrame(); err != nil {
		t.Fatal(err)
	}
	if !uiRan {
		t.Error("UI record callback never ran")
	}
}
