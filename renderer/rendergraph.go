// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

// Rendergraph holds the dependency-ordered render passes of the
// loaded renderpack plus the builtin passes appended after them.
// The order is recomputed on load, never per frame.
type Rendergraph struct {
	passes []*Renderpass
	byName map[string]*Renderpass
}

func newRendergraph() *Rendergraph {
	return &Rendergraph{byName: make(map[string]*Renderpass)}
}

// Passes returns the passes in execution order.
func (g *Rendergraph) Passes() []*Renderpass { return g.passes }

// Pass looks a pass up by name.
func (g *Rendergraph) Pass(name string) (*Renderpass, bool) {
	pass, ok := g.byName[name]
	return pass, ok
}

func (g *Rendergraph) append(pass *Renderpass) {
	pass.index = uint32(len(g.passes))
	g.passes = append(g.passes, pass)
	g.byName[pass.Name] = pass
}

// removeRenderpackPasses drops every non-builtin pass. Builtin
// passes survive a renderpack unload and are re-indexed.
func (g *Rendergraph) removeRenderpackPasses() []*Renderpass {
	var removed, kept []*Renderpass
	for _, pass := range g.passes {
		if pass.Builtin {
			kept = append(kept, pass)
		} else {
			removed = append(removed, pass)
			delete(g.byName, pass.Name)
		}
	}
	g.passes = g.passes[:0]
	for _, pass := range kept {
		g.append(pass)
	}
	return removed
}

// moveBuiltinsToEnd re-appends builtin passes after the renderpack
// ones so engine passes like UI compositing always run last.
func (g *Rendergraph) moveBuiltinsToEnd() {
	var normal, builtin []*Renderpass
	for _, pass := range g.passes {
		if pass.Builtin {
			builtin = append(builtin, pass)
		} else {
			normal = append(normal, pass)
		}
	}
	g.passes = nil
	for _, pass := range normal {
		g.append(pass)
	}
	for _, pass := range builtin {
		g.append(pass)
	}
}

// Renderpass is one runtime pass node of the rendergraph.
type Renderpass struct {
	Name    string
	Builtin bool

	// WritesBackbuffer passes render into the swapchain
	// framebuffer and own no private one.
	WritesBackbuffer bool

	Raw         rhi.Renderpass
	Framebuffer rhi.Framebuffer
	CreateInfo  renderpack.RenderPassCreateInfo
	Pipelines   []*Pipeline

	// Record is the pass body for builtin passes that bring
	// their own drawing, the UI pass being the one user today.
	Record func(ctx *FrameContext)

	index uint32
}

// Pipeline is one compiled pipeline and the material passes
// drawing with it.
type Pipeline struct {
	Name       string
	Raw        rhi.Pipeline
	Interface  rhi.PipelineInterface
	CreateInfo renderpack.PipelineCreateInfo
	Passes     []*MaterialPass
}

// FrameContext is handed to every pass while recording one frame.
type FrameContext struct {
	Cmds        rhi.CommandList
	FrameIndex  uint32
	FrameCount  uint64
	Framebuffer rhi.Framebuffer
	Renderer    *Renderer
}

// GetRenderpassMetadata returns the create info a pass was built
// from. The second return is false for unknown names.
func (r *Renderer) GetRenderpassMetadata(name string) (renderpack.RenderPassCreateInfo, bool) {
	pass, ok := r.graph.Pass(name)
	if !ok {
		return renderpack.RenderPassCreateInfo{}, false
	}
	return pass.CreateInfo, true
}

// GetMaterialPassesForPipeline returns the material passes bound
// to a pipeline, nil for unknown pipelines.
func (r *Renderer) GetMaterialPassesForPipeline(pipelineName string) []*MaterialPass {
	for _, pass := range r.graph.passes {
		for _, pipeline := range pass.Pipelines {
			if pipeline.Name == pipelineName {
				return pipeline.Passes
			}
		}
	}
	return nil
}

// SetUIRenderpass installs the builtin UI compositing pass. It is
// appended after every renderpack pass and survives renderpack
// reloads. Passing a nil record function removes it.
func (r *Renderer) SetUIRenderpass(record func(ctx *FrameContext)) error {
	r.loadMutex.Lock()
	defer r.loadMutex.Unlock()

	if existing, ok := r.graph.Pass(UIRenderPassName); ok {
		existing.Record = record
		return nil
	}
	if record == nil {
		return nil
	}

	info := renderpack.RenderPassCreateInfo{
		Name:          UIRenderPassName,
		TextureInputs: []string{renderpack.SceneOutputName},
		TextureOutputs: []renderpack.TextureAttachmentInfo{
			{Name: renderpack.BackbufferName, PixelFormat: renderpack.PixelFormatRGBA8},
		},
	}
	pass, err := r.createRenderpass(info, true)
	if err != nil {
		return err
	}
	pass.Record = record
	r.graph.append(pass)
	return nil
}
