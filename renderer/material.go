// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/okapi3d/okapi/rhi"
)

// FullMaterialPassName identifies one pass of one material by name.
type FullMaterialPassName struct {
	MaterialName string
	PassName     string
}

// MaterialPassKey locates a material pass by arena indices into the
// rendergraph. Keys stay valid until the renderpack is unloaded.
type MaterialPassKey struct {
	RenderpassIndex   uint32
	PipelineIndex     uint32
	MaterialPassIndex uint32
}

// MaterialPass is one descriptor-set instantiation of a pipeline
// holding the draw batches that use it.
type MaterialPass struct {
	Name         string
	MaterialName string
	PipelineName string

	// Bindings maps shader binding names to renderer resource
	// names, as declared by the renderpack.
	Bindings map[string]string

	DescriptorSets []rhi.DescriptorSet

	MeshBatches           []*MeshBatch
	ProceduralMeshBatches []*ProceduralMeshBatch
}

// Renderable is one drawable instance inside a batch.
type Renderable struct {
	ID          RenderableID
	Visible     bool
	ModelMatrix glm.Mat4
}

// RenderableUpdateData is what callers supply when registering
// a drawable.
type RenderableUpdateData struct {
	Mesh         MeshID
	IsProcedural bool
	InitialModel glm.Mat4
	Visible      bool
}

// MeshBatch groups renderables sharing one vertex+index buffer
// pair. Membership is by buffer identity, not renderable content.
type MeshBatch struct {
	VertexBuffer rhi.Buffer
	IndexBuffer  rhi.Buffer
	NumIndices   uint32
	Renderables  []Renderable
}

// ProceduralMeshBatch groups renderables drawing one procedural
// mesh.
type ProceduralMeshBatch struct {
	Mesh        *ProceduralMesh
	Renderables []Renderable
}

// AddRenderableForMaterial registers a drawable under a material
// pass. Returns InvalidRenderableID without touching any batch when
// the material pass or the mesh is unknown, the caller decides how
// loud to be about it.
func (r *Renderer) AddRenderableForMaterial(name FullMaterialPassName, data RenderableUpdateData) RenderableID {
	key, ok := r.materialPassKeys[name]
	if !ok {
		return InvalidRenderableID
	}
	pass := r.materialPassForKey(key)
	if pass == nil {
		return InvalidRenderableID
	}

	renderable := Renderable{
		Visible:     data.Visible,
		ModelMatrix: data.InitialModel,
	}

	if data.IsProcedural {
		mesh, ok := r.procMeshes[data.Mesh]
		if !ok {
			return InvalidRenderableID
		}
		renderable.ID = r.nextID()
		for _, batch := range pass.ProceduralMeshBatches {
			if batch.Mesh == mesh {
				batch.Renderables = append(batch.Renderables, renderable)
				return renderable.ID
			}
		}
		pass.ProceduralMeshBatches = append(pass.ProceduralMeshBatches, &ProceduralMeshBatch{
			Mesh:        mesh,
			Renderables: []Renderable{renderable},
		})
		return renderable.ID
	}

	mesh, ok := r.meshes[data.Mesh]
	if !ok {
		return InvalidRenderableID
	}
	renderable.ID = r.nextID()
	for _, batch := range pass.MeshBatches {
		if batch.VertexBuffer == mesh.VertexBuffer && batch.IndexBuffer == mesh.IndexBuffer {
			batch.Renderables = append(batch.Renderables, renderable)
			return renderable.ID
		}
	}
	pass.MeshBatches = append(pass.MeshBatches, &MeshBatch{
		VertexBuffer: mesh.VertexBuffer,
		IndexBuffer:  mesh.IndexBuffer,
		NumIndices:   mesh.NumIndices,
		Renderables:  []Renderable{renderable},
	})
	return renderable.ID
}

func (r *Renderer) nextID() RenderableID {
	id := r.nextRenderableID
	r.nextRenderableID++
	return id
}

func (r *Renderer) materialPassForKey(key MaterialPassKey) *MaterialPass {
	passes := r.graph.Passes()
	if int(key.RenderpassIndex) >= len(passes) {
		return nil
	}
	pass := passes[key.RenderpassIndex]
	if int(key.PipelineIndex) >= len(pass.Pipelines) {
		return nil
	}
	pipeline := pass.Pipelines[key.PipelineIndex]
	if int(key.MaterialPassIndex) >= len(pipeline.Passes) {
		return nil
	}
	return pipeline.Passes[key.MaterialPassIndex]
}

// bindMaterialResources writes concrete resources into a material
// pass's descriptor sets. Dynamic textures resolve first, builtin
// buffers second. An unresolved name skips that one binding and
// the pass keeps going.
func (r *Renderer) bindMaterialResources(pass *MaterialPass, iface rhi.PipelineInterface) error {
	layout := iface.Bindings()
	var writes []rhi.DescriptorSetWrite

	for bindingName, resourceName := range pass.Bindings {
		desc, ok := layout[bindingName]
		if !ok {
			log.WithFields(log.Fields{
				"material": pass.MaterialName,
				"binding":  bindingName,
			}).Error("material binds a name the pipeline never declares")
			continue
		}
		if int(desc.Set) >= len(pass.DescriptorSets) {
			continue
		}
		write := rhi.DescriptorSetWrite{
			Set:     pass.DescriptorSets[desc.Set],
			Binding: desc.Binding,
			Type:    desc.Type,
		}

		if texture, ok := r.dynamicTextures[resourceName]; ok {
			write.Images = []rhi.DescriptorImageInfo{{Image: texture, Sampler: r.pointSampler}}
			writes = append(writes, write)
			continue
		}
		if buffer, ok := r.builtinBuffers[resourceName]; ok {
			write.Buffers = []rhi.DescriptorBufferInfo{{Buffer: buffer}}
			writes = append(writes, write)
			continue
		}
		log.WithFields(log.Fields{
			"material": pass.MaterialName,
			"pass":     pass.Name,
			"resource": resourceName,
		}).Error("binding resolves to neither a dynamic texture nor a builtin buffer, skipping")
	}

	if len(writes) == 0 {
		return nil
	}
	return r.device.UpdateDescriptorSets(writes)
}
