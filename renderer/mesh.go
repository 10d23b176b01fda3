// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"

	"github.com/okapi3d/okapi/model"
	"github.com/okapi3d/okapi/rhi"
)

// MeshData is the CPU-side content of a static mesh.
type MeshData struct {
	Vertices []model.Vertex
	Indices  []uint32
}

// Mesh is one uploaded static mesh. The buffers live in the mesh
// pool until DestroyMesh.
type Mesh struct {
	ID           MeshID
	VertexBuffer rhi.Buffer
	IndexBuffer  rhi.Buffer
	NumIndices   uint32
}

// CreateMesh uploads a static mesh through the staging pool and a
// transfer queue command list, blocking until the copy finishes.
func (r *Renderer) CreateMesh(data MeshData) (MeshID, error) {
	vertexBytes := model.VerticesToBytes(data.Vertices)
	indexBytes := model.IndicesToBytes(data.Indices)

	staging, err := r.device.CreateBuffer(rhi.BufferCreateInfo{
		Name:  "mesh staging",
		Size:  uint64(len(vertexBytes) + len(indexBytes)),
		Usage: rhi.BufferUsageStaging,
	}, r.stagingPool)
	if err != nil {
		return 0, fmt.Errorf("mesh staging buffer: %w", err)
	}
	if err := r.device.WriteDataToBuffer(append(append([]byte{}, vertexBytes...), indexBytes...), staging); err != nil {
		return 0, err
	}

	vertexBuffer, err := r.device.CreateBuffer(rhi.BufferCreateInfo{
		Name:  "mesh vertices",
		Size:  uint64(len(vertexBytes)),
		Usage: rhi.BufferUsageVertex,
	}, r.meshPool)
	if err != nil {
		return 0, fmt.Errorf("mesh vertex buffer: %w", err)
	}
	indexBuffer, err := r.device.CreateBuffer(rhi.BufferCreateInfo{
		Name:  "mesh indices",
		Size:  uint64(len(indexBytes)),
		Usage: rhi.BufferUsageIndex,
	}, r.meshPool)
	if err != nil {
		return 0, fmt.Errorf("mesh index buffer: %w", err)
	}

	cmds, err := r.device.CreateCommandList(0, rhi.QueueTransfer, rhi.CommandListPrimary)
	if err != nil {
		return 0, err
	}
	cmds.CopyBuffer(vertexBuffer, 0, staging, 0, uint64(len(vertexBytes)))
	cmds.CopyBuffer(indexBuffer, 0, staging, uint64(len(vertexBytes)), uint64(len(indexBytes)))
	cmds.ResourceBarriers(rhi.StageTransfer, rhi.StageVertexInput, []rhi.ResourceBarrier{
		{Buffer: vertexBuffer, OldState: rhi.StateCopyDestination, NewState: rhi.StateVertexAndIndexBuffer},
		{Buffer: indexBuffer, OldState: rhi.StateCopyDestination, NewState: rhi.StateVertexAndIndexBuffer},
	})

	fences, err := r.device.CreateFences(1, false)
	if err != nil {
		return 0, err
	}
	if err := r.device.SubmitCommandList(cmds, rhi.QueueTransfer, fences[0], nil, nil); err != nil {
		return 0, err
	}
	r.device.WaitForFences(fences)
	r.device.DestroyFences(fences)

	id := r.nextMeshID
	r.nextMeshID++
	r.meshes[id] = &Mesh{
		ID:           id,
		VertexBuffer: vertexBuffer,
		IndexBuffer:  indexBuffer,
		NumIndices:   uint32(len(data.Indices)),
	}
	return id, nil
}

// GetMesh returns an uploaded mesh by id.
func (r *Renderer) GetMesh(id MeshID) (*Mesh, bool) {
	mesh, ok := r.meshes[id]
	return mesh, ok
}

// DestroyMesh drops a mesh from the arena. The pool ranges become
// reusable through the block strategy.
func (r *Renderer) DestroyMesh(id MeshID) {
	delete(r.meshes, id)
}

// SetNumMeshes hints the expected mesh count so the arena allocates
// once instead of growing per upload.
func (r *Renderer) SetNumMeshes(count uint32) {
	meshes := make(map[MeshID]*Mesh, count)
	for id, mesh := range r.meshes {
		meshes[id] = mesh
	}
	r.meshes = meshes
}

// ProceduralMesh is a mesh whose contents are rewritten from the
// CPU, double buffered per in-flight frame so a write never races
// a frame still reading the old data.
type ProceduralMesh struct {
	ID MeshID

	stagingVertex rhi.Buffer
	stagingIndex  rhi.Buffer

	deviceVertex []rhi.Buffer
	deviceIndex  []rhi.Buffer

	NumIndices uint32
	dirty      []bool
}

// AddProceduralMesh creates a procedural mesh with fixed capacity
// in bytes for vertex and index data.
func (r *Renderer) AddProceduralMesh(vertexCapacity, indexCapacity uint64) (MeshID, error) {
	mesh := &ProceduralMesh{
		dirty: make([]bool, r.settings.FramesInFlight),
	}

	var err error
	mesh.stagingVertex, err = r.device.CreateBuffer(rhi.BufferCreateInfo{
		Name:  "procedural vertex staging",
		Size:  vertexCapacity,
		Usage: rhi.BufferUsageStaging,
	}, r.uboPool)
	if err != nil {
		return 0, err
	}
	mesh.stagingIndex, err = r.device.CreateBuffer(rhi.BufferCreateInfo{
		Name:  "procedural index staging",
		Size:  indexCapacity,
		Usage: rhi.BufferUsageStaging,
	}, r.uboPool)
	if err != nil {
		return 0, err
	}

	for slot := uint32(0); slot < r.settings.FramesInFlight; slot++ {
		vertex, err := r.device.CreateBuffer(rhi.BufferCreateInfo{
			Name:  "procedural vertices",
			Size:  vertexCapacity,
			Usage: rhi.BufferUsageVertex,
		}, r.meshPool)
		if err != nil {
			return 0, err
		}
		index, err := r.device.CreateBuffer(rhi.BufferCreateInfo{
			Name:  "procedural indices",
			Size:  indexCapacity,
			Usage: rhi.BufferUsageIndex,
		}, r.meshPool)
		if err != nil {
			return 0, err
		}
		mesh.deviceVertex = append(mesh.deviceVertex, vertex)
		mesh.deviceIndex = append(mesh.deviceIndex, index)
	}

	id := r.nextMeshID
	r.nextMeshID++
	mesh.ID = id
	r.procMeshes[id] = mesh
	return id, nil
}

// SetProceduralMeshData rewrites a procedural mesh. The new data
// reaches each frame slot the next time that slot records.
func (r *Renderer) SetProceduralMeshData(id MeshID, data MeshData) error {
	mesh, ok := r.procMeshes[id]
	if !ok {
		return fmt.Errorf("unknown procedural mesh %d", id)
	}
	if uint64(len(data.Vertices))*model.VertexSize > mesh.stagingVertex.Size() ||
		uint64(len(data.Indices))*model.IndexSize > mesh.stagingIndex.Size() {
		return fmt.Errorf("procedural mesh %d data exceeds its capacity", id)
	}
	if err := r.device.WriteDataToBuffer(model.VerticesToBytes(data.Vertices), mesh.stagingVertex); err != nil {
		return err
	}
	if err := r.device.WriteDataToBuffer(model.IndicesToBytes(data.Indices), mesh.stagingIndex); err != nil {
		return err
	}
	mesh.NumIndices = uint32(len(data.Indices))
	for slot := range mesh.dirty {
		mesh.dirty[slot] = true
	}
	return nil
}

// recordUpload copies fresh staging data into the device buffers
// of one frame slot.
func (m *ProceduralMesh) recordUpload(cmds rhi.CommandList, frameIdx uint32) {
	if !m.dirty[frameIdx] {
		return
	}
	cmds.CopyBuffer(m.deviceVertex[frameIdx], 0, m.stagingVertex, 0, m.stagingVertex.Size())
	cmds.CopyBuffer(m.deviceIndex[frameIdx], 0, m.stagingIndex, 0, m.stagingIndex.Size())
	cmds.ResourceBarriers(rhi.StageTransfer, rhi.StageVertexInput, []rhi.ResourceBarrier{
		{Buffer: m.deviceVertex[frameIdx], OldState: rhi.StateCopyDestination, NewState: rhi.StateVertexAndIndexBuffer},
		{Buffer: m.deviceIndex[frameIdx], OldState: rhi.StateCopyDestination, NewState: rhi.StateVertexAndIndexBuffer},
	})
	m.dirty[frameIdx] = false
}
