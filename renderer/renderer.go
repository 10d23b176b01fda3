// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package renderer is the engine frontend. It loads renderpacks,
// owns the rendergraph and the global GPU pools, batches renderables
// into material passes and drives frame execution against an
// rhi.Device picked at startup.
package renderer

import (
	"fmt"
	"math"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/okapi3d/okapi/memory"
	"github.com/okapi3d/okapi/model"
	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

// Names of engine-provided resources every renderpack can bind.
const (
	// PerFrameDataName is the builtin per-frame uniform buffer.
	PerFrameDataName = "OkapiPerFrameUBO"

	// ModelMatrixBufferName is the builtin per-draw model matrix
	// array buffer.
	ModelMatrixBufferName = "OkapiModelMatrixBuffer"

	// UIRenderPassName is the builtin UI compositing pass.
	UIRenderPassName = "OkapiUI"
)

// RenderableID is a stable handle to a registered drawable.
type RenderableID uint64

// InvalidRenderableID is returned when registration fails.
const InvalidRenderableID = RenderableID(math.MaxUint64)

// MeshID is a stable handle to an uploaded mesh.
type MeshID uint64

// Alignment of mesh pool allocations.
const meshPoolAlignment = 64

// uniformPoolAlignment matches the common minimum uniform buffer
// offset alignment across desktop hardware.
const uniformPoolAlignment = 256

// NamedBinding is one reflected shader binding.
type NamedBinding struct {
	Name        string
	Description rhi.ResourceBindingDescription
}

// ShaderReflector is the shader reflection collaborator. It reports
// the bindings one compiled shader stage declares.
type ShaderReflector interface {
	Reflect(stage rhi.ShaderStage, source renderpack.ShaderSource) ([]NamedBinding, error)
}

// RenderpackLoader is the renderpack parsing collaborator.
type RenderpackLoader interface {
	Load(name string) (*renderpack.RenderpackData, error)
}

// Renderer is the top level context object. Construct one with
// NewRenderer and pass it around explicitly, there is no package
// level instance.
type Renderer struct {
	settings  Settings
	device    rhi.Device
	reflector ShaderReflector
	loader    RenderpackLoader

	// loadMutex serializes renderpack load/unload against each
	// other. Frame execution must not run concurrently with a load.
	loadMutex sync.Mutex

	meshPool    *memory.Resource
	uboPool     *memory.Resource
	stagingPool *memory.Resource

	// stagingStrategy is reset every frame.
	stagingStrategy *memory.BumpPointAllocationStrategy

	meshes     map[MeshID]*Mesh
	procMeshes map[MeshID]*ProceduralMesh
	nextMeshID MeshID

	graph *Rendergraph

	dynamicTextures     map[string]rhi.Image
	dynamicTextureInfos map[string]renderpack.TextureCreateInfo

	// externalTextures marks textures made by CreateTexture, which
	// survive renderpack reloads.
	externalTextures map[string]bool

	materialPassKeys map[FullMaterialPassName]MaterialPassKey
	nextRenderableID RenderableID

	pointSampler   rhi.Sampler
	builtinBuffers map[string]rhi.Buffer

	frameFences     []rhi.Fence
	renderFinished  []rhi.Semaphore
	frameCount      uint64
	perFrameUniform model.PerFrameUniforms
}

// NewRenderer creates the renderer context on an already
// constructed device. Pool or builtin resource creation failures
// are fatal initialization errors.
func NewRenderer(settings Settings, device rhi.Device, reflector ShaderReflector, loader RenderpackLoader) (*Renderer, error) {
	r := &Renderer{
		settings:            settings,
		device:              device,
		reflector:           reflector,
		loader:              loader,
		meshes:              make(map[MeshID]*Mesh),
		procMeshes:          make(map[MeshID]*ProceduralMesh),
		dynamicTextures:     make(map[string]rhi.Image),
		dynamicTextureInfos: make(map[string]renderpack.TextureCreateInfo),
		externalTextures:    make(map[string]bool),
		materialPassKeys:    make(map[FullMaterialPassName]MaterialPassKey),
		builtinBuffers:      make(map[string]rhi.Buffer),
		graph:               newRendergraph(),
	}

	if err := r.createGlobalPools(); err != nil {
		return nil, err
	}
	if err := r.createBuiltinResources(); err != nil {
		return nil, err
	}
	if err := r.createFrameSync(); err != nil {
		return nil, err
	}
	return r, nil
}

// Device returns the device the renderer runs on.
func (r *Renderer) Device() rhi.Device { return r.device }

// Settings returns the construction-time settings.
func (r *Renderer) Settings() Settings { return r.settings }

func (r *Renderer) createGlobalPools() error {
	meshMem, err := r.device.AllocateDeviceMemory(r.settings.Memory.MeshPoolSize, rhi.MemoryDeviceLocal)
	if err != nil {
		return fmt.Errorf("mesh pool: %w", err)
	}
	r.meshPool = memory.NewResource(meshMem,
		memory.NewBlockAllocationStrategy(r.settings.Memory.MeshPoolSize, meshPoolAlignment))

	uboMem, err := r.device.AllocateDeviceMemory(r.settings.Memory.UniformPoolSize, rhi.MemoryHostVisible)
	if err != nil {
		return fmt.Errorf("uniform pool: %w", err)
	}
	r.uboPool = memory.NewResource(uboMem,
		memory.NewBumpPointAllocationStrategy(r.settings.Memory.UniformPoolSize, uniformPoolAlignment))

	stagingMem, err := r.device.AllocateDeviceMemory(r.settings.Memory.StagingPoolSize, rhi.MemoryHostVisible)
	if err != nil {
		return fmt.Errorf("staging pool: %w", err)
	}
	r.stagingStrategy = memory.NewBumpPointAllocationStrategy(r.settings.Memory.StagingPoolSize, meshPoolAlignment)
	r.stagingPool = memory.NewResource(stagingMem, r.stagingStrategy)
	return nil
}

func (r *Renderer) createBuiltinResources() error {
	sampler, err := r.device.CreateSampler(rhi.SamplerCreateInfo{
		MinFilter: FilterForBuiltinSampler,
		MagFilter: FilterForBuiltinSampler,
	})
	if err != nil {
		return fmt.Errorf("builtin sampler: %w", err)
	}
	r.pointSampler = sampler

	perFrame, err := r.device.CreateBuffer(rhi.BufferCreateInfo{
		Name:  PerFrameDataName,
		Size:  model.PerFrameUniformsSize,
		Usage: rhi.BufferUsageUniform,
	}, r.uboPool)
	if err != nil {
		return fmt.Errorf("builtin buffer %s: %w", PerFrameDataName, err)
	}
	r.builtinBuffers[PerFrameDataName] = perFrame

	matrices, err := r.device.CreateBuffer(rhi.BufferCreateInfo{
		Name:  ModelMatrixBufferName,
		Size:  model.ModelMatrixSize * uint64(r.settings.MaxRenderables),
		Usage: rhi.BufferUsageUniform,
	}, r.uboPool)
	if err != nil {
		return fmt.Errorf("builtin buffer %s: %w", ModelMatrixBufferName, err)
	}
	r.builtinBuffers[ModelMatrixBufferName] = matrices
	return nil
}

// FilterForBuiltinSampler is the filtering of the engine sampler.
const FilterForBuiltinSampler = rhi.FilterNearest

func (r *Renderer) createFrameSync() error {
	fences, err := r.device.CreateFences(r.settings.FramesInFlight, true)
	if err != nil {
		return fmt.Errorf("frame fences: %w", err)
	}
	r.frameFences = fences

	sems, err := r.device.CreateSemaphores(r.settings.FramesInFlight)
	if err != nil {
		return fmt.Errorf("frame semaphores: %w", err)
	}
	r.renderFinished = sems
	return nil
}

// SetPerFrameUniforms replaces the data uploaded to the builtin
// per-frame buffer at the start of the next frame.
func (r *Renderer) SetPerFrameUniforms(data model.PerFrameUniforms) {
	r.perFrameUniform = data
}

// Destroy tears the renderer down. The renderpack is unloaded
// first, builtin resources follow, the device itself stays with
// its creator.
func (r *Renderer) Destroy() {
	r.loadMutex.Lock()
	defer r.loadMutex.Unlock()

	r.destroyRenderpackResources()
	for name, texture := range r.dynamicTextures {
		r.device.DestroyTexture(texture)
		delete(r.dynamicTextures, name)
		delete(r.dynamicTextureInfos, name)
		delete(r.externalTextures, name)
	}
	for _, pass := range r.graph.Passes() {
		for _, pipeline := range pass.Pipelines {
			r.device.DestroyPipeline(pipeline.Raw)
		}
		if pass.Framebuffer != nil {
			r.device.DestroyFramebuffer(pass.Framebuffer)
		}
		r.device.DestroyRenderpass(pass.Raw)
	}
	r.device.DestroyFences(r.frameFences)
	r.device.DestroySemaphores(r.renderFinished)
	log.Info("renderer destroyed")
}
