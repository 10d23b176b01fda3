// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"
	"sync"

	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/rhi"
)

// TableReflector serves shader binding layouts from a table keyed
// by shader file name. Renderpack archives carry the table alongside
// the shader binaries, so the renderer never parses shader code.
type TableReflector struct {
	mutex    sync.RWMutex
	byShader map[string][]NamedBinding
}

// NewTableReflector returns an empty reflector. Tables merge in as
// renderpacks load.
func NewTableReflector() *TableReflector {
	return &TableReflector{
		byShader: make(map[string][]NamedBinding),
	}
}

// Merge adds or replaces the binding lists of the given shaders.
func (t *TableReflector) Merge(table map[string][]NamedBinding) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for filename, bindings := range table {
		t.byShader[filename] = bindings
	}
}

// Reflect implements ShaderReflector.
func (t *TableReflector) Reflect(stage rhi.ShaderStage, source renderpack.ShaderSource) ([]NamedBinding, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	bindings, ok := t.byShader[source.Filename]
	if !ok {
		return nil, fmt.Errorf("no binding table for shader %s", source.Filename)
	}
	out := make([]NamedBinding, len(bindings))
	for idx := range bindings {
		out[idx] = bindings[idx]
		out[idx].Description.Stages = stage
	}
	return out, nil
}
