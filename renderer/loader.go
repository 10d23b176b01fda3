// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"path/filepath"

	"github.com/okapi3d/okapi/renderpack"
	"github.com/okapi3d/okapi/renderpack/pak"
)

// renderpackEntry is the archive member holding the pack description.
const renderpackEntry = "renderpack.gob"

// bindingsEntry is the optional archive member with the shader
// binding table consumed by TableReflector.
const bindingsEntry = "bindings.gob"

// PakLoader loads renderpacks from .opk archives in one directory.
// The archive carries a gob-encoded renderpack.RenderpackData plus
// the shader binaries its pipelines reference by file name. When
// Reflector is set, the archive's binding table merges into it.
type PakLoader struct {
	Dir       string
	Reflector *TableReflector
}

// Load implements RenderpackLoader.
func (l *PakLoader) Load(name string) (*renderpack.RenderpackData, error) {
	archive, err := pak.OpenFile(filepath.Join(l.Dir, name+".opk"))
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	raw, err := archive.ReadAll(renderpackEntry)
	if err != nil {
		return nil, fmt.Errorf("renderpack %s has no %s: %w", name, renderpackEntry, err)
	}

	var data renderpack.RenderpackData
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&data); err != nil {
		return nil, fmt.Errorf("renderpack %s: %w", name, err)
	}
	data.Name = name

	for idx := range data.Pipelines {
		pipeline := &data.Pipelines[idx]
		if err := l.fillShader(archive, &pipeline.VertexShader); err != nil {
			return nil, err
		}
		if pipeline.GeometryShader != nil {
			if err := l.fillShader(archive, pipeline.GeometryShader); err != nil {
				return nil, err
			}
		}
		if pipeline.FragmentShader != nil {
			if err := l.fillShader(archive, pipeline.FragmentShader); err != nil {
				return nil, err
			}
		}
	}

	if l.Reflector != nil {
		if raw, err := archive.ReadAll(bindingsEntry); err == nil {
			var table map[string][]NamedBinding
			if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&table); err != nil {
				return nil, fmt.Errorf("renderpack %s binding table: %w", name, err)
			}
			l.Reflector.Merge(table)
		}
	}
	return &data, nil
}

func (l *PakLoader) fillShader(archive *pak.Archive, shader *renderpack.ShaderSource) error {
	if len(shader.Data) > 0 || shader.Filename == "" {
		return nil
	}
	data, err := archive.ReadAll(shader.Filename)
	if err != nil {
		return fmt.Errorf("shader %s: %w", shader.Filename, err)
	}
	shader.Data = data
	return nil
}
