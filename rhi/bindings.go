// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rhi

// DescriptorType is the kind of resource a binding expects.
type DescriptorType int

const (
	DescriptorCombinedImageSampler DescriptorType = iota
	DescriptorUniformBuffer
	DescriptorStorageBuffer
	DescriptorTexture
	DescriptorSampler
)

// ShaderStage is a bitmask of the stages a binding is visible to.
type ShaderStage uint32

const (
	StageVertex ShaderStage = 1 << iota
	StageGeometry
	StageFragment
	StageCompute
)

// ResourceBindingDescription is one named shader resource binding.
// Count is the declared array size. Unbounded is set by the
// reflection collaborator for genuinely open-ended arrays, it is
// never inferred from Count.
type ResourceBindingDescription struct {
	Set       uint32
	Binding   uint32
	Count     uint32
	Unbounded bool
	Type      DescriptorType
	Stages    ShaderStage
}

// SameLayout reports whether two descriptions agree on everything
// except the stage mask.
func (d ResourceBindingDescription) SameLayout(other ResourceBindingDescription) bool {
	return d.Set == other.Set &&
		d.Binding == other.Binding &&
		d.Count == other.Count &&
		d.Unbounded == other.Unbounded &&
		d.Type == other.Type
}

// MergeBinding folds one stage's declaration of name into bindings.
// A repeated name with an identical layout merges stage masks, a
// conflicting layout returns a BindingConflictError.
func MergeBinding(bindings map[string]ResourceBindingDescription, name string, desc ResourceBindingDescription) error {
	existing, ok := bindings[name]
	if !ok {
		bindings[name] = desc
		return nil
	}
	if !existing.SameLayout(desc) {
		return &BindingConflictError{Name: name, First: existing, Second: desc}
	}
	existing.Stages |= desc.Stages
	bindings[name] = existing
	return nil
}

// DescriptorImageInfo is one image resource in a descriptor write.
type DescriptorImageInfo struct {
	Image   Image
	Sampler Sampler
}

// DescriptorBufferInfo is one buffer resource in a descriptor write.
type DescriptorBufferInfo struct {
	Buffer Buffer
}

// DescriptorSetWrite binds concrete resources to one binding slot
// of a descriptor set.
type DescriptorSetWrite struct {
	Set     DescriptorSet
	Binding uint32
	Type    DescriptorType
	Images  []DescriptorImageInfo
	Buffers []DescriptorBufferInfo
}
