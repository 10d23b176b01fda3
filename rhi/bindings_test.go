// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rhi_test

import (
	"testing"

	"github.com/okapi3d/okapi/rhi"
)

func TestMergeBindingUnionsStages(t *testing.T) {
	bindings := map[string]rhi.ResourceBindingDescription{}

	vertex := rhi.ResourceBindingDescription{
		Set: 0, Binding: 0, Count: 1,
		Type:   rhi.DescriptorUniformBuffer,
		Stages: rhi.StageVertex,
	}
	fragment := vertex
	fragment.Stages = rhi.StageFragment

	if err := rhi.MergeBinding(bindings, "cameras", vertex); err != nil {
		t.Fatal(err)
	}
	if err := rhi.MergeBinding(bindings, "cameras", fragment); err != nil {
		t.Fatal(err)
	}

	merged := bindings["cameras"]
	if merged.Stages != rhi.StageVertex|rhi.StageFragment {
		t.Errorf("expected merged stage mask, got %b", merged.Stages)
	}
	if len(bindings) != 1 {
		t.Errorf("expected one binding, got %d", len(bindings))
	}
}

func TestMergeBindingRejectsConflict(t *testing.T) {
	bindings := map[string]rhi.ResourceBindingDescription{}

	first := rhi.ResourceBindingDescription{
		Set: 0, Binding: 1, Count: 1,
		Type:   rhi.DescriptorUniformBuffer,
		Stages: rhi.StageVertex,
	}
	second := first
	second.Binding = 2
	second.Stages = rhi.StageFragment

	if err := rhi.MergeBinding(bindings, "model_matrices", first); err != nil {
		t.Fatal(err)
	}
	err := rhi.MergeBinding(bindings, "model_matrices", second)
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if _, ok := err.(*rhi.BindingConflictError); !ok {
		t.Errorf("expected BindingConflictError, got %T", err)
	}
}

func TestMergeBindingKeepsDeclaredCount(t *testing.T) {
	bindings := map[string]rhi.ResourceBindingDescription{}

	desc := rhi.ResourceBindingDescription{
		Set: 1, Binding: 0, Count: 16,
		Type:   rhi.DescriptorCombinedImageSampler,
		Stages: rhi.StageFragment,
	}
	if err := rhi.MergeBinding(bindings, "textures", desc); err != nil {
		t.Fatal(err)
	}
	merged := bindings["textures"]
	if merged.Count != 16 || merged.Unbounded {
		t.Errorf("declared array count must survive the merge: %+v", merged)
	}
}
