// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderpack

import "fmt"

// OrderPasses computes the execution order of a renderpack's passes.
// A pass writing an attachment runs before every pass reading it.
// Passes with no dependency between them keep their declaration
// order, so the result is deterministic for a given pass set.
// Returns an error when the dependencies form a cycle.
func OrderPasses(passes []RenderPassCreateInfo) ([]RenderPassCreateInfo, error) {
	writers := make(map[string][]int)
	for idx, pass := range passes {
		for _, out := range pass.TextureOutputs {
			writers[out.Name] = append(writers[out.Name], idx)
		}
		if pass.DepthTexture != nil {
			writers[pass.DepthTexture.Name] = append(writers[pass.DepthTexture.Name], idx)
		}
	}

	// indegree counts unscheduled writer dependencies per pass.
	indegree := make([]int, len(passes))
	dependents := make([][]int, len(passes))
	for idx, pass := range passes {
		for _, input := range pass.TextureInputs {
			for _, writer := range writers[input] {
				if writer == idx {
					continue
				}
				dependents[writer] = append(dependents[writer], idx)
				indegree[idx]++
			}
		}
	}

	// Always schedule the earliest-declared ready pass so unrelated
	// passes keep their declaration order.
	ordered := make([]RenderPassCreateInfo, 0, len(passes))
	scheduled := make([]bool, len(passes))
	for len(ordered) < len(passes) {
		next := -1
		for idx := range passes {
			if !scheduled[idx] && indegree[idx] == 0 {
				next = idx
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("renderpack: pass dependencies contain a cycle")
		}
		scheduled[next] = true
		ordered = append(ordered, passes[next])
		for _, dep := range dependents[next] {
			indegree[dep]--
		}
	}
	return ordered, nil
}
