// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package memory

import "sort"

// BlockAllocationStrategy manages a free list of variable-size blocks.
// Freed regions become reusable and adjacent free blocks are merged,
// which suits long-lived resources like meshes.
type BlockAllocationStrategy struct {
	size      uint64
	alignment uint64
	free      []Allocation
}

// NewBlockAllocationStrategy creates a block strategy over size bytes.
// All allocations are rounded up to a multiple of alignment.
func NewBlockAllocationStrategy(size, alignment uint64) *BlockAllocationStrategy {
	return &BlockAllocationStrategy{
		size:      size,
		alignment: alignment,
		free:      []Allocation{{Offset: 0, Size: size}},
	}
}

// Allocate finds the first free block large enough, splitting off
// the remainder. Returns ErrOutOfMemory if no block fits.
func (s *BlockAllocationStrategy) Allocate(size uint64) (Allocation, error) {
	need := alignUp(size, s.alignment)
	for idx, blk := range s.free {
		if blk.Size < need {
			continue
		}
		alloc := Allocation{Offset: blk.Offset, Size: need}
		if rest := blk.Size - need; rest > 0 {
			s.free[idx] = Allocation{Offset: blk.Offset + need, Size: rest}
		} else {
			s.free = append(s.free[:idx], s.free[idx+1:]...)
		}
		return alloc, nil
	}
	return Allocation{}, ErrOutOfMemory
}

// Free returns a block to the free list and merges it with
// any adjacent free blocks.
func (s *BlockAllocationStrategy) Free(alloc Allocation) {
	s.free = append(s.free, alloc)
	sort.Slice(s.free, func(i, j int) bool {
		return s.free[i].Offset < s.free[j].Offset
	})

	merged := s.free[:1]
	for _, blk := range s.free[1:] {
		last := &merged[len(merged)-1]
		if last.Offset+last.Size == blk.Offset {
			last.Size += blk.Size
		} else {
			merged = append(merged, blk)
		}
	}
	s.free = merged
}
