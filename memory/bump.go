// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package memory

// BumpPointAllocationStrategy advances a cursor through a fixed space.
// Individual frees are no-ops, the whole space is reclaimed with Reset.
// Suits per-frame scratch memory like staging and uniform pools.
type BumpPointAllocationStrategy struct {
	size      uint64
	alignment uint64
	offset    uint64
}

// NewBumpPointAllocationStrategy creates a bump strategy over size bytes.
// All allocations are rounded up to a multiple of alignment.
func NewBumpPointAllocationStrategy(size, alignment uint64) *BumpPointAllocationStrategy {
	return &BumpPointAllocationStrategy{
		size:      size,
		alignment: alignment,
	}
}

// Allocate reserves the next aligned region past the cursor.
// Returns ErrOutOfMemory once the cursor would pass the end.
func (s *BumpPointAllocationStrategy) Allocate(size uint64) (Allocation, error) {
	need := alignUp(size, s.alignment)
	if s.offset+need > s.size {
		return Allocation{}, ErrOutOfMemory
	}
	alloc := Allocation{Offset: s.offset, Size: need}
	s.offset += need
	return alloc, nil
}

// Free is a no-op, bump allocations are reclaimed with Reset.
func (s *BumpPointAllocationStrategy) Free(Allocation) {}

// Reset moves the cursor back to the start, invalidating
// every previous allocation at once.
func (s *BumpPointAllocationStrategy) Reset() {
	s.offset = 0
}
