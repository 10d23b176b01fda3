// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package memory implements sub-allocation of large device memory pools.
// A pool is allocated once from the backend and carved into smaller
// regions by an AllocationStrategy, avoiding per-resource driver calls.
package memory

import "errors"

// ErrOutOfMemory is returned when a strategy cannot satisfy
// an allocation from the space it manages.
var ErrOutOfMemory = errors.New("memory: pool exhausted")

// Allocation is a region carved out of a memory pool.
// Offset and Size are in bytes, relative to the pool start.
type Allocation struct {
	Offset uint64
	Size   uint64
}

// AllocationStrategy hands out regions of a fixed-size space.
// Implementations are not safe for concurrent use, callers
// serialize access themselves.
type AllocationStrategy interface {

	// Allocate reserves a region of at least size bytes.
	// Returns ErrOutOfMemory when no suitable region remains.
	Allocate(size uint64) (Allocation, error)

	// Free returns a previously allocated region to the strategy.
	// Strategies that only grow may treat this as a no-op.
	Free(alloc Allocation)
}

// DeviceMemory is an opaque backend memory handle.
// Concrete types live in the backend packages.
type DeviceMemory interface {

	// Size returns the total pool size in bytes.
	Size() uint64
}

// Resource pairs a device memory pool with the strategy that carves it up.
type Resource struct {
	Memory   DeviceMemory
	Strategy AllocationStrategy
}

// NewResource binds a pool to an allocation strategy.
func NewResource(mem DeviceMemory, strategy AllocationStrategy) *Resource {
	return &Resource{Memory: mem, Strategy: strategy}
}

// Allocate reserves a region of the underlying pool.
func (r *Resource) Allocate(size uint64) (Allocation, error) {
	return r.Strategy.Allocate(size)
}

// Free returns a region to the underlying pool.
func (r *Resource) Free(alloc Allocation) {
	r.Strategy.Free(alloc)
}

func alignUp(size, alignment uint64) uint64 {
	if alignment == 0 {
		return size
	}
	return (size + alignment - 1) &^ (alignment - 1)
}
