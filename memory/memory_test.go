// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package memory_test

import (
	"testing"

	"github.com/okapi3d/okapi/memory"
)

func TestBumpAllocationsAdvance(t *testing.T) {
	strat := memory.NewBumpPointAllocationStrategy(1024, 64)

	first, err := strat.Allocate(10)
	if err != nil {
		t.Fatal(err)
	}
	if first.Offset != 0 || first.Size != 64 {
		t.Errorf("unexpected first allocation: %+v", first)
	}

	second, err := strat.Allocate(65)
	if err != nil {
		t.Fatal(err)
	}
	if second.Offset != 64 || second.Size != 128 {
		t.Errorf("unexpected second allocation: %+v", second)
	}
}

func TestBumpExhaustion(t *testing.T) {
	strat := memory.NewBumpPointAllocationStrategy(256, 64)
	if _, err := strat.Allocate(256); err != nil {
		t.Fatal(err)
	}
	if _, err := strat.Allocate(1); err != memory.ErrOutOfMemory {
		t.Errorf("expected ErrOutOfMemory, got %v", err)
	}
}

func TestBumpReset(t *testing.T) {
	strat := memory.NewBumpPointAllocationStrategy(256, 64)
	if _, err := strat.Allocate(256); err != nil {
		t.Fatal(err)
	}
	strat.Reset()
	alloc, err := strat.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}
	if alloc.Offset != 0 {
		t.Errorf("expected offset 0 after reset, got %d", alloc.Offset)
	}
}

func TestBlockReuseAfterFree(t *testing.T) {
	strat := memory.NewBlockAllocationStrategy(256, 64)

	first, err := strat.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := strat.Allocate(64); err != nil {
		t.Fatal(err)
	}

	strat.Free(first)
	again, err := strat.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}
	if again.Offset != first.Offset {
		t.Errorf("expected freed block at %d to be reused, got %d", first.Offset, again.Offset)
	}
}

func TestBlockCoalescing(t *testing.T) {
	strat := memory.NewBlockAllocationStrategy(192, 64)

	a, err := strat.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}
	b, err := strat.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}
	c, err := strat.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}

	strat.Free(a)
	strat.Free(c)
	strat.Free(b)

	whole, err := strat.Allocate(192)
	if err != nil {
		t.Fatalf("expected merged block to satisfy full-size allocation: %v", err)
	}
	if whole.Offset != 0 {
		t.Errorf("expected offset 0, got %d", whole.Offset)
	}
}

func TestBlockExhaustion(t *testing.T) {
	strat := memory.NewBlockAllocationStrategy(128, 64)
	if _, err := strat.Allocate(128); err != nil {
		t.Fatal(err)
	}
	if _, err := strat.Allocate(64); err != memory.ErrOutOfMemory {
		t.Errorf("expected ErrOutOfMemory, got %v", err)
	}
}
