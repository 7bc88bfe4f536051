// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mem defines the board memory layout and registers physical memory
// with the page allocator.
package mem

import (
	"errors"
	"fmt"
	"sort"
)

// ArenaFlagKmap requests the arena to be mapped in the kernel address space.
const ArenaFlagKmap = 1 << 0

var (
	// ErrAlreadyRegistered is returned on any arena registration after the
	// first one.
	ErrAlreadyRegistered = errors.New("arena already registered")
	// ErrNotRegistered is returned when reserving before registration.
	ErrNotRegistered = errors.New("arena not registered")
	// ErrOutOfArena is returned for ranges not contained in the arena.
	ErrOutOfArena = errors.New("range outside arena")
	// ErrAlignment is returned for ranges not aligned to PageSize.
	ErrAlignment = errors.New("range not page aligned")
)

// Arena represents a contiguous physical memory region available for page
// allocation.
type Arena struct {
	Name  string
	Base  uint64
	Size  uint64
	Flags uint32
}

// End returns the first address past the arena.
func (a Arena) End() uint64 {
	return a.Base + a.Size
}

// Range represents a page aligned physical memory range.
type Range struct {
	Base  uint64
	Pages int
}

// Size returns the range length in bytes.
func (r Range) Size() uint64 {
	return uint64(r.Pages) * PageSize
}

// End returns the first address past the range.
func (r Range) End() uint64 {
	return r.Base + r.Size()
}

// Contains reports whether [start, end) lies within the range.
func (r Range) Contains(start uint64, end uint64) bool {
	return start >= r.Base && end <= r.End() && start <= end
}

func (r Range) String() string {
	return fmt.Sprintf("%#x-%#x", r.Base, r.End())
}

// Ranges always withheld from the page allocator.
var (
	// LowMemory holds the firmware bootstrap, spin table and device tree.
	LowMemory = Range{Base: MemBase, Pages: LowMemorySize / PageSize}
	// Runtime holds the kernel image and the Go runtime heap.
	Runtime = Range{Base: RuntimeStart, Pages: RuntimeSize / PageSize}
)

// Merge returns the non-empty argument ranges sorted by base address, with
// overlapping or adjacent ranges coalesced.
func Merge(ranges []Range) (merged []Range) {
	sorted := make([]Range, 0, len(ranges))

	for _, r := range ranges {
		if r.Pages > 0 {
			sorted = append(sorted, r)
		}
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Base < sorted[j].Base
	})

	for _, r := range sorted {
		n := len(merged)

		if n == 0 || r.Base > merged[n-1].End() {
			merged = append(merged, r)
			continue
		}

		if last := &merged[n-1]; r.End() > last.End() {
			last.Pages = Pages(r.End() - last.Base)
		}
	}

	return
}

// PageAllocator represents the physical page allocator.
type PageAllocator interface {
	// AddArena adds a region to the allocator free pool.
	AddArena(a Arena) error
	// ReservePages withholds count pages starting at base from allocation.
	ReservePages(base uint64, count int) error
	// AllocPages returns the base address of count contiguous pages.
	AllocPages(count int) (uint64, error)
}

// Pages returns the number of pages needed to hold size bytes.
func Pages(size uint64) int {
	return int((size + PageSize - 1) / PageSize)
}

// BlobReservation returns the range to withhold for a boot metadata blob
// starting at base.
//
// The range length is derived from ReservedSize rather than from the blob
// size, a blob exceeding ReservedSize is only partially covered.
func BlobReservation(base uint64) Range {
	start := base &^ (PageSize - 1)

	return Range{
		Base:  start,
		Pages: Pages(base - start + ReservedSize),
	}
}

// Registrar registers the single board arena with a page allocator and
// applies reservations to it, it is not safe for concurrent use.
type Registrar struct {
	Allocator PageAllocator

	arena      *Arena
	registered bool
}

// RegisterArena registers the board arena, only the first invocation is
// accepted.
func (r *Registrar) RegisterArena(a Arena) (err error) {
	if r.registered {
		return ErrAlreadyRegistered
	}

	if a.Size == 0 || a.Base%PageSize != 0 || a.Size%PageSize != 0 {
		return fmt.Errorf("%w, arena %s %#x-%#x", ErrAlignment, a.Name, a.Base, a.End())
	}

	// a failed registration is not retried either
	r.registered = true

	if err = r.Allocator.AddArena(a); err != nil {
		return fmt.Errorf("could not add arena %s, %w", a.Name, err)
	}

	r.arena = &a

	return
}

// Arena returns the registered arena.
func (r *Registrar) Arena() (a Arena, ok bool) {
	if r.arena == nil {
		return
	}

	return *r.arena, true
}

// ReserveRange withholds count pages starting at base, the range must lie
// within the registered arena.
func (r *Registrar) ReserveRange(base uint64, count int) (err error) {
	if r.arena == nil {
		return ErrNotRegistered
	}

	res := Range{Base: base, Pages: count}

	if base%PageSize != 0 || count <= 0 {
		return fmt.Errorf("%w, %s", ErrAlignment, res)
	}

	if res.Base < r.arena.Base || res.End() > r.arena.End() {
		return fmt.Errorf("%w, %s", ErrOutOfArena, res)
	}

	if err = r.Allocator.ReservePages(base, count); err != nil {
		return fmt.Errorf("could not reserve %s, %w", res, err)
	}

	return
}
