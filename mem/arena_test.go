// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allocator struct {
	arenas   []Arena
	reserved []Range
	next     uint64
	err      error
}

func (a *allocator) AddArena(arena Arena) error {
	if a.err != nil {
		return a.err
	}

	a.arenas = append(a.arenas, arena)
	a.next = arena.Base

	return nil
}

func (a *allocator) ReservePages(base uint64, count int) error {
	if a.err != nil {
		return a.err
	}

	a.reserved = append(a.reserved, Range{Base: base, Pages: count})

	return nil
}

func (a *allocator) AllocPages(count int) (addr uint64, err error) {
	addr = a.next
	a.next += uint64(count) * PageSize

	return
}

var sdram = Arena{
	Name:  "sdram",
	Base:  MemBase,
	Size:  MemSize,
	Flags: ArenaFlagKmap,
}

func TestRegisterOnce(t *testing.T) {
	a := &allocator{}
	r := &Registrar{Allocator: a}

	require.NoError(t, r.RegisterArena(sdram))
	assert.ErrorIs(t, r.RegisterArena(sdram), ErrAlreadyRegistered)
	assert.Len(t, a.arenas, 1)

	arena, ok := r.Arena()
	require.True(t, ok)
	assert.Equal(t, sdram, arena)
}

func TestRegisterFailure(t *testing.T) {
	a := &allocator{err: errors.New("no memory")}
	r := &Registrar{Allocator: a}

	assert.ErrorIs(t, r.RegisterArena(sdram), a.err)

	a.err = nil
	assert.ErrorIs(t, r.RegisterArena(sdram), ErrAlreadyRegistered)

	_, ok := r.Arena()
	assert.False(t, ok)
}

func TestRegisterUnaligned(t *testing.T) {
	r := &Registrar{Allocator: &allocator{}}

	arena := sdram
	arena.Base = 0x10

	assert.ErrorIs(t, r.RegisterArena(arena), ErrAlignment)
}

func TestReserveBeforeRegister(t *testing.T) {
	a := &allocator{}
	r := &Registrar{Allocator: a}

	assert.ErrorIs(t, r.ReserveRange(MemBase, 1), ErrNotRegistered)
	assert.Empty(t, a.reserved)
}

func TestReserveRange(t *testing.T) {
	a := &allocator{}
	r := &Registrar{Allocator: a}

	require.NoError(t, r.RegisterArena(sdram))

	require.NoError(t, r.ReserveRange(MemBase, ReservedSize/PageSize))
	assert.Equal(t, []Range{{Base: MemBase, Pages: ReservedSize / PageSize}}, a.reserved)

	assert.ErrorIs(t, r.ReserveRange(MemBase+1, 1), ErrAlignment)
	assert.ErrorIs(t, r.ReserveRange(MemBase, 0), ErrAlignment)
	assert.ErrorIs(t, r.ReserveRange(MemBase+MemSize-PageSize, 2), ErrOutOfArena)

	a.err = errors.New("busy")
	assert.ErrorIs(t, r.ReserveRange(MemBase, 1), a.err)
}

func TestBlobReservationCoversBlob(t *testing.T) {
	for _, base := range []uint64{MemBase, MemBase + 0x100, MemBase + PageSize - 1, 0x2000000} {
		res := BlobReservation(base)

		assert.Zero(t, res.Base%PageSize)

		for _, size := range []uint64{0, 1, PageSize - 1, PageSize, PageSize + 1, ReservedSize/2 + 3, ReservedSize - 1, ReservedSize} {
			assert.True(t, res.Contains(base, base+size), "base:%#x size:%#x range:%s", base, size, res)
		}
	}
}

func TestBlobReservationBoundary(t *testing.T) {
	// The reservation is a fixed constant, widening it must be deliberate.
	assert.Equal(t, 0x80000, ReservedSize)

	res := BlobReservation(MemBase)

	assert.Equal(t, Range{Base: MemBase, Pages: 128}, res)
	assert.True(t, res.Contains(MemBase, MemBase+ReservedSize))
	assert.False(t, res.Contains(MemBase, MemBase+ReservedSize+1))
}

func TestPages(t *testing.T) {
	assert.Equal(t, 0, Pages(0))
	assert.Equal(t, 1, Pages(1))
	assert.Equal(t, 1, Pages(PageSize))
	assert.Equal(t, 2, Pages(PageSize+1))
}

func TestAddressTranslation(t *testing.T) {
	assert.Equal(t, uint64(KernelBase+0x1000), PhysToVirt(0x1000))
	assert.Equal(t, uint64(0x1000), VirtToPhys(KernelBase+0x1000))
}

func TestLowMemory(t *testing.T) {
	for _, addr := range []uint64{MemBase, DeviceTreeAddress, MemBase + 0xd8, MemBase + LowMemorySize - 1} {
		assert.True(t, LowMemory.Contains(addr, addr+1), "addr:%#x", addr)
	}

	assert.Equal(t, LowMemory.End(), Runtime.Base)
	assert.Zero(t, Runtime.Size()%PageSize)
}

func TestMerge(t *testing.T) {
	ramdisk := BlobReservation(0x8000000)

	for _, tc := range []struct {
		name   string
		ranges []Range
		merged []Range
	}{
		{"empty", nil, nil},
		{"zero pages", []Range{{Base: PageSize}}, nil},
		{"disjoint unsorted", []Range{ramdisk, LowMemory}, []Range{LowMemory, ramdisk}},
		{"adjacent", []Range{Runtime, LowMemory}, []Range{{Base: MemBase, Pages: LowMemory.Pages + Runtime.Pages}}},
		{"overlapping", []Range{{Base: 0, Pages: 4}, {Base: 2 * PageSize, Pages: 4}}, []Range{{Base: 0, Pages: 6}}},
		{"contained", []Range{{Base: 0, Pages: 8}, {Base: PageSize, Pages: 1}}, []Range{{Base: 0, Pages: 8}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.merged, Merge(tc.ranges))
		})
	}
}
