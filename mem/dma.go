// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago
// +build tamago

package mem

import (
	"errors"
	"fmt"

	"github.com/usbarmory/tamago/dma"
)

// DMAAllocator implements PageAllocator on a TamaGo DMA region spanning the
// board arena.
//
// Reservations must be requested in ascending address order and before any
// allocation, as the region hands out blocks first-fit from its lowest free
// address.
type DMAAllocator struct {
	region *dma.Region
	next   uint64
	gaps   []uint32
	sealed bool
}

// AddArena initializes the DMA region backing the arena.
func (d *DMAAllocator) AddArena(a Arena) (err error) {
	if d.region != nil {
		return ErrAlreadyRegistered
	}

	if a.End() > 1<<32 {
		return fmt.Errorf("arena %s exceeds 32-bit DMA addressing", a.Name)
	}

	d.region = &dma.Region{
		Start: uint32(a.Base),
		Size:  int(a.Size),
	}

	d.region.Init()
	d.next = a.Base

	return
}

// reserve wraps dma.Region.Reserve, which panics when no free block fits.
func (d *DMAAllocator) reserve(size int) (addr uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("could not reserve %d bytes, %v", size, r)
		}
	}()

	a, buf := d.region.Reserve(size, PageSize)

	if len(buf) != size {
		return 0, fmt.Errorf("could not reserve %d bytes", size)
	}

	return uint64(a), nil
}

// ReservePages withholds count pages at base from the region.
func (d *DMAAllocator) ReservePages(base uint64, count int) (err error) {
	if d.region == nil {
		return ErrNotRegistered
	}

	if d.sealed {
		return errors.New("reservation after allocation")
	}

	if base < d.next {
		return fmt.Errorf("reservation %#x below watermark %#x", base, d.next)
	}

	// hold any hole below base until the first allocation, so that the
	// reservation lands on base
	if n := int(base - d.next); n > 0 {
		gap, err := d.reserve(n)

		if err != nil {
			return err
		}

		d.gaps = append(d.gaps, uint32(gap))
	}

	addr, err := d.reserve(count * PageSize)

	if err != nil {
		return
	}

	if addr != base {
		d.region.Release(uint32(addr))
		return fmt.Errorf("reservation landed at %#x instead of %#x", addr, base)
	}

	d.next = base + uint64(count)*PageSize

	return
}

// AllocPages allocates count pages from the region, the holes left between
// reservations become available on the first invocation.
func (d *DMAAllocator) AllocPages(count int) (uint64, error) {
	if d.region == nil {
		return 0, ErrNotRegistered
	}

	if !d.sealed {
		for _, gap := range d.gaps {
			d.region.Release(gap)
		}

		d.gaps = nil
		d.sealed = true
	}

	return d.reserve(count * PageSize)
}
