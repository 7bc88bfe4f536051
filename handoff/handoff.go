// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package handoff locates the ramdisk passed by the bootloader through the
// flattened device tree.
package handoff

import (
	"errors"
	"fmt"
	"io"

	"github.com/u-root/u-root/pkg/dt"
)

const (
	chosenNode  = "chosen"
	initrdStart = "linux,initrd-start"
	initrdEnd   = "linux,initrd-end"
)

// ErrNoRamdisk is returned when the device tree does not describe a ramdisk.
var ErrNoRamdisk = errors.New("no ramdisk in device tree")

// Region represents a physical memory range.
type Region struct {
	Base uint64
	Size int
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return r.Base + uint64(r.Size)
}

// Ramdisk parses a flattened device tree and returns the ramdisk region.
//
// The reader bounds the memory where the tree may lie, a tree whose header
// declares blocks beyond it is rejected.
func Ramdisk(dtb io.ReadSeeker) (r Region, err error) {
	fdt, err := dt.ReadFDT(dtb)

	if err != nil {
		return r, fmt.Errorf("could not parse device tree, %v", err)
	}

	return FromFDT(fdt)
}

// FromFDT returns the ramdisk region described by the /chosen node of a
// device tree.
func FromFDT(fdt *dt.FDT) (r Region, err error) {
	if fdt == nil || fdt.RootNode == nil {
		return r, ErrNoRamdisk
	}

	chosen, ok := fdt.NodeByName(chosenNode)

	if !ok {
		return r, ErrNoRamdisk
	}

	start, err := cell(chosen, initrdStart)

	if err != nil {
		return
	}

	end, err := cell(chosen, initrdEnd)

	if err != nil {
		return
	}

	if end < start {
		return r, fmt.Errorf("invalid ramdisk range %#x-%#x", start, end)
	}

	return Region{Base: start, Size: int(end - start)}, nil
}

// cell returns a property encoded either as <u32> or <u64>, as both are
// found in firmware generated trees.
func cell(n *dt.Node, name string) (uint64, error) {
	p, ok := n.LookProperty(name)

	if !ok {
		return 0, ErrNoRamdisk
	}

	if v, err := p.AsU32(); err == nil {
		return uint64(v), nil
	}

	return p.AsU64()
}
