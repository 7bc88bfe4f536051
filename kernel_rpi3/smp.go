// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64

package main

import (
	"unsafe"

	"github.com/usbarmory/bcm28xx-platform/smp"
)

// resetSize is the length of secondaryReset
const resetSize = 64

// initial stack pointers, indexed by MPIDR affinity level 1 and 0
var stacks [smp.MaxCPUs][smp.MaxCPUs]uint64

// defined in smp.s
func secondaryEntry() uint64
func secondaryReset()

func setStack(cluster int, cpu int, sp uint64) {
	stacks[cluster][cpu] = sp

	// read by the woken core before it joins the coherency domain
	mmio.CleanCache(uint64(uintptr(unsafe.Pointer(&stacks[cluster][cpu]))), 8)
}
