// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64

package main

import (
	"bytes"
	"unsafe"

	"github.com/usbarmory/bcm28xx-platform/handoff"
	"github.com/usbarmory/bcm28xx-platform/mem"
)

// the device tree must fit in the reserved low memory
const deviceTreeWindow = mem.MemBase + mem.LowMemorySize - mem.DeviceTreeAddress

func physical(addr uint64, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(mem.PhysToVirt(addr)))), size)
}

// ramdisk locates the boot metadata blob through the device tree passed by
// the VideoCore firmware.
func ramdisk() (base uint64, blob []byte, err error) {
	r, err := handoff.Ramdisk(bytes.NewReader(physical(mem.DeviceTreeAddress, deviceTreeWindow)))

	if err != nil {
		return
	}

	return r.Base, physical(r.Base, r.Size), nil
}
