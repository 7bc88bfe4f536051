// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package arm64

import (
	"sync/atomic"
	"unsafe"
)

// defined in machine_arm64.s
func dsb()
func sev()
func cleanCacheRange(start uint64, end uint64)

// Machine implements direct hardware access on the running core.
type Machine struct{}

// Write32 stores a 32-bit value at physical address addr.
func (Machine) Write32(addr uint64, val uint32) {
	reg := (*uint32)(unsafe.Pointer(uintptr(addr)))
	atomic.StoreUint32(reg, val)
}

// Write64 stores a 64-bit value at physical address addr.
func (Machine) Write64(addr uint64, val uint64) {
	reg := (*uint64)(unsafe.Pointer(uintptr(addr)))
	atomic.StoreUint64(reg, val)
}

// Read32 loads a 32-bit value from physical address addr.
func (Machine) Read32(addr uint64) uint32 {
	reg := (*uint32)(unsafe.Pointer(uintptr(addr)))
	return atomic.LoadUint32(reg)
}

// Barrier issues a full system data synchronization barrier.
func (Machine) Barrier() {
	dsb()
}

// CleanCache cleans the data cache lines covering [addr, addr+size) to the
// point of coherency.
func (Machine) CleanCache(addr uint64, size int) {
	if size <= 0 {
		return
	}

	start := addr &^ (CacheLineSize - 1)
	cleanCacheRange(start, addr+uint64(size))
}

// SendEvent signals an event to all cores.
func (Machine) SendEvent() {
	sev()
}
