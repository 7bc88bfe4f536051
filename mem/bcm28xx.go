// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

// BCM28xx memory layout, the kernel runs on a flat mapping of SDRAM at
// KernelBase.
const (
	// SDRAM
	MemBase = 0x00000000
	MemSize = 0x3b400000 // 948MB, the remainder is VideoCore memory

	// Kernel address space
	KernelBase = MemBase

	// Peripherals
	PeriphBase = 0x3f000000
	PeriphSize = 0x01000000

	// ARM local peripherals (BCM2836 mailboxes)
	ARMLocalBase = 0x40000000
)

const (
	// PageSize is the page allocator granularity.
	PageSize = 4096

	// StackSize is the stack size given to each secondary core.
	StackSize = 8192

	// ReservedSize is the size of the range withheld at the start of the
	// boot metadata blob, blobs are expected to never exceed it.
	ReservedSize = 0x80000 // 512KB

	// DeviceTreeAddress is where the firmware places the device tree blob.
	DeviceTreeAddress = MemBase + 0x100

	// LowMemorySize covers the firmware bootstrap, spin table and device
	// tree, the kernel image is loaded right after it.
	LowMemorySize = 0x80000

	// RuntimeStart and RuntimeSize locate the Go runtime memory, the
	// firmware is expected to load the ramdisk at or above its end.
	RuntimeStart = MemBase + LowMemorySize
	RuntimeSize  = 0x02000000 - LowMemorySize
)

// PhysToVirt returns the kernel address mapping physical address p.
func PhysToVirt(p uint64) uint64 {
	return p - MemBase + KernelBase
}

// VirtToPhys returns the physical address mapped at kernel address v.
func VirtToPhys(v uint64) uint64 {
	return v - KernelBase + MemBase
}
