// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mdi

// Top level identifiers
var (
	// CPUMap describes the CPU topology.
	CPUMap = MakeID(TypeList, 1)
	// KernelDrivers lists the drivers initialized by the kernel.
	KernelDrivers = MakeID(TypeList, 2)
)

// CPU topology identifiers
var (
	CPUMapClusters = MakeID(TypeList, 3)
	CPUMapCluster  = MakeID(TypeList, 4)
	CPUMapCPUCount = MakeID(TypeUint32, 5)
)

// Driver identifiers
var (
	DriverMMIOBase = MakeID(TypeUint64, 16)
	DriverIRQ      = MakeID(TypeUint32, 17)
	DriverName     = MakeID(TypeString, 18)

	DriverUART = MakeID(TypeList, 32)
	DriverINTC = MakeID(TypeList, 33)
)

var names = map[ID]string{
	CPUMap:         "cpu-map",
	KernelDrivers:  "kernel-drivers",
	CPUMapClusters: "clusters",
	CPUMapCluster:  "cluster",
	CPUMapCPUCount: "cpu-count",
	DriverMMIOBase: "mmio-base",
	DriverIRQ:      "irq",
	DriverName:     "name",
	DriverUART:     "uart",
	DriverINTC:     "intc",
}

// Lookup returns the identifier registered under a printable name.
func Lookup(name string) (id ID, ok bool) {
	for id, s := range names {
		if s == name {
			return id, true
		}
	}

	return
}
