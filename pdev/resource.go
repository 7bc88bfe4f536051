// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pdev

import (
	"fmt"

	"github.com/usbarmory/bcm28xx-platform/mdi"
)

// Resource represents the configuration of a memory mapped peripheral.
type Resource struct {
	Name     string
	MMIOBase uint64
	IRQ      uint32
}

// ParseResource reads the peripheral configuration from a driver node, the
// MMIO base is mandatory while name and interrupt are optional.
func ParseResource(node mdi.Node) (res Resource, err error) {
	n, ok := node.Child(mdi.DriverMMIOBase)

	if !ok {
		return res, fmt.Errorf("%s has no mmio base", node.ID())
	}

	if res.MMIOBase, err = n.Uint64(); err != nil {
		return
	}

	if n, ok = node.Child(mdi.DriverIRQ); ok {
		if res.IRQ, err = n.Uint32(); err != nil {
			return
		}
	}

	if n, ok = node.Child(mdi.DriverName); ok {
		if res.Name, err = n.Text(); err != nil {
			return
		}
	} else {
		res.Name = node.ID().String()
	}

	return
}
