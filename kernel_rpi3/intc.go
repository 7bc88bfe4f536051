// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64

package main

import (
	"github.com/usbarmory/bcm28xx-platform/mem"
)

// BCM2835 interrupt controller registers, tamago soc/bcm2835 builds for
// GOARCH=arm only and lacks the ARM local routing.
const (
	IntcBase = mem.PeriphBase + 0xb200

	IRQ_DISABLE_1     = 0x1c
	IRQ_DISABLE_2     = 0x20
	IRQ_DISABLE_BASIC = 0x24
)

// ARM local interrupt routing
const (
	LOCAL_GPU_ROUTING   = mem.ARMLocalBase + 0x0c
	LOCAL_TIMER_CONTROL = mem.ARMLocalBase + 0x40
)

// Intc represents the BCM2835 interrupt controller.
type Intc struct {
	Base uint64
}

// Init masks every interrupt source and routes peripheral interrupts to the
// primary core.
func (hw *Intc) Init() error {
	mmio.Write32(hw.Base+IRQ_DISABLE_1, 0xffffffff)
	mmio.Write32(hw.Base+IRQ_DISABLE_2, 0xffffffff)
	mmio.Write32(hw.Base+IRQ_DISABLE_BASIC, 0xffffffff)

	mmio.Write32(LOCAL_GPU_ROUTING, 0)

	for cpu := uint64(0); cpu < 4; cpu++ {
		mmio.Write32(LOCAL_TIMER_CONTROL+cpu*4, 0)
	}

	mmio.Barrier()

	return nil
}
