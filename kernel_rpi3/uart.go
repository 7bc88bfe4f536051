// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64

package main

import (
	"github.com/usbarmory/bcm28xx-platform/mdi"
	"github.com/usbarmory/bcm28xx-platform/mem"
	"github.com/usbarmory/bcm28xx-platform/pdev"
)

// GPIO registers
const (
	GPIOBase  = mem.PeriphBase + 0x200000
	GPPUD     = GPIOBase + 0x94
	GPPUDCLK0 = GPIOBase + 0x98
)

// PL011 registers, tamago soc/bcm2835 only drives the MiniUART and builds for
// GOARCH=arm.
const (
	UART0Base = mem.PeriphBase + 0x201000

	UARTx_DR   = 0x00
	UARTx_FR   = 0x18
	UARTx_IBRD = 0x24
	UARTx_FBRD = 0x28
	UARTx_LCRH = 0x2c
	UARTx_CR   = 0x30
	UARTx_IMSC = 0x38
	UARTx_ICR  = 0x44

	FR_RXFE = 4
	FR_TXFF = 5
)

// PL011 represents the primary serial port.
type PL011 struct {
	Base uint64
}

func delay(n int) {
	for i := 0; i < n; i++ {
		mmio.Barrier()
	}
}

// Init configures the serial port for 115200 8N1 on GPIO 14/15.
func (hw *PL011) Init() error {
	hw.write(UARTx_CR, 0)

	mmio.Write32(GPPUD, 0)
	delay(150)

	mmio.Write32(GPPUDCLK0, (1<<14)|(1<<15))
	delay(150)

	mmio.Write32(GPPUDCLK0, 0)

	hw.write(UARTx_ICR, 0x7ff)

	hw.write(UARTx_IBRD, 1)
	hw.write(UARTx_FBRD, 40)

	// FIFO enable, 8-bit words
	hw.write(UARTx_LCRH, (1<<4)|(1<<5)|(1<<6))
	hw.write(UARTx_IMSC, (1<<1)|(1<<4)|(1<<5)|(1<<6)|(1<<7)|(1<<8)|(1<<9)|(1<<10))

	// UART, TX and RX enable
	hw.write(UARTx_CR, (1<<0)|(1<<8)|(1<<9))

	return nil
}

// Attach applies the configuration tree node of the serial port.
func (hw *PL011) Attach(node mdi.Node) (err error) {
	res, err := pdev.ParseResource(node)

	if err != nil {
		return
	}

	hw.Base = res.MMIOBase

	return
}

func (hw *PL011) write(off uint64, val uint32) {
	mmio.Write32(hw.Base+off, val)
}

func (hw *PL011) read(off uint64) uint32 {
	return mmio.Read32(hw.Base + off)
}

// Tx transmits a single byte.
func (hw *PL011) Tx(c byte) {
	for hw.read(UARTx_FR)&(1<<FR_TXFF) != 0 {
	}

	hw.write(UARTx_DR, uint32(c))
}

// Rx returns a received byte, if any is available.
func (hw *PL011) Rx() (c byte, valid bool) {
	if hw.read(UARTx_FR)&(1<<FR_RXFE) != 0 {
		return
	}

	return byte(hw.read(UARTx_DR)), true
}
