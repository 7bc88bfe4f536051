// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64

package main

import (
	"fmt"
	"log"
	"runtime"
	_ "unsafe"

	"github.com/usbarmory/bcm28xx-platform/arm64"
	"github.com/usbarmory/bcm28xx-platform/console"
	"github.com/usbarmory/bcm28xx-platform/mdi"
	"github.com/usbarmory/bcm28xx-platform/mem"
	"github.com/usbarmory/bcm28xx-platform/pdev"
	"github.com/usbarmory/bcm28xx-platform/platform"
	"github.com/usbarmory/bcm28xx-platform/shell"
)

// The runtime is confined to mem.Runtime, which the platform withholds from
// the DMA region backing the page allocator.

//go:linkname ramStart runtime/goos.RamStart
var ramStart uint64 = mem.RuntimeStart

//go:linkname ramSize runtime/goos.RamSize
var ramSize uint64 = mem.RuntimeSize

var mmio arm64.Machine

var (
	uart    = &PL011{Base: UART0Base}
	serial  = console.New(uart)
	drivers pdev.Registry
	board   *platform.Platform
)

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(serial)

	drivers.Register(pdev.Driver{
		ID:   mdi.DriverUART,
		Name: "uart",
		Init: uart.Attach,
	})

	conf := platform.DefaultConfig()
	conf.Entry = secondaryEntry()

	if conf.Strategy == platform.StrategyMailbox {
		conf.VectorStart = conf.Entry
		conf.VectorSize = resetSize
	}

	board = platform.New(conf)
	board.Console = serial
	board.Handoff = ramdisk
	board.Allocator = &mem.DMAAllocator{}
	board.Interrupts = &Intc{Base: IntcBase}
	board.Drivers = &drivers
	board.Machine = mmio
	board.SetStack = setStack
}

func main() {
	if err := board.EarlyInit(); err != nil {
		serial.Puts(fmt.Sprintf("fatal: %v\n", err))
		panic(err)
	}

	if err := board.Init(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	sh := &shell.Shell{
		Banner:   fmt.Sprintf("%s/%s (%s) • BCM28xx boot shell", runtime.GOOS, runtime.GOARCH, runtime.Version()),
		Platform: board,
	}

	sh.Start(serial)

	log.Printf("boot shell says goodbye")
}
