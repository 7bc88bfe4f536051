// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package platform

import (
	"fmt"

	"github.com/usbarmory/bcm28xx-platform/mem"
	"github.com/usbarmory/bcm28xx-platform/smp"
)

// StrategyKind selects the secondary core bring-up method.
type StrategyKind int

// Bring-up strategies
const (
	// StrategySpinTable is the BCM2837 firmware spin table.
	StrategySpinTable StrategyKind = iota
	// StrategyMailbox is the BCM2836 ARM local mailbox.
	StrategyMailbox
)

func (k StrategyKind) String() string {
	switch k {
	case StrategySpinTable:
		return "spin-table"
	case StrategyMailbox:
		return "mailbox"
	default:
		return fmt.Sprintf("strategy(%d)", int(k))
	}
}

// Config represents the build time board configuration.
type Config struct {
	// SMP enables secondary core bring-up in Init.
	SMP bool
	// Strategy selects the bring-up method.
	Strategy StrategyKind
	// MaxCPUs is the maximum number of cores, primary included.
	MaxCPUs int
	// Entry is the address secondary cores jump to.
	Entry uint64
	// VectorStart and VectorSize locate the code executed by woken cores
	// before reaching Entry, for StrategySpinTable a zero size selects the
	// firmware bootstrap area.
	VectorStart uint64
	VectorSize  int
	// Arena is the memory registered with the page allocator.
	Arena mem.Arena
	// Reserved lists the arena ranges withheld from allocation, in addition
	// to the boot metadata blob.
	Reserved []mem.Range
}

// DefaultConfig returns the configuration for the board selected at build
// time.
func DefaultConfig() Config {
	return Config{
		SMP:      smpEnabled,
		Strategy: defaultStrategy,
		MaxCPUs:  smp.MaxCPUs,
		Arena: mem.Arena{
			Name:  "sdram",
			Base:  mem.MemBase,
			Size:  mem.MemSize,
			Flags: mem.ArenaFlagKmap,
		},
		Reserved: []mem.Range{mem.LowMemory, mem.Runtime},
	}
}
