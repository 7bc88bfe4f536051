// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package platform sequences the early bring-up of a BCM28xx board.
//
// EarlyInit locates the boot metadata blob handed off by the bootloader,
// dispatches its configuration tree, initializes the interrupt controller and
// registers memory, reserving low memory, the runtime window and the pages
// still holding the blob. Init then
// starts the secondary cores. Every step requires the previous one to have
// completed and any failure must be treated as fatal.
package platform

import (
	"errors"
	"fmt"
	"log"

	"github.com/usbarmory/bcm28xx-platform/bootdata"
	"github.com/usbarmory/bcm28xx-platform/mdi"
	"github.com/usbarmory/bcm28xx-platform/mem"
	"github.com/usbarmory/bcm28xx-platform/smp"
)

// ErrOrder is returned when a boot step is invoked before its predecessor
// completed, or more than once.
var ErrOrder = errors.New("boot step out of order")

// Console represents the debug console.
type Console interface {
	// EarlyInit makes the console usable for diagnostics.
	EarlyInit() error
	// Init completes console initialization.
	Init() error
}

// InterruptController represents the board interrupt controller.
type InterruptController interface {
	Init() error
}

// DriverDispatcher receives the kernel driver list node.
type DriverDispatcher interface {
	Dispatch(list mdi.Node) error
}

// Handoff returns the physical base address and the contents of the boot
// metadata blob passed by the bootloader.
type Handoff func() (base uint64, blob []byte, err error)

type stage int

const (
	stageReset stage = iota
	stageConsole
	stageHandoff
	stageConfig
	stageInterrupts
	stageArena
	stageReserved
	stageRunning
)

var stageNames = []string{"reset", "console", "handoff", "config", "interrupts", "arena", "reserved", "running"}

func (s stage) String() string {
	return stageNames[s]
}

// Platform represents the boot context of a board, holding its collaborators
// and the state carried between boot steps.
type Platform struct {
	Config Config

	Console    Console
	Handoff    Handoff
	Allocator  mem.PageAllocator
	Interrupts InterruptController
	Drivers    DriverDispatcher

	// Machine performs the secondary core wake-up operations.
	Machine smp.Machine
	// SetStack receives the secondary core stacks allocated by the spin
	// table strategy.
	SetStack smp.StackSetter

	stage     stage
	base      uint64
	ramdisk   []byte
	cpuMap    mdi.Node
	reserved  []mem.Range
	registrar mem.Registrar
	sequencer smp.Sequencer
}

// New returns a boot context for the argument configuration.
func New(conf Config) *Platform {
	return &Platform{Config: conf}
}

func (p *Platform) step(from stage, name string, fn func() error) (err error) {
	if p.stage != from {
		return fmt.Errorf("platform could not %s, %w (at %s)", name, ErrOrder, p.stage)
	}

	if err = fn(); err != nil {
		return fmt.Errorf("platform could not %s, %w", name, err)
	}

	p.stage = from + 1

	return
}

// EarlyInit runs the boot steps which precede interrupts and memory
// allocation.
func (p *Platform) EarlyInit() (err error) {
	if err = p.step(stageReset, "init console", p.earlyConsole); err != nil {
		return
	}

	if err = p.step(stageConsole, "locate ramdisk", p.handoff); err != nil {
		return
	}

	if err = p.step(stageHandoff, "parse config", p.parseConfig); err != nil {
		return
	}

	if err = p.step(stageConfig, "init interrupts", p.initInterrupts); err != nil {
		return
	}

	if err = p.step(stageInterrupts, "register arena", p.registerArena); err != nil {
		return
	}

	return p.step(stageArena, "reserve memory", p.reserveMemory)
}

// Init completes console initialization and, when enabled, starts the
// secondary cores.
func (p *Platform) Init() (err error) {
	return p.step(stageReserved, "init", p.init)
}

func (p *Platform) earlyConsole() error {
	if p.Console == nil {
		return nil
	}

	return p.Console.EarlyInit()
}

func (p *Platform) handoff() (err error) {
	if p.Handoff == nil {
		return errors.New("missing handoff")
	}

	base, blob, err := p.Handoff()

	if err != nil {
		return
	}

	if len(blob) == 0 {
		return errors.New("empty ramdisk")
	}

	p.base = base
	p.ramdisk = blob

	log.Printf("platform ramdisk %#x-%#x (%d bytes)", base, base+uint64(len(blob)), len(blob))

	if len(blob) > mem.ReservedSize {
		log.Printf("platform ramdisk exceeds reservation (%d > %d bytes)", len(blob), mem.ReservedSize)
	}

	return
}

func (p *Platform) parseConfig() (err error) {
	off, err := bootdata.Find(p.ramdisk, bootdata.TypeMDI)

	if err != nil {
		return
	}

	rec, err := bootdata.NewCursor(p.ramdisk[off:]).Next()

	if err != nil {
		return
	}

	root, err := mdi.Init(rec.Payload())

	if err != nil {
		return
	}

	it := root.Children()

	for it.Next() {
		node := it.Node()

		switch node.ID() {
		case mdi.CPUMap:
			// the last declaration wins
			p.cpuMap = node
		case mdi.KernelDrivers:
			if p.Drivers == nil {
				return errors.New("missing driver dispatcher")
			}

			if err = p.Drivers.Dispatch(node); err != nil {
				return
			}
		}
	}

	return it.Err()
}

func (p *Platform) initInterrupts() error {
	if p.Interrupts == nil {
		return errors.New("missing interrupt controller")
	}

	return p.Interrupts.Init()
}

func (p *Platform) registerArena() error {
	if p.Allocator == nil {
		return errors.New("missing page allocator")
	}

	p.registrar.Allocator = p.Allocator

	return p.registrar.RegisterArena(p.Config.Arena)
}

func (p *Platform) reserveMemory() (err error) {
	ranges := append([]mem.Range{}, p.Config.Reserved...)
	ranges = append(ranges, mem.BlobReservation(p.base))

	for _, r := range mem.Merge(ranges) {
		log.Printf("platform reserving %s", r)

		if err = p.registrar.ReserveRange(r.Base, r.Pages); err != nil {
			return
		}

		p.reserved = append(p.reserved, r)
	}

	return
}

func (p *Platform) init() (err error) {
	if p.Console != nil {
		if err = p.Console.Init(); err != nil {
			return
		}
	}

	if !p.Config.SMP {
		return
	}

	strategy, err := p.Strategy()

	if err != nil {
		return
	}

	p.sequencer.Machine = p.Machine

	return p.sequencer.Start(strategy, p.Config.Entry)
}

// Strategy returns the secondary core bring-up strategy selected by the
// configuration.
func (p *Platform) Strategy() (smp.Strategy, error) {
	if p.Machine == nil {
		return nil, errors.New("missing machine")
	}

	switch p.Config.Strategy {
	case StrategySpinTable:
		clusters, err := smp.Topology(p.cpuMap, p.Config.MaxCPUs)

		if err != nil {
			return nil, err
		}

		s := smp.NewSpinTable(clusters, p.Allocator, p.SetStack)

		if p.Config.VectorSize != 0 {
			s.VectorStart = p.Config.VectorStart
			s.VectorSize = p.Config.VectorSize
		}

		return s, nil
	case StrategyMailbox:
		m := smp.NewMailbox(p.Config.VectorStart, p.Config.VectorSize)

		if p.Config.MaxCPUs > 0 && p.Config.MaxCPUs < m.Count {
			m.Count = p.Config.MaxCPUs
		}

		return m, nil
	default:
		return nil, fmt.Errorf("unsupported strategy %s", p.Config.Strategy)
	}
}

// Ramdisk returns the boot metadata blob, which must not be modified, or nil
// before the handoff step.
func (p *Platform) Ramdisk() []byte {
	return p.ramdisk
}

// RamdiskBase returns the physical address of the boot metadata blob.
func (p *Platform) RamdiskBase() uint64 {
	return p.base
}

// CPUMap returns the CPU topology node retained from the configuration tree.
func (p *Platform) CPUMap() (mdi.Node, bool) {
	return p.cpuMap, p.cpuMap.Valid()
}

// Arena returns the registered memory arena.
func (p *Platform) Arena() (mem.Arena, bool) {
	return p.registrar.Arena()
}

// Reserved returns the ranges withheld from the page allocator.
func (p *Platform) Reserved() []mem.Range {
	return p.reserved
}

// Sequencer returns the secondary core sequencer, for state inspection.
func (p *Platform) Sequencer() *smp.Sequencer {
	return &p.sequencer
}
