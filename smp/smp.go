// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package smp starts the secondary cores of a BCM28xx SoC.
//
// Each secondary core waits, after reset, for a wake-up event and then jumps
// to the address found in its own slot. The primary core must therefore
// publish the entry address, clean the data cache over the memory the woken
// core reads and executes, and only then signal the event. No handshake with
// the woken core takes place: a core which fails to start is only observable
// by later kernel initialization.
package smp

import (
	"errors"
	"fmt"
	"log"
	"math"
)

// Machine represents the hardware operations used to wake secondary cores.
type Machine interface {
	// Write32 stores a 32-bit value at addr.
	Write32(addr uint64, val uint32)
	// Write64 stores a 64-bit value at addr.
	Write64(addr uint64, val uint64)
	// Barrier completes all outstanding memory accesses.
	Barrier()
	// CleanCache writes back the data cache lines covering [addr, addr+size)
	// to the point of coherency.
	CleanCache(addr uint64, size int)
	// SendEvent signals an event to all cores.
	SendEvent()
}

// Slot represents the memory location a secondary core polls for its entry
// address.
type Slot struct {
	Addr uint64
	// Width is the slot size in bytes (4 or 8).
	Width int
}

// Strategy represents a hardware generation specific method to address and
// prepare secondary cores.
type Strategy interface {
	// Name returns the strategy name.
	Name() string
	// CPUs returns the total number of cores, primary included.
	CPUs() int
	// Arm prepares core cpu for its start.
	Arm(cpu int) error
	// Slot returns the entry address slot for core cpu.
	Slot(cpu int) Slot
	// Vector returns the memory range the woken cores execute from, which
	// must be cleaned before signaling.
	Vector() (start uint64, size int)
}

// State represents the bring-up progress of a single core.
type State int

// Core states
const (
	Idle State = iota
	Armed
	Published
	Flushed
	Signaled
)

var stateNames = []string{"idle", "armed", "published", "flushed", "signaled"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// ErrStarted is returned when the sequencer is run more than once.
var ErrStarted = errors.New("secondary cores already started")

// Sequencer starts secondary cores, publishing the entry address, cleaning the
// entry vector and signaling each core in strict order.
type Sequencer struct {
	Machine Machine

	strategy Strategy
	states   []State
}

// Start wakes cores 1 to N-1 of strategy at the entry address.
func (s *Sequencer) Start(strategy Strategy, entry uint64) (err error) {
	if s.strategy != nil {
		return ErrStarted
	}

	n := strategy.CPUs()

	s.strategy = strategy
	s.states = make([]State, n)

	log.Printf("smp starting %d secondary cores (%s) entry:%#x", n-1, strategy.Name(), entry)

	for cpu := 1; cpu < n; cpu++ {
		if err = s.start(cpu, entry); err != nil {
			return fmt.Errorf("smp could not start cpu %d, %w", cpu, err)
		}
	}

	return
}

func (s *Sequencer) start(cpu int, entry uint64) (err error) {
	if err = s.strategy.Arm(cpu); err != nil {
		return
	}

	s.states[cpu] = Armed

	slot := s.strategy.Slot(cpu)

	switch slot.Width {
	case 4:
		if entry > math.MaxUint32 {
			return fmt.Errorf("entry %#x exceeds 32-bit slot", entry)
		}

		s.Machine.Write32(slot.Addr, uint32(entry))
	case 8:
		s.Machine.Write64(slot.Addr, entry)
	default:
		return fmt.Errorf("invalid slot width %d", slot.Width)
	}

	// the slot write must complete before its cache lines are cleaned
	s.Machine.Barrier()
	s.states[cpu] = Published

	start, size := s.strategy.Vector()
	s.Machine.CleanCache(start, size)
	s.states[cpu] = Flushed

	s.Machine.SendEvent()
	s.states[cpu] = Signaled

	log.Printf("smp signaled cpu:%d slot:%#x", cpu, slot.Addr)

	return
}

// State returns the bring-up state of core cpu, the primary core and unknown
// cores are reported as Idle.
func (s *Sequencer) State(cpu int) State {
	if cpu < 0 || cpu >= len(s.states) {
		return Idle
	}

	return s.states[cpu]
}

// CPUs returns the number of cores handled by the last Start invocation.
func (s *Sequencer) CPUs() int {
	return len(s.states)
}
