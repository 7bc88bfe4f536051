// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package smp

import (
	"errors"
	"fmt"

	"github.com/usbarmory/bcm28xx-platform/mdi"
	"github.com/usbarmory/bcm28xx-platform/mem"
)

// MaxCPUs is the number of cores on BCM2836/BCM2837 SoCs.
const MaxCPUs = 4

// BCM2837 spin table
const (
	SpinTableOffset = 0xd8
	SpinTableBase   = mem.KernelBase + SpinTableOffset

	// VideoCore firmware bootstrap area holding the spin table and the
	// secondary core wait loop.
	BootstrapBase = mem.KernelBase
	BootstrapSize = 256
)

// BCM2836 ARM local mailbox 3 set registers
const (
	MailboxSetOffset = 0x8c
	MailboxStride    = 0x10
)

// StackAllocator represents the page allocator used for secondary stacks.
type StackAllocator interface {
	AllocPages(count int) (uint64, error)
}

// StackSetter records the initial stack pointer for a core, identified by
// cluster and core index within the cluster.
type StackSetter func(cluster int, cpu int, sp uint64)

// Topology returns the number of cores for each cluster described by a CPU
// map node. A missing or empty map results in a single cluster of max cores.
func Topology(cpuMap mdi.Node, max int) (clusters []int, err error) {
	if !cpuMap.Valid() {
		return []int{max}, nil
	}

	list, ok := cpuMap.Child(mdi.CPUMapClusters)

	if !ok {
		return []int{max}, nil
	}

	total := 0
	it := list.Children()

	for it.Next() {
		if it.Node().ID() != mdi.CPUMapCluster {
			continue
		}

		n, ok := it.Node().Child(mdi.CPUMapCPUCount)

		if !ok {
			return nil, errors.New("cluster without cpu count")
		}

		count, err := n.Uint32()

		if err != nil {
			return nil, err
		}

		total += int(count)
		clusters = append(clusters, int(count))
	}

	if err = it.Err(); err != nil {
		return nil, err
	}

	if total == 0 {
		return []int{max}, nil
	}

	if total > max {
		return nil, fmt.Errorf("cpu map describes %d cores, maximum is %d", total, max)
	}

	return
}

// SpinTable is the BCM2837 strategy, cores described by a cluster topology
// poll a 64-bit slot in the firmware spin table and are given a stack
// allocated from the page allocator.
type SpinTable struct {
	// Clusters holds the number of cores per cluster.
	Clusters []int
	// Base is the address of the slot for core 0.
	Base uint64
	// Allocator provides the secondary core stacks.
	Allocator StackAllocator
	// SetStack records each allocated stack top.
	SetStack StackSetter
	// VectorStart and VectorSize define the range cleaned before signaling.
	VectorStart uint64
	VectorSize  int
}

// NewSpinTable returns the BCM2837 strategy for the given topology.
func NewSpinTable(clusters []int, alloc StackAllocator, setStack StackSetter) *SpinTable {
	return &SpinTable{
		Clusters:    clusters,
		Base:        SpinTableBase,
		Allocator:   alloc,
		SetStack:    setStack,
		VectorStart: BootstrapBase,
		VectorSize:  BootstrapSize,
	}
}

// Name implements Strategy.
func (s *SpinTable) Name() string {
	return "spin-table"
}

// CPUs implements Strategy.
func (s *SpinTable) CPUs() (n int) {
	for _, c := range s.Clusters {
		n += c
	}

	return
}

// Locate returns the cluster and core index within the cluster of core cpu.
func (s *SpinTable) Locate(cpu int) (cluster int, index int) {
	for i, c := range s.Clusters {
		if cpu < c {
			return i, cpu
		}

		cpu -= c
	}

	return -1, -1
}

// Arm implements Strategy, allocating the core stack.
func (s *SpinTable) Arm(cpu int) (err error) {
	cluster, index := s.Locate(cpu)

	if cluster < 0 {
		return fmt.Errorf("cpu %d outside topology", cpu)
	}

	base, err := s.Allocator.AllocPages(mem.StackSize / mem.PageSize)

	if err != nil {
		return fmt.Errorf("could not allocate stack, %w", err)
	}

	if s.SetStack != nil {
		s.SetStack(cluster, index, base+mem.StackSize)
	}

	return
}

// Slot implements Strategy.
func (s *SpinTable) Slot(cpu int) Slot {
	return Slot{
		Addr:  s.Base + uint64(cpu)*8,
		Width: 8,
	}
}

// Vector implements Strategy.
func (s *SpinTable) Vector() (uint64, int) {
	return s.VectorStart, s.VectorSize
}

// Mailbox is the BCM2836 strategy, a fixed number of cores read their entry
// address from a 32-bit ARM local mailbox and use the stack set up by the
// reset code.
type Mailbox struct {
	// Count is the total number of cores.
	Count int
	// Base is the ARM local peripherals address.
	Base uint64
	// VectorStart and VectorSize define the reset code range cleaned
	// before signaling.
	VectorStart uint64
	VectorSize  int
}

// NewMailbox returns the BCM2836 strategy, the vector range locates the reset
// code executed by woken cores.
func NewMailbox(vectorStart uint64, vectorSize int) *Mailbox {
	return &Mailbox{
		Count:       MaxCPUs,
		Base:        mem.ARMLocalBase,
		VectorStart: vectorStart,
		VectorSize:  vectorSize,
	}
}

// Name implements Strategy.
func (m *Mailbox) Name() string {
	return "mailbox"
}

// CPUs implements Strategy.
func (m *Mailbox) CPUs() int {
	return m.Count
}

// Arm implements Strategy, no preparation is required.
func (m *Mailbox) Arm(cpu int) error {
	return nil
}

// Slot implements Strategy.
func (m *Mailbox) Slot(cpu int) Slot {
	return Slot{
		Addr:  m.Base + MailboxSetOffset + uint64(cpu)*MailboxStride,
		Width: 4,
	}
}

// Vector implements Strategy.
func (m *Mailbox) Vector() (uint64, int) {
	return m.VectorStart, m.VectorSize
}
