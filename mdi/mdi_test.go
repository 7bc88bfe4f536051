// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mdi

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	unknownList   = MakeID(TypeList, 0x777)
	unknownUint32 = MakeID(TypeUint32, 0x778)
)

func children(t *testing.T, n Node) (ids []ID) {
	it := n.Children()

	for it.Next() {
		ids = append(ids, it.Node().ID())
	}

	require.NoError(t, it.Err())

	return
}

func TestChildrenOrder(t *testing.T) {
	for _, order := range [][]*Builder{
		{List(unknownList), List(CPUMap), Uint32(unknownUint32, 1), List(KernelDrivers)},
		{List(KernelDrivers), List(unknownList), List(CPUMap), Uint32(unknownUint32, 1)},
		{List(CPUMap), List(KernelDrivers), List(unknownList), Uint32(unknownUint32, 1)},
		{Uint32(unknownUint32, 1), List(unknownList), List(KernelDrivers), List(CPUMap)},
	} {
		var want []ID

		for _, b := range order {
			want = append(want, b.id)
		}

		root, err := Init(List(MakeID(TypeList, 0), order...).Bytes())
		require.NoError(t, err)

		assert.Equal(t, want, children(t, root))

		_, ok := root.Child(CPUMap)
		assert.True(t, ok)

		_, ok = root.Child(KernelDrivers)
		assert.True(t, ok)
	}
}

func TestNestedValues(t *testing.T) {
	tree := List(MakeID(TypeList, 0),
		List(CPUMap,
			List(CPUMapClusters,
				List(CPUMapCluster, Uint32(CPUMapCPUCount, 2)),
				List(CPUMapCluster, Uint32(CPUMapCPUCount, 4)),
			),
		),
		List(KernelDrivers,
			List(DriverUART,
				String(DriverName, "pl011"),
				Uint64(DriverMMIOBase, 0xffffffffc0201000),
				Uint32(DriverIRQ, 57),
			),
		),
		Int32(MakeID(TypeInt32, 9), -3),
		Bool(MakeID(TypeBoolean, 10), true),
	)

	root, err := Init(tree.Bytes())
	require.NoError(t, err)

	cpuMap, ok := root.Child(CPUMap)
	require.True(t, ok)

	clusters, ok := cpuMap.Child(CPUMapClusters)
	require.True(t, ok)

	var counts []uint32
	it := clusters.Children()

	for it.Next() {
		n, ok := it.Node().Child(CPUMapCPUCount)
		require.True(t, ok)

		v, err := n.Uint32()
		require.NoError(t, err)

		counts = append(counts, v)
	}

	require.NoError(t, it.Err())
	assert.Equal(t, []uint32{2, 4}, counts)

	drivers, ok := root.Child(KernelDrivers)
	require.True(t, ok)

	uart, ok := drivers.Child(DriverUART)
	require.True(t, ok)

	name, _ := uart.Child(DriverName)
	s, err := name.Text()
	require.NoError(t, err)
	assert.Equal(t, "pl011", s)

	base, _ := uart.Child(DriverMMIOBase)
	v64, err := base.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xffffffffc0201000), v64)

	i32, _ := root.Child(MakeID(TypeInt32, 9))
	v32, err := i32.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(-3), v32)

	b, _ := root.Child(MakeID(TypeBoolean, 10))
	vb, err := b.Bool()
	require.NoError(t, err)
	assert.True(t, vb)

	_, err = base.Uint32()
	assert.ErrorIs(t, err, ErrType)
}

func TestLeafHasNoChildren(t *testing.T) {
	root, err := Init(List(MakeID(TypeList, 0), Uint32(unknownUint32, 5)).Bytes())
	require.NoError(t, err)

	leaf, ok := root.Child(unknownUint32)
	require.True(t, ok)

	assert.Empty(t, children(t, leaf))
}

func TestMalformed(t *testing.T) {
	_, err := Init(make([]byte, 8))
	assert.ErrorIs(t, err, ErrMalformed)

	// root must be a list
	_, err = Init(Uint32(unknownUint32, 1).Bytes())
	assert.ErrorIs(t, err, ErrMalformed)

	buf := List(MakeID(TypeList, 0), List(CPUMap), List(KernelDrivers)).Bytes()

	// second child claims to extend past its parent
	binary.LittleEndian.PutUint32(buf[2*HeaderSize+4:], 0x1000)

	root, err := Init(buf)
	require.NoError(t, err)

	it := root.Children()
	require.True(t, it.Next())
	assert.Equal(t, CPUMap, it.Node().ID())
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), ErrMalformed)

	// child count larger than encoded children
	buf = List(MakeID(TypeList, 0), List(CPUMap)).Bytes()
	binary.LittleEndian.PutUint32(buf[8:], 2)

	root, err = Init(buf)
	require.NoError(t, err)

	it = root.Children()
	require.True(t, it.Next())
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), ErrMalformed)
}

func TestID(t *testing.T) {
	assert.Equal(t, TypeList, CPUMap.Type())
	assert.Equal(t, uint32(1), CPUMap.Number())
	assert.Equal(t, "cpu-map", CPUMap.String())
	assert.Equal(t, "uint32:1912", unknownUint32.String())

	id, ok := Lookup("kernel-drivers")
	assert.True(t, ok)
	assert.Equal(t, KernelDrivers, id)
}
