// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pdev

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbarmory/bcm28xx-platform/mdi"
)

var unknownDriver = mdi.MakeID(mdi.TypeList, 0x99)

func driverList(t *testing.T) mdi.Node {
	root, err := mdi.Init(mdi.List(mdi.KernelDrivers,
		mdi.List(mdi.DriverUART,
			mdi.Uint64(mdi.DriverMMIOBase, 0x3f201000),
			mdi.Uint32(mdi.DriverIRQ, 57),
			mdi.String(mdi.DriverName, "pl011"),
		),
		mdi.List(unknownDriver),
		mdi.List(mdi.DriverINTC,
			mdi.Uint64(mdi.DriverMMIOBase, 0x3f00b200),
		),
	).Bytes())

	require.NoError(t, err)

	return root
}

func TestDispatch(t *testing.T) {
	var r Registry
	var got []Resource

	attach := func(node mdi.Node) error {
		res, err := ParseResource(node)
		got = append(got, res)
		return err
	}

	r.Register(Driver{ID: mdi.DriverINTC, Name: "intc", Init: attach})
	r.Register(Driver{ID: mdi.DriverUART, Name: "uart", Init: attach})

	require.NoError(t, r.Dispatch(driverList(t)))

	assert.Equal(t, []string{"uart", "intc"}, r.Started())
	assert.Equal(t, []Resource{
		{Name: "pl011", MMIOBase: 0x3f201000, IRQ: 57},
		{Name: "intc", MMIOBase: 0x3f00b200},
	}, got)

	drivers := r.Drivers()
	require.Len(t, drivers, 2)
	assert.Equal(t, mdi.DriverUART, drivers[0].ID)
}

func TestDispatchFailure(t *testing.T) {
	var r Registry
	errAttach := errors.New("attach failed")

	r.Register(Driver{ID: mdi.DriverUART, Name: "uart", Init: func(mdi.Node) error { return errAttach }})
	r.Register(Driver{ID: mdi.DriverINTC, Name: "intc", Init: func(mdi.Node) error { return nil }})

	err := r.Dispatch(driverList(t))

	assert.ErrorIs(t, err, errAttach)
	assert.Equal(t, []string{"intc"}, r.Started())
}

func TestDispatchEmpty(t *testing.T) {
	var r Registry
	assert.NoError(t, r.Dispatch(driverList(t)))
	assert.Empty(t, r.Started())
}

func TestParseResourceMissingBase(t *testing.T) {
	root, err := mdi.Init(mdi.List(mdi.DriverUART, mdi.Uint32(mdi.DriverIRQ, 1)).Bytes())
	require.NoError(t, err)

	_, err = ParseResource(root)
	assert.Error(t, err)
}
