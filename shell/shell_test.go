// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package shell

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbarmory/bcm28xx-platform/bootdata"
	"github.com/usbarmory/bcm28xx-platform/mdi"
	"github.com/usbarmory/bcm28xx-platform/mem"
	"github.com/usbarmory/bcm28xx-platform/pdev"
	"github.com/usbarmory/bcm28xx-platform/platform"
)

const ramdiskBase = 0x8000000

type pages struct{}

func (pages) AddArena(mem.Arena) error {
	return nil
}

func (pages) ReservePages(uint64, int) error {
	return nil
}

func (pages) AllocPages(count int) (uint64, error) {
	return 0x100000, nil
}

type intc struct{}

func (intc) Init() error { return nil }

func booted(t *testing.T) *platform.Platform {
	var w bootdata.Writer

	w.Append(bootdata.TypeCmdline, 0, []byte("console=serial0\x00"))
	w.Append(bootdata.TypeMDI, 0, mdi.List(mdi.MakeID(mdi.TypeList, 0),
		mdi.List(mdi.KernelDrivers),
	).Bytes())

	conf := platform.DefaultConfig()
	conf.SMP = false

	p := platform.New(conf)
	p.Handoff = func() (uint64, []byte, error) {
		return ramdiskBase, w.Bytes(), nil
	}
	p.Allocator = pages{}
	p.Interrupts = intc{}
	p.Drivers = &pdev.Registry{}

	require.NoError(t, p.EarlyInit())
	require.NoError(t, p.Init())

	return p
}

func TestHelp(t *testing.T) {
	sh := &Shell{}

	res, err := sh.Exec("help")
	require.NoError(t, err)

	for _, name := range []string{"bootdata", "mdi", "arena", "cpus", "ramdisk", "exit, quit"} {
		assert.Contains(t, res, name)
	}

	assert.Contains(t, res, "<hex offset> <size>")
}

func TestExit(t *testing.T) {
	sh := &Shell{}

	for _, line := range []string{"exit", "quit"} {
		_, err := sh.Exec(line)
		assert.Equal(t, io.EOF, err)
	}
}

func TestUnknown(t *testing.T) {
	sh := &Shell{}

	_, err := sh.Exec("reboot")
	assert.ErrorIs(t, err, ErrUnknown)

	_, err = sh.Exec("ramdisk zz 4")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestBootdata(t *testing.T) {
	sh := &Shell{Platform: booted(t)}

	res, err := sh.Exec("bootdata")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(res), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], bootdata.TypeName(bootdata.TypeCmdline))
	assert.Contains(t, lines[2], bootdata.TypeName(bootdata.TypeMDI))
}

func TestMDI(t *testing.T) {
	sh := &Shell{Platform: booted(t)}

	res, err := sh.Exec("mdi")
	require.NoError(t, err)
	assert.Contains(t, res, "kernel-drivers {")
}

func TestRamdisk(t *testing.T) {
	sh := &Shell{Platform: booted(t)}

	res, err := sh.Exec("ramdisk 0 4")
	require.NoError(t, err)
	assert.Contains(t, res, "e6 f7 8c 86")

	_, err = sh.Exec("ramdisk fffff 16")
	assert.Error(t, err)
}

func TestRamdiskBeforeBoot(t *testing.T) {
	sh := &Shell{Platform: platform.New(platform.DefaultConfig())}

	_, err := sh.Exec("ramdisk 0 4")
	assert.Error(t, err)

	_, err = sh.Exec("arena")
	assert.Error(t, err)
}

func TestArena(t *testing.T) {
	sh := &Shell{Platform: booted(t)}

	res, err := sh.Exec("arena")
	require.NoError(t, err)
	assert.Contains(t, res, "sdram")
	assert.Contains(t, res, "reserved 0x0-0x2000000\n")
	assert.Contains(t, res, "reserved "+mem.BlobReservation(ramdiskBase).String())
}

func TestCPUs(t *testing.T) {
	sh := &Shell{Platform: booted(t)}

	res, err := sh.Exec("cpus")
	require.NoError(t, err)
	assert.Contains(t, res, "smp:false")
}

type session struct {
	io.Reader
	bytes.Buffer
}

func (s *session) Write(p []byte) (int, error) {
	return s.Buffer.Write(p)
}

func (s *session) Read(p []byte) (int, error) {
	return s.Reader.Read(p)
}

func TestStart(t *testing.T) {
	s := &session{Reader: strings.NewReader("cpus\rexit\r")}
	sh := &Shell{Banner: "bcm28xx", Platform: booted(t)}

	sh.Start(s)

	out := s.String()
	assert.Contains(t, out, "bcm28xx")
	assert.Contains(t, out, "strategy:")
	assert.Contains(t, out, "logout")
}
