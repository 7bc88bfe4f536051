// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package shell

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/usbarmory/bcm28xx-platform/bootdata"
	"github.com/usbarmory/bcm28xx-platform/mdi"
)

const maxBufferSize = 102400

func init() {
	Add(Cmd{
		Name: "bootdata",
		Help: "list boot metadata records",
		Fn:   bootdataCmd,
	})

	Add(Cmd{
		Name: "mdi",
		Help: "show configuration tree",
		Fn:   mdiCmd,
	})

	Add(Cmd{
		Name: "arena",
		Help: "show memory arena and ramdisk reservation",
		Fn:   arenaCmd,
	})

	Add(Cmd{
		Name: "cpus",
		Help: "show secondary core bring-up state",
		Fn:   cpusCmd,
	})

	Add(Cmd{
		Name:    "ramdisk",
		Args:    2,
		Pattern: regexp.MustCompile(`^ramdisk ([[:xdigit:]]+) (\d+)$`),
		Syntax:  "<hex offset> <size>",
		Help:    "ramdisk display",
		Fn:      ramdiskCmd,
	})
}

func (sh *Shell) ramdisk() ([]byte, error) {
	if sh.Platform == nil || sh.Platform.Ramdisk() == nil {
		return nil, errors.New("ramdisk not available")
	}

	return sh.Platform.Ramdisk(), nil
}

func bootdataCmd(sh *Shell, _ []string) (res string, err error) {
	var buf bytes.Buffer

	blob, err := sh.ramdisk()

	if err != nil {
		return
	}

	fmt.Fprintf(&buf, "%-8s %-10s %-10s %-10s\n", "offset", "type", "length", "extra")

	err = bootdata.Walk(blob, func(r bootdata.Record) error {
		fmt.Fprintf(&buf, "%#-8x %-10s %#-10x %#-10x\n", r.Offset, bootdata.TypeName(r.Type), r.Length, r.Extra)
		return nil
	})

	return buf.String(), err
}

func mdiCmd(sh *Shell, _ []string) (res string, err error) {
	var buf bytes.Buffer

	blob, err := sh.ramdisk()

	if err != nil {
		return
	}

	rec, err := bootdata.Lookup(blob, bootdata.TypeMDI)

	if err != nil {
		return
	}

	root, err := mdi.Init(rec.Payload())

	if err != nil {
		return
	}

	err = mdi.Fprint(&buf, root)

	return buf.String(), err
}

func arenaCmd(sh *Shell, _ []string) (res string, err error) {
	var buf bytes.Buffer

	if sh.Platform == nil {
		return "", errors.New("boot context not available")
	}

	a, ok := sh.Platform.Arena()

	if !ok {
		return "", errors.New("arena not registered")
	}

	fmt.Fprintf(&buf, "arena    %s %#x-%#x flags:%#x\n", a.Name, a.Base, a.End(), a.Flags)

	if blob := sh.Platform.Ramdisk(); blob != nil {
		base := sh.Platform.RamdiskBase()

		fmt.Fprintf(&buf, "ramdisk  %#x-%#x\n", base, base+uint64(len(blob)))
	}

	for _, r := range sh.Platform.Reserved() {
		fmt.Fprintf(&buf, "reserved %s\n", r)
	}

	return buf.String(), nil
}

func cpusCmd(sh *Shell, _ []string) (res string, err error) {
	var buf bytes.Buffer

	if sh.Platform == nil {
		return "", errors.New("boot context not available")
	}

	conf := sh.Platform.Config
	seq := sh.Platform.Sequencer()

	fmt.Fprintf(&buf, "smp:%v strategy:%s entry:%#x\n", conf.SMP, conf.Strategy, conf.Entry)
	fmt.Fprintf(&buf, "cpu0 primary\n")

	for cpu := 1; cpu < seq.CPUs(); cpu++ {
		fmt.Fprintf(&buf, "cpu%d %s\n", cpu, seq.State(cpu))
	}

	return buf.String(), nil
}

func ramdiskCmd(sh *Shell, arg []string) (res string, err error) {
	blob, err := sh.ramdisk()

	if err != nil {
		return
	}

	off, err := strconv.ParseUint(arg[0], 16, 32)

	if err != nil {
		return "", fmt.Errorf("invalid offset, %v", err)
	}

	size, err := strconv.ParseUint(arg[1], 10, 32)

	if err != nil {
		return "", fmt.Errorf("invalid size, %v", err)
	}

	if size > maxBufferSize {
		return "", fmt.Errorf("size argument must be <= %d", maxBufferSize)
	}

	if off+size > uint64(len(blob)) {
		return "", fmt.Errorf("range exceeds ramdisk size (%d bytes)", len(blob))
	}

	return hex.Dump(blob[off : off+size]), nil
}
