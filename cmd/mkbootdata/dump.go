// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/usbarmory/bcm28xx-platform/bootdata"
	"github.com/usbarmory/bcm28xx-platform/mdi"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <blob>",
	Short: "Show records and configuration tree of a boot metadata blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buf, err := os.ReadFile(args[0])

		if err != nil {
			return err
		}

		return dump(cmd.OutOrStdout(), buf)
	},
}

func dump(w io.Writer, buf []byte) error {
	return bootdata.Walk(buf, func(r bootdata.Record) error {
		fmt.Fprintf(w, "%#.8x %s length:%d extra:%#x\n", r.Offset, bootdata.TypeName(r.Type), r.Length, r.Extra)

		switch r.Type {
		case bootdata.TypeMDI:
			root, err := mdi.Init(r.Payload())

			if err != nil {
				return err
			}

			return mdi.Fprint(w, root)
		case bootdata.TypeCmdline:
			fmt.Fprintf(w, "%q\n", r.Payload())
		}

		return nil
	})
}
