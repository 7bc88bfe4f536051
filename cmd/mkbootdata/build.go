// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/usbarmory/bcm28xx-platform/mem"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a boot metadata blob from an image description",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, _ := cmd.Flags().GetString("config")
		out, _ := cmd.Flags().GetString("out")

		img, err := LoadImage(config)

		if err != nil {
			return err
		}

		buf, err := img.Build()

		if err != nil {
			return err
		}

		if len(buf) > mem.ReservedSize {
			fmt.Fprintf(os.Stderr, "warning: blob exceeds ramdisk reservation (%d > %d bytes)\n", len(buf), mem.ReservedSize)
		}

		if err = os.WriteFile(out, buf, 0644); err != nil {
			return err
		}

		if verbose {
			return dump(cmd.OutOrStdout(), buf)
		}

		return nil
	},
}

func init() {
	buildCmd.Flags().StringP("config", "c", "bootdata.yaml", "image description (YAML or TOML)")
	buildCmd.Flags().StringP("out", "o", "bootdata.bin", "output file")
}
