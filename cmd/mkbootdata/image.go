// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/usbarmory/bcm28xx-platform/bootdata"
	"github.com/usbarmory/bcm28xx-platform/mdi"
)

// Driver describes a kernel driver configuration node.
type Driver struct {
	Type     string `mapstructure:"type"`
	Name     string `mapstructure:"name"`
	MMIOBase uint64 `mapstructure:"mmio_base"`
	IRQ      uint32 `mapstructure:"irq"`
}

// Image describes the contents of a boot metadata blob.
type Image struct {
	Cmdline  string   `mapstructure:"cmdline"`
	Clusters []int    `mapstructure:"clusters"`
	Drivers  []Driver `mapstructure:"drivers"`
	BootFS   string   `mapstructure:"bootfs"`

	dir string
}

// LoadImage reads an image description, values can be overridden by
// MKBOOTDATA_ prefixed environment variables.
func LoadImage(path string) (img *Image, err error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("clusters", []int{4})

	v.SetEnvPrefix("MKBOOTDATA")
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading image description: %w", err)
	}

	img = &Image{dir: filepath.Dir(path)}

	if err = v.Unmarshal(img); err != nil {
		return nil, fmt.Errorf("error unmarshaling image description: %w", err)
	}

	return
}

// Config returns the encoded configuration tree.
func (img *Image) Config() ([]byte, error) {
	root := mdi.List(mdi.MakeID(mdi.TypeList, 0))

	if len(img.Clusters) > 0 {
		clusters := mdi.List(mdi.CPUMapClusters)

		for _, n := range img.Clusters {
			if n <= 0 {
				return nil, fmt.Errorf("invalid cluster size %d", n)
			}

			clusters.Add(mdi.List(mdi.CPUMapCluster, mdi.Uint32(mdi.CPUMapCPUCount, uint32(n))))
		}

		root.Add(mdi.List(mdi.CPUMap, clusters))
	}

	drivers := mdi.List(mdi.KernelDrivers)

	for _, d := range img.Drivers {
		id, ok := mdi.Lookup(d.Type)

		if !ok || id.Type() != mdi.TypeList {
			return nil, fmt.Errorf("unknown driver type %q", d.Type)
		}

		node := mdi.List(id, mdi.Uint64(mdi.DriverMMIOBase, d.MMIOBase))

		if d.IRQ != 0 {
			node.Add(mdi.Uint32(mdi.DriverIRQ, d.IRQ))
		}

		if len(d.Name) > 0 {
			node.Add(mdi.String(mdi.DriverName, d.Name))
		}

		drivers.Add(node)
	}

	root.Add(drivers)

	return root.Bytes(), nil
}

// Build returns the boot metadata blob.
func (img *Image) Build() (buf []byte, err error) {
	var w bootdata.Writer

	config, err := img.Config()

	if err != nil {
		return
	}

	w.Append(bootdata.TypeMDI, 0, config)

	if len(img.Cmdline) > 0 {
		w.Append(bootdata.TypeCmdline, 0, append([]byte(img.Cmdline), 0))
	}

	if len(img.BootFS) > 0 {
		path := img.BootFS

		if !filepath.IsAbs(path) {
			path = filepath.Join(img.dir, path)
		}

		fs, err := os.ReadFile(path)

		if err != nil {
			return nil, fmt.Errorf("error reading bootfs: %w", err)
		}

		w.Append(bootdata.TypeBootFS, 0, fs)
	}

	return w.Bytes(), nil
}
