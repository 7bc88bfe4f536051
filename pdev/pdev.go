// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pdev dispatches the kernel driver list of the configuration tree to
// registered platform drivers.
package pdev

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/usbarmory/bcm28xx-platform/mdi"
)

// Driver represents a platform driver bound to a configuration node
// identifier.
type Driver struct {
	// ID is the configuration node identifier served by the driver
	ID mdi.ID
	// Name is the driver name
	Name string
	// Init initializes the driver from its configuration node
	Init func(node mdi.Node) error
}

// Registry represents a set of platform drivers.
type Registry struct {
	drivers map[mdi.ID]*Driver
	started []string
}

// Register adds a driver to the registry, a later registration for the same
// identifier replaces the previous one.
func (r *Registry) Register(d Driver) {
	if r.drivers == nil {
		r.drivers = make(map[mdi.ID]*Driver)
	}

	r.drivers[d.ID] = &d
}

// Drivers returns the registered drivers sorted by identifier.
func (r *Registry) Drivers() (drivers []Driver) {
	for _, d := range r.drivers {
		drivers = append(drivers, *d)
	}

	sort.Slice(drivers, func(i, j int) bool {
		return drivers[i].ID < drivers[j].ID
	})

	return
}

// Started returns the names of successfully initialized drivers, in
// initialization order.
func (r *Registry) Started() []string {
	return r.started
}

// Dispatch initializes a driver for each child of the kernel driver list
// node, children without a registered driver are skipped.
func (r *Registry) Dispatch(list mdi.Node) error {
	var errs []error

	it := list.Children()

	for it.Next() {
		node := it.Node()
		d, ok := r.drivers[node.ID()]

		if !ok {
			log.Printf("pdev skipping %s", node.ID())
			continue
		}

		if d.Init == nil {
			continue
		}

		if err := d.Init(node); err != nil {
			errs = append(errs, fmt.Errorf("pdev could not init %s, %w", d.Name, err))
			continue
		}

		r.started = append(r.started, d.Name)
	}

	if err := it.Err(); err != nil {
		errs = append(errs, fmt.Errorf("pdev could not walk driver list, %w", err))
	}

	return errors.Join(errs...)
}
