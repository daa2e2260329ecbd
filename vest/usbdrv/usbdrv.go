// SPDX-License-Identifier: GPL-2.0-only

// Package usbdrv is a concrete, libusb-backed vest.Driver. It is entirely
// optional: the daemon runs fine on mock devices alone, and nothing in
// registry/broker depends on this package directly -- the root vestd
// package's New wires it in as the vest.DriverFactory when
// Config.UseRealUSB is set.
package usbdrv

import (
	"fmt"

	"github.com/google/gousb"
	"github.com/thirdspace-vest/vestd/vest"
)

// VendorID is the Third Space Vest's USB vendor ID.
const VendorID = gousb.ID(0x28de)

// actuatorEndpoint and actuatorInterface describe where cell/speed bytes go on
// the real hardware; they mirror the constants a libusb-based controller in
// this family of devices would declare (see procon2-driver's NewController).
const (
	actuatorConfig    = 1
	actuatorInterface = 0
	actuatorEndpoint  = 1
)

// Driver is a vest.Driver backed by libusb via google/gousb. One Driver
// instance corresponds to one open session, matching the one-handle-per-
// controller invariant in vest.Controller.
type Driver struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	iface  *gousb.Interface
	ifDone func()
	out    *gousb.OutEndpoint
}

// New constructs an unopened Driver. ctx may be shared across multiple
// Driver instances; the caller owns its lifetime.
func New(ctx *gousb.Context) *Driver {
	return &Driver{ctx: ctx}
}

func (d *Driver) Enumerate() ([]vest.Descriptor, error) {
	var out []vest.Descriptor
	devs, err := d.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == VendorID
	})
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}
	for _, dv := range devs {
		serial, _ := dv.SerialNumber()
		out = append(out, vest.Descriptor{
			VendorID:  uint16(dv.Desc.Vendor),
			ProductID: uint16(dv.Desc.Product),
			Bus:       dv.Desc.Bus,
			Address:   dv.Desc.Address,
			Serial:    serial,
		})
		_ = dv.Close()
	}
	return out, nil
}

func (d *Driver) Open(sel vest.Selector) (vest.Descriptor, error) {
	devs, err := d.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != VendorID {
			return false
		}
		if sel.Bus != nil && desc.Bus != *sel.Bus {
			return false
		}
		if sel.Address != nil && desc.Address != *sel.Address {
			return false
		}
		return true
	})
	if err != nil {
		return vest.Descriptor{}, fmt.Errorf("usb open: %w", err)
	}
	if len(devs) == 0 {
		return vest.Descriptor{}, fmt.Errorf("no matching vest device found")
	}

	var chosen *gousb.Device
	for _, dv := range devs {
		if sel.Serial != "" {
			serial, _ := dv.SerialNumber()
			if serial != sel.Serial {
				_ = dv.Close()
				continue
			}
		}
		if chosen == nil {
			chosen = dv
		} else {
			_ = dv.Close()
		}
	}
	if chosen == nil {
		return vest.Descriptor{}, fmt.Errorf("no vest device matched selector")
	}

	iface, done, err := chosen.DefaultInterface()
	if err != nil {
		_ = chosen.Close()
		return vest.Descriptor{}, fmt.Errorf("claim interface: %w", err)
	}
	out, err := iface.OutEndpoint(actuatorEndpoint)
	if err != nil {
		done()
		_ = chosen.Close()
		return vest.Descriptor{}, fmt.Errorf("open out endpoint: %w", err)
	}

	d.dev = chosen
	d.iface = iface
	d.ifDone = done
	d.out = out

	serial, _ := chosen.SerialNumber()
	return vest.Descriptor{
		VendorID:  uint16(chosen.Desc.Vendor),
		ProductID: uint16(chosen.Desc.Product),
		Bus:       chosen.Desc.Bus,
		Address:   chosen.Desc.Address,
		Serial:    serial,
	}, nil
}

// Send writes a single (cell, speed) actuator command. The wire format is a
// 2-byte control frame; the exact byte layout is hardware-specific and owned
// by the external vest SDK this package stands in for.
func (d *Driver) Send(cell, speed int) error {
	if d.out == nil {
		return fmt.Errorf("vest not open")
	}
	_, err := d.out.Write([]byte{byte(cell), byte(speed)})
	return err
}

func (d *Driver) Close() error {
	if d.ifDone != nil {
		d.ifDone()
		d.ifDone = nil
	}
	if d.dev != nil {
		err := d.dev.Close()
		d.dev = nil
		return err
	}
	return nil
}

var _ vest.Driver = (*Driver)(nil)
