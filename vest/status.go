// SPDX-License-Identifier: GPL-2.0-only

// Package vest wraps a single vest's USB session: connecting, sending
// actuator commands, and tracking the resulting status. The actual USB
// primitive is an external collaborator (the Driver interface below); this
// package never talks to hardware directly.
package vest

// Descriptor is the immutable record produced by device enumeration.
type Descriptor struct {
	VendorID  uint16 `json:"vendor_id"`
	ProductID uint16 `json:"product_id"`
	Bus       int    `json:"bus"`
	Address   int    `json:"address"`
	Serial    string `json:"serial_number,omitempty"`
	Mock      bool   `json:"is_mock,omitempty"`
}

// Selector narrows Driver.Open to a single candidate device. Exactly one of
// its fields is meaningful at a time; the zero value means "first available".
type Selector struct {
	Bus     *int
	Address *int
	Serial  string
	Index   *int
}

// Status is a read-only snapshot produced only by a Controller; callers must
// treat it as immutable.
type Status struct {
	Connected bool
	VendorID  *uint16
	ProductID *uint16
	Bus       *int
	Address   *int
	Serial    string
	LastError string
}

// Driver is the external USB primitive: enumerate, open by selector, send a
// single actuator command, close. Implementations are out of scope for this
// package (see vest/usbdrv for one concrete backend); Controller only ever
// sees this interface.
type Driver interface {
	Enumerate() ([]Descriptor, error)
	Open(sel Selector) (Descriptor, error)
	Send(cell, speed int) error
	Close() error
}

// DriverFactory constructs a fresh, unopened Driver instance. A Controller
// asks for a new one on every connect attempt, mirroring the teacher's
// "new instance per attach" lifecycle in deviceplugin's target dialing.
type DriverFactory func() Driver
