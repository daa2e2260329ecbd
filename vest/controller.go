// SPDX-License-Identifier: GPL-2.0-only

package vest

import (
	"fmt"
	"sync"
)

// Controller is the common surface the registry and broker operate on,
// satisfied by both the real Controller and MockController so the registry
// can host mock and real devices side by side without type switches.
type Controller interface {
	ConnectToDevice(sel *Selector) Status
	Connect() Status
	Disconnect()
	Trigger(cell, speed int) bool
	StopAll()
	Status() Status
}

// RealController owns at most one open Driver session at a time.
//
// Input contract for Trigger: cell and speed outside [0,7] and [0,10] are
// clamped rather than rejected -- an explicit, documented choice (see
// SPEC_FULL.md open question #1) so a caller's off-by-one never throws away
// an otherwise-valid command.
type RealController struct {
	mu      sync.Mutex
	factory DriverFactory
	driver  Driver
	status  Status
}

func NewController(factory DriverFactory) *RealController {
	return &RealController{factory: factory, status: Status{Connected: false}}
}

// Connect attempts to connect to the first available device.
func (c *RealController) Connect() Status {
	return c.ConnectToDevice(nil)
}

// ConnectToDevice closes any existing session first, then opens a fresh
// Driver against sel. Failures never panic; they're captured in Status.
func (c *RealController) ConnectToDevice(sel *Selector) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.driver != nil {
		_ = c.driver.Close()
		c.driver = nil
	}

	drv := c.factory()
	var target Selector
	if sel != nil {
		target = *sel
	}

	desc, err := func() (desc Descriptor, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("driver panicked: %v", r)
			}
		}()
		return drv.Open(target)
	}()

	if err != nil {
		c.driver = nil
		c.status = Status{Connected: false, LastError: err.Error()}
		return c.status
	}

	c.driver = drv
	vid, pid, bus, addr := desc.VendorID, desc.ProductID, desc.Bus, desc.Address
	c.status = Status{
		Connected: true,
		VendorID:  &vid,
		ProductID: &pid,
		Bus:       &bus,
		Address:   &addr,
		Serial:    desc.Serial,
	}
	return c.status
}

// Disconnect is idempotent and safe on a fresh controller.
func (c *RealController) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.driver != nil {
		_ = c.driver.Close()
		c.driver = nil
	}
	c.status = Status{Connected: false}
}

func (c *RealController) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Trigger clamps cell to [0,7] and speed to [0,10], attempts an implicit
// connect if no session is open, and suppresses any driver error into
// Status.LastError rather than letting it escape.
func (c *RealController) Trigger(cell, speed int) bool {
	cell = clamp(cell, 0, 7)
	speed = clamp(speed, 0, 10)

	c.mu.Lock()
	if c.driver == nil {
		c.mu.Unlock()
		if st := c.Connect(); !st.Connected {
			return false
		}
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	if c.driver == nil {
		c.status.LastError = "unable to connect to vest"
		return false
	}

	if err := c.driver.Send(cell, speed); err != nil {
		c.status.LastError = err.Error()
		return false
	}
	return true
}

// StopAll sends (i, 0) for every cell on a best-effort basis; individual
// failures are swallowed, matching the Python original's stop_all.
func (c *RealController) StopAll() {
	for i := 0; i < 8; i++ {
		c.Trigger(i, 0)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
