// SPDX-License-Identifier: GPL-2.0-only

// Package registry owns every controller the daemon currently manages: a
// device_id -> vest.Controller map, each device's descriptor, and which
// device is "main". It is the Go analogue of the teacher's
// deviceplugin.DeviceManager, adapted from USB/IP attach bookkeeping to
// vest session bookkeeping.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/efficientgo/core/errors"
	"github.com/go-kit/log"
	"github.com/google/uuid"
	"github.com/thirdspace-vest/vestd/vest"
)

const maxMockDevices = 20

// ErrUnknownDevice is returned when an operation names a device_id the
// registry has never heard of.
var ErrUnknownDevice = errors.New("unknown device_id")

// ErrMaxMockDevices is returned by AddMockDevice once the cap is reached.
var ErrMaxMockDevices = errors.New("maximum number of mock devices (20) reached")

// ErrNotMockDevice is returned by RemoveMockDevice for a real device_id.
var ErrNotMockDevice = errors.New("device is not a mock device")

// DeviceInfo is what list_devices/list_connected_devices echoes to clients:
// the descriptor plus registry-assigned identity.
type DeviceInfo struct {
	DeviceID string
	IsMain   bool
	vest.Descriptor
}

// Registry owns every controller. Its methods are called concurrently from
// the broker's per-connection reader goroutines and from the poster drain
// goroutine; the mutex serializes every read and mutation.
type Registry struct {
	mu           sync.Mutex
	logger       log.Logger
	controllers  map[string]vest.Controller
	descriptors  map[string]vest.Descriptor
	order        []string // insertion order, for deterministic main reassignment
	mainDeviceID string
	mockCounter  int
}

func New(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Registry{
		logger:      logger,
		controllers: make(map[string]vest.Controller),
		descriptors: make(map[string]vest.Descriptor),
	}
}

func generateDeviceID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// findExisting implements the single trickiest invariant in the registry:
// dedup by serial if present, else by (bus, address). Kept as its own
// function so it can be tested in isolation (see SPEC_FULL.md §2/DESIGN.md).
func (r *Registry) findExisting(desc vest.Descriptor) (string, bool) {
	for id, existing := range r.descriptors {
		if desc.Serial != "" && existing.Serial == desc.Serial {
			return id, true
		}
		if desc.Serial == "" && existing.Serial == "" &&
			existing.Bus == desc.Bus && existing.Address == desc.Address {
			return id, true
		}
	}
	return "", false
}

// AddDevice dedups against existing entries, otherwise connects a fresh
// vest.Controller via factory and registers it. deviceID may be empty, in
// which case one is generated. The returned bool is false when the call
// matched an existing entry rather than creating a new one, so callers can
// suppress a device_connected broadcast on the idempotent duplicate.
func (r *Registry) AddDevice(deviceID string, sel vest.Selector, factory vest.DriverFactory) (string, vest.Controller, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	probe := vest.Descriptor{Bus: zeroIfNil(sel.Bus), Address: zeroIfNil(sel.Address), Serial: sel.Serial}
	if id, ok := r.findExisting(probe); ok {
		return id, r.controllers[id], false, nil
	}

	ctrl := vest.NewController(factory)
	status := ctrl.ConnectToDevice(&sel)
	if !status.Connected {
		return "", nil, false, errors.Newf("failed to connect to device: %s", status.LastError)
	}

	if deviceID == "" {
		deviceID = generateDeviceID("device_")
	}
	desc := vest.Descriptor{
		Bus:     zeroIfNil(status.Bus),
		Address: zeroIfNil(status.Address),
		Serial:  status.Serial,
	}
	if status.VendorID != nil {
		desc.VendorID = *status.VendorID
	}
	if status.ProductID != nil {
		desc.ProductID = *status.ProductID
	}
	if id, ok := r.findExisting(desc); ok {
		ctrl.Disconnect()
		return id, r.controllers[id], false, nil
	}

	r.controllers[deviceID] = ctrl
	r.descriptors[deviceID] = desc
	r.order = append(r.order, deviceID)
	if r.mainDeviceID == "" {
		r.mainDeviceID = deviceID
	}
	return deviceID, ctrl, true, nil
}

// AddMockDevice creates a MockController with a generated MOCK-NNN serial.
func (r *Registry) AddMockDevice(logger log.Logger) (string, *vest.MockController, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.countMockLocked() >= maxMockDevices {
		return "", nil, ErrMaxMockDevices
	}

	r.mockCounter++
	serial := mockSerial(r.mockCounter)
	deviceID := generateDeviceID("mock_")
	ctrl := vest.NewMockController(serial, logger)

	r.controllers[deviceID] = ctrl
	r.descriptors[deviceID] = vest.Descriptor{
		VendorID:  0x1234,
		ProductID: 0x5678,
		Serial:    serial,
		Mock:      true,
	}
	r.order = append(r.order, deviceID)
	if r.mainDeviceID == "" {
		r.mainDeviceID = deviceID
	}
	return deviceID, ctrl, nil
}

func mockSerial(n int) string {
	return fmt.Sprintf("MOCK-%03d", n)
}

// RemoveMockDevice is RemoveDevice restricted to mock_* ids, matching the
// remove_mock_device command's narrower contract.
func (r *Registry) RemoveMockDevice(deviceID string) error {
	if !r.IsMockDevice(deviceID) {
		return ErrNotMockDevice
	}
	return r.RemoveDevice(deviceID)
}

// RemoveDevice disconnects and drops a device, reassigning main if needed.
func (r *Registry) RemoveDevice(deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctrl, ok := r.controllers[deviceID]
	if !ok {
		return ErrUnknownDevice
	}
	ctrl.Disconnect()
	delete(r.controllers, deviceID)
	delete(r.descriptors, deviceID)
	for i, id := range r.order {
		if id == deviceID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.mainDeviceID == deviceID {
		r.mainDeviceID = ""
		if len(r.order) > 0 {
			r.mainDeviceID = r.order[0]
		}
	}
	return nil
}

func (r *Registry) SetMainDevice(deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.controllers[deviceID]; !ok {
		return ErrUnknownDevice
	}
	r.mainDeviceID = deviceID
	return nil
}

// ClearMain disconnects the current main device's controller (if any) and
// unsets the selection, matching the original daemon's _cmd_clear_device
// (daemon.py), which disconnects the controller and sets
// self._selected_device = None rather than merely forgetting the id.
func (r *Registry) ClearMain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mainDeviceID == "" {
		return
	}
	if ctrl, ok := r.controllers[r.mainDeviceID]; ok {
		ctrl.Disconnect()
	}
	r.mainDeviceID = ""
}

func (r *Registry) MainDeviceID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mainDeviceID
}

// GetController returns the controller for deviceID, or the main device's
// controller when deviceID is empty. Returns nil if there's no match.
func (r *Registry) GetController(deviceID string) vest.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if deviceID == "" {
		deviceID = r.mainDeviceID
	}
	if deviceID == "" {
		return nil
	}
	return r.controllers[deviceID]
}

func (r *Registry) HasDevice(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.controllers[deviceID]
	return ok
}

func (r *Registry) IsMockDevice(deviceID string) bool {
	return strings.HasPrefix(deviceID, "mock_")
}

func (r *Registry) countMockLocked() int {
	n := 0
	for id := range r.controllers {
		if r.IsMockDevice(id) {
			n++
		}
	}
	return n
}

// ListDevices returns every registered device's descriptor plus identity,
// in stable insertion order.
func (r *Registry) ListDevices() []DeviceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DeviceInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, DeviceInfo{
			DeviceID:   id,
			IsMain:     id == r.mainDeviceID,
			Descriptor: r.descriptors[id],
		})
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

func zeroIfNil(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
