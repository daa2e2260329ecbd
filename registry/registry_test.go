// SPDX-License-Identifier: GPL-2.0-only

package registry

import (
	"testing"

	"github.com/thirdspace-vest/vestd/vest"
)

type fakeDriver struct {
	desc vest.Descriptor
	err  error
	sent [][2]int
}

func (f *fakeDriver) Enumerate() ([]vest.Descriptor, error) { return []vest.Descriptor{f.desc}, nil }
func (f *fakeDriver) Open(vest.Selector) (vest.Descriptor, error) {
	if f.err != nil {
		return vest.Descriptor{}, f.err
	}
	return f.desc, nil
}
func (f *fakeDriver) Send(cell, speed int) error {
	f.sent = append(f.sent, [2]int{cell, speed})
	return nil
}
func (f *fakeDriver) Close() error { return nil }

func factoryFor(desc vest.Descriptor) vest.DriverFactory {
	return func() vest.Driver { return &fakeDriver{desc: desc} }
}

func TestAddDeviceDedupesBySerial(t *testing.T) {
	r := New(nil)
	desc := vest.Descriptor{Serial: "SN-1", Bus: 1, Address: 2}

	id1, _, _, err := r.AddDevice("", vest.Selector{Serial: "SN-1"}, factoryFor(desc))
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	id2, _, _, err := r.AddDevice("", vest.Selector{Serial: "SN-1"}, factoryFor(desc))
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected dedup by serial, got %s and %s", id1, id2)
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 device, got %d", r.Count())
	}
}

func TestAddDeviceDedupesByBusAddressWhenSerialEmpty(t *testing.T) {
	r := New(nil)
	desc := vest.Descriptor{Bus: 3, Address: 4}

	id1, _, _, _ := r.AddDevice("", vest.Selector{}, factoryFor(desc))
	id2, _, _, _ := r.AddDevice("", vest.Selector{}, factoryFor(desc))
	if id1 != id2 {
		t.Fatalf("expected dedup by bus/address, got %s and %s", id1, id2)
	}
}

func TestFirstDeviceBecomesMain(t *testing.T) {
	r := New(nil)
	id, _, _, err := r.AddDevice("", vest.Selector{}, factoryFor(vest.Descriptor{Serial: "SN-A"}))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if r.MainDeviceID() != id {
		t.Fatalf("expected first device %s to become main, got %s", id, r.MainDeviceID())
	}
}

func TestRemoveDeviceReassignsMain(t *testing.T) {
	r := New(nil)
	id1, _, _, _ := r.AddDevice("", vest.Selector{}, factoryFor(vest.Descriptor{Serial: "SN-A"}))
	id2, _, _, _ := r.AddDevice("", vest.Selector{}, factoryFor(vest.Descriptor{Serial: "SN-B"}))

	if err := r.RemoveDevice(id1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if r.MainDeviceID() != id2 {
		t.Fatalf("expected main to reassign to %s, got %s", id2, r.MainDeviceID())
	}
}

func TestRemoveUnknownDevice(t *testing.T) {
	r := New(nil)
	if err := r.RemoveDevice("nope"); err != ErrUnknownDevice {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestAddMockDeviceCap(t *testing.T) {
	r := New(nil)
	for i := 0; i < maxMockDevices; i++ {
		if _, _, err := r.AddMockDevice(nil); err != nil {
			t.Fatalf("mock %d: %v", i, err)
		}
	}
	if _, _, err := r.AddMockDevice(nil); err != ErrMaxMockDevices {
		t.Fatalf("expected ErrMaxMockDevices, got %v", err)
	}
}

func TestRemoveMockDeviceRejectsRealDevice(t *testing.T) {
	r := New(nil)
	id, _, _, _ := r.AddDevice("", vest.Selector{}, factoryFor(vest.Descriptor{Serial: "SN-REAL"}))
	if err := r.RemoveMockDevice(id); err != ErrNotMockDevice {
		t.Fatalf("expected ErrNotMockDevice, got %v", err)
	}
}

func TestGetControllerFallsBackToMain(t *testing.T) {
	r := New(nil)
	id, ctrl, _, _ := r.AddDevice("", vest.Selector{}, factoryFor(vest.Descriptor{Serial: "SN-C"}))
	if got := r.GetController(""); got != ctrl {
		t.Fatalf("expected empty device_id to resolve to main device %s", id)
	}
}

func TestSetMainDeviceRejectsUnknown(t *testing.T) {
	r := New(nil)
	if err := r.SetMainDevice("ghost"); err != ErrUnknownDevice {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestAddDeviceReportsNewVsDeduped(t *testing.T) {
	r := New(nil)
	desc := vest.Descriptor{Serial: "SN-NEW"}

	id1, _, isNew1, err := r.AddDevice("", vest.Selector{Serial: "SN-NEW"}, factoryFor(desc))
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	if !isNew1 {
		t.Fatal("expected the first AddDevice for a serial to report isNew=true")
	}

	id2, _, isNew2, err := r.AddDevice("", vest.Selector{Serial: "SN-NEW"}, factoryFor(desc))
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if isNew2 {
		t.Fatal("expected a deduped AddDevice to report isNew=false")
	}
	if id1 != id2 {
		t.Fatalf("expected the same device_id across both calls, got %s and %s", id1, id2)
	}
}

func TestClearMainDisconnectsAndUnsetsSelection(t *testing.T) {
	r := New(nil)
	id, _, _, err := r.AddDevice("", vest.Selector{}, factoryFor(vest.Descriptor{Serial: "SN-CLEAR"}))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if r.MainDeviceID() != id {
		t.Fatalf("expected %s to become main", id)
	}

	r.ClearMain()

	if r.MainDeviceID() != "" {
		t.Fatalf("expected ClearMain to unset the main device, got %q", r.MainDeviceID())
	}
	if ctrl := r.GetController(id); ctrl != nil && ctrl.Status().Connected {
		t.Fatal("expected ClearMain to disconnect the controller")
	}
	// The entry itself is retained -- clear_device deselects, it does not
	// remove the device from the registry (that is disconnect_device's job).
	if !r.HasDevice(id) {
		t.Fatal("expected ClearMain to leave the registry entry in place")
	}
}

func TestClearMainOnEmptyRegistryIsNoop(t *testing.T) {
	r := New(nil)
	r.ClearMain()
	if r.MainDeviceID() != "" {
		t.Fatalf("expected empty main device id, got %q", r.MainDeviceID())
	}
}
