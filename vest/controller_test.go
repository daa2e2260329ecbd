// SPDX-License-Identifier: GPL-2.0-only

package vest

import (
	"fmt"
	"testing"
)

// fakeDriver is a minimal Driver double; sendErr lets a case force a
// mid-session failure without a real USB backend.
type fakeDriver struct {
	desc    Descriptor
	openErr error
	sendErr error
	sent    []triggerRecord
	closed  bool
}

func (f *fakeDriver) Enumerate() ([]Descriptor, error) { return []Descriptor{f.desc}, nil }

func (f *fakeDriver) Open(Selector) (Descriptor, error) {
	if f.openErr != nil {
		return Descriptor{}, f.openErr
	}
	return f.desc, nil
}

func (f *fakeDriver) Send(cell, speed int) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, triggerRecord{Cell: cell, Speed: speed})
	return nil
}

func (f *fakeDriver) Close() error {
	f.closed = true
	return nil
}

func TestControllerTriggerClampsOutOfRangeInput(t *testing.T) {
	for _, tc := range []struct {
		name          string
		cell, speed   int
		wantCell      int
		wantSpeed     int
	}{
		{name: "in range", cell: 3, speed: 5, wantCell: 3, wantSpeed: 5},
		{name: "cell below zero", cell: -4, speed: 5, wantCell: 0, wantSpeed: 5},
		{name: "cell above seven", cell: 99, speed: 5, wantCell: 7, wantSpeed: 5},
		{name: "speed below zero", cell: 2, speed: -1, wantCell: 2, wantSpeed: 0},
		{name: "speed above ten", cell: 2, speed: 42, wantCell: 2, wantSpeed: 10},
	} {
		t.Run(tc.name, func(t *testing.T) {
			drv := &fakeDriver{desc: Descriptor{Serial: "abc123"}}
			c := NewController(func() Driver { return drv })

			if ok := c.Trigger(tc.cell, tc.speed); !ok {
				t.Fatalf("Trigger(%d, %d) = false, want true", tc.cell, tc.speed)
			}
			if len(drv.sent) != 1 {
				t.Fatalf("expected exactly one Send call, got %d", len(drv.sent))
			}
			got := drv.sent[0]
			if got.Cell != tc.wantCell || got.Speed != tc.wantSpeed {
				t.Errorf("Send(%d, %d); want Send(%d, %d)", got.Cell, got.Speed, tc.wantCell, tc.wantSpeed)
			}
		})
	}
}

func TestControllerTriggerConnectsImplicitlyOnFirstUse(t *testing.T) {
	drv := &fakeDriver{desc: Descriptor{Serial: "abc123"}}
	c := NewController(func() Driver { return drv })

	if st := c.Status(); st.Connected {
		t.Fatal("expected a fresh controller to be disconnected")
	}
	if ok := c.Trigger(0, 1); !ok {
		t.Fatal("expected Trigger to succeed via implicit connect")
	}
	if st := c.Status(); !st.Connected {
		t.Fatal("expected Trigger to leave the controller connected")
	}
}

func TestControllerTriggerFailureSetsLastError(t *testing.T) {
	drv := &fakeDriver{desc: Descriptor{Serial: "abc123"}, sendErr: fmt.Errorf("write failed")}
	c := NewController(func() Driver { return drv })

	if ok := c.Trigger(0, 1); ok {
		t.Fatal("expected Trigger to report failure when Send errors")
	}
	if st := c.Status(); st.LastError == "" {
		t.Fatal("expected LastError to be populated after a failed Send")
	}
}

func TestControllerConnectFailureLeavesDisconnected(t *testing.T) {
	drv := &fakeDriver{openErr: fmt.Errorf("device busy")}
	c := NewController(func() Driver { return drv })

	st := c.Connect()
	if st.Connected {
		t.Fatal("expected Connect to fail when Open errors")
	}
	if st.LastError == "" {
		t.Fatal("expected LastError to describe the Open failure")
	}
}

func TestControllerStopAllZeroesEveryCell(t *testing.T) {
	drv := &fakeDriver{desc: Descriptor{Serial: "abc123"}}
	c := NewController(func() Driver { return drv })
	c.Connect()

	c.StopAll()

	if len(drv.sent) != 8 {
		t.Fatalf("expected 8 Send calls (one per cell), got %d", len(drv.sent))
	}
	for i, rec := range drv.sent {
		if rec.Cell != i || rec.Speed != 0 {
			t.Errorf("StopAll cell %d: got %+v, want {Cell:%d Speed:0}", i, rec, i)
		}
	}
}

func TestControllerDisconnectClosesDriver(t *testing.T) {
	drv := &fakeDriver{desc: Descriptor{Serial: "abc123"}}
	c := NewController(func() Driver { return drv })
	c.Connect()

	c.Disconnect()

	if !drv.closed {
		t.Fatal("expected Disconnect to close the underlying driver")
	}
	if st := c.Status(); st.Connected {
		t.Fatal("expected Disconnect to leave the controller disconnected")
	}
}

func TestMockControllerRecordsTriggersInRingBuffer(t *testing.T) {
	m := NewMockController("mock-1", nil)

	m.Trigger(2, 7)
	m.Trigger(99, -3)
	m.StopAll()

	recent := m.RecentTriggers()
	if len(recent) != 3 {
		t.Fatalf("expected 3 recorded entries, got %d", len(recent))
	}
	if recent[0] != (triggerRecord{Cell: 2, Speed: 7}) {
		t.Errorf("unexpected first entry: %+v", recent[0])
	}
	if recent[1] != (triggerRecord{Cell: 7, Speed: 0}) {
		t.Errorf("expected clamped second entry, got %+v", recent[1])
	}
	if recent[2] != (triggerRecord{Cell: stopAllCell, Speed: 0}) {
		t.Errorf("expected stop-all sentinel, got %+v", recent[2])
	}
}

func TestMockControllerAlwaysConnected(t *testing.T) {
	m := NewMockController("mock-1", nil)
	if st := m.Status(); !st.Connected {
		t.Fatal("expected a mock controller to report connected from construction")
	}
	m.Disconnect()
	if st := m.Status(); !st.Connected {
		t.Fatal("expected Disconnect to be a no-op for a mock controller")
	}
}

func TestDefaultEffectsAreWellFormed(t *testing.T) {
	effects := DefaultEffects()
	if len(effects) == 0 {
		t.Fatal("expected at least one default effect")
	}
	seen := map[string]bool{}
	for _, e := range effects {
		if e.Name == "" {
			t.Error("effect with empty name")
		}
		if seen[e.Name] {
			t.Errorf("duplicate effect name %q", e.Name)
		}
		seen[e.Name] = true
		if len(e.Steps) == 0 {
			t.Errorf("effect %q has no steps", e.Name)
		}
		for _, step := range e.Steps {
			if len(step.Cells) == 0 {
				t.Errorf("effect %q has a step with no cells", e.Name)
			}
			for _, cell := range step.Cells {
				if cell < 0 || cell > 7 {
					t.Errorf("effect %q references out-of-range cell %d", e.Name, cell)
				}
			}
		}
	}
}
