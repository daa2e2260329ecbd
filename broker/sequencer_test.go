// SPDX-License-Identifier: GPL-2.0-only

package broker

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/thirdspace-vest/vestd/protocol"
	"github.com/thirdspace-vest/vestd/vest"
)

// fakeController records every Trigger call so sequencer tests can assert
// on step ordering without touching real USB or mock-controller timing.
type fakeController struct {
	mu       sync.Mutex
	triggers []fakeTrigger
}

type fakeTrigger struct {
	cell, speed int
}

func (f *fakeController) ConnectToDevice(*vest.Selector) vest.Status { return vest.Status{} }
func (f *fakeController) Connect() vest.Status                       { return vest.Status{} }
func (f *fakeController) Disconnect()                                {}
func (f *fakeController) StopAll()                                   {}
func (f *fakeController) Status() vest.Status                        { return vest.Status{} }

func (f *fakeController) Trigger(cell, speed int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, fakeTrigger{cell: cell, speed: speed})
	return true
}

func (f *fakeController) snapshot() []fakeTrigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeTrigger, len(f.triggers))
	copy(out, f.triggers)
	return out
}

func TestEffectSequencerPlaysStepsInOrder(t *testing.T) {
	clients := NewClientManager()
	var buf bytes.Buffer
	clients.AddClient(protocol.NewEncoder(&buf))

	seq := NewEffectSequencer(clients)
	ctrl := &fakeController{}
	effect := vest.Effect{
		Name: "test_effect",
		Steps: []vest.EffectStep{
			{Cells: []int{0, 1}, Speed: 5, DurationMs: 10},
			{Cells: []int{2}, Speed: 7, DurationMs: 10},
		},
	}

	seq.Play(ctrl, effect)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(ctrl.snapshot()) >= 6 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	triggers := ctrl.snapshot()
	if len(triggers) != 6 {
		t.Fatalf("expected 6 trigger calls (2 on + 2 off for step 1, 1 on + 1 off for step 2), got %d", len(triggers))
	}

	// Step 1 activates cells 0 and 1 at speed 5...
	if triggers[0] != (fakeTrigger{cell: 0, speed: 5}) || triggers[1] != (fakeTrigger{cell: 1, speed: 5}) {
		t.Fatalf("unexpected step 1 activation: %+v", triggers[:2])
	}
	// ...then zeroes them before step 2 runs.
	if triggers[2] != (fakeTrigger{cell: 0, speed: 0}) || triggers[3] != (fakeTrigger{cell: 1, speed: 0}) {
		t.Fatalf("unexpected step 1 deactivation: %+v", triggers[2:4])
	}
	if triggers[4] != (fakeTrigger{cell: 2, speed: 7}) {
		t.Fatalf("unexpected step 2 activation: %+v", triggers[4])
	}
}

func TestEffectSequencerPlayReturnsImmediately(t *testing.T) {
	clients := NewClientManager()
	var buf bytes.Buffer
	clients.AddClient(protocol.NewEncoder(&buf))

	seq := NewEffectSequencer(clients)
	ctrl := &fakeController{}
	effect := vest.Effect{
		Name:  "slow_effect",
		Steps: []vest.EffectStep{{Cells: []int{0}, Speed: 1, DurationMs: 500}},
	}

	start := time.Now()
	seq.Play(ctrl, effect)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("expected Play to return immediately, took %v", elapsed)
	}
}
