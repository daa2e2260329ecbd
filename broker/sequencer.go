// SPDX-License-Identifier: GPL-2.0-only

package broker

import (
	"time"

	"github.com/thirdspace-vest/vestd/protocol"
	"github.com/thirdspace-vest/vestd/vest"
)

// EffectSequencer plays predefined Effects against a Controller in a
// detached goroutine per play_effect call. It is deliberately
// non-preempting: stop_effect (via Controller.StopAll) zeroes every cell but
// does not cancel an in-flight sequence's goroutine -- the next step will
// simply re-trigger its cells once its delay elapses. See SPEC_FULL.md open
// question #2; this mirrors the Python original's fire-and-forget asyncio task.
type EffectSequencer struct {
	clients *ClientManager
}

func NewEffectSequencer(clients *ClientManager) *EffectSequencer {
	return &EffectSequencer{clients: clients}
}

// Play starts effect running against ctrl in a new goroutine and returns
// immediately, matching play_effect's fire-and-forget response contract.
func (s *EffectSequencer) Play(ctrl vest.Controller, effect vest.Effect) {
	go s.run(ctrl, effect)
}

func (s *EffectSequencer) run(ctrl vest.Controller, effect vest.Effect) {
	started := protocol.NewEvent(protocol.EventEffectStarted)
	started.EffectName = effect.Name
	s.clients.Broadcast(started)

	defer func() {
		completed := protocol.NewEvent(protocol.EventEffectCompleted)
		completed.EffectName = effect.Name
		s.clients.Broadcast(completed)
	}()

	for _, step := range effect.Steps {
		for _, cell := range step.Cells {
			if ctrl != nil {
				ctrl.Trigger(cell, step.Speed)
			}
			triggered := protocol.NewEvent(protocol.EventEffectTriggered)
			cellCopy, speedCopy := cell, step.Speed
			triggered.Cell, triggered.Speed = &cellCopy, &speedCopy
			s.clients.Broadcast(triggered)
		}

		time.Sleep(time.Duration(step.DurationMs) * time.Millisecond)

		for _, cell := range step.Cells {
			if ctrl != nil {
				ctrl.Trigger(cell, 0)
			}
		}

		if step.DelayMs > 0 {
			time.Sleep(time.Duration(step.DelayMs) * time.Millisecond)
		}
	}
}
