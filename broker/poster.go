// SPDX-License-Identifier: GPL-2.0-only

package broker

import (
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// posterQueueCap bounds how many pending callbacks an integration worker
// may have queued before the poster starts dropping. Haptic events stale
// fast (spec.md §5), so the policy is drop-oldest rather than block.
const posterQueueCap = 256

// Poster is the sole cross-thread handoff point: background integration
// workers (file tailers, HTTP servers, capture pumps) call Post from their
// own goroutine instead of touching the registry or client manager
// directly; a single drain goroutine -- conceptually the broker's
// "loop" -- runs every posted func in order.
type Poster struct {
	logger  log.Logger
	queue   chan func()
	dropped atomic.Int64
}

func NewPoster(logger log.Logger) *Poster {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Poster{logger: logger, queue: make(chan func(), posterQueueCap)}
}

// Post enqueues fn for execution on the drain goroutine. If the queue is
// full, the oldest pending callback is discarded to make room -- stale
// haptic work is worse than dropped haptic work.
func (p *Poster) Post(fn func()) {
	select {
	case p.queue <- fn:
	default:
		select {
		case <-p.queue:
			p.dropped.Add(1)
			_ = level.Warn(p.logger).Log("msg", "poster queue full, dropped oldest pending callback")
		default:
		}
		select {
		case p.queue <- fn:
		default:
			p.dropped.Add(1)
		}
	}
}

// Dropped returns the cumulative number of callbacks discarded under
// back-pressure, for the metrics layer.
func (p *Poster) Dropped() int64 { return p.dropped.Load() }

// Run drains the queue until ctx-equivalent stop is signalled by closing
// done. Intended to be the body of one oklog/run.Group actor.
func (p *Poster) Run(done <-chan struct{}) error {
	for {
		select {
		case fn := <-p.queue:
			fn()
		case <-done:
			return nil
		}
	}
}
