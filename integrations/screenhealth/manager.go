// SPDX-License-Identifier: GPL-2.0-only

package screenhealth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/efficientgo/core/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/thirdspace-vest/vestd/integrations"
	"github.com/thirdspace-vest/vestd/vest"
)

// CaptureBackend abstracts the platform screen-grab call so the manager
// stays testable without a real display. This module ships no concrete
// backend: the daemon composes the manager with a nil backend, and a tick
// with no backend captures nothing.
type CaptureBackend interface {
	FrameSize() (width, height int, err error)
	CaptureBGRA(left, top, width, height int) ([]byte, error)
}

// Manager runs the tick loop described in spec.md §4.9: each tick, sample
// every configured ROI and turn threshold crossings into haptic triggers
// plus game events, with per-ROI cooldowns so a sustained effect doesn't
// spam hits every tick.
type Manager struct {
	base    *integrations.Base
	logger  log.Logger
	sink    integrations.EventSink
	backend CaptureBackend

	mu      sync.Mutex
	cancel  context.CancelFunc
	profile Profile

	lastHitByROI              map[string]time.Time
	prevHealthPercentByBar    map[string]float64
	lastHealthEmitByBar       map[string]time.Time
	lastHealthPercentEmitted  map[string]float64
	candidateValueByNumber    map[string]int
	candidateCountByNumber    map[string]int
	prevHealthValueByNumber   map[string]int
	lastHealthValueEmitted    map[string]int
}

func New(logger log.Logger, sink integrations.EventSink, backend CaptureBackend) *Manager {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Manager{
		base:    integrations.NewBase(),
		logger:  logger,
		sink:    sink,
		backend: backend,

		lastHitByROI:             make(map[string]time.Time),
		prevHealthPercentByBar:   make(map[string]float64),
		lastHealthEmitByBar:      make(map[string]time.Time),
		lastHealthPercentEmitted: make(map[string]float64),
		candidateValueByNumber:   make(map[string]int),
		candidateCountByNumber:   make(map[string]int),
		prevHealthValueByNumber:  make(map[string]int),
		lastHealthValueEmitted:   make(map[string]int),
	}
}

// Start parses config as a detector profile and begins the tick loop.
func (m *Manager) Start(config map[string]any) error {
	profile, err := ParseProfile(config)
	if err != nil {
		return errors.Wrap(err, "screenhealth: parse profile")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil // already running; idempotent
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.profile = profile
	m.base.Enable()
	m.base.MarkRunning()

	go m.runLoop(ctx, profile)
	return nil
}

func (m *Manager) Stop() error {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.base.MarkIdle()
	return nil
}

func (m *Manager) Status() integrations.IntegrationStatus {
	enabled, running, received, lastTS, lastType := m.base.Snapshot()
	m.mu.Lock()
	name := m.profile.Name
	m.mu.Unlock()
	return integrations.IntegrationStatus{
		Enabled: enabled, Running: running, EventsReceived: received,
		LastEventTS: lastTS, LastEventType: lastType,
		Extra: map[string]any{"profile_name": name},
	}
}

// HandleEvent lets a caller feed a synthetic hit_recorded-equivalent event
// without a real capture tick, for parity with the other integrations'
// TCP sub-protocol path.
func (m *Manager) HandleEvent(params map[string]any) error {
	if !m.base.RecordEvent("hit_recorded") {
		_ = level.Warn(m.logger).Log("msg", "discarding event while not running")
		return nil
	}
	m.sink.GameEvent("hit_recorded", params)
	return nil
}

func (m *Manager) runLoop(ctx context.Context, profile Profile) {
	tick := time.Duration(profile.Capture.TickMS) * time.Millisecond
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runTick(profile)
		}
	}
}

func (m *Manager) runTick(profile Profile) {
	if m.backend == nil {
		return // no capture backend configured; nothing to sample
	}
	frameW, frameH, err := m.backend.FrameSize()
	if err != nil {
		return // capture backend unavailable this tick; try again next tick
	}

	if profile.Redness != nil {
		for _, roi := range profile.RednessROIs {
			m.tickRednessROI(profile, roi, frameW, frameH)
		}
	}
	for _, hb := range profile.HealthBars {
		m.tickHealthBar(hb, frameW, frameH)
	}
	for _, hn := range profile.HealthNumbers {
		m.tickHealthNumber(hn, frameW, frameH)
	}
}

func (m *Manager) tickRednessROI(profile Profile, roi RednessROI, frameW, frameH int) {
	left, top, w, h, err := pixelRect(roi.Rect, frameW, frameH)
	if err != nil {
		return
	}
	bgra, err := m.backend.CaptureBGRA(left, top, w, h)
	if err != nil {
		return
	}
	score, err := rednessScore(bgra, w, h)
	if err != nil || score < profile.Redness.MinScore {
		return
	}

	key := "redness:" + roi.Name
	if !m.coolingDown(key, profile.Redness.CooldownMS) {
		return
	}

	if !m.base.RecordEvent("hit_recorded") {
		return
	}
	m.sink.GameEvent("hit_recorded", map[string]any{
		"roi": roi.Name, "direction": nilIfEmpty(roi.Direction), "score": score, "source": "redness_rois",
	})
	m.triggerHit(score)
}

func (m *Manager) tickHealthBar(hb HealthBarDetector, frameW, frameH int) {
	left, top, w, h, err := pixelRect(hb.Rect, frameW, frameH)
	if err != nil {
		return
	}
	bgra, err := m.backend.CaptureBGRA(left, top, w, h)
	if err != nil {
		return
	}

	var percentRaw float64
	var have bool
	if hb.ColorSampling != nil {
		p, err := healthBarPercent(bgra, w, h, hb.ColorSampling.Filled, hb.ColorSampling.Empty, hb.ColorSampling.ToleranceL1, 0.5)
		if err == nil {
			percentRaw, have = p, true
		}
	} else if hb.ThresholdFallback != nil {
		p, err := healthBarPercentFallback(bgra, w, h, hb.ThresholdFallback.Mode, hb.ThresholdFallback.MinValue)
		if err == nil {
			percentRaw, have = p, true
		}
	}
	if !have {
		return
	}
	percent := clampFloat(percentRaw, 0, 1)

	m.mu.Lock()
	lastEmit, emitted := m.lastHealthEmitByBar[hb.Name], false
	lastVal, hadLast := m.lastHealthPercentEmitted[hb.Name]
	shouldEmit := !hadLast || absFloat(percent-lastVal) >= 0.005 || time.Since(lastEmit) >= 500*time.Millisecond
	if shouldEmit {
		m.lastHealthEmitByBar[hb.Name] = time.Now()
		m.lastHealthPercentEmitted[hb.Name] = percent
		emitted = true
	}
	prev, hadPrev := m.prevHealthPercentByBar[hb.Name]
	m.prevHealthPercentByBar[hb.Name] = percent
	m.mu.Unlock()

	if emitted {
		if m.base.RecordEvent("health_percent") {
			m.sink.GameEvent("health_percent", map[string]any{"detector": hb.Name, "percent": percent})
		}
	}
	if !hadPrev {
		return
	}

	drop := prev - percent
	if drop < hb.HitOnDecrease.MinDrop {
		return
	}
	key := "health_bar:" + hb.Name
	if !m.coolingDown(key, hb.HitOnDecrease.CooldownMS) {
		return
	}
	if !m.base.RecordEvent("hit_recorded") {
		return
	}
	m.sink.GameEvent("hit_recorded", map[string]any{
		"roi": hb.Name, "direction": nil, "score": clampFloat(drop, 0, 1), "source": "health_bar",
		"percent": percent, "prev_percent": prev, "drop": drop,
	})
	m.triggerHit(clampFloat(drop, 0, 1))
}

func (m *Manager) tickHealthNumber(hn HealthNumberDetector, frameW, frameH int) {
	if hn.Templates == nil {
		return // OCR requires a learned digit template set
	}
	left, top, w, h, err := pixelRect(hn.Rect, frameW, frameH)
	if err != nil {
		return
	}
	bgra, err := m.backend.CaptureBGRA(left, top, w, h)
	if err != nil {
		return
	}
	bits, bw, bh, err := binarizeBitmap(bgra, w, h, hn.Preprocess.Threshold, hn.Preprocess.Invert, hn.Preprocess.Scale)
	if err != nil {
		return
	}

	value, ok := readDigits(bits, bw, bh, hn)
	if !ok {
		return
	}

	m.mu.Lock()
	cand, hadCand := m.candidateValueByNumber[hn.Name]
	if !hadCand || cand != value {
		m.candidateValueByNumber[hn.Name] = value
		m.candidateCountByNumber[hn.Name] = 1
		m.mu.Unlock()
		return
	}
	m.candidateCountByNumber[hn.Name]++
	stable := m.candidateCountByNumber[hn.Name] >= hn.Readout.StableReads
	m.mu.Unlock()
	if !stable {
		return
	}

	m.mu.Lock()
	lastEmitted, hadEmitted := m.lastHealthValueEmitted[hn.Name]
	if !hadEmitted || lastEmitted != value {
		m.lastHealthValueEmitted[hn.Name] = value
		m.mu.Unlock()
		if m.base.RecordEvent("health_value") {
			m.sink.GameEvent("health_value", map[string]any{"detector": hn.Name, "value": value})
		}
	} else {
		m.mu.Unlock()
	}

	m.mu.Lock()
	prevVal, hadPrev := m.prevHealthValueByNumber[hn.Name]
	m.prevHealthValueByNumber[hn.Name] = value
	m.mu.Unlock()
	if !hadPrev {
		return
	}

	drop := prevVal - value
	if drop < hn.HitOnDecrease.MinDrop {
		return
	}
	key := "health_number:" + hn.Name
	if !m.coolingDown(key, hn.HitOnDecrease.CooldownMS) {
		return
	}
	if !m.base.RecordEvent("hit_recorded") {
		return
	}
	intensity := clampFloat(float64(drop)/25.0, 0, 1)
	m.sink.GameEvent("hit_recorded", map[string]any{
		"roi": hn.Name, "direction": nil, "score": intensity, "source": "health_number",
		"value": value, "prev_value": prevVal, "drop": drop,
	})
	m.triggerHit(intensity)
}

// readDigits splits a binarized ROI into hn.Digits fixed-width slices,
// resizes each to template size, and matches it against the nearest
// template by Hamming distance -- the OCR scheme from spec.md §4.9.
func readDigits(bits []int, bw, bh int, hn HealthNumberDetector) (int, bool) {
	if hn.Digits <= 0 || bw <= 0 || bh <= 0 {
		return 0, false
	}
	digitsStr := make([]byte, 0, hn.Digits)
	for i := 0; i < hn.Digits; i++ {
		x0 := i * bw / hn.Digits
		x1 := (i + 1) * bw / hn.Digits
		if x1 < x0+1 {
			x1 = x0 + 1
		}
		if x1 > bw {
			x1 = bw
		}
		sliceW := x1 - x0

		slice := make([]int, sliceW*bh)
		for y := 0; y < bh; y++ {
			srcOff := y*bw + x0
			dstOff := y * sliceW
			copy(slice[dstOff:dstOff+sliceW], bits[srcOff:srcOff+sliceW])
		}

		norm := resizeNearest(slice, sliceW, bh, hn.Templates.Width, hn.Templates.Height)

		var bestDigit byte
		bestDist := -1
		for dch, tmpl := range hn.Templates.Digits {
			dist := hammingDistance(norm, tmpl)
			if bestDist == -1 || dist < bestDist {
				bestDist = dist
				bestDigit = dch[0]
			}
		}
		if bestDist == -1 || bestDist > hn.Templates.HammingMax {
			return 0, false
		}
		digitsStr = append(digitsStr, bestDigit)
	}

	value := 0
	for _, d := range digitsStr {
		if d < '0' || d > '9' {
			return 0, false
		}
		value = value*10 + int(d-'0')
	}
	if value < hn.Readout.MinValue || value > hn.Readout.MaxValue {
		return 0, false
	}
	return value, true
}

// coolingDown reports whether cooldownMs has elapsed since the last hit
// tagged with key, updating the stored timestamp when it has.
func (m *Manager) coolingDown(key string, cooldownMS int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastHitByROI[key]
	if ok && time.Since(last) < time.Duration(cooldownMS)*time.Millisecond {
		return false
	}
	m.lastHitByROI[key] = time.Now()
	return true
}

// triggerHit maps a detector's [0,1] intensity score to a random-cell,
// speed-scaled haptic pulse, per the reference Phase-A "random cell"
// trigger strategy.
func (m *Manager) triggerHit(intensity float64) {
	speed := int(1 + intensity*9 + 0.5)
	if speed < 1 {
		speed = 1
	}
	if speed > 10 {
		speed = 10
	}
	cell := vest.AllCells[pseudoRandomIndex(len(vest.AllCells))]
	m.sink.Trigger([]int{cell}, speed)
}

// pseudoRandomIndex picks a cell index without pulling in math/rand's
// global lock on every tick; screen-hit cell selection only needs to look
// varied, not be cryptographically unpredictable.
var randomCounter atomic.Uint64

func pseudoRandomIndex(n int) int {
	v := randomCounter.Add(1)
	return int((v * 2654435761) % uint64(n))
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
