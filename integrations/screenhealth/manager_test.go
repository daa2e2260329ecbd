// SPDX-License-Identifier: GPL-2.0-only

package screenhealth

import (
	"testing"
	"time"
)

type recordingSink struct {
	triggers []trigger
	events   []gameEvent
}

type trigger struct {
	cells []int
	speed int
}

type gameEvent struct {
	eventType string
	params    map[string]any
}

func (s *recordingSink) Trigger(cells []int, speed int) {
	s.triggers = append(s.triggers, trigger{cells: cells, speed: speed})
}

func (s *recordingSink) GameEvent(eventType string, params map[string]any) {
	s.events = append(s.events, gameEvent{eventType: eventType, params: params})
}

// fakeCapture always returns a pure-red frame of the requested size, so
// every redness ROI sample scores 1.0 -- grounded on the reference test's
// FakeCapture double.
type fakeCapture struct {
	w, h int
}

func (f *fakeCapture) FrameSize() (int, int, error) { return f.w, f.h, nil }

func (f *fakeCapture) CaptureBGRA(left, top, width, height int) ([]byte, error) {
	buf := make([]byte, width*height*4)
	for i := 0; i < len(buf); i += 4 {
		buf[i], buf[i+1], buf[i+2], buf[i+3] = 0, 0, 255, 255 // pure red
	}
	return buf, nil
}

func TestNormalizedRectToPixelsBasic(t *testing.T) {
	left, top, w, h, err := pixelRect(NormalizedRect{X: 0.5, Y: 0.5, W: 0.2, H: 0.2}, 100, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if left != 50 || top != 50 || w != 20 || h != 20 {
		t.Fatalf("unexpected pixel rect: %d,%d,%d,%d", left, top, w, h)
	}
}

func TestNormalizedRectToPixelsClampsToFrame(t *testing.T) {
	left, top, w, h, err := pixelRect(NormalizedRect{X: 0.9, Y: 0.9, W: 0.5, H: 0.5}, 100, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if left != 90 || top != 90 || w != 10 || h != 10 {
		t.Fatalf("unexpected clamped rect: %d,%d,%d,%d", left, top, w, h)
	}
}

func TestRednessScoreFromBGRA(t *testing.T) {
	raw := []byte{
		0, 0, 255, 255, // pure red
		128, 128, 128, 255, // gray
	}
	score, err := rednessScore(raw, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score < 0.49 || score > 0.51 {
		t.Fatalf("expected score ~0.5, got %v", score)
	}
}

func TestManagerCooldownPreventsHitSpam(t *testing.T) {
	sink := &recordingSink{}
	m := New(nil, sink, &fakeCapture{w: 10, h: 10})

	profile := map[string]any{
		"schema_version": 0,
		"name":           "test",
		"capture":        map[string]any{"monitor_index": 1, "tick_ms": 10},
		"detectors": []any{
			map[string]any{
				"type":        "redness_rois",
				"cooldown_ms": 200,
				"threshold":   map[string]any{"min_score": 0.2},
				"rois": []any{
					map[string]any{"name": "roi1", "rect": map[string]any{"x": 0.0, "y": 0.0, "w": 0.5, "h": 0.5}},
				},
			},
		},
	}

	if err := m.Start(profile); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()

	time.Sleep(150 * time.Millisecond)

	if len(sink.events) == 0 {
		t.Fatal("expected at least one hit_recorded event")
	}
	if len(sink.events) > 2 {
		t.Fatalf("expected cooldown to suppress most hits within 150ms of a 200ms cooldown, got %d events", len(sink.events))
	}
}

func TestHealthBarPercentClassifiesFilledColumns(t *testing.T) {
	// 4x1 ROI, first two columns filled (green), last two empty (red).
	filled := RGB{R: 0, G: 255, B: 0}
	empty := RGB{R: 255, G: 0, B: 0}
	raw := []byte{
		0, 255, 0, 255,
		0, 255, 0, 255,
		0, 0, 255, 255,
		0, 0, 255, 255,
	}
	percent, err := healthBarPercent(raw, 4, 1, filled, empty, 10, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if percent != 0.5 {
		t.Fatalf("expected 50%% fill, got %v", percent)
	}
}

func TestHammingDistanceAndResize(t *testing.T) {
	a := []int{1, 0, 1, 0}
	b := []int{1, 1, 1, 1}
	if d := hammingDistance(a, b); d != 2 {
		t.Fatalf("expected distance 2, got %d", d)
	}

	resized := resizeNearest([]int{1, 0}, 2, 1, 4, 1)
	if len(resized) != 4 {
		t.Fatalf("expected 4 output pixels, got %d", len(resized))
	}
}
