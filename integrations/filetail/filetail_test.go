// SPDX-License-Identifier: GPL-2.0-only

package filetail

import (
	"os"
	"path/filepath"
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

func TestScaleIntensityClampsAndIsMonotone(t *testing.T) {
	if got := ScaleIntensity(0, 100); got != 1 {
		t.Fatalf("expected minimum intensity 1, got %d", got)
	}
	if got := ScaleIntensity(100, 100); got != 10 {
		t.Fatalf("expected maximum intensity 10, got %d", got)
	}
	if got := ScaleIntensity(1000, 100); got != 10 {
		t.Fatalf("expected clamp to 10 for over-range damage, got %d", got)
	}
	low := ScaleIntensity(10, 100)
	high := ScaleIntensity(50, 100)
	if !(low <= high) {
		t.Fatalf("expected monotone non-decreasing scaling, got low=%d high=%d", low, high)
	}
}

func TestParseKV(t *testing.T) {
	got := parseKV("|hand=right|side=left")
	if got["hand"] != "right" || got["side"] != "left" {
		t.Fatalf("unexpected parse result: %+v", got)
	}
}

func TestManagerTailsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "game.log")
	if err := os.WriteFile(logPath, []byte("startup noise\n"), 0o644); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	sink := &recordingSink{}
	mappings := map[string]HapticMapping{
		"damage": {Cells: []int{2, 3}, Speed: 8},
	}
	m := New(nil, sink, mappings)

	if err := m.Start(map[string]any{"log_path": logPath}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("[ThirdSpace] {damage|amount=20}\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.triggers) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if len(sink.triggers) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(sink.triggers))
	}
	if sink.triggers[0].speed != 8 {
		t.Fatalf("expected speed 8, got %d", sink.triggers[0].speed)
	}
	if len(sink.events) != 1 || sink.events[0].eventType != "damage" {
		t.Fatalf("expected 1 damage game event, got %+v", sink.events)
	}
	if sink.events[0].params["amount"] != "20" {
		t.Fatalf("expected amount param to propagate, got %+v", sink.events[0].params)
	}
}

func TestManagerDiscardsEventsWhileNotRunning(t *testing.T) {
	sink := &recordingSink{}
	m := New(nil, sink, map[string]HapticMapping{"damage": {Cells: []int{0}, Speed: 5}})
	// Never started: base state is Idle, not Running.
	m.dispatchEvent("damage", nil)
	if len(sink.triggers) != 0 {
		t.Fatalf("expected no triggers while not running, got %d", len(sink.triggers))
	}
}
