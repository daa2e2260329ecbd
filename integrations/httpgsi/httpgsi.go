// SPDX-License-Identifier: GPL-2.0-only

// Package httpgsi is the reference HTTP-receiver integration manager from
// spec.md §4.9, grounded on the CS2 Game State Integration design: the game
// itself POSTs a JSON blob to a local port on every state tick. This
// package treats the payload shape generically (a nested `player.state`
// object carrying at least a `health` field) since the exact GSI schema is
// per-game configuration, not part of this manager's contract.
package httpgsi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/efficientgo/core/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/thirdspace-vest/vestd/integrations"
)

// DefaultPort mirrors CS2Manager.DEFAULT_GSI_PORT in the original.
const DefaultPort = 3000

// payload is the subset of a GSI POST body this manager understands.
type payload struct {
	Player struct {
		State struct {
			Health *int `json:"health"`
		} `json:"state"`
	} `json:"player"`
}

// Manager binds a loopback HTTP server and turns incoming POSTs into
// damage-triggered haptics, tracking health across calls to derive damage
// deltas the way the original CS2 integration does from GSI's per-tick
// snapshots.
type Manager struct {
	base   *integrations.Base
	logger log.Logger
	sink   integrations.EventSink

	mu         sync.Mutex
	srv        *http.Server
	port       int
	lastHealth *int
}

func New(logger log.Logger, sink integrations.EventSink) *Manager {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Manager{base: integrations.NewBase(), logger: logger, sink: sink}
}

// Start binds config["gsi_port"] (default DefaultPort) and begins serving.
// Server lifetime is tied to the manager's running flag, per spec.md §4.9.
func (m *Manager) Start(config map[string]any) error {
	port := DefaultPort
	if v, ok := config["gsi_port"]; ok {
		if p, ok := toInt(v); ok {
			port = p
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.srv != nil {
		return nil // idempotent
	}

	l, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		return errors.Wrapf(err, "httpgsi: listen on port %d", port)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", m.handlePost)
	srv := &http.Server{Handler: mux}

	m.srv = srv
	m.port = port
	m.lastHealth = nil
	m.base.Enable()
	m.base.MarkRunning()

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = level.Error(m.logger).Log("msg", "gsi server exited", "err", err)
		}
	}()
	return nil
}

func (m *Manager) Stop() error {
	m.mu.Lock()
	srv := m.srv
	m.srv = nil
	m.mu.Unlock()

	if srv != nil {
		_ = srv.Shutdown(context.Background())
	}
	m.base.MarkIdle()
	return nil
}

func (m *Manager) Status() integrations.IntegrationStatus {
	enabled, running, received, lastTS, lastType := m.base.Snapshot()
	m.mu.Lock()
	port := m.port
	m.mu.Unlock()
	return integrations.IntegrationStatus{
		Enabled: enabled, Running: running, EventsReceived: received,
		LastEventTS: lastTS, LastEventType: lastType,
		Extra: map[string]any{"gsi_port": port},
	}
}

// HandleEvent lets a test harness or a TCP sub-protocol caller feed a
// synthetic GSI tick without an actual HTTP round trip.
func (m *Manager) HandleEvent(params map[string]any) error {
	health, ok := toInt(params["health"])
	if !ok {
		return errors.New("httpgsi: missing health")
	}
	m.processHealth(health)
	return nil
}

func (m *Manager) handlePost(w http.ResponseWriter, r *http.Request) {
	var p payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	if p.Player.State.Health == nil {
		return
	}
	m.processHealth(*p.Player.State.Health)
}

func (m *Manager) processHealth(health int) {
	if !m.base.RecordEvent("state_update") {
		_ = level.Warn(m.logger).Log("msg", "discarding gsi tick while not running")
		return
	}

	m.mu.Lock()
	prev := m.lastHealth
	h := health
	m.lastHealth = &h
	m.mu.Unlock()

	m.sink.GameEvent("state_update", map[string]any{"event_type": "state_update", "health": health})

	if prev == nil || *prev <= health {
		return
	}
	damage := *prev - health
	speed := DamageToIntensity(damage)
	m.sink.Trigger([]int{2, 3, 4, 5}, speed) // front cells, per spec.md's FrontCells convention
	m.sink.GameEvent("damage", map[string]any{"event_type": "damage", "amount": damage})
}

// DamageToIntensity is the monotone non-decreasing, [1,10]-clamped scaling
// helper required by spec.md §4.9 for a 0-100 health-point damage scale.
func DamageToIntensity(damage int) int {
	scaled := 1 + (damage*9)/100
	if scaled < 1 {
		return 1
	}
	if scaled > 10 {
		return 10
	}
	return scaled
}

// GenerateConfig produces the game-side config file content this manager's
// caller expects, mirroring generate_cs2_config(gsi_port) in the original:
// a minimal GSI config pointing the game's telemetry POSTs at this port.
func (m *Manager) GenerateConfig(params map[string]any) (string, error) {
	port := DefaultPort
	if v, ok := params["gsi_port"]; ok {
		if p, ok := toInt(v); ok {
			port = p
		}
	}
	return fmt.Sprintf(`"Vest GSI Config"
{
	"uri" "http://127.0.0.1:%d"
	"timeout" "5.0"
	"buffer"  "0.1"
	"throttle" "0.1"
	"heartbeat" "30.0"
	"data"
	{
		"player_state" "1"
	}
}
`, port), nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
