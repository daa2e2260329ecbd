// SPDX-License-Identifier: GPL-2.0-only

package broker

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/thirdspace-vest/vestd/protocol"
	"github.com/thirdspace-vest/vestd/registry"
	"github.com/thirdspace-vest/vestd/vest"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	reg := registry.New(nil)
	players := registry.NewPlayerManager()
	games := registry.NewGamePlayerMapping()
	clients := NewClientManager()
	seq := NewEffectSequencer(clients)
	integrations := NewIntegrationRegistry()
	factory := func() vest.Driver { return nil } // never exercised: tests only use mock devices
	return NewDispatcher(nil, reg, players, games, clients, seq, integrations, factory, vest.DefaultEffects())
}

func TestPingReportsClientCount(t *testing.T) {
	d := newTestDispatcher(t)
	d.clients.AddClient(protocol.NewEncoder(discard{}))

	resp := d.Dispatch(protocol.Command{Cmd: protocol.CmdPing, ReqID: "r1"})
	if resp.ClientCount == nil || *resp.ClientCount != 1 {
		t.Fatalf("expected client_count 1, got %+v", resp.ClientCount)
	}
	if resp.ReqID != "r1" {
		t.Fatalf("expected req_id echoed, got %q", resp.ReqID)
	}
}

func TestCreateMockDeviceThenTrigger(t *testing.T) {
	d := newTestDispatcher(t)

	createResp := d.Dispatch(protocol.Command{Cmd: protocol.CmdCreateMockDevice})
	if createResp.Success == nil || !*createResp.Success {
		t.Fatalf("expected success creating mock device, got %+v", createResp)
	}
	deviceID, _ := createResp.Extra["device_id"].(string)
	if deviceID == "" {
		t.Fatal("expected a device_id in create_mock_device response")
	}

	cell, speed := 2, 7
	triggerResp := d.Dispatch(protocol.Command{Cmd: protocol.CmdTrigger, DeviceID: deviceID, Cell: &cell, Speed: &speed})
	if triggerResp.Response != protocol.CmdTrigger {
		t.Fatalf("expected trigger ack, got %+v", triggerResp)
	}
	if triggerResp.OK == nil || !*triggerResp.OK {
		t.Fatalf("expected trigger to succeed against a mock device, got %+v", triggerResp)
	}
}

func TestTriggerWithUnknownDeviceIDErrors(t *testing.T) {
	d := newTestDispatcher(t)
	cell, speed := 0, 5
	resp := d.Dispatch(protocol.Command{Cmd: protocol.CmdTrigger, DeviceID: "nonexistent", Cell: &cell, Speed: &speed})
	if resp.Response != "error" {
		t.Fatalf("expected error response, got %+v", resp)
	}
}

func TestUnknownCommandProducesError(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(protocol.Command{Cmd: "not_a_real_command"})
	if resp.Response != "error" {
		t.Fatalf("expected error response for unknown command, got %+v", resp)
	}
}

func TestGameMappingBeatsPlayerMapping(t *testing.T) {
	d := newTestDispatcher(t)

	mockResp := d.Dispatch(protocol.Command{Cmd: protocol.CmdCreateMockDevice})
	deviceFromGame, _ := mockResp.Extra["device_id"].(string)

	d.Dispatch(protocol.Command{Cmd: protocol.CmdCreatePlayer, PlayerID: "player_1"})
	d.Dispatch(protocol.Command{Cmd: protocol.CmdAssignPlayer, PlayerID: "player_1", DeviceID: "device_from_player"})

	playerNum := 1
	d.Dispatch(protocol.Command{Cmd: protocol.CmdSetGamePlayerMapping, GameID: "cs2", PlayerNum: &playerNum, DeviceID: deviceFromGame})

	resolved := d.resolveFromCommand(protocol.Command{GameID: "cs2", PlayerNum: &playerNum, PlayerID: "player_1"})
	if resolved != deviceFromGame {
		t.Fatalf("expected game mapping to win over player mapping, got %s", resolved)
	}
}

// discard is an io.Writer that throws everything away, for tests that only
// care about whether Dispatch succeeds, not what gets written on the wire.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeSelectDriver is a minimal vest.Driver good for exactly one Open call,
// letting select_device tests exercise a real (non-mock) registry entry.
type fakeSelectDriver struct {
	desc vest.Descriptor
}

func (f *fakeSelectDriver) Enumerate() ([]vest.Descriptor, error) { return []vest.Descriptor{f.desc}, nil }
func (f *fakeSelectDriver) Open(vest.Selector) (vest.Descriptor, error) { return f.desc, nil }
func (f *fakeSelectDriver) Send(int, int) error                        { return nil }
func (f *fakeSelectDriver) Close() error                                { return nil }

// readEvents decodes every buffered line as an Event, including the leading
// client_connected event AddClient always emits first.
func readEvents(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var ev map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("unmarshal event line %q: %v", scanner.Text(), err)
		}
		out = append(out, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan events: %v", err)
	}
	return out
}

func TestSelectDeviceEmitsDeviceConnectedOnlyOnNewEntry(t *testing.T) {
	reg := registry.New(nil)
	players := registry.NewPlayerManager()
	games := registry.NewGamePlayerMapping()
	clients := NewClientManager()
	seq := NewEffectSequencer(clients)
	integrations := NewIntegrationRegistry()
	factory := func() vest.Driver { return &fakeSelectDriver{desc: vest.Descriptor{Serial: "SN-SELECT"}} }
	d := NewDispatcher(nil, reg, players, games, clients, seq, integrations, factory, vest.DefaultEffects())

	var buf bytes.Buffer
	clients.AddClient(protocol.NewEncoder(&buf))

	resp1 := d.Dispatch(protocol.Command{Cmd: protocol.CmdSelectDevice, Serial: "SN-SELECT"})
	if resp1.Success == nil || !*resp1.Success {
		t.Fatalf("expected first select_device to succeed, got %+v", resp1)
	}
	resp2 := d.Dispatch(protocol.Command{Cmd: protocol.CmdSelectDevice, Serial: "SN-SELECT"})
	if resp2.Success == nil || !*resp2.Success {
		t.Fatalf("expected second select_device to succeed, got %+v", resp2)
	}

	events := readEvents(t, &buf)
	var connectedCount, selectedCount int
	for _, ev := range events {
		switch ev["event"] {
		case protocol.EventDeviceConnected:
			connectedCount++
		case protocol.EventDeviceSelected:
			selectedCount++
		}
	}
	if connectedCount != 1 {
		t.Fatalf("expected exactly 1 device_connected event across two select_device calls, got %d", connectedCount)
	}
	if selectedCount != 2 {
		t.Fatalf("expected a device_selected event per select_device call, got %d", selectedCount)
	}
	if reg.Count() != 1 {
		t.Fatalf("expected a single registry entry after two selects of the same device, got %d", reg.Count())
	}
}

func TestClearDeviceUnsetsMainSelection(t *testing.T) {
	d := newTestDispatcher(t)

	createResp := d.Dispatch(protocol.Command{Cmd: protocol.CmdCreateMockDevice})
	deviceID, _ := createResp.Extra["device_id"].(string)
	if d.registry.MainDeviceID() != deviceID {
		t.Fatalf("expected newly created mock device %s to become main", deviceID)
	}

	clearResp := d.Dispatch(protocol.Command{Cmd: protocol.CmdClearDevice})
	if clearResp.OK == nil || !*clearResp.OK {
		t.Fatalf("expected clear_device to succeed, got %+v", clearResp)
	}
	if d.registry.MainDeviceID() != "" {
		t.Fatalf("expected clear_device to unset the main device, got %q", d.registry.MainDeviceID())
	}

	ping := d.Dispatch(protocol.Command{Cmd: protocol.CmdPing})
	if ping.HasDeviceSelected == nil || *ping.HasDeviceSelected {
		t.Fatalf("expected ping.has_device_selected to be false after clear_device, got %+v", ping.HasDeviceSelected)
	}
}
