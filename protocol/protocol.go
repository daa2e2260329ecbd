// SPDX-License-Identifier: GPL-2.0-only

// Package protocol defines the line-delimited JSON wire schema spoken between
// clients and the vest daemon: commands in, responses and events out.
package protocol

import (
	"encoding/json"
	"time"
)

// Command is a single request from a client. Params are command-specific;
// unknown fields in the incoming JSON are ignored by encoding/json already.
type Command struct {
	Cmd   string `json:"cmd"`
	ReqID string `json:"req_id,omitempty"`

	// Device selection / addressing.
	DeviceID string `json:"device_id,omitempty"`
	Bus      *int   `json:"bus,omitempty"`
	Address  *int   `json:"address,omitempty"`
	Serial   string `json:"serial,omitempty"`

	// Players / games.
	PlayerID  string `json:"player_id,omitempty"`
	Name      string `json:"name,omitempty"`
	GameID    string `json:"game_id,omitempty"`
	PlayerNum *int   `json:"player_num,omitempty"`

	// Vest control.
	Cell  *int `json:"cell,omitempty"`
	Speed *int `json:"speed,omitempty"`

	// Effects.
	EffectName string `json:"name,omitempty"`

	// Integration lifecycle/events; integration-specific params travel in Params.
	Params map[string]any `json:"-"`
}

// commandWire is the on-wire shape; Params absorbs everything not otherwise named.
type commandWire Command

// UnmarshalJSON decodes the command and stashes unrecognized fields into Params
// so integration managers can read their own event-specific keys.
func (c *Command) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var w commandWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Command(w)
	// Name and EffectName share the "name" key, which encoding/json leaves
	// unset on both fields; fill them from the raw map.
	if name, ok := raw["name"].(string); ok {
		c.Name = name
		c.EffectName = name
	}
	known := map[string]bool{
		"cmd": true, "req_id": true, "device_id": true, "bus": true, "address": true,
		"serial": true, "player_id": true, "name": true, "game_id": true,
		"player_num": true, "cell": true, "speed": true,
	}
	params := make(map[string]any)
	for k, v := range raw {
		if !known[k] {
			params[k] = v
		}
	}
	c.Params = params
	return nil
}

// Response is a per-request reply sent back to the requesting client only.
type Response struct {
	Response string `json:"response"`
	ReqID    string `json:"req_id,omitempty"`

	OK      *bool  `json:"ok,omitempty"`
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`

	// Health.
	Alive             *bool `json:"alive,omitempty"`
	Connected         *bool `json:"connected,omitempty"`
	HasDeviceSelected *bool `json:"has_device_selected,omitempty"`
	ClientCount       *int  `json:"client_count,omitempty"`

	// Discovery / status.
	Device  any   `json:"device,omitempty"`
	Devices []any `json:"devices,omitempty"`

	// Players / games.
	Players  []any `json:"players,omitempty"`
	Mappings []any `json:"mappings,omitempty"`

	// Effects.
	Effects    []any    `json:"effects,omitempty"`
	Categories []string `json:"categories,omitempty"`

	// Integration status payload (events_received, running, etc.) and
	// any per-integration extras (gsi_port, config, ...).
	Extra map[string]any `json:"-"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	type alias Response
	b, err := json.Marshal(alias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return b, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

// Event is a fire-and-forget broadcast sent to every connected client.
type Event struct {
	Event string  `json:"event"`
	TS    float64 `json:"ts"`

	Device  any   `json:"device,omitempty"`
	Devices []any `json:"devices,omitempty"`

	Cell  *int `json:"cell,omitempty"`
	Speed *int `json:"speed,omitempty"`

	ClientID   string `json:"client_id,omitempty"`
	ClientName string `json:"client_name,omitempty"`

	Message string `json:"message,omitempty"`

	EffectName string `json:"effect_name,omitempty"`

	PlayerID string `json:"player_id,omitempty"`

	GameID string `json:"game_id,omitempty"`

	Extra map[string]any `json:"-"`
}

func NewEvent(name string) Event {
	return Event{Event: name, TS: nowFloat()}
}

func nowFloat() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	b, err := json.Marshal(alias(e))
	if err != nil {
		return nil, err
	}
	if len(e.Extra) == 0 {
		return b, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range e.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

// Known command tags, mirroring spec.md §4.7's table.
const (
	CmdPing = "ping"

	CmdList                  = "list"
	CmdListConnectedDevices  = "list_connected_devices"
	CmdGetSelectedDevice     = "get_selected_device"
	CmdSelectDevice          = "select_device"
	CmdClearDevice           = "clear_device"

	CmdSetMainDevice    = "set_main_device"
	CmdDisconnectDevice = "disconnect_device"
	CmdCreateMockDevice = "create_mock_device"
	CmdRemoveMockDevice = "remove_mock_device"

	CmdCreatePlayer    = "create_player"
	CmdAssignPlayer    = "assign_player"
	CmdUnassignPlayer  = "unassign_player"
	CmdListPlayers     = "list_players"
	CmdGetPlayerDevice = "get_player_device"

	CmdSetGamePlayerMapping   = "set_game_player_mapping"
	CmdClearGamePlayerMapping = "clear_game_player_mapping"
	CmdListGamePlayerMappings = "list_game_player_mappings"

	CmdConnect    = "connect"
	CmdDisconnect = "disconnect"
	CmdTrigger    = "trigger"
	CmdStop       = "stop"
	CmdStatus     = "status"

	CmdPlayEffect  = "play_effect"
	CmdListEffects = "list_effects"
	CmdStopEffect  = "stop_effect"
)

// Known event tags, mirroring spec.md §6.
const (
	EventDeviceSelected       = "device_selected"
	EventDeviceCleared        = "device_cleared"
	EventDevicesChanged       = "devices_changed"
	EventDeviceConnected      = "device_connected"
	EventDeviceDisconnected   = "device_disconnected"
	EventMainDeviceChanged    = "main_device_changed"
	EventMockDeviceCreated    = "mock_device_created"
	EventMockDeviceRemoved    = "mock_device_removed"
	EventConnected            = "connected"
	EventDisconnected         = "disconnected"
	EventEffectTriggered      = "effect_triggered"
	EventAllStopped           = "all_stopped"
	EventClientConnected      = "client_connected"
	EventClientDisconnected   = "client_disconnected"
	EventError                = "error"
	EventPlayerAssigned       = "player_assigned"
	EventPlayerUnassigned     = "player_unassigned"
	EventGamePlayerMapChanged = "game_player_mapping_changed"
	EventEffectStarted        = "effect_started"
	EventEffectCompleted      = "effect_completed"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// IntPtr and BoolPtr are exported helpers for building partial Response/Event
// values from other packages without repeating the idiom everywhere.
func IntPtr(v int) *int    { return intPtr(v) }
func BoolPtr(v bool) *bool { return boolPtr(v) }
