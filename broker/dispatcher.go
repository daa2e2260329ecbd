// SPDX-License-Identifier: GPL-2.0-only

package broker

import (
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/thirdspace-vest/vestd/protocol"
	"github.com/thirdspace-vest/vestd/registry"
	"github.com/thirdspace-vest/vestd/vest"
)

// Dispatcher is the single big command table described in spec.md §4.7: one
// handler per `cmd` tag, keyed in a map rather than a switch so integration
// commands can be registered dynamically by prefix. It is only ever driven
// from per-connection reader goroutines; the Registry/ClientManager/
// IntegrationRegistry it touches carry their own locks so concurrent
// connections dispatching at once stay correct without a dispatcher-wide lock.
type Dispatcher struct {
	logger        log.Logger
	registry      *registry.Registry
	players       *registry.PlayerManager
	games         *registry.GamePlayerMapping
	clients       *ClientManager
	sequencer     *EffectSequencer
	integrations  *IntegrationRegistry
	driverFactory vest.DriverFactory
	effects       map[string]vest.Effect
}

func NewDispatcher(
	logger log.Logger,
	reg *registry.Registry,
	players *registry.PlayerManager,
	games *registry.GamePlayerMapping,
	clients *ClientManager,
	sequencer *EffectSequencer,
	integrations *IntegrationRegistry,
	driverFactory vest.DriverFactory,
	effects []vest.Effect,
) *Dispatcher {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	byName := make(map[string]vest.Effect, len(effects))
	for _, e := range effects {
		byName[e.Name] = e
	}
	return &Dispatcher{
		logger:        logger,
		registry:      reg,
		players:       players,
		games:         games,
		clients:       clients,
		sequencer:     sequencer,
		integrations:  integrations,
		driverFactory: driverFactory,
		effects:       byName,
	}
}

// Dispatch handles a single command end to end: it may mutate registry
// state, broadcast an event, and always returns the response that belongs
// on the originating connection. Any panic escaping a handler is treated
// like the Python original's bare except Exception -- recovered, logged,
// and turned into an error response rather than killing the connection.
func (d *Dispatcher) Dispatch(cmd protocol.Command) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			_ = level.Error(d.logger).Log("msg", "command handler panicked", "cmd", cmd.Cmd, "panic", r)
			resp = errorResponse(cmd.ReqID, "internal error handling command")
		}
	}()

	if handler, ok := coreHandlers[cmd.Cmd]; ok {
		return handler(d, cmd)
	}
	if resp, ok := d.dispatchIntegration(cmd); ok {
		return resp
	}
	return errorResponse(cmd.ReqID, "unknown command: "+cmd.Cmd)
}

type handlerFunc func(*Dispatcher, protocol.Command) protocol.Response

var coreHandlers = map[string]handlerFunc{
	protocol.CmdPing:                     (*Dispatcher).handlePing,
	protocol.CmdList:                     (*Dispatcher).handleList,
	protocol.CmdListConnectedDevices:     (*Dispatcher).handleList,
	protocol.CmdGetSelectedDevice:        (*Dispatcher).handleGetSelectedDevice,
	protocol.CmdSelectDevice:             (*Dispatcher).handleSelectDevice,
	protocol.CmdClearDevice:              (*Dispatcher).handleClearDevice,
	protocol.CmdSetMainDevice:            (*Dispatcher).handleSetMainDevice,
	protocol.CmdDisconnectDevice:         (*Dispatcher).handleDisconnectDevice,
	protocol.CmdCreateMockDevice:         (*Dispatcher).handleCreateMockDevice,
	protocol.CmdRemoveMockDevice:         (*Dispatcher).handleRemoveMockDevice,
	protocol.CmdCreatePlayer:             (*Dispatcher).handleCreatePlayer,
	protocol.CmdAssignPlayer:             (*Dispatcher).handleAssignPlayer,
	protocol.CmdUnassignPlayer:           (*Dispatcher).handleUnassignPlayer,
	protocol.CmdListPlayers:              (*Dispatcher).handleListPlayers,
	protocol.CmdGetPlayerDevice:          (*Dispatcher).handleGetPlayerDevice,
	protocol.CmdSetGamePlayerMapping:     (*Dispatcher).handleSetGameMapping,
	protocol.CmdClearGamePlayerMapping:   (*Dispatcher).handleClearGameMapping,
	protocol.CmdListGamePlayerMappings:   (*Dispatcher).handleListGameMappings,
	protocol.CmdConnect:                  (*Dispatcher).handleConnect,
	protocol.CmdDisconnect:               (*Dispatcher).handleDisconnect,
	protocol.CmdTrigger:                  (*Dispatcher).handleTrigger,
	protocol.CmdStop:                     (*Dispatcher).handleStop,
	protocol.CmdStatus:                   (*Dispatcher).handleStatus,
	protocol.CmdPlayEffect:               (*Dispatcher).handlePlayEffect,
	protocol.CmdListEffects:              (*Dispatcher).handleListEffects,
	protocol.CmdStopEffect:               (*Dispatcher).handleStopEffect,
}

func okResponse(name, reqID string) protocol.Response {
	return protocol.Response{Response: name, ReqID: reqID, OK: protocol.BoolPtr(true)}
}

func errorResponse(reqID, message string) protocol.Response {
	return protocol.Response{Response: "error", ReqID: reqID, Success: protocol.BoolPtr(false), Message: message}
}

// deviceWire renders a registry.DeviceInfo into the wire shape documented
// in spec.md §6: hex-string vendor/product ids, device_id, is_main, is_mock.
func deviceWire(info registry.DeviceInfo) map[string]any {
	m := map[string]any{
		"device_id":  info.DeviceID,
		"vendor_id":  hexWord(info.VendorID),
		"product_id": hexWord(info.ProductID),
		"bus":        info.Bus,
		"address":    info.Address,
		"is_main":    info.IsMain,
	}
	if info.Serial != "" {
		m["serial_number"] = info.Serial
	}
	if info.Mock {
		m["is_mock"] = true
	}
	return m
}

func hexWord(v uint16) string {
	const hexDigits = "0123456789abcdef"
	b := [6]byte{'0', 'x', hexDigits[(v>>12)&0xf], hexDigits[(v>>8)&0xf], hexDigits[(v>>4)&0xf], hexDigits[v&0xf]}
	return string(b[:])
}

// ---- Health / discovery ----

func (d *Dispatcher) handlePing(cmd protocol.Command) protocol.Response {
	main := d.registry.GetController("")
	connected := main != nil && main.Status().Connected
	return protocol.Response{
		Response:          cmd.Cmd,
		ReqID:             cmd.ReqID,
		Alive:             protocol.BoolPtr(true),
		Connected:         protocol.BoolPtr(connected),
		HasDeviceSelected: protocol.BoolPtr(d.registry.MainDeviceID() != ""),
		ClientCount:       protocol.IntPtr(d.clients.Count()),
	}
}

func (d *Dispatcher) handleList(cmd protocol.Command) protocol.Response {
	devices := d.registry.ListDevices()
	out := make([]any, 0, len(devices))
	for _, info := range devices {
		out = append(out, deviceWire(info))
	}
	return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Devices: out}
}

func (d *Dispatcher) handleGetSelectedDevice(cmd protocol.Command) protocol.Response {
	main := d.registry.MainDeviceID()
	if main == "" {
		return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Device: nil}
	}
	for _, info := range d.registry.ListDevices() {
		if info.DeviceID == main {
			return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Device: deviceWire(info)}
		}
	}
	return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Device: nil}
}

// ---- Selection / multi-vest ----

func (d *Dispatcher) handleSelectDevice(cmd protocol.Command) protocol.Response {
	sel := vest.Selector{Serial: cmd.Serial, Bus: cmd.Bus, Address: cmd.Address}
	id, _, isNew, err := d.registry.AddDevice(cmd.DeviceID, sel, d.driverFactory)
	if err != nil {
		return errorResponse(cmd.ReqID, err.Error())
	}
	_ = d.registry.SetMainDevice(id)

	var info registry.DeviceInfo
	for _, candidate := range d.registry.ListDevices() {
		if candidate.DeviceID == id {
			info = candidate
		}
	}

	// A genuinely new registry entry gets its own device_connected event in
	// addition to device_selected, matching the original's _cmd_select_device
	// (daemon.py), which emits both. Re-selecting an already-registered device
	// only re-announces the selection.
	if isNew {
		connected := protocol.NewEvent(protocol.EventDeviceConnected)
		connected.Device = deviceWire(info)
		d.clients.Broadcast(connected)
	}

	ev := protocol.NewEvent(protocol.EventDeviceSelected)
	ev.Device = deviceWire(info)
	d.clients.Broadcast(ev)

	return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Success: protocol.BoolPtr(true), Device: deviceWire(info)}
}

func (d *Dispatcher) handleClearDevice(cmd protocol.Command) protocol.Response {
	d.registry.ClearMain()
	d.clients.Broadcast(protocol.NewEvent(protocol.EventDeviceCleared))
	return okResponse(cmd.Cmd, cmd.ReqID)
}

func (d *Dispatcher) handleSetMainDevice(cmd protocol.Command) protocol.Response {
	if err := d.registry.SetMainDevice(cmd.DeviceID); err != nil {
		return errorResponse(cmd.ReqID, err.Error())
	}
	ev := protocol.NewEvent(protocol.EventMainDeviceChanged)
	ev.Extra = map[string]any{"device_id": cmd.DeviceID}
	d.clients.Broadcast(ev)
	return okResponse(cmd.Cmd, cmd.ReqID)
}

func (d *Dispatcher) handleDisconnectDevice(cmd protocol.Command) protocol.Response {
	if err := d.registry.RemoveDevice(cmd.DeviceID); err != nil {
		return errorResponse(cmd.ReqID, err.Error())
	}
	ev := protocol.NewEvent(protocol.EventDeviceDisconnected)
	ev.Extra = map[string]any{"device_id": cmd.DeviceID}
	d.clients.Broadcast(ev)
	d.broadcastDevicesChanged()
	return okResponse(cmd.Cmd, cmd.ReqID)
}

func (d *Dispatcher) handleCreateMockDevice(cmd protocol.Command) protocol.Response {
	id, ctrl, err := d.registry.AddMockDevice(d.logger)
	if err != nil {
		return errorResponse(cmd.ReqID, err.Error())
	}
	status := ctrl.Status()
	ev := protocol.NewEvent(protocol.EventMockDeviceCreated)
	ev.Extra = map[string]any{"device_id": id, "serial_number": status.Serial}
	d.clients.Broadcast(ev)
	d.broadcastDevicesChanged()
	return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Success: protocol.BoolPtr(true), Extra: map[string]any{"device_id": id}}
}

func (d *Dispatcher) handleRemoveMockDevice(cmd protocol.Command) protocol.Response {
	if err := d.registry.RemoveMockDevice(cmd.DeviceID); err != nil {
		return errorResponse(cmd.ReqID, err.Error())
	}
	ev := protocol.NewEvent(protocol.EventMockDeviceRemoved)
	ev.Extra = map[string]any{"device_id": cmd.DeviceID}
	d.clients.Broadcast(ev)
	d.broadcastDevicesChanged()
	return okResponse(cmd.Cmd, cmd.ReqID)
}

func (d *Dispatcher) broadcastDevicesChanged() {
	devices := d.registry.ListDevices()
	out := make([]any, 0, len(devices))
	for _, info := range devices {
		out = append(out, deviceWire(info))
	}
	ev := protocol.NewEvent(protocol.EventDevicesChanged)
	ev.Devices = out
	d.clients.Broadcast(ev)
}

// ---- Players ----

func (d *Dispatcher) handleCreatePlayer(cmd protocol.Command) protocol.Response {
	if cmd.PlayerID == "" {
		return errorResponse(cmd.ReqID, "missing player_id")
	}
	d.players.CreatePlayer(cmd.PlayerID, cmd.Name)
	return okResponse(cmd.Cmd, cmd.ReqID)
}

func (d *Dispatcher) handleAssignPlayer(cmd protocol.Command) protocol.Response {
	if !d.players.AssignPlayer(cmd.PlayerID, cmd.DeviceID) {
		return errorResponse(cmd.ReqID, "unknown player_id: "+cmd.PlayerID)
	}
	ev := protocol.NewEvent(protocol.EventPlayerAssigned)
	ev.PlayerID = cmd.PlayerID
	ev.Extra = map[string]any{"device_id": cmd.DeviceID}
	d.clients.Broadcast(ev)
	return okResponse(cmd.Cmd, cmd.ReqID)
}

func (d *Dispatcher) handleUnassignPlayer(cmd protocol.Command) protocol.Response {
	if !d.players.UnassignPlayer(cmd.PlayerID) {
		return errorResponse(cmd.ReqID, "unknown player_id: "+cmd.PlayerID)
	}
	ev := protocol.NewEvent(protocol.EventPlayerUnassigned)
	ev.PlayerID = cmd.PlayerID
	d.clients.Broadcast(ev)
	return okResponse(cmd.Cmd, cmd.ReqID)
}

func (d *Dispatcher) handleListPlayers(cmd protocol.Command) protocol.Response {
	players := d.players.ListPlayers()
	out := make([]any, 0, len(players))
	for _, p := range players {
		out = append(out, map[string]any{"player_id": p.PlayerID, "device_id": nilIfEmpty(p.DeviceID), "name": nilIfEmpty(p.Name)})
	}
	return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Players: out}
}

func (d *Dispatcher) handleGetPlayerDevice(cmd protocol.Command) protocol.Response {
	deviceID := d.players.GetPlayerDevice(cmd.PlayerID)
	return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Extra: map[string]any{"device_id": nilIfEmpty(deviceID)}}
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ---- Game-player mapping ----

func (d *Dispatcher) handleSetGameMapping(cmd protocol.Command) protocol.Response {
	if cmd.GameID == "" || cmd.PlayerNum == nil {
		return errorResponse(cmd.ReqID, "missing game_id or player_num")
	}
	d.games.SetMapping(cmd.GameID, *cmd.PlayerNum, cmd.DeviceID)
	ev := protocol.NewEvent(protocol.EventGamePlayerMapChanged)
	ev.GameID = cmd.GameID
	ev.Extra = map[string]any{"player_num": *cmd.PlayerNum, "device_id": cmd.DeviceID}
	d.clients.Broadcast(ev)
	return okResponse(cmd.Cmd, cmd.ReqID)
}

func (d *Dispatcher) handleClearGameMapping(cmd protocol.Command) protocol.Response {
	if cmd.GameID == "" {
		return errorResponse(cmd.ReqID, "missing game_id")
	}
	d.games.ClearMapping(cmd.GameID, cmd.PlayerNum)
	ev := protocol.NewEvent(protocol.EventGamePlayerMapChanged)
	ev.GameID = cmd.GameID
	playerNum := 0
	if cmd.PlayerNum != nil {
		playerNum = *cmd.PlayerNum
	}
	ev.Extra = map[string]any{"player_num": playerNum, "device_id": nil}
	d.clients.Broadcast(ev)
	return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Success: protocol.BoolPtr(true), Extra: map[string]any{"game_id": cmd.GameID}}
}

func (d *Dispatcher) handleListGameMappings(cmd protocol.Command) protocol.Response {
	mappings := d.games.ListMappings(cmd.GameID)
	out := make([]any, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, map[string]any{"game_id": m.GameID, "player_num": m.PlayerNum, "device_id": m.DeviceID})
	}
	return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Mappings: out}
}

// ---- Vest control ----

func (d *Dispatcher) handleConnect(cmd protocol.Command) protocol.Response {
	sel := vest.Selector{Serial: cmd.Serial, Bus: cmd.Bus, Address: cmd.Address}
	id, ctrl, _, err := d.registry.AddDevice(cmd.DeviceID, sel, d.driverFactory)
	if err != nil {
		return errorResponse(cmd.ReqID, err.Error())
	}
	status := ctrl.Status()
	ev := protocol.NewEvent(protocol.EventConnected)
	ev.Extra = map[string]any{"device_id": id, "serial_number": status.Serial}
	d.clients.Broadcast(ev)
	return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Connected: protocol.BoolPtr(status.Connected), Extra: map[string]any{"device_id": id}}
}

func (d *Dispatcher) handleDisconnect(cmd protocol.Command) protocol.Response {
	resolved := d.resolveFromCommand(cmd)
	if ctrl := d.registry.GetController(resolved); ctrl != nil {
		ctrl.Disconnect()
	}
	ev := protocol.NewEvent(protocol.EventDisconnected)
	ev.Extra = map[string]any{"device_id": resolved}
	d.clients.Broadcast(ev)
	return okResponse(cmd.Cmd, cmd.ReqID)
}

func (d *Dispatcher) resolveFromCommand(cmd protocol.Command) string {
	return registry.ResolveDeviceID(registry.ResolveRequest{
		DeviceID:  cmd.DeviceID,
		GameID:    cmd.GameID,
		PlayerNum: cmd.PlayerNum,
		PlayerID:  cmd.PlayerID,
	}, d.players, d.games, d.registry.MainDeviceID())
}

func (d *Dispatcher) handleTrigger(cmd protocol.Command) protocol.Response {
	if cmd.Cell == nil || cmd.Speed == nil {
		return errorResponse(cmd.ReqID, "must specify cell and speed")
	}
	resolved := d.resolveFromCommand(cmd)
	ctrl := d.registry.GetController(resolved)
	if ctrl == nil {
		return errorResponse(cmd.ReqID, "no device selected and no device_id specified")
	}
	if !ctrl.Status().Connected {
		return errorResponse(cmd.ReqID, "device not connected")
	}
	if !ctrl.Trigger(*cmd.Cell, *cmd.Speed) {
		return errorResponse(cmd.ReqID, ctrl.Status().LastError)
	}

	ev := protocol.NewEvent(protocol.EventEffectTriggered)
	ev.Cell, ev.Speed = cmd.Cell, cmd.Speed
	ev.Extra = map[string]any{"device_id": resolved}
	d.clients.Broadcast(ev)
	return okResponse(cmd.Cmd, cmd.ReqID)
}

func (d *Dispatcher) handleStop(cmd protocol.Command) protocol.Response {
	resolved := d.resolveFromCommand(cmd)
	if ctrl := d.registry.GetController(resolved); ctrl != nil {
		ctrl.StopAll()
	}
	d.clients.Broadcast(protocol.NewEvent(protocol.EventAllStopped))
	return okResponse(cmd.Cmd, cmd.ReqID)
}

func (d *Dispatcher) handleStatus(cmd protocol.Command) protocol.Response {
	resolved := d.resolveFromCommand(cmd)
	ctrl := d.registry.GetController(resolved)
	if ctrl == nil {
		return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Connected: protocol.BoolPtr(false)}
	}
	st := ctrl.Status()
	extra := map[string]any{"device_id": resolved, "last_error": nilIfEmpty(st.LastError)}
	if st.VendorID != nil {
		extra["vendor_id"] = hexWord(*st.VendorID)
	}
	if st.ProductID != nil {
		extra["product_id"] = hexWord(*st.ProductID)
	}
	return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Connected: protocol.BoolPtr(st.Connected), Extra: extra}
}

// ---- Effects ----

func (d *Dispatcher) handlePlayEffect(cmd protocol.Command) protocol.Response {
	if cmd.EffectName == "" {
		return errorResponse(cmd.ReqID, "missing effect name")
	}
	effect, ok := d.effects[cmd.EffectName]
	if !ok {
		return errorResponse(cmd.ReqID, "unknown effect: "+cmd.EffectName)
	}
	ctrl := d.registry.GetController(d.resolveFromCommand(cmd))
	if ctrl == nil {
		return errorResponse(cmd.ReqID, "no device selected")
	}
	d.sequencer.Play(ctrl, effect)
	return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Success: protocol.BoolPtr(true), Extra: map[string]any{"effect_name": cmd.EffectName}}
}

func (d *Dispatcher) handleListEffects(cmd protocol.Command) protocol.Response {
	categorySet := map[string]bool{}
	out := make([]any, 0, len(d.effects))
	for _, e := range d.effects {
		out = append(out, map[string]any{
			"name":         e.Name,
			"display_name": e.DisplayName,
			"category":     string(e.Category),
			"step_count":   len(e.Steps),
		})
		categorySet[string(e.Category)] = true
	}
	categories := make([]string, 0, len(categorySet))
	for c := range categorySet {
		categories = append(categories, c)
	}
	return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Effects: out, Categories: categories}
}

func (d *Dispatcher) handleStopEffect(cmd protocol.Command) protocol.Response {
	if ctrl := d.registry.GetController(""); ctrl != nil {
		ctrl.StopAll()
	}
	d.clients.Broadcast(protocol.NewEvent(protocol.EventAllStopped))
	return okResponse(cmd.Cmd, cmd.ReqID)
}

// ---- Integrations ----

// dispatchIntegration routes `<game>_start|stop|status|event` commands to a
// registered Integration by trimming the known suffix and looking the
// remaining game prefix up in the registry. Returns ok=false when cmd.Cmd
// doesn't look like an integration command at all.
func (d *Dispatcher) dispatchIntegration(cmd protocol.Command) (protocol.Response, bool) {
	for _, suffix := range []string{"_start", "_stop", "_status", "_event", "_generate_config"} {
		if !strings.HasSuffix(cmd.Cmd, suffix) {
			continue
		}
		prefix := strings.TrimSuffix(cmd.Cmd, suffix)
		impl, ok := d.integrations.Get(prefix)
		if !ok {
			return errorResponse(cmd.ReqID, "unknown integration: "+prefix), true
		}
		return d.dispatchIntegrationVerb(prefix, suffix, impl, cmd), true
	}
	return protocol.Response{}, false
}

// ConfigGenerator is an optional capability some integrations expose: a way
// to materialize the third-party game-side config file that points that
// game's GSI/log output at this daemon (e.g. CS2's gamestate_integration_*
// cfg file), driven by a `<game>_generate_config` command.
type ConfigGenerator interface {
	GenerateConfig(params map[string]any) (string, error)
}

func (d *Dispatcher) dispatchIntegrationVerb(prefix, suffix string, impl Integration, cmd protocol.Command) protocol.Response {
	switch suffix {
	case "_start":
		if err := impl.Start(cmd.Params); err != nil {
			return errorResponse(cmd.ReqID, err.Error())
		}
		ev := protocol.NewEvent(prefix + "_started")
		ev.Extra = cmd.Params
		d.clients.Broadcast(ev)
		return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Success: protocol.BoolPtr(true)}

	case "_stop":
		if err := impl.Stop(); err != nil {
			return errorResponse(cmd.ReqID, err.Error())
		}
		d.clients.Broadcast(protocol.NewEvent(prefix + "_stopped"))
		return okResponse(cmd.Cmd, cmd.ReqID)

	case "_status":
		st := impl.Status()
		extra := map[string]any{
			"enabled":         st.Enabled,
			"running":         st.Running,
			"events_received": st.EventsReceived,
			"last_event_type": nilIfEmpty(st.LastEventType),
		}
		if st.LastEventTS > 0 {
			extra["last_event_ts"] = st.LastEventTS
		}
		for k, v := range st.Extra {
			extra[k] = v
		}
		return protocol.Response{Response: cmd.Cmd, ReqID: cmd.ReqID, Extra: extra}

	case "_event":
		if err := impl.HandleEvent(cmd.Params); err != nil {
			return errorResponse(cmd.ReqID, err.Error())
		}
		ev := protocol.NewEvent(prefix + "_game_event")
		ev.Extra = cmd.Params
		d.clients.Broadcast(ev)
		return okResponse(cmd.Cmd, cmd.ReqID)

	case "_generate_config":
		gen, ok := impl.(ConfigGenerator)
		if !ok {
			return errorResponse(cmd.ReqID, prefix+" does not support config generation")
		}
		content, err := gen.GenerateConfig(cmd.Params)
		if err != nil {
			return errorResponse(cmd.ReqID, err.Error())
		}
		return protocol.Response{
			Response: cmd.Cmd, ReqID: cmd.ReqID, Success: protocol.BoolPtr(true),
			Extra: map[string]any{"config": content},
		}
	}
	return errorResponse(cmd.ReqID, "unhandled integration verb")
}
