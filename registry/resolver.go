// SPDX-License-Identifier: GPL-2.0-only

package registry

// ResolveRequest bundles every field a command can supply toward resolving
// a target device_id. Zero values mean "not specified".
type ResolveRequest struct {
	DeviceID  string
	GameID    string
	PlayerNum *int
	PlayerID  string
}

// ResolveDeviceID implements the daemon's fixed fallback chain, in order:
//  1. an explicit device_id
//  2. a game-specific mapping (game_id + player_num)
//  3. a global player assignment (player_id)
//  4. the main device
//
// It is a pure function over the two mapping tables and never touches
// controllers, so it can be unit tested without a registry instance.
func ResolveDeviceID(req ResolveRequest, players *PlayerManager, games *GamePlayerMapping, mainDeviceID string) string {
	if req.DeviceID != "" {
		return req.DeviceID
	}

	if req.GameID != "" && req.PlayerNum != nil {
		if id := games.GetMapping(req.GameID, *req.PlayerNum); id != "" {
			return id
		}
	}

	if req.PlayerID != "" {
		if id := players.GetPlayerDevice(req.PlayerID); id != "" {
			return id
		}
	}

	return mainDeviceID
}
