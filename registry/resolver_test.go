// SPDX-License-Identifier: GPL-2.0-only

package registry

import "testing"

func intp(n int) *int { return &n }

func TestResolveDeviceIDPrefersDirectDeviceID(t *testing.T) {
	players := NewPlayerManager()
	games := NewGamePlayerMapping()
	players.CreatePlayer("player_1", "")
	players.AssignPlayer("player_1", "device_from_player")
	games.SetMapping("cs2", 1, "device_from_game")

	got := ResolveDeviceID(ResolveRequest{
		DeviceID:  "device_explicit",
		GameID:    "cs2",
		PlayerNum: intp(1),
		PlayerID:  "player_1",
	}, players, games, "device_main")

	if got != "device_explicit" {
		t.Fatalf("expected explicit device_id to win, got %s", got)
	}
}

func TestResolveDeviceIDFallsBackToGameMapping(t *testing.T) {
	players := NewPlayerManager()
	games := NewGamePlayerMapping()
	games.SetMapping("cs2", 1, "device_from_game")

	got := ResolveDeviceID(ResolveRequest{
		GameID:    "cs2",
		PlayerNum: intp(1),
		PlayerID:  "player_1",
	}, players, games, "device_main")

	if got != "device_from_game" {
		t.Fatalf("expected game mapping to win, got %s", got)
	}
}

func TestResolveDeviceIDFallsBackToPlayerID(t *testing.T) {
	players := NewPlayerManager()
	games := NewGamePlayerMapping()
	players.CreatePlayer("player_1", "")
	players.AssignPlayer("player_1", "device_from_player")

	got := ResolveDeviceID(ResolveRequest{
		GameID:    "cs2",
		PlayerNum: intp(2), // no mapping for player_num 2
		PlayerID:  "player_1",
	}, players, games, "device_main")

	if got != "device_from_player" {
		t.Fatalf("expected player_id mapping to win, got %s", got)
	}
}

func TestResolveDeviceIDFallsBackToMain(t *testing.T) {
	players := NewPlayerManager()
	games := NewGamePlayerMapping()

	got := ResolveDeviceID(ResolveRequest{}, players, games, "device_main")
	if got != "device_main" {
		t.Fatalf("expected main device fallback, got %s", got)
	}
}

func TestResolveDeviceIDGameMappingRequiresBothFields(t *testing.T) {
	players := NewPlayerManager()
	games := NewGamePlayerMapping()
	games.SetMapping("cs2", 1, "device_from_game")

	got := ResolveDeviceID(ResolveRequest{GameID: "cs2"}, players, games, "device_main")
	if got != "device_main" {
		t.Fatalf("expected main fallback when player_num missing, got %s", got)
	}
}
