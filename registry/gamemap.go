// SPDX-License-Identifier: GPL-2.0-only

package registry

import "sync"

// GameMapping is one row of GamePlayerMapping.ListMappings output.
type GameMapping struct {
	GameID    string
	PlayerNum int
	DeviceID  string
}

// GamePlayerMapping tracks per-game player-number -> device_id assignments,
// independent from PlayerManager's cross-game player_id assignments. Two
// games can map "player 1" to different vests at the same time.
type GamePlayerMapping struct {
	mu       sync.Mutex
	mappings map[string]map[int]string
}

func NewGamePlayerMapping() *GamePlayerMapping {
	return &GamePlayerMapping{mappings: make(map[string]map[int]string)}
}

func (g *GamePlayerMapping) SetMapping(gameID string, playerNum int, deviceID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mappings[gameID] == nil {
		g.mappings[gameID] = make(map[int]string)
	}
	g.mappings[gameID][playerNum] = deviceID
}

// GetMapping returns the mapped device_id, or "" if none exists.
func (g *GamePlayerMapping) GetMapping(gameID string, playerNum int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	byPlayer, ok := g.mappings[gameID]
	if !ok {
		return ""
	}
	return byPlayer[playerNum]
}

// ClearMapping drops one player_num's mapping, or every mapping for gameID
// when playerNum is nil. Returns false if gameID has no mappings at all.
func (g *GamePlayerMapping) ClearMapping(gameID string, playerNum *int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	byPlayer, ok := g.mappings[gameID]
	if !ok {
		return false
	}
	if playerNum == nil {
		delete(g.mappings, gameID)
		return true
	}
	delete(byPlayer, *playerNum)
	if len(byPlayer) == 0 {
		delete(g.mappings, gameID)
	}
	return true
}

// ListMappings returns every mapping for gameID, or every mapping across
// every game when gameID is "".
func (g *GamePlayerMapping) ListMappings(gameID string) []GameMapping {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []GameMapping
	if gameID != "" {
		for num, dev := range g.mappings[gameID] {
			out = append(out, GameMapping{GameID: gameID, PlayerNum: num, DeviceID: dev})
		}
		return out
	}
	for gid, byPlayer := range g.mappings {
		for num, dev := range byPlayer {
			out = append(out, GameMapping{GameID: gid, PlayerNum: num, DeviceID: dev})
		}
	}
	return out
}

func (g *GamePlayerMapping) HasGame(gameID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.mappings[gameID]
	return ok
}

func (g *GamePlayerMapping) HasMapping(gameID string, playerNum int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	byPlayer, ok := g.mappings[gameID]
	if !ok {
		return false
	}
	_, ok = byPlayer[playerNum]
	return ok
}

func (g *GamePlayerMapping) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, byPlayer := range g.mappings {
		n += len(byPlayer)
	}
	return n
}
