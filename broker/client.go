// SPDX-License-Identifier: GPL-2.0-only

// Package broker implements the TCP line-protocol surface: client
// bookkeeping, command dispatch, and effect sequencing. It is the Go
// analogue of the teacher's deviceplugin package, adapted from gRPC
// ListAndWatch/Allocate streams to a line-delimited JSON broadcast model.
package broker

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/thirdspace-vest/vestd/protocol"
)

// Client is one connected TCP peer. Identity fields are set once at
// identify_client time and read-mostly afterward.
type Client struct {
	ID      string
	Name    string
	Version string

	mu      sync.Mutex
	encoder *protocol.Encoder
}

func newClient(id string, enc *protocol.Encoder) *Client {
	return &Client{ID: id, encoder: enc}
}

// send writes ev to this client only. Callers must swallow the error (see
// ClientManager.Broadcast) rather than treat a dead peer as fatal.
func (c *Client) send(ev protocol.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoder.WriteEvent(ev)
}

func (c *Client) sendResponse(r protocol.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoder.WriteResponse(r)
}

// ClientManager tracks connected clients and broadcasts events to all of
// them. Broadcasts are never suppressed for the originating client (see
// SPEC_FULL.md open question #3): callers always pass every client through.
type ClientManager struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewClientManager() *ClientManager {
	return &ClientManager{clients: make(map[string]*Client)}
}

// AddClient registers a new connection and broadcasts client_connected.
// The short id matches the Python original's `uuid4()[:8]` convention.
func (m *ClientManager) AddClient(enc *protocol.Encoder) *Client {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	c := newClient(id, enc)

	m.mu.Lock()
	m.clients[id] = c
	m.mu.Unlock()

	ev := protocol.NewEvent(protocol.EventClientConnected)
	ev.ClientID = id
	m.Broadcast(ev)
	return c
}

func (m *ClientManager) RemoveClient(c *Client) {
	m.mu.Lock()
	delete(m.clients, c.ID)
	m.mu.Unlock()

	ev := protocol.NewEvent(protocol.EventClientDisconnected)
	ev.ClientID = c.ID
	m.Broadcast(ev)
}

func (m *ClientManager) IdentifyClient(c *Client, name, version string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[c.ID]; !ok {
		return
	}
	c.Name = name
	c.Version = version
}

// Broadcast sends ev to every currently connected client, snapshotting the
// client list first so a slow or disconnecting peer can't block others.
// Individual send failures are swallowed -- a dead peer is cleaned up by its
// own connection loop noticing the read side close, not by the broadcaster.
func (m *ClientManager) Broadcast(ev protocol.Event) {
	m.mu.Lock()
	snapshot := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		snapshot = append(snapshot, c)
	}
	m.mu.Unlock()

	for _, c := range snapshot {
		_ = c.send(ev)
	}
}

func (m *ClientManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// ClientInfo lists every connected client's identity, for the status command.
type ClientInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

func (m *ClientManager) ListClients() []ClientInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ClientInfo, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, ClientInfo{ID: c.ID, Name: c.Name, Version: c.Version})
	}
	return out
}
