// SPDX-License-Identifier: GPL-2.0-only

package broker

import (
	"bytes"
	"testing"

	"github.com/thirdspace-vest/vestd/protocol"
)

func TestAddClientBroadcastsConnected(t *testing.T) {
	m := NewClientManager()
	var buf1, buf2 bytes.Buffer

	c1 := m.AddClient(protocol.NewEncoder(&buf1))
	_ = m.AddClient(protocol.NewEncoder(&buf2))

	if buf1.Len() == 0 {
		t.Fatal("expected client 1 to observe client 2's connected event")
	}
	if c1.ID == "" || len(c1.ID) != 8 {
		t.Fatalf("expected an 8-char client id, got %q", c1.ID)
	}
}

func TestBroadcastDoesNotExcludeSender(t *testing.T) {
	m := NewClientManager()
	var buf bytes.Buffer
	m.AddClient(protocol.NewEncoder(&buf))
	buf.Reset()

	m.Broadcast(protocol.NewEvent("all_stopped"))
	if buf.Len() == 0 {
		t.Fatal("expected the only connected client to receive its own broadcast")
	}
}

func TestRemoveClientDropsFromRoster(t *testing.T) {
	m := NewClientManager()
	var buf bytes.Buffer
	c := m.AddClient(protocol.NewEncoder(&buf))
	if m.Count() != 1 {
		t.Fatalf("expected 1 client, got %d", m.Count())
	}
	m.RemoveClient(c)
	if m.Count() != 0 {
		t.Fatalf("expected 0 clients after remove, got %d", m.Count())
	}
}
