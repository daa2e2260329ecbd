// SPDX-License-Identifier: GPL-2.0-only

package broker

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"
)

func TestServerServeRoundTripsPingOverTCP(t *testing.T) {
	d := newTestDispatcher(t)
	srv := NewServer(nil, d, d.clients)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	go func() { _ = srv.Serve(l) }()

	conn, err := net.DialTimeout("tcp", l.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// The first line off the wire is this connection's own client_connected
	// event, broadcast by AddClient before any command is read.
	connectedLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read client_connected event: %v", err)
	}
	var connected map[string]any
	if err := json.Unmarshal([]byte(connectedLine), &connected); err != nil {
		t.Fatalf("unmarshal client_connected event: %v", err)
	}
	if connected["event"] != "client_connected" {
		t.Fatalf("expected client_connected event first, got %v", connected)
	}

	if _, err := conn.Write([]byte(`{"cmd":"ping","req_id":"r1"}` + "\n")); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	respLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read ping response: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal([]byte(respLine), &resp); err != nil {
		t.Fatalf("unmarshal ping response: %v", err)
	}
	if resp["response"] != "ping" {
		t.Fatalf("expected ping response, got %v", resp)
	}
	if resp["req_id"] != "r1" {
		t.Fatalf("expected req_id echoed, got %v", resp["req_id"])
	}
}

func TestServerServeReturnsNilOnListenerClose(t *testing.T) {
	d := newTestDispatcher(t)
	srv := NewServer(nil, d, d.clients)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	_ = l.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on closed listener, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Serve to return after listener close")
	}
}
