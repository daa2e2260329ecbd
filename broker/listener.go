// SPDX-License-Identifier: GPL-2.0-only

package broker

import (
	"errors"
	"net"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/thirdspace-vest/vestd/protocol"
)

// Server owns the TCP listener and spawns one reader goroutine per
// connection, mirroring the teacher's http.Serve(l, mux) actor shape from
// main.go but speaking line-delimited JSON instead of HTTP.
type Server struct {
	logger     log.Logger
	dispatcher *Dispatcher
	clients    *ClientManager
}

func NewServer(logger log.Logger, dispatcher *Dispatcher, clients *ClientManager) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Server{logger: logger, dispatcher: dispatcher, clients: clients}
}

// Serve accepts connections on l until it is closed. Intended as the body
// of one oklog/run.Group actor; its interrupt function should close l.
func (s *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// handleConn runs one connection's reader loop: decode a command, dispatch
// it, write the response. FIFO per spec.md §5 falls out naturally because a
// single goroutine handles one connection's reads and writes in order.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	enc := protocol.NewEncoder(conn)
	dec := protocol.NewDecoder(conn)
	client := s.clients.AddClient(enc)
	defer s.clients.RemoveClient(client)

	for {
		cmd, err := dec.ReadCommand()
		if err != nil {
			if protocol.IsBlankLine(err) {
				continue
			}
			if decErr, ok := err.(*protocol.DecodeError); ok {
				_ = client.sendResponse(errorResponse("", decErr.Error()))
				continue
			}
			if err == protocol.ErrLineTooLong {
				_ = level.Warn(s.logger).Log("msg", "closing connection: line too long", "client", client.ID)
				return
			}
			// EOF or any other read error: the peer is gone.
			return
		}

		resp := s.dispatcher.Dispatch(cmd)
		if err := client.sendResponse(resp); err != nil {
			_ = level.Debug(s.logger).Log("msg", "dropping response on write failure", "client", client.ID, "err", err)
			return
		}
	}
}
