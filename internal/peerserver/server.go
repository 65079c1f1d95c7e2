// Package peerserver implements the accept loop and command dispatch
// table: one goroutine per connection, a single frame read and decode,
// a handler lookup, and an optional response frame. Connections carry
// no session state between them.
package peerserver

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"quantcoin/internal/chainlog"
	"quantcoin/internal/protocol"
)

var log = chainlog.For("peerserver")

// HandlerFunc processes one decoded command and returns the response
// payload to frame back to the caller, or nil for commands that don't
// respond (register, new_block, send).
type HandlerFunc func(cmd *protocol.Command) ([]byte, error)

// Server accepts connections on a single listen address and dispatches
// each inbound command to a registered handler.
type Server struct {
	listenAddr string

	mu      sync.Mutex
	ln      net.Listener
	running bool

	handlers map[string]HandlerFunc
}

// New returns a Server that will listen on listenAddr once Serve runs.
func New(listenAddr string) *Server {
	return &Server{
		listenAddr: listenAddr,
		handlers:   make(map[string]HandlerFunc),
	}
}

// Handle registers h as the handler for cmd, overwriting any previous
// registration. Call before Serve; it is not safe to register handlers
// concurrently with a running accept loop.
func (s *Server) Handle(cmd string, h HandlerFunc) {
	s.handlers[cmd] = h
}

// Addr returns the listener's bound address. Valid only after Serve
// has started listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve opens the listener and runs the accept loop until Stop is
// called. It blocks the calling goroutine.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.running = true
	s.mu.Unlock()

	log.WithField("addr", ln.Addr().String()).Info("peer server listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	clog := log.WithField("conn", uuid.NewString())

	payload, err := protocol.ReadFrame(conn)
	if err != nil {
		clog.WithError(err).Debug("malformed frame")
		return
	}
	cmd, err := protocol.DecodeCommand(payload)
	if err != nil {
		clog.WithError(err).Debug("unknown command")
		return
	}
	clog = clog.WithField("cmd", cmd.Cmd)

	handler, ok := s.handlers[cmd.Cmd]
	if !ok {
		clog.Debug("no handler registered for command")
		return
	}
	resp, err := handler(cmd)
	if err != nil {
		clog.WithError(err).Warn("handler failed")
		return
	}
	if resp == nil {
		return
	}
	if err := protocol.WriteFrame(conn, resp); err != nil {
		clog.WithError(err).Debug("write response failed")
	}
}

// Stop flips the running flag and unblocks Accept(). Closing the
// listener wakes most net.Listener implementations immediately, but
// some platforms don't observe the close promptly, so Stop also dials
// its own address as a belt-and-suspenders wakeup.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.running = false
	ln := s.ln
	addr := ""
	if ln != nil {
		addr = ln.Addr().String()
	}
	s.mu.Unlock()

	if ln == nil {
		return nil
	}
	closeErr := ln.Close()

	if conn, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		conn.Close()
	}
	return closeErr
}
