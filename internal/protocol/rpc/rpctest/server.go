package rpctest

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/marmos91/nfsfetch/internal/protocol/rpc"
)

// HandlerFunc answers one decoded call. It returns the complete reply record
// (see Reply, ReplyWithStatus, Denied) or nil to send nothing.
type HandlerFunc func(call *Call) []byte

// Server is a loopback TCP server speaking record-marked RPC, for tests.
type Server struct {
	listener net.Listener
	handler  HandlerFunc

	mu    sync.Mutex
	calls []*Call
	conns []net.Conn
	wg    sync.WaitGroup
}

// NewServer starts a server on 127.0.0.1 with an ephemeral port.
func NewServer(handler HandlerFunc) (*Server, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{listener: l, handler: handler}
	s.wg.Add(1)
	go s.accept()
	return s, nil
}

// Port returns the listening port.
func (s *Server) Port() uint16 {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return uint16(n)
}

// Calls returns the calls received so far, in arrival order.
func (s *Server) Calls() []*Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Call(nil), s.calls...)
}

// Close stops the listener and drops open connections.
func (s *Server) Close() {
	_ = s.listener.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	for {
		var mark [4]byte
		if _, err := io.ReadFull(conn, mark[:]); err != nil {
			return
		}
		size := binary.BigEndian.Uint32(mark[:]) & rpc.FragmentSizeMask
		record := make([]byte, 4+int(size))
		copy(record, mark[:])
		if _, err := io.ReadFull(conn, record[4:]); err != nil {
			return
		}

		call, err := ParseCall(record)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.calls = append(s.calls, call)
		s.mu.Unlock()

		reply := s.handler(call)
		if reply == nil {
			continue
		}
		if _, err := conn.Write(reply); err != nil && !errors.Is(err, net.ErrClosed) {
			return
		}
	}
}
