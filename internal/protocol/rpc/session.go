// Package rpc implements the client side of ONC RPC version 2 (RFC 5531) over
// a record-marked stream transport.
//
// A Session binds one transport connection to one remote program/version. It
// frames calls, assigns transaction ids (XIDs), transmits calls when the
// transport's send window allows and queues them otherwise, and routes each
// reply to the handler registered for its XID.
//
// Concurrency model:
// A Session is driven by a single event loop. Call, Deliver, WindowOpened,
// TransportClosed and Close must all be invoked from that loop; the session
// never blocks and holds no locks. Waiting for a reply is expressed by the
// ReplyHandler stored with the call.
package rpc

import (
	"fmt"
	"math/rand/v2"

	"github.com/marmos91/nfsfetch/internal/logger"
	"github.com/marmos91/nfsfetch/pkg/metrics"
)

// Transport is the byte channel a Session writes framed calls to.
type Transport interface {
	// Send transmits one complete framed message. Implementations must
	// accept the whole message or fail; they never write partially.
	Send(data []byte) error

	// SendWindow reports how many bytes Send can currently accept.
	SendWindow() int

	// Close shuts the channel down. It must be idempotent.
	Close(reason error)
}

// WindowNotifier is implemented by transports that raise WindowOpened on
// request. The session calls NotifyWindow with the size of the call at the
// head of its queue whenever that call does not fit the current window.
type WindowNotifier interface {
	NotifyWindow(n int)
}

// Handler receives transport events. *Session implements it.
type Handler interface {
	// Deliver is called with one complete received record, mark included.
	Deliver(data []byte) error

	// WindowOpened is called when the send window grows.
	WindowOpened()

	// TransportClosed is called once when the channel goes away.
	TransportClosed(reason error)
}

// ReplyHandler completes a call. It runs at most once, from Deliver, with the
// decoded reply. It never runs for calls dropped by Close.
//
// The returned error becomes the result of the Deliver that routed the
// reply; it does not close the session.
type ReplyHandler func(s *Session, reply *Reply) error

type pendingReply struct {
	xid     uint32
	handler ReplyHandler
}

// Session is an ONC RPC client session.
type Session struct {
	transport Transport
	cred      Credential
	verf      Credential
	program   uint32
	version   uint32
	name      string

	// xid is the last XID handed out.
	xid uint32

	// calls holds framed messages waiting for send window, in call order.
	calls [][]byte

	// replies holds registered handlers, in call order.
	replies []pendingReply

	closed  bool
	err     error
	onClose func(error)
	metrics metrics.RPCMetrics
}

// Option configures a Session at Open time.
type Option func(*Session)

// WithMetrics sets the metrics sink. Nil selects the no-op implementation.
func WithMetrics(m metrics.RPCMetrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithCloseHandler registers fn to run once when the session closes, with
// the close reason. This is how callers learn about closure: reply handlers
// of outstanding calls are never invoked.
func WithCloseHandler(fn func(reason error)) Option {
	return func(s *Session) {
		s.onClose = fn
	}
}

// WithName sets the label used in log lines.
func WithName(name string) Option {
	return func(s *Session) {
		s.name = name
	}
}

// WithXIDSeed fixes the initial XID. The first call uses seed+1.
func WithXIDSeed(seed uint32) Option {
	return func(s *Session) {
		s.xid = seed
	}
}

// Open creates a session for program/version over transport.
//
// The transport may still be connecting; calls made before the window opens
// are queued. cred and verf are shared read-only for the session lifetime.
//
// Parameters:
//   - transport: connected or connecting byte channel
//   - cred: credential sent with every call (AuthNone{} or *AuthSys)
//   - verf: verifier sent with every call (normally AuthNone{})
//   - program, version: remote program identifiers
func Open(transport Transport, cred, verf Credential, program, version uint32, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		cred:      cred,
		verf:      verf,
		program:   program,
		version:   version,
		name:      fmt.Sprintf("rpc[%d/%d]", program, version),
		xid:       rand.Uint32(),
		metrics:   metrics.NewNoopRPCMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Debug("%s: session opened (cred=%v)", s.name, cred)
	return s
}

// Program returns the remote program number.
func (s *Session) Program() uint32 { return s.program }

// Version returns the remote program version.
func (s *Session) Version() uint32 { return s.version }

// Credential returns the credential sent with every call.
func (s *Session) Credential() Credential { return s.cred }

// Verifier returns the verifier sent with every call.
func (s *Session) Verifier() Credential { return s.verf }

// XID returns the last transaction id assigned to a call.
func (s *Session) XID() uint32 { return s.xid }

// PendingCalls returns the number of framed calls waiting for send window.
func (s *Session) PendingCalls() int { return len(s.calls) }

// PendingReplies returns the number of calls awaiting a reply.
func (s *Session) PendingReplies() int { return len(s.replies) }

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool { return s.closed }

// Err returns the close reason, or nil while open or after an orderly close.
func (s *Session) Err() error { return s.err }

// HeaderSize returns the bytes Call prepends to a payload: the fixed call
// header plus the credential and verifier bodies.
func (s *Session) HeaderSize() int {
	return callHeaderFixedSize + s.cred.Length() + s.verf.Length()
}

// Close shuts the session down.
//
// Queued calls are discarded and pending reply handlers are dropped without
// being invoked. The transport is then closed with reason, and the close
// handler runs. Closing an already closed session does nothing.
func (s *Session) Close(reason error) {
	s.shutdown(reason, true)
}

// TransportClosed implements Handler. It closes the session after the
// transport has already gone away.
func (s *Session) TransportClosed(reason error) {
	s.shutdown(reason, false)
}

func (s *Session) shutdown(reason error, closeTransport bool) {
	if s.closed {
		return
	}
	s.closed = true
	s.err = reason

	droppedCalls, droppedReplies := len(s.calls), len(s.replies)
	s.calls = nil
	s.replies = nil

	if reason != nil {
		logger.Debug("%s: closing: %v (dropped %d queued calls, %d pending replies)",
			s.name, reason, droppedCalls, droppedReplies)
	} else {
		logger.Debug("%s: closing (dropped %d queued calls, %d pending replies)",
			s.name, droppedCalls, droppedReplies)
	}

	s.metrics.SetPending(s.program, 0, 0)
	s.metrics.RecordSessionClosed(s.program, reason)

	if closeTransport {
		s.transport.Close(reason)
	}
	if s.onClose != nil {
		s.onClose(reason)
	}
}
