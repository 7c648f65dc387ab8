package rpc

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedMessageType is returned when a delivered message is not
	// an RPC reply.
	ErrUnexpectedMessageType = errors.New("rpc: unexpected message type")

	// ErrProtocolViolation is returned for malformed headers such as a zero
	// record mark or a credential whose body disagrees with its length.
	ErrProtocolViolation = errors.New("rpc: protocol violation")

	// ErrSessionClosed is returned by Call after the session has closed.
	ErrSessionClosed = errors.New("rpc: session closed")

	// ErrInvalidArgument is returned for arguments that can never be valid,
	// such as a nil payload or an oversized machine name.
	ErrInvalidArgument = errors.New("rpc: invalid argument")
)

// TransportError wraps a failure reported by the transport.
type TransportError struct {
	// Op is the transport operation that failed ("send", "close", ...).
	Op string

	// Err is the underlying error.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AcceptError reports an accepted reply whose accept status is not
// RPCSuccess.
type AcceptError struct {
	Program uint32
	Status  uint32
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("rpc: program %d: %s", e.Program, acceptStatusString(e.Status))
}

// RejectError reports a denied reply.
type RejectError struct {
	Program uint32
	Status  uint32
}

func (e *RejectError) Error() string {
	switch e.Status {
	case RPCMismatch:
		return fmt.Sprintf("rpc: program %d: rpc version mismatch", e.Program)
	case RPCAuthError:
		return fmt.Sprintf("rpc: program %d: authentication error", e.Program)
	default:
		return fmt.Sprintf("rpc: program %d: call denied (reject status %d)", e.Program, e.Status)
	}
}

func acceptStatusString(status uint32) string {
	switch status {
	case RPCSuccess:
		return "success"
	case RPCProgUnavail:
		return "program unavailable"
	case RPCProgMismatch:
		return "program version mismatch"
	case RPCProcUnavail:
		return "procedure unavailable"
	case RPCGarbageArgs:
		return "garbage arguments"
	case RPCSystemErr:
		return "system error"
	default:
		return fmt.Sprintf("accept status %d", status)
	}
}
