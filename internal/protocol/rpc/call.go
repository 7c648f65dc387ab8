package rpc

import (
	"fmt"
	"slices"

	"github.com/marmos91/nfsfetch/internal/logger"
	"github.com/marmos91/nfsfetch/internal/protocol/xdr"
)

// NewPayload allocates a buffer for procedure arguments with headroom for
// this session's call header.
func (s *Session) NewPayload(size int) *xdr.Buffer {
	return xdr.NewBuffer(s.HeaderSize(), size)
}

// Call sends procedure with the arguments in payload and registers handler
// for the reply.
//
// The call header is prepended into the payload's headroom, so payload must
// have been created with at least HeaderSize() bytes of headroom (see
// NewPayload). The session takes ownership of payload.
//
// The message is transmitted immediately when no earlier call is queued and
// the transport window fits it; otherwise it is queued and sent in call order
// once WindowOpened reports enough room. Either way the reply handler is
// registered before Call returns.
//
// Returns:
//   - ErrSessionClosed, ErrInvalidArgument or xdr.ErrBufferTooSmall without
//     touching the XID counter or either queue
//   - a *TransportError if immediate transmission failed; the session is
//     closed in that case
func (s *Session) Call(procedure uint32, payload *xdr.Buffer, handler ReplyHandler) error {
	if s.closed {
		return ErrSessionClosed
	}
	if payload == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidArgument)
	}
	if handler == nil {
		return fmt.Errorf("%w: nil reply handler", ErrInvalidArgument)
	}

	headerSize := s.HeaderSize()
	if payload.Headroom() < headerSize {
		return fmt.Errorf("%w: call header needs %d bytes, payload has %d",
			xdr.ErrBufferTooSmall, headerSize, payload.Headroom())
	}
	frameSize := headerSize + payload.Len() - 4
	if frameSize > FragmentSizeMask {
		return fmt.Errorf("%w: message of %d bytes exceeds record limit", ErrInvalidArgument, frameSize)
	}

	xid := s.nextXID()

	// Step 1: encode the header, then place it in front of the arguments
	hdr := xdr.NewBuffer(0, headerSize)
	hdr.PutUint32(uint32(frameSize) | LastFragment)
	hdr.PutUint32(xid)
	hdr.PutUint32(RPCCall)
	hdr.PutUint32(RPCVersion)
	hdr.PutUint32(s.program)
	hdr.PutUint32(s.version)
	hdr.PutUint32(procedure)
	PutCredential(hdr, s.cred)
	PutCredential(hdr, s.verf)

	p, err := payload.Push(headerSize)
	if err != nil {
		return err
	}
	copy(p, hdr.Bytes())

	// Step 2: registration is independent of transmission
	s.replies = append(s.replies, pendingReply{xid: xid, handler: handler})

	// Step 3: send now or queue behind earlier calls
	msg := payload.Bytes()
	if len(s.calls) == 0 && s.transport.SendWindow() >= len(msg) {
		if err := s.send(msg); err != nil {
			return err
		}
		logger.Debug("%s: call xid=0x%08x proc=%d sent (%d bytes)", s.name, xid, procedure, len(msg))
		s.metrics.RecordCall(s.program, procedure, false)
	} else {
		s.calls = append(s.calls, msg)
		if len(s.calls) == 1 {
			s.waitWindow(len(msg))
		}
		logger.Debug("%s: call xid=0x%08x proc=%d queued (%d bytes, %d waiting)",
			s.name, xid, procedure, len(msg), len(s.calls))
		s.metrics.RecordCall(s.program, procedure, true)
	}

	s.metrics.SetPending(s.program, len(s.calls), len(s.replies))
	return nil
}

// WindowOpened implements Handler.
//
// Queued calls are sent from the head while each one fits the current send
// window. Flushing stops at the first call that does not fit, so a later
// smaller call never overtakes an earlier one.
func (s *Session) WindowOpened() {
	flushed := 0
	for !s.closed && len(s.calls) > 0 {
		msg := s.calls[0]
		if s.transport.SendWindow() < len(msg) {
			break
		}
		if err := s.send(msg); err != nil {
			return
		}
		s.calls[0] = nil
		s.calls = s.calls[1:]
		flushed++
	}

	if !s.closed && len(s.calls) > 0 {
		s.waitWindow(len(s.calls[0]))
	}

	if flushed > 0 {
		logger.Debug("%s: flushed %d queued calls (%d still waiting)", s.name, flushed, len(s.calls))
		s.metrics.RecordFlush(s.program, flushed)
		s.metrics.SetPending(s.program, len(s.calls), len(s.replies))
	}
}

// waitWindow asks the transport for a WindowOpened once n bytes fit.
func (s *Session) waitWindow(n int) {
	if wn, ok := s.transport.(WindowNotifier); ok {
		wn.NotifyWindow(n)
	}
}

// send transmits msg, closing the session on failure.
func (s *Session) send(msg []byte) error {
	if err := s.transport.Send(msg); err != nil {
		terr := &TransportError{Op: "send", Err: err}
		s.Close(terr)
		return terr
	}
	s.metrics.RecordBytes(s.program, "sent", len(msg))
	return nil
}

// nextXID advances the counter, skipping any value that still has a pending
// reply so outstanding calls never share an XID.
func (s *Session) nextXID() uint32 {
	for {
		s.xid++
		if !slices.ContainsFunc(s.replies, func(p pendingReply) bool { return p.xid == s.xid }) {
			return s.xid
		}
	}
}
