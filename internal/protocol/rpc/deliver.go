package rpc

import (
	"slices"

	"github.com/marmos91/nfsfetch/internal/logger"
)

// Deliver implements Handler. data is one complete record, record mark
// included.
//
// The reply header is decoded and stripped; the reply is routed to the
// handler registered for its XID, which is removed and invoked exactly once.
// A reply without a matching pending call is discarded and Deliver returns
// nil.
//
// A header that cannot be decoded leaves the stream position unknown, so the
// session is closed with the decode error, which is also returned. Otherwise
// the return value is the reply handler's.
func (s *Session) Deliver(data []byte) error {
	if s.closed {
		return ErrSessionClosed
	}
	s.metrics.RecordBytes(s.program, "received", len(data))

	reply, err := ParseReply(data)
	if err != nil {
		logger.Warn("%s: malformed reply: %v", s.name, err)
		s.Close(err)
		return err
	}

	idx := slices.IndexFunc(s.replies, func(p pendingReply) bool { return p.xid == reply.XID })
	if idx < 0 {
		logger.Debug("%s: discarding reply with unknown xid=0x%08x", s.name, reply.XID)
		s.metrics.RecordReply(s.program, false)
		return nil
	}

	pending := s.replies[idx]
	s.replies = slices.Delete(s.replies, idx, idx+1)
	s.metrics.RecordReply(s.program, true)
	s.metrics.SetPending(s.program, len(s.calls), len(s.replies))

	reply.Program = s.program
	reply.Version = s.version

	logger.Debug("%s: reply xid=0x%08x state=%d accept=%d (%d payload bytes)",
		s.name, reply.XID, reply.ReplyState, reply.AcceptState, reply.Data.Len())

	return pending.handler(s, reply)
}
