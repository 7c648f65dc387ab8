package rpc

import (
	"fmt"

	"github.com/marmos91/nfsfetch/internal/protocol/xdr"
)

// Reply is a decoded RPC reply header plus the remaining procedure payload.
//
// Wire format (RFC 5531 Section 9), preceded by the record mark:
//
//	[xid][REPLY=1][reply_stat]
//	  MSG_ACCEPTED: [verf:opaque_auth][accept_stat][results...]
//	  MSG_DENIED:   [reject_stat][...]
type Reply struct {
	// XID is the transaction id copied from the matching call.
	XID uint32

	// ReplyState is RPCMsgAccepted or RPCMsgDenied.
	ReplyState uint32

	// AcceptState is valid when ReplyState is RPCMsgAccepted.
	AcceptState uint32

	// RejectState is valid when ReplyState is RPCMsgDenied.
	RejectState uint32

	// VerifierFlavor is the flavor of the server verifier of an accepted
	// reply. The verifier body is skipped unread.
	VerifierFlavor uint32

	// Data holds the bytes following the header: procedure results for an
	// accepted reply, mismatch or auth details for a denied one.
	Data *xdr.Buffer

	// Program and Version identify the session the reply was matched to.
	// They are zero until the reply has been routed.
	Program uint32
	Version uint32
}

// Err returns nil for an accepted, successful reply and an *AcceptError or
// *RejectError otherwise.
func (r *Reply) Err() error {
	if r.ReplyState == RPCMsgDenied {
		return &RejectError{Program: r.Program, Status: r.RejectState}
	}
	if r.AcceptState != RPCSuccess {
		return &AcceptError{Program: r.Program, Status: r.AcceptState}
	}
	return nil
}

// ParseReply decodes the reply header from data, which must start with the
// record mark.
//
// Returns:
//   - ErrProtocolViolation for a zero record mark or an unknown reply state
//   - ErrUnexpectedMessageType when the message is a CALL
//   - xdr.ErrTruncated (wrapped) for a short header
func ParseReply(data []byte) (*Reply, error) {
	b := xdr.Wrap(data)

	mark, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("read record mark: %w", err)
	}
	if mark&FragmentSizeMask == 0 {
		return nil, fmt.Errorf("%w: zero-length record", ErrProtocolViolation)
	}

	reply := &Reply{}
	if reply.XID, err = b.GetUint32(); err != nil {
		return nil, fmt.Errorf("read xid: %w", err)
	}

	msgType, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("read message type: %w", err)
	}
	if msgType != RPCReply {
		return nil, fmt.Errorf("%w: got %d, want REPLY", ErrUnexpectedMessageType, msgType)
	}

	if reply.ReplyState, err = b.GetUint32(); err != nil {
		return nil, fmt.Errorf("read reply state: %w", err)
	}

	switch reply.ReplyState {
	case RPCMsgAccepted:
		if reply.VerifierFlavor, err = skipVerifier(b); err != nil {
			return nil, fmt.Errorf("read verifier: %w", err)
		}
		if reply.AcceptState, err = b.GetUint32(); err != nil {
			return nil, fmt.Errorf("read accept state: %w", err)
		}

	case RPCMsgDenied:
		if reply.RejectState, err = b.GetUint32(); err != nil {
			return nil, fmt.Errorf("read reject state: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: reply state %d", ErrProtocolViolation, reply.ReplyState)
	}

	reply.Data = b
	return reply, nil
}

// skipVerifier consumes an opaque_auth verifier without interpreting its
// body and returns the flavor.
func skipVerifier(b *xdr.Buffer) (uint32, error) {
	flavor, err := b.GetUint32()
	if err != nil {
		return 0, fmt.Errorf("read auth flavor: %w", err)
	}
	length, err := b.GetUint32()
	if err != nil {
		return 0, fmt.Errorf("read auth length: %w", err)
	}
	if length > MaxAuthBodyLength {
		return 0, fmt.Errorf("%w: auth body length %d exceeds %d", ErrProtocolViolation, length, MaxAuthBodyLength)
	}
	if err := b.Skip(xdr.Align4(int(length))); err != nil {
		return 0, fmt.Errorf("read auth body: %w", err)
	}
	return flavor, nil
}
