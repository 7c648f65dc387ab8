package rpc

import (
	"bytes"
	"encoding/binary"

	"github.com/marmos91/nfsfetch/internal/protocol/xdr"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// scriptedTransport records sent messages and reports a settable window.
// Sent bytes consume window, as they would on a real socket.
type scriptedTransport struct {
	window      int
	sent        [][]byte
	sendErr     error
	closeCount  int
	closeReason error
	notified    []int
}

func newScriptedTransport(window int) *scriptedTransport {
	return &scriptedTransport{window: window}
}

func (t *scriptedTransport) Send(data []byte) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	if len(data) > t.window {
		panic("send beyond advertised window")
	}
	t.sent = append(t.sent, bytes.Clone(data))
	t.window -= len(data)
	return nil
}

func (t *scriptedTransport) SendWindow() int { return t.window }

func (t *scriptedTransport) NotifyWindow(n int) { t.notified = append(t.notified, n) }

func (t *scriptedTransport) Close(reason error) {
	t.closeCount++
	t.closeReason = reason
}

// sentXID extracts the XID of the i-th sent message.
func (t *scriptedTransport) sentXID(i int) uint32 {
	return binary.BigEndian.Uint32(t.sent[i][4:8])
}

// buildReply encodes an accepted reply record with an AUTH_NONE verifier.
func buildReply(xid, acceptState uint32, body []byte) []byte {
	b := xdr.NewBuffer(0, 64)
	b.PutUint32(0) // record mark, patched below
	b.PutUint32(xid)
	b.PutUint32(RPCReply)
	b.PutUint32(RPCMsgAccepted)
	PutCredential(b, AuthNone{})
	b.PutUint32(acceptState)
	_, _ = b.Write(body)

	data := b.Bytes()
	binary.BigEndian.PutUint32(data, uint32(len(data)-4)|LastFragment)
	return data
}

// buildReplyWithVerifier encodes an accepted reply record carrying a
// verifier with the given flavor and raw body.
func buildReplyWithVerifier(xid, flavor uint32, verf, body []byte) []byte {
	b := xdr.NewBuffer(0, 64)
	b.PutUint32(0) // record mark, patched below
	b.PutUint32(xid)
	b.PutUint32(RPCReply)
	b.PutUint32(RPCMsgAccepted)
	b.PutUint32(flavor)
	b.PutOpaque(verf)
	b.PutUint32(RPCSuccess)
	_, _ = b.Write(body)

	data := b.Bytes()
	binary.BigEndian.PutUint32(data, uint32(len(data)-4)|LastFragment)
	return data
}

// payloadWith returns a payload holding a single uint32 argument.
func payloadWith(s *Session, v uint32) *xdr.Buffer {
	p := s.NewPayload(4)
	p.PutUint32(v)
	return p
}

// recorder collects the order in which reply handlers fire.
type recorder struct {
	calls []uint32
}

func (r *recorder) handler(tag uint32) ReplyHandler {
	return func(_ *Session, _ *Reply) error {
		r.calls = append(r.calls, tag)
		return nil
	}
}
