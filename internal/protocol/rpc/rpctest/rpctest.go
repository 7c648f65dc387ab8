// Package rpctest provides an in-memory transport and call/reply codecs for
// testing RPC protocol clients without a network.
package rpctest

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/nfsfetch/internal/protocol/rpc"
	"github.com/marmos91/nfsfetch/internal/protocol/xdr"
)

// Transport records every message sent through it.
//
// Window is the advertised send window; sent bytes do not consume it unless
// Consume is set. Use a negative Window for "unlimited".
type Transport struct {
	Window      int
	Consume     bool
	Sent        [][]byte
	SendErr     error
	Closed      bool
	CloseReason error
}

// NewTransport returns a transport with an unlimited window.
func NewTransport() *Transport {
	return &Transport{Window: -1}
}

func (t *Transport) Send(data []byte) error {
	if t.SendErr != nil {
		return t.SendErr
	}
	t.Sent = append(t.Sent, bytes.Clone(data))
	if t.Consume && t.Window > 0 {
		t.Window -= len(data)
	}
	return nil
}

func (t *Transport) SendWindow() int {
	if t.Window < 0 {
		return 1 << 30
	}
	return t.Window
}

func (t *Transport) Close(reason error) {
	t.Closed = true
	t.CloseReason = reason
}

// LastCall decodes the most recently sent message.
func (t *Transport) LastCall() (*Call, error) {
	if len(t.Sent) == 0 {
		return nil, fmt.Errorf("rpctest: nothing sent")
	}
	return ParseCall(t.Sent[len(t.Sent)-1])
}

// Call is a decoded RPC call message.
type Call struct {
	XID        uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Cred       rpc.Credential
	Verf       rpc.Credential

	// Args holds the procedure arguments after the header.
	Args *xdr.Buffer
}

// ParseCall decodes a framed call message, record mark included.
func ParseCall(data []byte) (*Call, error) {
	b := xdr.Wrap(bytes.Clone(data))

	mark, err := b.GetUint32()
	if err != nil {
		return nil, err
	}
	if mark&rpc.LastFragment == 0 {
		return nil, fmt.Errorf("rpctest: fragmented call")
	}
	if int(mark&rpc.FragmentSizeMask) != len(data)-4 {
		return nil, fmt.Errorf("rpctest: record mark %d, message %d bytes", mark&rpc.FragmentSizeMask, len(data)-4)
	}

	c := &Call{}
	var msgType uint32
	for _, p := range []*uint32{&c.XID, &msgType, &c.RPCVersion, &c.Program, &c.Version, &c.Procedure} {
		if *p, err = b.GetUint32(); err != nil {
			return nil, err
		}
	}
	if msgType != rpc.RPCCall {
		return nil, fmt.Errorf("rpctest: message type %d is not CALL", msgType)
	}
	if c.Cred, err = rpc.GetCredential(b); err != nil {
		return nil, fmt.Errorf("rpctest: credential: %w", err)
	}
	if c.Verf, err = rpc.GetCredential(b); err != nil {
		return nil, fmt.Errorf("rpctest: verifier: %w", err)
	}
	c.Args = b
	return c, nil
}

// Reply encodes an accepted, successful reply carrying body.
func Reply(xid uint32, body []byte) []byte {
	return ReplyWithStatus(xid, rpc.RPCSuccess, body)
}

// ReplyWithStatus encodes an accepted reply with the given accept status.
func ReplyWithStatus(xid, acceptState uint32, body []byte) []byte {
	b := xdr.NewBuffer(0, 28+len(body))
	b.PutUint32(0)
	b.PutUint32(xid)
	b.PutUint32(rpc.RPCReply)
	b.PutUint32(rpc.RPCMsgAccepted)
	rpc.PutCredential(b, rpc.AuthNone{})
	b.PutUint32(acceptState)
	_, _ = b.Write(body)
	return seal(b)
}

// Denied encodes a denied reply with the given reject status.
func Denied(xid, rejectState uint32) []byte {
	b := xdr.NewBuffer(0, 20)
	b.PutUint32(0)
	b.PutUint32(xid)
	b.PutUint32(rpc.RPCReply)
	b.PutUint32(rpc.RPCMsgDenied)
	b.PutUint32(rejectState)
	return seal(b)
}

// seal writes the record mark for a single-fragment record.
func seal(b *xdr.Buffer) []byte {
	data := b.Bytes()
	binary.BigEndian.PutUint32(data, uint32(len(data)-4)|rpc.LastFragment)
	return data
}
