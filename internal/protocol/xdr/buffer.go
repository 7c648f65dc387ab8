// Package xdr implements the XDR (RFC 4506) primitives used to build and parse
// ONC RPC messages.
//
// The central type is Buffer, a growable byte buffer with reserved headroom at
// the front. Protocol clients append their procedure arguments to the tail and
// the RPC engine later prepends the call header into the headroom, so a call is
// framed without copying the payload.
//
// Buffer also implements io.Reader and io.Writer, which lets struct-shaped
// bodies be (un)marshalled with github.com/rasky/go-xdr/xdr2 directly on top of
// the buffer (see Marshal and Unmarshal).
package xdr

import (
	"errors"
	"io"
	"slices"
)

var (
	// ErrTruncated is returned when a decode needs more bytes than remain.
	ErrTruncated = errors.New("xdr: truncated data")

	// ErrBufferTooSmall is returned when the reserved headroom cannot hold
	// the bytes being prepended.
	ErrBufferTooSmall = errors.New("xdr: insufficient headroom")
)

// Buffer is a byte buffer with headroom.
//
// Layout:
//
//	data[0:head]     headroom (free, available to Push)
//	data[head:]      live bytes (Bytes)
//
// Appending grows the tail; Pull/Get consume from the front, which returns the
// consumed bytes to the headroom.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	data []byte
	head int
}

// NewBuffer allocates an empty buffer with the given headroom and tail
// capacity hint.
func NewBuffer(headroom, size int) *Buffer {
	if headroom < 0 {
		headroom = 0
	}
	if size < 0 {
		size = 0
	}
	return &Buffer{
		data: make([]byte, headroom, headroom+size),
		head: headroom,
	}
}

// Wrap returns a buffer whose live bytes are data, with no headroom.
// The buffer takes ownership of data.
func Wrap(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the live bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data[b.head:]
}

// Len returns the number of live bytes.
func (b *Buffer) Len() int {
	return len(b.data) - b.head
}

// Headroom returns the number of bytes that can be prepended with Push.
func (b *Buffer) Headroom() int {
	return b.head
}

// Put extends the tail by n zeroed bytes and returns them for filling.
func (b *Buffer) Put(n int) []byte {
	off := len(b.data)
	b.data = slices.Grow(b.data, n)[:off+n]
	p := b.data[off:]
	clear(p)
	return p
}

// Push prepends n bytes into the headroom and returns them for filling.
func (b *Buffer) Push(n int) ([]byte, error) {
	if n < 0 || n > b.head {
		return nil, ErrBufferTooSmall
	}
	b.head -= n
	return b.data[b.head : b.head+n], nil
}

// Pull consumes n bytes from the front of the live data.
func (b *Buffer) Pull(n int) ([]byte, error) {
	if n < 0 || n > b.Len() {
		return nil, ErrTruncated
	}
	p := b.data[b.head : b.head+n]
	b.head += n
	return p, nil
}

// Skip discards n bytes from the front of the live data.
func (b *Buffer) Skip(n int) error {
	_, err := b.Pull(n)
	return err
}

// Write appends p to the tail. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	copy(b.Put(len(p)), p)
	return len(p), nil
}

// Read consumes up to len(p) bytes from the front.
func (b *Buffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if b.Len() == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.Bytes())
	b.head += n
	return n, nil
}
