package xdr

import (
	"encoding/binary"
	"fmt"

	xdr2 "github.com/rasky/go-xdr/xdr2"
)

// ============================================================================
// XDR Encoding Helpers - Go Values → Wire Format
// ============================================================================

// Align4 rounds n up to the next multiple of four.
//
// Per RFC 4506 Section 3, every XDR item occupies a multiple of four bytes.
func Align4(n int) int {
	return (n + 3) &^ 3
}

// StringSize returns the encoded size of s as an XDR string: a 4-byte length
// followed by the bytes padded to a 4-byte boundary.
func StringSize(s string) int {
	return 4 + Align4(len(s))
}

// PutUint32 appends v in big-endian order and returns the bytes written (4).
func (b *Buffer) PutUint32(v uint32) int {
	binary.BigEndian.PutUint32(b.Put(4), v)
	return 4
}

// PutUint64 appends v in big-endian order and returns the bytes written (8).
//
// Per RFC 4506 Section 4.5 the hyper integer is sent most significant word
// first.
func (b *Buffer) PutUint64(v uint64) int {
	binary.BigEndian.PutUint64(b.Put(8), v)
	return 8
}

// PutOpaque appends variable-length opaque data.
//
// Format: [length:uint32][data:length bytes][padding:0-3 zero bytes]
//
// Returns the total bytes written, 4 + Align4(len(data)).
func (b *Buffer) PutOpaque(data []byte) int {
	n := b.PutUint32(uint32(len(data)))
	p := b.Put(Align4(len(data)))
	copy(p, data)
	return n + len(p)
}

// PutString appends an XDR string with zeroed padding.
//
// Returns the total bytes written, which always equals StringSize(s).
func (b *Buffer) PutString(s string) int {
	n := b.PutUint32(uint32(len(s)))
	p := b.Put(Align4(len(s)))
	copy(p, s)
	return n + len(p)
}

// PutUint32Array appends a counted array of uint32 values.
//
// Returns the bytes written, 4 + 4*len(items).
func (b *Buffer) PutUint32Array(items []uint32) int {
	n := b.PutUint32(uint32(len(items)))
	for _, v := range items {
		n += b.PutUint32(v)
	}
	return n
}

// Marshal appends the XDR encoding of v using go-xdr's reflection encoder.
//
// Returns the bytes written.
func (b *Buffer) Marshal(v any) (int, error) {
	n, err := xdr2.Marshal(b, v)
	if err != nil {
		return n, fmt.Errorf("xdr marshal %T: %w", v, err)
	}
	return n, nil
}
