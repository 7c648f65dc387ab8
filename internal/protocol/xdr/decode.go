package xdr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	xdr2 "github.com/rasky/go-xdr/xdr2"
)

// ============================================================================
// XDR Decoding Helpers - Wire Format → Go Values
// ============================================================================

// maxOpaqueLength bounds variable-length items so a corrupt length field
// cannot trigger a huge allocation.
const maxOpaqueLength = 1024 * 1024

// GetUint32 consumes a big-endian uint32.
func (b *Buffer) GetUint32() (uint32, error) {
	p, err := b.Pull(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

// GetUint64 consumes a big-endian uint64.
func (b *Buffer) GetUint64() (uint64, error) {
	p, err := b.Pull(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(p), nil
}

// GetOpaque consumes variable-length opaque data and its padding.
//
// The returned slice is a copy and stays valid after the buffer is reused.
func (b *Buffer) GetOpaque() ([]byte, error) {
	length, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}
	if length > maxOpaqueLength {
		return nil, fmt.Errorf("opaque length %d exceeds maximum %d", length, maxOpaqueLength)
	}
	p, err := b.Pull(Align4(int(length)))
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	return append([]byte(nil), p[:length]...), nil
}

// GetString consumes an XDR string.
func (b *Buffer) GetString() (string, error) {
	data, err := b.GetOpaque()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetUint32Array consumes a counted array of uint32 values.
//
// max bounds the element count; a larger count is reported as an error
// without consuming the elements.
func (b *Buffer) GetUint32Array(max int) ([]uint32, error) {
	count, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	if int64(count) > int64(max) {
		return nil, fmt.Errorf("array count %d exceeds maximum %d", count, max)
	}
	items := make([]uint32, count)
	for i := range items {
		if items[i], err = b.GetUint32(); err != nil {
			return nil, fmt.Errorf("read element %d: %w", i, err)
		}
	}
	return items, nil
}

// Unmarshal decodes the next XDR item from the buffer into v using go-xdr's
// reflection decoder. A short buffer is reported as ErrTruncated.
func (b *Buffer) Unmarshal(v any) error {
	if _, err := xdr2.Unmarshal(b, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("xdr unmarshal %T: %w", v, ErrTruncated)
		}
		var xerr *xdr2.UnmarshalError
		if errors.As(err, &xerr) && (errors.Is(xerr.Err, io.EOF) || errors.Is(xerr.Err, io.ErrUnexpectedEOF)) {
			return fmt.Errorf("xdr unmarshal %T: %w", v, ErrTruncated)
		}
		return fmt.Errorf("xdr unmarshal %T: %w", v, err)
	}
	return nil
}
