package nfs

import (
	"fmt"

	"github.com/marmos91/nfsfetch/internal/protocol/rpc"
	"github.com/marmos91/nfsfetch/internal/protocol/xdr"
)

// NewSession opens an NFSv3 session over transport.
//
// NFS servers authorise file access from the credential, so cred is normally
// an AUTH_SYS credential. The verifier is AUTH_NONE.
func NewSession(transport rpc.Transport, cred rpc.Credential, opts ...rpc.Option) *rpc.Session {
	opts = append([]rpc.Option{rpc.WithName("nfs")}, opts...)
	return rpc.Open(transport, cred, rpc.AuthNone{}, Program, Version, opts...)
}

// Null calls NFSPROC3_NULL, which has no arguments and no results.
func Null(s *rpc.Session, handler rpc.ReplyHandler) error {
	return s.Call(NFSProcNull, s.NewPayload(0), handler)
}

// ============================================================================
// LOOKUP (RFC 1813 Section 3.3.3)
// ============================================================================

// LookupResult is the decoded LOOKUP3resok.
type LookupResult struct {
	// Handle is the file handle of the looked-up object.
	Handle FileHandle

	// Attributes of the object, when the server supplied them.
	Attributes *FileAttr

	// DirAttributes of the directory, when the server supplied them.
	DirAttributes *FileAttr
}

// Lookup calls NFSPROC3_LOOKUP for name in directory dir.
//
// Arguments (diropargs3):
//
//	[dir:nfs_fh3][name:filename3]
func Lookup(s *rpc.Session, dir FileHandle, name string, handler rpc.ReplyHandler) error {
	if len(dir) > MaxFileHandleSize {
		return fmt.Errorf("%w: length %d", ErrBadFileHandle, len(dir))
	}
	payload := s.NewPayload(dir.EncodedSize() + xdr.StringSize(name))
	dir.Put(payload)
	payload.PutString(name)
	return s.Call(NFSProcLookup, payload, handler)
}

// ParseLookupReply decodes a LOOKUP reply.
//
// Returns an *rpc.AcceptError or *rpc.RejectError for a failed RPC and a
// *StatusError for a non-OK nfsstat3.
func ParseLookupReply(reply *rpc.Reply) (*LookupResult, error) {
	if err := reply.Err(); err != nil {
		return nil, err
	}
	b := reply.Data

	status, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("LOOKUP: read status: %w", err)
	}
	if err := CheckStatus("LOOKUP", status); err != nil {
		return nil, err
	}

	res := &LookupResult{}
	if res.Handle, err = GetFileHandle(b); err != nil {
		return nil, fmt.Errorf("LOOKUP: %w", err)
	}
	if res.Attributes, err = getPostOpAttr(b); err != nil {
		return nil, fmt.Errorf("LOOKUP: object attributes: %w", err)
	}
	if res.DirAttributes, err = getPostOpAttr(b); err != nil {
		return nil, fmt.Errorf("LOOKUP: directory attributes: %w", err)
	}
	return res, nil
}

// ============================================================================
// READ (RFC 1813 Section 3.3.6)
// ============================================================================

// ReadResult is the decoded READ3resok.
type ReadResult struct {
	// Attributes of the file after the read, when the server supplied them.
	Attributes *FileAttr

	// Count is the number of bytes returned.
	Count uint32

	// EOF is true when the read reached the end of the file.
	EOF bool

	// Data holds the bytes read.
	Data []byte
}

// Read calls NFSPROC3_READ.
//
// Arguments (READ3args):
//
//	[file:nfs_fh3][offset:uint64][count:uint32]
func Read(s *rpc.Session, fh FileHandle, offset uint64, count uint32, handler rpc.ReplyHandler) error {
	if len(fh) > MaxFileHandleSize {
		return fmt.Errorf("%w: length %d", ErrBadFileHandle, len(fh))
	}
	payload := s.NewPayload(fh.EncodedSize() + 12)
	fh.Put(payload)
	payload.PutUint64(offset)
	payload.PutUint32(count)
	return s.Call(NFSProcRead, payload, handler)
}

// ParseReadReply decodes a READ reply.
//
// Data is a copy and outlives the reply buffer. Count and len(Data) are
// checked against each other.
func ParseReadReply(reply *rpc.Reply) (*ReadResult, error) {
	if err := reply.Err(); err != nil {
		return nil, err
	}
	b := reply.Data

	status, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("READ: read status: %w", err)
	}
	if err := CheckStatus("READ", status); err != nil {
		return nil, err
	}

	res := &ReadResult{}
	if res.Attributes, err = getPostOpAttr(b); err != nil {
		return nil, fmt.Errorf("READ: %w", err)
	}
	if res.Count, err = b.GetUint32(); err != nil {
		return nil, fmt.Errorf("READ: read count: %w", err)
	}
	eof, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("READ: read eof: %w", err)
	}
	res.EOF = eof != 0

	if res.Data, err = b.GetOpaque(); err != nil {
		return nil, fmt.Errorf("READ: read data: %w", err)
	}
	if uint32(len(res.Data)) != res.Count {
		return nil, fmt.Errorf("READ: count %d does not match %d data bytes", res.Count, len(res.Data))
	}
	return res, nil
}
