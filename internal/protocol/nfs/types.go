package nfs

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/marmos91/nfsfetch/internal/protocol/xdr"
)

// ============================================================================
// NFS Protocol Types - RFC 1813 Wire Format Structures
// ============================================================================

// FileHandle is an opaque NFSv3 file handle (nfs_fh3), at most 64 bytes.
//
// Wire format: [length:uint32][data:length bytes][padding:0-3 bytes]
type FileHandle []byte

// String renders the handle as hex for log lines.
func (fh FileHandle) String() string {
	return hex.EncodeToString(fh)
}

// Put appends the handle and returns the bytes written.
func (fh FileHandle) Put(b *xdr.Buffer) int {
	return b.PutOpaque(fh)
}

// EncodedSize returns the wire size of the handle including padding.
func (fh FileHandle) EncodedSize() int {
	return 4 + xdr.Align4(len(fh))
}

// GetFileHandle consumes an nfs_fh3.
func GetFileHandle(b *xdr.Buffer) (FileHandle, error) {
	length, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("read handle length: %w", err)
	}
	if length > MaxFileHandleSize {
		return nil, fmt.Errorf("%w: length %d exceeds %d", ErrBadFileHandle, length, MaxFileHandleSize)
	}
	p, err := b.Pull(xdr.Align4(int(length)))
	if err != nil {
		return nil, fmt.Errorf("read handle: %w", err)
	}
	return append(FileHandle(nil), p[:length]...), nil
}

// TimeVal represents an NFS timestamp (nfstime3 in RFC 1813 Section 2.5.2).
type TimeVal struct {
	// Seconds is the number of seconds since UNIX epoch
	Seconds uint32

	// Nseconds is the nanoseconds component (0-999999999)
	Nseconds uint32
}

// Time converts the timestamp to a time.Time.
func (tv TimeVal) Time() time.Time {
	return time.Unix(int64(tv.Seconds), int64(tv.Nseconds))
}

// SpecData represents device numbers for special files (RFC 1813 Section 2.5.5).
type SpecData struct {
	// Major is the major device number
	Major uint32

	// Minor is the minor device number
	Minor uint32
}

// FileAttr represents the NFS fattr3 structure per RFC 1813 Section 2.3.1.
//
// Field order matches the wire order, so the structure is decoded with
// go-xdr directly.
type FileAttr struct {
	Type   uint32   // File type (FileTypeRegular, FileTypeDirectory, ...)
	Mode   uint32   // Unix permission bits
	Nlink  uint32   // Number of hard links
	UID    uint32   // Owner user ID
	GID    uint32   // Owner group ID
	Size   uint64   // File size in bytes
	Used   uint64   // Disk space used in bytes
	Rdev   SpecData // Device number for special files
	Fsid   uint64   // Filesystem identifier
	Fileid uint64   // File identifier (inode number)
	Atime  TimeVal  // Last access time
	Mtime  TimeVal  // Last modification time
	Ctime  TimeVal  // Last metadata change time
}

// fattr3Size is the fixed wire size of fattr3.
const fattr3Size = 84

// getPostOpAttr consumes a post_op_attr: a boolean followed by fattr3 when
// the boolean is true. Returns nil when no attributes follow.
func getPostOpAttr(b *xdr.Buffer) (*FileAttr, error) {
	follows, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("read attributes_follow: %w", err)
	}
	if follows == 0 {
		return nil, nil
	}
	if b.Len() < fattr3Size {
		return nil, fmt.Errorf("read fattr3: %w", xdr.ErrTruncated)
	}

	attr := &FileAttr{}
	if err := b.Unmarshal(attr); err != nil {
		return nil, fmt.Errorf("read fattr3: %w", err)
	}
	return attr, nil
}
