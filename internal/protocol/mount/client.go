// Package mount implements the client side of the MOUNT v3 protocol
// (RFC 1813 Appendix I), used to obtain the root file handle of an export.
package mount

import (
	"fmt"

	"github.com/marmos91/nfsfetch/internal/protocol/nfs"
	"github.com/marmos91/nfsfetch/internal/protocol/rpc"
	"github.com/marmos91/nfsfetch/internal/protocol/xdr"
)

// NewSession opens a MOUNT v3 session over transport with the given
// credential and an AUTH_NONE verifier.
func NewSession(transport rpc.Transport, cred rpc.Credential, opts ...rpc.Option) *rpc.Session {
	opts = append([]rpc.Option{rpc.WithName("mount")}, opts...)
	return rpc.Open(transport, cred, rpc.AuthNone{}, Program, Version, opts...)
}

// MntResult is the decoded mountres3_ok.
type MntResult struct {
	// Handle is the root file handle of the mounted export.
	Handle nfs.FileHandle

	// AuthFlavors lists the flavors the server accepts for this export.
	AuthFlavors []uint32
}

// Mnt calls MOUNTPROC3_MNT for mountpoint.
//
// Arguments: [dirpath:string<MNTPATHLEN>]
func Mnt(s *rpc.Session, mountpoint string, handler rpc.ReplyHandler) error {
	return callWithPath(s, MountProcMnt, mountpoint, handler)
}

// Umnt calls MOUNTPROC3_UMNT for mountpoint. The reply carries no results.
func Umnt(s *rpc.Session, mountpoint string, handler rpc.ReplyHandler) error {
	return callWithPath(s, MountProcUmnt, mountpoint, handler)
}

func callWithPath(s *rpc.Session, procedure uint32, path string, handler rpc.ReplyHandler) error {
	if len(path) > MaxPathLength {
		return fmt.Errorf("%w: mount path length %d exceeds %d", nfs.ErrNameTooLong, len(path), MaxPathLength)
	}
	payload := s.NewPayload(xdr.StringSize(path))
	payload.PutString(path)
	return s.Call(procedure, payload, handler)
}

// ParseMntReply decodes a MNT reply.
//
// Reply body (mountres3):
//
//	[fhs_status:uint32]
//	  MNT3_OK: [fhandle:fhandle3][auth_flavors:int<>]
//
// A non-OK status is returned as an *nfs.StatusError, so errors.Is works with
// the generic kinds in package nfs.
func ParseMntReply(reply *rpc.Reply) (*MntResult, error) {
	if err := reply.Err(); err != nil {
		return nil, err
	}
	b := reply.Data

	status, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("MNT: read status: %w", err)
	}
	if err := nfs.CheckStatus("MNT", status); err != nil {
		return nil, err
	}

	res := &MntResult{}
	if res.Handle, err = nfs.GetFileHandle(b); err != nil {
		return nil, fmt.Errorf("MNT: %w", err)
	}
	// Some servers omit the flavor list; a missing list is not an error.
	if b.Len() > 0 {
		if res.AuthFlavors, err = b.GetUint32Array(maxAuthFlavors); err != nil {
			return nil, fmt.Errorf("MNT: read auth flavors: %w", err)
		}
	}
	return res, nil
}

// ParseUmntReply checks a UMNT reply. UMNT has no results, so only the RPC
// status is meaningful.
func ParseUmntReply(reply *rpc.Reply) error {
	return reply.Err()
}
