package nfs

import (
	"errors"
	"fmt"
)

// Generic error kinds that NFS and MOUNT status codes map onto. Callers test
// for them with errors.Is.
var (
	ErrPermission      = errors.New("operation not permitted")
	ErrNotFound        = errors.New("no such file or directory")
	ErrIO              = errors.New("input/output error")
	ErrAccess          = errors.New("permission denied")
	ErrExist           = errors.New("file exists")
	ErrNotDir          = errors.New("not a directory")
	ErrIsDir           = errors.New("is a directory")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNoSpace         = errors.New("no space left on device")
	ErrReadOnly        = errors.New("read-only file system")
	ErrNameTooLong     = errors.New("file name too long")
	ErrStale           = errors.New("stale file handle")
	ErrUnsupported     = errors.New("operation not supported")
	ErrRetry           = errors.New("resource temporarily unavailable")
)

// ErrBadFileHandle is returned when a file handle exceeds MaxFileHandleSize.
var ErrBadFileHandle = errors.New("nfs: invalid file handle")

// StatusError is a non-OK NFS or MOUNT status returned by a procedure.
//
// It unwraps to the generic kind from KindOf, so
//
//	errors.Is(err, nfs.ErrNotFound)
//
// holds for an NFS3ERR_NOENT or MNT3ERR_NOENT reply.
type StatusError struct {
	// Procedure names the failed call, e.g. "LOOKUP" or "MNT".
	Procedure string

	// Status is the raw nfsstat3 / mountstat3 value.
	Status uint32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s (%v)", e.Procedure, StatusToString(e.Status), KindOf(e.Status))
}

func (e *StatusError) Unwrap() error {
	return KindOf(e.Status)
}

// KindOf maps an nfsstat3 value to a generic error kind. NFS3OK maps to nil.
// Unrecognised statuses map to ErrIO.
//
// Error Mapping:
//   - NFS3ERR_PERM → ErrPermission
//   - NFS3ERR_NOENT, NFS3ERR_NXIO, NFS3ERR_NODEV → ErrNotFound
//   - NFS3ERR_ACCES → ErrAccess
//   - NFS3ERR_NOTDIR → ErrNotDir
//   - NFS3ERR_INVAL, NFS3ERR_BADHANDLE, NFS3ERR_BADTYPE → ErrInvalidArgument
//   - NFS3ERR_NAMETOOLONG → ErrNameTooLong
//   - NFS3ERR_NOTSUPP → ErrUnsupported
//   - NFS3ERR_JUKEBOX → ErrRetry
//   - everything else → ErrIO
func KindOf(status uint32) error {
	switch status {
	case NFS3OK:
		return nil
	case NFS3ErrPerm:
		return ErrPermission
	case NFS3ErrNoEnt, NFS3ErrNXIO, NFS3ErrNoDev:
		return ErrNotFound
	case NFS3ErrAcces:
		return ErrAccess
	case NFS3ErrExist:
		return ErrExist
	case NFS3ErrNotDir:
		return ErrNotDir
	case NFS3ErrIsDir:
		return ErrIsDir
	case NFS3ErrInval, NFS3ErrBadHandle, NFS3ErrBadType:
		return ErrInvalidArgument
	case NFS3ErrNoSpc, NFS3ErrDQuot:
		return ErrNoSpace
	case NFS3ErrRofs:
		return ErrReadOnly
	case NFS3ErrNameTooLong:
		return ErrNameTooLong
	case NFS3ErrStale:
		return ErrStale
	case NFS3ErrNotSupp:
		return ErrUnsupported
	case NFS3ErrJukebox:
		return ErrRetry
	default:
		return ErrIO
	}
}

// CheckStatus returns nil for NFS3OK and a *StatusError otherwise.
func CheckStatus(procedure string, status uint32) error {
	if status == NFS3OK {
		return nil
	}
	return &StatusError{Procedure: procedure, Status: status}
}
