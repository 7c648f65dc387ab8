package mount

// Program identifies the MOUNT RPC program (RFC 1813 Appendix I).
const (
	// Program is the MOUNT program number.
	Program = 100005

	// Version is MOUNT v3, the version paired with NFSv3.
	Version = 3
)

// Mount Protocol Procedure Numbers
// These identify the Mount operations as defined in RFC 1813 Appendix I.
const (
	// MountProcNull - Do nothing (connectivity test)
	MountProcNull = 0

	// MountProcMnt - Add mount entry
	MountProcMnt = 1

	// MountProcUmnt - Remove mount entry
	MountProcUmnt = 3
)

// Mount Status Codes
// These are the error codes that can be returned by Mount protocol procedures.
const (
	// MountOK - Success
	MountOK = 0

	// MountErrPerm - Not owner
	MountErrPerm = 1

	// MountErrNoEnt - No such file or directory
	MountErrNoEnt = 2

	// MountErrIO - I/O error
	MountErrIO = 5

	// MountErrAccess - Permission denied
	MountErrAccess = 13

	// MountErrNotDir - Not a directory
	MountErrNotDir = 20

	// MountErrInval - Invalid argument
	MountErrInval = 22

	// MountErrNameTooLong - Filename too long
	MountErrNameTooLong = 63

	// MountErrNotSupp - Operation not supported
	MountErrNotSupp = 10004

	// MountErrServerFault - Server fault
	MountErrServerFault = 10006
)

// MaxPathLength is MNTPATHLEN, the dirpath limit.
const MaxPathLength = 1024

// maxAuthFlavors bounds the auth_flavors list in a MNT reply.
const maxAuthFlavors = 64
