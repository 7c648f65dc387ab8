package nfs

// Program identifies the NFS RPC program (RFC 1813).
const (
	// Program is the NFS program number.
	Program = 100003

	// Version is the only NFS version this client speaks.
	Version = 3
)

// NFSv3 Procedure Numbers
// These identify the NFS operations used by the client, as defined in
// RFC 1813.
const (
	// NFSProcNull - Do nothing (connectivity test)
	NFSProcNull = 0

	// NFSProcLookup - Lookup filename
	NFSProcLookup = 3

	// NFSProcRead - Read from file
	NFSProcRead = 6
)

// NFS Status Codes
// These are the error codes that can be returned by NFSv3 procedures.
// Defined in RFC 1813 Section 2.6. MOUNT v3 reuses the same numbers for its
// mountstat3 values.
const (
	// NFS3OK - Success
	NFS3OK = 0

	// NFS3ErrPerm - Not owner
	NFS3ErrPerm = 1

	// NFS3ErrNoEnt - No such file or directory
	NFS3ErrNoEnt = 2

	// NFS3ErrIO - I/O error
	NFS3ErrIO = 5

	// NFS3ErrNXIO - No such device or address
	NFS3ErrNXIO = 6

	// NFS3ErrAcces - Permission denied
	NFS3ErrAcces = 13

	// NFS3ErrExist - File exists
	NFS3ErrExist = 17

	// NFS3ErrXDev - Cross-device hard link
	NFS3ErrXDev = 18

	// NFS3ErrNoDev - No such device
	NFS3ErrNoDev = 19

	// NFS3ErrNotDir - Not a directory
	NFS3ErrNotDir = 20

	// NFS3ErrIsDir - Is a directory
	NFS3ErrIsDir = 21

	// NFS3ErrInval - Invalid argument
	NFS3ErrInval = 22

	// NFS3ErrFBig - File too large
	NFS3ErrFBig = 27

	// NFS3ErrNoSpc - No space left on device
	NFS3ErrNoSpc = 28

	// NFS3ErrRofs - Read-only file system
	NFS3ErrRofs = 30

	// NFS3ErrMLink - Too many hard links
	NFS3ErrMLink = 31

	// NFS3ErrNameTooLong - Filename too long
	NFS3ErrNameTooLong = 63

	// NFS3ErrNotEmpty - Directory not empty
	NFS3ErrNotEmpty = 66

	// NFS3ErrDQuot - Quota exceeded
	NFS3ErrDQuot = 69

	// NFS3ErrStale - Stale file handle
	NFS3ErrStale = 70

	// NFS3ErrRemote - Too many levels of remote in path
	NFS3ErrRemote = 71

	// NFS3ErrBadHandle - Illegal file handle
	NFS3ErrBadHandle = 10001

	// NFS3ErrNotSync - Update synchronization mismatch
	NFS3ErrNotSync = 10002

	// NFS3ErrBadCookie - READDIR cookie is stale
	NFS3ErrBadCookie = 10003

	// NFS3ErrNotSupp - Operation not supported
	NFS3ErrNotSupp = 10004

	// NFS3ErrTooSmall - Buffer or request is too small
	NFS3ErrTooSmall = 10005

	// NFS3ErrServerFault - Server fault
	NFS3ErrServerFault = 10006

	// NFS3ErrBadType - Type not supported by server
	NFS3ErrBadType = 10007

	// NFS3ErrJukebox - Request initiated, retry later
	NFS3ErrJukebox = 10008
)

// File type constants as defined in RFC 1813 Section 2.5.5.
// These values are used in FileAttr.Type to indicate the type of filesystem object.
const (
	// FileTypeRegular indicates a regular file
	FileTypeRegular = 1

	// FileTypeDirectory indicates a directory
	FileTypeDirectory = 2

	// FileTypeBlock indicates a block special device file
	FileTypeBlock = 3

	// FileTypeChar indicates a character special device file
	FileTypeChar = 4

	// FileTypeSymlink indicates a symbolic link
	FileTypeSymlink = 5

	// FileTypeSocket indicates a socket
	FileTypeSocket = 6

	// FileTypeFifo indicates a named pipe (FIFO)
	FileTypeFifo = 7
)

// MaxFileHandleSize is the NFSv3 file handle limit (NFS3_FHSIZE).
const MaxFileHandleSize = 64
