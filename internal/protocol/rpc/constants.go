package rpc

// RPCVersion is the only ONC RPC protocol version (RFC 5531 Section 8).
const RPCVersion = 2

// RPC Message Types
//
// Reference: RFC 5531 Section 9 (RPC Message Protocol)
const (
	// RPCCall indicates an RPC call message (client to server).
	RPCCall = 0

	// RPCReply indicates an RPC reply message (server to client).
	RPCReply = 1
)

// RPC Reply States
const (
	// RPCMsgAccepted indicates the server accepted the call. The reply
	// carries a verifier and an accept status.
	RPCMsgAccepted = 0

	// RPCMsgDenied indicates the server refused the call. The reply carries
	// a reject status instead of a verifier.
	RPCMsgDenied = 1
)

// RPC Accept Status
//
// Only meaningful when the reply state is RPCMsgAccepted. Non-success values
// are surfaced to protocol clients, which decide how to interpret them.
const (
	// RPCSuccess indicates the procedure executed successfully.
	RPCSuccess = 0

	// RPCProgUnavail indicates the remote has not exported the program.
	RPCProgUnavail = 1

	// RPCProgMismatch indicates the remote cannot support the version.
	RPCProgMismatch = 2

	// RPCProcUnavail indicates the program cannot support the procedure.
	RPCProcUnavail = 3

	// RPCGarbageArgs indicates the procedure could not decode its params.
	RPCGarbageArgs = 4

	// RPCSystemErr indicates a server-side error such as memory exhaustion.
	RPCSystemErr = 5
)

// RPC Reject Status
const (
	// RPCMismatch indicates the RPC version number was not 2.
	RPCMismatch = 0

	// RPCAuthError indicates the remote refused the credential.
	RPCAuthError = 1
)

// Authentication Flavors
//
// Reference: RFC 5531 Section 8.2
const (
	// AuthFlavorNone is AUTH_NONE (also AUTH_NULL): no authentication.
	AuthFlavorNone = 0

	// AuthFlavorSys is AUTH_SYS (also AUTH_UNIX): uid, gid and groups.
	AuthFlavorSys = 1
)

// Record marking (RFC 5531 Section 11).
const (
	// LastFragment is the top bit of the record mark, set on the final
	// fragment of a record.
	LastFragment = 0x80000000

	// FragmentSizeMask extracts the fragment length from a record mark.
	FragmentSizeMask = 0x7fffffff
)

// callHeaderFixedSize is the byte size of the call header excluding the
// credential and verifier bodies: record mark, xid, message type, rpc
// version, program, version, procedure, and the flavor and length words of
// both the credential and the verifier. Eleven 4-byte words in total.
const callHeaderFixedSize = 11 * 4

// Limits from RFC 5531 Section 14 (authsys_parms).
const (
	// MaxMachineNameLength bounds the AUTH_SYS machine name.
	MaxMachineNameLength = 255

	// MaxAuxGIDs bounds the AUTH_SYS supplementary group list.
	MaxAuxGIDs = 16

	// MaxAuthBodyLength bounds any opaque_auth body.
	MaxAuthBodyLength = 400
)
