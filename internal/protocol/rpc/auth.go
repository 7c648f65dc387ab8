package rpc

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsfetch/internal/protocol/xdr"
)

// ============================================================================
// Credentials and Verifiers
// ============================================================================

// Credential is an RPC authentication block (opaque_auth).
//
// The same type is used for credentials and verifiers. Length reports the
// encoded body size including XDR padding; it is fixed when the credential is
// constructed and never changes afterwards, so a Session can size call
// headers without re-encoding.
type Credential interface {
	// Flavor returns the authentication flavor number.
	Flavor() uint32

	// Length returns the encoded body length in bytes.
	Length() int

	// putBody appends the body and returns the bytes written.
	putBody(b *xdr.Buffer) int
}

// EncodedSize returns the full wire size of cred: flavor, length and body.
func EncodedSize(cred Credential) int {
	return 8 + cred.Length()
}

// AuthNone is the AUTH_NONE flavor. It has an empty body.
type AuthNone struct{}

func (AuthNone) Flavor() uint32          { return AuthFlavorNone }
func (AuthNone) Length() int             { return 0 }
func (AuthNone) putBody(*xdr.Buffer) int { return 0 }
func (AuthNone) String() string          { return "AUTH_NONE" }

// AuthSys is the AUTH_SYS flavor (RFC 5531 Section 14).
//
// Wire format of the body:
//
//	[stamp:uint32][machinename:string][uid:uint32][gid:uint32][gids:uint32<16>]
//
// Construct with NewAuthSys; the fields must not be modified afterwards.
type AuthSys struct {
	Stamp    uint32
	Hostname string
	UID      uint32
	GID      uint32
	AuxGIDs  []uint32

	length int
}

// NewAuthSys builds an AUTH_SYS credential with a zero stamp.
//
// Returns ErrInvalidArgument when hostname exceeds 255 bytes or more than 16
// supplementary groups are given.
func NewAuthSys(uid, gid uint32, hostname string, auxGIDs ...uint32) (*AuthSys, error) {
	if len(hostname) > MaxMachineNameLength {
		return nil, fmt.Errorf("%w: machine name length %d exceeds %d", ErrInvalidArgument, len(hostname), MaxMachineNameLength)
	}
	if len(auxGIDs) > MaxAuxGIDs {
		return nil, fmt.Errorf("%w: %d supplementary groups exceed %d", ErrInvalidArgument, len(auxGIDs), MaxAuxGIDs)
	}

	a := &AuthSys{
		Hostname: hostname,
		UID:      uid,
		GID:      gid,
		AuxGIDs:  append([]uint32(nil), auxGIDs...),
	}
	a.length = authSysLength(hostname, len(a.AuxGIDs))
	return a, nil
}

// authSysLength is stamp + name + uid + gid + count + groups.
func authSysLength(hostname string, aux int) int {
	return 4 + xdr.StringSize(hostname) + 4 + 4 + 4 + 4*aux
}

func (a *AuthSys) Flavor() uint32 { return AuthFlavorSys }
func (a *AuthSys) Length() int    { return a.length }

func (a *AuthSys) putBody(b *xdr.Buffer) int {
	n := b.PutUint32(a.Stamp)
	n += b.PutString(a.Hostname)
	n += b.PutUint32(a.UID)
	n += b.PutUint32(a.GID)
	n += b.PutUint32Array(a.AuxGIDs)
	return n
}

func (a *AuthSys) String() string {
	return fmt.Sprintf("AUTH_SYS{host=%s uid=%d gid=%d gids=%v}", a.Hostname, a.UID, a.GID, a.AuxGIDs)
}

// OpaqueAuth is an authentication block of a flavor this package does not
// interpret. Its body is kept verbatim, without padding.
type OpaqueAuth struct {
	AuthFlavor uint32
	Body       []byte
}

func (o *OpaqueAuth) Flavor() uint32 { return o.AuthFlavor }
func (o *OpaqueAuth) Length() int    { return xdr.Align4(len(o.Body)) }

func (o *OpaqueAuth) putBody(b *xdr.Buffer) int {
	p := b.Put(xdr.Align4(len(o.Body)))
	copy(p, o.Body)
	return len(p)
}

// PutCredential appends cred as an opaque_auth block and returns the bytes
// written, which always equals EncodedSize(cred).
func PutCredential(b *xdr.Buffer, cred Credential) int {
	n := b.PutUint32(cred.Flavor())
	n += b.PutUint32(uint32(cred.Length()))
	n += cred.putBody(b)
	return n
}

// GetCredential consumes an opaque_auth block.
//
// AUTH_NONE and AUTH_SYS bodies are decoded; any other flavor is returned as
// an *OpaqueAuth. The whole body and its padding are always consumed, so the
// buffer stays aligned for the next item.
func GetCredential(b *xdr.Buffer) (Credential, error) {
	flavor, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("read auth flavor: %w", err)
	}
	length, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("read auth length: %w", err)
	}
	if length > MaxAuthBodyLength {
		return nil, fmt.Errorf("%w: auth body length %d exceeds %d", ErrProtocolViolation, length, MaxAuthBodyLength)
	}
	raw, err := b.Pull(xdr.Align4(int(length)))
	if err != nil {
		return nil, fmt.Errorf("read auth body: %w", err)
	}
	body := raw[:length]

	switch flavor {
	case AuthFlavorNone:
		if length != 0 {
			return nil, fmt.Errorf("%w: AUTH_NONE with %d byte body", ErrProtocolViolation, length)
		}
		return AuthNone{}, nil

	case AuthFlavorSys:
		return parseAuthSys(body)

	default:
		return &OpaqueAuth{AuthFlavor: flavor, Body: bytes.Clone(body)}, nil
	}
}

// parseAuthSys decodes an AUTH_SYS body. Bytes left over after the group
// list mean the length field lied about the content.
func parseAuthSys(body []byte) (*AuthSys, error) {
	b := xdr.Wrap(bytes.Clone(body))

	stamp, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("read stamp: %w", err)
	}
	hostname, err := b.GetString()
	if err != nil {
		return nil, fmt.Errorf("read machine name: %w", err)
	}
	uid, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("read uid: %w", err)
	}
	gid, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("read gid: %w", err)
	}
	gids, err := b.GetUint32Array(MaxAuxGIDs)
	if err != nil {
		return nil, fmt.Errorf("read gids: %w", err)
	}
	if b.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in AUTH_SYS body", ErrProtocolViolation, b.Len())
	}

	a, err := NewAuthSys(uid, gid, hostname, gids...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	a.Stamp = stamp
	return a, nil
}
