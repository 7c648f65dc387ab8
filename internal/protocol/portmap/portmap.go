// Package portmap implements the client side of PORTMAP version 2
// (RFC 1833 Section 3), used to discover the TCP port of an RPC program.
package portmap

import (
	"errors"
	"fmt"

	"github.com/marmos91/nfsfetch/internal/protocol/rpc"
)

// PORTMAP program identifiers.
const (
	// Program is the port mapper program number.
	Program = 100000

	// Version is the port mapper version used by this client.
	Version = 2

	// Port is the well-known port mapper port.
	Port = 111
)

// Portmap Procedure Numbers
const (
	// PmapProcNull - Do nothing (connectivity test)
	PmapProcNull = 0

	// PmapProcGetPort - Look up the port of a program
	PmapProcGetPort = 3
)

// Transport protocol numbers used in a mapping.
const (
	ProtocolTCP = 6
	ProtocolUDP = 17
)

// ErrNotRegistered is returned when the server reports port 0, meaning the
// program is not registered.
var ErrNotRegistered = errors.New("portmap: program not registered")

// Mapping is the PORTMAP mapping structure.
//
// Wire format: [prog:uint32][vers:uint32][prot:uint32][port:uint32]
type Mapping struct {
	Program  uint32
	Version  uint32
	Protocol uint32
	Port     uint32
}

// mappingSize is the wire size of Mapping.
const mappingSize = 16

// NewSession opens a PORTMAP session. The port mapper needs no
// authentication, so credential and verifier are both AUTH_NONE.
func NewSession(transport rpc.Transport, opts ...rpc.Option) *rpc.Session {
	opts = append([]rpc.Option{rpc.WithName("portmap")}, opts...)
	return rpc.Open(transport, rpc.AuthNone{}, rpc.AuthNone{}, Program, Version, opts...)
}

// GetPort calls PMAPPROC_GETPORT for program/version over protocol
// (ProtocolTCP or ProtocolUDP). The port field of the request is zero.
func GetPort(s *rpc.Session, program, version, protocol uint32, handler rpc.ReplyHandler) error {
	payload := s.NewPayload(mappingSize)
	if _, err := payload.Marshal(&Mapping{Program: program, Version: version, Protocol: protocol}); err != nil {
		return err
	}
	return s.Call(PmapProcGetPort, payload, handler)
}

// ParseGetPortReply decodes a GETPORT reply.
//
// Returns ErrNotRegistered for port 0 and an error for values that do not fit
// a TCP/UDP port.
func ParseGetPortReply(reply *rpc.Reply) (uint16, error) {
	if err := reply.Err(); err != nil {
		return 0, err
	}

	port, err := reply.Data.GetUint32()
	if err != nil {
		return 0, fmt.Errorf("GETPORT: read port: %w", err)
	}
	if port == 0 {
		return 0, ErrNotRegistered
	}
	if port > 0xffff {
		return 0, fmt.Errorf("GETPORT: port %d out of range", port)
	}
	return uint16(port), nil
}
