// Package fetch downloads a file from an NFSv3 server into a sink.
//
// A fetch resolves the MOUNT and NFS ports through the port mapper, mounts
// the export, looks the file up and reads it with a pipelined READ loop:
//
//	PORTMAP GETPORT(mount) + GETPORT(nfs)
//	  -> MNT(mountpoint) -> LOOKUP(filename)
//	  -> READ, READ, ... until EOF
//	  -> UMNT -> Commit
//
// All RPC sessions of a fetch run on one transport.Loop. Any failure closes
// every session and ends the fetch with that error.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/nfsfetch/internal/logger"
	"github.com/marmos91/nfsfetch/internal/protocol/rpc"
	"github.com/marmos91/nfsfetch/pkg/metrics"
	"github.com/marmos91/nfsfetch/pkg/sink"
	"github.com/marmos91/nfsfetch/pkg/transport"
)

// Defaults used for zero Options fields.
const (
	DefaultHostname         = "iPXE"
	DefaultReadSize         = 1300
	DefaultMaxReadsInFlight = 8
	DefaultPortmapPort      = 111
)

// ErrShortRead is returned when the server returns no data before EOF.
var ErrShortRead = errors.New("fetch: server returned no data before end of file")

// Options configures a Fetcher.
type Options struct {
	// Hostname is the AUTH_SYS machine name. Empty selects DefaultHostname.
	Hostname string

	// UID and GID are the AUTH_SYS identity.
	UID uint32
	GID uint32

	// AuxGIDs are supplementary groups sent with AUTH_SYS.
	AuxGIDs []uint32

	// ReadSize is the byte count of each READ call. Zero selects
	// DefaultReadSize.
	ReadSize uint32

	// MaxReadsInFlight bounds outstanding READ calls. Zero selects
	// DefaultMaxReadsInFlight.
	MaxReadsInFlight int

	// PortmapPort is used when the URL has no port. Zero selects
	// DefaultPortmapPort.
	PortmapPort uint16

	// Transport configures every connection of a fetch.
	Transport transport.Options

	// SinkType labels fetch metrics.
	SinkType string

	// RPCMetrics and FetchMetrics default to no-op implementations.
	RPCMetrics   metrics.RPCMetrics
	FetchMetrics metrics.FetchMetrics
}

// Result summarizes a completed fetch.
type Result struct {
	// RequestID identifies the fetch in log lines.
	RequestID string

	// URL is the parsed source.
	URL *URL

	// Size is the file size reported by the server, or the bytes received
	// when the server sent no attributes.
	Size uint64

	// Bytes is the number of data bytes written to the sink.
	Bytes uint64

	// MountPort and NFSPort are the ports resolved through the port mapper.
	MountPort uint16
	NFSPort   uint16

	// Duration is the time from start to commit.
	Duration time.Duration
}

// Fetcher downloads files from NFS servers. A Fetcher holds only
// configuration and may run several fetches concurrently; each fetch has its
// own loop and connections.
type Fetcher struct {
	opts Options
	cred *rpc.AuthSys
}

// New validates opts and returns a Fetcher.
//
// Returns an error if the AUTH_SYS credential cannot be built (hostname too
// long, too many groups).
func New(opts Options) (*Fetcher, error) {
	if opts.Hostname == "" {
		opts.Hostname = DefaultHostname
	}
	if opts.ReadSize == 0 {
		opts.ReadSize = DefaultReadSize
	}
	if opts.MaxReadsInFlight <= 0 {
		opts.MaxReadsInFlight = DefaultMaxReadsInFlight
	}
	if opts.PortmapPort == 0 {
		opts.PortmapPort = DefaultPortmapPort
	}
	if opts.SinkType == "" {
		opts.SinkType = "unknown"
	}
	if opts.RPCMetrics == nil {
		opts.RPCMetrics = metrics.NewNoopRPCMetrics()
	}
	if opts.FetchMetrics == nil {
		opts.FetchMetrics = metrics.NewNoopFetchMetrics()
	}

	cred, err := rpc.NewAuthSys(opts.UID, opts.GID, opts.Hostname, opts.AuxGIDs...)
	if err != nil {
		return nil, fmt.Errorf("fetch: build credential: %w", err)
	}

	return &Fetcher{opts: opts, cred: cred}, nil
}

// Fetch downloads the file named by rawURL into dst and commits it.
//
// dst is not closed; the caller owns it and must Close it, which discards
// the data if the fetch failed.
//
// Context Cancellation:
// Cancelling ctx aborts the fetch, closes every connection and returns
// ctx.Err().
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, dst sink.Sink) (*Result, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if u.PortmapPort == 0 {
		u.PortmapPort = f.opts.PortmapPort
	}

	start := time.Now()
	op := newOperation(ctx, f, u, dst)

	logger.Info("fetch %s: %s", op.id, u)
	op.loop.Post(op.start)
	err = op.loop.Run(ctx)
	op.shutdown(err)

	res := &Result{
		RequestID: op.id,
		URL:       u,
		Size:      op.size,
		Bytes:     op.written,
		MountPort: op.mountPort,
		NFSPort:   op.nfsPort,
		Duration:  time.Since(start),
	}
	f.opts.FetchMetrics.RecordFetch(f.opts.SinkType, err, res.Bytes, res.Duration)

	if err != nil {
		logger.Warn("fetch %s: failed after %v: %v", op.id, res.Duration, err)
		return res, err
	}
	logger.Info("fetch %s: %d bytes in %v", op.id, res.Bytes, res.Duration.Round(time.Millisecond))
	return res, nil
}

// newRequestID returns a short id for log correlation.
func newRequestID() string {
	return uuid.NewString()[:8]
}
