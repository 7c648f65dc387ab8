package fetch

import (
	"context"
	"fmt"

	"github.com/marmos91/nfsfetch/internal/logger"
	"github.com/marmos91/nfsfetch/internal/protocol/mount"
	"github.com/marmos91/nfsfetch/internal/protocol/nfs"
	"github.com/marmos91/nfsfetch/internal/protocol/portmap"
	"github.com/marmos91/nfsfetch/internal/protocol/rpc"
	"github.com/marmos91/nfsfetch/pkg/sink"
	"github.com/marmos91/nfsfetch/pkg/transport"
)

// operation is the state of one fetch. Every method runs on op.loop.
type operation struct {
	ctx  context.Context
	f    *Fetcher
	url  *URL
	dst  sink.Sink
	id   string
	loop *transport.Loop

	pmapSession  *rpc.Session
	mountSession *rpc.Session
	nfsSession   *rpc.Session

	mountPort uint16
	nfsPort   uint16
	file      nfs.FileHandle

	// sized is set once the server reported the file size.
	sized bool
	size  uint64

	// nextOffset is where the next new READ starts; end is the highest
	// byte received so far.
	nextOffset uint64
	end        uint64
	inFlight   int
	eof        bool
	written    uint64

	done bool
}

func newOperation(ctx context.Context, f *Fetcher, u *URL, dst sink.Sink) *operation {
	return &operation{
		ctx:  ctx,
		f:    f,
		url:  u,
		dst:  dst,
		id:   newRequestID(),
		loop: transport.NewLoop(),
	}
}

// sessionFactory opens a protocol session over a transport.
type sessionFactory func(t rpc.Transport, opts ...rpc.Option) *rpc.Session

// open connects a new session to port on the server. It returns nil after
// failing the operation if the connection cannot be started.
func (op *operation) open(name string, port uint16, newSession sessionFactory) *rpc.Session {
	conn := transport.NewConn(op.loop, op.f.opts.Transport)
	s := newSession(conn,
		rpc.WithName(op.id+"/"+name),
		rpc.WithMetrics(op.f.opts.RPCMetrics),
		rpc.WithCloseHandler(func(reason error) {
			if reason != nil {
				op.fail(fmt.Errorf("%s session: %w", name, reason))
			}
		}),
	)
	if err := conn.Connect(op.ctx, op.url.Host, port, s); err != nil {
		op.fail(err)
		return nil
	}
	return s
}

// fail ends the fetch with err. Only the first failure counts.
func (op *operation) fail(err error) {
	if op.done {
		return
	}
	op.done = true
	op.loop.Stop(err)
}

// shutdown closes every session once the loop has stopped.
func (op *operation) shutdown(err error) {
	for _, s := range []*rpc.Session{op.pmapSession, op.mountSession, op.nfsSession} {
		if s != nil {
			s.Close(err)
		}
	}
}

// ============================================================================
// Step 1: resolve ports
// ============================================================================

func (op *operation) start() {
	op.pmapSession = op.open("portmap", op.url.PortmapPort, func(t rpc.Transport, opts ...rpc.Option) *rpc.Session {
		return portmap.NewSession(t, opts...)
	})
	if op.pmapSession == nil {
		return
	}

	// Both queries go out back to back on the same connection
	if err := portmap.GetPort(op.pmapSession, mount.Program, mount.Version, portmap.ProtocolTCP, op.onMountPort); err != nil {
		op.fail(err)
		return
	}
	if err := portmap.GetPort(op.pmapSession, nfs.Program, nfs.Version, portmap.ProtocolTCP, op.onNFSPort); err != nil {
		op.fail(err)
	}
}

func (op *operation) onMountPort(_ *rpc.Session, reply *rpc.Reply) error {
	if op.done {
		return nil
	}
	port, err := portmap.ParseGetPortReply(reply)
	if err != nil {
		err = fmt.Errorf("GETPORT mount: %w", err)
		op.fail(err)
		return err
	}
	op.mountPort = port
	logger.Debug("fetch %s: mount v%d at port %d", op.id, mount.Version, port)
	op.portsResolved()
	return nil
}

func (op *operation) onNFSPort(_ *rpc.Session, reply *rpc.Reply) error {
	if op.done {
		return nil
	}
	port, err := portmap.ParseGetPortReply(reply)
	if err != nil {
		err = fmt.Errorf("GETPORT nfs: %w", err)
		op.fail(err)
		return err
	}
	op.nfsPort = port
	logger.Debug("fetch %s: nfs v%d at port %d", op.id, nfs.Version, port)
	op.portsResolved()
	return nil
}

// ============================================================================
// Step 2: mount and look up
// ============================================================================

// portsResolved opens the MOUNT and NFS sessions once both ports are known.
func (op *operation) portsResolved() {
	if op.mountPort == 0 || op.nfsPort == 0 {
		return
	}
	op.pmapSession.Close(nil)

	cred := op.f.cred
	op.mountSession = op.open("mount", op.mountPort, func(t rpc.Transport, opts ...rpc.Option) *rpc.Session {
		return mount.NewSession(t, cred, opts...)
	})
	if op.mountSession == nil {
		return
	}
	op.nfsSession = op.open("nfs", op.nfsPort, func(t rpc.Transport, opts ...rpc.Option) *rpc.Session {
		return nfs.NewSession(t, cred, opts...)
	})
	if op.nfsSession == nil {
		return
	}

	if err := mount.Mnt(op.mountSession, op.url.MountPoint, op.onMnt); err != nil {
		op.fail(err)
	}
}

func (op *operation) onMnt(_ *rpc.Session, reply *rpc.Reply) error {
	if op.done {
		return nil
	}
	res, err := mount.ParseMntReply(reply)
	if err != nil {
		err = fmt.Errorf("mount %s: %w", op.url.MountPoint, err)
		op.fail(err)
		return err
	}
	logger.Debug("fetch %s: mounted %s (root %s)", op.id, op.url.MountPoint, res.Handle)

	if err := nfs.Lookup(op.nfsSession, res.Handle, op.url.Filename, op.onLookup); err != nil {
		op.fail(err)
		return err
	}
	return nil
}

func (op *operation) onLookup(_ *rpc.Session, reply *rpc.Reply) error {
	if op.done {
		return nil
	}
	res, err := nfs.ParseLookupReply(reply)
	if err != nil {
		err = fmt.Errorf("lookup %s: %w", op.url.Filename, err)
		op.fail(err)
		return err
	}
	op.file = res.Handle

	if attr := res.Attributes; attr != nil {
		if attr.Type == nfs.FileTypeDirectory {
			err := fmt.Errorf("lookup %s: %w", op.url.Filename, nfs.ErrIsDir)
			op.fail(err)
			return err
		}
		if err := op.setSize(attr.Size); err != nil {
			return err
		}
	}

	op.readMore()
	return nil
}

// setSize records the file size and sizes the sink, the first time only.
func (op *operation) setSize(size uint64) error {
	if op.sized {
		return nil
	}
	if err := op.dst.Truncate(op.ctx, size); err != nil {
		err = fmt.Errorf("size sink to %d bytes: %w", size, err)
		op.fail(err)
		return err
	}
	op.sized = true
	op.size = size
	logger.Debug("fetch %s: file size %d", op.id, size)
	return nil
}

// ============================================================================
// Step 3: read
// ============================================================================

// readMore keeps up to MaxReadsInFlight READ calls outstanding. Past the
// known file size only one probe READ is issued at a time, to confirm EOF.
func (op *operation) readMore() {
	readSize := op.f.opts.ReadSize
	for !op.done && !op.eof && op.inFlight < op.f.opts.MaxReadsInFlight {
		if op.sized && op.nextOffset >= op.size && op.inFlight > 0 {
			break
		}
		if !op.issueRead(op.nextOffset, readSize) {
			return
		}
		op.nextOffset += uint64(readSize)
	}
}

func (op *operation) issueRead(offset uint64, count uint32) bool {
	err := nfs.Read(op.nfsSession, op.file, offset, count, func(_ *rpc.Session, reply *rpc.Reply) error {
		return op.onRead(offset, count, reply)
	})
	if err != nil {
		op.fail(err)
		return false
	}
	op.inFlight++
	op.f.opts.FetchMetrics.SetReadsInFlight(op.inFlight)
	return true
}

func (op *operation) onRead(offset uint64, count uint32, reply *rpc.Reply) error {
	if op.done {
		return nil
	}
	op.inFlight--
	op.f.opts.FetchMetrics.SetReadsInFlight(op.inFlight)

	res, err := nfs.ParseReadReply(reply)
	if err != nil {
		err = fmt.Errorf("read at %d: %w", offset, err)
		op.fail(err)
		return err
	}
	op.f.opts.FetchMetrics.RecordRead(len(res.Data))

	if res.Count > count {
		err := fmt.Errorf("read at %d: %w: %d bytes returned for %d requested",
			offset, rpc.ErrProtocolViolation, res.Count, count)
		op.fail(err)
		return err
	}
	if res.Attributes != nil {
		if err := op.setSize(res.Attributes.Size); err != nil {
			return err
		}
	}

	if len(res.Data) > 0 {
		if err := op.dst.WriteAt(op.ctx, res.Data, offset); err != nil {
			err = fmt.Errorf("write %d bytes at %d: %w", len(res.Data), offset, err)
			op.fail(err)
			return err
		}
		op.written += uint64(len(res.Data))
		op.end = max(op.end, offset+uint64(res.Count))
	}

	switch {
	case res.EOF:
		op.eof = true
	case res.Count == 0:
		err := fmt.Errorf("read at %d: %w", offset, ErrShortRead)
		op.fail(err)
		return err
	case res.Count < count:
		// Short read: ask again for the rest of this range
		if !op.issueRead(offset+uint64(res.Count), count-res.Count) {
			return nil
		}
	}

	if op.eof && op.inFlight == 0 {
		op.finish()
		return nil
	}
	op.readMore()
	return nil
}

// ============================================================================
// Step 4: unmount and commit
// ============================================================================

func (op *operation) finish() {
	if !op.sized {
		op.size = op.end
	}
	op.nfsSession.Close(nil)

	if err := mount.Umnt(op.mountSession, op.url.MountPoint, op.onUmnt); err != nil {
		op.fail(err)
	}
}

func (op *operation) onUmnt(_ *rpc.Session, reply *rpc.Reply) error {
	if op.done {
		return nil
	}
	// The data is complete; a failed UMNT only leaves a stale entry in the
	// server's mount list.
	if err := mount.ParseUmntReply(reply); err != nil {
		logger.Warn("fetch %s: unmount %s: %v", op.id, op.url.MountPoint, err)
	}
	op.mountSession.Close(nil)

	if err := op.dst.Commit(op.ctx); err != nil {
		err = fmt.Errorf("commit: %w", err)
		op.fail(err)
		return err
	}

	op.done = true
	op.loop.Stop(nil)
	return nil
}
