package fetch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfsfetch/internal/protocol/mount"
	"github.com/marmos91/nfsfetch/internal/protocol/nfs"
	"github.com/marmos91/nfsfetch/internal/protocol/portmap"
	"github.com/marmos91/nfsfetch/internal/protocol/rpc"
	"github.com/marmos91/nfsfetch/internal/protocol/rpc/rpctest"
	"github.com/marmos91/nfsfetch/internal/protocol/xdr"
)

// ============================================================================
// Fake NFS server
// ============================================================================

var (
	rootHandle = nfs.FileHandle{0, 0, 0, 1}
	fileHandle = nfs.FileHandle{0, 0, 0, 2, 0xca, 0xfe}
)

// fakeNFS serves one file from one export over three loopback listeners:
// port mapper, MOUNT and NFS.
type fakeNFS struct {
	export   string
	filename string
	content  []byte

	// Behaviour switches
	mountStatus     uint32
	lookupStatus    uint32
	fileType        uint32
	omitAttributes  bool
	maxReadBytes    uint32 // 0 means serve the full count
	dropReads       bool
	unregisterMount bool

	portmap *rpctest.Server
	mount   *rpctest.Server
	nfs     *rpctest.Server

	mu    sync.Mutex
	reads []readCall
}

type readCall struct {
	offset uint64
	count  uint32
}

func newFakeNFS(t *testing.T, content []byte) *fakeNFS {
	t.Helper()
	return &fakeNFS{
		export:   "/export/boot",
		filename: "vmlinuz",
		content:  content,
		fileType: nfs.FileTypeRegular,
	}
}

// start launches the listeners. Call it after setting behaviour switches.
func (f *fakeNFS) start(t *testing.T) {
	t.Helper()
	var err error

	f.mount, err = rpctest.NewServer(f.serveMount)
	require.NoError(t, err)
	t.Cleanup(f.mount.Close)

	f.nfs, err = rpctest.NewServer(f.serveNFS)
	require.NoError(t, err)
	t.Cleanup(f.nfs.Close)

	f.portmap, err = rpctest.NewServer(f.servePortmap)
	require.NoError(t, err)
	t.Cleanup(f.portmap.Close)
}

func (f *fakeNFS) url() string {
	return (&URL{
		Host:        "127.0.0.1",
		PortmapPort: f.portmap.Port(),
		MountPoint:  f.export,
		Filename:    f.filename,
	}).String()
}

func (f *fakeNFS) readCalls() []readCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]readCall(nil), f.reads...)
}

func (f *fakeNFS) servePortmap(call *rpctest.Call) []byte {
	if call.Program != portmap.Program || call.Procedure != portmap.PmapProcGetPort {
		return rpctest.ReplyWithStatus(call.XID, rpc.RPCProcUnavail, nil)
	}

	var m portmap.Mapping
	if err := call.Args.Unmarshal(&m); err != nil {
		return rpctest.ReplyWithStatus(call.XID, rpc.RPCGarbageArgs, nil)
	}

	var port uint32
	switch {
	case m.Program == mount.Program && m.Protocol == portmap.ProtocolTCP && !f.unregisterMount:
		port = uint32(f.mount.Port())
	case m.Program == nfs.Program && m.Protocol == portmap.ProtocolTCP:
		port = uint32(f.nfs.Port())
	}

	body := xdr.NewBuffer(0, 4)
	body.PutUint32(port)
	return rpctest.Reply(call.XID, body.Bytes())
}

func (f *fakeNFS) serveMount(call *rpctest.Call) []byte {
	switch call.Procedure {
	case mount.MountProcMnt:
		path, err := call.Args.GetString()
		if err != nil {
			return rpctest.ReplyWithStatus(call.XID, rpc.RPCGarbageArgs, nil)
		}

		b := xdr.NewBuffer(0, 32)
		switch {
		case f.mountStatus != mount.MountOK:
			b.PutUint32(f.mountStatus)
		case path != f.export:
			b.PutUint32(mount.MountErrNoEnt)
		default:
			b.PutUint32(mount.MountOK)
			rootHandle.Put(b)
			b.PutUint32Array([]uint32{rpc.AuthFlavorSys})
		}
		return rpctest.Reply(call.XID, b.Bytes())

	case mount.MountProcUmnt:
		return rpctest.Reply(call.XID, nil)
	}
	return rpctest.ReplyWithStatus(call.XID, rpc.RPCProcUnavail, nil)
}

func (f *fakeNFS) serveNFS(call *rpctest.Call) []byte {
	switch call.Procedure {
	case nfs.NFSProcLookup:
		return f.lookup(call)
	case nfs.NFSProcRead:
		return f.read(call)
	}
	return rpctest.ReplyWithStatus(call.XID, rpc.RPCProcUnavail, nil)
}

func (f *fakeNFS) lookup(call *rpctest.Call) []byte {
	dir, err := nfs.GetFileHandle(call.Args)
	if err != nil {
		return rpctest.ReplyWithStatus(call.XID, rpc.RPCGarbageArgs, nil)
	}
	name, err := call.Args.GetString()
	if err != nil {
		return rpctest.ReplyWithStatus(call.XID, rpc.RPCGarbageArgs, nil)
	}

	b := xdr.NewBuffer(0, 256)
	switch {
	case f.lookupStatus != nfs.NFS3OK:
		b.PutUint32(f.lookupStatus)
		b.PutUint32(0) // dir attributes
	case string(dir) != string(rootHandle) || name != f.filename:
		b.PutUint32(nfs.NFS3ErrNoEnt)
		b.PutUint32(0)
	default:
		b.PutUint32(nfs.NFS3OK)
		fileHandle.Put(b)
		f.putAttributes(b)
		b.PutUint32(0)
	}
	return rpctest.Reply(call.XID, b.Bytes())
}

func (f *fakeNFS) read(call *rpctest.Call) []byte {
	fh, err := nfs.GetFileHandle(call.Args)
	if err != nil {
		return rpctest.ReplyWithStatus(call.XID, rpc.RPCGarbageArgs, nil)
	}
	offset, err := call.Args.GetUint64()
	if err != nil {
		return rpctest.ReplyWithStatus(call.XID, rpc.RPCGarbageArgs, nil)
	}
	count, err := call.Args.GetUint32()
	if err != nil {
		return rpctest.ReplyWithStatus(call.XID, rpc.RPCGarbageArgs, nil)
	}

	f.mu.Lock()
	f.reads = append(f.reads, readCall{offset: offset, count: count})
	f.mu.Unlock()

	if f.dropReads {
		return nil
	}

	b := xdr.NewBuffer(0, 128+int(count))
	if string(fh) != string(fileHandle) {
		b.PutUint32(nfs.NFS3ErrStale)
		b.PutUint32(0)
		return rpctest.Reply(call.XID, b.Bytes())
	}

	if f.maxReadBytes > 0 {
		count = min(count, f.maxReadBytes)
	}
	size := uint64(len(f.content))
	start := min(offset, size)
	end := min(offset+uint64(count), size)

	b.PutUint32(nfs.NFS3OK)
	f.putAttributes(b)
	b.PutUint32(uint32(end - start))
	if end == size {
		b.PutUint32(1)
	} else {
		b.PutUint32(0)
	}
	b.PutOpaque(f.content[start:end])
	return rpctest.Reply(call.XID, b.Bytes())
}

// putAttributes writes a post_op_attr for the served file.
func (f *fakeNFS) putAttributes(b *xdr.Buffer) {
	if f.omitAttributes {
		b.PutUint32(0)
		return
	}
	b.PutUint32(1)
	_, _ = b.Marshal(&nfs.FileAttr{
		Type:   f.fileType,
		Mode:   0644,
		Nlink:  1,
		Size:   uint64(len(f.content)),
		Used:   uint64(len(f.content)),
		Fileid: 2,
	})
}
