package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/marmos91/nfsfetch/internal/logger"
	"github.com/marmos91/nfsfetch/internal/protocol/rpc"
	"github.com/marmos91/nfsfetch/internal/ratelimiter"
)

var (
	// ErrNotConnected is returned by Send before the connection is up or
	// after it has closed.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrWindowExceeded is returned by Send for a message larger than the
	// current send window.
	ErrWindowExceeded = errors.New("transport: message exceeds send window")

	// ErrFragmentedRecord is reported when the peer sends a record split
	// across several fragments.
	ErrFragmentedRecord = errors.New("transport: multi-fragment records are not supported")

	// ErrRecordTooLarge is reported when a record exceeds MaxRecordSize.
	ErrRecordTooLarge = errors.New("transport: record too large")
)

// Options configures a Conn.
type Options struct {
	// ConnectTimeout bounds the TCP dial. Zero means no timeout.
	ConnectTimeout time.Duration

	// WriteTimeout bounds each Send. Zero means no deadline.
	WriteTimeout time.Duration

	// WindowBytes is the send window capacity. Zero means unbounded.
	WindowBytes uint

	// BytesPerSecond is the window refill rate. Zero means no throttling.
	BytesPerSecond uint

	// MaxRecordSize bounds inbound records. Zero selects DefaultMaxRecordSize.
	MaxRecordSize uint32

	// Dial overrides the dialer, mainly for tests.
	Dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// DefaultMaxRecordSize bounds inbound records when Options.MaxRecordSize is 0.
const DefaultMaxRecordSize = 1 << 20

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateOpen
	stateClosed
)

// Conn is a TCP connection carrying ONC RPC records.
//
// It implements rpc.Transport. All methods except NewConn must be called
// from the loop goroutine; the dialer and reader goroutines report back
// through Loop.Post.
type Conn struct {
	loop    *Loop
	opts    Options
	handler rpc.Handler
	name    string

	state  connState
	conn   net.Conn
	budget *ratelimiter.Budget
	refill *time.Timer
}

// NewConn creates an idle connection bound to loop.
func NewConn(loop *Loop, opts Options) *Conn {
	if opts.MaxRecordSize == 0 {
		opts.MaxRecordSize = DefaultMaxRecordSize
	}
	if opts.Dial == nil {
		d := &net.Dialer{}
		opts.Dial = d.DialContext
	}
	return &Conn{
		loop:   loop,
		opts:   opts,
		budget: ratelimiter.New(opts.BytesPerSecond, opts.WindowBytes),
	}
}

// Connect starts dialing host:port in the background and returns at once.
//
// Until the dial completes SendWindow reports 0, so calls issued in the
// meantime are queued by the session. On success the handler sees
// WindowOpened; on failure it sees TransportClosed with the dial error.
func (c *Conn) Connect(ctx context.Context, host string, port uint16, handler rpc.Handler) error {
	if c.state != stateIdle {
		return fmt.Errorf("transport: connect called twice")
	}
	c.handler = handler
	c.state = stateConnecting
	c.name = net.JoinHostPort(host, strconv.Itoa(int(port)))

	address := c.name
	go func() {
		dialCtx := ctx
		if c.opts.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
			defer cancel()
		}

		conn, err := c.opts.Dial(dialCtx, "tcp", address)
		if !c.loop.Post(func() { c.connected(conn, err) }) && conn != nil {
			_ = conn.Close()
		}
	}()

	logger.Debug("transport: connecting to %s", address)
	return nil
}

func (c *Conn) connected(conn net.Conn, err error) {
	if c.state != stateConnecting {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.fail(&rpc.TransportError{Op: "connect", Err: err})
		return
	}

	c.conn = conn
	c.state = stateOpen
	logger.Debug("transport: connected to %s", c.name)

	go c.readLoop(conn)
	c.handler.WindowOpened()
}

// readLoop reads records and posts each one to the loop.
func (c *Conn) readLoop(conn net.Conn) {
	for {
		record, err := c.readRecord(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = &rpc.TransportError{Op: "read", Err: io.EOF}
			}
			c.loop.Post(func() { c.fail(err) })
			return
		}
		if !c.loop.Post(func() { c.deliver(record) }) {
			_ = conn.Close()
			return
		}
	}
}

// readRecord reads one single-fragment record, mark included.
func (c *Conn) readRecord(r io.Reader) ([]byte, error) {
	var mark [4]byte
	if _, err := io.ReadFull(r, mark[:]); err != nil {
		return nil, err
	}

	header := binary.BigEndian.Uint32(mark[:])
	if header&rpc.LastFragment == 0 {
		return nil, ErrFragmentedRecord
	}
	size := header & rpc.FragmentSizeMask
	if size > c.opts.MaxRecordSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrRecordTooLarge, size, c.opts.MaxRecordSize)
	}

	record := make([]byte, 4+int(size))
	copy(record, mark[:])
	if _, err := io.ReadFull(r, record[4:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &rpc.TransportError{Op: "read", Err: err}
	}
	return record, nil
}

func (c *Conn) deliver(record []byte) {
	if c.state != stateOpen {
		return
	}
	if err := c.handler.Deliver(record); err != nil {
		logger.Debug("transport: %s: delivery failed: %v", c.name, err)
	}
}

// Send implements rpc.Transport. The whole message is written or an error
// is returned; the message must fit SendWindow.
func (c *Conn) Send(data []byte) error {
	if c.state != stateOpen {
		return ErrNotConnected
	}
	if !c.budget.Consume(len(data)) {
		return ErrWindowExceeded
	}

	if c.opts.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	if _, err := c.conn.Write(data); err != nil {
		return err
	}
	return nil
}

// SendWindow implements rpc.Transport.
func (c *Conn) SendWindow() int {
	if c.state != stateOpen {
		return 0
	}
	available := c.budget.Available()
	if available > math.MaxInt32 {
		return math.MaxInt32
	}
	return available
}

// NotifyWindow implements rpc.WindowNotifier. A refill timer is armed so the
// handler sees WindowOpened once n bytes are available. While connecting it
// does nothing: a successful connect raises WindowOpened by itself.
func (c *Conn) NotifyWindow(n int) {
	if c.state != stateOpen {
		return
	}
	c.armRefill(n)
}

func (c *Conn) armRefill(want int) {
	if c.refill != nil {
		return
	}
	wait := c.budget.Until(want)
	if wait < 0 {
		return
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	c.refill = time.AfterFunc(wait, func() {
		c.loop.Post(func() {
			c.refill = nil
			if c.state == stateOpen {
				c.handler.WindowOpened()
			}
		})
	})
}

// Close implements rpc.Transport. It does not call back into the handler.
func (c *Conn) Close(reason error) {
	if c.state == stateClosed {
		return
	}
	c.shutdown()
	if reason != nil {
		logger.Debug("transport: %s closed: %v", c.name, reason)
	}
}

// fail closes the connection and notifies the handler.
func (c *Conn) fail(err error) {
	if c.state == stateClosed {
		return
	}
	c.shutdown()
	logger.Debug("transport: %s failed: %v", c.name, err)
	c.handler.TransportClosed(err)
}

func (c *Conn) shutdown() {
	c.state = stateClosed
	if c.refill != nil {
		c.refill.Stop()
		c.refill = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
