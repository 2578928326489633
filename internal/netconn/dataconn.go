package netconn

import (
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/deskstream/deskstream/internal/buffer"
	"github.com/deskstream/deskstream/internal/handler"
)

// DataConn is the length-prefixed-by-convention binary channel (§4.4): it
// imposes no framing of its own, leaving that entirely to the caller (the
// encoded-frame protocol, §3). Writes are serialized the same way as
// MsgConn.
type DataConn struct {
	conn net.Conn

	sendCh chan *buffer.Buffer

	errHandlers *handler.Errs

	closeOnce sync.Once
	closed    chan struct{}

	onSent func(*buffer.Buffer) // invoked after a buffer is fully written
}

// NewDataConn wraps conn and starts its write-serialization goroutine.
// onSent, if non-nil, is called with each buffer after it is written,
// giving the caller (e.g. the streaming service) a hook to return it to a
// pool — the definitive "last user" of a sent buffer (§9).
func NewDataConn(conn net.Conn, onSent func(*buffer.Buffer)) *DataConn {
	c := &DataConn{
		conn:        conn,
		sendCh:      make(chan *buffer.Buffer, 64),
		errHandlers: handler.NewErrs(),
		closed:      make(chan struct{}),
		onSent:      onSent,
	}
	go c.writeLoop()
	return c
}

// RemoteAddr reports the peer address.
func (c *DataConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// AddErrorHandler registers an error handler at id.
func (c *DataConn) AddErrorHandler(id int, fn handler.ErrFunc) { c.errHandlers.Add(id, fn) }

// RemoveErrorHandler deregisters the error handler at id.
func (c *DataConn) RemoveErrorHandler(id int) { c.errHandlers.Remove(id) }

// Send enqueues buf for writing, preserving enqueue order on the wire.
func (c *DataConn) Send(buf *buffer.Buffer) error {
	select {
	case c.sendCh <- buf:
		return nil
	case <-c.closed:
		return errors.New("netconn: connection closed")
	}
}

func (c *DataConn) writeLoop() {
	for {
		select {
		case buf := <-c.sendCh:
			if err := c.writeAll(buf.Bytes()); err != nil {
				c.onError(errors.WithStack(err))
				return
			}
			if c.onSent != nil {
				c.onSent(buf)
			}
		case <-c.closed:
			return
		}
	}
}

// RecvExact reads exactly n bytes into buf, blocking until complete or an
// error occurs. Used to read the 15-byte frame header and then the exact
// payload (§4.4, §4.10).
func (c *DataConn) RecvExact(buf *buffer.Buffer, n int) error {
	buf.Resize(n)
	if _, err := io.ReadFull(c.conn, buf.Bytes()); err != nil {
		wrapped := errors.WithStack(err)
		c.onError(wrapped)
		return wrapped
	}
	return nil
}

// RecvSome reads at least minBytes into a freshly sized buffer and returns
// it. Used where the exact length isn't known up front (§4.4 recv_some).
func (c *DataConn) RecvSome(minBytes int) ([]byte, error) {
	buf := make([]byte, minBytes)
	n, err := io.ReadAtLeast(c.conn, buf, minBytes)
	if err != nil {
		wrapped := errors.WithStack(err)
		c.onError(wrapped)
		return nil, wrapped
	}
	return buf[:n], nil
}

func (c *DataConn) onError(err error) {
	c.errHandlers.Dispatch(err)
}

// writeAll writes p to the wire in full, looping over any short writes
// (net.Conn.Write is documented to do this itself, but we don't rely on
// every implementation honoring that).
func (c *DataConn) writeAll(p []byte) error {
	for len(p) > 0 {
		n, err := c.conn.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Close closes the underlying connection and stops the writer goroutine.
func (c *DataConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.conn.Close()
}
