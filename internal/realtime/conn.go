package realtime

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
)

// sendBufferSize bounds the frames queued for one viewer. A viewer that falls
// this far behind is disconnected.
const sendBufferSize = 32

// wsConn adapts an upgraded WebSocket to Conn. Send only queues the frame;
// writeLoop drains the queue so a stalled peer never blocks the broadcaster.
// Socket writes are serialized so queued frames and control replies never
// interleave.
type wsConn struct {
	id           string
	conn         net.Conn
	writeTimeout time.Duration

	out  chan []byte
	done chan struct{}

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newWSConn(conn net.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
		out:          make(chan []byte, sendBufferSize),
		done:         make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(_ context.Context, payload []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	select {
	case c.out <- payload:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		c.markClosed()
		return ErrSlowConsumer
	}
}

// writeLoop writes queued frames until the connection closes or a write fails.
func (c *wsConn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.out:
			if err := c.write(payload); err != nil {
				c.markClosed()
				return
			}
		}
	}
}

func (c *wsConn) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return wsutil.WriteServerText(c.conn, payload)
}

// Close sends a normal closure frame when possible and releases the socket.
func (c *wsConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = ws.WriteFrame(c.conn, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// markClosed drops the socket without a close handshake. The blocked reader
// then returns and the handler unregisters the connection.
func (c *wsConn) markClosed() {
	if !c.closed.Swap(true) {
		close(c.done)
		_ = c.conn.Close()
	}
}

// reader exposes the socket to wsutil's reader. Control replies the reader
// writes (pong, close) go through the same write lock as queued frames.
func (c *wsConn) reader() io.ReadWriter { return lockedRW{c} }

type lockedRW struct{ c *wsConn }

func (rw lockedRW) Read(p []byte) (int, error) { return rw.c.conn.Read(p) }

func (rw lockedRW) Write(p []byte) (int, error) {
	rw.c.writeMu.Lock()
	defer rw.c.writeMu.Unlock()
	return rw.c.conn.Write(p)
}
