package control

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// connection wraps a single upgraded websocket, trimmed from the teacher's
// protocol/websocket.Connection down to exactly what a transport-only
// broadcast endpoint needs: no compression, no metadata groups, no message
// framing beyond JSON text frames.
type connection struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  int32

	writeDeadline time.Duration
}

func newConnection(conn *websocket.Conn, writeDeadline time.Duration) *connection {
	return &connection{
		id:            uuid.New().String(),
		conn:          conn,
		writeDeadline: writeDeadline,
	}
}

func (c *connection) ID() string {
	return c.id
}

func (c *connection) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// send writes a pre-serialized JSON frame with a bounded deadline. The
// spec requires broadcast to never block dispatch on a slow client; the
// deadline is how that bound is enforced at the transport layer.
func (c *connection) send(data []byte) error {
	if c.IsClosed() {
		return errors.New("connection is closed")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeDeadline > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeDeadline))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "write failed")
	}
	return nil
}

func (c *connection) readJSON(v any) error {
	return c.conn.ReadJSON(v)
}

func (c *connection) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.writeMu.Lock()
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing")
	_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
