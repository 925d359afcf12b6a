package transport

import (
	"net"
	"sync"

	"github.com/tablewire/tablewire-go/pkg/log"
	"github.com/tablewire/tablewire-go/pkg/session"
)

// Conn wraps a network connection with message framing. It satisfies
// session.Conn.
type Conn struct {
	nc        net.Conn
	reader    *FrameReader
	writer    *FrameWriter
	connID    string
	closeOnce sync.Once
	closeErr  error
}

var _ session.Conn = (*Conn)(nil)

// NewConn wraps nc with framing. maxSize 0 means the default; logger
// may be nil and then receives no frame events.
func NewConn(nc net.Conn, maxSize uint32, logger log.Logger, connID string) *Conn {
	return &Conn{
		nc:     nc,
		reader: NewFrameReader(nc, maxSize, logger, connID),
		writer: NewFrameWriter(nc, maxSize, logger, connID),
		connID: connID,
	}
}

// ConnID returns the connection identifier assigned at accept time.
func (c *Conn) ConnID() string {
	return c.connID
}

// ReadFrame reads the next inbound payload.
func (c *Conn) ReadFrame() ([]byte, error) {
	return c.reader.ReadFrame()
}

// WriteFrame writes one outbound payload.
func (c *Conn) WriteFrame(data []byte) error {
	return c.writer.WriteFrame(data)
}

// Close closes the underlying connection. Idempotent; later calls
// return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// Dial connects to a table server and returns a framed connection.
// Intended for clients and tests.
func Dial(addr string, maxSize uint32) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(nc, maxSize, nil, ""), nil
}
