package ipc

import (
	"net"
	"sync"
	"time"
)

// conn pairs a net.Conn with a writer goroutine so broadcasts from the
// loop never block on a slow peer.
type conn struct {
	nc        net.Conn
	sendq     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newConn(nc net.Conn) *conn {
	c := &conn{
		nc:     nc,
		sendq:  make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	go c.writer()
	return c
}

// handshake reads the one-byte connection-kind frame and resolves the
// peer pid. Peers get a grace period for the first frame so a stuck
// client cannot pin an accept slot.
func (c *conn) handshake() (ConnKind, int, error) {
	_ = c.nc.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := ReadFrame(c.nc)
	if err != nil {
		return 0, 0, err
	}
	_ = c.nc.SetReadDeadline(time.Time{})
	if len(frame) != 1 {
		return 0, 0, ErrBadPacket
	}
	pid, err := peerPID(c.nc)
	if err != nil {
		return 0, 0, err
	}
	return ConnKind(frame[0]), pid, nil
}

// send queues a frame. A peer that stops draining loses its connection
// instead of stalling the server.
func (c *conn) send(frame []byte) {
	select {
	case c.sendq <- frame:
	default:
		c.close()
	}
}

func (c *conn) writer() {
	for {
		select {
		case frame := <-c.sendq:
			if err := WriteFrame(c.nc, frame); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// waitEOF blocks until the peer hangs up or the connection is closed,
// discarding anything received on a one-way channel.
func (c *conn) waitEOF() {
	buf := make([]byte, 256)
	for {
		if _, err := c.nc.Read(buf); err != nil {
			return
		}
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.nc.Close()
	})
}
