package ipc

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// Client is one typed control connection, as used by rosectl and the
// helper processes it spawns.
type Client struct {
	nc net.Conn
}

// Dial connects to the server advertised in the environment.
func Dial(kind ConnKind) (*Client, error) {
	path := os.Getenv(EndpointEnv)
	if path == "" {
		return nil, errors.New("ipc: " + EndpointEnv + " is not set; is rosewm running?")
	}
	return DialPath(path, kind)
}

// DialPath connects to a specific socket and performs the typed
// handshake for kind.
func DialPath(path string, kind ConnKind) (*Client, error) {
	nc, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial: %w", err)
	}
	if err := WriteFrame(nc, []byte{byte(kind)}); err != nil {
		nc.Close()
		return nil, err
	}
	return &Client{nc: nc}, nil
}

// ReadStatus reads the next status broadcast. It blocks until the
// server sends one or the connection drops.
func (c *Client) ReadStatus() (StatusPacket, error) {
	frame, err := ReadFrame(c.nc)
	if err != nil {
		return StatusPacket{}, err
	}
	return DecodeStatus(frame)
}

// ReadCommand reads the next dispatched command, trimmed of its zero
// padding.
func (c *Client) ReadCommand() (string, error) {
	frame, err := ReadFrame(c.nc)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(frame, "\x00")), nil
}

// Send submits a configurator request.
func (c *Client) Send(req Request) error {
	return WriteFrame(c.nc, req.Encode())
}

// SetReadDeadline bounds the next read on the connection.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.nc.SetReadDeadline(t)
}

func (c *Client) Close() error {
	return c.nc.Close()
}
