// Package ipc implements the out-of-band control channel: a unix socket
// carrying length-framed binary messages between the server and its
// helper processes. Connections are typed on open as configurator,
// dispatcher, or status; the first two require IPC rights granted to
// the connecting pid.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxPayload bounds a single frame's payload.
const MaxPayload = 8192

// EndpointEnv carries the socket path to spawned helpers.
const EndpointEnv = "ROSE_IPC_ENDPOINT"

var (
	ErrFrameTooLarge = errors.New("ipc: frame exceeds maximum payload")
	ErrBadPacket     = errors.New("ipc: malformed packet")
)

// WriteFrame writes one frame: a little-endian uint16 payload length
// followed by the payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 2+len(payload))
	binary.LittleEndian.PutUint16(buf, uint16(len(payload)))
	copy(buf[2:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("ipc: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame. A length over MaxPayload is a framing
// error and the connection carrying it must be dropped.
func ReadFrame(r io.Reader) ([]byte, error) {
	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint16(head[:])
	if n > MaxPayload {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("ipc: short frame: %w", err)
	}
	return payload, nil
}
