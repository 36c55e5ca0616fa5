package ipc

import (
	"encoding/binary"
	"fmt"
)

// ConnKind types a connection; it is the single byte of the first frame
// a client sends after connecting.
type ConnKind byte

const (
	ConnConfigurator ConnKind = 1
	ConnDispatcher   ConnKind = 2
	ConnStatus       ConnKind = 3
)

func (k ConnKind) String() string {
	switch k {
	case ConnConfigurator:
		return "configurator"
	case ConnDispatcher:
		return "dispatcher"
	case ConnStatus:
		return "status"
	default:
		return fmt.Sprintf("conn(%d)", byte(k))
	}
}

// Server-state flag bits carried by StatusServerState packets.
const (
	StateScreenLocked uint32 = 1 << iota
	StateAwaitingUser
	StateShortcutsInhibited
)

// StatusKind tags a status broadcast packet.
type StatusKind byte

const (
	StatusServerState StatusKind = 1 + iota
	StatusKeymap
	StatusControlScheme
	StatusTheme
	StatusInputInitialized
	StatusInputDestroyed
	StatusOutputInitialized
	StatusOutputDestroyed
)

func (k StatusKind) String() string {
	switch k {
	case StatusServerState:
		return "server-state"
	case StatusKeymap:
		return "keymap"
	case StatusControlScheme:
		return "control-scheme"
	case StatusTheme:
		return "theme"
	case StatusInputInitialized:
		return "input-initialized"
	case StatusInputDestroyed:
		return "input-destroyed"
	case StatusOutputInitialized:
		return "output-initialized"
	case StatusOutputDestroyed:
		return "output-destroyed"
	default:
		return fmt.Sprintf("status(%d)", byte(k))
	}
}

// StatusPacket is one status-channel message. State is meaningful for
// StatusServerState, Device for the four device packets, Blob for the
// keymap, control-scheme, and theme packets.
type StatusPacket struct {
	Kind   StatusKind
	State  uint32
	Device uint32
	Blob   []byte
}

// Encode renders the packet as a frame payload.
func (p StatusPacket) Encode() []byte {
	switch p.Kind {
	case StatusServerState:
		buf := make([]byte, 5)
		buf[0] = byte(p.Kind)
		binary.LittleEndian.PutUint32(buf[1:], p.State)
		return buf
	case StatusInputInitialized, StatusInputDestroyed,
		StatusOutputInitialized, StatusOutputDestroyed:
		buf := make([]byte, 5)
		buf[0] = byte(p.Kind)
		binary.LittleEndian.PutUint32(buf[1:], p.Device)
		return buf
	default:
		buf := make([]byte, 1+len(p.Blob))
		buf[0] = byte(p.Kind)
		copy(buf[1:], p.Blob)
		return buf
	}
}

// DecodeStatus parses a status frame payload.
func DecodeStatus(frame []byte) (StatusPacket, error) {
	if len(frame) < 1 {
		return StatusPacket{}, ErrBadPacket
	}
	p := StatusPacket{Kind: StatusKind(frame[0])}
	body := frame[1:]
	switch p.Kind {
	case StatusServerState:
		if len(body) != 4 {
			return StatusPacket{}, ErrBadPacket
		}
		p.State = binary.LittleEndian.Uint32(body)
	case StatusInputInitialized, StatusInputDestroyed,
		StatusOutputInitialized, StatusOutputDestroyed:
		if len(body) != 4 {
			return StatusPacket{}, ErrBadPacket
		}
		p.Device = binary.LittleEndian.Uint32(body)
	case StatusKeymap, StatusControlScheme, StatusTheme:
		p.Blob = append([]byte(nil), body...)
	default:
		return StatusPacket{}, ErrBadPacket
	}
	return p, nil
}

// ReqKind tags a configurator request.
type ReqKind byte

const (
	ReqSetTheme ReqKind = 1 + iota
	ReqSetScheme
	ReqSetScreenLock
)

// Request is one configurator-channel message. Blob carries the theme
// or scheme image; Lock is the screen-lock target state.
type Request struct {
	Kind ReqKind
	Blob []byte
	Lock bool
}

// Encode renders the request as a frame payload.
func (r Request) Encode() []byte {
	switch r.Kind {
	case ReqSetScreenLock:
		lock := byte(0)
		if r.Lock {
			lock = 1
		}
		return []byte{byte(r.Kind), lock}
	default:
		buf := make([]byte, 1+len(r.Blob))
		buf[0] = byte(r.Kind)
		copy(buf[1:], r.Blob)
		return buf
	}
}

// DecodeRequest parses a configurator frame payload.
func DecodeRequest(frame []byte) (Request, error) {
	if len(frame) < 1 {
		return Request{}, ErrBadPacket
	}
	r := Request{Kind: ReqKind(frame[0])}
	body := frame[1:]
	switch r.Kind {
	case ReqSetTheme, ReqSetScheme:
		r.Blob = append([]byte(nil), body...)
	case ReqSetScreenLock:
		if len(body) != 1 {
			return Request{}, ErrBadPacket
		}
		r.Lock = body[0] != 0
	default:
		return Request{}, ErrBadPacket
	}
	return r, nil
}
