package scheme

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Binary layout, little-endian:
//
//	leader index  1 byte (0-4)
//	n_core        1 byte, in [CoreActionCount, 2*CoreActionCount]
//	n_menu        1 byte, in [MenuActionCount, 2*MenuActionCount]
//	n_ipc         1 byte, <= MaxIPCActions
//	core bindings: chord 5*uint32, action 1 byte
//	menu bindings: chord 5*uint32, action 1 byte
//	ipc bindings:  chord 5*uint32, command 64 bytes

var (
	ErrTruncated      = errors.New("scheme: truncated file")
	ErrBadLeader      = errors.New("scheme: leader index out of range")
	ErrBadCounts      = errors.New("scheme: binding counts out of range")
	ErrBadAction      = errors.New("scheme: unknown action type")
	ErrDuplicateChord = errors.New("scheme: duplicate chord")
	ErrCoverage       = errors.New("scheme: actions not fully covered")
)

const chordSize = 5 * 4

// Load parses and validates a scheme. Any failure leaves the caller on
// Default.
func Load(r io.Reader) (*Scheme, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, ErrTruncated
	}

	s := &Scheme{LeaderIndex: head[0]}
	nCore, nMenu, nIPC := int(head[1]), int(head[2]), int(head[3])
	if nCore < CoreActionCount || nCore > 2*CoreActionCount {
		return nil, ErrBadCounts
	}
	if nMenu < MenuActionCount || nMenu > 2*MenuActionCount {
		return nil, ErrBadCounts
	}
	if nIPC > MaxIPCActions {
		return nil, ErrBadCounts
	}

	var entry [chordSize + 1]byte
	for i := 0; i < nCore; i++ {
		if _, err := io.ReadFull(r, entry[:]); err != nil {
			return nil, ErrTruncated
		}
		s.Core = append(s.Core, CoreBinding{
			Chord:  readChord(entry[:]),
			Action: CoreAction(entry[chordSize]),
		})
	}
	for i := 0; i < nMenu; i++ {
		if _, err := io.ReadFull(r, entry[:]); err != nil {
			return nil, ErrTruncated
		}
		s.Menu = append(s.Menu, MenuBinding{
			Chord:  readChord(entry[:]),
			Action: MenuAction(entry[chordSize]),
		})
	}
	var ipcEntry [chordSize + IPCCommandLen]byte
	for i := 0; i < nIPC; i++ {
		if _, err := io.ReadFull(r, ipcEntry[:]); err != nil {
			return nil, ErrTruncated
		}
		b := IPCBinding{Chord: readChord(ipcEntry[:])}
		copy(b.Command[:], ipcEntry[chordSize:])
		s.IPC = append(s.IPC, b)
	}

	if err := s.normalize(); err != nil {
		return nil, err
	}
	return s, nil
}

// Encode writes the scheme in file layout. Chords are written as held in
// memory, with the leader already substituted.
func (s *Scheme) Encode(w io.Writer) error {
	buf := []byte{s.LeaderIndex, byte(len(s.Core)), byte(len(s.Menu)), byte(len(s.IPC))}
	for _, b := range s.Core {
		buf = appendChord(buf, b.Chord)
		buf = append(buf, byte(b.Action))
	}
	for _, b := range s.Menu {
		buf = appendChord(buf, b.Chord)
		buf = append(buf, byte(b.Action))
	}
	for _, b := range s.IPC {
		buf = appendChord(buf, b.Chord)
		buf = append(buf, b.Command[:]...)
	}
	_, err := w.Write(buf)
	return err
}

// Blob returns the encoded scheme, as carried by status broadcasts.
func (s *Scheme) Blob() []byte {
	var buf bytes.Buffer
	_ = s.Encode(&buf)
	return buf.Bytes()
}

func readChord(b []byte) Chord {
	var c Chord
	for i := range c {
		c[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return c
}

func appendChord(buf []byte, c Chord) []byte {
	for _, sym := range c {
		buf = binary.LittleEndian.AppendUint32(buf, sym)
	}
	return buf
}
