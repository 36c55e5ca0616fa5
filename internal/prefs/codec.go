package prefs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/rosewm/rosewm/internal/ordmap"
)

// On-disk entry layout, little-endian:
//
//	name      64 bytes
//	kind      1 byte (0 pointer, 1 output)
//	flags     1 byte
//	pointer:  accel-type 1 byte, speed float64
//	output:   transform 1 byte, scale float64, mode w/h/rate int32 each

// Encode writes every entry of every kind in MRU order.
func (s *Store) Encode(w io.Writer) error {
	for kind := Kind(0); kind < kindCount; kind++ {
		for _, it := range s.mru[kind] {
			if err := writePreference(w, it.pref); err != nil {
				return err
			}
		}
	}
	return nil
}

func writePreference(w io.Writer, p Preference) error {
	buf := make([]byte, 0, NameLen+24)
	buf = append(buf, p.Name[:]...)
	buf = append(buf, byte(p.Kind()), p.Flags)

	switch params := p.Params.(type) {
	case PointerParams:
		buf = append(buf, params.AccelType)
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(params.Speed))
	case OutputParams:
		buf = append(buf, params.Transform)
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(params.Scale))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(params.Mode.W))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(params.Mode.H))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(params.Mode.Rate))
	default:
		return ErrBadKind
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("prefs: write: %w", err)
	}
	return nil
}

// Load replaces the store contents with the stream, preserving the
// stream's MRU order. Reading stops cleanly at EOF on an entry boundary;
// anything else mid-entry is ErrTruncated.
func (s *Store) Load(r io.Reader) error {
	for kind := Kind(0); kind < kindCount; kind++ {
		for _, it := range s.mru[kind] {
			s.idx.Remove(it.node)
		}
		s.mru[kind] = nil
	}

	for {
		p, err := readPreference(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		s.appendLoaded(p)
	}
}

// appendLoaded places a decoded entry at the tail, so file order becomes
// MRU order. On a duplicated name the earlier (more recent) entry wins;
// entries past capacity are dropped.
func (s *Store) appendLoaded(p Preference) {
	kind := p.Kind()
	if s.idx.Find(&item{kind: kind, name: p.Name}) != nil {
		return
	}
	if len(s.mru[kind]) >= CapacityPerKind {
		return
	}
	it := &item{kind: kind, name: p.Name, pref: p}
	it.node = &ordmap.Node[*item]{Value: it}
	s.idx.Insert(it.node)
	s.mru[kind] = append(s.mru[kind], it)
}

func readPreference(r io.Reader) (Preference, error) {
	var p Preference

	if _, err := io.ReadFull(r, p.Name[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return p, io.EOF
		}
		return p, ErrTruncated
	}

	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return p, ErrTruncated
	}
	kind := Kind(head[0])
	p.Flags = head[1]

	switch kind {
	case KindPointer:
		var body [9]byte
		if _, err := io.ReadFull(r, body[:]); err != nil {
			return p, ErrTruncated
		}
		p.Params = PointerParams{
			AccelType: body[0],
			Speed:     math.Float64frombits(binary.LittleEndian.Uint64(body[1:])),
		}
	case KindOutput:
		var body [21]byte
		if _, err := io.ReadFull(r, body[:]); err != nil {
			return p, ErrTruncated
		}
		p.Params = OutputParams{
			Transform: body[0],
			Scale:     math.Float64frombits(binary.LittleEndian.Uint64(body[1:9])),
			Mode: Mode{
				W:    int32(binary.LittleEndian.Uint32(body[9:13])),
				H:    int32(binary.LittleEndian.Uint32(body[13:17])),
				Rate: int32(binary.LittleEndian.Uint32(body[17:21])),
			},
		}
	default:
		return p, ErrBadKind
	}
	return p, nil
}
