// Package prefs persists per-device configuration keyed by device name.
// Each device kind keeps its own most-recent-first list bounded at 128
// entries; the file on disk is the concatenated lists in MRU order, so a
// reload restores both the values and the eviction order.
package prefs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rosewm/rosewm/internal/logger"
	"github.com/rosewm/rosewm/internal/ordmap"
)

// CapacityPerKind bounds each kind's list; the least recently used entry
// is evicted past this.
const CapacityPerKind = 128

// NameLen is the fixed on-disk size of a device name.
const NameLen = 64

var (
	ErrBadKind   = errors.New("prefs: bad device kind")
	ErrTruncated = errors.New("prefs: truncated entry")
)

// Kind selects the parameter family of a preference.
type Kind uint8

const (
	KindPointer Kind = iota
	KindOutput
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindPointer:
		return "pointer"
	case KindOutput:
		return "output"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Params is the per-kind parameter payload of a preference.
type Params interface {
	Kind() Kind
}

// PointerParams configures a pointing device.
type PointerParams struct {
	AccelType uint8
	Speed     float64
}

func (PointerParams) Kind() Kind { return KindPointer }

// Mode is an output video mode.
type Mode struct {
	W, H, Rate int32
}

// OutputParams configures a display output.
type OutputParams struct {
	Transform uint8
	Scale     float64
	Mode      Mode
}

func (OutputParams) Kind() Kind { return KindOutput }

// Preference is one stored record. Params selects the kind.
type Preference struct {
	Name   [NameLen]byte
	Flags  uint8
	Params Params
}

func (p Preference) Kind() Kind { return p.Params.Kind() }

// NameString trims the name blob for display.
func (p Preference) NameString() string {
	b := p.Name[:]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// NameBlob packs a device name into the fixed blob, truncating to keep a
// terminating zero.
func NameBlob(name string) [NameLen]byte {
	var blob [NameLen]byte
	copy(blob[:NameLen-1], name)
	return blob
}

type item struct {
	kind Kind
	name [NameLen]byte
	pref Preference
	node *ordmap.Node[*item]
}

func itemCmp(a, b *item) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.name[:], b.name[:])
}

// Store holds the per-kind MRU lists plus a keyed index over both.
// Owned by the event loop; not safe for concurrent use.
type Store struct {
	path string
	mru  [kindCount][]*item
	idx  *ordmap.Map[*item]
}

func NewStore() *Store {
	return &Store{idx: ordmap.New(itemCmp)}
}

// Open binds the store to path and loads it when present. A missing file
// is an empty store, not an error.
func (s *Store) Open(path string) error {
	s.path = path
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("prefs: open: %w", err)
	}
	defer f.Close()
	if err := s.Load(f); err != nil {
		return err
	}
	logger.Debug("device preferences loaded",
		"pointer", s.Len(KindPointer), "output", s.Len(KindOutput))
	return nil
}

func (s *Store) Len(kind Kind) int {
	if kind >= kindCount {
		return 0
	}
	return len(s.mru[kind])
}

// Update stores p, promoting its name to the MRU head of its kind and
// evicting past capacity.
func (s *Store) Update(p Preference) error {
	if p.Params == nil || p.Kind() >= kindCount {
		return ErrBadKind
	}
	kind := p.Kind()

	probe := &item{kind: kind, name: p.Name}
	if n := s.idx.Find(probe); n != nil {
		it := n.Value
		it.pref = p
		s.promote(it)
		return nil
	}

	it := &item{kind: kind, name: p.Name, pref: p}
	it.node = &ordmap.Node[*item]{Value: it}
	s.idx.Insert(it.node)
	s.mru[kind] = append([]*item{it}, s.mru[kind]...)

	if len(s.mru[kind]) > CapacityPerKind {
		last := s.mru[kind][len(s.mru[kind])-1]
		s.mru[kind] = s.mru[kind][:len(s.mru[kind])-1]
		s.idx.Remove(last.node)
		logger.Debug("evicted device preference", "kind", kind, "name", last.pref.NameString())
	}
	return nil
}

// Lookup returns the stored preference for (kind, name) and promotes it.
func (s *Store) Lookup(kind Kind, name [NameLen]byte) (Preference, bool) {
	n := s.idx.Find(&item{kind: kind, name: name})
	if n == nil {
		return Preference{}, false
	}
	s.promote(n.Value)
	return n.Value.pref, true
}

// Snapshot returns the kind's preferences in MRU order.
func (s *Store) Snapshot(kind Kind) []Preference {
	if kind >= kindCount {
		return nil
	}
	out := make([]Preference, len(s.mru[kind]))
	for i, it := range s.mru[kind] {
		out[i] = it.pref
	}
	return out
}

func (s *Store) promote(it *item) {
	list := s.mru[it.kind]
	for i, cur := range list {
		if cur == it {
			copy(list[1:i+1], list[:i])
			list[0] = it
			return
		}
	}
}

// Sync writes the store back to its bound path.
func (s *Store) Sync() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("prefs: sync: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("prefs: sync: %w", err)
	}
	if err := s.Encode(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("prefs: sync: %w", err)
	}
	return os.Rename(tmp, s.path)
}
