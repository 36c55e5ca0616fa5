package prefs

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pointerPref(name string, speed float64) Preference {
	return Preference{
		Name:   NameBlob(name),
		Params: PointerParams{AccelType: 1, Speed: speed},
	}
}

func outputPref(name string, scale float64) Preference {
	return Preference{
		Name:  NameBlob(name),
		Flags: 0x02,
		Params: OutputParams{
			Transform: 3,
			Scale:     scale,
			Mode:      Mode{W: 1920, H: 1080, Rate: 60000},
		},
	}
}

func names(s *Store, kind Kind) []string {
	var out []string
	for _, p := range s.Snapshot(kind) {
		out = append(out, p.NameString())
	}
	return out
}

func TestUpdateOrdersMostRecentFirst(t *testing.T) {
	s := NewStore()
	assert.NoError(t, s.Update(pointerPref("a", 0.1)))
	assert.NoError(t, s.Update(pointerPref("b", 0.2)))
	assert.NoError(t, s.Update(pointerPref("c", 0.3)))

	assert.Equal(t, []string{"c", "b", "a"}, names(s, KindPointer))
}

func TestUpdateExistingPromotesAndReplaces(t *testing.T) {
	s := NewStore()
	s.Update(pointerPref("a", 0.1))
	s.Update(pointerPref("b", 0.2))
	s.Update(pointerPref("a", 0.9))

	assert.Equal(t, []string{"a", "b"}, names(s, KindPointer))
	got, ok := s.Lookup(KindPointer, NameBlob("a"))
	assert.True(t, ok)
	assert.Equal(t, 0.9, got.Params.(PointerParams).Speed)
	assert.Equal(t, 2, s.Len(KindPointer))
}

func TestLookupPromotes(t *testing.T) {
	s := NewStore()
	s.Update(pointerPref("a", 0.1))
	s.Update(pointerPref("b", 0.2))
	s.Update(pointerPref("c", 0.3))

	_, ok := s.Lookup(KindPointer, NameBlob("a"))
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "c", "b"}, names(s, KindPointer))
}

func TestCapacityEvictsLeastRecent(t *testing.T) {
	s := NewStore()
	for i := 0; i < CapacityPerKind+2; i++ {
		s.Update(pointerPref(fmt.Sprintf("dev-%03d", i), float64(i)))
	}

	assert.Equal(t, CapacityPerKind, s.Len(KindPointer))
	_, ok := s.Lookup(KindPointer, NameBlob("dev-000"))
	assert.False(t, ok)
	_, ok = s.Lookup(KindPointer, NameBlob("dev-001"))
	assert.False(t, ok)
	_, ok = s.Lookup(KindPointer, NameBlob("dev-002"))
	assert.True(t, ok)
}

func TestKindsAreIndependent(t *testing.T) {
	s := NewStore()
	s.Update(pointerPref("shared-name", 0.5))
	s.Update(outputPref("shared-name", 2.0))

	assert.Equal(t, 1, s.Len(KindPointer))
	assert.Equal(t, 1, s.Len(KindOutput))

	p, ok := s.Lookup(KindPointer, NameBlob("shared-name"))
	assert.True(t, ok)
	assert.IsType(t, PointerParams{}, p.Params)

	o, ok := s.Lookup(KindOutput, NameBlob("shared-name"))
	assert.True(t, ok)
	assert.IsType(t, OutputParams{}, o.Params)
}

func TestRoundTripPreservesOrder(t *testing.T) {
	s := NewStore()
	s.Update(pointerPref("trackball", 0.25))
	s.Update(pointerPref("touchpad", -0.5))
	s.Update(outputPref("DP-1", 1.5))
	s.Update(outputPref("HDMI-A-1", 1.0))

	var buf bytes.Buffer
	assert.NoError(t, s.Encode(&buf))

	loaded := NewStore()
	assert.NoError(t, loaded.Load(&buf))

	assert.Equal(t, s.Snapshot(KindPointer), loaded.Snapshot(KindPointer))
	assert.Equal(t, s.Snapshot(KindOutput), loaded.Snapshot(KindOutput))
	assert.Equal(t, []string{"touchpad", "trackball"}, names(loaded, KindPointer))
	assert.Equal(t, []string{"HDMI-A-1", "DP-1"}, names(loaded, KindOutput))
}

func TestLoadRejectsBadKind(t *testing.T) {
	var buf bytes.Buffer
	blob := NameBlob("x")
	buf.Write(blob[:])
	buf.WriteByte(7) // no such kind
	buf.WriteByte(0)

	s := NewStore()
	assert.ErrorIs(t, s.Load(&buf), ErrBadKind)
}

func TestLoadRejectsTruncatedEntry(t *testing.T) {
	s := NewStore()
	s.Update(outputPref("DP-1", 1.0))
	var buf bytes.Buffer
	assert.NoError(t, s.Encode(&buf))

	cut := buf.Bytes()[:buf.Len()-4]
	assert.ErrorIs(t, NewStore().Load(bytes.NewReader(cut)), ErrTruncated)
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	s := NewStore()
	assert.NoError(t, s.Open(filepath.Join(t.TempDir(), "device_preferences")))
	assert.Equal(t, 0, s.Len(KindPointer))
}

func TestSyncThenOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device_preferences")

	s := NewStore()
	assert.NoError(t, s.Open(path))
	s.Update(pointerPref("mouse", 0.75))
	s.Update(outputPref("eDP-1", 2.0))
	assert.NoError(t, s.Sync())

	re := NewStore()
	assert.NoError(t, re.Open(path))
	assert.Equal(t, []string{"mouse"}, names(re, KindPointer))
	assert.Equal(t, []string{"eDP-1"}, names(re, KindOutput))
}

func TestNameBlobTruncates(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'n'
	}
	blob := NameBlob(string(long))
	assert.Equal(t, byte(0), blob[NameLen-1])

	p := Preference{Name: blob, Params: PointerParams{}}
	assert.Len(t, p.NameString(), NameLen-1)
}
