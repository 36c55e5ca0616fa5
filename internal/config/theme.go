package config

import (
	"encoding/binary"
	"errors"
	"io"
)

var ErrBadTheme = errors.New("config: malformed theme")

// Theme carries the server colors and base dimensions. Colors are
// 0xRRGGBBAA. The encoded form is also the status-broadcast theme blob.
type Theme struct {
	BackgroundColor uint32
	PanelColor      uint32
	MenuColor       uint32
	HighlightColor  uint32
	PanelSize       int32
	FontSize        int32
}

const themeBlobSize = 24

func DefaultTheme() Theme {
	return Theme{
		BackgroundColor: 0x303030ff,
		PanelColor:      0x262626ff,
		MenuColor:       0x1c1c1cff,
		HighlightColor:  0xb3536bff,
		PanelSize:       32,
		FontSize:        14,
	}
}

// ParseTheme reads the 24-byte little-endian theme record.
func ParseTheme(r io.Reader) (Theme, error) {
	var b [themeBlobSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Theme{}, ErrBadTheme
	}
	le := binary.LittleEndian
	t := Theme{
		BackgroundColor: le.Uint32(b[0:]),
		PanelColor:      le.Uint32(b[4:]),
		MenuColor:       le.Uint32(b[8:]),
		HighlightColor:  le.Uint32(b[12:]),
		PanelSize:       int32(le.Uint32(b[16:])),
		FontSize:        int32(le.Uint32(b[20:])),
	}
	if t.PanelSize <= 0 || t.FontSize <= 0 {
		return Theme{}, ErrBadTheme
	}
	return t, nil
}

// Blob encodes the theme in file/broadcast layout.
func (t Theme) Blob() []byte {
	b := make([]byte, 0, themeBlobSize)
	b = binary.LittleEndian.AppendUint32(b, t.BackgroundColor)
	b = binary.LittleEndian.AppendUint32(b, t.PanelColor)
	b = binary.LittleEndian.AppendUint32(b, t.MenuColor)
	b = binary.LittleEndian.AppendUint32(b, t.HighlightColor)
	b = binary.LittleEndian.AppendUint32(b, uint32(t.PanelSize))
	b = binary.LittleEndian.AppendUint32(b, uint32(t.FontSize))
	return b
}
