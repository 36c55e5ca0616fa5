package ipc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x42},
		bytes.Repeat([]byte{0xab}, 300),
		bytes.Repeat([]byte{0x00}, MaxPayload),
	}

	var buf bytes.Buffer
	for _, p := range payloads {
		assert.NoError(t, WriteFrame(&buf, p))
	}
	for _, want := range payloads {
		got, err := ReadFrame(&buf)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Zero(t, buf.Len())
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxPayload+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Zero(t, buf.Len(), "nothing may reach the wire")
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	// 8193 little endian.
	buf := bytes.NewBuffer([]byte{0x01, 0x20})
	_, err := ReadFrame(buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x05, 0x00, 'a', 'b'})
	_, err := ReadFrame(buf)
	assert.Error(t, err)
}

func TestStatusPacketRoundTrip(t *testing.T) {
	packets := []StatusPacket{
		{Kind: StatusServerState, State: StateScreenLocked | StateShortcutsInhibited},
		{Kind: StatusKeymap, Blob: []byte("xkb_keymap { };")},
		{Kind: StatusControlScheme, Blob: bytes.Repeat([]byte{7}, 44)},
		{Kind: StatusTheme, Blob: make([]byte, 24)},
		{Kind: StatusInputInitialized, Device: 3},
		{Kind: StatusInputDestroyed, Device: 3},
		{Kind: StatusOutputInitialized, Device: 9},
		{Kind: StatusOutputDestroyed, Device: 9},
	}
	for _, want := range packets {
		got, err := DecodeStatus(want.Encode())
		assert.NoError(t, err, want.Kind.String())
		assert.Equal(t, want.Kind, got.Kind, want.Kind.String())
		assert.Equal(t, want.State, got.State, want.Kind.String())
		assert.Equal(t, want.Device, got.Device, want.Kind.String())
		assert.Equal(t, want.Blob, got.Blob, want.Kind.String())
	}
}

func TestDecodeStatusRejectsMalformed(t *testing.T) {
	frames := map[string][]byte{
		"empty":              {},
		"unknown kind":       {0xee, 0, 0, 0, 0},
		"server state short": {byte(StatusServerState), 1, 0},
		"device id long":     {byte(StatusInputInitialized), 1, 0, 0, 0, 0},
	}
	for name, frame := range frames {
		_, err := DecodeStatus(frame)
		assert.ErrorIs(t, err, ErrBadPacket, name)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	requests := []Request{
		{Kind: ReqSetTheme, Blob: bytes.Repeat([]byte{0x10}, 24)},
		{Kind: ReqSetScheme, Blob: []byte{4, 13, 0, 5, 0}},
		{Kind: ReqSetScreenLock, Lock: true},
		{Kind: ReqSetScreenLock, Lock: false},
	}
	for _, want := range requests {
		got, err := DecodeRequest(want.Encode())
		assert.NoError(t, err)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Blob, got.Blob)
		assert.Equal(t, want.Lock, got.Lock)
	}
}

func TestDecodeRequestRejectsMalformed(t *testing.T) {
	frames := map[string][]byte{
		"empty":           {},
		"unknown kind":    {0x7f, 1},
		"lock body short": {byte(ReqSetScreenLock)},
		"lock body long":  {byte(ReqSetScreenLock), 1, 1},
	}
	for name, frame := range frames {
		_, err := DecodeRequest(frame)
		assert.ErrorIs(t, err, ErrBadPacket, name)
	}
}
