package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosewm/rosewm/internal/ipc"
)

func drive(t *testing.T, m *WatchModel, msgs ...tea.Msg) *WatchModel {
	t.Helper()
	var model tea.Model = m
	for _, msg := range msgs {
		model, _ = model.Update(msg)
	}
	out, ok := model.(*WatchModel)
	require.True(t, ok)
	return out
}

func TestWatchCollectsPackets(t *testing.T) {
	m := drive(t, NewWatchModel(),
		tea.WindowSizeMsg{Width: 80, Height: 24},
		ConnectedMsg{},
		PacketMsg{Packet: ipc.StatusPacket{Kind: ipc.StatusKeymap, Blob: []byte("us")}},
		PacketMsg{Packet: ipc.StatusPacket{Kind: ipc.StatusOutputInitialized, Device: 1}},
	)

	require.Len(t, m.lines, 3)
	assert.True(t, m.connected)
	assert.Contains(t, m.View(), "us")
}

func TestWatchDisconnectKeepsLog(t *testing.T) {
	m := drive(t, NewWatchModel(),
		tea.WindowSizeMsg{Width: 80, Height: 24},
		ConnectedMsg{},
		DisconnectedMsg{Err: errors.New("broken pipe")},
	)

	assert.False(t, m.connected)
	assert.True(t, m.done)
	assert.Error(t, m.Err())
	assert.Contains(t, m.View(), "disconnected")
}

func TestWatchCleanCloseHasNoError(t *testing.T) {
	m := drive(t, NewWatchModel(), DisconnectedMsg{})
	assert.NoError(t, m.Err())
	assert.True(t, m.done)
}

func TestWatchQuitKeys(t *testing.T) {
	for _, key := range []string{"q", "esc", "ctrl+c"} {
		m := NewWatchModel()
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
		if key != "q" {
			var typ tea.KeyType
			switch key {
			case "esc":
				typ = tea.KeyEsc
			case "ctrl+c":
				typ = tea.KeyCtrlC
			}
			_, cmd = m.Update(tea.KeyMsg{Type: typ})
		}
		require.NotNil(t, cmd, "key %q must quit", key)
		assert.Equal(t, tea.Quit(), cmd())
	}
}

func TestWatchResizeBeforeContent(t *testing.T) {
	m := drive(t, NewWatchModel(), tea.WindowSizeMsg{Width: 40, Height: 2})
	assert.True(t, m.ready)
	assert.NotPanics(t, func() { _ = m.View() })
}
