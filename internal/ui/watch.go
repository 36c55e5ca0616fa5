package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rosewm/rosewm/internal/ipc"
)

// Messages fed into the watch model by the status-connection reader.
type (
	// ConnectedMsg reports the status connection handshake succeeded.
	ConnectedMsg struct{}

	// PacketMsg carries one decoded status broadcast.
	PacketMsg struct {
		Packet ipc.StatusPacket
	}

	// DisconnectedMsg reports the connection dropped; Err is nil on a
	// clean server shutdown.
	DisconnectedMsg struct {
		Err error
	}
)

// WatchModel is the `rosectl watch` view: a scrolling log of decoded
// status broadcasts with a connection header.
type WatchModel struct {
	spinner   spinner.Model
	viewport  viewport.Model
	ready     bool
	connected bool
	done      bool
	err       error
	lines     []string
}

func NewWatchModel() *WatchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = HeaderStyle
	return &WatchModel{spinner: sp}
}

func (m *WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 3
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh()

	case ConnectedMsg:
		m.connected = true
		m.addLine(FooterStyle.Render("connected"))

	case PacketMsg:
		m.addLine(FormatPacket(msg.Packet))

	case DisconnectedMsg:
		m.connected = false
		m.done = true
		m.err = msg.Err
		if msg.Err != nil {
			m.addLine(ErrorStyle.Render("connection lost: " + msg.Err.Error()))
		} else {
			m.addLine(FooterStyle.Render("server closed the connection"))
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *WatchModel) View() string {
	header := HeaderStyle.Render("rosewm status stream")
	switch {
	case m.done:
		header += FooterStyle.Render("  (disconnected)")
	case !m.connected:
		header += "  " + m.spinner.View() + FooterStyle.Render(" connecting")
	}
	body := strings.Join(m.lines, "\n")
	if m.ready {
		body = m.viewport.View()
	}
	footer := FooterStyle.Render("q to quit")
	return header + "\n" + body + "\n" + footer
}

// Err reports the terminal connection error, nil for a clean close.
func (m *WatchModel) Err() error { return m.err }

func (m *WatchModel) addLine(line string) {
	stamp := FooterStyle.Render(time.Now().Format("15:04:05"))
	m.lines = append(m.lines, stamp+" "+line)
	m.refresh()
}

func (m *WatchModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// FormatPacket renders one status packet as a log line.
func FormatPacket(p ipc.StatusPacket) string {
	kind := ValueStyle.Render(p.Kind.String())
	switch p.Kind {
	case ipc.StatusServerState:
		return fmt.Sprintf("%s locked=%t awaiting-user=%t shortcuts-inhibited=%t",
			kind,
			p.State&ipc.StateScreenLocked != 0,
			p.State&ipc.StateAwaitingUser != 0,
			p.State&ipc.StateShortcutsInhibited != 0)
	case ipc.StatusKeymap:
		return fmt.Sprintf("%s %s", kind, string(p.Blob))
	case ipc.StatusControlScheme, ipc.StatusTheme:
		return fmt.Sprintf("%s %d bytes", kind, len(p.Blob))
	default:
		return fmt.Sprintf("%s device #%d", kind, p.Device)
	}
}
