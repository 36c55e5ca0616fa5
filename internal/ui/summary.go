package ui

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/rosewm/rosewm/internal/config"
	"github.com/rosewm/rosewm/internal/ipc"
	"github.com/rosewm/rosewm/internal/scheme"
)

// Summary accumulates status packets into the server picture a one-shot
// `rosectl status` prints.
type Summary struct {
	State   uint32
	Keymap  string
	Scheme  *scheme.Scheme
	Theme   *config.Theme
	Inputs  map[uint32]bool
	Outputs map[uint32]bool
}

func NewSummary() *Summary {
	return &Summary{
		Inputs:  make(map[uint32]bool),
		Outputs: make(map[uint32]bool),
	}
}

// Apply folds one packet into the summary.
func (s *Summary) Apply(p ipc.StatusPacket) {
	switch p.Kind {
	case ipc.StatusServerState:
		s.State = p.State
	case ipc.StatusKeymap:
		s.Keymap = string(p.Blob)
	case ipc.StatusControlScheme:
		if sc, err := scheme.Load(bytes.NewReader(p.Blob)); err == nil {
			s.Scheme = sc
		}
	case ipc.StatusTheme:
		if t, err := config.ParseTheme(bytes.NewReader(p.Blob)); err == nil {
			s.Theme = &t
		}
	case ipc.StatusInputInitialized:
		s.Inputs[p.Device] = true
	case ipc.StatusInputDestroyed:
		delete(s.Inputs, p.Device)
	case ipc.StatusOutputInitialized:
		s.Outputs[p.Device] = true
	case ipc.StatusOutputDestroyed:
		delete(s.Outputs, p.Device)
	}
}

// Render draws the summary for the terminal.
func (s *Summary) Render() string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("rosewm") + "\n")

	row := func(label, value string) {
		b.WriteString(LabelStyle.Render(label) + value + "\n")
	}

	row("screen locked", onOff(s.State&ipc.StateScreenLocked != 0))
	row("awaiting user", onOff(s.State&ipc.StateAwaitingUser != 0))
	row("shortcuts inhibited", onOff(s.State&ipc.StateShortcutsInhibited != 0))

	if s.Keymap != "" {
		row("keyboard layout", ValueStyle.Render(s.Keymap))
	}
	if s.Scheme != nil {
		row("control scheme", ValueStyle.Render(fmt.Sprintf(
			"leader %s, %d core / %d menu / %d ipc bindings",
			scheme.LeaderName(s.Scheme.LeaderIndex),
			len(s.Scheme.Core), len(s.Scheme.Menu), len(s.Scheme.IPC))))
	}
	if s.Theme != nil {
		row("theme", ValueStyle.Render(fmt.Sprintf(
			"panel %dpx, font %dpx, background #%08x",
			s.Theme.PanelSize, s.Theme.FontSize, s.Theme.BackgroundColor)))
	}
	row("outputs", ValueStyle.Render(deviceList(s.Outputs)))
	row("inputs", ValueStyle.Render(deviceList(s.Inputs)))
	return b.String()
}

func deviceList(devs map[uint32]bool) string {
	if len(devs) == 0 {
		return "none"
	}
	ids := make([]uint32, 0, len(devs))
	for id := range devs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}
