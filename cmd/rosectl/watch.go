package main

import (
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rosewm/rosewm/internal/ipc"
	"github.com/rosewm/rosewm/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream status broadcasts live",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	c, err := ipc.Dial(ipc.ConnStatus)
	if err != nil {
		return err
	}
	defer c.Close()

	model := ui.NewWatchModel()
	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		p.Send(ui.ConnectedMsg{})
		for {
			packet, err := c.ReadStatus()
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					err = nil
				}
				p.Send(ui.DisconnectedMsg{Err: err})
				return
			}
			p.Send(ui.PacketMsg{Packet: packet})
		}
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(*ui.WatchModel); ok {
		return m.Err()
	}
	return nil
}
