package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rosewm/rosewm/internal/ipc"
	"github.com/rosewm/rosewm/internal/ui"
)

// snapshotSettle is how long the one-shot status command waits for more
// of the opening snapshot after the last packet.
const snapshotSettle = 300 * time.Millisecond

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a snapshot of the server state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := ipc.Dial(ipc.ConnStatus)
	if err != nil {
		return err
	}
	defer c.Close()

	summary := ui.NewSummary()
	for {
		if err := c.SetReadDeadline(time.Now().Add(snapshotSettle)); err != nil {
			return err
		}
		p, err := c.ReadStatus()
		if err != nil {
			if os.IsTimeout(err) {
				break
			}
			return err
		}
		summary.Apply(p)
	}

	fmt.Print(summary.Render())
	return nil
}
