package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rosewm/rosewm/internal/config"
	"github.com/rosewm/rosewm/internal/ipc"
	"github.com/rosewm/rosewm/internal/scheme"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a keyboard control scheme interactively",
	Long: "Walks through the control-scheme choices and writes a validated\n" +
		"keyboard_control_scheme file into the user configuration directory.",
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	var leader uint8
	apply := true
	confirmed := false

	leaderOpts := make([]huh.Option[uint8], 0, 5)
	for i := uint8(0); i < 5; i++ {
		leaderOpts = append(leaderOpts, huh.NewOption(scheme.LeaderName(i), i))
	}

	dir := config.SearchDirs()[0]
	target := filepath.Join(dir, "keyboard_control_scheme")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[uint8]().
				Title("Leader key").
				Description("Held as the first key of every core chord.").
				Options(leaderOpts...).
				Value(&leader),
			huh.NewConfirm().
				Title("Apply to the running server too?").
				Description("Requires rosewm to be up; the file is written either way.").
				Value(&apply),
			huh.NewConfirm().
				Title(fmt.Sprintf("Write %s?", target)).
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("aborted, nothing written")
		return nil
	}

	blob, err := buildScheme(leader)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(target, blob, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (leader %s)\n", target, scheme.LeaderName(leader))

	if apply {
		c, err := ipc.Dial(ipc.ConnConfigurator)
		if err != nil {
			fmt.Printf("not applied to a running server: %v\n", err)
			return nil
		}
		defer c.Close()
		if err := c.Send(ipc.Request{Kind: ipc.ReqSetScheme, Blob: blob}); err != nil {
			return err
		}
		fmt.Println("applied to the running server")
	}
	return nil
}

// buildScheme produces the default binding tables under the chosen
// leader. Leader slots are stored as zero so the server substitutes at
// load time; the result is validated by loading it back.
func buildScheme(leader uint8) ([]byte, error) {
	base := scheme.Default()
	old := base.Leader()
	draft := &scheme.Scheme{LeaderIndex: leader}
	for _, b := range base.Core {
		if b.Chord[0] == old {
			b.Chord[0] = 0
		}
		draft.Core = append(draft.Core, b)
	}
	for _, b := range base.Menu {
		if b.Chord[0] == old {
			b.Chord[0] = 0
		}
		draft.Menu = append(draft.Menu, b)
	}

	blob := draft.Blob()
	if _, err := scheme.Load(bytes.NewReader(blob)); err != nil {
		return nil, fmt.Errorf("generated scheme rejected: %w", err)
	}
	return blob, nil
}
