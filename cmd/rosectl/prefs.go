package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rosewm/rosewm/internal/config"
	"github.com/rosewm/rosewm/internal/prefs"
	"github.com/rosewm/rosewm/internal/ui"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Print the persisted device preferences",
	Args:  cobra.NoArgs,
	RunE:  runPrefs,
}

func runPrefs(cmd *cobra.Command, args []string) error {
	path := filepath.Join(config.SearchDirs()[0], "device_preferences")
	store := prefs.NewStore()
	if err := store.Open(path); err != nil {
		return err
	}
	if store.Len(prefs.KindPointer)+store.Len(prefs.KindOutput) == 0 {
		fmt.Println("no device preferences stored")
		return nil
	}

	printKind := func(kind prefs.Kind) {
		entries := store.Snapshot(kind)
		fmt.Println(ui.HeaderStyle.Render(kind.String()))
		if len(entries) == 0 {
			fmt.Println("  none")
			return
		}
		for _, p := range entries {
			switch params := p.Params.(type) {
			case prefs.PointerParams:
				fmt.Printf("  %-32s accel=%d speed=%.2f flags=%#02x\n",
					p.NameString(), params.AccelType, params.Speed, p.Flags)
			case prefs.OutputParams:
				fmt.Printf("  %-32s %dx%d@%dmHz transform=%d scale=%.2f flags=%#02x\n",
					p.NameString(), params.Mode.W, params.Mode.H, params.Mode.Rate,
					params.Transform, params.Scale, p.Flags)
			}
		}
	}

	printKind(prefs.KindPointer)
	printKind(prefs.KindOutput)
	return nil
}
