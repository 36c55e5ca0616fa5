// rosewm is the display-server daemon. It takes no flags: the root
// command loads the configuration, brings the backend up and runs the
// event loop until a termination signal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rosewm/rosewm/internal/proc"
)

// Version is set during build.
var Version = "0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:          "rosewm",
	Short:        "rosewm - a tiling display server",
	Long:         "Rosewm is a tiling display server: one focused surface per workspace,\nkeyboard-chord driven, controlled at runtime over a unix control socket.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServer,
}

// spawnHelperCmd is the intermediate step of detached spawning: start
// the target in a fresh session and exit immediately, so the target is
// reparented to init instead of the server.
var spawnHelperCmd = &cobra.Command{
	Use:                "spawn-helper",
	Hidden:             true,
	DisableFlagParsing: true,
	Args:               cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return proc.RunHelper(args)
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)
	rootCmd.AddCommand(spawnHelperCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
