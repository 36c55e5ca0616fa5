// rosectl is the control client for a running rosewm: status queries,
// a live status stream, the dispatcher helper, the control-scheme setup
// wizard and the device-preference dump.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set during build.
var Version = "0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:          "rosectl",
	Short:        "Control client for the rosewm display server",
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(dispatcherCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(prefsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
