package main

import (
	"errors"
	"io"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/rosewm/rosewm/internal/ipc"
	"github.com/rosewm/rosewm/internal/logger"
)

var dispatcherCmd = &cobra.Command{
	Use:   "dispatcher",
	Short: "Run as the server's command dispatcher",
	Long: "Connects the dispatcher channel and executes each command the\n" +
		"server forwards from its IPC key bindings. Rosewm spawns this as the\n" +
		"system_dispatcher helper; the connection requires IPC rights.",
	Args: cobra.NoArgs,
	RunE: runDispatcher,
}

func runDispatcher(cmd *cobra.Command, args []string) error {
	c, err := ipc.Dial(ipc.ConnDispatcher)
	if err != nil {
		return err
	}
	defer c.Close()
	logger.Info("dispatcher connected")

	for {
		command, err := c.ReadCommand()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				logger.Info("server closed the dispatcher channel")
				return nil
			}
			return err
		}
		if command == "" {
			continue
		}
		logger.Info("dispatching", "command", command)
		go func(command string) {
			sh := exec.Command("/bin/sh", "-c", command)
			if out, err := sh.CombinedOutput(); err != nil {
				logger.Error("command failed", "command", command,
					"err", err, "output", string(out))
			}
		}(command)
	}
}
