package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/rosewm/rosewm/internal/backend"
	"github.com/rosewm/rosewm/internal/comp"
	"github.com/rosewm/rosewm/internal/config"
	"github.com/rosewm/rosewm/internal/ipc"
	"github.com/rosewm/rosewm/internal/logger"
	"github.com/rosewm/rosewm/internal/loop"
	"github.com/rosewm/rosewm/internal/prefs"
	"github.com/rosewm/rosewm/internal/proc"
)

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	if cfg.Ambient.Log.Level != "" {
		logger.SetLevel(cfg.Ambient.Log.Level)
	}

	l := loop.New()

	store := prefs.NewStore()
	if err := store.Open(cfg.PrefsPath); err != nil {
		logger.Warn("device preferences unreadable, starting empty",
			"path", cfg.PrefsPath, "err", err)
	}

	reg := proc.NewRegistry()

	srv, err := comp.NewServer(l, cfg, store, reg)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	ipcSrv := ipc.NewServer(l, socketPath(cfg), srv.CheckIPCAccessRights)
	srv.AttachIPC(ipcSrv)
	if err := ipcSrv.Start(); err != nil {
		return err
	}
	defer ipcSrv.Stop()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stopTerm := l.OnSignal(func() {
		logger.Info("termination signal")
		cancel()
	}, syscall.SIGINT, syscall.SIGTERM)
	defer stopTerm()
	stopChld := l.OnSignal(reg.Reap, syscall.SIGCHLD)
	defer stopChld()

	if err := srv.AttachBackend(backend.NewHeadless()); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	l.Post(srv.SpawnHelpers)

	logger.Info("rosewm running", "version", Version, "config", cfg.Dirs[0])
	if err := l.Run(ctx); err != nil {
		return err
	}

	srv.Shutdown()
	if err := store.Sync(); err != nil {
		logger.Warn("device preferences not saved", "err", err)
	}
	return nil
}

// socketPath places the control socket in the configured directory,
// the runtime dir, or the temp dir, in that order.
func socketPath(cfg *config.Config) string {
	dir := cfg.Ambient.IPC.Directory
	if dir == "" {
		dir = xdg.RuntimeDir
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("rosewm-ipc-%d.sock", os.Getpid()))
}
