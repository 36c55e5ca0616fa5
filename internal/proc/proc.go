// Package proc tracks child processes spawned by the server and the
// access rights granted to them. The table is consulted by the IPC layer
// to decide what a connecting pid may do.
package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/rosewm/rosewm/internal/logger"
	"github.com/rosewm/rosewm/internal/ordmap"
)

// Rights is a bitmask of capabilities granted to a spawned process.
type Rights uint32

const (
	// RightIPC allows dispatcher and configurator IPC connections.
	RightIPC Rights = 1 << iota
	// RightPrivilegedProtocols allows binding privileged display-server
	// protocols (screen lock, layer widgets).
	RightPrivilegedProtocols
)

var ErrEmptyArgv = errors.New("proc: empty argv")

type entry struct {
	pid    int
	rights Rights
}

func entryCmp(a, b entry) int {
	switch {
	case a.pid < b.pid:
		return -1
	case a.pid > b.pid:
		return 1
	default:
		return 0
	}
}

// Registry is the process table. Spawning and reaping happen on the
// event loop, but rights lookups come in from IPC socket goroutines, so
// the table carries its own lock.
type Registry struct {
	mu       sync.Mutex
	table    *ordmap.Map[entry]
	helperAt string // executable re-invoked for detached spawns
}

func NewRegistry() *Registry {
	exe, err := os.Executable()
	if err != nil {
		// Detached spawning degrades; direct spawns still work.
		logger.Warn("cannot resolve own executable", "err", err)
	}
	return &Registry{
		table:    ordmap.New(entryCmp),
		helperAt: exe,
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.Len()
}

// Spawn starts argv in a new session with default signal dispositions
// and records the granted rights under the child's pid. On failure no
// entry is created.
func (r *Registry) Spawn(argv []string, rights Rights) (int, error) {
	cmd, err := command(argv)
	if err != nil {
		return 0, err
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("proc: spawn %s: %w", argv[0], err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()

	node := &ordmap.Node[entry]{Value: entry{pid: pid, rights: rights}}
	r.mu.Lock()
	r.table.Insert(node)
	r.mu.Unlock()
	logger.Debug("spawned", "pid", pid, "cmd", argv[0], "rights", rights)
	return pid, nil
}

// SpawnDetached starts argv through an intermediate helper process that
// exits immediately, so the target is reparented to init and never shows
// up in this table.
func (r *Registry) SpawnDetached(argv []string) error {
	if len(argv) == 0 {
		return ErrEmptyArgv
	}
	if r.helperAt == "" {
		return errors.New("proc: no helper executable")
	}
	helper := exec.Command(r.helperAt, append([]string{"spawn-helper"}, argv...)...)
	helper.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := helper.Start(); err != nil {
		return fmt.Errorf("proc: spawn helper: %w", err)
	}
	_ = helper.Process.Release()
	return nil
}

// RunHelper is the body of the hidden spawn-helper command: start argv
// and return so the helper can exit, leaving the child to init.
func RunHelper(argv []string) error {
	cmd, err := command(argv)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("proc: helper spawn %s: %w", argv[0], err)
	}
	_ = cmd.Process.Release()
	return nil
}

func command(argv []string) (*exec.Cmd, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyArgv
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd, nil
}

// NotifyTermination drops the entry for pid. Unknown pids are ignored,
// which covers helper intermediaries and children spawned before a
// crash-restart.
func (r *Registry) NotifyTermination(pid int) {
	r.mu.Lock()
	n := r.table.Find(entry{pid: pid})
	if n != nil {
		r.table.Remove(n)
	}
	r.mu.Unlock()
	if n != nil {
		logger.Debug("unregistered", "pid", pid)
	}
}

// QueryRights reports the rights mask stored for pid. The kernel pids 0
// and 1 and the wildcard -1 never carry rights.
func (r *Registry) QueryRights(pid int) Rights {
	if pid <= 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.table.Find(entry{pid: pid})
	if n == nil {
		return 0
	}
	return n.Value.rights
}

// Reap drains exited children without blocking and unregisters each one.
// Wired to the loop's SIGCHLD source.
func (r *Registry) Reap() {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if pid <= 0 || err != nil {
			return
		}
		r.NotifyTermination(pid)
	}
}
