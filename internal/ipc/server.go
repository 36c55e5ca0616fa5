package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/rosewm/rosewm/internal/logger"
	"github.com/rosewm/rosewm/internal/loop"
)

// AccessChecker decides whether a peer pid may open a connection kind.
// It is called from connection goroutines and must be safe for
// concurrent use.
type AccessChecker func(pid int, kind ConnKind) bool

// Server accepts typed control connections on a unix socket. Socket
// goroutines never touch kernel state: requests are posted onto the
// event loop, and broadcasts are handed to per-connection writers.
type Server struct {
	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	loop       *loop.Loop
	check      AccessChecker
	onRequest  func(Request)
	snapshot   func() []StatusPacket
	status     map[*conn]struct{}
	dispatcher *conn
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	running    bool
}

// NewServer creates a server bound to socketPath once started.
func NewServer(l *loop.Loop, socketPath string, check AccessChecker) *Server {
	return &Server{
		loop:       l,
		socketPath: socketPath,
		check:      check,
		status:     make(map[*conn]struct{}),
	}
}

// SocketPath returns the bound socket path.
func (s *Server) SocketPath() string { return s.socketPath }

// SetOnRequest installs the configurator request handler; it is invoked
// on the event loop.
func (s *Server) SetOnRequest(fn func(Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRequest = fn
}

// SetSnapshot installs the full-state snapshot sent to every status
// connection on open; it is invoked on the event loop.
func (s *Server) SetSnapshot(fn func() []StatusPacket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = fn
}

// Start binds the socket, exports its path in the environment for
// spawned helpers, and begins accepting.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("ipc: remove stale socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("ipc: create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("ipc: listen: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("ipc: socket permissions: %w", err)
	}
	if err := os.Setenv(EndpointEnv, s.socketPath); err != nil {
		listener.Close()
		return fmt.Errorf("ipc: export endpoint: %w", err)
	}

	s.listener = listener
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptConnections(ctx)

	logger.Info("control socket listening", "path", s.socketPath)
	return nil
}

// Stop closes the listener and every connection, then removes the
// socket file.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.listener.Close()
	for c := range s.status {
		c.close()
	}
	if s.dispatcher != nil {
		s.dispatcher.close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	os.RemoveAll(s.socketPath)
	logger.Info("control socket stopped")
}

// Broadcast queues a status packet for every status connection.
func (s *Server) Broadcast(p StatusPacket) {
	frame := p.Encode()
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.status {
		c.send(frame)
	}
}

// DispatchCommand forwards a bound IPC command to the dispatcher helper.
// It reports whether a dispatcher is connected.
func (s *Server) DispatchCommand(cmd [64]byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dispatcher == nil {
		return false
	}
	s.dispatcher.send(cmd[:])
	return true
}

func (s *Server) acceptConnections(ctx context.Context) {
	defer s.wg.Done()
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Error("accept failed", "err", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConnection(ctx, nc)
	}
}

// handleConnection performs the typed handshake, then runs the per-kind
// read loop. Any framing error closes only this connection.
func (s *Server) handleConnection(ctx context.Context, nc net.Conn) {
	defer s.wg.Done()

	c := newConn(nc)
	kind, pid, err := c.handshake()
	if err != nil {
		logger.Debug("connection rejected", "err", err)
		c.close()
		return
	}
	if !s.admit(pid, kind) {
		logger.Warn("connection denied", "pid", pid, "kind", kind.String())
		c.close()
		return
	}
	logger.Debug("connection open", "pid", pid, "kind", kind.String())

	switch kind {
	case ConnStatus:
		s.addStatus(c)
		c.waitEOF()
		s.dropStatus(c)
	case ConnDispatcher:
		s.setDispatcher(c)
		c.waitEOF()
		s.clearDispatcher(c)
	case ConnConfigurator:
		s.serveConfigurator(ctx, c)
	}
	c.close()
	logger.Debug("connection closed", "pid", pid, "kind", kind.String())
}

func (s *Server) admit(pid int, kind ConnKind) bool {
	switch kind {
	case ConnStatus, ConnDispatcher, ConnConfigurator:
	default:
		return false
	}
	if s.check == nil {
		return true
	}
	return s.check(pid, kind)
}

func (s *Server) addStatus(c *conn) {
	s.mu.Lock()
	snapshot := s.snapshot
	s.status[c] = struct{}{}
	s.mu.Unlock()

	if snapshot == nil {
		return
	}
	// Full state snapshot for a fresh listener, assembled on the loop.
	s.loop.Post(func() {
		for _, p := range snapshot() {
			c.send(p.Encode())
		}
	})
}

func (s *Server) dropStatus(c *conn) {
	s.mu.Lock()
	delete(s.status, c)
	s.mu.Unlock()
}

func (s *Server) setDispatcher(c *conn) {
	s.mu.Lock()
	prev := s.dispatcher
	s.dispatcher = c
	s.mu.Unlock()
	if prev != nil {
		prev.close()
	}
}

func (s *Server) clearDispatcher(c *conn) {
	s.mu.Lock()
	if s.dispatcher == c {
		s.dispatcher = nil
	}
	s.mu.Unlock()
}

func (s *Server) serveConfigurator(ctx context.Context, c *conn) {
	for {
		frame, err := ReadFrame(c.nc)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				logger.Debug("configurator read ended", "err", err)
			}
			return
		}
		req, err := DecodeRequest(frame)
		if err != nil {
			logger.Warn("configurator sent garbage, closing", "err", err)
			return
		}
		s.mu.Lock()
		handler := s.onRequest
		s.mu.Unlock()
		if handler != nil {
			s.loop.Post(func() { handler(req) })
		}
	}
}

// peerPID reads the connecting process id from the socket.
func peerPID(nc net.Conn) (int, error) {
	uc, ok := nc.(*net.UnixConn)
	if !ok {
		return 0, errors.New("ipc: not a unix connection")
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var (
		pid     int
		credErr error
	)
	if err := raw.Control(func(fd uintptr) {
		cred, err := unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		if err != nil {
			credErr = err
			return
		}
		pid = int(cred.Pid)
	}); err != nil {
		return 0, err
	}
	return pid, credErr
}
