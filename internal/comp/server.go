package comp

import (
	"bytes"

	"github.com/rosewm/rosewm/internal/backend"
	"github.com/rosewm/rosewm/internal/config"
	"github.com/rosewm/rosewm/internal/ipc"
	"github.com/rosewm/rosewm/internal/logger"
	"github.com/rosewm/rosewm/internal/loop"
	"github.com/rosewm/rosewm/internal/prefs"
	"github.com/rosewm/rosewm/internal/proc"
	"github.com/rosewm/rosewm/internal/scheme"
)

// workspacePoolSize is the number of workspaces preallocated at
// startup; identifiers run 1 through workspacePoolSize.
const workspacePoolSize = 64

// Server is the root of the window-management kernel: the event loop,
// the seat, the workspace pool, the live outputs and inputs, the
// process registry and the state broadcast over IPC. Every method runs
// on the loop unless noted otherwise.
type Server struct {
	loop     *loop.Loop
	cfg      *config.Config
	scheme   *scheme.Scheme
	theme    config.Theme
	prefs    *prefs.Store
	reg      *proc.Registry
	ipc      *ipc.Server
	backend  backend.Backend
	renderer backend.Renderer

	seat *Seat

	current  *Workspace
	attached []*Workspace // in use, ascending id
	detached []*Workspace // fresh pool, ascending id

	outputs []*Output
	inputs  []backend.InputDevice

	keymapIndex int

	screenLocked       bool
	waitingForUser     bool
	shortcutsInhibited bool

	sysPids map[config.Helper]int
}

// NewServer builds the kernel around an event loop. The workspace pool
// is filled in ascending identifier order; IPC and the backend attach
// separately.
func NewServer(l *loop.Loop, cfg *config.Config, store *prefs.Store, reg *proc.Registry) (*Server, error) {
	if l == nil {
		return nil, errNoLoop
	}
	srv := &Server{
		loop:    l,
		cfg:     cfg,
		prefs:   store,
		reg:     reg,
		scheme:  scheme.Default(),
		theme:   config.DefaultTheme(),
		sysPids: make(map[config.Helper]int),
	}
	if cfg != nil {
		if cfg.Scheme != nil {
			srv.scheme = cfg.Scheme
		}
		srv.theme = cfg.Theme
	}
	srv.seat = newSeat(srv)
	for id := uint32(1); id <= workspacePoolSize; id++ {
		ws, err := newWorkspace(srv, id)
		if err != nil {
			return nil, err
		}
		srv.detached = append(srv.detached, ws)
	}
	return srv, nil
}

func (srv *Server) Loop() *loop.Loop       { return srv.loop }
func (srv *Server) Seat() *Seat            { return srv.seat }
func (srv *Server) Current() *Workspace    { return srv.current }
func (srv *Server) Outputs() []*Output     { return srv.outputs }
func (srv *Server) Scheme() *scheme.Scheme { return srv.scheme }
func (srv *Server) Theme() config.Theme    { return srv.theme }
func (srv *Server) ScreenLocked() bool     { return srv.screenLocked }

// AttachIPC wires the control socket: configurator requests route to
// the request handler and fresh status connections get the snapshot.
func (srv *Server) AttachIPC(s *ipc.Server) {
	srv.ipc = s
	s.SetOnRequest(srv.handleRequest)
	s.SetSnapshot(srv.ObtainStatus)
}

// AttachBackend starts the display backend and begins accepting its
// device announcements.
func (srv *Server) AttachBackend(b backend.Backend) error {
	srv.backend = b
	srv.renderer = b.Renderer()
	return b.Start(srv)
}

// Shutdown stops the backend and the per-workspace and per-output
// timers. The IPC server is owned by the caller and stopped there.
func (srv *Server) Shutdown() {
	if srv.backend != nil {
		srv.backend.Stop()
	}
	for _, out := range srv.outputs {
		out.destroy()
	}
	srv.outputs = nil
	for _, ws := range srv.attached {
		ws.destroy()
	}
	for _, ws := range srv.detached {
		ws.destroy()
	}
	logger.Info("server shut down")
}

// Backend device announcements arrive on backend goroutines and are
// serialized onto the loop.

func (srv *Server) OutputAdded(dev backend.OutputDevice) {
	srv.loop.Post(func() { srv.addOutput(dev) })
}

func (srv *Server) OutputRemoved(dev backend.OutputDevice) {
	srv.loop.Post(func() { srv.removeOutput(dev) })
}

func (srv *Server) InputAdded(dev backend.InputDevice) {
	srv.loop.Post(func() { srv.addInput(dev) })
}

func (srv *Server) InputRemoved(dev backend.InputDevice) {
	srv.loop.Post(func() { srv.removeInput(dev) })
}

func (srv *Server) addOutput(dev backend.OutputDevice) {
	out, err := newOutput(srv, dev)
	if err != nil {
		logger.Error("output rejected", "name", dev.Name(), "err", err)
		return
	}
	srv.applyOutputPreferences(out)
	srv.outputs = append(srv.outputs, out)

	ws := srv.orphanedWorkspace()
	if ws == nil {
		ws = srv.takeDetached()
	}
	if ws == nil {
		logger.Warn("workspace pool exhausted", "output", dev.Name())
	} else {
		out.setWorkspace(ws)
		if srv.current == nil {
			srv.MakeCurrent(ws)
		}
	}
	logger.Info("output added",
		"name", dev.Name(), "id", out.id, "modes", len(out.modes))
	srv.broadcast(ipc.StatusPacket{Kind: ipc.StatusOutputInitialized, Device: out.id})
}

func (srv *Server) removeOutput(dev backend.OutputDevice) {
	id := dev.ID()
	var out *Output
	for i, o := range srv.outputs {
		if o.id == id {
			out = o
			srv.outputs = append(srv.outputs[:i], srv.outputs[i+1:]...)
			break
		}
	}
	if out == nil {
		return
	}
	ws := out.workspace
	out.destroy()
	if srv.current == ws && len(srv.outputs) > 0 && srv.outputs[0].workspace != nil {
		srv.MakeCurrent(srv.outputs[0].workspace)
	}
	logger.Info("output removed", "name", dev.Name(), "id", id)
	srv.broadcast(ipc.StatusPacket{Kind: ipc.StatusOutputDestroyed, Device: id})
}

func (srv *Server) applyOutputPreferences(out *Output) {
	if srv.prefs == nil {
		return
	}
	p, ok := srv.prefs.Lookup(prefs.KindOutput, prefs.NameBlob(out.Name()))
	if !ok {
		return
	}
	op, ok := p.Params.(prefs.OutputParams)
	if !ok {
		return
	}
	if m := op.Mode; m.W > 0 && m.H > 0 {
		for _, have := range out.modes {
			if have.W == m.W && have.H == m.H && (m.Rate == 0 || have.Rate == m.Rate) {
				out.applyMode(have)
				break
			}
		}
	}
	if op.Transform <= uint8(backend.TransformFlipped270) {
		out.applyTransform(backend.Transform(op.Transform))
	}
	if op.Scale > 0 {
		out.applyScale(op.Scale)
	}
}

func (srv *Server) addInput(dev backend.InputDevice) {
	srv.inputs = append(srv.inputs, dev)
	if dev.Kind() == backend.InputPointer && srv.prefs != nil {
		if p, ok := srv.prefs.Lookup(prefs.KindPointer, prefs.NameBlob(dev.Name())); ok {
			if pp, ok := p.Params.(prefs.PointerParams); ok {
				dev.ApplyPointer(pp.AccelType, pp.Speed)
			}
		}
	}
	logger.Info("input added", "name", dev.Name(), "kind", dev.Kind().String())
	srv.broadcast(ipc.StatusPacket{Kind: ipc.StatusInputInitialized, Device: dev.ID()})
}

func (srv *Server) removeInput(dev backend.InputDevice) {
	id := dev.ID()
	for i, d := range srv.inputs {
		if d.ID() == id {
			srv.inputs = append(srv.inputs[:i], srv.inputs[i+1:]...)
			break
		}
	}
	logger.Info("input removed", "name", dev.Name())
	srv.broadcast(ipc.StatusPacket{Kind: ipc.StatusInputDestroyed, Device: id})
}

// MakeCurrent routes the seat to ws; keyboard and pointer focus are
// re-derived, landing on the lock widget while the screen is locked.
func (srv *Server) MakeCurrent(ws *Workspace) {
	if ws == nil || srv.current == ws {
		return
	}
	srv.current = ws
	if srv.seat != nil {
		srv.seat.updateFocus(ws)
	}
	ws.requestRedraw()
}

// WorkspaceAdd brings a fresh workspace from the pool onto the current
// output and makes it current.
func (srv *Server) WorkspaceAdd() {
	out := srv.currentOutput()
	if out == nil {
		logger.Warn("workspace-add with no output")
		return
	}
	ws := srv.takeDetached()
	if ws == nil {
		logger.Warn("workspace pool exhausted")
		return
	}
	out.setWorkspace(ws)
	srv.MakeCurrent(ws)
}

// WorkspaceRelative shows the next or previous in-use workspace on the
// current output, skipping ones displayed on another output.
func (srv *Server) WorkspaceRelative(dir int) {
	out := srv.currentOutput()
	n := len(srv.attached)
	if out == nil || srv.current == nil || n < 2 {
		return
	}
	i := indexOfWorkspace(srv.attached, srv.current)
	if i < 0 {
		return
	}
	for k := 1; k < n; k++ {
		cand := srv.attached[((i+dir*k)%n+n)%n]
		if cand.output != nil && cand.output != out {
			continue
		}
		out.setWorkspace(cand)
		srv.MakeCurrent(cand)
		return
	}
}

func (srv *Server) takeDetached() *Workspace {
	if len(srv.detached) == 0 {
		return nil
	}
	ws := srv.detached[0]
	srv.detached = srv.detached[1:]
	srv.attached = insertByID(srv.attached, ws)
	return ws
}

func (srv *Server) orphanedWorkspace() *Workspace {
	for _, ws := range srv.attached {
		if ws.output == nil {
			return ws
		}
	}
	return nil
}

func (srv *Server) currentOutput() *Output {
	if srv.current != nil && srv.current.output != nil {
		return srv.current.output
	}
	if len(srv.outputs) > 0 {
		return srv.outputs[0]
	}
	return nil
}

// SetScreenLocked flips the lock state, reshapes widget visibility on
// every output and re-routes the seat. Locked with no lock widget
// mapped counts as waiting for user interaction.
func (srv *Server) SetScreenLocked(on bool) {
	if srv.screenLocked == on {
		return
	}
	srv.screenLocked = on
	srv.waitingForUser = on && srv.lockWidgetMissing()
	for _, out := range srv.outputs {
		out.ui.LayoutWidgets()
		out.requestRasterUpdate()
		out.damageAll()
	}
	if srv.seat != nil && srv.current != nil {
		srv.seat.updateFocus(srv.current)
	}
	logger.Info("screen lock", "locked", on)
	srv.broadcastState()
}

// SetShortcutsInhibited is flipped through the shortcuts-inhibit
// extension; while set, no key binding matches.
func (srv *Server) SetShortcutsInhibited(on bool) {
	if srv.shortcutsInhibited == on {
		return
	}
	srv.shortcutsInhibited = on
	srv.broadcastState()
}

func (srv *Server) lockWidgetMissing() bool {
	for _, out := range srv.outputs {
		if out.ui.lockWidget() != nil {
			return false
		}
	}
	return true
}

// noteWidgetMapped lets the widget layer update server state: a lock
// widget appearing while locked ends the waiting-for-user phase and
// takes the seat focus; the last one vanishing restores it.
func (srv *Server) noteWidgetMapped(s *Surface, on bool) {
	if s.widget != WidgetScreenLock || !srv.screenLocked {
		return
	}
	was := srv.waitingForUser
	srv.waitingForUser = srv.lockWidgetMissing()
	if srv.seat != nil && srv.current != nil {
		srv.seat.updateFocus(srv.current)
	}
	if was != srv.waitingForUser {
		srv.broadcastState()
	}
}

// SwitchKeyboardLayout cycles the configured layouts and announces the
// new one on the status channel.
func (srv *Server) SwitchKeyboardLayout() {
	if srv.cfg == nil || len(srv.cfg.Layouts) == 0 {
		return
	}
	srv.keymapIndex = (srv.keymapIndex + 1) % len(srv.cfg.Layouts)
	logger.Info("keyboard layout", "layout", srv.KeymapLayout())
	srv.broadcast(ipc.StatusPacket{Kind: ipc.StatusKeymap, Blob: []byte(srv.KeymapLayout())})
}

// KeymapLayout is the active keyboard layout name.
func (srv *Server) KeymapLayout() string {
	if srv.cfg == nil || len(srv.cfg.Layouts) == 0 {
		return ""
	}
	return srv.cfg.Layouts[srv.keymapIndex]
}

// SpawnHelpers launches the configured system helper processes, each
// with the rights its role needs.
func (srv *Server) SpawnHelpers() {
	if srv.cfg == nil || srv.reg == nil {
		return
	}
	for _, h := range config.Helpers() {
		argv, ok := srv.cfg.Helpers[h]
		if !ok {
			continue
		}
		pid, err := srv.reg.Spawn(argv, helperRights(h))
		if err != nil {
			logger.Error("helper spawn failed", "helper", h.String(), "err", err)
			continue
		}
		srv.sysPids[h] = pid
		logger.Info("helper started", "helper", h.String(), "pid", pid)
	}
}

// helperRights maps a helper role to its grant: widget owners get the
// privileged protocols, the dispatcher and locker additionally talk
// IPC.
func helperRights(h config.Helper) proc.Rights {
	switch h {
	case config.HelperDispatcher:
		return proc.RightIPC
	case config.HelperPanel:
		return proc.RightIPC | proc.RightPrivilegedProtocols
	case config.HelperScreenLocker:
		return proc.RightIPC | proc.RightPrivilegedProtocols
	default:
		return proc.RightPrivilegedProtocols
	}
}

// CheckIPCAccessRights gates IPC connections. Status sockets are open;
// dispatcher and configurator require the IPC right granted at spawn.
// Called from connection goroutines.
func (srv *Server) CheckIPCAccessRights(pid int, kind ipc.ConnKind) bool {
	if kind == ipc.ConnStatus {
		return true
	}
	if srv.reg == nil {
		return false
	}
	return srv.reg.QueryRights(pid)&proc.RightIPC != 0
}

func (srv *Server) serverState() uint32 {
	var state uint32
	if srv.screenLocked {
		state |= ipc.StateScreenLocked
	}
	if srv.waitingForUser {
		state |= ipc.StateAwaitingUser
	}
	if srv.shortcutsInhibited {
		state |= ipc.StateShortcutsInhibited
	}
	return state
}

func (srv *Server) broadcast(p ipc.StatusPacket) {
	if srv.ipc != nil {
		srv.ipc.Broadcast(p)
	}
}

func (srv *Server) broadcastState() {
	srv.broadcast(ipc.StatusPacket{Kind: ipc.StatusServerState, State: srv.serverState()})
}

// ObtainStatus snapshots everything a fresh status connection needs:
// server state, keymap, control scheme, theme and the live devices.
func (srv *Server) ObtainStatus() []ipc.StatusPacket {
	out := []ipc.StatusPacket{
		{Kind: ipc.StatusServerState, State: srv.serverState()},
		{Kind: ipc.StatusKeymap, Blob: []byte(srv.KeymapLayout())},
		{Kind: ipc.StatusControlScheme, Blob: srv.scheme.Blob()},
		{Kind: ipc.StatusTheme, Blob: srv.theme.Blob()},
	}
	for _, dev := range srv.inputs {
		out = append(out, ipc.StatusPacket{Kind: ipc.StatusInputInitialized, Device: dev.ID()})
	}
	for _, o := range srv.outputs {
		out = append(out, ipc.StatusPacket{Kind: ipc.StatusOutputInitialized, Device: o.id})
	}
	return out
}

func (srv *Server) handleRequest(req ipc.Request) {
	switch req.Kind {
	case ipc.ReqSetTheme:
		t, err := config.ParseTheme(bytes.NewReader(req.Blob))
		if err != nil {
			logger.Warn("theme request rejected", "err", err)
			return
		}
		srv.theme = t
		for _, out := range srv.outputs {
			out.damageAll()
		}
		srv.broadcast(ipc.StatusPacket{Kind: ipc.StatusTheme, Blob: t.Blob()})

	case ipc.ReqSetScheme:
		sc, err := scheme.Load(bytes.NewReader(req.Blob))
		if err != nil {
			logger.Warn("scheme request rejected", "err", err)
			return
		}
		srv.scheme = sc
		srv.broadcast(ipc.StatusPacket{Kind: ipc.StatusControlScheme, Blob: sc.Blob()})

	case ipc.ReqSetScreenLock:
		srv.SetScreenLocked(req.Lock)

	default:
		logger.Warn("unknown request", "kind", uint8(req.Kind))
	}
}

func indexOfWorkspace(list []*Workspace, ws *Workspace) int {
	for i, c := range list {
		if c == ws {
			return i
		}
	}
	return -1
}
