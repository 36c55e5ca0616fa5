package comp

import (
	"github.com/rosewm/rosewm/internal/logger"
	"github.com/rosewm/rosewm/internal/scheme"
)

// maxChordKeys is the widest chord the control scheme can bind.
const maxChordKeys = 5

// Seat turns raw key and button events into window-management
// operations through the active control scheme, and tracks which
// surfaces hold keyboard and pointer focus.
type Seat struct {
	srv *Server

	held []uint32 // pressed keysyms in press order

	keyboardFocus *Surface
	pointerFocus  *Surface
	pointerLocalX int32
	pointerLocalY int32
}

func newSeat(srv *Server) *Seat {
	return &Seat{srv: srv, held: make([]uint32, 0, maxChordKeys)}
}

// KeyboardFocus reports the surface receiving key events.
func (st *Seat) KeyboardFocus() *Surface { return st.keyboardFocus }

// PointerFocus reports the surface under the pointer.
func (st *Seat) PointerFocus() *Surface { return st.pointerFocus }

// HandleKey processes one key event and reports whether a binding
// consumed it; unconsumed keys belong to the focused client. Under
// screen lock every key goes to the lock widget. While shortcuts are
// inhibited no binding matches.
func (st *Seat) HandleKey(sym uint32, pressed bool) bool {
	if !pressed {
		st.release(sym)
		return false
	}
	st.press(sym)

	srv := st.srv
	if srv == nil || srv.screenLocked || srv.shortcutsInhibited {
		return false
	}
	chord := st.chord()
	sc := srv.scheme
	if sc == nil {
		return false
	}

	menu := st.currentMenu()
	if menu != nil && menu.visible {
		if a, ok := sc.LookupMenu(chord); ok {
			st.runMenu(menu, a)
			return true
		}
		return false
	}
	if a, ok := sc.LookupCore(chord); ok {
		st.runCore(a)
		return true
	}
	if menu != nil {
		if a, ok := sc.LookupMenu(chord); ok && a == scheme.MenuShow {
			menu.Show()
			return true
		}
	}
	if cmd, ok := sc.LookupIPC(chord); ok {
		if srv.ipc != nil && !srv.ipc.DispatchCommand(cmd) {
			logger.Warn("ipc binding fired with no dispatcher connected")
		}
		return true
	}
	return false
}

// HandleButton processes one pointer button event. A press focuses the
// toplevel under the pointer; a release while in interactive mode
// commits the drag.
func (st *Seat) HandleButton(button uint32, pressed bool) {
	_ = button
	srv := st.srv
	if srv == nil || srv.current == nil {
		return
	}
	ws := srv.current
	if !pressed {
		if ws.mode != ModeNormal {
			ws.CommitInteractiveMode()
		}
		return
	}
	if ws.mode != ModeNormal || srv.screenLocked {
		return
	}
	if s := st.pointerFocus; s != nil {
		root := s
		for root.master != nil {
			root = root.master
		}
		if root.widget == WidgetNone && root.ws != nil {
			root.ws.Focus(root)
		}
	}
}

// HandlePointerMotion applies a relative motion to the current
// workspace's pointer. An active pointer constraint pins the pointer
// in place.
func (st *Seat) HandlePointerMotion(t uint32, dx, dy int32) {
	srv := st.srv
	if srv == nil || srv.current == nil {
		return
	}
	if f := st.pointerFocus; f != nil && f.ConstraintActive() {
		return
	}
	ws := srv.current
	x := clamp32(ws.pointer.x+dx, 0, max(ws.width-1, 0))
	y := clamp32(ws.pointer.y+dy, 0, max(ws.height-1, 0))
	ws.PointerWarp(t, x, y)
}

// updateFocus re-derives keyboard and pointer focus after a workspace
// change. Under screen lock both land on the lock widget.
func (st *Seat) updateFocus(w *Workspace) {
	srv := st.srv
	if w == nil || srv == nil || srv.current != w {
		return
	}
	if srv.screenLocked {
		var lock *Surface
		if w.output != nil && w.output.ui != nil {
			lock = w.output.ui.lockWidget()
		}
		st.keyboardFocus = lock
		st.pointerFocus = lock
		st.pointerLocalX, st.pointerLocalY = 0, 0
		return
	}
	st.keyboardFocus = w.focused
	w.hitTest()
}

func (st *Seat) setPointerFocus(s *Surface, lx, ly int32) {
	st.pointerFocus = s
	st.pointerLocalX = lx
	st.pointerLocalY = ly
}

// surfaceDestroyed drops focus references to a surface being torn
// down.
func (st *Seat) surfaceDestroyed(s *Surface) {
	if st.keyboardFocus == s {
		st.keyboardFocus = nil
	}
	if st.pointerFocus == s {
		st.pointerFocus = nil
	}
}

func (st *Seat) press(sym uint32) {
	for _, h := range st.held {
		if h == sym {
			return
		}
	}
	if len(st.held) < maxChordKeys {
		st.held = append(st.held, sym)
	}
}

func (st *Seat) release(sym uint32) {
	for i, h := range st.held {
		if h == sym {
			st.held = append(st.held[:i], st.held[i+1:]...)
			return
		}
	}
}

func (st *Seat) chord() scheme.Chord {
	var c scheme.Chord
	copy(c[:], st.held)
	return c
}

func (st *Seat) currentMenu() *Menu {
	ws := st.srv.current
	if ws == nil || ws.output == nil || ws.output.ui == nil {
		return nil
	}
	return ws.output.ui.Menu()
}

func (st *Seat) runMenu(m *Menu, a scheme.MenuAction) {
	switch a {
	case scheme.MenuShow:
		m.Show()
	case scheme.MenuCancel:
		m.Cancel()
	case scheme.MenuLineUp:
		m.LineUp()
	case scheme.MenuLineDown:
		m.LineDown()
	case scheme.MenuSelect:
		m.Choose()
	}
}

func (st *Seat) runCore(a scheme.CoreAction) {
	srv := st.srv
	ws := srv.current
	logger.Debug("core action", "action", a.String())

	switch a {
	case scheme.CoreSpawnTerminal:
		if srv.cfg == nil || len(srv.cfg.Terminal) == 0 {
			logger.Warn("no terminal configured")
			return
		}
		if srv.reg == nil {
			return
		}
		if _, err := srv.reg.Spawn(srv.cfg.Terminal, 0); err != nil {
			logger.Error("terminal spawn failed", "err", err)
		}

	case scheme.CoreFocusNext:
		if ws != nil {
			ws.FocusRelative(1)
		}
	case scheme.CoreFocusPrev:
		if ws != nil {
			ws.FocusRelative(-1)
		}

	case scheme.CoreToggleMaximized:
		if ws != nil && ws.focused != nil {
			f := ws.focused
			ws.ConfigureSurface(f, ConfigMaximized, State{Maximized: !f.pend.Maximized})
		}
	case scheme.CoreToggleFullscreen:
		if ws != nil && ws.focused != nil {
			f := ws.focused
			ws.ConfigureSurface(f, ConfigFullscreen, State{Fullscreen: !f.pend.Fullscreen})
		}

	case scheme.CoreCloseSurface:
		if ws != nil && ws.focused != nil {
			ws.focused.client.Close()
		}

	case scheme.CoreWorkspaceAdd:
		srv.WorkspaceAdd()
	case scheme.CoreWorkspaceNext:
		srv.WorkspaceRelative(1)
	case scheme.CoreWorkspacePrev:
		srv.WorkspaceRelative(-1)

	case scheme.CoreScreenLock:
		srv.SetScreenLocked(true)

	case scheme.CoreSwitchKeyboardLayout:
		srv.SwitchKeyboardLayout()

	case scheme.CoreMoveMode:
		if ws != nil {
			ws.EnterMove()
		}
	case scheme.CoreResizeMode:
		if ws != nil {
			ws.EnterResize(ModeResizeSE)
		}
	}
}
