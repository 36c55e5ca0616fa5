package comp

import (
	"errors"
	"time"

	"github.com/rosewm/rosewm/internal/backend"
	"github.com/rosewm/rosewm/internal/logger"
	"github.com/rosewm/rosewm/internal/loop"
)

// TransactionTimeout bounds how long a workspace waits for every client
// caught in a layout change to commit at its new size before the
// pending state is imposed.
const TransactionTimeout = 300 * time.Millisecond

// defaultPointerIdleDelay applies when the configuration does not set
// pointer.idle_delay_ms.
const defaultPointerIdleDelay = 500 * time.Millisecond

var errNoLoop = errors.New("comp: workspace requires an event loop")

// PanelPosition names the workspace edge the panel strip occupies.
type PanelPosition uint8

const (
	PanelTop PanelPosition = iota
	PanelBottom
	PanelLeft
	PanelRight
)

// Panel describes the strip reserved for the panel widget. The layout
// subtracts a visible panel from the workspace before sizing a
// maximized surface.
type Panel struct {
	Position PanelPosition
	Size     int32
	Visible  bool
}

// InteractiveMode is the pointer-driven manipulation a workspace is in.
// ModeNormal means none; the resize modes name the dragged edge or
// corner.
type InteractiveMode uint8

const (
	ModeNormal InteractiveMode = iota
	ModeMove
	ModeResizeN
	ModeResizeNE
	ModeResizeE
	ModeResizeSE
	ModeResizeS
	ModeResizeSW
	ModeResizeW
	ModeResizeNW
)

// resizeEdges reports which edges the mode drags.
func (m InteractiveMode) resizeEdges() (north, east, south, west bool) {
	switch m {
	case ModeResizeN:
		north = true
	case ModeResizeNE:
		north, east = true, true
	case ModeResizeE:
		east = true
	case ModeResizeSE:
		south, east = true, true
	case ModeResizeS:
		south = true
	case ModeResizeSW:
		south, west = true, true
	case ModeResizeW:
		west = true
	case ModeResizeNW:
		north, west = true, true
	}
	return
}

type pointerState struct {
	x, y     int32
	savedX   int32
	savedY   int32
	lastTime uint32
	idle     *loop.Timer
	armed    bool
}

type transactionState struct {
	sentinel  int
	surfaces  []*Surface
	panelSnap *Snapshot
	started   time.Time
	watchdog  *loop.Timer
}

// Workspace owns one tiling cell: the toplevels assigned to it, their
// layout and focus order, the panel strip, interactive move/resize and
// the transaction machinery that keeps resizes atomic on screen.
type Workspace struct {
	srv    *Server
	id     uint32
	output *Output

	width  int32
	height int32

	panel      Panel
	savedPanel Panel

	mode    InteractiveMode
	focused *Surface

	all     []*Surface // creation order
	mapped  []*Surface // focus order, most recent first
	visible []*Surface // layout result, topmost first

	pointer pointerState
	txn     transactionState
}

func newWorkspace(srv *Server, id uint32) (*Workspace, error) {
	if srv == nil || srv.loop == nil {
		return nil, errNoLoop
	}
	w := &Workspace{
		srv:   srv,
		id:    id,
		panel: Panel{Position: PanelTop, Size: 32},
	}
	w.txn.watchdog = srv.loop.NewTimer(w.forceCommit)
	w.pointer.idle = srv.loop.NewTimer(w.pointerIdle)
	return w, nil
}

// destroy disarms the workspace timers. Runs only at server teardown;
// pool workspaces are never reused afterwards.
func (w *Workspace) destroy() {
	w.txn.watchdog.Disarm()
	w.pointer.idle.Disarm()
	w.pointer.armed = false
}

// ID is the workspace's stable identifier, 1-based and unique in the
// server's pool.
func (w *Workspace) ID() uint32 { return w.id }

// Focused reports the focused surface, nil when none.
func (w *Workspace) Focused() *Surface { return w.focused }

// Output reports the output the workspace is shown on, nil while
// detached.
func (w *Workspace) Output() *Output { return w.output }

// Mode reports the interactive mode in effect.
func (w *Workspace) Mode() InteractiveMode { return w.mode }

// Panel reports the active panel strip.
func (w *Workspace) Panel() Panel { return w.panel }

// SavedPanel reports the strip in effect before the last SetPanel.
func (w *Workspace) SavedPanel() Panel { return w.savedPanel }

// Size reports the workspace extent in workspace units.
func (w *Workspace) Size() (width, height int32) { return w.width, w.height }

// addSurface registers a freshly created toplevel. It joins the layout
// once it maps.
func (w *Workspace) addSurface(s *Surface) {
	w.all = append(w.all, s)
}

// surfaceMapped tracks map-state flips of the workspace's toplevels. A
// newly mapped surface takes focus; unmapping repairs focus onto the
// most recently used survivor.
func (w *Workspace) surfaceMapped(s *Surface, on bool) {
	if on {
		w.mapped = append(w.mapped, s)
		w.Focus(s)
		return
	}
	w.mapped = dropSurface(w.mapped, s)
	w.visible = dropSurface(w.visible, s)
	s.setVisible(false)
	w.repairFocus(s)
}

// removeSurface severs a destroyed surface from every list the
// workspace keeps.
func (w *Workspace) removeSurface(s *Surface) {
	w.all = dropSurface(w.all, s)
	w.mapped = dropSurface(w.mapped, s)
	w.visible = dropSurface(w.visible, s)
	w.txn.surfaces = dropSurface(w.txn.surfaces, s)
	w.repairFocus(s)
}

func (w *Workspace) repairFocus(gone *Surface) {
	if w.focused != gone {
		w.Layout()
		return
	}
	w.focused = nil
	if len(w.mapped) > 0 {
		w.Focus(w.mapped[0])
		return
	}
	if w.srv != nil && w.srv.current == w && w.srv.seat != nil {
		w.srv.seat.updateFocus(w)
	}
	w.Layout()
}

// Focus moves focus to s, which must be a mapped normal toplevel of
// this workspace. The previous surface is deactivated outside any
// transaction and its pointer constraint disengaged. When the
// workspace is current, the seat's keyboard focus follows.
func (w *Workspace) Focus(s *Surface) {
	if s == nil || s.ws != w || !s.mapped || s.role != RoleToplevel || s.widget != WidgetNone {
		return
	}
	if w.focused == s {
		return
	}
	if prev := w.focused; prev != nil {
		prev.Configure(ConfigActivated|ConfigNoTransaction, State{})
		if prev.constraint != nil {
			prev.constraint.active = false
		}
	}
	w.focused = s
	s.Configure(ConfigActivated|ConfigNoTransaction, State{Activated: true})
	w.Layout()
	if w.output != nil {
		w.output.requestRasterUpdate()
	}
	if w.srv != nil && w.srv.current == w && w.srv.seat != nil {
		w.srv.seat.updateFocus(w)
	}
}

// FocusRelative moves focus along the mapped list, wrapping at the
// ends. dir is +1 for the next surface, -1 for the previous one.
func (w *Workspace) FocusRelative(dir int) {
	n := len(w.mapped)
	if n == 0 {
		return
	}
	i := indexOfSurface(w.mapped, w.focused)
	if i < 0 {
		w.Focus(w.mapped[0])
		return
	}
	w.Focus(w.mapped[((i+dir)%n+n)%n])
}

// mainArea is the workspace rectangle minus the reserved panel strip.
func (w *Workspace) mainArea() backend.Rect {
	r := backend.Rect{W: w.width, H: w.height}
	if !w.panel.Visible {
		return r
	}
	switch w.panel.Position {
	case PanelTop:
		r.Y += w.panel.Size
		r.H -= w.panel.Size
	case PanelBottom:
		r.H -= w.panel.Size
	case PanelLeft:
		r.X += w.panel.Size
		r.W -= w.panel.Size
	case PanelRight:
		r.W -= w.panel.Size
	}
	r.W = max(r.W, 0)
	r.H = max(r.H, 0)
	return r
}

// Layout recomputes geometry and the visible set. The focused surface
// moves to the head of the mapped order. The first mapped surface
// asking for maximize or fullscreen is sized to the main area or the
// whole workspace and becomes the only visible one; otherwise every
// mapped surface keeps its geometry and is visible in focus order.
func (w *Workspace) Layout() {
	main := w.mainArea()
	w.promoteFocused()

	var zoomed *Surface
	for _, s := range w.mapped {
		if !s.pend.zoomed() {
			continue
		}
		zoomed = s
		r := backend.Rect{W: w.width, H: w.height}
		if !s.pend.Fullscreen {
			r = main
		}
		s.Configure(configGeometry, State{X: r.X, Y: r.Y, W: r.W, H: r.H})
		break
	}

	for _, s := range w.visible {
		s.setVisible(false)
	}
	w.visible = w.visible[:0]
	if zoomed != nil {
		zoomed.setVisible(true)
		w.visible = append(w.visible, zoomed)
	} else {
		for _, s := range w.mapped {
			s.setVisible(true)
			w.visible = append(w.visible, s)
		}
	}

	w.requestRedraw()
}

func (w *Workspace) promoteFocused() {
	if w.focused == nil || !w.focused.mapped {
		return
	}
	i := indexOfSurface(w.mapped, w.focused)
	if i <= 0 {
		return
	}
	copy(w.mapped[1:i+1], w.mapped[:i])
	w.mapped[0] = w.focused
}

// ConfigureSurface applies an externally requested state change to one
// of the workspace's surfaces. The layout is recomputed when the
// change flips the surface into or out of maximized/fullscreen.
func (w *Workspace) ConfigureSurface(s *Surface, mask ConfigureMask, target State) {
	if s == nil || s.ws != w {
		return
	}
	before := s.pend
	s.Configure(mask, target)
	if s.pend == before {
		return
	}
	if s.mapped && before.zoomed() != s.pend.zoomed() {
		w.Layout()
	}
	w.requestRedraw()
}

// SetPanel replaces the panel strip, keeping the previous one
// recallable, and reflows the workspace and the output's widget layer.
func (w *Workspace) SetPanel(p Panel) {
	if w.panel == p {
		return
	}
	w.savedPanel = w.panel
	w.panel = p
	w.Layout()
	if w.output != nil && w.output.ui != nil {
		w.output.ui.LayoutWidgets()
	}
}

// transactionJoin adds s to the running transaction, opening one if
// this is the first participant. Joining twice is a no-op so a surface
// reconfigured again during layout is counted once.
func (w *Workspace) transactionJoin(s *Surface) {
	if s.inTransaction {
		return
	}
	if w.txn.sentinel == 0 {
		w.transactionBegin()
	}
	s.inTransaction = true
	w.txn.sentinel++
	w.txn.surfaces = append(w.txn.surfaces, s)
}

// transactionBegin freezes the frame on screen: every visible surface
// tree locks its buffers and the panel widget is snapshotted alongside,
// then the watchdog starts counting.
func (w *Workspace) transactionBegin() {
	w.txn.started = time.Now()
	w.txn.surfaces = w.txn.surfaces[:0]
	for _, s := range w.visible {
		s.captureSnapshots()
	}
	if w.output != nil && w.output.ui != nil && w.txn.panelSnap == nil {
		if p := w.output.ui.visiblePanel(); p != nil {
			w.txn.panelSnap = &Snapshot{rect: p.bounds(), lock: p.client.LockBuffer()}
		}
	}
	w.txn.watchdog.Arm(TransactionTimeout)
	logger.Debug("transaction started", "workspace", w.id)
}

// transactionUpdate is called once per surface that settles into its
// pending state; the last acknowledgement commits.
func (w *Workspace) transactionUpdate() {
	if w.txn.sentinel == 0 {
		return
	}
	w.txn.sentinel--
	if w.txn.sentinel == 0 {
		w.transactionCommit()
	}
}

func (w *Workspace) transactionCommit() {
	w.txn.watchdog.Disarm()
	w.txn.sentinel = 0
	for _, s := range w.txn.surfaces {
		s.commitTransaction()
	}
	w.txn.surfaces = w.txn.surfaces[:0]
	// The visible set may have shrunk since the snapshots were taken;
	// walk every surface so no buffer lock survives the transaction.
	for _, s := range w.all {
		s.releaseSnapshots()
	}
	if w.txn.panelSnap != nil {
		w.txn.panelSnap.release()
		w.txn.panelSnap = nil
	}
	logger.Debug("transaction committed",
		"workspace", w.id, "elapsed", time.Since(w.txn.started))
	w.requestRedraw()
}

// forceCommit is the watchdog expiry path: surfaces that never
// acknowledged get their pending state imposed and resynchronize on
// their next commit.
func (w *Workspace) forceCommit() {
	if w.txn.sentinel == 0 {
		return
	}
	logger.Warn("transaction timed out",
		"workspace", w.id, "unacknowledged", w.txn.sentinel)
	w.transactionCommit()
}

// EnterMove begins interactive movement of the focused surface.
func (w *Workspace) EnterMove() bool {
	return w.enterInteractive(ModeMove)
}

// EnterResize begins interactive resizing along the given edge mode.
func (w *Workspace) EnterResize(mode InteractiveMode) bool {
	if mode < ModeResizeN || mode > ModeResizeNW {
		return false
	}
	return w.enterInteractive(mode)
}

func (w *Workspace) enterInteractive(mode InteractiveMode) bool {
	if w.mode != ModeNormal || w.focused == nil {
		return false
	}
	if w.focused.pend.zoomed() {
		return false
	}
	w.mode = mode
	w.pointer.savedX = w.pointer.x
	w.pointer.savedY = w.pointer.y
	return true
}

// CommitInteractiveMode leaves move or resize mode and applies the
// pointer delta accumulated since entry to the focused surface. A drag
// through the anchored edge reflects the rectangle so the surface keeps
// following the pointer; the result always overlaps the main area by at
// least one pixel.
func (w *Workspace) CommitInteractiveMode() {
	mode := w.mode
	w.mode = ModeNormal
	if mode == ModeNormal || w.focused == nil {
		return
	}

	dx := w.pointer.x - w.pointer.savedX
	dy := w.pointer.y - w.pointer.savedY
	st := w.focused.pend
	x, y, wd, ht := st.X, st.Y, st.W, st.H

	if mode == ModeMove {
		x += dx
		y += dy
	} else {
		north, east, south, west := mode.resizeEdges()
		if east {
			wd += dx
			if wd < 0 {
				x += wd
				wd = -wd
			}
		}
		if west {
			wd -= dx
			if wd < 0 {
				x += st.W
				wd = -wd
			} else {
				x += dx
			}
		}
		if south {
			ht += dy
			if ht < 0 {
				y += ht
				ht = -ht
			}
		}
		if north {
			ht -= dy
			if ht < 0 {
				y += st.H
				ht = -ht
			} else {
				y += dy
			}
		}
	}

	wd = max(wd, 1)
	ht = max(ht, 1)
	main := w.mainArea()
	x = clamp32(x, main.X-wd+1, main.X+main.W-1)
	y = clamp32(y, main.Y-ht+1, main.Y+main.H-1)

	w.ConfigureSurface(w.focused, configGeometry, State{X: x, Y: y, W: wd, H: ht})
}

// PointerWarp records a pointer position in workspace coordinates,
// refreshes pointer focus through the output's UI and re-arms the
// hover timer.
func (w *Workspace) PointerWarp(t uint32, x, y int32) {
	w.pointer.x = x
	w.pointer.y = y
	w.pointer.lastTime = t
	w.hitTest()
	w.armIdleTimer()
}

func (w *Workspace) armIdleTimer() {
	delay := defaultPointerIdleDelay
	if w.srv != nil && w.srv.cfg != nil {
		if ms := w.srv.cfg.Ambient.Pointer.IdleDelayMS; ms > 0 {
			delay = time.Duration(ms) * time.Millisecond
		}
	}
	w.pointer.armed = true
	w.pointer.idle.Arm(delay)
}

// pointerIdle fires after the pointer has been still for the idle
// delay; the synthetic re-test lets a popup that appeared under the
// stationary cursor gain hover focus.
func (w *Workspace) pointerIdle() {
	if !w.pointer.armed {
		return
	}
	w.pointer.armed = false
	w.hitTest()
}

// hitTest resolves what the pointer is over and hands it to the seat.
// Widgets stacked above normal surfaces win first, then the
// workspace's visible surfaces, then the background widget. The menu
// swallows the pointer entirely.
func (w *Workspace) hitTest() {
	srv := w.srv
	if srv == nil || srv.current != w || srv.seat == nil {
		return
	}
	var ui *OutputUI
	if w.output != nil {
		ui = w.output.ui
	}
	if ui == nil {
		s, lx, ly := w.surfaceAt(w.pointer.x, w.pointer.y)
		srv.seat.setPointerFocus(s, lx, ly)
		return
	}
	sel := ui.Select(w.pointer.x, w.pointer.y)
	switch {
	case sel.Menu:
		srv.seat.setPointerFocus(nil, 0, 0)
	case sel.Surface != nil && sel.Kind != WidgetBackground:
		srv.seat.setPointerFocus(sel.Surface, sel.LocalX, sel.LocalY)
	default:
		if !srv.screenLocked {
			if s, lx, ly := w.surfaceAt(w.pointer.x, w.pointer.y); s != nil {
				srv.seat.setPointerFocus(s, lx, ly)
				return
			}
		}
		srv.seat.setPointerFocus(sel.Surface, sel.LocalX, sel.LocalY)
	}
}

// surfaceAt finds the topmost visible surface under the point, walking
// popup trees and skipping minimized surfaces.
func (w *Workspace) surfaceAt(x, y int32) (*Surface, int32, int32) {
	for _, s := range w.visible {
		if s.cur.Minimized {
			continue
		}
		if hit, lx, ly := s.treeAt(x, y); hit != nil {
			return hit, lx, ly
		}
	}
	return nil, 0, 0
}

// attach binds the workspace to an output and adopts its effective
// resolution.
func (w *Workspace) attach(out *Output) {
	w.output = out
	if out != nil {
		w.width, w.height = out.effectiveSize()
	}
	w.Layout()
}

// detach unbinds the workspace; its surfaces keep their state and
// reappear when the workspace is attached again.
func (w *Workspace) detach() {
	w.output = nil
}

// resize adopts a new extent, usually after an output mode change.
func (w *Workspace) resize(width, height int32) {
	if w.width == width && w.height == height {
		return
	}
	w.width = width
	w.height = height
	w.Layout()
}

func (w *Workspace) requestRedraw() {
	if w.output != nil {
		w.output.RequestRedraw()
	}
}

// insertByID places ws into list preserving ascending identifier
// order.
func insertByID(list []*Workspace, ws *Workspace) []*Workspace {
	i := 0
	for i < len(list) && list[i].id < ws.id {
		i++
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = ws
	return list
}

func indexOfSurface(list []*Surface, s *Surface) int {
	for i, c := range list {
		if c == s {
			return i
		}
	}
	return -1
}

func clamp32(v, lo, hi int32) int32 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
