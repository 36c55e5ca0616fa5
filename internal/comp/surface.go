// Package comp implements the window-management core: surfaces and
// their transactions, workspaces and layout, the per-output widget UI,
// damage tracking, and input routing. Everything in this package runs
// on the server's event loop; nothing here is safe to call from other
// goroutines.
package comp

import (
	"errors"

	"github.com/rosewm/rosewm/internal/backend"
)

// Role distinguishes the three surface variants.
type Role uint8

const (
	RoleToplevel Role = iota
	RolePopup
	RoleSubsurface
)

// WidgetKind classifies toplevels managed by an OutputUI rather than a
// workspace. WidgetNone marks a normal window. The declaration order is
// the unlocked stacking order, panel on top.
type WidgetKind uint8

const (
	WidgetNone WidgetKind = iota
	WidgetScreenLock
	WidgetBackground
	WidgetNotification
	WidgetPrompt
	WidgetPanel
)

const widgetKindCount = 5

func (k WidgetKind) String() string {
	switch k {
	case WidgetNone:
		return "none"
	case WidgetScreenLock:
		return "screen-lock"
	case WidgetBackground:
		return "background"
	case WidgetNotification:
		return "notification"
	case WidgetPrompt:
		return "prompt"
	case WidgetPanel:
		return "panel"
	default:
		return "invalid"
	}
}

// State is one slot of a toplevel's state vector.
type State struct {
	X, Y, W, H int32
	Activated  bool
	Maximized  bool
	Minimized  bool
	Fullscreen bool
}

func (st State) Rect() backend.Rect {
	return backend.Rect{X: st.X, Y: st.Y, W: st.W, H: st.H}
}

func (st State) zoomed() bool {
	return st.Maximized || st.Fullscreen
}

// ConfigureMask selects which State fields a Configure applies.
type ConfigureMask uint16

const (
	ConfigX ConfigureMask = 1 << iota
	ConfigY
	ConfigWidth
	ConfigHeight
	ConfigActivated
	ConfigMaximized
	ConfigMinimized
	ConfigFullscreen

	// ConfigNoTransaction applies the change without routing it
	// through a workspace transaction.
	ConfigNoTransaction
)

const (
	configPosition = ConfigX | ConfigY
	configSize     = ConfigWidth | ConfigHeight
	configGeometry = configPosition | configSize
)

// DecorationMode is a decoration negotiation state.
type DecorationMode uint8

const (
	DecorationModeNone DecorationMode = iota
	DecorationModeClientSide
	DecorationModeServerSide
)

// Decoration tracks the negotiated decoration mode of a toplevel.
type Decoration struct {
	mode DecorationMode // last client-acknowledged mode
}

// PointerConstraint pins the pointer to a surface.
type PointerConstraint struct {
	active bool
}

// Snapshot freezes one node of a surface tree for the duration of a
// transaction: the on-screen rectangle plus a lock keeping the client
// buffer renderable.
type Snapshot struct {
	rect backend.Rect
	lock backend.BufferLock
}

func (sn *Snapshot) release() {
	if sn.lock != nil {
		sn.lock.Release()
		sn.lock = nil
	}
}

// Surface is one client surface under kernel management. The role tag
// decides which fields are live: toplevels carry the state vector and a
// workspace or UI parent, popups and subsurfaces hang off their master
// and inherit its visibility.
type Surface struct {
	srv    *Server
	client backend.ClientSurface
	role   Role

	mapped      bool
	visible     bool
	nameUpdated bool
	committed   bool // initial commit seen

	popups      []*Surface
	subsurfaces []*Surface

	snapNormal     *Snapshot
	snapDecoration *Snapshot

	title string
	appID string

	// Toplevel state.
	prev, cur, pend, saved State
	inTransaction          bool
	deco                   *Decoration
	constraint             *PointerConstraint
	widget                 WidgetKind
	ws                     *Workspace
	ui                     *OutputUI
	wantMaximized          bool // requested before the initial commit
	wantFullscreen         bool

	// Popup and subsurface state.
	master *Surface
	local  backend.Rect // geometry relative to the master
}

var errNoParent = errors.New("comp: surface has no parent to attach to")

// CreateToplevel registers a new normal toplevel on ws (the current
// workspace when nil). The surface stays unmapped until the client's
// initial commit.
func (srv *Server) CreateToplevel(client backend.ClientSurface, ws *Workspace, wantMaximized, wantFullscreen bool) (*Surface, error) {
	if ws == nil {
		ws = srv.current
	}
	if ws == nil {
		client.Close()
		return nil, errNoParent
	}
	s := &Surface{
		srv:            srv,
		client:         client,
		role:           RoleToplevel,
		widget:         WidgetNone,
		ws:             ws,
		wantMaximized:  wantMaximized,
		wantFullscreen: wantFullscreen,
	}
	ws.addSurface(s)
	if out := ws.output; out != nil {
		client.EnterOutput(out.id)
	}
	return s, nil
}

// CreateWidget registers a new widget toplevel on ui.
func (srv *Server) CreateWidget(client backend.ClientSurface, ui *OutputUI, kind WidgetKind) (*Surface, error) {
	if ui == nil || kind == WidgetNone {
		client.Close()
		return nil, errNoParent
	}
	s := &Surface{
		srv:    srv,
		client: client,
		role:   RoleToplevel,
		widget: kind,
		ui:     ui,
	}
	ui.addWidget(s)
	client.EnterOutput(ui.output.id)
	return s, nil
}

// CreatePopup registers a transient surface anchored to master at the
// given master-relative rectangle.
func (srv *Server) CreatePopup(client backend.ClientSurface, master *Surface, local backend.Rect) (*Surface, error) {
	return srv.createChild(client, master, local, RolePopup)
}

// CreateSubsurface registers a subsurface slaved to master.
func (srv *Server) CreateSubsurface(client backend.ClientSurface, master *Surface, local backend.Rect) (*Surface, error) {
	return srv.createChild(client, master, local, RoleSubsurface)
}

func (srv *Server) createChild(client backend.ClientSurface, master *Surface, local backend.Rect, role Role) (*Surface, error) {
	if master == nil {
		client.Close()
		return nil, errNoParent
	}
	s := &Surface{
		srv:    srv,
		client: client,
		role:   role,
		master: master,
		local:  local,
	}
	if role == RolePopup {
		master.popups = append(master.popups, s)
	} else {
		master.subsurfaces = append(master.subsurfaces, s)
	}
	if out := master.output(); out != nil {
		client.EnterOutput(out.id)
	}
	return s, nil
}

func (s *Surface) Role() Role          { return s.role }
func (s *Surface) Widget() WidgetKind  { return s.widget }
func (s *Surface) Mapped() bool        { return s.mapped }
func (s *Surface) Visible() bool       { return s.visible }
func (s *Surface) Title() string       { return s.title }
func (s *Surface) AppID() string       { return s.appID }
func (s *Surface) Current() State      { return s.cur }
func (s *Surface) Pending() State      { return s.pend }
func (s *Surface) Previous() State     { return s.prev }
func (s *Surface) Saved() State        { return s.saved }
func (s *Surface) InTransaction() bool { return s.inTransaction }

// ConstraintActive reports whether an attached pointer constraint is
// engaged.
func (s *Surface) ConstraintActive() bool {
	return s.constraint != nil && s.constraint.active
}

// output resolves the output currently showing the surface.
func (s *Surface) output() *Output {
	switch {
	case s.role != RoleToplevel:
		if s.master != nil {
			return s.master.output()
		}
		return nil
	case s.widget == WidgetNone:
		if s.ws != nil {
			return s.ws.output
		}
		return nil
	default:
		if s.ui != nil {
			return s.ui.output
		}
		return nil
	}
}

// workspace resolves the owning workspace through master links.
func (s *Surface) workspace() *Workspace {
	if s.role != RoleToplevel {
		if s.master != nil {
			return s.master.workspace()
		}
		return nil
	}
	return s.ws
}

// bounds is the surface rectangle in workspace coordinates.
func (s *Surface) bounds() backend.Rect {
	if s.role == RoleToplevel {
		return s.cur.Rect()
	}
	if s.master == nil {
		return s.local
	}
	mb := s.master.bounds()
	return backend.Rect{X: mb.X + s.local.X, Y: mb.Y + s.local.Y, W: s.local.W, H: s.local.H}
}

// SetTitle records the client-provided title and flags the name change
// to the owning output.
func (s *Surface) SetTitle(title string) {
	if s.title == title {
		return
	}
	s.title = title
	s.nameUpdated = true
	s.notifyNameChanged()
}

// SetAppID records the client-provided application id.
func (s *Surface) SetAppID(id string) {
	if s.appID == id {
		return
	}
	s.appID = id
	s.nameUpdated = true
	s.notifyNameChanged()
}

func (s *Surface) notifyNameChanged() {
	if out := s.output(); out != nil {
		out.requestRasterUpdate()
	}
}

// Configure applies the masked fields of target. Position and
// minimization take effect immediately with damage; size, maximize and
// fullscreen round-trip through the client inside a workspace
// transaction unless ConfigNoTransaction is set or the surface is a
// widget. Returning to normal from maximized or fullscreen without an
// explicit size reinstates the saved geometry.
func (s *Surface) Configure(mask ConfigureMask, target State) {
	if s.role != RoleToplevel {
		return
	}

	next := s.pend
	if mask&ConfigX != 0 {
		next.X = target.X
	}
	if mask&ConfigY != 0 {
		next.Y = target.Y
	}
	if mask&ConfigWidth != 0 {
		next.W = max(target.W, 1)
	}
	if mask&ConfigHeight != 0 {
		next.H = max(target.H, 1)
	}
	if mask&ConfigActivated != 0 {
		next.Activated = target.Activated
	}
	if mask&ConfigMaximized != 0 {
		next.Maximized = target.Maximized
	}
	if mask&ConfigMinimized != 0 {
		next.Minimized = target.Minimized
	}
	if mask&ConfigFullscreen != 0 {
		next.Fullscreen = target.Fullscreen
	}

	if !s.pend.zoomed() && next.zoomed() {
		s.saved = s.pend
	}
	if s.pend.zoomed() && !next.zoomed() && mask&configSize == 0 {
		next.X, next.Y, next.W, next.H = s.saved.X, s.saved.Y, s.saved.W, s.saved.H
	}
	if next == s.pend {
		return
	}

	sizeChanged := next.W != s.pend.W || next.H != s.pend.H
	modeChanged := next.Maximized != s.pend.Maximized || next.Fullscreen != s.pend.Fullscreen
	posChanged := next.X != s.pend.X || next.Y != s.pend.Y
	minChanged := next.Minimized != s.pend.Minimized

	if (sizeChanged || modeChanged) && mask&ConfigNoTransaction == 0 && s.widget == WidgetNone && s.ws != nil {
		// Snapshots freeze the old frame before any role request goes
		// out.
		s.ws.transactionJoin(s)
	}

	if sizeChanged {
		s.client.ConfigureSize(next.W, next.H)
	}
	if next.Activated != s.pend.Activated {
		s.client.SetActivated(next.Activated)
	}
	if next.Maximized != s.pend.Maximized {
		s.client.SetMaximized(next.Maximized)
	}
	if next.Fullscreen != s.pend.Fullscreen {
		s.client.SetFullscreen(next.Fullscreen)
	}

	if posChanged || minChanged {
		if out := s.output(); out != nil {
			out.AddDamage(s.cur.Rect())
			out.AddDamage(next.Rect())
		}
	}

	s.pend = next
	s.cur.X, s.cur.Y = next.X, next.Y
	s.cur.Minimized = next.Minimized
}

// RequestMaximize is the client-initiated maximize request; it routes
// through the workspace without a transaction.
func (s *Surface) RequestMaximize(on bool) {
	if w := s.workspace(); w != nil {
		w.ConfigureSurface(s, ConfigMaximized|ConfigNoTransaction, State{Maximized: on})
	}
}

// RequestFullscreen is the client-initiated fullscreen request.
func (s *Surface) RequestFullscreen(on bool) {
	if w := s.workspace(); w != nil {
		w.ConfigureSurface(s, ConfigFullscreen|ConfigNoTransaction, State{Fullscreen: on})
	}
}

// CommitClientState is the client-commit entry point: committed carries
// the buffer size and the client-acknowledged role flags. Position and
// minimization stay server-owned.
func (s *Surface) CommitClientState(committed State) {
	if s.role != RoleToplevel {
		s.local.W, s.local.H = committed.W, committed.H
		if !s.committed {
			s.committed = true
			s.mapped = true
			if s.master != nil {
				s.visible = s.master.visible
			}
		}
		if out := s.output(); out != nil {
			out.AddDamage(s.bounds())
		}
		return
	}

	if !s.committed {
		s.committed = true
		s.handleInitialCommit(committed)
		return
	}

	s.prev = s.cur
	s.cur.W, s.cur.H = committed.W, committed.H
	s.cur.Activated = committed.Activated
	s.cur.Maximized = committed.Maximized
	s.cur.Fullscreen = committed.Fullscreen
	if out := s.output(); out != nil {
		out.AddDamage(s.cur.Rect())
	}

	if s.inTransaction && s.transactionSettled() {
		s.inTransaction = false
		if s.ws != nil {
			s.ws.transactionUpdate()
		}
	}
}

// handleInitialCommit records the intrinsic size as the saved geometry
// and maps the surface; a pre-commit maximize or fullscreen request is
// applied now.
func (s *Surface) handleInitialCommit(committed State) {
	s.cur.W, s.cur.H = committed.W, committed.H
	s.pend.W, s.pend.H = committed.W, committed.H
	s.saved = s.cur
	s.setMapped(true)
	if s.widget == WidgetNone && (s.wantMaximized || s.wantFullscreen) && s.ws != nil {
		s.ws.ConfigureSurface(s, ConfigMaximized|ConfigFullscreen,
			State{Maximized: s.wantMaximized, Fullscreen: s.wantFullscreen})
	}
}

// HandleUnmap is called when the client detaches its buffer.
func (s *Surface) HandleUnmap() {
	s.setMapped(false)
}

func (s *Surface) setMapped(on bool) {
	if s.mapped == on {
		return
	}
	s.mapped = on
	switch {
	case s.role != RoleToplevel:
		if s.master != nil {
			s.visible = on && s.master.visible
		}
	case s.widget == WidgetNone:
		if s.ws != nil {
			s.ws.surfaceMapped(s, on)
		}
	default:
		if s.ui != nil {
			s.ui.widgetMapped(s, on)
		}
	}
}

func (s *Surface) setVisible(on bool) {
	s.visible = on
	for _, c := range s.subsurfaces {
		c.setVisible(on && c.mapped)
	}
	for _, c := range s.popups {
		c.setVisible(on && c.mapped)
	}
}

// transactionSettled reports whether the client has caught up with the
// pending state and the decoration negotiation is not in flight.
func (s *Surface) transactionSettled() bool {
	if s.cur != s.pend {
		return false
	}
	return s.deco == nil || s.deco.mode == DecorationModeServerSide
}

// commitTransaction finishes the surface's part of a workspace
// transaction. A surface that never acknowledged has its pending state
// forced into current; the client resynchronizes on its next commit.
func (s *Surface) commitTransaction() {
	if s.inTransaction {
		s.prev = s.cur
		s.cur = s.pend
		s.inTransaction = false
	}
	s.releaseSnapshots()
}

// captureSnapshots locks the surface tree's buffers so the previous
// frame stays renderable while a transaction is in flight. Capturing is
// idempotent per slot.
func (s *Surface) captureSnapshots() {
	if s.snapNormal == nil {
		s.snapNormal = &Snapshot{rect: s.bounds(), lock: s.client.LockBuffer()}
	}
	if s.deco != nil && s.snapDecoration == nil {
		s.snapDecoration = &Snapshot{rect: s.bounds()}
	}
	for _, c := range s.subsurfaces {
		c.captureSnapshots()
	}
	for _, c := range s.popups {
		c.captureSnapshots()
	}
}

func (s *Surface) releaseSnapshots() {
	if s.snapNormal != nil {
		s.snapNormal.release()
		s.snapNormal = nil
	}
	if s.snapDecoration != nil {
		s.snapDecoration.release()
		s.snapDecoration = nil
	}
	for _, c := range s.subsurfaces {
		c.releaseSnapshots()
	}
	for _, c := range s.popups {
		c.releaseSnapshots()
	}
}

// AttachDecoration wires the decoration extension to a toplevel. A
// client that prefers its own decorations is overridden to server-side
// through a transaction, so two sets of decorations are never on screen
// at once. Attaching twice is a no-op.
func (s *Surface) AttachDecoration(clientMode DecorationMode) {
	if s.role != RoleToplevel || s.deco != nil {
		return
	}
	s.deco = &Decoration{mode: clientMode}
	if clientMode == DecorationModeServerSide {
		return
	}
	s.client.SetDecorationMode(true)
	if s.widget == WidgetNone && s.ws != nil {
		s.ws.transactionJoin(s)
	}
}

// AckDecorationMode records the client's decoration acknowledgement and
// completes a pending transaction if this was the last thing holding it.
func (s *Surface) AckDecorationMode(mode DecorationMode) {
	if s.deco == nil {
		return
	}
	s.deco.mode = mode
	if s.inTransaction && s.transactionSettled() {
		s.inTransaction = false
		if s.ws != nil {
			s.ws.transactionUpdate()
		}
	}
}

// AttachPointerConstraint wires a pointer constraint to a toplevel. A
// constraint attached to the focused surface of the current workspace
// engages immediately; the zero-delta synthetic motion anchors the
// pointer inside the constraint region. Attaching twice is a no-op.
func (s *Surface) AttachPointerConstraint() {
	if s.role != RoleToplevel || s.constraint != nil {
		return
	}
	s.constraint = &PointerConstraint{}
	w := s.ws
	if w != nil && w.focused == s && s.srv != nil && s.srv.current == w {
		s.constraint.active = true
		w.PointerWarp(w.pointer.lastTime, w.pointer.x, w.pointer.y)
	}
}

// Destroy tears the surface down: children first, then snapshots,
// parent bookkeeping, cursor references, and any transaction the
// surface still participates in.
func (s *Surface) Destroy() {
	out := s.output()
	bounds := s.bounds()

	for len(s.popups) > 0 {
		s.popups[len(s.popups)-1].Destroy()
	}
	for len(s.subsurfaces) > 0 {
		s.subsurfaces[len(s.subsurfaces)-1].Destroy()
	}
	s.releaseSnapshots()
	s.setMapped(false)

	if s.inTransaction {
		s.inTransaction = false
		if s.ws != nil {
			s.ws.transactionUpdate()
		}
	}

	switch {
	case s.role != RoleToplevel:
		if s.master != nil {
			s.master.popups = dropSurface(s.master.popups, s)
			s.master.subsurfaces = dropSurface(s.master.subsurfaces, s)
			s.master = nil
		}
	case s.widget == WidgetNone:
		if s.ws != nil {
			s.ws.removeSurface(s)
			s.ws = nil
		}
	default:
		if s.ui != nil {
			s.ui.removeWidget(s)
			s.ui = nil
		}
	}

	if out != nil {
		out.surfaceDestroyed(s)
		out.AddDamage(bounds)
		out.RequestRedraw()
	}
}

func dropSurface(list []*Surface, s *Surface) []*Surface {
	for i, c := range list {
		if c == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
