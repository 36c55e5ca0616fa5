package comp

import (
	"strings"

	"github.com/rosewm/rosewm/internal/backend"
)

const (
	notificationMargin = 5
	menuRowHeight      = 20
	menuPadding        = 8
)

// OutputUI owns the widget layer of one output: background, panel,
// prompt, notification and screen-lock surfaces, plus the window
// switcher menu drawn by the server itself.
type OutputUI struct {
	output  *Output
	widgets [widgetKindCount][]*Surface
	menu    Menu
}

func newOutputUI(out *Output) *OutputUI {
	u := &OutputUI{output: out}
	u.menu.ui = u
	return u
}

// Menu exposes the output's window switcher.
func (u *OutputUI) Menu() *Menu { return &u.menu }

func (u *OutputUI) addWidget(s *Surface) {
	if s.widget == WidgetNone {
		return
	}
	idx := int(s.widget) - 1
	u.widgets[idx] = append(u.widgets[idx], s)
}

func (u *OutputUI) removeWidget(s *Surface) {
	if s.widget == WidgetNone {
		return
	}
	idx := int(s.widget) - 1
	u.widgets[idx] = dropSurface(u.widgets[idx], s)
}

// widgetMapped reacts to a widget's map-state flip. A panel widget
// toggles the focused workspace's reserved strip, which reflows the
// whole output.
func (u *OutputUI) widgetMapped(s *Surface, on bool) {
	if s.widget == WidgetPanel {
		if ws := u.focusedWorkspace(); ws != nil {
			p := ws.panel
			p.Visible = on
			ws.SetPanel(p)
		}
	}
	u.LayoutWidgets()
	if u.output != nil {
		u.output.AddDamage(s.bounds())
		u.output.RequestRedraw()
		if u.output.srv != nil {
			u.output.srv.noteWidgetMapped(s, on)
		}
	}
}

// lockWidget is the newest mapped screen-lock widget, nil when no lock
// client is up.
func (u *OutputUI) lockWidget() *Surface {
	list := u.widgets[WidgetScreenLock-1]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].mapped {
			return list[i]
		}
	}
	return nil
}

func (u *OutputUI) focusedWorkspace() *Workspace {
	if u.output == nil {
		return nil
	}
	return u.output.workspace
}

func (u *OutputUI) panelState() Panel {
	if ws := u.focusedWorkspace(); ws != nil {
		return ws.panel
	}
	return Panel{Position: PanelTop, Size: 32}
}

func (u *OutputUI) outputSize() (int32, int32) {
	if u.output == nil {
		return 0, 0
	}
	return u.output.effectiveSize()
}

func (u *OutputUI) screenLocked() bool {
	return u.output != nil && u.output.srv != nil && u.output.srv.screenLocked
}

// visiblePanel is the panel widget currently shown, nil when the strip
// is hidden or no panel client is mapped.
func (u *OutputUI) visiblePanel() *Surface {
	list := u.widgets[WidgetPanel-1]
	for i := len(list) - 1; i >= 0; i-- {
		if s := list[i]; s.mapped && u.IsSurfaceVisible(s) {
			return s
		}
	}
	return nil
}

// IsSurfaceVisible is the output-level visibility matrix. Under screen
// lock only the lock and background widgets show; the lock widget
// never shows otherwise. The panel widget shows only while the focused
// workspace reserves a strip for it and its focused surface is not
// fullscreen. Everything else shows iff mapped.
func (u *OutputUI) IsSurfaceVisible(s *Surface) bool {
	root := s
	for root.master != nil {
		root = root.master
	}
	if u.screenLocked() {
		return s.mapped && (root.widget == WidgetScreenLock || root.widget == WidgetBackground)
	}
	switch root.widget {
	case WidgetScreenLock:
		return false
	case WidgetPanel:
		ws := u.focusedWorkspace()
		if ws == nil || !ws.panel.Visible {
			return false
		}
		if f := ws.focused; f != nil && f.pend.Fullscreen {
			return false
		}
		return s.mapped
	default:
		return s.mapped
	}
}

// LayoutWidgets recomputes the geometry of every mapped widget from
// the output's effective resolution and the focused workspace's panel
// strip.
func (u *OutputUI) LayoutWidgets() {
	if u.output == nil {
		return
	}
	ow, oh := u.outputSize()
	panel := u.panelState()
	for kind := WidgetScreenLock; kind <= WidgetPanel; kind++ {
		for _, s := range u.widgets[kind-1] {
			if !s.mapped {
				continue
			}
			u.layoutWidget(s, kind, ow, oh, panel)
		}
	}
	u.menu.layout()
	u.output.RequestRedraw()
}

func (u *OutputUI) layoutWidget(s *Surface, kind WidgetKind, ow, oh int32, panel Panel) {
	switch kind {
	case WidgetScreenLock, WidgetBackground:
		s.Configure(configGeometry, State{X: 0, Y: 0, W: ow, H: oh})

	case WidgetNotification:
		// Against the edge opposite the panel, a small margin off the
		// corner. The client keeps its own size.
		nw, nh := s.cur.W, s.cur.H
		x := ow - nw - notificationMargin
		y := oh - nh - notificationMargin
		if panel.Visible {
			switch panel.Position {
			case PanelTop:
				y = oh - nh - notificationMargin
			case PanelBottom:
				y = notificationMargin
			case PanelLeft:
				x = ow - nw - notificationMargin
			case PanelRight:
				x = notificationMargin
			}
		}
		s.Configure(configPosition, State{X: x, Y: y})

	case WidgetPrompt:
		// Full extent along the panel edge, as thick as the strip,
		// pushed past the panel while it is visible.
		size := panel.Size
		var off int32
		if panel.Visible {
			off = size
		}
		switch panel.Position {
		case PanelTop:
			s.Configure(configGeometry, State{X: 0, Y: off, W: ow, H: size})
		case PanelBottom:
			s.Configure(configGeometry, State{X: 0, Y: oh - off - size, W: ow, H: size})
		case PanelLeft:
			s.Configure(configGeometry, State{X: off, Y: 0, W: size, H: oh})
		case PanelRight:
			s.Configure(configGeometry, State{X: ow - off - size, Y: 0, W: size, H: oh})
		}

	case WidgetPanel:
		// Half the edge, centered on it.
		size := panel.Size
		switch panel.Position {
		case PanelTop:
			s.Configure(configGeometry, State{X: ow / 4, Y: 0, W: ow / 2, H: size})
		case PanelBottom:
			s.Configure(configGeometry, State{X: ow / 4, Y: oh - size, W: ow / 2, H: size})
		case PanelLeft:
			s.Configure(configGeometry, State{X: 0, Y: oh / 4, W: size, H: oh / 2})
		case PanelRight:
			s.Configure(configGeometry, State{X: ow - size, Y: oh / 4, W: size, H: oh / 2})
		}
	}
}

// Selection is the result of a pointer hit test over the widget layer.
// Menu wins outright; otherwise Surface is the hit widget or one of
// its popups, Kind the widget kind it belongs to, and LocalX/LocalY
// the point in surface coordinates.
type Selection struct {
	Menu    bool
	Surface *Surface
	Kind    WidgetKind
	LocalX  int32
	LocalY  int32
}

// Select hit-tests the widget layer at (x, y). Widget kinds are walked
// from the top of the stacking order down; screen lock inverts the
// walk. For each widget the main extent is tested before its popups.
func (u *OutputUI) Select(x, y int32) Selection {
	if u.menu.visible && u.menu.rect().Contains(x, y) {
		return Selection{Menu: true}
	}
	if u.screenLocked() {
		for k := WidgetScreenLock; k <= WidgetPanel; k++ {
			if sel, ok := u.scanKind(k, x, y); ok {
				return sel
			}
		}
	} else {
		for k := WidgetPanel; k >= WidgetScreenLock; k-- {
			if sel, ok := u.scanKind(k, x, y); ok {
				return sel
			}
		}
	}
	return Selection{}
}

func (u *OutputUI) scanKind(kind WidgetKind, x, y int32) (Selection, bool) {
	list := u.widgets[kind-1]
	for i := len(list) - 1; i >= 0; i-- {
		s := list[i]
		if !u.IsSurfaceVisible(s) {
			continue
		}
		if hit, lx, ly := s.treeAt(x, y); hit != nil {
			return Selection{Surface: hit, Kind: kind, LocalX: lx, LocalY: ly}, true
		}
	}
	return Selection{}, false
}

// treeAt hit-tests the surface tree at a workspace-local point. The
// main extent is tested before the popups, newest popup first.
func (s *Surface) treeAt(x, y int32) (*Surface, int32, int32) {
	b := s.bounds()
	if b.Contains(x, y) {
		return s, x - b.X, y - b.Y
	}
	for i := len(s.popups) - 1; i >= 0; i-- {
		p := s.popups[i]
		if !p.mapped {
			continue
		}
		if hit, lx, ly := p.treeAt(x, y); hit != nil {
			return hit, lx, ly
		}
	}
	return nil, 0, 0
}

// Menu is the window switcher the server draws centered on the output.
// It lists the focused workspace's toplevels in focus order.
type Menu struct {
	ui      *OutputUI
	visible bool
	entries []*Surface
	index   int
	width   int32
	height  int32
}

// Visible reports whether the menu is on screen.
func (m *Menu) Visible() bool { return m.visible }

// Index reports the highlighted row.
func (m *Menu) Index() int { return m.index }

// Entries lists the offered surfaces, top row first.
func (m *Menu) Entries() []*Surface { return m.entries }

// Show opens the switcher over the mapped toplevels of the focused
// workspace. With nothing to offer the menu stays hidden.
func (m *Menu) Show() {
	ws := m.ui.focusedWorkspace()
	if ws == nil || len(ws.mapped) == 0 {
		return
	}
	m.entries = append(m.entries[:0], ws.mapped...)
	m.index = 0
	m.visible = true
	m.layout()
	m.damage()
}

// Cancel hides the menu without touching focus.
func (m *Menu) Cancel() {
	if !m.visible {
		return
	}
	m.visible = false
	m.damage()
	m.entries = m.entries[:0]
}

// LineUp moves the highlight one row up, wrapping at the top.
func (m *Menu) LineUp() {
	if !m.visible || len(m.entries) == 0 {
		return
	}
	m.index = (m.index - 1 + len(m.entries)) % len(m.entries)
	m.damage()
}

// LineDown moves the highlight one row down, wrapping at the bottom.
func (m *Menu) LineDown() {
	if !m.visible || len(m.entries) == 0 {
		return
	}
	m.index = (m.index + 1) % len(m.entries)
	m.damage()
}

// Choose focuses the highlighted surface and hides the menu. A surface
// unmapped since Show is ignored.
func (m *Menu) Choose() {
	if !m.visible {
		return
	}
	var pick *Surface
	if m.index >= 0 && m.index < len(m.entries) {
		pick = m.entries[m.index]
	}
	m.Cancel()
	if pick != nil && pick.ws != nil {
		pick.ws.Focus(pick)
	}
}

// layout sizes the menu from its entry count and the output extent.
func (m *Menu) layout() {
	ow, oh := m.ui.outputSize()
	m.width = clamp32(ow/3, min(200, ow), ow)
	m.height = int32(len(m.entries))*menuRowHeight + 2*menuPadding
	if m.height > oh {
		m.height = oh
	}
}

// rect is the menu rectangle in output coordinates, centered.
func (m *Menu) rect() backend.Rect {
	ow, oh := m.ui.outputSize()
	return backend.Rect{
		X: (ow - m.width) / 2,
		Y: (oh - m.height) / 2,
		W: m.width,
		H: m.height,
	}
}

// text renders the rows for the output's menu raster, the highlighted
// one marked.
func (m *Menu) text() string {
	var b strings.Builder
	for i, s := range m.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		if i == m.index {
			b.WriteString("> ")
		} else {
			b.WriteString("  ")
		}
		switch {
		case s.title != "":
			b.WriteString(s.title)
		case s.appID != "":
			b.WriteString(s.appID)
		default:
			b.WriteString("(untitled)")
		}
	}
	return b.String()
}

func (m *Menu) damage() {
	if m.ui.output == nil {
		return
	}
	m.ui.output.AddDamage(m.rect())
	m.ui.output.requestRasterUpdate()
	m.ui.output.RequestRedraw()
}
