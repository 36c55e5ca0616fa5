package comp

import (
	"time"

	"github.com/rosewm/rosewm/internal/backend"
	"github.com/rosewm/rosewm/internal/logger"
	"github.com/rosewm/rosewm/internal/loop"
)

const (
	// damageRingSize is the number of buffer-age buckets tracked per
	// output.
	damageRingSize = 8

	// maxOutputModes caps how many advertised modes are retained.
	maxOutputModes = 128

	// frameInterval paces redraws when the backend gives no vblank.
	frameInterval = 16 * time.Millisecond
)

type cursorState struct {
	surface    *Surface
	dndSurface *Surface
	hotspotX   int32
	hotspotY   int32
}

// Output binds one display device: its retained mode list, the widget
// layer, the attached workspace, cursor state, per-frame damage and
// the text rasters for the focused title and the menu.
type Output struct {
	srv *Server
	dev backend.OutputDevice
	id  uint32

	ui        *OutputUI
	workspace *Workspace

	modes     []backend.Mode
	transform backend.Transform
	scale     float64

	damage [damageRingSize]backend.Rect
	cursor cursorState

	titleRaster backend.TextRaster
	menuRaster  backend.TextRaster

	scannedOut             bool
	frameScheduled         bool
	rastersUpdateRequested bool

	frame *loop.Timer
}

func newOutput(srv *Server, dev backend.OutputDevice) (*Output, error) {
	if srv == nil || srv.loop == nil {
		return nil, errNoLoop
	}
	o := &Output{
		srv:   srv,
		dev:   dev,
		id:    dev.ID(),
		scale: 1,
	}
	modes := dev.Modes()
	if len(modes) > maxOutputModes {
		modes = modes[:maxOutputModes]
	}
	o.modes = append(o.modes, modes...)
	o.ui = newOutputUI(o)
	o.frame = srv.loop.NewTimer(o.renderFrame)
	return o, nil
}

// destroy stops the frame timer, detaches the workspace and drops the
// rasters. The device itself is owned by the backend.
func (o *Output) destroy() {
	o.frame.Disarm()
	o.frameScheduled = false
	if o.workspace != nil {
		o.workspace.detach()
		o.workspace = nil
	}
	o.releaseRasters()
}

// ID is the backend device identifier.
func (o *Output) ID() uint32 { return o.id }

// Name is the backend device name, stable across reconnects.
func (o *Output) Name() string { return o.dev.Name() }

// UI exposes the output's widget layer.
func (o *Output) UI() *OutputUI { return o.ui }

// Workspace reports the attached workspace, nil before adoption.
func (o *Output) Workspace() *Workspace { return o.workspace }

// Modes lists the retained display modes.
func (o *Output) Modes() []backend.Mode { return o.modes }

// effectiveSize is the output resolution with the transform applied;
// quarter-turn transforms swap the axes.
func (o *Output) effectiveSize() (int32, int32) {
	m := o.dev.CurrentMode()
	switch o.transform {
	case backend.Transform90, backend.Transform270,
		backend.TransformFlipped90, backend.TransformFlipped270:
		return m.H, m.W
	default:
		return m.W, m.H
	}
}

// setWorkspace attaches ws to this output and reflows everything on
// it.
func (o *Output) setWorkspace(ws *Workspace) {
	if o.workspace == ws {
		return
	}
	if o.workspace != nil {
		o.workspace.detach()
	}
	o.workspace = ws
	if ws != nil {
		ws.attach(o)
	}
	o.ui.LayoutWidgets()
	o.damageAll()
	o.requestRasterUpdate()
}

// applyMode switches the device mode and reflows the attached
// workspace and widgets.
func (o *Output) applyMode(m backend.Mode) {
	o.dev.SetMode(m)
	w, h := o.effectiveSize()
	if o.workspace != nil {
		o.workspace.resize(w, h)
	}
	o.ui.LayoutWidgets()
	o.damageAll()
}

// applyTransform rotates or flips the output and reflows for the new
// effective resolution.
func (o *Output) applyTransform(t backend.Transform) {
	if o.transform == t {
		return
	}
	o.transform = t
	o.dev.SetTransform(t)
	w, h := o.effectiveSize()
	if o.workspace != nil {
		o.workspace.resize(w, h)
	}
	o.ui.LayoutWidgets()
	o.damageAll()
}

func (o *Output) applyScale(s float64) {
	if s <= 0 || o.scale == s {
		return
	}
	o.scale = s
	o.dev.SetScale(s)
	o.damageAll()
}

// AddDamage unions a dirtied rectangle into the freshest age bucket.
func (o *Output) AddDamage(r backend.Rect) {
	if r.Empty() {
		return
	}
	o.damage[0] = o.damage[0].Union(r)
}

func (o *Output) damageAll() {
	w, h := o.effectiveSize()
	o.AddDamage(backend.Rect{W: w, H: h})
	o.RequestRedraw()
}

// Consume returns the region to repaint for a buffer of the given age
// and rotates the ring. An age outside the tracked window forces a
// full repaint.
func (o *Output) Consume(age int) backend.Rect {
	var r backend.Rect
	if age < 1 || age > damageRingSize {
		w, h := o.effectiveSize()
		r = backend.Rect{W: w, H: h}
	} else {
		for i := 0; i < age; i++ {
			r = r.Union(o.damage[i])
		}
	}
	copy(o.damage[1:], o.damage[:damageRingSize-1])
	o.damage[0] = backend.Rect{}
	return r
}

// RequestRedraw arms the one-shot frame timer unless a frame is
// already scheduled or the output is scanned out directly.
func (o *Output) RequestRedraw() {
	if o.frameScheduled || o.scannedOut {
		return
	}
	o.frameScheduled = true
	o.frame.Arm(frameInterval)
}

// SetScannedOut flags direct scanout; redraw requests are suppressed
// while a client owns the plane.
func (o *Output) SetScannedOut(on bool) {
	o.scannedOut = on
	if !on {
		o.RequestRedraw()
	}
}

// requestRasterUpdate marks the title and menu rasters stale; they are
// rebuilt on the next frame.
func (o *Output) requestRasterUpdate() {
	o.rastersUpdateRequested = true
	o.RequestRedraw()
}

func (o *Output) renderFrame() {
	o.frameScheduled = false
	o.refreshRasters()
	damage := o.Consume(1)
	if o.srv == nil || o.srv.renderer == nil {
		return
	}
	if err := o.srv.renderer.Present(o.id, damage); err != nil {
		logger.Error("present failed", "output", o.dev.Name(), "err", err)
	}
}

func (o *Output) refreshRasters() {
	if !o.rastersUpdateRequested {
		return
	}
	o.rastersUpdateRequested = false
	o.releaseRasters()
	if o.srv == nil || o.srv.renderer == nil {
		return
	}
	if title := o.focusedTitle(); title != "" {
		raster, err := o.srv.renderer.RasterizeText(title)
		if err != nil {
			logger.Warn("title raster failed", "output", o.dev.Name(), "err", err)
		} else {
			o.titleRaster = raster
		}
	}
	if o.ui.menu.visible {
		raster, err := o.srv.renderer.RasterizeText(o.ui.menu.text())
		if err != nil {
			logger.Warn("menu raster failed", "output", o.dev.Name(), "err", err)
		} else {
			o.menuRaster = raster
		}
	}
}

func (o *Output) focusedTitle() string {
	if o.workspace == nil || o.workspace.focused == nil {
		return ""
	}
	f := o.workspace.focused
	if f.title != "" {
		return f.title
	}
	return f.appID
}

func (o *Output) releaseRasters() {
	if o.titleRaster != nil {
		o.titleRaster.Release()
		o.titleRaster = nil
	}
	if o.menuRaster != nil {
		o.menuRaster.Release()
		o.menuRaster = nil
	}
}

// SetCursorSurface installs the client-provided cursor image surface
// with its hotspot.
func (o *Output) SetCursorSurface(s *Surface, hotspotX, hotspotY int32) {
	o.cursor.surface = s
	o.cursor.hotspotX = hotspotX
	o.cursor.hotspotY = hotspotY
}

// SetDndSurface installs the drag-and-drop icon surface.
func (o *Output) SetDndSurface(s *Surface) {
	o.cursor.dndSurface = s
}

// surfaceDestroyed drops any reference the output still holds to a
// surface being torn down.
func (o *Output) surfaceDestroyed(s *Surface) {
	if o.cursor.surface == s {
		o.cursor.surface = nil
	}
	if o.cursor.dndSurface == s {
		o.cursor.dndSurface = nil
	}
	if o.srv != nil && o.srv.seat != nil {
		o.srv.seat.surfaceDestroyed(s)
	}
}
