package comp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosewm/rosewm/internal/backend"
)

func TestLayoutKeepsMappedSurfacesVisibleInFocusOrder(t *testing.T) {
	srv := testKernel(t)
	ws := srv.current

	a, ca := mapToplevel(t, srv, 200, 150)
	assert.Equal(t, a, ws.Focused())
	assert.True(t, ca.activated)
	assert.Equal(t, []*Surface{a}, ws.visible)
	assert.Equal(t, a, srv.seat.KeyboardFocus())

	b, _ := mapToplevel(t, srv, 300, 200)
	assert.Equal(t, b, ws.Focused())
	assert.False(t, ca.activated, "previous focus must be deactivated")
	assert.Equal(t, []*Surface{b, a}, ws.mapped)
	assert.Equal(t, []*Surface{b, a}, ws.visible)
	assert.True(t, a.Visible())
	assert.True(t, b.Visible())
}

func TestMaximizeRunsTransactionAndRestoresSavedGeometry(t *testing.T) {
	srv := testKernel(t)
	ws := srv.current
	x, cx := mapToplevel(t, srv, 200, 200)

	ws.ConfigureSurface(x, configPosition, State{X: 10, Y: 10})
	assert.Equal(t, backend.Rect{X: 10, Y: 10, W: 200, H: 200}, x.Pending().Rect())
	assert.Equal(t, 0, ws.txn.sentinel, "position changes must not open a transaction")

	ws.ConfigureSurface(x, ConfigMaximized, State{Maximized: true})
	assert.Equal(t, 1, ws.txn.sentinel)
	assert.True(t, x.InTransaction())
	assert.True(t, ws.txn.watchdog.Armed())
	assert.Equal(t, 1, cx.locks, "the old frame must be pinned exactly once")
	assert.True(t, cx.maximized)
	assert.Equal(t, int32(1280), cx.width)
	assert.Equal(t, int32(720), cx.height)
	assert.Equal(t, backend.Rect{X: 10, Y: 10, W: 200, H: 200}, x.Saved().Rect())
	assert.Equal(t, []*Surface{x}, ws.visible)

	x.CommitClientState(State{W: 1280, H: 720, Maximized: true, Activated: true})
	assert.False(t, x.InTransaction())
	assert.Equal(t, 0, ws.txn.sentinel)
	assert.False(t, ws.txn.watchdog.Armed())
	assert.Zero(t, cx.outstanding(), "buffer locks must be released at commit")
	assert.Equal(t, backend.Rect{X: 0, Y: 0, W: 1280, H: 720}, x.Current().Rect())

	ws.ConfigureSurface(x, ConfigMaximized, State{})
	assert.Equal(t, backend.Rect{X: 10, Y: 10, W: 200, H: 200}, x.Pending().Rect())
	assert.Equal(t, int32(200), cx.width)
	assert.False(t, cx.maximized)

	x.CommitClientState(State{W: 200, H: 200, Activated: true})
	assert.Equal(t, 0, ws.txn.sentinel)
	assert.Zero(t, cx.outstanding())
	assert.Equal(t, State{X: 10, Y: 10, W: 200, H: 200, Activated: true}, x.Current())
}

func TestInteractiveResizeReflectsThroughAnchoredEdge(t *testing.T) {
	place := func(t *testing.T) (*Server, *Workspace, *Surface, *fakeClient) {
		srv := testKernel(t)
		ws := srv.current
		s, c := mapToplevel(t, srv, 200, 200)
		ws.ConfigureSurface(s, configPosition, State{X: 100, Y: 100})
		return srv, ws, s, c
	}
	settle := func(s *Surface) {
		p := s.Pending()
		s.CommitClientState(State{W: p.W, H: p.H, Activated: true})
	}

	t.Run("east past west edge", func(t *testing.T) {
		_, ws, s, c := place(t)
		ws.PointerWarp(10, 400, 300)
		require.True(t, ws.EnterResize(ModeResizeE))
		ws.PointerWarp(11, 150, 300)
		ws.CommitInteractiveMode()

		assert.Equal(t, ModeNormal, ws.Mode())
		assert.Equal(t, backend.Rect{X: 50, Y: 100, W: 50, H: 200}, s.Pending().Rect())
		assert.Equal(t, int32(50), c.width)
		assert.Equal(t, int32(200), c.height)
		settle(s)
		assert.Zero(t, ws.txn.sentinel)
	})

	t.Run("west past east edge", func(t *testing.T) {
		_, ws, s, _ := place(t)
		ws.PointerWarp(10, 100, 300)
		require.True(t, ws.EnterResize(ModeResizeW))
		ws.PointerWarp(11, 350, 300)
		ws.CommitInteractiveMode()

		assert.Equal(t, backend.Rect{X: 300, Y: 100, W: 50, H: 200}, s.Pending().Rect())
		settle(s)
	})

	t.Run("north past south edge", func(t *testing.T) {
		_, ws, s, _ := place(t)
		ws.PointerWarp(10, 200, 100)
		require.True(t, ws.EnterResize(ModeResizeN))
		ws.PointerWarp(11, 200, 350)
		ws.CommitInteractiveMode()

		assert.Equal(t, backend.Rect{X: 100, Y: 300, W: 200, H: 50}, s.Pending().Rect())
		settle(s)
	})

	t.Run("degenerate drag keeps one pixel", func(t *testing.T) {
		_, ws, s, _ := place(t)
		ws.PointerWarp(10, 300, 300)
		require.True(t, ws.EnterResize(ModeResizeE))
		ws.PointerWarp(11, 100, 300)
		ws.CommitInteractiveMode()

		assert.Equal(t, int32(1), s.Pending().W, "width collapses to the minimum, not zero")
		settle(s)
	})
}

func TestInteractiveMoveClampsToMainArea(t *testing.T) {
	srv := testKernel(t)
	ws := srv.current
	s, _ := mapToplevel(t, srv, 200, 200)
	ws.ConfigureSurface(s, configPosition, State{X: 100, Y: 100})

	ws.PointerWarp(10, 150, 150)
	require.True(t, ws.EnterMove())
	ws.PointerWarp(11, 1279, 719)
	ws.CommitInteractiveMode()
	assert.Equal(t, int32(1229), s.Pending().X)
	assert.Equal(t, int32(669), s.Pending().Y)

	ws.PointerWarp(12, 1229, 669)
	require.True(t, ws.EnterMove())
	ws.PointerWarp(13, 0, 0)
	ws.CommitInteractiveMode()
	assert.Equal(t, int32(0), s.Pending().X)
	assert.Equal(t, int32(0), s.Pending().Y)

	ws.PointerWarp(14, 0, 0)
	require.True(t, ws.EnterMove())
	ws.PointerWarp(15, -5000, -5000) // drag far past the top-left corner
	ws.CommitInteractiveMode()
	assert.Equal(t, int32(-199), s.Pending().X, "one pixel must stay inside the main area")
	assert.Equal(t, int32(-199), s.Pending().Y)
}

func TestFullscreenCollapsesVisibleSetToOneSurface(t *testing.T) {
	srv := testKernel(t)
	ws := srv.current
	a, ca := mapToplevel(t, srv, 250, 150)
	b, cb := mapToplevel(t, srv, 300, 200)
	c, cc := mapToplevel(t, srv, 350, 250)
	require.Equal(t, []*Surface{c, b, a}, ws.mapped)

	ws.ConfigureSurface(b, ConfigFullscreen, State{Fullscreen: true})
	assert.Equal(t, []*Surface{b}, ws.visible)
	assert.True(t, b.Visible())
	assert.False(t, a.Visible())
	assert.False(t, c.Visible())
	assert.True(t, cb.fullscreen)
	assert.Equal(t, int32(1280), cb.width)
	assert.Equal(t, int32(720), cb.height)
	assert.Equal(t, 1, ca.locks, "hidden surfaces were part of the frozen frame")
	assert.Equal(t, 1, cc.locks)

	b.CommitClientState(State{W: 1280, H: 720, Fullscreen: true})
	assert.Zero(t, ws.txn.sentinel)
	assert.Zero(t, ca.outstanding(), "locks of surfaces hidden by the layout change must come back")
	assert.Zero(t, cb.outstanding())
	assert.Zero(t, cc.outstanding())

	ws.ConfigureSurface(b, ConfigFullscreen, State{})
	assert.Equal(t, backend.Rect{X: 0, Y: 0, W: 300, H: 200}, b.Pending().Rect())
	b.CommitClientState(State{W: 300, H: 200})
	assert.Equal(t, []*Surface{c, b, a}, ws.visible)
	assert.True(t, a.Visible())
	assert.Zero(t, cb.outstanding())
}

func TestTransactionWatchdogForcesPendingState(t *testing.T) {
	srv := testKernel(t)
	ws := srv.current
	a, ca := mapToplevel(t, srv, 200, 200)

	ws.ConfigureSurface(a, ConfigMaximized, State{Maximized: true})
	require.Equal(t, 1, ws.txn.sentinel)
	require.True(t, ws.txn.watchdog.Armed())

	// The client never acknowledges; expiry imposes the pending state.
	ws.forceCommit()
	assert.Zero(t, ws.txn.sentinel)
	assert.False(t, a.InTransaction())
	assert.False(t, ws.txn.watchdog.Armed())
	assert.Equal(t, a.Pending(), a.Current())
	assert.True(t, a.Current().Maximized)
	assert.Zero(t, ca.outstanding())

	// A late commit at the imposed size is absorbed without a stale
	// transaction reference.
	a.CommitClientState(State{W: 1280, H: 720, Maximized: true, Activated: true})
	assert.Zero(t, ws.txn.sentinel)
}

func TestFocusRepairsOntoMostRecentSurvivor(t *testing.T) {
	srv := testKernel(t)
	ws := srv.current
	a, _ := mapToplevel(t, srv, 200, 200)
	b, cb := mapToplevel(t, srv, 200, 200)
	c, _ := mapToplevel(t, srv, 200, 200)
	require.Equal(t, c, ws.Focused())

	c.HandleUnmap()
	assert.Equal(t, b, ws.Focused())
	assert.True(t, cb.activated)
	assert.Equal(t, []*Surface{b, a}, ws.mapped)
	assert.Equal(t, b, srv.seat.KeyboardFocus())

	b.Destroy()
	assert.Equal(t, a, ws.Focused())

	a.Destroy()
	assert.Nil(t, ws.Focused())
	assert.Empty(t, ws.mapped)
	assert.Nil(t, srv.seat.KeyboardFocus())
}

func TestFocusRelativeWrapsTheMappedOrder(t *testing.T) {
	srv := testKernel(t)
	ws := srv.current
	a, _ := mapToplevel(t, srv, 100, 100)
	b, _ := mapToplevel(t, srv, 100, 100)
	c, _ := mapToplevel(t, srv, 100, 100)
	require.Equal(t, []*Surface{c, b, a}, ws.mapped)

	ws.FocusRelative(1)
	assert.Equal(t, b, ws.Focused())
	assert.Equal(t, []*Surface{b, c, a}, ws.mapped)

	ws.FocusRelative(1)
	assert.Equal(t, c, ws.Focused())

	ws.FocusRelative(-1)
	assert.Equal(t, a, ws.Focused())
	assert.Equal(t, []*Surface{a, c, b}, ws.mapped)
}

func TestPanelStripShrinksTheMainArea(t *testing.T) {
	srv := testKernel(t)
	ws := srv.current

	ws.SetPanel(Panel{Position: PanelTop, Size: 32, Visible: true})
	assert.Equal(t, backend.Rect{X: 0, Y: 32, W: 1280, H: 688}, ws.mainArea())

	s, c := mapToplevel(t, srv, 200, 200)
	ws.ConfigureSurface(s, ConfigMaximized, State{Maximized: true})
	assert.Equal(t, backend.Rect{X: 0, Y: 32, W: 1280, H: 688}, s.Pending().Rect())
	assert.Equal(t, int32(688), c.height)
	s.CommitClientState(State{W: 1280, H: 688, Maximized: true, Activated: true})

	ws.SetPanel(Panel{Position: PanelLeft, Size: 48, Visible: true})
	assert.Equal(t, Panel{Position: PanelTop, Size: 32, Visible: true}, ws.SavedPanel())
	assert.Equal(t, backend.Rect{X: 48, Y: 0, W: 1232, H: 720}, ws.mainArea())
	assert.Equal(t, backend.Rect{X: 48, Y: 0, W: 1232, H: 720}, s.Pending().Rect())
}

func TestFullscreenIgnoresThePanelStrip(t *testing.T) {
	srv := testKernel(t)
	ws := srv.current
	ws.SetPanel(Panel{Position: PanelTop, Size: 32, Visible: true})

	s, _ := mapToplevel(t, srv, 200, 200)
	ws.ConfigureSurface(s, ConfigFullscreen, State{Fullscreen: true})
	assert.Equal(t, backend.Rect{X: 0, Y: 0, W: 1280, H: 720}, s.Pending().Rect())
}

func TestInteractiveModeEntryGuards(t *testing.T) {
	srv := testKernel(t)
	ws := srv.current

	assert.False(t, ws.EnterMove(), "no focused surface")

	s, _ := mapToplevel(t, srv, 200, 200)
	assert.False(t, ws.EnterResize(ModeMove), "move is not a resize edge")
	assert.False(t, ws.EnterResize(ModeNormal))

	require.True(t, ws.EnterMove())
	assert.False(t, ws.EnterResize(ModeResizeE), "one interactive mode at a time")
	ws.CommitInteractiveMode()

	ws.ConfigureSurface(s, ConfigMaximized, State{Maximized: true})
	s.CommitClientState(State{W: 1280, H: 720, Maximized: true, Activated: true})
	assert.False(t, ws.EnterMove(), "zoomed surfaces are not draggable")
	assert.False(t, ws.EnterResize(ModeResizeSE))
}

func TestWorkspaceResizeReflowsZoomedSurface(t *testing.T) {
	srv := testKernel(t)
	ws := srv.current
	s, c := mapToplevel(t, srv, 200, 200)
	ws.ConfigureSurface(s, ConfigMaximized, State{Maximized: true})
	s.CommitClientState(State{W: 1280, H: 720, Maximized: true, Activated: true})

	ws.resize(1920, 1080)
	assert.Equal(t, backend.Rect{X: 0, Y: 0, W: 1920, H: 1080}, s.Pending().Rect())
	assert.Equal(t, int32(1920), c.width)
	s.CommitClientState(State{W: 1920, H: 1080, Maximized: true, Activated: true})
	assert.Zero(t, ws.txn.sentinel)
}

func TestClampKeepsDegenerateRangeAtLowerBound(t *testing.T) {
	assert.Equal(t, int32(10), clamp32(5, 10, 3))
	assert.Equal(t, int32(7), clamp32(7, 0, 10))
	assert.Equal(t, int32(0), clamp32(-3, 0, 10))
	assert.Equal(t, int32(10), clamp32(30, 0, 10))
}
