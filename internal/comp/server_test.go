package comp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosewm/rosewm/internal/backend"
	"github.com/rosewm/rosewm/internal/config"
	"github.com/rosewm/rosewm/internal/ipc"
	"github.com/rosewm/rosewm/internal/loop"
	"github.com/rosewm/rosewm/internal/prefs"
	"github.com/rosewm/rosewm/internal/proc"
)

func TestWorkspacePoolFillsInAscendingOrder(t *testing.T) {
	srv, err := NewServer(loop.New(), testConfig(), nil, nil)
	require.NoError(t, err)

	require.Len(t, srv.detached, workspacePoolSize)
	for i, ws := range srv.detached {
		assert.Equal(t, uint32(i+1), ws.ID())
		assert.Nil(t, ws.Output())
	}
	assert.Empty(t, srv.attached)
	assert.Nil(t, srv.Current())
}

func TestNewServerRequiresLoop(t *testing.T) {
	_, err := NewServer(nil, testConfig(), nil, nil)
	assert.ErrorIs(t, err, errNoLoop)
}

func TestFirstOutputAdoptsWorkspaceOne(t *testing.T) {
	srv := testKernel(t)

	require.NotNil(t, srv.Current())
	assert.Equal(t, uint32(1), srv.Current().ID())
	assert.Len(t, srv.detached, workspacePoolSize-1)
	assert.Equal(t, []*Workspace{srv.Current()}, srv.attached)

	w, h := srv.Current().Size()
	assert.Equal(t, int32(1280), w)
	assert.Equal(t, int32(720), h)
}

func TestWorkspaceAddTakesNextFromPool(t *testing.T) {
	srv := testKernel(t)
	first := srv.Current()

	srv.WorkspaceAdd()
	second := srv.Current()
	require.NotEqual(t, first, second)
	assert.Equal(t, uint32(2), second.ID())
	assert.Equal(t, srv.outputs[0], second.Output())
	assert.Nil(t, first.Output(), "displaced workspace detaches but stays attached to the server")
	assert.Equal(t, []*Workspace{first, second}, srv.attached)
}

func TestWorkspaceRelativeCyclesAttached(t *testing.T) {
	srv := testKernel(t)
	first := srv.Current()
	srv.WorkspaceAdd()
	second := srv.Current()

	srv.WorkspaceRelative(1)
	assert.Equal(t, first, srv.Current())
	srv.WorkspaceRelative(1)
	assert.Equal(t, second, srv.Current())
	srv.WorkspaceRelative(-1)
	assert.Equal(t, first, srv.Current())
}

func TestWorkspaceRelativeSkipsOtherOutputs(t *testing.T) {
	srv := testKernel(t)
	first := srv.Current()

	// A second output adopts workspace 2; cycling on the first output
	// must not steal it.
	dev := backend.NewVirtualOutput(2, "TEST-2", backend.Mode{W: 800, H: 600, Rate: 60000})
	srv.addOutput(dev)
	require.Len(t, srv.attached, 2)
	require.Equal(t, first, srv.Current())

	srv.WorkspaceRelative(1)
	assert.Equal(t, first, srv.Current(), "the only other workspace is shown elsewhere")
}

func TestOutputRemovalElectsSurvivingWorkspace(t *testing.T) {
	srv := testKernel(t)
	dev := backend.NewVirtualOutput(2, "TEST-2", backend.Mode{W: 800, H: 600, Rate: 60000})
	srv.addOutput(dev)
	second := srv.outputs[1].Workspace()
	require.NotNil(t, second)

	srv.removeOutput(srv.outputs[0].dev)
	require.Len(t, srv.outputs, 1)
	assert.Equal(t, second, srv.Current())
}

func TestOrphanedWorkspaceIsReadopted(t *testing.T) {
	srv := testKernel(t)
	first := srv.Current()
	dev := srv.outputs[0].dev

	srv.removeOutput(dev)
	require.Empty(t, srv.outputs)
	assert.Nil(t, first.Output())

	srv.addOutput(backend.NewVirtualOutput(3, "TEST-3", backend.Mode{W: 640, H: 480, Rate: 60000}))
	assert.Equal(t, first, srv.outputs[0].Workspace(),
		"an orphaned attached workspace wins over the fresh pool")
}

func TestOutputPreferencesApplyOnAdd(t *testing.T) {
	store := prefs.NewStore()
	require.NoError(t, store.Update(prefs.Preference{
		Name: prefs.NameBlob("PREF-1"),
		Params: prefs.OutputParams{
			Transform: uint8(backend.Transform90),
			Scale:     2,
			Mode:      prefs.Mode{W: 800, H: 600, Rate: 60000},
		},
	}))

	srv, err := NewServer(loop.New(), testConfig(), store, nil)
	require.NoError(t, err)
	dev := backend.NewVirtualOutput(1, "PREF-1",
		backend.Mode{W: 1280, H: 720, Rate: 60000},
		backend.Mode{W: 800, H: 600, Rate: 60000})
	srv.addOutput(dev)

	assert.Equal(t, backend.Mode{W: 800, H: 600, Rate: 60000}, dev.CurrentMode())
	assert.Equal(t, backend.Transform90, dev.AppliedTransform())
	assert.Equal(t, float64(2), dev.AppliedScale())

	// Quarter turn: the workspace sees the swapped extent.
	w, h := srv.Current().Size()
	assert.Equal(t, int32(600), w)
	assert.Equal(t, int32(800), h)
}

func TestPointerPreferencesApplyOnAdd(t *testing.T) {
	store := prefs.NewStore()
	require.NoError(t, store.Update(prefs.Preference{
		Name:   prefs.NameBlob("mouse0"),
		Params: prefs.PointerParams{AccelType: 1, Speed: 0.5},
	}))

	srv, err := NewServer(loop.New(), testConfig(), store, nil)
	require.NoError(t, err)
	in := backend.NewHeadless().AddInput("mouse0", backend.InputPointer)
	srv.addInput(in)

	accel, speed := in.AppliedPointer()
	assert.Equal(t, uint8(1), accel)
	assert.Equal(t, 0.5, speed)
}

func TestScreenLockRoutesFocusToLockWidget(t *testing.T) {
	srv := testKernel(t)
	a, _ := mapToplevel(t, srv, 200, 200)
	b, _ := mapToplevel(t, srv, 200, 200)
	lock, _ := mapWidget(t, srv, WidgetScreenLock, 1280, 720)
	ui := srv.outputs[0].UI()

	srv.SetScreenLocked(true)

	assert.False(t, ui.IsSurfaceVisible(a))
	assert.False(t, ui.IsSurfaceVisible(b))
	assert.True(t, ui.IsSurfaceVisible(lock))
	assert.Equal(t, lock, srv.seat.KeyboardFocus())
	assert.Equal(t, lock, srv.seat.PointerFocus())
	assert.False(t, srv.waitingForUser)

	srv.SetScreenLocked(false)
	assert.Equal(t, b, srv.seat.KeyboardFocus(), "unlock restores the workspace focus")
	assert.False(t, ui.IsSurfaceVisible(lock))
}

func TestScreenLockWithoutLockClientAwaitsUser(t *testing.T) {
	srv := testKernel(t)
	mapToplevel(t, srv, 200, 200)

	srv.SetScreenLocked(true)
	assert.True(t, srv.waitingForUser)
	assert.Nil(t, srv.seat.KeyboardFocus())

	// The lock client coming up ends the waiting phase.
	lock, _ := mapWidget(t, srv, WidgetScreenLock, 1280, 720)
	assert.False(t, srv.waitingForUser)
	assert.Equal(t, lock, srv.seat.KeyboardFocus())
}

func TestCheckIPCAccessRights(t *testing.T) {
	reg := proc.NewRegistry()
	srv, err := NewServer(loop.New(), testConfig(), nil, reg)
	require.NoError(t, err)

	pid, err := reg.Spawn([]string{"/bin/sh", "-c", "exit 0"}, proc.RightIPC)
	require.NoError(t, err)

	assert.True(t, srv.CheckIPCAccessRights(pid, ipc.ConnDispatcher))
	assert.True(t, srv.CheckIPCAccessRights(pid, ipc.ConnConfigurator))
	assert.False(t, srv.CheckIPCAccessRights(pid+1, ipc.ConnDispatcher))
	assert.True(t, srv.CheckIPCAccessRights(pid+1, ipc.ConnStatus), "status connections are open")
	assert.False(t, srv.CheckIPCAccessRights(1, ipc.ConnConfigurator))

	reg.NotifyTermination(pid)
	assert.False(t, srv.CheckIPCAccessRights(pid, ipc.ConnDispatcher))
}

func TestObtainStatusSnapshot(t *testing.T) {
	srv := testKernel(t)
	b := backend.NewHeadless()
	srv.addInput(b.AddInput("kbd0", backend.InputKeyboard))

	packets := srv.ObtainStatus()
	require.GreaterOrEqual(t, len(packets), 6)

	assert.Equal(t, ipc.StatusServerState, packets[0].Kind)
	assert.Zero(t, packets[0].State)
	assert.Equal(t, ipc.StatusKeymap, packets[1].Kind)
	assert.Equal(t, []byte("us"), packets[1].Blob)
	assert.Equal(t, ipc.StatusControlScheme, packets[2].Kind)
	assert.NotEmpty(t, packets[2].Blob)
	assert.Equal(t, ipc.StatusTheme, packets[3].Kind)
	assert.Len(t, packets[3].Blob, 24)

	var sawInput, sawOutput bool
	for _, p := range packets[4:] {
		switch p.Kind {
		case ipc.StatusInputInitialized:
			sawInput = true
		case ipc.StatusOutputInitialized:
			sawOutput = true
			assert.Equal(t, uint32(1), p.Device)
		}
	}
	assert.True(t, sawInput)
	assert.True(t, sawOutput)

	srv.SetScreenLocked(true)
	packets = srv.ObtainStatus()
	assert.NotZero(t, packets[0].State&ipc.StateScreenLocked)
}

func TestSwitchKeyboardLayoutCycles(t *testing.T) {
	srv := testKernel(t)
	assert.Equal(t, "us", srv.KeymapLayout())

	srv.SwitchKeyboardLayout()
	assert.Equal(t, "de", srv.KeymapLayout())
	srv.SwitchKeyboardLayout()
	assert.Equal(t, "us", srv.KeymapLayout())
}

func TestConfiguratorRequestsApply(t *testing.T) {
	srv := testKernel(t)

	theme := srv.Theme()
	theme.PanelSize = 48
	srv.handleRequest(ipc.Request{Kind: ipc.ReqSetTheme, Blob: theme.Blob()})
	assert.Equal(t, int32(48), srv.Theme().PanelSize)

	// A malformed blob leaves the active theme alone.
	srv.handleRequest(ipc.Request{Kind: ipc.ReqSetTheme, Blob: []byte{1, 2, 3}})
	assert.Equal(t, int32(48), srv.Theme().PanelSize)

	srv.handleRequest(ipc.Request{Kind: ipc.ReqSetScreenLock, Lock: true})
	assert.True(t, srv.ScreenLocked())
	srv.handleRequest(ipc.Request{Kind: ipc.ReqSetScreenLock, Lock: false})
	assert.False(t, srv.ScreenLocked())

	blob := srv.Scheme().Blob()
	srv.handleRequest(ipc.Request{Kind: ipc.ReqSetScheme, Blob: blob})
	assert.Equal(t, blob, srv.Scheme().Blob())
	srv.handleRequest(ipc.Request{Kind: ipc.ReqSetScheme, Blob: blob[:10]})
	assert.Equal(t, blob, srv.Scheme().Blob(), "rejected scheme keeps the active one")
}

func TestHelperRightsGrants(t *testing.T) {
	assert.Equal(t, proc.RightIPC, helperRights(config.HelperDispatcher))
	assert.Equal(t, proc.RightIPC|proc.RightPrivilegedProtocols, helperRights(config.HelperPanel))
	assert.Equal(t, proc.RightIPC|proc.RightPrivilegedProtocols, helperRights(config.HelperScreenLocker))
	assert.Equal(t, proc.RightPrivilegedProtocols, helperRights(config.HelperBackground))
	assert.Equal(t, proc.RightPrivilegedProtocols, helperRights(config.HelperNotificationDaemon))
}
