package comp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rosewm/rosewm/internal/backend"
	"github.com/rosewm/rosewm/internal/config"
	"github.com/rosewm/rosewm/internal/loop"
	"github.com/rosewm/rosewm/internal/scheme"
)

// fakeLock counts releases so tests can check that transaction buffer
// locks come back.
type fakeLock struct {
	client *fakeClient
}

func (l *fakeLock) Release() { l.client.releases++ }

// fakeClient records every request the kernel forwards to a client.
type fakeClient struct {
	width, height int32 // last ConfigureSize
	configures    int
	activated     bool
	maximized     bool
	fullscreen    bool
	closed        bool
	serverSide    bool
	decoRequests  int
	entered       []uint32
	locks         int
	releases      int
}

func (c *fakeClient) ConfigureSize(w, h int32) {
	c.width, c.height = w, h
	c.configures++
}

func (c *fakeClient) SetActivated(on bool)  { c.activated = on }
func (c *fakeClient) SetMaximized(on bool)  { c.maximized = on }
func (c *fakeClient) SetFullscreen(on bool) { c.fullscreen = on }
func (c *fakeClient) Close()                { c.closed = true }

func (c *fakeClient) SetDecorationMode(serverSide bool) {
	c.serverSide = serverSide
	c.decoRequests++
}

func (c *fakeClient) EnterOutput(output uint32) {
	c.entered = append(c.entered, output)
}

func (c *fakeClient) LockBuffer() backend.BufferLock {
	c.locks++
	return &fakeLock{client: c}
}

// outstanding reports how many buffer locks are still held.
func (c *fakeClient) outstanding() int { return c.locks - c.releases }

func testConfig() *config.Config {
	return &config.Config{
		Terminal: []string{"rosewm-terminal"},
		Layouts:  []string{"us", "de"},
		Scheme:   scheme.Default(),
		Theme:    config.DefaultTheme(),
		Ambient:  config.DefaultAmbient,
	}
}

// testKernel builds a server with one 1280x720 output attached and its
// workspace current. Nothing runs the loop; tests drive entry points
// directly.
func testKernel(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(loop.New(), testConfig(), nil, nil)
	require.NoError(t, err)
	srv.renderer = backend.NewHeadless().Renderer()
	dev := backend.NewVirtualOutput(1, "TEST-1", backend.Mode{W: 1280, H: 720, Rate: 60000})
	srv.addOutput(dev)
	require.NotNil(t, srv.current)
	require.Equal(t, srv.outputs[0], srv.current.output)
	return srv
}

// mapToplevel creates a toplevel on the current workspace and performs
// the client's initial commit at the given size.
func mapToplevel(t *testing.T, srv *Server, w, h int32) (*Surface, *fakeClient) {
	t.Helper()
	c := &fakeClient{}
	s, err := srv.CreateToplevel(c, nil, false, false)
	require.NoError(t, err)
	s.CommitClientState(State{W: w, H: h})
	require.True(t, s.Mapped())
	return s, c
}

// mapWidget creates a widget on the first output's UI and commits it.
func mapWidget(t *testing.T, srv *Server, kind WidgetKind, w, h int32) (*Surface, *fakeClient) {
	t.Helper()
	c := &fakeClient{}
	s, err := srv.CreateWidget(c, srv.outputs[0].ui, kind)
	require.NoError(t, err)
	s.CommitClientState(State{W: w, H: h})
	require.True(t, s.Mapped())
	return s, c
}
