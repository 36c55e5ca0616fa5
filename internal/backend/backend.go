// Package backend abstracts the display and input stack underneath the
// window-management core: client surface roles, output and input
// devices, and the renderer. The core drives these interfaces and never
// talks to protocol or hardware directly, which is what lets the whole
// kernel run headless in tests.
package backend

// Rect is a screen-space rectangle in logical pixels.
type Rect struct {
	X, Y, W, H int32
}

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r Rect) Contains(x, y int32) bool {
	return x >= r.X && y >= r.Y && x < r.X+r.W && y < r.Y+r.H
}

// Union returns the smallest rectangle covering both r and o. An empty
// rectangle is the identity.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x1 := min(r.X, o.X)
	y1 := min(r.Y, o.Y)
	x2 := max(r.X+r.W, o.X+o.W)
	y2 := max(r.Y+r.H, o.Y+o.H)
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Mode is one scanout mode of an output device. Rate is in mHz.
type Mode struct {
	W, H, Rate int32
}

// Transform enumerates output rotations and flips in the usual
// counter-clockwise order.
type Transform uint8

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

// InputKind distinguishes the device classes the core routes.
type InputKind uint8

const (
	InputPointer InputKind = iota
	InputKeyboard
)

func (k InputKind) String() string {
	switch k {
	case InputPointer:
		return "pointer"
	case InputKeyboard:
		return "keyboard"
	default:
		return "unknown"
	}
}

// ClientSurface is the role side of one client surface. Implementations
// forward requests to the client; acknowledgement comes back through the
// core's commit entry points.
type ClientSurface interface {
	// ConfigureSize asks the client to commit a buffer of the given size.
	ConfigureSize(w, h int32)
	SetActivated(on bool)
	SetMaximized(on bool)
	SetFullscreen(on bool)
	// Close asks the client to dismiss the surface.
	Close()
	// SetDecorationMode asks the client to draw (or stop drawing) its
	// own decorations.
	SetDecorationMode(serverSide bool)
	// EnterOutput tells the client which output shows the surface.
	EnterOutput(output uint32)
	// LockBuffer pins the last committed buffer until the lock is
	// released, keeping it renderable across a transaction.
	LockBuffer() BufferLock
}

// BufferLock pins a client buffer.
type BufferLock interface {
	Release()
}

// OutputDevice is one attached display.
type OutputDevice interface {
	ID() uint32
	Name() string
	Modes() []Mode
	CurrentMode() Mode
	SetMode(Mode)
	SetTransform(Transform)
	SetScale(scale float64)
}

// InputDevice is one attached input.
type InputDevice interface {
	ID() uint32
	Name() string
	Kind() InputKind
	// ApplyPointer applies acceleration preferences. Non-pointer
	// devices ignore it.
	ApplyPointer(accel uint8, speed float64)
}

// TextRaster is a rendered text run. The output holding it releases it
// when the text changes or the output goes away.
type TextRaster interface {
	Size() (w, h int32)
	Release()
}

// Renderer draws frames and rasterizes the title and menu text the core
// displays.
type Renderer interface {
	RasterizeText(text string) (TextRaster, error)
	// Present submits a frame for the output, restricted to damage.
	Present(output uint32, damage Rect) error
}

// Handler receives device lifecycle events. A backend may call it from
// any goroutine; the core adapts the calls onto its event loop.
type Handler interface {
	OutputAdded(OutputDevice)
	OutputRemoved(OutputDevice)
	InputAdded(InputDevice)
	InputRemoved(InputDevice)
}

// Backend is a source of devices and a sink for frames.
type Backend interface {
	// Start begins delivering devices to h.
	Start(h Handler) error
	Stop()
	Renderer() Renderer
}
