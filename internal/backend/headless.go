package backend

import (
	"sync"

	"github.com/rosewm/rosewm/internal/logger"
)

// Headless is the built-in backend: one virtual output, no input
// devices, and a renderer that draws nowhere. It lets the daemon come up
// without a display stack, and tests use it to drive device hotplug.
type Headless struct {
	mu      sync.Mutex
	handler Handler
	nextID  uint32
	outputs []*VirtualOutput
	inputs  []*VirtualInput
}

func NewHeadless() *Headless {
	return &Headless{nextID: 1}
}

func (h *Headless) Start(handler Handler) error {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()

	h.AddOutput("VIRTUAL-1", Mode{W: 1280, H: 720, Rate: 60000})
	logger.Info("headless backend started")
	return nil
}

func (h *Headless) Stop() {
	h.mu.Lock()
	handler := h.handler
	outputs := h.outputs
	inputs := h.inputs
	h.handler = nil
	h.outputs = nil
	h.inputs = nil
	h.mu.Unlock()

	if handler == nil {
		return
	}
	for _, d := range inputs {
		handler.InputRemoved(d)
	}
	for _, d := range outputs {
		handler.OutputRemoved(d)
	}
}

func (h *Headless) Renderer() Renderer { return nullRenderer{} }

// AddOutput plugs a virtual output in and announces it.
func (h *Headless) AddOutput(name string, modes ...Mode) *VirtualOutput {
	h.mu.Lock()
	d := NewVirtualOutput(h.nextID, name, modes...)
	h.nextID++
	h.outputs = append(h.outputs, d)
	handler := h.handler
	h.mu.Unlock()

	if handler != nil {
		handler.OutputAdded(d)
	}
	return d
}

// RemoveOutput unplugs a virtual output and announces the removal.
func (h *Headless) RemoveOutput(d *VirtualOutput) {
	h.mu.Lock()
	for i, o := range h.outputs {
		if o == d {
			h.outputs = append(h.outputs[:i], h.outputs[i+1:]...)
			break
		}
	}
	handler := h.handler
	h.mu.Unlock()

	if handler != nil {
		handler.OutputRemoved(d)
	}
}

// AddInput plugs a virtual input device in and announces it.
func (h *Headless) AddInput(name string, kind InputKind) *VirtualInput {
	h.mu.Lock()
	d := &VirtualInput{id: h.nextID, name: name, kind: kind}
	h.nextID++
	h.inputs = append(h.inputs, d)
	handler := h.handler
	h.mu.Unlock()

	if handler != nil {
		handler.InputAdded(d)
	}
	return d
}

// RemoveInput unplugs a virtual input device and announces the removal.
func (h *Headless) RemoveInput(d *VirtualInput) {
	h.mu.Lock()
	for i, o := range h.inputs {
		if o == d {
			h.inputs = append(h.inputs[:i], h.inputs[i+1:]...)
			break
		}
	}
	handler := h.handler
	h.mu.Unlock()

	if handler != nil {
		handler.InputRemoved(d)
	}
}

// VirtualOutput is an OutputDevice with no scanout behind it.
type VirtualOutput struct {
	id        uint32
	name      string
	modes     []Mode
	current   Mode
	transform Transform
	scale     float64
}

// NewVirtualOutput builds a virtual output whose current mode is the
// first of modes.
func NewVirtualOutput(id uint32, name string, modes ...Mode) *VirtualOutput {
	if len(modes) == 0 {
		modes = []Mode{{W: 1280, H: 720, Rate: 60000}}
	}
	return &VirtualOutput{
		id:      id,
		name:    name,
		modes:   modes,
		current: modes[0],
		scale:   1,
	}
}

func (d *VirtualOutput) ID() uint32        { return d.id }
func (d *VirtualOutput) Name() string      { return d.name }
func (d *VirtualOutput) Modes() []Mode     { return d.modes }
func (d *VirtualOutput) CurrentMode() Mode { return d.current }

func (d *VirtualOutput) SetMode(m Mode)              { d.current = m }
func (d *VirtualOutput) SetTransform(t Transform)    { d.transform = t }
func (d *VirtualOutput) SetScale(scale float64)      { d.scale = scale }
func (d *VirtualOutput) AppliedTransform() Transform { return d.transform }
func (d *VirtualOutput) AppliedScale() float64       { return d.scale }

// VirtualInput is an InputDevice that records applied preferences.
type VirtualInput struct {
	id    uint32
	name  string
	kind  InputKind
	accel uint8
	speed float64
}

func (d *VirtualInput) ID() uint32      { return d.id }
func (d *VirtualInput) Name() string    { return d.name }
func (d *VirtualInput) Kind() InputKind { return d.kind }

func (d *VirtualInput) ApplyPointer(accel uint8, speed float64) {
	if d.kind != InputPointer {
		return
	}
	d.accel = accel
	d.speed = speed
}

// AppliedPointer reports the last pointer preference applied.
func (d *VirtualInput) AppliedPointer() (accel uint8, speed float64) {
	return d.accel, d.speed
}

type nullRenderer struct{}

func (nullRenderer) RasterizeText(text string) (TextRaster, error) {
	// Rough cell metrics so layout code sees plausible sizes.
	return &nullRaster{w: int32(8 * len(text)), h: 16}, nil
}

func (nullRenderer) Present(uint32, Rect) error { return nil }

type nullRaster struct {
	w, h int32
}

func (r *nullRaster) Size() (int32, int32) { return r.w, r.h }
func (*nullRaster) Release()               {}
