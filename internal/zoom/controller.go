package zoom

import (
	"github.com/bnema/waycomp/internal/compositor"
)

// scrollDivisor converts a scroll value, 10 per wheel click, into a fraction
// of the zoom increment.
const scrollDivisor = 20.0

// Options configure a Controller. Zero values select the defaults.
type Options struct {
	Increment float64
	MaxLevel  float64
}

// Controller owns the zoom state of every output.
type Controller struct {
	compositor *compositor.Compositor
	increment  float64
	maxLevel   float64

	zooms         map[*compositor.Output]*Zoom
	outputCreated *compositor.Listener[*compositor.Output]
}

func NewController(c *compositor.Compositor, opts Options) *Controller {
	if opts.Increment <= 0 {
		opts.Increment = DefaultIncrement
	}
	if opts.MaxLevel <= 0 || opts.MaxLevel >= 1 {
		opts.MaxLevel = DefaultMaxLevel
	}
	ctl := &Controller{
		compositor: c,
		increment:  opts.Increment,
		maxLevel:   opts.MaxLevel,
		zooms:      make(map[*compositor.Output]*Zoom),
	}
	for _, o := range c.Outputs() {
		ctl.add(o)
	}
	ctl.outputCreated = c.OutputCreated.Add(func(o *compositor.Output) { ctl.add(o) })
	return ctl
}

func (ctl *Controller) add(o *compositor.Output) *Zoom {
	z := New(o, ctl.increment, ctl.maxLevel)
	ctl.zooms[o] = z
	o.Destroyed.Add(func(o *compositor.Output) {
		z.destroy()
		delete(ctl.zooms, o)
	})
	return z
}

// Output returns the zoom state of o, or nil for an unknown output.
func (ctl *Controller) Output(o *compositor.Output) *Zoom {
	return ctl.zooms[o]
}

// ZoomIn raises the level of the output under seat's pointer by one step.
func (ctl *Controller) ZoomIn(seat *compositor.Seat) {
	ctl.adjust(seat, 1)
}

// ZoomOut lowers the level of the output under seat's pointer by one step.
func (ctl *Controller) ZoomOut(seat *compositor.Seat) {
	ctl.adjust(seat, -1)
}

// Scroll zooms by a scroll value. Scrolling up, a negative value, zooms in.
func (ctl *Controller) Scroll(seat *compositor.Seat, value float64) {
	ctl.adjust(seat, -value/scrollDivisor)
}

// FocusOn pans the zoomed output containing (x, y) toward that point.
func (ctl *Controller) FocusOn(x, y float64) {
	o := ctl.compositor.OutputAt(x, y)
	if z := ctl.zooms[o]; z != nil {
		z.FocusOn(x, y)
	}
}

// adjust moves the level by steps increments.
func (ctl *Controller) adjust(seat *compositor.Seat, steps float64) {
	if seat == nil || seat.Pointer == nil {
		return
	}
	o := ctl.compositor.OutputAt(seat.Pointer.X, seat.Pointer.Y)
	z := ctl.zooms[o]
	if z == nil {
		return
	}

	z.Level = clamp(z.Level+z.Increment*steps, 0, z.MaxLevel)
	if z.Level > 0 {
		z.Activate(seat)
	}
	z.SpringZ.Target = z.Level
	z.Update()
	zoomLog.Debug("zoom level changed", "output", o.Name, "level", z.Level)
}

// Close detaches the controller from the compositor.
func (ctl *Controller) Close() {
	ctl.outputCreated.Remove()
	for o, z := range ctl.zooms {
		z.destroy()
		delete(ctl.zooms, o)
	}
}
