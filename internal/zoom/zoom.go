// Package zoom magnifies an output around the pointer.
//
// Each output carries two springs: z drives the magnification level and xy
// pans the zoomed area between two points, for example toward a text cursor.
// While xy is idle the zoomed area follows the pointer.
package zoom

import (
	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/spring"
)

var zoomLog = logger.With("zoom")

const (
	DefaultIncrement = 0.07
	DefaultMaxLevel  = 0.95

	springK        = 250
	springFriction = 1000
)

// Point is a position in global coordinates.
type Point struct {
	X, Y float64
}

// Zoom is the magnification state of one output.
type Zoom struct {
	Output *compositor.Output

	Active    bool
	Increment float64
	MaxLevel  float64
	// Level is the level the z spring is heading to.
	Level float64

	TransX, TransY float64

	SpringZ  spring.Spring
	SpringXY spring.Spring

	From, To, Current Point

	seat   *compositor.Seat
	animZ  *compositor.OutputAnimation
	animXY *compositor.OutputAnimation
	motion *compositor.Listener[*compositor.Pointer]
}

// New returns the zoom state of o, at rest and inactive.
func New(o *compositor.Output, increment, maxLevel float64) *Zoom {
	z := &Zoom{
		Output:    o,
		Increment: increment,
		MaxLevel:  maxLevel,
	}
	z.SpringZ.Init(springK, 0, 0)
	z.SpringZ.Friction = springFriction
	z.SpringXY.Init(springK, 0, 0)
	z.SpringXY.Friction = springFriction

	z.animZ = compositor.NewOutputAnimation(z.frameZ)
	z.animXY = compositor.NewOutputAnimation(z.frameXY)
	return z
}

// Animating reports whether either spring is still moving.
func (z *Zoom) Animating() bool {
	return z.animZ.Linked() || z.animXY.Linked()
}

// Activate starts following seat's pointer. It does nothing when the zoom
// is already active.
func (z *Zoom) Activate(seat *compositor.Seat) {
	if z.Active || seat == nil || seat.Pointer == nil {
		return
	}
	z.Active = true
	z.seat = seat
	z.Output.DisablePlanes++
	z.motion = seat.Pointer.MotionSignal.Add(func(*compositor.Pointer) { z.Update() })
	zoomLog.Debug("zoom activated", "output", z.Output.Name)
}

func (z *Zoom) deactivate() {
	z.Active = false
	z.Output.DisablePlanes--
	z.motion.Remove()
	z.motion = nil
	zoomLog.Debug("zoom deactivated", "output", z.Output.Name)
}

// AreaCenterFromPointer shifts a pointer position so the zoomed area keeps
// the pointer at the same relative spot it has on the unzoomed output.
func (z *Zoom) AreaCenterFromPointer(x, y float64) (float64, float64) {
	level := z.SpringZ.Current
	o := z.Output
	w, h := float64(o.Width), float64(o.Height)

	x -= ((x-float64(o.X))/w - 0.5) * (w * (1 - level))
	y -= ((y-float64(o.Y))/h - 0.5) * (h * (1 - level))
	return x, y
}

// Update recomputes the zoomed area from the pointer and starts the z spring
// toward Level.
func (z *Zoom) Update() {
	p := z.pointer()
	if p == nil {
		return
	}
	x, y := z.AreaCenterFromPointer(p.X, p.Y)

	if !z.animXY.Linked() {
		z.Current = Point{p.X, p.Y}
	} else {
		z.To = Point{x, y}
	}

	z.Transition()
	z.UpdateTransform()
}

// Transition starts the z animation when Level differs from the current
// spring position.
func (z *Zoom) Transition() {
	if z.Level != z.SpringZ.Current {
		z.SpringZ.Target = z.Level
		if !z.animZ.Linked() {
			z.animZ.FrameCounter = 0
			z.Output.InsertAnimation(z.animZ)
		}
	}
	z.Output.Damage()
}

// FocusOn pans the zoomed area toward a global point.
func (z *Zoom) FocusOn(x, y float64) {
	if !z.Active {
		return
	}
	z.From = z.Current
	z.To = Point{x, y}
	z.SpringXY.Current = 0
	z.SpringXY.Previous = 0
	z.SpringXY.Target = 1
	if !z.animXY.Linked() {
		z.animXY.FrameCounter = 0
		z.Output.InsertAnimation(z.animXY)
	}
	z.Output.Damage()
}

// UpdateTransform computes the output translation for the current level and
// publishes it to the output.
func (z *Zoom) UpdateTransform() {
	o := z.Output
	level := z.SpringZ.Current

	if !z.Active || level > z.MaxLevel || level == 0 {
		o.SetZoom(z.Active, level, z.TransX, z.TransY)
		return
	}

	x, y := z.Current.X, z.Current.Y
	if !z.animXY.Linked() {
		x, y = z.AreaCenterFromPointer(x, y)
	}

	ratio := 1 / level
	tx := (((x-float64(o.X))/float64(o.Width))*(level*2) - level) * ratio
	ty := (((y-float64(o.Y))/float64(o.Height))*(level*2) - level) * ratio
	tx, ty = applyOutputTransform(o.Transform, tx, ty)

	// The zoomed area never leaves the output.
	z.TransX = clamp(tx, -level, level)
	z.TransY = clamp(ty, -level, level)

	o.SetZoom(true, level, z.TransX, z.TransY)
}

func (z *Zoom) frameZ(a *compositor.OutputAnimation, o *compositor.Output, msecs uint32) {
	if a.FrameCounter <= 1 {
		z.SpringZ.Timestamp = msecs
	}
	z.SpringZ.Update(msecs)
	z.SpringZ.Current = clamp(z.SpringZ.Current, 0, z.MaxLevel)

	if z.SpringZ.Done() {
		if z.Active && z.Level <= 0 {
			z.deactivate()
		}
		z.SpringZ.Current = z.Level
		a.Remove()
	}

	z.UpdateTransform()
	o.Damage()
}

func (z *Zoom) frameXY(a *compositor.OutputAnimation, o *compositor.Output, msecs uint32) {
	if a.FrameCounter <= 1 {
		z.SpringXY.Timestamp = msecs
	}
	z.SpringXY.Update(msecs)

	progress := z.SpringXY.Current
	z.Current = Point{
		X: z.From.X - (z.From.X-z.To.X)*progress,
		Y: z.From.Y - (z.From.Y-z.To.Y)*progress,
	}

	if z.SpringXY.Done() {
		z.SpringXY.Current = z.SpringXY.Target
		if p := z.pointer(); p != nil {
			z.Current = Point{p.X, p.Y}
		}
		a.Remove()
	}

	z.UpdateTransform()
	o.Damage()
}

func (z *Zoom) pointer() *compositor.Pointer {
	seat := z.seat
	if seat == nil {
		c := z.Output.Compositor()
		if c == nil || len(c.Seats()) == 0 {
			return nil
		}
		seat = c.Seats()[0]
	}
	return seat.Pointer
}

func (z *Zoom) destroy() {
	z.animZ.Remove()
	z.animXY.Remove()
	if z.motion != nil {
		z.motion.Remove()
		z.motion = nil
	}
}

func applyOutputTransform(t compositor.OutputTransform, x, y float64) (float64, float64) {
	switch t {
	case compositor.Transform90:
		return -y, x
	case compositor.Transform180:
		return -x, -y
	case compositor.Transform270:
		return y, -x
	case compositor.TransformFlipped:
		return -x, y
	case compositor.TransformFlipped90:
		return -y, -x
	case compositor.TransformFlipped180:
		return x, -y
	case compositor.TransformFlipped270:
		return y, x
	default:
		return x, y
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
