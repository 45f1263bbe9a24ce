package compositor

import "fmt"

// OutputTransform mirrors wl_output.transform.
type OutputTransform int

const (
	TransformNormal OutputTransform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

var transformNames = map[string]OutputTransform{
	"normal":      TransformNormal,
	"90":          Transform90,
	"180":         Transform180,
	"270":         Transform270,
	"flipped":     TransformFlipped,
	"flipped-90":  TransformFlipped90,
	"flipped-180": TransformFlipped180,
	"flipped-270": TransformFlipped270,
}

// ParseTransform maps a config name to an output transform.
func ParseTransform(name string) (OutputTransform, error) {
	if name == "" {
		return TransformNormal, nil
	}
	t, ok := transformNames[name]
	if !ok {
		return TransformNormal, fmt.Errorf("unknown output transform %q", name)
	}
	return t, nil
}

func (t OutputTransform) String() string {
	for name, v := range transformNames {
		if v == t {
			return name
		}
	}
	return "unknown"
}

// Mode is a hardware display mode.
type Mode struct {
	Width   int32
	Height  int32
	Refresh int32 // mHz
}

// OutputAnimation is a per-frame hook on an output's animation list.
type OutputAnimation struct {
	FrameCounter int

	frame  func(a *OutputAnimation, o *Output, msecs uint32)
	output *Output
}

// NewOutputAnimation returns an unlinked frame hook.
func NewOutputAnimation(frame func(a *OutputAnimation, o *Output, msecs uint32)) *OutputAnimation {
	return &OutputAnimation{frame: frame}
}

// Linked reports whether the hook sits on an output's list.
func (a *OutputAnimation) Linked() bool {
	return a.output != nil
}

// Remove takes the hook off its output. Safe during a frame.
func (a *OutputAnimation) Remove() {
	o := a.output
	if o == nil {
		return
	}
	for i, other := range o.animations {
		if other == a {
			o.animations = append(o.animations[:i], o.animations[i+1:]...)
			break
		}
	}
	a.output = nil
}

// Output is a display the compositor paints into.
type Output struct {
	ID   uint32
	Name string

	// X, Y, Width and Height are the output's region of the global space.
	X, Y          int32
	Width, Height int32
	Scale         int32
	Transform     OutputTransform
	Mode          Mode

	// DisablePlanes counts users that need every view composited, such as
	// the recorder.
	DisablePlanes int

	FrameSignal Signal[*Output]
	Destroyed   Signal[*Output]

	zoom       outputZoom
	compositor *Compositor
	animations []*OutputAnimation

	repaintScheduled bool
	damaged          bool
	frameDamaged     bool
	frameTime        uint32
}

type outputZoom struct {
	active bool
	level  float64
	transX float64
	transY float64
}

// NewOutput builds an output from its mode, scale and transform.
func NewOutput(name string, mode Mode, scale int32, transform OutputTransform) *Output {
	if scale < 1 {
		scale = 1
	}
	o := &Output{
		Name:      name,
		Scale:     scale,
		Transform: transform,
		Mode:      mode,
	}
	switch transform {
	case Transform90, Transform270, TransformFlipped90, TransformFlipped270:
		o.Width, o.Height = mode.Height/scale, mode.Width/scale
	default:
		o.Width, o.Height = mode.Width/scale, mode.Height/scale
	}
	return o
}

// Bounds returns the output region.
func (o *Output) Bounds() Rect {
	return Rect{X: float64(o.X), Y: float64(o.Y), Width: float64(o.Width), Height: float64(o.Height)}
}

// Contains reports whether a global point falls on this output.
func (o *Output) Contains(x, y float64) bool {
	return x >= float64(o.X) && x < float64(o.X+o.Width) &&
		y >= float64(o.Y) && y < float64(o.Y+o.Height)
}

// InsertAnimation links a frame hook at the head of the animation list.
func (o *Output) InsertAnimation(a *OutputAnimation) {
	if a.output != nil {
		a.Remove()
	}
	a.output = o
	o.animations = append([]*OutputAnimation{a}, o.animations...)
}

// Animations returns the hooks currently linked.
func (o *Output) Animations() []*OutputAnimation {
	return o.animations
}

// ScheduleRepaint requests a frame.
func (o *Output) ScheduleRepaint() {
	o.repaintScheduled = true
}

// RepaintScheduled reports whether a frame is pending.
func (o *Output) RepaintScheduled() bool {
	return o.repaintScheduled
}

// Damage marks the whole output for redraw.
func (o *Output) Damage() {
	o.damaged = true
	o.ScheduleRepaint()
}

// Damaged reports whether the output was damaged since the last frame.
func (o *Output) Damaged() bool {
	return o.damaged
}

// FrameDamaged reports whether the frame being painted, or the last one
// painted, redrew anything.
func (o *Output) FrameDamaged() bool {
	return o.frameDamaged
}

// FrameTime returns the timestamp of the current or last frame.
func (o *Output) FrameTime() uint32 {
	return o.frameTime
}

// Repaint runs one frame at msecs: frame listeners first, then every
// animation. Hooks removed during the frame are not called.
func (o *Output) Repaint(msecs uint32) {
	o.repaintScheduled = false
	o.frameDamaged = o.damaged
	o.frameTime = msecs
	o.damaged = false

	o.FrameSignal.Emit(o)

	snapshot := append([]*OutputAnimation(nil), o.animations...)
	for _, a := range snapshot {
		if a.output != o {
			continue
		}
		a.FrameCounter++
		a.frame(a, o, msecs)
	}
}

// TransformCoordinate maps a device coordinate in mode pixels into the
// global coordinate space.
func (o *Output) TransformCoordinate(x, y float64) (float64, float64) {
	width := float64(o.Width*o.Scale - 1)
	height := float64(o.Height*o.Scale - 1)

	var tx, ty float64
	switch o.Transform {
	case Transform90:
		tx, ty = y, height-x
	case Transform180:
		tx, ty = width-x, height-y
	case Transform270:
		tx, ty = width-y, x
	case TransformFlipped:
		tx, ty = width-x, y
	case TransformFlipped90:
		tx, ty = width-y, height-x
	case TransformFlipped180:
		tx, ty = x, height-y
	case TransformFlipped270:
		tx, ty = y, x
	default:
		tx, ty = x, y
	}

	scale := float64(o.Scale)
	return tx/scale + float64(o.X), ty/scale + float64(o.Y)
}

// SetZoom updates the magnification applied when painting the output.
func (o *Output) SetZoom(active bool, level, transX, transY float64) {
	o.zoom = outputZoom{active: active, level: level, transX: transX, transY: transY}
}

// ZoomLevel returns the zoom level and whether zoom is active.
func (o *Output) ZoomLevel() (float64, bool) {
	return o.zoom.level, o.zoom.active
}

// Matrix maps global coordinates into normalized output space, [-1, 1] on
// both axes, with zoom applied.
func (o *Output) Matrix() Matrix {
	m := Identity()
	m.Translate(-(float64(o.X) + float64(o.Width)/2), -(float64(o.Y) + float64(o.Height)/2))
	m.Scale(2/float64(o.Width), 2/float64(o.Height))

	if o.zoom.active && o.zoom.level < 1 {
		mag := 1 / (1 - o.zoom.level)
		m.Translate(-o.zoom.transX, -o.zoom.transY)
		m.Scale(mag, mag)
	}
	return m
}

// Compositor returns the owning compositor.
func (o *Output) Compositor() *Compositor {
	return o.compositor
}
