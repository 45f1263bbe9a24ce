// Package compositor holds the core object model the rest of waycomp plugs
// into: outputs, views, seats, bindings and the dispatch loop.
package compositor

import (
	"context"
	"time"

	"github.com/bnema/waycomp/internal/logger"
)

// Compositor is the registry of outputs, seats and views.
type Compositor struct {
	Loop     *Loop
	Clock    Clock
	Launcher Launcher
	Renderer Renderer

	SeatCreated   Signal[*Seat]
	OutputCreated Signal[*Output]
	Destroyed     Signal[*Compositor]

	// Input panel requests from text inputs.
	ShowInputPanel   Signal[*Surface]
	HideInputPanel   Signal[*Compositor]
	UpdateInputPanel Signal[Rect]

	outputs []*Output
	seats   []*Seat
	views   []*View // top first
	clients []*Client

	bindings bindings

	serial    uint32
	nextID    uint32
	startTime time.Time
}

// New returns a compositor using renderer for pixel reads.
func New(renderer Renderer) *Compositor {
	c := &Compositor{
		Loop:      NewLoop(0),
		Clock:     SystemClock,
		Renderer:  renderer,
		startTime: time.Now(),
	}
	c.Launcher = &ExecLauncher{Compositor: c}
	return c
}

func (c *Compositor) id() uint32 {
	c.nextID++
	return c.nextID
}

// NextSerial returns a fresh event serial.
func (c *Compositor) NextSerial() uint32 {
	c.serial++
	return c.serial
}

// Serial returns the last serial handed out.
func (c *Compositor) Serial() uint32 {
	return c.serial
}

// Msecs returns the compositor clock in milliseconds.
func (c *Compositor) Msecs() uint32 {
	return uint32(c.Clock.Now().Sub(c.startTime) / time.Millisecond)
}

// AddOutput places o to the right of the existing outputs unless it already
// has a position.
func (c *Compositor) AddOutput(o *Output) {
	if o.X == 0 && o.Y == 0 && len(c.outputs) > 0 {
		last := c.outputs[len(c.outputs)-1]
		o.X = last.X + last.Width
	}
	o.ID = c.id()
	o.compositor = c
	c.outputs = append(c.outputs, o)
	logger.Debug("output added", "name", o.Name, "x", o.X, "y", o.Y, "width", o.Width, "height", o.Height)
	c.OutputCreated.Emit(o)
}

// RemoveOutput detaches an output and moves its views to the default output.
func (c *Compositor) RemoveOutput(o *Output) {
	for i, other := range c.outputs {
		if other == o {
			c.outputs = append(c.outputs[:i], c.outputs[i+1:]...)
			break
		}
	}
	o.Destroyed.Emit(o)
	for _, a := range append([]*OutputAnimation(nil), o.animations...) {
		a.Remove()
	}
	for _, v := range c.views {
		if v.Output == o {
			v.Output = c.DefaultOutput()
		}
	}
	o.compositor = nil
}

func (c *Compositor) Outputs() []*Output {
	return c.outputs
}

// DefaultOutput is the first output, or nil when there is none.
func (c *Compositor) DefaultOutput() *Output {
	if len(c.outputs) == 0 {
		return nil
	}
	return c.outputs[0]
}

// OutputAt returns the output containing a global point.
func (c *Compositor) OutputAt(x, y float64) *Output {
	for _, o := range c.outputs {
		if o.Contains(x, y) {
			return o
		}
	}
	return nil
}

func (c *Compositor) clampToOutputs(oldX, oldY, x, y float64) (float64, float64) {
	if c.OutputAt(x, y) != nil || len(c.outputs) == 0 {
		return x, y
	}
	o := c.OutputAt(oldX, oldY)
	if o == nil {
		o = c.DefaultOutput()
	}
	b := o.Bounds()
	if x < b.X {
		x = b.X
	}
	if x >= b.X+b.Width {
		x = b.X + b.Width - 1
	}
	if y < b.Y {
		y = b.Y
	}
	if y >= b.Y+b.Height {
		y = b.Y + b.Height - 1
	}
	return x, y
}

// CreateSeat adds a seat and notifies SeatCreated observers.
func (c *Compositor) CreateSeat(name string) *Seat {
	s := &Seat{Name: name, compositor: c}
	c.seats = append(c.seats, s)
	c.SeatCreated.Emit(s)
	return s
}

func (c *Compositor) Seats() []*Seat {
	return c.seats
}

// NewClient registers a client connection.
func (c *Compositor) NewClient(pid int) *Client {
	cl := &Client{ID: c.id(), PID: pid}
	c.clients = append(c.clients, cl)
	cl.Destroyed.Add(func(cl *Client) {
		for i, other := range c.clients {
			if other == cl {
				c.clients = append(c.clients[:i], c.clients[i+1:]...)
				break
			}
		}
	})
	return cl
}

func (c *Compositor) Clients() []*Client {
	return c.clients
}

// CreateSurface returns a surface of the given size owned by client.
func (c *Compositor) CreateSurface(client *Client, width, height int32) *Surface {
	return &Surface{ID: c.id(), Client: client, Width: width, Height: height}
}

// CreateView returns an unstacked view of surface.
func (c *Compositor) CreateView(s *Surface) *View {
	v := &View{Surface: s, Alpha: 1, compositor: c}
	s.views = append(s.views, v)
	return v
}

// StackView puts v on top of the stack and assigns it an output.
func (c *Compositor) StackView(v *View) {
	c.removeView(v)
	c.views = append([]*View{v}, c.views...)
	c.assignOutput(v)
	v.GeometryDirty()
	v.ScheduleRepaint()
}

// Views returns the stacked views, topmost first.
func (c *Compositor) Views() []*View {
	return c.views
}

func (c *Compositor) removeView(v *View) {
	for i, other := range c.views {
		if other == v {
			c.views = append(c.views[:i], c.views[i+1:]...)
			return
		}
	}
}

func (c *Compositor) assignOutput(v *View) {
	b := v.Bounds()
	if o := c.OutputAt(b.X+b.Width/2, b.Y+b.Height/2); o != nil {
		v.Output = o
		return
	}
	if v.Output == nil {
		v.Output = c.DefaultOutput()
	}
}

// PickView returns the topmost view under a global point together with the
// point in surface-local coordinates.
func (c *Compositor) PickView(x, y float64) (*View, float64, float64) {
	for _, v := range c.views {
		if !v.Bounds().Contains(x, y) {
			continue
		}
		sx, sy := v.FromGlobal(x, y)
		return v, sx, sy
	}
	return nil, 0, 0
}

// ScheduleRepaint requests a frame on every output.
func (c *Compositor) ScheduleRepaint() {
	for _, o := range c.outputs {
		o.ScheduleRepaint()
	}
}

// FrameInterval is the frame period of the fastest output, 60Hz when no
// output reports a refresh rate.
func (c *Compositor) FrameInterval() time.Duration {
	interval := time.Second / 60
	for _, o := range c.outputs {
		if o.Mode.Refresh > 0 {
			d := time.Duration(int64(time.Second) * 1000 / int64(o.Mode.Refresh))
			if d < interval {
				interval = d
			}
		}
	}
	return interval
}

// RunFrames repaints outputs with a pending frame every interval until ctx
// is done. It only posts to the loop, so it runs on its own goroutine.
func (c *Compositor) RunFrames(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Loop.Post(c.repaintPending)
		}
	}
}

func (c *Compositor) repaintPending() {
	msecs := c.Msecs()
	for _, o := range append([]*Output(nil), c.outputs...) {
		if o.RepaintScheduled() {
			o.Repaint(msecs)
		}
	}
}

// Destroy tears down every seat, view and output.
func (c *Compositor) Destroy() {
	c.Destroyed.Emit(c)
	for len(c.views) > 0 {
		c.views[0].Destroy()
	}
	for _, s := range c.seats {
		s.Destroyed.Emit(s)
	}
	for len(c.outputs) > 0 {
		c.RemoveOutput(c.outputs[0])
	}
	for _, cl := range append([]*Client(nil), c.clients...) {
		cl.Destroy()
	}
}
