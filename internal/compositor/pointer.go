package compositor

type ButtonState uint32

const (
	ButtonReleased ButtonState = iota
	ButtonPressed
)

func (s ButtonState) String() string {
	if s == ButtonPressed {
		return "pressed"
	}
	return "released"
}

// Axis identifies a scroll axis.
type Axis uint32

const (
	AxisVertical Axis = iota
	AxisHorizontal
)

func (a Axis) String() string {
	if a == AxisHorizontal {
		return "horizontal"
	}
	return "vertical"
}

// PointerClient is a client's pointer object.
type PointerClient interface {
	SendMotion(time uint32, sx, sy float64)
	SendButton(serial, time, button uint32, state ButtonState)
	SendAxis(time uint32, axis Axis, value float64)
}

// PointerGrab receives pointer events while installed on a pointer.
type PointerGrab interface {
	Focus(p *Pointer)
	Motion(p *Pointer, time uint32, x, y float64)
	Button(p *Pointer, time, button uint32, state ButtonState)
	Cancel(p *Pointer)
}

// Pointer is the seat's pointer.
type Pointer struct {
	Seat *Seat

	// X and Y are the global pointer position.
	X, Y float64

	Focus  *View
	SX, SY float64

	ButtonCount int
	GrabButton  uint32
	GrabTime    uint32
	GrabSerial  uint32
	GrabX       float64
	GrabY       float64

	MotionSignal Signal[*Pointer]
	FocusSignal  Signal[*Pointer]

	grab        PointerGrab
	defaultGrab PointerGrab
	clients     map[*Client][]PointerClient
}

func newPointer(seat *Seat) *Pointer {
	p := &Pointer{
		Seat:    seat,
		clients: make(map[*Client][]PointerClient),
	}
	p.defaultGrab = defaultPointerGrab{}
	p.grab = p.defaultGrab
	return p
}

func (p *Pointer) Grab() PointerGrab {
	return p.grab
}

func (p *Pointer) HasDefaultGrab() bool {
	return p.grab == p.defaultGrab
}

func (p *Pointer) StartGrab(g PointerGrab) {
	p.grab = g
	g.Focus(p)
}

func (p *Pointer) EndGrab() {
	p.grab = p.defaultGrab
	p.grab.Focus(p)
}

// BindClient registers a client pointer object.
func (p *Pointer) BindClient(c *Client, pc PointerClient) {
	p.clients[c] = append(p.clients[c], pc)
	c.Destroyed.Add(func(*Client) {
		delete(p.clients, c)
	})
}

// FocusClients returns the pointer objects of the focused client.
func (p *Pointer) FocusClients() []PointerClient {
	if p.Focus == nil || p.Focus.Surface == nil || p.Focus.Surface.Client == nil {
		return nil
	}
	return p.clients[p.Focus.Surface.Client]
}

// SetFocus changes the view under the pointer. A nil view clears focus.
func (p *Pointer) SetFocus(v *View, sx, sy float64) {
	changed := p.Focus != v
	p.Focus = v
	p.SX, p.SY = sx, sy
	if changed {
		p.FocusSignal.Emit(p)
	}
}

// Move sets the global position, clamped to the output layout.
func (p *Pointer) Move(x, y float64) {
	p.X, p.Y = p.Seat.compositor.clampToOutputs(p.X, p.Y, x, y)
	p.MotionSignal.Emit(p)
}

type defaultPointerGrab struct{}

func (defaultPointerGrab) Focus(p *Pointer) {
	if p.ButtonCount > 0 {
		return
	}
	v, sx, sy := p.Seat.compositor.PickView(p.X, p.Y)
	if v != p.Focus || sx != p.SX || sy != p.SY {
		p.SetFocus(v, sx, sy)
	}
}

func (g defaultPointerGrab) Motion(p *Pointer, time uint32, x, y float64) {
	p.Move(x, y)
	g.Focus(p)
	for _, pc := range p.FocusClients() {
		pc.SendMotion(time, p.SX, p.SY)
	}
}

func (g defaultPointerGrab) Button(p *Pointer, time, button uint32, state ButtonState) {
	clients := p.FocusClients()
	if len(clients) > 0 {
		serial := p.Seat.compositor.NextSerial()
		for _, pc := range clients {
			pc.SendButton(serial, time, button, state)
		}
	}
	if p.ButtonCount == 0 && state == ButtonReleased {
		g.Focus(p)
	}
}

func (defaultPointerGrab) Cancel(*Pointer) {}
