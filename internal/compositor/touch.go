package compositor

type TouchType uint32

const (
	TouchDown TouchType = iota
	TouchUp
	TouchMotion
)

func (t TouchType) String() string {
	switch t {
	case TouchDown:
		return "down"
	case TouchUp:
		return "up"
	default:
		return "motion"
	}
}

// TouchClient is a client's touch object.
type TouchClient interface {
	SendDown(serial, time uint32, v *View, id int32, sx, sy float64)
	SendUp(serial, time uint32, id int32)
	SendMotion(time uint32, id int32, sx, sy float64)
}

// TouchGrab receives touch events while installed.
type TouchGrab interface {
	Down(t *Touch, time uint32, id int32, sx, sy float64)
	Up(t *Touch, time uint32, id int32)
	Motion(t *Touch, time uint32, id int32, sx, sy float64)
	Cancel(t *Touch)
}

// Touch is the seat's touch device.
type Touch struct {
	Seat  *Seat
	Focus *View

	// NumTP is the number of touch points currently down.
	NumTP int

	GrabTouchID int32
	GrabX       float64
	GrabY       float64
	GrabTime    uint32

	grab        TouchGrab
	defaultGrab TouchGrab
	clients     map[*Client][]TouchClient
}

func newTouch(seat *Seat) *Touch {
	t := &Touch{
		Seat:    seat,
		clients: make(map[*Client][]TouchClient),
	}
	t.defaultGrab = defaultTouchGrab{}
	t.grab = t.defaultGrab
	return t
}

func (t *Touch) Grab() TouchGrab {
	return t.grab
}

func (t *Touch) StartGrab(g TouchGrab) {
	t.grab = g
}

func (t *Touch) EndGrab() {
	t.grab = t.defaultGrab
}

func (t *Touch) BindClient(c *Client, tc TouchClient) {
	t.clients[c] = append(t.clients[c], tc)
	c.Destroyed.Add(func(*Client) {
		delete(t.clients, c)
	})
}

func (t *Touch) FocusClients() []TouchClient {
	if t.Focus == nil || t.Focus.Surface == nil || t.Focus.Surface.Client == nil {
		return nil
	}
	return t.clients[t.Focus.Surface.Client]
}

func (t *Touch) SetFocus(v *View) {
	t.Focus = v
}

type defaultTouchGrab struct{}

func (defaultTouchGrab) Down(t *Touch, time uint32, id int32, sx, sy float64) {
	clients := t.FocusClients()
	if len(clients) == 0 {
		return
	}
	serial := t.Seat.compositor.NextSerial()
	for _, tc := range clients {
		tc.SendDown(serial, time, t.Focus, id, sx, sy)
	}
}

func (defaultTouchGrab) Up(t *Touch, time uint32, id int32) {
	clients := t.FocusClients()
	if len(clients) == 0 {
		return
	}
	serial := t.Seat.compositor.NextSerial()
	for _, tc := range clients {
		tc.SendUp(serial, time, id)
	}
}

func (defaultTouchGrab) Motion(t *Touch, time uint32, id int32, sx, sy float64) {
	for _, tc := range t.FocusClients() {
		tc.SendMotion(time, id, sx, sy)
	}
}

func (defaultTouchGrab) Cancel(*Touch) {}
