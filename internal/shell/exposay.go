package shell

import (
	"math"

	"github.com/bnema/waycomp/internal/animation"
	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/logger"
	evdev "github.com/gvalkov/golang-evdev"
)

var exposayLog = logger.With("exposay")

// ExposayState is where the overview currently is.
type ExposayState int

const (
	ExposayInactive ExposayState = iota
	ExposayAnimateToOverview
	ExposayOverview
	ExposayAnimateToInactive
)

func (s ExposayState) String() string {
	switch s {
	case ExposayAnimateToOverview:
		return "animate-to-overview"
	case ExposayOverview:
		return "overview"
	case ExposayAnimateToInactive:
		return "animate-to-inactive"
	default:
		return "inactive"
	}
}

// ExposayTarget is where the overview has been asked to go.
type ExposayTarget int

const (
	// TargetOverview shows every window.
	TargetOverview ExposayTarget = iota
	// TargetSwitch leaves the overview focusing the highlighted window.
	TargetSwitch
	// TargetCancel leaves the overview restoring the previous focus.
	TargetCancel
)

func (t ExposayTarget) String() string {
	switch t {
	case TargetSwitch:
		return "switch"
	case TargetCancel:
		return "cancel"
	default:
		return "overview"
	}
}

const exposayInnerPadding = 80

// exposayEntry is one window laid out in the overview grid.
type exposayEntry struct {
	view *compositor.View

	row, col      int
	x, y          float64
	width, height float64
	scale         float64

	// transform holds the overview placement once the in animation is over.
	transform *compositor.Transform
	listener  *compositor.Listener[*compositor.View]
	removed   bool
}

func (en *exposayEntry) contains(x, y float64) bool {
	return x >= en.x && x <= en.x+en.width &&
		y >= en.y && y <= en.y+en.height
}

// Exposay lays every managed window out in a grid so one can be picked with
// the pointer or the keyboard.
type Exposay struct {
	shell *Shell

	state  ExposayState
	target ExposayTarget
	seat   *compositor.Seat

	entries  []*exposayEntry
	inFlight int

	focusPrev    *compositor.View
	focusCurrent *compositor.View
	clicked      *compositor.View

	gridSize   int
	numViews   int
	rowCurrent int
	colCurrent int

	modPressed bool
	modInvalid bool

	keyboardGrab exposayKeyboardGrab
	pointerGrab  exposayPointerGrab
}

func newExposay(s *Shell) *Exposay {
	e := &Exposay{shell: s}
	e.keyboardGrab.e = e
	e.pointerGrab.e = e
	return e
}

// State returns the current layout state.
func (e *Exposay) State() ExposayState {
	return e.state
}

// Target returns the last requested target.
func (e *Exposay) Target() ExposayTarget {
	return e.target
}

// Highlighted returns the window that a switch would focus.
func (e *Exposay) Highlighted() *compositor.View {
	return e.focusCurrent
}

// Animating reports whether windows are still moving in or out. Settled
// states never count as animating.
func (e *Exposay) Animating() bool {
	if e.state == ExposayInactive || e.state == ExposayOverview {
		return false
	}
	return e.inFlight > 0
}

// SetState records a new target for seat and moves toward it as far as
// running animations allow.
func (e *Exposay) SetState(target ExposayTarget, seat *compositor.Seat) {
	if seat == nil {
		seats := e.shell.compositor.Seats()
		if len(seats) == 0 {
			return
		}
		seat = seats[0]
	}
	e.target = target
	e.seat = seat
	exposayLog.Debug("target changed", "target", target, "state", e.state)
	e.checkState()
}

// Toggle enters the overview, or cancels it when it is already showing.
func (e *Exposay) Toggle(seat *compositor.Seat) {
	if e.target == TargetOverview && e.state != ExposayInactive {
		e.SetState(TargetCancel, seat)
		return
	}
	e.SetState(TargetOverview, seat)
}

// checkState runs transitions until the state is stable or waiting on
// animations.
func (e *Exposay) checkState() {
	for !e.Animating() {
		next := e.nextState()
		if next == e.state {
			return
		}
		exposayLog.Debug("state changed", "from", e.state, "to", next)
		e.state = next
	}
}

func (e *Exposay) nextState() ExposayState {
	switch e.target {
	case TargetOverview:
		switch e.state {
		case ExposayOverview:
			return e.state
		case ExposayAnimateToOverview:
			return ExposayOverview
		default:
			return e.transitionActive()
		}
	default:
		switch e.state {
		case ExposayInactive:
			return e.state
		case ExposayAnimateToInactive:
			return e.setInactive()
		default:
			return e.transitionInactive(e.target == TargetSwitch)
		}
	}
}

func (e *Exposay) transitionActive() ExposayState {
	seat := e.seat
	var focus *compositor.View
	if kb := seat.Keyboard; kb != nil && kb.Focus != nil {
		focus = kb.Focus.DefaultView()
	}
	e.focusPrev = focus
	e.focusCurrent = focus
	e.clicked = nil
	e.modPressed = false
	e.modInvalid = false

	if kb := seat.Keyboard; kb != nil {
		kb.StartGrab(&e.keyboardGrab)
		kb.SetFocus(nil)
	}
	if p := seat.Pointer; p != nil {
		p.StartGrab(&e.pointerGrab)
		p.SetFocus(nil, p.X, p.Y)
	}

	return e.layout()
}

func (e *Exposay) transitionInactive(switchFocus bool) ExposayState {
	if switchFocus && e.focusCurrent != nil {
		e.shell.Activate(e.focusCurrent, e.seat)
	} else if e.focusPrev != nil {
		e.shell.Activate(e.focusPrev, e.seat)
	}

	for _, en := range append([]*exposayEntry(nil), e.entries...) {
		e.animateOut(en)
	}
	e.shell.compositor.ScheduleRepaint()
	return ExposayAnimateToInactive
}

func (e *Exposay) setInactive() ExposayState {
	seat := e.seat
	if kb := seat.Keyboard; kb != nil {
		kb.EndGrab()
		kb.RestoreInputMethodGrab()
	}
	if p := seat.Pointer; p != nil {
		p.EndGrab()
	}
	e.focusPrev = nil
	e.focusCurrent = nil
	e.clicked = nil
	return ExposayInactive
}

// layout computes the grid and starts moving every window into its cell.
func (e *Exposay) layout() ExposayState {
	c := e.shell.compositor
	o := c.DefaultOutput()

	var views []*compositor.View
	for _, v := range c.Views() {
		if v.Managed && v.Surface != nil {
			views = append(views, v)
		}
	}

	n := len(views)
	e.numViews = n
	if n == 0 || o == nil {
		e.gridSize = 0
		return ExposayOverview
	}

	grid := int(math.Floor(math.Sqrt(float64(n))))
	if grid*grid != n {
		grid++
	}
	e.gridSize = grid

	width, height := int(o.Width), int(o.Height)
	hpad := width / 10
	vpad := height / 10

	cellW := (width - 2*hpad - exposayInnerPadding*(grid-1)) / grid
	cellH := (height - 2*vpad - exposayInnerPadding*(grid-1)) / grid
	size := min(cellW, cellH)
	size = min(size, width/2)
	size = min(size, height/2)
	pad := size + exposayInnerPadding

	lastRow := (n - 1) / grid
	missing := grid*(lastRow+1) - n

	e.entries = e.entries[:0]
	for i, v := range views {
		if v.Output == nil {
			v.Output = o
		}
		en := &exposayEntry{
			view:      v,
			row:       i / grid,
			col:       i % grid,
			transform: compositor.NewTransform(),
		}

		x := hpad + pad*en.col
		y := vpad + pad*en.row
		// Center the last row when it is not full.
		if en.row == lastRow {
			x += pad * missing / 2
		}
		en.x = float64(int(o.X) + x)
		en.y = float64(int(o.Y) + y)

		longest := math.Max(float64(v.Surface.Width), float64(v.Surface.Height))
		if longest > 0 {
			en.scale = float64(size) / longest
		} else {
			en.scale = 1
		}
		en.width = float64(v.Surface.Width) * en.scale
		en.height = float64(v.Surface.Height) * en.scale

		en.listener = v.Destroyed.Add(func(*compositor.View) { e.entryViewDestroyed(en) })
		e.entries = append(e.entries, en)

		if v == e.focusCurrent {
			e.highlight(en)
		}
		e.animateIn(en)
	}

	exposayLog.Debug("layout", "views", n, "grid", grid, "size", size)
	c.ScheduleRepaint()
	return ExposayAnimateToOverview
}

func (e *Exposay) animateIn(en *exposayEntry) {
	e.inFlight++
	v := en.view
	animation.MoveScale(v, en.x-v.X, en.y-v.Y, 1.0, en.scale, false, e.animateInDone, en)
}

func (e *Exposay) animateInDone(_ *animation.Animation, data interface{}) {
	en := data.(*exposayEntry)
	if !en.removed && !en.view.IsDestroyed() {
		v := en.view
		m := &en.transform.Matrix
		m.Reset()
		m.Scale(en.scale, en.scale)
		m.Translate(en.x-v.X, en.y-v.Y)
		v.AddTransform(en.transform)
		v.GeometryDirty()
		e.shell.compositor.ScheduleRepaint()
	}
	e.inFlightDec()
}

func (e *Exposay) animateOut(en *exposayEntry) {
	e.inFlight++
	v := en.view
	en.transform.Remove()
	v.GeometryDirty()
	animation.MoveScale(v, en.x-v.X, en.y-v.Y, 1.0, en.scale, true, e.animateOutDone, en)
}

func (e *Exposay) animateOutDone(_ *animation.Animation, data interface{}) {
	e.removeEntry(data.(*exposayEntry))
	e.inFlightDec()
}

func (e *Exposay) inFlightDec() {
	e.inFlight--
	if e.inFlight > 0 {
		return
	}
	e.checkState()
}

func (e *Exposay) removeEntry(en *exposayEntry) {
	if en.removed {
		return
	}
	en.removed = true
	en.listener.Remove()
	en.transform.Remove()
	for i, other := range e.entries {
		if other == en {
			e.entries = append(e.entries[:i], e.entries[i+1:]...)
			break
		}
	}
}

// entryViewDestroyed drops a window that went away while shown.
func (e *Exposay) entryViewDestroyed(en *exposayEntry) {
	e.removeEntry(en)
	v := en.view
	if e.focusCurrent == v {
		e.focusCurrent = nil
	}
	if e.focusPrev == v {
		e.focusPrev = nil
	}
	if e.clicked == v {
		e.clicked = nil
	}
}

func (e *Exposay) highlight(en *exposayEntry) {
	e.rowCurrent = en.row
	e.colCurrent = en.col
	e.shell.Activate(en.view, e.seat)
	e.focusCurrent = en.view
}

// pick highlights the window under a global point.
func (e *Exposay) pick(x, y float64) {
	if e.Animating() {
		return
	}
	for _, en := range e.entries {
		if en.contains(x, y) {
			e.highlight(en)
			return
		}
	}
}

// maybeMove highlights the window at (row, col) and reports whether one
// was there.
func (e *Exposay) maybeMove(row, col int) bool {
	for _, en := range e.entries {
		if en.row == row && en.col == col {
			e.highlight(en)
			return true
		}
	}
	return false
}

func (e *Exposay) handleKey(key uint32) {
	row, col := e.rowCurrent, e.colCurrent

	switch key {
	case evdev.KEY_ESC:
		e.SetState(TargetCancel, e.seat)
	case evdev.KEY_ENTER:
		e.SetState(TargetSwitch, e.seat)
	case evdev.KEY_UP:
		e.maybeMove(row-1, col)
	case evdev.KEY_DOWN:
		// A short last row may not reach the current column.
		if !e.maybeMove(row+1, col) && row < e.gridSize-1 {
			e.maybeMove(row+1, e.numViews%e.gridSize-1)
		}
	case evdev.KEY_LEFT:
		e.maybeMove(row, col-1)
	case evdev.KEY_RIGHT:
		e.maybeMove(row, col+1)
	case evdev.KEY_TAB:
		if !e.maybeMove(row, col+1) && !e.maybeMove(row+1, 0) {
			e.maybeMove(0, 0)
		}
	}
}

// handleModifiers cancels the overview when the binding modifier is pressed
// and released on its own.
func (e *Exposay) handleModifiers(seat *compositor.Seat) {
	if seat.ModifierState != 0 {
		if seat.ModifierState == e.shell.bindingModifier {
			e.modPressed = true
		} else {
			e.modInvalid = true
		}
		return
	}

	if e.modPressed && !e.modInvalid {
		e.SetState(TargetCancel, seat)
	}
	e.modPressed = false
	e.modInvalid = false
}

type exposayKeyboardGrab struct {
	e *Exposay
}

func (g *exposayKeyboardGrab) Key(k *compositor.Keyboard, time, key uint32, state compositor.KeyState) {
	if state != compositor.KeyReleased {
		return
	}
	g.e.handleKey(key)
}

func (g *exposayKeyboardGrab) Modifiers(k *compositor.Keyboard, serial uint32, mods compositor.ModifierMasks) {
	g.e.handleModifiers(k.Seat)
}

func (g *exposayKeyboardGrab) Cancel(k *compositor.Keyboard) {
	g.e.SetState(TargetCancel, k.Seat)
}

type exposayPointerGrab struct {
	e *Exposay
}

func (g *exposayPointerGrab) Focus(*compositor.Pointer) {}

func (g *exposayPointerGrab) Motion(p *compositor.Pointer, time uint32, x, y float64) {
	p.Move(x, y)
	g.e.pick(p.X, p.Y)
}

func (g *exposayPointerGrab) Button(p *compositor.Pointer, time, button uint32, state compositor.ButtonState) {
	if button != evdev.BTN_LEFT {
		return
	}
	e := g.e
	if state == compositor.ButtonPressed {
		e.clicked = e.focusCurrent
		return
	}
	if e.focusCurrent == e.clicked {
		e.SetState(TargetSwitch, p.Seat)
		return
	}
	e.clicked = nil
}

func (g *exposayPointerGrab) Cancel(p *compositor.Pointer) {
	g.e.SetState(TargetCancel, p.Seat)
}
