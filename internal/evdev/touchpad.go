package evdev

import (
	"math"

	"github.com/bnema/waycomp/internal/compositor"
	evdev "github.com/gvalkov/golang-evdev"
)

const (
	// tapTimeout is the longest touch, in ms, that still counts as a tap.
	tapTimeout = 180

	constantAccelNumerator      = 50
	minAccelFactor              = 0.16
	maxAccelFactor              = 1.0
	hysteresisMarginDenominator = 700
)

// touchpadDispatch turns finger position on a touchpad into relative
// pointer motion. Two fingers scroll, a short touch without motion taps.
type touchpadDispatch struct {
	constantAccel float64
	margin        int32

	// tools is the set of BTN_TOOL_* bits currently down.
	tools    uint32
	touching bool
	changed  bool
	moved    bool

	hwX, hwY         int32
	centerX, centerY int32

	last struct {
		x, y  int32
		time  uint32
		valid bool
	}
	downTime uint32
}

const (
	toolFinger uint32 = 1 << iota
	toolDoubleTap
	toolTripleTap
)

func newTouchpadDispatch(d *Device) *touchpadDispatch {
	width := float64(d.abs.maxX - d.abs.minX)
	height := float64(d.abs.maxY - d.abs.minY)
	diagonal := math.Hypot(width, height)
	if diagonal == 0 {
		diagonal = 1
	}

	return &touchpadDispatch{
		constantAccel: constantAccelNumerator / diagonal,
		margin:        int32(diagonal / hysteresisMarginDenominator),
	}
}

// fingers returns the number of fingers on the pad.
func (t *touchpadDispatch) fingers() int {
	switch {
	case t.tools&toolTripleTap != 0:
		return 3
	case t.tools&toolDoubleTap != 0:
		return 2
	case t.tools&toolFinger != 0:
		return 1
	}
	return 0
}

func hysteresis(in, center, margin int32) int32 {
	diff := in - center
	switch {
	case diff > margin:
		return center + diff - margin
	case diff < -margin:
		return center + diff + margin
	}
	return center
}

func (t *touchpadDispatch) Process(d *Device, ev *evdev.InputEvent, time uint32) {
	switch ev.Type {
	case evdev.EV_ABS:
		// Multi-touch pads also report the single-touch axes.
		switch ev.Code {
		case evdev.ABS_X:
			t.hwX = ev.Value
			t.changed = true
		case evdev.ABS_Y:
			t.hwY = ev.Value
			t.changed = true
		}
	case evdev.EV_KEY:
		t.processKey(d, ev, time)
	case evdev.EV_SYN:
		t.flushMotion(d, time)
	}
}

func (t *touchpadDispatch) processKey(d *Device, ev *evdev.InputEvent, time uint32) {
	if ev.Value == 2 {
		return
	}

	var tool uint32
	switch ev.Code {
	case evdev.BTN_TOUCH:
		if ev.Value != 0 {
			t.touching = true
			t.moved = false
			t.downTime = time
			t.last.valid = false
			t.centerX, t.centerY = t.hwX, t.hwY
			return
		}
		t.touching = false
		if !t.moved && time-t.downTime <= tapTimeout {
			t.tap(d, time)
		}
		return
	case evdev.BTN_TOOL_FINGER:
		tool = toolFinger
	case evdev.BTN_TOOL_DOUBLETAP:
		tool = toolDoubleTap
	case evdev.BTN_TOOL_TRIPLETAP:
		tool = toolTripleTap
	default:
		if isPointerButton(ev.Code) {
			state := compositor.ButtonReleased
			if ev.Value != 0 {
				state = compositor.ButtonPressed
			}
			d.seat.NotifyButton(time, uint32(ev.Code), state)
		}
		return
	}

	if ev.Value != 0 {
		t.tools |= tool
	} else {
		t.tools &^= tool
	}
	// Finger count changes move the reported position; restart tracking.
	t.last.valid = false
}

func (t *touchpadDispatch) tap(d *Device, time uint32) {
	button := uint32(evdev.BTN_LEFT)
	switch t.fingers() {
	case 2:
		button = evdev.BTN_RIGHT
	case 3:
		button = evdev.BTN_MIDDLE
	}
	d.seat.NotifyButton(time, button, compositor.ButtonPressed)
	d.seat.NotifyButton(time, button, compositor.ButtonReleased)
}

func (t *touchpadDispatch) accel(dist float64, dt uint32) float64 {
	if dt == 0 {
		dt = 1
	}
	speed := dist / float64(dt)
	return math.Max(minAccelFactor, math.Min(maxAccelFactor, speed*t.constantAccel*10))
}

func (t *touchpadDispatch) flushMotion(d *Device, time uint32) {
	if !t.touching || !t.changed {
		return
	}
	t.changed = false

	x := hysteresis(t.hwX, t.centerX, t.margin)
	y := hysteresis(t.hwY, t.centerY, t.margin)
	t.centerX, t.centerY = x, y

	if !t.last.valid {
		t.last.x, t.last.y, t.last.time, t.last.valid = x, y, time, true
		return
	}

	rawX := float64(x - t.last.x)
	rawY := float64(y - t.last.y)
	factor := t.accel(math.Hypot(rawX, rawY), time-t.last.time)
	t.last.x, t.last.y, t.last.time = x, y, time

	if rawX == 0 && rawY == 0 {
		return
	}
	t.moved = true

	dx, dy := rawX*factor, rawY*factor
	if t.fingers() >= 2 {
		if dy != 0 {
			d.seat.NotifyAxis(time, compositor.AxisVertical, dy)
		}
		if dx != 0 {
			d.seat.NotifyAxis(time, compositor.AxisHorizontal, dx)
		}
		return
	}
	d.seat.NotifyMotion(time, dx, dy)
}

func (t *touchpadDispatch) Destroy() {}
