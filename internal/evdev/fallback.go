package evdev

import (
	"github.com/bnema/waycomp/internal/compositor"
	evdev "github.com/gvalkov/golang-evdev"
)

// axisStep is the scroll distance of one wheel click.
const axisStep = 10

// fallbackDispatch handles mice, keyboards, touchscreens and tablets.
type fallbackDispatch struct{}

func (fallbackDispatch) Process(d *Device, ev *evdev.InputEvent, time uint32) {
	switch ev.Type {
	case evdev.EV_REL:
		d.processRelative(ev, time)
	case evdev.EV_ABS:
		if d.isMT {
			d.processTouch(ev, time)
		} else {
			d.processAbsoluteMotion(ev)
		}
	case evdev.EV_KEY:
		d.processKey(ev, time)
	case evdev.EV_SYN:
		d.flushPending(time)
	}
}

func (fallbackDispatch) Destroy() {}

func (d *Device) processTouchButton(time uint32, value int32) {
	if d.pending != pendingNone && d.pending != pendingAbsoluteMotion {
		d.flushPending(time)
	}
	if value != 0 {
		d.pending = pendingAbsoluteTouchDown
	} else {
		d.pending = pendingAbsoluteTouchUp
	}
}

func isPointerButton(code uint16) bool {
	switch code {
	case evdev.BTN_LEFT, evdev.BTN_RIGHT, evdev.BTN_MIDDLE, evdev.BTN_SIDE,
		evdev.BTN_EXTRA, evdev.BTN_FORWARD, evdev.BTN_BACK, evdev.BTN_TASK:
		return true
	}
	return false
}

func (d *Device) processKey(ev *evdev.InputEvent, time uint32) {
	// kernel autorepeat
	if ev.Value == 2 {
		return
	}

	if ev.Code == evdev.BTN_TOUCH {
		if !d.isMT {
			d.processTouchButton(time, ev.Value)
		}
		return
	}

	d.flushPending(time)

	if isPointerButton(ev.Code) {
		state := compositor.ButtonReleased
		if ev.Value != 0 {
			state = compositor.ButtonPressed
		}
		d.seat.NotifyButton(time, uint32(ev.Code), state)
		return
	}

	state := compositor.KeyReleased
	if ev.Value != 0 {
		state = compositor.KeyPressed
	}
	d.seat.NotifyKey(time, uint32(ev.Code), state)
}

func (d *Device) processTouch(ev *evdev.InputEvent, time uint32) {
	width, height, ok := d.screenSize()

	switch ev.Code {
	case evdev.ABS_MT_SLOT:
		d.flushPending(time)
		d.mt.slot = ev.Value
	case evdev.ABS_MT_TRACKING_ID:
		if d.pending != pendingNone && d.pending != pendingAbsoluteMTMotion {
			d.flushPending(time)
		}
		if ev.Value >= 0 {
			d.pending = pendingAbsoluteMTDown
		} else {
			d.pending = pendingAbsoluteMTUp
		}
	case evdev.ABS_MT_POSITION_X:
		if s, inRange := d.slot(); inRange && ok {
			s.x = scaleAxis(ev.Value, d.abs.minX, d.abs.maxX, width)
		}
		if d.pending == pendingNone {
			d.pending = pendingAbsoluteMTMotion
		}
	case evdev.ABS_MT_POSITION_Y:
		if s, inRange := d.slot(); inRange && ok {
			s.y = scaleAxis(ev.Value, d.abs.minY, d.abs.maxY, height)
		}
		if d.pending == pendingNone {
			d.pending = pendingAbsoluteMTMotion
		}
	}
}

func (d *Device) processAbsoluteMotion(ev *evdev.InputEvent) {
	width, height, ok := d.screenSize()
	if !ok {
		return
	}

	switch ev.Code {
	case evdev.ABS_X:
		d.abs.x = scaleAxis(ev.Value, d.abs.minX, d.abs.maxX, width)
		if d.pending == pendingNone {
			d.pending = pendingAbsoluteMotion
		}
	case evdev.ABS_Y:
		d.abs.y = scaleAxis(ev.Value, d.abs.minY, d.abs.maxY, height)
		if d.pending == pendingNone {
			d.pending = pendingAbsoluteMotion
		}
	}
}

func (d *Device) processRelative(ev *evdev.InputEvent, time uint32) {
	switch ev.Code {
	case evdev.REL_X:
		if d.pending != pendingRelativeMotion {
			d.flushPending(time)
		}
		d.rel.dx += float64(ev.Value)
		d.pending = pendingRelativeMotion
	case evdev.REL_Y:
		if d.pending != pendingRelativeMotion {
			d.flushPending(time)
		}
		d.rel.dy += float64(ev.Value)
		d.pending = pendingRelativeMotion
	case evdev.REL_WHEEL:
		d.flushPending(time)
		// Only single clicks are forwarded.
		if ev.Value == 1 || ev.Value == -1 {
			d.seat.NotifyAxis(time, compositor.AxisVertical, float64(-ev.Value*axisStep))
		}
	case evdev.REL_HWHEEL:
		d.flushPending(time)
		if ev.Value == 1 || ev.Value == -1 {
			d.seat.NotifyAxis(time, compositor.AxisHorizontal, float64(ev.Value*axisStep))
		}
	}
}
