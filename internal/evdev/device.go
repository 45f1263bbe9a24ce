// Package evdev turns kernel input events into seat notifications.
//
// Each Device owns a Dispatch chosen when the device is configured. The
// fallback dispatch coalesces axis reports between SYN_REPORT events so a
// batch produces one notification; touchpads get their own dispatch.
package evdev

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/logger"
	evdev "github.com/gvalkov/golang-evdev"
)

var (
	// ErrUnhandledDevice is returned for devices with no pointer, keyboard
	// or touch capability.
	ErrUnhandledDevice = errors.New("unhandled input device")
	// ErrProtocolA is returned for multi-touch devices without slots.
	ErrProtocolA = errors.New("multi-touch device without ABS_MT_SLOT")
)

// maxSlots bounds the multi-touch slot table.
const maxSlots = 16

// Notifier receives normalized input.
type Notifier interface {
	NotifyMotion(time uint32, dx, dy float64)
	NotifyMotionAbsolute(time uint32, x, y float64)
	NotifyButton(time, button uint32, state compositor.ButtonState)
	NotifyAxis(time uint32, axis compositor.Axis, value float64)
	NotifyKey(time, key uint32, state compositor.KeyState)
	NotifyTouch(time uint32, id int32, x, y float64, typ compositor.TouchType)
}

// Seat is what a device attaches to. *compositor.Seat implements it.
type Seat interface {
	Notifier

	InitPointer()
	InitKeyboard()
	InitTouch()
	ReleasePointer()
	ReleaseKeyboard()
	ReleaseTouch()

	KeyboardDeviceCount() int
	NotifyKeyboardFocusIn(keys []uint32)
}

// Capability is the set of seat device classes a device provides.
type Capability uint32

const (
	CapPointer Capability = 1 << iota
	CapKeyboard
	CapTouch
)

func (c Capability) String() string {
	s := ""
	for _, n := range []struct {
		c    Capability
		name string
	}{{CapPointer, "pointer"}, {CapKeyboard, "keyboard"}, {CapTouch, "touch"}} {
		if c&n.c == 0 {
			continue
		}
		if s != "" {
			s += ","
		}
		s += n.name
	}
	if s == "" {
		return "none"
	}
	return s
}

type pendingEvent int

const (
	pendingNone pendingEvent = iota
	pendingRelativeMotion
	pendingAbsoluteMTDown
	pendingAbsoluteMTMotion
	pendingAbsoluteMTUp
	pendingAbsoluteTouchDown
	pendingAbsoluteMotion
	pendingAbsoluteTouchUp
)

// Dispatch processes the event stream of one device.
type Dispatch interface {
	Process(d *Device, ev *evdev.InputEvent, time uint32)
	Destroy()
}

type absState struct {
	minX, maxX int32
	minY, maxY int32
	x, y       int32

	applyCalibration bool
	calibration      [6]float64
}

type mtSlot struct {
	x, y int32
}

// Device is one kernel input device attached to a seat.
type Device struct {
	Path string
	Name string
	Caps Capability

	// Output receives absolute coordinates.
	Output *compositor.Output

	seat     Seat
	dispatch Dispatch
	pending  pendingEvent

	rel struct {
		dx, dy float64
	}
	abs  absState
	isMT bool
	mt   struct {
		slot  int32
		slots [maxSlots]mtSlot
	}

	input *evdev.InputDevice
	// leds receives LED events; nil for devices without a writable node.
	leds io.Writer
	// keyState returns the EVIOCGKEY bitmask of pressed keys.
	keyState func() ([]byte, error)
}

// NewDevice classifies info, attaches the device to seat and picks its
// dispatch. Devices without a usable capability return ErrUnhandledDevice.
func NewDevice(seat Seat, output *compositor.Output, info Info) (*Device, error) {
	d := &Device{
		Path:   info.Path,
		Name:   info.Name,
		Output: output,
		seat:   seat,
	}
	d.mt.slot = -1

	if err := d.configure(info); err != nil {
		d.Destroy()
		return nil, err
	}
	if d.Caps == 0 {
		d.Destroy()
		return nil, ErrUnhandledDevice
	}
	if d.dispatch == nil {
		d.dispatch = fallbackDispatch{}
	}
	return d, nil
}

// Open opens the device node at path and attaches it to seat.
func Open(seat Seat, output *compositor.Output, path string) (*Device, error) {
	input, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := infoFromInput(input)
	if err != nil {
		input.File.Close()
		return nil, err
	}

	d, err := NewDevice(seat, output, info)
	if err != nil {
		input.File.Close()
		return nil, fmt.Errorf("%s (%s): %w", path, info.Name, err)
	}

	d.input = input
	d.keyState = func() ([]byte, error) { return readKeyState(input.File) }
	if d.Caps&CapKeyboard != 0 {
		// The read handle may be read-only; LEDs need a writable one.
		if f, err := os.OpenFile(path, os.O_WRONLY, 0); err == nil {
			d.leds = f
		} else {
			logger.Debugf("no led access on %s: %v", path, err)
		}
	}
	return d, nil
}

func (d *Device) configure(info Info) error {
	var hasAbs, hasRel, hasMT, hasButton, hasKeyboard, hasTouch bool

	if info.HasEvent(evdev.EV_ABS) {
		if a, ok := info.absAxis(evdev.ABS_X); ok {
			d.abs.minX, d.abs.maxX = a.Min, a.Max
			hasAbs = true
		}
		if a, ok := info.absAxis(evdev.ABS_Y); ok {
			d.abs.minY, d.abs.maxY = a.Min, a.Max
			hasAbs = true
		}

		ax, okX := info.absAxis(evdev.ABS_MT_POSITION_X)
		ay, okY := info.absAxis(evdev.ABS_MT_POSITION_Y)
		if okX && okY {
			d.abs.minX, d.abs.maxX = ax.Min, ax.Max
			d.abs.minY, d.abs.maxY = ay.Min, ay.Max
			d.isMT = true
			hasTouch = true
			hasMT = true

			slot, ok := info.absAxis(evdev.ABS_MT_SLOT)
			if !ok {
				return ErrProtocolA
			}
			d.mt.slot = slot.Value
		}
	}

	if info.HasEvent(evdev.EV_REL) {
		if info.Has(evdev.EV_REL, evdev.REL_X) || info.Has(evdev.EV_REL, evdev.REL_Y) {
			hasRel = true
		}
	}

	if info.HasEvent(evdev.EV_KEY) {
		if info.Has(evdev.EV_KEY, evdev.BTN_TOOL_FINGER) &&
			!info.Has(evdev.EV_KEY, evdev.BTN_TOOL_PEN) &&
			(hasAbs || hasMT) {
			d.dispatch = newTouchpadDispatch(d)
			logger.Infof("input device %s, %s is a touchpad", d.Name, d.Path)
		}
		for _, code := range info.Events[evdev.EV_KEY] {
			switch {
			case code >= evdev.KEY_ESC && code < evdev.KEY_MAX &&
				!(code >= evdev.BTN_MISC && code < evdev.KEY_OK):
				hasKeyboard = true
			case code >= evdev.BTN_MISC && code < evdev.BTN_JOYSTICK:
				hasButton = true
			}
			if code == evdev.BTN_TOUCH {
				hasTouch = true
			}
		}
	}

	if info.HasEvent(evdev.EV_LED) {
		hasKeyboard = true
	}

	if (hasAbs || hasRel) && hasButton {
		d.seat.InitPointer()
		d.Caps |= CapPointer
		logger.Infof("input device %s, %s is a pointer caps =%s%s%s", d.Name, d.Path,
			flag(hasAbs, " absolute-motion"), flag(hasRel, " relative-motion"), flag(hasButton, " button"))
	}
	if hasKeyboard {
		d.seat.InitKeyboard()
		d.Caps |= CapKeyboard
		logger.Infof("input device %s, %s is a keyboard", d.Name, d.Path)
	}
	if hasTouch && !hasButton {
		d.seat.InitTouch()
		d.Caps |= CapTouch
		logger.Infof("input device %s, %s is a touch device", d.Name, d.Path)
	}
	return nil
}

func flag(ok bool, s string) string {
	if ok {
		return s
	}
	return ""
}

// SetCalibration installs a 2x3 affine matrix applied to single-touch
// absolute coordinates.
func (d *Device) SetCalibration(m [6]float64) {
	d.abs.calibration = m
	d.abs.applyCalibration = true
}

// IsMultiTouch reports whether the device uses the slotted protocol.
func (d *Device) IsMultiTouch() bool {
	return d.isMT
}

// File returns the open device node, or nil for devices built from an Info.
func (d *Device) File() *os.File {
	if d.input == nil {
		return nil
	}
	return d.input.File
}

// Read blocks for the next batch of events from the node. It returns
// os.ErrClosed once the node is closed.
func (d *Device) Read() ([]evdev.InputEvent, error) {
	input := d.input
	if input == nil {
		return nil, os.ErrClosed
	}
	return input.Read()
}

// ProcessEvents runs a batch read from the device through its dispatch.
func (d *Device) ProcessEvents(events []evdev.InputEvent) {
	for i := range events {
		ev := &events[i]
		d.dispatch.Process(d, ev, eventTime(ev))
	}
}

func eventTime(ev *evdev.InputEvent) uint32 {
	return uint32(int64(ev.Time.Sec)*1000 + int64(ev.Time.Usec)/1000)
}

// Destroy detaches the device from its seat and closes the node.
func (d *Device) Destroy() {
	if d.Caps&CapPointer != 0 {
		d.seat.ReleasePointer()
	}
	if d.Caps&CapKeyboard != 0 {
		d.seat.ReleaseKeyboard()
	}
	if d.Caps&CapTouch != 0 {
		d.seat.ReleaseTouch()
	}
	d.Caps = 0

	if d.dispatch != nil {
		d.dispatch.Destroy()
		d.dispatch = nil
	}
	if d.leds != nil {
		closeLEDs(d.leds)
		d.leds = nil
	}
	if d.input != nil {
		if err := d.input.File.Close(); err != nil {
			logger.Debugf("close %s: %v", d.Path, err)
		}
		d.input = nil
	}
}

func (d *Device) transformAbsolute() (int32, int32) {
	if !d.abs.applyCalibration {
		return d.abs.x, d.abs.y
	}
	c := d.abs.calibration
	x := float64(d.abs.x)*c[0] + float64(d.abs.y)*c[1] + c[2]
	y := float64(d.abs.x)*c[3] + float64(d.abs.y)*c[4] + c[5]
	return int32(x), int32(y)
}

// scaleAxis maps a raw axis value into [0, size) mode pixels.
func scaleAxis(value, min, max, size int32) int32 {
	span := int64(max) - int64(min)
	if span == 0 {
		span = 1
	}
	return int32((int64(value) - int64(min)) * int64(size) / span)
}

func (d *Device) screenSize() (int32, int32, bool) {
	if d.Output == nil {
		return 0, 0, false
	}
	return d.Output.Mode.Width, d.Output.Mode.Height, true
}

func (d *Device) toGlobal(x, y int32) (float64, float64) {
	return d.Output.TransformCoordinate(float64(x), float64(y))
}

// flushPending emits the coalesced event, if any, as a single notification.
func (d *Device) flushPending(time uint32) {
	seat := d.seat
	slot := d.mt.slot

	switch d.pending {
	case pendingNone:
		return
	case pendingRelativeMotion:
		seat.NotifyMotion(time, d.rel.dx, d.rel.dy)
		d.rel.dx, d.rel.dy = 0, 0
	case pendingAbsoluteMTDown, pendingAbsoluteMTMotion:
		typ := compositor.TouchDown
		if d.pending == pendingAbsoluteMTMotion {
			typ = compositor.TouchMotion
		}
		if s, ok := d.slot(); ok && d.Output != nil {
			x, y := d.toGlobal(s.x, s.y)
			seat.NotifyTouch(time, slot, x, y, typ)
		}
	case pendingAbsoluteMTUp:
		seat.NotifyTouch(time, slot, 0, 0, compositor.TouchUp)
	case pendingAbsoluteTouchDown:
		if d.Output != nil {
			x, y := d.toGlobal(d.transformAbsolute())
			seat.NotifyTouch(time, 0, x, y, compositor.TouchDown)
		}
	case pendingAbsoluteMotion:
		if d.Output != nil {
			x, y := d.toGlobal(d.transformAbsolute())
			switch {
			case d.Caps&CapTouch != 0:
				seat.NotifyTouch(time, 0, x, y, compositor.TouchMotion)
			case d.Caps&CapPointer != 0:
				seat.NotifyMotionAbsolute(time, x, y)
			}
		}
	case pendingAbsoluteTouchUp:
		seat.NotifyTouch(time, 0, 0, 0, compositor.TouchUp)
	}

	d.pending = pendingNone
}

func (d *Device) slot() (*mtSlot, bool) {
	if d.mt.slot < 0 || d.mt.slot >= maxSlots {
		return nil, false
	}
	return &d.mt.slots[d.mt.slot], true
}
