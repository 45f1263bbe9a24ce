package evdev

import (
	"bytes"
	"encoding/binary"
	"errors"
	"syscall"
	"testing"

	"github.com/bnema/waycomp/internal/compositor"
	evdev "github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notification struct {
	Kind  string
	Time  uint32
	X, Y  float64
	Code  uint32
	ID    int32
	State uint32
}

type fakeSeat struct {
	got []notification

	pointers, keyboards, touches int
	focusKeys                    []uint32
	focusCalls                   int
}

func (s *fakeSeat) NotifyMotion(time uint32, dx, dy float64) {
	s.got = append(s.got, notification{Kind: "motion", Time: time, X: dx, Y: dy})
}

func (s *fakeSeat) NotifyMotionAbsolute(time uint32, x, y float64) {
	s.got = append(s.got, notification{Kind: "motion_absolute", Time: time, X: x, Y: y})
}

func (s *fakeSeat) NotifyButton(time, button uint32, state compositor.ButtonState) {
	s.got = append(s.got, notification{Kind: "button", Time: time, Code: button, State: uint32(state)})
}

func (s *fakeSeat) NotifyAxis(time uint32, axis compositor.Axis, value float64) {
	s.got = append(s.got, notification{Kind: "axis", Time: time, Code: uint32(axis), X: value})
}

func (s *fakeSeat) NotifyKey(time, key uint32, state compositor.KeyState) {
	s.got = append(s.got, notification{Kind: "key", Time: time, Code: key, State: uint32(state)})
}

func (s *fakeSeat) NotifyTouch(time uint32, id int32, x, y float64, typ compositor.TouchType) {
	s.got = append(s.got, notification{Kind: "touch", Time: time, ID: id, X: x, Y: y, State: uint32(typ)})
}

func (s *fakeSeat) InitPointer()     { s.pointers++ }
func (s *fakeSeat) InitKeyboard()    { s.keyboards++ }
func (s *fakeSeat) InitTouch()       { s.touches++ }
func (s *fakeSeat) ReleasePointer()  { s.pointers-- }
func (s *fakeSeat) ReleaseKeyboard() { s.keyboards-- }
func (s *fakeSeat) ReleaseTouch()    { s.touches-- }

func (s *fakeSeat) KeyboardDeviceCount() int { return s.keyboards }

func (s *fakeSeat) NotifyKeyboardFocusIn(keys []uint32) {
	s.focusCalls++
	s.focusKeys = keys
}

func ev(ms int64, typ, code int, value int32) evdev.InputEvent {
	return evdev.InputEvent{
		Time:  syscall.NsecToTimeval(ms * 1e6),
		Type:  uint16(typ),
		Code:  uint16(code),
		Value: value,
	}
}

func syn(ms int64) evdev.InputEvent {
	return ev(ms, evdev.EV_SYN, evdev.SYN_REPORT, 0)
}

var (
	mouseInfo = Info{
		Name: "mouse",
		Events: map[int][]int{
			evdev.EV_REL: {evdev.REL_X, evdev.REL_Y, evdev.REL_WHEEL, evdev.REL_HWHEEL},
			evdev.EV_KEY: {evdev.BTN_LEFT, evdev.BTN_RIGHT, evdev.BTN_MIDDLE},
		},
	}
	keyboardInfo = Info{
		Name: "keyboard",
		Events: map[int][]int{
			evdev.EV_KEY: {evdev.KEY_ESC, evdev.KEY_A, evdev.KEY_B, evdev.KEY_LEFTSHIFT},
			evdev.EV_LED: {evdev.LED_NUML, evdev.LED_CAPSL},
		},
	}
	touchscreenInfo = Info{
		Name: "touchscreen",
		Events: map[int][]int{
			evdev.EV_ABS: {evdev.ABS_X, evdev.ABS_Y, evdev.ABS_MT_SLOT, evdev.ABS_MT_POSITION_X,
				evdev.ABS_MT_POSITION_Y, evdev.ABS_MT_TRACKING_ID},
			evdev.EV_KEY: {evdev.BTN_TOUCH},
		},
		Abs: map[int]AbsInfo{
			evdev.ABS_X:             {Max: 4095},
			evdev.ABS_Y:             {Max: 4095},
			evdev.ABS_MT_SLOT:       {Max: 9},
			evdev.ABS_MT_POSITION_X: {Max: 4095},
			evdev.ABS_MT_POSITION_Y: {Max: 4095},
		},
	}
	singleTouchInfo = Info{
		Name: "single touch",
		Events: map[int][]int{
			evdev.EV_ABS: {evdev.ABS_X, evdev.ABS_Y},
			evdev.EV_KEY: {evdev.BTN_TOUCH},
		},
		Abs: map[int]AbsInfo{
			evdev.ABS_X: {Min: 0, Max: 1000},
			evdev.ABS_Y: {Min: 0, Max: 1000},
		},
	}
	tabletInfo = Info{
		Name: "tablet",
		Events: map[int][]int{
			evdev.EV_ABS: {evdev.ABS_X, evdev.ABS_Y},
			evdev.EV_KEY: {evdev.BTN_LEFT, evdev.BTN_TOOL_PEN},
		},
		Abs: map[int]AbsInfo{
			evdev.ABS_X: {Min: 100, Max: 1100},
			evdev.ABS_Y: {Min: 0, Max: 500},
		},
	}
	touchpadInfo = Info{
		Name: "touchpad",
		Events: map[int][]int{
			evdev.EV_ABS: {evdev.ABS_X, evdev.ABS_Y},
			evdev.EV_KEY: {evdev.BTN_LEFT, evdev.BTN_TOUCH, evdev.BTN_TOOL_FINGER, evdev.BTN_TOOL_DOUBLETAP},
		},
		Abs: map[int]AbsInfo{
			evdev.ABS_X: {Max: 1000},
			evdev.ABS_Y: {Max: 1000},
		},
	}
)

func testOutput() *compositor.Output {
	return compositor.NewOutput("test", compositor.Mode{Width: 1024, Height: 768}, 1, compositor.TransformNormal)
}

func newTestDevice(t *testing.T, info Info) (*Device, *fakeSeat) {
	t.Helper()
	seat := &fakeSeat{}
	d, err := NewDevice(seat, testOutput(), info)
	require.NoError(t, err)
	return d, seat
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want Capability
		err  error
	}{
		{"mouse", mouseInfo, CapPointer, nil},
		{"keyboard", keyboardInfo, CapKeyboard, nil},
		{"multi-touch screen", touchscreenInfo, CapTouch, nil},
		{"single touch screen", singleTouchInfo, CapTouch, nil},
		{"tablet", tabletInfo, CapPointer, nil},
		{"touchpad", touchpadInfo, CapPointer, nil},
		{
			name: "power button",
			info: Info{Events: map[int][]int{evdev.EV_KEY: {evdev.KEY_POWER}}},
			want: CapKeyboard,
		},
		{
			name: "led only",
			info: Info{Events: map[int][]int{evdev.EV_LED: {evdev.LED_NUML}}},
			want: CapKeyboard,
		},
		{
			name: "accelerometer",
			info: Info{
				Events: map[int][]int{evdev.EV_ABS: {evdev.ABS_X, evdev.ABS_Y, evdev.ABS_Z}},
				Abs:    map[int]AbsInfo{evdev.ABS_X: {Max: 10}, evdev.ABS_Y: {Max: 10}},
			},
			err: ErrUnhandledDevice,
		},
		{
			name: "multi-touch without slots",
			info: Info{
				Events: map[int][]int{evdev.EV_ABS: {evdev.ABS_MT_POSITION_X, evdev.ABS_MT_POSITION_Y}},
			},
			err: ErrProtocolA,
		},
		{
			name: "joystick buttons only",
			info: Info{Events: map[int][]int{evdev.EV_KEY: {evdev.BTN_TRIGGER, evdev.BTN_THUMB}}},
			err:  ErrUnhandledDevice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, err := Classify(tt.info)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, caps)
		})
	}
}

func TestUnhandledDeviceReleasesSeat(t *testing.T) {
	seat := &fakeSeat{}
	_, err := NewDevice(seat, testOutput(), Info{Events: map[int][]int{evdev.EV_MSC: {0}}})
	assert.ErrorIs(t, err, ErrUnhandledDevice)
	assert.Zero(t, seat.pointers+seat.keyboards+seat.touches)
}

func TestDestroyReleasesSeatDevices(t *testing.T) {
	d, seat := newTestDevice(t, Info{
		Events: map[int][]int{
			evdev.EV_REL: {evdev.REL_X, evdev.REL_Y},
			evdev.EV_KEY: {evdev.BTN_LEFT, evdev.KEY_A},
		},
	})
	assert.Equal(t, 1, seat.pointers)
	assert.Equal(t, 1, seat.keyboards)

	d.Destroy()
	assert.Zero(t, seat.pointers)
	assert.Zero(t, seat.keyboards)

	d.Destroy()
	assert.Zero(t, seat.pointers)
}

func TestRelativeMotionCoalesces(t *testing.T) {
	d, seat := newTestDevice(t, mouseInfo)

	d.ProcessEvents([]evdev.InputEvent{
		ev(10, evdev.EV_REL, evdev.REL_X, 3),
		ev(10, evdev.EV_REL, evdev.REL_Y, 4),
		ev(10, evdev.EV_REL, evdev.REL_X, 2),
		syn(10),
	})

	require.Len(t, seat.got, 1)
	assert.Equal(t, notification{Kind: "motion", Time: 10, X: 5, Y: 4}, seat.got[0])

	// Nothing pending, a second sync emits nothing.
	d.ProcessEvents([]evdev.InputEvent{syn(11)})
	assert.Len(t, seat.got, 1)
}

func TestButtonFlushesPendingMotion(t *testing.T) {
	d, seat := newTestDevice(t, mouseInfo)

	d.ProcessEvents([]evdev.InputEvent{
		ev(20, evdev.EV_REL, evdev.REL_X, 1),
		ev(20, evdev.EV_KEY, evdev.BTN_LEFT, 1),
		syn(20),
		ev(30, evdev.EV_KEY, evdev.BTN_LEFT, 0),
		syn(30),
	})

	require.Len(t, seat.got, 3)
	assert.Equal(t, "motion", seat.got[0].Kind)
	assert.Equal(t, notification{Kind: "button", Time: 20, Code: evdev.BTN_LEFT, State: uint32(compositor.ButtonPressed)}, seat.got[1])
	assert.Equal(t, uint32(compositor.ButtonReleased), seat.got[2].State)
}

func TestKeyRepeatIgnored(t *testing.T) {
	d, seat := newTestDevice(t, keyboardInfo)

	d.ProcessEvents([]evdev.InputEvent{
		ev(1, evdev.EV_KEY, evdev.KEY_A, 1),
		syn(1),
		ev(500, evdev.EV_KEY, evdev.KEY_A, 2),
		syn(500),
		ev(530, evdev.EV_KEY, evdev.KEY_A, 2),
		syn(530),
		ev(600, evdev.EV_KEY, evdev.KEY_A, 0),
		syn(600),
	})

	require.Len(t, seat.got, 2)
	assert.Equal(t, notification{Kind: "key", Time: 1, Code: evdev.KEY_A, State: uint32(compositor.KeyPressed)}, seat.got[0])
	assert.Equal(t, notification{Kind: "key", Time: 600, Code: evdev.KEY_A, State: uint32(compositor.KeyReleased)}, seat.got[1])
}

func TestWheel(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		value int32
		want  []notification
	}{
		{"scroll up", evdev.REL_WHEEL, 1, []notification{{Kind: "axis", Code: uint32(compositor.AxisVertical), X: -10}}},
		{"scroll down", evdev.REL_WHEEL, -1, []notification{{Kind: "axis", Code: uint32(compositor.AxisVertical), X: 10}}},
		{"scroll right", evdev.REL_HWHEEL, 1, []notification{{Kind: "axis", Code: uint32(compositor.AxisHorizontal), X: 10}}},
		{"scroll left", evdev.REL_HWHEEL, -1, []notification{{Kind: "axis", Code: uint32(compositor.AxisHorizontal), X: -10}}},
		{"multi click ignored", evdev.REL_WHEEL, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, seat := newTestDevice(t, mouseInfo)
			d.ProcessEvents([]evdev.InputEvent{ev(0, evdev.EV_REL, tt.code, tt.value), syn(0)})
			assert.Equal(t, tt.want, seat.got)
		})
	}
}

func TestWheelFlushesMotion(t *testing.T) {
	d, seat := newTestDevice(t, mouseInfo)

	d.ProcessEvents([]evdev.InputEvent{
		ev(5, evdev.EV_REL, evdev.REL_Y, -2),
		ev(5, evdev.EV_REL, evdev.REL_WHEEL, -1),
		syn(5),
	})

	require.Len(t, seat.got, 2)
	assert.Equal(t, "motion", seat.got[0].Kind)
	assert.Equal(t, "axis", seat.got[1].Kind)
}

func TestEventTime(t *testing.T) {
	e := evdev.InputEvent{Time: syscall.Timeval{Sec: 2, Usec: 345678}}
	assert.Equal(t, uint32(2345), eventTime(&e))
}

func TestMultiTouchSlots(t *testing.T) {
	d, seat := newTestDevice(t, touchscreenInfo)
	require.True(t, d.IsMultiTouch())

	d.ProcessEvents([]evdev.InputEvent{
		ev(1, evdev.EV_ABS, evdev.ABS_MT_SLOT, 0),
		ev(1, evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, 5),
		ev(1, evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 2048),
		ev(1, evdev.EV_ABS, evdev.ABS_MT_POSITION_Y, 1024),
		ev(1, evdev.EV_ABS, evdev.ABS_MT_SLOT, 1),
		ev(1, evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, 6),
		ev(1, evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 0),
		ev(1, evdev.EV_ABS, evdev.ABS_MT_POSITION_Y, 4095),
		ev(1, evdev.EV_KEY, evdev.BTN_TOUCH, 1),
		syn(1),
	})

	require.Len(t, seat.got, 2)
	assert.Equal(t, notification{Kind: "touch", Time: 1, ID: 0, X: 512, Y: 192, State: uint32(compositor.TouchDown)}, seat.got[0])
	assert.Equal(t, notification{Kind: "touch", Time: 1, ID: 1, X: 0, Y: 768, State: uint32(compositor.TouchDown)}, seat.got[1])

	seat.got = nil
	d.ProcessEvents([]evdev.InputEvent{
		ev(2, evdev.EV_ABS, evdev.ABS_MT_SLOT, 0),
		ev(2, evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 4095),
		syn(2),
		ev(3, evdev.EV_ABS, evdev.ABS_MT_SLOT, 1),
		ev(3, evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, -1),
		syn(3),
	})

	require.Len(t, seat.got, 2)
	assert.Equal(t, notification{Kind: "touch", Time: 2, ID: 0, X: 1024, Y: 192, State: uint32(compositor.TouchMotion)}, seat.got[0])
	assert.Equal(t, notification{Kind: "touch", Time: 3, ID: 1, State: uint32(compositor.TouchUp)}, seat.got[1])
}

func TestMultiTouchSlotOutOfRange(t *testing.T) {
	d, seat := newTestDevice(t, touchscreenInfo)

	assert.NotPanics(t, func() {
		d.ProcessEvents([]evdev.InputEvent{
			ev(1, evdev.EV_ABS, evdev.ABS_MT_SLOT, 99),
			ev(1, evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, 1),
			ev(1, evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 10),
			syn(1),
		})
	})
	assert.Empty(t, seat.got)
}

func TestSingleTouch(t *testing.T) {
	d, seat := newTestDevice(t, singleTouchInfo)

	d.ProcessEvents([]evdev.InputEvent{
		ev(1, evdev.EV_ABS, evdev.ABS_X, 500),
		ev(1, evdev.EV_ABS, evdev.ABS_Y, 250),
		ev(1, evdev.EV_KEY, evdev.BTN_TOUCH, 1),
		syn(1),
		ev(2, evdev.EV_ABS, evdev.ABS_X, 1000),
		syn(2),
		ev(3, evdev.EV_KEY, evdev.BTN_TOUCH, 0),
		syn(3),
	})

	require.Len(t, seat.got, 3)
	assert.Equal(t, notification{Kind: "touch", Time: 1, X: 512, Y: 192, State: uint32(compositor.TouchDown)}, seat.got[0])
	assert.Equal(t, notification{Kind: "touch", Time: 2, X: 1024, Y: 192, State: uint32(compositor.TouchMotion)}, seat.got[1])
	assert.Equal(t, notification{Kind: "touch", Time: 3, State: uint32(compositor.TouchUp)}, seat.got[2])
}

func TestTouchButtonFlushesOtherPending(t *testing.T) {
	d, seat := newTestDevice(t, singleTouchInfo)

	d.ProcessEvents([]evdev.InputEvent{
		ev(1, evdev.EV_KEY, evdev.BTN_TOUCH, 1),
		ev(1, evdev.EV_KEY, evdev.BTN_TOUCH, 0),
		syn(1),
	})

	require.Len(t, seat.got, 2)
	assert.Equal(t, uint32(compositor.TouchDown), seat.got[0].State)
	assert.Equal(t, uint32(compositor.TouchUp), seat.got[1].State)
}

func TestCalibration(t *testing.T) {
	d, seat := newTestDevice(t, singleTouchInfo)
	d.SetCalibration([6]float64{0.5, 0, 10, 0, 0.5, 20})

	d.ProcessEvents([]evdev.InputEvent{
		ev(1, evdev.EV_ABS, evdev.ABS_X, 1000),
		ev(1, evdev.EV_ABS, evdev.ABS_Y, 1000),
		ev(1, evdev.EV_KEY, evdev.BTN_TOUCH, 1),
		syn(1),
	})

	require.Len(t, seat.got, 1)
	assert.Equal(t, 1024*0.5+10, seat.got[0].X)
	assert.Equal(t, 768*0.5+20, seat.got[0].Y)
}

func TestAbsolutePointer(t *testing.T) {
	d, seat := newTestDevice(t, tabletInfo)

	d.ProcessEvents([]evdev.InputEvent{
		ev(1, evdev.EV_ABS, evdev.ABS_X, 600),
		ev(1, evdev.EV_ABS, evdev.ABS_Y, 500),
		syn(1),
	})

	require.Len(t, seat.got, 1)
	assert.Equal(t, notification{Kind: "motion_absolute", Time: 1, X: 512, Y: 768}, seat.got[0])
}

func TestAbsoluteTransformedOutput(t *testing.T) {
	seat := &fakeSeat{}
	o := compositor.NewOutput("rotated", compositor.Mode{Width: 1024, Height: 768}, 1, compositor.Transform90)
	d, err := NewDevice(seat, o, singleTouchInfo)
	require.NoError(t, err)

	d.ProcessEvents([]evdev.InputEvent{
		ev(1, evdev.EV_ABS, evdev.ABS_X, 0),
		ev(1, evdev.EV_ABS, evdev.ABS_Y, 0),
		ev(1, evdev.EV_KEY, evdev.BTN_TOUCH, 1),
		syn(1),
	})

	require.Len(t, seat.got, 1)
	x, y := o.TransformCoordinate(0, 0)
	assert.Equal(t, x, seat.got[0].X)
	assert.Equal(t, y, seat.got[0].Y)
}

func TestNoOutputDropsAbsolute(t *testing.T) {
	seat := &fakeSeat{}
	d, err := NewDevice(seat, nil, singleTouchInfo)
	require.NoError(t, err)

	d.ProcessEvents([]evdev.InputEvent{
		ev(1, evdev.EV_ABS, evdev.ABS_X, 10),
		ev(1, evdev.EV_KEY, evdev.BTN_TOUCH, 1),
		syn(1),
	})
	assert.Empty(t, seat.got)
}

func TestScaleAxis(t *testing.T) {
	assert.Equal(t, int32(0), scaleAxis(0, 0, 1000, 1024))
	assert.Equal(t, int32(512), scaleAxis(500, 0, 1000, 1024))
	assert.Equal(t, int32(512), scaleAxis(600, 100, 1100, 1024))
	assert.Equal(t, int32(5120), scaleAxis(10, 5, 5, 1024))
}

func TestUpdateLEDs(t *testing.T) {
	d, _ := newTestDevice(t, keyboardInfo)
	var buf bytes.Buffer
	d.leds = &buf

	d.UpdateLEDs(compositor.LEDCapsLock | compositor.LEDScrollLock)

	events := make([]rawEvent, 4)
	require.NoError(t, binary.Read(&buf, binary.NativeEndian, events))
	assert.Equal(t, rawEvent{Type: evdev.EV_LED, Code: evdev.LED_NUML, Value: 0}, events[0])
	assert.Equal(t, rawEvent{Type: evdev.EV_LED, Code: evdev.LED_CAPSL, Value: 1}, events[1])
	assert.Equal(t, rawEvent{Type: evdev.EV_LED, Code: evdev.LED_SCROLLL, Value: 1}, events[2])
	assert.Equal(t, rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT}, events[3])
	assert.Zero(t, buf.Len())
}

func TestUpdateLEDsSkipsNonKeyboards(t *testing.T) {
	d, _ := newTestDevice(t, mouseInfo)
	var buf bytes.Buffer
	d.leds = &buf

	d.UpdateLEDs(compositor.LEDNumLock)
	assert.Zero(t, buf.Len())
}

func keyBits(keys ...int) []byte {
	bits := make([]byte, keyStateSize)
	for _, k := range keys {
		bits[k/8] |= 1 << (k % 8)
	}
	return bits
}

func TestNotifyKeyboardFocus(t *testing.T) {
	seat := &fakeSeat{}
	kbd, err := NewDevice(seat, testOutput(), keyboardInfo)
	require.NoError(t, err)
	other, err := NewDevice(seat, testOutput(), keyboardInfo)
	require.NoError(t, err)
	broken, err := NewDevice(seat, testOutput(), keyboardInfo)
	require.NoError(t, err)

	kbd.keyState = func() ([]byte, error) { return keyBits(evdev.KEY_A, evdev.KEY_LEFTSHIFT), nil }
	other.keyState = func() ([]byte, error) { return keyBits(evdev.KEY_A, evdev.KEY_B), nil }
	broken.keyState = func() ([]byte, error) { return nil, errors.New("gone") }

	NotifyKeyboardFocus(seat, []*Device{kbd, other, broken})

	assert.Equal(t, 1, seat.focusCalls)
	assert.Equal(t, []uint32{evdev.KEY_A, evdev.KEY_LEFTSHIFT, evdev.KEY_B}, seat.focusKeys)
}

func TestNotifyKeyboardFocusRequiresKeyboard(t *testing.T) {
	seat := &fakeSeat{}
	mouse, err := NewDevice(seat, testOutput(), mouseInfo)
	require.NoError(t, err)
	mouse.keyState = func() ([]byte, error) { return keyBits(evdev.BTN_LEFT), nil }

	NotifyKeyboardFocus(seat, []*Device{mouse})
	assert.Zero(t, seat.focusCalls)
}

func TestCapabilityString(t *testing.T) {
	assert.Equal(t, "none", Capability(0).String())
	assert.Equal(t, "pointer,keyboard", (CapPointer | CapKeyboard).String())
	assert.Equal(t, "touch", CapTouch.String())
}
