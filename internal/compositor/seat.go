package compositor

import (
	"github.com/bnema/waycomp/internal/logger"
)

// Seat groups a pointer, keyboard and touch device.
type Seat struct {
	Name string

	Pointer  *Pointer
	Keyboard *Keyboard
	Touch    *Touch

	// ModifierState is the mask that key, button and axis bindings match.
	ModifierState Modifier
	LEDs          LED

	// LEDsChanged fires when lock keys toggle an indicator.
	LEDsChanged Signal[LED]
	// CapabilitiesChanged fires when a device class appears or goes away.
	CapabilitiesChanged Signal[*Seat]
	Destroyed           Signal[*Seat]

	// SavedKeyboardFocus is restored when keyboard focus comes back.
	SavedKeyboardFocus *Surface

	compositor *Compositor

	pointerDevices  int
	keyboardDevices int
	touchDevices    int
}

// Compositor returns the owning compositor.
func (s *Seat) Compositor() *Compositor {
	return s.compositor
}

// InitPointer adds a pointer device to the seat.
func (s *Seat) InitPointer() {
	s.pointerDevices++
	if s.pointerDevices == 1 {
		if s.Pointer == nil {
			s.Pointer = newPointer(s)
			if o := s.compositor.DefaultOutput(); o != nil {
				s.Pointer.X = float64(o.X) + float64(o.Width)/2
				s.Pointer.Y = float64(o.Y) + float64(o.Height)/2
			}
		}
		s.CapabilitiesChanged.Emit(s)
	}
}

// InitKeyboard adds a keyboard device to the seat.
func (s *Seat) InitKeyboard() {
	s.keyboardDevices++
	if s.keyboardDevices == 1 {
		if s.Keyboard == nil {
			s.Keyboard = newKeyboard(s)
		}
		s.CapabilitiesChanged.Emit(s)
	}
}

// InitTouch adds a touch device to the seat.
func (s *Seat) InitTouch() {
	s.touchDevices++
	if s.touchDevices == 1 {
		if s.Touch == nil {
			s.Touch = newTouch(s)
		}
		s.CapabilitiesChanged.Emit(s)
	}
}

func (s *Seat) ReleasePointer() {
	if s.pointerDevices == 0 {
		return
	}
	s.pointerDevices--
	if s.pointerDevices == 0 {
		s.Pointer.SetFocus(nil, 0, 0)
		s.CapabilitiesChanged.Emit(s)
	}
}

func (s *Seat) ReleaseKeyboard() {
	if s.keyboardDevices == 0 {
		return
	}
	s.keyboardDevices--
	if s.keyboardDevices == 0 {
		s.Keyboard.SetFocus(nil)
		s.Keyboard.Keys = s.Keyboard.Keys[:0]
		s.CapabilitiesChanged.Emit(s)
	}
}

func (s *Seat) ReleaseTouch() {
	if s.touchDevices == 0 {
		return
	}
	s.touchDevices--
	if s.touchDevices == 0 {
		s.Touch.SetFocus(nil)
		s.Touch.NumTP = 0
		s.CapabilitiesChanged.Emit(s)
	}
}

// KeyboardDeviceCount returns the number of keyboards attached.
func (s *Seat) KeyboardDeviceCount() int {
	return s.keyboardDevices
}

func (s *Seat) PointerDeviceCount() int {
	return s.pointerDevices
}

func (s *Seat) TouchDeviceCount() int {
	return s.touchDevices
}

// NotifyMotion moves the pointer by a relative delta.
func (s *Seat) NotifyMotion(time uint32, dx, dy float64) {
	p := s.Pointer
	if p == nil {
		return
	}
	p.grab.Motion(p, time, p.X+dx, p.Y+dy)
}

// NotifyMotionAbsolute moves the pointer to a global position.
func (s *Seat) NotifyMotionAbsolute(time uint32, x, y float64) {
	p := s.Pointer
	if p == nil {
		return
	}
	p.grab.Motion(p, time, x, y)
}

// NotifyButton delivers a pointer button change.
func (s *Seat) NotifyButton(time, button uint32, state ButtonState) {
	p := s.Pointer
	if p == nil {
		return
	}
	if state == ButtonPressed {
		if p.ButtonCount == 0 {
			p.GrabButton = button
			p.GrabTime = time
			p.GrabX, p.GrabY = p.X, p.Y
		}
		p.ButtonCount++
	} else if p.ButtonCount > 0 {
		p.ButtonCount--
	}

	s.compositor.RunButtonBinding(s, time, button, state)
	p.grab.Button(p, time, button, state)

	if p.ButtonCount == 1 {
		p.GrabSerial = s.compositor.Serial()
	}
}

// NotifyAxis delivers a scroll event unless an axis binding consumed it.
func (s *Seat) NotifyAxis(time uint32, axis Axis, value float64) {
	p := s.Pointer
	if p == nil {
		return
	}
	if s.compositor.RunAxisBinding(s, time, axis, value) {
		return
	}
	for _, pc := range p.FocusClients() {
		pc.SendAxis(time, axis, value)
	}
}

// NotifyKey delivers a key change and updates modifier state.
func (s *Seat) NotifyKey(time, key uint32, state KeyState) {
	k := s.Keyboard
	if k == nil {
		return
	}

	for i, pressed := range k.Keys {
		if pressed != key {
			continue
		}
		if state == KeyPressed {
			// Repeat of a key that is already down.
			return
		}
		k.Keys = append(k.Keys[:i], k.Keys[i+1:]...)
		break
	}
	if state == KeyPressed {
		k.Keys = append(k.Keys, key)
	}

	grab := k.grab
	if grab == k.defaultGrab || (k.InputMethodGrab != nil && grab == k.InputMethodGrab) {
		s.compositor.RunKeyBinding(s, time, key, state)
		grab = k.grab
	}
	grab.Key(k, time, key, state)

	s.updateModifierState(s.compositor.Serial(), key, state)
}

func (s *Seat) updateModifierState(serial, key uint32, state KeyState) {
	k := s.Keyboard

	var depressed Modifier
	for _, pressed := range k.Keys {
		depressed |= modifierKeys[pressed]
	}

	leds := s.LEDs
	if bit, ok := lockKeys[key]; ok && state == KeyPressed {
		leds ^= bit
	}

	masks := ModifierMasks{
		Depressed: uint32(depressed),
		Latched:   k.Modifiers.Latched,
		Locked:    uint32(leds),
		Group:     k.Modifiers.Group,
	}
	changed := masks != k.Modifiers

	s.runModifierBindings(Modifier(k.Modifiers.Depressed), depressed)
	k.Modifiers = masks
	s.ModifierState = depressed

	if leds != s.LEDs {
		s.LEDs = leds
		s.LEDsChanged.Emit(leds)
	}

	if changed {
		k.grab.Modifiers(k, serial, masks)
	}
}

func (s *Seat) runModifierBindings(old, next Modifier) {
	for _, mod := range []Modifier{ModCtrl, ModAlt, ModSuper, ModShift} {
		diff := next & mod
		if old&mod == diff {
			continue
		}
		state := KeyReleased
		if diff != 0 {
			state = KeyPressed
		}
		s.compositor.RunModifierBinding(s, mod, state)
	}
}

// NotifyKeyboardFocusIn restores keyboard state after the compositor regains
// input, with keys holding the keys currently down.
func (s *Seat) NotifyKeyboardFocusIn(keys []uint32) {
	k := s.Keyboard
	if k == nil {
		return
	}
	serial := s.compositor.NextSerial()

	k.Keys = append(k.Keys[:0], keys...)
	s.updateModifierState(serial, 0, KeyPressed)
	for _, key := range k.Keys {
		s.compositor.RunKeyBinding(s, 0, key, KeyPressed)
	}

	if focus := s.SavedKeyboardFocus; focus != nil {
		s.SavedKeyboardFocus = nil
		k.SetFocus(focus)
	}
}

// NotifyKeyboardFocusOut releases held keys and remembers the focus.
func (s *Seat) NotifyKeyboardFocusOut() {
	k := s.Keyboard
	if k == nil {
		return
	}
	serial := s.compositor.NextSerial()

	k.Keys = k.Keys[:0]
	s.updateModifierState(serial, 0, KeyReleased)

	s.SavedKeyboardFocus = k.Focus
	k.SetFocus(nil)

	k.grab.Cancel(k)
	if p := s.Pointer; p != nil {
		p.grab.Cancel(p)
	}
}

// NotifyTouch delivers a touch point change in global coordinates.
func (s *Seat) NotifyTouch(time uint32, id int32, x, y float64, typ TouchType) {
	t := s.Touch
	if t == nil {
		return
	}

	switch typ {
	case TouchDown:
		t.NumTP++

		var sx, sy float64
		if t.NumTP == 1 {
			var v *View
			v, sx, sy = s.compositor.PickView(x, y)
			t.SetFocus(v)
		} else if t.Focus != nil {
			sx, sy = t.Focus.FromGlobal(x, y)
		} else {
			// A later touch point without a focused view: nothing to
			// deliver it to.
			return
		}

		s.compositor.RunTouchBinding(s, time, typ)
		t.grab.Down(t, time, id, sx, sy)

		if t.NumTP == 1 {
			t.GrabTouchID = id
			t.GrabTime = time
			t.GrabX, t.GrabY = x, y
		}

	case TouchMotion:
		if t.Focus == nil {
			return
		}
		sx, sy := t.Focus.FromGlobal(x, y)
		t.grab.Motion(t, time, id, sx, sy)

	case TouchUp:
		if t.NumTP == 0 {
			logger.Debug("unmatched touch up event", "seat", s.Name, "id", id)
			return
		}
		t.NumTP--
		t.grab.Up(t, time, id)
		if t.NumTP == 0 {
			t.SetFocus(nil)
		}
	}
}
