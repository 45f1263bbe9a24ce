package compositor

import (
	"strings"

	evdev "github.com/gvalkov/golang-evdev"
)

type KeyState uint32

const (
	KeyReleased KeyState = iota
	KeyPressed
)

func (s KeyState) String() string {
	if s == KeyPressed {
		return "pressed"
	}
	return "released"
}

// Modifier is the compositor-level modifier mask used by bindings.
type Modifier uint32

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModSuper
	ModShift
)

// ParseModifier maps a config name such as "super" or "ctrl+alt" to a mask.
func ParseModifier(name string) Modifier {
	var mod Modifier
	for _, part := range strings.Split(strings.ToLower(name), "+") {
		switch strings.TrimSpace(part) {
		case "ctrl", "control":
			mod |= ModCtrl
		case "alt":
			mod |= ModAlt
		case "super", "meta", "logo", "win":
			mod |= ModSuper
		case "shift":
			mod |= ModShift
		}
	}
	return mod
}

func (m Modifier) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	for _, p := range []struct {
		mod  Modifier
		name string
	}{{ModCtrl, "ctrl"}, {ModAlt, "alt"}, {ModSuper, "super"}, {ModShift, "shift"}} {
		if m&p.mod != 0 {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, "+")
}

// LED is a keyboard indicator mask.
type LED uint32

const (
	LEDNumLock LED = 1 << iota
	LEDCapsLock
	LEDScrollLock
)

var modifierKeys = map[uint32]Modifier{
	evdev.KEY_LEFTCTRL:   ModCtrl,
	evdev.KEY_RIGHTCTRL:  ModCtrl,
	evdev.KEY_LEFTALT:    ModAlt,
	evdev.KEY_RIGHTALT:   ModAlt,
	evdev.KEY_LEFTMETA:   ModSuper,
	evdev.KEY_RIGHTMETA:  ModSuper,
	evdev.KEY_LEFTSHIFT:  ModShift,
	evdev.KEY_RIGHTSHIFT: ModShift,
}

var lockKeys = map[uint32]LED{
	evdev.KEY_NUMLOCK:    LEDNumLock,
	evdev.KEY_CAPSLOCK:   LEDCapsLock,
	evdev.KEY_SCROLLLOCK: LEDScrollLock,
}

// ModifierMasks is the serialized modifier state sent to clients.
type ModifierMasks struct {
	Depressed uint32
	Latched   uint32
	Locked    uint32
	Group     uint32
}

// KeyboardClient is a client's keyboard object.
type KeyboardClient interface {
	SendKey(serial, time, key uint32, state KeyState)
	SendModifiers(serial uint32, mods ModifierMasks)
}

// KeyboardGrab receives keyboard events while installed on a keyboard.
type KeyboardGrab interface {
	Key(k *Keyboard, time, key uint32, state KeyState)
	Modifiers(k *Keyboard, serial uint32, mods ModifierMasks)
	Cancel(k *Keyboard)
}

// Keyboard is the seat's keyboard.
type Keyboard struct {
	Seat  *Seat
	Focus *Surface

	// FocusSignal fires after the focus changes.
	FocusSignal Signal[*Keyboard]

	// InputMethodResource is the keyboard object handed to the input
	// method while it grabs the keyboard.
	InputMethodResource KeyboardClient
	// InputMethodGrab forwards events to InputMethodResource.
	InputMethodGrab KeyboardGrab

	Keys      []uint32
	Modifiers ModifierMasks
	Keymap    string

	grab        KeyboardGrab
	defaultGrab KeyboardGrab
	clients     map[*Client][]KeyboardClient
}

func newKeyboard(seat *Seat) *Keyboard {
	k := &Keyboard{
		Seat:    seat,
		Keymap:  "evdev",
		clients: make(map[*Client][]KeyboardClient),
	}
	k.defaultGrab = defaultKeyboardGrab{}
	k.grab = k.defaultGrab
	return k
}

// Grab returns the grab currently receiving events.
func (k *Keyboard) Grab() KeyboardGrab {
	return k.grab
}

// HasDefaultGrab reports whether no grab is installed.
func (k *Keyboard) HasDefaultGrab() bool {
	return k.grab == k.defaultGrab
}

// DefaultGrab returns the grab that delivers to the focused client.
func (k *Keyboard) DefaultGrab() KeyboardGrab {
	return k.defaultGrab
}

func (k *Keyboard) StartGrab(g KeyboardGrab) {
	k.grab = g
}

func (k *Keyboard) EndGrab() {
	k.grab = k.defaultGrab
}

// RestoreInputMethodGrab reinstalls the input method's grab after another
// grab ended, if an input method currently holds the keyboard.
func (k *Keyboard) RestoreInputMethodGrab() {
	if k.InputMethodResource != nil && k.InputMethodGrab != nil {
		k.grab = k.InputMethodGrab
	}
}

// BindClient registers a client keyboard object.
func (k *Keyboard) BindClient(c *Client, kc KeyboardClient) {
	k.clients[c] = append(k.clients[c], kc)
	c.Destroyed.Add(func(*Client) {
		delete(k.clients, c)
	})
}

// FocusClients returns the keyboard objects of the focused client.
func (k *Keyboard) FocusClients() []KeyboardClient {
	if k.Focus == nil || k.Focus.Client == nil {
		return nil
	}
	return k.clients[k.Focus.Client]
}

// SetFocus moves keyboard focus. A nil surface clears it.
func (k *Keyboard) SetFocus(s *Surface) {
	if k.Focus == s {
		return
	}
	k.Focus = s
	if s != nil {
		serial := k.Seat.compositor.NextSerial()
		for _, kc := range k.FocusClients() {
			kc.SendModifiers(serial, k.Modifiers)
		}
	}
	k.FocusSignal.Emit(k)
}

// SendKeyToFocus delivers a key to the focused client.
func (k *Keyboard) SendKeyToFocus(time, key uint32, state KeyState) {
	clients := k.FocusClients()
	if len(clients) == 0 {
		return
	}
	serial := k.Seat.compositor.NextSerial()
	for _, kc := range clients {
		kc.SendKey(serial, time, key, state)
	}
}

// SendModifiersToFocus delivers modifier state to the focused client.
func (k *Keyboard) SendModifiersToFocus(serial uint32, mods ModifierMasks) {
	for _, kc := range k.FocusClients() {
		kc.SendModifiers(serial, mods)
	}
}

func (k *Keyboard) IsPressed(key uint32) bool {
	for _, pressed := range k.Keys {
		if pressed == key {
			return true
		}
	}
	return false
}

type defaultKeyboardGrab struct{}

func (defaultKeyboardGrab) Key(k *Keyboard, time, key uint32, state KeyState) {
	k.SendKeyToFocus(time, key, state)
}

func (defaultKeyboardGrab) Modifiers(k *Keyboard, serial uint32, mods ModifierMasks) {
	k.SendModifiersToFocus(serial, mods)
}

func (defaultKeyboardGrab) Cancel(*Keyboard) {}
