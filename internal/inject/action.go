package inject

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
)

// ActionKind identifies what an action does.
type ActionKind int

const (
	ActionMove ActionKind = iota
	ActionButton
	ActionWheel
	ActionKey
	ActionSleep
)

// Press selects which half of a button or key transition is sent.
type Press int

const (
	PressTap Press = iota
	PressDown
	PressUp
)

// Pointer buttons.
const (
	ButtonLeft   = "left"
	ButtonRight  = "right"
	ButtonMiddle = "middle"
)

// Action is one step of an injection script.
type Action struct {
	Kind       ActionKind
	X, Y       int32
	Button     string
	Horizontal bool
	Delta      int32
	Code       int
	Press      Press
	Duration   time.Duration
	text       string
}

func (a Action) String() string {
	return a.text
}

var keyCodes = func() map[string]int {
	codes := make(map[string]int, len(evdev.KEY))
	for code, name := range evdev.KEY {
		codes[name] = code
	}
	return codes
}()

// KeyCode resolves a key name such as KEY_A, a, or a numeric code.
func KeyCode(name string) (int, error) {
	if code, err := strconv.Atoi(name); err == nil {
		if code <= 0 || code >= evdev.KEY_MAX {
			return 0, fmt.Errorf("%w: key code %d out of range", ErrInvalidAction, code)
		}
		return code, nil
	}
	upper := strings.ToUpper(name)
	if !strings.HasPrefix(upper, "KEY_") {
		upper = "KEY_" + upper
	}
	code, ok := keyCodes[upper]
	if !ok {
		return 0, fmt.Errorf("%w: unknown key %q", ErrInvalidAction, name)
	}
	return code, nil
}

// ParseAction parses one step. The accepted forms are
//
//	move:DX,DY  click:BUTTON  press:BUTTON  release:BUTTON
//	wheel:N  hwheel:N  key:NAME  keydown:NAME  keyup:NAME  sleep:DURATION
func ParseAction(s string) (Action, error) {
	verb, arg, ok := strings.Cut(s, ":")
	if !ok || arg == "" {
		return Action{}, fmt.Errorf("%w: %q needs an argument", ErrInvalidAction, s)
	}
	a := Action{text: s}

	switch verb {
	case "move":
		xs, ys, ok := strings.Cut(arg, ",")
		if !ok {
			return Action{}, fmt.Errorf("%w: %q wants move:DX,DY", ErrInvalidAction, s)
		}
		x, errX := strconv.ParseInt(strings.TrimSpace(xs), 10, 32)
		y, errY := strconv.ParseInt(strings.TrimSpace(ys), 10, 32)
		if errX != nil || errY != nil {
			return Action{}, fmt.Errorf("%w: %q has a bad offset", ErrInvalidAction, s)
		}
		a.Kind, a.X, a.Y = ActionMove, int32(x), int32(y)
	case "click", "press", "release":
		switch arg {
		case ButtonLeft, ButtonRight, ButtonMiddle:
		default:
			return Action{}, fmt.Errorf("%w: unknown button %q", ErrInvalidAction, arg)
		}
		a.Kind, a.Button, a.Press = ActionButton, arg, pressFor(verb)
	case "wheel", "hwheel":
		d, err := strconv.ParseInt(arg, 10, 32)
		if err != nil || d == 0 {
			return Action{}, fmt.Errorf("%w: %q wants a non-zero step count", ErrInvalidAction, s)
		}
		a.Kind, a.Horizontal, a.Delta = ActionWheel, verb == "hwheel", int32(d)
	case "key", "keydown", "keyup":
		code, err := KeyCode(arg)
		if err != nil {
			return Action{}, err
		}
		a.Kind, a.Code, a.Press = ActionKey, code, pressFor(verb)
	case "sleep":
		d, err := time.ParseDuration(arg)
		if err != nil || d < 0 {
			return Action{}, fmt.Errorf("%w: %q has a bad duration", ErrInvalidAction, s)
		}
		a.Kind, a.Duration = ActionSleep, d
	default:
		return Action{}, fmt.Errorf("%w: unknown verb %q", ErrInvalidAction, verb)
	}
	return a, nil
}

func pressFor(verb string) Press {
	switch verb {
	case "press", "keydown":
		return PressDown
	case "release", "keyup":
		return PressUp
	}
	return PressTap
}

// ParseActions parses a script. Bare words are taken as key taps when
// keys is set, so "inject key h i" types two letters.
func ParseActions(args []string, keys bool) ([]Action, error) {
	actions := make([]Action, 0, len(args))
	for _, arg := range args {
		if keys && !strings.Contains(arg, ":") {
			arg = "key:" + arg
		}
		a, err := ParseAction(arg)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// Needs reports which virtual devices a script uses.
func Needs(actions []Action) (pointer, keyboard bool) {
	for _, a := range actions {
		switch a.Kind {
		case ActionMove, ActionButton, ActionWheel:
			pointer = true
		case ActionKey:
			keyboard = true
		}
	}
	return pointer, keyboard
}
