// Package inject drives virtual uinput devices so scripted input reaches a
// running compositor through its evdev backend.
package inject

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThomasT75/uinput"
	"github.com/bnema/waycomp/internal/logger"
)

// DefaultPath is the uinput control node.
const DefaultPath = "/dev/uinput"

var (
	// ErrClosed is returned when running actions on a closed injector
	ErrClosed = errors.New("injector is closed")
	// ErrInvalidAction is returned for actions that cannot be parsed or played
	ErrInvalidAction = errors.New("invalid action")
	// ErrNoDevice is returned when an action needs a device the injector lacks
	ErrNoDevice = errors.New("no virtual device for action")
)

// Pointer is the part of a uinput mouse the injector drives.
type Pointer interface {
	Move(x, y int32) error
	LeftPress() error
	LeftRelease() error
	RightPress() error
	RightRelease() error
	MiddlePress() error
	MiddleRelease() error
	Wheel(horizontal bool, delta int32) error
	Close() error
}

// Keyboard is the part of a uinput keyboard the injector drives.
type Keyboard interface {
	KeyDown(key int) error
	KeyUp(key int) error
	Close() error
}

// Injector plays actions on a virtual pointer and keyboard.
type Injector struct {
	pointer  Pointer
	keyboard Keyboard
	delay    time.Duration

	mu     sync.Mutex
	closed bool
}

// New wraps existing devices. Either may be nil.
func New(pointer Pointer, keyboard Keyboard) *Injector {
	return &Injector{pointer: pointer, keyboard: keyboard}
}

// Open creates the requested virtual devices on the uinput node at path.
func Open(path string, pointer, keyboard bool) (*Injector, error) {
	if path == "" {
		path = DefaultPath
	}
	inj := &Injector{}
	if pointer {
		mouse, err := uinput.CreateMouse(path, []byte("waycomp virtual pointer"))
		if err != nil {
			return nil, fmt.Errorf("failed to create virtual pointer: %w", err)
		}
		inj.pointer = mouse
	}
	if keyboard {
		kbd, err := uinput.CreateKeyboard(path, []byte("waycomp virtual keyboard"))
		if err != nil {
			inj.Close()
			return nil, fmt.Errorf("failed to create virtual keyboard: %w", err)
		}
		inj.keyboard = kbd
	}
	return inj, nil
}

// SetDelay sets the pause between two actions.
func (i *Injector) SetDelay(d time.Duration) {
	i.delay = d
}

// Run plays the actions in order. The compositor only sees a new device
// after its monitor picks it up, so callers usually start with a sleep.
func (i *Injector) Run(ctx context.Context, actions []Action) error {
	for n, a := range actions {
		if n > 0 && i.delay > 0 {
			if err := wait(ctx, i.delay); err != nil {
				return err
			}
		}
		if a.Kind == ActionSleep {
			if err := wait(ctx, a.Duration); err != nil {
				return err
			}
			continue
		}
		if err := i.play(a); err != nil {
			return fmt.Errorf("%s: %w", a, err)
		}
		logger.Debugf("Injected %s", a)
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (i *Injector) play(a Action) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrClosed
	}

	switch a.Kind {
	case ActionMove:
		if i.pointer == nil {
			return ErrNoDevice
		}
		return i.pointer.Move(a.X, a.Y)
	case ActionWheel:
		if i.pointer == nil {
			return ErrNoDevice
		}
		return i.pointer.Wheel(a.Horizontal, a.Delta)
	case ActionButton:
		if i.pointer == nil {
			return ErrNoDevice
		}
		return i.button(a)
	case ActionKey:
		if i.keyboard == nil {
			return ErrNoDevice
		}
		if a.Press != PressUp {
			if err := i.keyboard.KeyDown(a.Code); err != nil {
				return err
			}
		}
		if a.Press != PressDown {
			return i.keyboard.KeyUp(a.Code)
		}
		return nil
	default:
		return ErrInvalidAction
	}
}

func (i *Injector) button(a Action) error {
	var press, release func() error
	switch a.Button {
	case ButtonLeft:
		press, release = i.pointer.LeftPress, i.pointer.LeftRelease
	case ButtonRight:
		press, release = i.pointer.RightPress, i.pointer.RightRelease
	case ButtonMiddle:
		press, release = i.pointer.MiddlePress, i.pointer.MiddleRelease
	default:
		return fmt.Errorf("%w: unknown button %q", ErrInvalidAction, a.Button)
	}
	if a.Press != PressUp {
		if err := press(); err != nil {
			return err
		}
	}
	if a.Press != PressDown {
		return release()
	}
	return nil
}

// Close destroys the virtual devices.
func (i *Injector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true

	var err error
	if i.pointer != nil {
		err = i.pointer.Close()
	}
	if i.keyboard != nil {
		if e := i.keyboard.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
