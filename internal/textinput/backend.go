package textinput

import (
	"fmt"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/notify"
)

// DefaultInputMethodPath is the helper launched when none is configured.
const DefaultInputMethodPath = "/usr/libexec/weston-keyboard"

// Options configure a Backend.
type Options struct {
	// Path is the input method helper. Empty disables launching.
	Path string
	// Notifier reports a helper that keeps crashing. Nil discards.
	Notifier notify.Notifier
}

// Backend owns the per-seat input methods, the text input manager and the
// input method helper process.
type Backend struct {
	Manager *Manager

	compositor *compositor.Compositor
	path       string
	notifier   notify.Notifier
	respawn    *Respawner

	process *compositor.Process
	client  *compositor.Client
	// binding is the input method currently bound by the helper.
	binding *InputMethod
	failed  bool

	inputMethods map[*compositor.Seat]*InputMethod

	seatCreated *compositor.Listener[*compositor.Seat]
	destroyed   *compositor.Listener[*compositor.Compositor]
	closed      bool
}

// NewBackend attaches text input support to c. Input methods are created
// for existing seats and for every seat created later.
func NewBackend(c *compositor.Compositor, opts Options) *Backend {
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	b := &Backend{
		compositor:   c,
		path:         opts.Path,
		notifier:     opts.Notifier,
		respawn:      NewRespawner(c.Clock),
		inputMethods: make(map[*compositor.Seat]*InputMethod),
	}
	b.Manager = &Manager{backend: b}

	b.seatCreated = c.SeatCreated.Add(b.handleSeatCreated)
	b.destroyed = c.Destroyed.Add(func(*compositor.Compositor) { b.Close() })

	for _, seat := range c.Seats() {
		b.handleSeatCreated(seat)
	}
	return b
}

func (b *Backend) handleSeatCreated(seat *compositor.Seat) {
	b.ensureInputMethod(seat)
	b.launch()
}

// ensureInputMethod returns the seat's input method, creating it if the
// seat predates the backend.
func (b *Backend) ensureInputMethod(seat *compositor.Seat) *InputMethod {
	if im, ok := b.inputMethods[seat]; ok {
		return im
	}
	im := &InputMethod{Seat: seat, backend: b}
	im.seatListener = seat.Destroyed.Add(func(*compositor.Seat) {
		im.destroy()
		delete(b.inputMethods, seat)
	})
	b.inputMethods[seat] = im
	return im
}

// InputMethod returns the input method of seat, or nil.
func (b *Backend) InputMethod(seat *compositor.Seat) *InputMethod {
	return b.inputMethods[seat]
}

// Respawner exposes the crash accounting of the helper.
func (b *Backend) Respawner() *Respawner {
	return b.respawn
}

// Failed reports whether the helper crashed too often and was given up on.
func (b *Backend) Failed() bool {
	return b.failed
}

// Process returns the running helper, or nil.
func (b *Backend) Process() *compositor.Process {
	return b.process
}

// BindInputMethod binds client as the input method of seat. Only the
// launched helper may bind, and only once per seat.
func (b *Backend) BindInputMethod(seat *compositor.Seat, client *compositor.Client, binding InputMethodClient) (*InputMethod, error) {
	im := b.ensureInputMethod(seat)

	var msg string
	switch {
	case im.binding != nil:
		msg = "interface object already bound"
	case client == nil || b.client != client:
		msg = "permission to bind input_method denied"
	}
	if msg != "" {
		err := &compositor.ProtocolError{Code: compositor.ErrorInvalidObject, Message: msg}
		if client != nil {
			client.PostError(err.Code, "%s", msg)
		}
		return nil, err
	}

	im.binding = binding
	im.client = client
	im.clientListener = client.Destroyed.Add(func(*compositor.Client) { im.Unbind() })
	b.binding = im

	textLog.Info("input method bound", "seat", seat.Name, "pid", client.PID)
	return im, nil
}

func (b *Backend) launch() {
	if b.closed || b.failed || b.binding != nil || b.path == "" || b.process != nil {
		return
	}

	proc, err := b.compositor.Launcher.Launch(b.path, b.handleExit)
	if err != nil {
		textLog.Error("not able to start input method", "path", b.path, "err", err)
		return
	}
	b.process = proc
	b.client = proc.Client
	textLog.Debug("input method launched", "path", b.path, "pid", proc.PID)
}

func (b *Backend) handleExit(proc *compositor.Process, status int) {
	if b.closed || proc != b.process {
		return
	}
	b.process = nil
	b.client = nil

	if !b.respawn.Died() {
		b.failed = true
		textLog.Error("input method died, giving up", "path", b.path, "deaths", b.respawn.Deaths())
		body := fmt.Sprintf("%s crashed %d times, text input is disabled", b.path, b.respawn.Deaths())
		if err := b.notifier.Notify("Input method stopped", body); err != nil {
			textLog.Debug("notification failed", "err", err)
		}
		return
	}

	textLog.Warn("input method died, respawning", "path", b.path, "status", status)
	b.launch()
}

// Close stops the helper and detaches from the compositor.
func (b *Backend) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.seatCreated.Remove()
	b.destroyed.Remove()

	if b.process != nil {
		if err := b.process.Terminate(); err != nil {
			textLog.Warn("failed to stop input method", "err", err)
		}
	}
	if b.client != nil {
		b.client.Destroy()
	}
	b.process = nil
	b.client = nil
}
