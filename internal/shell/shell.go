// Package shell holds the desktop behaviours layered on the compositor: the
// window overview, focus activation and the global key bindings.
package shell

import (
	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/zoom"
)

var shellLog = logger.With("shell")

// Screenshooter starts an interactive screenshot.
type Screenshooter interface {
	LaunchHelper() error
}

// Recorder toggles a recording of an output.
type Recorder interface {
	Toggle(o *compositor.Output) error
}

// Options configure a Shell. Nil collaborators leave their bindings out.
type Options struct {
	// BindingModifier is held for every shell binding. Zero means super.
	BindingModifier compositor.Modifier
	// Exposay enables the overview binding.
	Exposay bool

	Zoom          *zoom.Controller
	Screenshooter Screenshooter
	Recorder      Recorder
}

// Shell ties the shell features to a compositor.
type Shell struct {
	compositor      *compositor.Compositor
	bindingModifier compositor.Modifier

	exposay       *Exposay
	zoom          *zoom.Controller
	screenshooter Screenshooter
	recorder      Recorder

	bindings  []*compositor.Binding
	listeners []func()

	// panelSurface is the text input surface the input panel follows.
	panelSurface *compositor.Surface
}

// New creates the shell and installs its bindings.
func New(c *compositor.Compositor, opts Options) *Shell {
	if opts.BindingModifier == 0 {
		opts.BindingModifier = compositor.ModSuper
	}
	s := &Shell{
		compositor:      c,
		bindingModifier: opts.BindingModifier,
		zoom:            opts.Zoom,
		screenshooter:   opts.Screenshooter,
		recorder:        opts.Recorder,
	}
	s.exposay = newExposay(s)

	s.addBindings(opts.Exposay)
	s.followInputPanel()

	shellLog.Debug("shell ready", "modifier", s.bindingModifier, "exposay", opts.Exposay)
	return s
}

// Exposay returns the overview state machine.
func (s *Shell) Exposay() *Exposay {
	return s.exposay
}

// BindingModifier returns the modifier the shell bindings use.
func (s *Shell) BindingModifier() compositor.Modifier {
	return s.bindingModifier
}

// Activate raises v and gives it seat's keyboard focus.
func (s *Shell) Activate(v *compositor.View, seat *compositor.Seat) {
	if v == nil || v.IsDestroyed() {
		return
	}
	s.compositor.StackView(v)
	if seat != nil && seat.Keyboard != nil {
		seat.Keyboard.SetFocus(v.Surface)
	}
}

// followInputPanel pans the zoomed output to the text cursor of the focused
// text input.
func (s *Shell) followInputPanel() {
	c := s.compositor
	show := c.ShowInputPanel.Add(func(surface *compositor.Surface) {
		s.panelSurface = surface
	})
	hide := c.HideInputPanel.Add(func(*compositor.Compositor) {
		s.panelSurface = nil
	})
	update := c.UpdateInputPanel.Add(s.inputPanelMoved)
	s.listeners = append(s.listeners, show.Remove, hide.Remove, update.Remove)
}

func (s *Shell) inputPanelMoved(cursor compositor.Rect) {
	if s.zoom == nil || s.panelSurface == nil {
		return
	}
	v := s.panelSurface.DefaultView()
	if v == nil {
		return
	}
	x, y := v.Matrix().Apply(cursor.X, cursor.Y+cursor.Height)
	s.zoom.FocusOn(x, y)
}

// Close removes the shell bindings and listeners.
func (s *Shell) Close() {
	for _, b := range s.bindings {
		b.Destroy()
	}
	s.bindings = nil
	for _, remove := range s.listeners {
		remove()
	}
	s.listeners = nil
}
