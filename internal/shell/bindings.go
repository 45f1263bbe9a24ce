package shell

import (
	"github.com/bnema/waycomp/internal/compositor"
	evdev "github.com/gvalkov/golang-evdev"
)

func (s *Shell) addBindings(exposay bool) {
	c := s.compositor
	mod := s.bindingModifier

	if exposay {
		s.bindings = append(s.bindings, c.AddModifierBinding(mod, s.exposayBinding))
	}

	if s.zoom != nil {
		s.bindings = append(s.bindings,
			c.AddAxisBinding(compositor.AxisVertical, mod, s.zoomAxisBinding),
			c.AddKeyBinding(evdev.KEY_PAGEUP, mod, s.zoomKeyBinding),
			c.AddKeyBinding(evdev.KEY_PAGEDOWN, mod, s.zoomKeyBinding),
		)
	}

	if s.screenshooter != nil {
		s.bindings = append(s.bindings, c.AddKeyBinding(evdev.KEY_S, mod, s.screenshotBinding))
	}
	if s.recorder != nil {
		s.bindings = append(s.bindings, c.AddKeyBinding(evdev.KEY_R, mod, s.recorderBinding))
	}
}

func (s *Shell) exposayBinding(seat *compositor.Seat, _ compositor.Modifier) {
	s.exposay.SetState(TargetOverview, seat)
}

func (s *Shell) zoomAxisBinding(seat *compositor.Seat, _ uint32, _ compositor.Axis, value float64) {
	s.zoom.Scroll(seat, value)
}

func (s *Shell) zoomKeyBinding(seat *compositor.Seat, _, key uint32) {
	if key == evdev.KEY_PAGEUP {
		s.zoom.ZoomIn(seat)
		return
	}
	s.zoom.ZoomOut(seat)
}

func (s *Shell) screenshotBinding(*compositor.Seat, uint32, uint32) {
	if err := s.screenshooter.LaunchHelper(); err != nil {
		shellLog.Error("failed to start screenshooter", "err", err)
	}
}

func (s *Shell) recorderBinding(seat *compositor.Seat, _, _ uint32) {
	o := s.compositor.DefaultOutput()
	if seat.Pointer != nil {
		if at := s.compositor.OutputAt(seat.Pointer.X, seat.Pointer.Y); at != nil {
			o = at
		}
	}
	if o == nil {
		return
	}
	if err := s.recorder.Toggle(o); err != nil {
		shellLog.Error("failed to toggle recorder", "output", o.Name, "err", err)
	}
}
