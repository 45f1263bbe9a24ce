// Package spring implements the damped spring used to drive animations.
//
// The integrator advances in fixed 4ms ticks so results do not depend on the
// repaint rate of the output that drives it.
package spring

import (
	"math"

	"github.com/bnema/waycomp/internal/logger"
)

// Clip selects what happens when the spring leaves [Min, Max].
type Clip int

const (
	Overshoot Clip = iota
	Clamp
	Bounce
)

func (c Clip) String() string {
	switch c {
	case Clamp:
		return "clamp"
	case Bounce:
		return "bounce"
	default:
		return "overshoot"
	}
}

const (
	tickMsec      = 4
	step          = 0.01
	maxCatchUp    = 1000
	restThreshold = 0.002

	defaultFriction = 400
)

// Spring is a damped harmonic oscillator.
type Spring struct {
	K        float64
	Friction float64
	Current  float64
	Previous float64
	Target   float64
	Clip     Clip
	Min      float64
	Max      float64

	// Timestamp is the time of the last processed tick in milliseconds.
	Timestamp uint32
}

// New returns a spring resting at current and heading for target.
func New(k, current, target float64) *Spring {
	s := &Spring{}
	s.Init(k, current, target)
	return s
}

// Init resets the spring to its default parameters.
func (s *Spring) Init(k, current, target float64) {
	s.K = k
	s.Friction = defaultFriction
	s.Current = current
	s.Previous = current
	s.Target = target
	s.Clip = Overshoot
	s.Min = 0
	s.Max = 1
	s.Timestamp = 0
}

// Update integrates the spring up to msec.
func (s *Spring) Update(msec uint32) {
	if msec-s.Timestamp > maxCatchUp {
		logger.Warnf("spring: unexpectedly large timestamp jump (from %d to %d)", s.Timestamp, msec)
		s.Timestamp = msec - maxCatchUp
	}

	for msec-s.Timestamp > tickMsec {
		s.tick()
		s.Timestamp += tickMsec
	}
}

func (s *Spring) tick() {
	cur, prev := s.Current, s.Previous
	v := cur - prev
	force := s.K*(s.Target-cur)/10.0 + (prev - cur) - v*s.Friction

	s.Current = cur + (cur - prev) + force*step*step
	s.Previous = cur

	switch s.Clip {
	case Clamp:
		if s.Current > s.Max {
			s.Current = s.Max
			s.Previous = s.Max
		}
		if s.Current < s.Min {
			s.Current = s.Min
			s.Previous = s.Min
		}
	case Bounce:
		if s.Current > s.Max {
			s.Current = 2*s.Max - s.Current
			s.Previous = 2*s.Max - s.Previous
		}
		if s.Current < s.Min {
			s.Current = 2*s.Min - s.Current
			s.Previous = 2*s.Min - s.Previous
		}
	}
}

// Done reports whether the spring has come to rest at its target.
func (s *Spring) Done() bool {
	return math.Abs(s.Previous-s.Target) < restThreshold &&
		math.Abs(s.Current-s.Target) < restThreshold
}
