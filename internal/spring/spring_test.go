package spring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDefaults(t *testing.T) {
	s := New(200, 0.25, 1)

	assert.Equal(t, 200.0, s.K)
	assert.Equal(t, 400.0, s.Friction)
	assert.Equal(t, 0.25, s.Current)
	assert.Equal(t, 0.25, s.Previous)
	assert.Equal(t, 1.0, s.Target)
	assert.Equal(t, Overshoot, s.Clip)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 1.0, s.Max)
	assert.Equal(t, uint32(0), s.Timestamp)
}

func TestUpdateZeroElapsedIsNoop(t *testing.T) {
	s := New(300, 0, 1)
	s.Timestamp = 500
	s.Update(500)
	s.Update(504)

	assert.Equal(t, 0.0, s.Current)
	assert.Equal(t, 0.0, s.Previous)
	assert.Equal(t, uint32(500), s.Timestamp)
}

func TestUpdateTicksInFourMillisecondSteps(t *testing.T) {
	s := New(300, 0, 1)
	s.Update(21)

	// 21ms leaves one partial tick unprocessed.
	assert.Equal(t, uint32(20), s.Timestamp)
	assert.Greater(t, s.Current, 0.0)
}

func TestUpdateSingleTick(t *testing.T) {
	s := New(100, 0, 1)
	s.Update(5)

	// force = 100*(1-0)/10 = 10, current = 10 * 0.0001
	assert.InDelta(t, 0.001, s.Current, 1e-12)
	assert.Equal(t, 0.0, s.Previous)
}

func TestUpdateClampsLargeJump(t *testing.T) {
	s := New(300, 0, 1)
	s.Update(100000)

	assert.Equal(t, uint32(100000)-4, s.Timestamp)
}

func TestUpdateHandlesClockWrap(t *testing.T) {
	s := New(300, 0, 1)
	s.Timestamp = 2000
	// A backwards jump wraps to a huge unsigned delta and is clamped.
	s.Update(1000)

	assert.LessOrEqual(t, 1000-s.Timestamp, uint32(4))
	assert.False(t, math.IsNaN(s.Current))
}

func TestConvergesAndStaysDone(t *testing.T) {
	s := New(400, 0, 1)
	s.Friction = 1150

	var now uint32
	for i := 0; i < 500 && !s.Done(); i++ {
		now += 16
		s.Update(now)
	}
	require.True(t, s.Done())

	cur, prev := s.Current, s.Previous
	for i := 0; i < 50; i++ {
		now += 16
		s.Update(now)
	}
	assert.InDelta(t, cur, s.Current, restThreshold)
	assert.InDelta(t, prev, s.Previous, restThreshold)
	assert.True(t, s.Done())
}

func TestOverDampedApproachesMonotonically(t *testing.T) {
	s := New(200, 0, 1)
	s.Friction = 1400

	last := s.Current
	var now uint32
	for i := 0; i < 200; i++ {
		now += 16
		s.Update(now)
		assert.GreaterOrEqual(t, s.Current, last)
		assert.LessOrEqual(t, s.Current, 1.0)
		last = s.Current
	}
}

func TestClipModes(t *testing.T) {
	tests := []struct {
		name  string
		clip  Clip
		check func(t *testing.T, s *Spring)
	}{
		{
			name: "clamp stays in range",
			clip: Clamp,
			check: func(t *testing.T, s *Spring) {
				assert.LessOrEqual(t, s.Current, s.Max)
				assert.GreaterOrEqual(t, s.Current, s.Min)
			},
		},
		{
			name: "bounce stays in range",
			clip: Bounce,
			check: func(t *testing.T, s *Spring) {
				assert.LessOrEqual(t, s.Current, s.Max+1e-9)
				assert.GreaterOrEqual(t, s.Current, s.Min-1e-9)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Lightly damped and stiff enough to overshoot without clipping.
			s := New(900, 0, 1)
			s.Friction = 50
			s.Clip = tt.clip

			var now uint32
			for i := 0; i < 100; i++ {
				now += 16
				s.Update(now)
				tt.check(t, s)
			}
		})
	}
}

func TestOvershootExceedsTarget(t *testing.T) {
	s := New(900, 0, 1)
	s.Friction = 50

	peak := 0.0
	var now uint32
	for i := 0; i < 100; i++ {
		now += 16
		s.Update(now)
		peak = math.Max(peak, s.Current)
	}
	assert.Greater(t, peak, 1.0)
}

func TestClampZeroesVelocityAtBound(t *testing.T) {
	s := New(400, 0.99, 2)
	s.Clip = Clamp
	s.Update(40)

	assert.Equal(t, 1.0, s.Current)
	assert.Equal(t, 1.0, s.Previous)
}

func TestBounceReflects(t *testing.T) {
	s := &Spring{Current: 1.0, Previous: 0.95, Target: 1.0, Clip: Bounce, Min: 0, Max: 1}
	s.tick()

	// Velocity 0.05 carries current past 1.0, reflection sends it back down.
	assert.InDelta(t, 0.95, s.Current, 1e-4)
	assert.Equal(t, 1.0, s.Previous)
	assert.Less(t, s.Current-s.Previous, 0.0)
}

func TestClipString(t *testing.T) {
	assert.Equal(t, "overshoot", Overshoot.String())
	assert.Equal(t, "clamp", Clamp.String())
	assert.Equal(t, "bounce", Bounce.String())
}
