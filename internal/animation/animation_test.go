package animation

import (
	"testing"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/spring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScene(t *testing.T) (*compositor.Compositor, *compositor.Output, *compositor.View) {
	t.Helper()
	c := compositor.New(compositor.NewMemoryRenderer(compositor.FormatXRGB8888))
	o := compositor.NewOutput("test", compositor.Mode{Width: 1280, Height: 720}, 1, compositor.TransformNormal)
	c.AddOutput(o)

	v := c.CreateView(c.CreateSurface(c.NewClient(1), 200, 100))
	v.SetPosition(100, 100)
	c.StackView(v)
	return c, o, v
}

// drive repaints the output until a finishes or max frames have run and
// returns the number of frames.
func drive(o *compositor.Output, a *Animation, max int, each func()) int {
	now := uint32(1000)
	frames := 0
	for frames < max && a.Active() {
		now += 16
		o.Repaint(now)
		frames++
		if each != nil && a.Active() {
			each()
		}
	}
	return frames
}

func TestRunComputesFirstFrameAndLinks(t *testing.T) {
	_, o, v := newScene(t)

	a := Zoom(v, 0.5, 1.0, nil, nil)

	assert.True(t, a.Active())
	assert.Len(t, v.Transforms(), 1)
	assert.Len(t, o.Animations(), 1)
	assert.True(t, v.IsGeometryDirty())
	assert.True(t, o.RepaintScheduled())

	assert.Equal(t, 300.0, a.Spring.K)
	assert.Equal(t, 1400.0, a.Spring.Friction)
	assert.InDelta(t, 0.5-0.5*0.03, a.Spring.Previous, 1e-9)
}

func TestZoomCompletes(t *testing.T) {
	_, o, v := newScene(t)

	var doneCalls int
	var gotData interface{}
	a := Zoom(v, 0.5, 1.0, func(_ *Animation, data interface{}) {
		doneCalls++
		gotData = data
	}, "cookie")

	frames := drive(o, a, 1000, func() {
		assert.LessOrEqual(t, v.Alpha, 1.0)
	})

	require.False(t, a.Active(), "zoom did not settle after %d frames", frames)
	assert.Equal(t, 1, doneCalls)
	assert.Equal(t, "cookie", gotData)
	assert.Equal(t, 1.0, v.Alpha)
	assert.Empty(t, v.Transforms())
	assert.Empty(t, o.Animations())
}

func TestZoomScalesAroundCenter(t *testing.T) {
	_, o, v := newScene(t)

	a := Zoom(v, 0.5, 1.0, nil, nil)
	o.Repaint(1000)
	o.Repaint(1100)
	require.True(t, a.Active())

	// The center of the surface stays put whatever the scale.
	cx, cy := a.Transform().Apply(100, 50)
	assert.InDelta(t, 100, cx, 1e-9)
	assert.InDelta(t, 50, cy, 1e-9)
}

func TestDestroyOnViewDestroy(t *testing.T) {
	_, o, v := newScene(t)

	doneCalls := 0
	a := Slide(v, 0, 100, func(*Animation, interface{}) { doneCalls++ }, nil)
	o.Repaint(16)

	v.Destroy()
	assert.False(t, a.Active())
	assert.Equal(t, 1, doneCalls)
	assert.Empty(t, o.Animations())

	a.Destroy()
	assert.Equal(t, 1, doneCalls)
}

func TestFirstFramePrimesClock(t *testing.T) {
	_, o, v := newScene(t)

	a := MoveScale(v, 10, 10, 1, 0.5, false, nil, nil)
	current := a.Spring.Current

	// A large gap before the first frame must not count as elapsed time.
	o.Repaint(500000)
	assert.Equal(t, uint32(500000), a.Spring.Timestamp)
	assert.Equal(t, current, a.Spring.Current)
}

func TestFade(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
	}{
		{"fade in", 0, 1},
		{"fade out", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, o, v := newScene(t)

			a := Fade(v, tt.start, tt.end, 300, nil, nil)
			assert.Equal(t, tt.start, v.Alpha)

			drive(o, a, 1000, func() {
				assert.GreaterOrEqual(t, v.Alpha, 0.0)
				assert.LessOrEqual(t, v.Alpha, 1.0)
			})
			require.False(t, a.Active())
			assert.Equal(t, tt.end, v.Alpha)
		})
	}
}

func TestFadeUpdateRetargets(t *testing.T) {
	_, o, v := newScene(t)

	a := Fade(v, 0, 1, 300, nil, nil)
	o.Repaint(16)
	FadeUpdate(a, 0.5)
	assert.Equal(t, 0.5, a.Spring.Target)

	drive(o, a, 1000, nil)
	assert.False(t, a.Active())
}

func TestSaturatedAlpha(t *testing.T) {
	assert.Equal(t, 1.0, saturatedAlpha(0.9995))
	assert.Equal(t, 0.0, saturatedAlpha(0.0005))
	assert.Equal(t, 0.5, saturatedAlpha(0.5))
}

func TestStableFadeKeepsCombinedOpacity(t *testing.T) {
	c, o, front := newScene(t)
	back := c.CreateView(c.CreateSurface(c.NewClient(2), 200, 100))
	c.StackView(back)

	a := StableFade(front, 0, back, 1, nil, nil)
	assert.Equal(t, 0.0, front.Alpha)
	assert.Equal(t, 1.0, back.Alpha)

	drive(o, a, 1000, func() {
		combined := front.Alpha + back.Alpha*(1-front.Alpha)
		assert.InDelta(t, a.Spring.Target, combined, 1e-9)
	})
	assert.False(t, a.Active())
}

func TestStableFadeOpaqueFront(t *testing.T) {
	c, _, front := newScene(t)
	back := c.CreateView(c.CreateSurface(c.NewClient(2), 200, 100))

	a := &Animation{View: front, private: back}
	a.Spring.Init(400, 1, 1)
	stableFadeFrame(a)

	assert.Equal(t, 1.0, front.Alpha)
	assert.Equal(t, 1.0, back.Alpha)
}

func TestSlideBounces(t *testing.T) {
	_, o, v := newScene(t)

	a := Slide(v, 0, 200, nil, nil)
	assert.Equal(t, spring.Bounce, a.Spring.Clip)
	assert.Equal(t, 600.0, a.Spring.Friction)

	drive(o, a, 1000, func() {
		_, y := a.Transform().Apply(0, 0)
		assert.GreaterOrEqual(t, y, -1e-9)
		assert.LessOrEqual(t, y, 200+1e-9)
	})
	assert.False(t, a.Active())
	assert.Empty(t, v.Transforms())
}

func TestMoveScale(t *testing.T) {
	tests := []struct {
		name    string
		reverse bool
		// expected scale after the first integrated frames
		nearScale float64
	}{
		{"forward starts at start scale", false, 1.0},
		{"reverse starts at end scale", true, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, o, v := newScene(t)

			var done bool
			a := MoveScale(v, 300, -50, 1.0, 0.5, tt.reverse, func(*Animation, interface{}) { done = true }, nil)
			o.Repaint(1000)

			m := a.Transform()
			assert.InDelta(t, tt.nearScale, m.XX, 0.05)

			drive(o, a, 1000, nil)
			assert.True(t, done)
			assert.Empty(t, v.Transforms())
		})
	}
}

func TestMoveScaleTranslatesByProgress(t *testing.T) {
	_, o, v := newScene(t)

	a := MoveScale(v, 300, -50, 1.0, 0.5, false, nil, nil)
	o.Repaint(1000)
	o.Repaint(1100)
	require.True(t, a.Active())

	progress := a.Spring.Current
	m := a.Transform()
	scale := 1.0 - 0.5*progress
	assert.InDelta(t, scale, m.XX, 1e-9)
	assert.InDelta(t, 300*progress, m.TX, 1e-9)
	assert.InDelta(t, -50*progress, m.TY, 1e-9)
}
