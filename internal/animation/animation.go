// Package animation drives view transforms and alpha from a spring, one
// output frame at a time.
package animation

import (
	"math"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/spring"
)

// DoneFunc is called once when an animation finishes or its view goes away.
type DoneFunc func(a *Animation, data interface{})

type frameFunc func(a *Animation)

// Animation is a running view animation. It owns a transform on the view and
// a hook on the view's output animation list.
type Animation struct {
	View   *compositor.View
	Spring spring.Spring

	Start, Stop float64

	transform *compositor.Transform
	hook      *compositor.OutputAnimation
	listener  *compositor.Listener[*compositor.View]

	frame frameFunc
	reset frameFunc
	done  DoneFunc
	data  interface{}

	// private holds effect-specific state.
	private interface{}

	destroyed bool
}

// run starts an animation on view. The first frame is computed immediately.
func run(view *compositor.View, start, stop float64, frame, reset frameFunc, done DoneFunc, data, private interface{}) *Animation {
	a := &Animation{
		View:      view,
		Start:     start,
		Stop:      stop,
		frame:     frame,
		reset:     reset,
		done:      done,
		data:      data,
		private:   private,
		transform: compositor.NewTransform(),
	}
	view.AddTransform(a.transform)

	a.Spring.Init(200, 0, 1)
	a.Spring.Friction = 700

	a.hook = compositor.NewOutputAnimation(a.step)
	a.step(a.hook, nil, 0)

	a.listener = view.Destroyed.Add(func(*compositor.View) {
		a.Destroy()
	})

	if view.Output == nil {
		logger.Debug("animation: view has no output, animation will not advance")
		return a
	}
	view.Output.InsertAnimation(a.hook)
	return a
}

// Transform returns the matrix the animation applies to its view.
func (a *Animation) Transform() *compositor.Matrix {
	return &a.transform.Matrix
}

// Active reports whether the animation is still running.
func (a *Animation) Active() bool {
	return !a.destroyed
}

func (a *Animation) step(hook *compositor.OutputAnimation, _ *compositor.Output, msecs uint32) {
	if a.destroyed {
		return
	}
	if hook.FrameCounter <= 1 {
		a.Spring.Timestamp = msecs
	}

	a.Spring.Update(msecs)

	if a.Spring.Done() {
		a.View.ScheduleRepaint()
		a.Destroy()
		return
	}

	if a.frame != nil {
		a.frame(a)
	}

	a.View.GeometryDirty()
	a.View.ScheduleRepaint()
}

// Destroy stops the animation, applies the reset state and calls the done
// callback. Later calls do nothing.
func (a *Animation) Destroy() {
	if a.destroyed {
		return
	}
	a.destroyed = true

	a.hook.Remove()
	if a.listener != nil {
		a.listener.Remove()
	}
	a.transform.Remove()

	if a.reset != nil {
		a.reset(a)
	}
	a.View.GeometryDirty()
	if a.done != nil {
		a.done(a, a.data)
	}
}

func resetAlpha(a *Animation) {
	a.View.Alpha = a.Stop
}

func zoomFrame(a *Animation) {
	v := a.View
	var w, h float64
	if v.Surface != nil {
		w, h = float64(v.Surface.Width), float64(v.Surface.Height)
	}
	scale := a.Start + (a.Stop-a.Start)*a.Spring.Current

	m := a.Transform()
	m.Reset()
	m.Translate(-0.5*w, -0.5*h)
	m.Scale(scale, scale)
	m.Translate(0.5*w, 0.5*h)

	v.Alpha = a.Spring.Current
	if v.Alpha > 1 {
		v.Alpha = 1
	}
}

// Zoom scales the view around its center from start to stop while fading
// it in.
func Zoom(view *compositor.View, start, stop float64, done DoneFunc, data interface{}) *Animation {
	a := run(view, start, stop, zoomFrame, resetAlpha, done, data, nil)

	a.Spring.Init(300, start, stop)
	a.Spring.Friction = 1400
	a.Spring.Previous = start - (stop-start)*0.03
	return a
}

// saturatedAlpha snaps the asymptotic tails of the spring to 0 and 1.
func saturatedAlpha(v float64) float64 {
	switch {
	case v > 0.999:
		return 1
	case v < 0.001:
		return 0
	default:
		return v
	}
}

func fadeFrame(a *Animation) {
	a.View.Alpha = saturatedAlpha(a.Spring.Current)
}

// Fade animates the view alpha from start to end with stiffness k.
func Fade(view *compositor.View, start, end, k float64, done DoneFunc, data interface{}) *Animation {
	a := run(view, 0, end, fadeFrame, resetAlpha, done, data, nil)

	a.Spring.Init(k, start, end)
	a.Spring.Friction = 1400
	a.Spring.Previous = -(end - start) * 0.03

	view.Alpha = start
	return a
}

// FadeUpdate retargets a running fade.
func FadeUpdate(a *Animation, target float64) {
	a.Spring.Target = target
}

func stableFadeFrame(a *Animation) {
	front := a.View
	front.Alpha = saturatedAlpha(a.Spring.Current)

	back := a.private.(*compositor.View)
	if front.Alpha >= 1 {
		// Fully covered: any back alpha composes to the same result.
		back.Alpha = a.Spring.Target
	} else {
		back.Alpha = (a.Spring.Target - front.Alpha) / (1 - front.Alpha)
	}
	back.Alpha = math.Max(0, math.Min(1, back.Alpha))
	back.GeometryDirty()
}

// StableFade cross-fades a front view over a back view, keeping the combined
// opacity equal to the spring target.
func StableFade(front *compositor.View, start float64, back *compositor.View, end float64, done DoneFunc, data interface{}) *Animation {
	a := run(front, 0, 0, stableFadeFrame, nil, done, data, back)

	a.Spring.Init(400, start, end)
	a.Spring.Friction = 1150

	front.Alpha = start
	back.Alpha = end
	return a
}

func slideFrame(a *Animation) {
	offset := a.Start + (a.Stop-a.Start)*a.Spring.Current

	m := a.Transform()
	m.Reset()
	m.Translate(0, offset)
}

// Slide moves the view vertically from start to stop, bouncing at the ends.
func Slide(view *compositor.View, start, stop float64, done DoneFunc, data interface{}) *Animation {
	a := run(view, start, stop, slideFrame, nil, done, data, nil)

	a.Spring.Friction = 600
	a.Spring.K = 400
	a.Spring.Clip = spring.Bounce
	return a
}

type move struct {
	dx, dy  float64
	reverse bool
	done    DoneFunc
}

func moveFrame(a *Animation) {
	mv := a.private.(*move)

	progress := a.Spring.Current
	if mv.reverse {
		progress = 1 - progress
	}
	scale := a.Start + (a.Stop-a.Start)*progress

	m := a.Transform()
	m.Reset()
	m.Scale(scale, scale)
	m.Translate(mv.dx*progress, mv.dy*progress)
}

func moveDone(a *Animation, data interface{}) {
	mv := a.private.(*move)
	if mv.done != nil {
		mv.done(a, data)
	}
}

// MoveScale scales the view from start to end while translating it by
// (dx, dy). With reverse set, it plays from the end state back to the start.
func MoveScale(view *compositor.View, dx, dy, start, end float64, reverse bool, done DoneFunc, data interface{}) *Animation {
	mv := &move{dx: dx, dy: dy, reverse: reverse, done: done}

	a := run(view, start, end, moveFrame, nil, moveDone, data, mv)
	a.Spring.K = 400
	a.Spring.Friction = 1150
	return a
}
