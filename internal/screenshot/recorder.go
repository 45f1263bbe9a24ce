package screenshot

import (
	"fmt"
	"os"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/notify"
	"github.com/bnema/waycomp/internal/wcap"
)

// DefaultFilename is where recordings go when none is configured.
const DefaultFilename = "capture.wcap"

// RecorderOptions configure a Recorder.
type RecorderOptions struct {
	Filename string
	Notifier notify.Notifier
}

// Recorder writes damaged output frames to a wcap file, one recording per
// output.
type Recorder struct {
	compositor *compositor.Compositor
	filename   string
	notifier   notify.Notifier

	recordings map[*compositor.Output]*recording
}

type recording struct {
	output  *compositor.Output
	file    *os.File
	encoder *wcap.Encoder
	format  compositor.PixelFormat

	frameListener   *compositor.Listener[*compositor.Output]
	destroyListener *compositor.Listener[*compositor.Output]

	// stopping finishes the recording on the next frame.
	stopping bool
	scratch  []byte
}

func NewRecorder(c *compositor.Compositor, opts RecorderOptions) *Recorder {
	if opts.Filename == "" {
		opts.Filename = DefaultFilename
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	return &Recorder{
		compositor: c,
		filename:   opts.Filename,
		notifier:   opts.Notifier,
		recordings: make(map[*compositor.Output]*recording),
	}
}

// Toggle starts recording o, or stops the running recording.
func (r *Recorder) Toggle(o *compositor.Output) error {
	if r.Recording(o) {
		r.Stop(o)
		return nil
	}
	return r.Start(o)
}

// Recording reports whether o is being recorded.
func (r *Recorder) Recording(o *compositor.Output) bool {
	_, ok := r.recordings[o]
	return ok
}

func wcapFormat(f compositor.PixelFormat) (wcap.Format, error) {
	switch f {
	case compositor.FormatXRGB8888:
		return wcap.FormatXRGB8888, nil
	case compositor.FormatXBGR8888:
		return wcap.FormatXBGR8888, nil
	default:
		return 0, fmt.Errorf("recorder: unsupported read format %s", f)
	}
}

// Start opens the capture file and records every damaged frame of o.
func (r *Recorder) Start(o *compositor.Output) error {
	if r.Recording(o) {
		return nil
	}
	readFormat := r.compositor.Renderer.ReadFormat()
	format, err := wcapFormat(readFormat)
	if err != nil {
		return err
	}

	f, err := os.Create(r.filename)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	enc, err := wcap.NewEncoder(f, format, o.Mode.Width, o.Mode.Height)
	if err != nil {
		f.Close()
		os.Remove(r.filename)
		return err
	}

	rec := &recording{output: o, file: f, encoder: enc, format: readFormat}
	rec.frameListener = o.FrameSignal.Add(func(o *compositor.Output) { r.frame(rec) })
	rec.destroyListener = o.Destroyed.Add(func(*compositor.Output) { r.finish(rec) })
	r.recordings[o] = rec

	o.DisablePlanes++
	o.Damage()
	shotLog.Info("recording started", "output", o.Name, "file", r.filename)
	return nil
}

// Stop ends the recording of o after the next frame.
func (r *Recorder) Stop(o *compositor.Output) {
	rec, ok := r.recordings[o]
	if !ok {
		return
	}
	rec.stopping = true
	o.ScheduleRepaint()
}

func (r *Recorder) frame(rec *recording) {
	if rec.stopping {
		r.finish(rec)
		return
	}
	o := rec.output
	if !o.FrameDamaged() {
		return
	}

	rect := transformRect(o, wcap.Rect{X2: o.Width, Y2: o.Height})
	pixels, err := r.read(rec, rect)
	if err == nil {
		err = rec.encoder.WriteFrame(o.FrameTime(), []wcap.Rect{rect}, [][]uint32{pixels})
	}
	if err != nil {
		shotLog.Error("recording failed", "output", o.Name, "err", err)
		r.finish(rec)
	}
}

// read returns the pixels of rect, top row first.
func (r *Recorder) read(rec *recording, rect wcap.Rect) ([]uint32, error) {
	o := rec.output
	renderer := r.compositor.Renderer
	w, h := rect.Width(), rect.Height()

	yflip := renderer.Capabilities()&compositor.CapCaptureYFlip != 0
	y := rect.Y1
	if yflip {
		y = o.Mode.Height - rect.Y2
	}

	size := int(w) * int(h) * 4
	if cap(rec.scratch) < size {
		rec.scratch = make([]byte, size)
	}
	buf := rec.scratch[:size]
	if err := renderer.ReadPixels(o, rec.format, buf, rect.X1, y, w, h); err != nil {
		return nil, fmt.Errorf("read pixels: %w", err)
	}

	pixels := make([]uint32, int(w)*int(h))
	for row := 0; row < int(h); row++ {
		src := row
		if yflip {
			src = int(h) - 1 - row
		}
		for col := 0; col < int(w); col++ {
			i := (src*int(w) + col) * 4
			pixels[row*int(w)+col] = uint32(buf[i]) | uint32(buf[i+1])<<8 | uint32(buf[i+2])<<16 | uint32(buf[i+3])<<24
		}
	}
	return pixels, nil
}

func (r *Recorder) finish(rec *recording) {
	o := rec.output
	if r.recordings[o] != rec {
		return
	}
	delete(r.recordings, o)
	rec.frameListener.Remove()
	rec.destroyListener.Remove()
	o.DisablePlanes--

	err := rec.encoder.Flush()
	if cerr := rec.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		shotLog.Error("failed to save recording", "file", rec.file.Name(), "err", err)
		return
	}

	shotLog.Info("recording saved", "output", o.Name, "file", rec.file.Name(),
		"frames", rec.encoder.Frames(), "bytes", rec.encoder.Size())
	body := fmt.Sprintf("%d frames written to %s", rec.encoder.Frames(), rec.file.Name())
	if err := r.notifier.Notify("Recording saved", body); err != nil {
		shotLog.Debug("notification failed", "err", err)
	}
}

// transformRect maps a rectangle in output coordinates to framebuffer
// pixels, undoing the output transform and applying its scale.
func transformRect(o *compositor.Output, r wcap.Rect) wcap.Rect {
	s := r
	switch o.Transform {
	case compositor.TransformFlipped, compositor.TransformFlipped90,
		compositor.TransformFlipped180, compositor.TransformFlipped270:
		s.X1 = o.Width - r.X2
		s.X2 = o.Width - r.X1
	}

	switch o.Transform {
	case compositor.Transform90, compositor.TransformFlipped90:
		r = wcap.Rect{X1: o.Height - s.Y2, Y1: s.X1, X2: o.Height - s.Y1, Y2: s.X2}
	case compositor.Transform180, compositor.TransformFlipped180:
		r = wcap.Rect{X1: o.Width - s.X2, Y1: o.Height - s.Y2, X2: o.Width - s.X1, Y2: o.Height - s.Y1}
	case compositor.Transform270, compositor.TransformFlipped270:
		r = wcap.Rect{X1: s.Y1, Y1: o.Width - s.X2, X2: s.Y2, Y2: o.Width - s.X1}
	default:
		r = s
	}

	r.X1 *= o.Scale
	r.Y1 *= o.Scale
	r.X2 *= o.Scale
	r.Y2 *= o.Scale
	return r
}
