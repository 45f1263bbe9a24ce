// Package screenshot captures output contents for the screenshot helper and
// records outputs to wcap files.
package screenshot

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/notify"
)

// DefaultHelperPath is the screenshot client launched by the binding.
const DefaultHelperPath = "/usr/libexec/weston-screenshooter"

var (
	ErrBadBuffer  = errors.New("screenshot: unusable buffer")
	ErrPermission = errors.New("screenshooter failed: permission denied")
)

var shotLog = logger.With("screenshot")

// Buffer is a client shared memory buffer.
type Buffer struct {
	Width  int32
	Height int32
	Stride int32
	Data   []byte
}

// NewBuffer allocates a tightly packed buffer for o's current mode.
func NewBuffer(o *compositor.Output) *Buffer {
	w, h := o.Mode.Width, o.Mode.Height
	return &Buffer{Width: w, Height: h, Stride: w * 4, Data: make([]byte, int(w)*int(h)*4)}
}

// Image converts the captured BGRX bytes to an RGBA image.
func (b *Buffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(b.Width), int(b.Height)))
	for y := 0; y < int(b.Height); y++ {
		row := b.Data[y*int(b.Stride):]
		for x := 0; x < int(b.Width); x++ {
			p := row[x*4:]
			img.SetRGBA(x, y, color.RGBA{R: p[2], G: p[1], B: p[0], A: 0xff})
		}
	}
	return img
}

// Options configure a Shooter.
type Options struct {
	// HelperPath is the screenshot client. Empty means DefaultHelperPath.
	HelperPath string
	Notifier   notify.Notifier
}

// Shooter serves capture requests from the screenshot helper. Only the
// client it launched may bind it.
type Shooter struct {
	compositor *compositor.Compositor
	path       string
	notifier   notify.Notifier

	client  *compositor.Client
	pending map[*compositor.Output]int
}

func NewShooter(c *compositor.Compositor, opts Options) *Shooter {
	if opts.HelperPath == "" {
		opts.HelperPath = DefaultHelperPath
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	return &Shooter{
		compositor: c,
		path:       opts.HelperPath,
		notifier:   opts.Notifier,
		pending:    make(map[*compositor.Output]int),
	}
}

// LaunchHelper starts the screenshot client unless one is running.
func (s *Shooter) LaunchHelper() error {
	if s.client != nil {
		return nil
	}
	proc, err := s.compositor.Launcher.Launch(s.path, s.helperExited)
	if err != nil {
		return err
	}
	s.client = proc.Client
	shotLog.Debug("screenshot helper started", "pid", proc.PID)
	return nil
}

func (s *Shooter) helperExited(p *compositor.Process, status int) {
	if p.Client == s.client {
		s.client = nil
	}
	shotLog.Debug("screenshot helper exited", "pid", p.PID, "status", status)
}

// Client returns the running helper client, or nil.
func (s *Shooter) Client() *compositor.Client {
	return s.client
}

// Bind checks that client is the launched helper. Other clients get a
// protocol error.
func (s *Shooter) Bind(client *compositor.Client) error {
	if client != nil && client == s.client {
		return nil
	}
	if client != nil {
		client.PostError(compositor.ErrorInvalidObject, "screenshooter failed: permission denied")
	}
	return ErrPermission
}

// Shoot copies the next frame of o into buf and then calls done. The
// buffer must cover the output's current mode.
func (s *Shooter) Shoot(o *compositor.Output, buf *Buffer, done func()) error {
	if buf == nil || buf.Data == nil {
		return fmt.Errorf("%w: no shared memory", ErrBadBuffer)
	}
	w, h := o.Mode.Width, o.Mode.Height
	if buf.Width < w || buf.Height < h {
		return fmt.Errorf("%w: %dx%d is smaller than output %dx%d", ErrBadBuffer, buf.Width, buf.Height, w, h)
	}
	if buf.Stride < w*4 || int64(len(buf.Data)) < int64(buf.Stride)*int64(h) {
		return fmt.Errorf("%w: stride %d with %d bytes", ErrBadBuffer, buf.Stride, len(buf.Data))
	}

	var listener *compositor.Listener[*compositor.Output]
	listener = o.FrameSignal.Add(func(o *compositor.Output) {
		listener.Remove()
		o.DisablePlanes--
		s.pending[o]--
		if s.pending[o] == 0 {
			delete(s.pending, o)
		}
		if err := s.capture(o, buf); err != nil {
			shotLog.Error("screenshot failed", "output", o.Name, "err", err)
			return
		}
		if done != nil {
			done()
		}
		if err := s.notifier.Notify("Screenshot taken", o.Name); err != nil {
			shotLog.Debug("notification failed", "err", err)
		}
	})
	o.DisablePlanes++
	s.pending[o]++
	o.ScheduleRepaint()
	return nil
}

// Pending returns the captures waiting for a frame on o.
func (s *Shooter) Pending(o *compositor.Output) int {
	return s.pending[o]
}

func (s *Shooter) capture(o *compositor.Output, buf *Buffer) error {
	r := s.compositor.Renderer
	format := r.ReadFormat()
	w, h := o.Mode.Width, o.Mode.Height

	pixels := make([]byte, int(w)*int(h)*4)
	if err := r.ReadPixels(o, format, pixels, 0, 0, w, h); err != nil {
		return fmt.Errorf("read pixels: %w", err)
	}

	yflip := r.Capabilities()&compositor.CapCaptureYFlip != 0
	row := int(w) * 4
	for y := 0; y < int(h); y++ {
		srcY := y
		if yflip {
			srcY = int(h) - 1 - y
		}
		src := pixels[srcY*row : (srcY+1)*row]
		dst := buf.Data[y*int(buf.Stride) : y*int(buf.Stride)+row]
		switch format {
		case compositor.FormatXBGR8888:
			copySwapRB(dst, src)
		default:
			copy(dst, src)
		}
	}
	return nil
}

// copySwapRB copies RGBX bytes as BGRX.
func copySwapRB(dst, src []byte) {
	for i := 0; i+3 < len(src); i += 4 {
		dst[i] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i]
		dst[i+3] = src[i+3]
	}
}
