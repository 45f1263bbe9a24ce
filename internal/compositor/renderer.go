package compositor

import (
	"errors"
	"fmt"
)

// PixelFormat identifies a 32-bit pixel layout by its DRM fourcc.
type PixelFormat uint32

const (
	// FormatXRGB8888 stores B, G, R, X bytes in memory.
	FormatXRGB8888 PixelFormat = 0x34325258
	// FormatXBGR8888 stores R, G, B, X bytes in memory.
	FormatXBGR8888 PixelFormat = 0x34324258
)

func (f PixelFormat) String() string {
	switch f {
	case FormatXRGB8888:
		return "XRGB8888"
	case FormatXBGR8888:
		return "XBGR8888"
	default:
		return fmt.Sprintf("0x%08x", uint32(f))
	}
}

// Capability flags advertised by the renderer.
type Capability uint32

const (
	// CapCaptureYFlip means ReadPixels returns rows bottom-up.
	CapCaptureYFlip Capability = 1 << iota
)

var ErrOutOfBounds = errors.New("read outside output")

// Renderer is the external painting backend.
type Renderer interface {
	// ReadPixels copies a w×h rectangle at (x, y) of the output's
	// framebuffer into dst, 4 bytes per pixel, tightly packed.
	ReadPixels(o *Output, format PixelFormat, dst []byte, x, y, w, h int32) error
	ReadFormat() PixelFormat
	Capabilities() Capability
}

// MemoryRenderer keeps one framebuffer per output in memory. It backs the
// headless runtime and tests.
type MemoryRenderer struct {
	Format PixelFormat
	Caps   Capability

	framebuffers map[*Output][]uint32
}

func NewMemoryRenderer(format PixelFormat) *MemoryRenderer {
	return &MemoryRenderer{
		Format:       format,
		framebuffers: make(map[*Output][]uint32),
	}
}

// Framebuffer returns the pixel store of an output, allocating it on first use.
// Pixels are row-major top-down, one uint32 per pixel in the read format.
func (r *MemoryRenderer) Framebuffer(o *Output) []uint32 {
	fb, ok := r.framebuffers[o]
	if !ok || len(fb) != int(o.Mode.Width*o.Mode.Height) {
		fb = make([]uint32, o.Mode.Width*o.Mode.Height)
		r.framebuffers[o] = fb
	}
	return fb
}

func (r *MemoryRenderer) ReadFormat() PixelFormat {
	return r.Format
}

func (r *MemoryRenderer) Capabilities() Capability {
	return r.Caps
}

func (r *MemoryRenderer) ReadPixels(o *Output, format PixelFormat, dst []byte, x, y, w, h int32) error {
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > o.Mode.Width || y+h > o.Mode.Height {
		return ErrOutOfBounds
	}
	if len(dst) < int(w*h*4) {
		return fmt.Errorf("read pixels: buffer too small (%d < %d)", len(dst), w*h*4)
	}
	if format != r.Format {
		return fmt.Errorf("read pixels: unsupported format %s", format)
	}

	fb := r.Framebuffer(o)
	i := 0
	for row := int32(0); row < h; row++ {
		src := y + row
		if r.Caps&CapCaptureYFlip != 0 {
			src = o.Mode.Height - 1 - (y + row)
		}
		for col := int32(0); col < w; col++ {
			v := fb[src*o.Mode.Width+x+col]
			dst[i] = byte(v)
			dst[i+1] = byte(v >> 8)
			dst[i+2] = byte(v >> 16)
			dst[i+3] = byte(v >> 24)
			i += 4
		}
	}
	return nil
}
