package wcap

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Encoder writes a capture. It keeps a copy of the last frame to compute
// deltas against.
type Encoder struct {
	w      *bufio.Writer
	width  int32
	height int32
	frame  []uint32
	words  []uint32

	frames  int
	written int64
}

// NewEncoder writes the capture header for a width×height stream.
func NewEncoder(w io.Writer, format Format, width, height int32) (*Encoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("wcap: invalid size %dx%d", width, height)
	}
	e := &Encoder{
		w:      bufio.NewWriter(w),
		width:  width,
		height: height,
		frame:  make([]uint32, int(width)*int(height)),
	}
	h := Header{Magic: Magic, Format: format, Width: uint32(width), Height: uint32(height)}
	if err := e.write(h); err != nil {
		return nil, fmt.Errorf("wcap: write header: %w", err)
	}
	return e, nil
}

func (e *Encoder) write(v interface{}) error {
	if err := binary.Write(e.w, byteOrder, v); err != nil {
		return err
	}
	e.written += int64(binary.Size(v))
	return nil
}

// WriteFrame appends one frame. pixels[i] holds the content of rects[i],
// row-major from the top row down.
func (e *Encoder) WriteFrame(msecs uint32, rects []Rect, pixels [][]uint32) error {
	if len(pixels) != len(rects) {
		return fmt.Errorf("wcap: %d rectangles but %d pixel blocks", len(rects), len(pixels))
	}
	for i, r := range rects {
		if !r.within(e.width, e.height) {
			return fmt.Errorf("%w: %+v", ErrBadRect, r)
		}
		if want := int(r.Width()) * int(r.Height()); len(pixels[i]) < want {
			return fmt.Errorf("wcap: rectangle %d has %d pixels, want %d", i, len(pixels[i]), want)
		}
	}

	if err := e.write(frameHeader{Msecs: msecs, NRects: uint32(len(rects))}); err != nil {
		return fmt.Errorf("wcap: write frame header: %w", err)
	}
	if err := e.write(rects); err != nil {
		return fmt.Errorf("wcap: write rectangles: %w", err)
	}
	for i, r := range rects {
		e.words = e.encodeRect(e.words[:0], r, pixels[i])
		if err := e.write(e.words); err != nil {
			return fmt.Errorf("wcap: write frame data: %w", err)
		}
	}
	e.frames++
	return nil
}

func (e *Encoder) encodeRect(out []uint32, r Rect, src []uint32) []uint32 {
	if r.empty() {
		return out
	}
	width := int(r.Width())
	var prev uint32
	run := 0
	for row := 0; row < int(r.Height()); row++ {
		line := e.frame[(int(r.Y1)+row)*int(e.width)+int(r.X1):]
		for col := 0; col < width; col++ {
			next := src[row*width+col]
			delta := componentDelta(next, line[col])
			line[col] = next
			if run == 0 || delta == prev {
				run++
			} else {
				out = appendRun(out, prev, run)
				run = 1
			}
			prev = delta
		}
	}
	return appendRun(out, prev, run)
}

// Frames returns the number of frames written.
func (e *Encoder) Frames() int {
	return e.frames
}

// Size returns the bytes written so far, header included.
func (e *Encoder) Size() int64 {
	return e.written
}

// Flush pushes buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}
