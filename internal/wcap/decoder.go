package wcap

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
)

// Decoder replays a capture frame by frame.
type Decoder struct {
	Header Header
	// Msecs is the timestamp of the current frame.
	Msecs uint32

	r      *bufio.Reader
	frame  []uint32
	frames int
}

// NewDecoder reads and checks the capture header.
func NewDecoder(r io.Reader) (*Decoder, error) {
	d := &Decoder{r: bufio.NewReader(r)}
	if err := binary.Read(d.r, byteOrder, &d.Header); err != nil {
		return nil, fmt.Errorf("wcap: read header: %w", err)
	}
	if d.Header.Magic != Magic {
		return nil, fmt.Errorf("%w: 0x%08x", ErrBadMagic, d.Header.Magic)
	}
	if d.Header.Width == 0 || d.Header.Height == 0 {
		return nil, fmt.Errorf("wcap: invalid size %dx%d", d.Header.Width, d.Header.Height)
	}
	d.frame = make([]uint32, int(d.Header.Width)*int(d.Header.Height))
	return d, nil
}

// Next applies the next frame. It returns io.EOF once the capture ends.
func (d *Decoder) Next() error {
	var fh frameHeader
	if err := binary.Read(d.r, byteOrder, &fh); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("wcap: read frame header: %w", err)
	}

	if uint64(fh.NRects) > uint64(len(d.frame)) {
		return fmt.Errorf("%w: %d rectangles", ErrCorrupt, fh.NRects)
	}
	rects := make([]Rect, fh.NRects)
	if err := binary.Read(d.r, byteOrder, rects); err != nil {
		return fmt.Errorf("wcap: read rectangles: %w", unexpected(err))
	}
	for _, r := range rects {
		if !r.within(int32(d.Header.Width), int32(d.Header.Height)) {
			return fmt.Errorf("%w: %+v", ErrBadRect, r)
		}
		if err := d.decodeRect(r); err != nil {
			return err
		}
	}
	d.Msecs = fh.Msecs
	d.frames++
	return nil
}

func (d *Decoder) decodeRect(r Rect) error {
	if r.empty() {
		return nil
	}
	width := int(r.Width())
	total := width * int(r.Height())
	stride := int(d.Header.Width)

	var word [4]byte
	for i := 0; i < total; {
		if _, err := io.ReadFull(d.r, word[:]); err != nil {
			return fmt.Errorf("wcap: read frame data: %w", unexpected(err))
		}
		v := byteOrder.Uint32(word[:])
		run := runLength(v)
		if i+run > total {
			return fmt.Errorf("%w: run of %d overflows rectangle", ErrCorrupt, run)
		}
		delta := v & 0x00ffffff
		for end := i + run; i < end; i++ {
			p := (int(r.Y1)+i/width)*stride + int(r.X1) + i%width
			d.frame[p] = componentAdd(d.frame[p], delta)
		}
	}
	return nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Frames returns the number of frames decoded so far.
func (d *Decoder) Frames() int {
	return d.frames
}

// Pixels returns the current frame, row-major, in the capture's format.
func (d *Decoder) Pixels() []uint32 {
	return d.frame
}

// Image converts the current frame to an opaque RGBA image.
func (d *Decoder) Image() *image.RGBA {
	w, h := int(d.Header.Width), int(d.Header.Height)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, toRGBA(d.Header.Format, d.frame[y*w+x]))
		}
	}
	return img
}

func toRGBA(f Format, v uint32) color.RGBA {
	c := color.RGBA{A: 0xff}
	switch f {
	case FormatXBGR8888:
		c.R, c.G, c.B = uint8(v), uint8(v>>8), uint8(v>>16)
	case FormatRGBX8888:
		c.R, c.G, c.B = uint8(v>>24), uint8(v>>16), uint8(v>>8)
	case FormatBGRX8888:
		c.R, c.G, c.B = uint8(v>>8), uint8(v>>16), uint8(v>>24)
	default:
		c.R, c.G, c.B = uint8(v>>16), uint8(v>>8), uint8(v)
	}
	return c
}

// EncodeImage writes img as "png" or "bmp".
func EncodeImage(w io.Writer, img image.Image, kind string) error {
	switch kind {
	case "", "png":
		return png.Encode(w, img)
	case "bmp":
		return bmp.Encode(w, img)
	default:
		return fmt.Errorf("wcap: unknown image format %q", kind)
	}
}
