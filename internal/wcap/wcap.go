// Package wcap reads and writes the wcap screen capture format.
//
// A capture starts with a header followed by frames. Each frame lists the
// damaged rectangles and then, per rectangle, the run-length encoded
// per-component difference against the previous frame.
package wcap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// Magic opens every capture.
const Magic uint32 = 0x57434150

// Format is the pixel layout of a capture, as a DRM fourcc.
type Format uint32

const (
	FormatXRGB8888 Format = 0x34325258
	FormatXBGR8888 Format = 0x34324258
	FormatRGBX8888 Format = 0x34325852
	FormatBGRX8888 Format = 0x34325842
)

func (f Format) String() string {
	switch f {
	case FormatXRGB8888:
		return "XRGB8888"
	case FormatXBGR8888:
		return "XBGR8888"
	case FormatRGBX8888:
		return "RGBX8888"
	case FormatBGRX8888:
		return "BGRX8888"
	default:
		return fmt.Sprintf("0x%08x", uint32(f))
	}
}

var (
	ErrBadMagic = errors.New("wcap: bad magic")
	ErrBadRect  = errors.New("wcap: rectangle outside frame")
	ErrCorrupt  = errors.New("wcap: corrupt frame data")
)

var byteOrder = binary.LittleEndian

// Header is the fixed start of a capture.
type Header struct {
	Magic  uint32
	Format Format
	Width  uint32
	Height uint32
}

type frameHeader struct {
	Msecs  uint32
	NRects uint32
}

// Rect is a damaged rectangle in frame pixels. X2 and Y2 are exclusive.
type Rect struct {
	X1, Y1, X2, Y2 int32
}

func (r Rect) Width() int32  { return r.X2 - r.X1 }
func (r Rect) Height() int32 { return r.Y2 - r.Y1 }

func (r Rect) empty() bool {
	return r.X2 <= r.X1 || r.Y2 <= r.Y1
}

func (r Rect) within(width, height int32) bool {
	return r.X1 >= 0 && r.Y1 >= 0 && r.X2 <= width && r.Y2 <= height && r.X1 <= r.X2 && r.Y1 <= r.Y2
}

// componentDelta subtracts prev from next one colour byte at a time, each
// wrapping at 8 bits. The top byte is dropped.
func componentDelta(next, prev uint32) uint32 {
	dr := uint8(next>>16) - uint8(prev>>16)
	dg := uint8(next>>8) - uint8(prev>>8)
	db := uint8(next) - uint8(prev)
	return uint32(dr)<<16 | uint32(dg)<<8 | uint32(db)
}

// componentAdd undoes componentDelta.
func componentAdd(v, delta uint32) uint32 {
	r := uint8(v>>16) + uint8(delta>>16)
	g := uint8(v>>8) + uint8(delta>>8)
	b := uint8(v) + uint8(delta)
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// appendRun encodes run repetitions of delta. Runs up to 0xe0 fit in one
// word; longer ones are split into power-of-two chunks tagged 0xe0 and up.
func appendRun(out []uint32, delta uint32, run int) []uint32 {
	for run > 0 {
		if run <= 0xe0 {
			out = append(out, delta|uint32(run-1)<<24)
			break
		}
		i := bits.Len32(uint32(run)) - 8
		out = append(out, delta|uint32(i+0xe0)<<24)
		run -= 1 << (7 + i)
	}
	return out
}

// runLength decodes the repeat count of an encoded word.
func runLength(word uint32) int {
	l := int(word >> 24)
	if l < 0xe0 {
		return l + 1
	}
	return 1 << (l - 0xe0 + 7)
}
