package wcap

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendRun(t *testing.T) {
	const delta = 0x00102030
	tests := []struct {
		name string
		run  int
		want []uint32
	}{
		{"single", 1, []uint32{delta}},
		{"short", 10, []uint32{delta | 9<<24}},
		{"longest single word", 0xe0, []uint32{delta | 0xdf<<24}},
		{"just over", 0xe1, []uint32{delta | 0xe0<<24, delta | 96<<24}},
		{"power of two", 256, []uint32{delta | 0xe1<<24}},
		{"split", 300, []uint32{delta | 0xe1<<24, delta | 43<<24}},
		{"empty", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := appendRun(nil, delta, tt.run)
			assert.Equal(t, tt.want, got)

			total := 0
			for _, w := range got {
				assert.Equal(t, uint32(delta), w&0x00ffffff)
				total += runLength(w)
			}
			assert.Equal(t, tt.run, total)
		})
	}
}

func TestComponentDelta(t *testing.T) {
	prev := uint32(0x000305ff)
	next := uint32(0xff010203)

	d := componentDelta(next, prev)
	assert.Equal(t, uint32(0x00fefd04), d)
	assert.Equal(t, next&0x00ffffff, componentAdd(prev, d))
	assert.Zero(t, componentDelta(0x00aabbcc, 0xffaabbcc))
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, FormatXRGB8888, 4, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(16), enc.Size())

	want := make([]uint32, 12)
	paint := func(r Rect, color uint32) []uint32 {
		px := make([]uint32, r.Width()*r.Height())
		for i := range px {
			px[i] = color + uint32(i)
		}
		for row := int32(0); row < r.Height(); row++ {
			for col := int32(0); col < r.Width(); col++ {
				want[(r.Y1+row)*4+r.X1+col] = px[row*r.Width()+col]
			}
		}
		return px
	}

	frames := []struct {
		msecs uint32
		rects []Rect
	}{
		{10, []Rect{{0, 0, 4, 3}}},
		{26, []Rect{{1, 1, 3, 3}}},
		{42, []Rect{{0, 0, 1, 1}, {3, 2, 4, 3}}},
		{58, nil},
	}

	var snapshots [][]uint32
	for i, f := range frames {
		pixels := make([][]uint32, len(f.rects))
		for j, r := range f.rects {
			pixels[j] = paint(r, uint32(0x101010*(i+1)))
		}
		require.NoError(t, enc.WriteFrame(f.msecs, f.rects, pixels))
		snapshots = append(snapshots, append([]uint32(nil), want...))
	}
	require.NoError(t, enc.Flush())
	assert.Equal(t, len(frames), enc.Frames())
	assert.Equal(t, int64(buf.Len()), enc.Size())

	dec, err := NewDecoder(&buf)
	require.NoError(t, err)
	assert.Equal(t, FormatXRGB8888, dec.Header.Format)
	assert.Equal(t, uint32(4), dec.Header.Width)
	assert.Equal(t, uint32(3), dec.Header.Height)

	for i, f := range frames {
		require.NoError(t, dec.Next())
		assert.Equal(t, f.msecs, dec.Msecs)
		assert.Equal(t, snapshots[i], dec.Pixels(), "frame %d", i)
	}
	assert.Equal(t, io.EOF, dec.Next())
	assert.Equal(t, len(frames), dec.Frames())
}

func TestEncoderRejectsBadInput(t *testing.T) {
	_, err := NewEncoder(io.Discard, FormatXRGB8888, 0, 10)
	assert.Error(t, err)

	enc, err := NewEncoder(io.Discard, FormatXRGB8888, 4, 4)
	require.NoError(t, err)

	err = enc.WriteFrame(0, []Rect{{2, 2, 5, 3}}, [][]uint32{make([]uint32, 3)})
	assert.ErrorIs(t, err, ErrBadRect)

	err = enc.WriteFrame(0, []Rect{{0, 0, 2, 2}}, [][]uint32{make([]uint32, 3)})
	assert.Error(t, err)

	err = enc.WriteFrame(0, []Rect{{0, 0, 2, 2}}, nil)
	assert.Error(t, err)
	assert.Zero(t, enc.Frames())
}

func TestDecoderErrors(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, Header{Magic: 1, Width: 1, Height: 1}))
		_, err := NewDecoder(&buf)
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("short header", func(t *testing.T) {
		_, err := NewDecoder(bytes.NewReader([]byte{0x50, 0x41}))
		assert.Error(t, err)
	})

	t.Run("truncated frame", func(t *testing.T) {
		var buf bytes.Buffer
		enc, err := NewEncoder(&buf, FormatXRGB8888, 2, 2)
		require.NoError(t, err)
		require.NoError(t, enc.WriteFrame(1, []Rect{{0, 0, 2, 2}}, [][]uint32{{1, 2, 3, 4}}))
		require.NoError(t, enc.Flush())

		data := buf.Bytes()[:buf.Len()-4]
		dec, err := NewDecoder(bytes.NewReader(data))
		require.NoError(t, err)
		assert.ErrorIs(t, dec.Next(), io.ErrUnexpectedEOF)
	})

	t.Run("run overflows rectangle", func(t *testing.T) {
		var buf bytes.Buffer
		w := func(v interface{}) { require.NoError(t, binary.Write(&buf, binary.LittleEndian, v)) }
		w(Header{Magic: Magic, Format: FormatXRGB8888, Width: 2, Height: 2})
		w(frameHeader{Msecs: 1, NRects: 1})
		w(Rect{0, 0, 1, 1})
		w(uint32(5 << 24))

		dec, err := NewDecoder(&buf)
		require.NoError(t, err)
		assert.ErrorIs(t, dec.Next(), ErrCorrupt)
	})
}

func TestImageFormats(t *testing.T) {
	tests := []struct {
		format  Format
		pixel   uint32
		r, g, b uint8
	}{
		{FormatXRGB8888, 0x00112233, 0x11, 0x22, 0x33},
		{FormatXBGR8888, 0x00112233, 0x33, 0x22, 0x11},
		{FormatRGBX8888, 0x11223300, 0x11, 0x22, 0x33},
		{FormatBGRX8888, 0x33221100, 0x11, 0x22, 0x33},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			c := toRGBA(tt.format, tt.pixel)
			assert.Equal(t, [4]uint8{tt.r, tt.g, tt.b, 0xff}, [4]uint8{c.R, c.G, c.B, c.A})
		})
	}
}

func TestEncodeImage(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, FormatXRGB8888, 2, 1)
	require.NoError(t, err)
	require.NoError(t, enc.WriteFrame(0, []Rect{{0, 0, 2, 1}}, [][]uint32{{0xff0000, 0x00ff00}}))
	require.NoError(t, enc.Flush())

	dec, err := NewDecoder(&buf)
	require.NoError(t, err)
	require.NoError(t, dec.Next())

	img := dec.Image()
	assert.Equal(t, uint8(0xff), img.RGBAAt(0, 0).R)
	assert.Equal(t, uint8(0xff), img.RGBAAt(1, 0).G)

	var out bytes.Buffer
	require.NoError(t, EncodeImage(&out, img, "png"))
	assert.True(t, bytes.HasPrefix(out.Bytes(), []byte("\x89PNG")))

	out.Reset()
	require.NoError(t, EncodeImage(&out, img, "bmp"))
	assert.True(t, bytes.HasPrefix(out.Bytes(), []byte("BM")))

	assert.Error(t, EncodeImage(&out, img, "gif"))
}
