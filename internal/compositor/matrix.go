package compositor

import "math"

// Matrix is a 2D affine transform:
//
//	x' = XX*x + XY*y + TX
//	y' = YX*x + YY*y + TY
//
// Translate, Scale and Multiply append an operation that is applied after
// the ones already in the matrix.
type Matrix struct {
	XX, XY, TX float64
	YX, YY, TY float64
}

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{XX: 1, YY: 1}
}

func (m *Matrix) Reset() {
	*m = Identity()
}

func (m *Matrix) Translate(x, y float64) {
	m.TX += x
	m.TY += y
}

func (m *Matrix) Scale(sx, sy float64) {
	m.XX *= sx
	m.XY *= sx
	m.TX *= sx
	m.YX *= sy
	m.YY *= sy
	m.TY *= sy
}

// Multiply appends n to m, so the result maps p to n(m(p)).
func (m *Matrix) Multiply(n Matrix) {
	*m = Matrix{
		XX: n.XX*m.XX + n.XY*m.YX,
		XY: n.XX*m.XY + n.XY*m.YY,
		TX: n.XX*m.TX + n.XY*m.TY + n.TX,
		YX: n.YX*m.XX + n.YY*m.YX,
		YY: n.YX*m.XY + n.YY*m.YY,
		TY: n.YX*m.TX + n.YY*m.TY + n.TY,
	}
}

// Apply maps a point through the matrix.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.XX*x + m.XY*y + m.TX, m.YX*x + m.YY*y + m.TY
}

// Rect is an axis-aligned rectangle in global coordinates.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Contains reports whether the point lies inside the rectangle, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// BoundingBox returns the rectangle covering r after transformation by m.
func (m Matrix) BoundingBox(r Rect) Rect {
	xs := [4]float64{r.X, r.X + r.Width, r.X, r.X + r.Width}
	ys := [4]float64{r.Y, r.Y, r.Y + r.Height, r.Y + r.Height}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := range xs {
		x, y := m.Apply(xs[i], ys[i])
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Invert returns the inverse mapping. A singular matrix yields false.
func (m Matrix) Invert() (Matrix, bool) {
	det := m.XX*m.YY - m.XY*m.YX
	if det == 0 {
		return Matrix{}, false
	}
	inv := Matrix{
		XX: m.YY / det,
		XY: -m.XY / det,
		YX: -m.YX / det,
		YY: m.XX / det,
	}
	inv.TX = -(inv.XX*m.TX + inv.XY*m.TY)
	inv.TY = -(inv.YX*m.TX + inv.YY*m.TY)
	return inv, true
}
