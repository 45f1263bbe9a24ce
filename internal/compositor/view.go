package compositor

// Transform is one entry in a view's transformation list.
type Transform struct {
	Matrix Matrix
	view   *View
}

// NewTransform returns an unlinked identity transform.
func NewTransform() *Transform {
	return &Transform{Matrix: Identity()}
}

// Linked reports whether the transform is attached to a view.
func (t *Transform) Linked() bool {
	return t.view != nil
}

// Remove detaches the transform from its view, if any.
func (t *Transform) Remove() {
	if t.view == nil {
		return
	}
	v := t.view
	for i, other := range v.transforms {
		if other == t {
			v.transforms = append(v.transforms[:i], v.transforms[i+1:]...)
			break
		}
	}
	t.view = nil
	v.GeometryDirty()
}

// View places a surface in the global coordinate space.
type View struct {
	Surface *Surface
	Output  *Output

	// X and Y are the untransformed position in global coordinates.
	X, Y  float64
	Alpha float64

	// Managed is set for views whose surface carries shell metadata
	// (toplevel windows). Only managed views take part in the overview.
	Managed bool

	Destroyed Signal[*View]

	compositor *Compositor
	transforms []*Transform
	dirty      bool
	destroyed  bool
}

// AddTransform links t at the head of the transformation list, so it applies
// in surface-local coordinates before any transform already present.
func (v *View) AddTransform(t *Transform) {
	if t.view != nil {
		t.Remove()
	}
	t.view = v
	v.transforms = append([]*Transform{t}, v.transforms...)
	v.GeometryDirty()
}

// Transforms returns the transformation list in application order.
func (v *View) Transforms() []*Transform {
	return v.transforms
}

// Matrix returns the surface-local to global mapping.
func (v *View) Matrix() Matrix {
	m := Identity()
	for _, t := range v.transforms {
		m.Multiply(t.Matrix)
	}
	m.Translate(v.X, v.Y)
	return m
}

// Bounds is the transformed bounding box of the view.
func (v *View) Bounds() Rect {
	var w, h float64
	if v.Surface != nil {
		w, h = float64(v.Surface.Width), float64(v.Surface.Height)
	}
	return v.Matrix().BoundingBox(Rect{Width: w, Height: h})
}

// SetPosition moves the view.
func (v *View) SetPosition(x, y float64) {
	v.X, v.Y = x, y
	v.GeometryDirty()
}

// GeometryDirty marks the cached geometry as stale.
func (v *View) GeometryDirty() {
	v.dirty = true
}

// IsGeometryDirty reports and clears the dirty flag.
func (v *View) IsGeometryDirty() bool {
	d := v.dirty
	v.dirty = false
	return d
}

// ScheduleRepaint asks the view's output for another frame.
func (v *View) ScheduleRepaint() {
	if v.Output != nil {
		v.Output.ScheduleRepaint()
		return
	}
	if v.compositor != nil {
		v.compositor.ScheduleRepaint()
	}
}

// Compositor returns the compositor the view belongs to.
func (v *View) Compositor() *Compositor {
	return v.compositor
}

// Destroy fires the destroy observers once and unlinks the view.
func (v *View) Destroy() {
	if v.destroyed {
		return
	}
	v.destroyed = true
	v.Destroyed.Emit(v)

	for len(v.transforms) > 0 {
		v.transforms[0].Remove()
	}
	if v.Surface != nil {
		views := v.Surface.views
		for i, other := range views {
			if other == v {
				v.Surface.views = append(views[:i], views[i+1:]...)
				break
			}
		}
	}
	if v.compositor != nil {
		v.compositor.removeView(v)
	}
}

func (v *View) IsDestroyed() bool {
	return v.destroyed
}

// FromGlobal maps a global point into surface-local coordinates.
func (v *View) FromGlobal(x, y float64) (float64, float64) {
	inv, ok := v.Matrix().Invert()
	if !ok {
		return x - v.X, y - v.Y
	}
	return inv.Apply(x, y)
}
