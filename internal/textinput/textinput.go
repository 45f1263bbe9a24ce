// Package textinput bridges text entry clients and the input method helper.
//
// A TextInput is a client's text field. Each seat has one InputMethod; while
// a text input is active on the seat, an InputMethodContext links the two and
// carries editing requests in both directions.
package textinput

import (
	"github.com/bnema/waycomp/internal/compositor"
	"github.com/bnema/waycomp/internal/logger"
)

var textLog = logger.With("text")

// TextInputClient receives the events of one text input.
type TextInputClient interface {
	Enter(surface *compositor.Surface)
	Leave()
	CommitString(serial uint32, text string)
	PreeditString(serial uint32, text, commit string)
	PreeditStyling(index, length, style uint32)
	PreeditCursor(index int32)
	DeleteSurroundingText(index int32, length uint32)
	CursorPosition(index, anchor int32)
	ModifiersMap(mapping []string)
	Keysym(serial, time, sym, state, modifiers uint32)
	Language(serial uint32, language string)
	TextDirection(serial, direction uint32)
}

// Manager creates text inputs for clients.
type Manager struct {
	backend *Backend
	inputs  []*TextInput
}

// CreateTextInput returns a new inactive text input. It is destroyed with
// its client.
func (m *Manager) CreateTextInput(client *compositor.Client, resource TextInputClient) *TextInput {
	ti := &TextInput{
		Client:   client,
		manager:  m,
		resource: resource,
	}
	m.inputs = append(m.inputs, ti)
	if client != nil {
		ti.clientDestroyed = client.Destroyed.Add(func(*compositor.Client) { ti.Destroy() })
	}
	return ti
}

// TextInputs returns the live text inputs.
func (m *Manager) TextInputs() []*TextInput {
	return m.inputs
}

func (m *Manager) remove(ti *TextInput) {
	for i, other := range m.inputs {
		if other == ti {
			m.inputs = append(m.inputs[:i], m.inputs[i+1:]...)
			return
		}
	}
}

// TextInput is a client text field.
type TextInput struct {
	Client  *compositor.Client
	Surface *compositor.Surface

	CursorRectangle   compositor.Rect
	InputPanelVisible bool

	manager  *Manager
	resource TextInputClient
	// inputMethods holds the input methods this text input is active on.
	inputMethods []*InputMethod

	surrounding struct {
		text           string
		cursor, anchor uint32
		known          bool
	}

	clientDestroyed *compositor.Listener[*compositor.Client]
	destroyed       bool
}

func (ti *TextInput) compositor() *compositor.Compositor {
	return ti.manager.backend.compositor
}

// Active reports whether the text input is active on any seat.
func (ti *TextInput) Active() bool {
	return len(ti.inputMethods) > 0
}

// Activate makes ti the seat's text model. A different model active on the
// seat is deactivated first.
func (ti *TextInput) Activate(seat *compositor.Seat, surface *compositor.Surface) {
	if ti.destroyed {
		return
	}
	im := ti.manager.backend.ensureInputMethod(seat)
	old := im.model
	if old == ti {
		return
	}
	if old != nil {
		old.deactivate(im)
	}

	im.model = ti
	ti.inputMethods = append(ti.inputMethods, im)
	im.initSeat()

	ti.Surface = surface

	im.createContext(ti)

	c := ti.compositor()
	if ti.InputPanelVisible {
		c.ShowInputPanel.Emit(ti.Surface)
		c.UpdateInputPanel.Emit(ti.CursorRectangle)
	}

	ti.resource.Enter(ti.Surface)
	textLog.Debug("text input activated", "seat", seat.Name, "surface", surfaceID(surface))
}

// Deactivate ends ti's activation on seat. It is a no-op when ti is not the
// seat's model.
func (ti *TextInput) Deactivate(seat *compositor.Seat) {
	im := ti.manager.backend.InputMethod(seat)
	if im == nil {
		return
	}
	ti.deactivate(im)
}

func (ti *TextInput) deactivate(im *InputMethod) {
	if im.model != ti {
		return
	}

	if im.context != nil && im.binding != nil {
		im.context.endKeyboardGrab()
		im.binding.Deactivate(im.context)
	}

	ti.unlink(im)
	im.model = nil
	im.context = nil

	c := ti.compositor()
	c.HideInputPanel.Emit(c)
	if !ti.destroyed {
		ti.resource.Leave()
	}
	textLog.Debug("text input deactivated", "seat", im.Seat.Name)
}

func (ti *TextInput) unlink(im *InputMethod) {
	for i, other := range ti.inputMethods {
		if other == im {
			ti.inputMethods = append(ti.inputMethods[:i], ti.inputMethods[i+1:]...)
			return
		}
	}
}

// Destroy deactivates ti everywhere. It is safe to call more than once.
func (ti *TextInput) Destroy() {
	if ti.destroyed {
		return
	}
	ti.destroyed = true
	for _, im := range append([]*InputMethod(nil), ti.inputMethods...) {
		ti.deactivate(im)
	}
	ti.clientDestroyed.Remove()
	ti.manager.remove(ti)
}

// eachContext calls fn for every input method context attached to ti.
func (ti *TextInput) eachContext(fn func(binding InputMethodClient, ctx *InputMethodContext)) {
	for _, im := range append([]*InputMethod(nil), ti.inputMethods...) {
		if im.context == nil || im.binding == nil {
			continue
		}
		fn(im.binding, im.context)
	}
}

func (ti *TextInput) SetSurroundingText(text string, cursor, anchor uint32) {
	ti.surrounding.text = text
	ti.surrounding.cursor = cursor
	ti.surrounding.anchor = anchor
	ti.surrounding.known = true

	ti.eachContext(func(b InputMethodClient, ctx *InputMethodContext) {
		b.SurroundingText(ctx, text, cursor, anchor)
	})
}

func (ti *TextInput) Reset() {
	ti.eachContext(func(b InputMethodClient, ctx *InputMethodContext) {
		b.Reset(ctx)
	})
}

func (ti *TextInput) SetContentType(hint, purpose uint32) {
	ti.eachContext(func(b InputMethodClient, ctx *InputMethodContext) {
		b.ContentType(ctx, hint, purpose)
	})
}

func (ti *TextInput) InvokeAction(button, index uint32) {
	ti.eachContext(func(b InputMethodClient, ctx *InputMethodContext) {
		b.InvokeAction(ctx, button, index)
	})
}

func (ti *TextInput) CommitState(serial uint32) {
	ti.eachContext(func(b InputMethodClient, ctx *InputMethodContext) {
		b.CommitState(ctx, serial)
	})
}

func (ti *TextInput) SetPreferredLanguage(language string) {
	ti.eachContext(func(b InputMethodClient, ctx *InputMethodContext) {
		b.PreferredLanguage(ctx, language)
	})
}

// SetCursorRectangle records the cursor area, in surface coordinates, and
// moves the input panel next to it.
func (ti *TextInput) SetCursorRectangle(x, y, width, height int32) {
	ti.CursorRectangle = compositor.Rect{
		X:      float64(x),
		Y:      float64(y),
		Width:  float64(width),
		Height: float64(height),
	}
	ti.compositor().UpdateInputPanel.Emit(ti.CursorRectangle)
}

func (ti *TextInput) ShowInputPanel() {
	ti.InputPanelVisible = true
	if ti.Active() {
		c := ti.compositor()
		c.ShowInputPanel.Emit(ti.Surface)
		c.UpdateInputPanel.Emit(ti.CursorRectangle)
	}
}

func (ti *TextInput) HideInputPanel() {
	ti.InputPanelVisible = false
	if ti.Active() {
		c := ti.compositor()
		c.HideInputPanel.Emit(c)
	}
}

func surfaceID(s *compositor.Surface) uint32 {
	if s == nil {
		return 0
	}
	return s.ID
}
