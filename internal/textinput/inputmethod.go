package textinput

import (
	"math"

	"github.com/bnema/waycomp/internal/compositor"
)

// InputMethodClient is the bound input method helper.
type InputMethodClient interface {
	Activate(ctx *InputMethodContext)
	Deactivate(ctx *InputMethodContext)

	SurroundingText(ctx *InputMethodContext, text string, cursor, anchor uint32)
	Reset(ctx *InputMethodContext)
	ContentType(ctx *InputMethodContext, hint, purpose uint32)
	InvokeAction(ctx *InputMethodContext, button, index uint32)
	CommitState(ctx *InputMethodContext, serial uint32)
	PreferredLanguage(ctx *InputMethodContext, language string)
}

// KeymapClient is implemented by keyboard objects that accept a keymap.
type KeymapClient interface {
	SendKeymap(keymap string)
}

// InputMethod is the per-seat input method state.
type InputMethod struct {
	Seat *compositor.Seat

	backend *Backend
	binding InputMethodClient
	client  *compositor.Client

	model   *TextInput
	context *InputMethodContext

	focusListener  *compositor.Listener[*compositor.Keyboard]
	clientListener *compositor.Listener[*compositor.Client]
	seatListener   *compositor.Listener[*compositor.Seat]
}

// Model returns the active text input, or nil.
func (im *InputMethod) Model() *TextInput {
	return im.model
}

// Context returns the current context, or nil.
func (im *InputMethod) Context() *InputMethodContext {
	return im.context
}

// Bound reports whether an input method client is bound.
func (im *InputMethod) Bound() bool {
	return im.binding != nil
}

// initSeat hooks keyboard focus and the keyboard's input method grab once
// the seat has a keyboard.
func (im *InputMethod) initSeat() {
	kb := im.Seat.Keyboard
	if kb == nil || im.focusListener != nil {
		return
	}
	im.focusListener = kb.FocusSignal.Add(im.handleKeyboardFocus)
	kb.InputMethodGrab = inputMethodGrab
}

func (im *InputMethod) handleKeyboardFocus(kb *compositor.Keyboard) {
	if im.model == nil {
		return
	}
	if kb.Focus == nil || im.model.Surface != kb.Focus {
		im.model.deactivate(im)
	}
}

func (im *InputMethod) createContext(model *TextInput) {
	if im.binding == nil {
		return
	}
	ctx := &InputMethodContext{
		model:       model,
		inputMethod: im,
	}
	im.context = ctx
	im.binding.Activate(ctx)
}

// Unbind detaches the bound client. The text model stays active so a new
// binding can pick it up on the next activation.
func (im *InputMethod) Unbind() {
	if im.binding == nil {
		return
	}
	if im.context != nil && im.context.keyboard != nil {
		im.context.ReleaseKeyboard()
	}
	im.binding = nil
	im.client = nil
	im.context = nil
	im.clientListener.Remove()
	im.clientListener = nil

	if im.backend.binding == im {
		im.backend.binding = nil
	}
	textLog.Debug("input method unbound", "seat", im.Seat.Name)
}

func (im *InputMethod) destroy() {
	if im.model != nil {
		im.model.deactivate(im)
	}
	im.Unbind()
	im.focusListener.Remove()
	im.seatListener.Remove()
	if kb := im.Seat.Keyboard; kb != nil && kb.InputMethodGrab == inputMethodGrab {
		kb.InputMethodGrab = nil
	}
}

// InputMethodContext links the input method to the active text input.
type InputMethodContext struct {
	model       *TextInput
	inputMethod *InputMethod
	keyboard    compositor.KeyboardClient
	destroyed   bool
}

// Model returns the text input the context edits.
func (ctx *InputMethodContext) Model() *TextInput {
	return ctx.model
}

// target returns the text input requests apply to, or nil once the context
// is stale.
func (ctx *InputMethodContext) target() TextInputClient {
	if ctx.destroyed || ctx.model == nil || ctx.model.destroyed {
		return nil
	}
	return ctx.model.resource
}

func (ctx *InputMethodContext) CommitString(serial uint32, text string) {
	if t := ctx.target(); t != nil {
		t.CommitString(serial, text)
	}
}

func (ctx *InputMethodContext) PreeditString(serial uint32, text, commit string) {
	if t := ctx.target(); t != nil {
		t.PreeditString(serial, text, commit)
	}
}

func (ctx *InputMethodContext) PreeditStyling(index, length, style uint32) {
	if t := ctx.target(); t != nil {
		t.PreeditStyling(index, length, style)
	}
}

func (ctx *InputMethodContext) PreeditCursor(index int32) {
	if t := ctx.target(); t != nil {
		t.PreeditCursor(index)
	}
}

// DeleteSurroundingText forwards a deletion relative to the cursor. A range
// outside the known surrounding text is a protocol error.
func (ctx *InputMethodContext) DeleteSurroundingText(index int32, length uint32) error {
	t := ctx.target()
	if t == nil {
		return nil
	}
	if !ctx.validDeleteRange(index, length) {
		err := &compositor.ProtocolError{
			Code:    compositor.ErrorInvalidMethod,
			Message: "invalid delete_surrounding_text range",
		}
		if c := ctx.inputMethod.client; c != nil {
			c.PostError(err.Code, "%s", err.Message)
		}
		return err
	}
	t.DeleteSurroundingText(index, length)
	return nil
}

func (ctx *InputMethodContext) validDeleteRange(index int32, length uint32) bool {
	if length > math.MaxInt32 {
		return false
	}
	s := ctx.model.surrounding
	if !s.known {
		return true
	}
	start := int64(s.cursor) + int64(index)
	end := start + int64(length)
	return start >= 0 && end <= int64(len(s.text))
}

func (ctx *InputMethodContext) CursorPosition(index, anchor int32) {
	if t := ctx.target(); t != nil {
		t.CursorPosition(index, anchor)
	}
}

func (ctx *InputMethodContext) ModifiersMap(mapping []string) {
	if t := ctx.target(); t != nil {
		t.ModifiersMap(mapping)
	}
}

func (ctx *InputMethodContext) Keysym(serial, time, sym, state, modifiers uint32) {
	if t := ctx.target(); t != nil {
		t.Keysym(serial, time, sym, state, modifiers)
	}
}

func (ctx *InputMethodContext) Language(serial uint32, language string) {
	if t := ctx.target(); t != nil {
		t.Language(serial, language)
	}
}

func (ctx *InputMethodContext) TextDirection(serial, direction uint32) {
	if t := ctx.target(); t != nil {
		t.TextDirection(serial, direction)
	}
}

// GrabKeyboard routes the seat's raw keyboard events to kb, replacing any
// grab currently installed.
func (ctx *InputMethodContext) GrabKeyboard(kb compositor.KeyboardClient) {
	if ctx.destroyed {
		return
	}
	ctx.inputMethod.initSeat()
	keyboard := ctx.inputMethod.Seat.Keyboard
	if keyboard == nil {
		return
	}

	ctx.keyboard = kb
	if km, ok := kb.(KeymapClient); ok {
		km.SendKeymap(keyboard.Keymap)
	}

	if !keyboard.HasDefaultGrab() {
		keyboard.EndGrab()
	}
	keyboard.StartGrab(keyboard.InputMethodGrab)
	keyboard.InputMethodResource = kb
}

// ReleaseKeyboard drops the grabbed keyboard object.
func (ctx *InputMethodContext) ReleaseKeyboard() {
	ctx.endKeyboardGrab()
	ctx.keyboard = nil
}

func (ctx *InputMethodContext) endKeyboardGrab() {
	keyboard := ctx.inputMethod.Seat.Keyboard
	if keyboard == nil || keyboard.InputMethodGrab == nil {
		return
	}
	if keyboard.Grab() == keyboard.InputMethodGrab {
		keyboard.EndGrab()
	}
	keyboard.InputMethodResource = nil
}

// Key injects a key the input method did not consume back into the normal
// delivery path.
func (ctx *InputMethodContext) Key(serial, time, key uint32, state compositor.KeyState) {
	keyboard := ctx.inputMethod.Seat.Keyboard
	if keyboard == nil {
		return
	}
	keyboard.DefaultGrab().Key(keyboard, time, key, state)
}

func (ctx *InputMethodContext) Modifiers(serial uint32, mods compositor.ModifierMasks) {
	keyboard := ctx.inputMethod.Seat.Keyboard
	if keyboard == nil {
		return
	}
	keyboard.DefaultGrab().Modifiers(keyboard, serial, mods)
}

// Destroy releases the context resource.
func (ctx *InputMethodContext) Destroy() {
	if ctx.destroyed {
		return
	}
	if ctx.keyboard != nil {
		ctx.ReleaseKeyboard()
	}
	ctx.destroyed = true
}

// imKeyboardGrab forwards raw keyboard events to the input method.
type imKeyboardGrab struct{}

var inputMethodGrab compositor.KeyboardGrab = imKeyboardGrab{}

func (imKeyboardGrab) Key(k *compositor.Keyboard, time, key uint32, state compositor.KeyState) {
	if k.InputMethodResource == nil {
		return
	}
	serial := k.Seat.Compositor().NextSerial()
	k.InputMethodResource.SendKey(serial, time, key, state)
}

func (imKeyboardGrab) Modifiers(k *compositor.Keyboard, serial uint32, mods compositor.ModifierMasks) {
	if k.InputMethodResource == nil {
		return
	}
	k.InputMethodResource.SendModifiers(serial, mods)
}

func (imKeyboardGrab) Cancel(k *compositor.Keyboard) {
	k.EndGrab()
}
