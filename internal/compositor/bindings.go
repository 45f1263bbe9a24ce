package compositor

type (
	KeyBindingHandler      func(seat *Seat, time, key uint32)
	ModifierBindingHandler func(seat *Seat, mod Modifier)
	ButtonBindingHandler   func(seat *Seat, time, button uint32)
	TouchBindingHandler    func(seat *Seat, time uint32)
	AxisBindingHandler     func(seat *Seat, time uint32, axis Axis, value float64)
)

// Binding is a registered compositor shortcut.
type Binding struct {
	key      uint32
	button   uint32
	axis     Axis
	modifier Modifier

	onKey      KeyBindingHandler
	onModifier ModifierBindingHandler
	onButton   ButtonBindingHandler
	onTouch    TouchBindingHandler
	onAxis     AxisBindingHandler

	list *[]*Binding
}

// Destroy unregisters the binding.
func (b *Binding) Destroy() {
	if b.list == nil {
		return
	}
	list := *b.list
	for i, other := range list {
		if other == b {
			*b.list = append(list[:i], list[i+1:]...)
			break
		}
	}
	b.list = nil
}

type bindings struct {
	key      []*Binding
	modifier []*Binding
	button   []*Binding
	touch    []*Binding
	axis     []*Binding
	debug    []*Binding
}

func (c *Compositor) addBinding(list *[]*Binding, b *Binding) *Binding {
	b.list = list
	*list = append(*list, b)
	return b
}

// AddKeyBinding runs handler when key is pressed with exactly mod held.
func (c *Compositor) AddKeyBinding(key uint32, mod Modifier, handler KeyBindingHandler) *Binding {
	return c.addBinding(&c.bindings.key, &Binding{key: key, modifier: mod, onKey: handler})
}

// AddModifierBinding runs handler when mod is pressed and released with
// nothing else pressed in between.
func (c *Compositor) AddModifierBinding(mod Modifier, handler ModifierBindingHandler) *Binding {
	return c.addBinding(&c.bindings.modifier, &Binding{modifier: mod, onModifier: handler})
}

func (c *Compositor) AddButtonBinding(button uint32, mod Modifier, handler ButtonBindingHandler) *Binding {
	return c.addBinding(&c.bindings.button, &Binding{button: button, modifier: mod, onButton: handler})
}

// AddTouchBinding runs handler on the first touch down with mod held.
func (c *Compositor) AddTouchBinding(mod Modifier, handler TouchBindingHandler) *Binding {
	return c.addBinding(&c.bindings.touch, &Binding{modifier: mod, onTouch: handler})
}

func (c *Compositor) AddAxisBinding(axis Axis, mod Modifier, handler AxisBindingHandler) *Binding {
	return c.addBinding(&c.bindings.axis, &Binding{axis: axis, modifier: mod, onAxis: handler})
}

// AddDebugBinding registers a handler for the debug key chord.
func (c *Compositor) AddDebugBinding(key uint32, handler KeyBindingHandler) *Binding {
	return c.addBinding(&c.bindings.debug, &Binding{key: key, onKey: handler})
}

// invalidateModifierBindings records that something other than a bare
// modifier happened, so pending modifier bindings will not fire.
func (c *Compositor) invalidateModifierBindings(code uint32) {
	for _, b := range c.bindings.modifier {
		b.key = code
	}
}

// RunKeyBinding runs the key bindings matching a press.
func (c *Compositor) RunKeyBinding(seat *Seat, time, key uint32, state KeyState) {
	if state == KeyReleased {
		return
	}

	c.invalidateModifierBindings(key)

	for _, b := range append([]*Binding(nil), c.bindings.key...) {
		if b.key != key || b.modifier != seat.ModifierState {
			continue
		}
		b.onKey(seat, time, key)

		// Swallow the release unless the handler installed its own grab.
		if seat.Keyboard.HasDefaultGrab() {
			seat.Keyboard.StartGrab(&bindingGrab{key: key})
		}
	}
}

// RunModifierBinding primes modifier bindings on press and fires them on
// release. Only runs while the keyboard has no grab.
func (c *Compositor) RunModifierBinding(seat *Seat, mod Modifier, state KeyState) {
	if !seat.Keyboard.HasDefaultGrab() {
		return
	}

	for _, b := range append([]*Binding(nil), c.bindings.modifier...) {
		if b.modifier != mod {
			continue
		}
		if state == KeyPressed {
			b.key = 0
			continue
		}
		if b.key != 0 {
			return
		}
		b.onModifier(seat, mod)
	}
}

func (c *Compositor) RunButtonBinding(seat *Seat, time, button uint32, state ButtonState) {
	if state == ButtonReleased {
		return
	}

	c.invalidateModifierBindings(button)

	for _, b := range append([]*Binding(nil), c.bindings.button...) {
		if b.button == button && b.modifier == seat.ModifierState {
			b.onButton(seat, time, button)
		}
	}
}

func (c *Compositor) RunTouchBinding(seat *Seat, time uint32, typ TouchType) {
	if seat.Touch == nil || seat.Touch.NumTP != 1 || typ != TouchDown {
		return
	}

	for _, b := range append([]*Binding(nil), c.bindings.touch...) {
		if b.modifier == seat.ModifierState {
			b.onTouch(seat, time)
		}
	}
}

// RunAxisBinding reports whether a binding consumed the scroll event.
func (c *Compositor) RunAxisBinding(seat *Seat, time uint32, axis Axis, value float64) bool {
	c.invalidateModifierBindings(uint32(axis))

	for _, b := range c.bindings.axis {
		if b.axis == axis && b.modifier == seat.ModifierState {
			b.onAxis(seat, time, axis, value)
			return true
		}
	}
	return false
}

// RunDebugBinding returns how many debug bindings matched key.
func (c *Compositor) RunDebugBinding(seat *Seat, time, key uint32) int {
	count := 0
	for _, b := range append([]*Binding(nil), c.bindings.debug...) {
		if b.key != key {
			continue
		}
		count++
		b.onKey(seat, time, key)
	}
	return count
}

// bindingGrab swallows the release of the key that triggered a binding and
// passes everything else to the focused client.
type bindingGrab struct {
	key uint32
}

func (g *bindingGrab) Key(k *Keyboard, time, key uint32, state KeyState) {
	if key != g.key {
		k.SendKeyToFocus(time, key, state)
		return
	}
	if state == KeyReleased {
		k.EndGrab()
		k.RestoreInputMethodGrab()
	}
}

func (g *bindingGrab) Modifiers(k *Keyboard, serial uint32, mods ModifierMasks) {
	k.SendModifiersToFocus(serial, mods)
}

func (g *bindingGrab) Cancel(k *Keyboard) {
	k.EndGrab()
}
