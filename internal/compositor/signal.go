package compositor

// Signal is an observer list. Listeners may remove themselves, or add new
// listeners, while the signal is being emitted.
type Signal[T any] struct {
	listeners []*Listener[T]
}

// Listener is a registration on a Signal.
type Listener[T any] struct {
	signal *Signal[T]
	notify func(T)
}

// Add registers fn and returns a handle that can remove it.
func (s *Signal[T]) Add(fn func(T)) *Listener[T] {
	l := &Listener[T]{signal: s, notify: fn}
	s.listeners = append(s.listeners, l)
	return l
}

// Emit calls every listener registered when Emit was entered and not yet
// removed at the time of its call.
func (s *Signal[T]) Emit(v T) {
	snapshot := append([]*Listener[T](nil), s.listeners...)
	for _, l := range snapshot {
		if l.signal != s {
			continue
		}
		l.notify(v)
	}
}

// Len returns the number of registered listeners.
func (s *Signal[T]) Len() int {
	return len(s.listeners)
}

// Remove unregisters the listener. It is safe to call more than once.
func (l *Listener[T]) Remove() {
	if l == nil || l.signal == nil {
		return
	}
	s := l.signal
	for i, other := range s.listeners {
		if other == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			break
		}
	}
	l.signal = nil
}
