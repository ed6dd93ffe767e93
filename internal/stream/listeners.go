package stream

import "sync"

// listeners is an ordered set of callbacks for one topic
type listeners[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries []listener[T]
}

type listener[T any] struct {
	id int
	fn func(T)
}

// add registers fn and returns its unsubscribe func. Unsubscribing twice is harmless.
func (l *listeners[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, listener[T]{id: id, fn: fn})

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, e := range l.entries {
			if e.id == id {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

// emit calls every listener in registration order. The set is copied first
// so listeners may unsubscribe from inside their callback.
func (l *listeners[T]) emit(v T) {
	l.mu.Lock()
	snapshot := make([]listener[T], len(l.entries))
	copy(snapshot, l.entries)
	l.mu.Unlock()

	for _, e := range snapshot {
		e.fn(v)
	}
}

func (l *listeners[T]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
