package valuation

// Equaler is implemented by values with a structural equality.
type Equaler[T any] interface {
	Equal(T) bool
}

// HistoryState is an undo/redo history over values of type T.
//
// It is a persistent value: transitions return a new state and never modify
// the receiver, so any state can be kept and compared later.
type HistoryState[T Equaler[T]] struct {
	Past    []T // the top of the stack is the last element
	Present T
	Future  []T // the next value to redo is the first element
}

// NewHistory returns a history with no past and no future.
func NewHistory[T Equaler[T]](present T) HistoryState[T] {
	return HistoryState[T]{Present: present}
}

// Push makes v the present value. The previous present goes on top of the
// past and the future is dropped: a new edit invalidates redo.
//
// Pushing a value equal to the present is a no-op.
func (h HistoryState[T]) Push(v T) HistoryState[T] {
	if v.Equal(h.Present) {
		return h
	}
	return HistoryState[T]{
		Past:    append(h.Past[:len(h.Past):len(h.Past)], h.Present),
		Present: v,
	}
}

// Undo restores the previous value. No-op without past.
func (h HistoryState[T]) Undo() HistoryState[T] {
	if len(h.Past) == 0 {
		return h
	}
	top := len(h.Past) - 1
	future := make([]T, 0, len(h.Future)+1)
	future = append(future, h.Present)
	future = append(future, h.Future...)
	return HistoryState[T]{
		Past:    h.Past[:top:top],
		Present: h.Past[top],
		Future:  future,
	}
}

// Redo restores the next value. No-op without future.
func (h HistoryState[T]) Redo() HistoryState[T] {
	if len(h.Future) == 0 {
		return h
	}
	return HistoryState[T]{
		Past:    append(h.Past[:len(h.Past):len(h.Past)], h.Present),
		Present: h.Future[0],
		Future:  h.Future[1:len(h.Future):len(h.Future)],
	}
}

// Reset drops past and future and makes v the present value. It is meant for
// (re)loading a model, not for editing it.
func (h HistoryState[T]) Reset(v T) HistoryState[T] {
	return HistoryState[T]{Present: v}
}

// Trim keeps at most n values in the past, dropping the oldest ones. n <= 0
// means no limit.
func (h HistoryState[T]) Trim(n int) HistoryState[T] {
	if n <= 0 || len(h.Past) <= n {
		return h
	}
	h.Past = h.Past[len(h.Past)-n : len(h.Past) : len(h.Past)]
	return h
}

func (h HistoryState[T]) CanUndo() bool { return len(h.Past) > 0 }
func (h HistoryState[T]) CanRedo() bool { return len(h.Future) > 0 }

// Equal reports whether both histories hold equal values at every position.
func (h HistoryState[T]) Equal(o HistoryState[T]) bool {
	return equalAll(h.Past, o.Past) && h.Present.Equal(o.Present) && equalAll(h.Future, o.Future)
}

func equalAll[T Equaler[T]](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
