package valuation

import "testing"

type word string

func (w word) Equal(o word) bool { return w == o }

func TestHistory_PushUndo(t *testing.T) {
	h := NewHistory(word("A")).Push("B")
	if got := h.Undo().Present; got != "A" {
		t.Errorf("Push(B).Undo().Present = %q, want %q", got, "A")
	}
	if !h.Undo().CanRedo() {
		t.Error("Undo() should allow Redo()")
	}
}

func TestHistory_UndoRedoInverse(t *testing.T) {
	h := NewHistory(word("A")).Push("B").Push("C")
	if got := h.Undo().Redo(); !got.Equal(h) {
		t.Errorf("Undo().Redo() = %+v, want %+v", got, h)
	}
	u := h.Undo()
	if got := u.Redo().Undo(); !got.Equal(u) {
		t.Errorf("Redo().Undo() = %+v, want %+v", got, u)
	}
}

func TestHistory_PushEqualIsNoop(t *testing.T) {
	h := NewHistory(word("A")).Push("B").Push("C").Undo()
	got := h.Push("B")
	if !got.Equal(h) {
		t.Errorf("Push(present) = %+v, want %+v", got, h)
	}
	if !got.CanRedo() {
		t.Error("Push(present) must not drop the future")
	}
}

func TestHistory_PushClearsFuture(t *testing.T) {
	h := NewHistory(word("A")).Push("B").Undo().Push("C")
	if h.CanRedo() {
		t.Errorf("Future = %v, want empty", h.Future)
	}
}

func TestHistory_Boundaries(t *testing.T) {
	h := NewHistory(word("A"))
	if got := h.Undo(); !got.Equal(h) {
		t.Errorf("Undo() without past = %+v, want %+v", got, h)
	}
	if got := h.Redo(); !got.Equal(h) {
		t.Errorf("Redo() without future = %+v, want %+v", got, h)
	}
}

func TestHistory_Scenario(t *testing.T) {
	// A, B, C then undo twice, redo, and push D.
	h := NewHistory(word("A")).Push("B").Push("C")
	h = h.Undo().Undo()
	if h.Present != "A" {
		t.Fatalf("Present = %q, want A", h.Present)
	}
	h = h.Redo()
	if h.Present != "B" {
		t.Fatalf("Present = %q, want B", h.Present)
	}
	h = h.Push("D")

	want := HistoryState[word]{Past: []word{"A", "B"}, Present: "D"}
	if !h.Equal(want) {
		t.Errorf("history = %+v, want %+v", h, want)
	}
}

func TestHistory_Persistent(t *testing.T) {
	base := NewHistory(word("A")).Push("B").Push("C").Undo()
	_ = base.Push("X")
	_ = base.Undo()
	_ = base.Redo()

	want := HistoryState[word]{Past: []word{"A"}, Present: "B", Future: []word{"C"}}
	if !base.Equal(want) {
		t.Errorf("history modified by its transitions: %+v, want %+v", base, want)
	}

	// two pushes on the same state must not share their past.
	x := base.Push("X")
	y := base.Push("Y")
	if x.Past[len(x.Past)-1] != "B" || y.Past[len(y.Past)-1] != "B" {
		t.Errorf("Push() past tops = %q and %q, want B", x.Past[len(x.Past)-1], y.Past[len(y.Past)-1])
	}
}

func TestHistory_Trim(t *testing.T) {
	h := NewHistory(word("A")).Push("B").Push("C").Push("D").Trim(2)
	want := HistoryState[word]{Past: []word{"B", "C"}, Present: "D"}
	if !h.Equal(want) {
		t.Errorf("Trim(2) = %+v, want %+v", h, want)
	}
	if got := h.Trim(0); !got.Equal(h) {
		t.Errorf("Trim(0) = %+v, want %+v", got, h)
	}
}

func TestHistory_Reset(t *testing.T) {
	h := NewHistory(word("A")).Push("B").Push("C").Undo().Reset("Z")
	if h.CanUndo() || h.CanRedo() || h.Present != "Z" {
		t.Errorf("Reset(Z) = %+v, want only Z", h)
	}
}
