package valuation

// EventKind enumerates what happened to the editor.
type EventKind int

const (
	Changed     EventKind = iota // a patch or a refresh produced a new present
	Undone                       // undo
	Redone                       // redo
	Reloaded                     // the history was reset to a new model
	Linked                       // a field now tracks a source
	Unlinked                     // a field is manual again
	Discarded                    // a stale refresh response was dropped
	Unavailable                  // an external source failed
	Stale                        // a patch targeted a location that no longer exists
)

var eventNames = [...]string{
	Changed:     "changed",
	Undone:      "undone",
	Redone:      "redone",
	Reloaded:    "reloaded",
	Linked:      "linked",
	Unlinked:    "unlinked",
	Discarded:   "discarded",
	Unavailable: "unavailable",
	Stale:       "stale",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event is sent to the editor subscribers after every transition.
type Event struct {
	Kind    EventKind
	Present Snapshot
	CanUndo bool
	CanRedo bool

	Path   Path     // Linked, Unlinked, Stale
	Source SourceID // Linked, Discarded, Unavailable
	Ticket Ticket   // Discarded, Unavailable, Changed by a refresh
	Err    error    // Unavailable, Stale
}

// Notice reports whether the event is a non fatal problem worth showing to
// the user.
func (e Event) Notice() bool { return e.Kind == Unavailable || e.Kind == Stale }
