package valuation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Editor is the editing session of one model: the undo/redo history of its
// snapshots, the link state of its fields and the ordering of the external
// refreshes.
//
// All mutations are serialized. Subscribers receive the events one at a
// time, in the order of the mutations, with no editor lock held: they can
// read and even mutate the editor. Events caused by a subscriber are
// delivered after the one being handled. Delivery may happen on the goroutine
// of another mutation.
type Editor struct {
	mu        sync.Mutex
	history   HistoryState[Snapshot]
	links     *Links
	guard     *Guard
	limit     int
	log       *slog.Logger
	listeners map[int]func(Event)
	nextSub   int

	queue      []delivery // events waiting to be delivered
	delivering bool       // a goroutine is draining queue
}

type delivery struct {
	events    []Event
	listeners []func(Event)
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger used for notices and discarded refreshes.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.log = l }
}

// WithHistoryLimit bounds the number of undo steps kept. 0 means unbounded.
func WithHistoryLimit(n int) Option {
	return func(e *Editor) { e.limit = n }
}

// NewEditor starts an editing session on initial.
func NewEditor(initial Snapshot, opts ...Option) *Editor {
	e := &Editor{
		history:   NewHistory(initial),
		links:     NewLinks(),
		guard:     NewGuard(),
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		listeners: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Change is the outcome of an accepted patch.
type Change struct {
	Present    Snapshot
	Changed    bool    // false when the patch was a no-op
	Inserted   EntryID // identity allocated by a CollectionInsert
	Overridden []Path  // linked fields turned manual by this edit
}

// State returns the current history.
func (e *Editor) State() HistoryState[Snapshot] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history
}

// Present returns the current snapshot.
func (e *Editor) Present() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Present
}

func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanUndo()
}

func (e *Editor) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanRedo()
}

// Apply merges a user patch into the present snapshot and records it in the
// history.
//
// A direct edit of a linked field (or of a subtree holding linked fields)
// turns those fields manual: the user value wins over later refreshes.
// Removing a collection entry drops the link state of its fields.
//
// A patch whose target is gone is not applied and returns an error matching
// ErrStalePatch; the model and its history are unchanged.
func (e *Editor) Apply(p Patch) (Change, error) {
	return e.ApplyAll(p)
}

// ApplyAll is Apply for several patches merged in order and recorded as a
// single undo step. If one of them fails, none is applied.
func (e *Editor) ApplyAll(patches ...Patch) (Change, error) {
	e.mu.Lock()
	present := e.history.Present
	change := Change{Present: present}
	var effective []Patch
	next := present
	for _, p := range patches {
		n, id, err := MergeInsert(next, p)
		if err != nil {
			var events []Event
			if errors.Is(err, ErrStalePatch) {
				e.log.Warn("stale patch ignored", "patch", p, "error", err)
				events = append(events, Event{Kind: Stale, Path: p.Target(), Err: err})
			}
			e.unlockAndEmit(events)
			return Change{Present: present}, err
		}
		if id != 0 {
			change.Inserted = id
		}
		if n.Root() != next.Root() {
			effective = append(effective, p)
		}
		next = n
	}
	change.Present = next
	if next.Equal(present) {
		e.mu.Unlock()
		return change, nil
	}

	change.Changed = true
	var events []Event
	for _, p := range effective {
		switch p.(type) {
		case CollectionRemove:
			if n := e.links.Forget(p.Target()); n > 0 {
				e.log.Debug("link state dropped", "path", p.Target(), "fields", n)
			}
		case CollectionInsert:
		default:
			overridden := e.links.Override(p.Target())
			for _, path := range overridden {
				e.log.Info("linked field overridden by user", "path", path)
				events = append(events, Event{Kind: Unlinked, Path: path})
			}
			change.Overridden = append(change.Overridden, overridden...)
		}
	}
	e.push(next)
	events = append([]Event{{Kind: Changed}}, events...)
	e.unlockAndEmit(events)
	return change, nil
}

// ApplySuggestion sets the field at p to an accepted AI suggestion. It is a
// plain FieldSet.
func (e *Editor) ApplySuggestion(p Path, v Value) (Change, error) {
	return e.Apply(FieldSet{Path: p, Value: v})
}

// Undo restores the previous snapshot. It returns false if there is nothing
// to undo. Link states are not part of the history and are left unchanged:
// undoing a refresh keeps the field Auto with its older value, and the next
// refresh brings it back in line.
func (e *Editor) Undo() bool {
	e.mu.Lock()
	if !e.history.CanUndo() {
		e.mu.Unlock()
		return false
	}
	e.history = e.history.Undo()
	e.unlockAndEmit([]Event{{Kind: Undone}})
	return true
}

// Redo restores the next snapshot. It returns false if there is nothing to
// redo.
func (e *Editor) Redo() bool {
	e.mu.Lock()
	if !e.history.CanRedo() {
		e.mu.Unlock()
		return false
	}
	e.history = e.history.Redo()
	e.unlockAndEmit([]Event{{Kind: Redone}})
	return true
}

// Reset loads a new model: the history is cleared and so are the link states.
// Values already received from sources are kept.
func (e *Editor) Reset(s Snapshot) {
	e.mu.Lock()
	e.history = e.history.Reset(s)
	cache := e.links.cache
	e.links = NewLinks()
	e.links.cache = cache
	e.unlockAndEmit([]Event{{Kind: Reloaded}})
}

// Link makes the numeric field at p track source. If a value of source is
// already known, the field takes it immediately (as a regular, undoable
// change); otherwise it keeps its value until the next refresh.
func (e *Editor) Link(p Path, source SourceID) error {
	if source == "" {
		return fmt.Errorf("%w: empty source for %s", ErrInvalidPatch, p)
	}
	e.mu.Lock()
	v, ok := e.history.Present.Get(p)
	if !ok {
		e.mu.Unlock()
		return stale(p)
	}
	if k := v.Kind(); k != NumberKind && k != NullKind {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s is a %s, only numbers can be linked", ErrInvalidPatch, p, k)
	}

	events := []Event{{Kind: Linked, Path: p, Source: source}}
	if patch, ok := e.links.Link(p, source); ok {
		next, err := Merge(e.history.Present, patch)
		if err != nil {
			// the field exists, this is a bug.
			e.mu.Unlock()
			return err
		}
		if e.push(next) {
			events = append(events, Event{Kind: Changed})
		}
	}
	e.unlockAndEmit(events)
	return nil
}

// Unlink makes the field at p manual again, leaving its value as it is. It
// returns false if the field was not linked.
func (e *Editor) Unlink(p Path) bool {
	e.mu.Lock()
	if !e.links.Unlink(p) {
		e.mu.Unlock()
		return false
	}
	e.unlockAndEmit([]Event{{Kind: Unlinked, Path: p}})
	return true
}

// Field returns the link state of the field at p.
func (e *Editor) Field(p Path) (LinkableField, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.links.Field(p)
}

// Fields returns the link state of every field that was ever linked.
func (e *Editor) Fields() []LinkableField {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.links.Fields()
}

// Cached returns the last value received for source.
func (e *Editor) Cached(source SourceID) (decimal.Decimal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.links.Cached(source)
}

// Phase returns the refresh phase of a source or feed.
func (e *Editor) Phase(source SourceID) Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.guard.Phase(source)
}

// Pending returns the number of requests in flight on a source or feed.
func (e *Editor) Pending(source SourceID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.guard.Pending(source)
}

// Begin registers a new request on source (a single source or a feed) and
// returns its ticket. The response must be handed back with Resolve or Fail.
func (e *Editor) Begin(source SourceID) Ticket {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.guard.Issue(source)
}

// Resolve applies the values delivered for ticket t, unless a more recent
// request on the same source already delivered: then the response is dropped
// and Resolve returns false.
//
// The order holds per value too: a source reached both through a feed and
// directly only takes values from its most recent request. A response whose
// every value is outdated is dropped as a whole.
//
// Every Auto field linked to one of the sources takes the new value; the
// resulting snapshot is recorded as a single undo step.
func (e *Editor) Resolve(t Ticket, values map[SourceID]decimal.Decimal) bool {
	e.mu.Lock()
	if !e.guard.Admit(t) {
		return e.discard(t)
	}

	sources := make([]SourceID, 0, len(values))
	for s := range values {
		if !e.guard.Accept(t, s) {
			e.log.Debug("outdated value skipped", "source", s, "request", t.RequestID)
			continue
		}
		sources = append(sources, s)
	}
	if len(values) > 0 && len(sources) == 0 {
		return e.discard(t)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	next := e.history.Present
	for _, s := range sources {
		for _, p := range e.links.OnRefresh(s, values[s]) {
			n, err := Merge(next, p)
			if err != nil {
				// the field went away behind our back (e.g. undo of an insert).
				e.log.Warn("linked field skipped", "path", p.Target(), "source", s, "error", err)
				if errors.Is(err, ErrStalePatch) {
					e.links.Forget(p.Target())
				}
				continue
			}
			next = n
		}
	}
	e.guard.Complete(t)

	var events []Event
	if e.push(next) {
		events = append(events, Event{Kind: Changed, Source: t.Source, Ticket: t})
	}
	e.unlockAndEmit(events)
	return true
}

// discard drops the response to t. It must be called with e.mu held.
func (e *Editor) discard(t Ticket) bool {
	e.guard.Complete(t)
	e.log.Debug("stale refresh discarded", "source", t.Source, "request", t.RequestID)
	e.unlockAndEmit([]Event{{Kind: Discarded, Source: t.Source, Ticket: t}})
	return false
}

// Refresh delivers a single source value synchronously. It is Begin followed
// by Resolve.
func (e *Editor) Refresh(source SourceID, v decimal.Decimal) bool {
	return e.Resolve(e.Begin(source), map[SourceID]decimal.Decimal{source: v})
}

// Fail reports that the request t failed. Linked fields keep their last known
// value; subscribers receive an Unavailable notice. The failure of a request
// already superseded by a delivered one is a Discarded event.
func (e *Editor) Fail(t Ticket, err error) {
	e.mu.Lock()
	if e.guard.Superseded(t) {
		e.guard.Fail(t)
		e.log.Debug("superseded request failed", "source", t.Source, "request", t.RequestID, "error", err)
		e.unlockAndEmit([]Event{{Kind: Discarded, Source: t.Source, Ticket: t}})
		return
	}
	e.guard.Fail(t)
	uerr := &UnavailableError{Source: t.Source, Err: err}
	e.log.Warn("source unavailable", "source", t.Source, "request", t.RequestID, "error", err)
	e.unlockAndEmit([]Event{{Kind: Unavailable, Source: t.Source, Ticket: t, Err: uerr}})
}

// Subscribe registers fn to receive every event. The returned function
// cancels the subscription.
func (e *Editor) Subscribe(fn func(Event)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// push records next in the history. It must be called with e.mu held and
// reports whether the present changed.
func (e *Editor) push(next Snapshot) bool {
	if next.Equal(e.history.Present) {
		return false
	}
	e.history = e.history.Push(next).Trim(e.limit)
	return true
}

// unlockAndEmit queues events for the subscribers and releases e.mu. It must
// be called with e.mu held.
//
// The first goroutine finding the queue idle delivers everything queued until
// it is empty, releasing e.mu around each call.
func (e *Editor) unlockAndEmit(events []Event) {
	if len(events) == 0 {
		e.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]func(Event), len(ids))
	for i, id := range ids {
		listeners[i] = e.listeners[id]
	}
	for i := range events {
		events[i].Present = e.history.Present
		events[i].CanUndo = e.history.CanUndo()
		events[i].CanRedo = e.history.CanRedo()
	}
	e.queue = append(e.queue, delivery{events: events, listeners: listeners})
	if e.delivering {
		e.mu.Unlock()
		return
	}

	e.delivering = true
	defer func() {
		e.delivering = false
		e.mu.Unlock()
	}()
	for len(e.queue) > 0 {
		d := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
		func() {
			defer e.mu.Lock()
			d.deliver()
		}()
	}
}

func (d delivery) deliver() {
	for _, ev := range d.events {
		for _, fn := range d.listeners {
			fn(ev)
		}
	}
}
