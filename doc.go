// Package valuation is the state engine of a valuation model editor.
//
// A model is a tree of values (objects, identity-keyed collections, numbers,
// strings, booleans) held in an immutable Snapshot. Every edit is a Patch
// merged into the present snapshot, producing a new one that shares the
// untouched subtrees with its base:
//   - FieldSet replaces the value at a path.
//   - CollectionInsert, CollectionUpdate and CollectionRemove edit the
//     entries of a collection, addressed by identity and never by position.
//
// The Editor records the successive snapshots in a HistoryState (undo/redo),
// keeps some numeric fields linked to external sources such as market rates
// and sector leverage multiples, and orders the asynchronous refreshes of
// those sources so that a late response never overwrites a newer one.
//
// The market, suggest and calc packages provide the external sources; the
// server and cmd packages expose the editor over HTTP and on the command line.
package valuation
