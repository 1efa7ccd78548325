package valuation

import "fmt"

// Patch is a localized change to a Snapshot.
//
// It is one of FieldSet, CollectionInsert, CollectionUpdate or CollectionRemove.
type Patch interface {
	// Target returns the location the patch writes to.
	Target() Path
	isPatch()
}

// FieldSet replaces the value at Path. A missing last key is created if its
// parent object exists.
type FieldSet struct {
	Path  Path
	Value Value
}

// CollectionInsert appends Entry to the list at Collection under a fresh
// identity.
type CollectionInsert struct {
	Collection Path
	Entry      Value
}

// CollectionUpdate sets Field (relative to the entry) of the entry with
// identity ID in the list at Collection. An empty Field replaces the whole
// entry.
type CollectionUpdate struct {
	Collection Path
	ID         EntryID
	Field      Path
	Value      Value
}

// CollectionRemove removes the entry with identity ID from the list at
// Collection. Other entries are left exactly as they are.
type CollectionRemove struct {
	Collection Path
	ID         EntryID
}

func (p FieldSet) Target() Path         { return p.Path }
func (p CollectionInsert) Target() Path { return p.Collection }
func (p CollectionUpdate) Target() Path {
	return p.Collection.Append(Ident(p.ID)).Append(p.Field...)
}
func (p CollectionRemove) Target() Path { return p.Collection.Append(Ident(p.ID)) }

func (FieldSet) isPatch()         {}
func (CollectionInsert) isPatch() {}
func (CollectionUpdate) isPatch() {}
func (CollectionRemove) isPatch() {}

func (p FieldSet) String() string { return fmt.Sprintf("set %s = %v", p.Path, p.Value) }
func (p CollectionInsert) String() string {
	return fmt.Sprintf("insert into %s", p.Collection)
}
func (p CollectionUpdate) String() string {
	return fmt.Sprintf("set %s = %v", p.Target(), p.Value)
}
func (p CollectionRemove) String() string { return fmt.Sprintf("remove %s", p.Target()) }

// Merge applies p to base and returns the new snapshot.
//
// Everything not on the patched path is shared with base. If the patch changes
// nothing, base itself is returned. If the target does not exist any more, base
// is returned with an error matching ErrStalePatch.
func Merge(base Snapshot, p Patch) (Snapshot, error) {
	next, _, err := MergeInsert(base, p)
	return next, err
}

// MergeInsert is Merge, also returning the identity allocated by a
// CollectionInsert (zero for other patches).
func MergeInsert(base Snapshot, p Patch) (Snapshot, EntryID, error) {
	var (
		root Value
		id   EntryID
		err  error
	)
	switch p := p.(type) {
	case FieldSet:
		if len(p.Path) == 0 {
			return base, 0, fmt.Errorf("%w: cannot replace the whole model", ErrInvalidPatch)
		}
		root, err = update(base.Root(), nil, p.Path, true, func(Value) (Value, error) {
			return orNull(p.Value), nil
		})

	case CollectionInsert:
		root, err = update(base.Root(), nil, p.Collection, false, func(v Value) (Value, error) {
			l, ok := v.(*List)
			if !ok {
				return nil, fmt.Errorf("%w: %s is not a collection", ErrInvalidPatch, p.Collection)
			}
			var n *List
			n, id = l.Append(p.Entry)
			return n, nil
		})

	case CollectionUpdate:
		root, err = update(base.Root(), nil, p.Target(), len(p.Field) > 0, func(Value) (Value, error) {
			return orNull(p.Value), nil
		})

	case CollectionRemove:
		root, err = update(base.Root(), nil, p.Collection, false, func(v Value) (Value, error) {
			l, ok := v.(*List)
			if !ok {
				return nil, fmt.Errorf("%w: %s is not a collection", ErrInvalidPatch, p.Collection)
			}
			n, ok := l.Remove(p.ID)
			if !ok {
				return nil, stale(p.Target())
			}
			return n, nil
		})

	default:
		return base, 0, fmt.Errorf("%w: unsupported patch %T", ErrInvalidPatch, p)
	}
	if err != nil {
		return base, 0, err
	}
	if root == Value(base.Root()) {
		return base, id, nil
	}
	return NewSnapshot(root.(*Object)), id, nil
}

// update rebuilds the nodes along path, calling fn with the value found at the
// end of it. Subtrees off the path are shared. When create is true, a missing
// last key of an existing object is created (fn receives nil).
//
// update returns v itself when fn returns an equal value, so that a no-op patch
// yields the very same snapshot.
func update(v Value, at, path Path, create bool, fn func(Value) (Value, error)) (Value, error) {
	if len(path) == 0 {
		n, err := fn(v)
		if err != nil {
			return nil, err
		}
		if v != nil && n.Equal(v) {
			return v, nil
		}
		return n, nil
	}
	step, rest := path[0], path[1:]
	here := at.Append(step)
	switch node := v.(type) {
	case *Object:
		if step.IsEntry() {
			return nil, fmt.Errorf("%w: %s is not a collection", ErrInvalidPatch, at)
		}
		child, ok := node.Get(step.Key)
		if !ok && !(create && len(rest) == 0) {
			return nil, stale(here)
		}
		n, err := update(child, here, rest, create, fn)
		if err != nil {
			return nil, err
		}
		if ok && n == child {
			return v, nil
		}
		return node.With(step.Key, n), nil

	case *List:
		if !step.IsEntry() {
			return nil, fmt.Errorf("%w: %s is a collection, use an entry identity", ErrInvalidPatch, at)
		}
		if len(rest) == 1 && !rest[0].IsEntry() && rest[0].Key == identityKey {
			return nil, fmt.Errorf("%w: the identity of %s cannot be edited", ErrInvalidPatch, here)
		}
		child, ok := node.Get(step.ID)
		if !ok {
			return nil, stale(here)
		}
		n, err := update(child, here, rest, create, fn)
		if err != nil {
			return nil, err
		}
		if n == child {
			return v, nil
		}
		l, _ := node.Replace(step.ID, n)
		return l, nil

	case nil:
		return nil, stale(here)

	default:
		return nil, fmt.Errorf("%w: %s is a %s, not a container", ErrInvalidPatch, at, v.Kind())
	}
}
