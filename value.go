package valuation

import (
	"github.com/shopspring/decimal"
)

// Kind enumerates the kinds of values a model can hold.
type Kind int

const (
	NullKind Kind = iota
	BoolKind
	NumberKind
	StringKind
	ObjectKind
	ListKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case BoolKind:
		return "bool"
	case NumberKind:
		return "number"
	case StringKind:
		return "string"
	case ObjectKind:
		return "object"
	case ListKind:
		return "list"
	}
	return "unknown"
}

// Value is a node of the immutable model tree.
//
// Implementations are Null, Bool, Number, String, *Object and *List. Values are
// never modified once built: every edit creates new nodes along the edited path
// and shares everything else.
type Value interface {
	Kind() Kind
	// Equal reports structural equality.
	Equal(Value) bool

	sealed()
}

// Null is the absent value (e.g. a tranche amount left to be derived).
type Null struct{}

// Bool is a boolean leaf.
type Bool bool

// String is a text leaf.
type String string

// Number is an exact numeric leaf. It cannot hold NaN.
type Number struct {
	d decimal.Decimal
}

// N returns a Number from any supported numeric type.
func N[T float32 | float64 | int | int32 | int64 | uint | uint32 | uint64 | decimal.Decimal](value T) Number {
	return Number{d: newDecimal(value)}
}

// newDecimal is a convenient factory for decimal.Decimal
func newDecimal[T float32 | float64 | int | int32 | int64 | uint | uint32 | uint64 | decimal.Decimal](value T) decimal.Decimal {
	switch v := any(value).(type) {
	case decimal.Decimal:
		return v
	case float32:
		return decimal.NewFromFloat32(v)
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt32(v)
	case int64:
		return decimal.NewFromInt(v)
	case uint:
		return decimal.NewFromUint64(uint64(v))
	case uint32:
		return decimal.NewFromUint64(uint64(v))
	case uint64:
		return decimal.NewFromUint64(v)
	default:
		panic("unsupported type")
	}
}

// Decimal returns the exact value.
func (n Number) Decimal() decimal.Decimal { return n.d }
func (n Number) String() string           { return n.d.String() }

func (Null) Kind() Kind   { return NullKind }
func (Bool) Kind() Kind   { return BoolKind }
func (Number) Kind() Kind { return NumberKind }
func (String) Kind() Kind { return StringKind }

func (Null) sealed()   {}
func (Bool) sealed()   {}
func (Number) sealed() {}
func (String) sealed() {}

func (Null) Equal(v Value) bool {
	return v == nil || v.Kind() == NullKind
}

func (b Bool) Equal(v Value) bool {
	o, ok := v.(Bool)
	return ok && o == b
}

// Equal compares numbers by value: 0.10 equals 0.1.
func (n Number) Equal(v Value) bool {
	o, ok := v.(Number)
	return ok && o.d.Equal(n.d)
}

func (s String) Equal(v Value) bool {
	o, ok := v.(String)
	return ok && o == s
}

// Object is an immutable set of named values. Key order is preserved for
// display and encoding but plays no role in equality.
type Object struct {
	keys   []string
	fields map[string]Value
}

// Field is a named value used to build objects.
type Field struct {
	Key   string
	Value Value
}

// F is a shortcut to build a Field.
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// Obj builds an Object from fields. A later field with the same key replaces
// an earlier one.
func Obj(fields ...Field) *Object {
	o := &Object{fields: make(map[string]Value, len(fields))}
	for _, f := range fields {
		if _, exists := o.fields[f.Key]; !exists {
			o.keys = append(o.keys, f.Key)
		}
		o.fields[f.Key] = orNull(f.Value)
	}
	return o
}

func (*Object) Kind() Kind { return ObjectKind }
func (*Object) sealed()    {}

// Len returns the number of fields.
func (o *Object) Len() int { return len(o.keys) }

// Keys returns the field names in insertion order.
func (o *Object) Keys() []string { return append([]string(nil), o.keys...) }

// Get returns the field named key.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.fields[key]
	return v, ok
}

// With returns a copy of o where key is set to v. Other fields are shared.
func (o *Object) With(key string, v Value) *Object {
	n := &Object{
		keys:   o.keys,
		fields: make(map[string]Value, len(o.fields)+1),
	}
	for k, fv := range o.fields {
		n.fields[k] = fv
	}
	if _, exists := o.fields[key]; !exists {
		n.keys = append(o.keys[:len(o.keys):len(o.keys)], key)
	}
	n.fields[key] = orNull(v)
	return n
}

func (o *Object) Equal(v Value) bool {
	p, ok := v.(*Object)
	if !ok {
		return false
	}
	if o == p {
		return true
	}
	if len(o.fields) != len(p.fields) {
		return false
	}
	for k, fv := range o.fields {
		pv, ok := p.fields[k]
		if !ok || !fv.Equal(pv) {
			return false
		}
	}
	return true
}

// EntryID is the stable identity of an entry in a List. It is unrelated to the
// entry position and is never reused within a list.
type EntryID uint64

// Entry is one element of a List.
type Entry struct {
	ID    EntryID
	Value Value
}

// List is an immutable sequence of entries addressed by identity.
type List struct {
	entries []Entry
	next    EntryID // high-water mark, the last identity ever allocated
}

// Items builds a List assigning identities 1..n in order.
func Items(values ...Value) *List {
	l := &List{entries: make([]Entry, 0, len(values))}
	for _, v := range values {
		l.next++
		l.entries = append(l.entries, Entry{ID: l.next, Value: entryValue(v)})
	}
	return l
}

func (*List) Kind() Kind { return ListKind }
func (*List) sealed()    {}

// Len returns the number of entries.
func (l *List) Len() int { return len(l.entries) }

// Entries returns the entries in order.
func (l *List) Entries() []Entry { return append([]Entry(nil), l.entries...) }

// IDs returns the identities in order.
func (l *List) IDs() []EntryID {
	ids := make([]EntryID, len(l.entries))
	for i, e := range l.entries {
		ids[i] = e.ID
	}
	return ids
}

// Get returns the value of the entry with the given identity.
func (l *List) Get(id EntryID) (Value, bool) {
	if i := l.index(id); i >= 0 {
		return l.entries[i].Value, true
	}
	return nil, false
}

func (l *List) index(id EntryID) int {
	for i, e := range l.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// NextID returns the identity the next appended entry will receive.
func (l *List) NextID() EntryID { return l.next + 1 }

// Append returns a copy of l with v appended, and the new entry identity.
func (l *List) Append(v Value) (*List, EntryID) {
	n := &List{
		entries: append(l.entries[:len(l.entries):len(l.entries)], Entry{ID: l.next + 1, Value: entryValue(v)}),
		next:    l.next + 1,
	}
	return n, n.next
}

// Replace returns a copy of l where the entry id holds v.
func (l *List) Replace(id EntryID, v Value) (*List, bool) {
	i := l.index(id)
	if i < 0 {
		return l, false
	}
	entries := append([]Entry(nil), l.entries...)
	entries[i] = Entry{ID: id, Value: entryValue(v)}
	return &List{entries: entries, next: l.next}, true
}

// Remove returns a copy of l without the entry id.
func (l *List) Remove(id EntryID) (*List, bool) {
	i := l.index(id)
	if i < 0 {
		return l, false
	}
	entries := make([]Entry, 0, len(l.entries)-1)
	entries = append(entries, l.entries[:i]...)
	entries = append(entries, l.entries[i+1:]...)
	return &List{entries: entries, next: l.next}, true
}

// Equal compares identities and values in order. The allocation counter is
// bookkeeping and is ignored.
func (l *List) Equal(v Value) bool {
	m, ok := v.(*List)
	if !ok {
		return false
	}
	if l == m {
		return true
	}
	if len(l.entries) != len(m.entries) {
		return false
	}
	for i, e := range l.entries {
		if e.ID != m.entries[i].ID || !e.Value.Equal(m.entries[i].Value) {
			return false
		}
	}
	return true
}

// entryValue is v as stored in a list: the identity belongs to the entry, an
// object member with the same name is dropped.
func entryValue(v Value) Value {
	if o, ok := v.(*Object); ok {
		if _, ok := o.Get(identityKey); ok {
			return without(o, identityKey)
		}
	}
	return orNull(v)
}

func orNull(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}
