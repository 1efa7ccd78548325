package valuation

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Mode tells whether a field is set by the user or tracks a source.
type Mode int

const (
	Manual Mode = iota
	Auto
)

func (m Mode) String() string {
	if m == Auto {
		return "auto"
	}
	return "manual"
}

// LinkableField is the link state of one model field.
//
// When Mode is Auto, Source is set and, once a refresh happened, the field
// value in the model equals LastKnown. Undo and redo are the exception: they
// restore model values without touching link states, so an Auto field may
// hold an older value than LastKnown until the next refresh.
type LinkableField struct {
	Path      Path
	Mode      Mode
	Source    SourceID
	LastKnown decimal.NullDecimal
}

// Links tracks which fields follow which sources. It holds no model value:
// it only produces the patches to apply.
//
// Links is not safe for concurrent use; the Editor serializes calls.
type Links struct {
	fields map[string]*LinkableField
	cache  map[SourceID]decimal.Decimal
}

// NewLinks returns an empty controller.
func NewLinks() *Links {
	return &Links{
		fields: make(map[string]*LinkableField),
		cache:  make(map[SourceID]decimal.Decimal),
	}
}

func (l *Links) field(p Path) *LinkableField {
	k := p.String()
	f, ok := l.fields[k]
	if !ok {
		f = &LinkableField{Path: p.Append()}
		l.fields[k] = f
	}
	return f
}

// Link makes the field at p track source.
//
// If a value is already known for source, the returned FieldSet snaps the
// field to it right away; otherwise the field keeps its value until the next
// refresh and ok is false.
func (l *Links) Link(p Path, source SourceID) (patch Patch, ok bool) {
	f := l.field(p)
	f.Mode = Auto
	f.Source = source
	v, cached := l.cache[source]
	if !cached {
		f.LastKnown = decimal.NullDecimal{}
		return nil, false
	}
	f.LastKnown = decimal.NewNullDecimal(v)
	return FieldSet{Path: f.Path, Value: N(v)}, true
}

// Unlink makes the field at p manual. Its value is left as it is: the last
// tracked value becomes the user value. It returns false if the field was not
// linked.
func (l *Links) Unlink(p Path) bool {
	f, ok := l.fields[p.String()]
	if !ok || f.Mode == Manual {
		return false
	}
	f.Mode = Manual
	return true
}

// OnRefresh records v as the latest value of source and returns the patches
// snapping every Auto field on source to it. Manual fields are left alone.
func (l *Links) OnRefresh(source SourceID, v decimal.Decimal) []Patch {
	l.cache[source] = v
	var patches []Patch
	for _, f := range l.sorted() {
		if f.Mode != Auto || f.Source != source {
			continue
		}
		f.LastKnown = decimal.NewNullDecimal(v)
		patches = append(patches, FieldSet{Path: f.Path, Value: N(v)})
	}
	return patches
}

// Override turns every Auto field at or below p into a Manual one. It is
// called when the user edits p directly, so that the edit survives the next
// refresh. It returns the fields that changed mode.
func (l *Links) Override(p Path) []Path {
	var changed []Path
	for _, f := range l.sorted() {
		if f.Mode == Auto && f.Path.HasPrefix(p) {
			f.Mode = Manual
			changed = append(changed, f.Path)
		}
	}
	return changed
}

// Forget drops the link state of every field at or below p, once p is removed
// from the model.
func (l *Links) Forget(p Path) int {
	n := 0
	for k, f := range l.fields {
		if f.Path.HasPrefix(p) {
			delete(l.fields, k)
			n++
		}
	}
	return n
}

// Field returns the link state of the field at p. A field never linked is
// reported as Manual with ok false.
func (l *Links) Field(p Path) (LinkableField, bool) {
	f, ok := l.fields[p.String()]
	if !ok {
		return LinkableField{Path: p, Mode: Manual}, false
	}
	return *f, true
}

// Fields returns the link state of all known fields, sorted by path.
func (l *Links) Fields() []LinkableField {
	fields := make([]LinkableField, 0, len(l.fields))
	for _, f := range l.sorted() {
		fields = append(fields, *f)
	}
	return fields
}

// Cached returns the last value received for source.
func (l *Links) Cached(source SourceID) (decimal.Decimal, bool) {
	v, ok := l.cache[source]
	return v, ok
}

func (l *Links) sorted() []*LinkableField {
	fields := make([]*LinkableField, 0, len(l.fields))
	for _, f := range l.fields {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Path.String() < fields[j].Path.String() })
	return fields
}
