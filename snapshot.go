package valuation

import (
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// Snapshot is one immutable value of the whole edited model.
//
// The zero Snapshot is an empty model.
type Snapshot struct {
	root *Object
}

// NewSnapshot wraps root into a Snapshot.
func NewSnapshot(root *Object) Snapshot {
	if root == nil {
		root = Obj()
	}
	return Snapshot{root: root}
}

// Root returns the root object.
func (s Snapshot) Root() *Object {
	if s.root == nil {
		return Obj()
	}
	return s.root
}

// Equal reports structural equality.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Root().Equal(o.Root())
}

// Get returns the value at p.
func (s Snapshot) Get(p Path) (Value, bool) {
	return p.get(s.Root())
}

// Has reports whether p exists in s.
func (s Snapshot) Has(p Path) bool {
	_, ok := s.Get(p)
	return ok
}

// Number returns the numeric value at p.
func (s Snapshot) Number(p Path) (decimal.Decimal, bool) {
	v, ok := s.Get(p)
	if !ok {
		return decimal.Zero, false
	}
	n, ok := v.(Number)
	return n.d, ok
}

// Text returns the string value at p.
func (s Snapshot) Text(p Path) (string, bool) {
	v, ok := s.Get(p)
	if !ok {
		return "", false
	}
	t, ok := v.(String)
	return string(t), ok
}

// List returns the list at p.
func (s Snapshot) List(p Path) (*List, bool) {
	v, ok := s.Get(p)
	if !ok {
		return nil, false
	}
	l, ok := v.(*List)
	return l, ok
}

func (s Snapshot) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("<invalid snapshot: %v>", err)
	}
	return string(b)
}

// Query evaluates a JSONPath expression (e.g. "$.lbo_input.financing.tranches[*].interest_rate")
// over the JSON view of the snapshot.
//
// Lists are arrays in that view, so indexes in the expression are positions,
// not entry identities.
func (s Snapshot) Query(expr string) (any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	v, err := jsonpath.Get(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("cannot evaluate %q: %w", expr, err)
	}
	return v, nil
}
