package valuation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
)

// identityKey is the member carrying the identity of list entries that are
// objects, on the wire.
const identityKey = "id"

func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// MarshalJSON writes the exact decimal, unquoted.
func (n Number) MarshalJSON() ([]byte, error) { return []byte(n.d.String()), nil }

// MarshalJSON writes fields in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeMember(&b, k, o.fields[k]); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// MarshalJSON writes entries as a JSON array. Entries that are objects get
// their identity written as the "id" member.
func (l *List) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, e := range l.entries {
		if i > 0 {
			b.WriteByte(',')
		}
		o, ok := e.Value.(*Object)
		if !ok {
			raw, err := json.Marshal(e.Value)
			if err != nil {
				return nil, err
			}
			b.Write(raw)
			continue
		}
		b.WriteString(`{"` + identityKey + `":`)
		b.WriteString(strconv.FormatUint(uint64(e.ID), 10))
		for _, k := range o.keys {
			if k == identityKey {
				continue
			}
			b.WriteByte(',')
			if err := writeMember(&b, k, o.fields[k]); err != nil {
				return nil, err
			}
		}
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return b.Bytes(), nil
}

func writeMember(b *bytes.Buffer, k string, v Value) error {
	key, err := json.Marshal(k)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cannot encode %q: %w", k, err)
	}
	b.Write(key)
	b.WriteByte(':')
	b.Write(raw)
	return nil
}

func (s Snapshot) MarshalJSON() ([]byte, error) { return s.Root().MarshalJSON() }

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	snap, err := DecodeSnapshot(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*s = snap
	return nil
}

// DecodeSnapshot reads a JSON object into a Snapshot.
func DecodeSnapshot(r io.Reader) (Snapshot, error) {
	v, err := DecodeValue(r)
	if err != nil {
		return Snapshot{}, err
	}
	root, ok := v.(*Object)
	if !ok {
		return Snapshot{}, fmt.Errorf("model must be a JSON object, got %s", v.Kind())
	}
	return NewSnapshot(root), nil
}

// DecodeValue reads one JSON value.
//
// Numbers are decoded exactly. In arrays, objects with a positive integer "id"
// keep it as their identity, other entries receive fresh identities.
func DecodeValue(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after the JSON value")
	}
	return v, nil
}

// UnmarshalValue is DecodeValue over a byte slice.
func UnmarshalValue(data []byte) (Value, error) {
	return DecodeValue(bytes.NewReader(data))
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err == nil {
			err = checkExponent(d)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return N(d), nil
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeList(dec)
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder) (*Object, error) {
	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		fields = append(fields, F(key, v))
	}
	if _, err := dec.Token(); err != nil { // '}'
		return nil, err
	}
	return Obj(fields...), nil
}

func decodeList(dec *json.Decoder) (*List, error) {
	var values []Value
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", len(values), err)
		}
		values = append(values, v)
	}
	if _, err := dec.Token(); err != nil { // ']'
		return nil, err
	}

	l := &List{entries: make([]Entry, len(values))}
	used := make(map[EntryID]bool)
	// first pass: explicit identities.
	for i, v := range values {
		o, ok := v.(*Object)
		if !ok {
			continue
		}
		raw, ok := o.Get(identityKey)
		if !ok {
			continue
		}
		id, err := entryID(raw)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		if used[id] {
			return nil, fmt.Errorf("[%d]: duplicate entry id %d", i, id)
		}
		used[id] = true
		l.entries[i] = Entry{ID: id, Value: without(o, identityKey)}
		if id > l.next {
			l.next = id
		}
	}
	// second pass: fresh identities for the others.
	for i, v := range values {
		if l.entries[i].ID != 0 {
			continue
		}
		l.next++
		l.entries[i] = Entry{ID: l.next, Value: v}
	}
	return l, nil
}

func entryID(v Value) (EntryID, error) {
	n, ok := v.(Number)
	if !ok || !n.d.IsInteger() || !n.d.IsPositive() {
		return 0, fmt.Errorf("entry id must be a positive integer, got %v", v)
	}
	return EntryID(n.d.IntPart()), nil
}

// without returns o without key.
func without(o *Object, key string) *Object {
	fields := make([]Field, 0, o.Len())
	for _, k := range o.keys {
		if k != key {
			fields = append(fields, F(k, o.fields[k]))
		}
	}
	return Obj(fields...)
}
