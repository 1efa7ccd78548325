package valuation

import (
	"fmt"
	"strconv"
	"strings"
)

// Step is one element of a Path: either an object key or a list entry identity.
type Step struct {
	Key string
	ID  EntryID // non zero for a list entry step
}

// Key returns a step into an object field.
func Key(k string) Step { return Step{Key: k} }

// Ident returns a step into the list entry with the given identity.
func Ident(id EntryID) Step { return Step{ID: id} }

// IsEntry reports whether s addresses a list entry.
func (s Step) IsEntry() bool { return s.ID != 0 }

func (s Step) String() string {
	if s.IsEntry() {
		return "[" + strconv.FormatUint(uint64(s.ID), 10) + "]"
	}
	return s.Key
}

// Path addresses a location inside a Snapshot.
//
// Lists are only entered by entry identity, never by position, so two
// different paths never designate the same storage.
type Path []Step

// P builds a path from keys (string) and entry identities (EntryID or int).
func P(steps ...any) Path {
	p := make(Path, 0, len(steps))
	for _, s := range steps {
		switch v := s.(type) {
		case string:
			p = append(p, Key(v))
		case EntryID:
			p = append(p, Ident(v))
		case int:
			p = append(p, Ident(EntryID(v)))
		case Step:
			p = append(p, v)
		case Path:
			p = append(p, v...)
		default:
			panic(fmt.Sprintf("unsupported path step %T", s))
		}
	}
	return p
}

// ParsePath parses the textual form of a path, e.g.
//
//	lbo_input.financing.tranches[2].interest_rate
//
// where [2] is the identity of the entry, not its position.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	var p Path
	i := 0
	expectKey := true
	for i < len(s) {
		switch c := s[i]; {
		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated '[' in %q", ErrInvalidPath, s)
			}
			n, err := strconv.ParseUint(s[i+1:i+end], 10, 64)
			if err != nil || n == 0 {
				return nil, fmt.Errorf("%w: invalid entry identity %q in %q", ErrInvalidPath, s[i+1:i+end], s)
			}
			p = append(p, Ident(EntryID(n)))
			i += end + 1
			expectKey = false
		case c == '.':
			if expectKey {
				return nil, fmt.Errorf("%w: empty key in %q", ErrInvalidPath, s)
			}
			i++
			expectKey = true
		default:
			if !expectKey {
				return nil, fmt.Errorf("%w: missing '.' before key in %q", ErrInvalidPath, s)
			}
			end := strings.IndexAny(s[i:], ".[")
			if end < 0 {
				end = len(s) - i
			}
			p = append(p, Key(s[i:i+end]))
			i += end
			expectKey = false
		}
	}
	if expectKey {
		return nil, fmt.Errorf("%w: trailing '.' in %q", ErrInvalidPath, s)
	}
	return p, nil
}

// MustParsePath is like ParsePath but panics on error. For literals only.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 && !s.IsEntry() {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Append returns a new path extended with steps. p is never modified.
func (p Path) Append(steps ...Step) Path {
	n := make(Path, 0, len(p)+len(steps))
	n = append(n, p...)
	return append(n, steps...)
}

// Equal reports whether both paths address the same location.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p is prefix or a descendant of prefix.
func (p Path) HasPrefix(prefix Path) bool {
	return len(p) >= len(prefix) && p[:len(prefix)].Equal(prefix)
}

// get returns the value at path p in v.
func (p Path) get(v Value) (Value, bool) {
	for _, s := range p {
		switch n := v.(type) {
		case *Object:
			if s.IsEntry() {
				return nil, false
			}
			var ok bool
			if v, ok = n.Get(s.Key); !ok {
				return nil, false
			}
		case *List:
			if !s.IsEntry() {
				return nil, false
			}
			var ok bool
			if v, ok = n.Get(s.ID); !ok {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return v, true
}
