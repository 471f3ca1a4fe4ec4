package value

import (
	"fmt"
	"strings"
)

// Equal reports whether a and b are structurally equal.
// Int and Float compare numerically; no other cross-kind equality holds.
func Equal(a, b Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		if a.kind == KindInt && b.kind == KindInt {
			return a.i == b.i
		}
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return af == bf
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindText:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal reports whether v and other are structurally equal.
func (v Value) Equal(other Value) bool { return Equal(v, other) }

// Compare orders a against b, returning -1, 0 or +1.
// Ordering is defined for numeric pairs (Int and Float mix freely) and for
// Text pairs (lexicographic). Any other pairing returns ErrTypeMismatch.
func Compare(a, b Value) (int, error) {
	switch {
	case a.kind == KindInt && b.kind == KindInt:
		return cmpOrdered(a.i, b.i), nil
	case a.IsNumeric() && b.IsNumeric():
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return cmpOrdered(af, bf), nil
	case a.kind == KindText && b.kind == KindText:
		return strings.Compare(a.s, b.s), nil
	}
	return 0, fmt.Errorf("%w: cannot order %s against %s", ErrTypeMismatch, a.kind, b.kind)
}

// Contains reports whether haystack contains needle: substring for Text,
// element membership by structural equality for Array.
func Contains(haystack, needle Value) (bool, error) {
	switch haystack.kind {
	case KindText:
		s, ok := needle.AsText()
		if !ok {
			return false, fmt.Errorf("%w: substring must be text, got %s", ErrTypeMismatch, needle.kind)
		}
		return strings.Contains(haystack.s, s), nil
	case KindArray:
		for _, item := range haystack.arr {
			if Equal(item, needle) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("%w: %s does not support contains", ErrTypeMismatch, haystack.kind)
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
