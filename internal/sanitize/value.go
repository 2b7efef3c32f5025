// Package sanitize walks response payloads and rebuilds them with secrets
// removed and PII masked according to a policy.Registry.
//
// Payloads are modelled as a Value: a tagged union of null, boolean, number,
// string, sequence, keyed map, and opaque. Opaque values wrap host resources
// (timestamps, byte slices, errors, readers, funcs...) that are never
// traversed. Sequences and keyed maps are held by pointer so that the same
// composite may appear more than once, including inside itself.
package sanitize

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind is the variant tag of a Value.
type Kind uint8

// Value variants.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindKeyed
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindKeyed:
		return "keyed"
	case KindOpaque:
		return "opaque"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is one node of a payload tree. The zero Value is Null.
type Value struct {
	kind   Kind
	b      bool
	s      string // string contents, or the literal of a number
	seq    *Sequence
	keyed  *Keyed
	opaque any
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns a number value.
func Int(n int64) Value { return Value{kind: KindNumber, s: strconv.FormatInt(n, 10)} }

// Uint returns a number value.
func Uint(n uint64) Value { return Value{kind: KindNumber, s: strconv.FormatUint(n, 10)} }

// Float returns a number value. NaN and infinities have no JSON form and become Null.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Value{kind: KindNumber, s: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Number returns a number value holding a JSON number literal as is.
func Number(n json.Number) Value { return Value{kind: KindNumber, s: string(n)} }

// Seq wraps a sequence. A nil sequence is Null.
func Seq(s *Sequence) Value {
	if s == nil {
		return Null()
	}
	return Value{kind: KindSequence, seq: s}
}

// Object wraps a keyed map. A nil map is Null.
func Object(k *Keyed) Value {
	if k == nil {
		return Null()
	}
	return Value{kind: KindKeyed, keyed: k}
}

// Opaque wraps a host value that must never be traversed.
func Opaque(x any) Value { return Value{kind: KindOpaque, opaque: x} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsComposite reports whether v is a sequence or keyed map.
func (v Value) IsComposite() bool { return v.kind == KindSequence || v.kind == KindKeyed }

// BoolValue returns the boolean and whether v is a boolean.
func (v Value) BoolValue() (bool, bool) { return v.b, v.kind == KindBool }

// StringValue returns the string and whether v is a string.
func (v Value) StringValue() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// NumberValue returns the number literal and whether v is a number.
func (v Value) NumberValue() (json.Number, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return json.Number(v.s), true
}

// Sequence returns the sequence, or nil.
func (v Value) Sequence() *Sequence { return v.seq }

// Keyed returns the keyed map, or nil.
func (v Value) Keyed() *Keyed { return v.keyed }

// OpaqueValue returns the wrapped host value, or nil.
func (v Value) OpaqueValue() any { return v.opaque }

// Sequence is an ordered list of values.
type Sequence struct {
	items []Value
}

// NewSequence returns a sequence holding items.
func NewSequence(items ...Value) *Sequence {
	return &Sequence{items: items}
}

// Len returns the number of elements.
func (s *Sequence) Len() int { return len(s.items) }

// At returns the i-th element.
func (s *Sequence) At(i int) Value { return s.items[i] }

// Append adds v at the end.
func (s *Sequence) Append(v Value) { s.items = append(s.items, v) }

// Set replaces the i-th element.
func (s *Sequence) Set(i int, v Value) { s.items[i] = v }

// Keyed is a string-keyed map that remembers insertion order. The zero value
// is an empty map ready to use.
type Keyed struct {
	keys   []string
	values map[string]Value
}

// NewKeyed returns an empty map sized for n keys.
func NewKeyed(n int) *Keyed {
	return &Keyed{
		keys:   make([]string, 0, n),
		values: make(map[string]Value, n),
	}
}

// Len returns the number of keys.
func (k *Keyed) Len() int { return len(k.keys) }

// Set stores v under key. A new key goes to the end; an existing key keeps its position.
func (k *Keyed) Set(key string, v Value) {
	if k.values == nil {
		k.values = make(map[string]Value)
	}
	if _, ok := k.values[key]; !ok {
		k.keys = append(k.keys, key)
	}
	k.values[key] = v
}

// Get returns the value under key.
func (k *Keyed) Get(key string) (Value, bool) {
	v, ok := k.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (k *Keyed) Keys() []string {
	out := make([]string, len(k.keys))
	copy(out, k.keys)
	return out
}

// Range calls fn for each entry in insertion order until fn returns false.
func (k *Keyed) Range(fn func(key string, v Value) bool) {
	for _, key := range k.keys {
		if !fn(key, k.values[key]) {
			return
		}
	}
}
