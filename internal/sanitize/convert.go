package sanitize

import (
	"context"
	"encoding"
	"encoding/json"
	"io"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	valueType         = reflect.TypeOf(Value{})
	timeType          = reflect.TypeOf(time.Time{})
	regexpType        = reflect.TypeOf(regexp.Regexp{})
	numberType        = reflect.TypeOf(json.Number(""))
	rawMessageType    = reflect.TypeOf(json.RawMessage(nil))
	errorType         = reflect.TypeOf((*error)(nil)).Elem()
	readerType        = reflect.TypeOf((*io.Reader)(nil)).Elem()
	writerType        = reflect.TypeOf((*io.Writer)(nil)).Elem()
	closerType        = reflect.TypeOf((*io.Closer)(nil)).Elem()
	contextType       = reflect.TypeOf((*context.Context)(nil)).Elem()
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// FromAny converts a Go value into a Value following encoding/json
// conventions: struct fields by their json tags (honouring "-", omitempty,
// omitzero, and embedded structs with the same name-collision rules), maps
// with sortable keys, slices, arrays, and pointers. Types that implement json.Marshaler or encoding.TextMarshaler are
// converted from their marshalled form.
//
// Timestamps, byte slices, errors, compiled patterns, readers, writers,
// closers, contexts, funcs, channels and complex numbers become Opaque.
//
// Pointers, maps and slices are tracked by identity, so a Go value that
// refers back to itself becomes a Value that does the same. A loop made only
// of pointers and interfaces, with no struct, map or slice on it, becomes the
// circular-reference sentinel. Composites below maxDepth are left as empty
// placeholders.
func FromAny(x any, maxDepth int) Value {
	if v, ok := x.(Value); ok {
		return v
	}
	c := converter{
		maxDepth:  maxDepth,
		seen:      make(map[identity]memo),
		following: make(map[identity]bool),
	}
	return c.convert(reflect.ValueOf(x), 0)
}

type identity struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

// memo records the Value built for an identity and the depth it was built at.
// A conversion made deeper down may have been cut short by maxDepth, so it is
// only reused at the same depth or below.
type memo struct {
	value Value
	depth int
}

// maxPointerHops bounds the plain pointers and interfaces followed along one
// path.
const maxPointerHops = 1024

type converter struct {
	maxDepth int
	seen     map[identity]memo

	// following holds the plain pointers on the current path.
	following map[identity]bool
}

func (c *converter) lookup(id identity, depth int) (Value, bool) {
	m, ok := c.seen[id]
	if !ok || depth < m.depth {
		return Null(), false
	}
	return m.value, true
}

func (c *converter) remember(id identity, depth int, v Value) {
	c.seen[id] = memo{value: v, depth: depth}
}

func (c *converter) convert(rv reflect.Value, depth int) Value {
	if !rv.IsValid() {
		return Null()
	}

	t := rv.Type()
	switch t {
	case valueType:
		if !rv.CanInterface() {
			return Null()
		}
		return rv.Interface().(Value)
	case timeType, regexpType:
		if !rv.CanInterface() {
			return Null()
		}
		return Opaque(rv.Interface())
	case numberType:
		return Number(json.Number(rv.String()))
	case rawMessageType:
		if rv.IsNil() {
			return Null()
		}
		v, err := Decode(rv.Bytes(), c.maxDepth-depth)
		if err != nil {
			return Null()
		}
		return v
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return Null()
		}
		return c.convert(rv.Elem(), depth)
	case reflect.Pointer:
		if rv.IsNil() {
			return Null()
		}
	}

	if opaque(t) {
		if rv.CanInterface() {
			return Opaque(rv.Interface())
		}
		return Null()
	}

	if rv.Kind() != reflect.Pointer && rv.Kind() != reflect.Interface && rv.CanInterface() {
		if v, ok := c.marshalled(rv, depth); ok {
			return v
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float())
	case reflect.String:
		return String(rv.String())
	case reflect.Pointer:
		return c.convertPointer(rv, depth)
	case reflect.Map:
		return c.convertMap(rv, depth)
	case reflect.Slice:
		return c.convertSlice(rv, depth)
	case reflect.Array:
		return c.convertArray(rv, depth)
	case reflect.Struct:
		return c.convertStruct(rv, depth)
	default:
		return Null()
	}
}

// opaque reports whether values of t are host resources that are never traversed.
func opaque(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return true
		}
	case reflect.Pointer:
		if t.Elem() == timeType || t.Elem() == regexpType {
			return true
		}
	}
	return t.Implements(errorType) ||
		t.Implements(readerType) ||
		t.Implements(writerType) ||
		t.Implements(closerType) ||
		t.Implements(contextType)
}

// marshalled converts values that define their own JSON or text form.
func (c *converter) marshalled(rv reflect.Value, depth int) (Value, bool) {
	t := rv.Type()
	switch {
	case t.Implements(jsonMarshalerType):
		m, ok := rv.Interface().(json.Marshaler)
		if !ok {
			return Null(), false
		}
		data, err := m.MarshalJSON()
		if err != nil {
			return Opaque(rv.Interface()), true
		}
		v, err := Decode(data, c.maxDepth-depth)
		if err != nil {
			return Opaque(rv.Interface()), true
		}
		return v, true
	case t.Implements(textMarshalerType):
		m, ok := rv.Interface().(encoding.TextMarshaler)
		if !ok {
			return Null(), false
		}
		text, err := m.MarshalText()
		if err != nil {
			return Opaque(rv.Interface()), true
		}
		return String(string(text)), true
	}
	return Null(), false
}

func (c *converter) convertPointer(rv reflect.Value, depth int) Value {
	elem := rv.Elem()
	id := identity{ptr: rv.Pointer(), typ: elem.Type()}

	if elem.Kind() != reflect.Struct && elem.Kind() != reflect.Array {
		// Hops through pointers and interfaces build no composite, so a loop
		// made only of them is cut here.
		if c.following[id] {
			return String(SentinelCircular)
		}
		if len(c.following) >= maxPointerHops {
			return Null()
		}
		c.following[id] = true
		defer delete(c.following, id)
		return c.convert(elem, depth)
	}

	if v, ok := c.lookup(id, depth); ok {
		return v
	}

	if rv.CanInterface() {
		if v, ok := c.marshalled(rv, depth); ok {
			return v
		}
	}

	if elem.Kind() == reflect.Array {
		seq := NewSequence()
		v := Seq(seq)
		c.remember(id, depth, v)
		c.fillArray(seq, elem, depth)
		return v
	}

	obj := NewKeyed(elem.NumField())
	v := Object(obj)
	c.remember(id, depth, v)
	if depth <= c.maxDepth {
		c.fillStruct(obj, elem, depth)
	}
	return v
}

func (c *converter) convertMap(rv reflect.Value, depth int) Value {
	if rv.IsNil() {
		return Null()
	}
	id := identity{ptr: rv.Pointer(), typ: rv.Type()}
	if v, ok := c.lookup(id, depth); ok {
		return v
	}

	obj := NewKeyed(rv.Len())
	v := Object(obj)
	c.remember(id, depth, v)
	if depth > c.maxDepth {
		return v
	}

	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, ok := mapKey(iter.Key())
		if !ok {
			continue
		}
		entries = append(entries, entry{key: key, val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	for _, e := range entries {
		obj.Set(e.key, c.convert(e.val, depth+1))
	}
	return v
}

// mapKey renders a map key the way encoding/json does.
func mapKey(k reflect.Value) (string, bool) {
	if k.Kind() == reflect.String {
		return k.String(), true
	}
	if !k.CanInterface() {
		return "", false
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		if k.Kind() == reflect.Pointer && k.IsNil() {
			return "", false
		}
		text, err := tm.MarshalText()
		if err != nil {
			return "", false
		}
		return string(text), true
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), true
	}
	return "", false
}

func (c *converter) convertSlice(rv reflect.Value, depth int) Value {
	if rv.IsNil() {
		return Null()
	}
	id := identity{ptr: rv.Pointer(), typ: rv.Type(), n: rv.Len()}
	if v, ok := c.lookup(id, depth); ok {
		return v
	}

	seq := NewSequence()
	v := Seq(seq)
	c.remember(id, depth, v)
	c.fillArray(seq, rv, depth)
	return v
}

func (c *converter) convertArray(rv reflect.Value, depth int) Value {
	seq := NewSequence()
	c.fillArray(seq, rv, depth)
	return Seq(seq)
}

func (c *converter) fillArray(seq *Sequence, rv reflect.Value, depth int) {
	if depth > c.maxDepth {
		return
	}
	seq.items = make([]Value, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		seq.items = append(seq.items, c.convert(rv.Index(i), depth+1))
	}
}

func (c *converter) convertStruct(rv reflect.Value, depth int) Value {
	obj := NewKeyed(rv.NumField())
	if depth <= c.maxDepth {
		c.fillStruct(obj, rv, depth)
	}
	return Object(obj)
}

// structField is one JSON-visible field of a struct, possibly promoted from
// an embedded struct. value is invalid when the field sits behind a nil
// embedded pointer.
type structField struct {
	name      string
	tagged    bool
	index     []int
	value     reflect.Value
	omitEmpty bool
	omitZero  bool
}

func (c *converter) fillStruct(obj *Keyed, rv reflect.Value, depth int) {
	for _, f := range visibleFields(rv) {
		if !f.value.IsValid() {
			continue
		}
		if f.omitEmpty && isEmptyValue(f.value) {
			continue
		}
		if f.omitZero && isZeroValue(f.value) {
			continue
		}
		obj.Set(f.name, c.convert(f.value, depth+1))
	}
}

// visibleFields lists the fields encoding/json would write for rv, in
// declaration order. Embedded structs are expanded breadth first and each
// struct type is expanded once, so a type that embeds a pointer to itself
// terminates. When names collide the shallowest field wins, then a tagged
// one; otherwise the name is dropped.
func visibleFields(rv reflect.Value) []structField {
	type level struct {
		t     reflect.Type
		v     reflect.Value
		index []int
	}

	var fields []structField
	visited := make(map[reflect.Type]bool)
	current := []level{{t: rv.Type(), v: rv}}
	for len(current) > 0 {
		var next []level
		for _, l := range current {
			if visited[l.t] {
				continue
			}
			visited[l.t] = true

			for i := 0; i < l.t.NumField(); i++ {
				sf := l.t.Field(i)
				ft := sf.Type
				if sf.Anonymous {
					if ft.Kind() == reflect.Pointer {
						ft = ft.Elem()
					}
					if !sf.IsExported() && ft.Kind() != reflect.Struct {
						continue
					}
				} else if !sf.IsExported() {
					continue
				}

				name, omitEmpty, omitZero, skip := fieldName(sf)
				if skip {
					continue
				}

				index := append(append(make([]int, 0, len(l.index)+1), l.index...), i)
				fv := valueAt(l.v, i)

				if name == "" && sf.Anonymous && ft.Kind() == reflect.Struct {
					if fv.IsValid() && fv.Kind() == reflect.Pointer {
						if fv.IsNil() {
							fv = reflect.Value{}
						} else {
							fv = fv.Elem()
						}
					}
					next = append(next, level{t: ft, v: fv, index: index})
					continue
				}

				f := structField{
					name:      name,
					tagged:    name != "",
					index:     index,
					value:     fv,
					omitEmpty: omitEmpty,
					omitZero:  omitZero,
				}
				if f.name == "" {
					f.name = sf.Name
				}
				fields = append(fields, f)
			}
		}
		current = next
	}

	return dominantFields(fields)
}

func valueAt(v reflect.Value, i int) reflect.Value {
	if !v.IsValid() {
		return reflect.Value{}
	}
	return v.Field(i)
}

// dominantFields resolves name collisions and restores declaration order.
func dominantFields(fields []structField) []structField {
	byName := make(map[string][]structField, len(fields))
	for _, f := range fields {
		byName[f.name] = append(byName[f.name], f)
	}

	out := make([]structField, 0, len(byName))
	for _, group := range byName {
		sort.SliceStable(group, func(i, j int) bool {
			if len(group[i].index) != len(group[j].index) {
				return len(group[i].index) < len(group[j].index)
			}
			return group[i].tagged && !group[j].tagged
		})
		if len(group) > 1 && len(group[0].index) == len(group[1].index) && group[0].tagged == group[1].tagged {
			continue
		}
		out = append(out, group[0])
	}

	sort.Slice(out, func(i, j int) bool { return indexLess(out[i].index, out[j].index) })
	return out
}

func indexLess(a, b []int) bool {
	for k := 0; k < len(a) && k < len(b); k++ {
		if a[k] != b[k] {
			return a[k] < b[k]
		}
	}
	return len(a) < len(b)
}

// isEmptyValue matches encoding/json's omitempty test: structs are never empty.
func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Interface, reflect.Pointer:
		return v.IsZero()
	}
	return false
}

// isZeroValue is the omitzero test: an IsZero method if the type has one,
// the language zero value otherwise.
func isZeroValue(v reflect.Value) bool {
	if v.CanInterface() {
		if z, ok := v.Interface().(interface{ IsZero() bool }); ok {
			if v.Kind() == reflect.Pointer && v.IsNil() {
				return true
			}
			return z.IsZero()
		}
	}
	return v.IsZero()
}

// fieldName parses a json struct tag.
func fieldName(field reflect.StructField) (name string, omitEmpty, omitZero, skip bool) {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return "", false, false, false
	}
	if tag == "-" {
		return "", false, false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	for _, opt := range strings.Split(opts, ",") {
		switch opt {
		case "omitempty":
			omitEmpty = true
		case "omitzero":
			omitZero = true
		}
	}
	return name, omitEmpty, omitZero, false
}
