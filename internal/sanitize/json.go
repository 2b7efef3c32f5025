package sanitize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

// ErrDecode is returned for documents that are not a single JSON value.
var ErrDecode = errors.New("sanitize: invalid JSON document")

// Decode parses a JSON document into a Value, keeping object keys in document
// order. Composites nested deeper than maxDepth are skipped and left as empty
// placeholders; the engine replaces them with the depth sentinel.
func Decode(data []byte, maxDepth int) (Value, error) {
	// The iterator reports truncated input as a plain EOF, so syntax is
	// checked strictly up front.
	if !json.Valid(data) {
		return Null(), ErrDecode
	}

	iter := jsonAPI.BorrowIterator(data)
	defer jsonAPI.ReturnIterator(iter)

	v := decodeValue(iter, 0, maxDepth)
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return Null(), fmt.Errorf("%w: %v", ErrDecode, iter.Error)
	}
	return v, nil
}

func decodeValue(iter *jsoniter.Iterator, depth, maxDepth int) Value {
	switch iter.WhatIsNext() {
	case jsoniter.StringValue:
		return String(iter.ReadString())
	case jsoniter.NumberValue:
		return Number(iter.ReadNumber())
	case jsoniter.BoolValue:
		return Bool(iter.ReadBool())
	case jsoniter.NilValue:
		iter.ReadNil()
		return Null()
	case jsoniter.ArrayValue:
		if depth > maxDepth {
			iter.Skip()
			return Seq(NewSequence())
		}
		seq := NewSequence()
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			seq.Append(decodeValue(it, depth+1, maxDepth))
			return it.Error == nil
		})
		return Seq(seq)
	case jsoniter.ObjectValue:
		if depth > maxDepth {
			iter.Skip()
			return Object(NewKeyed(0))
		}
		obj := NewKeyed(8)
		iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			obj.Set(key, decodeValue(it, depth+1, maxDepth))
			return it.Error == nil
		})
		return Object(obj)
	default:
		iter.ReportError("decode", "unexpected token")
		return Null()
	}
}

// MarshalJSON encodes v. A composite that contains itself is written as the
// circular-reference sentinel at the point of recursion.
func (v Value) MarshalJSON() ([]byte, error) {
	stream := jsonAPI.BorrowStream(nil)
	defer jsonAPI.ReturnStream(stream)

	writeValue(stream, v, make(map[any]struct{}))
	if stream.Error != nil {
		return nil, stream.Error
	}
	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}

func writeValue(stream *jsoniter.Stream, v Value, onPath map[any]struct{}) {
	switch v.kind {
	case KindNull:
		stream.WriteNil()
	case KindBool:
		stream.WriteBool(v.b)
	case KindNumber:
		stream.WriteRaw(v.s)
	case KindString:
		stream.WriteString(v.s)
	case KindSequence:
		if _, ok := onPath[v.seq]; ok {
			stream.WriteString(SentinelCircular)
			return
		}
		onPath[v.seq] = struct{}{}
		defer delete(onPath, v.seq)

		stream.WriteArrayStart()
		for i, item := range v.seq.items {
			if i > 0 {
				stream.WriteMore()
			}
			writeValue(stream, item, onPath)
		}
		stream.WriteArrayEnd()
	case KindKeyed:
		if _, ok := onPath[v.keyed]; ok {
			stream.WriteString(SentinelCircular)
			return
		}
		onPath[v.keyed] = struct{}{}
		defer delete(onPath, v.keyed)

		stream.WriteObjectStart()
		for i, key := range v.keyed.keys {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(key)
			writeValue(stream, v.keyed.values[key], onPath)
		}
		stream.WriteObjectEnd()
	case KindOpaque:
		writeOpaque(stream, v.opaque)
	default:
		stream.WriteNil()
	}
}

// writeOpaque renders a host value the way encoding/json would, except that
// errors become an empty object and handles (funcs, channels, readers,
// contexts) become null.
func writeOpaque(stream *jsoniter.Stream, x any) {
	if x == nil {
		stream.WriteNil()
		return
	}
	if _, ok := x.(error); ok {
		stream.WriteEmptyObject()
		return
	}
	if isHandle(x) {
		stream.WriteNil()
		return
	}
	data, err := jsonAPI.Marshal(x)
	if err != nil {
		stream.WriteNil()
		return
	}
	stream.WriteRaw(string(data))
}

// isHandle reports whether x is a live resource rather than data.
func isHandle(x any) bool {
	switch x.(type) {
	case io.Reader, io.Writer, io.Closer, context.Context:
		return true
	}
	switch reflect.TypeOf(x).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}
