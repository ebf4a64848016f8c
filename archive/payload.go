package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// Kind is the type tag of a payload value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindNested
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindNested:
		return "nested"
	default:
		return "unknown"
	}
}

// Value is a tagged JSON value. Raw holds its JSON encoding.
type Value struct {
	Kind Kind
	Raw  json.RawMessage
}

// Null returns the JSON null value.
func Null() Value {
	return Value{Kind: KindNull, Raw: json.RawMessage("null")}
}

// String returns a string value.
func String(s string) Value {
	raw, _ := json.Marshal(s)
	return Value{Kind: KindString, Raw: raw}
}

// OptionalString returns a string value, or null for a nil s.
func OptionalString(s *string) Value {
	if s == nil {
		return Null()
	}
	return String(*s)
}

// Number returns a numeric value.
func Number(n int64) Value {
	return Value{Kind: KindNumber, Raw: json.RawMessage(strconv.FormatInt(n, 10))}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{Kind: KindBool, Raw: json.RawMessage(strconv.FormatBool(b))}
}

// NestedValue returns an object or array value. raw must be valid JSON.
func NestedValue(raw []byte) Value {
	return Value{Kind: KindNested, Raw: json.RawMessage(raw)}
}

// Str returns the value as a string, if it is one.
func (v Value) Str() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return gjson.ParseBytes(v.Raw).String(), true
}

func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.Raw) == 0 {
		return []byte("null"), nil
	}
	return v.Raw, nil
}

func valueOf(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null()
	case gjson.String:
		return Value{Kind: KindString, Raw: json.RawMessage(r.Raw)}
	case gjson.Number:
		return Value{Kind: KindNumber, Raw: json.RawMessage(r.Raw)}
	case gjson.True, gjson.False:
		return Value{Kind: KindBool, Raw: json.RawMessage(r.Raw)}
	default:
		return Value{Kind: KindNested, Raw: json.RawMessage(r.Raw)}
	}
}

// Field is a single payload entry.
type Field struct {
	Key   string
	Value Value
}

// Payload is the schema-flexible part of a record: an ordered list of
// fields that marshals into a JSON object in the same order.
type Payload []Field

var errNotAnObject = errors.New("payload is not a JSON object")

// ParsePayload decodes a JSON object into a payload, keeping key order.
func ParsePayload(raw []byte) (Payload, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid payload JSON: %q", raw)
	}
	obj := gjson.ParseBytes(raw)
	if !obj.IsObject() {
		return nil, errNotAnObject
	}
	var p Payload
	obj.ForEach(func(key, value gjson.Result) bool {
		p = append(p, Field{Key: key.String(), Value: valueOf(value)})
		return true
	})
	return p, nil
}

// Get returns the value of the first field with the key.
func (p Payload) Get(key string) (Value, bool) {
	for _, f := range p {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Set returns a copy of the payload with the key set to v. A new key is
// appended.
func (p Payload) Set(key string, v Value) Payload {
	out := make(Payload, len(p), len(p)+1)
	copy(out, p)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = v
			return out
		}
	}
	return append(out, Field{Key: key, Value: v})
}

// Select returns a copy of the payload with only the given keys, in
// payload order.
func (p Payload) Select(keys ...string) Payload {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	out := make(Payload, 0, len(keys))
	for _, f := range p {
		if _, ok := want[f.Key]; ok {
			out = append(out, f)
		}
	}
	return out
}

// RenameKeys returns a copy of the payload with every key mapped through fn.
// If two keys map to the same name the first one wins.
func (p Payload) RenameKeys(fn func(string) string) Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, 0, len(p))
	seen := make(map[string]struct{}, len(p))
	for _, f := range p {
		key := fn(f.Key)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Field{Key: key, Value: f.Value})
	}
	return out
}

func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := p.writeFields(&buf, nil, true); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p Payload) writeFields(buf *bytes.Buffer, skip map[string]struct{}, first bool) error {
	for _, f := range p {
		if _, ok := skip[f.Key]; ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(f.Key)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		raw, _ := f.Value.MarshalJSON()
		buf.Write(raw)
	}
	return nil
}

// marshalRecord writes the structural fields, then every payload field
// whose key does not collide with a structural one.
func marshalRecord(p Payload, structural ...Field) ([]byte, error) {
	var buf bytes.Buffer
	skip := make(map[string]struct{}, len(structural))
	for _, f := range structural {
		skip[f.Key] = struct{}{}
	}
	buf.WriteByte('{')
	if err := Payload(structural).writeFields(&buf, nil, true); err != nil {
		return nil, err
	}
	if err := p.writeFields(&buf, skip, len(structural) == 0); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
