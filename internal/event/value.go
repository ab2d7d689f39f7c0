package event

import (
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// MaxParseDepth bounds how deep ParseValue descends. Deeper subtrees are
// kept verbatim as KindRaw so nothing is lost on export.
const MaxParseDepth = 64

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindRaw:
		return "raw"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Field is one key of an object Value. Objects keep their fields in
// document order.
type Field struct {
	Key   string
	Value Value
}

// F is shorthand for building object fields.
func F(key string, v Value) Field {
	return Field{Key: key, Value: v}
}

// Value is a decoded JSON value from an event's details payload.
// The zero Value is KindAbsent.
type Value struct {
	kind   Kind
	text   string // string content, number literal or raw JSON
	b      bool
	items  []Value
	fields []Field
}

func Null() Value { return Value{kind: KindNull} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func String(s string) Value { return Value{kind: KindString, text: s} }
func Array(items ...Value) Value { return Value{kind: KindArray, items: items} }
func Object(fields ...Field) Value {
	return Value{kind: KindObject, fields: fields}
}

// Number holds a JSON number literal as written, e.g. "42" or "1.5e3".
func Number(literal string) Value {
	return Value{kind: KindNumber, text: literal}
}

// Int is a convenience for integral numbers.
func Int(n int64) Value {
	return Number(strconv.FormatInt(n, 10))
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }
func (v Value) Items() []Value { return v.items }
func (v Value) Fields() []Field { return v.fields }
func (v Value) BoolValue() bool { return v.b }

// Text returns the string content, number literal or raw JSON.
func (v Value) Text() string { return v.text }

// Len is the number of array items or object fields.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.fields)
	default:
		return 0
	}
}

// Get returns the first field named key.
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// IsScalar reports whether v is a bool, number or string.
func (v Value) IsScalar() bool {
	return v.kind == KindBool || v.kind == KindNumber || v.kind == KindString
}

// IsContainer reports whether v is an array or object.
func (v Value) IsContainer() bool {
	return v.kind == KindArray || v.kind == KindObject
}

// IsBlank reports absent, null and empty-string values.
func (v Value) IsBlank() bool {
	switch v.kind {
	case KindAbsent, KindNull:
		return true
	case KindString:
		return v.text == ""
	default:
		return false
	}
}

// String renders scalars the way they read in the dashboard.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber, KindString, KindRaw:
		return v.text
	case KindNull:
		return "null"
	default:
		return ""
	}
}

// Equal reports deep structural equality, field order included.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.text != o.text || v.b != o.b {
		return false
	}
	if len(v.items) != len(o.items) || len(v.fields) != len(o.fields) {
		return false
	}
	for i := range v.items {
		if !v.items[i].Equal(o.items[i]) {
			return false
		}
	}
	for i := range v.fields {
		if v.fields[i].Key != o.fields[i].Key || !v.fields[i].Value.Equal(o.fields[i].Value) {
			return false
		}
	}
	return true
}

// ParseValue decodes raw JSON into a Value. Empty input is KindAbsent;
// invalid JSON is kept as KindRaw.
func ParseValue(raw []byte) Value {
	if len(raw) == 0 {
		return Value{}
	}
	if !gjson.ValidBytes(raw) {
		return Value{kind: KindRaw, text: string(raw)}
	}
	return fromResult(gjson.ParseBytes(raw), 0)
}

func fromResult(r gjson.Result, depth int) Value {
	switch r.Type {
	case gjson.Null:
		return Null()
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Number(r.Raw)
	case gjson.String:
		return String(r.Str)
	}

	if depth >= MaxParseDepth {
		return Value{kind: KindRaw, text: r.Raw}
	}

	if r.IsArray() {
		items := make([]Value, 0)
		r.ForEach(func(_, item gjson.Result) bool {
			items = append(items, fromResult(item, depth+1))
			return true
		})
		return Array(items...)
	}

	fields := make([]Field, 0)
	r.ForEach(func(key, item gjson.Result) bool {
		fields = append(fields, F(key.Str, fromResult(item, depth+1)))
		return true
	})
	return Object(fields...)
}

// MarshalJSON writes v back out with object key order preserved.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil)
}

func (v Value) appendJSON(buf []byte) ([]byte, error) {
	switch v.kind {
	case KindAbsent, KindNull:
		return append(buf, "null"...), nil
	case KindBool:
		return strconv.AppendBool(buf, v.b), nil
	case KindNumber, KindRaw:
		return append(buf, v.text...), nil
	case KindString:
		s, err := json.Marshal(v.text)
		if err != nil {
			return nil, err
		}
		return append(buf, s...), nil
	case KindArray:
		buf = append(buf, '[')
		for i, item := range v.items {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			if buf, err = item.appendJSON(buf); err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case KindObject:
		return appendObject(buf, v.fields)
	}
	return append(buf, "null"...), nil
}

func appendObject(buf []byte, fields []Field) ([]byte, error) {
	buf = append(buf, '{')
	first := true
	for _, f := range fields {
		if f.Value.IsAbsent() {
			continue
		}
		if !first {
			buf = append(buf, ',')
		}
		first = false
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		if buf, err = f.Value.appendJSON(buf); err != nil {
			return nil, err
		}
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON lets Value sit inside structs decoded by encoding libraries.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = ParseValue(data)
	return nil
}
