// Package message defines the data model shared by every engine package:
// the tagged Value union, the Message a pipeline mutates, and the
// immutable Rule/Pipeline/ProgramSnapshot program image.
package message

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the concrete representation held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindLong
	KindDouble
	KindBool
	KindString
	KindMap
	KindList
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Value is the tagged union every expression evaluates to: Long, Double,
// Boolean, String, Map, List, a Message handle, or Null. Values are
// immutable once constructed.
type Value struct {
	kind Kind
	l    int64
	d    float64
	b    bool
	s    string
	m    map[string]Value
	list []Value
	msg  *Message
}

// Null is the singleton null Value.
var Null = Value{kind: KindNull}

func Long(v int64) Value    { return Value{kind: KindLong, l: v} }
func Double(v float64) Value { return Value{kind: KindDouble, d: v} }
func Bool(v bool) Value      { return Value{kind: KindBool, b: v} }
func String(v string) Value  { return Value{kind: KindString, s: v} }
func Map(v map[string]Value) Value {
	if v == nil {
		v = map[string]Value{}
	}
	return Value{kind: KindMap, m: v}
}
func List(v []Value) Value { return Value{kind: KindList, list: v} }
func FromMessage(m *Message) Value {
	if m == nil {
		return Null
	}
	return Value{kind: KindMessage, msg: m}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Truthy implements spec.md §4.1: Null and Boolean(false) are false, all
// other values are true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	default:
		return true
	}
}

func (v Value) AsLong() (int64, bool) {
	switch v.kind {
	case KindLong:
		return v.l, true
	case KindDouble:
		return int64(v.d), true
	default:
		return 0, false
	}
}

func (v Value) AsDouble() (float64, bool) {
	switch v.kind {
	case KindLong:
		return float64(v.l), true
	case KindDouble:
		return v.d, true
	default:
		return 0, false
	}
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

func (v Value) AsMessage() (*Message, bool) {
	if v.kind != KindMessage {
		return nil, false
	}
	return v.msg, true
}

func (v Value) IsIntegral() bool { return v.kind == KindLong }
func (v Value) IsNumeric() bool  { return v.kind == KindLong || v.kind == KindDouble }

// String returns the canonical string form of the Value, used by `+`
// coercion, logging, and the snapshot content hash.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindLong:
		return strconv.FormatInt(v.l, 10)
	case KindDouble:
		return strconv.FormatFloat(v.d, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(v.m[k].String())
		}
		b.WriteByte('}')
		return b.String()
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case KindMessage:
		if v.msg == nil {
			return ""
		}
		return fmt.Sprintf("message(%s)", v.msg.ID)
	default:
		return ""
	}
}

// Equal implements spec.md §4.1's `==`: numeric comparison promotes
// integral to double when mixed; a numeric compared with a non-numeric is
// false without error; equal tagged values are true.
func (v Value) Equal(other Value) bool {
	if v.IsNumeric() && other.IsNumeric() {
		a, _ := v.AsDouble()
		b, _ := other.AsDouble()
		return a == b
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindString:
		return v.s == other.s
	case KindMessage:
		return v.msg == other.msg
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, val := range v.m {
			ov, ok := other.m[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
