package functions

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flowforge/ruleflow/ast"
	"github.com/flowforge/ruleflow/message"
)

// NewDefaultRegistry returns a Registry pre-populated with the built-in
// function library of SPEC_FULL.md §6: a representative set the original
// spec left unenumerated ("listed in §6 but not individually enumerated").
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range builtins() {
		r.Register(d)
	}
	return r
}

func builtins() []*Descriptor {
	return []*Descriptor{
		{
			Name:   "set_field",
			Params: []Param{{Name: "name", Required: true}, {Name: "value", Required: true}},
			Mutating: true,
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				name, ok := Arg([]Param{{Name: "name"}, {Name: "value"}}, 0, positional, named).AsString()
				if !ok {
					return message.Null, fmt.Errorf("%w: set_field requires a string field name", ast.ErrTypeMismatch)
				}
				value := Arg([]Param{{Name: "name"}, {Name: "value"}}, 1, positional, named)
				ctx.Message().SetField(name, value)
				return message.Null, nil
			},
		},
		{
			Name:   "get_field",
			Params: []Param{{Name: "name", Required: true}},
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				name, ok := Arg([]Param{{Name: "name"}}, 0, positional, named).AsString()
				if !ok {
					return message.Null, fmt.Errorf("%w: get_field requires a string field name", ast.ErrTypeMismatch)
				}
				return ctx.Message().Field(name), nil
			},
		},
		{
			Name:     "drop_message",
			Mutating: true,
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				ctx.Message().FilterOut = true
				return message.Null, nil
			},
		},
		{
			Name:     "route_to_stream",
			Params:   []Param{{Name: "name", Required: true}},
			Mutating: true,
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				name, ok := Arg([]Param{{Name: "name"}}, 0, positional, named).AsString()
				if !ok {
					return message.Null, fmt.Errorf("%w: route_to_stream requires a string stream name", ast.ErrTypeMismatch)
				}
				ctx.Message().AddStream(name)
				return message.Null, nil
			},
		},
		{
			Name:     "remove_from_stream",
			Params:   []Param{{Name: "name", Required: true}},
			Mutating: true,
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				name, ok := Arg([]Param{{Name: "name"}}, 0, positional, named).AsString()
				if !ok {
					return message.Null, fmt.Errorf("%w: remove_from_stream requires a string stream name", ast.ErrTypeMismatch)
				}
				ctx.Message().RemoveStream(name)
				return message.Null, nil
			},
		},
		{
			Name:     "create_message",
			Params:   []Param{{Name: "fields", Required: false}},
			Mutating: true,
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				fields := Arg([]Param{{Name: "fields"}}, 0, positional, named)
				m := message.New()
				if mm, ok := fields.AsMap(); ok {
					for k, v := range mm {
						m.SetField(k, v)
					}
				}
				ctx.CreateMessage(m)
				return message.FromMessage(m), nil
			},
		},
		{
			Name:   "to_string",
			Params: []Param{{Name: "value", Required: true}},
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				return message.String(Arg([]Param{{Name: "value"}}, 0, positional, named).String()), nil
			},
		},
		{
			Name:   "to_long",
			Params: []Param{{Name: "value", Required: true}},
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				v := Arg([]Param{{Name: "value"}}, 0, positional, named)
				if n, ok := v.AsLong(); ok {
					return message.Long(n), nil
				}
				if s, ok := v.AsString(); ok {
					n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
					if err != nil {
						return message.Null, fmt.Errorf("%w: cannot convert %q to long", ast.ErrTypeMismatch, s)
					}
					return message.Long(n), nil
				}
				return message.Null, fmt.Errorf("%w: cannot convert %s to long", ast.ErrTypeMismatch, v.Kind())
			},
		},
		{
			Name:   "to_double",
			Params: []Param{{Name: "value", Required: true}},
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				v := Arg([]Param{{Name: "value"}}, 0, positional, named)
				if n, ok := v.AsDouble(); ok {
					return message.Double(n), nil
				}
				if s, ok := v.AsString(); ok {
					n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
					if err != nil {
						return message.Null, fmt.Errorf("%w: cannot convert %q to double", ast.ErrTypeMismatch, s)
					}
					return message.Double(n), nil
				}
				return message.Null, fmt.Errorf("%w: cannot convert %s to double", ast.ErrTypeMismatch, v.Kind())
			},
		},
		{
			Name: "concat",
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				var b strings.Builder
				for _, v := range positional {
					b.WriteString(v.String())
				}
				return message.String(b.String()), nil
			},
		},
		{
			Name:   "lowercase",
			Params: []Param{{Name: "value", Required: true}},
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				return message.String(strings.ToLower(Arg([]Param{{Name: "value"}}, 0, positional, named).String())), nil
			},
		},
		{
			Name:   "uppercase",
			Params: []Param{{Name: "value", Required: true}},
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				return message.String(strings.ToUpper(Arg([]Param{{Name: "value"}}, 0, positional, named).String())), nil
			},
		},
		{
			Name:   "contains",
			Params: []Param{{Name: "haystack", Required: true}, {Name: "needle", Required: true}},
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				params := []Param{{Name: "haystack"}, {Name: "needle"}}
				haystack := Arg(params, 0, positional, named).String()
				needle := Arg(params, 1, positional, named).String()
				return message.Bool(strings.Contains(haystack, needle)), nil
			},
		},
		{
			Name:   "length",
			Params: []Param{{Name: "value", Required: true}},
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				v := Arg([]Param{{Name: "value"}}, 0, positional, named)
				switch v.Kind() {
				case message.KindString:
					s, _ := v.AsString()
					return message.Long(int64(len(s))), nil
				case message.KindList:
					l, _ := v.AsList()
					return message.Long(int64(len(l))), nil
				case message.KindMap:
					m, _ := v.AsMap()
					return message.Long(int64(len(m))), nil
				case message.KindNull:
					return message.Long(0), nil
				default:
					return message.Null, fmt.Errorf("%w: length is not defined for %s", ast.ErrTypeMismatch, v.Kind())
				}
			},
		},
		{
			Name: "now",
			Call: func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error) {
				return message.Long(time.Now().UnixMilli()), nil
			},
		},
	}
}
