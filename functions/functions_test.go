package functions_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/ruleflow/ast"
	"github.com/flowforge/ruleflow/evalctx"
	"github.com/flowforge/ruleflow/functions"
	"github.com/flowforge/ruleflow/message"
)

func TestCall_UnknownFunctionReturnsErrUnknownFunction(t *testing.T) {
	reg := functions.NewDefaultRegistry()
	ctx := evalctx.New(message.New(), reg)
	_, err := reg.Call(ctx, "does_not_exist", nil, nil)
	require.ErrorIs(t, err, ast.ErrUnknownFunction)
}

func TestCall_TooManyPositionalArgsIsArityMismatch(t *testing.T) {
	reg := functions.NewDefaultRegistry()
	ctx := evalctx.New(message.New(), reg)
	_, err := reg.Call(ctx, "drop_message", []message.Value{message.Long(1)}, nil)
	require.ErrorIs(t, err, ast.ErrArityMismatch)
}

func TestCall_NamedArgumentSatisfiesRequiredParam(t *testing.T) {
	reg := functions.NewDefaultRegistry()
	msg := message.New()
	ctx := evalctx.New(msg, reg)

	_, err := reg.Call(ctx, "set_field", nil, map[string]message.Value{
		"name": message.String("x"), "value": message.Long(1),
	})
	require.NoError(t, err)
	require.Equal(t, message.Long(1), msg.Field("x"))
}

func TestSetFieldAndGetField(t *testing.T) {
	reg := functions.NewDefaultRegistry()
	msg := message.New()
	ctx := evalctx.New(msg, reg)

	_, err := reg.Call(ctx, "set_field", []message.Value{message.String("x"), message.Bool(true)}, nil)
	require.NoError(t, err)

	v, err := reg.Call(ctx, "get_field", []message.Value{message.String("x")}, nil)
	require.NoError(t, err)
	require.Equal(t, message.Bool(true), v)
}

func TestDropMessage_SetsFilterOut(t *testing.T) {
	reg := functions.NewDefaultRegistry()
	msg := message.New()
	ctx := evalctx.New(msg, reg)

	_, err := reg.Call(ctx, "drop_message", nil, nil)
	require.NoError(t, err)
	require.True(t, msg.FilterOut)
}

func TestRouteAndRemoveFromStream(t *testing.T) {
	reg := functions.NewDefaultRegistry()
	msg := message.New()
	ctx := evalctx.New(msg, reg)

	_, err := reg.Call(ctx, "route_to_stream", []message.Value{message.String("s1")}, nil)
	require.NoError(t, err)
	require.True(t, msg.HasStream("s1"))

	_, err = reg.Call(ctx, "remove_from_stream", []message.Value{message.String("s1")}, nil)
	require.NoError(t, err)
	require.False(t, msg.HasStream("s1"))
}

func TestCreateMessage_RecordsCreatedMessageWithFields(t *testing.T) {
	reg := functions.NewDefaultRegistry()
	ctx := evalctx.New(message.New(), reg)

	fields := message.Map(map[string]message.Value{"a": message.Long(1)})
	v, err := reg.Call(ctx, "create_message", []message.Value{fields}, nil)
	require.NoError(t, err)

	created, ok := v.AsMessage()
	require.True(t, ok)
	require.Equal(t, message.Long(1), created.Field("a"))
	require.Len(t, ctx.CreatedMessages(), 1)
}

func TestToLong_ParsesStringAndRejectsGarbage(t *testing.T) {
	reg := functions.NewDefaultRegistry()
	ctx := evalctx.New(message.New(), reg)

	v, err := reg.Call(ctx, "to_long", []message.Value{message.String(" 42 ")}, nil)
	require.NoError(t, err)
	require.Equal(t, message.Long(42), v)

	_, err = reg.Call(ctx, "to_long", []message.Value{message.String("nope")}, nil)
	require.ErrorIs(t, err, ast.ErrTypeMismatch)
}

func TestLength_AcrossKinds(t *testing.T) {
	reg := functions.NewDefaultRegistry()
	ctx := evalctx.New(message.New(), reg)

	v, err := reg.Call(ctx, "length", []message.Value{message.String("hello")}, nil)
	require.NoError(t, err)
	require.Equal(t, message.Long(5), v)

	v, err = reg.Call(ctx, "length", []message.Value{message.Null}, nil)
	require.NoError(t, err)
	require.Equal(t, message.Long(0), v)

	_, err = reg.Call(ctx, "length", []message.Value{message.Long(1)}, nil)
	require.ErrorIs(t, err, ast.ErrTypeMismatch)
}

func TestContainsAndCaseConversion(t *testing.T) {
	reg := functions.NewDefaultRegistry()
	ctx := evalctx.New(message.New(), reg)

	v, err := reg.Call(ctx, "contains", []message.Value{message.String("hello world"), message.String("world")}, nil)
	require.NoError(t, err)
	require.True(t, v.Truthy())

	v, err = reg.Call(ctx, "uppercase", []message.Value{message.String("shout")}, nil)
	require.NoError(t, err)
	require.Equal(t, message.String("SHOUT"), v)
}
