package evalctx_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/ruleflow/evalctx"
	"github.com/flowforge/ruleflow/functions"
	"github.com/flowforge/ruleflow/message"
)

func TestGetVar_UnboundYieldsNull(t *testing.T) {
	ctx := evalctx.New(message.New(), functions.NewDefaultRegistry())
	require.True(t, ctx.GetVar("missing").IsNull())
}

func TestSetVarThenGetVar_RoundTrips(t *testing.T) {
	ctx := evalctx.New(message.New(), functions.NewDefaultRegistry())
	ctx.SetVar("x", message.Long(42))
	require.Equal(t, message.Long(42), ctx.GetVar("x"))
}

func TestCreateMessage_AccumulatesUntilCleared(t *testing.T) {
	ctx := evalctx.New(message.New(), functions.NewDefaultRegistry())
	m1 := message.New()
	m2 := message.New()
	ctx.CreateMessage(m1)
	ctx.CreateMessage(m2)
	require.Len(t, ctx.CreatedMessages(), 2)

	ctx.ClearCreatedMessages()
	require.Empty(t, ctx.CreatedMessages())
}

func TestBindingsDoNotLeakAcrossFreshContexts(t *testing.T) {
	msg := message.New()
	reg := functions.NewDefaultRegistry()

	first := evalctx.New(msg, reg)
	first.SetVar("x", message.Long(1))

	second := evalctx.New(msg, reg)
	require.True(t, second.GetVar("x").IsNull())
}
