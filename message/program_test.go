package message_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/ruleflow/message"
)

func TestAlwaysFalse_StoresReasonAndAlwaysEvaluatesFalse(t *testing.T) {
	rule := message.AlwaysFalse("broken", "unexpected token at line 3")
	require.Equal(t, "unexpected token at line 3", rule.Reason)

	v, err := rule.When.Evaluate(nil)
	require.NoError(t, err)
	require.Equal(t, message.Bool(false), v)
}

func TestEmpty_StoresReasonAndHasNoStages(t *testing.T) {
	pipeline := message.Empty("broken", "missing closing brace")
	require.Equal(t, "missing closing brace", pipeline.Reason)
	require.Empty(t, pipeline.Stages)
}
