package sourcing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/ruleflow/sourcing"
)

func TestParseError_ErrorIncludesPositionWhenSet(t *testing.T) {
	err := &sourcing.ParseError{SourceID: "r1", Line: 3, Column: 5, Message: "unexpected token"}
	require.Equal(t, "r1:3:5: unexpected token", err.Error())
}

func TestParseError_ErrorOmitsPositionWhenUnset(t *testing.T) {
	err := &sourcing.ParseError{SourceID: "r1", Message: "tokenize failed"}
	require.Equal(t, "r1: tokenize failed", err.Error())
}
