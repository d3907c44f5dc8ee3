package message_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/ruleflow/message"
)

func TestTruthy_NullAndFalseAreFalsyEverythingElseTruthy(t *testing.T) {
	require.False(t, message.Null.Truthy())
	require.False(t, message.Bool(false).Truthy())
	require.True(t, message.Bool(true).Truthy())
	require.True(t, message.Long(0).Truthy())
	require.True(t, message.String("").Truthy())
}

func TestEqual_NumericPromotionAcrossLongAndDouble(t *testing.T) {
	require.True(t, message.Long(2).Equal(message.Double(2.0)))
	require.False(t, message.Long(2).Equal(message.Double(2.1)))
}

func TestEqual_NumericVsNonNumericIsFalse(t *testing.T) {
	require.False(t, message.Long(1).Equal(message.String("1")))
}

func TestEqual_MapsCompareByValueNotIdentity(t *testing.T) {
	a := message.Map(map[string]message.Value{"x": message.Long(1)})
	b := message.Map(map[string]message.Value{"x": message.Long(1)})
	c := message.Map(map[string]message.Value{"x": message.Long(2)})
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestString_MapIsSortedByKeyForDeterminism(t *testing.T) {
	v := message.Map(map[string]message.Value{"b": message.Long(2), "a": message.Long(1)})
	require.Equal(t, "{a=1,b=2}", v.String())
}

func TestAsLong_TruncatesDouble(t *testing.T) {
	l, ok := message.Double(3.9).AsLong()
	require.True(t, ok)
	require.Equal(t, int64(3), l)
}

func TestNextVersion_StartsAtPatchZeroOneThenIncrements(t *testing.T) {
	v1 := message.NextVersion("")
	require.Equal(t, "0.1.0", v1)
	v2 := message.NextVersion(v1)
	require.Equal(t, "0.1.1", v2)
}

func TestNextVersion_UnparsablePreviousResetsToDefault(t *testing.T) {
	require.Equal(t, "0.1.0", message.NextVersion("not-a-semver"))
}

func TestComputeContentHash_StableAcrossEquivalentSnapshotsDiffersOnChange(t *testing.T) {
	build := func() *message.ProgramSnapshot {
		snap := message.EmptySnapshot()
		snap.PipelinesByID["p1"] = &message.Pipeline{
			ID: "p1",
			Stages: []*message.Stage{
				{Number: 10, MatchAll: true, RuleReferences: []string{"r1", "r2"}},
			},
		}
		snap.StreamAssignments["default"] = []*message.Pipeline{snap.PipelinesByID["p1"]}
		return snap
	}

	a := build()
	a.ComputeContentHash()
	b := build()
	b.Version = "9.9.9" // Version must not affect ContentHash
	b.ComputeContentHash()
	require.Equal(t, a.ContentHash, b.ContentHash)

	c := build()
	c.PipelinesByID["p1"].Stages[0].MatchAll = false
	c.ComputeContentHash()
	require.NotEqual(t, a.ContentHash, c.ContentHash)
}
