package reload_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/ruleflow/config"
	"github.com/flowforge/ruleflow/reload"
	"github.com/flowforge/ruleflow/sourcing"
	"github.com/flowforge/ruleflow/sourcing/parser"
	"github.com/flowforge/ruleflow/store"
)

type fakeDocs struct {
	docs []sourcing.SourceDocument
}

func (f *fakeDocs) LoadAll() ([]sourcing.SourceDocument, error) { return f.docs, nil }

type fakeAssignments struct {
	assignments []sourcing.StreamAssignment
}

func (f *fakeAssignments) LoadAll() ([]sourcing.StreamAssignment, error) { return f.assignments, nil }

func TestReloadNow_BuildsAndPublishesSnapshot(t *testing.T) {
	rules := &fakeDocs{docs: []sourcing.SourceDocument{
		{ID: "r1", Source: `rule "tag" { when true then set_field("tagged", true); }`},
	}}
	pipelines := &fakeDocs{docs: []sourcing.SourceDocument{
		{ID: "p1", Source: `pipeline "main" { stage 10 match any rule "tag"; }`},
	}}
	assignments := &fakeAssignments{assignments: []sourcing.StreamAssignment{
		{StreamID: "default", PipelineIDs: []string{"main"}},
	}}

	st := store.New()
	ctrl, err := reload.New(rules, pipelines, assignments, parser.New(), st, config.DefaultEngineConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, ctrl.ReloadNow(context.Background()))

	snap := st.Snapshot()
	require.Len(t, snap.PipelinesByID, 1)
	require.NotEmpty(t, snap.Version)
	require.NotZero(t, snap.ContentHash)
	require.Len(t, snap.StreamAssignments["default"], 1)
}

func TestReloadNow_UnparsableRuleBecomesAlwaysFalseSentinel(t *testing.T) {
	rules := &fakeDocs{docs: []sourcing.SourceDocument{
		{ID: "bad", Source: `rule "broken" { when } then }`},
	}}
	pipelines := &fakeDocs{}
	assignments := &fakeAssignments{}

	st := store.New()
	ctrl, err := reload.New(rules, pipelines, assignments, parser.New(), st, config.DefaultEngineConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, ctrl.ReloadNow(context.Background()))
	require.Len(t, st.Snapshot().PipelinesByID, 0)
}

func TestReloadNow_UnparsablePipelineBecomesEmptySentinelButOthersLoad(t *testing.T) {
	rules := &fakeDocs{}
	pipelines := &fakeDocs{docs: []sourcing.SourceDocument{
		{ID: "broken", Source: `pipeline "broken" { stage`},
		{ID: "good", Source: `pipeline "good" { stage 1 match any rule "nope"; }`},
	}}
	assignments := &fakeAssignments{}

	st := store.New()
	ctrl, err := reload.New(rules, pipelines, assignments, parser.New(), st, config.DefaultEngineConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, ctrl.ReloadNow(context.Background()))

	snap := st.Snapshot()
	require.Len(t, snap.PipelinesByID, 2)
	require.Empty(t, snap.PipelinesByID["broken"].Stages)
	require.NotEmpty(t, snap.PipelinesByID["good"].Stages)
	// "nope" has no matching rule source, so the stage's rule reference
	// links to an alwaysFalse sentinel rather than failing the reload.
	require.Len(t, snap.PipelinesByID["good"].Stages[0].Rules, 1)
}

func TestReloadNow_IdempotentContentHashAcrossUnchangedInputs(t *testing.T) {
	rules := &fakeDocs{docs: []sourcing.SourceDocument{
		{ID: "r1", Source: `rule "tag" { when true then set_field("tagged", true); }`},
	}}
	pipelines := &fakeDocs{docs: []sourcing.SourceDocument{
		{ID: "p1", Source: `pipeline "main" { stage 10 match any rule "tag"; }`},
	}}
	assignments := &fakeAssignments{assignments: []sourcing.StreamAssignment{
		{StreamID: "default", PipelineIDs: []string{"main"}},
	}}

	st := store.New()
	cfg := config.DefaultEngineConfig()
	cfg.ReloadDebounceInterval = time.Millisecond
	ctrl, err := reload.New(rules, pipelines, assignments, parser.New(), st, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, ctrl.ReloadNow(context.Background()))
	firstHash := st.Snapshot().ContentHash
	firstVersion := st.Snapshot().Version

	require.NoError(t, ctrl.ReloadNow(context.Background()))
	secondHash := st.Snapshot().ContentHash
	secondVersion := st.Snapshot().Version

	require.Equal(t, firstHash, secondHash)
	require.NotEqual(t, firstVersion, secondVersion)
}

func TestReloadNow_AssignmentReferencingUnknownPipelineIsDropped(t *testing.T) {
	rules := &fakeDocs{}
	pipelines := &fakeDocs{}
	assignments := &fakeAssignments{assignments: []sourcing.StreamAssignment{
		{StreamID: "default", PipelineIDs: []string{"does-not-exist"}},
	}}

	st := store.New()
	ctrl, err := reload.New(rules, pipelines, assignments, parser.New(), st, config.DefaultEngineConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, ctrl.ReloadNow(context.Background()))
	require.Empty(t, st.Snapshot().StreamAssignments["default"])
}
