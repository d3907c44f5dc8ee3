package processor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/ruleflow/config"
	"github.com/flowforge/ruleflow/eventbus"
	"github.com/flowforge/ruleflow/message"
	"github.com/flowforge/ruleflow/processor"
	"github.com/flowforge/ruleflow/sourcing"
	"github.com/flowforge/ruleflow/sourcing/parser"
)

type fakeDocs struct {
	docs []sourcing.SourceDocument
}

func (f *fakeDocs) LoadAll() ([]sourcing.SourceDocument, error) { return f.docs, nil }

type fakeAssignments struct {
	assignments []sourcing.StreamAssignment
}

func (f *fakeAssignments) LoadAll() ([]sourcing.StreamAssignment, error) { return f.assignments, nil }

func TestNew_InitialReloadRunsBeforeFirstProcess(t *testing.T) {
	deps := processor.Dependencies{
		RuleSources: &fakeDocs{docs: []sourcing.SourceDocument{
			{ID: "r1", Source: `rule "tag" { when true then set_field("tagged", true); }`},
		}},
		PipelineSources: &fakeDocs{docs: []sourcing.SourceDocument{
			{ID: "p1", Source: `pipeline "main" { stage 10 match any rule "tag"; }`},
		}},
		AssignmentSource: &fakeAssignments{assignments: []sourcing.StreamAssignment{
			{StreamID: "default", PipelineIDs: []string{"main"}},
		}},
		Parser: parser.New(),
	}

	p, err := processor.New(processor.DefaultDescriptor, deps, config.DefaultEngineConfig())
	require.NoError(t, err)

	msg := message.New()
	out, err := p.Process(context.Background(), []*message.Message{msg})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, message.Bool(true), out[0].Field("tagged"))
}

func TestNew_SubscribesToEventBusWhenProvided(t *testing.T) {
	deps := processor.Dependencies{
		RuleSources:      &fakeDocs{},
		PipelineSources:  &fakeDocs{},
		AssignmentSource: &fakeAssignments{},
		Parser:           parser.New(),
		EventBus:         eventbus.New(),
	}

	p, err := processor.New(processor.DefaultDescriptor, deps, config.DefaultEngineConfig())
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestProcess_EmptySourcesPassesMessagesThrough(t *testing.T) {
	deps := processor.Dependencies{
		RuleSources:      &fakeDocs{},
		PipelineSources:  &fakeDocs{},
		AssignmentSource: &fakeAssignments{},
		Parser:           parser.New(),
	}

	p, err := processor.New(processor.DefaultDescriptor, deps, config.DefaultEngineConfig())
	require.NoError(t, err)

	msg := message.New()
	msg.SetField("untouched", message.Long(7))
	out, err := p.Process(context.Background(), []*message.Message{msg})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, message.Long(7), out[0].Field("untouched"))
}

func TestShutdown_DrainsWithoutError(t *testing.T) {
	deps := processor.Dependencies{
		RuleSources:      &fakeDocs{},
		PipelineSources:  &fakeDocs{},
		AssignmentSource: &fakeAssignments{},
		Parser:           parser.New(),
	}

	p, err := processor.New(processor.DefaultDescriptor, deps, config.DefaultEngineConfig())
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
}
