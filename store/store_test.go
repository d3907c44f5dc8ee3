package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/ruleflow/message"
	"github.com/flowforge/ruleflow/store"
)

func TestNew_SeedsEmptySnapshot(t *testing.T) {
	s := store.New()
	snap := s.Snapshot()
	require.NotNil(t, snap)
	require.Empty(t, snap.PipelinesByID)
}

func TestPublish_SwapsSnapshotAtomically(t *testing.T) {
	s := store.New()
	first := s.Snapshot()

	next := message.EmptySnapshot()
	next.Version = "1.0.1"
	s.Publish(next)

	require.Same(t, next, s.Snapshot())
	require.NotSame(t, first, s.Snapshot())
}

func TestSnapshot_HeldReferenceSurvivesConcurrentPublish(t *testing.T) {
	s := store.New()
	held := s.Snapshot()

	s.Publish(message.EmptySnapshot())

	require.NotSame(t, held, s.Snapshot())
	require.NotNil(t, held)
}
