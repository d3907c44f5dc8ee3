package eventbus_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/ruleflow/eventbus"
)

type recordingSubscriber struct {
	mu      sync.Mutex
	rules   []eventbus.RulesChangedEvent
	pipes   []eventbus.PipelinesChangedEvent
	streams []eventbus.PipelineStreamAssignmentChangedEvent
}

func (r *recordingSubscriber) OnRulesChanged(e eventbus.RulesChangedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, e)
}

func (r *recordingSubscriber) OnPipelinesChanged(e eventbus.PipelinesChangedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipes = append(r.pipes, e)
}

func (r *recordingSubscriber) OnStreamAssignmentChanged(e eventbus.PipelineStreamAssignmentChangedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams = append(r.streams, e)
}

func (r *recordingSubscriber) ruleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rules)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition never became true")
}

func TestPublishRulesChanged_DeliversToEverySubscriber(t *testing.T) {
	bus := eventbus.New()
	sub1 := &recordingSubscriber{}
	sub2 := &recordingSubscriber{}
	bus.Subscribe(sub1)
	bus.Subscribe(sub2)

	bus.PublishRulesChanged(eventbus.RulesChangedEvent{Updated: []string{"r1"}})

	eventually(t, func() bool { return sub1.ruleCount() == 1 && sub2.ruleCount() == 1 })
}

type panickingSubscriber struct{ recordingSubscriber }

func (p *panickingSubscriber) OnPipelinesChanged(eventbus.PipelinesChangedEvent) {
	panic("boom")
}

func TestPublish_SubscriberPanicDoesNotAffectOtherSubscribers(t *testing.T) {
	bus := eventbus.New()
	panicker := &panickingSubscriber{}
	sane := &recordingSubscriber{}
	bus.Subscribe(panicker)
	bus.Subscribe(sane)

	require.NotPanics(t, func() {
		bus.PublishPipelinesChanged(eventbus.PipelinesChangedEvent{Updated: []string{"p1"}})
	})

	eventually(t, func() bool {
		sane.mu.Lock()
		defer sane.mu.Unlock()
		return len(sane.pipes) == 1
	})
}

func TestPublishStreamAssignmentChanged_NoSubscribersIsANoop(t *testing.T) {
	bus := eventbus.New()
	require.NotPanics(t, func() {
		bus.PublishStreamAssignmentChanged(eventbus.PipelineStreamAssignmentChangedEvent{StreamID: "s1"})
	})
}
