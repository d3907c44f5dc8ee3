// Package eventbus adapts the teacher's events.EventBus publish/subscribe
// shape to the three change-event kinds the Reload controller listens for
// (spec.md §4.7, §6, §9): RulesChanged, PipelinesChanged, and
// PipelineStreamAssignmentChanged. The core treats every payload as a
// reload trigger only — ids are informational, never used to patch the
// snapshot incrementally.
package eventbus

import "sync"

// RulesChangedEvent carries the ids of updated/deleted rule sources.
type RulesChangedEvent struct {
	Updated []string
	Deleted []string
}

// PipelinesChangedEvent carries the ids of updated/deleted pipeline sources.
type PipelinesChangedEvent struct {
	Updated []string
	Deleted []string
}

// PipelineStreamAssignmentChangedEvent carries one changed stream's
// assignment.
type PipelineStreamAssignmentChangedEvent struct {
	StreamID    string
	PipelineIDs []string
}

// Subscriber is the callback contract spec.md §9 describes: "the
// subscriber exposes three handler operations; the bus invokes them on its
// own thread."
type Subscriber interface {
	OnRulesChanged(RulesChangedEvent)
	OnPipelinesChanged(PipelinesChangedEvent)
	OnStreamAssignmentChanged(PipelineStreamAssignmentChangedEvent)
}

// Bus is a lightweight, panic-safe pub/sub bus, adapted from the teacher's
// events.EventBus.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a Subscriber. Typically called once, by the Reload
// controller, at startup.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// PublishRulesChanged notifies every subscriber asynchronously, matching
// the teacher's async-dispatch-with-panic-recovery shape.
func (b *Bus) PublishRulesChanged(e RulesChangedEvent) {
	for _, s := range b.snapshot() {
		go safeInvoke(func() { s.OnRulesChanged(e) })
	}
}

// PublishPipelinesChanged notifies every subscriber asynchronously.
func (b *Bus) PublishPipelinesChanged(e PipelinesChangedEvent) {
	for _, s := range b.snapshot() {
		go safeInvoke(func() { s.OnPipelinesChanged(e) })
	}
}

// PublishStreamAssignmentChanged notifies every subscriber asynchronously.
func (b *Bus) PublishStreamAssignmentChanged(e PipelineStreamAssignmentChangedEvent) {
	for _, s := range b.snapshot() {
		go safeInvoke(func() { s.OnStreamAssignmentChanged(e) })
	}
}

func (b *Bus) snapshot() []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Subscriber, len(b.subscribers))
	copy(out, b.subscribers)
	return out
}

func safeInvoke(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
