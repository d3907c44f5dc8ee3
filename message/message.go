package message

import (
	"time"

	"github.com/google/uuid"
)

// DefaultStreamID is the reserved stream id denoting no explicit stream
// membership (spec.md §3, §6).
const DefaultStreamID = "default"

// Message is the unit of data flowing through the host. Fields are
// mutable, identified by a stable id, and carry a set of streams plus a
// drop flag. The core mutates fields in place; the host owns the Message.
type Message struct {
	ID        string
	Fields    map[string]Value
	Streams   map[string]struct{}
	FilterOut bool
	CreatedAt time.Time
}

// New creates a Message with a freshly assigned id, used by the host when
// constructing inbound messages and by the engine for create_message.
func New() *Message {
	return &Message{
		ID:        uuid.NewString(),
		Fields:    make(map[string]Value),
		Streams:   make(map[string]struct{}),
		CreatedAt: time.Now(),
	}
}

// Field reads a field by name, returning Null if absent (spec.md §4.1
// FieldAccess on a Message handle never errors).
func (m *Message) Field(name string) Value {
	if m == nil {
		return Null
	}
	v, ok := m.Fields[name]
	if !ok {
		return Null
	}
	return v
}

// SetField mutates a field in place.
func (m *Message) SetField(name string, v Value) {
	if m.Fields == nil {
		m.Fields = make(map[string]Value)
	}
	m.Fields[name] = v
}

// HasStream reports whether the message currently carries the given stream.
func (m *Message) HasStream(id string) bool {
	_, ok := m.Streams[id]
	return ok
}

// AddStream adds the stream to the message's current membership.
func (m *Message) AddStream(id string) {
	if m.Streams == nil {
		m.Streams = make(map[string]struct{})
	}
	m.Streams[id] = struct{}{}
}

// RemoveStream removes the stream from the message's current membership.
func (m *Message) RemoveStream(id string) {
	delete(m.Streams, id)
}

// StreamSet returns a snapshot copy of the message's current stream ids.
func (m *Message) StreamSet() map[string]struct{} {
	out := make(map[string]struct{}, len(m.Streams))
	for s := range m.Streams {
		out[s] = struct{}{}
	}
	return out
}

// CloneStreams returns a deep-enough copy suitable for blacklist-before/after
// stream-set comparisons (spec.md §4.5 step 3). Fields are not copied since
// only the stream set is compared.
func (m *Message) CloneStreams() map[string]struct{} {
	return m.StreamSet()
}
