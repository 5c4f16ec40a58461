package events

import "pollchain/core/types"

// Event represents a structured state change emitted by the chain.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can be rendered into the generic
// attribute form stored in the event log.
type Payload interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events until the surrounding state transition either commits
// (Drain) or reverts (Reset).
type Buffer struct {
	pending []*types.Event
}

// Emit implements the Emitter interface. Events without a payload are dropped.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	payload, ok := evt.(Payload)
	if !ok {
		return
	}
	rendered := payload.Event()
	if rendered == nil {
		return
	}
	b.pending = append(b.pending, rendered)
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int { return len(b.pending) }

// Drain returns the buffered events and empties the buffer.
func (b *Buffer) Drain() []*types.Event {
	out := b.pending
	b.pending = nil
	return out
}

// Reset discards buffered events.
func (b *Buffer) Reset() { b.pending = nil }
