package events

// Event represents a structured state change emitted by a module engine.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (RPC, gateway,
// indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// Engines default to it so event emission stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
