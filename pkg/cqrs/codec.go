package cqrs

import (
	"encoding/json"
	"fmt"
)

// EventCodec translates domain events to and from bytes at a persistence
// or messaging boundary. The in-memory store keeps events as values and
// needs no codec; durable stores and buses do.
type EventCodec[E DomainEvent] interface {
	// Marshal serializes an event payload.
	Marshal(event E) ([]byte, error)

	// Unmarshal reconstructs an event from its type name, schema version
	// and serialized payload.
	Unmarshal(eventType, eventVersion string, data []byte) (E, error)
}

// JSONCodec is an EventCodec backed by encoding/json and a registry of
// event factories. The registry is a closed set built once at process
// start; each deployment's event types are statically known.
type JSONCodec[E DomainEvent] struct {
	factories map[string]func() E
}

// NewJSONCodec creates an empty JSON codec. Register every event type of
// the domain before first use.
func NewJSONCodec[E DomainEvent]() *JSONCodec[E] {
	return &JSONCodec[E]{factories: make(map[string]func() E)}
}

// Register adds an event factory to the registry under the type name of
// the event it produces. Registering the same type twice panics; the
// registry is configuration, not runtime state.
func (c *JSONCodec[E]) Register(factory func() E) *JSONCodec[E] {
	name := factory().EventType()
	if _, exists := c.factories[name]; exists {
		panic(fmt.Sprintf("cqrs: event type %q already registered", name))
	}
	c.factories[name] = factory
	return c
}

func (c *JSONCodec[E]) Marshal(event E) ([]byte, error) {
	return json.Marshal(event)
}

func (c *JSONCodec[E]) Unmarshal(eventType, eventVersion string, data []byte) (E, error) {
	var zero E
	factory, ok := c.factories[eventType]
	if !ok {
		return zero, fmt.Errorf("unknown event type %q", eventType)
	}
	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return zero, fmt.Errorf("unmarshal %s: %w", eventType, err)
	}
	return event, nil
}
