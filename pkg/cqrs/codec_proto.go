package cqrs

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// ProtoCodec is an EventCodec for domains whose events are protobuf
// messages. Like JSONCodec it holds a closed factory registry keyed by
// event type name.
type ProtoCodec[E DomainEvent] struct {
	factories map[string]func() E
}

// NewProtoCodec creates an empty protobuf codec.
func NewProtoCodec[E DomainEvent]() *ProtoCodec[E] {
	return &ProtoCodec[E]{factories: make(map[string]func() E)}
}

// Register adds an event factory under the type name of the event it
// produces. The produced event must implement proto.Message.
func (c *ProtoCodec[E]) Register(factory func() E) *ProtoCodec[E] {
	name := factory().EventType()
	if _, exists := c.factories[name]; exists {
		panic(fmt.Sprintf("cqrs: event type %q already registered", name))
	}
	c.factories[name] = factory
	return c
}

func (c *ProtoCodec[E]) Marshal(event E) ([]byte, error) {
	msg, ok := any(event).(proto.Message)
	if !ok {
		return nil, fmt.Errorf("event %s is not a proto.Message", event.EventType())
	}
	return proto.Marshal(msg)
}

func (c *ProtoCodec[E]) Unmarshal(eventType, eventVersion string, data []byte) (E, error) {
	var zero E
	factory, ok := c.factories[eventType]
	if !ok {
		return zero, fmt.Errorf("unknown event type %q", eventType)
	}
	event := factory()
	msg, ok := any(event).(proto.Message)
	if !ok {
		return zero, fmt.Errorf("event %s is not a proto.Message", eventType)
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return zero, fmt.Errorf("unmarshal %s: %w", eventType, err)
	}
	return event, nil
}
