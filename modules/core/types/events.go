package types

// Event is a typed event emitted during message execution. Attribute values
// are strings so events survive a round trip through transaction results and
// RPC queries; binary values are hex encoded.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// NewEvent creates a new Event with the given type and attributes.
func NewEvent(eventType string, attributes map[string]string) Event {
	return Event{
		Type:       eventType,
		Attributes: attributes,
	}
}

// EventManager collects the events emitted during the execution of a single
// transaction. It is not safe for concurrent use.
type EventManager struct {
	events []Event
}

// NewEventManager returns a new empty EventManager.
func NewEventManager() *EventManager {
	return &EventManager{}
}

// Emit appends an event to the manager.
func (em *EventManager) Emit(event Event) {
	em.events = append(em.events, event)
}

// EmitEvent constructs an event from the type and attributes and appends it.
func (em *EventManager) EmitEvent(eventType string, attributes map[string]string) {
	em.Emit(NewEvent(eventType, attributes))
}

// Events returns the events emitted so far, in emission order.
func (em *EventManager) Events() []Event {
	return em.events
}
