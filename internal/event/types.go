package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "object.destroyed").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeObjectModified     = "object.modified"
	TypeObjectDestroyed    = "object.destroyed"
	TypeObjectUnavailable  = "object.unavailable"
	TypeObjectRegistered   = "registry.registered"
	TypeObjectUnregistered = "registry.unregistered"
	wildcardType           = "*"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Object Lifecycle Events
// -----------------------------------------------------------------------------

// ObjectModifiedEvent is emitted when an object notifies its observers of a
// modification.
type ObjectModifiedEvent struct {
	baseEvent
	ObjectID  uint64 // Handle of the modified object
	Mask      uint64 // Modification mask handed to observers
	Observers int    // Number of distinct observers notified
}

// NewObjectModifiedEvent creates an ObjectModifiedEvent.
func NewObjectModifiedEvent(objectID, mask uint64, observers int) ObjectModifiedEvent {
	return ObjectModifiedEvent{
		baseEvent: newBaseEvent(TypeObjectModified),
		ObjectID:  objectID,
		Mask:      mask,
		Observers: observers,
	}
}

// ObjectDestroyedEvent is emitted once an object has completed its teardown.
type ObjectDestroyedEvent struct {
	baseEvent
	ObjectID     uint64 // Handle of the destroyed object
	SelfDestruct bool   // True when triggered by the last blocking observer leaving
}

// NewObjectDestroyedEvent creates an ObjectDestroyedEvent.
func NewObjectDestroyedEvent(objectID uint64, selfDestruct bool) ObjectDestroyedEvent {
	return ObjectDestroyedEvent{
		baseEvent:    newBaseEvent(TypeObjectDestroyed),
		ObjectID:     objectID,
		SelfDestruct: selfDestruct,
	}
}

// ObjectUnavailableEvent is emitted when an object runs emergency cleanup.
type ObjectUnavailableEvent struct {
	baseEvent
	ObjectID uint64
	Failures int // Callbacks that panicked during cleanup
}

// NewObjectUnavailableEvent creates an ObjectUnavailableEvent.
func NewObjectUnavailableEvent(objectID uint64, failures int) ObjectUnavailableEvent {
	return ObjectUnavailableEvent{
		baseEvent: newBaseEvent(TypeObjectUnavailable),
		ObjectID:  objectID,
		Failures:  failures,
	}
}

// -----------------------------------------------------------------------------
// Registry Events
// -----------------------------------------------------------------------------

// ObjectRegisteredEvent is emitted when a named object joins the registry.
type ObjectRegisteredEvent struct {
	baseEvent
	ObjectID   uint64
	UniqueName string
	Registered int // Registry size after the operation
}

// NewObjectRegisteredEvent creates an ObjectRegisteredEvent.
func NewObjectRegisteredEvent(objectID uint64, uniqueName string, registered int) ObjectRegisteredEvent {
	return ObjectRegisteredEvent{
		baseEvent:  newBaseEvent(TypeObjectRegistered),
		ObjectID:   objectID,
		UniqueName: uniqueName,
		Registered: registered,
	}
}

// ObjectUnregisteredEvent is emitted when a named object leaves the registry,
// either explicitly or because it was destroyed.
type ObjectUnregisteredEvent struct {
	baseEvent
	ObjectID   uint64
	UniqueName string
	Registered int  // Registry size after the operation
	Destroyed  bool // True when the object left because it was destroyed
}

// NewObjectUnregisteredEvent creates an ObjectUnregisteredEvent.
func NewObjectUnregisteredEvent(objectID uint64, uniqueName string, registered int, destroyed bool) ObjectUnregisteredEvent {
	return ObjectUnregisteredEvent{
		baseEvent:  newBaseEvent(TypeObjectUnregistered),
		ObjectID:   objectID,
		UniqueName: uniqueName,
		Registered: registered,
		Destroyed:  destroyed,
	}
}
