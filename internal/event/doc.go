// Package event provides a pub-sub event bus that mirrors the lifecycle of
// referenced objects to interested tooling (metrics, the mgx3d command).
//
// Objects and the registry publish to an optional [Bus]; nothing in the core
// depends on a subscriber being present. Observer callbacks remain the
// primary notification path; the bus is a read-only trace of it.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with exact-type and glob
//     pattern subscriptions ("registry.*")
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Object Lifecycle:
//   - [ObjectModifiedEvent]: an object notified its observers of a modification
//   - [ObjectDestroyedEvent]: an object finished its teardown
//   - [ObjectUnavailableEvent]: an object went through emergency cleanup
//
// Registry:
//   - [ObjectRegisteredEvent]: a named object joined the registry
//   - [ObjectUnregisteredEvent]: a named object left the registry
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously outside the bus lock and protected against panics. Exact
// subscribers of a type run before pattern subscribers.
//
// # Basic Usage
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypeObjectDestroyed, func(e event.Event) {
//	    destroyed := e.(event.ObjectDestroyedEvent)
//	    log.Printf("object %d destroyed", destroyed.ObjectID)
//	})
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - object.modified, object.destroyed, object.unavailable
//   - registry.registered, registry.unregistered
package event
