// Package refobj implements the reference-counted observer substrate shared
// by every geometry, topology and mesh entity.
//
// An [ObjectBase] watches other objects: it keeps a multi-valued table of
// outgoing edges (watched object, blocks destruction). A [ReferencedObject]
// is also watched: it keeps the reciprocal table of incoming edges and
// destroys itself once the last edge that blocks its destruction is removed.
// Edges are always paired; [ObjectBase.RegisterObservable] adds both sides
// and [ObjectBase.UnregisterObservable] removes both sides.
//
// # Embedding
//
// Go has no virtual dispatch through embedded structs, so every type that
// embeds one of the bases must hand its outermost value to Init. Callbacks
// and identities then flow through that value:
//
//	type Volume struct {
//	    refobj.NamedObject
//	}
//
//	func NewVolume(name string) *Volume {
//	    v := &Volume{}
//	    v.InitNamed(v, name, refobj.WithMutex())
//	    return v
//	}
//
//	func (v *Volume) ObservableModified(src refobj.Observable, mask refobj.Event) {
//	    // react to a watched object's change
//	}
//
// Always pass the outermost value (v above) to RegisterObservable and to the
// registry; edge identity is interface equality.
//
// # Teardown
//
// Teardown is two-phase. [ReferencedObject.Destroy] (or self-destruction)
// first calls the optional [Finalizer] hook of the outermost type, then tells
// every observer through ObservableDeleted, then releases every outgoing
// edge, and finally destroys the owned mutex. Destroyed objects ignore
// further edge operations.
//
// # Concurrency
//
// Objects built with [WithMutex] guard their edge tables with an owned
// [ReferencedMutex]; others must be externally synchronized. The guard is
// never held while calling into another object: modification fan-out
// iterates a snapshot taken under the guard, destruction fan-out pops one
// edge at a time. Destroying two overlapping objects concurrently must be
// serialized by the caller.
//
// The owned mutex is not recursive. Derived types that need a critical
// section spanning several calls on the object (rename then notify, read
// several fields) hold a lock of their own around those calls, never the
// owned mutex.
package refobj
