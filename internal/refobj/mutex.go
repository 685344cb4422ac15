package refobj

import (
	"sync"
	"sync/atomic"
)

// ReferencedMutex is a mutex that takes part in the observer graph, so that
// lock scopes learn about its destruction. It never destroys itself: only
// its owner calls Destroy.
//
// The mutex is not recursive. Its own edge tables are guarded by a separate
// internal lock, so scopes may register with it while it is held.
type ReferencedMutex struct {
	ReferencedObject
	mu    sync.Mutex
	edges sync.Mutex
}

// NewReferencedMutex creates an unlocked mutex.
func NewReferencedMutex(opts ...Option) *ReferencedMutex {
	m := &ReferencedMutex{}
	o := buildOptions(opts)
	o.mutex = false
	o.locker = &m.edges
	m.init(m, o)
	return m
}

// Lock locks the mutex.
func (m *ReferencedMutex) Lock() {
	m.mu.Lock()
}

// Unlock unlocks the mutex.
func (m *ReferencedMutex) Unlock() {
	m.mu.Unlock()
}

// TryLock tries to lock the mutex without blocking.
func (m *ReferencedMutex) TryLock() bool {
	return m.mu.TryLock()
}

// AllowsDestruction always returns false: releasing the last lock scope
// never destroys the mutex.
func (m *ReferencedMutex) AllowsDestruction() bool {
	return false
}

// Destroy tells every lock scope that the mutex is gone. Unlike
// ReferencedObject.Destroy it is never refused, since open scopes hold
// blocking edges by construction.
func (m *ReferencedMutex) Destroy() error {
	m.teardown(false)
	return nil
}

// AutoReferencedMutex is a lock scope over a ReferencedMutex that tolerates
// the mutex being destroyed while the scope is open:
//
//	scope := refobj.NewAutoReferencedMutex(m)
//	defer scope.Release()
//
// The scope registers as a blocking observer of the mutex before locking
// it. If the mutex is destroyed meanwhile, ObservableDeleted forgets it and
// Release does not unlock it.
type AutoReferencedMutex struct {
	ObjectBase
	mutex atomic.Pointer[ReferencedMutex]
}

// NewAutoReferencedMutex registers with m and locks it. A nil or destroyed
// mutex yields a scope that does nothing.
func NewAutoReferencedMutex(m *ReferencedMutex) *AutoReferencedMutex {
	a := &AutoReferencedMutex{}
	a.Init(a)
	if m == nil || m.IsDestroyed() {
		return a
	}

	a.mutex.Store(m)
	a.RegisterObservable(m, true)
	m.Lock()
	return a
}

// Held reports whether the scope still refers to a live mutex.
func (a *AutoReferencedMutex) Held() bool {
	return a.mutex.Load() != nil
}

// Release unregisters from the mutex and unlocks it unless it was
// destroyed meanwhile. Calling Release twice is harmless.
func (a *AutoReferencedMutex) Release() {
	a.UnregisterReferences()
	if m := a.mutex.Swap(nil); m != nil {
		m.Unlock()
	}
}

// ObservableDeleted forgets the mutex when it is the one being destroyed.
func (a *AutoReferencedMutex) ObservableDeleted(src Observable) {
	a.ObjectBase.ObservableDeleted(src)
	if m, ok := src.(*ReferencedMutex); ok {
		a.mutex.CompareAndSwap(m, nil)
	}
}
