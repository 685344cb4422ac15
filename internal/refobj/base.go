package refobj

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/mgx3d/tkutil/internal/event"
	"github.com/mgx3d/tkutil/internal/logging"
)

// outgoing is one "I watch target" edge.
type outgoing struct {
	target Observable
	block  bool
}

// ObjectBase watches ReferencedObjects. It records its outgoing edges and
// receives their modification and deletion callbacks.
//
// ObjectBase does not own what it watches. The zero value is usable as an
// unsynchronized watcher, but types embedding ObjectBase must call Init with
// their outermost value so that callbacks reach their overrides.
type ObjectBase struct {
	self        Observer
	id          uint64
	guard       sync.Locker
	mutex       *ReferencedMutex
	observables []outgoing
	logger      *logging.Logger
	bus         *event.Bus
}

// NewObjectBase creates a standalone watcher.
func NewObjectBase(opts ...Option) *ObjectBase {
	b := &ObjectBase{}
	b.Init(b, opts...)
	return b
}

// Init binds the watcher to its outermost value and applies opts.
// It must be called once, before the object is shared.
func (b *ObjectBase) Init(self Observer, opts ...Option) {
	b.init(self, buildOptions(opts))
}

func (b *ObjectBase) init(self Observer, o options) {
	if isNil(self) {
		self = b
	}
	b.self = self
	b.id = nextID.Add(1)
	b.bus = o.bus
	b.logger = nopLogger
	if o.logger != nil {
		b.logger = o.logger.WithComponent("refobj")
	}

	switch {
	case o.locker != nil:
		b.guard = o.locker
	case o.mutex:
		b.mutex = NewReferencedMutex(WithLogger(o.logger), WithBus(o.bus))
		if b.mutex == nil {
			panic(fmt.Sprintf("refobj: cannot allocate mutex for object %d", b.id))
		}
		b.guard = b.mutex
	}
}

// ID returns the process-wide handle of the object, or 0 before Init.
func (b *ObjectBase) ID() uint64 {
	return b.id
}

// Mutex returns the owned mutex, or nil when the object was built without one.
// It guards the object's edge tables and names and is not recursive: every
// method of the object may take it, so holding it while calling one
// deadlocks. Derived types guard their own compound state with a lock of
// their own.
func (b *ObjectBase) Mutex() *ReferencedMutex {
	return b.mutex
}

func (b *ObjectBase) observer() Observer {
	if b.self != nil {
		return b.self
	}
	return b
}

func (b *ObjectBase) log() *logging.Logger {
	if b.logger != nil {
		return b.logger
	}
	return nopLogger
}

func (b *ObjectBase) debugEnabled() bool {
	return b.log().Enabled(logging.LevelDebug)
}

func (b *ObjectBase) lock() {
	if b.guard != nil {
		b.guard.Lock()
	}
}

func (b *ObjectBase) unlock() {
	if b.guard != nil {
		b.guard.Unlock()
	}
}

// ObservableModified is called when a watched object changed. The default
// implementation does nothing.
func (b *ObjectBase) ObservableModified(Observable, Event) {
}

// ObservableDeleted drops every outgoing edge to src. Overrides must call
// it so that the destroyed object is forgotten.
func (b *ObjectBase) ObservableDeleted(src Observable) {
	b.lock()
	defer b.unlock()

	kept := b.observables[:0]
	for _, e := range b.observables {
		if e.target != src {
			kept = append(kept, e)
		}
	}
	clear(b.observables[len(kept):])
	b.observables = kept
}

// RegisterObservable starts watching target. When blocksDestruction is true
// target cannot destroy itself until the edge is removed. A nil target, or
// one that refuses the edge because it was destroyed, is ignored and no
// outgoing edge is recorded. The same pair may be registered several
// times.
func (b *ObjectBase) RegisterObservable(target Observable, blocksDestruction bool) {
	if isNil(target) {
		return
	}

	if !target.AddObserver(b.observer(), blocksDestruction) {
		if b.debugEnabled() {
			b.log().Debug("observable refused edge",
				"object_id", b.id, "target_id", target.ID(), "blocks_destruction", blocksDestruction)
		}
		return
	}

	b.lock()
	b.observables = append(b.observables, outgoing{target: target, block: blocksDestruction})
	b.unlock()

	if b.debugEnabled() {
		b.log().Debug("observable registered",
			"object_id", b.id, "target_id", target.ID(), "blocks_destruction", blocksDestruction)
	}
}

// UnregisterObservable removes one (target, blocksDestruction) edge. Target
// may destroy itself as a result; callers must not use it afterwards unless
// they hold another blocking edge.
func (b *ObjectBase) UnregisterObservable(target Observable, blocksDestruction bool) {
	if isNil(target) {
		return
	}

	b.lock()
	for i, e := range b.observables {
		if e.target == target && e.block == blocksDestruction {
			b.observables = removeAt(b.observables, i)
			break
		}
	}
	b.unlock()

	if b.debugEnabled() {
		b.log().Debug("observable unregistered",
			"object_id", b.id, "target_id", target.ID(), "blocks_destruction", blocksDestruction)
	}

	target.RemoveObserver(b.observer(), blocksDestruction)
}

// IsObservableRegistered reports whether the exact (target, blocksDestruction)
// edge exists.
func (b *ObjectBase) IsObservableRegistered(target Observable, blocksDestruction bool) bool {
	b.lock()
	defer b.unlock()

	for _, e := range b.observables {
		if e.target == target && e.block == blocksDestruction {
			return true
		}
	}
	return false
}

// ObservableCount returns the number of outgoing edges.
func (b *ObjectBase) ObservableCount() int {
	b.lock()
	defer b.unlock()
	return len(b.observables)
}

// Observables returns a snapshot of the watched objects, one entry per edge.
func (b *ObjectBase) Observables() []Observable {
	b.lock()
	defer b.unlock()

	targets := make([]Observable, len(b.observables))
	for i, e := range b.observables {
		targets[i] = e.target
	}
	return targets
}

// UnregisterReferences releases every outgoing edge. Each watched object is
// told through RemoveObserver with the edge's own flag and may destroy itself.
func (b *ObjectBase) UnregisterReferences() {
	for {
		b.lock()
		if len(b.observables) == 0 {
			b.unlock()
			return
		}
		e := b.observables[0]
		b.observables = removeAt(b.observables, 0)
		b.unlock()

		e.target.RemoveObserver(b.observer(), e.block)
	}
}

// Destroy tears a pure watcher down: it releases every outgoing edge, then
// destroys the owned mutex.
func (b *ObjectBase) Destroy() {
	b.UnregisterReferences()
	if b.mutex != nil {
		_ = b.mutex.Destroy()
	}
}

// EmergencyCleanup empties the outgoing edges when normal teardown ordering
// cannot be guaranteed, e.g. after a worker was abandoned mid-operation.
// Every watched object is released with blocksDestruction forced to false so
// that none of them destroys itself, the guard is only taken if it is free,
// and panics raised by peers are logged and swallowed.
func (b *ObjectBase) EmergencyCleanup() {
	if failures := b.emergencyDrain(); failures > 0 {
		b.log().Warn("emergency cleanup completed with failures", "object_id", b.id, "failures", failures)
	}
}

func (b *ObjectBase) emergencyDrain() int {
	var drained []outgoing
	if tl, ok := b.guard.(tryLocker); ok && tl.TryLock() {
		drained = b.observables
		b.observables = nil
		b.guard.Unlock()
	} else {
		drained = b.observables
		b.observables = nil
	}

	failures := 0
	for _, e := range drained {
		if isNil(e.target) {
			continue
		}
		if err := b.recoverCall(func() { detach(e.target, b.observer(), e.block) }); err != nil {
			failures++
		}
	}
	return failures
}

// detach drops the edge without letting target destroy itself. Targets that
// cannot remove an edge silently get RemoveObserver with blocksDestruction
// forced to false.
func detach(target Observable, o Observer, block bool) {
	if d, ok := target.(edgeDropper); ok {
		d.dropObserver(o, block)
		return
	}
	target.RemoveObserver(o, false)
}

// recoverCall runs fn and turns a panic into a logged error.
func (b *ObjectBase) recoverCall(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
			b.log().Error("observer callback panicked during emergency cleanup",
				"object_id", b.id, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
	return nil
}

// removeAt deletes s[i] keeping the order and clears the vacated slot.
func removeAt[T any](s []T, i int) []T {
	copy(s[i:], s[i+1:])
	var zero T
	s[len(s)-1] = zero
	return s[:len(s)-1]
}
