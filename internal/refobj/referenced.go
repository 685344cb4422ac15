package refobj

import (
	"sync/atomic"

	"github.com/mgx3d/tkutil/internal/errors"
	"github.com/mgx3d/tkutil/internal/event"
)

// incoming is one "watcher observes me" edge.
type incoming struct {
	watcher Observer
	block   bool
}

type lifecycleState int32

const (
	stateLive lifecycleState = iota
	stateDestroying
	stateDestroyed
)

func (s lifecycleState) String() string {
	switch s {
	case stateLive:
		return "live"
	case stateDestroying:
		return "destroying"
	case stateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// ReferencedObject is an ObjectBase that is itself watched. It notifies its
// observers of modifications and of its destruction, and destroys itself
// when the last observer blocking its destruction goes away.
type ReferencedObject struct {
	ObjectBase
	owner     Referenced
	observers []incoming
	sealed    bool // set once the destruction drain emptied observers
	state     atomic.Int32
}

// NewReferencedObject creates a standalone referenced object.
func NewReferencedObject(opts ...Option) *ReferencedObject {
	r := &ReferencedObject{}
	r.Init(r, opts...)
	return r
}

// Init binds the object to its outermost value and applies opts.
// It must be called once, before the object is shared.
func (r *ReferencedObject) Init(self Referenced, opts ...Option) {
	r.init(self, buildOptions(opts))
}

func (r *ReferencedObject) init(self Referenced, o options) {
	if isNil(self) {
		self = r
	}
	r.owner = self
	r.ObjectBase.init(self, o)
}

func (r *ReferencedObject) referenced() Referenced {
	if r.owner != nil {
		return r.owner
	}
	return r
}

func (r *ReferencedObject) lifecycle() lifecycleState {
	return lifecycleState(r.state.Load())
}

// IsDestroyed reports whether teardown has started or completed.
func (r *ReferencedObject) IsDestroyed() bool {
	return r.lifecycle() != stateLive
}

// State returns "live", "destroying" or "destroyed".
func (r *ReferencedObject) State() string {
	return r.lifecycle().String()
}

// AddObserver records an incoming edge without deduplication and reports
// whether it was recorded. An edge added while the object is being
// destroyed is still drained and notified. Once the drain is over the
// object refuses new edges, as it does a nil observer.
func (r *ReferencedObject) AddObserver(o Observer, blocksDestruction bool) bool {
	if isNil(o) {
		return false
	}

	r.lock()
	defer r.unlock()
	if r.sealed {
		return false
	}
	r.observers = append(r.observers, incoming{watcher: o, block: blocksDestruction})
	return true
}

// RemoveObserver removes one matching incoming edge. When the removed edge
// blocked destruction and AllowsDestruction now holds, the object destroys
// itself: the caller must not use it afterwards. A call that matches no
// edge changes nothing, even with blocksDestruction set, so a stray release
// cannot destroy an object that other code still uses.
func (r *ReferencedObject) RemoveObserver(o Observer, blocksDestruction bool) {
	removed := r.dropObserver(o, blocksDestruction)
	if !removed || !blocksDestruction || r.lifecycle() != stateLive {
		return
	}
	if r.referenced().AllowsDestruction() {
		r.teardown(true)
	}
}

func (r *ReferencedObject) dropObserver(o Observer, blocksDestruction bool) bool {
	r.lock()
	defer r.unlock()

	for i, e := range r.observers {
		if e.watcher == o && e.block == blocksDestruction {
			r.observers = removeAt(r.observers, i)
			return true
		}
	}
	return false
}

// ObserverCount returns the number of incoming edges.
func (r *ReferencedObject) ObserverCount() int {
	r.lock()
	defer r.unlock()
	return len(r.observers)
}

// Observers returns a snapshot of the watchers, one entry per edge.
func (r *ReferencedObject) Observers() []Observer {
	r.lock()
	defer r.unlock()

	watchers := make([]Observer, len(r.observers))
	for i, e := range r.observers {
		watchers[i] = e.watcher
	}
	return watchers
}

// AllowsDestruction reports whether no incoming edge blocks destruction.
func (r *ReferencedObject) AllowsDestruction() bool {
	return !r.hasBlockers()
}

func (r *ReferencedObject) hasBlockers() bool {
	r.lock()
	defer r.unlock()

	for _, e := range r.observers {
		if e.block {
			return true
		}
	}
	return false
}

// distinctObservers snapshots the watchers under the guard, keeping the
// first occurrence of each.
func (r *ReferencedObject) distinctObservers() []Observer {
	r.lock()
	defer r.unlock()

	seen := make(map[Observer]struct{}, len(r.observers))
	watchers := make([]Observer, 0, len(r.observers))
	for _, e := range r.observers {
		if _, ok := seen[e.watcher]; ok {
			continue
		}
		seen[e.watcher] = struct{}{}
		watchers = append(watchers, e.watcher)
	}
	return watchers
}

// NotifyObserversForModification calls ObservableModified on every distinct
// watcher. The watcher list is copied under the guard and iterated without
// it, so a watcher may unregister itself (or others) from its callback;
// every watcher present when the call started is notified.
func (r *ReferencedObject) NotifyObserversForModification(mask Event) {
	if r.lifecycle() == stateDestroyed {
		return
	}

	self := r.referenced()
	watchers := r.distinctObservers()
	for _, w := range watchers {
		w.ObservableModified(self, mask)
	}

	r.bus.Publish(event.NewObjectModifiedEvent(r.id, uint64(mask), len(watchers)))
}

// NotifyObserversForDestruction drains the incoming edges one at a time,
// calling ObservableDeleted on each watcher after its edge was removed.
// Edges added or removed by the callbacks are taken into account.
func (r *ReferencedObject) NotifyObserversForDestruction() {
	self := r.referenced()
	for {
		r.lock()
		if len(r.observers) == 0 {
			if r.lifecycle() != stateLive {
				r.sealed = true
			}
			r.unlock()
			return
		}
		e := r.observers[0]
		r.observers = removeAt(r.observers, 0)
		r.unlock()

		e.watcher.ObservableDeleted(self)
	}
}

// Destroy is the owner-driven teardown. It is refused while an observer
// still blocks destruction. Destroying a destroyed object is a no-op.
func (r *ReferencedObject) Destroy() error {
	if r.lifecycle() != stateLive {
		return nil
	}
	if r.hasBlockers() {
		err := errors.NewLifecycleError("cannot destroy object", errors.ErrDestructionBlocked).
			WithObjectID(r.id).
			WithState(r.State())
		r.log().Warn("destroy refused", "object_id", r.id, "observers", r.ObserverCount())
		return err
	}
	r.teardown(false)
	return nil
}

// teardown runs the two-phase destruction exactly once.
func (r *ReferencedObject) teardown(selfDestruct bool) {
	if !r.state.CompareAndSwap(int32(stateLive), int32(stateDestroying)) {
		return
	}

	if f, ok := r.referenced().(Finalizer); ok {
		f.PrepareForDestruction()
	}
	r.NotifyObserversForDestruction()
	r.UnregisterReferences()
	if r.mutex != nil {
		_ = r.mutex.Destroy()
	}

	r.state.Store(int32(stateDestroyed))

	r.log().Info("object destroyed", "object_id", r.id, "self_destruct", selfDestruct)
	r.bus.Publish(event.NewObjectDestroyedEvent(r.id, selfDestruct))
}

// EmergencyCleanup releases the outgoing edges like ObjectBase.EmergencyCleanup,
// then tells every remaining watcher that the object is unavailable. Watchers
// are not removed and the object is not destroyed. Panics raised by watchers
// are logged and swallowed.
func (r *ReferencedObject) EmergencyCleanup() {
	failures := r.emergencyDrain()

	var watchers []incoming
	if tl, ok := r.guard.(tryLocker); ok && tl.TryLock() {
		watchers = append(watchers, r.observers...)
		r.guard.Unlock()
	} else {
		watchers = append(watchers, r.observers...)
	}

	self := r.referenced()
	for _, e := range watchers {
		if isNil(e.watcher) {
			continue
		}
		w := e.watcher
		if err := r.recoverCall(func() { w.ObservableModified(self, EventUnavailable) }); err != nil {
			failures++
		}
	}

	r.log().Warn("emergency cleanup", "object_id", r.id, "observers", len(watchers), "failures", failures)
	r.bus.Publish(event.NewObjectUnavailableEvent(r.id, failures))
}
