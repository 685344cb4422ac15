package refobj

import (
	"sync"
)

// recorder is a watcher that records every callback it receives.
type recorder struct {
	ObjectBase

	mu        sync.Mutex
	modified  []Event
	deleted   []uint64
	onModify  func(src Observable, mask Event)
	onDeleted func(src Observable)
}

func newRecorder(opts ...Option) *recorder {
	r := &recorder{}
	r.Init(r, opts...)
	return r
}

func (r *recorder) ObservableModified(src Observable, mask Event) {
	r.mu.Lock()
	r.modified = append(r.modified, mask)
	hook := r.onModify
	r.mu.Unlock()

	if hook != nil {
		hook(src, mask)
	}
}

func (r *recorder) ObservableDeleted(src Observable) {
	r.ObjectBase.ObservableDeleted(src)

	r.mu.Lock()
	r.deleted = append(r.deleted, src.ID())
	hook := r.onDeleted
	r.mu.Unlock()

	if hook != nil {
		hook(src)
	}
}

func (r *recorder) modifiedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.modified)
}

func (r *recorder) deletedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deleted)
}

// finalized is a referenced object that records PrepareForDestruction.
type finalized struct {
	ReferencedObject
	prepared    int
	sawWatchers int
}

func newFinalized(opts ...Option) *finalized {
	f := &finalized{}
	f.Init(f, opts...)
	return f
}

func (f *finalized) PrepareForDestruction() {
	f.prepared++
	f.sawWatchers = f.ObserverCount()
}

// panicker panics on every callback.
type panicker struct {
	ObjectBase
}

func newPanicker() *panicker {
	p := &panicker{}
	p.Init(p)
	return p
}

func (p *panicker) ObservableModified(Observable, Event) {
	panic("modified")
}

// panickingTarget is a bare observable whose RemoveObserver panics.
type panickingTarget struct {
	id uint64
}

func newPanickingTarget() *panickingTarget {
	return &panickingTarget{id: nextID.Add(1)}
}

func (p *panickingTarget) ID() uint64                      { return p.id }
func (p *panickingTarget) AddObserver(Observer, bool) bool { return true }
func (p *panickingTarget) RemoveObserver(Observer, bool)   { panic("remove") }
func (p *panickingTarget) ObserverCount() int              { return 0 }
func (p *panickingTarget) Observers() []Observer           { return nil }
func (p *panickingTarget) AllowsDestruction() bool         { return true }
