// Package testutil provides observers and helpers shared by the package tests.
package testutil

import (
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/mgx3d/tkutil/internal/refobj"
)

// Recorder is an observer that records the callbacks it receives.
type Recorder struct {
	refobj.ObjectBase

	mu       sync.Mutex
	masks    []refobj.Event
	deleted  []uint64
	OnModify func(src refobj.Observable, mask refobj.Event)
}

// NewRecorder creates a Recorder guarded by its own mutex.
func NewRecorder() *Recorder {
	r := &Recorder{}
	r.Init(r, refobj.WithMutex())
	return r
}

// ObservableModified records mask and runs OnModify.
func (r *Recorder) ObservableModified(src refobj.Observable, mask refobj.Event) {
	r.mu.Lock()
	r.masks = append(r.masks, mask)
	hook := r.OnModify
	r.mu.Unlock()

	if hook != nil {
		hook(src, mask)
	}
}

// ObservableDeleted records the destroyed object and forgets it.
func (r *Recorder) ObservableDeleted(src refobj.Observable) {
	r.ObjectBase.ObservableDeleted(src)

	r.mu.Lock()
	r.deleted = append(r.deleted, src.ID())
	r.mu.Unlock()
}

// Masks returns the recorded modification masks.
func (r *Recorder) Masks() []refobj.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]refobj.Event(nil), r.masks...)
}

// Deleted returns the IDs of the destroyed objects, one entry per edge.
func (r *Recorder) Deleted() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.deleted...)
}

// Volume is a named object that records its finalization.
type Volume struct {
	refobj.NamedObject

	mu        sync.Mutex
	finalized bool
}

// NewVolume creates a named object whose unique name equals name.
func NewVolume(name string) *Volume {
	v := &Volume{}
	v.InitNamed(v, name, refobj.WithMutex())
	return v
}

// PrepareForDestruction marks the volume as finalized.
func (v *Volume) PrepareForDestruction() {
	v.mu.Lock()
	v.finalized = true
	v.mu.Unlock()
}

// Finalized reports whether PrepareForDestruction ran.
func (v *Volume) Finalized() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.finalized
}

// Hold registers a blocking watcher on obj so that it survives until the
// test ends, then releases it.
func Hold(t *testing.T, obj refobj.Observable) *refobj.ObjectBase {
	t.Helper()

	anchor := refobj.NewObjectBase()
	anchor.RegisterObservable(obj, true)
	t.Cleanup(anchor.UnregisterReferences)
	return anchor
}

// WaitFor polls cond until it holds or the timeout expires.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// SkipIfNoGolangciLint skips the test if golangci-lint is not installed.
func SkipIfNoGolangciLint(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("golangci-lint"); err != nil {
		t.Skip("golangci-lint not found in PATH, skipping test")
	}
}
