package refobj

import (
	"sync"
	"testing"
	"time"
)

func TestAutoReferencedMutex_LocksAndReleases(t *testing.T) {
	m := NewReferencedMutex()

	scope := NewAutoReferencedMutex(m)
	if !scope.Held() {
		t.Fatal("scope should hold the mutex")
	}
	if got := m.ObserverCount(); got != 1 {
		t.Errorf("ObserverCount() = %d, want 1", got)
	}
	if m.TryLock() {
		t.Fatal("mutex should be locked while the scope is open")
	}

	scope.Release()

	if scope.Held() {
		t.Error("scope should not be held after Release")
	}
	if got := m.ObserverCount(); got != 0 {
		t.Errorf("ObserverCount() = %d, want 0", got)
	}
	if m.IsDestroyed() {
		t.Error("releasing the last scope must not destroy the mutex")
	}
	if !m.TryLock() {
		t.Fatal("mutex should be unlocked after Release")
	}
	m.Unlock()

	// A second Release is harmless.
	scope.Release()
}

func TestAutoReferencedMutex_MutexDestroyedDuringScope(t *testing.T) {
	m := NewReferencedMutex()
	scope := NewAutoReferencedMutex(m)

	if err := m.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	if scope.Held() {
		t.Error("scope should forget a destroyed mutex")
	}
	if got := scope.ObservableCount(); got != 0 {
		t.Errorf("ObservableCount() = %d, want 0", got)
	}

	// Release must not unlock the destroyed mutex.
	scope.Release()
	if m.TryLock() {
		t.Error("the destroyed mutex stays locked by the abandoned scope")
	}
}

func TestAutoReferencedMutex_NilAndDestroyedMutex(t *testing.T) {
	scope := NewAutoReferencedMutex(nil)
	if scope.Held() {
		t.Error("scope over nil should not be held")
	}
	scope.Release()

	m := NewReferencedMutex()
	_ = m.Destroy()
	scope = NewAutoReferencedMutex(m)
	if scope.Held() {
		t.Error("scope over a destroyed mutex should not be held")
	}
	scope.Release()
	if !m.TryLock() {
		t.Error("a destroyed mutex should not be locked by a new scope")
	}
}

func TestAutoReferencedMutex_Serializes(t *testing.T) {
	m := NewReferencedMutex()

	const workers = 8
	const rounds = 100
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				scope := NewAutoReferencedMutex(m)
				counter++
				scope.Release()
			}
		}()
	}
	wg.Wait()

	if counter != workers*rounds {
		t.Errorf("counter = %d, want %d", counter, workers*rounds)
	}
	if got := m.ObserverCount(); got != 0 {
		t.Errorf("ObserverCount() = %d, want 0", got)
	}
}

func TestAutoReferencedMutex_WaiterRegistersWhileHeld(t *testing.T) {
	m := NewReferencedMutex()
	first := NewAutoReferencedMutex(m)

	acquired := make(chan *AutoReferencedMutex)
	go func() {
		acquired <- NewAutoReferencedMutex(m)
	}()

	// The waiter registers before it blocks on the lock.
	deadline := time.Now().Add(2 * time.Second)
	for m.ObserverCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("waiter never registered with the mutex")
		}
		time.Sleep(time.Millisecond)
	}

	first.Release()

	select {
	case second := <-acquired:
		if !second.Held() {
			t.Error("second scope should hold the mutex")
		}
		second.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the mutex")
	}
}

func TestObjectBase_OwnedMutexDestroyedWithObject(t *testing.T) {
	obj := NewReferencedObject(WithMutex())
	if obj.Mutex() == nil {
		t.Fatal("WithMutex should give the object a mutex")
	}

	if err := obj.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if !obj.Mutex().IsDestroyed() {
		t.Error("owned mutex should be destroyed with the object")
	}
}
