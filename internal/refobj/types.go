package refobj

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mgx3d/tkutil/internal/event"
	"github.com/mgx3d/tkutil/internal/logging"
)

// Event is a modification mask handed to observers. Masks combine with |.
type Event uint64

const (
	// EventUndefined is the unspecified modification.
	EventUndefined Event = 0
	// EventUnavailable tells observers the object went through emergency
	// cleanup and should no longer be used.
	EventUnavailable Event = 1
	// EventNameModified tells observers the name or unique name changed.
	EventNameModified Event = 2
)

var eventNames = []struct {
	flag Event
	name string
}{
	{EventUnavailable, "unavailable"},
	{EventNameModified, "name_modified"},
}

// Has reports whether any bit of flag is set in e.
func (e Event) Has(flag Event) bool {
	return e&flag != 0
}

// String returns the set flags joined with "|", e.g. "unavailable|name_modified".
func (e Event) String() string {
	if e == EventUndefined {
		return "undefined"
	}
	var parts []string
	rest := e
	for _, n := range eventNames {
		if e.Has(n.flag) {
			parts = append(parts, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint64(rest)))
	}
	return strings.Join(parts, "|")
}

// Observer is the watching side of an edge.
type Observer interface {
	// ObservableModified is called after a watched object changed.
	ObservableModified(src Observable, mask Event)

	// ObservableDeleted is called while a watched object is being destroyed.
	// The edge has already been removed from src when this runs.
	ObservableDeleted(src Observable)
}

// Observable is the watched side of an edge.
type Observable interface {
	// ID returns the process-wide handle of the object.
	ID() uint64

	// AddObserver records an incoming edge and reports whether it did; an
	// object being destroyed refuses new edges. Callers normally go through
	// ObjectBase.RegisterObservable, which records both sides.
	AddObserver(o Observer, blocksDestruction bool) bool

	// RemoveObserver removes one matching incoming edge and may destroy the
	// receiver when that edge blocked destruction.
	RemoveObserver(o Observer, blocksDestruction bool)

	// ObserverCount returns the number of incoming edges.
	ObserverCount() int

	// Observers returns a snapshot of the watchers, one entry per edge.
	Observers() []Observer

	// AllowsDestruction reports whether the object may destroy itself now.
	AllowsDestruction() bool
}

// Referenced is implemented by every type embedding ReferencedObject.
type Referenced interface {
	Observer
	Observable
}

// Finalizer is implemented by types that must release their own state
// before observers are told of their destruction.
type Finalizer interface {
	PrepareForDestruction()
}

// Option configures an object at Init time.
type Option func(*options)

type options struct {
	mutex  bool
	locker sync.Locker
	logger *logging.Logger
	bus    *event.Bus
}

// WithMutex makes the object own a ReferencedMutex guarding its edge tables.
func WithMutex() Option {
	return func(o *options) {
		o.mutex = true
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBus sets the bus receiving lifecycle events.
func WithBus(bus *event.Bus) Option {
	return func(o *options) {
		o.bus = bus
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var (
	nextID    atomic.Uint64
	nopLogger = logging.NopLogger().WithComponent("refobj")
)

// isNil reports whether v is nil or a typed nil pointer.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// tryLocker is satisfied by sync.Mutex and ReferencedMutex.
type tryLocker interface {
	TryLock() bool
}

// edgeDropper removes an incoming edge without triggering self-destruction.
type edgeDropper interface {
	dropObserver(o Observer, blocksDestruction bool) bool
}
