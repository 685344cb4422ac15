package registry

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mgx3d/tkutil/internal/errors"
	"github.com/mgx3d/tkutil/internal/event"
	"github.com/mgx3d/tkutil/internal/logging"
	"github.com/mgx3d/tkutil/internal/refobj"
)

// unnamed stands for the empty unique name in lookup errors.
const unnamed = "unnamed"

// Named is implemented by objects embedding refobj.NamedObject.
type Named interface {
	refobj.Referenced
	Name() string
	UniqueName() string
}

// destroyable is implemented by objects embedding refobj.ReferencedObject.
type destroyable interface {
	IsDestroyed() bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for registry and lifecycle messages.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithBus sets the bus receiving registry and lifecycle events.
func WithBus(bus *event.Bus) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

// Manager holds the named objects of a session and resolves them by unique
// name. It is safe for concurrent use.
//
// Compound operations (check then register) are serialized by a dedicated
// mutex; the edge tables are guarded by the manager's own mutex.
type Manager struct {
	refobj.ReferencedObject

	ops    *refobj.ReferencedMutex
	logger *logging.Logger
	bus    *event.Bus
}

// NewManager creates a manager that is not installed as the process-wide
// instance.
func NewManager(opts ...Option) *Manager {
	m := &Manager{logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.NopLogger()
	}
	m.logger = m.logger.WithComponent("registry")

	m.Init(m, refobj.WithMutex(), refobj.WithLogger(m.logger), refobj.WithBus(m.bus))
	m.ops = refobj.NewReferencedMutex(refobj.WithLogger(m.logger), refobj.WithBus(m.bus))
	return m
}

// AllowsDestruction always returns false: a manager is destroyed by its
// owner, never because its last watcher went away.
func (m *Manager) AllowsDestruction() bool {
	return false
}

// RegisterObject adds obj to the registry. Registering an object twice is a
// no-op. It fails when obj is nil, has an empty unique name, is destroyed,
// or when another object already uses its unique name; the registry is left
// unchanged on failure.
func (m *Manager) RegisterObject(obj Named) error {
	if isNil(obj) {
		return errors.NewRegistryError("cannot register object", errors.ErrNilObject).
			WithOperation("register")
	}
	name := obj.UniqueName()
	if name == "" {
		return errors.NewRegistryError("cannot register object without a unique name", errors.ErrEmptyUniqueName).
			WithOperation("register")
	}
	if d, ok := obj.(destroyable); ok && d.IsDestroyed() {
		return errors.NewRegistryError("cannot register destroyed object", errors.ErrDestroyed).
			WithOperation("register").
			WithUniqueName(name)
	}

	scope := refobj.NewAutoReferencedMutex(m.ops)
	defer scope.Release()

	if err := m.checkLive("register"); err != nil {
		return err
	}
	if m.IsObservableRegistered(obj, false) {
		return nil
	}
	if found := m.lookup(name); found != nil {
		return errors.NewRegistryError(
			fmt.Sprintf("an object with unique name %q is already referenced", name),
			errors.ErrAlreadyReferenced).
			WithOperation("register").
			WithUniqueName(name)
	}

	m.RegisterObservable(obj, false)

	m.logger.Info("object registered", "object_id", obj.ID(), "unique_name", name)
	m.bus.Publish(event.NewObjectRegisteredEvent(obj.ID(), name, m.Count()))
	return nil
}

// UnregisterObject removes obj from the registry without destroying it.
// Unregistering an object that is not registered is a no-op.
func (m *Manager) UnregisterObject(obj Named) error {
	if isNil(obj) {
		return errors.NewRegistryError("cannot unregister object", errors.ErrNilObject).
			WithOperation("unregister")
	}

	scope := refobj.NewAutoReferencedMutex(m.ops)
	defer scope.Release()

	if !m.IsObservableRegistered(obj, false) {
		return nil
	}
	m.UnregisterObservable(obj, false)

	m.logger.Info("object unregistered", "object_id", obj.ID(), "unique_name", obj.UniqueName())
	m.bus.Publish(event.NewObjectUnregisteredEvent(obj.ID(), obj.UniqueName(), m.Count(), false))
	return nil
}

// GetInstance returns the registered object with the given unique name.
func (m *Manager) GetInstance(uniqueName string) (Named, error) {
	scope := refobj.NewAutoReferencedMutex(m.ops)
	defer scope.Release()

	if found := m.lookup(uniqueName); found != nil {
		return found, nil
	}

	shown := uniqueName
	if shown == "" {
		shown = unnamed
	}
	return nil, errors.NewRegistryError(
		fmt.Sprintf("no object referenced with unique name %q", shown),
		errors.ErrNotReferenced).
		WithOperation("lookup").
		WithUniqueName(shown)
}

// FindInstances returns the registered objects whose unique name matches the
// glob pattern, sorted by unique name. An empty result is not an error.
func (m *Manager) FindInstances(pattern string) ([]Named, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, errors.NewRegistryError(
			fmt.Sprintf("cannot compile pattern %q: %v", pattern, err),
			errors.ErrInvalidPattern).
			WithOperation("find")
	}

	var found []Named
	for _, obj := range m.objects() {
		if g.Match(obj.UniqueName()) {
			found = append(found, obj)
		}
	}
	slices.SortFunc(found, func(a, b Named) int {
		return strings.Compare(a.UniqueName(), b.UniqueName())
	})
	return found, nil
}

// Count returns the number of registered objects.
func (m *Manager) Count() int {
	return len(m.objects())
}

// UniqueNames returns the unique names of the registered objects, sorted.
func (m *Manager) UniqueNames() []string {
	objs := m.objects()
	names := make([]string, 0, len(objs))
	for _, obj := range objs {
		names = append(names, obj.UniqueName())
	}
	slices.Sort(names)
	return names
}

// ObservableModified logs renames of registered objects.
func (m *Manager) ObservableModified(src refobj.Observable, mask refobj.Event) {
	if !mask.Has(refobj.EventNameModified) {
		return
	}
	if obj, ok := src.(Named); ok {
		m.logger.Debug("registered object renamed",
			"object_id", obj.ID(), "unique_name", obj.UniqueName())
	}
}

// ObservableDeleted drops a registered object that is being destroyed.
func (m *Manager) ObservableDeleted(src refobj.Observable) {
	m.ReferencedObject.ObservableDeleted(src)

	name := ""
	if obj, ok := src.(Named); ok {
		name = obj.UniqueName()
	}
	m.logger.Info("registered object destroyed", "object_id", src.ID(), "unique_name", name)
	m.bus.Publish(event.NewObjectUnregisteredEvent(src.ID(), name, m.Count(), true))
}

// Destroy tears the manager down: its watchers are told first, then the
// process-wide instance is cleared if it is this manager, then every
// registered object is released. Registered objects are not destroyed.
func (m *Manager) Destroy() error {
	if m.IsDestroyed() {
		return nil
	}

	m.NotifyObserversForDestruction()
	uninstall(m)
	m.UnregisterReferences()

	err := m.ReferencedObject.Destroy()
	_ = m.ops.Destroy()

	m.logger.Info("object manager destroyed", "object_id", m.ID())
	return err
}

func (m *Manager) checkLive(op string) error {
	if !m.IsDestroyed() {
		return nil
	}
	return errors.NewRegistryError("object manager destroyed", errors.ErrDestroyed).
		WithOperation(op)
}

// objects snapshots the registered objects.
func (m *Manager) objects() []Named {
	targets := m.Observables()
	objs := make([]Named, 0, len(targets))
	for _, t := range targets {
		if obj, ok := t.(Named); ok {
			objs = append(objs, obj)
		}
	}
	return objs
}

// lookup is a linear scan over the registered objects. Each UniqueName is
// read under that object's own guard only, so a concurrent SetUniqueName
// may go unnoticed by a scan in progress.
func (m *Manager) lookup(uniqueName string) Named {
	for _, obj := range m.objects() {
		if obj.UniqueName() == uniqueName {
			return obj
		}
	}
	return nil
}

func isNil(obj Named) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
