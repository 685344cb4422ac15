package refobj

// NamedObject is a ReferencedObject with a display name and a unique name.
// The display name is free-form, the unique name is the key used by the
// object registry to resolve textual handles. The unique name starts out
// equal to the display name.
type NamedObject struct {
	ReferencedObject
	name       string
	uniqueName string
}

// NewNamedObject creates a standalone named object.
func NewNamedObject(name string, opts ...Option) *NamedObject {
	n := &NamedObject{}
	n.InitNamed(n, name, opts...)
	return n
}

// InitNamed binds the object to its outermost value, sets both names and
// applies opts. It must be called once, before the object is shared.
func (n *NamedObject) InitNamed(self Referenced, name string, opts ...Option) {
	n.name = name
	n.uniqueName = name
	if isNil(self) {
		self = n
	}
	n.init(self, buildOptions(opts))
}

// Name returns the display name.
func (n *NamedObject) Name() string {
	n.lock()
	defer n.unlock()
	return n.name
}

// UniqueName returns the registry key.
func (n *NamedObject) UniqueName() string {
	n.lock()
	defer n.unlock()
	return n.uniqueName
}

// SetName changes the display name and notifies observers with
// EventNameModified. Setting the current name is a no-op.
func (n *NamedObject) SetName(name string) {
	n.lock()
	changed := name != n.name
	n.name = name
	n.unlock()

	if changed {
		n.NotifyObserversForModification(EventNameModified)
	}
}

// SetUniqueName changes the registry key and notifies observers with
// EventNameModified. Setting the current unique name is a no-op.
//
// The registry does not re-check uniqueness on rename.
func (n *NamedObject) SetUniqueName(name string) {
	n.lock()
	changed := name != n.uniqueName
	n.uniqueName = name
	n.unlock()

	if changed {
		n.NotifyObserversForModification(EventNameModified)
	}
}
