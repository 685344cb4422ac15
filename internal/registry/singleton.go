package registry

import (
	"sync"

	"github.com/mgx3d/tkutil/internal/errors"
)

var (
	instanceMu sync.Mutex
	instance   *Manager
)

// InitManager creates a manager and installs it as the process-wide
// instance. It fails with ErrManagerExists while another one is installed.
func InitManager(opts ...Option) (*Manager, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		return nil, errManagerExists()
	}
	instance = NewManager(opts...)
	return instance, nil
}

// Install makes m the process-wide instance.
func Install(m *Manager) error {
	if m == nil {
		return errors.NewRegistryError("cannot install object manager", errors.ErrNilObject).
			WithOperation("install")
	}
	if m.IsDestroyed() {
		return m.checkLive("install")
	}

	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		return errManagerExists()
	}
	instance = m
	return nil
}

// Instance returns the process-wide manager.
func Instance() (*Manager, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		return nil, errors.NewRegistryError("no object manager installed", errors.ErrManagerNotInitialized).
			WithOperation("instance")
	}
	return instance, nil
}

// uninstall clears the process-wide instance if it is m.
func uninstall(m *Manager) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == m {
		instance = nil
	}
}

func errManagerExists() error {
	return errors.NewRegistryError("an object manager is already installed", errors.ErrManagerExists).
		WithOperation("install")
}
