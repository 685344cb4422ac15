package registry

import (
	"testing"

	"github.com/mgx3d/tkutil/internal/errors"
)

func TestInitManager(t *testing.T) {
	if _, err := Instance(); !errors.Is(err, errors.ErrManagerNotInitialized) {
		t.Fatalf("Instance() before init error = %v, want ErrManagerNotInitialized", err)
	}

	m, err := InitManager()
	if err != nil {
		t.Fatalf("InitManager() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Destroy() })

	if _, err := InitManager(); !errors.Is(err, errors.ErrManagerExists) {
		t.Errorf("second InitManager() error = %v, want ErrManagerExists", err)
	}
	if err := Install(NewManager()); !errors.Is(err, errors.ErrManagerExists) {
		t.Errorf("Install() over an installed manager error = %v, want ErrManagerExists", err)
	}
	if !errors.IsUsageError(errManagerExists()) {
		t.Error("a second manager is a usage error")
	}

	got, err := Instance()
	if err != nil {
		t.Fatalf("Instance() error = %v", err)
	}
	if got != m {
		t.Error("Instance() should return the installed manager")
	}
}

func TestInstall(t *testing.T) {
	if err := Install(nil); !errors.Is(err, errors.ErrNilObject) {
		t.Errorf("Install(nil) error = %v, want ErrNilObject", err)
	}

	destroyed := NewManager()
	_ = destroyed.Destroy()
	if err := Install(destroyed); !errors.Is(err, errors.ErrDestroyed) {
		t.Errorf("Install(destroyed) error = %v, want ErrDestroyed", err)
	}

	m := NewManager()
	if err := Install(m); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	// Destroying another manager leaves the installed one alone.
	other := NewManager()
	_ = other.Destroy()
	if got, err := Instance(); err != nil || got != m {
		t.Errorf("Instance() = %v, %v; want the installed manager", got, err)
	}

	_ = m.Destroy()
	if _, err := Instance(); !errors.Is(err, errors.ErrManagerNotInitialized) {
		t.Errorf("Instance() after Destroy error = %v, want ErrManagerNotInitialized", err)
	}
}

func TestGenerateUniqueName(t *testing.T) {
	a := GenerateUniqueName("Vol")
	b := GenerateUniqueName("Vol")

	if a == b {
		t.Errorf("names should differ, both are %q", a)
	}
	if len(a) != len("Vol_")+32 || a[:4] != "Vol_" {
		t.Errorf("GenerateUniqueName(Vol) = %q", a)
	}
	if len(GenerateUniqueName("")) != 32 {
		t.Error("an empty prefix yields the bare suffix")
	}
}
