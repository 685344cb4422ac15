package event

import (
	"testing"
	"time"
)

func TestEventConstructors(t *testing.T) {
	before := time.Now()

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"modified", NewObjectModifiedEvent(1, 2, 3), TypeObjectModified},
		{"destroyed", NewObjectDestroyedEvent(1, false), TypeObjectDestroyed},
		{"unavailable", NewObjectUnavailableEvent(1, 0), TypeObjectUnavailable},
		{"registered", NewObjectRegisteredEvent(1, "geo1", 1), TypeObjectRegistered},
		{"unregistered", NewObjectUnregisteredEvent(1, "geo1", 0, true), TypeObjectUnregistered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.EventType(); got != tt.want {
				t.Errorf("EventType() = %q, want %q", got, tt.want)
			}
			if tt.event.Timestamp().Before(before) {
				t.Errorf("Timestamp() = %v, want >= %v", tt.event.Timestamp(), before)
			}
		})
	}
}

func TestObjectUnregisteredEvent_Fields(t *testing.T) {
	e := NewObjectUnregisteredEvent(9, "mesh3", 4, true)

	if e.ObjectID != 9 {
		t.Errorf("ObjectID = %d, want 9", e.ObjectID)
	}
	if e.UniqueName != "mesh3" {
		t.Errorf("UniqueName = %q, want %q", e.UniqueName, "mesh3")
	}
	if e.Registered != 4 {
		t.Errorf("Registered = %d, want 4", e.Registered)
	}
	if !e.Destroyed {
		t.Error("Destroyed = false, want true")
	}
}
