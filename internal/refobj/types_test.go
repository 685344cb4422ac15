package refobj

import "testing"

func TestEvent_String(t *testing.T) {
	tests := []struct {
		mask Event
		want string
	}{
		{EventUndefined, "undefined"},
		{EventUnavailable, "unavailable"},
		{EventNameModified, "name_modified"},
		{EventUnavailable | EventNameModified, "unavailable|name_modified"},
		{EventNameModified | 0x10, "name_modified|0x10"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.mask.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvent_Has(t *testing.T) {
	mask := EventUnavailable | EventNameModified
	if !mask.Has(EventNameModified) {
		t.Error("mask should have EventNameModified")
	}
	if EventNameModified.Has(EventUnavailable) {
		t.Error("EventNameModified should not have EventUnavailable")
	}
	if EventUndefined.Has(EventUndefined) {
		t.Error("the empty mask has no bits")
	}
}
