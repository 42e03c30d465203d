package models

import "testing"

func TestEventKind_Valid(t *testing.T) {
	tests := []struct {
		kind EventKind
		want bool
	}{
		{EventUp, true},
		{EventDown, true},
		{EventPaused, true},
		{EventRestarted, true},
		{EventKind("degraded"), true},
		{EventKind("ssl_expiring"), true},
		{EventKind(""), false},
		{EventKind("../down"), false},
		{EventKind("two words"), false},
	}
	for _, tt := range tests {
		if got := tt.kind.Valid(); got != tt.want {
			t.Errorf("EventKind(%q).Valid() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestEventKind_Emoji(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventUp, "🟢"},
		{EventDown, "🔴"},
		{EventKind("other"), "ℹ️"}, // default case
	}
	for _, tt := range tests {
		if got := tt.kind.Emoji(); got != tt.want {
			t.Errorf("EventKind(%q).Emoji() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestEventKind_StatusAfter(t *testing.T) {
	tests := []struct {
		kind   EventKind
		want   Status
		wantOK bool
	}{
		{EventUp, StatusUp, true},
		{EventDown, StatusDown, true},
		{EventPaused, StatusPaused, true},
		{EventRestarted, StatusUp, true},
		{EventKind("degraded"), "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, ok := tt.kind.StatusAfter()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("StatusAfter() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestEventKinds_AllValid(t *testing.T) {
	if len(EventKinds) != 4 {
		t.Fatalf("EventKinds has %d entries, want 4", len(EventKinds))
	}
	for _, k := range EventKinds {
		if !k.Valid() {
			t.Errorf("EventKinds contains invalid kind %q", k)
		}
	}
}
