package domain

import "testing"

func TestCapabilityPredicates(t *testing.T) {
	tests := []struct {
		caps        Capability
		sends       bool
		receives    bool
		exportable  bool
		description string
	}{
		{CapRead, true, false, true, "read"},
		{CapWrite, false, true, true, "write"},
		{CapRead | CapWrite, true, true, true, "read|write"},
		{CapRead | CapNoExport, false, false, false, "read|no-export"},
		{CapRead | CapWrite | CapNoExport, false, false, false, "read|write|no-export"},
		{0, false, false, true, "none"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			if got := tt.caps.CanSend(); got != tt.sends {
				t.Errorf("CanSend() = %v, want %v", got, tt.sends)
			}
			if got := tt.caps.CanReceive(); got != tt.receives {
				t.Errorf("CanReceive() = %v, want %v", got, tt.receives)
			}
			if got := tt.caps.Exportable(); got != tt.exportable {
				t.Errorf("Exportable() = %v, want %v", got, tt.exportable)
			}
			if got := tt.caps.String(); got != tt.description {
				t.Errorf("String() = %q, want %q", got, tt.description)
			}
		})
	}
}

func TestParseCapability(t *testing.T) {
	tests := []struct {
		in   string
		want Capability
	}{
		{"read", CapRead},
		{"read|write", CapRead | CapWrite},
		{"w, x", CapWrite | CapNoExport},
		{"READ noexport", CapRead | CapNoExport},
		{"", 0},
		{"duplex", 0},
	}

	for _, tt := range tests {
		if got := ParseCapability(tt.in); got != tt.want {
			t.Errorf("ParseCapability(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseCapabilityRoundTrip(t *testing.T) {
	for c := Capability(0); c <= CapRead|CapWrite|CapNoExport; c++ {
		if got := ParseCapability(c.String()); got != c {
			t.Errorf("ParseCapability(%q) = %s, want %s", c.String(), got, c)
		}
	}
}
