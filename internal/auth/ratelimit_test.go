package auth

import (
	"testing"
	"time"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		spec       string
		wantMax    int
		wantWindow time.Duration
		wantErr    bool
	}{
		{"500/hour", 500, time.Hour, false},
		{"10/min", 10, time.Minute, false},
		{"10/minute", 10, time.Minute, false},
		{"1/sec", 1, time.Second, false},
		{"7/day", 7, 24 * time.Hour, false},
		{"bad", 0, 0, true},
		{"0/hour", 0, 0, true},
		{"-5/hour", 0, 0, true},
		{"abc/hour", 0, 0, true},
		{"5/fortnight", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			max, window, err := ParseRate(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRate(%q) = nil error, want error", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRate(%q) unexpected error: %v", tt.spec, err)
			}
			if max != tt.wantMax || window != tt.wantWindow {
				t.Errorf("ParseRate(%q) = (%d, %v), want (%d, %v)", tt.spec, max, window, tt.wantMax, tt.wantWindow)
			}
		})
	}
}
