package bill

import "testing"

func TestCappedWeight(t *testing.T) {
	tests := []struct {
		name       string
		childCount int
		want       float64
	}{
		{"no children", 0, 0},
		{"under cap", 10, 10},
		{"at cap", 30, 30},
		{"over cap", 42, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cappedWeight(tt.childCount); got != tt.want {
				t.Errorf("cappedWeight(%d) = %v, want %v", tt.childCount, got, tt.want)
			}
		})
	}
}

// TestCappedWeight_ScenarioS3 reproduces the three-parent billing scenario:
// 10, 30, and 42 children should contribute 10 + 30 + 30 = 70kg total, not
// a flat 30kg per parent regardless of child count.
func TestCappedWeight_ScenarioS3(t *testing.T) {
	total := cappedWeight(10) + cappedWeight(30) + cappedWeight(42)
	if total != 70 {
		t.Errorf("total weight = %v, want 70", total)
	}
}
