package remote

import (
	"math"
	"testing"
)

func TestPerfExecModes(t *testing.T) {
	tests := []struct {
		name      string
		timeoutMs int32
		want      []int32 // exec, exec-no-wait, exec-fire-and-forget
	}{
		{"Positive", 5000, []int32{5000, -5000, 0}},
		{"Negative", -200, []int32{200, -200, 0}},
		{"Zero", 0, []int32{1, -1, 0}},
		{"Minimum", math.MinInt32, []int32{math.MaxInt32, -math.MaxInt32, 0}},
	}

	names := []string{"exec", "exec-no-wait", "exec-fire-and-forget"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modes := perfExecModes(tt.timeoutMs)
			if len(modes) != len(names) {
				t.Fatalf("Expected %d modes, got %d", len(names), len(modes))
			}
			for i, mode := range modes {
				if mode.name != names[i] || mode.timeoutMs != tt.want[i] {
					t.Errorf("Mode %d: expected %s/%d, got %s/%d", i, names[i], tt.want[i], mode.name, mode.timeoutMs)
				}
			}
		})
	}
}
