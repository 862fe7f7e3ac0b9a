package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{name: "CPU-bound", multiplier: 1.0, limit: 0, minExpect: 1, maxExpect: availableCPU},
		{name: "I/O-bound", multiplier: 2.0, limit: 0, minExpect: 1, maxExpect: availableCPU * 2},
		{name: "limit caps result", multiplier: 100, limit: 3, minExpect: 1, maxExpect: 3},
		{name: "tiny multiplier floors at one", multiplier: 0.0001, limit: 0, minExpect: 1, maxExpect: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want between %d and %d",
					tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountOverride(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		limit    int
		expected int
	}{
		{name: "valid override", env: "7", limit: 0, expected: 7},
		{name: "override capped by limit", env: "50", limit: 8, expected: 8},
		{name: "invalid override ignored", env: "lots", limit: 1, expected: 1},
		{name: "zero override ignored", env: "0", limit: 1, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(OverrideEnv, tt.env)
			if got := Count(2.0, tt.limit); got != tt.expected {
				t.Errorf("Count with %s=%q = %d, want %d", OverrideEnv, tt.env, got, tt.expected)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	if got := Resolve(5, 0); got != 5 {
		t.Errorf("Resolve(5, 0) = %d, want 5", got)
	}
	if got := Resolve(5, 2); got != 2 {
		t.Errorf("Resolve(5, 2) = %d, want 2", got)
	}
	if got := Resolve(0, 0); got != ForIO(0) {
		t.Errorf("Resolve(0, 0) = %d, want ForIO(0) = %d", got, ForIO(0))
	}
}

func TestForCPUAndForIO(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	if ForCPU(0) < 1 {
		t.Error("ForCPU returned less than 1")
	}
	if ForIO(0) < ForCPU(0) {
		t.Errorf("ForIO (%d) should not be below ForCPU (%d)", ForIO(0), ForCPU(0))
	}
}
