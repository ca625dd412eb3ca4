package domain_test

import (
	"testing"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
)

// Test: progress writes are bounded to [0,100]; in-range values pass
// through untouched, including the fixed checkpoints.
func TestClampProgress(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{-1, 0},
		{-0.001, 0},
		{0, 0},
		{domain.ProgressCloning, 10},
		{domain.ProgressExtracting, 30},
		{domain.ProgressInferring, 60},
		{domain.ProgressMaterializing, 90},
		{99.9, 99.9},
		{100, 100},
		{100.001, 100},
		{250, 100},
	}
	for _, c := range cases {
		if got := domain.ClampProgress(c.in); got != c.want {
			t.Errorf("ClampProgress(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

// Test: only completed, failed and cancelled are terminal.
func TestJobStatusIsTerminal(t *testing.T) {
	terminal := []domain.JobStatus{domain.JobCompleted, domain.JobFailed, domain.JobCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	nonTerminal := []domain.JobStatus{domain.JobQueued, domain.JobRunning}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
