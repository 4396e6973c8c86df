package opt

import (
	"testing"
)

func TestConvergenceTracker_Disabled(t *testing.T) {
	tracker := NewConvergenceTracker(DisabledStagnation(), nil)

	for _, c := range []float64{5, 5, 5, 5, 5, 5} {
		if tracker.Update(c) {
			t.Fatal("disabled tracker must never report convergence")
		}
	}
	if got := len(tracker.History()); got != 6 {
		t.Errorf("History length = %d, want 6", got)
	}
	if tracker.BestCost() != 5 {
		t.Errorf("BestCost = %f, want 5", tracker.BestCost())
	}
}

func TestConvergenceTracker_Patience(t *testing.T) {
	tracker := NewConvergenceTracker(StagnationConfig{Enabled: true, Patience: 3, Threshold: 0.01}, nil)

	costs := []float64{100, 90, 89.99, 89.98, 89.97}
	var stopped int
	for i, c := range costs {
		if tracker.Update(c) {
			stopped = i
			break
		}
	}
	if stopped != 4 {
		t.Errorf("stopped at update %d, want 4", stopped)
	}
	if tracker.StaleCount() != 3 {
		t.Errorf("StaleCount = %d, want 3", tracker.StaleCount())
	}
}

func TestConvergenceTracker_ImprovementResetsStaleCount(t *testing.T) {
	tracker := NewConvergenceTracker(StagnationConfig{Enabled: true, Patience: 2, Threshold: 0.1}, nil)

	tracker.Update(100)
	tracker.Update(99)
	if tracker.StaleCount() != 1 {
		t.Fatalf("StaleCount = %d, want 1", tracker.StaleCount())
	}
	tracker.Update(50)
	if tracker.StaleCount() != 0 {
		t.Errorf("StaleCount = %d after improvement, want 0", tracker.StaleCount())
	}
}

func TestConvergenceTracker_ZeroBaseline(t *testing.T) {
	tracker := NewConvergenceTracker(StagnationConfig{Enabled: true, Patience: 1, Threshold: 0.1}, nil)

	tracker.Update(0)
	if !tracker.Update(0) {
		t.Error("no change from a zero baseline should count as stale")
	}
}
