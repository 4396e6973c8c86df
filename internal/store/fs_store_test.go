package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/blendopt/internal/blend"
	"github.com/cwbudde/blendopt/internal/config"
	"github.com/cwbudde/blendopt/internal/plan"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir, nil)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store, tempDir
}

func createTestReport() *plan.Report {
	return &plan.Report{
		Tanks: []blend.Tank{
			{Name: "A", API: 30, Cost: 50, MaximumVolume: 100},
			{Name: "B", API: 40, Cost: 60, MaximumVolume: 100},
		},
		OptimizedBlend: blend.AggregateBlend{Volume: 100, Cost: 50},
		Allocation:     blend.Allocation{100, 0},
		Cost:           359.74,
		CostDisplay:    "359.74",
		Feasible:       true,
		Mode:           plan.ModeBoth,
		Optimizer:      "de",
		Outcomes: []plan.Outcome{
			{Optimizer: "de", Cost: 359.74, Allocation: blend.Allocation{100, 0}, History: []float64{380, 362, 359.74}},
			{Optimizer: "ga", Cost: 360.2, Allocation: blend.Allocation{98, 1}, History: []float64{390, 360.2}},
		},
	}
}

// createTestRun creates a run record with test data.
func createTestRun(runID string) *RunRecord {
	return NewRunRecord(runID, RunConfig{
		Mode:      "both",
		InputPath: "testdata/input.json",
		Optimizer: config.DefaultOptimizer(),
	}, createTestReport())
}

func TestNewFSStore(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewFSStore(base, nil)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store.BaseDir() != base {
		t.Errorf("BaseDir = %s, want %s", store.BaseDir(), base)
	}
	if _, err := os.Stat(base); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestSaveRun(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveRun(createTestRun("run-123")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "runs", "run-123", "run.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Run file was not created at %s", expectedPath)
	}
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("Temp file should not exist after save")
	}
}

func TestSaveRun_Invalid(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveRun(nil); err == nil {
		t.Error("Expected error for nil record")
	}

	rec := createTestRun("")
	err := store.SaveRun(rec)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "ID" {
		t.Errorf("Expected ValidationError on ID, got %v", err)
	}
}

func TestSaveRun_Overwrite(t *testing.T) {
	store, _ := setupTestStore(t)

	first := createTestRun("run-overwrite")
	first.Report.Cost = 500
	second := createTestRun("run-overwrite")
	second.Report.Cost = 400

	if err := store.SaveRun(first); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := store.SaveRun(second); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.LoadRun("run-overwrite")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if loaded.Report.Cost != 400 {
		t.Errorf("Expected overwritten cost 400, got %f", loaded.Report.Cost)
	}
}

func TestLoadRun(t *testing.T) {
	store, _ := setupTestStore(t)
	original := createTestRun("run-load")

	if err := store.SaveRun(original); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	loaded, err := store.LoadRun("run-load")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}

	if loaded.ID != original.ID {
		t.Errorf("ID mismatch: expected %s, got %s", original.ID, loaded.ID)
	}
	if !loaded.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("CreatedAt mismatch: expected %v, got %v", original.CreatedAt, loaded.CreatedAt)
	}
	if loaded.Config.Optimizer.DE.Seed != original.Config.Optimizer.DE.Seed {
		t.Errorf("DE seed mismatch")
	}
	if loaded.Report.Cost != original.Report.Cost {
		t.Errorf("Cost mismatch: expected %f, got %f", original.Report.Cost, loaded.Report.Cost)
	}
	if len(loaded.Report.Allocation) != 2 || loaded.Report.Allocation[0] != 100 {
		t.Errorf("Allocation mismatch: %v", loaded.Report.Allocation)
	}
	if loaded.Report.Outcomes[0].History != nil {
		t.Errorf("Outcome history belongs in the trace, not run.json")
	}
}

func TestLoadRun_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadRun("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.LoadRun(""); err == nil {
		t.Error("Expected error for empty runID")
	}
}

func TestLoadRun_Corrupt(t *testing.T) {
	store, tempDir := setupTestStore(t)

	dir := filepath.Join(tempDir, "runs", "broken")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := store.LoadRun("broken")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Expected a decode error, got %v", err)
	}
}

func TestListRuns_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected no runs, got %d", len(infos))
	}
}

func TestListRuns_SkipsInvalidEntries(t *testing.T) {
	store, tempDir := setupTestStore(t)

	for _, id := range []string{"run-1", "run-2"} {
		if err := store.SaveRun(createTestRun(id)); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	runsDir := filepath.Join(tempDir, "runs")
	os.MkdirAll(filepath.Join(runsDir, "no-record"), 0755)
	os.WriteFile(filepath.Join(runsDir, "stray-file"), []byte("x"), 0644)
	os.MkdirAll(filepath.Join(runsDir, "corrupt"), 0755)
	os.WriteFile(filepath.Join(runsDir, "corrupt", "run.json"), []byte("]"), 0644)

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(infos))
	}
	for _, info := range infos {
		if info.Optimizer != "de" || info.Tanks != 2 || !info.Feasible {
			t.Errorf("Unexpected info: %+v", info)
		}
	}
}

func TestDeleteRun(t *testing.T) {
	store, tempDir := setupTestStore(t)
	rec := createTestRun("run-delete")

	if err := store.SaveRun(rec); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := store.SaveTrace(rec.ID, rec.Report.Outcomes); err != nil {
		t.Fatalf("SaveTrace failed: %v", err)
	}

	if err := store.DeleteRun(rec.ID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "runs", rec.ID)); !os.IsNotExist(err) {
		t.Error("Run directory should be removed")
	}
	if _, err := store.LoadRun(rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteRun_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.DeleteRun("nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteRun(""); err == nil {
		t.Error("Expected error for empty runID")
	}
}

func TestSaveTrace(t *testing.T) {
	store, tempDir := setupTestStore(t)
	outcomes := createTestReport().Outcomes

	if err := store.SaveTrace("run-trace", outcomes); err != nil {
		t.Fatalf("SaveTrace failed: %v", err)
	}

	reader, err := NewTraceReader(tempDir, "run-trace")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(entries))
	}
	if entries[2] != (TraceEntry{Optimizer: "de", Generation: 2, Cost: 359.74}) {
		t.Errorf("Unexpected entry: %+v", entries[2])
	}
	if entries[3] != (TraceEntry{Optimizer: "ga", Generation: 0, Cost: 390}) {
		t.Errorf("Unexpected entry: %+v", entries[3])
	}
}

func TestConcurrentSave(t *testing.T) {
	store, _ := setupTestStore(t)

	const numRuns = 10
	done := make(chan bool, numRuns)

	for i := 0; i < numRuns; i++ {
		go func(idx int) {
			if err := store.SaveRun(createTestRun(fmt.Sprintf("concurrent-%d", idx))); err != nil {
				t.Errorf("Concurrent save failed: %v", err)
			}
			done <- true
		}(i)
	}
	for i := 0; i < numRuns; i++ {
		<-done
	}

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != numRuns {
		t.Errorf("Expected %d runs, got %d", numRuns, len(infos))
	}
}

func TestRunRecord_ToInfo(t *testing.T) {
	rec := createTestRun("info")
	rec.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	info := rec.ToInfo()
	if info.ID != "info" || info.Mode != "both" || info.Cost != 359.74 || info.Tanks != 2 {
		t.Errorf("Unexpected info: %+v", info)
	}
	if !info.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt mismatch")
	}
	if info.InputPath != "testdata/input.json" {
		t.Errorf("InputPath = %s", info.InputPath)
	}
}
