package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/blendopt/internal/config"
	"github.com/cwbudde/blendopt/internal/plan"
	"github.com/cwbudde/blendopt/internal/store"
)

const twoTankDocument = `{
  "tanks": [
    {"name": "A", "API": 30, "Cost": 50, "Viscosity": "", "Flash": " ", "minimumVolume": 0, "maximumVolume": 100},
    {"name": "B", "API": "40", "Cost": 60, "minimumVolume": 0, "maximumVolume": 100}
  ],
  "targetBlend": {
    "API": -1e9, "minViscosity": -1e9, "maxViscosity": 1e9,
    "SulfurPcnt": 1e9, "V": 1e9, "Na": 1e9, "WaterPcnt": 1e9,
    "Si": 1e9, "AlSi": 1e9, "AsphPcnt": 1e9, "MCRTPcnt": 1e9,
    "Flash": -1e9, "CCAI": 1e9
  },
  "mode": "de"
}`

func fastOptimizerConfig() config.OptimizerConfig {
	cfg := config.DefaultOptimizer()
	cfg.DE.MaxGenerations = 100
	cfg.GA.PopulationSize = 40
	cfg.GA.Generations = 5
	return cfg
}

func newTestServer(t *testing.T, withStore bool) (*Server, *httptest.Server) {
	t.Helper()

	var st *store.FSStore
	if withStore {
		var err error
		st, err = store.NewFSStore(t.TempDir(), nil)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
	}

	s := NewServer(":0", fastOptimizerConfig(), st, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s, ts
}

func postRun(t *testing.T, url, body string) (*http.Response, Job) {
	t.Helper()

	resp, err := http.Post(url+"/api/v1/runs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	var job Job
	if resp.StatusCode == http.StatusCreated {
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			t.Fatalf("Failed to decode job: %v", err)
		}
	}
	return resp, job
}

func waitForTerminal(t *testing.T, s *Server, id string) Job {
	t.Helper()

	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := s.jobManager.GetJob(id)
		if !ok {
			t.Fatalf("Job %s disappeared", id)
		}
		if job.State.Terminal() {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish in time", id)
	return Job{}
}

func TestServer_CreateRunCompletes(t *testing.T) {
	s, ts := newTestServer(t, true)

	resp, job := postRun(t, ts.URL, twoTankDocument)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	if job.ID == "" {
		t.Fatal("Job ID should not be empty")
	}
	if job.Mode != plan.ModeDE || job.Tanks != 2 {
		t.Errorf("Unexpected job: %+v", job)
	}

	done := waitForTerminal(t, s, job.ID)
	if done.State != StateCompleted {
		t.Fatalf("Expected completed, got %s (%s)", done.State, done.Error)
	}
	if !done.Feasible || math.Abs(done.Cost-359.74) > 5 {
		t.Errorf("Unexpected result: cost=%f feasible=%v", done.Cost, done.Feasible)
	}
	if !done.Persisted {
		t.Error("Run should be persisted")
	}

	rec, err := s.store.LoadRun(job.ID)
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if rec.Report.Cost != done.Cost || rec.Config.Mode != "de" {
		t.Errorf("Stored record does not match job: %+v", rec.Config)
	}
}

func TestServer_GetRun(t *testing.T) {
	s, ts := newTestServer(t, false)
	_, job := postRun(t, ts.URL, twoTankDocument)
	waitForTerminal(t, s, job.ID)

	resp, err := http.Get(ts.URL + "/api/v1/runs/" + job.ID)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if status["state"] != string(StateCompleted) {
		t.Errorf("Expected completed, got %v", status["state"])
	}
	if _, ok := status["elapsed"]; !ok {
		t.Error("Status should include elapsed")
	}
	if _, ok := status["report"]; !ok {
		t.Error("Status should include the report")
	}
	if status["persisted"] != false {
		t.Error("Run should not be persisted without a store")
	}
}

func TestServer_ListRuns(t *testing.T) {
	s, ts := newTestServer(t, false)
	s.jobManager.CreateJob(testInput(), plan.ModeDE)
	s.jobManager.CreateJob(testInput(), plan.ModeGA)

	resp, err := http.Get(ts.URL + "/api/v1/runs")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var jobs []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	for _, job := range jobs {
		if _, ok := job["report"]; ok {
			t.Error("Listings should not include reports")
		}
	}
}

func TestServer_CreateRunRejectsBadRequests(t *testing.T) {
	_, ts := newTestServer(t, false)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{"},
		{"no tanks", `{"tanks": [], "targetBlend": {}}`},
		{"missing target", `{"tanks": [{"API": 30, "maximumVolume": 10}]}`},
		{"non-numeric field", `{"tanks": [{"API": "heavy"}], "targetBlend": {}}`},
		{"unknown mode", strings.Replace(twoTankDocument, `"mode": "de"`, `"mode": "pso"`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postRun(t, ts.URL, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestServer_ModeQueryOverridesBody(t *testing.T) {
	s, ts := newTestServer(t, false)

	resp, err := http.Post(ts.URL+"/api/v1/runs?mode=deap", "application/json", strings.NewReader(twoTankDocument))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	var job Job
	json.NewDecoder(resp.Body).Decode(&job)
	if job.Mode != plan.ModeGA {
		t.Errorf("Expected ga mode, got %s", job.Mode)
	}
	waitForTerminal(t, s, job.ID)
}

func TestServer_NotFoundAndMethods(t *testing.T) {
	_, ts := newTestServer(t, false)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/v1/runs/nonexistent", http.StatusNotFound},
		{http.MethodGet, "/api/v1/runs/nonexistent/report", http.StatusNotFound},
		{http.MethodGet, "/api/v1/runs/nonexistent/stream", http.StatusNotFound},
		{http.MethodGet, "/api/v1/runs/nonexistent/trace", http.StatusNotFound},
		{http.MethodGet, "/api/v1/runs/x/unknown", http.StatusNotFound},
		{http.MethodGet, "/api/v1/runs/", http.StatusBadRequest},
		{http.MethodPut, "/api/v1/runs", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/v1/runs/x", http.StatusMethodNotAllowed},
		{http.MethodOptions, "/api/v1/runs", http.StatusOK},
	}

	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, ts.URL+tt.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s failed: %v", tt.method, tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, resp.StatusCode)
		}
		if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("%s %s: missing CORS header", tt.method, tt.path)
		}
	}
}

func TestServer_Report(t *testing.T) {
	s, ts := newTestServer(t, true)
	_, job := postRun(t, ts.URL, twoTankDocument)
	waitForTerminal(t, s, job.ID)

	resp, err := http.Get(ts.URL + "/api/v1/runs/" + job.ID + "/report")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	var report map[string]any
	json.NewDecoder(resp.Body).Decode(&report)
	resp.Body.Close()
	if _, ok := report["optimizedBlend"]; !ok {
		t.Error("JSON report should contain optimizedBlend")
	}

	resp, err = http.Get(ts.URL + "/api/v1/runs/" + job.ID + "/report?format=yaml")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("Expected YAML content type, got %s", ct)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Invalid YAML: %v", err)
	}
	if doc["optimizer"] != "de" {
		t.Errorf("Unexpected optimizer: %v", doc["optimizer"])
	}

	resp, _ = http.Get(ts.URL + "/api/v1/runs/" + job.ID + "/report?format=xml")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown format, got %d", resp.StatusCode)
	}
}

func TestServer_ReportPendingConflict(t *testing.T) {
	s, ts := newTestServer(t, false)
	job := s.jobManager.CreateJob(testInput(), plan.ModeDE)

	resp, err := http.Get(ts.URL + "/api/v1/runs/" + job.ID + "/report")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409, got %d", resp.StatusCode)
	}
}

func TestServer_ReportFromStore(t *testing.T) {
	s, ts := newTestServer(t, true)

	rec := store.NewRunRecord("stored-run", store.RunConfig{Mode: "both"}, &plan.Report{
		Tanks:      testInput().Tanks,
		Allocation: []float64{100},
		Cost:       359.74,
		Optimizer:  "ga",
	})
	if err := s.store.SaveRun(rec); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/v1/runs/stored-run/report")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var report plan.Report
	json.NewDecoder(resp.Body).Decode(&report)
	if report.Optimizer != "ga" {
		t.Errorf("Unexpected report: %+v", report)
	}
}

func TestServer_Trace(t *testing.T) {
	s, ts := newTestServer(t, true)
	_, job := postRun(t, ts.URL, twoTankDocument)
	waitForTerminal(t, s, job.ID)

	resp, err := http.Get(ts.URL + "/api/v1/runs/" + job.ID + "/trace")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var entries []store.TraceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("Failed to decode trace: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("Expected trace entries")
	}
	if entries[0].Optimizer != "de" || entries[0].Generation != 0 {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}
}

func TestServer_StreamFinishedJob(t *testing.T) {
	s, ts := newTestServer(t, false)
	_, job := postRun(t, ts.URL, twoTankDocument)
	waitForTerminal(t, s, job.ID)

	resp, err := http.Get(ts.URL + "/api/v1/runs/" + job.ID + "/stream")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected event stream, got %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("data: ")) {
		t.Fatalf("Expected SSE data line, got %q", body)
	}

	var event ProgressEvent
	line := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("data: ")))
	if err := json.Unmarshal(line, &event); err != nil {
		t.Fatalf("Invalid event: %v", err)
	}
	if event.State != StateCompleted || event.JobID != job.ID {
		t.Errorf("Unexpected event: %+v", event)
	}
}

func TestWorker_FailedRun(t *testing.T) {
	cfg := fastOptimizerConfig()
	cfg.DE.PopSize = 0
	s := NewServer(":0", cfg, nil, nil)

	job := s.jobManager.CreateJob(testInput(), plan.ModeDE)
	if err := s.worker.runJob(context.Background(), job.ID); err == nil {
		t.Fatal("Expected an error from an invalid optimizer config")
	}

	failed, _ := s.jobManager.GetJob(job.ID)
	if failed.State != StateFailed || failed.Error == "" || failed.EndTime == nil {
		t.Errorf("Unexpected job after failure: %+v", failed)
	}
}

func TestWorker_CancelledRun(t *testing.T) {
	s := NewServer(":0", fastOptimizerConfig(), nil, nil)
	job := s.jobManager.CreateJob(testInput(), plan.ModeDE)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.worker.runJob(ctx, job.ID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	cancelled, _ := s.jobManager.GetJob(job.ID)
	if cancelled.State != StateCancelled {
		t.Errorf("Expected cancelled, got %s", cancelled.State)
	}
}

func TestWorker_UnknownJob(t *testing.T) {
	s := NewServer(":0", fastOptimizerConfig(), nil, nil)
	if err := s.worker.runJob(context.Background(), "missing"); err == nil {
		t.Error("Expected error for unknown job")
	}
}
