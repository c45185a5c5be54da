package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mzeidler/mbd/internal/sim"
)

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	result := &sim.Result{
		States: []sim.State{
			{1.0, 0.0},
			{0.9, -0.1},
		},
		Controls: []sim.Control{
			{0.0},
		},
		Times: []float64{0.0, 0.01},
		Metrics: map[string]float64{
			"energy": 1.5,
		},
	}

	runID, err := st.Save("pendulum", 0.01, 1.0, 42, "rk4", 1, result)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if meta.Model != "pendulum" {
		t.Errorf("expected model 'pendulum', got '%s'", meta.Model)
	}

	if meta.Seed != 42 {
		t.Errorf("expected seed 42, got %d", meta.Seed)
	}

	if meta.NQ != 1 || meta.NU != 1 {
		t.Errorf("expected nq=1 nu=1, got nq=%d nu=%d", meta.NQ, meta.NU)
	}

	if meta.Metrics["energy"] != 1.5 {
		t.Errorf("expected energy 1.5, got %f", meta.Metrics["energy"])
	}

	states, times, err := st.LoadStates(runID)
	if err != nil {
		t.Fatalf("load states failed: %v", err)
	}

	if len(states) != 2 {
		t.Errorf("expected 2 states, got %d", len(states))
	}

	if len(times) != 2 {
		t.Errorf("expected 2 times, got %d", len(times))
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	result := &sim.Result{
		States:   []sim.State{{1.0}},
		Controls: []sim.Control{},
		Times:    []float64{0.0},
		Metrics:  map[string]float64{},
	}

	_, err = st.Save("pendulum", 0.01, 1.0, 42, "rk4", 1, result)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	result := &sim.Result{
		States:   []sim.State{{1.0}},
		Controls: []sim.Control{},
		Times:    []float64{0.0},
		Metrics:  map[string]float64{},
	}

	runID, err := st.Save("pendulum", 0.01, 1.0, 42, "rk4", 1, result)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	metaPath := filepath.Join(runDir, "metadata.json")
	csvPath := filepath.Join(runDir, "states.csv")

	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		t.Error("metadata.json not created")
	}

	if _, err := os.Stat(csvPath); os.IsNotExist(err) {
		t.Error("states.csv not created")
	}
}

func TestExportJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "run.json")

	result := &sim.Result{
		States:   []sim.State{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}},
		Controls: []sim.Control{{1.0}},
		Times:    []float64{0.0, 0.01},
		Metrics:  map[string]float64{"energy": 2.0},
	}

	if err := ExportJSON(path, "double_pendulum", "rk45", 0.01, 1.0, 2, result); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if data.Model != "double_pendulum" {
		t.Errorf("expected model 'double_pendulum', got '%s'", data.Model)
	}

	if data.Steps != 2 || data.NQ != 2 {
		t.Errorf("expected steps=2 nq=2, got steps=%d nq=%d", data.Steps, data.NQ)
	}

	if len(data.States) != 2 || len(data.States[0]) != 3 {
		t.Errorf("unexpected state shape: %v", data.States)
	}

	if len(data.Forces) != 1 {
		t.Errorf("expected 1 force row, got %d", len(data.Forces))
	}
}
