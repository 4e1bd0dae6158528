package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/dynamo"
	"github.com/san-kum/climsim/internal/sim"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	tmpDir := t.TempDir()
	st := New(tmpDir)
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st, tmpDir
}

func sampleTrajectory() *sim.Trajectory {
	return &sim.Trajectory{
		DaysPerYear: 2,
		Times:       []float64{0, 1, 2, 3, 4},
		States: []dynamo.State{
			{1, 0.01, 1, 0.01, 1},
			{1.001, 0.0099, 1.0002, 0.0099, 2.1},
			{1.002, 0.0098, 1.0004, 0.0098, 3.3333333333333335},
			{1.003, 0.0097, 1.0006, 0.0097, 4.4},
			{0.9, 0.005, 1.0008, 0.0096, 5.5},
		},
		Shocks: []sim.ShockEvent{
			{Year: 1, Time: 4, Index: 4, R: 1.004, P: 0.0096, C: 5.5, LossR: 0.104, LossP: 0.0046},
		},
		Metrics: map[string]float64{
			"peak_co2": 5.5,
			"gdp_gap":  math.Inf(1),
		},
	}
}

func sampleMeta() RunMetadata {
	return RunMetadata{
		Name:        "baseline",
		NumYears:    1,
		DaysPerYear: 2,
		Rtol:        1e-3,
		Atol:        1e-6,
		Initial:     climate.InitialConditions{R: 1, P: 0.01, C: 1},
		Params:      climate.Params{Gr: 3e-3, Gp: 9e-4, Kr: 1.1, Kp: 0.7, Gamma: 1, Alpha: 1, Beta: 1, D: 1e-5, F: 1, In: 0.2},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()

	runID, err := st.Save(ctx, sampleMeta(), sampleTrajectory(), nil)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(ctx, runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Name != "baseline" {
		t.Errorf("expected name 'baseline', got '%s'", meta.Name)
	}
	if meta.Params != sampleMeta().Params {
		t.Errorf("parameters did not round trip: %+v", meta.Params)
	}
	if meta.Points != 5 || meta.Shocks != 1 {
		t.Errorf("expected 5 points and 1 shock, got %d and %d", meta.Points, meta.Shocks)
	}
	if meta.Status != StatusComplete {
		t.Errorf("expected complete status, got %s", meta.Status)
	}
	if meta.Metrics["peak_co2"] != 5.5 {
		t.Errorf("expected peak_co2 5.5, got %f", meta.Metrics["peak_co2"])
	}
	if _, ok := meta.Metrics["gdp_gap"]; ok {
		t.Error("non-finite metric should not be stored")
	}
}

func TestStoreLoadTrajectory(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	want := sampleTrajectory()

	runID, err := st.Save(ctx, sampleMeta(), want, nil)
	if err != nil {
		t.Fatal(err)
	}

	tr, meta, err := st.LoadTrajectory(ctx, runID)
	if err != nil {
		t.Fatalf("load trajectory failed: %v", err)
	}
	if meta.ID != runID {
		t.Errorf("expected id %s, got %s", runID, meta.ID)
	}
	if tr.Len() != want.Len() || tr.DaysPerYear != 2 {
		t.Fatalf("expected %d points, got %d", want.Len(), tr.Len())
	}
	for i := range want.States {
		if tr.Times[i] != want.Times[i] {
			t.Errorf("time %d: %g != %g", i, tr.Times[i], want.Times[i])
		}
		for j := range want.States[i] {
			if tr.States[i][j] != want.States[i][j] {
				t.Errorf("state %d[%d]: %g != %g", i, j, tr.States[i][j], want.States[i][j])
			}
		}
	}
	if len(tr.Shocks) != 1 || tr.Shocks[0] != want.Shocks[0] {
		t.Errorf("shocks did not round trip: %+v", tr.Shocks)
	}
}

func TestStoreFailedRun(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()

	runErr := &dynamo.DivergenceError{Year: 1, Component: "I_p", Value: -1}
	runID, err := st.Save(ctx, sampleMeta(), sampleTrajectory(), runErr)
	if err != nil {
		t.Fatal(err)
	}

	meta, err := st.Load(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Status != StatusFailed || meta.Error != runErr.Error() {
		t.Errorf("expected failed status with error, got %s %q", meta.Status, meta.Error)
	}
}

func TestStoreList(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()

	runs, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	first, err := st.Save(ctx, sampleMeta(), sampleTrajectory(), nil)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	second, err := st.Save(ctx, sampleMeta(), sampleTrajectory(), nil)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if first == second {
		t.Errorf("run ids collide: %s", first)
	}

	runs, err = st.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestStoreFileStructure(t *testing.T) {
	st, tmpDir := newStore(t)

	runID, err := st.Save(context.Background(), sampleMeta(), sampleTrajectory(), nil)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	for _, name := range []string{"metadata.json", "states.csv", "shocks.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "catalog.db")); os.IsNotExist(err) {
		t.Error("catalog.db not created")
	}
}

func TestStoreDelete(t *testing.T) {
	st, tmpDir := newStore(t)
	ctx := context.Background()

	runID, err := st.Save(ctx, sampleMeta(), sampleTrajectory(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, runID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, runID)); !os.IsNotExist(err) {
		t.Error("run directory still exists")
	}
	if _, err := st.Load(ctx, runID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestStoreNotInitialized(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Save(context.Background(), sampleMeta(), sampleTrajectory(), nil); err == nil {
		t.Error("expected error from uninitialized store")
	}
}

func TestCatalogReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := New(dir)
	if err := st.Init(ctx); err != nil {
		t.Fatal(err)
	}
	runID, err := st.Save(ctx, sampleMeta(), sampleTrajectory(), nil)
	if err != nil {
		t.Fatal(err)
	}
	st.Close()

	st = New(dir)
	if err := st.Init(ctx); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer st.Close()

	if _, err := st.Load(ctx, runID); err != nil {
		t.Errorf("run lost after reopen: %v", err)
	}
}

func TestWriteJSON(t *testing.T) {
	meta := sampleMeta()
	var buf bytes.Buffer

	if err := WriteJSON(&buf, &meta, sampleTrajectory()); err != nil {
		t.Fatal(err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(data.Times) != 5 || len(data.States) != 5 || len(data.GlobalGDP) != 5 {
		t.Errorf("unexpected lengths %d %d %d", len(data.Times), len(data.States), len(data.GlobalGDP))
	}
	if data.GlobalGDP[0] != 1.01 {
		t.Errorf("expected global GDP 1.01, got %g", data.GlobalGDP[0])
	}
	if len(data.Components) != 5 || data.Components[2] != "I_r" {
		t.Errorf("unexpected components %v", data.Components)
	}
	if data.Params.F != 1 {
		t.Errorf("expected f = 1, got %d", data.Params.F)
	}
}

func TestWriteStatesCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStatesCSV(&buf, sampleTrajectory()); err != nil {
		t.Fatal(err)
	}

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 6 {
		t.Fatalf("expected header plus 5 rows, got %d lines", len(lines))
	}
	if string(lines[0]) != "time,r,p,I_r,I_p,c" {
		t.Errorf("unexpected header %q", lines[0])
	}
}
