package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/dynamo"
	"github.com/san-kum/climsim/internal/sim"
)

const (
	StatusComplete = "complete"
	StatusFailed   = "failed"

	catalogFile  = "catalog.db"
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
	shocksFile   = "shocks.csv"
)

var (
	statesHeader = []string{"time", "r", "p", "I_r", "I_p", "c"}
	shocksHeader = []string{"year", "time", "index", "r", "p", "c", "loss_r", "loss_p"}
)

// Store keeps one directory per run under baseDir and indexes them in a
// SQLite catalog.
type Store struct {
	baseDir string
	catalog *Catalog
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Init creates the base directory and opens the catalog.
func (s *Store) Init(ctx context.Context) error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return err
	}
	cat, err := OpenCatalog(ctx, filepath.Join(s.baseDir, catalogFile))
	if err != nil {
		return err
	}
	s.catalog = cat
	return nil
}

func (s *Store) Close() error {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Close()
}

type RunMetadata struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Timestamp   time.Time                 `json:"timestamp"`
	NumYears    int                       `json:"num_years"`
	DaysPerYear int                       `json:"days_per_year"`
	Rtol        float64                   `json:"rtol"`
	Atol        float64                   `json:"atol"`
	Initial     climate.InitialConditions `json:"initial_conditions"`
	Params      climate.Params            `json:"parameters"`
	Points      int                       `json:"points"`
	Shocks      int                       `json:"shocks"`
	Status      string                    `json:"status"`
	Error       string                    `json:"error,omitempty"`
	Metrics     map[string]float64        `json:"metrics"`
}

// Save writes meta and the trajectory into a new run directory and
// records it in the catalog. A non-nil runErr marks the run as failed;
// the partial trajectory is still saved.
func (s *Store) Save(ctx context.Context, meta RunMetadata, tr *sim.Trajectory, runErr error) (string, error) {
	if s.catalog == nil {
		return "", errors.New("storage: store not initialized")
	}

	now := time.Now()
	runDir, runID, err := s.makeRunDir(meta.Name, now)
	if err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = now
	meta.Points = tr.Len()
	meta.Shocks = len(tr.Shocks)
	meta.Metrics = finiteMetrics(tr.Metrics)
	meta.Status = StatusComplete
	if runErr != nil {
		meta.Status = StatusFailed
		meta.Error = runErr.Error()
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, statesFile), tr); err != nil {
		return "", err
	}
	if err := writeShocks(filepath.Join(runDir, shocksFile), tr.Shocks); err != nil {
		return "", err
	}
	if err := s.catalog.Record(ctx, meta); err != nil {
		return "", err
	}

	return runID, nil
}

func (s *Store) makeRunDir(name string, now time.Time) (string, string, error) {
	if name == "" {
		name = "run"
	}
	base := fmt.Sprintf("%s_%s", name, now.UTC().Format("20060102T150405"))
	for i := 0; ; i++ {
		runID := base
		if i > 0 {
			runID = fmt.Sprintf("%s-%d", base, i)
		}
		dir := filepath.Join(s.baseDir, runID)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, runID, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", err
		}
	}
}

func (s *Store) List(ctx context.Context) ([]RunMetadata, error) {
	if s.catalog == nil {
		return nil, errors.New("storage: store not initialized")
	}
	return s.catalog.List(ctx)
}

func (s *Store) Load(ctx context.Context, runID string) (*RunMetadata, error) {
	if s.catalog == nil {
		return nil, errors.New("storage: store not initialized")
	}
	return s.catalog.Get(ctx, runID)
}

// Delete removes a run's directory and its catalog entry.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if _, err := s.Load(ctx, runID); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.baseDir, runID)); err != nil {
		return err
	}
	return s.catalog.Delete(ctx, runID)
}

// LoadTrajectory rebuilds a saved run's points and shocks. Segment
// bookkeeping is not persisted.
func (s *Store) LoadTrajectory(ctx context.Context, runID string) (*sim.Trajectory, *RunMetadata, error) {
	meta, err := s.Load(ctx, runID)
	if err != nil {
		return nil, nil, err
	}

	runDir := filepath.Join(s.baseDir, runID)
	times, states, err := readStates(filepath.Join(runDir, statesFile))
	if err != nil {
		return nil, nil, err
	}
	shocks, err := readShocks(filepath.Join(runDir, shocksFile))
	if err != nil {
		return nil, nil, err
	}

	tr := &sim.Trajectory{
		DaysPerYear: meta.DaysPerYear,
		Times:       times,
		States:      states,
		Shocks:      shocks,
		Metrics:     meta.Metrics,
	}
	return tr, meta, nil
}

func finiteMetrics(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteStatesCSV writes the time and state columns of tr to w.
func WriteStatesCSV(w io.Writer, tr *sim.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(statesHeader); err != nil {
		return err
	}
	row := make([]string, len(statesHeader))
	for i, x := range tr.States {
		row[0] = formatFloat(tr.Times[i])
		for j, v := range x {
			row[j+1] = formatFloat(v)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeStates(path string, tr *sim.Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteStatesCSV(f, tr)
}

func writeShocks(path string, shocks []sim.ShockEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(shocksHeader); err != nil {
		return err
	}
	for _, sh := range shocks {
		row := []string{
			strconv.Itoa(sh.Year),
			formatFloat(sh.Time),
			strconv.Itoa(sh.Index),
			formatFloat(sh.R),
			formatFloat(sh.P),
			formatFloat(sh.C),
			formatFloat(sh.LossR),
			formatFloat(sh.LossP),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readCSV(path string, width int) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = width

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header", path)
	}
	return records[1:], nil
}

func readStates(path string) ([]float64, []dynamo.State, error) {
	records, err := readCSV(path, len(statesHeader))
	if err != nil {
		return nil, nil, err
	}

	times := make([]float64, 0, len(records))
	states := make([]dynamo.State, 0, len(records))
	for i, record := range records {
		vals, err := parseFloats(record)
		if err != nil {
			return nil, nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		times = append(times, vals[0])
		states = append(states, dynamo.State(vals[1:]))
	}
	return times, states, nil
}

func readShocks(path string) ([]sim.ShockEvent, error) {
	records, err := readCSV(path, len(shocksHeader))
	if err != nil {
		return nil, err
	}

	shocks := make([]sim.ShockEvent, 0, len(records))
	for i, record := range records {
		vals, err := parseFloats(record)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		shocks = append(shocks, sim.ShockEvent{
			Year:  int(vals[0]),
			Time:  vals[1],
			Index: int(vals[2]),
			R:     vals[3],
			P:     vals[4],
			C:     vals[5],
			LossR: vals[6],
			LossP: vals[7],
		})
	}
	return shocks, nil
}

func parseFloats(record []string) ([]float64, error) {
	out := make([]float64, len(record))
	for i, s := range record {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
