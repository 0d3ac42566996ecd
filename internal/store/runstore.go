package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/arcplan/internal/config"
	"github.com/roach88/arcplan/internal/evaluate"
	"github.com/roach88/arcplan/internal/ident"
	"github.com/roach88/arcplan/internal/leafseq"
	"github.com/roach88/arcplan/internal/objective"
	"github.com/roach88/arcplan/internal/progress"
	"github.com/roach88/arcplan/internal/solver"
)

// Document keys.
const (
	KeyConfig      = "config.json"
	KeyStatus      = "logs.json"
	KeyLog         = "run.log"
	KeyProgress    = "progress.jsonl"
	KeyTrace       = "solver_trace.json"
	KeyDVH         = "dvh.json"
	KeyMetrics     = "metrics.json"
	KeyClinical    = "clinical_criteria.json"
	KeyPlan        = "plan.json"
	KeySolution    = "solution.json"
	KeyDose        = "dose.npz"
	DefaultMaxTail = 200
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var transitions = map[Status][]Status{
	StatusQueued:  {StatusStarted, StatusFailed},
	StatusStarted: {StatusCompleted, StatusFailed},
}

func allowed(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	// ErrInvalidTransition is returned for status moves that go backward or
	// leave a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrRunExists is returned by Create when the run id is already stored.
	ErrRunExists = errors.New("run already exists")
)

// StatusDoc is the content of logs.json.
type StatusDoc struct {
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// Plan summarizes what was optimized.
type Plan struct {
	PatientID      string            `json:"patient_id"`
	BeamIDs        []int             `json:"beam_ids"`
	PrescriptionGy float64           `json:"prescription_gy"`
	NumFractions   int               `json:"num_fractions"`
	Protocol       string            `json:"protocol"`
	Objectives     *objective.Report `json:"objectives,omitempty"`
	Deliverability *leafseq.Stats    `json:"deliverability,omitempty"`
}

// Solution is the solved delivery.
type Solution struct {
	OptimalIntensity []float64          `json:"optimal_intensity"`
	MU               []float64          `json:"MU"`
	LeftLeafPos      []int              `json:"left_leaf_pos"`
	RightLeafPos     []int              `json:"right_leaf_pos"`
	Beams            []leafseq.BeamPlan `json:"beams"`
}

// NewSolution flattens per-beam plans into the stored form.
func NewSolution(x []float64, beams []leafseq.BeamPlan) *Solution {
	s := &Solution{OptimalIntensity: x, MU: []float64{}, LeftLeafPos: []int{}, RightLeafPos: []int{}, Beams: beams}
	for _, b := range beams {
		s.MU = append(s.MU, b.MU)
		for _, lp := range b.Leaves {
			s.LeftLeafPos = append(s.LeftLeafPos, lp.Left)
			s.RightLeafPos = append(s.RightLeafPos, lp.Right)
		}
	}
	return s
}

// Result is everything a finished run writes. Nil fields are not written.
// A non-empty Error marks the run failed.
type Result struct {
	Trace    *solver.Trace
	DVH      map[string]evaluate.Curve
	Metrics  evaluate.Metrics
	Clinical []evaluate.Row
	Plan     *Plan
	Solution *Solution
	Dose     []float64
	Error    string
}

// RunRecord is the stored state of a run. Fields missing from storage are
// left zero, so a record of a running or failed run is valid.
type RunRecord struct {
	ID       string                    `json:"run_id"`
	Config   *config.RunConfig         `json:"config,omitempty"`
	Status   StatusDoc                 `json:"status"`
	Logs     []string                  `json:"logs"`
	Progress []progress.Sample         `json:"progress"`
	Trace    *solver.Trace             `json:"solver_trace,omitempty"`
	DVH      map[string]evaluate.Curve `json:"dvh,omitempty"`
	Metrics  evaluate.Metrics          `json:"metrics,omitempty"`
	Clinical []evaluate.Row            `json:"clinical_criteria,omitempty"`
	Plan     *Plan                     `json:"plan,omitempty"`
	Solution *Solution                 `json:"solution,omitempty"`
	Dose     []float64                 `json:"-"`
}

// Summary is one entry of List.
type Summary struct {
	ID string `json:"run_id"`
	StatusDoc
}

// RunStore reads and writes runs on a Backend.
type RunStore struct {
	backend Backend
	now     func() time.Time

	// mu serializes status read-modify-write.
	mu sync.Mutex
}

// Option configures a RunStore.
type Option func(*RunStore)

// WithClock sets the time source for run ids and status timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *RunStore) { s.now = now }
}

// New returns a store over b.
func New(b Backend, opts ...Option) *RunStore {
	s := &RunStore{backend: b, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the backend.
func (s *RunStore) Close() error {
	return s.backend.Close()
}

// Create stores cfg as a new queued run. If the derived id already exists,
// the id is returned with ErrRunExists and nothing is written.
func (s *RunStore) Create(ctx context.Context, cfg config.RunConfig) (string, error) {
	id, err := ident.RunID(s.now(), cfg)
	if err != nil {
		return "", fmt.Errorf("derive run id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.backend.Exists(ctx, id)
	if err != nil {
		return "", err
	}
	if ok {
		return id, ErrRunExists
	}
	if err := s.putJSON(ctx, id, KeyConfig, cfg); err != nil {
		return "", err
	}
	if err := s.putStatus(ctx, id, StatusQueued, ""); err != nil {
		return "", err
	}
	slog.Info("run created", "run_id", id, "patient_id", cfg.PatientID)
	return id, nil
}

// MarkStarted moves a queued run to started.
func (s *RunStore) MarkStarted(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusStarted, "")
}

// Fail marks the run failed with msg.
func (s *RunStore) Fail(ctx context.Context, id, msg string) error {
	return s.transition(ctx, id, StatusFailed, msg)
}

// AppendLog adds one captured output line.
func (s *RunStore) AppendLog(ctx context.Context, id, line string) error {
	return s.backend.Append(ctx, id, KeyLog, []byte(line))
}

// AppendProgress adds one progress sample.
func (s *RunStore) AppendProgress(ctx context.Context, id string, sample progress.Sample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}
	return s.backend.Append(ctx, id, KeyProgress, data)
}

// Save writes the result documents and then the terminal status.
func (s *RunStore) Save(ctx context.Context, id string, res *Result) error {
	docs := []struct {
		key string
		v   any
		set bool
	}{
		{KeyTrace, res.Trace, res.Trace != nil},
		{KeyDVH, res.DVH, res.DVH != nil},
		{KeyMetrics, res.Metrics, res.Metrics != nil},
		{KeyClinical, res.Clinical, res.Clinical != nil},
		{KeyPlan, res.Plan, res.Plan != nil},
		{KeySolution, res.Solution, res.Solution != nil},
	}
	for _, d := range docs {
		if !d.set {
			continue
		}
		if err := s.putJSON(ctx, id, d.key, d.v); err != nil {
			return err
		}
	}
	if res.Dose != nil {
		var buf bytes.Buffer
		if err := EncodeNPZ(&buf, map[string][]float64{DoseKey: res.Dose}, DoseKey); err != nil {
			return err
		}
		if err := s.backend.Put(ctx, id, KeyDose, buf.Bytes()); err != nil {
			return fmt.Errorf("save dose: %w", err)
		}
	}

	if res.Error != "" {
		return s.transition(ctx, id, StatusFailed, res.Error)
	}
	return s.transition(ctx, id, StatusCompleted, "")
}

// Status reads logs.json.
func (s *RunStore) Status(ctx context.Context, id string) (StatusDoc, error) {
	var doc StatusDoc
	if err := s.getJSON(ctx, id, KeyStatus, &doc); err != nil {
		return StatusDoc{}, err
	}
	return doc, nil
}

// Logs returns the last max output lines.
func (s *RunStore) Logs(ctx context.Context, id string, max int) ([]string, error) {
	lines, err := s.backend.Lines(ctx, id, KeyLog, max)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l)
	}
	return out, nil
}

// Progress returns the last max samples. Undecodable lines are skipped.
func (s *RunStore) Progress(ctx context.Context, id string, max int) ([]progress.Sample, error) {
	lines, err := s.backend.Lines(ctx, id, KeyProgress, max)
	if err != nil {
		return nil, err
	}
	out := make([]progress.Sample, 0, len(lines))
	for _, l := range lines {
		var sample progress.Sample
		if err := json.Unmarshal(l, &sample); err != nil {
			slog.Warn("skipping progress line", "run_id", id, "error", err)
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

// Load reads everything stored for a run, including partial state.
func (s *RunStore) Load(ctx context.Context, id string) (*RunRecord, error) {
	ok, err := s.backend.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}

	rec := &RunRecord{ID: id}
	if rec.Status, err = s.Status(ctx, id); err != nil {
		return nil, err
	}
	optional := []struct {
		key string
		v   any
	}{
		{KeyConfig, &rec.Config},
		{KeyTrace, &rec.Trace},
		{KeyDVH, &rec.DVH},
		{KeyMetrics, &rec.Metrics},
		{KeyClinical, &rec.Clinical},
		{KeyPlan, &rec.Plan},
		{KeySolution, &rec.Solution},
	}
	for _, o := range optional {
		if err := s.getJSON(ctx, id, o.key, o.v); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if rec.Logs, err = s.Logs(ctx, id, DefaultMaxTail); err != nil {
		return nil, err
	}
	if rec.Progress, err = s.Progress(ctx, id, DefaultMaxTail); err != nil {
		return nil, err
	}

	data, err := s.backend.Get(ctx, id, KeyDose)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, err
	default:
		if rec.Dose, err = DecodeNPZ(data, DoseKey); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// List returns every run with its status.
func (s *RunStore) List(ctx context.Context) ([]Summary, error) {
	ids, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Status(ctx, id)
		if err != nil {
			slog.Debug("run without status", "run_id", id, "error", err)
			continue
		}
		out = append(out, Summary{ID: id, StatusDoc: doc})
	}
	return out, nil
}

func (s *RunStore) transition(ctx context.Context, id string, to Status, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.Status(ctx, id)
	if err != nil {
		return err
	}
	if !allowed(cur.Status, to) {
		return fmt.Errorf("%w: %s -> %s (run %s)", ErrInvalidTransition, cur.Status, to, id)
	}
	if err := s.putStatus(ctx, id, to, msg); err != nil {
		return err
	}
	slog.Info("run status", "run_id", id, "status", to)
	return nil
}

func (s *RunStore) putStatus(ctx context.Context, id string, st Status, msg string) error {
	return s.putJSON(ctx, id, KeyStatus, StatusDoc{
		Status:    st,
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		Error:     msg,
	})
}

func (s *RunStore) putJSON(ctx context.Context, id, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.backend.Put(ctx, id, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *RunStore) getJSON(ctx context.Context, id, key string, v any) error {
	data, err := s.backend.Get(ctx, id, key)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("run %s %s: %w", id, key, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
