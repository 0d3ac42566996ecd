package solver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/arcplan/internal/model"
)

// Attempt records the outcome of one planned step.
type Attempt struct {
	ID             string  `json:"attempt_id"`
	Tier           string  `json:"tier"`
	Solver         string  `json:"solver"`
	ParamsStripped bool    `json:"params_stripped"`
	Status         string  `json:"status,omitempty"`
	Error          string  `json:"error,omitempty"`
	Seconds        float64 `json:"seconds"`
}

// Trace is the persisted record of a solve. SolveSeconds is the sum over
// all attempts, failed ones included.
type Trace struct {
	Solver       string    `json:"solver"`
	Status       string    `json:"status"`
	Objective    *float64  `json:"objective_value"`
	SolveSeconds float64   `json:"solve_seconds"`
	Warning      string    `json:"warning,omitempty"`
	Attempts     []Attempt `json:"attempts"`
}

// Outcome is what Run returns: the trace always, the result when some
// attempt produced one.
type Outcome struct {
	Trace  Trace
	Result *Result
}

// Succeeded reports whether the outcome carries a usable solution.
func (o *Outcome) Succeeded() bool {
	return o.Result != nil && Succeeded(o.Result.Status) && o.Result.Solution != nil
}

// Orchestrator runs planned attempts.
type Orchestrator struct {
	Solvers Registry
	// ScratchDir is the parent of per-attempt scratch directories; empty
	// means the OS temp dir.
	ScratchDir string
	// KeepScratch leaves attempt directories in place after the solve.
	KeepScratch bool
	IDs         IDGenerator
}

// NewOrchestrator returns an orchestrator over reg with UUIDv7 attempt ids.
func NewOrchestrator(reg Registry, scratchDir string) *Orchestrator {
	return &Orchestrator{Solvers: reg, ScratchDir: scratchDir, IDs: UUIDv7Generator{}}
}

// Run walks steps in order. An attempt that returns an error is recorded as
// a warning and the next step runs; the first attempt that returns a result
// ends the walk, whatever its status. If every attempt errors, Run returns
// the trace together with an *Error.
func (o *Orchestrator) Run(ctx context.Context, p *model.Problem, steps []Step, sink io.Writer) (*Outcome, error) {
	out := &Outcome{}
	var warnings []string
	var lastErr error

	for i, step := range steps {
		att := Attempt{
			ID:             o.IDs.Generate(),
			Tier:           step.Tier,
			Solver:         step.Solver,
			ParamsStripped: step.Tier == TierStripped,
		}
		if sink != nil {
			fmt.Fprintf(sink, "[arcplan] attempt %d/%d: solver=%s tier=%s\n", i+1, len(steps), step.Solver, step.Tier)
		}
		slog.Info("solver attempt", "attempt_id", att.ID, "solver", step.Solver, "tier", step.Tier)

		start := time.Now()
		res, err := o.attempt(ctx, p, step, att.ID, sink)
		att.Seconds = time.Since(start).Seconds()

		if err != nil {
			att.Error = err.Error()
			out.Trace.Attempts = append(out.Trace.Attempts, att)
			out.Trace.SolveSeconds += att.Seconds
			warnings = append(warnings, fmt.Sprintf("%s (%s) failed: %v", step.Solver, step.Tier, err))
			slog.Warn("solver attempt failed", "attempt_id", att.ID, "solver", step.Solver, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if res.Duration > 0 {
			att.Seconds = res.Duration.Seconds()
		}
		att.Status = res.Status
		out.Trace.Attempts = append(out.Trace.Attempts, att)
		out.Trace.SolveSeconds += att.Seconds
		out.Result = res
		out.Trace.Solver = step.Solver
		out.Trace.Status = res.Status
		if Succeeded(res.Status) && res.Solution != nil {
			obj := res.Objective
			out.Trace.Objective = &obj
		}
		out.Trace.Warning = strings.Join(warnings, "; ")
		slog.Info("solver finished", "solver", step.Solver, "status", res.Status, "seconds", out.Trace.SolveSeconds)
		return out, nil
	}

	out.Trace.Warning = strings.Join(warnings, "; ")
	out.Trace.Status = StatusError
	if len(steps) > 0 {
		out.Trace.Solver = steps[len(steps)-1].Solver
	}
	return out, &Error{
		Code:     ErrCodeAllAttemptsFailed,
		Message:  fmt.Sprintf("all %d solver attempts failed", len(steps)),
		Attempts: out.Trace.Attempts,
		Err:      lastErr,
	}
}

func (o *Orchestrator) attempt(ctx context.Context, p *model.Problem, step Step, id string, sink io.Writer) (*Result, error) {
	s, ok := o.Solvers[step.Solver]
	if !ok {
		return nil, &Error{Code: ErrCodeUnknownSolver, Message: "solver not registered", Solver: step.Solver}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parent := o.ScratchDir
	if parent == "" {
		parent = os.TempDir()
	}
	dir := filepath.Join(parent, "attempt-"+id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	if !o.KeepScratch {
		defer os.RemoveAll(dir)
	}

	return s.Solve(ctx, Request{
		Problem: p,
		Params:  step.Params,
		Verbose: step.Verbose,
		Sink:    sink,
		WorkDir: dir,
	})
}
