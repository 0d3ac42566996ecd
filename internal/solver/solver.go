// Package solver runs a model.Problem through an external MIP solver with
// tiered fallback.
//
// Each Solver renders the problem to an LP file in a scratch directory, runs
// the solver binary with its output attached to a caller-provided sink, and
// parses the solution file. The Orchestrator walks an ordered list of
// attempts (see Plan) and records every attempt uniformly in a Trace.
package solver

import (
	"context"
	"io"
	"time"

	"github.com/roach88/arcplan/internal/model"
)

// Solver names.
const (
	NameMOSEK = "MOSEK"
	NameHiGHS = "HIGHS"
)

// Terminal statuses.
const (
	StatusOptimal           = "optimal"
	StatusOptimalInaccurate = "optimal_inaccurate"
	StatusInfeasible        = "infeasible"
	StatusUnbounded         = "unbounded"
	StatusTimeLimit         = "time_limit"
	StatusUnknown           = "unknown"
	// StatusError marks a trace where no attempt produced a result.
	StatusError = "error"
)

// Succeeded reports whether status carries a usable solution.
func Succeeded(status string) bool {
	return status == StatusOptimal || status == StatusOptimalInaccurate
}

// Request is one solve.
type Request struct {
	Problem *model.Problem
	// Params are solver-specific options; nil means solver defaults.
	Params  map[string]any
	Verbose bool
	// Sink receives the solver's stdout and stderr. When it is an *os.File
	// the subprocess writes to it directly.
	Sink io.Writer
	// WorkDir is an existing scratch directory owned by this solve.
	WorkDir string
}

// Result is a solver's answer. Solution is nil when the status carries no
// solution.
type Result struct {
	Status    string
	Objective float64
	Solution  []float64
	Duration  time.Duration
}

// Solver solves problems.
type Solver interface {
	Name() string
	// Licensed reports whether the solver is a commercial solver whose
	// installed license or version may reject parameters.
	Licensed() bool
	Solve(ctx context.Context, req Request) (*Result, error)
}

// Registry maps solver names to solvers.
type Registry map[string]Solver

// DefaultRegistry returns the command-line MOSEK and HiGHS solvers.
func DefaultRegistry() Registry {
	return Registry{
		NameMOSEK: NewMOSEK(""),
		NameHiGHS: NewHiGHS(""),
	}
}

// Register adds s under its name.
func (r Registry) Register(s Solver) {
	r[s.Name()] = s
}
