package solver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/roach88/arcplan/internal/model"
)

// ProblemFile is the LP file name written into the scratch directory.
const ProblemFile = "problem.lp"

// backend adapts one solver's command line and solution format.
type backend interface {
	// prepare writes any auxiliary files and returns the arguments.
	prepare(dir, lpPath string, req Request) ([]string, error)
	// solutionPath returns the solution file the run is expected to produce.
	solutionPath(dir, lpPath string) string
	// parse reads a solution file into a status and a name→value map.
	parse(r io.Reader) (status string, values map[string]float64, err error)
}

// CommandSolver runs a solver binary as a subprocess.
type CommandSolver struct {
	name     string
	licensed bool
	binary   string
	backend  backend
}

// Name implements Solver.
func (s *CommandSolver) Name() string { return s.name }

// Licensed implements Solver.
func (s *CommandSolver) Licensed() bool { return s.licensed }

// Binary returns the executable this solver runs.
func (s *CommandSolver) Binary() string { return s.binary }

// Solve implements Solver.
func (s *CommandSolver) Solve(ctx context.Context, req Request) (*Result, error) {
	bin, err := exec.LookPath(s.binary)
	if err != nil {
		return nil, &Error{Code: ErrCodeUnavailable, Message: "solver binary not found", Solver: s.name, Err: err}
	}
	if req.WorkDir == "" {
		return nil, fmt.Errorf("solver %s: no scratch directory", s.name)
	}

	lpPath := filepath.Join(req.WorkDir, ProblemFile)
	if err := writeLP(lpPath, req.Problem); err != nil {
		return nil, err
	}
	args, err := s.backend.prepare(req.WorkDir, lpPath, req)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = req.WorkDir
	if req.Sink != nil {
		cmd.Stdout = req.Sink
		cmd.Stderr = req.Sink
	}
	slog.Debug("solver exec", "solver", s.name, "binary", bin, "args", args)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	f, err := os.Open(s.backend.solutionPath(req.WorkDir, lpPath))
	if err != nil {
		cause := runErr
		if cause == nil {
			cause = err
		}
		return nil, &Error{Code: ErrCodeSolveFailed, Message: "no solution file", Solver: s.name, Err: cause}
	}
	defer f.Close()

	status, values, err := s.backend.parse(f)
	if err != nil {
		return nil, &Error{Code: ErrCodeSolveFailed, Message: "parse solution file", Solver: s.name, Err: err}
	}
	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return nil, &Error{Code: ErrCodeSolveFailed, Message: "run solver", Solver: s.name, Err: runErr}
	}

	res := &Result{Status: status, Duration: elapsed}
	if Succeeded(status) {
		res.Solution = solutionVector(req.Problem, values)
		res.Objective = req.Problem.Objective(res.Solution)
	}
	return res, nil
}

func writeLP(path string, p *model.Problem) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create LP file: %w", err)
	}
	if err := p.WriteLP(f); err != nil {
		f.Close()
		return fmt.Errorf("write LP file: %w", err)
	}
	return f.Close()
}

// solutionVector orders named values by variable index. Variables the
// solver did not report are zero.
func solutionVector(p *model.Problem, values map[string]float64) []float64 {
	sol := make([]float64, p.NumVars())
	for i := range sol {
		sol[i] = values[p.VarName(model.Var(i))]
	}
	return sol
}
