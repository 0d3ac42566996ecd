package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/arcplan/internal/model"
	"github.com/roach88/arcplan/internal/solver"
)

// FakeSolver is a scripted solver.Solver. It writes Output to the request
// sink, then returns Err or a result with Status.
//
// Thread-safety: Calls is safe to read while solves run.
type FakeSolver struct {
	SolverName string
	IsLicensed bool
	Status     string
	Err        error
	// Output lines are written to the sink, one per line.
	Output []string
	// Solution fills the solution vector; nil yields all zeros.
	Solution func(p *model.Problem) []float64
	Duration time.Duration

	mu       sync.Mutex
	requests []solver.Request
}

func (f *FakeSolver) Name() string   { return f.SolverName }
func (f *FakeSolver) Licensed() bool { return f.IsLicensed }

func (f *FakeSolver) Solve(_ context.Context, req solver.Request) (*solver.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if req.Sink != nil {
		for _, line := range f.Output {
			fmt.Fprintln(req.Sink, line)
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	res := &solver.Result{Status: f.Status, Duration: f.Duration}
	if solver.Succeeded(f.Status) {
		if f.Solution != nil {
			res.Solution = f.Solution(req.Problem)
		} else {
			res.Solution = make([]float64, req.Problem.NumVars())
		}
		res.Objective = req.Problem.Objective(res.Solution)
	}
	return res, nil
}

// Calls returns the number of solves seen.
func (f *FakeSolver) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns a copy of the requests seen.
func (f *FakeSolver) Requests() []solver.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]solver.Request(nil), f.requests...)
}
