package testutil

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arcplan/internal/model"
	"github.com/roach88/arcplan/internal/solver"
)

func TestFakeSolver_WritesOutputAndSolves(t *testing.T) {
	p := model.New()
	x := p.AddVars("x", 2, model.Continuous, 0, model.Inf)
	p.AddCost("sum", model.Expr(model.Term{Var: x.At(0), Coef: 1}, model.Term{Var: x.At(1), Coef: 2}))

	f := &FakeSolver{
		SolverName: solver.NameHiGHS,
		Status:     solver.StatusOptimal,
		Output:     []string{"  1  1.0e+00  2.0e+00  3.0e-01  1.0e-03  1.0e-03"},
		Solution:   func(p *model.Problem) []float64 { return []float64{1, 1} },
	}
	var sink bytes.Buffer
	res, err := f.Solve(context.Background(), solver.Request{Problem: p, Sink: &sink})
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 1}, res.Solution)
	assert.Equal(t, 3.0, res.Objective)
	assert.Equal(t, "  1  1.0e+00  2.0e+00  3.0e-01  1.0e-03  1.0e-03\n", sink.String())
	assert.Equal(t, 1, f.Calls())
}

func TestFakeSolver_NonOptimalHasNoSolution(t *testing.T) {
	f := &FakeSolver{SolverName: solver.NameMOSEK, Status: solver.StatusInfeasible}
	res, err := f.Solve(context.Background(), solver.Request{Problem: model.New()})
	require.NoError(t, err)
	assert.Nil(t, res.Solution)
}

func TestFakeSolver_Error(t *testing.T) {
	f := &FakeSolver{SolverName: solver.NameMOSEK, Err: errors.New("license expired")}
	_, err := f.Solve(context.Background(), solver.Request{Problem: model.New()})
	assert.EqualError(t, err, "license expired")
}
