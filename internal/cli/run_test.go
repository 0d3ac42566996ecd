package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arcplan/internal/model"
	"github.com/roach88/arcplan/internal/solver"
	"github.com/roach88/arcplan/internal/store"
	"github.com/roach88/arcplan/internal/testutil"
)

func unitIntensity(p *model.Problem) []float64 {
	sol := make([]float64, p.NumVars())
	x, _ := p.Block("x")
	for i := 0; i < x.Len; i++ {
		sol[x.At(i)] = 1
	}
	return sol
}

func fakeRegistry(status string) solver.Registry {
	reg := solver.Registry{}
	reg.Register(&testutil.FakeSolver{
		SolverName: solver.NameMOSEK,
		IsLicensed: true,
		Status:     status,
		Output:     []string{"  1  1.0e+00  2.0e+00  3.0e-01  1.0e-03  1.0e-03"},
		Solution:   unitIntensity,
	})
	return reg
}

// runCLI runs a plan and returns the JSON record it printed.
func runCLI(t *testing.T, root *RootOptions, status string, extra ...string) (store.RunRecord, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newRunCommand(&RunOptions{RootOptions: root, Solvers: fakeRegistry(status)})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", "testdata/run.yaml", "--scratch-dir", t.TempDir()}, extra...))
	runErr := cmd.Execute()

	var resp struct {
		Status string          `json:"status"`
		Data   store.RunRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp), buf.String())
	return resp.Data, runErr
}

func TestRunCommand_Completed(t *testing.T) {
	for _, backend := range ValidBackends {
		t.Run(backend, func(t *testing.T) {
			root := &RootOptions{Format: "json", Store: t.TempDir(), Backend: backend}
			rec, err := runCLI(t, root, solver.StatusOptimal)
			require.NoError(t, err)

			assert.Equal(t, store.StatusCompleted, rec.Status.Status)
			assert.Equal(t, 7.5, rec.Metrics["PTV"]["D95"])
			require.NotNil(t, rec.Trace)
			assert.Equal(t, solver.NameMOSEK, rec.Trace.Solver)
		})
	}
}

func TestRunCommand_Infeasible(t *testing.T) {
	root := &RootOptions{Format: "json", Store: t.TempDir(), Backend: BackendFS}
	rec, err := runCLI(t, root, solver.StatusInfeasible)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, store.StatusFailed, rec.Status.Status)
	assert.Nil(t, rec.Metrics)
}

func TestRunCommand_InvalidOverride(t *testing.T) {
	root := &RootOptions{Format: "json", Store: t.TempDir(), Backend: BackendFS}
	cmd := newRunCommand(&RunOptions{RootOptions: root, Solvers: fakeRegistry(solver.StatusOptimal)})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", "testdata/run.yaml", "--set", "dvh_bins=1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "CONFIG", ErrorCode(err))
}

func TestInspectCommands(t *testing.T) {
	root := &RootOptions{Format: "json", Store: t.TempDir(), Backend: BackendSQLite}
	rec, err := runCLI(t, root, solver.StatusOptimal)
	require.NoError(t, err)
	id := rec.ID

	exec := func(args ...string) (string, error) {
		cmd := NewRootCommand()
		buf := &bytes.Buffer{}
		cmd.SetOut(buf)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append([]string{"--format", "json", "--store", root.Store, "--backend", BackendSQLite}, args...))
		err := cmd.Execute()
		return buf.String(), err
	}

	out, err := exec("status", id)
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "completed"`)

	out, err = exec("logs", id, "--tail", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "[arcplan] attempt 1/3: solver=MOSEK tier=primary")

	out, err = exec("progress", id)
	require.NoError(t, err)
	assert.Contains(t, out, `"iter": 1`)

	out, err = exec("list")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = exec("show", id)
	require.NoError(t, err)
	assert.Contains(t, out, `"clinical_criteria"`)

	_, err = exec("status", "20000101T000000-000000000000")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigCommand(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--format", "json", "config", "--set", "patient_id=Lung_Patient_9", "--set", "beam_ids=[0,24]"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "Lung_Patient_9", resp.Data["patient_id"])
	assert.Equal(t, []any{0.0, 24.0}, resp.Data["beam_ids"])
}

func TestObjectivesCommand(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"objectives", "--config", "testdata/run.yaml"})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "quadratic-overdose")
	assert.Contains(t, out, "smoothness-quadratic")
	assert.Contains(t, out, "target")
}
