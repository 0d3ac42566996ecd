package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arcplan/internal/config"
)

func TestPlanLicensedPrimary(t *testing.T) {
	params := map[string]any{"MSK_DPAR_MIO_MAX_TIME": 300.0}
	steps := Plan(DefaultRegistry(), NameMOSEK, params, false, NameHiGHS)

	require.Len(t, steps, 3)
	assert.Equal(t, Step{Tier: TierPrimary, Solver: NameMOSEK, Params: params, Verbose: false}, steps[0])
	assert.Equal(t, Step{Tier: TierStripped, Solver: NameMOSEK, Verbose: false}, steps[1])
	assert.Equal(t, Step{Tier: TierFallback, Solver: NameHiGHS, Verbose: true}, steps[2])
}

func TestPlanOpenSourcePrimary(t *testing.T) {
	params := map[string]any{"time_limit": 10.0}
	steps := Plan(DefaultRegistry(), NameHiGHS, params, false, NameHiGHS)

	require.Len(t, steps, 2, "no param-stripped tier, but a params-free verbose retry")
	assert.Equal(t, Step{Tier: TierPrimary, Solver: NameHiGHS, Params: params, Verbose: false}, steps[0])
	assert.Equal(t, Step{Tier: TierFallback, Solver: NameHiGHS, Verbose: true}, steps[1])
}

func TestPlanOpenSourcePrimaryUnderDefaultConfig(t *testing.T) {
	cfg, err := config.Resolve(map[string]any{"solver": NameHiGHS, "solver_params": map[string]any{}})
	require.NoError(t, err)

	steps := Plan(DefaultRegistry(), cfg.Solver, cfg.PrimaryParams(), cfg.SolverVerbose, cfg.FallbackSolver)
	require.NotEmpty(t, steps)
	for _, st := range steps {
		for k := range st.Params {
			assert.NotContains(t, k, "MSK_", "step %s got a MOSEK parameter", st.Tier)
		}
	}
	assert.Nil(t, steps[0].Params)
}

func TestPlanSkipsRedundantSelfFallback(t *testing.T) {
	steps := Plan(DefaultRegistry(), NameHiGHS, nil, true, NameHiGHS)
	require.Len(t, steps, 1)
	assert.Equal(t, TierPrimary, steps[0].Tier)
}

func TestPlanUnknownPrimary(t *testing.T) {
	steps := Plan(DefaultRegistry(), "GUROBI", nil, true, NameHiGHS)
	require.Len(t, steps, 2)
	assert.Equal(t, "GUROBI", steps[0].Solver)
	assert.Equal(t, TierFallback, steps[1].Tier)
}

func TestPlanNoFallback(t *testing.T) {
	steps := Plan(DefaultRegistry(), NameMOSEK, nil, true, "")
	require.Len(t, steps, 2)
}
