package leafseq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arcplan/internal/dataset"
	"github.com/roach88/arcplan/internal/model"
)

const nb = dataset.NoBeamlet

func beams() []dataset.Beam {
	return []dataset.Beam{
		{ID: 0, BEV: [][]int{{0, 1, nb}, {nb, nb, nb}, {nb, 2, nb}}},
		{ID: 11, BEV: [][]int{{3, 4}}},
	}
}

func build(t *testing.T) (*model.Problem, *Vars, Stats) {
	t.Helper()
	p := model.New()
	x := p.AddVars("x", 5, model.Continuous, 0, model.Inf)
	v, st, err := Build(p, x, beams(), 2)
	require.NoError(t, err)
	return p, v, st
}

func TestBuildCounts(t *testing.T) {
	p, v, st := build(t)

	// R in-grid rows, K in-grid beamlets.
	assert.Equal(t, 3, st.Rows)
	assert.Equal(t, 5, st.Apertures)
	assert.Equal(t, 3, st.WidthConstraints)
	assert.Equal(t, 3, v.Left.Len)
	assert.Equal(t, 3, v.Right.Len)
	assert.Equal(t, 5, v.Z.Len)
	assert.Equal(t, model.Binary, v.Z.Kind)
	assert.Equal(t, model.Integer, v.Left.Kind)
	assert.Equal(t, 2, v.MU.Len)

	// 2 per beamlet + width per row + range per row + 3 per beamlet + cap per beam
	assert.Equal(t, 2*5+3+3+3*5+2, st.Constraints)
	assert.Equal(t, st.Constraints, p.NumConstraints())

	assert.Equal(t, []BeamInfo{
		{ID: 0, NumCols: 3, FirstRow: 0, NumRows: 2},
		{ID: 11, NumCols: 2, FirstRow: 2, NumRows: 1},
	}, v.Beams)
}

func TestEmptyRowsDropped(t *testing.T) {
	_, v, _ := build(t)
	leaves := make([]int, 0, len(v.Rows))
	for _, r := range v.Rows {
		leaves = append(leaves, r.Leaf)
	}
	assert.Equal(t, []int{0, 2, 0}, leaves)
}

// feasible is a hand-built deliverable plan for beams():
// beam 0 opens columns 0-1 of leaf 0 at 1.5 MU, beam 11 opens column 0 at 2 MU.
func feasible() []float64 {
	sol := make([]float64, 18)
	copy(sol[0:5], []float64{1.5, 1.5, 0, 2, 0}) // x
	copy(sol[5:8], []float64{0, 0, 0})           // left
	copy(sol[8:11], []float64{3, 1, 2})          // right
	copy(sol[11:16], []float64{1, 1, 0, 1, 0})   // z
	copy(sol[16:18], []float64{1.5, 2})          // mu
	return sol
}

func violated(p *model.Problem, sol []float64) []string {
	var out []string
	for _, c := range p.Constraints() {
		lhs := c.Expr.Eval(sol)
		ok := true
		switch c.Sense {
		case model.LE:
			ok = lhs <= c.RHS+1e-9
		case model.GE:
			ok = lhs >= c.RHS-1e-9
		case model.EQ:
			ok = lhs > c.RHS-1e-9 && lhs < c.RHS+1e-9
		}
		if !ok {
			out = append(out, c.Name)
		}
	}
	return out
}

func TestDeliverablePlanSatisfiesConstraints(t *testing.T) {
	p, _, _ := build(t)
	assert.Empty(t, violated(p, feasible()))
}

func TestIntensityMustEqualBeamMU(t *testing.T) {
	p, _, _ := build(t)
	sol := feasible()
	sol[0] = 1.0
	assert.Contains(t, violated(p, sol), "open_floor")
}

func TestClosedBeamletCarriesNoIntensity(t *testing.T) {
	p, _, _ := build(t)
	sol := feasible()
	sol[4] = 0.5
	assert.Contains(t, violated(p, sol), "closed_zero")
}

func TestNonContiguousApertureInfeasible(t *testing.T) {
	p := model.New()
	x := p.AddVars("x", 3, model.Continuous, 0, model.Inf)
	_, _, err := Build(p, x, []dataset.Beam{{ID: 0, BEV: [][]int{{nb, 0, 1, 2, nb}}}}, 1)
	require.NoError(t, err)

	// Columns 1 and 3 open, 2 closed: no (left, right) satisfies every row constraint.
	sol := make([]float64, 3+1+1+3+1)
	copy(sol[0:3], []float64{1, 0, 1})
	copy(sol[5:8], []float64{1, 0, 1})
	sol[8] = 1
	for left := 0.0; left <= 5; left++ {
		for right := 0.0; right <= 5; right++ {
			sol[3], sol[4] = left, right
			assert.NotEmpty(t, violated(p, sol), "left=%v right=%v", left, right)
		}
	}
}

func TestExtract(t *testing.T) {
	_, v, _ := build(t)
	plans := v.Extract(feasible())
	require.Len(t, plans, 2)

	assert.Equal(t, 0, plans[0].BeamID)
	assert.Equal(t, 1.5, plans[0].MU)
	require.Len(t, plans[0].Leaves, 2)
	assert.Equal(t, LeafPair{Leaf: 0, Left: 0, Right: 3, Open: []int{0, 1}}, plans[0].Leaves[0])
	assert.Equal(t, []int{}, plans[0].Leaves[1].Open)

	assert.Equal(t, 11, plans[1].BeamID)
	assert.Equal(t, []int{0}, plans[1].Leaves[0].Open)
}

func TestBuildRejectsBadInput(t *testing.T) {
	p := model.New()
	x := p.AddVars("x", 2, model.Continuous, 0, model.Inf)

	_, _, err := Build(p, x, []dataset.Beam{{ID: 0, BEV: [][]int{{0, 5}}}}, 1)
	assert.ErrorContains(t, err, "outside intensity vector")

	_, _, err = Build(model.New(), x, []dataset.Beam{{ID: 0, BEV: [][]int{{0, 0}}}}, 1)
	assert.ErrorContains(t, err, "appears twice")

	_, _, err = Build(model.New(), x, beams(), 0)
	assert.ErrorContains(t, err, "must be positive")
}
