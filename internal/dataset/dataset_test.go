package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSourceLoad(t *testing.T) {
	src := NewDirSource("testdata")
	c, err := src.Load(context.Background(), Request{PatientID: "P1", BeamIDs: []int{0, 11}, VoxelFactors: []int{6, 6, 1}, BeamletFactor: 6})
	require.NoError(t, err)

	assert.Equal(t, 4, c.NumVoxels())
	assert.Equal(t, 5, c.NumBeamlets())
	assert.Equal(t, []string{"PTV", "HEART"}, c.Order)
	assert.Equal(t, []int{0, 11}, c.BeamIDs())

	heart, err := c.Structure("HEART")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, true, true}, heart.Mask)
	assert.Equal(t, []int{2}, heart.OptVoxels)

	ptv, err := c.Structure("PTV")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false, false}, ptv.Mask, "eval voxels default to opt voxels")
}

func TestDirSourceMissingCase(t *testing.T) {
	_, err := NewDirSource("testdata").Load(context.Background(), Request{PatientID: "nobody"})
	require.Error(t, err)
	assert.True(t, IsDataError(err))
	assert.Contains(t, err.Error(), string(ErrCodeMissingCase))
}

func TestDirSourceFactorMismatch(t *testing.T) {
	_, err := NewDirSource("testdata").Load(context.Background(), Request{PatientID: "P1", VoxelFactors: []int{2, 2, 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(ErrCodeDimensionMismatch))
}

func TestSelectBeamsRenumbersColumns(t *testing.T) {
	c, err := NewDirSource("testdata").Load(context.Background(), Request{PatientID: "P1", BeamIDs: []int{11}})
	require.NoError(t, err)

	assert.Equal(t, 2, c.NumBeamlets())
	require.Len(t, c.Beams, 1)
	assert.Equal(t, [][]int{{0, 1}}, c.Beams[0].BEV)

	dose, err := c.Influence.MulVec([]float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 2, 2}, dose)
}

func TestSelectUnknownBeam(t *testing.T) {
	_, err := NewDirSource("testdata").Load(context.Background(), Request{PatientID: "P1", BeamIDs: []int{0, 99}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beam 99")
}

func TestMissingStructure(t *testing.T) {
	c := &Case{Structures: map[string]*Structure{}}
	_, err := c.Structure("CORD")
	require.Error(t, err)
	assert.True(t, IsDataError(err))
	assert.False(t, c.Has("CORD"))
}

func TestCSRMulVecAndDose(t *testing.T) {
	m := &CSR{Rows: 2, Cols: 3, Indptr: []int{0, 2, 3}, Indices: []int{0, 2, 1}, Data: []float64{1, 2, 3}}
	require.NoError(t, m.Validate())

	y, err := m.MulVec([]float64{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3}, y)

	_, err = m.MulVec([]float64{1})
	assert.True(t, IsDataError(err))

	c := &Case{Influence: m}
	d, err := c.Dose([]float64{1, 0, 0.5}, 30)
	require.NoError(t, err)
	assert.Equal(t, []float64{60, 0}, d)
}

func TestCSRValidate(t *testing.T) {
	bad := []*CSR{
		{Rows: 2, Cols: 2, Indptr: []int{0, 1}, Indices: []int{0}, Data: []float64{1}},
		{Rows: 1, Cols: 2, Indptr: []int{0, 1}, Indices: []int{0, 1}, Data: []float64{1}},
		{Rows: 1, Cols: 2, Indptr: []int{0, 1}, Indices: []int{5}, Data: []float64{1}},
		{Rows: 2, Cols: 2, Indptr: []int{0, 2, 1}, Indices: []int{0}, Data: []float64{1}},
	}
	for i, m := range bad {
		assert.Error(t, m.Validate(), "case %d", i)
	}
}
